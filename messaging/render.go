// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// markdown renders GitHub-flavored markdown. Raw HTML in the input is
// dropped.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
		renderer.WithNodeRenderers(util.Prioritized(codeBlockRenderer{}, 100)),
	),
)

// RenderMarkdown converts markdown to the HTML subset Matrix clients
// display in formatted_body.
func RenderMarkdown(source string) (string, error) {
	var output bytes.Buffer
	if err := markdown.Convert([]byte(source), &output); err != nil {
		return "", fmt.Errorf("messaging: rendering markdown: %w", err)
	}
	return strings.TrimSpace(output.String()), nil
}

// codeBlockRenderer writes fenced code blocks with a language-* class.
// Fences without a language tag get one guessed from their contents.
type codeBlockRenderer struct{}

func (r codeBlockRenderer) RegisterFuncs(registerer renderer.NodeRendererFuncRegisterer) {
	registerer.Register(ast.KindFencedCodeBlock, r.renderFencedCodeBlock)
}

func (r codeBlockRenderer) renderFencedCodeBlock(writer util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	block := node.(*ast.FencedCodeBlock)

	var code bytes.Buffer
	lines := block.Lines()
	for index := range lines.Len() {
		line := lines.At(index)
		code.Write(line.Value(source))
	}

	language := string(block.Language(source))
	if language == "" {
		language = detectLanguage(code.String())
	}

	_, _ = writer.WriteString("<pre><code")
	if language != "" {
		_, _ = writer.WriteString(` class="language-`)
		_, _ = writer.Write(util.EscapeHTML([]byte(language)))
		_, _ = writer.WriteString(`"`)
	}
	_, _ = writer.WriteString(">")
	_, _ = writer.Write(util.EscapeHTML(code.Bytes()))
	_, _ = writer.WriteString("</code></pre>\n")
	return ast.WalkSkipChildren, nil
}

// detectLanguage names the language of code, or "" when no lexer
// recognizes it.
func detectLanguage(code string) string {
	lexer := lexers.Analyse(code)
	if lexer == nil {
		return ""
	}
	config := lexer.Config()
	if len(config.Aliases) > 0 {
		return config.Aliases[0]
	}
	return strings.ToLower(config.Name)
}
