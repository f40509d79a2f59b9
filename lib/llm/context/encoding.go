// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package context

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// Encoding counts the units of text under a fixed vocabulary. Count
// must be deterministic, and never negative.
type Encoding interface {
	Count(text string) int
}

// Encoding names accepted by [OpenEncoding].
const (
	EncodingCL100K     = "cl100k_base"
	EncodingO200K      = "o200k_base"
	EncodingRuneWeight = "rune_weight"
)

// OpenEncoding returns the named encoding.
func OpenEncoding(name string) (Encoding, error) {
	switch name {
	case EncodingRuneWeight:
		return RuneWeightEncoding{}, nil
	case EncodingCL100K, EncodingO200K:
		return NewTiktokenEncoding(name)
	default:
		return nil, fmt.Errorf("context: unknown encoding %q", name)
	}
}

// useOfflineLoader makes tiktoken read BPE ranks from tables compiled
// into the binary instead of downloading them.
var useOfflineLoader = sync.OnceFunc(func() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
})

// TiktokenEncoding counts BPE tokens. Safe for concurrent use.
type TiktokenEncoding struct {
	name     string
	tokenize *tiktoken.Tiktoken
}

// NewTiktokenEncoding loads a BPE table by name, for example
// "cl100k_base".
func NewTiktokenEncoding(name string) (*TiktokenEncoding, error) {
	useOfflineLoader()
	tokenize, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("context: loading %s: %w", name, err)
	}
	return &TiktokenEncoding{name: name, tokenize: tokenize}, nil
}

// Name is the BPE table name.
func (encoding *TiktokenEncoding) Name() string {
	return encoding.name
}

// Count returns the number of BPE tokens in text. Special-token text
// such as "<|endoftext|>" is counted as ordinary text.
func (encoding *TiktokenEncoding) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(encoding.tokenize.EncodeOrdinary(text))
}

// RuneWeightEncoding approximates BPE without a vocabulary: ASCII runes
// weigh a quarter unit and every other rune a whole unit, rounded up.
// CJK text, which BPE tokenizers split near one token per rune, is
// not undercounted.
type RuneWeightEncoding struct{}

// Count returns ceil((ascii + 4*other) / 4).
func (RuneWeightEncoding) Count(text string) int {
	weight := 0
	for index := 0; index < len(text); {
		r, size := utf8.DecodeRuneInString(text[index:])
		if r < utf8.RuneSelf {
			weight++
		} else {
			weight += 4
		}
		index += size
	}
	return (weight + 3) / 4
}
