// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bureau-foundation/roomgpt/lib/secret"
)

// DefaultOpenAIBaseURL is the public OpenAI API root.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIConfig configures an [OpenAI] provider.
type OpenAIConfig struct {
	// BaseURL is the API root; "/chat/completions" is appended.
	// Defaults to DefaultOpenAIBaseURL.
	BaseURL string

	// APIKey is sent as a bearer token. Nil sends no Authorization
	// header, which suits local compatible servers.
	APIKey *secret.Buffer

	// ResponseHeaderTimeout bounds the wait for the upstream to start
	// answering once the request is written. Zero disables it. When
	// exceeded the call fails as an upstream timeout.
	ResponseHeaderTimeout time.Duration

	// HTTPClient overrides the client. When set,
	// ResponseHeaderTimeout is ignored.
	HTTPClient *http.Client
}

// OpenAI implements [Provider] for the Chat Completions wire format
// (OpenAI, Azure OpenAI, OpenRouter, vLLM, Ollama, llama.cpp).
type OpenAI struct {
	httpClient *http.Client
	baseURL    string
	apiKey     *secret.Buffer
}

// NewOpenAI creates a provider. The provider borrows config.APIKey;
// the caller closes it after the provider is no longer used.
func NewOpenAI(config OpenAIConfig) (*OpenAI, error) {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, errors.New("llm/openai: base URL must be http or https")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = config.ResponseHeaderTimeout
		transport.DialContext = (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext
		httpClient = &http.Client{Transport: transport}
	}

	return &OpenAI{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     config.APIKey,
	}, nil
}

// Complete sends a non-streaming chat completion request.
func (provider *OpenAI) Complete(ctx context.Context, request Request) (*Response, error) {
	httpResponse, err := doProviderRequest(ctx, provider.httpClient,
		provider.baseURL+"/chat/completions", provider.buildRequest(request),
		"llm/openai", provider.authorize)
	if err != nil {
		return nil, err
	}
	return decodeResponse[openaiResponse](httpResponse, "llm/openai")
}

func (provider *OpenAI) authorize(request *http.Request) {
	if provider.apiKey != nil {
		request.Header.Set("Authorization", "Bearer "+provider.apiKey.String())
	}
}

// buildRequest prepends the system prompt as a system-role message.
func (provider *OpenAI) buildRequest(request Request) openaiRequest {
	wireRequest := openaiRequest{
		Model:     request.Model,
		MaxTokens: request.MaxTokens,
		User:      request.User,
		Messages:  make([]openaiMessage, 0, len(request.Messages)+1),
	}
	if request.System != "" {
		wireRequest.Messages = append(wireRequest.Messages, openaiMessage{
			Role:    string(RoleSystem),
			Content: request.System,
		})
	}
	for _, message := range request.Messages {
		wireRequest.Messages = append(wireRequest.Messages, openaiMessage{
			Role:    string(message.Role),
			Content: message.Content,
			Name:    message.Name,
		})
	}
	return wireRequest
}

type openaiRequest struct {
	Model     string          `json:"model"`
	Messages  []openaiMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
	User      string          `json:"user,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

type openaiResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []openaiChoice `json:"choices"`
	Usage   openaiUsage    `json:"usage"`
}

type openaiChoice struct {
	Index        int           `json:"index"`
	Message      openaiMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openaiUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

func (wire *openaiResponse) toResponse() (*Response, error) {
	if len(wire.Choices) == 0 {
		return nil, errors.New("response has no choices")
	}
	choice := wire.Choices[0]
	return &Response{
		Model:      wire.Model,
		Text:       choice.Message.Content,
		StopReason: mapOpenAIFinishReason(choice.FinishReason),
		Usage: Usage{
			InputTokens:  wire.Usage.PromptTokens,
			OutputTokens: wire.Usage.CompletionTokens,
		},
	}, nil
}

func mapOpenAIFinishReason(reason string) StopReason {
	switch reason {
	case "length":
		return StopReasonMaxTokens
	case "content_filter":
		return StopReasonContentFilter
	default:
		return StopReasonEndTurn
	}
}
