// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/bureau-foundation/roomgpt/lib/netutil"
	"github.com/bureau-foundation/roomgpt/lib/version"
)

// Provider is a completion backend.
type Provider interface {
	// Complete sends request and blocks until the whole response is
	// available or ctx is done.
	Complete(ctx context.Context, request Request) (*Response, error)
}

// ProviderError is an error response from the completion API.
type ProviderError struct {
	StatusCode int

	// Type is the provider's error type, e.g. "rate_limit_exceeded"
	// or "invalid_request_error".
	Type string

	Message string
}

func (err *ProviderError) Error() string {
	if err.Type != "" {
		return fmt.Sprintf("llm: HTTP %d: %s: %s", err.StatusCode, err.Type, err.Message)
	}
	return fmt.Sprintf("llm: HTTP %d: %s", err.StatusCode, err.Message)
}

// IsRateLimited reports an HTTP 429 or a rate_limit_exceeded error type.
// Some compatible servers send the type with a 400 or 503.
func (err *ProviderError) IsRateLimited() bool {
	return err.StatusCode == http.StatusTooManyRequests || err.Type == "rate_limit_exceeded"
}

// IsUpstreamTimeout reports a gateway or request timeout status.
func (err *ProviderError) IsUpstreamTimeout() bool {
	return err.StatusCode == http.StatusRequestTimeout || err.StatusCode == http.StatusGatewayTimeout
}

// doProviderRequest POSTs wireRequest as JSON. Non-200 responses are
// returned as *ProviderError with the body already closed; on success
// the caller owns the body.
func doProviderRequest(ctx context.Context, httpClient *http.Client, endpoint string, wireRequest any, prefix string, authorize func(*http.Request)) (*http.Response, error) {
	body, err := json.Marshal(wireRequest)
	if err != nil {
		return nil, fmt.Errorf("%s: marshaling request: %w", prefix, err)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: creating request: %w", prefix, err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("User-Agent", version.UserAgent())
	if authorize != nil {
		authorize(httpRequest)
	}

	httpResponse, err := httpClient.Do(httpRequest)
	if err != nil {
		return nil, fmt.Errorf("%s: sending request: %w", prefix, err)
	}
	if httpResponse.StatusCode != http.StatusOK {
		defer httpResponse.Body.Close()
		return nil, readProviderError(httpResponse)
	}
	return httpResponse, nil
}

// wireResponse is a pointer to a provider wire type that converts to
// the common Response.
type wireResponse[T any] interface {
	*T
	toResponse() (*Response, error)
}

// decodeResponse decodes a bounded JSON body into the wire type T and
// converts it. The body is closed on return.
func decodeResponse[T any, P wireResponse[T]](httpResponse *http.Response, prefix string) (*Response, error) {
	defer httpResponse.Body.Close()

	wire := P(new(T))
	if err := netutil.DecodeResponse(httpResponse.Body, wire); err != nil {
		return nil, fmt.Errorf("%s: %w", prefix, err)
	}
	response, err := wire.toResponse()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", prefix, err)
	}
	return response, nil
}

// readProviderError parses {"error":{"type":"...","message":"..."}},
// falling back to the raw body text.
func readProviderError(httpResponse *http.Response) error {
	body := netutil.ErrorBody(httpResponse.Body)

	var wireError struct {
		Error struct {
			Type    string `json:"type"`
			Code    any    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal([]byte(body), &wireError) == nil && wireError.Error.Message != "" {
		errorType := wireError.Error.Type
		// OpenAI puts "rate_limit_exceeded" in code and "requests" or
		// "tokens" in type for 429s.
		if code, ok := wireError.Error.Code.(string); ok && code == "rate_limit_exceeded" {
			errorType = code
		}
		return &ProviderError{
			StatusCode: httpResponse.StatusCode,
			Type:       errorType,
			Message:    wireError.Error.Message,
		}
	}
	return &ProviderError{
		StatusCode: httpResponse.StatusCode,
		Message:    body,
	}
}
