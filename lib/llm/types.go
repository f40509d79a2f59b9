// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package llm

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation. Messages are values and are
// never mutated after being appended to a history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// Name optionally labels the author within a role.
	Name string `json:"name,omitempty"`
}

// UserMessage returns a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage returns an assistant-role message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Request is one completion call.
type Request struct {
	// Model is the provider's model identifier, e.g. "gpt-4".
	Model string

	// System is sent as the leading system message. Empty means no
	// system message.
	System string

	// Messages is the ordered user/assistant history.
	Messages []Message

	// MaxTokens caps generated tokens. Zero leaves the cap to the
	// provider.
	MaxTokens int

	// User identifies the end user to the provider for abuse
	// monitoring.
	User string
}

// StopReason says why generation ended.
type StopReason string

const (
	StopReasonEndTurn       StopReason = "end_turn"
	StopReasonMaxTokens     StopReason = "max_tokens"
	StopReasonContentFilter StopReason = "content_filter"
)

// Usage reports token counts as billed by the provider.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Total is InputTokens + OutputTokens.
func (usage Usage) Total() int64 {
	return usage.InputTokens + usage.OutputTokens
}

// Response is a completed generation.
type Response struct {
	// Model is the model that served the request as reported by the
	// provider. It may be a dated variant of the requested name.
	Model      string
	Text       string
	StopReason StopReason
	Usage      Usage
}
