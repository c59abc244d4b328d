// Package chat is the chat-completion capability used by managed assistants
// and custom workflow steps. Each vendor gets one Client implementation.
package chat

import (
	"context"

	"github.com/valpere/polytran/internal/postprocess"
)

// Role of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// System and User build messages of the matching role.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }
func User(content string) Message   { return Message{Role: RoleUser, Content: content} }

// Params tunes one completion. Nil pointers leave the vendor default.
type Params struct {
	Model       string
	Temperature *float32
	MaxTokens   *int
	JSON        bool // ask the vendor for a JSON object when it supports that
}

// Response is the vendor-neutral completion result.
type Response struct {
	Vendor           string
	Model            string
	Content          string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
}

// Client is implemented once per vendor.
type Client interface {
	ChatCompletion(ctx context.Context, messages []Message, params Params) (*Response, error)
	ExtractContent(resp *Response) string
}

// extractContent is the content extraction shared by every vendor: reasoning
// blocks are dropped, everything else is kept verbatim.
func extractContent(resp *Response) string {
	if resp == nil {
		return ""
	}
	return postprocess.StripThinking(resp.Content)
}
