package ai

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider returns a whole completion for a conversation.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Options are sampling parameters passed to the completion service.
// Zero values leave the service default in place.
type Options struct {
	Temperature float64
	TopP        float64
	NumCtx      int
}
