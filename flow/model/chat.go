// Package model provides the language-model adapters behind the workflow
// enhancement calls.
package model

import "context"

// ChatModel is a single provider's chat endpoint.
//
// Implementations should:
//   - Translate Message slices to the provider's request format
//   - Respect context cancellation and deadlines
//   - Not retry on their own; a failed call is reported to the caller as is
type ChatModel interface {
	Chat(ctx context.Context, messages []Message) (ChatOut, error)
}

// Message is one entry of a conversation.
type Message struct {
	// Role is one of RoleSystem, RoleUser or RoleAssistant.
	Role string

	// Content is the message text.
	Content string
}

// Standard roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatOut is a model response.
type ChatOut struct {
	// Text is the concatenated text of the response.
	Text string

	// TokensUsed is the total token count reported by the provider, or 0.
	TokensUsed int
}

// SplitSystem separates system messages from the rest of the conversation.
// Multiple system messages are joined with a blank line.
func SplitSystem(messages []Message) (string, []Message) {
	var system string
	var rest []Message
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
			continue
		}
		rest = append(rest, msg)
	}
	return system, rest
}
