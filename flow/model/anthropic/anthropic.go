// Package anthropic adapts Anthropic's Messages API to model.ChatModel.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dshills/devflow/flow/model"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "claude-sonnet-4-5"

// DefaultMaxTokens caps the response length.
const DefaultMaxTokens = 4096

// messagesAPI is the subset of the SDK client used here.
type messagesAPI interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// ChatModel implements model.ChatModel for Claude.
//
// The SDK's automatic retries are disabled; a failed call is returned to
// the caller unchanged.
//
// Example usage:
//
//	m, err := anthropic.NewChatModel(os.Getenv("ANTHROPIC_API_KEY"), "")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out, err := m.Chat(ctx, []model.Message{{Role: model.RoleUser, Content: "hi"}})
type ChatModel struct {
	modelName string
	maxTokens int64
	client    messagesAPI
}

// NewChatModel creates a Claude model. An empty modelName uses DefaultModel.
func NewChatModel(apiKey, modelName string) (*ChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("anthropic API key is required")
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	)
	return &ChatModel{
		modelName: modelName,
		maxTokens: DefaultMaxTokens,
		client:    &client.Messages,
	}, nil
}

// ModelName returns the configured model.
func (m *ChatModel) ModelName() string {
	return m.modelName
}

// Chat implements model.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	system, conversation := model.SplitSystem(messages)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.modelName),
		MaxTokens: m.maxTokens,
		Messages:  toMessageParams(conversation),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := m.client.New(ctx, params)
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("anthropic: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return model.ChatOut{
		Text:       sb.String(),
		TokensUsed: int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}, nil
}

func toMessageParams(messages []model.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		block := anthropic.NewTextBlock(msg.Content)
		if msg.Role == model.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
			continue
		}
		out = append(out, anthropic.NewUserMessage(block))
	}
	return out
}
