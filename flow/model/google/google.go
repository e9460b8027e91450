// Package google adapts the Gemini API to model.ChatModel.
package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/dshills/devflow/flow/model"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.5-flash"

// BlockedError is returned when Gemini's safety filters refuse a prompt or
// stop a candidate.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	return "google: content blocked: " + e.Reason
}

// generator sends one request. The default implementation opens a Gemini
// client per call so no connection outlives a step.
type generator interface {
	generate(ctx context.Context, system string, parts []genai.Part) (*genai.GenerateContentResponse, error)
}

// ChatModel implements model.ChatModel for Gemini.
//
// The genai SDK does not retry GenerateContent calls on its own, so each
// Chat is a single attempt.
type ChatModel struct {
	modelName string
	client    generator
}

// NewChatModel creates a Gemini model. An empty modelName uses DefaultModel.
func NewChatModel(apiKey, modelName string) (*ChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("google API key is required")
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	return &ChatModel{
		modelName: modelName,
		client:    &sdkClient{apiKey: apiKey, modelName: modelName},
	}, nil
}

// ModelName returns the configured model.
func (m *ChatModel) ModelName() string {
	return m.modelName
}

// Chat implements model.ChatModel. System messages become the model's
// system instruction; the rest are sent as text parts.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	system, conversation := model.SplitSystem(messages)
	parts := make([]genai.Part, 0, len(conversation))
	for _, msg := range conversation {
		if msg.Content != "" {
			parts = append(parts, genai.Text(msg.Content))
		}
	}

	resp, err := m.client.generate(ctx, system, parts)
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("google: %w", err)
	}
	return convertResponse(resp)
}

func convertResponse(resp *genai.GenerateContentResponse) (model.ChatOut, error) {
	if resp == nil {
		return model.ChatOut{}, errors.New("google: empty response")
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return model.ChatOut{}, &BlockedError{Reason: resp.PromptFeedback.BlockReason.String()}
	}
	if len(resp.Candidates) == 0 {
		return model.ChatOut{}, errors.New("google: response has no candidates")
	}

	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonSafety {
		return model.ChatOut{}, &BlockedError{Reason: cand.FinishReason.String()}
	}

	var sb strings.Builder
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}

	out := model.ChatOut{Text: sb.String()}
	if resp.UsageMetadata != nil {
		out.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}
	return out, nil
}

type sdkClient struct {
	apiKey    string
	modelName string
}

func (c *sdkClient) generate(ctx context.Context, system string, parts []genai.Part) (*genai.GenerateContentResponse, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	defer func() { _ = client.Close() }()

	gm := client.GenerativeModel(c.modelName)
	if system != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	return gm.GenerateContent(ctx, parts...)
}
