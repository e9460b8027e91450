package model

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownProvider is returned when no model is registered for a provider.
var ErrUnknownProvider = errors.New("no model registered for provider")

// ErrEmptyResponse is returned when a provider answers with no text.
var ErrEmptyResponse = errors.New("provider returned an empty response")

// DefaultSystemPrompt frames every enhancement request.
const DefaultSystemPrompt = "You are a senior software engineer reviewing a project plan. " +
	"Answer with concise, actionable suggestions."

// Transport sends prompts to the ChatModel registered for each provider ID.
// It satisfies the engine's invoker interface.
type Transport struct {
	mu     sync.RWMutex
	models map[string]ChatModel
	system string
	usage  func(providerID string, tokens int)
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithSystemPrompt replaces DefaultSystemPrompt. An empty prompt sends no
// system message.
func WithSystemPrompt(prompt string) TransportOption {
	return func(t *Transport) {
		t.system = prompt
	}
}

// WithUsageRecorder reports the token count of every successful call.
func WithUsageRecorder(record func(providerID string, tokens int)) TransportOption {
	return func(t *Transport) {
		t.usage = record
	}
}

// NewTransport creates an empty Transport.
func NewTransport(opts ...TransportOption) *Transport {
	t := &Transport{
		models: make(map[string]ChatModel),
		system: DefaultSystemPrompt,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Register binds a model to a provider ID, replacing any previous one.
func (t *Transport) Register(providerID string, m ChatModel) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.models[providerID] = m
}

// Providers returns the registered provider IDs, sorted.
func (t *Transport) Providers() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.models))
	for id := range t.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Invoke sends prompt to the provider's model once and returns its text.
func (t *Transport) Invoke(ctx context.Context, providerID string, prompt string) (string, error) {
	t.mu.RLock()
	m, ok := t.models[providerID]
	t.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, providerID)
	}

	messages := make([]Message, 0, 2)
	if t.system != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: t.system})
	}
	messages = append(messages, Message{Role: RoleUser, Content: prompt})

	out, err := m.Chat(ctx, messages)
	if err != nil {
		return "", err
	}
	if t.usage != nil && out.TokensUsed > 0 {
		t.usage(providerID, out.TokensUsed)
	}
	text := strings.TrimSpace(out.Text)
	if text == "" {
		return "", fmt.Errorf("%s: %w", providerID, ErrEmptyResponse)
	}
	return text, nil
}
