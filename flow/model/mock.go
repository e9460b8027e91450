package model

import (
	"context"
	"sync"
)

// MockChatModel is a ChatModel for tests.
//
// Example usage:
//
//	mock := &MockChatModel{
//	    Responses: []ChatOut{{Text: "first"}, {Text: "second"}},
//	}
//	out, err := mock.Chat(ctx, messages)
//	// "first", then "second", then "second" again
type MockChatModel struct {
	// Responses are returned in order; the last one repeats once exhausted.
	Responses []ChatOut

	// Err, if set, is returned instead of a response.
	Err error

	// Calls records the messages of every call.
	Calls [][]Message

	mu        sync.Mutex
	callIndex int
}

// Chat implements ChatModel.
func (m *MockChatModel) Chat(ctx context.Context, messages []Message) (ChatOut, error) {
	if ctx.Err() != nil {
		return ChatOut{}, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, messages)
	if m.Err != nil {
		return ChatOut{}, m.Err
	}
	if len(m.Responses) == 0 {
		return ChatOut{}, nil
	}

	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}
	return m.Responses[idx], nil
}

// CallCount returns the number of calls made so far.
func (m *MockChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// Reset clears the call history and rewinds the responses.
func (m *MockChatModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.callIndex = 0
}
