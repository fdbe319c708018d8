package mock

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// MockModel is a test double for llms.Model. It returns canned responses in
// order and honors llms.WithStreamingFunc by emitting each response word by
// word before returning.
type MockModel struct {
	// GenerateFunc overrides the canned responses if set.
	GenerateFunc func(ctx context.Context, messages []llms.MessageContent, opts llms.CallOptions) (string, error)

	mu        sync.Mutex
	responses []string
	index     int
	calls     []ModelCall
}

// ModelCall records one GenerateContent invocation.
type ModelCall struct {
	Messages []llms.MessageContent
	Options  llms.CallOptions
}

var _ llms.Model = (*MockModel)(nil)

// NewMockModel creates a model that cycles through responses.
func NewMockModel(responses ...string) *MockModel {
	return &MockModel{responses: responses}
}

// GenerateContent returns the next canned response.
func (m *MockModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, opt := range options {
		opt(&opts)
	}

	m.mu.Lock()
	m.calls = append(m.calls, ModelCall{Messages: messages, Options: opts})
	m.mu.Unlock()

	text, err := m.next(ctx, messages, opts)
	if err != nil {
		return nil, err
	}

	if opts.StreamingFunc != nil {
		for i, word := range strings.Fields(text) {
			if i > 0 {
				word = " " + word
			}
			if err := opts.StreamingFunc(ctx, []byte(word)); err != nil {
				return nil, err
			}
		}
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: text}},
	}, nil
}

// Call implements the single-prompt form of llms.Model.
func (m *MockModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func (m *MockModel) next(ctx context.Context, messages []llms.MessageContent, opts llms.CallOptions) (string, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, messages, opts)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.responses) == 0 {
		return "", errors.New("no responses configured")
	}
	if m.index >= len(m.responses) {
		m.index = 0
	}
	text := m.responses[m.index]
	m.index++
	return text, nil
}

// Calls returns a copy of the recorded calls.
func (m *MockModel) Calls() []ModelCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ModelCall(nil), m.calls...)
}

// CallCount returns the number of GenerateContent calls.
func (m *MockModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// PromptText flattens the text parts of a call's messages, one line per message.
func (c ModelCall) PromptText() string {
	var sb strings.Builder
	for _, msg := range c.Messages {
		sb.WriteString(string(msg.Role))
		sb.WriteString(": ")
		for _, part := range msg.Parts {
			if tc, ok := part.(llms.TextContent); ok {
				sb.WriteString(tc.Text)
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
