package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
)

// GenerateCall records one invocation of MockGenerator.
type GenerateCall struct {
	Question  string
	Retrieved core.RetrievalResult
	Options   ai.AnswerOptions
	Streamed  bool
}

// MockGenerator is a test double for ai.AnswerGenerator.
type MockGenerator struct {
	// AnswerFunc is called by Answer and Stream if set.
	// If nil, the answer echoes the first retrieved chunk.
	AnswerFunc func(ctx context.Context, question string, retrieved core.RetrievalResult, opts ai.AnswerOptions) (*core.Answer, error)

	mu    sync.Mutex
	calls []GenerateCall
}

// NewMockGenerator creates a mock generator with default behavior.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// NewScriptedGenerator returns a generator that answers with the given
// results in order. A nil *core.Answer entry paired with a non-nil error
// fails that call. The last result repeats once the script is exhausted.
func NewScriptedGenerator(results ...ScriptedResult) *MockGenerator {
	g := NewMockGenerator()
	var idx int
	var mu sync.Mutex
	g.AnswerFunc = func(_ context.Context, _ string, retrieved core.RetrievalResult, _ ai.AnswerOptions) (*core.Answer, error) {
		mu.Lock()
		defer mu.Unlock()
		r := results[min(idx, len(results)-1)]
		idx++
		if r.Err != nil {
			return nil, r.Err
		}
		return &core.Answer{Text: r.Text, Sources: retrieved.Chunks()}, nil
	}
	return g
}

// ScriptedResult is one canned response of NewScriptedGenerator.
type ScriptedResult struct {
	Text string
	Err  error
}

// Answer returns the configured answer.
func (g *MockGenerator) Answer(ctx context.Context, question string, retrieved core.RetrievalResult, opts ...ai.AnswerOption) (*core.Answer, error) {
	o := ai.ApplyAnswerOptions(opts...)
	g.record(GenerateCall{Question: question, Retrieved: retrieved, Options: o})
	return g.answer(ctx, question, retrieved, o)
}

// Stream emits the configured answer word by word.
func (g *MockGenerator) Stream(ctx context.Context, question string, retrieved core.RetrievalResult, opts ...ai.AnswerOption) *ai.TokenStream {
	o := ai.ApplyAnswerOptions(opts...)
	g.record(GenerateCall{Question: question, Retrieved: retrieved, Options: o, Streamed: true})
	return ai.NewTokenStream(ctx, func(ctx context.Context, emit func(string) error) (*core.Answer, error) {
		answer, err := g.answer(ctx, question, retrieved, o)
		if err != nil {
			return nil, err
		}
		for i, word := range strings.Fields(answer.Text) {
			if i > 0 {
				word = " " + word
			}
			if err := emit(word); err != nil {
				return nil, err
			}
		}
		return answer, nil
	})
}

func (g *MockGenerator) answer(ctx context.Context, question string, retrieved core.RetrievalResult, o ai.AnswerOptions) (*core.Answer, error) {
	if g.AnswerFunc != nil {
		return g.AnswerFunc(ctx, question, retrieved, o)
	}
	text := "I don't know."
	if len(retrieved) > 0 {
		text = retrieved[0].Chunk.Text
	}
	return &core.Answer{Text: text, Sources: retrieved.Chunks()}, nil
}

func (g *MockGenerator) record(call GenerateCall) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call)
}

// CallCount returns the number of Answer and Stream calls.
func (g *MockGenerator) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// Calls returns a copy of the recorded calls.
func (g *MockGenerator) Calls() []GenerateCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]GenerateCall(nil), g.calls...)
}

// Reset clears the recorded calls.
func (g *MockGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = nil
}
