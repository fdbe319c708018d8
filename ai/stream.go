package ai

import (
	"context"
	"iter"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/poiesic/docqa/core"
)

// Producer runs a generation call, passing each partial token to emit.
// emit returns an error once the consumer has stopped listening; producers
// should return promptly when that happens.
type Producer func(ctx context.Context, emit func(token string) error) (*core.Answer, error)

// TokenStream is a finite, single-use sequence of answer tokens.
// The underlying provider call starts on the first iteration of Tokens.
type TokenStream struct {
	ctx     context.Context
	produce Producer

	started atomic.Bool
	done    chan struct{}

	mu     sync.Mutex
	answer *core.Answer
	err    error
}

// NewTokenStream wraps produce in a lazily started TokenStream.
func NewTokenStream(ctx context.Context, produce Producer) *TokenStream {
	return &TokenStream{
		ctx:     ctx,
		produce: produce,
		done:    make(chan struct{}),
	}
}

// FailedStream returns a stream that yields no tokens and reports err.
func FailedStream(err error) *TokenStream {
	return NewTokenStream(context.Background(), func(context.Context, func(string) error) (*core.Answer, error) {
		return nil, err
	})
}

// Tokens returns the token sequence. Only the first iteration yields tokens;
// later iterations return immediately.
func (s *TokenStream) Tokens() iter.Seq[string] {
	return func(yield func(string) bool) {
		if !s.started.CompareAndSwap(false, true) {
			return
		}
		defer close(s.done)

		ctx, cancel := context.WithCancel(s.ctx)
		defer cancel()

		tokens := make(chan string)
		finished := make(chan struct{})
		go func() {
			defer close(finished)
			defer close(tokens)
			answer, err := s.produce(ctx, func(token string) error {
				select {
				case tokens <- token:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			})
			s.mu.Lock()
			s.answer, s.err = answer, err
			s.mu.Unlock()
		}()

		for token := range tokens {
			if !yield(token) {
				// Nothing receives from tokens after this point, so a pending
				// emit can only observe the cancellation.
				cancel()
				break
			}
		}
		<-finished
	}
}

// Result blocks until the stream is exhausted and returns the final answer.
// If Tokens was never iterated the stream is consumed silently.
func (s *TokenStream) Result() (*core.Answer, error) {
	if !s.started.Load() {
		for range s.Tokens() {
		}
	}
	<-s.done

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answer, s.err
}

// Collect consumes the stream and returns the concatenated text alongside
// the final answer.
func (s *TokenStream) Collect() (string, *core.Answer, error) {
	var sb strings.Builder
	for token := range s.Tokens() {
		sb.WriteString(token)
	}
	answer, err := s.Result()
	return sb.String(), answer, err
}
