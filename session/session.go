// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
)

const (
	// DefaultK is the number of chunks retrieved per query.
	DefaultK = 5

	// DefaultSentinel ends the session when entered on its own line.
	DefaultSentinel = "quit"
)

// Retriever returns the chunks most relevant to a query.
// *index.VectorIndex implements it.
type Retriever interface {
	Query(ctx context.Context, text string, k int) (core.RetrievalResult, error)
}

// Initializer loads and builds an index, or attaches to an existing one.
type Initializer func(ctx context.Context) (Retriever, error)

// Session runs retrieval QA rounds against one index.
type Session struct {
	id          string
	init        Initializer
	generator   ai.AnswerGenerator
	k           int
	sentinel    string
	initial     []string
	batch       bool
	streaming   bool
	showSources bool
	maxHistory  int
	history     []core.Turn
	observer    Observer
	styles      Styles
	in          io.Reader
	out         io.Writer
	logger      *slog.Logger

	mu        sync.Mutex
	state     State
	retriever Retriever
}

// Option configures a Session.
type Option func(*Session) error

// WithK sets the number of chunks retrieved per query. Default is DefaultK.
func WithK(k int) Option {
	return func(s *Session) error {
		if k < 1 {
			return fmt.Errorf("%w: k must be >= 1, got %d", core.ErrConfiguration, k)
		}
		s.k = k
		return nil
	}
}

// WithSentinel sets the input that ends the session. Matching ignores case
// and surrounding whitespace.
func WithSentinel(sentinel string) Option {
	return func(s *Session) error {
		sentinel = strings.TrimSpace(sentinel)
		if sentinel == "" {
			return fmt.Errorf("%w: sentinel cannot be empty", core.ErrConfiguration)
		}
		s.sentinel = sentinel
		return nil
	}
}

// WithInitialQueries sets queries answered before any input is read.
func WithInitialQueries(queries ...string) Option {
	return func(s *Session) error {
		s.initial = append(s.initial, queries...)
		return nil
	}
}

// WithBatch closes the session after the initial queries instead of
// reading input.
func WithBatch(batch bool) Option {
	return func(s *Session) error {
		s.batch = batch
		return nil
	}
}

// WithStreaming prints answers token by token as they are generated.
func WithStreaming(streaming bool) Option {
	return func(s *Session) error {
		s.streaming = streaming
		return nil
	}
}

// WithShowSources prints the chunks each answer was based on.
func WithShowSources(show bool) Option {
	return func(s *Session) error {
		s.showSources = show
		return nil
	}
}

// WithHistory passes up to maxTurns previous rounds to the generator.
// Zero, the default, disables history.
func WithHistory(maxTurns int) Option {
	return func(s *Session) error {
		if maxTurns < 0 {
			return fmt.Errorf("%w: history cannot be negative, got %d", core.ErrConfiguration, maxTurns)
		}
		s.maxHistory = maxTurns
		return nil
	}
}

// WithObserver sets an observer for state changes and rounds.
func WithObserver(observer Observer) Option {
	return func(s *Session) error {
		if observer == nil {
			observer = &noopObserver{}
		}
		s.observer = observer
		return nil
	}
}

// WithStyles sets the output styles. Default is PlainStyles.
func WithStyles(styles Styles) Option {
	return func(s *Session) error {
		s.styles = styles
		return nil
	}
}

// WithInput sets where queries are read from. Default is os.Stdin.
func WithInput(r io.Reader) Option {
	return func(s *Session) error {
		s.in = r
		return nil
	}
}

// WithOutput sets where answers are written. Default is os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(s *Session) error {
		s.out = w
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "session", "session_id", s.id)
		return nil
	}
}

// New creates a session. Nothing is loaded until Run.
func New(init Initializer, generator ai.AnswerGenerator, opts ...Option) (*Session, error) {
	if init == nil {
		return nil, ErrInitializerRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}

	id := uuid.NewString()
	s := &Session{
		id:        id,
		init:      init,
		generator: generator,
		k:         DefaultK,
		sentinel:  DefaultSentinel,
		observer:  &noopObserver{},
		styles:    PlainStyles(),
		in:        os.Stdin,
		out:       os.Stdout,
		logger:    slog.Default().With("component", "session", "session_id", id),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string {
	return s.id
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) transition(to State) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()

	if from != to {
		s.logger.Debug("state changed", "from", from, "to", to)
		s.observer.StateChanged(from, to)
	}
}

// Run initializes the index, answers the initial queries and then reads
// queries until the sentinel, end of input or cancellation of ctx.
// It returns an error only if initialization fails or input cannot be read;
// failed rounds are reported on the output and the session continues.
// The index is closed before Run returns. A session runs once.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Initializing || s.retriever != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: session already ran", core.ErrInvalidArgument)
	}
	s.mu.Unlock()
	defer s.close()

	s.logger.Info("initializing session")
	retriever, err := s.init(ctx)
	if err != nil {
		s.logger.Error("session initialization failed", "err", err)
		return fmt.Errorf("failed to initialize session: %w", err)
	}
	if retriever == nil {
		return fmt.Errorf("failed to initialize session: %w: initializer returned no index", core.ErrInvalidArgument)
	}
	s.mu.Lock()
	s.retriever = retriever
	s.mu.Unlock()
	s.transition(Ready)

	p := s.newPipeline(retriever)

	for _, query := range s.initial {
		s.transition(AwaitingQuery)
		if ctx.Err() != nil || s.isSentinel(query) {
			return nil
		}
		if strings.TrimSpace(query) == "" {
			continue
		}
		s.round(ctx, p, query)
	}
	if s.batch {
		return nil
	}

	done := make(chan struct{})
	defer close(done)
	lines := s.readLines(done)

	for {
		s.transition(AwaitingQuery)
		fmt.Fprint(s.out, s.styles.render(s.styles.Prompt, fmt.Sprintf("Enter something (type %q to exit): ", s.sentinel)))

		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out)
			s.logger.Info("session interrupted")
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(s.out)
				return nil
			}
			if l.err != nil {
				return fmt.Errorf("%w: failed to read input: %w", core.ErrSourceUnavailable, l.err)
			}
			if s.isSentinel(l.text) {
				return nil
			}
			if strings.TrimSpace(l.text) == "" {
				continue
			}
			s.round(ctx, p, strings.TrimSpace(l.text))
		}
	}
}

func (s *Session) isSentinel(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), s.sentinel)
}

// round answers one query. Failures are reported and swallowed.
func (s *Session) round(ctx context.Context, p pipeline, query string) {
	s.transition(Answering)
	defer s.transition(AwaitingQuery)
	s.observer.RoundStarted(query)
	start := time.Now()

	result, err := p.run(ctx, query)
	if err != nil {
		s.logger.Warn("round failed", "err", err)
		fmt.Fprintln(s.out, s.styles.render(s.styles.Error, "error: "+err.Error()))
		s.observer.RoundFinished(query, nil, err)
		return
	}

	answer := result.answer
	if answer == nil {
		answer = &core.Answer{}
	}
	if !result.streamed {
		fmt.Fprintln(s.out, s.styles.render(s.styles.Answer, answer.Text))
	}
	if s.showSources {
		s.printSources(answer.Sources)
	}

	if s.maxHistory > 0 {
		s.history = append(s.history, core.Turn{Query: query, Answer: answer.Text})
		if len(s.history) > s.maxHistory {
			s.history = s.history[len(s.history)-s.maxHistory:]
		}
	}

	s.logger.Debug("round finished", "sources", len(answer.Sources), "elapsed", time.Since(start))
	s.observer.RoundFinished(query, answer, nil)
}

func (s *Session) printSources(sources []core.Chunk) {
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(s.out, s.styles.render(s.styles.Source, "Sources:"))
	for i, c := range sources {
		label := c.SourceID
		if page := c.Metadata["page"]; page != "" {
			label += " (page " + page + ")"
		}
		line := fmt.Sprintf("[%d] %s: %s", i+1, label, strings.TrimSpace(c.Text))
		fmt.Fprintln(s.out, s.styles.render(s.styles.Source, line))
	}
}

type line struct {
	text string
	err  error
}

// readLines feeds input lines to the returned channel until EOF or done.
// The reader goroutine may stay blocked on input after done is closed.
func (s *Session) readLines(done <-chan struct{}) <-chan line {
	lines := make(chan line)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.in)
		for scanner.Scan() {
			select {
			case lines <- line{text: scanner.Text()}:
			case <-done:
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case lines <- line{err: err}:
			case <-done:
			}
		}
	}()
	return lines
}

func (s *Session) close() {
	s.mu.Lock()
	retriever := s.retriever
	s.mu.Unlock()

	if closer, ok := retriever.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			s.logger.Warn("failed to close index", "err", err)
		}
	}
	s.transition(Closed)
	s.logger.Info("session closed")
}
