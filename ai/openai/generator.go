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

package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/prompts"
)

// Generator implements ai.AnswerGenerator using OpenAI-compatible chat APIs.
type Generator struct {
	client          llms.Model
	temperature     float64
	maxTokens       int
	timeout         time.Duration
	strategy        ai.Strategy
	maxContextChars int
	logger          *slog.Logger
}

var _ ai.AnswerGenerator = (*Generator)(nil)

// newGenerator is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newGenerator(config *ai.Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.Host),
		openai.WithToken(token(config)),
		openai.WithModel(config.ChatModel),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrConfiguration, err)
	}
	return newGeneratorWithModel(client, config), nil
}

// newGeneratorWithModel builds a generator around an arbitrary llms.Model.
// The config must already be validated.
func newGeneratorWithModel(client llms.Model, config *ai.Config) *Generator {
	return &Generator{
		client:          client,
		temperature:     config.Temperature,
		maxTokens:       config.MaxTokens,
		timeout:         config.Timeout,
		strategy:        config.Strategy,
		maxContextChars: config.MaxContextChars,
		logger:          slog.Default().With("component", "openai-generator", "strategy", string(config.Strategy)),
	}
}

// NewGenerator creates a new answer generator using the provided configuration.
//
// Returns ai.AnswerGenerator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.AnswerGenerator, error) {
	return newGenerator(config)
}

// Answer produces an answer to question grounded in the retrieved chunks.
func (g *Generator) Answer(ctx context.Context, question string, retrieved core.RetrievalResult, opts ...ai.AnswerOption) (*core.Answer, error) {
	return g.generate(ctx, question, retrieved, ai.ApplyAnswerOptions(opts...), nil)
}

// Stream is like Answer but yields the answer text as the model produces it.
// Under the map-reduce strategy only the final combine call streams.
func (g *Generator) Stream(ctx context.Context, question string, retrieved core.RetrievalResult, opts ...ai.AnswerOption) *ai.TokenStream {
	options := ai.ApplyAnswerOptions(opts...)
	return ai.NewTokenStream(ctx, func(ctx context.Context, emit func(string) error) (*core.Answer, error) {
		return g.generate(ctx, question, retrieved, options, emit)
	})
}

func (g *Generator) generate(ctx context.Context, question string, retrieved core.RetrievalResult, opts ai.AnswerOptions, emit func(string) error) (*core.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidArgument, core.ErrEmptyText)
	}

	switch g.strategy {
	case ai.StrategyMapReduce:
		return g.mapReduce(ctx, question, retrieved, opts, emit)
	case ai.StrategyTruncate:
		return g.truncate(ctx, question, retrieved, opts, emit)
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", core.ErrConfiguration, g.strategy)
	}
}

// truncate stuffs as many of the best-ranked chunks as fit into one prompt.
func (g *Generator) truncate(ctx context.Context, question string, retrieved core.RetrievalResult, opts ai.AnswerOptions, emit func(string) error) (*core.Answer, error) {
	kept, texts := fitContext(retrieved, g.maxContextChars)
	if len(kept) < len(retrieved) {
		g.logger.Debug("dropped chunks to fit context", "kept", len(kept), "retrieved", len(retrieved))
	}

	prompt, err := render(questionPrompt, joinContext(texts), question)
	if err != nil {
		return nil, err
	}

	text, err := g.call(ctx, prompt, opts.History, emit)
	if err != nil {
		return nil, err
	}
	return &core.Answer{Text: text, Sources: kept.Chunks()}, nil
}

// mapReduce condenses each chunk with its own call, then answers from the extracts.
func (g *Generator) mapReduce(ctx context.Context, question string, retrieved core.RetrievalResult, opts ai.AnswerOptions, emit func(string) error) (*core.Answer, error) {
	extracts := make([]string, 0, len(retrieved))
	for i, sc := range retrieved {
		prompt, err := render(extractPrompt, sc.Chunk.Text, question)
		if err != nil {
			return nil, err
		}
		extract, err := g.call(ctx, prompt, nil, nil)
		if err != nil {
			return nil, err
		}
		g.logger.Debug("mapped chunk", "index", i, "extract_length", len(extract))
		if extract != "" {
			extracts = append(extracts, extract)
		}
	}

	combined := truncateRunes(joinContext(extracts), g.maxContextChars)
	prompt, err := render(combinePrompt, combined, question)
	if err != nil {
		return nil, err
	}

	text, err := g.call(ctx, prompt, opts.History, emit)
	if err != nil {
		return nil, err
	}
	return &core.Answer{Text: text, Sources: retrieved.Chunks()}, nil
}

// call sends one chat request. When emit is non-nil the response is streamed through it.
func (g *Generator) call(ctx context.Context, prompt string, history []core.Turn, emit func(string) error) (string, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	content := make([]llms.MessageContent, 0, 2+2*len(history))
	content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	for _, turn := range history {
		content = append(content,
			llms.TextParts(llms.ChatMessageTypeHuman, turn.Query),
			llms.TextParts(llms.ChatMessageTypeAI, turn.Answer),
		)
	}
	content = append(content, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	callOpts := []llms.CallOption{
		llms.WithTemperature(g.temperature),
		llms.WithMaxTokens(g.maxTokens),
	}
	if emit != nil {
		callOpts = append(callOpts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			return emit(string(chunk))
		}))
	}

	response, err := g.client.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		g.logger.Error("failed to generate content", "err", err)
		return "", classify(ctx, core.ErrGenerationFailure, err)
	}
	if len(response.Choices) < 1 {
		return "", fmt.Errorf("%w: model returned no choices", core.ErrGenerationFailure)
	}
	return strings.TrimSpace(response.Choices[0].Content), nil
}

func render(tmpl prompts.PromptTemplate, contextText, question string) (string, error) {
	prompt, err := tmpl.Format(map[string]any{
		"context":  contextText,
		"question": question,
	})
	if err != nil {
		return "", fmt.Errorf("%w: render prompt: %w", core.ErrGenerationFailure, err)
	}
	return prompt, nil
}

// fitContext keeps the leading chunks whose joined text fits within limit runes.
// Chunks are in rank order, so the lowest-scoring ones are dropped first.
// The top chunk is always kept; if it alone is too long its text is cut.
func fitContext(retrieved core.RetrievalResult, limit int) (core.RetrievalResult, []string) {
	kept := make(core.RetrievalResult, 0, len(retrieved))
	texts := make([]string, 0, len(retrieved))
	used := 0
	for i, sc := range retrieved {
		n := utf8.RuneCountInString(sc.Chunk.Text)
		if i > 0 {
			n += len(contextSeparator)
		}
		if used+n > limit {
			if i == 0 {
				kept = append(kept, sc)
				texts = append(texts, truncateRunes(sc.Chunk.Text, limit))
			}
			break
		}
		used += n
		kept = append(kept, sc)
		texts = append(texts, sc.Chunk.Text)
	}
	return kept, texts
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
