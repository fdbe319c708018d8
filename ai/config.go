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

package ai

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/poiesic/docqa/core"
)

// DefaultHost is the public OpenAI endpoint.
const DefaultHost = "https://api.openai.com/v1"

// Strategy selects how an answer generator handles context that does not fit
// into a single prompt.
type Strategy string

const (
	// StrategyTruncate drops the lowest-scoring chunks until the context fits.
	StrategyTruncate Strategy = "truncate"

	// StrategyMapReduce condenses every chunk separately and combines the
	// extracts in a final call.
	StrategyMapReduce Strategy = "map-reduce"
)

// Strategies lists the recognized strategies.
var Strategies = []Strategy{StrategyTruncate, StrategyMapReduce}

// ParseStrategy converts a configuration string into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	for _, st := range Strategies {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: ai config: unknown strategy %q (want truncate or map-reduce)", core.ErrConfiguration, s)
}

// Config holds configuration for AI service providers.
type Config struct {
	// Host is the base URL of the OpenAI-compatible API.
	// Example: "http://localhost:11434/v1" for a local server
	Host string

	// APIKey authenticates against Host. It may be empty for local servers.
	APIKey string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "text-embedding-3-small", "nomic-embed-text"
	EmbeddingModel string

	// ChatModel is the model identifier used to generate answers.
	// Example: "gpt-4o-mini", "qwen2.5:3b"
	ChatModel string

	// Temperature for answer generation. 0 gives deterministic QA.
	Temperature float64

	// MaxTokens caps the length of generated answers.
	MaxTokens int

	// Timeout bounds every provider call. Zero disables the bound.
	Timeout time.Duration

	// Strategy selects context overflow handling.
	Strategy Strategy

	// MaxContextChars bounds the retrieved context placed into one prompt.
	MaxContextChars int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithHost sets the API base URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.Host = host
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithChatModel sets the chat model identifier.
func WithChatModel(model string) ConfigOption {
	return func(c *Config) {
		c.ChatModel = model
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ConfigOption {
	return func(c *Config) {
		c.Temperature = t
	}
}

// WithMaxTokens sets the maximum number of generated tokens.
func WithMaxTokens(n int) ConfigOption {
	return func(c *Config) {
		c.MaxTokens = n
	}
}

// WithTimeout sets the per-call provider timeout.
func WithTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithStrategy sets the context overflow strategy.
func WithStrategy(s Strategy) ConfigOption {
	return func(c *Config) {
		c.Strategy = s
	}
}

// WithMaxContextChars sets the context size bound.
func WithMaxContextChars(n int) ConfigOption {
	return func(c *Config) {
		c.MaxContextChars = n
	}
}

// DefaultConfig returns a Config targeting the public OpenAI API.
func DefaultConfig() *Config {
	return &Config{
		Host:            DefaultHost,
		EmbeddingModel:  "text-embedding-3-small",
		ChatModel:       "gpt-4o-mini",
		Temperature:     0,
		MaxTokens:       512,
		Timeout:         60 * time.Second,
		Strategy:        StrategyTruncate,
		MaxContextChars: 12000,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434/v1"),
//	    WithEmbeddingModel("nomic-embed-text"),
//	    WithStrategy(StrategyMapReduce),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to the host if missing, which is required
// by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	if c.Host != "" && !strings.HasSuffix(c.Host, "/v1") {
		c.Host = strings.TrimSuffix(c.Host, "/")
		c.Host = c.Host + "/v1"
	}
}

// RequiresAPIKey reports whether the host is the hosted OpenAI service.
// Local OpenAI-compatible servers accept any token.
func (c *Config) RequiresAPIKey() bool {
	u, err := url.Parse(c.Host)
	if err != nil {
		return true
	}
	return strings.HasSuffix(u.Hostname(), "openai.com")
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration before validation and stores the
// canonical spelling of Strategy.
func (c *Config) Validate() error {
	c.Normalize()

	if c.Host == "" {
		return fmt.Errorf("%w: ai config: Host is required", core.ErrConfiguration)
	}
	if _, err := url.ParseRequestURI(c.Host); err != nil {
		return fmt.Errorf("%w: ai config: Host is not a valid URL: %w", core.ErrConfiguration, err)
	}
	if c.APIKey == "" && c.RequiresAPIKey() {
		return fmt.Errorf("%w: ai config: APIKey is required for %s", core.ErrConfiguration, c.Host)
	}
	if c.EmbeddingModel == "" {
		return fmt.Errorf("%w: ai config: EmbeddingModel is required", core.ErrConfiguration)
	}
	if c.ChatModel == "" {
		return fmt.Errorf("%w: ai config: ChatModel is required", core.ErrConfiguration)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: ai config: Temperature must be between 0 and 2", core.ErrConfiguration)
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("%w: ai config: MaxTokens must be positive", core.ErrConfiguration)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: ai config: Timeout cannot be negative", core.ErrConfiguration)
	}
	strategy, err := ParseStrategy(string(c.Strategy))
	if err != nil {
		return err
	}
	c.Strategy = strategy
	if c.MaxContextChars < 1 {
		return fmt.Errorf("%w: ai config: MaxContextChars must be positive", core.ErrConfiguration)
	}
	return nil
}
