package ai

import (
	"testing"
	"time"

	"github.com/poiesic/docqa/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, "gpt-4o-mini", cfg.ChatModel)
	assert.Equal(t, 0.0, cfg.Temperature)
	assert.Equal(t, StrategyTruncate, cfg.Strategy)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()

		assert.NotNil(t, cfg)
		assert.Equal(t, DefaultHost, cfg.Host)
		assert.Equal(t, 512, cfg.MaxTokens)
	})

	t.Run("with custom host", func(t *testing.T) {
		cfg := NewConfig(WithHost("http://custom:8080/v1"))

		assert.Equal(t, "http://custom:8080/v1", cfg.Host)
	})

	t.Run("with custom models", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingModel("nomic-embed-text"),
			WithChatModel("qwen2.5:3b"),
		)

		assert.Equal(t, "nomic-embed-text", cfg.EmbeddingModel)
		assert.Equal(t, "qwen2.5:3b", cfg.ChatModel)
	})

	t.Run("with multiple options", func(t *testing.T) {
		cfg := NewConfig(
			WithAPIKey("sk-test"),
			WithTemperature(0.7),
			WithMaxTokens(64),
			WithTimeout(5*time.Second),
			WithStrategy(StrategyMapReduce),
			WithMaxContextChars(2000),
		)

		assert.Equal(t, "sk-test", cfg.APIKey)
		assert.Equal(t, 0.7, cfg.Temperature)
		assert.Equal(t, 64, cfg.MaxTokens)
		assert.Equal(t, 5*time.Second, cfg.Timeout)
		assert.Equal(t, StrategyMapReduce, cfg.Strategy)
		assert.Equal(t, 2000, cfg.MaxContextChars)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name string
		host string
		want string
	}{
		{name: "adds suffix", host: "http://localhost:11434", want: "http://localhost:11434/v1"},
		{name: "trims trailing slash", host: "http://localhost:11434/", want: "http://localhost:11434/v1"},
		{name: "keeps suffix", host: "http://localhost:11434/v1", want: "http://localhost:11434/v1"},
		{name: "empty stays empty", host: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Host: tt.host}
			cfg.Normalize()
			assert.Equal(t, tt.want, cfg.Host)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return NewConfig(WithAPIKey("sk-test"))
	}

	t.Run("valid config", func(t *testing.T) {
		require.NoError(t, valid().Validate())
	})

	t.Run("local host needs no key", func(t *testing.T) {
		cfg := NewConfig(WithHost("http://localhost:11434"))
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "http://localhost:11434/v1", cfg.Host)
	})

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing host", mutate: func(c *Config) { c.Host = "" }},
		{name: "invalid host", mutate: func(c *Config) { c.Host = "::nonsense" }},
		{name: "missing key for openai", mutate: func(c *Config) { c.APIKey = "" }},
		{name: "missing embedding model", mutate: func(c *Config) { c.EmbeddingModel = "" }},
		{name: "missing chat model", mutate: func(c *Config) { c.ChatModel = "" }},
		{name: "negative temperature", mutate: func(c *Config) { c.Temperature = -1 }},
		{name: "zero max tokens", mutate: func(c *Config) { c.MaxTokens = 0 }},
		{name: "negative timeout", mutate: func(c *Config) { c.Timeout = -time.Second }},
		{name: "unknown strategy", mutate: func(c *Config) { c.Strategy = "refine" }},
		{name: "empty strategy", mutate: func(c *Config) { c.Strategy = "" }},
		{name: "zero context bound", mutate: func(c *Config) { c.MaxContextChars = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrConfiguration)
		})
	}
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("Map-Reduce")
	require.NoError(t, err)
	assert.Equal(t, StrategyMapReduce, s)

	s, err = ParseStrategy("truncate")
	require.NoError(t, err)
	assert.Equal(t, StrategyTruncate, s)

	_, err = ParseStrategy("stuff")
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestValidate_CanonicalStrategy(t *testing.T) {
	cfg := NewConfig(WithHost("http://localhost:11434"), WithStrategy("MAP-REDUCE"))
	require.NoError(t, cfg.Validate())
	assert.Equal(t, StrategyMapReduce, cfg.Strategy)
}
