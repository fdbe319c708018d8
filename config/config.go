// Package config loads the process-wide docqa configuration from a YAML file,
// an optional .env file and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/index/pinecone"
	"github.com/poiesic/docqa/loader"
	"gopkg.in/yaml.v3"
)

// Index backends.
const (
	BackendMemory   = "memory"
	BackendLocal    = "local"
	BackendPinecone = "pinecone"
)

// Environment variables read by ApplyEnv.
const (
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
	EnvPineconeKey   = "PINECONE_API_KEY"
	EnvPineconeEnv   = "PINECONE_ENVIRONMENT"
	EnvPineconeIndex = "PINECONE_INDEX"
	EnvRedisURL      = "DOCQA_REDIS_URL"
)

// DefaultIndexPath is where the local backend keeps its index.
const DefaultIndexPath = "docqa-index"

// AIConfig configures the OpenAI-compatible provider.
type AIConfig struct {
	Host            string        `yaml:"host"`
	APIKey          string        `yaml:"api_key"`
	EmbeddingModel  string        `yaml:"embedding_model"`
	ChatModel       string        `yaml:"chat_model"`
	Temperature     float64       `yaml:"temperature"`
	MaxTokens       int           `yaml:"max_tokens"`
	Timeout         time.Duration `yaml:"timeout"`
	Strategy        string        `yaml:"strategy"`
	MaxContextChars int           `yaml:"max_context_chars"`
}

// WebConfig configures page scraping.
type WebConfig struct {
	Selector string        `yaml:"selector"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LocalConfig locates the persistent local index.
type LocalConfig struct {
	Path string `yaml:"path"`
}

// IndexConfig selects and configures the index backend.
type IndexConfig struct {
	Backend     string          `yaml:"backend"`
	Concurrency int             `yaml:"concurrency"`
	BatchSize   int             `yaml:"batch_size"`
	Local       LocalConfig     `yaml:"local"`
	Pinecone    pinecone.Config `yaml:"pinecone"`
}

// SessionConfig configures the interactive loop.
type SessionConfig struct {
	K           int    `yaml:"k"`
	Sentinel    string `yaml:"sentinel"`
	ShowSources bool   `yaml:"show_sources"`
	History     int    `yaml:"history"`
	Stream      bool   `yaml:"stream"`
	Color       bool   `yaml:"color"`
}

// CacheConfig enables the query embedding cache when RedisURL is set.
type CacheConfig struct {
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the root configuration.
type Config struct {
	Sources  []string              `yaml:"sources"`
	AI       AIConfig              `yaml:"ai"`
	Splitter loader.SplitterConfig `yaml:"splitter"`
	Web      WebConfig             `yaml:"web"`
	Index    IndexConfig           `yaml:"index"`
	Session  SessionConfig         `yaml:"session"`
	Cache    CacheConfig           `yaml:"cache"`
	Log      LogConfig             `yaml:"log"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	a := ai.DefaultConfig()
	return &Config{
		AI: AIConfig{
			Host:            a.Host,
			EmbeddingModel:  a.EmbeddingModel,
			ChatModel:       a.ChatModel,
			Temperature:     a.Temperature,
			MaxTokens:       a.MaxTokens,
			Timeout:         a.Timeout,
			Strategy:        string(a.Strategy),
			MaxContextChars: a.MaxContextChars,
		},
		Splitter: loader.DefaultSplitterConfig(),
		Web: WebConfig{
			Selector: loader.DefaultSelector,
			Timeout:  30 * time.Second,
		},
		Index: IndexConfig{
			Backend:     BackendMemory,
			Concurrency: 4,
			BatchSize:   32,
			Local:       LocalConfig{Path: DefaultIndexPath},
			Pinecone:    pinecone.Config{Timeout: 15 * time.Second},
		},
		Session: SessionConfig{
			K:        5,
			Sentinel: "quit",
		},
		Cache: CacheConfig{TTL: 24 * time.Hour},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the configuration and validates it.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read builds a configuration from the defaults, the YAML file at path (if
// path is not empty) and the environment. The result is not validated, so
// callers can apply further overrides first.
func Read(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read config file: %w", core.ErrConfiguration, err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// decode merges YAML over cfg. Unknown keys are rejected.
func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: failed to parse config file: %w", core.ErrConfiguration, err)
	}
	return nil
}

// LoadEnvFile loads variables from a .env file into the process environment.
// Variables that are already set win. An empty path loads ./.env if it exists.
func LoadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("%w: failed to load env file %s: %w", core.ErrConfiguration, path, err)
	}
	return nil
}

// ApplyEnv overrides credentials and endpoints from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(&c.AI.APIKey, EnvOpenAIKey)
	set(&c.AI.Host, EnvOpenAIBaseURL)
	set(&c.Index.Pinecone.APIKey, EnvPineconeKey)
	set(&c.Index.Pinecone.Environment, EnvPineconeEnv)
	set(&c.Index.Pinecone.IndexName, EnvPineconeIndex)
	set(&c.Cache.RedisURL, EnvRedisURL)
}

// ProviderConfig converts the ai section into provider configuration.
func (c *Config) ProviderConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithHost(c.AI.Host),
		ai.WithAPIKey(c.AI.APIKey),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithChatModel(c.AI.ChatModel),
		ai.WithTemperature(c.AI.Temperature),
		ai.WithMaxTokens(c.AI.MaxTokens),
		ai.WithTimeout(c.AI.Timeout),
		ai.WithStrategy(ai.Strategy(strings.ToLower(c.AI.Strategy))),
		ai.WithMaxContextChars(c.AI.MaxContextChars),
	)
}

// Validate reports every problem at once, wrapped in core.ErrConfiguration.
// It performs no I/O.
func (c *Config) Validate() error {
	var errs []error

	if err := c.ProviderConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Splitter.Validate(); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.Web.Selector) == "" {
		errs = append(errs, errors.New("web: selector is required"))
	}
	if c.Web.Timeout < 0 {
		errs = append(errs, errors.New("web: timeout cannot be negative"))
	}

	switch c.Index.Backend {
	case BackendMemory:
	case BackendLocal:
		if c.Index.Local.Path == "" {
			errs = append(errs, errors.New("index: local.path is required for the local backend"))
		}
	case BackendPinecone:
		if err := c.Index.Pinecone.Validate(); err != nil {
			errs = append(errs, err)
		}
	default:
		errs = append(errs, fmt.Errorf("index: unknown backend %q (want memory, local or pinecone)", c.Index.Backend))
	}
	if c.Index.Concurrency < 1 {
		errs = append(errs, errors.New("index: concurrency must be positive"))
	}
	if c.Index.BatchSize < 1 {
		errs = append(errs, errors.New("index: batch_size must be positive"))
	}

	if c.Session.K < 1 {
		errs = append(errs, errors.New("session: k must be >= 1"))
	}
	if strings.TrimSpace(c.Session.Sentinel) == "" {
		errs = append(errs, errors.New("session: sentinel is required"))
	}
	if c.Session.History < 0 {
		errs = append(errs, errors.New("session: history cannot be negative"))
	}

	if c.Cache.RedisURL != "" {
		if _, err := url.Parse(c.Cache.RedisURL); err != nil {
			errs = append(errs, fmt.Errorf("cache: invalid redis_url: %w", err))
		}
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, errors.New("cache: ttl cannot be negative"))
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log: invalid format %q: must be text or json", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", core.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", name)
	}
}
