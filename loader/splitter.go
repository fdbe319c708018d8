package loader

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/docqa/core"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	DefaultChunkSize    = 400
	DefaultChunkOverlap = 20
)

// DefaultSeparators are tried in order, from paragraph breaks down to single characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// SplitterConfig controls chunk boundaries. Sizes are measured in runes.
type SplitterConfig struct {
	ChunkSize    int      `yaml:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap"`
	Separators   []string `yaml:"separators"`
}

// DefaultSplitterConfig returns the default chunking parameters.
func DefaultSplitterConfig() SplitterConfig {
	return SplitterConfig{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		Separators:   append([]string(nil), DefaultSeparators...),
	}
}

// Validate reports invalid sizes as core.ErrConfiguration.
func (c SplitterConfig) Validate() error {
	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: splitter: chunk_size must be positive, got %d", core.ErrConfiguration, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: splitter: chunk_overlap must be in [0, %d), got %d", core.ErrConfiguration, c.ChunkSize, c.ChunkOverlap)
	}
	return nil
}

// Splitter cuts document text into overlapping chunks.
type Splitter struct {
	config   SplitterConfig
	splitter textsplitter.RecursiveCharacter
}

// NewSplitter validates cfg and builds a recursive character splitter.
// Empty Separators fall back to DefaultSeparators.
func NewSplitter(cfg SplitterConfig) (*Splitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Separators) == 0 {
		cfg.Separators = append([]string(nil), DefaultSeparators...)
	}
	return &Splitter{
		config: cfg,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
			textsplitter.WithSeparators(cfg.Separators),
			textsplitter.WithLenFunc(utf8.RuneCountInString),
		),
	}, nil
}

// Config returns the effective configuration.
func (s *Splitter) Config() SplitterConfig {
	return s.config
}

// Split returns the non-blank chunks of text, trimmed.
func (s *Splitter) Split(text string) ([]string, error) {
	parts, err := s.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("%w: split: %w", core.ErrParseFailure, err)
	}
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}
