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

// Package loader turns files, directories and web pages into chunks ready
// for embedding.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/docqa/core"
)

// DefaultSelector picks the article body of typical blog pages.
const DefaultSelector = "div.entry-content"

const (
	MetaSource   = "source"
	MetaPage     = "page"
	MetaSelector = "selector"
)

var (
	ErrSplitterRequired = errors.New("splitter is required")
	ErrParserRequired   = errors.New("parser is required")
)

// Source produces chunks from a locator: a file path, a directory or an HTTP(S) URL.
type Source interface {
	Load(ctx context.Context, locator string) ([]core.Chunk, error)
}

// Loader is the default Source.
type Loader struct {
	splitter   *Splitter
	parsers    map[string]ParserFunc
	selector   string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ Source = (*Loader)(nil)

// Option configures a Loader.
type Option func(*Loader) error

// WithSplitter sets the chunk splitter.
func WithSplitter(s *Splitter) Option {
	return func(l *Loader) error {
		if s == nil {
			return ErrSplitterRequired
		}
		l.splitter = s
		return nil
	}
}

// WithParser registers fn for files with extension ext (".txt", ".rst", ...).
func WithParser(ext string, fn ParserFunc) Option {
	return func(l *Loader) error {
		if fn == nil {
			return ErrParserRequired
		}
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		l.parsers[ext] = fn
		return nil
	}
}

// WithSelector sets the CSS selector used to extract web page content.
func WithSelector(selector string) Option {
	return func(l *Loader) error {
		if strings.TrimSpace(selector) == "" {
			return fmt.Errorf("%w: loader: selector cannot be empty", core.ErrConfiguration)
		}
		l.selector = selector
		return nil
	}
}

// WithHTTPClient sets the client used for web sources.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) error {
		l.httpClient = c
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) error {
		l.logger = logger
		return nil
	}
}

// NewLoader creates a Loader with the default parsers, splitter and selector.
func NewLoader(opts ...Option) (*Loader, error) {
	splitter, err := NewSplitter(DefaultSplitterConfig())
	if err != nil {
		return nil, err
	}
	l := &Loader{
		splitter:   splitter,
		parsers:    DefaultParsers(),
		selector:   DefaultSelector,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default().With("component", "loader"),
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Supports reports whether files with the given name have a registered parser.
func (l *Loader) Supports(name string) bool {
	_, ok := l.parsers[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Load reads the locator and splits it into chunks.
//
// Directories are walked in lexical order; files without a registered parser
// are skipped. The first file that fails aborts the whole load.
func (l *Loader) Load(ctx context.Context, locator string) ([]core.Chunk, error) {
	if isURL(locator) {
		return l.loadWeb(ctx, locator)
	}

	info, err := os.Stat(locator)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSourceUnavailable, err)
	}
	if !info.IsDir() {
		if !l.Supports(locator) {
			return nil, fmt.Errorf("%w: no parser for %q", core.ErrParseFailure, filepath.Ext(locator))
		}
		return l.loadFile(ctx, locator)
	}
	return l.loadDir(ctx, locator)
}

func (l *Loader) loadDir(ctx context.Context, root string) ([]core.Chunk, error) {
	var chunks []core.Chunk
	files := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("%w: %w", core.ErrSourceUnavailable, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		if !l.Supports(path) {
			l.logger.Debug("skipping unsupported file", "path", path)
			return nil
		}
		fileChunks, err := l.loadFile(ctx, path)
		if err != nil {
			return err
		}
		files++
		chunks = append(chunks, fileChunks...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.logger.Info("loaded directory", "path", root, "files", files, "chunks", len(chunks))
	return chunks, nil
}

func (l *Loader) loadFile(ctx context.Context, path string) ([]core.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSourceUnavailable, err)
	}

	parse := l.parsers[strings.ToLower(filepath.Ext(path))]
	pages, err := parse(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrParseFailure, path, err)
	}

	chunks, err := l.chunk(path, pages, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	l.logger.Debug("loaded file", "path", path, "pages", len(pages), "chunks", len(chunks))
	return chunks, nil
}

// chunk splits pages into chunks of one source, numbering them in order.
func (l *Loader) chunk(sourceID string, pages []Page, extra map[string]string) ([]core.Chunk, error) {
	var chunks []core.Chunk
	for _, page := range pages {
		parts, err := l.splitter.Split(page.Text)
		if err != nil {
			return nil, err
		}
		for _, part := range parts {
			meta := map[string]string{MetaSource: sourceID}
			if page.Number > 0 {
				meta[MetaPage] = strconv.Itoa(page.Number)
			}
			for k, v := range extra {
				meta[k] = v
			}
			chunks = append(chunks, core.Chunk{
				Text:     part,
				SourceID: sourceID,
				Seq:      len(chunks),
				Metadata: meta,
			})
		}
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no text content", core.ErrParseFailure)
	}
	return chunks, nil
}

func isURL(locator string) bool {
	lower := strings.ToLower(locator)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
