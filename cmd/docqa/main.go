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

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/poiesic/docqa"
	"github.com/poiesic/docqa/config"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/session"
	"github.com/urfave/cli/v2"
)

const configKey = "config"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("docqa failed", "err", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "docqa",
		Usage: "Ask questions about your documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log output format (text, json)",
				Value: "text",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a .env file (default: ./.env when present)",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "ask",
				Usage:  "Answer questions interactively from documents or an existing index",
				Action: askCommand,
				Flags: append(indexFlags(),
					&cli.StringSliceFlag{
						Name:    "source",
						Aliases: []string{"s"},
						Usage:   "File, directory or URL to load (repeatable); without sources the existing index is used",
					},
					&cli.IntFlag{
						Name:  "k",
						Usage: "Number of chunks retrieved per question",
						Value: session.DefaultK,
					},
					&cli.BoolFlag{
						Name:  "show-sources",
						Usage: "Print the chunks each answer is based on",
					},
					&cli.IntFlag{
						Name:  "history",
						Usage: "Number of previous rounds passed to the model (0 disables)",
					},
					&cli.BoolFlag{
						Name:  "stream",
						Usage: "Print answers as they are generated",
					},
					&cli.StringSliceFlag{
						Name:    "query",
						Aliases: []string{"q"},
						Usage:   "Question answered before reading input (repeatable)",
					},
					&cli.BoolFlag{
						Name:  "batch",
						Usage: "Exit after answering the --query questions",
					},
					&cli.StringFlag{
						Name:  "strategy",
						Usage: "Context overflow strategy (truncate, map-reduce)",
					},
					&cli.BoolFlag{
						Name:  "color",
						Usage: "Colorize prompts, sources and errors",
					},
				),
			},
			{
				Name:   "ingest",
				Usage:  "Build a persistent or managed index from documents",
				Action: ingestCommand,
				Flags: append(indexFlags(),
					&cli.StringSliceFlag{
						Name:     "source",
						Aliases:  []string{"s"},
						Usage:    "File, directory or URL to load (repeatable)",
						Required: true,
					},
				),
			},
			{
				Name:   "stats",
				Usage:  "Print the size of a persistent or managed index",
				Action: statsCommand,
				Flags:  indexFlags(),
			},
		},
	}
}

func indexFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "backend",
			Aliases: []string{"b"},
			Usage:   "Index backend (memory, local, pinecone)",
		},
		&cli.StringFlag{
			Name:  "index-path",
			Usage: "Directory of the local index",
		},
	}
}

// setup loads the environment and configuration, then installs the logger.
// Flags given on the command line override the configuration file.
func setup(c *cli.Context) error {
	if err := config.LoadEnvFile(c.String("env-file")); err != nil {
		return err
	}
	cfg, err := config.Read(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Log.Format = c.String("log-format")
	}
	if err := setupLogger(c.App.ErrWriter, cfg.Log); err != nil {
		return err
	}

	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func setupLogger(w io.Writer, cfg config.LogConfig) error {
	if w == nil {
		w = os.Stderr
	}
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text", "":
		handler = slog.NewTextHandler(w, opts)
	default:
		return fmt.Errorf("invalid log format %q: must be text or json", cfg.Format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// commandConfig returns the loaded configuration with the command's index
// flags applied.
func commandConfig(c *cli.Context) (*config.Config, error) {
	cfg, ok := c.App.Metadata[configKey].(*config.Config)
	if !ok {
		return nil, fmt.Errorf("%w: configuration was not loaded", core.ErrConfiguration)
	}
	if c.IsSet("backend") {
		cfg.Index.Backend = strings.ToLower(c.String("backend"))
	}
	if c.IsSet("index-path") {
		cfg.Index.Local.Path = c.String("index-path")
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func askCommand(c *cli.Context) error {
	cfg, err := commandConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("k") {
		cfg.Session.K = c.Int("k")
	}
	if c.IsSet("show-sources") {
		cfg.Session.ShowSources = c.Bool("show-sources")
	}
	if c.IsSet("history") {
		cfg.Session.History = c.Int("history")
	}
	if c.IsSet("stream") {
		cfg.Session.Stream = c.Bool("stream")
	}
	if c.IsSet("color") {
		cfg.Session.Color = c.Bool("color")
	}
	if c.IsSet("strategy") {
		cfg.AI.Strategy = c.String("strategy")
	}

	sources := c.StringSlice("source")
	if len(sources) == 0 {
		sources = cfg.Sources
	}
	queries := c.StringSlice("query")
	if c.Bool("batch") && len(queries) == 0 {
		return fmt.Errorf("%w: --batch needs at least one --query", core.ErrConfiguration)
	}

	ctx, stop := signalContext()
	defer stop()

	assistant, err := docqa.New(ctx, cfg, docqa.WithProgress(c.App.ErrWriter))
	if err != nil {
		return fmt.Errorf("failed to set up: %w", err)
	}
	defer assistant.Close()

	s, err := assistant.NewSession(sources,
		session.WithInitialQueries(queries...),
		session.WithBatch(c.Bool("batch")),
		session.WithInput(c.App.Reader),
		session.WithOutput(c.App.Writer),
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return s.Run(ctx)
}

func ingestCommand(c *cli.Context) error {
	cfg, err := commandConfig(c)
	if err != nil {
		return err
	}
	if cfg.Index.Backend == config.BackendMemory {
		return fmt.Errorf("%w: ingest needs a persistent backend (local or pinecone)", core.ErrConfiguration)
	}

	ctx, stop := signalContext()
	defer stop()

	assistant, err := docqa.New(ctx, cfg, docqa.WithProgress(c.App.ErrWriter))
	if err != nil {
		return fmt.Errorf("failed to set up: %w", err)
	}
	defer assistant.Close()

	stats, err := assistant.Ingest(ctx, c.StringSlice("source"))
	if err != nil {
		return fmt.Errorf("failed to ingest: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Indexed %d chunks (dimension %d) into the %s index\n",
		stats.Count, stats.Dimension, cfg.Index.Backend)
	return nil
}

func statsCommand(c *cli.Context) error {
	cfg, err := commandConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	assistant, err := docqa.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to set up: %w", err)
	}
	defer assistant.Close()

	stats, err := assistant.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read index stats: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "count: %d\ndimension: %d\n", stats.Count, stats.Dimension)
	return nil
}
