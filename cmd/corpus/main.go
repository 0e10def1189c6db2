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
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/poiesic/corpus"
	"github.com/poiesic/corpus/ai"
	"github.com/poiesic/corpus/ingestion"
	"github.com/poiesic/corpus/reembed"
	"github.com/poiesic/corpus/storage"
	"github.com/poiesic/corpus/storage/badger"
	"github.com/urfave/cli/v2"
)

func dbFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "db",
		Aliases:  []string{"d"},
		Usage:    "Path to BadgerDB database directory",
		Required: true,
	}
}

func embeddingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "embeddinggemma",
		},
	}
}

func main() {
	app := &cli.App{
		Name:  "corpus",
		Usage: "Content ingestion and semantic search over crawled pages, files, and text",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest-text",
				Usage:     "Ingest raw text under an identifier",
				ArgsUsage: "<identifier> <text>",
				Action:    ingestTextCommand,
				Flags: append([]cli.Flag{
					dbFlag(),
					&cli.StringFlag{
						Name:  "title",
						Usage: "Title for the record (defaults to the identifier)",
					},
				}, embeddingFlags()...),
			},
			{
				Name:      "ingest-file",
				Usage:     "Ingest the contents of a text file",
				ArgsUsage: "<path>",
				Action:    ingestFileCommand,
				Flags:     append([]cli.Flag{dbFlag()}, embeddingFlags()...),
			},
			{
				Name:      "search",
				Usage:     "Search the corpus by semantic similarity",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: append([]cli.Flag{
					dbFlag(),
					&cli.IntFlag{
						Name:    "max-hits",
						Aliases: []string{"n"},
						Usage:   "Maximum number of results",
						Value:   10,
					},
					&cli.StringFlag{
						Name:  "base-url",
						Usage: "Restrict results to one crawl scope",
					},
				}, embeddingFlags()...),
			},
			{
				Name:      "get",
				Usage:     "Show a stored record by identity key",
				ArgsUsage: "<identity-key>",
				Action:    getCommand,
				Flags:     []cli.Flag{dbFlag()},
			},
			{
				Name:   "stats",
				Usage:  "Show document and chunk counts",
				Action: statsCommand,
				Flags:  []cli.Flag{dbFlag()},
			},
			{
				Name:   "delete",
				Usage:  "Delete all records under a base URL",
				Action: deleteCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.StringFlag{
						Name:     "base-url",
						Usage:    "Crawl scope to delete",
						Required: true,
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Reembed all documents and chunks with a new model",
				Action: reembedCommand,
				Flags: append([]cli.Flag{
					dbFlag(),
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N documents",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				}, embeddingFlags()...),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// openDatabase builds a Database from the command's db and embedding flags.
func openDatabase(c *cli.Context) (*corpus.Database, error) {
	aiConfig := ai.NewConfig(
		ai.WithHost(c.String("embedding-host")),
		ai.WithModel(c.String("embedding-model")),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid embedding configuration: %w", err)
	}
	db, err := corpus.NewDatabase(c.String("db"), corpus.WithAIConfig(aiConfig))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func ingestTextCommand(c *cli.Context) error {
	if c.NArg() < 2 {
		return fmt.Errorf("usage: ingest-text <identifier> <text>")
	}
	identifier := c.Args().Get(0)
	text := strings.Join(c.Args().Slice()[1:], " ")

	title := c.String("title")
	if title == "" {
		title = identifier
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	registry, err := db.NewRegistry()
	if err != nil {
		return err
	}
	defer registry.Release()

	record, err := registry.Ingest(context.Background(), ingestion.RequestFromText(identifier, title, text))
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	fmt.Printf("Ingested %q (id %d, %d chunks, indexed=%v)\n",
		record.IdentityKey, record.Id, record.ChunkCount, record.Indexed)
	return nil
}

func ingestFileCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("usage: ingest-file <path>")
	}
	path := c.Args().Get(0)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	registry, err := db.NewRegistry()
	if err != nil {
		return err
	}
	defer registry.Release()

	req := ingestion.RequestFromFileExtract(filepath.Base(path), info.Size(), ingestion.FileExtract{
		TextContent: string(data),
	})
	record, err := registry.Ingest(context.Background(), req)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	fmt.Printf("Ingested %q (id %d, %d chunks, indexed=%v)\n",
		record.IdentityKey, record.Id, record.ChunkCount, record.Indexed)
	return nil
}

func searchCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("usage: search <query>")
	}
	query := strings.Join(c.Args().Slice(), " ")

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := db.NewSearcher()
	if err != nil {
		return err
	}

	var filter *storage.SearchFilter
	if baseURL := c.String("base-url"); baseURL != "" {
		filter = &storage.SearchFilter{BaseURL: baseURL}
	}

	results, err := searcher.Search(context.Background(), query, c.Int("max-hits"), filter)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}

	for i, result := range results {
		title := result.Record.Title
		if title == "" {
			title = result.Record.IdentityKey
		}
		fmt.Printf("%2d. [%.4f] %s (chunk %d)\n", i+1, result.Distance, title, result.Chunk.Index)
		fmt.Printf("    %s\n", firstLine(result.Chunk.Text, 120))
	}
	return nil
}

func getCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("usage: get <identity-key>")
	}

	repo, err := badger.NewContentRepository(c.String("db"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer repo.Close()

	record, err := repo.GetByIdentity(context.Background(), c.Args().Get(0))
	if err != nil {
		return err
	}

	fmt.Printf("Id:          %d\n", record.Id)
	fmt.Printf("Identity:    %s\n", record.IdentityKey)
	fmt.Printf("Source:      %s\n", record.Source)
	if record.URL != "" {
		fmt.Printf("URL:         %s\n", record.URL)
	}
	fmt.Printf("Title:       %s\n", record.Title)
	fmt.Printf("Words:       %d\n", record.WordCount)
	fmt.Printf("Chunks:      %d\n", record.ChunkCount)
	fmt.Printf("Indexed:     %v\n", record.Indexed)
	fmt.Printf("Model:       %s\n", record.EmbedModel)
	fmt.Printf("Inserted:    %s\n", record.InsertedAt.Format(time.RFC3339))
	fmt.Printf("Updated:     %s\n", record.UpdatedAt.Format(time.RFC3339))
	for k, v := range record.Metadata {
		fmt.Printf("Meta %-8s %s\n", k+":", v)
	}
	fmt.Printf("Snippet:     %s\n", firstLine(record.Snippet, 200))
	return nil
}

func statsCommand(c *cli.Context) error {
	repo, err := badger.NewContentRepository(c.String("db"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer repo.Close()

	stats, err := repo.Stats(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Documents:       %d\n", stats.TotalDocuments)
	fmt.Printf("Chunks:          %d\n", stats.TotalChunks)
	model := stats.EmbeddingModel
	if model == "" {
		model = "(none)"
	}
	fmt.Printf("Embedding model: %s\n", model)
	return nil
}

func deleteCommand(c *cli.Context) error {
	repo, err := badger.NewContentRepository(c.String("db"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer repo.Close()

	count, err := repo.DeleteByBaseURL(context.Background(), c.String("base-url"))
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}

	fmt.Printf("Deleted %d documents under %s\n", count, c.String("base-url"))
	return nil
}

func reembedCommand(c *cli.Context) error {
	reembedConfig := &reembed.Config{
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Fprintf(os.Stderr, "Database: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(os.Stderr)

	reembedder := db.NewReembedder(reembedConfig, os.Stderr)
	if err := reembedder.Run(context.Background()); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

// firstLine returns the first line of text, truncated to maxChars runes.
func firstLine(text string, maxChars int) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	runes := []rune(text)
	if len(runes) > maxChars {
		return string(runes[:maxChars]) + "..."
	}
	return text
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
