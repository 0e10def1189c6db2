package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/corpus"
	"github.com/poiesic/corpus/ingestion"
)

// Built-in sample documents, used when no source directory is given.
var samples = map[string]string{
	"go-concurrency": `Goroutines are lightweight threads managed by the Go runtime.
Channels provide a way for goroutines to communicate and synchronize.
The select statement lets a goroutine wait on multiple channel operations.
Avoid sharing memory by communicating; instead, communicate by sharing memory through channels.`,

	"key-value-stores": `Embedded key-value stores keep data in the application's own process.
Log-structured merge trees batch writes in memory and flush them as sorted runs.
Compaction merges runs in the background, trading write amplification for read speed.
Badger separates keys from values to keep the LSM tree small and cache friendly.`,

	"vector-search": `Vector search ranks documents by the distance between embedding vectors.
Cosine distance measures the angle between two vectors, ignoring magnitude.
Chunking long documents improves recall because each chunk gets its own embedding.
Overlapping chunks preserve context that would otherwise be cut at boundaries.`,

	"web-crawling": `A crawler starts from seed URLs and follows links within a scope.
The base URL defines the crawl scope and groups pages for bulk operations.
Recrawling a page replaces its stored text when the content has changed.
Extracted text is normalized before indexing so whitespace noise never matters.`,

	"embeddings": `Embedding models map text into a high-dimensional vector space.
Texts with similar meaning land close together in that space.
Changing the embedding model invalidates stored vectors, which must be regenerated.
Queries and documents must be embedded with the same model to be comparable.`,
}

var (
	dbPath  = flag.String("db", "./corpus_db", "path to the database directory")
	srcDir  = flag.String("src", "", "directory of .txt files to ingest")
	workers = flag.Int("workers", 4, "concurrent ingest workers")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

// requestsFromDir builds one request per .txt file in dir.
func requestsFromDir(dir string) ([]ingestion.IngestRequest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var requests []ingestion.IngestRequest
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		info, err := entry.Info()
		if err != nil {
			return nil, err
		}
		requests = append(requests, ingestion.RequestFromFileExtract(entry.Name(), info.Size(), ingestion.FileExtract{
			TextContent: string(data),
		}))
	}
	return requests, nil
}

// requestsFromSamples builds requests from the built-in sample documents.
func requestsFromSamples() []ingestion.IngestRequest {
	requests := make([]ingestion.IngestRequest, 0, len(samples))
	for name, text := range samples {
		requests = append(requests, ingestion.RequestFromText(name, name, text))
	}
	return requests
}

func main() {
	db, err := corpus.NewDatabase(*dbPath)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	pipeline, err := db.NewIngestionPipeline(ingestion.WithPoolSize(*workers))
	if err != nil {
		panic(err)
	}
	defer pipeline.Release()

	var requests []ingestion.IngestRequest
	if *srcDir != "" {
		requests, err = requestsFromDir(*srcDir)
		if err != nil {
			panic(err)
		}
	} else {
		requests = requestsFromSamples()
	}

	if len(requests) == 0 {
		fmt.Println("nothing to ingest")
		return
	}

	report, err := pipeline.IngestBatch(context.Background(), requests)
	if err != nil {
		panic(err)
	}

	fmt.Printf("ingested %d/%d documents (%d failed)\n",
		report.Successful, report.Total, report.Failed)
	for _, result := range report.Results {
		if result.Err != nil {
			fmt.Printf("  item %d failed: %v\n", result.Index, result.Err)
		}
	}
}
