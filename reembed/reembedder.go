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


package reembed

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/poiesic/corpus/ai"
	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// ReportInterval is how often to report progress (number of documents)
	ReportInterval int

	// MaxRetries is the maximum number of retry attempts for failed operations
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reembedder regenerates every stored vector with the current embedding
// model. Use it after switching models: search is only meaningful when the
// query and the stored chunks were embedded by the same model.
type Reembedder struct {
	repo     storage.ContentRepository
	embedder ai.Embedder
	model    string
	config   *Config
	progress io.Writer
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(repo storage.ContentRepository, provider ai.EmbeddingProvider, config *Config, progress io.Writer) *Reembedder {
	if config == nil {
		config = DefaultConfig()
	}

	return &Reembedder{
		repo:     repo,
		embedder: provider.Embedder(),
		model:    provider.Model(),
		config:   config,
		progress: progress,
	}
}

// Run reembeds every document and its chunks, then records the new model.
// Each document is retried with exponential backoff before the run aborts.
func (r *Reembedder) Run(ctx context.Context) error {
	// Snapshot the IDs first so each document gets its own short transaction
	var ids []core.ID
	err := r.repo.ForEachRecord(ctx, func(record *core.ContentRecord) error {
		ids = append(ids, record.Id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to enumerate documents: %w", err)
	}

	if len(ids) == 0 {
		fmt.Fprintf(r.progress, "No documents found in database (0 documents)\n")
		return nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d documents with model %q\n",
		len(ids), r.model)

	tracker := NewProgressTracker(r.progress, len(ids), r.config.ReportInterval)
	tracker.Start()

	for _, id := range ids {
		err := RetryWithBackoff(ctx, func() error {
			return r.reembedDocument(ctx, id)
		}, r.config.MaxRetries, r.config.RetryDelay)
		if err != nil {
			return fmt.Errorf("failed to reembed document %d: %w", id, err)
		}
		tracker.Increment(1)
	}

	if err := r.repo.SetEmbeddingModel(ctx, r.model); err != nil {
		return fmt.Errorf("failed to record embedding model: %w", err)
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d documents in %v (%.1f documents/sec)\n",
		len(ids), elapsed.Round(time.Second), float64(len(ids))/elapsed.Seconds())

	return nil
}

// reembedDocument regenerates the summary and chunk vectors for one
// document and writes the whole set back in a single transaction.
func (r *Reembedder) reembedDocument(ctx context.Context, id core.ID) error {
	record, err := r.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	chunks, err := r.repo.GetChunks(ctx, id)
	if err != nil {
		return err
	}

	if record.Text != "" {
		vector, err := r.embedder.EmbedText(ctx, record.Text)
		if err != nil {
			return err
		}
		record.Vector = vector
	}

	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i := range chunks {
			texts[i] = chunks[i].Text
		}
		vectors, err := r.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return err
		}
		if len(vectors) != len(chunks) {
			return fmt.Errorf("embedding result mismatch. expected %d, received %d", len(chunks), len(vectors))
		}
		for i := range chunks {
			chunks[i].Vector = vectors[i]
		}
	}

	record.EmbedModel = r.model
	record.Indexed = len(chunks) > 0

	return r.repo.Upsert(ctx, record, chunks)
}
