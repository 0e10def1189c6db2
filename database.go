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


package corpus

import (
	"io"
	"log/slog"

	"github.com/poiesic/corpus/ai"
	"github.com/poiesic/corpus/ai/openai"
	"github.com/poiesic/corpus/ingestion"
	"github.com/poiesic/corpus/reembed"
	"github.com/poiesic/corpus/search"
	"github.com/poiesic/corpus/storage"
	"github.com/poiesic/corpus/storage/badger"
)

// Database bundles the storage backend and embedding provider and hands out
// the registry, pipeline, searcher, and reembedder built on them.
type Database struct {
	repo     storage.ContentRepository
	provider ai.EmbeddingProvider
	logger   *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig *ai.Config
	provider ai.EmbeddingProvider
}

// WithAIConfig sets the embedding service configuration.
func WithAIConfig(config *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		if config != nil {
			o.aiConfig = config
		}
	}
}

// WithProvider sets a pre-built embedding provider, bypassing the
// OpenAI-compatible default. Used mostly in tests.
func WithProvider(provider ai.EmbeddingProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// NewDatabase opens a content database at filePath.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	repo, err := badger.NewContentRepository(filePath)
	if err != nil {
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			repo.Close()
			return nil, err
		}
	}

	return &Database{
		repo:     repo,
		provider: provider,
		logger:   slog.Default(),
	}, nil
}

// Close releases the provider and then the storage backend.
func (db *Database) Close() error {
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing embedding provider", "err", err)
	}

	if err := db.repo.Close(); err != nil {
		db.logger.Error("error closing content repository", "err", err)
		return err
	}
	return nil
}

// ContentRepository exposes the underlying repository.
func (db *Database) ContentRepository() storage.ContentRepository {
	return db.repo
}

// NewRegistry creates a content registry over this database.
func (db *Database) NewRegistry(opts ...ingestion.RegistryOption) (*ingestion.Registry, error) {
	return ingestion.NewRegistry(db.repo, db.provider, opts...)
}

// NewIngestionPipeline creates a registry and a batch pipeline over it.
func (db *Database) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	registry, err := db.NewRegistry()
	if err != nil {
		return nil, err
	}
	return ingestion.NewPipeline(registry, opts...)
}

// NewSearcher creates a searcher over this database.
func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(db.repo, db.provider, opts...)
}

// NewReembedder creates a reembedder over this database.
// progress: where to write progress output (typically os.Stderr)
func (db *Database) NewReembedder(config *reembed.Config, progress io.Writer) *reembed.Reembedder {
	return reembed.NewReembedder(db.repo, db.provider, config, progress)
}
