package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/corpus/ai"
	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/storage"
)

// Searcher performs similarity search over chunk embeddings. Matches are
// ranked by cosine distance to the query, ascending, and each result carries
// both the matched chunk and its parent record.
type Searcher struct {
	repository storage.ContentRepository
	embedder   ai.Embedder
	logger     *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "searcher")
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(repository storage.ContentRepository, provider ai.EmbeddingProvider, opts ...Option) (*Searcher, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if provider == nil {
		return nil, ErrProviderRequired
	}

	s := &Searcher{
		repository: repository,
		embedder:   provider.Embedder(),
		logger:     slog.Default().With("component", "searcher"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Search finds the chunks nearest to the query text.
// Returns up to maxHits results ordered by ascending distance.
// A nil filter searches the whole corpus.
func (s *Searcher) Search(ctx context.Context, query string, maxHits int, filter *storage.SearchFilter) ([]*core.SearchResult, error) {
	return s.SearchWithMonitor(ctx, query, maxHits, filter, nil)
}

// SearchWithMonitor is Search with observation hooks at each stage.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, maxHits int, filter *storage.SearchFilter, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if maxHits <= 0 {
		maxHits = 10
	}

	monitor.Start(query)

	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "err", err)
		return nil, err
	}
	monitor.AfterQueryEmbedding(len(embedding))

	matches, err := s.repository.SearchChunks(ctx, embedding, maxHits, filter)
	if err != nil {
		s.logger.Error("error querying for similar chunks", "err", err)
		return nil, err
	}
	monitor.AfterChunkSearch(matches)

	s.logger.Debug("search complete", "hits", len(matches), "maxHits", maxHits)
	monitor.Finish(matches)

	return matches, nil
}
