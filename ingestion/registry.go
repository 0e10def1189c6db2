package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/corpus/ai"
	"github.com/poiesic/corpus/chunker"
	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/storage"
)

const lockStripes = 64

// Registry resolves content identity and performs single-item ingestion:
// normalize, validate, chunk, embed, and store. Concurrent ingests of the
// same identity are serialized so the last writer wins cleanly; distinct
// identities proceed in parallel.
type Registry struct {
	repository storage.ContentRepository
	embedder   ai.Embedder
	model      string
	chunker    *chunker.Chunker
	strategy   chunker.Strategy
	embedPool  *ants.Pool
	locks      [lockStripes]sync.Mutex
	modelOnce  sync.Once
	logger     *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry) error

// WithChunker sets a custom chunker.
// Default uses chunker.New() defaults.
func WithChunker(c *chunker.Chunker) RegistryOption {
	return func(r *Registry) error {
		if c != nil {
			r.chunker = c
		}
		return nil
	}
}

// WithStrategy sets the chunking strategy.
// Default is chunker.StrategyRecursive.
func WithStrategy(strategy chunker.Strategy) RegistryOption {
	return func(r *Registry) error {
		r.strategy = strategy
		return nil
	}
}

// WithEmbedWorkers sets the worker pool size for per-chunk embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithEmbedWorkers(size int) RegistryOption {
	return func(r *Registry) error {
		if size < 1 {
			size = 1
		}
		if r.embedPool != nil {
			r.embedPool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		r.embedPool = pool
		return nil
	}
}

// WithRegistryLogger sets a custom logger.
// Default is slog.Default().
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger.With("component", "registry")
		return nil
	}
}

// NewRegistry creates a content registry.
func NewRegistry(repository storage.ContentRepository, provider ai.EmbeddingProvider, opts ...RegistryOption) (*Registry, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if provider == nil {
		return nil, ErrProviderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	r := &Registry{
		repository: repository,
		embedder:   provider.Embedder(),
		model:      provider.Model(),
		chunker:    chunker.New(),
		strategy:   chunker.StrategyRecursive,
		embedPool:  pool,
		logger:     slog.Default().With("component", "registry"),
	}

	for _, opt := range opts {
		if optErr := opt(r); optErr != nil {
			r.Release()
			return nil, optErr
		}
	}

	return r, nil
}

// Release releases the embedding worker pool.
// The registry should not be used after calling Release.
func (r *Registry) Release() {
	if r.embedPool != nil {
		r.embedPool.Release()
	}
}

// Ingest processes a single item: normalizes its text, resolves identity,
// chunks, embeds, and upserts the record with its complete chunk set. A
// repeat ingest of the same identity replaces the previous record and chunks.
//
// A failed summary embedding degrades the record rather than failing the
// ingest; a chunk whose embedding fails is dropped from the stored set.
// Indexed is true only when at least one chunk was stored.
func (r *Registry) Ingest(ctx context.Context, req IngestRequest) (*core.ContentRecord, error) {
	text := core.NormalizeText(req.Text)

	record := &core.ContentRecord{
		Source:      req.Source,
		URL:         req.URL,
		BaseURL:     req.BaseURL,
		Title:       req.Title,
		Text:        text,
		Snippet:     core.Snippet(text),
		ContentHash: core.HashContent(text),
		WordCount:   core.WordCount(text),
		ImagesCount: req.ImagesCount,
		EmbedModel:  r.model,
		CrawledAt:   req.CrawledAt,
		Metadata:    req.Metadata,
	}

	if req.Source != core.SourceTypeURL && req.Identifier == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidContent, core.ErrMissingIdentifier)
	}
	record.IdentityKey = core.IdentityKey(req.Source, req.URL, req.Identifier, record.ContentHash)
	record.Id = core.IDFromContent(record.IdentityKey)

	if err := core.ValidateContentRecord(record); err != nil {
		return nil, err
	}

	// Summary embedding is best effort; search runs over chunks
	summaryInput := record.Text
	if record.Title != "" {
		summaryInput = record.Title + "\n\n" + record.Text
	}
	if vector, err := r.embedder.EmbedText(ctx, summaryInput); err != nil {
		r.logger.Warn("summary embedding failed", "identity", record.IdentityKey, "err", err)
	} else {
		record.Vector = vector
	}

	chunks := r.chunker.Chunk(record.Text, r.strategy)
	for i := range chunks {
		chunks[i].ContentId = record.Id
	}
	chunks = r.embedChunks(ctx, chunks)
	record.Indexed = len(chunks) > 0

	// A cancelled or expired context means the embed failures above were
	// aborts, not degradation. Stop before touching committed state.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Serialize writers on the same identity
	lock := &r.locks[record.Id%lockStripes]
	lock.Lock()
	defer lock.Unlock()

	if err := r.repository.Upsert(ctx, record, chunks); err != nil {
		return nil, err
	}

	r.modelOnce.Do(func() {
		if err := r.repository.SetEmbeddingModel(ctx, r.model); err != nil {
			r.logger.Warn("failed to record embedding model", "err", err)
		}
	})

	r.logger.Info("ingested content",
		"identity", record.IdentityKey,
		"source", record.Source.String(),
		"chunks", len(chunks),
		"indexed", record.Indexed)

	return record, nil
}

// embedChunks generates embeddings for chunks concurrently and returns the
// chunks that embedded successfully, reindexed contiguously from zero. A
// chunk whose embedding fails is dropped; its start/end offsets still map
// into the parent text for the survivors.
func (r *Registry) embedChunks(ctx context.Context, chunks []core.Chunk) []core.Chunk {
	if len(chunks) == 0 {
		return chunks
	}

	var wg sync.WaitGroup
	for i := range chunks {
		i := i
		wg.Add(1)
		task := func() {
			defer wg.Done()
			vector, err := r.embedder.EmbedText(ctx, chunks[i].Text)
			if err != nil {
				r.logger.Warn("chunk embedding failed", "chunk", chunks[i].Index, "err", err)
				return
			}
			chunks[i].Vector = vector
		}
		if err := r.embedPool.Submit(task); err != nil {
			// Pool unavailable, run inline
			task()
		}
	}
	wg.Wait()

	kept := chunks[:0]
	for i := range chunks {
		if len(chunks[i].Vector) > 0 {
			chunks[i].Index = len(kept)
			kept = append(kept, chunks[i])
		}
	}
	return kept
}

// Get retrieves a content record by ID.
func (r *Registry) Get(ctx context.Context, id core.ID) (*core.ContentRecord, error) {
	return r.repository.Get(ctx, id)
}

// GetByIdentity retrieves a content record by identity key.
func (r *Registry) GetByIdentity(ctx context.Context, identityKey string) (*core.ContentRecord, error) {
	return r.repository.GetByIdentity(ctx, identityKey)
}

// Delete removes a record and its chunks.
func (r *Registry) Delete(ctx context.Context, id core.ID) error {
	return r.repository.Delete(ctx, id)
}

// DeleteByBaseURL removes all records under a base URL and returns how many
// were removed.
func (r *Registry) DeleteByBaseURL(ctx context.Context, baseURL string) (int, error) {
	return r.repository.DeleteByBaseURL(ctx, baseURL)
}
