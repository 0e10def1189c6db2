package storage

import (
	"context"

	"github.com/poiesic/corpus/core"
)

// SearchFilter restricts a chunk search to a subset of the corpus.
// The zero value matches everything.
type SearchFilter struct {
	// BaseURL, when non-empty, limits results to content records whose
	// BaseURL matches exactly.
	BaseURL string
}

// Stats summarizes the contents of the store.
type Stats struct {
	// TotalDocuments is the number of content records in the store.
	TotalDocuments int

	// TotalChunks is the number of chunk records across all documents.
	TotalChunks int

	// EmbeddingModel is the model identifier recorded for the stored
	// vectors, or empty if nothing has been ingested yet.
	EmbeddingModel string
}

// ContentRepository provides operations for managing content records and
// their chunks. Implementations must be thread-safe and support concurrent
// access.
type ContentRepository interface {
	// Upsert stores a content record together with its chunks in a single
	// transaction. Any chunks previously stored for the same record ID are
	// removed before the new set is written, so a re-ingest never leaves
	// stale chunks behind. Sets InsertedAt on first write and UpdatedAt on
	// every write.
	Upsert(ctx context.Context, record *core.ContentRecord, chunks []core.Chunk) error

	// Get retrieves a content record by ID.
	// Returns ErrNotFound if the record doesn't exist.
	Get(ctx context.Context, id core.ID) (*core.ContentRecord, error)

	// GetByIdentity retrieves a content record by its identity key.
	// Returns ErrNotFound if no record with that identity exists.
	GetByIdentity(ctx context.Context, identityKey string) (*core.ContentRecord, error)

	// GetChunks retrieves all chunks for a content record, ordered by
	// chunk index. Returns an empty slice if the record has no chunks.
	GetChunks(ctx context.Context, contentID core.ID) ([]core.Chunk, error)

	// SearchChunks finds the chunks nearest to the query vector by cosine
	// distance, up to limit results. Each result carries the chunk and its
	// parent record. Results are ordered by ascending distance; ties break
	// by (record ID, chunk index) so ordering is deterministic.
	// Chunks without vectors and records not yet indexed are skipped.
	SearchChunks(ctx context.Context, vector []float32, limit int, filter *SearchFilter) ([]*core.SearchResult, error)

	// Delete removes a content record and all of its chunks.
	// Chunks are removed before the record so a failure never leaves
	// orphaned chunks. Returns ErrNotFound if the record doesn't exist.
	Delete(ctx context.Context, id core.ID) error

	// DeleteByBaseURL removes all content records sharing a base URL,
	// chunks first, and returns the number of records removed.
	DeleteByBaseURL(ctx context.Context, baseURL string) (int, error)

	// Stats returns document and chunk counts plus the recorded
	// embedding model.
	Stats(ctx context.Context) (*Stats, error)

	// GetEmbeddingModel returns the embedding model identifier recorded
	// for stored vectors, or empty if none has been recorded.
	GetEmbeddingModel(ctx context.Context) (string, error)

	// SetEmbeddingModel records the embedding model identifier for
	// stored vectors.
	SetEmbeddingModel(ctx context.Context, model string) error

	// ForEachRecord iterates over every content record in ID order,
	// calling fn for each. Iteration stops on the first error from fn.
	ForEachRecord(ctx context.Context, fn func(record *core.ContentRecord) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}
