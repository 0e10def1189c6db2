package badger

import (
	"context"
	"math"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/storage"
)

// ContentRepository implements storage.ContentRepository for BadgerDB.
type ContentRepository struct {
	backend *Backend
}

var _ storage.ContentRepository = (*ContentRepository)(nil)

// NewContentRepository opens a BadgerDB database at path and returns a
// content repository backed by it. Closing the repository closes the
// database.
func NewContentRepository(path string) (storage.ContentRepository, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	return newContentRepository(backend), nil
}

// newContentRepository wraps an already-open backend.
func newContentRepository(backend *Backend) *ContentRepository {
	return &ContentRepository{backend: backend}
}

// Close closes the underlying database.
func (r *ContentRepository) Close() error {
	return r.backend.Close()
}

// Upsert stores a record and its chunks in one transaction. The record's
// previous chunk set is removed first so no stale chunks survive a
// re-ingest with fewer chunks.
func (r *ContentRepository) Upsert(ctx context.Context, record *core.ContentRecord, chunks []core.Chunk) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeContentRecordKey(record.Id)

		old, err := readContentRecord(tx, key)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if old != nil {
			record.InsertedAt = old.InsertedAt
		} else {
			record.InsertedAt = now
		}
		record.UpdatedAt = now
		record.ChunkCount = len(chunks)

		// Invalidate the previous chunk set before writing the new one
		if err := deleteChunks(tx, record.Id); err != nil {
			return err
		}

		// Maintain the base URL index
		if old != nil && old.BaseURL != "" && old.BaseURL != record.BaseURL {
			if err := tx.Delete(makeBaseURLKey(old.BaseURL, record.Id)); err != nil {
				return err
			}
		}
		if record.BaseURL != "" {
			if err := tx.Set(makeBaseURLKey(record.BaseURL, record.Id), storage.MarshalID(record.Id)); err != nil {
				return err
			}
		}

		if err := tx.Set(key, storage.MarshalContentRecord(record)); err != nil {
			return err
		}

		for i := range chunks {
			chunks[i].ContentId = record.Id
			chunkKey := makeChunkKey(record.Id, chunks[i].Index)
			if err := tx.Set(chunkKey, storage.MarshalChunk(&chunks[i])); err != nil {
				return err
			}
		}

		return tx.Commit()
	}, true)
}

// Get retrieves a content record by ID.
func (r *ContentRepository) Get(ctx context.Context, id core.ID) (*core.ContentRecord, error) {
	var result *core.ContentRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readContentRecord(tx, makeContentRecordKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetByIdentity retrieves a content record by its identity key.
// Record IDs are derived from identity keys, so no secondary index is needed.
func (r *ContentRepository) GetByIdentity(ctx context.Context, identityKey string) (*core.ContentRecord, error) {
	return r.Get(ctx, core.IDFromContent(identityKey))
}

// GetChunks retrieves all chunks for a record, ordered by chunk index.
func (r *ContentRepository) GetChunks(ctx context.Context, contentID core.ID) ([]core.Chunk, error) {
	var chunks []core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeChunkPrefix(contentID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var chunk *core.Chunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			chunks = append(chunks, *chunk)
		}
		return nil
	}, false)
	return chunks, err
}

// SearchChunks scans all stored chunks and returns the limit nearest to the
// query vector by cosine distance. Results are joined with their parent
// records; parent lookups are cached per call since records typically own
// many chunks.
func (r *ContentRepository) SearchChunks(ctx context.Context, vector []float32, limit int, filter *storage.SearchFilter) ([]*core.SearchResult, error) {
	if len(vector) == 0 || limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	var results []*core.SearchResult
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		records := make(map[core.ID]*core.ContentRecord)

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(contentChunkPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var chunk *core.Chunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}

			// Chunks without embeddings never match
			if len(chunk.Vector) == 0 {
				continue
			}

			record, ok := records[chunk.ContentId]
			if !ok {
				record, err = readContentRecord(tx, makeContentRecordKey(chunk.ContentId))
				if err != nil {
					return err
				}
				records[chunk.ContentId] = record
			}
			if record == nil || !record.Indexed {
				continue
			}
			if filter != nil && filter.BaseURL != "" && record.BaseURL != filter.BaseURL {
				continue
			}

			score := cosineSimilarity(vector, chunk.Vector)
			results = append(results, &core.SearchResult{
				Record:   record,
				Chunk:    chunk,
				Score:    score,
				Distance: 1 - score,
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Ascending distance, ties broken by (record ID, chunk index) so
	// ordering is deterministic across runs
	slices.SortFunc(results, func(a, b *core.SearchResult) int {
		if a.Distance != b.Distance {
			if a.Distance < b.Distance {
				return -1
			}
			return 1
		}
		if a.Record.Id != b.Record.Id {
			if a.Record.Id < b.Record.Id {
				return -1
			}
			return 1
		}
		return a.Chunk.Index - b.Chunk.Index
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Delete removes a record and all of its chunks, chunks first.
func (r *ContentRepository) Delete(ctx context.Context, id core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeContentRecordKey(id)
		record, err := readContentRecord(tx, key)
		if err != nil {
			return err
		}
		if record == nil {
			return storage.ErrNotFound
		}

		if err := deleteChunks(tx, id); err != nil {
			return err
		}
		if record.BaseURL != "" {
			if err := tx.Delete(makeBaseURLKey(record.BaseURL, id)); err != nil {
				return err
			}
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// DeleteByBaseURL removes every record indexed under baseURL and returns the
// number of records removed. Deleting an unknown base URL is not an error.
func (r *ContentRepository) DeleteByBaseURL(ctx context.Context, baseURL string) (int, error) {
	if baseURL == "" {
		return 0, storage.ErrInvalidQuery
	}

	// Collect IDs first so the delete pass doesn't mutate under the iterator
	var ids []core.ID
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeBaseURLPrefix(baseURL)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var id core.ID
			err := iter.Item().Value(func(val []byte) error {
				var err error
				id, err = storage.UnmarshalID(val)
				return err
			})
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	}, false)
	if err != nil {
		return 0, err
	}

	err = r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			if err := deleteChunks(tx, id); err != nil {
				return err
			}
			if err := tx.Delete(makeContentRecordKey(id)); err != nil {
				return err
			}
			if err := tx.Delete(makeBaseURLKey(baseURL, id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Stats counts records and chunks and reports the recorded embedding model.
func (r *ContentRepository) Stats(ctx context.Context) (*storage.Stats, error) {
	stats := &storage.Stats{}
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		stats.TotalDocuments = countPrefix(tx, []byte(contentRecordPrefix+":"))
		stats.TotalChunks = countPrefix(tx, []byte(contentChunkPrefix+":"))

		model, err := readMetaModel(tx)
		if err != nil {
			return err
		}
		stats.EmbeddingModel = model
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// GetEmbeddingModel returns the recorded embedding model, or empty.
func (r *ContentRepository) GetEmbeddingModel(ctx context.Context) (string, error) {
	var model string
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		model, err = readMetaModel(tx)
		return err
	}, false)
	return model, err
}

// SetEmbeddingModel records the embedding model for stored vectors.
func (r *ContentRepository) SetEmbeddingModel(ctx context.Context, model string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set([]byte(metaModelKey), []byte(model)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// ForEachRecord visits every record in ID order.
func (r *ContentRepository) ForEachRecord(ctx context.Context, fn func(record *core.ContentRecord) error) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(contentRecordPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var record *core.ContentRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalContentRecord(val)
				return err
			})
			if err != nil {
				return err
			}
			if err := fn(record); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// Helper functions

// readContentRecord reads a record from the transaction.
// Returns nil without error when the key doesn't exist.
func readContentRecord(tx *badger.Txn, key []byte) (*core.ContentRecord, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var record *core.ContentRecord
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		record, unmarshalErr = storage.UnmarshalContentRecord(val)
		return unmarshalErr
	})
	return record, err
}

// deleteChunks removes every chunk belonging to a record.
func deleteChunks(tx *badger.Txn, contentID core.ID) error {
	prefix := makeChunkPrefix(contentID)

	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)

	var keys [][]byte
	for iter.Rewind(); iter.Valid(); iter.Next() {
		keys = append(keys, iter.Item().KeyCopy(nil))
	}
	iter.Close()

	for _, key := range keys {
		if err := tx.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// readMetaModel reads the stored embedding model identifier.
func readMetaModel(tx *badger.Txn) (string, error) {
	item, err := tx.Get([]byte(metaModelKey))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return "", nil
		}
		return "", err
	}
	var model string
	err = item.Value(func(val []byte) error {
		model = string(val)
		return nil
	})
	return model, err
}

// countPrefix counts keys under a prefix without reading values.
func countPrefix(tx *badger.Txn, prefix []byte) int {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	defer iter.Close()

	count := 0
	for iter.Rewind(); iter.Valid(); iter.Next() {
		count++
	}
	return count
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Returns 0 when either vector has zero magnitude.
func cosineSimilarity(a, b []float32) float32 {
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < minLen; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
