package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) storage.ContentRepository {
	t.Helper()
	repo, err := NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testRecord(identityKey string) *core.ContentRecord {
	return &core.ContentRecord{
		Id:          core.IDFromContent(identityKey),
		IdentityKey: identityKey,
		Source:      core.SourceTypeURL,
		URL:         identityKey,
		BaseURL:     "https://example.com",
		Title:       "Test Document",
		Text:        "some normalized text for the document",
		Snippet:     "some normalized text",
		ContentHash: core.HashContent("some normalized text for the document"),
		WordCount:   6,
		Indexed:     true,
	}
}

func testChunks(id core.ID, vectors ...[]float32) []core.Chunk {
	chunks := make([]core.Chunk, len(vectors))
	for i, v := range vectors {
		chunks[i] = core.Chunk{
			ContentId:  id,
			Index:      i,
			StartChar:  i * 10,
			EndChar:    i*10 + 10,
			TokenCount: 3,
			Text:       "chunk text",
			Vector:     v,
		}
	}
	return chunks
}

func TestUpsertAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	record := testRecord("https://example.com/a")
	chunks := testChunks(record.Id, []float32{1, 0}, []float32{0, 1})

	require.NoError(t, repo.Upsert(ctx, record, chunks))
	assert.False(t, record.InsertedAt.IsZero())
	assert.Equal(t, 2, record.ChunkCount)

	got, err := repo.Get(ctx, record.Id)
	require.NoError(t, err)
	assert.Equal(t, record.IdentityKey, got.IdentityKey)
	assert.Equal(t, record.Title, got.Title)
	assert.Equal(t, 2, got.ChunkCount)

	stored, err := repo.GetChunks(ctx, record.Id)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, 0, stored[0].Index)
	assert.Equal(t, 1, stored[1].Index)
}

func TestGet_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Get(context.Background(), core.ID(12345))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetByIdentity(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	record := testRecord("https://example.com/page")
	require.NoError(t, repo.Upsert(ctx, record, nil))

	got, err := repo.GetByIdentity(ctx, "https://example.com/page")
	require.NoError(t, err)
	assert.Equal(t, record.Id, got.Id)

	_, err = repo.GetByIdentity(ctx, "https://example.com/missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpsert_ReplacesChunkSet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	record := testRecord("https://example.com/shrink")
	first := testChunks(record.Id, []float32{1, 0}, []float32{0, 1}, []float32{1, 1})
	require.NoError(t, repo.Upsert(ctx, record, first))

	// Re-ingest with fewer chunks; the old set must not survive
	second := testChunks(record.Id, []float32{0.5, 0.5})
	require.NoError(t, repo.Upsert(ctx, record, second))

	stored, err := repo.GetChunks(ctx, record.Id)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 0, stored[0].Index)

	got, err := repo.Get(ctx, record.Id)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ChunkCount)
}

func TestUpsert_PreservesInsertedAt(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	record := testRecord("https://example.com/times")
	require.NoError(t, repo.Upsert(ctx, record, nil))
	firstInserted := record.InsertedAt

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, repo.Upsert(ctx, record, nil))

	got, err := repo.Get(ctx, record.Id)
	require.NoError(t, err)
	assert.True(t, got.InsertedAt.Equal(firstInserted))
	assert.True(t, got.UpdatedAt.After(firstInserted))
}

func TestSearchChunks_Ordering(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	record := testRecord("https://example.com/search")
	chunks := testChunks(record.Id,
		[]float32{1, 0},     // exact match for query
		[]float32{0.7, 0.7}, // partial match
		[]float32{0, 1},     // orthogonal
	)
	require.NoError(t, repo.Upsert(ctx, record, chunks))

	results, err := repo.SearchChunks(ctx, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 0, results[0].Chunk.Index)
	assert.InDelta(t, 0.0, results[0].Distance, 1e-5)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i].Distance, results[i-1].Distance)
	}
	assert.Equal(t, record.Id, results[0].Record.Id)
}

func TestSearchChunks_Limit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	record := testRecord("https://example.com/limit")
	chunks := testChunks(record.Id, []float32{1, 0}, []float32{0.9, 0.1}, []float32{0.8, 0.2})
	require.NoError(t, repo.Upsert(ctx, record, chunks))

	results, err := repo.SearchChunks(ctx, []float32{1, 0}, 2, nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearchChunks_BaseURLFilter(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := testRecord("https://a.com/page")
	a.BaseURL = "https://a.com"
	require.NoError(t, repo.Upsert(ctx, a, testChunks(a.Id, []float32{1, 0})))

	b := testRecord("https://b.com/page")
	b.BaseURL = "https://b.com"
	require.NoError(t, repo.Upsert(ctx, b, testChunks(b.Id, []float32{1, 0})))

	results, err := repo.SearchChunks(ctx, []float32{1, 0}, 10, &storage.SearchFilter{BaseURL: "https://a.com"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, a.Id, results[0].Record.Id)
}

func TestSearchChunks_SkipsUnindexed(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	record := testRecord("https://example.com/unindexed")
	record.Indexed = false
	require.NoError(t, repo.Upsert(ctx, record, testChunks(record.Id, []float32{1, 0})))

	results, err := repo.SearchChunks(ctx, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchChunks_InvalidQuery(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.SearchChunks(context.Background(), nil, 10, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	_, err = repo.SearchChunks(context.Background(), []float32{1, 0}, 0, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	record := testRecord("https://example.com/delete")
	require.NoError(t, repo.Upsert(ctx, record, testChunks(record.Id, []float32{1, 0})))

	require.NoError(t, repo.Delete(ctx, record.Id))

	_, err := repo.Get(ctx, record.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	chunks, err := repo.GetChunks(ctx, record.Id)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	assert.ErrorIs(t, repo.Delete(ctx, record.Id), storage.ErrNotFound)
}

func TestDeleteByBaseURL(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, url := range []string{"https://site.com/a", "https://site.com/b"} {
		record := testRecord(url)
		record.BaseURL = "https://site.com"
		require.NoError(t, repo.Upsert(ctx, record, testChunks(record.Id, []float32{1, 0})))
	}
	other := testRecord("https://other.com/a")
	other.BaseURL = "https://other.com"
	require.NoError(t, repo.Upsert(ctx, other, nil))

	count, err := repo.DeleteByBaseURL(ctx, "https://site.com")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDocuments)
	assert.Equal(t, 0, stats.TotalChunks)

	// Unknown base URL is not an error
	count, err = repo.DeleteByBaseURL(ctx, "https://missing.com")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestStats(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalDocuments)
	assert.Equal(t, 0, stats.TotalChunks)
	assert.Empty(t, stats.EmbeddingModel)

	record := testRecord("https://example.com/stats")
	require.NoError(t, repo.Upsert(ctx, record, testChunks(record.Id, []float32{1, 0}, []float32{0, 1})))
	require.NoError(t, repo.SetEmbeddingModel(ctx, "embeddinggemma"))

	stats, err = repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDocuments)
	assert.Equal(t, 2, stats.TotalChunks)
	assert.Equal(t, "embeddinggemma", stats.EmbeddingModel)
}

func TestEmbeddingModel(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	model, err := repo.GetEmbeddingModel(ctx)
	require.NoError(t, err)
	assert.Empty(t, model)

	require.NoError(t, repo.SetEmbeddingModel(ctx, "text-embedding-3-small"))

	model, err = repo.GetEmbeddingModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", model)
}

func TestForEachRecord(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	urls := []string{"https://example.com/1", "https://example.com/2", "https://example.com/3"}
	for _, url := range urls {
		require.NoError(t, repo.Upsert(ctx, testRecord(url), nil))
	}

	seen := make(map[string]bool)
	err := repo.ForEachRecord(ctx, func(record *core.ContentRecord) error {
		seen[record.IdentityKey] = true
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, seen, 3)
	for _, url := range urls {
		assert.True(t, seen[url])
	}
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-6)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	assert.Equal(t, float32(0), cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}
