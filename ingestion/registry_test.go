package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/poiesic/corpus/ai/mock"
	"github.com/poiesic/corpus/chunker"
	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/storage"
	"github.com/poiesic/corpus/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, storage.ContentRepository, *mock.MockEmbedder) {
	t.Helper()

	repo, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	embedder := mock.NewMockEmbedder()
	provider := mock.NewMockProviderWithEmbedder(embedder)

	registry, err := NewRegistry(repo, provider)
	require.NoError(t, err)
	t.Cleanup(registry.Release)

	return registry, repo, embedder
}

func TestIngest_Text(t *testing.T) {
	registry, repo, _ := newTestRegistry(t)
	ctx := context.Background()

	req := RequestFromText("note-1", "A Note", "This is a short note about Go storage engines.")
	record, err := registry.Ingest(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, core.SourceTypeText, record.Source)
	assert.NotZero(t, record.Id)
	assert.True(t, record.Indexed)
	assert.NotEmpty(t, record.Vector)
	assert.Equal(t, "mock-embedder", record.EmbedModel)
	assert.Equal(t, "note-1", record.Metadata[core.MetaIdentifier])

	stored, err := repo.Get(ctx, record.Id)
	require.NoError(t, err)
	assert.Equal(t, record.IdentityKey, stored.IdentityKey)

	chunks, err := repo.GetChunks(ctx, record.Id)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.NotEmpty(t, chunk.Vector)
		assert.Equal(t, record.Id, chunk.ContentId)
	}

	model, err := repo.GetEmbeddingModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, "mock-embedder", model)
}

func TestIngest_Idempotent(t *testing.T) {
	registry, repo, _ := newTestRegistry(t)
	ctx := context.Background()

	req := RequestFromText("note-1", "A Note", "Identical content ingested twice.")

	first, err := registry.Ingest(ctx, req)
	require.NoError(t, err)

	second, err := registry.Ingest(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.Id, second.Id)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDocuments)
}

func TestIngest_IdentityScoping(t *testing.T) {
	registry, repo, _ := newTestRegistry(t)
	ctx := context.Background()

	// Same text under two identifiers yields two distinct records
	a, err := registry.Ingest(ctx, RequestFromText("note-a", "A", "shared text body"))
	require.NoError(t, err)
	b, err := registry.Ingest(ctx, RequestFromText("note-b", "B", "shared text body"))
	require.NoError(t, err)
	assert.NotEqual(t, a.Id, b.Id)

	// File and text namespaces are distinct even for the same identifier
	c, err := registry.Ingest(ctx, IngestRequest{
		Source:     core.SourceTypeFile,
		Identifier: "note-a",
		Text:       "shared text body",
	})
	require.NoError(t, err)
	assert.NotEqual(t, a.Id, c.Id)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalDocuments)
}

func TestIngest_URLReplacesContent(t *testing.T) {
	registry, repo, _ := newTestRegistry(t)
	ctx := context.Background()

	page := CrawledPage{
		URL:            "https://example.com/page",
		BaseURL:        "https://example.com",
		Title:          "Page",
		TextContent:    strings.Repeat("first version of the page text. ", 50),
		CrawlTimestamp: "2026-08-29T10:00:00Z",
	}
	first, err := registry.Ingest(ctx, RequestFromCrawledPage(page))
	require.NoError(t, err)
	assert.False(t, first.CrawledAt.IsZero())
	firstChunks, err := repo.GetChunks(ctx, first.Id)
	require.NoError(t, err)

	// Re-crawl with much shorter content mutates the same record
	page.TextContent = "second version, much shorter."
	second, err := registry.Ingest(ctx, RequestFromCrawledPage(page))
	require.NoError(t, err)
	assert.Equal(t, first.Id, second.Id)

	secondChunks, err := repo.GetChunks(ctx, second.Id)
	require.NoError(t, err)
	assert.Less(t, len(secondChunks), len(firstChunks))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDocuments)
	assert.Equal(t, len(secondChunks), stats.TotalChunks)
}

func TestIngest_InvalidInput(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	ctx := context.Background()

	// Empty text
	_, err := registry.Ingest(ctx, RequestFromText("note", "Title", "   \t  "))
	assert.ErrorIs(t, err, core.ErrInvalidContent)

	// Missing identifier for non-URL source
	_, err = registry.Ingest(ctx, IngestRequest{
		Source: core.SourceTypeText,
		Text:   "text without identifier",
	})
	assert.ErrorIs(t, err, core.ErrMissingIdentifier)

	// URL source without URL
	_, err = registry.Ingest(ctx, IngestRequest{
		Source: core.SourceTypeURL,
		Text:   "page text",
	})
	assert.ErrorIs(t, err, core.ErrMissingURL)
}

func TestIngest_SummaryEmbedFailureIsNonFatal(t *testing.T) {
	registry, repo, embedder := newTestRegistry(t)
	ctx := context.Background()

	// Long enough to split into several chunks, so the full text is the
	// only input exceeding the failure threshold below
	fullText := strings.Repeat("The summary embedding fails but chunk embeddings succeed. ", 80)
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if len(text) > 3000 {
			return nil, errors.New("service unavailable")
		}
		return []float32{0.1, 0.2}, nil
	}

	record, err := registry.Ingest(ctx, RequestFromText("note", "Title", fullText))
	require.NoError(t, err)
	assert.Empty(t, record.Vector)
	assert.True(t, record.Indexed)

	chunks, err := repo.GetChunks(ctx, record.Id)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.NotEmpty(t, chunks[0].Vector)
}

func TestIngest_CancelledContextPreservesCommittedState(t *testing.T) {
	registry, repo, _ := newTestRegistry(t)
	ctx := context.Background()

	page := CrawledPage{
		URL:         "https://example.com/page",
		BaseURL:     "https://example.com",
		Title:       "Page",
		TextContent: "the committed version of the page text.",
	}
	first, err := registry.Ingest(ctx, RequestFromCrawledPage(page))
	require.NoError(t, err)
	committedChunks, err := repo.GetChunks(ctx, first.Id)
	require.NoError(t, err)
	require.NotEmpty(t, committedChunks)

	// A re-crawl of the same URL under a cancelled context must abort,
	// not overwrite the committed record with an empty chunk set
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	page.TextContent = "a different version that must not be stored."
	_, err = registry.Ingest(cancelled, RequestFromCrawledPage(page))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	record, err := repo.Get(ctx, first.Id)
	require.NoError(t, err)
	assert.Equal(t, first.Text, record.Text)
	assert.True(t, record.Indexed)

	chunks, err := repo.GetChunks(ctx, first.Id)
	require.NoError(t, err)
	assert.Equal(t, len(committedChunks), len(chunks))
}

func TestIngest_SameIdentityConcurrentWriters(t *testing.T) {
	registry, repo, _ := newTestRegistry(t)
	ctx := context.Background()

	// Every goroutine re-crawls the same URL with its own text, so all
	// writers race on one identity
	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			page := CrawledPage{
				URL:         "https://example.com/contended",
				BaseURL:     "https://example.com",
				Title:       "Contended",
				TextContent: strings.Repeat(fmt.Sprintf("version %d of the page text. ", i), 40),
			}
			_, err := registry.Ingest(ctx, RequestFromCrawledPage(page))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDocuments)

	// Whichever writer won, its record and chunk set must be consistent:
	// the chunk count matches and every chunk maps back into the text
	record, err := repo.GetByIdentity(ctx, "https://example.com/contended")
	require.NoError(t, err)
	chunks, err := repo.GetChunks(ctx, record.Id)
	require.NoError(t, err)
	require.Equal(t, record.ChunkCount, len(chunks))
	assert.Equal(t, len(chunks), stats.TotalChunks)

	runes := []rune(record.Text)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		require.LessOrEqual(t, chunk.EndChar, len(runes))
		assert.Equal(t, string(runes[chunk.StartChar:chunk.EndChar]), chunk.Text)
	}
}

func TestIngest_FailedChunkEmbedIsDropped(t *testing.T) {
	repo, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	embedder := mock.NewMockEmbedder()
	provider := mock.NewMockProviderWithEmbedder(embedder)

	// Small chunks with no overlap so each paragraph becomes one chunk
	registry, err := NewRegistry(repo, provider,
		WithChunker(chunker.New(chunker.WithChunkSize(15), chunker.WithOverlap(0))))
	require.NoError(t, err)
	t.Cleanup(registry.Release)

	ctx := context.Background()
	text := "alpha section with some filler words here.\n\n" +
		"beta section with some filler words here.\n\n" +
		"gamma section with some filler words here."
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if strings.Contains(text, "beta") {
			return nil, errors.New("service unavailable")
		}
		return []float32{0.1, 0.2}, nil
	}

	record, err := registry.Ingest(ctx, RequestFromText("note", "Title", text))
	require.NoError(t, err)
	assert.True(t, record.Indexed)
	assert.Equal(t, 2, record.ChunkCount)

	chunks, err := repo.GetChunks(ctx, record.Id)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.NotEmpty(t, chunk.Vector)
		assert.NotContains(t, chunk.Text, "beta")
	}
}

func TestIngest_AllEmbedsFail(t *testing.T) {
	registry, repo, embedder := newTestRegistry(t)
	ctx := context.Background()

	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("service down")
	}

	record, err := registry.Ingest(ctx, RequestFromText("note", "Title", "text that cannot be embedded"))
	require.NoError(t, err)
	assert.False(t, record.Indexed)
	assert.Empty(t, record.Vector)
	assert.Zero(t, record.ChunkCount)

	// Record is stored and retrievable, just without any chunks
	chunks, err := repo.GetChunks(ctx, record.Id)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	stored, err := repo.GetByIdentity(ctx, record.IdentityKey)
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestRegistry_RequiredDependencies(t *testing.T) {
	repo, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	defer repo.Close()

	_, err = NewRegistry(nil, mock.NewMockProvider())
	assert.ErrorIs(t, err, ErrRepositoryRequired)

	_, err = NewRegistry(repo, nil)
	assert.ErrorIs(t, err, ErrProviderRequired)
}
