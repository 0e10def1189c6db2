package reembed

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/poiesic/corpus/ai/mock"
	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/storage"
	"github.com/poiesic/corpus/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedDocument(t *testing.T, repo storage.ContentRepository, identity string, chunkCount int) *core.ContentRecord {
	t.Helper()
	record := &core.ContentRecord{
		Id:          core.IDFromContent(identity),
		IdentityKey: identity,
		Source:      core.SourceTypeURL,
		URL:         identity,
		Text:        "document body text",
		Vector:      []float32{9, 9},
		EmbedModel:  "old-model",
		Indexed:     true,
	}
	chunks := make([]core.Chunk, chunkCount)
	for i := range chunks {
		chunks[i] = core.Chunk{
			ContentId: record.Id,
			Index:     i,
			StartChar: i * 4,
			EndChar:   i*4 + 4,
			Text:      "chunk body",
			Vector:    []float32{9, 9},
		}
	}
	require.NoError(t, repo.Upsert(context.Background(), record, chunks))
	return record
}

func TestReembedder_Run(t *testing.T) {
	repo, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	defer repo.Close()

	seedDocument(t, repo, "https://example.com/a", 2)
	seedDocument(t, repo, "https://example.com/b", 3)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 2, 3}, nil
	}
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		vectors := make([][]float32, len(texts))
		for i := range vectors {
			vectors[i] = []float32{1, 2, 3}
		}
		return vectors, nil
	}

	var out bytes.Buffer
	reembedder := NewReembedder(repo, mock.NewMockProviderWithEmbedder(embedder), nil, &out)
	require.NoError(t, reembedder.Run(context.Background()))

	ctx := context.Background()
	err = repo.ForEachRecord(ctx, func(record *core.ContentRecord) error {
		assert.Equal(t, "mock-embedder", record.EmbedModel)
		assert.Equal(t, []float32{1, 2, 3}, record.Vector)

		chunks, err := repo.GetChunks(ctx, record.Id)
		require.NoError(t, err)
		for _, chunk := range chunks {
			assert.Equal(t, []float32{1, 2, 3}, chunk.Vector)
		}
		return nil
	})
	require.NoError(t, err)

	model, err := repo.GetEmbeddingModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, "mock-embedder", model)

	assert.Contains(t, out.String(), "Reembedding complete")
}

func TestReembedder_EmptyDatabase(t *testing.T) {
	repo, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	defer repo.Close()

	var out bytes.Buffer
	reembedder := NewReembedder(repo, mock.NewMockProvider(), nil, &out)
	require.NoError(t, reembedder.Run(context.Background()))
	assert.Contains(t, out.String(), "No documents")
}

func TestReembedder_AbortsAfterRetries(t *testing.T) {
	repo, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	defer repo.Close()

	seedDocument(t, repo, "https://example.com/a", 1)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("service down")
	}

	var out bytes.Buffer
	config := &Config{ReportInterval: 1, MaxRetries: 2, RetryDelay: 0}
	reembedder := NewReembedder(repo, mock.NewMockProviderWithEmbedder(embedder), config, &out)

	err = reembedder.Run(context.Background())
	require.Error(t, err)

	// The old vectors survive a failed run
	record, err := repo.GetByIdentity(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, "old-model", record.EmbedModel)
}
