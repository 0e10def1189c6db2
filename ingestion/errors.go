package ingestion

import "errors"

var (
	// ErrRepositoryRequired is returned when a content repository is not provided.
	ErrRepositoryRequired = errors.New("content repository required")

	// ErrProviderRequired is returned when an embedding provider is not provided.
	ErrProviderRequired = errors.New("embedding provider required")

	// ErrEmptyBatch is returned when a batch ingest is called with no items.
	ErrEmptyBatch = errors.New("batch contains no items")
)
