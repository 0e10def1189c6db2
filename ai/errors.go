package ai

import "errors"

var (
	// ErrUnavailable indicates the embedding service cannot be reached.
	ErrUnavailable = errors.New("embedding service unavailable")

	// ErrEmptyInput indicates an attempt to embed empty text.
	ErrEmptyInput = errors.New("cannot embed empty text")
)
