// Package reembed provides functionality for reembedding stored documents
// and chunks with new or updated embedding models.
//
// This package supports per-document processing, progress tracking, and
// retry logic with exponential backoff. After a run completes, the store's
// recorded embedding model reflects the new model.
package reembed
