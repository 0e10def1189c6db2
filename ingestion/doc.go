// Package ingestion provides identity resolution and ingest orchestration
// for content records.
//
// The Registry type handles single items: it normalizes text, resolves the
// item's identity key, chunks the text, generates embeddings, and stores the
// record with its complete chunk set in one transaction. Re-ingesting the
// same identity replaces the previous record and chunks.
//
// The Pipeline type runs batches over a Registry using a worker pool. Items
// are isolated: a failure in one item is reported in the batch result and
// never aborts the others.
//
// Embedding failures degrade rather than fail an ingest: a record whose
// summary embedding failed is stored without a vector, and a chunk whose
// embedding failed is stored unembedded. Only chunks with vectors are
// reachable through similarity search.
package ingestion
