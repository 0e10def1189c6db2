package core

import (
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is derived deterministically from an entity's identity key.
type ID uint64

// IDFromContent generates a deterministic ID from text using BLAKE2b hashing.
// This ensures that identical identity keys produce identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// HashContent computes the BLAKE2b-256 digest of text as a hex string.
// Used as the content hash for deduplication and for file/text identity.
func HashContent(text string) string {
	h, _ := blake2b.New(32, nil)
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// SourceType identifies where an ingested item came from.
type SourceType int

const (
	// SourceTypeURL represents a crawled web page.
	SourceTypeURL SourceType = iota + 1
	// SourceTypeFile represents an uploaded file whose text has been extracted.
	SourceTypeFile
	// SourceTypeText represents raw text submitted directly.
	SourceTypeText
)

// String returns the wire name of the source type.
func (s SourceType) String() string {
	switch s {
	case SourceTypeURL:
		return "url"
	case SourceTypeFile:
		return "file"
	case SourceTypeText:
		return "text"
	default:
		return "unknown"
	}
}

// IdentityKey computes the identity key for a source.
//
// Identity differs by source on purpose: for url sources the URL itself is
// globally unique; for file and text sources identity is the pair
// (identifier, content hash), so the same text under two different
// identifiers yields two distinct records.
func IdentityKey(source SourceType, url, identifier, contentHash string) string {
	if source == SourceTypeURL {
		return url
	}
	return source.String() + ":" + identifier + ":" + contentHash
}

// Well-known metadata keys. Unknown keys pass through opaquely.
const (
	// MetaFilename is the original filename of a file source.
	MetaFilename = "filename"
	// MetaFileSize is the size in bytes of the uploaded file.
	MetaFileSize = "file_size"
	// MetaMimeType is the declared MIME type of a file source.
	MetaMimeType = "mime_type"
	// MetaIdentifier is the caller-supplied identifier of a text source.
	MetaIdentifier = "identifier"
	// MetaIngestedAt is the ISO-8601 ingestion timestamp.
	MetaIngestedAt = "ingested_at"
)

// ContentRecord is the parent record for an ingested item. Exactly one record
// exists per identity key at any time; re-ingesting the same identity mutates
// the record in place and regenerates its chunks as a complete set.
type ContentRecord struct {
	Id          ID
	IdentityKey string
	Source      SourceType
	URL         string // empty for non-URL sources
	BaseURL     string // crawl scope, empty for non-URL sources
	Title       string
	Text        string // normalized full text
	Snippet     string // bounded prefix of Text
	ContentHash string
	WordCount   int
	ImagesCount int
	Vector      []float32 // summary embedding, empty when unavailable
	EmbedModel  string
	Indexed     bool // true when at least one chunk with an embedding is stored
	ChunkCount  int
	CrawledAt   time.Time
	InsertedAt  time.Time
	UpdatedAt   time.Time
	Metadata    map[string]string
}

// Chunk is a bounded contiguous span of its parent's normalized text.
// Chunks for a record are always written and deleted as a complete set.
type Chunk struct {
	ContentId  ID
	Index      int // 0-based, contiguous within a record
	StartChar  int // rune offset into the parent's normalized text
	EndChar    int
	TokenCount int
	Text       string
	Vector     []float32
}

// SearchResult pairs a matched chunk with its parent record. It is transient
// output of similarity search and is never persisted.
type SearchResult struct {
	Record   *ContentRecord
	Chunk    *Chunk
	Score    float32 // cosine similarity
	Distance float32 // 1 - Score, the ranking key
}
