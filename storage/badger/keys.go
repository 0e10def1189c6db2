package badger

import (
	"encoding/binary"

	"github.com/poiesic/corpus/core"
)

// Key prefixes for different data types
const (
	contentRecordPrefix = "conrec"
	contentChunkPrefix  = "conchk"
	contentBasePrefix   = "conbas"
	metaModelKey        = "conmeta:model"
)

// makeContentRecordKey generates a key for a content record by ID.
// The ID is written in BigEndian order so iteration over the record
// prefix visits records in ID order.
func makeContentRecordKey(id core.ID) []byte {
	prefix := contentRecordPrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeChunkKey generates a composite key for a chunk.
// Format: prefix:contentID:index
func makeChunkKey(contentID core.ID, index int) []byte {
	prefix := contentChunkPrefix + ":"
	buf := make([]byte, len(prefix)+12)
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(contentID))
	offset += 8
	binary.BigEndian.PutUint32(buf[offset:], uint32(index))
	return buf
}

// makeChunkPrefix generates the key prefix covering all chunks of a record.
func makeChunkPrefix(contentID core.ID) []byte {
	prefix := contentChunkPrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(contentID))
	return buf
}

// makeBaseURLKey generates a composite key for the base URL index.
// Format: prefix:baseURL\x00recordID. The NUL terminator cannot appear in
// a URL, so one base URL's entries never prefix-match another's.
func makeBaseURLKey(baseURL string, id core.ID) []byte {
	prefix := contentBasePrefix + ":" + baseURL + "\x00"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeBaseURLPrefix generates the key prefix covering all index entries
// for a base URL.
func makeBaseURLPrefix(baseURL string) []byte {
	return []byte(contentBasePrefix + ":" + baseURL + "\x00")
}
