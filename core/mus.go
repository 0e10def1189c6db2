package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// Hand-written MUS serializers for the persisted types. Field order is part
// of the storage format; append new fields at the end only.

// IDMUS is the MUS serializer for ID.
var IDMUS = idMUS{}

type idMUS struct{}

func (idMUS) Marshal(v ID, bs []byte) int {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (idMUS) Unmarshal(bs []byte) (ID, int, error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return ID(v), n, err
}

func (idMUS) Size(v ID) int {
	return varint.Uint64.Size(uint64(v))
}

// timeMUS serializes time as UnixMicro, matching the index key resolution.
type timeMUS struct{}

func (timeMUS) Marshal(v time.Time, bs []byte) int {
	if v.IsZero() {
		return varint.Int64.Marshal(0, bs)
	}
	return varint.Int64.Marshal(v.UnixMicro(), bs)
}

func (timeMUS) Unmarshal(bs []byte) (time.Time, int, error) {
	micros, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return time.Time{}, n, err
	}
	if micros == 0 {
		return time.Time{}, n, nil
	}
	return time.UnixMicro(micros).UTC(), n, nil
}

func (timeMUS) Size(v time.Time) int {
	if v.IsZero() {
		return varint.Int64.Size(0)
	}
	return varint.Int64.Size(v.UnixMicro())
}

// vectorMUS serializes an embedding vector as a length-prefixed float32 slice.
type vectorMUS struct{}

func (vectorMUS) Marshal(v []float32, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, f := range v {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return n
}

func (vectorMUS) Unmarshal(bs []byte) (v []float32, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil || length == 0 {
		return nil, n, err
	}
	v = make([]float32, length)
	for i := 0; i < length; i++ {
		var m int
		v[i], m, err = raw.Float32.Unmarshal(bs[n:])
		n += m
		if err != nil {
			return nil, n, err
		}
	}
	return v, n, nil
}

func (vectorMUS) Size(v []float32) (size int) {
	size = varint.Int.Size(len(v))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return size
}

// stringMapMUS serializes a metadata map as length-prefixed key/value pairs,
// in insertion-independent but deterministic-enough form for storage (ordering
// is not part of equality for metadata).
type stringMapMUS struct{}

func (stringMapMUS) Marshal(v map[string]string, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for key, value := range v {
		n += ord.String.Marshal(key, bs[n:])
		n += ord.String.Marshal(value, bs[n:])
	}
	return n
}

func (stringMapMUS) Unmarshal(bs []byte) (v map[string]string, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil || length == 0 {
		return nil, n, err
	}
	v = make(map[string]string, length)
	for i := 0; i < length; i++ {
		var key, value string
		var m int
		key, m, err = ord.String.Unmarshal(bs[n:])
		n += m
		if err != nil {
			return nil, n, err
		}
		value, m, err = ord.String.Unmarshal(bs[n:])
		n += m
		if err != nil {
			return nil, n, err
		}
		v[key] = value
	}
	return v, n, nil
}

func (stringMapMUS) Size(v map[string]string) (size int) {
	size = varint.Int.Size(len(v))
	for key, value := range v {
		size += ord.String.Size(key)
		size += ord.String.Size(value)
	}
	return size
}

var (
	timeSer   = timeMUS{}
	vectorSer = vectorMUS{}
	mapSer    = stringMapMUS{}
)

// ContentRecordMUS is the MUS serializer for ContentRecord.
var ContentRecordMUS = contentRecordMUS{}

type contentRecordMUS struct{}

func (contentRecordMUS) Marshal(v ContentRecord, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.IdentityKey, bs[n:])
	n += varint.Int.Marshal(int(v.Source), bs[n:])
	n += ord.String.Marshal(v.URL, bs[n:])
	n += ord.String.Marshal(v.BaseURL, bs[n:])
	n += ord.String.Marshal(v.Title, bs[n:])
	n += ord.String.Marshal(v.Text, bs[n:])
	n += ord.String.Marshal(v.Snippet, bs[n:])
	n += ord.String.Marshal(v.ContentHash, bs[n:])
	n += varint.Int.Marshal(v.WordCount, bs[n:])
	n += varint.Int.Marshal(v.ImagesCount, bs[n:])
	n += vectorSer.Marshal(v.Vector, bs[n:])
	n += ord.String.Marshal(v.EmbedModel, bs[n:])
	n += ord.Bool.Marshal(v.Indexed, bs[n:])
	n += varint.Int.Marshal(v.ChunkCount, bs[n:])
	n += timeSer.Marshal(v.CrawledAt, bs[n:])
	n += timeSer.Marshal(v.InsertedAt, bs[n:])
	n += timeSer.Marshal(v.UpdatedAt, bs[n:])
	n += mapSer.Marshal(v.Metadata, bs[n:])
	return n
}

func (contentRecordMUS) Unmarshal(bs []byte) (v ContentRecord, n int, err error) {
	var m int
	if v.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if v.IdentityKey, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	var source int
	if source, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	v.Source = SourceType(source)
	if v.URL, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.BaseURL, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Title, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Text, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Snippet, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.ContentHash, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.WordCount, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.ImagesCount, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Vector, m, err = vectorSer.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.EmbedModel, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Indexed, m, err = ord.Bool.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.ChunkCount, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.CrawledAt, m, err = timeSer.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.InsertedAt, m, err = timeSer.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.UpdatedAt, m, err = timeSer.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Metadata, m, err = mapSer.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	return v, n, nil
}

func (contentRecordMUS) Size(v ContentRecord) (size int) {
	size = IDMUS.Size(v.Id)
	size += ord.String.Size(v.IdentityKey)
	size += varint.Int.Size(int(v.Source))
	size += ord.String.Size(v.URL)
	size += ord.String.Size(v.BaseURL)
	size += ord.String.Size(v.Title)
	size += ord.String.Size(v.Text)
	size += ord.String.Size(v.Snippet)
	size += ord.String.Size(v.ContentHash)
	size += varint.Int.Size(v.WordCount)
	size += varint.Int.Size(v.ImagesCount)
	size += vectorSer.Size(v.Vector)
	size += ord.String.Size(v.EmbedModel)
	size += ord.Bool.Size(v.Indexed)
	size += varint.Int.Size(v.ChunkCount)
	size += timeSer.Size(v.CrawledAt)
	size += timeSer.Size(v.InsertedAt)
	size += timeSer.Size(v.UpdatedAt)
	size += mapSer.Size(v.Metadata)
	return size
}

// ChunkMUS is the MUS serializer for Chunk.
var ChunkMUS = chunkMUS{}

type chunkMUS struct{}

func (chunkMUS) Marshal(v Chunk, bs []byte) (n int) {
	n = IDMUS.Marshal(v.ContentId, bs)
	n += varint.Int.Marshal(v.Index, bs[n:])
	n += varint.Int.Marshal(v.StartChar, bs[n:])
	n += varint.Int.Marshal(v.EndChar, bs[n:])
	n += varint.Int.Marshal(v.TokenCount, bs[n:])
	n += ord.String.Marshal(v.Text, bs[n:])
	n += vectorSer.Marshal(v.Vector, bs[n:])
	return n
}

func (chunkMUS) Unmarshal(bs []byte) (v Chunk, n int, err error) {
	var m int
	if v.ContentId, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if v.Index, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.StartChar, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.EndChar, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.TokenCount, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Text, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Vector, m, err = vectorSer.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	return v, n, nil
}

func (chunkMUS) Size(v Chunk) (size int) {
	size = IDMUS.Size(v.ContentId)
	size += varint.Int.Size(v.Index)
	size += varint.Int.Size(v.StartChar)
	size += varint.Int.Size(v.EndChar)
	size += varint.Int.Size(v.TokenCount)
	size += ord.String.Size(v.Text)
	size += vectorSer.Size(v.Vector)
	return size
}
