package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trims whitespace", "  hello world  \n", "hello world"},
		{"keeps newlines and tabs", "a\n\nb\tc", "a\n\nb\tc"},
		{"collapses control characters", "a\x00b\x07c", "a b c"},
		{"empty input", "", ""},
		{"whitespace only", " \n\t ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeText(tt.in))
		})
	}
}

func TestWordCount(t *testing.T) {
	assert.Equal(t, 0, WordCount(""))
	assert.Equal(t, 3, WordCount("one two three"))
	assert.Equal(t, 2, WordCount("  spaced \n out  "))
}

func TestSnippet(t *testing.T) {
	short := "short text"
	assert.Equal(t, short, Snippet(short))

	long := strings.Repeat("x", SnippetLength*2)
	got := Snippet(long)
	assert.Len(t, got, SnippetLength)
}

func TestValidateContentRecord(t *testing.T) {
	valid := &ContentRecord{
		IdentityKey: "https://example.com",
		Source:      SourceTypeURL,
		URL:         "https://example.com",
		Text:        "some content",
	}
	require.NoError(t, ValidateContentRecord(valid))

	tests := []struct {
		name   string
		mutate func(*ContentRecord)
		want   error
	}{
		{"empty text", func(r *ContentRecord) { r.Text = "" }, ErrEmptyContent},
		{"invalid source", func(r *ContentRecord) { r.Source = SourceType(99) }, ErrInvalidSourceType},
		{"url source without url", func(r *ContentRecord) { r.URL = "" }, ErrMissingURL},
		{"missing identity", func(r *ContentRecord) { r.IdentityKey = "" }, ErrMissingIdentifier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := *valid
			tt.mutate(&record)
			err := ValidateContentRecord(&record)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidContent)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.ErrorIs(t, ValidateContentRecord(nil), ErrInvalidContent)
}

func TestValidateChunk(t *testing.T) {
	valid := &Chunk{ContentId: 1, Index: 0, StartChar: 0, EndChar: 5, Text: "hello"}
	require.NoError(t, ValidateChunk(valid))

	assert.ErrorIs(t, ValidateChunk(nil), ErrInvalidChunk)
	assert.ErrorIs(t, ValidateChunk(&Chunk{Text: "", EndChar: 1}), ErrEmptyContent)
	assert.ErrorIs(t, ValidateChunk(&Chunk{Text: "x", Index: -1, EndChar: 1}), ErrInvalidChunk)
	assert.ErrorIs(t, ValidateChunk(&Chunk{Text: "x", StartChar: 5, EndChar: 5}), ErrInvalidChunk)
}
