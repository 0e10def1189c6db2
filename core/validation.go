// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SnippetLength bounds the stored snippet of a record's text.
const SnippetLength = 500

// NormalizeText trims surrounding whitespace and collapses control characters
// to plain spaces. Newlines and tabs survive because the chunker splits on
// them; everything else in the control range carries no text.
func NormalizeText(text string) string {
	normalized := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, text)
	return strings.TrimSpace(normalized)
}

// WordCount counts whitespace-separated words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Snippet returns a bounded prefix of text, at most SnippetLength runes.
func Snippet(text string) string {
	if utf8.RuneCountInString(text) <= SnippetLength {
		return text
	}
	return string([]rune(text)[:SnippetLength])
}

// ValidateContentRecord validates a ContentRecord according to domain rules.
//
// Validation rules:
//   - Text must not be empty
//   - SourceType must be valid
//   - url sources must carry a URL; file/text sources an IdentityKey
//
// NOT validated (populated by the ingestion pipeline):
//   - Vector (empty until the summary embedding is generated)
//   - ChunkCount and Indexed (set at upsert time)
func ValidateContentRecord(record *ContentRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidContent)
	}

	if record.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidContent, ErrEmptyContent)
	}

	if err := ValidateSourceType(record.Source); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidContent, err)
	}

	if record.Source == SourceTypeURL && record.URL == "" {
		return fmt.Errorf("%w: %w", ErrInvalidContent, ErrMissingURL)
	}

	if record.IdentityKey == "" {
		return fmt.Errorf("%w: %w", ErrInvalidContent, ErrMissingIdentifier)
	}

	return nil
}

// ValidateChunk validates a Chunk according to domain rules.
//
// Validation rules:
//   - Text must not be empty
//   - Index must be non-negative
//   - StartChar must be < EndChar
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if chunk.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}

	if chunk.Index < 0 {
		return fmt.Errorf("%w: negative index %d", ErrInvalidChunk, chunk.Index)
	}

	if chunk.StartChar >= chunk.EndChar {
		return fmt.Errorf("%w: empty range [%d, %d)", ErrInvalidChunk, chunk.StartChar, chunk.EndChar)
	}

	return nil
}

// ValidateSourceType validates that a SourceType has a valid value.
func ValidateSourceType(source SourceType) error {
	switch source {
	case SourceTypeURL, SourceTypeFile, SourceTypeText:
		return nil
	default:
		return fmt.Errorf("%w: value %d", ErrInvalidSourceType, source)
	}
}
