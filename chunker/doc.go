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


// Package chunker splits normalized text into overlapping chunks sized for
// embedding.
//
// The default recursive strategy tries separators in priority order
// (paragraph breaks, newlines, sentence punctuation, words) and recurses
// into oversized segments with the next separator, falling back to
// fixed-width windows when no separator fits. Chunk boundaries are rune
// offsets into the input, so callers can map any chunk back to its exact
// position in the source text.
//
// Chunkers are stateless after construction and safe for concurrent use.
package chunker
