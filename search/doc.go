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


// Package search provides similarity search over chunk embeddings.
//
// The Searcher type embeds the query text and ranks stored chunks by cosine
// distance, ascending. Each hit carries the matched chunk together with its
// parent content record, so callers can show the precise passage and the
// document it came from. Searches can be scoped to a base URL via
// storage.SearchFilter.
package search
