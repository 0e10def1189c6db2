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


// Package ai provides the embedding gateway abstraction used by Corpus.
//
// The embedding model is treated as an opaque capability that maps text to a
// fixed-dimension vector. The core domain and the ingestion/search packages
// depend only on the interfaces defined here, never on a concrete client.
//
// # Interfaces
//
//   - Embedder: generates vector embeddings from text
//   - EmbeddingProvider: aggregates the embedding service for initialization
//     and lifecycle management
//
// # Implementation Packages
//
//   - ai/openai: production implementation for OpenAI-compatible APIs
//   - ai/mock: deterministic test doubles without external dependencies
//
// # Error Contract
//
// Implementations report a small closed set of error kinds: ErrUnavailable
// when the backing model or service cannot be reached, ErrEmptyInput when
// asked to embed empty text. Callers are responsible for truncating oversized
// input with Truncate before calling.
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithHost("http://localhost:11434"))
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vector, err := provider.Embedder().EmbedText(ctx, ai.Truncate(text, config.MaxInputChars))
package ai
