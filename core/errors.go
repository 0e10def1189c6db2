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

import "errors"

// Domain validation errors
var (
	// ErrInvalidContent indicates a ContentRecord failed validation.
	ErrInvalidContent = errors.New("invalid content record")

	// ErrEmptyContent indicates the text is empty after normalization.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidSourceType indicates an invalid SourceType value.
	ErrInvalidSourceType = errors.New("invalid source type")

	// ErrMissingURL indicates a url source without a URL.
	ErrMissingURL = errors.New("url source requires a URL")

	// ErrMissingIdentifier indicates a file/text source without an identifier.
	ErrMissingIdentifier = errors.New("source identifier cannot be empty")

	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")
)
