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

// Package ai provides abstractions for the AI services used by docqa.
//
// The package defines three interfaces:
//
//   - Embedder: Generates vector embeddings from text
//   - AnswerGenerator: Answers a question from retrieved chunks, either in one
//     piece or as a TokenStream
//   - Provider: Aggregates both services for convenient initialization
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs via langchaingo
//   - ai/cache: Redis-backed Embedder decorator
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, openai.NewEmbedder, etc.) return
// INTERFACE types. Test utility constructors (mock.NewMockEmbedder,
// mock.NewMockGenerator) return CONCRETE types so tests can inject behavior and
// assert call counts.
//
// # Streaming
//
// AnswerGenerator.Stream returns a TokenStream. Its Tokens method is an
// iter.Seq[string] that starts the provider call on first iteration and ends
// when the provider signals completion:
//
//	stream := gen.Stream(ctx, "What is eBPF?", retrieved)
//	for token := range stream.Tokens() {
//	    fmt.Print(token)
//	}
//	answer, err := stream.Result()
package ai
