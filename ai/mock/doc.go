// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.AnswerGenerator,
// ai.Provider and llms.Model for use in unit tests. The mocks allow tests to run
// without external AI service dependencies and enable controlled, deterministic
// behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	provider := mock.NewMockProvider()
//	embedding, err := provider.Embedder().EmbedText(ctx, "test")
//
//	// Keyword vectors make similarity rankings predictable
//	embedder := mock.NewKeywordEmbedder("kubernetes", "developer")
//
//	// Scripted answers, including failures
//	gen := mock.NewScriptedGenerator(
//	    mock.ScriptedResult{Err: core.ErrGenerationFailure},
//	    mock.ScriptedResult{Text: "John Doe"},
//	)
//
// # Default Behavior
//
//   - MockEmbedder: Returns deterministic vectors based on text hash
//   - MockGenerator: Answers with the text of the top retrieved chunk
//   - MockModel: Cycles through canned responses and streams them word by word
//   - MockProvider: Aggregates mock embedder and generator
package mock
