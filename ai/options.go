package ai

import "github.com/poiesic/docqa/core"

// AnswerOptions carries per-call settings for an AnswerGenerator.
type AnswerOptions struct {
	// History holds previous rounds, oldest first.
	History []core.Turn
}

// AnswerOption is a functional option for a single Answer or Stream call.
type AnswerOption func(*AnswerOptions)

// WithHistory passes previous question/answer rounds to the generator.
func WithHistory(turns []core.Turn) AnswerOption {
	return func(o *AnswerOptions) {
		o.History = turns
	}
}

// ApplyAnswerOptions folds opts into an AnswerOptions value.
func ApplyAnswerOptions(opts ...AnswerOption) AnswerOptions {
	var o AnswerOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
