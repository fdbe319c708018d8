package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/docqa/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenProducer(tokens ...string) Producer {
	return func(ctx context.Context, emit func(string) error) (*core.Answer, error) {
		var text string
		for _, tok := range tokens {
			if err := emit(tok); err != nil {
				return nil, err
			}
			text += tok
		}
		return &core.Answer{Text: text}, nil
	}
}

func TestTokenStream(t *testing.T) {
	t.Run("yields tokens in order", func(t *testing.T) {
		stream := NewTokenStream(context.Background(), tokenProducer("John", " ", "Doe"))

		var got []string
		for tok := range stream.Tokens() {
			got = append(got, tok)
		}
		assert.Equal(t, []string{"John", " ", "Doe"}, got)

		answer, err := stream.Result()
		require.NoError(t, err)
		assert.Equal(t, "John Doe", answer.Text)
	})

	t.Run("is lazy", func(t *testing.T) {
		calls := 0
		stream := NewTokenStream(context.Background(), func(ctx context.Context, emit func(string) error) (*core.Answer, error) {
			calls++
			return &core.Answer{}, nil
		})
		assert.Equal(t, 0, calls)

		_, err := stream.Result()
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("is not restartable", func(t *testing.T) {
		stream := NewTokenStream(context.Background(), tokenProducer("a", "b"))

		first := 0
		for range stream.Tokens() {
			first++
		}
		second := 0
		for range stream.Tokens() {
			second++
		}
		assert.Equal(t, 2, first)
		assert.Equal(t, 0, second)
	})

	t.Run("early break cancels producer", func(t *testing.T) {
		stream := NewTokenStream(context.Background(), tokenProducer("a", "b", "c", "d"))

		for tok := range stream.Tokens() {
			assert.Equal(t, "a", tok)
			break
		}

		_, err := stream.Result()
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("producer error is reported", func(t *testing.T) {
		boom := errors.New("boom")
		stream := NewTokenStream(context.Background(), func(ctx context.Context, emit func(string) error) (*core.Answer, error) {
			_ = emit("partial")
			return nil, boom
		})

		text, answer, err := stream.Collect()
		assert.Equal(t, "partial", text)
		assert.Nil(t, answer)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("failed stream", func(t *testing.T) {
		stream := FailedStream(core.ErrGenerationFailure)

		count := 0
		for range stream.Tokens() {
			count++
		}
		assert.Zero(t, count)
		_, err := stream.Result()
		assert.ErrorIs(t, err, core.ErrGenerationFailure)
	})
}

func TestApplyAnswerOptions(t *testing.T) {
	assert.Empty(t, ApplyAnswerOptions().History)

	turns := []core.Turn{{Query: "q", Answer: "a"}}
	assert.Equal(t, turns, ApplyAnswerOptions(WithHistory(turns)).History)
}
