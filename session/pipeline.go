package session

import (
	"context"
	"fmt"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
)

// Names of the stages of a round, as they appear in StageError.
const (
	StageRetrieve = "retrieve"
	StageGenerate = "generate"
)

// stage is one named step of a round.
type stage[In, Out any] struct {
	name string
	run  func(ctx context.Context, in In) (Out, error)
}

func (s stage[In, Out]) do(ctx context.Context, in In) (Out, error) {
	out, err := s.run(ctx, in)
	if err != nil {
		var zero Out
		return zero, &StageError{Stage: s.name, Err: err}
	}
	return out, nil
}

// retrieval is the output of the retrieve stage.
type retrieval struct {
	query     string
	retrieved core.RetrievalResult
}

// outcome is the output of the generate stage.
type outcome struct {
	answer   *core.Answer
	streamed bool
}

type pipeline struct {
	retrieve stage[string, retrieval]
	generate stage[retrieval, outcome]
}

func (p pipeline) run(ctx context.Context, query string) (outcome, error) {
	r, err := p.retrieve.do(ctx, query)
	if err != nil {
		return outcome{}, err
	}
	return p.generate.do(ctx, r)
}

func (s *Session) newPipeline(retriever Retriever) pipeline {
	return pipeline{
		retrieve: stage[string, retrieval]{
			name: StageRetrieve,
			run: func(ctx context.Context, query string) (retrieval, error) {
				retrieved, err := retriever.Query(ctx, query, s.k)
				if err != nil {
					return retrieval{}, err
				}
				s.observer.AfterRetrieval(query, retrieved)
				return retrieval{query: query, retrieved: retrieved}, nil
			},
		},
		generate: stage[retrieval, outcome]{
			name: StageGenerate,
			run:  s.generate,
		},
	}
}

func (s *Session) generate(ctx context.Context, r retrieval) (outcome, error) {
	var opts []ai.AnswerOption
	if s.maxHistory > 0 {
		opts = append(opts, ai.WithHistory(append([]core.Turn(nil), s.history...)))
	}

	if !s.streaming {
		answer, err := s.generator.Answer(ctx, r.query, r.retrieved, opts...)
		if err != nil {
			return outcome{}, err
		}
		return outcome{answer: answer}, nil
	}

	stream := s.generator.Stream(ctx, r.query, r.retrieved, opts...)
	var wrote bool
	for token := range stream.Tokens() {
		fmt.Fprint(s.out, s.styles.render(s.styles.Answer, token))
		wrote = true
	}
	if wrote {
		fmt.Fprintln(s.out)
	}
	answer, err := stream.Result()
	if err != nil {
		return outcome{}, err
	}
	return outcome{answer: answer, streamed: true}, nil
}
