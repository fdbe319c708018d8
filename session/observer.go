package session

import "github.com/poiesic/docqa/core"

// Observer provides hooks to follow a session.
// Implement this interface to trace state changes and round outcomes.
type Observer interface {
	StateChanged(from, to State)
	RoundStarted(query string)
	AfterRetrieval(query string, retrieved core.RetrievalResult)
	// RoundFinished receives either the answer or the error that ended the round.
	RoundFinished(query string, answer *core.Answer, err error)
}

// noopObserver is a no-op implementation of Observer
type noopObserver struct{}

var _ Observer = (*noopObserver)(nil)

func (n *noopObserver) StateChanged(_, _ State)                         {}
func (n *noopObserver) RoundStarted(_ string)                           {}
func (n *noopObserver) AfterRetrieval(_ string, _ core.RetrievalResult) {}
func (n *noopObserver) RoundFinished(_ string, _ *core.Answer, _ error) {}

