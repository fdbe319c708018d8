// Package session runs an interactive retrieval QA loop.
//
// A Session moves through Initializing, Ready, AwaitingQuery and Answering
// until it is Closed. Initialization loads or attaches to an index through an
// Initializer; a failure there closes the session and is returned from Run.
// Every later query runs as a round of two named stages, retrieve and
// generate. A failed round is printed as "error: <stage>: <cause>" and the
// session keeps reading queries until the sentinel (default "quit", any case)
// or end of input.
//
// Basic usage:
//
//	s, err := session.New(init, provider.AnswerGenerator(),
//	    session.WithShowSources(true),
//	    session.WithHistory(3),
//	)
//	if err != nil {
//	    return err
//	}
//	return s.Run(ctx)
package session
