package session

// State is a position in the session lifecycle.
type State int

const (
	Initializing State = iota
	Ready
	AwaitingQuery
	Answering
	Closed
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case AwaitingQuery:
		return "awaiting-query"
	case Answering:
		return "answering"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}
