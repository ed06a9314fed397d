package orchestrator

import (
	"github.com/neuroleaf/neuroleaf/message"
)

// Route is the classified intent for a turn.
type Route string

const (
	// RouteUnset means the router has not run yet. Downstream nodes treat
	// it as an error.
	RouteUnset Route = ""
	// RouteChat answers conversationally without consulting any source.
	RouteChat Route = "chat"
	// RouteRAG answers from the disease knowledge corpus.
	RouteRAG Route = "rag"
	// RouteWeb answers from live web search results.
	RouteWeb Route = "web"
)

// TurnState carries one turn through the orchestration graph. Nodes never
// mutate the state they receive; each returns an updated copy, so a node's
// transition is testable in isolation.
type TurnState struct {
	// Question is the user utterance driving this turn. Immutable once set.
	Question string

	// Messages is the session transcript including the current question.
	Messages []*message.Message

	// Route is set exactly once by the router node.
	Route Route

	// RetrievedDocs holds corpus passages. nil means retrieval was never
	// attempted; an empty non-nil slice means it ran and found nothing.
	RetrievedDocs []string

	// WebRetrievals holds web passages with the same nil-vs-empty meaning.
	WebRetrievals []string

	// EnoughInfo is the grading verdict for corpus context. nil means
	// grading was not applicable on this path.
	EnoughInfo *bool

	// FinalAnswer is the externally visible result. Non-empty on every
	// terminal path.
	FinalAnswer string
}

// Clone returns a deep copy so a node can derive its successor state
// without aliasing slices with its predecessor.
func (s TurnState) Clone() TurnState {
	out := s
	out.Messages = message.CloneMessages(s.Messages)
	if s.RetrievedDocs != nil {
		out.RetrievedDocs = append([]string(nil), s.RetrievedDocs...)
	}
	if s.WebRetrievals != nil {
		out.WebRetrievals = append([]string(nil), s.WebRetrievals...)
	}
	if s.EnoughInfo != nil {
		v := *s.EnoughInfo
		out.EnoughInfo = &v
	}
	return out
}

func boolPtr(v bool) *bool { return &v }
