package model

// IssueCandidate is a transient projection of a tracker issue returned by
// search. It is never persisted; resolution re-fetches candidates per call.
type IssueCandidate struct {
	Key         string `json:"key"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
}

// SearchText is the text a candidate is scored against.
func (c IssueCandidate) SearchText() string {
	return c.Summary + " " + c.Description
}

// Transition is a tracker-defined move from the issue's current workflow
// status to another. Transitions are discovered per issue, never hard-coded.
type Transition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Workflow status names this bridge requests. The tracker's workflow may
// define more; these are the only ones progress language maps onto.
const (
	StatusToDo       = "To Do"
	StatusInProgress = "In Progress"
	StatusDone       = "Done"
)
