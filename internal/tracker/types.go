package tracker

// Parent addresses an issue's parent by human key or internal id. The two
// shapes are accepted by different tracker provisioning modes and are not
// interchangeable; the executor falls back from one to the other.
type Parent struct {
	Key string `json:"key,omitempty"`
	ID  string `json:"id,omitempty"`
}

// CreatePayload describes an issue to create. Fields carries project,
// summary, description, issuetype and any custom fields (epic link); Parent,
// when set, is merged into fields as the "parent" entry on the wire.
type CreatePayload struct {
	Parent *Parent
	Fields map[string]any
}

type searchRequest struct {
	JQL        string   `json:"jql"`
	Fields     []string `json:"fields"`
	MaxResults int      `json:"maxResults"`
}

type searchResponse struct {
	Issues []searchIssue `json:"issues"`
}

type searchIssue struct {
	Key    string      `json:"key"`
	Fields issueFields `json:"fields"`
}

type issueFields struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
}

type transitionsResponse struct {
	Transitions []transitionEntry `json:"transitions"`
}

type transitionEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type applyTransitionRequest struct {
	Transition struct {
		ID string `json:"id"`
	} `json:"transition"`
}

type createResponse struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

type issueIDResponse struct {
	ID string `json:"id"`
}
