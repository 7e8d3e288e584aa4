package brain

import (
	"encoding/json"
	"fmt"
)

// ActionType is the closed set of workflow effects a classified message can
// have. Unknown types are rejected at decode time so a new action kind can
// never silently no-op through partial field access.
type ActionType string

const (
	ActionTypeNone         ActionType = "none"
	ActionTypeFindIssue    ActionType = "find_issue"
	ActionTypeUpdateStatus ActionType = "update_status"
	ActionTypeCreateIssue  ActionType = "create_issue"
	ActionTypeUpdateIssue  ActionType = "update_issue"
)

// Action is the classifier's verdict for one conversation event. Params is
// decoded lazily per type via ParseActionData.
type Action struct {
	Type   ActionType      `json:"action"`
	Params json.RawMessage `json:"params,omitempty"`
}

// None is the safe default: no workflow effect.
var None = Action{Type: ActionTypeNone}

// ParseActionData unmarshals the action's params into the specified type.
func ParseActionData[T any](action Action) (T, error) {
	var data T
	if len(action.Params) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(action.Params, &data); err != nil {
		return data, fmt.Errorf("parsing %s params: %w", action.Type, err)
	}
	return data, nil
}

// Valid reports whether the type is in the grammar.
func (t ActionType) Valid() bool {
	switch t {
	case ActionTypeNone, ActionTypeFindIssue, ActionTypeUpdateStatus,
		ActionTypeCreateIssue, ActionTypeUpdateIssue:
		return true
	}
	return false
}

type FindIssueParams struct {
	UserText string `json:"user_text" jsonschema_description:"The message text to locate the issue for"`
}

type UpdateStatusParams struct {
	IssueKey  string `json:"issue_key,omitempty" jsonschema_description:"Issue key if the message names one, e.g. PROJ-123"`
	NewStatus string `json:"new_status" jsonschema:"enum=To Do,enum=In Progress,enum=Done" jsonschema_description:"Target workflow status"`
	UserText  string `json:"user_text,omitempty" jsonschema_description:"The message text, used to resolve the issue when issue_key is absent"`
}

type CreateIssueParams struct {
	Title     string   `json:"title" jsonschema_description:"Issue summary"`
	Body      string   `json:"body,omitempty" jsonschema_description:"Issue description"`
	Labels    []string `json:"labels,omitempty"`
	Assignees []string `json:"assignees,omitempty"`
}

type UpdateIssueParams struct {
	IssueKey    string `json:"issue_key" jsonschema_description:"Issue key, e.g. PROJ-123"`
	Summary     string `json:"summary,omitempty"`
	Description string `json:"description,omitempty"`
}
