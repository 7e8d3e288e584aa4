package model

import "time"

// OutcomeStatus classifies how one event's workflow handling ended.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeError   OutcomeStatus = "error"
	OutcomeSkipped OutcomeStatus = "skipped"
)

// TransitionResult is the outcome of one workflow-executor call. Results are
// logged and recorded but never retried beyond the executor's own fallback.
type TransitionResult struct {
	Status  OutcomeStatus  `json:"status"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

func SuccessResult(data map[string]any) TransitionResult {
	return TransitionResult{Status: OutcomeSuccess, Data: data}
}

func ErrorResult(message string) TransitionResult {
	return TransitionResult{Status: OutcomeError, Message: message}
}

// Outcome is one persisted row of the outcome log: which event was handled,
// what action was classified, and how execution ended.
type Outcome struct {
	ID             int64         `json:"id"`
	ConversationID string        `json:"conversation_id"`
	ProjectID      string        `json:"project_id"`
	ActionType     string        `json:"action_type"`
	IssueKey       string        `json:"issue_key,omitempty"`
	Status         OutcomeStatus `json:"status"`
	Message        string        `json:"message,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}
