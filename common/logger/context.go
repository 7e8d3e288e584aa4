package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within
// a context. Fields flow through context enrichment so business context
// (conversation_id, issue_key, etc.) shows up on every log line without being
// threaded through call sites by hand.
type LogFields struct {
	ConversationID *string // Conversation whose message triggered this event
	ProjectID      *string // Owning project
	IssueKey       *string // Tracker issue being resolved or transitioned
	EventID        *string // Change-feed message ID
	EventType      *string // Feed operation type ("insert", "update")
	Component      string  // Component name (e.g., "bridge.watcher.dispatcher")
}

// WithLogFields enriches context with structured log fields. Multiple calls
// merge fields, with newer non-nil/non-empty values taking precedence.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context, empty if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.ConversationID != nil {
		result.ConversationID = next.ConversationID
	}
	if next.ProjectID != nil {
		result.ProjectID = next.ProjectID
	}
	if next.IssueKey != nil {
		result.IssueKey = next.IssueKey
	}
	if next.EventID != nil {
		result.EventID = next.EventID
	}
	if next.EventType != nil {
		result.EventType = next.EventType
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{IssueKey: logger.Ptr(key)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if
// truncated. Useful for logging potentially long message bodies.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
