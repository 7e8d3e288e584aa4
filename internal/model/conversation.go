package model

import (
	"strings"
	"time"
)

// ConversationEvent is one appended message in a conversation, paired with the
// conversation it belongs to. Events are immutable once appended; the watcher
// consumes them read-only.
type ConversationEvent struct {
	ConversationID string    `json:"conversation_id"`
	ProjectID      string    `json:"project_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
}

// Conversation is the full document carried by a change-feed notification.
type Conversation struct {
	ConversationID string    `json:"conversation_id"`
	ProjectID      string    `json:"project_id"`
	Messages       []Message `json:"messages"`
}

type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// LastMessage returns the most recently appended message, or false when the
// conversation has none.
func (c Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// Window returns up to n of the most recent messages as events, oldest first.
func (c Conversation) Window(n int) []ConversationEvent {
	start := len(c.Messages) - n
	if start < 0 {
		start = 0
	}
	events := make([]ConversationEvent, 0, len(c.Messages)-start)
	for _, m := range c.Messages[start:] {
		events = append(events, ConversationEvent{
			ConversationID: c.ConversationID,
			ProjectID:      c.ProjectID,
			Role:           m.Role,
			Content:        m.Content,
			Timestamp:      m.Timestamp,
		})
	}
	return events
}

// IsUserRole reports whether a message role counts as user-originated.
// Assistant and system messages never trigger workflow actions, otherwise the
// assistant's own replies would end up creating or moving issues.
func IsUserRole(role string) bool {
	switch strings.ToLower(role) {
	case "user", "human", "customer":
		return true
	}
	return false
}
