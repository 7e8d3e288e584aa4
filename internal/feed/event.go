package feed

import (
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"taskbridge.app/bridge/internal/model"
)

// Operation types carried by change notifications. Only document mutations
// are of interest; everything else is filtered out by the watcher.
const (
	OpInsert = "insert"
	OpUpdate = "update"
)

// Event is one change notification: the operation type plus the full
// updated/inserted conversation document.
type Event struct {
	ID           string
	Operation    string
	Conversation model.Conversation
	TraceID      string
	Raw          redis.XMessage
}

// IsMutation reports whether the event is a document insert or update.
func (e Event) IsMutation() bool {
	return e.Operation == OpInsert || e.Operation == OpUpdate
}

// ParseEvent decodes a raw stream message into an Event. The document rides
// in the "document" field as JSON; "operation_type" mirrors the change
// stream's operation.
func ParseEvent(msg redis.XMessage) (Event, error) {
	event := Event{
		ID:  msg.ID,
		Raw: msg,
	}

	op, ok := msg.Values["operation_type"].(string)
	if !ok || op == "" {
		return Event{}, fmt.Errorf("message %s missing operation_type", msg.ID)
	}
	event.Operation = op

	doc, ok := msg.Values["document"].(string)
	if !ok || doc == "" {
		return Event{}, fmt.Errorf("message %s missing document", msg.ID)
	}
	if err := json.Unmarshal([]byte(doc), &event.Conversation); err != nil {
		return Event{}, fmt.Errorf("decoding document in %s: %w", msg.ID, err)
	}
	if event.Conversation.ConversationID == "" {
		return Event{}, fmt.Errorf("message %s document has no conversation_id", msg.ID)
	}

	if traceID, ok := msg.Values["trace_id"].(string); ok {
		event.TraceID = traceID
	}

	return event, nil
}
