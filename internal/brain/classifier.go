package brain

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"taskbridge.app/bridge/common/llm"
	"taskbridge.app/bridge/common/logger"
	"taskbridge.app/bridge/internal/model"
)

// ContextWindow is how many recent messages ride along as classification
// context.
const ContextWindow = 5

// Classifier maps a conversation event onto the action grammar with a single
// zero-temperature completion call. The model is a black box; everything it
// returns goes through DecodeAction before anything downstream sees it.
type Classifier struct {
	llm llm.Client
}

func NewClassifier(client llm.Client) *Classifier {
	return &Classifier{llm: client}
}

// Classify returns the action implied by the last event in the window.
// Non-user roles classify to None without an LLM call; so does a malformed
// or out-of-grammar model reply. The returned error is reserved for
// transport-level failures.
func (c *Classifier) Classify(ctx context.Context, window []model.ConversationEvent) (Action, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "bridge.brain.classifier",
	})

	if len(window) == 0 {
		return None, nil
	}

	last := window[len(window)-1]
	if !model.IsUserRole(last.Role) {
		slog.DebugContext(ctx, "skipping non-user message", "role", last.Role)
		return None, nil
	}

	start := time.Now()
	reply, _, err := c.llm.Complete(ctx, llm.Request{
		SystemPrompt: classifierSystemPrompt,
		UserPrompt:   buildClassifierPrompt(window, last),
		Temperature:  llm.Temp(0),
	})
	if err != nil {
		return None, fmt.Errorf("classify: %w", err)
	}

	action := DecodeAction(reply)

	slog.InfoContext(ctx, "message classified",
		"action", string(action.Type),
		"message", logger.Truncate(last.Content, 120),
		"latency_ms", time.Since(start).Milliseconds())

	return action, nil
}

func buildClassifierPrompt(window []model.ConversationEvent, last model.ConversationEvent) string {
	var sb strings.Builder

	sb.WriteString("USER MESSAGE: ")
	sb.WriteString(last.Content)
	sb.WriteString("\n\nRecent messages:\n")

	start := len(window) - ContextWindow
	if start < 0 {
		start = 0
	}
	for _, ev := range window[start:] {
		sb.WriteString(fmt.Sprintf("- [%s]: %s\n", ev.Role, ev.Content))
	}

	return sb.String()
}

// DecodeAction parses a raw model reply into the action grammar. Anything
// outside the grammar degrades to None: a bad model reply must never crash
// the loop, and degrading is lower-risk than synthesizing a bug report.
func DecodeAction(raw string) Action {
	cleaned := stripCodeFences(raw)

	obj, ok := firstJSONObject(cleaned)
	if !ok {
		return None
	}

	var action Action
	if err := json.Unmarshal([]byte(obj), &action); err != nil {
		return None
	}
	if !action.Type.Valid() {
		return None
	}
	return action
}

func stripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// firstJSONObject extracts the first balanced {...} object, tracking string
// literals so braces inside values don't skew the depth count.
func firstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

var classifierSystemPrompt = fmt.Sprintf(`You are an issue-tracker assistant. Decide whether the user's latest message implies a change to a tracked unit of work.

Reply with exactly one JSON object, nothing else:
- {"action":"update_status","params":{"issue_key":"<PROJ-123>","new_status":"<To Do|In Progress|Done>"}} when the message reports progress. Omit issue_key if the message does not name one; include "user_text" with the message instead.
- {"action":"find_issue","params":{"user_text":"<message>"}} when you must locate the card first.
- {"action":"create_issue","params":{"title":"...","body":"...","labels":[],"assignees":[]}} when the message asks for new work to be tracked.
- {"action":"update_issue","params":{"issue_key":"<PROJ-123>","summary":"...","description":"..."}} when the message corrects an existing card.
- {"action":"none"} if the message is not about task progress.

Progress cues, In Progress: started, begin, working on
Progress cues, Done: finished, completed, done, implemented

Parameter schemas:
update_status: %s
find_issue: %s
create_issue: %s
update_issue: %s`,
	schemaJSON[UpdateStatusParams](),
	schemaJSON[FindIssueParams](),
	schemaJSON[CreateIssueParams](),
	schemaJSON[UpdateIssueParams](),
)

func schemaJSON[T any]() string {
	b, err := json.Marshal(llm.GenerateSchema[T]())
	if err != nil {
		return "{}"
	}
	return string(b)
}
