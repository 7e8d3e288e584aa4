package brain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"taskbridge.app/bridge/common/logger"
	"taskbridge.app/bridge/internal/model"
	"taskbridge.app/bridge/internal/tracker"
)

// ErrNoSuchTransition means the workflow genuinely does not allow the
// requested move from the issue's current status. Never retried.
var ErrNoSuchTransition = errors.New("no such transition")

var doneCues = regexp.MustCompile(`(?i)\b(done|finished|completed|implemented)\b`)

// ProgressStatus maps progress language in a message onto a target status.
// Only two cue sets exist; nothing subtler is inferred.
func ProgressStatus(text string) string {
	if doneCues.MatchString(text) {
		return model.StatusDone
	}
	return model.StatusInProgress
}

// IDCache holds key -> internal id lookups for the duration of one batch
// operation. Never reused across restarts or between batches.
type IDCache map[string]string

// Executor performs state-changing calls against the tracker. With no
// tracker configured it runs in dry-run mode: every mutation is logged
// instead of applied, so the classification and resolution paths stay
// exercisable without credentials.
type Executor struct {
	tracker       tracker.Client
	epicLinkField string
	dryRun        bool
}

func NewExecutor(trackerClient tracker.Client, epicLinkField string) *Executor {
	return &Executor{
		tracker:       trackerClient,
		epicLinkField: epicLinkField,
		dryRun:        trackerClient == nil,
	}
}

// DryRun reports whether mutations are being logged instead of applied.
func (e *Executor) DryRun() bool {
	return e.dryRun
}

// Transition moves an issue to the named workflow status. Available
// transitions are discovered per issue; a target with no matching transition
// is a terminal failure for this event, reported with the names that were
// available for diagnosis.
func (e *Executor) Transition(ctx context.Context, issueKey, targetStatus string) model.TransitionResult {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "bridge.brain.executor",
		IssueKey:  logger.Ptr(issueKey),
	})

	if e.dryRun {
		slog.InfoContext(ctx, "dry-run: would transition issue", "new_status", targetStatus)
		return model.SuccessResult(map[string]any{
			"dry_run":    true,
			"issue_key":  issueKey,
			"new_status": targetStatus,
		})
	}

	start := time.Now()
	transitions, err := e.tracker.GetTransitions(ctx, issueKey)
	if err != nil {
		return model.ErrorResult(fmt.Sprintf("fetching transitions: %v", err))
	}

	var transitionID string
	names := make([]string, len(transitions))
	for i, t := range transitions {
		names[i] = t.Name
		if transitionID == "" && strings.EqualFold(t.Name, targetStatus) {
			transitionID = t.ID
		}
	}

	if transitionID == "" {
		slog.WarnContext(ctx, "no transition to requested status",
			"new_status", targetStatus,
			"available", names)
		return model.TransitionResult{
			Status:  model.OutcomeError,
			Message: fmt.Sprintf("%v: no transition to %q", ErrNoSuchTransition, targetStatus),
			Data:    map[string]any{"available_transitions": names},
		}
	}

	if err := e.tracker.ApplyTransition(ctx, issueKey, transitionID); err != nil {
		return model.ErrorResult(fmt.Sprintf("applying transition: %v", err))
	}

	slog.InfoContext(ctx, "issue transitioned",
		"new_status", targetStatus,
		"latency_ms", time.Since(start).Milliseconds())

	return model.SuccessResult(map[string]any{
		"issue_key":  issueKey,
		"new_status": targetStatus,
	})
}

// CreateIssue creates a standalone issue (no parent linkage).
func (e *Executor) CreateIssue(ctx context.Context, projectKey string, params CreateIssueParams) (string, error) {
	fields := map[string]any{
		"project":     map[string]string{"key": projectKey},
		"summary":     params.Title,
		"description": params.Body,
		"issuetype":   map[string]string{"name": "Task"},
	}
	if len(params.Labels) > 0 {
		fields["labels"] = params.Labels
	}

	return e.createStandalone(ctx, projectKey, fields)
}

func (e *Executor) createStandalone(ctx context.Context, projectKey string, fields map[string]any) (string, error) {
	if e.dryRun {
		slog.InfoContext(ctx, "dry-run: would create issue",
			"project_key", projectKey,
			"summary", fields["summary"])
		return fmt.Sprintf("%s-DRY", projectKey), nil
	}
	return e.tracker.CreateIssue(ctx, tracker.CreatePayload{Fields: fields})
}

// CreateLinkedIssue creates an issue attached to a parent, falling back from
// the modern linkage shape to parent-by-internal-id when the tracker rejects
// the field shape. The same logical operation is expressed through
// incompatible shapes depending on how the remote project was provisioned,
// and that mode is not discoverable in advance; one retry with the alternate
// shape is the cheapest correct strategy. Any other error class is surfaced
// untouched.
func (e *Executor) CreateLinkedIssue(ctx context.Context, fields map[string]any, parentKey string, cache IDCache) (string, error) {
	if e.dryRun {
		slog.InfoContext(ctx, "dry-run: would create linked issue",
			"parent_key", parentKey,
			"summary", fields["summary"])
		return fmt.Sprintf("%v-DRY", parentKey), nil
	}

	key, err := e.createModernShape(ctx, fields, parentKey)
	if err == nil {
		return key, nil
	}
	if !tracker.IsSchemaRejection(err) {
		return "", err
	}

	slog.InfoContext(ctx, "linkage shape rejected, retrying with parent id",
		"parent_key", parentKey,
		"error", err)

	parentID, err := e.internalID(ctx, parentKey, cache)
	if err != nil {
		return "", fmt.Errorf("looking up parent id: %w", err)
	}

	return e.tracker.CreateIssue(ctx, tracker.CreatePayload{
		Parent: &tracker.Parent{ID: parentID},
		Fields: fields,
	})
}

func (e *Executor) createModernShape(ctx context.Context, fields map[string]any, parentKey string) (string, error) {
	if e.epicLinkField != "" {
		withLink := make(map[string]any, len(fields)+1)
		for k, v := range fields {
			withLink[k] = v
		}
		withLink[e.epicLinkField] = parentKey
		return e.tracker.CreateIssue(ctx, tracker.CreatePayload{Fields: withLink})
	}
	return e.tracker.CreateIssue(ctx, tracker.CreatePayload{
		Parent: &tracker.Parent{Key: parentKey},
		Fields: fields,
	})
}

func (e *Executor) internalID(ctx context.Context, issueKey string, cache IDCache) (string, error) {
	if cache != nil {
		if id, ok := cache[issueKey]; ok {
			return id, nil
		}
	}
	id, err := e.tracker.GetInternalID(ctx, issueKey)
	if err != nil {
		return "", err
	}
	if cache != nil {
		cache[issueKey] = id
	}
	return id, nil
}

// UpdateIssue applies field updates to an existing issue.
func (e *Executor) UpdateIssue(ctx context.Context, params UpdateIssueParams) error {
	fields := map[string]any{}
	if params.Summary != "" {
		fields["summary"] = params.Summary
	}
	if params.Description != "" {
		fields["description"] = params.Description
	}
	if len(fields) == 0 {
		return nil
	}

	if e.dryRun {
		slog.InfoContext(ctx, "dry-run: would update issue",
			"issue_key", params.IssueKey)
		return nil
	}

	return e.tracker.UpdateIssue(ctx, params.IssueKey, fields)
}
