// Package watcher ties the change feed to the workflow brain: it reads
// conversation events, classifies the latest user message into an action,
// resolves which issue the user means, and drives the tracker accordingly.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"taskbridge.app/bridge/common/logger"
	"taskbridge.app/bridge/internal/brain"
	"taskbridge.app/bridge/internal/feed"
	"taskbridge.app/bridge/internal/model"
	"taskbridge.app/bridge/internal/store"
)

// EventSource is the feed consumer surface the watcher needs. Mirrors
// feed.Consumer - defined here so tests can substitute an in-memory feed.
type EventSource interface {
	Read(ctx context.Context) ([]feed.Event, error)
	Ack(ctx context.Context, messageID string) error
}

// ActionClassifier mirrors brain.Classifier.
type ActionClassifier interface {
	Classify(ctx context.Context, window []model.ConversationEvent) (brain.Action, error)
}

// IssueResolver mirrors brain.Resolver.
type IssueResolver interface {
	Resolve(ctx context.Context, projectKey, queryText string) (string, error)
}

// WorkflowExecutor mirrors brain.Executor.
type WorkflowExecutor interface {
	Transition(ctx context.Context, issueKey, targetStatus string) model.TransitionResult
	CreateIssue(ctx context.Context, projectKey string, params brain.CreateIssueParams) (string, error)
	UpdateIssue(ctx context.Context, params brain.UpdateIssueParams) error
}

type Config struct {
	// StageTimeout bounds each pipeline stage (classify, resolve, execute)
	// independently so one stuck upstream call cannot stall the feed.
	StageTimeout time.Duration
	// ReconnectDelay is how long to wait before re-reading the feed after a
	// read error.
	ReconnectDelay time.Duration
}

type Watcher struct {
	source     EventSource
	classifier ActionClassifier
	resolver   IssueResolver
	executor   WorkflowExecutor
	projects   store.ProjectStore
	outcomes   store.OutcomeStore
	registry   *Registry
	cfg        Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(source EventSource, classifier ActionClassifier, resolver IssueResolver, executor WorkflowExecutor, projects store.ProjectStore, outcomes store.OutcomeStore, registry *Registry, cfg Config) *Watcher {
	return &Watcher{
		source:     source,
		classifier: classifier,
		resolver:   resolver,
		executor:   executor,
		projects:   projects,
		outcomes:   outcomes,
		registry:   registry,
		cfg:        cfg,
		stopCh:     make(chan struct{}),
		stoppedCh:  make(chan struct{}),
	}
}

// Run consumes the feed until the context is cancelled or Stop is called.
// Read errors back off for cfg.ReconnectDelay and recur; per-event errors
// are recorded as outcomes and never stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	slog.InfoContext(ctx, "watcher started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "watcher stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "feed read error, reconnecting",
					"error", err,
					"delay", w.cfg.ReconnectDelay)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-w.stopCh:
					return nil
				case <-time.After(w.cfg.ReconnectDelay):
				}
			}
		}
	}
}

func (w *Watcher) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Watcher) processOneBatch(ctx context.Context) error {
	events, err := w.source.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading feed: %w", err)
	}

	for _, event := range events {
		if err := w.handleEventSafe(ctx, event); err != nil {
			slog.ErrorContext(ctx, "event handling failed",
				"error", err,
				"event_id", event.ID,
				"conversation_id", event.Conversation.ConversationID)
		}
		// Ack regardless of outcome. Failures are recorded, not retried;
		// redelivering a failed classification would just repeat the failure.
		if ackErr := w.source.Ack(ctx, event.ID); ackErr != nil {
			slog.WarnContext(ctx, "failed to ack event",
				"error", ackErr,
				"event_id", event.ID)
		}
	}

	return nil
}

func (w *Watcher) handleEventSafe(ctx context.Context, event feed.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in event handling",
				"panic", r,
				"event_id", event.ID)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.handleEvent(ctx, event)
}

func (w *Watcher) handleEvent(ctx context.Context, event feed.Event) error {
	sc := logger.StartSpanFromTraceID(ctx, event.TraceID, "watcher.handle_event",
		trace.WithSpanKind(trace.SpanKindConsumer))
	defer sc.End()
	ctx = sc.Context()

	conv := event.Conversation
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ConversationID: logger.Ptr(conv.ConversationID),
		ProjectID:      logger.Ptr(conv.ProjectID),
		EventID:        logger.Ptr(event.ID),
		EventType:      logger.Ptr(event.Operation),
		Component:      "bridge.watcher",
	})

	if !event.IsMutation() {
		slog.DebugContext(ctx, "ignoring non-mutation event")
		return nil
	}

	if _, active := w.registry.Active(conv.ProjectID); !active {
		slog.DebugContext(ctx, "project not monitored, skipping")
		return nil
	}

	last, ok := conv.LastMessage()
	if !ok {
		slog.DebugContext(ctx, "conversation has no messages, skipping")
		return nil
	}
	if !model.IsUserRole(last.Role) {
		slog.DebugContext(ctx, "last message is not user-originated, skipping",
			"role", last.Role)
		return nil
	}

	trackerKey, err := w.projects.GetTrackerKey(ctx, conv.ProjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.WarnContext(ctx, "project has no tracker link, skipping")
			return nil
		}
		return fmt.Errorf("looking up tracker key: %w", err)
	}

	w.registry.Touch(conv.ProjectID)

	action, err := w.classify(ctx, conv)
	if err != nil {
		w.record(ctx, conv, brain.ActionTypeNone, "", model.ErrorResult(err.Error()))
		return fmt.Errorf("classifying message: %w", err)
	}
	if action.Type == brain.ActionTypeNone {
		slog.DebugContext(ctx, "no action implied by message")
		return nil
	}

	issueKey, result := w.execute(ctx, trackerKey, last.Content, action)
	ctx = logger.WithLogFields(ctx, logger.LogFields{IssueKey: logger.Ptr(issueKey)})

	w.record(ctx, conv, action.Type, issueKey, result)

	if result.Status == model.OutcomeError {
		slog.WarnContext(ctx, "workflow action failed",
			"action", string(action.Type),
			"message", result.Message)
	} else {
		slog.InfoContext(ctx, "workflow action handled",
			"action", string(action.Type),
			"status", string(result.Status))
	}

	return nil
}

func (w *Watcher) classify(ctx context.Context, conv model.Conversation) (brain.Action, error) {
	stageCtx, cancel := w.stage(ctx)
	defer cancel()
	return w.classifier.Classify(stageCtx, conv.Window(brain.ContextWindow))
}

// execute routes one classified action to the tracker. The returned result is
// what gets recorded in the outcome log; resolver misses come back as skipped
// rather than errors because "no matching issue" is a normal end state.
func (w *Watcher) execute(ctx context.Context, trackerKey, lastContent string, action brain.Action) (string, model.TransitionResult) {
	switch action.Type {
	case brain.ActionTypeFindIssue:
		params, err := brain.ParseActionData[brain.FindIssueParams](action)
		if err != nil {
			return "", model.ErrorResult(fmt.Sprintf("bad find_issue params: %v", err))
		}
		query := firstNonEmpty(params.UserText, lastContent)
		issueKey, result := w.resolve(ctx, trackerKey, query)
		if result != nil {
			return "", *result
		}
		return issueKey, w.transition(ctx, issueKey, brain.ProgressStatus(query))

	case brain.ActionTypeUpdateStatus:
		params, err := brain.ParseActionData[brain.UpdateStatusParams](action)
		if err != nil {
			return "", model.ErrorResult(fmt.Sprintf("bad update_status params: %v", err))
		}
		issueKey := params.IssueKey
		if issueKey == "" {
			query := firstNonEmpty(params.UserText, lastContent)
			var result *model.TransitionResult
			issueKey, result = w.resolve(ctx, trackerKey, query)
			if result != nil {
				return "", *result
			}
		}
		target := firstNonEmpty(params.NewStatus, brain.ProgressStatus(lastContent))
		return issueKey, w.transition(ctx, issueKey, target)

	case brain.ActionTypeCreateIssue:
		params, err := brain.ParseActionData[brain.CreateIssueParams](action)
		if err != nil {
			return "", model.ErrorResult(fmt.Sprintf("bad create_issue params: %v", err))
		}
		stageCtx, cancel := w.stage(ctx)
		defer cancel()
		issueKey, err := w.executor.CreateIssue(stageCtx, trackerKey, params)
		if err != nil {
			return "", model.ErrorResult(fmt.Sprintf("creating issue: %v", err))
		}
		return issueKey, model.SuccessResult(map[string]any{"issue_key": issueKey})

	case brain.ActionTypeUpdateIssue:
		params, err := brain.ParseActionData[brain.UpdateIssueParams](action)
		if err != nil {
			return "", model.ErrorResult(fmt.Sprintf("bad update_issue params: %v", err))
		}
		stageCtx, cancel := w.stage(ctx)
		defer cancel()
		if err := w.executor.UpdateIssue(stageCtx, params); err != nil {
			return params.IssueKey, model.ErrorResult(fmt.Sprintf("updating issue: %v", err))
		}
		return params.IssueKey, model.SuccessResult(nil)

	default:
		return "", model.ErrorResult(fmt.Sprintf("unroutable action %q", action.Type))
	}
}

// resolve returns the issue key, or a terminal result when resolution cannot
// continue (nil result means success).
func (w *Watcher) resolve(ctx context.Context, trackerKey, query string) (string, *model.TransitionResult) {
	stageCtx, cancel := w.stage(ctx)
	defer cancel()

	issueKey, err := w.resolver.Resolve(stageCtx, trackerKey, query)
	if err != nil {
		if errors.Is(err, brain.ErrNoMatch) {
			skipped := model.TransitionResult{
				Status:  model.OutcomeSkipped,
				Message: err.Error(),
			}
			return "", &skipped
		}
		failed := model.ErrorResult(fmt.Sprintf("resolving issue: %v", err))
		return "", &failed
	}
	return issueKey, nil
}

func (w *Watcher) transition(ctx context.Context, issueKey, targetStatus string) model.TransitionResult {
	stageCtx, cancel := w.stage(ctx)
	defer cancel()
	return w.executor.Transition(stageCtx, issueKey, targetStatus)
}

func (w *Watcher) stage(ctx context.Context) (context.Context, context.CancelFunc) {
	if w.cfg.StageTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, w.cfg.StageTimeout)
}

func (w *Watcher) record(ctx context.Context, conv model.Conversation, actionType brain.ActionType, issueKey string, result model.TransitionResult) {
	outcome := &model.Outcome{
		ConversationID: conv.ConversationID,
		ProjectID:      conv.ProjectID,
		ActionType:     string(actionType),
		IssueKey:       issueKey,
		Status:         result.Status,
		Message:        result.Message,
	}
	if err := w.outcomes.Record(ctx, outcome); err != nil {
		slog.ErrorContext(ctx, "failed to record outcome", "error", err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
