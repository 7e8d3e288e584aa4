package handler_test

import (
	"context"

	"taskbridge.app/bridge/internal/model"
	"taskbridge.app/bridge/internal/store"
)

type mockProjectStore struct {
	getTrackerKeyFn func(ctx context.Context, projectID string) (string, error)
	linkFn          func(ctx context.Context, link *model.ProjectLink) error
	unlinkFn        func(ctx context.Context, projectID string) error
	listLinkedFn    func(ctx context.Context) ([]model.ProjectLink, error)
}

func (m *mockProjectStore) GetTrackerKey(ctx context.Context, projectID string) (string, error) {
	if m.getTrackerKeyFn != nil {
		return m.getTrackerKeyFn(ctx, projectID)
	}
	return "", store.ErrNotFound
}

func (m *mockProjectStore) Link(ctx context.Context, link *model.ProjectLink) error {
	if m.linkFn != nil {
		return m.linkFn(ctx, link)
	}
	return nil
}

func (m *mockProjectStore) Unlink(ctx context.Context, projectID string) error {
	if m.unlinkFn != nil {
		return m.unlinkFn(ctx, projectID)
	}
	return nil
}

func (m *mockProjectStore) ListLinked(ctx context.Context) ([]model.ProjectLink, error) {
	if m.listLinkedFn != nil {
		return m.listLinkedFn(ctx)
	}
	return nil, nil
}

type mockOutcomeStore struct {
	recordFn        func(ctx context.Context, outcome *model.Outcome) error
	listByProjectFn func(ctx context.Context, projectID string, limit int32) ([]model.Outcome, error)
}

func (m *mockOutcomeStore) Record(ctx context.Context, outcome *model.Outcome) error {
	if m.recordFn != nil {
		return m.recordFn(ctx, outcome)
	}
	return nil
}

func (m *mockOutcomeStore) ListByProject(ctx context.Context, projectID string, limit int32) ([]model.Outcome, error) {
	if m.listByProjectFn != nil {
		return m.listByProjectFn(ctx, projectID, limit)
	}
	return nil, nil
}
