package store

import (
	"context"
	"errors"

	"taskbridge.app/bridge/core/db"
	"taskbridge.app/bridge/internal/model"
)

var ErrNotFound = errors.New("not found")

type ProjectStore interface {
	// GetTrackerKey resolves a conversation-side project id to the tracker
	// project key its issues live under.
	GetTrackerKey(ctx context.Context, projectID string) (string, error)
	ListLinked(ctx context.Context) ([]model.ProjectLink, error)
	Link(ctx context.Context, link *model.ProjectLink) error
	Unlink(ctx context.Context, projectID string) error
}

type OutcomeStore interface {
	Record(ctx context.Context, outcome *model.Outcome) error
	ListByProject(ctx context.Context, projectID string, limit int32) ([]model.Outcome, error)
}

type Stores struct {
	projects ProjectStore
	outcomes OutcomeStore
}

func New(database *db.DB) *Stores {
	return &Stores{
		projects: newProjectStore(database.Pool()),
		outcomes: newOutcomeStore(database.Pool()),
	}
}

func (s *Stores) Projects() ProjectStore { return s.projects }
func (s *Stores) Outcomes() OutcomeStore { return s.outcomes }
