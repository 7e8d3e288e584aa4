package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"taskbridge.app/bridge/common/id"
	"taskbridge.app/bridge/internal/model"
)

type outcomeStore struct {
	pool *pgxpool.Pool
}

func newOutcomeStore(pool *pgxpool.Pool) OutcomeStore {
	return &outcomeStore{pool: pool}
}

func (s *outcomeStore) Record(ctx context.Context, outcome *model.Outcome) error {
	if outcome.ID == 0 {
		outcome.ID = id.New()
	}
	if outcome.CreatedAt.IsZero() {
		outcome.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO outcomes (id, conversation_id, project_id, action_type, issue_key, status, message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		outcome.ID,
		outcome.ConversationID,
		outcome.ProjectID,
		outcome.ActionType,
		outcome.IssueKey,
		outcome.Status,
		outcome.Message,
		outcome.CreatedAt)
	return err
}

func (s *outcomeStore) ListByProject(ctx context.Context, projectID string, limit int32) ([]model.Outcome, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, project_id, action_type, issue_key, status, message, created_at
		 FROM outcomes
		 WHERE project_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []model.Outcome
	for rows.Next() {
		var o model.Outcome
		if err := rows.Scan(&o.ID, &o.ConversationID, &o.ProjectID, &o.ActionType,
			&o.IssueKey, &o.Status, &o.Message, &o.CreatedAt); err != nil {
			return nil, err
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}
