package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskbridge.app/bridge/internal/model"
)

type projectStore struct {
	pool *pgxpool.Pool
}

func newProjectStore(pool *pgxpool.Pool) ProjectStore {
	return &projectStore{pool: pool}
}

func (s *projectStore) GetTrackerKey(ctx context.Context, projectID string) (string, error) {
	var key string
	err := s.pool.QueryRow(ctx,
		`SELECT tracker_key FROM project_links WHERE project_id = $1`,
		projectID,
	).Scan(&key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return key, nil
}

func (s *projectStore) ListLinked(ctx context.Context) ([]model.ProjectLink, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT project_id, tracker_key, created_at FROM project_links ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []model.ProjectLink
	for rows.Next() {
		var link model.ProjectLink
		if err := rows.Scan(&link.ProjectID, &link.TrackerKey, &link.CreatedAt); err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func (s *projectStore) Link(ctx context.Context, link *model.ProjectLink) error {
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO project_links (project_id, tracker_key, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (project_id) DO UPDATE SET tracker_key = EXCLUDED.tracker_key`,
		link.ProjectID, link.TrackerKey, link.CreatedAt)
	return err
}

func (s *projectStore) Unlink(ctx context.Context, projectID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM project_links WHERE project_id = $1`, projectID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
