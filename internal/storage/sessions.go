package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/sekkei/internal/model"
)

// CreateSession records the start of a streaming run under a project.
func (db *DB) CreateSession(ctx context.Context, id, projectID uuid.UUID, prompt, databaseType string, startedAt time.Time) (model.SessionRecord, error) {
	rec := model.SessionRecord{
		ID:           id,
		ProjectID:    projectID,
		Prompt:       prompt,
		DatabaseType: databaseType,
		Status:       model.SessionRunning,
		StartedAt:    startedAt.UTC(),
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO sessions (id, project_id, prompt, database_type, status, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.ProjectID, rec.Prompt, rec.DatabaseType, string(rec.Status), rec.StartedAt,
	)
	if err != nil {
		return model.SessionRecord{}, fmt.Errorf("storage: create session: %w", err)
	}
	return rec, nil
}

// CompleteSession marks a running session finished. Idempotent against
// repeated completion: a second call finds no running row and reports
// ErrNotFound.
func (db *DB) CompleteSession(ctx context.Context, id uuid.UUID, status model.SessionStatus) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE sessions SET status = $1, completed_at = $2
		 WHERE id = $3 AND status = 'running'`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("storage: complete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSession retrieves a session record by ID.
func (db *DB) GetSession(ctx context.Context, id uuid.UUID) (model.SessionRecord, error) {
	var rec model.SessionRecord
	err := db.pool.QueryRow(ctx,
		`SELECT id, project_id, prompt, database_type, status, started_at, completed_at
		 FROM sessions WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.ProjectID, &rec.Prompt, &rec.DatabaseType, &rec.Status, &rec.StartedAt, &rec.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.SessionRecord{}, ErrNotFound
		}
		return model.SessionRecord{}, fmt.Errorf("storage: get session: %w", err)
	}
	return rec, nil
}

// ListSessionsByProject returns a project's sessions, newest first.
func (db *DB) ListSessionsByProject(ctx context.Context, projectID uuid.UUID) ([]model.SessionRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, project_id, prompt, database_type, status, started_at, completed_at
		 FROM sessions WHERE project_id = $1
		 ORDER BY started_at DESC`, projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list sessions: %w", err)
	}
	defer rows.Close()

	var recs []model.SessionRecord
	for rows.Next() {
		var rec model.SessionRecord
		if err := rows.Scan(&rec.ID, &rec.ProjectID, &rec.Prompt, &rec.DatabaseType, &rec.Status, &rec.StartedAt, &rec.CompletedAt); err != nil {
			return nil, fmt.Errorf("storage: scan session: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
