package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/sekkei/internal/model"
)

// maxRetainedTranscripts caps how many transcripts one owner keeps; the
// oldest beyond the cap are evicted on insert.
const maxRetainedTranscripts = 100

// SaveTranscript upserts a transcript and evicts the owner's oldest
// transcripts beyond the retention cap, in one transaction.
func (db *DB) SaveTranscript(ctx context.Context, t model.Transcript) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin save transcript: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO transcripts
		   (id, owner_id, prompt, database_type, title, generated_content, insights, tasks, status, metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO UPDATE SET
		   title = EXCLUDED.title,
		   generated_content = EXCLUDED.generated_content,
		   insights = EXCLUDED.insights,
		   tasks = EXCLUDED.tasks,
		   status = EXCLUDED.status,
		   metadata = EXCLUDED.metadata,
		   updated_at = EXCLUDED.updated_at`,
		t.ID, t.OwnerID, t.Prompt, t.DatabaseType, t.Title,
		t.GeneratedContent, t.Insights, t.Tasks, string(t.Status), t.Metadata,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: save transcript: %w", err)
	}

	// Evict oldest-by-creation rows beyond the cap for this owner.
	_, err = tx.Exec(ctx,
		`DELETE FROM transcripts WHERE id IN (
		   SELECT id FROM transcripts
		   WHERE owner_id IS NOT DISTINCT FROM $1
		   ORDER BY created_at DESC
		   OFFSET $2
		 )`,
		t.OwnerID, maxRetainedTranscripts,
	)
	if err != nil {
		return fmt.Errorf("storage: evict transcripts: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit save transcript: %w", err)
	}
	return nil
}

// GetTranscript retrieves a transcript by ID.
func (db *DB) GetTranscript(ctx context.Context, id uuid.UUID) (model.Transcript, error) {
	var t model.Transcript
	err := db.pool.QueryRow(ctx,
		`SELECT id, owner_id, prompt, database_type, title, generated_content, insights, tasks, status, metadata, created_at, updated_at
		 FROM transcripts WHERE id = $1`, id,
	).Scan(
		&t.ID, &t.OwnerID, &t.Prompt, &t.DatabaseType, &t.Title,
		&t.GeneratedContent, &t.Insights, &t.Tasks, &t.Status, &t.Metadata,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Transcript{}, ErrNotFound
		}
		return model.Transcript{}, fmt.Errorf("storage: get transcript: %w", err)
	}
	return t, nil
}

// ListTranscripts returns the owner's transcripts, newest first.
func (db *DB) ListTranscripts(ctx context.Context, ownerID *string) ([]model.Transcript, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, owner_id, prompt, database_type, title, generated_content, insights, tasks, status, metadata, created_at, updated_at
		 FROM transcripts WHERE owner_id IS NOT DISTINCT FROM $1
		 ORDER BY created_at DESC`, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list transcripts: %w", err)
	}
	defer rows.Close()
	return scanTranscripts(rows)
}

// DeleteTranscript removes a transcript by ID.
func (db *DB) DeleteTranscript(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM transcripts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("storage: delete transcript: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SearchTranscripts matches the query text against title and prompt,
// case-insensitively, scoped to the owner. Newest first.
func (db *DB) SearchTranscripts(ctx context.Context, query string, ownerID *string) ([]model.Transcript, error) {
	pattern := "%" + query + "%"
	rows, err := db.pool.Query(ctx,
		`SELECT id, owner_id, prompt, database_type, title, generated_content, insights, tasks, status, metadata, created_at, updated_at
		 FROM transcripts
		 WHERE owner_id IS NOT DISTINCT FROM $1 AND (title ILIKE $2 OR prompt ILIKE $2)
		 ORDER BY created_at DESC`,
		ownerID, pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: search transcripts: %w", err)
	}
	defer rows.Close()
	return scanTranscripts(rows)
}

func scanTranscripts(rows pgx.Rows) ([]model.Transcript, error) {
	var out []model.Transcript
	for rows.Next() {
		var t model.Transcript
		if err := rows.Scan(
			&t.ID, &t.OwnerID, &t.Prompt, &t.DatabaseType, &t.Title,
			&t.GeneratedContent, &t.Insights, &t.Tasks, &t.Status, &t.Metadata,
			&t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan transcript: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
