// Package local provides a single-file SQLite transcript store for
// deployments without Postgres. It mirrors the Postgres transcript
// surface, including the per-owner retention cap, so the two stores are
// interchangeable behind the same interface.
package local

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ashita-ai/sekkei/internal/model"
	"github.com/ashita-ai/sekkei/internal/storage"
)

const maxRetainedTranscripts = 100

const schema = `
CREATE TABLE IF NOT EXISTS transcripts (
    id TEXT PRIMARY KEY,
    owner_id TEXT,
    prompt TEXT NOT NULL,
    database_type TEXT NOT NULL,
    title TEXT NOT NULL,
    generated_content TEXT NOT NULL,
    insights TEXT NOT NULL,
    tasks TEXT NOT NULL,
    status TEXT NOT NULL,
    metadata TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transcripts_owner_created ON transcripts (owner_id, created_at);
`

// Store is a SQLite-backed transcript store. Safe for concurrent use;
// database/sql serializes access to the single connection.
type Store struct {
	db *sql.DB
}

// Open creates or opens the store at path. ":memory:" gives an
// ephemeral store for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("local: open %s: %w", path, err)
	}
	// modernc sqlite does not support concurrent writers on one file.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("local: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database file is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("local: ping: %w", err)
	}
	return nil
}

// SaveTranscript upserts a transcript and evicts the owner's oldest
// beyond the retention cap.
func (s *Store) SaveTranscript(ctx context.Context, t model.Transcript) error {
	content, insights, tasks, metadata, err := encodeJSON(t)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("local: begin save transcript: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO transcripts
		   (id, owner_id, prompt, database_type, title, generated_content, insights, tasks, status, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   title = excluded.title,
		   generated_content = excluded.generated_content,
		   insights = excluded.insights,
		   tasks = excluded.tasks,
		   status = excluded.status,
		   metadata = excluded.metadata,
		   updated_at = excluded.updated_at`,
		t.ID.String(), ownerArg(t.OwnerID), t.Prompt, t.DatabaseType, t.Title,
		content, insights, tasks, string(t.Status), metadata,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("local: save transcript: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM transcripts WHERE id IN (
		   SELECT id FROM transcripts
		   WHERE owner_id IS ?
		   ORDER BY created_at DESC
		   LIMIT -1 OFFSET ?
		 )`,
		ownerArg(t.OwnerID), maxRetainedTranscripts,
	)
	if err != nil {
		return fmt.Errorf("local: evict transcripts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("local: commit save transcript: %w", err)
	}
	return nil
}

// GetTranscript retrieves a transcript by ID.
func (s *Store) GetTranscript(ctx context.Context, id uuid.UUID) (model.Transcript, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, prompt, database_type, title, generated_content, insights, tasks, status, metadata, created_at, updated_at
		 FROM transcripts WHERE id = ?`, id.String(),
	)
	t, err := scanTranscript(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Transcript{}, storage.ErrNotFound
		}
		return model.Transcript{}, fmt.Errorf("local: get transcript: %w", err)
	}
	return t, nil
}

// ListTranscripts returns the owner's transcripts, newest first.
func (s *Store) ListTranscripts(ctx context.Context, ownerID *string) ([]model.Transcript, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, prompt, database_type, title, generated_content, insights, tasks, status, metadata, created_at, updated_at
		 FROM transcripts WHERE owner_id IS ?
		 ORDER BY created_at DESC`, ownerArg(ownerID),
	)
	if err != nil {
		return nil, fmt.Errorf("local: list transcripts: %w", err)
	}
	defer rows.Close()
	return collectTranscripts(rows)
}

// DeleteTranscript removes a transcript by ID.
func (s *Store) DeleteTranscript(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transcripts WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("local: delete transcript: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("local: delete transcript: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SearchTranscripts matches the query text against title and prompt,
// case-insensitively, scoped to the owner.
func (s *Store) SearchTranscripts(ctx context.Context, query string, ownerID *string) ([]model.Transcript, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, prompt, database_type, title, generated_content, insights, tasks, status, metadata, created_at, updated_at
		 FROM transcripts
		 WHERE owner_id IS ? AND (lower(title) LIKE ? OR lower(prompt) LIKE ?)
		 ORDER BY created_at DESC`,
		ownerArg(ownerID), pattern, pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("local: search transcripts: %w", err)
	}
	defer rows.Close()
	return collectTranscripts(rows)
}

// ownerArg maps a nil owner to SQL NULL.
func ownerArg(ownerID *string) any {
	if ownerID == nil {
		return nil
	}
	return *ownerID
}

func encodeJSON(t model.Transcript) (content, insights, tasks, metadata []byte, err error) {
	if content, err = json.Marshal(t.GeneratedContent); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("local: encode content: %w", err)
	}
	if insights, err = json.Marshal(t.Insights); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("local: encode insights: %w", err)
	}
	if tasks, err = json.Marshal(t.Tasks); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("local: encode tasks: %w", err)
	}
	if metadata, err = json.Marshal(t.Metadata); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("local: encode metadata: %w", err)
	}
	return content, insights, tasks, metadata, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTranscript(row rowScanner) (model.Transcript, error) {
	var (
		t        model.Transcript
		idStr    string
		owner    sql.NullString
		content  []byte
		insights []byte
		tasks    []byte
		metadata []byte
	)
	if err := row.Scan(
		&idStr, &owner, &t.Prompt, &t.DatabaseType, &t.Title,
		&content, &insights, &tasks, &t.Status, &metadata,
		&t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return model.Transcript{}, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return model.Transcript{}, fmt.Errorf("parse id: %w", err)
	}
	t.ID = id
	if owner.Valid {
		t.OwnerID = &owner.String
	}
	if err := json.Unmarshal(content, &t.GeneratedContent); err != nil {
		return model.Transcript{}, fmt.Errorf("decode content: %w", err)
	}
	if err := json.Unmarshal(insights, &t.Insights); err != nil {
		return model.Transcript{}, fmt.Errorf("decode insights: %w", err)
	}
	if err := json.Unmarshal(tasks, &t.Tasks); err != nil {
		return model.Transcript{}, fmt.Errorf("decode tasks: %w", err)
	}
	if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
		return model.Transcript{}, fmt.Errorf("decode metadata: %w", err)
	}
	return t, nil
}

func collectTranscripts(rows *sql.Rows) ([]model.Transcript, error) {
	var out []model.Transcript
	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			return nil, fmt.Errorf("local: scan transcript: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
