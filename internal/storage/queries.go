package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/sekkei/internal/model"
)

// CreateQuery stores one completed task's generated content under its
// session. SequenceNum preserves task order for replay.
func (db *DB) CreateQuery(ctx context.Context, sessionID uuid.UUID, taskID model.TaskID, sequenceNum int, content string) (model.Query, error) {
	q := model.Query{
		ID:          uuid.New(),
		SessionID:   sessionID,
		TaskID:      taskID,
		SequenceNum: sequenceNum,
		Content:     content,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO queries (id, session_id, task_id, sequence_num, content, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		q.ID, q.SessionID, string(q.TaskID), q.SequenceNum, q.Content, q.CreatedAt,
	)
	if err != nil {
		return model.Query{}, fmt.Errorf("storage: create query: %w", err)
	}
	return q, nil
}

// ListQueriesBySession returns a session's stored task outputs in task
// order.
func (db *DB) ListQueriesBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Query, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, session_id, task_id, sequence_num, content, created_at
		 FROM queries WHERE session_id = $1
		 ORDER BY sequence_num ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list queries: %w", err)
	}
	defer rows.Close()

	var queries []model.Query
	for rows.Next() {
		var q model.Query
		if err := rows.Scan(&q.ID, &q.SessionID, &q.TaskID, &q.SequenceNum, &q.Content, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan query: %w", err)
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}
