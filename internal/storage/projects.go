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

// CreateProject inserts a new design project and returns it.
func (db *DB) CreateProject(ctx context.Context, ownerID *string, name, description, databaseType string) (model.Project, error) {
	now := time.Now().UTC()
	p := model.Project{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		Name:         name,
		Description:  description,
		DatabaseType: databaseType,
		Status:       model.ProjectActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO projects (id, owner_id, name, description, database_type, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.OwnerID, p.Name, p.Description, p.DatabaseType, string(p.Status), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return model.Project{}, fmt.Errorf("storage: create project: %w", err)
	}
	return p, nil
}

// GetProject retrieves a project by ID.
func (db *DB) GetProject(ctx context.Context, id uuid.UUID) (model.Project, error) {
	var p model.Project
	err := db.pool.QueryRow(ctx,
		`SELECT id, owner_id, name, description, database_type, status, created_at, updated_at
		 FROM projects WHERE id = $1`, id,
	).Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.DatabaseType, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Project{}, ErrNotFound
		}
		return model.Project{}, fmt.Errorf("storage: get project: %w", err)
	}
	return p, nil
}

// ListProjects returns the owner's projects, newest first. A nil ownerID
// lists unowned projects.
func (db *DB) ListProjects(ctx context.Context, ownerID *string, limit, offset int) ([]model.Project, int, error) {
	if limit <= 0 {
		limit = 50
	}

	var total int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM projects WHERE owner_id IS NOT DISTINCT FROM $1`, ownerID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: count projects: %w", err)
	}

	rows, err := db.pool.Query(ctx,
		`SELECT id, owner_id, name, description, database_type, status, created_at, updated_at
		 FROM projects WHERE owner_id IS NOT DISTINCT FROM $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		ownerID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list projects: %w", err)
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.DatabaseType, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("storage: scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, total, rows.Err()
}

// UpdateProjectStatus moves a project to a new status.
func (db *DB) UpdateProjectStatus(ctx context.Context, id uuid.UUID, status model.ProjectStatus) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE projects SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("storage: update project status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
