package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/nabil/devstash/internal/apperror"
	"github.com/nabil/devstash/internal/model"
	"github.com/nabil/devstash/internal/repository"
)

var _ repository.ProjectRepository = (*ProjectRepo)(nil)

// ProjectRepo implements repository.ProjectRepository on the shared
// connection.
type ProjectRepo struct {
	conn *sql.DB
}

// NewProjectRepo creates the project repository over an open database.
func NewProjectRepo(db *DB) *ProjectRepo {
	return &ProjectRepo{conn: db.conn}
}

// Create inserts a new project, assigning its id and timestamps.
func (r *ProjectRepo) Create(ctx context.Context, project *model.Project) error {
	project.ID = xid.New().String()

	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now

	_, err := r.conn.ExecContext(ctx,
		`INSERT INTO projects (id, name, description, user_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		project.ID,
		project.Name,
		project.Description,
		project.UserID,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating project: %w", err)
	}

	return nil
}

func (r *ProjectRepo) GetByID(ctx context.Context, id string) (*model.Project, error) {
	var p model.Project
	err := r.conn.QueryRowContext(ctx,
		`SELECT id, name, description, user_id, created_at, updated_at
		 FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.UserID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("project", id)
		}
		return nil, fmt.Errorf("sqlite: getting project %s: %w", id, err)
	}
	return &p, nil
}

// Update refreshes updatedAt; the owner column is never written.
func (r *ProjectRepo) Update(ctx context.Context, project *model.Project) error {
	project.UpdatedAt = time.Now()

	result, err := r.conn.ExecContext(ctx,
		`UPDATE projects SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		project.Name,
		project.Description,
		project.UpdatedAt,
		project.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating project %s: %w", project.ID, err)
	}

	return checkAffected(result, "project", project.ID)
}

// Delete removes the project row only. Items referencing it keep their
// dangling project_id and classify as uncategorized from then on.
func (r *ProjectRepo) Delete(ctx context.Context, id string) error {
	result, err := r.conn.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting project %s: %w", id, err)
	}
	return checkAffected(result, "project", id)
}

func (r *ProjectRepo) ListByUser(ctx context.Context, userID string) ([]model.Project, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT id, name, description, user_id, created_at, updated_at
		 FROM projects WHERE user_id = ? ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing projects: %w", err)
	}
	defer rows.Close()

	projects := make([]model.Project, 0, 8)
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.UserID,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning project row: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating projects: %w", err)
	}

	return projects, nil
}

// Restore inserts or replaces a project preserving id and createdAt.
func (r *ProjectRepo) Restore(ctx context.Context, project *model.Project) error {
	project.UpdatedAt = time.Now()

	_, err := r.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO projects (id, name, description, user_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		project.ID,
		project.Name,
		project.Description,
		project.UserID,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: restoring project %s: %w", project.ID, err)
	}

	return nil
}
