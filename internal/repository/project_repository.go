package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/lib/pq"

	"github.com/aryan0dhankhar/projecthub/internal/domain"
)

const projectColumns = `id, project_id, seq, title, description, status, start_date, end_date,
	created_by, member_ids, created_at, updated_at`

// PostgresProjectRepository implements domain.ProjectRepository using PostgreSQL
type PostgresProjectRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresProjectRepository creates a new project repository
func NewPostgresProjectRepository(db *sql.DB, logger *slog.Logger) *PostgresProjectRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresProjectRepository{db: db, logger: logger}
}

func scanProject(row rowScanner) (*domain.Project, error) {
	p := &domain.Project{}
	var status string
	if err := row.Scan(
		&p.ID,
		&p.ProjectID,
		&p.Seq,
		&p.Title,
		&p.Description,
		&status,
		&p.StartDate,
		&p.EndDate,
		&p.CreatedBy,
		pq.Array(&p.MemberIDs),
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Status = domain.Status(status)
	return p, nil
}

// memberIDArray never returns a nil array: pq encodes nil as NULL and the column is NOT NULL.
func memberIDArray(ids []string) any {
	if ids == nil {
		ids = []string{}
	}
	return pq.Array(ids)
}

func projectNotFound() error {
	return domain.NewError(domain.ErrNotFound, "Project not found")
}

// Create inserts a project. A title collision surfaces as domain.ErrDuplicateTitle.
func (r *PostgresProjectRepository) Create(ctx context.Context, project *domain.Project) error {
	query := `
		INSERT INTO projects (project_id, seq, title, description, status, start_date, end_date, created_by, member_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		project.ProjectID,
		project.Seq,
		project.Title,
		project.Description,
		string(project.Status),
		project.StartDate,
		project.EndDate,
		project.CreatedBy,
		memberIDArray(project.MemberIDs),
	).Scan(&project.ID, &project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		err = translateError("create project", err)
		if errors.Is(err, ErrSequenceOutOfSync) {
			r.logger.Error("project id collision: sequence backend out of sync",
				slog.String("project_id", project.ProjectID),
				slog.Int64("seq", project.Seq),
				slog.String("counter", domain.ProjectCounter),
			)
			return err
		}
		r.logger.Error("failed to create project",
			slog.String("project_id", project.ProjectID),
			slog.String("error", err.Error()),
		)
		return err
	}

	return nil
}

// GetByID retrieves a project by its internal id
func (r *PostgresProjectRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	return r.getOne(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
}

// GetByProjectID retrieves a project by its PRJ-NNN id
func (r *PostgresProjectRepository) GetByProjectID(ctx context.Context, projectID string) (*domain.Project, error) {
	return r.getOne(ctx, `SELECT `+projectColumns+` FROM projects WHERE project_id = $1`, projectID)
}

func (r *PostgresProjectRepository) getOne(ctx context.Context, query, id string) (*domain.Project, error) {
	p, err := scanProject(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, projectNotFound()
		}
		r.logger.Error("failed to get project",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, translateError("get project", err)
	}
	return p, nil
}

// ExistsByTitle reports whether a project already uses title
func (r *PostgresProjectRepository) ExistsByTitle(ctx context.Context, title string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM projects WHERE title = $1)`, title).Scan(&exists)
	if err != nil {
		return false, translateError("check project title", err)
	}
	return exists, nil
}

// List returns all projects, most recently created first
func (r *PostgresProjectRepository) List(ctx context.Context) ([]*domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects ORDER BY created_at DESC, seq DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("failed to list projects", slog.String("error", err.Error()))
		return nil, translateError("list projects", err)
	}
	defer rows.Close()

	var out []*domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, translateError("scan project", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("list projects", err)
	}
	return out, nil
}

// Update persists the patchable fields. project_id, seq and created_by are never written.
func (r *PostgresProjectRepository) Update(ctx context.Context, project *domain.Project) error {
	query := `
		UPDATE projects
		SET title = $1, description = $2, status = $3, start_date = $4, end_date = $5,
		    member_ids = $6, updated_at = now()
		WHERE id = $7
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		project.Title,
		project.Description,
		string(project.Status),
		project.StartDate,
		project.EndDate,
		memberIDArray(project.MemberIDs),
		project.ID,
	).Scan(&project.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return projectNotFound()
		}
		return translateError("update project", err)
	}
	return nil
}

// Delete removes a project. Members are never touched.
func (r *PostgresProjectRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return translateError("delete project", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return translateError("delete project", err)
	}
	if rows == 0 {
		return projectNotFound()
	}
	return nil
}
