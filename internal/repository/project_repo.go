package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"teamboard/internal/model"
)

type ProjectRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewProjectRepository(db *pgxpool.Pool, logger *zap.Logger) *ProjectRepository {
	return &ProjectRepository{db: db, logger: logger}
}

const projectColumns = `id, name, description, deadline, status, owner_id, member_ids, created_at, updated_at`

func scanProject(row pgx.Row) (*model.Project, error) {
	var p model.Project
	if err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Deadline,
		&p.Status,
		&p.OwnerID,
		&p.MemberIDs,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProjectRepository) Insert(ctx context.Context, p *model.Project) error {
	r.logger.Debug("Inserting project",
		zap.String("name", p.Name),
		zap.String("owner_id", p.OwnerID),
		zap.Int("members", len(p.MemberIDs)),
	)
	query := `
        INSERT INTO projects (id, name, description, deadline, status, owner_id, member_ids, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `
	_, err := r.db.Exec(ctx, query,
		p.ID,
		p.Name,
		p.Description,
		p.Deadline,
		p.Status,
		p.OwnerID,
		nonNil(p.MemberIDs),
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to insert project", zap.String("name", p.Name), zap.Error(err))
		return translate(err)
	}
	r.logger.Info("Project inserted successfully", zap.String("project_id", p.ID))
	return nil
}

func (r *ProjectRepository) FindByID(ctx context.Context, id string) (*model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	p, err := scanProject(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

// FindByIDs returns the projects that exist among ids.
func (r *ProjectRepository) FindByIDs(ctx context.Context, ids []string) ([]model.Project, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = ANY($1)`
	return r.list(ctx, query, ids)
}

// List returns all projects, most recently updated first. The workspace is shared.
func (r *ProjectRepository) List(ctx context.Context) ([]model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects ORDER BY updated_at DESC`
	return r.list(ctx, query)
}

// ListForUser returns projects where userID is owner or member.
func (r *ProjectRepository) ListForUser(ctx context.Context, userID string) ([]model.Project, error) {
	query := `SELECT ` + projectColumns + `
        FROM projects
        WHERE owner_id = $1 OR $1 = ANY(member_ids)
        ORDER BY created_at DESC`
	return r.list(ctx, query, userID)
}

func (r *ProjectRepository) list(ctx context.Context, query string, args ...any) ([]model.Project, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query projects", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			r.logger.Error("Failed to scan project row", zap.Error(err))
			return nil, err
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	r.logger.Debug("Projects listed", zap.Int("count", len(projects)))
	return projects, nil
}

// Update writes every mutable field of p.
func (r *ProjectRepository) Update(ctx context.Context, p *model.Project) error {
	r.logger.Debug("Updating project", zap.String("project_id", p.ID))
	query := `
        UPDATE projects
        SET name = $2, description = $3, deadline = $4, status = $5, member_ids = $6, updated_at = $7
        WHERE id = $1
    `
	tag, err := r.db.Exec(ctx, query, p.ID, p.Name, p.Description, p.Deadline, p.Status, nonNil(p.MemberIDs), p.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to update project", zap.String("project_id", p.ID), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	r.logger.Info("Project updated", zap.String("project_id", p.ID))
	return nil
}

// UpdateMembers replaces the member list.
func (r *ProjectRepository) UpdateMembers(ctx context.Context, id string, memberIDs []string) error {
	r.logger.Debug("Updating project members", zap.String("project_id", id), zap.Int("members", len(memberIDs)))
	tag, err := r.db.Exec(ctx,
		`UPDATE projects SET member_ids = $2, updated_at = NOW() WHERE id = $1`,
		id, nonNil(memberIDs),
	)
	if err != nil {
		r.logger.Error("Failed to update project members", zap.String("project_id", id), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatusFrom moves the status from one value to another. It reports
// false when the stored status is no longer from (or the project is gone).
// Used by the self-healing correction.
func (r *ProjectRepository) UpdateStatusFrom(ctx context.Context, id string, from, to model.ProjectStatus) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE projects SET status = $3 WHERE id = $1 AND status = $2`,
		id, from, to,
	)
	if err != nil {
		r.logger.Error("Failed to update project status",
			zap.String("project_id", id),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.Error(err),
		)
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	r.logger.Debug("Deleting project", zap.String("project_id", id))
	tag, err := r.db.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete project", zap.String("project_id", id), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	r.logger.Info("Project deleted", zap.String("project_id", id))
	return nil
}

func (r *ProjectRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM projects`).Scan(&n)
	return n, err
}

// CountPeople counts distinct users that own or belong to any project.
func (r *ProjectRepository) CountPeople(ctx context.Context) (int, error) {
	query := `
        SELECT COUNT(DISTINCT uid) FROM (
            SELECT owner_id AS uid FROM projects
            UNION
            SELECT UNNEST(member_ids) AS uid FROM projects
        ) people
    `
	var n int
	err := r.db.QueryRow(ctx, query).Scan(&n)
	return n, err
}
