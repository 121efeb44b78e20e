package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"taskdeck/internal/apperr"
	"taskdeck/internal/domain"
)

const projectColumns = `id,organization_id,name,COALESCE(description,''),created_at`

func scanProject(row interface{ Scan(...any) error }) (domain.Project, error) {
	var p domain.Project
	err := row.Scan(&p.ID, &p.OrgID, &p.Name, &p.Description, &p.CreatedAt)
	return p, err
}

func (s Store) InsertProject(ctx context.Context, p domain.Project) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO projects(id,organization_id,name,description,created_at) VALUES (?,?,?,?,?)`,
		p.ID, p.OrgID, p.Name, nullable(p.Description), p.CreatedAt)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return apperr.Conflict(apperr.CodeProjectNameExists, "project name already exists in organization")
	}
	return classify(err)
}

func (s Store) GetProject(ctx context.Context, id string) (domain.Project, error) {
	p, err := scanProject(s.DB.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=?`, id))
	if err == sql.ErrNoRows {
		return p, apperr.NotFound(apperr.CodeProjectNotFound, "project not found")
	}
	return p, classify(err)
}

func (s Store) UpdateProject(ctx context.Context, id string, name, description *string) error {
	var (
		fields []string
		args   []any
	)
	if name != nil {
		fields = append(fields, "name=?")
		args = append(args, *name)
	}
	if description != nil {
		fields = append(fields, "description=?")
		args = append(args, nullable(*description))
	}
	if len(fields) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := s.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE projects SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperr.Conflict(apperr.CodeProjectNameExists, "project name already exists in organization")
		}
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound(apperr.CodeProjectNotFound, "project not found")
	}
	return nil
}

func (s Store) DeleteProject(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM projects WHERE id=?`, id)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound(apperr.CodeProjectNotFound, "project not found")
	}
	return nil
}

func (s Store) ListProjectsByOrganization(ctx context.Context, orgID string) ([]domain.Project, error) {
	return s.listProjects(ctx, `SELECT `+projectColumns+` FROM projects WHERE organization_id=? ORDER BY created_at DESC`, orgID)
}

// ListProjectsForMember returns the projects in orgID where userID holds a
// membership row.
func (s Store) ListProjectsForMember(ctx context.Context, orgID, userID string) ([]domain.Project, error) {
	return s.listProjects(ctx, `
SELECT p.id,p.organization_id,p.name,COALESCE(p.description,''),p.created_at
FROM projects p
JOIN project_members pm ON pm.project_id=p.id
WHERE p.organization_id=? AND pm.user_id=?
ORDER BY p.created_at DESC`, orgID, userID)
}

func (s Store) listProjects(ctx context.Context, query string, args ...any) ([]domain.Project, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	var out []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, classify(err)
		}
		out = append(out, p)
	}
	return out, classify(rows.Err())
}
