package store

import (
	"context"
	"database/sql"
	"strings"

	"taskdeck/internal/apperr"
	"taskdeck/internal/domain"
)

// AddMember inserts the (project, user) pair. Duplicate membership is a
// conflict.
func (s Store) AddMember(ctx context.Context, projectID, userID, createdAt string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO project_members(project_id,user_id,created_at) VALUES (?,?,?)`,
		projectID, userID, createdAt)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return apperr.Conflict(apperr.CodeUserAlreadyInProject, "user is already a member of this project")
	}
	return classify(err)
}

// RemoveMember deletes the pair; removing a non-member is an error.
func (s Store) RemoveMember(ctx context.Context, projectID, userID string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM project_members WHERE project_id=? AND user_id=?`,
		projectID, userID)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound(apperr.CodeUserNotInProject, "user is not a member of this project")
	}
	return nil
}

func (s Store) IsMember(ctx context.Context, projectID, userID string) (bool, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT 1 FROM project_members WHERE project_id=? AND user_id=? LIMIT 1`,
		projectID, userID).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, classify(err)
	}
	return true, nil
}

func (s Store) ListMembers(ctx context.Context, projectID string) ([]domain.User, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT u.id,u.organization_id,u.name,u.email,u.role,u.is_active,u.created_at
FROM users u
JOIN project_members pm ON pm.user_id=u.id
WHERE pm.project_id=?
ORDER BY pm.created_at`, projectID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, classify(err)
		}
		out = append(out, u)
	}
	return out, classify(rows.Err())
}

// RoleInProject returns the user's organization role if they are a member
// of the project, or nil when they are not.
func (s Store) RoleInProject(ctx context.Context, projectID, userID string) (*domain.Role, error) {
	var role domain.Role
	err := s.DB.QueryRowContext(ctx, `
SELECT u.role FROM users u
JOIN project_members pm ON pm.user_id=u.id
WHERE pm.project_id=? AND pm.user_id=?`, projectID, userID).Scan(&role)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return &role, nil
}
