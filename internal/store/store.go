// Package store is the single source of truth: plain SQL over SQLite for
// every relational entity. Not-found and integrity failures surface as
// typed apperr errors so callers never see driver error shapes.
package store

import (
	"context"
	"database/sql"
	"strings"

	"taskdeck/internal/apperr"
	"taskdeck/internal/domain"
)

type Store struct {
	DB *sql.DB
}

func New(db *sql.DB) Store {
	return Store{DB: db}
}

// classify reclassifies SQLite integrity violations into the typed
// taxonomy so storage error shapes never leak upward.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return apperr.Conflict(apperr.CodeUniqueViolation, "unique constraint violation")
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return apperr.Conflict(apperr.CodeForeignKeyViolation, "foreign key violation")
	case strings.Contains(msg, "constraint failed"):
		return apperr.Conflict(apperr.CodeIntegrityError, "database integrity error")
	}
	return apperr.Uncategorized("storage: %v", err)
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullablePtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

// --- organizations ---

func (s Store) InsertOrganization(ctx context.Context, o domain.Organization) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO organizations(id,name,created_at) VALUES (?,?,?)`,
		o.ID, o.Name, o.CreatedAt)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return apperr.Conflict(apperr.CodeOrgNameExists, "organization name already exists")
	}
	return classify(err)
}

func (s Store) GetOrganization(ctx context.Context, id string) (domain.Organization, error) {
	var o domain.Organization
	err := s.DB.QueryRowContext(ctx, `SELECT id,name,created_at FROM organizations WHERE id=?`, id).
		Scan(&o.ID, &o.Name, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return o, apperr.NotFound(apperr.CodeOrgNotFound, "organization not found")
	}
	return o, classify(err)
}

// --- users ---

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var u domain.User
	var active int
	err := row.Scan(&u.ID, &u.OrgID, &u.Name, &u.Email, &u.Role, &active, &u.CreatedAt)
	u.IsActive = active != 0
	return u, err
}

const userColumns = `id,organization_id,name,email,role,is_active,created_at`

func (s Store) InsertUser(ctx context.Context, u domain.User) error {
	active := 0
	if u.IsActive {
		active = 1
	}
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users(`+userColumns+`) VALUES (?,?,?,?,?,?,?)`,
		u.ID, u.OrgID, u.Name, u.Email, u.Role, active, u.CreatedAt)
	return classify(err)
}

func (s Store) GetUser(ctx context.Context, id string) (domain.User, error) {
	u, err := scanUser(s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id))
	if err == sql.ErrNoRows {
		return u, apperr.NotFound(apperr.CodeUserNotFound, "user not found")
	}
	return u, classify(err)
}

func (s Store) ListUsersByOrganization(ctx context.Context, orgID string) ([]domain.User, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE organization_id=? ORDER BY created_at`, orgID)
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
