package store

import (
	"context"
	"database/sql"
	"strings"

	"taskdeck/internal/apperr"
	"taskdeck/internal/domain"
)

// TaskFilter narrows project task listings. Zero values mean "no filter";
// Limit 0 falls back to 100 like the REST default.
type TaskFilter struct {
	Status     domain.Status
	AssigneeID string
	Priority   domain.Priority
	Skip       int
	Limit      int
}

const taskColumns = `id,project_id,creator_id,assignee_id,status,priority,due_date,title,COALESCE(description,''),created_at,updated_at`

func scanTask(row interface{ Scan(...any) error }) (domain.Task, error) {
	var t domain.Task
	var assignee, due sql.NullString
	err := row.Scan(&t.ID, &t.ProjectID, &t.CreatorID, &assignee, &t.Status, &t.Priority,
		&due, &t.Title, &t.Description, &t.CreatedAt, &t.UpdatedAt)
	if assignee.Valid {
		t.AssigneeID = &assignee.String
	}
	if due.Valid {
		t.DueDate = &due.String
	}
	return t, err
}

func (s Store) InsertTask(ctx context.Context, t domain.Task) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO tasks(id,project_id,creator_id,assignee_id,status,priority,due_date,title,description,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.ProjectID, t.CreatorID, nullablePtr(t.AssigneeID), t.Status, t.Priority,
		nullablePtr(t.DueDate), t.Title, nullable(t.Description), t.CreatedAt, t.UpdatedAt)
	return classify(err)
}

func (s Store) GetTask(ctx context.Context, id string) (domain.Task, error) {
	t, err := scanTask(s.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
	if err == sql.ErrNoRows {
		return t, apperr.NotFound(apperr.CodeTaskNotFound, "task not found")
	}
	return t, classify(err)
}

// UpdateTask writes the full mutable row; the engine owns the merge of
// partial updates onto the stored task.
func (s Store) UpdateTask(ctx context.Context, t domain.Task) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE tasks SET assignee_id=?,status=?,priority=?,due_date=?,title=?,description=?,updated_at=? WHERE id=?`,
		nullablePtr(t.AssigneeID), t.Status, t.Priority, nullablePtr(t.DueDate),
		t.Title, nullable(t.Description), t.UpdatedAt, t.ID)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound(apperr.CodeTaskNotFound, "task not found")
	}
	return nil
}

func (s Store) DeleteTask(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound(apperr.CodeTaskNotFound, "task not found")
	}
	return nil
}

// SetTaskAssignee sets or clears the assignee column only.
func (s Store) SetTaskAssignee(ctx context.Context, id string, assigneeID *string, updatedAt string) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE tasks SET assignee_id=?,updated_at=? WHERE id=?`,
		nullablePtr(assigneeID), updatedAt, id)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound(apperr.CodeTaskNotFound, "task not found")
	}
	return nil
}

// ListTasks returns project tasks matching the filter, newest first.
func (s Store) ListTasks(ctx context.Context, projectID string, f TaskFilter) ([]domain.Task, error) {
	clauses := []string{"project_id=?"}
	args := []any{projectID}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.AssigneeID != "" {
		clauses = append(clauses, "assignee_id=?")
		args = append(args, f.AssigneeID)
	}
	if f.Priority != "" {
		clauses = append(clauses, "priority=?")
		args = append(args, f.Priority)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(clauses, " AND ") +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, f.Skip)
	return s.listTasks(ctx, query, args...)
}

// GetTasksByIDs batch-loads tasks; absent IDs are silently skipped, the
// caller reconciles order against its own ID list.
func (s Store) GetTasksByIDs(ctx context.Context, ids []string) (map[string]domain.Task, error) {
	if len(ids) == 0 {
		return map[string]domain.Task{}, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	out := make(map[string]domain.Task, len(ids))
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, classify(err)
		}
		out[t.ID] = t
	}
	return out, classify(rows.Err())
}

// CountTasksByStatus groups task counts for a project. Statuses with no
// tasks are zero-filled by the caller.
func (s Store) CountTasksByStatus(ctx context.Context, projectID string) (map[domain.Status]int, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT status, COUNT(id) FROM tasks WHERE project_id=? GROUP BY status`, projectID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	out := map[domain.Status]int{}
	for rows.Next() {
		var st domain.Status
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, classify(err)
		}
		out[st] = n
	}
	return out, classify(rows.Err())
}

// ListOverdueTasks returns tasks past due and not done, oldest due first.
func (s Store) ListOverdueTasks(ctx context.Context, projectID, now string) ([]domain.Task, error) {
	return s.listTasks(ctx, `SELECT `+taskColumns+` FROM tasks
WHERE project_id=? AND due_date IS NOT NULL AND due_date < ? AND status != ?
ORDER BY due_date, id`, projectID, now, domain.StatusDone)
}

func (s Store) ListTasksByAssignee(ctx context.Context, assigneeID string, status domain.Status) ([]domain.Task, error) {
	if status != "" {
		return s.listTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE assignee_id=? AND status=? ORDER BY created_at DESC`, assigneeID, status)
	}
	return s.listTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE assignee_id=? ORDER BY created_at DESC`, assigneeID)
}

func (s Store) ListTasksByCreator(ctx context.Context, creatorID string, status domain.Status) ([]domain.Task, error) {
	if status != "" {
		return s.listTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE creator_id=? AND status=? ORDER BY created_at DESC`, creatorID, status)
	}
	return s.listTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE creator_id=? ORDER BY created_at DESC`, creatorID)
}

func (s Store) listTasks(ctx context.Context, query string, args ...any) ([]domain.Task, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	var out []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, classify(err)
		}
		out = append(out, t)
	}
	return out, classify(rows.Err())
}
