package store

import (
	"context"
	"database/sql"

	"taskdeck/internal/apperr"
	"taskdeck/internal/domain"
)

func (s Store) InsertComment(ctx context.Context, c domain.Comment) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO comments(id,task_id,author_id,content,created_at) VALUES (?,?,?,?,?)`,
		c.ID, c.TaskID, c.AuthorID, c.Content, c.CreatedAt)
	return classify(err)
}

func (s Store) GetComment(ctx context.Context, id string) (domain.Comment, error) {
	var c domain.Comment
	err := s.DB.QueryRowContext(ctx, `SELECT id,task_id,author_id,content,created_at FROM comments WHERE id=?`, id).
		Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Content, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return c, apperr.NotFound(apperr.CodeCommentNotFound, "comment not found")
	}
	return c, classify(err)
}

func (s Store) ListCommentsByTask(ctx context.Context, taskID string) ([]domain.Comment, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id,task_id,author_id,content,created_at FROM comments WHERE task_id=? ORDER BY created_at, id`, taskID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	var out []domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Content, &c.CreatedAt); err != nil {
			return nil, classify(err)
		}
		out = append(out, c)
	}
	return out, classify(rows.Err())
}

func (s Store) DeleteComment(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM comments WHERE id=?`, id)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound(apperr.CodeCommentNotFound, "comment not found")
	}
	return nil
}
