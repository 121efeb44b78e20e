package store

import (
	"context"
	"database/sql"

	"taskdeck/internal/apperr"
	"taskdeck/internal/domain"
)

const attachmentColumns = `id,task_id,author_id,file_name,file_size,COALESCE(content_type,''),created_at`

func scanAttachment(row interface{ Scan(...any) error }) (domain.Attachment, error) {
	var a domain.Attachment
	err := row.Scan(&a.ID, &a.TaskID, &a.AuthorID, &a.FileName, &a.FileSize, &a.ContentType, &a.CreatedAt)
	return a, err
}

func (s Store) InsertAttachment(ctx context.Context, a domain.Attachment) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO attachments(id,task_id,author_id,file_name,file_size,content_type,created_at) VALUES (?,?,?,?,?,?,?)`,
		a.ID, a.TaskID, a.AuthorID, a.FileName, a.FileSize, nullable(a.ContentType), a.CreatedAt)
	return classify(err)
}

func (s Store) GetAttachment(ctx context.Context, id string) (domain.Attachment, error) {
	a, err := scanAttachment(s.DB.QueryRowContext(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE id=?`, id))
	if err == sql.ErrNoRows {
		return a, apperr.NotFound(apperr.CodeAttachmentNotFound, "attachment not found")
	}
	return a, classify(err)
}

func (s Store) ListAttachmentsByTask(ctx context.Context, taskID string) ([]domain.Attachment, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE task_id=? ORDER BY created_at, id`, taskID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	var out []domain.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, classify(err)
		}
		out = append(out, a)
	}
	return out, classify(rows.Err())
}

func (s Store) CountAttachmentsByTask(ctx context.Context, taskID string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(id) FROM attachments WHERE task_id=?`, taskID).Scan(&n)
	return n, classify(err)
}

func (s Store) DeleteAttachment(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM attachments WHERE id=?`, id)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound(apperr.CodeAttachmentNotFound, "attachment not found")
	}
	return nil
}
