package engine

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"taskdeck/internal/apperr"
	"taskdeck/internal/domain"
)

// CreateComment adds a comment to a task the caller can view.
func (e Engine) CreateComment(ctx context.Context, p domain.Principal, taskID, content string) (domain.Comment, error) {
	if _, err := e.Guard.TaskView(ctx, p, taskID); err != nil {
		return domain.Comment{}, err
	}
	if strings.TrimSpace(content) == "" {
		return domain.Comment{}, apperr.Validation(apperr.CodeValidation, "comment content is required")
	}
	c := domain.Comment{
		ID:        uuid.New().String(),
		TaskID:    taskID,
		AuthorID:  p.UserID,
		Content:   content,
		CreatedAt: e.nowString(),
	}
	if err := e.Store.InsertComment(ctx, c); err != nil {
		return domain.Comment{}, err
	}
	return c, nil
}

func (e Engine) ListTaskComments(ctx context.Context, p domain.Principal, taskID string) ([]domain.Comment, error) {
	if _, err := e.Guard.TaskView(ctx, p, taskID); err != nil {
		return nil, err
	}
	return e.Store.ListCommentsByTask(ctx, taskID)
}

func (e Engine) DeleteComment(ctx context.Context, p domain.Principal, commentID string) error {
	if _, err := e.Guard.CommentDelete(ctx, p, commentID); err != nil {
		return err
	}
	return e.Store.DeleteComment(ctx, commentID)
}

// AttachmentOptions describe the file metadata recorded for a task.
// Content bytes are stored elsewhere; the engine only validates and
// registers metadata.
type AttachmentOptions struct {
	FileName    string
	FileSize    int64
	ContentType string
}

func extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

func (e Engine) validateAttachment(ctx context.Context, taskID string, opts AttachmentOptions) error {
	if opts.FileName == "" {
		return apperr.Validation(apperr.CodeValidation, "file name is required")
	}
	ext := extension(opts.FileName)
	allowed := false
	for _, a := range e.Config.AllowedExtensionList() {
		if ext == a {
			allowed = true
			break
		}
	}
	if !allowed {
		return apperr.Validation(apperr.CodeInvalidFileType, "file type %q is not allowed", ext)
	}
	if opts.FileSize > e.Config.MaxFileSize {
		return apperr.Validation(apperr.CodeFileTooLarge, "file exceeds the maximum size of %d bytes", e.Config.MaxFileSize)
	}
	n, err := e.Store.CountAttachmentsByTask(ctx, taskID)
	if err != nil {
		return err
	}
	if n >= e.Config.MaxFilesPerTask {
		return apperr.Validation(apperr.CodeTooManyAttachments, "task already has the maximum of %d attachments", e.Config.MaxFilesPerTask)
	}
	return nil
}

// AddAttachment records attachment metadata after validating the file
// type, size and per-task count limits.
func (e Engine) AddAttachment(ctx context.Context, p domain.Principal, taskID string, opts AttachmentOptions) (domain.Attachment, error) {
	if _, err := e.Guard.TaskView(ctx, p, taskID); err != nil {
		return domain.Attachment{}, err
	}
	if err := e.validateAttachment(ctx, taskID, opts); err != nil {
		return domain.Attachment{}, err
	}
	a := domain.Attachment{
		ID:          uuid.New().String(),
		TaskID:      taskID,
		AuthorID:    p.UserID,
		FileName:    opts.FileName,
		FileSize:    opts.FileSize,
		ContentType: opts.ContentType,
		CreatedAt:   e.nowString(),
	}
	if err := e.Store.InsertAttachment(ctx, a); err != nil {
		return domain.Attachment{}, err
	}
	return a, nil
}

func (e Engine) ListTaskAttachments(ctx context.Context, p domain.Principal, taskID string) ([]domain.Attachment, error) {
	if _, err := e.Guard.TaskView(ctx, p, taskID); err != nil {
		return nil, err
	}
	return e.Store.ListAttachmentsByTask(ctx, taskID)
}

func (e Engine) DeleteAttachment(ctx context.Context, p domain.Principal, attachmentID string) error {
	if _, err := e.Guard.AttachmentDelete(ctx, p, attachmentID); err != nil {
		return err
	}
	return e.Store.DeleteAttachment(ctx, attachmentID)
}
