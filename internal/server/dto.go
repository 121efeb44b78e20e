package server

import (
	"taskdeck/internal/domain"
	"taskdeck/internal/engine"
)

// Request payloads

type CreateOrganizationRequest struct {
	Name string `json:"name"`
}

type CreateProjectRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

type AddMemberRequest struct {
	UserID string `json:"user_id"`
}

type CreateTaskRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty" enum:"todo,in-progress,done"`
	Priority    *string `json:"priority,omitempty" enum:"low,medium,high"`
	DueDate     *string `json:"due_date,omitempty"`
	AssigneeID  *string `json:"assignee_id,omitempty"`
}

type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty" enum:"todo,in-progress,done"`
	Priority    *string `json:"priority,omitempty" enum:"low,medium,high"`
	DueDate     *string `json:"due_date,omitempty"`
	AssigneeID  *string `json:"assignee_id,omitempty"`
}

type UpdateTaskStatusRequest struct {
	Status string `json:"status" enum:"todo,in-progress,done"`
}

type AssignTaskRequest struct {
	AssigneeID *string `json:"assignee_id"`
}

type CreateCommentRequest struct {
	Content string `json:"content"`
}

type CreateAttachmentRequest struct {
	FileName    string `json:"file_name"`
	FileSize    int64  `json:"file_size"`
	ContentType string `json:"content_type,omitempty"`
}

// Response payloads

type OrganizationResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type UserResponse struct {
	ID       string `json:"id"`
	OrgID    string `json:"organization_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role" enum:"admin,manager,member"`
	IsActive bool   `json:"is_active"`
}

type ProjectResponse struct {
	ID          string `json:"id"`
	OrgID       string `json:"organization_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type TaskResponse struct {
	ID          string  `json:"id"`
	ProjectID   string  `json:"project_id"`
	CreatorID   string  `json:"creator_id"`
	AssigneeID  *string `json:"assignee_id,omitempty"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Status      string  `json:"status" enum:"todo,in-progress,done"`
	Priority    string  `json:"priority" enum:"low,medium,high"`
	DueDate     *string `json:"due_date,omitempty"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

type OverdueTaskResponse struct {
	TaskResponse
	DaysOverdue int `json:"days_overdue"`
}

type CommentResponse struct {
	ID        string `json:"id"`
	TaskID    string `json:"task_id"`
	AuthorID  string `json:"author_id"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type AttachmentResponse struct {
	ID          string `json:"id"`
	TaskID      string `json:"task_id"`
	AuthorID    string `json:"author_id"`
	FileName    string `json:"file_name"`
	FileSize    int64  `json:"file_size"`
	ContentType string `json:"content_type,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type NotificationResponse struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Message   string  `json:"message"`
	Type      string  `json:"type"`
	RelatedID *string `json:"related_id,omitempty"`
	IsRead    bool    `json:"is_read"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

func organizationResponse(o domain.Organization) OrganizationResponse {
	return OrganizationResponse{ID: o.ID, Name: o.Name, CreatedAt: o.CreatedAt}
}

func userResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:       u.ID,
		OrgID:    u.OrgID,
		Name:     u.Name,
		Email:    u.Email,
		Role:     string(u.Role),
		IsActive: u.IsActive,
	}
}

func mapUsers(items []domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(items))
	for _, u := range items {
		out = append(out, userResponse(u))
	}
	return out
}

func projectResponse(p domain.Project) ProjectResponse {
	return ProjectResponse{
		ID:          p.ID,
		OrgID:       p.OrgID,
		Name:        p.Name,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
	}
}

func mapProjects(items []domain.Project) []ProjectResponse {
	out := make([]ProjectResponse, 0, len(items))
	for _, p := range items {
		out = append(out, projectResponse(p))
	}
	return out
}

func taskResponse(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		CreatorID:   t.CreatorID,
		AssigneeID:  t.AssigneeID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		DueDate:     t.DueDate,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func mapTasks(items []domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(items))
	for _, t := range items {
		out = append(out, taskResponse(t))
	}
	return out
}

func mapOverdue(items []engine.OverdueTask) []OverdueTaskResponse {
	out := make([]OverdueTaskResponse, 0, len(items))
	for _, t := range items {
		out = append(out, OverdueTaskResponse{TaskResponse: taskResponse(t.Task), DaysOverdue: t.DaysOverdue})
	}
	return out
}

func commentResponse(c domain.Comment) CommentResponse {
	return CommentResponse{ID: c.ID, TaskID: c.TaskID, AuthorID: c.AuthorID, Content: c.Content, CreatedAt: c.CreatedAt}
}

func mapComments(items []domain.Comment) []CommentResponse {
	out := make([]CommentResponse, 0, len(items))
	for _, c := range items {
		out = append(out, commentResponse(c))
	}
	return out
}

func attachmentResponse(a domain.Attachment) AttachmentResponse {
	return AttachmentResponse{
		ID:          a.ID,
		TaskID:      a.TaskID,
		AuthorID:    a.AuthorID,
		FileName:    a.FileName,
		FileSize:    a.FileSize,
		ContentType: a.ContentType,
		CreatedAt:   a.CreatedAt,
	}
}

func mapAttachments(items []domain.Attachment) []AttachmentResponse {
	out := make([]AttachmentResponse, 0, len(items))
	for _, a := range items {
		out = append(out, attachmentResponse(a))
	}
	return out
}

func notificationResponse(n domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      n.Type,
		RelatedID: n.RelatedID,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

func mapNotifications(items []domain.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, notificationResponse(n))
	}
	return out
}
