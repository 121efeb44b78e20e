package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"taskdeck/internal/apperr"
	"taskdeck/internal/domain"
)

// transitions is the allowed-next-state table. Self-transitions are
// always permitted and checked before this table is consulted.
var transitions = map[domain.Status][]domain.Status{
	domain.StatusTodo:       {domain.StatusInProgress},
	domain.StatusInProgress: {domain.StatusTodo, domain.StatusDone},
	domain.StatusDone:       {domain.StatusInProgress},
}

func ensureTransition(from, to domain.Status) error {
	if from == to {
		return nil
	}
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return apperr.Validation(apperr.CodeInvalidTransition, "cannot transition from %s to %s", from, to)
}

// parseDueDate accepts RFC3339 or a naive timestamp, which is treated as
// UTC.
func parseDueDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, apperr.Validation(apperr.CodeInvalidDueDate, "invalid due date format")
}

// normalizeDueDate validates a due date and canonicalizes it to UTC
// RFC3339. Stored due dates are compared as text, so every accepted
// offset must collapse to the same representation.
func (e Engine) normalizeDueDate(s string) (string, error) {
	due, err := parseDueDate(s)
	if err != nil {
		return "", err
	}
	if due.Before(e.now().UTC()) {
		return "", apperr.Validation(apperr.CodeInvalidDueDate, "due date cannot be in the past")
	}
	return due.UTC().Format(time.RFC3339), nil
}

func (e Engine) ensureAssigneeIsMember(ctx context.Context, projectID, assigneeID string) error {
	ok, err := e.Store.IsMember(ctx, projectID, assigneeID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Validation(apperr.CodeAssigneeNotInProject, "assignee is not a member of this project")
	}
	return nil
}

// notifyAssigned fires the task-assignment notification. Fire-and-forget:
// a delivery failure is logged and never fails the mutation that caused
// it.
func (e Engine) notifyAssigned(ctx context.Context, assigneeID string, task domain.Task) {
	err := e.Notifier.Notify(ctx, assigneeID, "Task Assigned",
		"You have been assigned to task: "+task.Title, "task_assigned", task.ID)
	if err != nil {
		e.Log.WithError(err).WithField("task_id", task.ID).Warn("assignment notification failed")
	}
}

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	Title       string
	Description string
	Status      domain.Status
	Priority    domain.Priority
	DueDate     *string
	AssigneeID  *string
}

func (e Engine) CreateTask(ctx context.Context, p domain.Principal, projectID string, opts TaskCreateOptions) (domain.Task, error) {
	if _, err := e.Guard.ProjectTaskManage(ctx, p, projectID); err != nil {
		return domain.Task{}, err
	}
	if opts.Title == "" {
		return domain.Task{}, apperr.Validation(apperr.CodeValidation, "title is required")
	}
	if opts.Status == "" {
		opts.Status = domain.StatusTodo
	}
	if !opts.Status.Valid() {
		return domain.Task{}, apperr.Validation(apperr.CodeValidation, "invalid status %q", opts.Status)
	}
	if opts.Priority == "" {
		opts.Priority = domain.PriorityMedium
	}
	if !opts.Priority.Valid() {
		return domain.Task{}, apperr.Validation(apperr.CodeValidation, "invalid priority %q", opts.Priority)
	}
	if opts.DueDate != nil {
		due, err := e.normalizeDueDate(*opts.DueDate)
		if err != nil {
			return domain.Task{}, err
		}
		opts.DueDate = &due
	}
	if opts.AssigneeID != nil {
		if err := e.ensureAssigneeIsMember(ctx, projectID, *opts.AssigneeID); err != nil {
			return domain.Task{}, err
		}
	}
	now := e.nowString()
	t := domain.Task{
		ID:          uuid.New().String(),
		ProjectID:   projectID,
		CreatorID:   p.UserID,
		AssigneeID:  opts.AssigneeID,
		Status:      opts.Status,
		Priority:    opts.Priority,
		DueDate:     opts.DueDate,
		Title:       opts.Title,
		Description: opts.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Store.InsertTask(ctx, t); err != nil {
		return domain.Task{}, err
	}
	e.invalidateProjectCaches(ctx, projectID)
	if t.AssigneeID != nil {
		e.notifyAssigned(ctx, *t.AssigneeID, t)
	}
	return t, nil
}

func (e Engine) GetTask(ctx context.Context, p domain.Principal, taskID string) (domain.Task, error) {
	return e.Guard.TaskView(ctx, p, taskID)
}

// TaskUpdateOptions is a partial update; nil fields are left untouched.
// Assign carries a pointer-to-pointer so "clear the assignee" (non-nil
// holding nil) is distinguishable from "leave it alone" (nil).
type TaskUpdateOptions struct {
	Title       *string
	Description *string
	Status      *domain.Status
	Priority    *domain.Priority
	DueDate     *string
	Assign      **string
}

// UpdateTask applies a partial update under task-manage authorization.
// A provided status is validated against the task's current stored
// status, and a provided assignee must be a project member.
func (e Engine) UpdateTask(ctx context.Context, p domain.Principal, taskID string, opts TaskUpdateOptions) (domain.Task, error) {
	t, err := e.Guard.TaskManage(ctx, p, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	assigned := false
	if opts.Status != nil {
		if !opts.Status.Valid() {
			return domain.Task{}, apperr.Validation(apperr.CodeValidation, "invalid status %q", *opts.Status)
		}
		if err := ensureTransition(t.Status, *opts.Status); err != nil {
			return domain.Task{}, err
		}
		t.Status = *opts.Status
	}
	if opts.Priority != nil {
		if !opts.Priority.Valid() {
			return domain.Task{}, apperr.Validation(apperr.CodeValidation, "invalid priority %q", *opts.Priority)
		}
		t.Priority = *opts.Priority
	}
	if opts.DueDate != nil {
		due, err := e.normalizeDueDate(*opts.DueDate)
		if err != nil {
			return domain.Task{}, err
		}
		t.DueDate = &due
	}
	if opts.Title != nil {
		if *opts.Title == "" {
			return domain.Task{}, apperr.Validation(apperr.CodeValidation, "title is required")
		}
		t.Title = *opts.Title
	}
	if opts.Description != nil {
		t.Description = *opts.Description
	}
	if opts.Assign != nil {
		if *opts.Assign != nil {
			if err := e.ensureAssigneeIsMember(ctx, t.ProjectID, **opts.Assign); err != nil {
				return domain.Task{}, err
			}
			assigned = true
		}
		t.AssigneeID = *opts.Assign
	}
	t.UpdatedAt = e.nowString()
	if err := e.Store.UpdateTask(ctx, t); err != nil {
		return domain.Task{}, err
	}
	e.invalidateProjectCaches(ctx, t.ProjectID)
	if assigned {
		e.notifyAssigned(ctx, *t.AssigneeID, t)
	}
	return t, nil
}

// UpdateTaskStatus moves a task through the state machine. Members may
// call this for tasks assigned to them; the transition is validated
// against the current stored status.
func (e Engine) UpdateTaskStatus(ctx context.Context, p domain.Principal, taskID string, status domain.Status) (domain.Task, error) {
	t, err := e.Guard.TaskStatusUpdate(ctx, p, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if !status.Valid() {
		return domain.Task{}, apperr.Validation(apperr.CodeValidation, "invalid status %q", status)
	}
	if err := ensureTransition(t.Status, status); err != nil {
		return domain.Task{}, err
	}
	t.Status = status
	t.UpdatedAt = e.nowString()
	if err := e.Store.UpdateTask(ctx, t); err != nil {
		return domain.Task{}, err
	}
	e.invalidateProjectCaches(ctx, t.ProjectID)
	return t, nil
}

// DeleteTask removes a task when the caller created it or holds
// task-manage access to its project.
func (e Engine) DeleteTask(ctx context.Context, p domain.Principal, taskID string) error {
	t, err := e.Guard.TaskInOrg(ctx, p, taskID)
	if err != nil {
		return err
	}
	if t.CreatorID != p.UserID {
		if _, err := e.Guard.TaskManage(ctx, p, taskID); err != nil {
			return err
		}
	}
	if err := e.Store.DeleteTask(ctx, taskID); err != nil {
		return err
	}
	e.invalidateProjectCaches(ctx, t.ProjectID)
	return nil
}

// AssignTask sets or clears the assignee under task-manage authorization.
// It intentionally does NOT re-validate project membership of the new
// assignee; the create/update paths are responsible for that check. Known
// gap carried over from the observed behavior.
func (e Engine) AssignTask(ctx context.Context, p domain.Principal, taskID string, assigneeID *string) (domain.Task, error) {
	t, err := e.Guard.TaskManage(ctx, p, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	t.AssigneeID = assigneeID
	t.UpdatedAt = e.nowString()
	if err := e.Store.SetTaskAssignee(ctx, taskID, assigneeID, t.UpdatedAt); err != nil {
		return domain.Task{}, err
	}
	e.invalidateProjectCaches(ctx, t.ProjectID)
	if assigneeID != nil {
		e.notifyAssigned(ctx, *assigneeID, t)
	}
	return t, nil
}
