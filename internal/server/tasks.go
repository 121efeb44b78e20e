package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"taskdeck/internal/domain"
	"taskdeck/internal/engine"
	"taskdeck/internal/store"
)

// rawFieldPresent distinguishes a JSON field explicitly set to null from
// one that was omitted, which a decoded *string cannot express.
func rawFieldPresent(raw []byte, field string) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return false
	}
	_, ok := m[field]
	return ok
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string            `path:"project_id"`
		Body      CreateTaskRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.TaskCreateOptions{
			Title:      input.Body.Title,
			DueDate:    input.Body.DueDate,
			AssigneeID: input.Body.AssigneeID,
		}
		if input.Body.Description != nil {
			opts.Description = *input.Body.Description
		}
		if input.Body.Status != nil {
			opts.Status = domain.Status(*input.Body.Status)
		}
		if input.Body.Priority != nil {
			opts.Priority = domain.Priority(*input.Body.Priority)
		}
		t, err := e.CreateTask(ctx, p, input.ProjectID, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/tasks",
		Summary:     "List tasks",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID  string `path:"project_id"`
		Status     string `query:"status" enum:",todo,in-progress,done"`
		AssigneeID string `query:"assignee_id"`
		Priority   string `query:"priority" enum:",low,medium,high"`
		Skip       int    `query:"skip" default:"0" minimum:"0"`
		Limit      int    `query:"limit" default:"100" minimum:"1" maximum:"500"`
	}) (*struct {
		Body []TaskResponse `json:"body"`
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		tasks, err := e.ListProjectTasks(ctx, p, input.ProjectID, store.TaskFilter{
			Status:     domain.Status(input.Status),
			AssigneeID: input.AssigneeID,
			Priority:   domain.Priority(input.Priority),
			Skip:       input.Skip,
			Limit:      input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TaskResponse `json:"body"`
		}{Body: mapTasks(tasks)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.GetTask(ctx, p, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{task_id}",
		Summary:     "Update task",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		TaskID  string            `path:"task_id"`
		RawBody []byte            `contentType:"application/json"`
		Body    UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.TaskUpdateOptions{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			DueDate:     input.Body.DueDate,
		}
		if input.Body.Status != nil {
			st := domain.Status(*input.Body.Status)
			opts.Status = &st
		}
		if input.Body.Priority != nil {
			pr := domain.Priority(*input.Body.Priority)
			opts.Priority = &pr
		}
		if rawFieldPresent(input.RawBody, "assignee_id") {
			opts.Assign = &input.Body.AssigneeID
		}
		t, err := e.UpdateTask(ctx, p, input.TaskID, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task-status",
		Method:      http.MethodPatch,
		Path:        "/tasks/{task_id}/status",
		Summary:     "Update task status",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		TaskID string                  `path:"task_id"`
		Body   UpdateTaskStatusRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.UpdateTaskStatus(ctx, p, input.TaskID, domain.Status(input.Body.Status))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/assign",
		Summary:     "Assign or unassign task",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		TaskID string            `path:"task_id"`
		Body   AssignTaskRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.AssignTask(ctx, p, input.TaskID, input.Body.AssigneeID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-task",
		Method:        http.MethodDelete,
		Path:          "/tasks/{task_id}",
		Summary:       "Delete task",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct{}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteTask(ctx, p, input.TaskID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-my-assigned-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks/assigned",
		Summary:     "List tasks assigned to the caller",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:",todo,in-progress,done"`
	}) (*struct {
		Body []TaskResponse `json:"body"`
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		tasks, err := e.ListTasksByAssignee(ctx, p, p.UserID, domain.Status(input.Status))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TaskResponse `json:"body"`
		}{Body: mapTasks(tasks)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-my-created-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks/created",
		Summary:     "List tasks created by the caller",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:",todo,in-progress,done"`
	}) (*struct {
		Body []TaskResponse `json:"body"`
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		tasks, err := e.ListTasksByCreator(ctx, p, p.UserID, domain.Status(input.Status))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TaskResponse `json:"body"`
		}{Body: mapTasks(tasks)}, nil
	})
}

func registerComments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-comment",
		Method:        http.MethodPost,
		Path:          "/tasks/{task_id}/comments",
		Summary:       "Comment on task",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		TaskID string               `path:"task_id"`
		Body   CreateCommentRequest `json:"body"`
	}) (*struct {
		Body CommentResponse `json:"body"`
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.CreateComment(ctx, p, input.TaskID, input.Body.Content)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CommentResponse `json:"body"`
		}{Body: commentResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-comments",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}/comments",
		Summary:     "List task comments",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct {
		Body []CommentResponse `json:"body"`
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		comments, err := e.ListTaskComments(ctx, p, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []CommentResponse `json:"body"`
		}{Body: mapComments(comments)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-comment",
		Method:        http.MethodDelete,
		Path:          "/comments/{comment_id}",
		Summary:       "Delete comment",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CommentID string `path:"comment_id"`
	}) (*struct{}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteComment(ctx, p, input.CommentID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerAttachments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-attachment",
		Method:        http.MethodPost,
		Path:          "/tasks/{task_id}/attachments",
		Summary:       "Register task attachment",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		TaskID string                  `path:"task_id"`
		Body   CreateAttachmentRequest `json:"body"`
	}) (*struct {
		Body AttachmentResponse `json:"body"`
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.AddAttachment(ctx, p, input.TaskID, engine.AttachmentOptions{
			FileName:    input.Body.FileName,
			FileSize:    input.Body.FileSize,
			ContentType: input.Body.ContentType,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AttachmentResponse `json:"body"`
		}{Body: attachmentResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-attachments",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}/attachments",
		Summary:     "List task attachments",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct {
		Body []AttachmentResponse `json:"body"`
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListTaskAttachments(ctx, p, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []AttachmentResponse `json:"body"`
		}{Body: mapAttachments(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-attachment",
		Method:        http.MethodDelete,
		Path:          "/attachments/{attachment_id}",
		Summary:       "Delete attachment",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AttachmentID string `path:"attachment_id"`
	}) (*struct{}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteAttachment(ctx, p, input.AttachmentID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
