package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"taskdeck/internal/engine"
	"taskdeck/internal/notify"
)

func registerReports(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "task-count-by-status",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/reports/task-count-by-status",
		Summary:     "Task count by status",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body map[string]int `json:"body"`
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		counts, err := e.StatusReport(ctx, p, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make(map[string]int, len(counts))
		for st, n := range counts {
			out[string(st)] = n
		}
		return &struct {
			Body map[string]int `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "overdue-tasks",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/reports/overdue-tasks",
		Summary:     "Overdue task report",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []OverdueTaskResponse `json:"body"`
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rows, err := e.OverdueReport(ctx, p, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []OverdueTaskResponse `json:"body"`
		}{Body: mapOverdue(rows)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "task-statistics",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/reports/statistics",
		Summary:     "Task statistics",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body map[string]int `json:"body"`
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		stats, err := e.TaskStatistics(ctx, p, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]int `json:"body"`
		}{Body: stats}, nil
	})
}

// registerNotifications exposes the caller's own notification feed. There
// is no cross-user access by construction: the user id always comes from
// the principal.
func registerNotifications(api huma.API, ns *notify.Store) {
	if ns == nil {
		return
	}

	huma.Register(api, huma.Operation{
		OperationID: "list-notifications",
		Method:      http.MethodGet,
		Path:        "/notifications",
		Summary:     "List caller notifications",
	}, func(ctx context.Context, input *struct {
		Skip  int `query:"skip" default:"0" minimum:"0"`
		Limit int `query:"limit" default:"50" minimum:"1" maximum:"200"`
	}) (*struct {
		Body []NotificationResponse `json:"body"`
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := ns.List(ctx, p.UserID, input.Skip, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []NotificationResponse `json:"body"`
		}{Body: mapNotifications(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "unread-notification-count",
		Method:      http.MethodGet,
		Path:        "/notifications/unread-count",
		Summary:     "Unread notification count",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]int `json:"body"`
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		n, err := ns.UnreadCount(ctx, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]int `json:"body"`
		}{Body: map[string]int{"unread": n}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mark-notification-read",
		Method:      http.MethodPost,
		Path:        "/notifications/{notification_id}/read",
		Summary:     "Mark notification read",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		NotificationID string `path:"notification_id"`
	}) (*struct {
		Body NotificationResponse `json:"body"`
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := ns.MarkRead(ctx, p.UserID, input.NotificationID); err != nil {
			return nil, handleError(err)
		}
		n, err := ns.Get(ctx, p.UserID, input.NotificationID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body NotificationResponse `json:"body"`
		}{Body: notificationResponse(n)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mark-all-notifications-read",
		Method:      http.MethodPost,
		Path:        "/notifications/read-all",
		Summary:     "Mark all notifications read",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]int `json:"body"`
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		updated, err := ns.MarkAllRead(ctx, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]int `json:"body"`
		}{Body: map[string]int{"updated": updated}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-notification",
		Method:        http.MethodDelete,
		Path:          "/notifications/{notification_id}",
		Summary:       "Delete notification",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		NotificationID string `path:"notification_id"`
	}) (*struct{}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := ns.Delete(ctx, p.UserID, input.NotificationID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
