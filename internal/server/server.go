// Package server exposes the REST API. Handlers stay thin: decode, hand
// the principal and payload to the engine, encode. All policy lives below
// this layer.
package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"taskdeck/internal/apperr"
	"taskdeck/internal/auth"
	"taskdeck/internal/engine"
	"taskdeck/internal/notify"
)

// Config for the HTTP API handler.
type Config struct {
	Engine        engine.Engine
	Notifications *notify.Store
	Resolver      auth.Resolver
	BasePath      string
}

type apiErrorBody struct {
	Code    int            `json:"code" example:"2004"`
	Message string         `json:"message" example:"cannot transition from todo to done"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError is the error envelope every failure is rendered as.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the TaskDeck API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, 0, msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			// Schema validation failures render as plain 400s.
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, 0, msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Resolver))
	hcfg := huma.DefaultConfig("TaskDeck API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerOrganizations(group, cfg.Engine)
	registerUsers(group, cfg.Engine)
	registerProjects(group, cfg.Engine)
	registerMembers(group, cfg.Engine)
	registerTasks(group, cfg.Engine)
	registerComments(group, cfg.Engine)
	registerAttachments(group, cfg.Engine)
	registerReports(group, cfg.Engine)
	registerNotifications(group, cfg.Notifications)

	return router, nil
}

func newAPIError(status, code int, message string, details map[string]any) huma.StatusError {
	if code == 0 {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func defaultCodeForStatus(status int) int {
	switch status {
	case http.StatusBadRequest:
		return apperr.CodeValidation
	case http.StatusUnauthorized:
		return apperr.CodeAuthFailed
	case http.StatusForbidden:
		return apperr.CodeAuthzFailed
	case http.StatusNotFound:
		return apperr.CodeNotFound
	default:
		return apperr.CodeUncategorized
	}
}

// handleError maps the domain error taxonomy onto HTTP statuses, keeping
// the stable numeric code from the error itself.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	code := apperr.CodeOf(err)
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return newAPIError(http.StatusBadRequest, code, err.Error(), nil)
	case apperr.KindAuthentication:
		return newAPIError(http.StatusUnauthorized, code, err.Error(), nil)
	case apperr.KindAuthorization:
		return newAPIError(http.StatusForbidden, code, err.Error(), nil)
	case apperr.KindNotFound:
		return newAPIError(http.StatusNotFound, code, err.Error(), nil)
	case apperr.KindConflict:
		return newAPIError(http.StatusConflict, code, err.Error(), nil)
	default:
		return newAPIError(http.StatusInternalServerError, code, "internal error", map[string]any{"error": err.Error()})
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerOrganizations(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-organization",
		Method:        http.MethodPost,
		Path:          "/organizations",
		Summary:       "Create organization",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateOrganizationRequest `json:"body"`
	}) (*struct {
		Body OrganizationResponse `json:"body"`
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		org, err := e.CreateOrganization(ctx, p, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OrganizationResponse `json:"body"`
		}{Body: organizationResponse(org)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-organization",
		Method:      http.MethodGet,
		Path:        "/organizations/{id}",
		Summary:     "Get organization",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body OrganizationResponse `json:"body"`
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		org, err := e.GetOrganization(ctx, p, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OrganizationResponse `json:"body"`
		}{Body: organizationResponse(org)}, nil
	})
}

func registerUsers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List organization users",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []UserResponse `json:"body"`
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		users, err := e.ListOrganizationUsers(ctx, p)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []UserResponse `json:"body"`
		}{Body: mapUsers(users)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/users/{id}",
		Summary:     "Get user",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.GetUser(ctx, p, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: userResponse(u)}, nil
	})
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.ProjectCreateOptions{Name: input.Body.Name}
		if input.Body.Description != nil {
			opts.Description = *input.Body.Description
		}
		project, err := e.CreateProject(ctx, p, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(project)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects visible to the caller",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []ProjectResponse `json:"body"`
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListProjects(ctx, p)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ProjectResponse `json:"body"`
		}{Body: mapProjects(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		project, err := e.GetProject(ctx, p, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(project)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}",
		Summary:     "Update project",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string               `path:"project_id"`
		Body      UpdateProjectRequest `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		project, err := e.UpdateProject(ctx, p, input.ProjectID, engine.ProjectUpdateOptions{
			Name:        input.Body.Name,
			Description: input.Body.Description,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(project)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-project",
		Method:        http.MethodDelete,
		Path:          "/projects/{project_id}",
		Summary:       "Delete project",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct{}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteProject(ctx, p, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerMembers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-project-member",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/members",
		Summary:       "Add project member",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string           `path:"project_id"`
		Body      AddMemberRequest `json:"body"`
	}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.UserID == "" {
			return nil, newAPIError(http.StatusBadRequest, 0, "user_id is required", nil)
		}
		u, err := e.AddProjectMember(ctx, p, input.ProjectID, input.Body.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: userResponse(u)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "remove-project-member",
		Method:        http.MethodDelete,
		Path:          "/projects/{project_id}/members/{user_id}",
		Summary:       "Remove project member",
		DefaultStatus: http.StatusNoContent,
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		UserID    string `path:"user_id"`
	}) (*struct{}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RemoveProjectMember(ctx, p, input.ProjectID, input.UserID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-project-members",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/members",
		Summary:     "List project members",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []UserResponse `json:"body"`
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		members, err := e.ListProjectMembers(ctx, p, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []UserResponse `json:"body"`
		}{Body: mapUsers(members)}, nil
	})
}
