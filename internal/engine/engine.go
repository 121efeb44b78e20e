// Package engine orchestrates every domain mutation: authorization, the
// task state machine, cache invalidation and notification triggering.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"taskdeck/internal/apperr"
	"taskdeck/internal/authz"
	"taskdeck/internal/cache"
	"taskdeck/internal/config"
	"taskdeck/internal/domain"
	"taskdeck/internal/logging"
	"taskdeck/internal/notify"
	"taskdeck/internal/store"
)

type Engine struct {
	Store    store.Store
	Cache    cache.Cache
	Notifier notify.Notifier
	Guard    authz.Guard
	Config   *config.Config
	Log      *logrus.Logger
	Now      func() time.Time
}

func New(s store.Store, c cache.Cache, n notify.Notifier, cfg *config.Config) Engine {
	if n == nil {
		n = notify.Noop{}
	}
	return Engine{
		Store:    s,
		Cache:    c,
		Notifier: n,
		Guard:    authz.New(s),
		Config:   cfg,
		Log:      logging.L(),
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowString() string {
	return e.now().UTC().Format(time.RFC3339)
}

// invalidateProjectCaches drops the report aggregates and every cached
// task-list variant for a project. Issued only after the underlying write
// committed; failures are logged and swallowed because the cache is
// advisory.
func (e Engine) invalidateProjectCaches(ctx context.Context, projectID string) {
	if e.Cache == nil {
		return
	}
	if err := e.Cache.Delete(ctx, cache.StatusReportKey(projectID), cache.OverdueReportKey(projectID)); err != nil {
		e.Log.WithError(err).WithField("project_id", projectID).Warn("report cache invalidation failed")
	}
	if err := e.Cache.ScanDelete(ctx, cache.TaskListPattern(projectID)); err != nil {
		e.Log.WithError(err).WithField("project_id", projectID).Warn("task list cache invalidation failed")
	}
}

// --- organizations ---

func (e Engine) CreateOrganization(ctx context.Context, p domain.Principal, name string) (domain.Organization, error) {
	if err := e.Guard.OrganizationCreate(p); err != nil {
		return domain.Organization{}, err
	}
	if name == "" {
		return domain.Organization{}, apperr.Validation(apperr.CodeValidation, "organization name is required")
	}
	org := domain.Organization{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: e.nowString(),
	}
	if err := e.Store.InsertOrganization(ctx, org); err != nil {
		return domain.Organization{}, err
	}
	return org, nil
}

func (e Engine) GetOrganization(ctx context.Context, p domain.Principal, id string) (domain.Organization, error) {
	return e.Guard.OrganizationView(ctx, p, id)
}

// --- users ---

func (e Engine) GetUser(ctx context.Context, p domain.Principal, id string) (domain.User, error) {
	return e.Guard.UserView(ctx, p, id)
}

func (e Engine) ListOrganizationUsers(ctx context.Context, p domain.Principal) ([]domain.User, error) {
	if err := e.Guard.UserList(p); err != nil {
		return nil, err
	}
	return e.Store.ListUsersByOrganization(ctx, p.OrgID)
}

// --- projects ---

type ProjectCreateOptions struct {
	Name        string
	Description string
}

// CreateProject creates a project in the caller's organization and adds
// the creator as its first member, so a manager can immediately manage
// what they created.
func (e Engine) CreateProject(ctx context.Context, p domain.Principal, opts ProjectCreateOptions) (domain.Project, error) {
	if err := e.Guard.ProjectCreate(p); err != nil {
		return domain.Project{}, err
	}
	if opts.Name == "" {
		return domain.Project{}, apperr.Validation(apperr.CodeValidation, "project name is required")
	}
	now := e.nowString()
	project := domain.Project{
		ID:          uuid.New().String(),
		OrgID:       p.OrgID,
		Name:        opts.Name,
		Description: opts.Description,
		CreatedAt:   now,
	}
	if err := e.Store.InsertProject(ctx, project); err != nil {
		return domain.Project{}, err
	}
	if err := e.Store.AddMember(ctx, project.ID, p.UserID, now); err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

func (e Engine) GetProject(ctx context.Context, p domain.Principal, id string) (domain.Project, error) {
	return e.Guard.ProjectAccess(ctx, p, id)
}

// ListProjects returns every project the caller can see: all organization
// projects for admins, membership-filtered for everyone else.
func (e Engine) ListProjects(ctx context.Context, p domain.Principal) ([]domain.Project, error) {
	if p.Role == domain.RoleAdmin {
		return e.Store.ListProjectsByOrganization(ctx, p.OrgID)
	}
	return e.Store.ListProjectsForMember(ctx, p.OrgID, p.UserID)
}

type ProjectUpdateOptions struct {
	Name        *string
	Description *string
}

func (e Engine) UpdateProject(ctx context.Context, p domain.Principal, id string, opts ProjectUpdateOptions) (domain.Project, error) {
	if _, err := e.Guard.ProjectManage(ctx, p, id); err != nil {
		return domain.Project{}, err
	}
	if opts.Name != nil && *opts.Name == "" {
		return domain.Project{}, apperr.Validation(apperr.CodeValidation, "project name is required")
	}
	if err := e.Store.UpdateProject(ctx, id, opts.Name, opts.Description); err != nil {
		return domain.Project{}, err
	}
	return e.Store.GetProject(ctx, id)
}

func (e Engine) DeleteProject(ctx context.Context, p domain.Principal, id string) error {
	if _, err := e.Guard.ProjectManage(ctx, p, id); err != nil {
		return err
	}
	if err := e.Store.DeleteProject(ctx, id); err != nil {
		return err
	}
	e.invalidateProjectCaches(ctx, id)
	return nil
}

// --- membership registry ---

func (e Engine) AddProjectMember(ctx context.Context, p domain.Principal, projectID, userID string) (domain.User, error) {
	if _, err := e.Guard.ProjectManage(ctx, p, projectID); err != nil {
		return domain.User{}, err
	}
	u, err := e.Guard.UserView(ctx, p, userID)
	if err != nil {
		return domain.User{}, err
	}
	if err := e.Store.AddMember(ctx, projectID, userID, e.nowString()); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (e Engine) RemoveProjectMember(ctx context.Context, p domain.Principal, projectID, userID string) error {
	if _, err := e.Guard.ProjectManage(ctx, p, projectID); err != nil {
		return err
	}
	return e.Store.RemoveMember(ctx, projectID, userID)
}

func (e Engine) ListProjectMembers(ctx context.Context, p domain.Principal, projectID string) ([]domain.User, error) {
	if _, err := e.Guard.ProjectAccess(ctx, p, projectID); err != nil {
		return nil, err
	}
	return e.Store.ListMembers(ctx, projectID)
}

// RoleInProject reports the role a user holds inside a project, or nil
// when they are not a member.
func (e Engine) RoleInProject(ctx context.Context, p domain.Principal, projectID, userID string) (*domain.Role, error) {
	if _, err := e.Guard.ProjectAccess(ctx, p, projectID); err != nil {
		return nil, err
	}
	return e.Store.RoleInProject(ctx, projectID, userID)
}
