// Package authz is the authorization engine: per-resource decision
// functions combining organization scoping, project membership and role
// capability checks. Each guard loads the target resource, decides
// ALLOW/DENY, and returns the resource for handler use so callers never
// fetch twice.
package authz

import (
	"context"

	"taskdeck/internal/apperr"
	"taskdeck/internal/domain"
	"taskdeck/internal/store"
)

type Guard struct {
	Store store.Store
}

func New(s store.Store) Guard {
	return Guard{Store: s}
}

func ensureActive(p domain.Principal) error {
	if !p.IsActive {
		return apperr.Authorization("inactive user")
	}
	return nil
}

func crossOrg() error {
	return apperr.Authorization("cross-organization access denied")
}

func invalidRole() error {
	// Unreachable while Role stays a closed enum; kept so a corrupted
	// row denies instead of allowing.
	return apperr.Authorization("invalid role")
}

// OrganizationCreate requires the admin role.
func (g Guard) OrganizationCreate(p domain.Principal) error {
	if err := ensureActive(p); err != nil {
		return err
	}
	if p.Role != domain.RoleAdmin {
		return apperr.Authorization("admin role required")
	}
	return nil
}

// OrganizationView allows any active user of the same organization.
func (g Guard) OrganizationView(ctx context.Context, p domain.Principal, orgID string) (domain.Organization, error) {
	if err := ensureActive(p); err != nil {
		return domain.Organization{}, err
	}
	org, err := g.Store.GetOrganization(ctx, orgID)
	if err != nil {
		return domain.Organization{}, err
	}
	if org.ID != p.OrgID {
		return domain.Organization{}, crossOrg()
	}
	return org, nil
}

// UserView allows any active user to read another user inside their own
// organization.
func (g Guard) UserView(ctx context.Context, p domain.Principal, userID string) (domain.User, error) {
	if err := ensureActive(p); err != nil {
		return domain.User{}, err
	}
	u, err := g.Store.GetUser(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	if u.OrgID != p.OrgID {
		return domain.User{}, crossOrg()
	}
	return u, nil
}

// UserList gates the organization directory listing.
func (g Guard) UserList(p domain.Principal) error {
	return ensureActive(p)
}

// ProjectCreate requires admin or manager role.
func (g Guard) ProjectCreate(p domain.Principal) error {
	if err := ensureActive(p); err != nil {
		return err
	}
	switch p.Role {
	case domain.RoleAdmin, domain.RoleManager:
		return nil
	case domain.RoleMember:
		return apperr.Authorization("admin or manager role required")
	default:
		return invalidRole()
	}
}

// ProjectAccess allows admins anywhere in their organization and everyone
// else only where they hold a membership.
func (g Guard) ProjectAccess(ctx context.Context, p domain.Principal, projectID string) (domain.Project, error) {
	if err := ensureActive(p); err != nil {
		return domain.Project{}, err
	}
	project, err := g.Store.GetProject(ctx, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	if project.OrgID != p.OrgID {
		return domain.Project{}, crossOrg()
	}
	switch p.Role {
	case domain.RoleAdmin:
		return project, nil
	case domain.RoleManager, domain.RoleMember:
		ok, err := g.Store.IsMember(ctx, projectID, p.UserID)
		if err != nil {
			return domain.Project{}, err
		}
		if !ok {
			return domain.Project{}, apperr.Authorization("you are not a member of this project")
		}
		return project, nil
	default:
		return domain.Project{}, invalidRole()
	}
}

// ProjectManage gates project management (editing the project, adding and
// removing members). Deliberate asymmetry: a manager needs BOTH the role
// and a membership in the project, while an admin always passes.
func (g Guard) ProjectManage(ctx context.Context, p domain.Principal, projectID string) (domain.Project, error) {
	if err := ensureActive(p); err != nil {
		return domain.Project{}, err
	}
	project, err := g.Store.GetProject(ctx, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	if project.OrgID != p.OrgID {
		return domain.Project{}, crossOrg()
	}
	switch p.Role {
	case domain.RoleAdmin:
		return project, nil
	case domain.RoleManager:
		ok, err := g.Store.IsMember(ctx, projectID, p.UserID)
		if err != nil {
			return domain.Project{}, err
		}
		if !ok {
			return domain.Project{}, apperr.Authorization("you are not a member of this project")
		}
		return project, nil
	case domain.RoleMember:
		return domain.Project{}, apperr.Authorization("admin or manager role required")
	default:
		return domain.Project{}, invalidRole()
	}
}

// ProjectTaskManage gates task creation and other task CRUD scoped by
// project rather than by an existing task. Members are denied entirely.
func (g Guard) ProjectTaskManage(ctx context.Context, p domain.Principal, projectID string) (domain.Project, error) {
	if err := ensureActive(p); err != nil {
		return domain.Project{}, err
	}
	project, err := g.Store.GetProject(ctx, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	if project.OrgID != p.OrgID {
		return domain.Project{}, crossOrg()
	}
	switch p.Role {
	case domain.RoleAdmin:
		return project, nil
	case domain.RoleManager:
		ok, err := g.Store.IsMember(ctx, projectID, p.UserID)
		if err != nil {
			return domain.Project{}, err
		}
		if !ok {
			return domain.Project{}, apperr.New(apperr.KindAuthorization, apperr.CodeTaskAccessDenied, "you are not a member of this project")
		}
		return project, nil
	case domain.RoleMember:
		return domain.Project{}, apperr.Authorization("members cannot manage tasks")
	default:
		return domain.Project{}, invalidRole()
	}
}

// taskInOrg loads a task and checks organization scope transitively
// through its project.
func (g Guard) taskInOrg(ctx context.Context, p domain.Principal, taskID string) (domain.Task, error) {
	task, err := g.Store.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	project, err := g.Store.GetProject(ctx, task.ProjectID)
	if err != nil {
		return domain.Task{}, err
	}
	if project.OrgID != p.OrgID {
		return domain.Task{}, crossOrg()
	}
	return task, nil
}

// TaskInOrg loads a task enforcing only organization scope. Used where
// the caller applies its own ownership rule on top, like task deletion by
// creator.
func (g Guard) TaskInOrg(ctx context.Context, p domain.Principal, taskID string) (domain.Task, error) {
	if err := ensureActive(p); err != nil {
		return domain.Task{}, err
	}
	return g.taskInOrg(ctx, p, taskID)
}

// TaskView allows any project member (and org admins) to read a task.
func (g Guard) TaskView(ctx context.Context, p domain.Principal, taskID string) (domain.Task, error) {
	if err := ensureActive(p); err != nil {
		return domain.Task{}, err
	}
	task, err := g.taskInOrg(ctx, p, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	switch p.Role {
	case domain.RoleAdmin:
		return task, nil
	case domain.RoleManager, domain.RoleMember:
		ok, err := g.Store.IsMember(ctx, task.ProjectID, p.UserID)
		if err != nil {
			return domain.Task{}, err
		}
		if !ok {
			return domain.Task{}, apperr.New(apperr.KindAuthorization, apperr.CodeTaskAccessDenied, "you are not a member of this project")
		}
		return task, nil
	default:
		return domain.Task{}, invalidRole()
	}
}

// TaskManage gates task CRUD and assignment. Members are denied entirely.
func (g Guard) TaskManage(ctx context.Context, p domain.Principal, taskID string) (domain.Task, error) {
	if err := ensureActive(p); err != nil {
		return domain.Task{}, err
	}
	task, err := g.taskInOrg(ctx, p, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	switch p.Role {
	case domain.RoleAdmin:
		return task, nil
	case domain.RoleManager:
		ok, err := g.Store.IsMember(ctx, task.ProjectID, p.UserID)
		if err != nil {
			return domain.Task{}, err
		}
		if !ok {
			return domain.Task{}, apperr.New(apperr.KindAuthorization, apperr.CodeTaskAccessDenied, "you are not a member of this project")
		}
		return task, nil
	case domain.RoleMember:
		return domain.Task{}, apperr.Authorization("members cannot manage tasks")
	default:
		return domain.Task{}, invalidRole()
	}
}

// TaskStatusUpdate is TaskManage relaxed for members: a member may move a
// task they are assigned to.
func (g Guard) TaskStatusUpdate(ctx context.Context, p domain.Principal, taskID string) (domain.Task, error) {
	if err := ensureActive(p); err != nil {
		return domain.Task{}, err
	}
	task, err := g.taskInOrg(ctx, p, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	switch p.Role {
	case domain.RoleAdmin:
		return task, nil
	case domain.RoleManager:
		ok, err := g.Store.IsMember(ctx, task.ProjectID, p.UserID)
		if err != nil {
			return domain.Task{}, err
		}
		if !ok {
			return domain.Task{}, apperr.New(apperr.KindAuthorization, apperr.CodeTaskAccessDenied, "you are not a member of this project")
		}
		return task, nil
	case domain.RoleMember:
		if task.AssigneeID == nil || *task.AssigneeID != p.UserID {
			return domain.Task{}, apperr.New(apperr.KindAuthorization, apperr.CodeTaskAccessDenied, "you can only update status of tasks assigned to you")
		}
		return task, nil
	default:
		return domain.Task{}, invalidRole()
	}
}

// commentInOrg resolves a comment's organization transitively through its
// task's project.
func (g Guard) commentInOrg(ctx context.Context, p domain.Principal, commentID string) (domain.Comment, domain.Task, error) {
	comment, err := g.Store.GetComment(ctx, commentID)
	if err != nil {
		return domain.Comment{}, domain.Task{}, err
	}
	task, err := g.taskInOrg(ctx, p, comment.TaskID)
	if err != nil {
		return domain.Comment{}, domain.Task{}, err
	}
	return comment, task, nil
}

// CommentView allows project members and org admins.
func (g Guard) CommentView(ctx context.Context, p domain.Principal, commentID string) (domain.Comment, error) {
	if err := ensureActive(p); err != nil {
		return domain.Comment{}, err
	}
	comment, task, err := g.commentInOrg(ctx, p, commentID)
	if err != nil {
		return domain.Comment{}, err
	}
	switch p.Role {
	case domain.RoleAdmin:
		return comment, nil
	case domain.RoleManager, domain.RoleMember:
		ok, err := g.Store.IsMember(ctx, task.ProjectID, p.UserID)
		if err != nil {
			return domain.Comment{}, err
		}
		if !ok {
			return domain.Comment{}, apperr.Authorization("you are not a member of this project")
		}
		return comment, nil
	default:
		return domain.Comment{}, invalidRole()
	}
}

// CommentDelete: admins anywhere in org, managers in their projects,
// members only their own comments.
func (g Guard) CommentDelete(ctx context.Context, p domain.Principal, commentID string) (domain.Comment, error) {
	if err := ensureActive(p); err != nil {
		return domain.Comment{}, err
	}
	comment, task, err := g.commentInOrg(ctx, p, commentID)
	if err != nil {
		return domain.Comment{}, err
	}
	switch p.Role {
	case domain.RoleAdmin:
		return comment, nil
	case domain.RoleManager, domain.RoleMember:
		ok, err := g.Store.IsMember(ctx, task.ProjectID, p.UserID)
		if err != nil {
			return domain.Comment{}, err
		}
		if !ok {
			return domain.Comment{}, apperr.Authorization("you are not a member of this project")
		}
		if p.Role == domain.RoleMember && comment.AuthorID != p.UserID {
			return domain.Comment{}, apperr.Authorization("you can only delete your own comments")
		}
		return comment, nil
	default:
		return domain.Comment{}, invalidRole()
	}
}

// AttachmentDelete mirrors CommentDelete for attachments.
func (g Guard) AttachmentDelete(ctx context.Context, p domain.Principal, attachmentID string) (domain.Attachment, error) {
	if err := ensureActive(p); err != nil {
		return domain.Attachment{}, err
	}
	attachment, err := g.Store.GetAttachment(ctx, attachmentID)
	if err != nil {
		return domain.Attachment{}, err
	}
	task, err := g.taskInOrg(ctx, p, attachment.TaskID)
	if err != nil {
		return domain.Attachment{}, err
	}
	switch p.Role {
	case domain.RoleAdmin:
		return attachment, nil
	case domain.RoleManager, domain.RoleMember:
		ok, err := g.Store.IsMember(ctx, task.ProjectID, p.UserID)
		if err != nil {
			return domain.Attachment{}, err
		}
		if !ok {
			return domain.Attachment{}, apperr.Authorization("you are not a member of this project")
		}
		if p.Role == domain.RoleMember && attachment.AuthorID != p.UserID {
			return domain.Attachment{}, apperr.Authorization("you can only delete your own attachments")
		}
		return attachment, nil
	default:
		return domain.Attachment{}, invalidRole()
	}
}
