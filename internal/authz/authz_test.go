package authz_test

import (
	"context"
	"testing"
	"time"

	"taskdeck/internal/apperr"
	"taskdeck/internal/authz"
	"taskdeck/internal/db"
	"taskdeck/internal/domain"
	"taskdeck/internal/migrate"
	"taskdeck/internal/store"
)

func seedGuard(t *testing.T) (authz.Guard, store.Store, context.Context) {
	t.Helper()
	conn, err := db.Open(db.Config{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	st := store.New(conn)
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339)

	for _, org := range []string{"org-1", "org-2"} {
		if err := st.InsertOrganization(ctx, domain.Organization{ID: org, Name: org, CreatedAt: now}); err != nil {
			t.Fatalf("seed %s: %v", org, err)
		}
	}
	users := []domain.User{
		{ID: "admin-1", OrgID: "org-1", Role: domain.RoleAdmin},
		{ID: "manager-in", OrgID: "org-1", Role: domain.RoleManager},
		{ID: "manager-out", OrgID: "org-1", Role: domain.RoleManager},
		{ID: "member-in", OrgID: "org-1", Role: domain.RoleMember},
		{ID: "stranger", OrgID: "org-2", Role: domain.RoleAdmin},
	}
	for _, u := range users {
		u.Name, u.Email, u.IsActive, u.CreatedAt = u.ID, u.ID+"@test", true, now
		if err := st.InsertUser(ctx, u); err != nil {
			t.Fatalf("seed %s: %v", u.ID, err)
		}
	}
	if err := st.InsertProject(ctx, domain.Project{ID: "proj-1", OrgID: "org-1", Name: "P", CreatedAt: now}); err != nil {
		t.Fatalf("seed project: %v", err)
	}
	for _, id := range []string{"manager-in", "member-in"} {
		if err := st.AddMember(ctx, "proj-1", id, now); err != nil {
			t.Fatalf("seed member: %v", err)
		}
	}
	if err := st.InsertTask(ctx, domain.Task{
		ID: "task-1", ProjectID: "proj-1", CreatorID: "manager-in",
		Status: domain.StatusTodo, Priority: domain.PriorityMedium,
		Title: "T", CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed task: %v", err)
	}
	return authz.New(st), st, ctx
}

func principal(id, org string, role domain.Role) domain.Principal {
	return domain.Principal{UserID: id, OrgID: org, Role: role, IsActive: true}
}

func TestProjectManageRequiresRoleAndMembership(t *testing.T) {
	g, _, ctx := seedGuard(t)

	cases := []struct {
		name    string
		p       domain.Principal
		allowed bool
	}{
		{"admin without membership", principal("admin-1", "org-1", domain.RoleAdmin), true},
		{"manager with membership", principal("manager-in", "org-1", domain.RoleManager), true},
		{"manager without membership", principal("manager-out", "org-1", domain.RoleManager), false},
		{"member with membership", principal("member-in", "org-1", domain.RoleMember), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := g.ProjectManage(ctx, tc.p, "proj-1")
			if tc.allowed && err != nil {
				t.Fatalf("want allow, got %v", err)
			}
			if !tc.allowed && !apperr.IsAuthorization(err) {
				t.Fatalf("want deny, got %v", err)
			}
		})
	}
}

func TestProjectAccessRequiresMembershipBelowAdmin(t *testing.T) {
	g, _, ctx := seedGuard(t)

	if _, err := g.ProjectAccess(ctx, principal("admin-1", "org-1", domain.RoleAdmin), "proj-1"); err != nil {
		t.Fatalf("admin access: %v", err)
	}
	if _, err := g.ProjectAccess(ctx, principal("member-in", "org-1", domain.RoleMember), "proj-1"); err != nil {
		t.Fatalf("member access: %v", err)
	}
	_, err := g.ProjectAccess(ctx, principal("manager-out", "org-1", domain.RoleManager), "proj-1")
	if !apperr.IsAuthorization(err) {
		t.Fatalf("non-member manager: want deny, got %v", err)
	}
}

func TestCrossOrganizationDenied(t *testing.T) {
	g, _, ctx := seedGuard(t)
	stranger := principal("stranger", "org-2", domain.RoleAdmin)

	if _, err := g.ProjectAccess(ctx, stranger, "proj-1"); !apperr.IsAuthorization(err) {
		t.Fatalf("project: want cross-org deny, got %v", err)
	}
	if _, err := g.TaskView(ctx, stranger, "task-1"); !apperr.IsAuthorization(err) {
		t.Fatalf("task: want cross-org deny, got %v", err)
	}
	if _, err := g.OrganizationView(ctx, stranger, "org-1"); !apperr.IsAuthorization(err) {
		t.Fatalf("org: want cross-org deny, got %v", err)
	}
	if _, err := g.UserView(ctx, stranger, "member-in"); !apperr.IsAuthorization(err) {
		t.Fatalf("user: want cross-org deny, got %v", err)
	}
}

func TestInactivePrincipalDeniedEverywhere(t *testing.T) {
	g, _, ctx := seedGuard(t)
	p := principal("admin-1", "org-1", domain.RoleAdmin)
	p.IsActive = false

	if err := g.OrganizationCreate(p); !apperr.IsAuthorization(err) {
		t.Fatalf("org create: %v", err)
	}
	if _, err := g.ProjectAccess(ctx, p, "proj-1"); !apperr.IsAuthorization(err) {
		t.Fatalf("project access: %v", err)
	}
	if _, err := g.TaskManage(ctx, p, "task-1"); !apperr.IsAuthorization(err) {
		t.Fatalf("task manage: %v", err)
	}
	if _, err := g.UserView(ctx, p, "member-in"); !apperr.IsAuthorization(err) {
		t.Fatalf("user view: %v", err)
	}
	if err := g.UserList(p); !apperr.IsAuthorization(err) {
		t.Fatalf("user list: %v", err)
	}
}

func TestTaskStatusUpdateMemberScope(t *testing.T) {
	g, st, ctx := seedGuard(t)
	member := principal("member-in", "org-1", domain.RoleMember)

	// unassigned: member denied with the task access code
	_, err := g.TaskStatusUpdate(ctx, member, "task-1")
	if !apperr.HasCode(err, apperr.CodeTaskAccessDenied) {
		t.Fatalf("unassigned: want code %d, got %v", apperr.CodeTaskAccessDenied, err)
	}

	assignee := "member-in"
	now := time.Now().UTC().Format(time.RFC3339)
	if err := st.SetTaskAssignee(ctx, "task-1", &assignee, now); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := g.TaskStatusUpdate(ctx, member, "task-1"); err != nil {
		t.Fatalf("assigned member: %v", err)
	}
}

func TestProjectCreateRoleGate(t *testing.T) {
	g, _, _ := seedGuard(t)

	if err := g.ProjectCreate(principal("admin-1", "org-1", domain.RoleAdmin)); err != nil {
		t.Fatalf("admin: %v", err)
	}
	if err := g.ProjectCreate(principal("manager-out", "org-1", domain.RoleManager)); err != nil {
		t.Fatalf("manager: %v", err)
	}
	if err := g.ProjectCreate(principal("member-in", "org-1", domain.RoleMember)); !apperr.IsAuthorization(err) {
		t.Fatalf("member: want deny, got %v", err)
	}
}
