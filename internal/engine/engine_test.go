package engine_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"taskdeck/internal/apperr"
	"taskdeck/internal/cache"
	"taskdeck/internal/config"
	"taskdeck/internal/db"
	"taskdeck/internal/domain"
	"taskdeck/internal/engine"
	"taskdeck/internal/migrate"
	"taskdeck/internal/store"
)

// memCache is an in-memory cache.Cache that records invalidations.
type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	deleted []string
	scans   []string
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return b, nil
}

func (c *memCache) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
		c.deleted = append(c.deleted, k)
	}
	return nil
}

func (c *memCache) ScanDelete(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
		}
	}
	c.scans = append(c.scans, pattern)
	return nil
}

// brokenCache fails every operation.
type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}
func (brokenCache) SetWithTTL(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}
func (brokenCache) Delete(context.Context, ...string) error {
	return errors.New("connection refused")
}
func (brokenCache) ScanDelete(context.Context, string) error {
	return errors.New("connection refused")
}

// recordingNotifier captures every trigger.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
}

type notifyCall struct {
	UserID, Title, Type, RelatedID string
}

func (n *recordingNotifier) Notify(_ context.Context, userID, title, _, typ, relatedID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{UserID: userID, Title: title, Type: typ, RelatedID: relatedID})
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func (n *recordingNotifier) last() notifyCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[len(n.calls)-1]
}

type testEnv struct {
	Engine   engine.Engine
	Store    store.Store
	Cache    *memCache
	Notifier *recordingNotifier
	Ctx      context.Context

	Admin   domain.Principal
	Manager domain.Principal
	Member  domain.Principal
	Member2 domain.Principal

	ProjectID string
}

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) testEnv {
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
	mc := newMemCache()
	rn := &recordingNotifier{}
	eng := engine.New(st, mc, rn, config.Default())
	eng.Now = func() time.Time { return testNow }

	ctx := context.Background()
	now := testNow.Format(time.RFC3339)
	if err := st.InsertOrganization(ctx, domain.Organization{ID: "org-1", Name: "Acme", CreatedAt: now}); err != nil {
		t.Fatalf("seed org: %v", err)
	}
	users := []struct {
		id   string
		role domain.Role
	}{
		{"admin-1", domain.RoleAdmin},
		{"manager-1", domain.RoleManager},
		{"member-1", domain.RoleMember},
		{"member-2", domain.RoleMember},
	}
	for _, u := range users {
		err := st.InsertUser(ctx, domain.User{
			ID: u.id, OrgID: "org-1", Name: u.id, Email: u.id + "@acme.test",
			Role: u.role, IsActive: true, CreatedAt: now,
		})
		if err != nil {
			t.Fatalf("seed user %s: %v", u.id, err)
		}
	}
	if err := st.InsertProject(ctx, domain.Project{ID: "proj-1", OrgID: "org-1", Name: "Launch", CreatedAt: now}); err != nil {
		t.Fatalf("seed project: %v", err)
	}
	for _, id := range []string{"manager-1", "member-1"} {
		if err := st.AddMember(ctx, "proj-1", id, now); err != nil {
			t.Fatalf("seed member %s: %v", id, err)
		}
	}

	principal := func(id string, role domain.Role) domain.Principal {
		return domain.Principal{UserID: id, OrgID: "org-1", Role: role, IsActive: true}
	}
	return testEnv{
		Engine:    eng,
		Store:     st,
		Cache:     mc,
		Notifier:  rn,
		Ctx:       ctx,
		Admin:     principal("admin-1", domain.RoleAdmin),
		Manager:   principal("manager-1", domain.RoleManager),
		Member:    principal("member-1", domain.RoleMember),
		Member2:   principal("member-2", domain.RoleMember),
		ProjectID: "proj-1",
	}
}

func mustCreateTask(t *testing.T, env testEnv, opts engine.TaskCreateOptions) domain.Task {
	t.Helper()
	task, err := env.Engine.CreateTask(env.Ctx, env.Manager, env.ProjectID, opts)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func TestTaskStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	task := mustCreateTask(t, env, engine.TaskCreateOptions{Title: "Ship it"})
	if task.Status != domain.StatusTodo {
		t.Fatalf("default status = %s", task.Status)
	}

	// todo -> done skips a step
	_, err := env.Engine.UpdateTaskStatus(env.Ctx, env.Manager, task.ID, domain.StatusDone)
	if !apperr.HasCode(err, apperr.CodeInvalidTransition) {
		t.Fatalf("todo->done: want invalid transition, got %v", err)
	}

	task, err = env.Engine.UpdateTaskStatus(env.Ctx, env.Manager, task.ID, domain.StatusInProgress)
	if err != nil || task.Status != domain.StatusInProgress {
		t.Fatalf("to in-progress: %v", err)
	}
	task, err = env.Engine.UpdateTaskStatus(env.Ctx, env.Manager, task.ID, domain.StatusDone)
	if err != nil || task.Status != domain.StatusDone {
		t.Fatalf("to done: %v", err)
	}

	// done reopens only through in-progress
	_, err = env.Engine.UpdateTaskStatus(env.Ctx, env.Manager, task.ID, domain.StatusTodo)
	if !apperr.HasCode(err, apperr.CodeInvalidTransition) {
		t.Fatalf("done->todo: want invalid transition, got %v", err)
	}
	task, err = env.Engine.UpdateTaskStatus(env.Ctx, env.Manager, task.ID, domain.StatusInProgress)
	if err != nil || task.Status != domain.StatusInProgress {
		t.Fatalf("reopen: %v", err)
	}

	// self-transition is a no-op, not an error
	if _, err := env.Engine.UpdateTaskStatus(env.Ctx, env.Manager, task.ID, domain.StatusInProgress); err != nil {
		t.Fatalf("self transition: %v", err)
	}
}

func TestDueDateValidation(t *testing.T) {
	env := newTestEnv(t)

	past := testNow.Add(-24 * time.Hour).Format(time.RFC3339)
	_, err := env.Engine.CreateTask(env.Ctx, env.Manager, env.ProjectID, engine.TaskCreateOptions{Title: "late", DueDate: &past})
	if !apperr.HasCode(err, apperr.CodeInvalidDueDate) {
		t.Fatalf("past due date: want code %d, got %v", apperr.CodeInvalidDueDate, err)
	}

	future := testNow.Add(48 * time.Hour).Format(time.RFC3339)
	if _, err := env.Engine.CreateTask(env.Ctx, env.Manager, env.ProjectID, engine.TaskCreateOptions{Title: "ok", DueDate: &future}); err != nil {
		t.Fatalf("future due date: %v", err)
	}

	// naive timestamp is read as UTC
	naive := testNow.Add(48 * time.Hour).Format("2006-01-02T15:04:05")
	if _, err := env.Engine.CreateTask(env.Ctx, env.Manager, env.ProjectID, engine.TaskCreateOptions{Title: "naive", DueDate: &naive}); err != nil {
		t.Fatalf("naive due date: %v", err)
	}

	garbage := "next tuesday"
	_, err = env.Engine.CreateTask(env.Ctx, env.Manager, env.ProjectID, engine.TaskCreateOptions{Title: "bad", DueDate: &garbage})
	if !apperr.HasCode(err, apperr.CodeInvalidDueDate) {
		t.Fatalf("garbage due date: want code %d, got %v", apperr.CodeInvalidDueDate, err)
	}
}

func TestCreateTaskAssigneeMustBeMember(t *testing.T) {
	env := newTestEnv(t)
	outsider := "member-2" // in org, not in project
	_, err := env.Engine.CreateTask(env.Ctx, env.Manager, env.ProjectID, engine.TaskCreateOptions{Title: "x", AssigneeID: &outsider})
	if !apperr.HasCode(err, apperr.CodeAssigneeNotInProject) {
		t.Fatalf("want code %d, got %v", apperr.CodeAssigneeNotInProject, err)
	}

	insider := "member-1"
	task, err := env.Engine.CreateTask(env.Ctx, env.Manager, env.ProjectID, engine.TaskCreateOptions{Title: "y", AssigneeID: &insider})
	if err != nil {
		t.Fatalf("valid assignee: %v", err)
	}
	if env.Notifier.count() != 1 {
		t.Fatalf("notifications = %d, want 1", env.Notifier.count())
	}
	call := env.Notifier.last()
	if call.UserID != insider || call.Type != "task_assigned" || call.RelatedID != task.ID {
		t.Fatalf("unexpected notification %+v", call)
	}
}

func TestMemberStatusUpdateOnlyOwnTask(t *testing.T) {
	env := newTestEnv(t)
	insider := "member-1"
	task := mustCreateTask(t, env, engine.TaskCreateOptions{Title: "mine", AssigneeID: &insider})

	// the assignee may move it
	if _, err := env.Engine.UpdateTaskStatus(env.Ctx, env.Member, task.ID, domain.StatusInProgress); err != nil {
		t.Fatalf("assignee status update: %v", err)
	}

	// another member of the project may not
	now := testNow.Format(time.RFC3339)
	if err := env.Store.AddMember(env.Ctx, env.ProjectID, "member-2", now); err != nil {
		t.Fatalf("add member: %v", err)
	}
	_, err := env.Engine.UpdateTaskStatus(env.Ctx, env.Member2, task.ID, domain.StatusDone)
	if !apperr.HasCode(err, apperr.CodeTaskAccessDenied) {
		t.Fatalf("non-assignee member: want code %d, got %v", apperr.CodeTaskAccessDenied, err)
	}

	// and a member cannot use the full update path at all
	title := "renamed"
	_, err = env.Engine.UpdateTask(env.Ctx, env.Member, task.ID, engine.TaskUpdateOptions{Title: &title})
	if !apperr.IsAuthorization(err) {
		t.Fatalf("member full update: want authorization error, got %v", err)
	}
}

func TestCacheInvalidationOnTaskWrites(t *testing.T) {
	env := newTestEnv(t)
	task := mustCreateTask(t, env, engine.TaskCreateOptions{Title: "cached"})

	// populate list + report caches
	if _, err := env.Engine.ListProjectTasks(env.Ctx, env.Manager, env.ProjectID, store.TaskFilter{Limit: 10}); err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, err := env.Engine.StatusReport(env.Ctx, env.Manager, env.ProjectID); err != nil {
		t.Fatalf("report: %v", err)
	}
	listKey := cache.TaskListKey(env.ProjectID, "", "", "", 0, 10)
	if _, err := env.Cache.Get(env.Ctx, listKey); err != nil {
		t.Fatalf("list cache not populated")
	}
	if _, err := env.Cache.Get(env.Ctx, cache.StatusReportKey(env.ProjectID)); err != nil {
		t.Fatalf("report cache not populated")
	}

	if _, err := env.Engine.UpdateTaskStatus(env.Ctx, env.Manager, task.ID, domain.StatusInProgress); err != nil {
		t.Fatalf("update: %v", err)
	}

	if _, err := env.Cache.Get(env.Ctx, listKey); !errors.Is(err, cache.ErrMiss) {
		t.Fatalf("list cache survived invalidation")
	}
	if _, err := env.Cache.Get(env.Ctx, cache.StatusReportKey(env.ProjectID)); !errors.Is(err, cache.ErrMiss) {
		t.Fatalf("report cache survived invalidation")
	}

	// next read sees the new state
	counts, err := env.Engine.StatusReport(env.Ctx, env.Manager, env.ProjectID)
	if err != nil {
		t.Fatalf("report after write: %v", err)
	}
	if counts[domain.StatusInProgress] != 1 || counts[domain.StatusTodo] != 0 {
		t.Fatalf("stale report after invalidation: %v", counts)
	}
}

func TestCacheFailureDegradesToStorage(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Cache = brokenCache{}

	task := mustCreateTask(t, env, engine.TaskCreateOptions{Title: "resilient"})
	tasks, err := env.Engine.ListProjectTasks(env.Ctx, env.Manager, env.ProjectID, store.TaskFilter{Limit: 10})
	if err != nil {
		t.Fatalf("list with broken cache: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != task.ID {
		t.Fatalf("unexpected tasks %v", tasks)
	}
	if _, err := env.Engine.StatusReport(env.Ctx, env.Manager, env.ProjectID); err != nil {
		t.Fatalf("report with broken cache: %v", err)
	}
}

func TestListProjectTasksServesFromCache(t *testing.T) {
	env := newTestEnv(t)
	first := mustCreateTask(t, env, engine.TaskCreateOptions{Title: "a"})
	second := mustCreateTask(t, env, engine.TaskCreateOptions{Title: "b"})

	got, err := env.Engine.ListProjectTasks(env.Ctx, env.Manager, env.ProjectID, store.TaskFilter{Limit: 10})
	if err != nil {
		t.Fatalf("first list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d", len(got))
	}

	again, err := env.Engine.ListProjectTasks(env.Ctx, env.Manager, env.ProjectID, store.TaskFilter{Limit: 10})
	if err != nil {
		t.Fatalf("cached list: %v", err)
	}
	for i := range got {
		if again[i].ID != got[i].ID {
			t.Fatalf("cached order differs at %d: %s vs %s", i, again[i].ID, got[i].ID)
		}
	}

	// a stale ID list falls back to a fresh query instead of erroring
	if err := env.Store.DeleteTask(env.Ctx, first.ID); err != nil {
		t.Fatalf("raw delete: %v", err)
	}
	fresh, err := env.Engine.ListProjectTasks(env.Ctx, env.Manager, env.ProjectID, store.TaskFilter{Limit: 10})
	if err != nil {
		t.Fatalf("list after stale cache: %v", err)
	}
	if len(fresh) != 1 || fresh[0].ID != second.ID {
		t.Fatalf("stale fallback returned %v", fresh)
	}
}

func TestAssignTaskSkipsMembershipRecheck(t *testing.T) {
	env := newTestEnv(t)
	task := mustCreateTask(t, env, engine.TaskCreateOptions{Title: "loose"})

	// direct assignment does not re-validate membership
	outsider := "member-2"
	assigned, err := env.Engine.AssignTask(env.Ctx, env.Manager, task.ID, &outsider)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if assigned.AssigneeID == nil || *assigned.AssigneeID != outsider {
		t.Fatalf("assignee not set")
	}
	if env.Notifier.count() != 1 || env.Notifier.last().UserID != outsider {
		t.Fatalf("expected assignment notification for %s", outsider)
	}

	// unassigning never notifies
	if _, err := env.Engine.AssignTask(env.Ctx, env.Manager, task.ID, nil); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if env.Notifier.count() != 1 {
		t.Fatalf("unassign should not notify")
	}
}

func TestUpdateTaskAssignValidatesMembership(t *testing.T) {
	env := newTestEnv(t)
	task := mustCreateTask(t, env, engine.TaskCreateOptions{Title: "strict"})

	outsider := "member-2"
	assign := &outsider
	_, err := env.Engine.UpdateTask(env.Ctx, env.Manager, task.ID, engine.TaskUpdateOptions{Assign: &assign})
	if !apperr.HasCode(err, apperr.CodeAssigneeNotInProject) {
		t.Fatalf("want code %d, got %v", apperr.CodeAssigneeNotInProject, err)
	}

	insider := "member-1"
	assign = &insider
	updated, err := env.Engine.UpdateTask(env.Ctx, env.Manager, task.ID, engine.TaskUpdateOptions{Assign: &assign})
	if err != nil {
		t.Fatalf("assign via update: %v", err)
	}
	if updated.AssigneeID == nil || *updated.AssigneeID != insider {
		t.Fatalf("assignee not applied")
	}
	if env.Notifier.count() != 1 {
		t.Fatalf("expected one notification, got %d", env.Notifier.count())
	}
}

func TestDeleteTaskByCreatorOrManager(t *testing.T) {
	env := newTestEnv(t)
	task := mustCreateTask(t, env, engine.TaskCreateOptions{Title: "doomed"})

	// a project member who is neither creator nor manager is denied
	err := env.Engine.DeleteTask(env.Ctx, env.Member, task.ID)
	if !apperr.IsAuthorization(err) {
		t.Fatalf("member delete: want authorization error, got %v", err)
	}

	// the creator may delete
	if err := env.Engine.DeleteTask(env.Ctx, env.Manager, task.ID); err != nil {
		t.Fatalf("creator delete: %v", err)
	}
	_, err = env.Engine.GetTask(env.Ctx, env.Admin, task.ID)
	if !apperr.IsNotFound(err) {
		t.Fatalf("task still present after delete: %v", err)
	}
}

func TestStatusReportZeroFills(t *testing.T) {
	env := newTestEnv(t)
	mustCreateTask(t, env, engine.TaskCreateOptions{Title: "only one"})

	counts, err := env.Engine.StatusReport(env.Ctx, env.Admin, env.ProjectID)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(counts) != len(domain.AllStatuses) {
		t.Fatalf("report missing statuses: %v", counts)
	}
	if counts[domain.StatusTodo] != 1 || counts[domain.StatusInProgress] != 0 || counts[domain.StatusDone] != 0 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestOverdueReport(t *testing.T) {
	env := newTestEnv(t)
	due := testNow.Add(24 * time.Hour).Format(time.RFC3339)
	task := mustCreateTask(t, env, engine.TaskCreateOptions{Title: "deadline", DueDate: &due})
	mustCreateTask(t, env, engine.TaskCreateOptions{Title: "no deadline"})

	// nothing overdue yet
	rows, err := env.Engine.OverdueReport(env.Ctx, env.Admin, env.ProjectID)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("unexpected overdue rows %v", rows)
	}

	// jump three days ahead; caches were written under the old clock
	env.Engine.Now = func() time.Time { return testNow.Add(72 * time.Hour) }
	env.Cache.Delete(env.Ctx, cache.OverdueReportKey(env.ProjectID))

	rows, err = env.Engine.OverdueReport(env.Ctx, env.Admin, env.ProjectID)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != task.ID {
		t.Fatalf("want one overdue row, got %v", rows)
	}
	if rows[0].DaysOverdue != 2 {
		t.Fatalf("days overdue = %d, want 2", rows[0].DaysOverdue)
	}

	// completing the task removes it from the report
	if _, err := env.Engine.UpdateTaskStatus(env.Ctx, env.Manager, task.ID, domain.StatusInProgress); err != nil {
		t.Fatalf("progress: %v", err)
	}
	if _, err := env.Engine.UpdateTaskStatus(env.Ctx, env.Manager, task.ID, domain.StatusDone); err != nil {
		t.Fatalf("done: %v", err)
	}
	rows, err = env.Engine.OverdueReport(env.Ctx, env.Admin, env.ProjectID)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("done task still overdue: %v", rows)
	}
}

func TestOverdueReportOffsetDueDates(t *testing.T) {
	env := newTestEnv(t)

	// 23:00+09:00 is 14:00Z, two hours past the fixed noon clock
	offset := "2026-06-01T23:00:00+09:00"
	task := mustCreateTask(t, env, engine.TaskCreateOptions{Title: "offset", DueDate: &offset})
	if task.DueDate == nil || *task.DueDate != "2026-06-01T14:00:00Z" {
		t.Fatalf("due date not canonicalized to UTC: %v", task.DueDate)
	}

	env.Engine.Now = func() time.Time { return testNow.Add(6 * time.Hour) } // 18:00Z
	rows, err := env.Engine.OverdueReport(env.Ctx, env.Admin, env.ProjectID)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != task.ID {
		t.Fatalf("offset due date missing from overdue report: %v", rows)
	}

	// pushing the due date out with another offset clears the report
	later := "2026-06-03T09:00:00+02:00"
	updated, err := env.Engine.UpdateTask(env.Ctx, env.Manager, task.ID, engine.TaskUpdateOptions{DueDate: &later})
	if err != nil {
		t.Fatalf("update due date: %v", err)
	}
	if updated.DueDate == nil || *updated.DueDate != "2026-06-03T07:00:00Z" {
		t.Fatalf("updated due date not canonicalized: %v", updated.DueDate)
	}
	rows, err = env.Engine.OverdueReport(env.Ctx, env.Admin, env.ProjectID)
	if err != nil {
		t.Fatalf("report after update: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("rescheduled task still overdue: %v", rows)
	}
}

func TestCommentOwnership(t *testing.T) {
	env := newTestEnv(t)
	task := mustCreateTask(t, env, engine.TaskCreateOptions{Title: "discussed"})

	c, err := env.Engine.CreateComment(env.Ctx, env.Member, task.ID, "looks good")
	if err != nil {
		t.Fatalf("comment: %v", err)
	}

	// another member cannot delete it
	now := testNow.Format(time.RFC3339)
	if err := env.Store.AddMember(env.Ctx, env.ProjectID, "member-2", now); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if err := env.Engine.DeleteComment(env.Ctx, env.Member2, c.ID); !apperr.IsAuthorization(err) {
		t.Fatalf("foreign member delete: want authorization error, got %v", err)
	}

	// the author can
	if err := env.Engine.DeleteComment(env.Ctx, env.Member, c.ID); err != nil {
		t.Fatalf("author delete: %v", err)
	}
}

func TestAttachmentLimits(t *testing.T) {
	env := newTestEnv(t)
	task := mustCreateTask(t, env, engine.TaskCreateOptions{Title: "filed"})

	_, err := env.Engine.AddAttachment(env.Ctx, env.Member, task.ID, engine.AttachmentOptions{FileName: "evil.exe", FileSize: 100})
	if !apperr.HasCode(err, apperr.CodeInvalidFileType) {
		t.Fatalf("bad extension: want code %d, got %v", apperr.CodeInvalidFileType, err)
	}

	_, err = env.Engine.AddAttachment(env.Ctx, env.Member, task.ID, engine.AttachmentOptions{FileName: "big.pdf", FileSize: 50 * 1024 * 1024})
	if !apperr.HasCode(err, apperr.CodeFileTooLarge) {
		t.Fatalf("oversize: want code %d, got %v", apperr.CodeFileTooLarge, err)
	}

	for i := 0; i < env.Engine.Config.MaxFilesPerTask; i++ {
		_, err := env.Engine.AddAttachment(env.Ctx, env.Member, task.ID, engine.AttachmentOptions{FileName: "doc.pdf", FileSize: 100})
		if err != nil {
			t.Fatalf("attachment %d: %v", i, err)
		}
	}
	_, err = env.Engine.AddAttachment(env.Ctx, env.Member, task.ID, engine.AttachmentOptions{FileName: "doc.pdf", FileSize: 100})
	if !apperr.HasCode(err, apperr.CodeTooManyAttachments) {
		t.Fatalf("over limit: want code %d, got %v", apperr.CodeTooManyAttachments, err)
	}
}

func TestProjectCreationAddsCreatorAsMember(t *testing.T) {
	env := newTestEnv(t)
	p, err := env.Engine.CreateProject(env.Ctx, env.Manager, engine.ProjectCreateOptions{Name: "Side quest"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	ok, err := env.Store.IsMember(env.Ctx, p.ID, "manager-1")
	if err != nil || !ok {
		t.Fatalf("creator not a member: %v", err)
	}
	// the creator can immediately manage it
	if _, err := env.Engine.CreateTask(env.Ctx, env.Manager, p.ID, engine.TaskCreateOptions{Title: "first"}); err != nil {
		t.Fatalf("manage own project: %v", err)
	}
}
