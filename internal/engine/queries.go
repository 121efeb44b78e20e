package engine

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"taskdeck/internal/apperr"
	"taskdeck/internal/cache"
	"taskdeck/internal/domain"
	"taskdeck/internal/store"
)

// cacheGet reads a key and distinguishes a miss from a backend failure.
// Failures degrade to a miss after a log line: the cache never fails a
// request.
func (e Engine) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if e.Cache == nil {
		return nil, false
	}
	data, err := e.Cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			e.Log.WithError(err).WithField("key", key).Warn("cache read failed; serving from storage")
		}
		return nil, false
	}
	return data, true
}

// cachePut writes best-effort.
func (e Engine) cachePut(ctx context.Context, key string, value any, ttl time.Duration) {
	if e.Cache == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := e.Cache.SetWithTTL(ctx, key, data, ttl); err != nil {
		e.Log.WithError(err).WithField("key", key).Warn("cache write failed")
	}
}

// ListProjectTasks returns a filtered, paginated task page for a project.
// The cache holds the ID list only; entities are rehydrated with one
// batched lookup and re-sorted to the cached order, since the store does
// not guarantee IN(...) result ordering.
func (e Engine) ListProjectTasks(ctx context.Context, p domain.Principal, projectID string, f store.TaskFilter) ([]domain.Task, error) {
	if _, err := e.Guard.ProjectAccess(ctx, p, projectID); err != nil {
		return nil, err
	}
	key := cache.TaskListKey(projectID, string(f.Status), f.AssigneeID, string(f.Priority), f.Skip, f.Limit)
	if data, ok := e.cacheGet(ctx, key); ok {
		var ids []string
		if err := json.Unmarshal(data, &ids); err == nil {
			if tasks, ok := e.rehydrate(ctx, ids); ok {
				return tasks, nil
			}
		}
	}
	tasks, err := e.Store.ListTasks(ctx, projectID, f)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	e.cachePut(ctx, key, ids, e.Config.TaskListCacheTTL)
	return tasks, nil
}

// rehydrate batch-loads the cached IDs and reconstructs the cached order.
// A task deleted since the cache was written makes the entry stale, so
// the caller falls back to a fresh query.
func (e Engine) rehydrate(ctx context.Context, ids []string) ([]domain.Task, bool) {
	byID, err := e.Store.GetTasksByIDs(ctx, ids)
	if err != nil {
		return nil, false
	}
	tasks := make([]domain.Task, 0, len(ids))
	for _, id := range ids {
		t, ok := byID[id]
		if !ok {
			return nil, false
		}
		tasks = append(tasks, t)
	}
	return tasks, true
}

// StatusReport is the task-count-by-status aggregate for a project, with
// every status zero-filled.
func (e Engine) StatusReport(ctx context.Context, p domain.Principal, projectID string) (map[domain.Status]int, error) {
	if _, err := e.Guard.ProjectAccess(ctx, p, projectID); err != nil {
		return nil, err
	}
	key := cache.StatusReportKey(projectID)
	if data, ok := e.cacheGet(ctx, key); ok {
		var counts map[domain.Status]int
		if err := json.Unmarshal(data, &counts); err == nil {
			return counts, nil
		}
	}
	counts, err := e.Store.CountTasksByStatus(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for _, st := range domain.AllStatuses {
		if _, ok := counts[st]; !ok {
			counts[st] = 0
		}
	}
	e.cachePut(ctx, key, counts, e.Config.ReportCacheTTL)
	return counts, nil
}

// OverdueTask is a report row: a task past its due date plus how many
// days late it is.
type OverdueTask struct {
	domain.Task
	DaysOverdue int `json:"days_overdue"`
}

// OverdueReport lists tasks with a due date in the past that are not
// done.
func (e Engine) OverdueReport(ctx context.Context, p domain.Principal, projectID string) ([]OverdueTask, error) {
	if _, err := e.Guard.ProjectAccess(ctx, p, projectID); err != nil {
		return nil, err
	}
	key := cache.OverdueReportKey(projectID)
	if data, ok := e.cacheGet(ctx, key); ok {
		var out []OverdueTask
		if err := json.Unmarshal(data, &out); err == nil {
			return out, nil
		}
	}
	now := e.now().UTC()
	tasks, err := e.Store.ListOverdueTasks(ctx, projectID, now.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	out := make([]OverdueTask, 0, len(tasks))
	for _, t := range tasks {
		row := OverdueTask{Task: t}
		if t.DueDate != nil {
			if due, err := parseDueDate(*t.DueDate); err == nil {
				row.DaysOverdue = int(now.Sub(due).Hours() / 24)
			}
		}
		out = append(out, row)
	}
	e.cachePut(ctx, key, out, e.Config.ReportCacheTTL)
	return out, nil
}

// TaskStatistics is the uncached total + per-status breakdown.
func (e Engine) TaskStatistics(ctx context.Context, p domain.Principal, projectID string) (map[string]int, error) {
	if _, err := e.Guard.ProjectAccess(ctx, p, projectID); err != nil {
		return nil, err
	}
	counts, err := e.Store.CountTasksByStatus(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := map[string]int{"total": 0}
	for _, st := range domain.AllStatuses {
		out[string(st)] = counts[st]
		out["total"] += counts[st]
	}
	return out, nil
}

// ListTasksByAssignee returns tasks assigned to a user: callers may list
// their own, admins anyone in their organization.
func (e Engine) ListTasksByAssignee(ctx context.Context, p domain.Principal, assigneeID string, status domain.Status) ([]domain.Task, error) {
	if err := e.ensureSelfOrAdmin(ctx, p, assigneeID); err != nil {
		return nil, err
	}
	return e.Store.ListTasksByAssignee(ctx, assigneeID, status)
}

// ListTasksByCreator mirrors ListTasksByAssignee for created tasks.
func (e Engine) ListTasksByCreator(ctx context.Context, p domain.Principal, creatorID string, status domain.Status) ([]domain.Task, error) {
	if err := e.ensureSelfOrAdmin(ctx, p, creatorID); err != nil {
		return nil, err
	}
	return e.Store.ListTasksByCreator(ctx, creatorID, status)
}

func (e Engine) ensureSelfOrAdmin(ctx context.Context, p domain.Principal, userID string) error {
	if !p.IsActive {
		return apperr.Authorization("inactive user")
	}
	if userID == p.UserID {
		return nil
	}
	if p.Role != domain.RoleAdmin {
		return apperr.Authorization("you can only list your own tasks")
	}
	u, err := e.Store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if u.OrgID != p.OrgID {
		return apperr.Authorization("cross-organization access denied")
	}
	return nil
}
