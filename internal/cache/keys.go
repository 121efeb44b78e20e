package cache

import "fmt"

// Key construction is deterministic: identical filters always produce the
// same key, and the field order below is fixed, not incidental.

func TaskListKey(projectID, status, assigneeID, priority string, skip, limit int) string {
	return fmt.Sprintf("tasks:project:%s:status=%s:assignee=%s:priority=%s:skip=%d:limit=%d",
		projectID, status, assigneeID, priority, skip, limit)
}

// TaskListPattern matches every cached list variant for a project.
func TaskListPattern(projectID string) string {
	return fmt.Sprintf("tasks:project:%s:*", projectID)
}

func StatusReportKey(projectID string) string {
	return fmt.Sprintf("report:project:%s:task_count_by_status", projectID)
}

func OverdueReportKey(projectID string) string {
	return fmt.Sprintf("report:project:%s:overdue_tasks", projectID)
}
