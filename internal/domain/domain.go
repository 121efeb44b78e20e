package domain

// Role is the organization-scoped capability tier.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleMember:
		return true
	}
	return false
}

// Status is a task lifecycle state.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// AllStatuses is the fixed enumeration order used by reports.
var AllStatuses = []Status{StatusTodo, StatusInProgress, StatusDone}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Organization struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type User struct {
	ID        string `json:"id"`
	OrgID     string `json:"organization_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      Role   `json:"role" enum:"admin,manager,member"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Project struct {
	ID          string `json:"id"`
	OrgID       string `json:"organization_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

// Membership is the pure (user, project) join relation.
type Membership struct {
	ProjectID string `json:"project_id"`
	UserID    string `json:"user_id"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Task struct {
	ID          string   `json:"id"`
	ProjectID   string   `json:"project_id"`
	CreatorID   string   `json:"creator_id"`
	AssigneeID  *string  `json:"assignee_id,omitempty"`
	Status      Status   `json:"status" enum:"todo,in-progress,done"`
	Priority    Priority `json:"priority" enum:"low,medium,high"`
	DueDate     *string  `json:"due_date,omitempty" format:"date-time"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	CreatedAt   string   `json:"created_at" format:"date-time"`
	UpdatedAt   string   `json:"updated_at" format:"date-time"`
}

type Comment struct {
	ID        string `json:"id"`
	TaskID    string `json:"task_id"`
	AuthorID  string `json:"author_id"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Attachment struct {
	ID          string `json:"id"`
	TaskID      string `json:"task_id"`
	AuthorID    string `json:"author_id"`
	FileName    string `json:"file_name"`
	FileSize    int64  `json:"file_size"`
	ContentType string `json:"content_type,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

// Notification is an ephemeral side-channel record, not part of the
// relational core.
type Notification struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	Title     string  `json:"title"`
	Message   string  `json:"message"`
	Type      string  `json:"type"`
	RelatedID *string `json:"related_id,omitempty"`
	IsRead    bool    `json:"is_read"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

// Principal is the authenticated caller, resolved from a verified token.
type Principal struct {
	UserID   string `json:"user_id"`
	OrgID    string `json:"organization_id"`
	Role     Role   `json:"role" enum:"admin,manager,member"`
	IsActive bool   `json:"is_active"`
}
