package tracker

import "time"

// Role names consulted by the policy checks. Roles live in the store as
// plain rows; these constants are the three the workflow cares about.
const (
	RoleManager   = "Manager"
	RoleDeveloper = "Developer"
	RoleTester    = "Tester"
)

// Status is a ranked workflow stage. Number defines the forward-progress
// order: lower is earlier. The set of statuses is data-driven, not a fixed
// enumeration.
type Status struct {
	ID     int64
	Name   string
	Number int
}

// Priority is a labeled priority level (e.g., "High").
type Priority struct {
	ID   int64
	Name string
}

// TaskType is a labeled task category (e.g., "Bug").
type TaskType struct {
	ID   int64
	Name string
}

// Role is an assignable role row. The Name is what the policy checks
// consult.
type Role struct {
	ID   int64
	Name string
}

// User is an account known to the tracker. Roles is populated only by
// user lookups; task reads carry ID and Username.
type User struct {
	ID       int64
	Username string
	Email    string
	Roles    []string
}

// Task is a unit of work tracked by the system.
type Task struct {
	ID          int64
	Type        TaskType
	Priority    *Priority
	Status      Status
	Header      string
	Description string
	Executor    *User
	Creator     User
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HistoryEntry is an immutable snapshot of a task's fields, recorded on
// every creation, edit, and status transition. Entries are never updated;
// they are deleted only when their task is deleted.
type HistoryEntry struct {
	ID          int64
	TaskID      int64
	Type        string // type name at the time of the change
	Priority    *Priority
	Status      Status
	Header      string
	Description string
	Executor    *User
	ChangedAt   time.Time
	ChangedBy   User
}

// Edge is a directed relation between two task ids. Used for both the
// dependency graph (From blocks To) and the subtask graph (From is the
// parent of To).
type Edge struct {
	From int64
	To   int64
}

// Detail aggregates everything a task detail view needs.
type Detail struct {
	Task     Task
	History  []HistoryEntry
	Blocking []Task // tasks that block this one
	Blocked  []Task // tasks this one blocks
	Parent   *Task
	Children []Task
}
