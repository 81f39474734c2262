package tracker

import (
	"sort"
	"time"
)

// resetRanks are the status numbers any task may fall back to from any
// state. They double as the workflow's start; there is no structural
// terminal state, just the absence of a next rank.
var resetRanks = map[int]bool{0: true, 1: true}

// Workflow is the ordered set of statuses in effect for one operation.
// Loaded from the store per call, so a data change takes effect on the
// next request without any cache to invalidate.
type Workflow struct {
	statuses []Status // sorted by Number ascending
}

// NewWorkflow builds a Workflow from the given statuses, sorting a copy
// by rank.
func NewWorkflow(statuses []Status) Workflow {
	sorted := make([]Status, len(statuses))
	copy(sorted, statuses)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })
	return Workflow{statuses: sorted}
}

// ByID looks up a status by id.
func (w Workflow) ByID(id int64) (Status, bool) {
	for _, s := range w.statuses {
		if s.ID == id {
			return s, true
		}
	}
	return Status{}, false
}

// ByName looks up a status by its display name.
func (w Workflow) ByName(name string) (Status, bool) {
	for _, s := range w.statuses {
		if s.Name == name {
			return s, true
		}
	}
	return Status{}, false
}

// ValidateTransition checks the rank rule: a task advances strictly
// forward by one, or resets to one of the earliest ranks from anywhere.
func ValidateTransition(current, next Status) error {
	if next.Number == current.Number+1 || resetRanks[next.Number] {
		return nil
	}
	return Policyf("invalid status")
}

// Transition validates and applies a status change to the task, acted by
// actor. On success the task's status and executor are mutated (the actor
// always becomes the executor) and the returned history entry snapshots
// the pre-transition type, priority, header and description together with
// the new status and the actor. The caller persists both as one unit.
func Transition(task *Task, next Status, actor User, now time.Time) (HistoryEntry, error) {
	if err := ValidateTransition(task.Status, next); err != nil {
		return HistoryEntry{}, err
	}
	// The actor becomes the executor, so it must satisfy the executor
	// policy for the target status.
	if err := CheckExecutor(actor.Roles, next); err != nil {
		return HistoryEntry{}, err
	}

	entry := HistoryEntry{
		TaskID:      task.ID,
		Type:        task.Type.Name,
		Priority:    task.Priority,
		Status:      next,
		Header:      task.Header,
		Description: task.Description,
		Executor:    &actor,
		ChangedAt:   now,
		ChangedBy:   actor,
	}

	task.Status = next
	task.Executor = &actor
	task.UpdatedAt = now

	return entry, nil
}
