package orchestrator

import (
	"context"
	"time"

	"github.com/aristath/tracker/internal/events"
	"github.com/aristath/tracker/internal/persistence"
	"github.com/aristath/tracker/internal/tracker"
)

// Service coordinates the task use cases: it resolves command references
// against the store, runs the policy and workflow checks, and commits
// every multi-row mutation (task, history, graph edges) as one
// transaction. Events are published only after a successful commit.
type Service struct {
	store *persistence.SQLiteStore
	bus   *events.EventBus
	locks *TaskLockManager
}

// NewService creates a new Service.
func NewService(store *persistence.SQLiteStore, bus *events.EventBus) *Service {
	return &Service{
		store: store,
		bus:   bus,
		locks: NewTaskLockManager(),
	}
}

// CreateCommand carries the decoded input of a task creation. Reference
// fields (type, status, priority, executor, parent) are names resolved
// against the store; BlockedIDs are ids of tasks this one will block.
type CreateCommand struct {
	Type         string
	Status       string
	Header       string
	Description  string
	Priority     string
	Executor     string
	ParentHeader string
	BlockedIDs   []int64
}

// EditCommand carries the decoded input of a task edit. Optional fields
// left empty are cleared on the task, not preserved; status is never
// touched by an edit.
type EditCommand struct {
	Type        string
	Header      string
	Description string
	Priority    string
	Executor    string
	BlockedIDs  []int64
}

// Create validates and persists a new task together with its optional
// parent edge, its dependency edges, and its first history entry.
func (s *Service) Create(ctx context.Context, cmd CreateCommand, actor tracker.User) (tracker.Task, error) {
	if cmd.Type == "" || cmd.Status == "" || cmd.Header == "" {
		return tracker.Task{}, tracker.Validationf("required fields are missing")
	}

	executor, err := s.resolveExecutor(ctx, cmd.Executor)
	if err != nil {
		return tracker.Task{}, err
	}
	if executor != nil && tracker.IsManager(executor.Roles) {
		return tracker.Task{}, tracker.Policyf("a user with the %q role cannot be assigned as executor", tracker.RoleManager)
	}

	taskType, err := s.store.GetTaskTypeByName(ctx, cmd.Type)
	if err != nil {
		return tracker.Task{}, err
	}
	statuses, err := s.store.ListStatuses(ctx)
	if err != nil {
		return tracker.Task{}, err
	}
	status, ok := tracker.NewWorkflow(statuses).ByName(cmd.Status)
	if !ok {
		return tracker.Task{}, tracker.NotFoundf("status %q not found", cmd.Status)
	}
	priority, err := s.resolvePriority(ctx, cmd.Priority)
	if err != nil {
		return tracker.Task{}, err
	}

	var parent *tracker.Task
	if cmd.ParentHeader != "" {
		p, err := s.store.GetTaskByHeader(ctx, cmd.ParentHeader)
		if err != nil {
			return tracker.Task{}, err
		}
		parent = &p
	}

	// The target status constrains who may execute: the per-status
	// exclusions apply on creation, and In progress demands an executor.
	if executor != nil {
		if err := tracker.CheckExecutor(executor.Roles, status); err != nil {
			return tracker.Task{}, err
		}
	}
	if status.Name == tracker.StatusInProgress && executor == nil {
		return tracker.Task{}, tracker.Policyf("an executor must be assigned while the status is %q", tracker.StatusInProgress)
	}

	now := time.Now()
	task := tracker.Task{
		Type:        taskType,
		Priority:    priority,
		Status:      status,
		Header:      cmd.Header,
		Description: cmd.Description,
		Executor:    executor,
		Creator:     actor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.store.InTransaction(ctx, func(tx *persistence.Tx) error {
		if err := tx.InsertTask(ctx, &task); err != nil {
			return err
		}
		if parent != nil {
			if err := tx.InsertSubtask(ctx, parent.ID, task.ID); err != nil {
				return err
			}
		}
		if err := insertDependencies(ctx, tx, task.ID, cmd.BlockedIDs); err != nil {
			return err
		}

		entry := tracker.HistoryEntry{
			TaskID:      task.ID,
			Type:        taskType.Name,
			Priority:    priority,
			Status:      status,
			Header:      task.Header,
			Description: task.Description,
			Executor:    executor,
			ChangedAt:   now,
			ChangedBy:   actor,
		}
		return tx.InsertHistory(ctx, &entry)
	})
	if err != nil {
		return tracker.Task{}, err
	}

	s.bus.Publish(events.TopicTask, events.NewEvent(events.EventTypeTaskCreated, task.ID, actor.Username))
	return task, nil
}

// Edit rewrites a task's editable fields, replaces its dependency edges,
// and appends a history entry with the task's unchanged status.
//
// Only the manager exclusion is applied to the executor here; the
// per-status exclusions are a creation and transition rule.
func (s *Service) Edit(ctx context.Context, taskID int64, cmd EditCommand, actor tracker.User) (tracker.Task, error) {
	s.locks.Lock(taskID)
	defer s.locks.Unlock(taskID)

	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return tracker.Task{}, err
	}

	if cmd.Type == "" || cmd.Header == "" {
		return tracker.Task{}, tracker.Validationf("required fields are missing")
	}

	executor, err := s.resolveExecutor(ctx, cmd.Executor)
	if err != nil {
		return tracker.Task{}, err
	}
	if executor != nil && tracker.IsManager(executor.Roles) {
		return tracker.Task{}, tracker.Policyf("a user with the %q role cannot be assigned as executor", tracker.RoleManager)
	}

	taskType, err := s.store.GetTaskTypeByName(ctx, cmd.Type)
	if err != nil {
		return tracker.Task{}, err
	}
	priority, err := s.resolvePriority(ctx, cmd.Priority)
	if err != nil {
		return tracker.Task{}, err
	}

	now := time.Now()
	task.Type = taskType
	task.Priority = priority
	task.Header = cmd.Header
	task.Description = cmd.Description
	task.Executor = executor
	task.UpdatedAt = now

	err = s.store.InTransaction(ctx, func(tx *persistence.Tx) error {
		if err := tx.UpdateTask(ctx, &task); err != nil {
			return err
		}
		// Editing makes the task the blocking side of its declared
		// dependencies; edges where it was the blocked side are dropped.
		if err := tx.DeleteDependenciesTouching(ctx, task.ID); err != nil {
			return err
		}
		if err := insertDependencies(ctx, tx, task.ID, cmd.BlockedIDs); err != nil {
			return err
		}

		entry := tracker.HistoryEntry{
			TaskID:      task.ID,
			Type:        taskType.Name,
			Priority:    priority,
			Status:      task.Status,
			Header:      task.Header,
			Description: task.Description,
			Executor:    executor,
			ChangedAt:   now,
			ChangedBy:   actor,
		}
		return tx.InsertHistory(ctx, &entry)
	})
	if err != nil {
		return tracker.Task{}, err
	}

	s.bus.Publish(events.TopicTask, events.NewEvent(events.EventTypeTaskUpdated, task.ID, actor.Username))
	return task, nil
}

// Transition moves a task to a new status on behalf of actor. Managers
// administer tasks but never work them, so the operation is closed to
// them entirely. The rank rule and executor policy live in the workflow
// engine; history and the task row commit together.
func (s *Service) Transition(ctx context.Context, taskID, statusID int64, actor tracker.User) (tracker.Task, error) {
	if tracker.IsManager(actor.Roles) {
		return tracker.Task{}, tracker.Permissionf("managers cannot change task status")
	}

	s.locks.Lock(taskID)
	defer s.locks.Unlock(taskID)

	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return tracker.Task{}, err
	}

	statuses, err := s.store.ListStatuses(ctx)
	if err != nil {
		return tracker.Task{}, err
	}
	next, ok := tracker.NewWorkflow(statuses).ByID(statusID)
	if !ok {
		return tracker.Task{}, tracker.NotFoundf("status %d not found", statusID)
	}

	entry, err := tracker.Transition(&task, next, actor, time.Now())
	if err != nil {
		return tracker.Task{}, err
	}

	err = s.store.InTransaction(ctx, func(tx *persistence.Tx) error {
		if err := tx.InsertHistory(ctx, &entry); err != nil {
			return err
		}
		return tx.UpdateTaskStatus(ctx, &task)
	})
	if err != nil {
		return tracker.Task{}, err
	}

	event := events.NewEvent(events.EventTypeTaskStatusChanged, task.ID, actor.Username)
	event.Status = next.Name
	s.bus.Publish(events.TopicTask, event)
	return task, nil
}

// Delete removes a task and everything that references it: its history,
// its subtask edges in both directions, and its dependency edges in both
// directions, all in one transaction. Manager only.
func (s *Service) Delete(ctx context.Context, taskID int64, actor tracker.User) error {
	if !tracker.IsManager(actor.Roles) {
		return tracker.Permissionf("only a manager can delete tasks")
	}

	s.locks.Lock(taskID)
	defer s.locks.Unlock(taskID)

	if _, err := s.store.GetTask(ctx, taskID); err != nil {
		return err
	}

	err := s.store.InTransaction(ctx, func(tx *persistence.Tx) error {
		if err := tx.DeleteHistory(ctx, taskID); err != nil {
			return err
		}
		if err := tx.DeleteSubtasksTouching(ctx, taskID); err != nil {
			return err
		}
		if err := tx.DeleteDependenciesTouching(ctx, taskID); err != nil {
			return err
		}
		return tx.DeleteTask(ctx, taskID)
	})
	if err != nil {
		return err
	}

	s.bus.Publish(events.TopicTask, events.NewEvent(events.EventTypeTaskDeleted, taskID, actor.Username))
	return nil
}

// Detail aggregates a task with its history (newest first) and its graph
// neighborhood.
func (s *Service) Detail(ctx context.Context, taskID int64) (tracker.Detail, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return tracker.Detail{}, err
	}

	history, err := s.store.TaskHistory(ctx, taskID)
	if err != nil {
		return tracker.Detail{}, err
	}

	rel, err := s.store.TaskRelations(ctx, taskID)
	if err != nil {
		return tracker.Detail{}, err
	}

	return tracker.Detail{
		Task:     task,
		History:  history,
		Blocking: rel.Blocking,
		Blocked:  rel.Blocked,
		Parent:   rel.Parent,
		Children: rel.Children,
	}, nil
}

// List returns tasks matching the filter, most recently changed first.
func (s *Service) List(ctx context.Context, filter persistence.TaskFilter) ([]tracker.Task, error) {
	return s.store.ListTasks(ctx, filter)
}

// ResolutionOrder returns all task ids ordered so every blocking task
// precedes the tasks it blocks. A cyclic dependency graph is reported as
// a conflict.
func (s *Service) ResolutionOrder(ctx context.Context) ([]int64, error) {
	ids, err := s.store.ListTaskIDs(ctx)
	if err != nil {
		return nil, err
	}
	edges, err := s.store.ListDependencyEdges(ctx)
	if err != nil {
		return nil, err
	}
	return tracker.ResolutionOrder(ids, edges)
}

// Users lists all users with their roles. Manager only.
func (s *Service) Users(ctx context.Context, actor tracker.User) ([]tracker.User, error) {
	if !tracker.IsManager(actor.Roles) {
		return nil, tracker.Permissionf("only a manager can list users")
	}
	return s.store.ListUsers(ctx)
}

// AssignRole replaces the target user's role set with the single given
// role. Manager only.
func (s *Service) AssignRole(ctx context.Context, actor tracker.User, userID, roleID int64) (tracker.User, error) {
	if !tracker.IsManager(actor.Roles) {
		return tracker.User{}, tracker.Permissionf("only a manager can assign roles")
	}
	if err := s.store.SetUserRole(ctx, userID, roleID); err != nil {
		return tracker.User{}, err
	}
	return s.store.GetUserByID(ctx, userID)
}

// RenameUser changes a user's username. Manager only; duplicate names
// are a conflict.
func (s *Service) RenameUser(ctx context.Context, actor tracker.User, userID int64, username string) (tracker.User, error) {
	if !tracker.IsManager(actor.Roles) {
		return tracker.User{}, tracker.Permissionf("only a manager can rename users")
	}
	if username == "" {
		return tracker.User{}, tracker.Validationf("new username cannot be empty")
	}
	if err := s.store.RenameUser(ctx, userID, username); err != nil {
		return tracker.User{}, err
	}
	return s.store.GetUserByID(ctx, userID)
}

func (s *Service) resolveExecutor(ctx context.Context, username string) (*tracker.User, error) {
	if username == "" {
		return nil, nil
	}
	user, err := s.store.GetUserByUsername(ctx, username)
	if tracker.IsNotFound(err) {
		return nil, tracker.Validationf("specified executor not found")
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) resolvePriority(ctx context.Context, name string) (*tracker.Priority, error) {
	if name == "" {
		return nil, nil
	}
	priority, err := s.store.GetPriorityByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return &priority, nil
}

// insertDependencies adds a blocking edge from taskID to every id in
// blockedIDs, checking each endpoint exists inside the transaction.
func insertDependencies(ctx context.Context, tx *persistence.Tx, taskID int64, blockedIDs []int64) error {
	for _, blockedID := range blockedIDs {
		exists, err := tx.HasTask(ctx, blockedID)
		if err != nil {
			return err
		}
		if !exists {
			return tracker.NotFoundf("task %d not found", blockedID)
		}
		if err := tx.InsertDependency(ctx, taskID, blockedID); err != nil {
			return err
		}
	}
	return nil
}
