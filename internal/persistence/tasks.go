package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/aristath/tracker/internal/tracker"
)

// taskSelect is the shared projection for assembling a full Task row.
const taskSelect = `
	SELECT t.id,
	       ty.id, ty.name,
	       t.priority_id, p.name,
	       s.id, s.name, s.number,
	       t.header, t.description,
	       t.executor_id, e.username, e.email,
	       c.id, c.username, c.email,
	       t.created_at, t.updated_at
	FROM tasks t
	JOIN task_types ty ON ty.id = t.type_id
	LEFT JOIN priorities p ON p.id = t.priority_id
	JOIN statuses s ON s.id = t.status_id
	LEFT JOIN users e ON e.id = t.executor_id
	JOIN users c ON c.id = t.creator_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (tracker.Task, error) {
	var (
		task       tracker.Task
		priorityID sql.NullInt64
		priority   sql.NullString
		executorID sql.NullInt64
		executor   sql.NullString
		execEmail  sql.NullString
	)

	err := row.Scan(
		&task.ID,
		&task.Type.ID, &task.Type.Name,
		&priorityID, &priority,
		&task.Status.ID, &task.Status.Name, &task.Status.Number,
		&task.Header, &task.Description,
		&executorID, &executor, &execEmail,
		&task.Creator.ID, &task.Creator.Username, &task.Creator.Email,
		&task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return tracker.Task{}, err
	}

	if priorityID.Valid {
		task.Priority = &tracker.Priority{ID: priorityID.Int64, Name: priority.String}
	}
	if executorID.Valid {
		task.Executor = &tracker.User{ID: executorID.Int64, Username: executor.String, Email: execEmail.String}
	}

	return task, nil
}

func (s *SQLiteStore) queryTasks(ctx context.Context, query string, args ...any) ([]tracker.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []tracker.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

// GetTask retrieves a task by id.
func (s *SQLiteStore) GetTask(ctx context.Context, taskID int64) (tracker.Task, error) {
	task, err := scanTask(s.db.QueryRowContext(ctx, taskSelect+` WHERE t.id = ?`, taskID))
	if err == sql.ErrNoRows {
		return tracker.Task{}, tracker.NotFoundf("task %d not found", taskID)
	}
	if err != nil {
		return tracker.Task{}, fmt.Errorf("failed to query task: %w", err)
	}
	return task, nil
}

// GetTaskByHeader retrieves a task by its exact header. Used to resolve a
// named parent task on creation.
func (s *SQLiteStore) GetTaskByHeader(ctx context.Context, header string) (tracker.Task, error) {
	task, err := scanTask(s.db.QueryRowContext(ctx, taskSelect+` WHERE t.header = ? ORDER BY t.id LIMIT 1`, header))
	if err == sql.ErrNoRows {
		return tracker.Task{}, tracker.NotFoundf("task %q not found", header)
	}
	if err != nil {
		return tracker.Task{}, fmt.Errorf("failed to query task by header: %w", err)
	}
	return task, nil
}

// TaskFilter narrows ListTasks. Empty fields are ignored; names match the
// related row's display name, search matches header, description or the
// id rendered as text.
type TaskFilter struct {
	Status   string
	Type     string
	Executor string
	Creator  string
	Search   string
}

// ListTasks returns tasks matching the filter, most recently changed
// first.
func (s *SQLiteStore) ListTasks(ctx context.Context, filter TaskFilter) ([]tracker.Task, error) {
	var conds []string
	var args []any

	if filter.Search != "" {
		conds = append(conds, `(t.header LIKE ? OR t.description LIKE ? OR CAST(t.id AS TEXT) LIKE ?)`)
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}
	if filter.Status != "" {
		conds = append(conds, `s.name = ?`)
		args = append(args, filter.Status)
	}
	if filter.Type != "" {
		conds = append(conds, `ty.name = ?`)
		args = append(args, filter.Type)
	}
	if filter.Executor != "" {
		conds = append(conds, `e.username = ?`)
		args = append(args, filter.Executor)
	}
	if filter.Creator != "" {
		conds = append(conds, `c.username = ?`)
		args = append(args, filter.Creator)
	}

	query := taskSelect
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY t.updated_at DESC, t.id DESC`

	return s.queryTasks(ctx, query, args...)
}

// TaskHistory returns the task's history entries, newest first.
func (s *SQLiteStore) TaskHistory(ctx context.Context, taskID int64) ([]tracker.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT h.id, h.task_id, h.type,
		       h.priority_id, p.name,
		       s.id, s.name, s.number,
		       h.header, h.description,
		       h.executor_id, e.username, e.email,
		       h.changed_at,
		       u.id, u.username, u.email
		FROM task_history h
		LEFT JOIN priorities p ON p.id = h.priority_id
		JOIN statuses s ON s.id = h.status_id
		LEFT JOIN users e ON e.id = h.executor_id
		JOIN users u ON u.id = h.changed_by
		WHERE h.task_id = ?
		ORDER BY h.id DESC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var history []tracker.HistoryEntry
	for rows.Next() {
		var (
			entry      tracker.HistoryEntry
			priorityID sql.NullInt64
			priority   sql.NullString
			executorID sql.NullInt64
			executor   sql.NullString
			execEmail  sql.NullString
		)
		err := rows.Scan(
			&entry.ID, &entry.TaskID, &entry.Type,
			&priorityID, &priority,
			&entry.Status.ID, &entry.Status.Name, &entry.Status.Number,
			&entry.Header, &entry.Description,
			&executorID, &executor, &execEmail,
			&entry.ChangedAt,
			&entry.ChangedBy.ID, &entry.ChangedBy.Username, &entry.ChangedBy.Email,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		if priorityID.Valid {
			entry.Priority = &tracker.Priority{ID: priorityID.Int64, Name: priority.String}
		}
		if executorID.Valid {
			entry.Executor = &tracker.User{ID: executorID.Int64, Username: executor.String, Email: execEmail.String}
		}
		history = append(history, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	return history, nil
}

// Relations is the graph neighborhood of one task.
type Relations struct {
	Blocking []tracker.Task // tasks blocking this one
	Blocked  []tracker.Task // tasks this one blocks
	Parent   *tracker.Task  // first parent edge, if any
	Children []tracker.Task
}

// TaskRelations derives the task's dependency and subtask neighborhood.
// Nothing is cached: each call re-reads the edge tables. Duplicate
// dependency edges yield duplicate entries, mirroring the stored graph.
func (s *SQLiteStore) TaskRelations(ctx context.Context, taskID int64) (Relations, error) {
	var rel Relations
	var err error

	rel.Blocking, err = s.queryTasks(ctx, taskSelect+`
		JOIN dependencies d ON d.blocking_id = t.id
		WHERE d.blocked_id = ?
		ORDER BY d.id`, taskID)
	if err != nil {
		return Relations{}, fmt.Errorf("failed to query blocking tasks: %w", err)
	}

	rel.Blocked, err = s.queryTasks(ctx, taskSelect+`
		JOIN dependencies d ON d.blocked_id = t.id
		WHERE d.blocking_id = ?
		ORDER BY d.id`, taskID)
	if err != nil {
		return Relations{}, fmt.Errorf("failed to query blocked tasks: %w", err)
	}

	// A child conceptually has one parent; only the first edge counts.
	parent, err := scanTask(s.db.QueryRowContext(ctx, taskSelect+`
		JOIN subtasks st ON st.parent_id = t.id
		WHERE st.child_id = ?
		ORDER BY st.id LIMIT 1`, taskID))
	if err == nil {
		rel.Parent = &parent
	} else if err != sql.ErrNoRows {
		return Relations{}, fmt.Errorf("failed to query parent task: %w", err)
	}

	rel.Children, err = s.queryTasks(ctx, taskSelect+`
		JOIN subtasks st ON st.child_id = t.id
		WHERE st.parent_id = ?
		ORDER BY st.id`, taskID)
	if err != nil {
		return Relations{}, fmt.Errorf("failed to query child tasks: %w", err)
	}

	return rel, nil
}

// ListTaskIDs returns the ids of all tasks.
func (s *SQLiteStore) ListTaskIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM tasks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query task ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan task id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListDependencyEdges returns every blocking -> blocked edge.
func (s *SQLiteStore) ListDependencyEdges(ctx context.Context) ([]tracker.Edge, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT blocking_id, blocked_id FROM dependencies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependency edges: %w", err)
	}
	defer rows.Close()

	var edges []tracker.Edge
	for rows.Next() {
		var e tracker.Edge
		if err := rows.Scan(&e.From, &e.To); err != nil {
			return nil, fmt.Errorf("failed to scan dependency edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// ListStatuses returns all workflow statuses ordered by rank.
func (s *SQLiteStore) ListStatuses(ctx context.Context) ([]tracker.Status, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, number FROM statuses ORDER BY number`)
	if err != nil {
		return nil, fmt.Errorf("failed to query statuses: %w", err)
	}
	defer rows.Close()

	var statuses []tracker.Status
	for rows.Next() {
		var st tracker.Status
		if err := rows.Scan(&st.ID, &st.Name, &st.Number); err != nil {
			return nil, fmt.Errorf("failed to scan status: %w", err)
		}
		statuses = append(statuses, st)
	}
	return statuses, rows.Err()
}

// GetTaskTypeByName retrieves a task type by name.
func (s *SQLiteStore) GetTaskTypeByName(ctx context.Context, name string) (tracker.TaskType, error) {
	var ty tracker.TaskType
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM task_types WHERE name = ?`, name).
		Scan(&ty.ID, &ty.Name)
	if err == sql.ErrNoRows {
		return tracker.TaskType{}, tracker.NotFoundf("task type %q not found", name)
	}
	if err != nil {
		return tracker.TaskType{}, fmt.Errorf("failed to query task type: %w", err)
	}
	return ty, nil
}

// GetPriorityByName retrieves a priority by name.
func (s *SQLiteStore) GetPriorityByName(ctx context.Context, name string) (tracker.Priority, error) {
	var p tracker.Priority
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM priorities WHERE name = ?`, name).
		Scan(&p.ID, &p.Name)
	if err == sql.ErrNoRows {
		return tracker.Priority{}, tracker.NotFoundf("priority %q not found", name)
	}
	if err != nil {
		return tracker.Priority{}, fmt.Errorf("failed to query priority: %w", err)
	}
	return p, nil
}

func priorityID(p *tracker.Priority) any {
	if p == nil {
		return nil
	}
	return p.ID
}

func userID(u *tracker.User) any {
	if u == nil {
		return nil
	}
	return u.ID
}

// InsertTask inserts a new task row and fills in its assigned id.
func (tx *Tx) InsertTask(ctx context.Context, task *tracker.Task) error {
	res, err := tx.tx.ExecContext(ctx, `
		INSERT INTO tasks (type_id, priority_id, status_id, header, description, executor_id, creator_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, task.Type.ID, priorityID(task.Priority), task.Status.ID, task.Header, task.Description,
		userID(task.Executor), task.Creator.ID, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read inserted task id: %w", err)
	}
	task.ID = id
	return nil
}

// UpdateTask rewrites the editable fields of a task (type, priority,
// header, description, executor) in place. Status is deliberately not
// touched here; transitions go through UpdateTaskStatus.
func (tx *Tx) UpdateTask(ctx context.Context, task *tracker.Task) error {
	res, err := tx.tx.ExecContext(ctx, `
		UPDATE tasks
		SET type_id = ?, priority_id = ?, header = ?, description = ?, executor_id = ?, updated_at = ?
		WHERE id = ?
	`, task.Type.ID, priorityID(task.Priority), task.Header, task.Description,
		userID(task.Executor), task.UpdatedAt, task.ID)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return requireRow(res, task.ID)
}

// UpdateTaskStatus persists a status transition: the new status and the
// new executor.
func (tx *Tx) UpdateTaskStatus(ctx context.Context, task *tracker.Task) error {
	res, err := tx.tx.ExecContext(ctx, `
		UPDATE tasks
		SET status_id = ?, executor_id = ?, updated_at = ?
		WHERE id = ?
	`, task.Status.ID, userID(task.Executor), task.UpdatedAt, task.ID)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	return requireRow(res, task.ID)
}

func requireRow(res sql.Result, taskID int64) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return tracker.NotFoundf("task %d not found", taskID)
	}
	return nil
}

// InsertHistory appends an immutable history entry.
func (tx *Tx) InsertHistory(ctx context.Context, entry *tracker.HistoryEntry) error {
	res, err := tx.tx.ExecContext(ctx, `
		INSERT INTO task_history (task_id, type, priority_id, status_id, header, description, executor_id, changed_at, changed_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.TaskID, entry.Type, priorityID(entry.Priority), entry.Status.ID, entry.Header,
		entry.Description, userID(entry.Executor), entry.ChangedAt, entry.ChangedBy.ID)
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read inserted history id: %w", err)
	}
	entry.ID = id
	return nil
}

// HasTask reports whether a task row exists, read inside the
// transaction.
func (tx *Tx) HasTask(ctx context.Context, taskID int64) (bool, error) {
	var exists int
	err := tx.tx.QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id = ?`, taskID).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check task existence: %w", err)
	}
	return true, nil
}

// InsertDependency adds a blocking -> blocked edge. Endpoints must exist
// (foreign keys); duplicates and self-loops are not rejected.
func (tx *Tx) InsertDependency(ctx context.Context, blockingID, blockedID int64) error {
	_, err := tx.tx.ExecContext(ctx, `
		INSERT INTO dependencies (blocking_id, blocked_id) VALUES (?, ?)
	`, blockingID, blockedID)
	if err != nil {
		return fmt.Errorf("failed to insert dependency %d -> %d: %w", blockingID, blockedID, err)
	}
	return nil
}

// InsertSubtask adds a parent -> child edge.
func (tx *Tx) InsertSubtask(ctx context.Context, parentID, childID int64) error {
	_, err := tx.tx.ExecContext(ctx, `
		INSERT INTO subtasks (parent_id, child_id) VALUES (?, ?)
	`, parentID, childID)
	if err != nil {
		return fmt.Errorf("failed to insert subtask %d -> %d: %w", parentID, childID, err)
	}
	return nil
}

// DeleteDependenciesTouching removes every dependency edge where the task
// is either endpoint.
func (tx *Tx) DeleteDependenciesTouching(ctx context.Context, taskID int64) error {
	_, err := tx.tx.ExecContext(ctx, `
		DELETE FROM dependencies WHERE blocking_id = ? OR blocked_id = ?
	`, taskID, taskID)
	if err != nil {
		return fmt.Errorf("failed to delete dependencies of task %d: %w", taskID, err)
	}
	return nil
}

// DeleteSubtasksTouching removes every subtask edge where the task is
// either the parent or the child.
func (tx *Tx) DeleteSubtasksTouching(ctx context.Context, taskID int64) error {
	_, err := tx.tx.ExecContext(ctx, `
		DELETE FROM subtasks WHERE parent_id = ? OR child_id = ?
	`, taskID, taskID)
	if err != nil {
		return fmt.Errorf("failed to delete subtask edges of task %d: %w", taskID, err)
	}
	return nil
}

// DeleteHistory removes all history entries of a task. Only valid as part
// of deleting the task itself.
func (tx *Tx) DeleteHistory(ctx context.Context, taskID int64) error {
	_, err := tx.tx.ExecContext(ctx, `DELETE FROM task_history WHERE task_id = ?`, taskID)
	if err != nil {
		return fmt.Errorf("failed to delete history of task %d: %w", taskID, err)
	}
	return nil
}

// DeleteTask removes the task row. Edges and history must be cleaned up
// first in the same transaction; the foreign keys have no cascade.
func (tx *Tx) DeleteTask(ctx context.Context, taskID int64) error {
	res, err := tx.tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, taskID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return requireRow(res, taskID)
}
