package persistence

import (
	"context"
)

// initSchema creates all required tables if they don't exist.
//
// dependencies deliberately has no uniqueness constraint on
// (blocking_id, blocked_id): duplicate edges are accepted on write, the
// same way the workflow accepts them, and surface only in graph queries.
// Task-referencing tables carry plain foreign keys without ON DELETE
// CASCADE; task deletion cleans them up explicitly inside one
// transaction.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS statuses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		number INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS priorities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS task_types (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS roles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS user_roles (
		user_id INTEGER NOT NULL,
		role_id INTEGER NOT NULL,
		PRIMARY KEY (user_id, role_id),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (role_id) REFERENCES roles(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type_id INTEGER NOT NULL REFERENCES task_types(id),
		priority_id INTEGER REFERENCES priorities(id),
		status_id INTEGER NOT NULL REFERENCES statuses(id),
		header TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		executor_id INTEGER REFERENCES users(id),
		creator_id INTEGER NOT NULL REFERENCES users(id),
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_updated_at ON tasks(updated_at);
	CREATE INDEX IF NOT EXISTS idx_tasks_status_id ON tasks(status_id);

	CREATE TABLE IF NOT EXISTS task_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id INTEGER NOT NULL REFERENCES tasks(id),
		type TEXT NOT NULL,
		priority_id INTEGER REFERENCES priorities(id),
		status_id INTEGER NOT NULL REFERENCES statuses(id),
		header TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		executor_id INTEGER REFERENCES users(id),
		changed_at DATETIME NOT NULL,
		changed_by INTEGER NOT NULL REFERENCES users(id)
	);

	CREATE INDEX IF NOT EXISTS idx_task_history_task_id ON task_history(task_id);

	CREATE TABLE IF NOT EXISTS dependencies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		blocking_id INTEGER NOT NULL REFERENCES tasks(id),
		blocked_id INTEGER NOT NULL REFERENCES tasks(id)
	);

	CREATE INDEX IF NOT EXISTS idx_dependencies_blocking ON dependencies(blocking_id);
	CREATE INDEX IF NOT EXISTS idx_dependencies_blocked ON dependencies(blocked_id);

	CREATE TABLE IF NOT EXISTS subtasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		parent_id INTEGER NOT NULL REFERENCES tasks(id),
		child_id INTEGER NOT NULL REFERENCES tasks(id)
	);

	CREATE INDEX IF NOT EXISTS idx_subtasks_parent ON subtasks(parent_id);
	CREATE INDEX IF NOT EXISTS idx_subtasks_child ON subtasks(child_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
