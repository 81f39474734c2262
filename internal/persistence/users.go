package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aristath/tracker/internal/tracker"
)

func (s *SQLiteStore) loadRoles(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.name
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = ?
		ORDER BY r.name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, name)
	}
	return roles, rows.Err()
}

func (s *SQLiteStore) getUser(ctx context.Context, query string, arg any) (tracker.User, error) {
	var user tracker.User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&user.ID, &user.Username, &user.Email)
	if err == sql.ErrNoRows {
		return tracker.User{}, tracker.NotFoundf("user not found")
	}
	if err != nil {
		return tracker.User{}, fmt.Errorf("failed to query user: %w", err)
	}

	user.Roles, err = s.loadRoles(ctx, user.ID)
	if err != nil {
		return tracker.User{}, err
	}
	return user, nil
}

// GetUserByUsername retrieves a user, including its role set.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (tracker.User, error) {
	return s.getUser(ctx, `SELECT id, username, email FROM users WHERE username = ?`, username)
}

// GetUserByID retrieves a user, including its role set.
func (s *SQLiteStore) GetUserByID(ctx context.Context, userID int64) (tracker.User, error) {
	return s.getUser(ctx, `SELECT id, username, email FROM users WHERE id = ?`, userID)
}

// ListUsers returns all users with their role sets.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]tracker.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, username, email FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []tracker.User
	for rows.Next() {
		var user tracker.User
		if err := rows.Scan(&user.ID, &user.Username, &user.Email); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	for i := range users {
		users[i].Roles, err = s.loadRoles(ctx, users[i].ID)
		if err != nil {
			return nil, err
		}
	}

	return users, nil
}

// GetRole retrieves a role row by id.
func (s *SQLiteStore) GetRole(ctx context.Context, roleID int64) (tracker.Role, error) {
	var role tracker.Role
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM roles WHERE id = ?`, roleID).
		Scan(&role.ID, &role.Name)
	if err == sql.ErrNoRows {
		return tracker.Role{}, tracker.NotFoundf("role %d not found", roleID)
	}
	if err != nil {
		return tracker.Role{}, fmt.Errorf("failed to query role: %w", err)
	}
	return role, nil
}

// ListRoles returns all assignable roles.
func (s *SQLiteStore) ListRoles(ctx context.Context) ([]tracker.Role, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM roles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	var roles []tracker.Role
	for rows.Next() {
		var role tracker.Role
		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// CreateUser inserts a user with the given roles (by name). A taken
// username is a conflict; an unknown role name is a validation error.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, email string, roles ...string) (tracker.User, error) {
	var userID int64
	err := s.InTransaction(ctx, func(tx *Tx) error {
		var exists int
		err := tx.tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE username = ?`, username).Scan(&exists)
		if err == nil {
			return tracker.Conflictf("username %q is already taken", username)
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("failed to check username: %w", err)
		}

		res, err := tx.tx.ExecContext(ctx, `INSERT INTO users (username, email) VALUES (?, ?)`, username, email)
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}
		userID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read inserted user id: %w", err)
		}

		for _, role := range roles {
			var roleID int64
			err := tx.tx.QueryRowContext(ctx, `SELECT id FROM roles WHERE name = ?`, role).Scan(&roleID)
			if err == sql.ErrNoRows {
				return tracker.Validationf("unknown role %q", role)
			}
			if err != nil {
				return fmt.Errorf("failed to query role: %w", err)
			}
			if _, err := tx.tx.ExecContext(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)`, userID, roleID); err != nil {
				return fmt.Errorf("failed to assign role %q: %w", role, err)
			}
		}
		return nil
	})
	if err != nil {
		return tracker.User{}, err
	}

	return s.GetUserByID(ctx, userID)
}

// SetUserRole atomically replaces the user's role set with the single
// given role. Unknown user or role is a validation error, mirroring the
// role-assignment endpoint's contract.
func (s *SQLiteStore) SetUserRole(ctx context.Context, userID, roleID int64) error {
	return s.InTransaction(ctx, func(tx *Tx) error {
		var exists int
		if err := tx.tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, userID).Scan(&exists); err != nil {
			if err == sql.ErrNoRows {
				return tracker.Validationf("unknown user or role")
			}
			return fmt.Errorf("failed to check user: %w", err)
		}
		if err := tx.tx.QueryRowContext(ctx, `SELECT 1 FROM roles WHERE id = ?`, roleID).Scan(&exists); err != nil {
			if err == sql.ErrNoRows {
				return tracker.Validationf("unknown user or role")
			}
			return fmt.Errorf("failed to check role: %w", err)
		}

		if _, err := tx.tx.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("failed to clear roles: %w", err)
		}
		if _, err := tx.tx.ExecContext(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)`, userID, roleID); err != nil {
			return fmt.Errorf("failed to assign role: %w", err)
		}
		return nil
	})
}

// RenameUser changes a username, rejecting duplicates with a conflict
// error. The uniqueness check runs inside the same transaction as the
// update.
func (s *SQLiteStore) RenameUser(ctx context.Context, userID int64, username string) error {
	return s.InTransaction(ctx, func(tx *Tx) error {
		var exists int
		err := tx.tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE username = ? AND id != ?`, username, userID).Scan(&exists)
		if err == nil {
			return tracker.Conflictf("username %q is already taken", username)
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("failed to check username: %w", err)
		}

		res, err := tx.tx.ExecContext(ctx, `UPDATE users SET username = ? WHERE id = ?`, username, userID)
		if err != nil {
			return fmt.Errorf("failed to rename user: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return tracker.NotFoundf("user not found")
		}
		return nil
	})
}
