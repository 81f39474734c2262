package persistence

import (
	"context"
	"fmt"

	"github.com/aristath/tracker/internal/tracker"
)

// Seed inserts the given workflow statuses, task types, priorities and
// roles if they are not present yet, all in one transaction. Existing
// rows are left untouched, so a redeploy never rewrites a live workflow.
func (s *SQLiteStore) Seed(ctx context.Context, statuses []tracker.Status, types, priorities, roles []string) error {
	return s.InTransaction(ctx, func(tx *Tx) error {
		for _, st := range statuses {
			if _, err := tx.tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO statuses (name, number) VALUES (?, ?)
			`, st.Name, st.Number); err != nil {
				return fmt.Errorf("failed to seed status %q: %w", st.Name, err)
			}
		}
		for _, name := range types {
			if _, err := tx.tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO task_types (name) VALUES (?)
			`, name); err != nil {
				return fmt.Errorf("failed to seed task type %q: %w", name, err)
			}
		}
		for _, name := range priorities {
			if _, err := tx.tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO priorities (name) VALUES (?)
			`, name); err != nil {
				return fmt.Errorf("failed to seed priority %q: %w", name, err)
			}
		}
		for _, name := range roles {
			if _, err := tx.tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO roles (name) VALUES (?)
			`, name); err != nil {
				return fmt.Errorf("failed to seed role %q: %w", name, err)
			}
		}
		return nil
	})
}
