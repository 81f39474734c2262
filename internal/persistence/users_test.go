package persistence

import (
	"context"
	"testing"

	"github.com/aristath/tracker/internal/tracker"
)

func TestCreateUserWithRoles(t *testing.T) {
	store := testStore(t)
	seedStore(t, store)

	user, err := store.CreateUser(context.Background(), "alice", "alice@example.com", tracker.RoleDeveloper)
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	if user.ID == 0 {
		t.Error("expected an assigned id")
	}
	if user.Email != "alice@example.com" {
		t.Errorf("email = %q", user.Email)
	}
	if len(user.Roles) != 1 || user.Roles[0] != tracker.RoleDeveloper {
		t.Errorf("roles = %v, want [Developer]", user.Roles)
	}
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	store := testStore(t)
	seedStore(t, store)

	addUser(t, store, "alice", tracker.RoleDeveloper)
	_, err := store.CreateUser(context.Background(), "alice", "other@example.com", tracker.RoleTester)
	wantKind(t, err, tracker.KindConflict)
}

func TestCreateUserUnknownRoleRollsBack(t *testing.T) {
	store := testStore(t)
	seedStore(t, store)
	ctx := context.Background()

	_, err := store.CreateUser(ctx, "bob", "bob@example.com", "Wizard")
	wantKind(t, err, tracker.KindValidation)

	// The user row must not have survived the failed transaction.
	if _, err := store.GetUserByUsername(ctx, "bob"); !tracker.IsNotFound(err) {
		t.Errorf("expected user to be absent, got err = %v", err)
	}
}

func TestSetUserRoleReplaces(t *testing.T) {
	store := testStore(t)
	seedStore(t, store)
	ctx := context.Background()

	user := addUser(t, store, "alice", tracker.RoleDeveloper)

	roles, err := store.ListRoles(ctx)
	if err != nil {
		t.Fatalf("failed to list roles: %v", err)
	}
	var testerID int64
	for _, role := range roles {
		if role.Name == tracker.RoleTester {
			testerID = role.ID
		}
	}
	if testerID == 0 {
		t.Fatal("Tester role not seeded")
	}

	if err := store.SetUserRole(ctx, user.ID, testerID); err != nil {
		t.Fatalf("failed to set role: %v", err)
	}

	got, err := store.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("failed to get user: %v", err)
	}
	if len(got.Roles) != 1 || got.Roles[0] != tracker.RoleTester {
		t.Errorf("roles = %v, want the old role replaced by [Tester]", got.Roles)
	}
}

func TestSetUserRoleUnknownEndpoints(t *testing.T) {
	store := testStore(t)
	seedStore(t, store)
	ctx := context.Background()

	user := addUser(t, store, "alice", tracker.RoleDeveloper)

	err := store.SetUserRole(ctx, 999, 1)
	wantKind(t, err, tracker.KindValidation)

	err = store.SetUserRole(ctx, user.ID, 999)
	wantKind(t, err, tracker.KindValidation)
}

func TestRenameUser(t *testing.T) {
	store := testStore(t)
	seedStore(t, store)
	ctx := context.Background()

	user := addUser(t, store, "alice", tracker.RoleDeveloper)
	addUser(t, store, "bob", tracker.RoleTester)

	if err := store.RenameUser(ctx, user.ID, "alicia"); err != nil {
		t.Fatalf("failed to rename user: %v", err)
	}
	got, err := store.GetUserByUsername(ctx, "alicia")
	if err != nil {
		t.Fatalf("renamed user not found: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("got user %d, want %d", got.ID, user.ID)
	}

	// Taking another user's name is a conflict.
	err = store.RenameUser(ctx, user.ID, "bob")
	wantKind(t, err, tracker.KindConflict)

	// Renaming to the current name is a no-op, not a conflict.
	if err := store.RenameUser(ctx, user.ID, "alicia"); err != nil {
		t.Errorf("self-rename should succeed: %v", err)
	}

	if err := store.RenameUser(ctx, 999, "nobody"); !tracker.IsNotFound(err) {
		t.Errorf("expected not-found for unknown user, got %v", err)
	}
}

func TestListUsersIncludesRoles(t *testing.T) {
	store := testStore(t)
	seedStore(t, store)

	addUser(t, store, "alice", tracker.RoleDeveloper)
	addUser(t, store, "bob", tracker.RoleManager)

	users, err := store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("failed to list users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	if users[0].Username != "alice" || len(users[0].Roles) != 1 {
		t.Errorf("unexpected first user: %+v", users[0])
	}
	if users[1].Roles[0] != tracker.RoleManager {
		t.Errorf("unexpected roles for bob: %v", users[1].Roles)
	}
}
