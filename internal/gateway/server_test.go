package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/tracker/internal/events"
	"github.com/aristath/tracker/internal/orchestrator"
	"github.com/aristath/tracker/internal/persistence"
	"github.com/aristath/tracker/internal/tracker"
)

// testServer wires the full stack onto an in-memory store seeded with
// the default workflow and one user per role.
func testServer(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()

	store, err := persistence.NewMemoryStore(ctx)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})

	statuses := []tracker.Status{
		{Name: "To do", Number: 1},
		{Name: "In progress", Number: 2},
		{Name: "Code review", Number: 3},
		{Name: "Dev test", Number: 4},
		{Name: "Testing", Number: 5},
		{Name: "Done", Number: 6},
	}
	err = store.Seed(ctx, statuses,
		[]string{"Bug", "Task"},
		[]string{"Low", "High"},
		[]string{tracker.RoleManager, tracker.RoleDeveloper, tracker.RoleTester})
	if err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}

	for _, u := range []struct{ name, role string }{
		{"manager", tracker.RoleManager},
		{"dev", tracker.RoleDeveloper},
		{"tester", tracker.RoleTester},
	} {
		if _, err := store.CreateUser(ctx, u.name, u.name+"@example.com", u.role); err != nil {
			t.Fatalf("failed to create user %q: %v", u.name, err)
		}
	}

	bus := events.NewEventBus()
	t.Cleanup(bus.Close)

	service := orchestrator.NewService(store, bus)
	return NewServer(service, store, bus, "127.0.0.1", 0)
}

// do runs one request against the router and decodes the JSON response
// into out (when out is non-nil).
func do(t *testing.T, srv *Server, method, path, username string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if username != "" {
		req.Header.Set("X-Username", username)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if out != nil && rec.Code < 300 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec
}

func createTask(t *testing.T, srv *Server, body taskRequest) taskJSON {
	t.Helper()
	var task taskJSON
	rec := do(t, srv, http.MethodPost, "/api/tasks", "manager", body, &task)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create returned %d: %s", rec.Code, rec.Body.String())
	}
	return task
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t)
	rec := do(t, srv, http.MethodGet, "/api/health", "", nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("health returned %d", rec.Code)
	}
}

func TestIdentityRequired(t *testing.T) {
	srv := testServer(t)

	rec := do(t, srv, http.MethodGet, "/api/tasks", "", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing header: got %d, want 401", rec.Code)
	}

	rec = do(t, srv, http.MethodGet, "/api/tasks", "stranger", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unknown user: got %d, want 401", rec.Code)
	}
}

func TestCreateAndFetchTask(t *testing.T) {
	srv := testServer(t)

	task := createTask(t, srv, taskRequest{
		Type: "Bug", Status: "To do", Header: "login crash",
		Description: "NPE on empty password", Priority: "High", Executor: "dev",
	})
	if task.ID == 0 {
		t.Fatal("expected an assigned id")
	}
	if task.Status.Name != "To do" || task.Status.Number != 1 {
		t.Errorf("status = %+v", task.Status)
	}
	if task.Priority == nil || task.Priority.Name != "High" {
		t.Errorf("priority = %+v", task.Priority)
	}
	if task.Executor == nil || task.Executor.Username != "dev" {
		t.Errorf("executor = %+v", task.Executor)
	}
	if task.Creator.Username != "manager" {
		t.Errorf("creator = %+v", task.Creator)
	}

	var detail detailJSON
	rec := do(t, srv, http.MethodGet, fmt.Sprintf("/api/tasks/%d", task.ID), "dev", nil, &detail)
	if rec.Code != http.StatusOK {
		t.Fatalf("detail returned %d: %s", rec.Code, rec.Body.String())
	}
	if detail.Task.Header != "login crash" {
		t.Errorf("detail task = %+v", detail.Task)
	}
	if len(detail.History) != 1 {
		t.Errorf("expected 1 history entry, got %d", len(detail.History))
	}
}

func TestCreateValidationAndPolicyErrors(t *testing.T) {
	srv := testServer(t)

	// Missing required fields.
	rec := do(t, srv, http.MethodPost, "/api/tasks", "manager", taskRequest{Type: "Bug"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing fields: got %d, want 400", rec.Code)
	}

	// Manager as executor is a policy violation.
	rec = do(t, srv, http.MethodPost, "/api/tasks", "manager", taskRequest{
		Type: "Bug", Status: "To do", Header: "x", Executor: "manager",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("manager executor: got %d, want 400", rec.Code)
	}

	// Unknown type resolves to a 404.
	rec = do(t, srv, http.MethodPost, "/api/tasks", "manager", taskRequest{
		Type: "Meteor", Status: "To do", Header: "x",
	}, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown type: got %d, want 404", rec.Code)
	}
}

func TestListTasksWithFilter(t *testing.T) {
	srv := testServer(t)

	createTask(t, srv, taskRequest{Type: "Bug", Status: "To do", Header: "payment bug"})
	createTask(t, srv, taskRequest{Type: "Task", Status: "To do", Header: "search feature"})

	var all []taskJSON
	rec := do(t, srv, http.MethodGet, "/api/tasks", "dev", nil, &all)
	if rec.Code != http.StatusOK {
		t.Fatalf("list returned %d", rec.Code)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 tasks, got %d", len(all))
	}

	var bugs []taskJSON
	rec = do(t, srv, http.MethodGet, "/api/tasks?type=Bug", "dev", nil, &bugs)
	if rec.Code != http.StatusOK {
		t.Fatalf("filtered list returned %d", rec.Code)
	}
	if len(bugs) != 1 || bugs[0].Header != "payment bug" {
		t.Errorf("type filter returned %+v", bugs)
	}

	var found []taskJSON
	rec = do(t, srv, http.MethodGet, "/api/tasks?search=search", "dev", nil, &found)
	if rec.Code != http.StatusOK {
		t.Fatalf("search returned %d", rec.Code)
	}
	if len(found) != 1 || found[0].Header != "search feature" {
		t.Errorf("search returned %+v", found)
	}
}

func TestTransitionEndpoint(t *testing.T) {
	srv := testServer(t)

	task := createTask(t, srv, taskRequest{Type: "Bug", Status: "To do", Header: "x"})

	// The workflow statuses are seeded in rank order, so In progress has
	// the second id.
	var moved taskJSON
	path := fmt.Sprintf("/api/tasks/%d/status/%d", task.ID, task.Status.ID+1)
	rec := do(t, srv, http.MethodPost, path, "dev", nil, &moved)
	if rec.Code != http.StatusOK {
		t.Fatalf("transition returned %d: %s", rec.Code, rec.Body.String())
	}
	if moved.Status.Name != "In progress" {
		t.Errorf("status = %+v", moved.Status)
	}
	if moved.Executor == nil || moved.Executor.Username != "dev" {
		t.Errorf("executor = %+v", moved.Executor)
	}

	// Managers cannot work tasks.
	rec = do(t, srv, http.MethodPost, fmt.Sprintf("/api/tasks/%d/status/%d", task.ID, moved.Status.ID+1), "manager", nil, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("manager transition: got %d, want 403", rec.Code)
	}

	// Skipping stages is rejected.
	rec = do(t, srv, http.MethodPost, fmt.Sprintf("/api/tasks/%d/status/%d", task.ID, moved.Status.ID+3), "dev", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("stage skip: got %d, want 400", rec.Code)
	}
}

func TestDeleteEndpoint(t *testing.T) {
	srv := testServer(t)

	task := createTask(t, srv, taskRequest{Type: "Bug", Status: "To do", Header: "x"})

	rec := do(t, srv, http.MethodDelete, fmt.Sprintf("/api/tasks/%d", task.ID), "dev", nil, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("non-manager delete: got %d, want 403", rec.Code)
	}

	rec = do(t, srv, http.MethodDelete, fmt.Sprintf("/api/tasks/%d", task.ID), "manager", nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("manager delete: got %d", rec.Code)
	}

	rec = do(t, srv, http.MethodGet, fmt.Sprintf("/api/tasks/%d", task.ID), "manager", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("deleted task fetch: got %d, want 404", rec.Code)
	}
}

func TestResolutionOrderEndpoint(t *testing.T) {
	srv := testServer(t)

	a := createTask(t, srv, taskRequest{Type: "Bug", Status: "To do", Header: "a"})
	b := createTask(t, srv, taskRequest{Type: "Bug", Status: "To do", Header: "b", BlockedTasks: []int64{a.ID}})

	var out struct {
		Order []int64 `json:"order"`
	}
	rec := do(t, srv, http.MethodGet, "/api/tasks/order", "dev", nil, &out)
	if rec.Code != http.StatusOK {
		t.Fatalf("order returned %d: %s", rec.Code, rec.Body.String())
	}
	pos := make(map[int64]int)
	for i, id := range out.Order {
		pos[id] = i
	}
	if pos[b.ID] > pos[a.ID] {
		t.Errorf("expected %d before %d in %v", b.ID, a.ID, out.Order)
	}
}

func TestUserEndpoints(t *testing.T) {
	srv := testServer(t)

	rec := do(t, srv, http.MethodGet, "/api/users", "dev", nil, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("non-manager user list: got %d, want 403", rec.Code)
	}

	var users []userJSON
	rec = do(t, srv, http.MethodGet, "/api/users", "manager", nil, &users)
	if rec.Code != http.StatusOK {
		t.Fatalf("user list returned %d", rec.Code)
	}
	if len(users) != 3 {
		t.Fatalf("expected 3 users, got %d", len(users))
	}

	var dev userJSON
	for _, u := range users {
		if u.Username == "dev" {
			dev = u
		}
	}

	var renamed userJSON
	rec = do(t, srv, http.MethodPost, fmt.Sprintf("/api/users/%d/username", dev.ID), "manager",
		map[string]string{"username": "newdev"}, &renamed)
	if rec.Code != http.StatusOK {
		t.Fatalf("rename returned %d: %s", rec.Code, rec.Body.String())
	}
	if renamed.Username != "newdev" {
		t.Errorf("username = %q", renamed.Username)
	}

	// Taking an existing name conflicts.
	rec = do(t, srv, http.MethodPost, fmt.Sprintf("/api/users/%d/username", dev.ID), "manager",
		map[string]string{"username": "tester"}, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate rename: got %d, want 409", rec.Code)
	}
}

func TestEventsEndpoint(t *testing.T) {
	srv := testServer(t)

	task := createTask(t, srv, taskRequest{Type: "Bug", Status: "To do", Header: "x"})

	var history []events.Event
	rec := do(t, srv, http.MethodGet, "/api/events", "", nil, &history)
	if rec.Code != http.StatusOK {
		t.Fatalf("events returned %d", rec.Code)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 event, got %d", len(history))
	}
	if history[0].Type != events.EventTypeTaskCreated || history[0].TaskID != task.ID {
		t.Errorf("unexpected event: %+v", history[0])
	}

	// A limit caps the result; a malformed one is rejected.
	createTask(t, srv, taskRequest{Type: "Bug", Status: "To do", Header: "y"})
	var limited []events.Event
	rec = do(t, srv, http.MethodGet, "/api/events?limit=1", "", nil, &limited)
	if rec.Code != http.StatusOK || len(limited) != 1 {
		t.Errorf("limited events: code %d, %d events", rec.Code, len(limited))
	}
	rec = do(t, srv, http.MethodGet, "/api/events?limit=ten", "", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed limit: got %d, want 400", rec.Code)
	}
}
