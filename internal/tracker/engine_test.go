package tracker

import (
	"testing"
	"time"
)

var testStatuses = []Status{
	{ID: 1, Name: "To do", Number: 1},
	{ID: 2, Name: StatusInProgress, Number: 2},
	{ID: 3, Name: StatusCodeReview, Number: 3},
	{ID: 4, Name: StatusDevTest, Number: 4},
	{ID: 5, Name: StatusTesting, Number: 5},
	{ID: 6, Name: "Done", Number: 6},
}

func workflow() Workflow {
	// Shuffle the declaration order to prove NewWorkflow sorts by rank.
	shuffled := []Status{testStatuses[3], testStatuses[0], testStatuses[5], testStatuses[1], testStatuses[4], testStatuses[2]}
	return NewWorkflow(shuffled)
}

func TestWorkflowOrdering(t *testing.T) {
	w := workflow()
	got := w.statuses
	for i := 1; i < len(got); i++ {
		if got[i-1].Number >= got[i].Number {
			t.Fatalf("statuses not sorted by rank: %v before %v", got[i-1], got[i])
		}
	}
}

func TestWorkflowLookups(t *testing.T) {
	w := workflow()
	if s, ok := w.ByID(3); !ok || s.Name != StatusCodeReview {
		t.Errorf("ByID(3) = %v, %v", s, ok)
	}
	if _, ok := w.ByID(99); ok {
		t.Error("ByID(99) unexpectedly found a status")
	}
	if s, ok := w.ByName("Done"); !ok || s.Number != 6 {
		t.Errorf("ByName(Done) = %v, %v", s, ok)
	}
	if _, ok := w.ByName("Archived"); ok {
		t.Error("ByName(Archived) unexpectedly found a status")
	}
}

func TestValidateTransitionForwardByOne(t *testing.T) {
	for i := 1; i < len(testStatuses); i++ {
		if err := ValidateTransition(testStatuses[i-1], testStatuses[i]); err != nil {
			t.Errorf("forward step %d -> %d rejected: %v", testStatuses[i-1].Number, testStatuses[i].Number, err)
		}
	}
}

func TestValidateTransitionResetRanks(t *testing.T) {
	// Ranks 0 and 1 are reachable from any state.
	done := testStatuses[5]
	if err := ValidateTransition(done, testStatuses[0]); err != nil {
		t.Errorf("reset to rank 1 rejected: %v", err)
	}
	if err := ValidateTransition(done, Status{ID: 9, Name: "Backlog", Number: 0}); err != nil {
		t.Errorf("reset to rank 0 rejected: %v", err)
	}
}

func TestValidateTransitionRejectsJumps(t *testing.T) {
	tests := []struct {
		from, to int
	}{
		{1, 3}, // skip ahead
		{1, 6},
		{5, 4}, // backwards (not a reset rank)
		{3, 2},
		{2, 2}, // no-op is not forward-by-one
	}
	for _, tt := range tests {
		err := ValidateTransition(Status{Number: tt.from}, Status{Number: tt.to})
		if err == nil {
			t.Errorf("transition %d -> %d unexpectedly allowed", tt.from, tt.to)
		}
		if kind, ok := KindOf(err); !ok || kind != KindPolicy {
			t.Errorf("transition %d -> %d: expected policy error, got %v", tt.from, tt.to, err)
		}
	}
}

func TestTransitionSetsExecutorAndSnapshotsHistory(t *testing.T) {
	developer := User{ID: 7, Username: "dev", Roles: []string{RoleDeveloper}}
	high := &Priority{ID: 1, Name: "High"}
	task := &Task{
		ID:          42,
		Type:        TaskType{ID: 1, Name: "Bug"},
		Priority:    high,
		Status:      testStatuses[0], // To do
		Header:      "Fix crash",
		Description: "segfault on startup",
	}

	now := time.Now()
	entry, err := Transition(task, testStatuses[1], developer, now)
	if err != nil {
		t.Fatalf("transition failed: %v", err)
	}

	// Task mutated to the new state.
	if task.Status.Name != StatusInProgress {
		t.Errorf("task status = %q, want %q", task.Status.Name, StatusInProgress)
	}
	if task.Executor == nil || task.Executor.Username != "dev" {
		t.Errorf("task executor = %v, want dev", task.Executor)
	}
	if !task.UpdatedAt.Equal(now) {
		t.Errorf("task UpdatedAt not refreshed")
	}

	// History snapshots pre-transition fields with the NEW status.
	if entry.TaskID != 42 || entry.Type != "Bug" || entry.Header != "Fix crash" {
		t.Errorf("history snapshot wrong: %+v", entry)
	}
	if entry.Status.Name != StatusInProgress {
		t.Errorf("history status = %q, want new status", entry.Status.Name)
	}
	if entry.Priority != high {
		t.Errorf("history priority not snapshotted")
	}
	if entry.Executor == nil || entry.Executor.ID != developer.ID || entry.ChangedBy.ID != developer.ID {
		t.Errorf("history actor fields wrong: %+v", entry)
	}
}

func TestTransitionRejectedLeavesTaskUnchanged(t *testing.T) {
	tester := User{ID: 8, Username: "qa", Roles: []string{RoleTester}}
	task := &Task{
		ID:     1,
		Type:   TaskType{Name: "Bug"},
		Status: testStatuses[0], // To do
		Header: "Fix crash",
	}

	// Tester may not execute "In progress".
	_, err := Transition(task, testStatuses[1], tester, time.Now())
	if err == nil {
		t.Fatal("expected tester to be rejected")
	}
	if task.Status.Name != "To do" {
		t.Errorf("task status mutated on rejected transition: %q", task.Status.Name)
	}
	if task.Executor != nil {
		t.Errorf("task executor mutated on rejected transition")
	}

	// Illegal rank jump is rejected before any role check.
	_, err = Transition(task, testStatuses[4], tester, time.Now())
	if err == nil {
		t.Fatal("expected rank jump to be rejected")
	}
	if task.Status.Name != "To do" {
		t.Errorf("task status mutated on rejected jump: %q", task.Status.Name)
	}
}

func TestTransitionDeveloperCannotEnterTesting(t *testing.T) {
	developer := User{ID: 7, Username: "dev", Roles: []string{RoleDeveloper}}
	task := &Task{
		ID:     1,
		Type:   TaskType{Name: "Bug"},
		Status: testStatuses[3], // Dev test
		Header: "Fix crash",
	}

	_, err := Transition(task, testStatuses[4], developer, time.Now())
	if err == nil {
		t.Fatal("expected developer to be rejected for Testing")
	}
	if kind, _ := KindOf(err); kind != KindPolicy {
		t.Errorf("expected policy error, got %v", err)
	}
}
