package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/tracker/internal/orchestrator"
	"github.com/aristath/tracker/internal/persistence"
	"github.com/aristath/tracker/internal/tracker"
)

// Wire representations. Reference fields serialize as {id, name} objects
// so clients never need a second lookup to label them.

type refJSON struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type statusJSON struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Number int    `json:"number"`
}

type userJSON struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

type taskJSON struct {
	ID          int64     `json:"id"`
	Type        refJSON   `json:"type"`
	Priority    *refJSON  `json:"priority"`
	Status      statusJSON `json:"status"`
	Header      string    `json:"header"`
	Description string    `json:"description"`
	Executor    *userJSON `json:"executor"`
	Creator     userJSON  `json:"creator"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type historyJSON struct {
	ID          int64      `json:"id"`
	TaskID      int64      `json:"task_id"`
	Type        string     `json:"type"`
	Priority    *refJSON   `json:"priority"`
	Status      statusJSON `json:"status"`
	Header      string     `json:"header"`
	Description string     `json:"description"`
	Executor    *userJSON  `json:"executor"`
	ChangedAt   time.Time  `json:"changed_at"`
	ChangedBy   userJSON   `json:"changed_by"`
}

type detailJSON struct {
	Task     taskJSON      `json:"task"`
	History  []historyJSON `json:"task_history"`
	Blocking []taskJSON    `json:"blocking_tasks"`
	Blocked  []taskJSON    `json:"blocked_tasks"`
	Parent   *taskJSON     `json:"parent_task"`
	Children []taskJSON    `json:"child_tasks"`
}

// taskRequest is the create/edit body. Status and parent_task only apply
// on creation; an edit never moves status or reparents.
type taskRequest struct {
	Type         string  `json:"type"`
	Status       string  `json:"status"`
	Header       string  `json:"header"`
	Description  string  `json:"description"`
	Priority     string  `json:"priority"`
	Executor     string  `json:"executor"`
	ParentTask   string  `json:"parent_task"`
	BlockedTasks []int64 `json:"blocked_tasks"`
}

func toUserJSON(u tracker.User) userJSON {
	return userJSON{ID: u.ID, Username: u.Username, Email: u.Email, Roles: u.Roles}
}

func toTaskJSON(t tracker.Task) taskJSON {
	out := taskJSON{
		ID:          t.ID,
		Type:        refJSON{ID: t.Type.ID, Name: t.Type.Name},
		Status:      statusJSON{ID: t.Status.ID, Name: t.Status.Name, Number: t.Status.Number},
		Header:      t.Header,
		Description: t.Description,
		Creator:     toUserJSON(t.Creator),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.Priority != nil {
		out.Priority = &refJSON{ID: t.Priority.ID, Name: t.Priority.Name}
	}
	if t.Executor != nil {
		e := toUserJSON(*t.Executor)
		out.Executor = &e
	}
	return out
}

func toTaskListJSON(tasks []tracker.Task) []taskJSON {
	out := make([]taskJSON, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskJSON(t))
	}
	return out
}

func toHistoryJSON(entries []tracker.HistoryEntry) []historyJSON {
	out := make([]historyJSON, 0, len(entries))
	for _, h := range entries {
		item := historyJSON{
			ID:          h.ID,
			TaskID:      h.TaskID,
			Type:        h.Type,
			Status:      statusJSON{ID: h.Status.ID, Name: h.Status.Name, Number: h.Status.Number},
			Header:      h.Header,
			Description: h.Description,
			ChangedAt:   h.ChangedAt,
			ChangedBy:   toUserJSON(h.ChangedBy),
		}
		if h.Priority != nil {
			item.Priority = &refJSON{ID: h.Priority.ID, Name: h.Priority.Name}
		}
		if h.Executor != nil {
			e := toUserJSON(*h.Executor)
			item.Executor = &e
		}
		out = append(out, item)
	}
	return out
}

// urlID parses a numeric path parameter.
func urlID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, tracker.Validationf("invalid %s", name)
	}
	return id, nil
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := persistence.TaskFilter{
		Status:   q.Get("status"),
		Type:     q.Get("type"),
		Executor: q.Get("executor"),
		Creator:  q.Get("creator"),
		Search:   q.Get("search"),
	}

	tasks, err := s.service.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskListJSON(tasks))
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, tracker.Validationf("invalid request body"))
		return
	}

	cmd := orchestrator.CreateCommand{
		Type:         req.Type,
		Status:       req.Status,
		Header:       req.Header,
		Description:  req.Description,
		Priority:     req.Priority,
		Executor:     req.Executor,
		ParentHeader: req.ParentTask,
		BlockedIDs:   req.BlockedTasks,
	}

	task, err := s.service.Create(r.Context(), cmd, currentUser(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskJSON(task))
}

func (s *Server) handleTaskDetail(w http.ResponseWriter, r *http.Request) {
	taskID, err := urlID(r, "taskID")
	if err != nil {
		s.writeError(w, err)
		return
	}

	detail, err := s.service.Detail(r.Context(), taskID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := detailJSON{
		Task:     toTaskJSON(detail.Task),
		History:  toHistoryJSON(detail.History),
		Blocking: toTaskListJSON(detail.Blocking),
		Blocked:  toTaskListJSON(detail.Blocked),
		Children: toTaskListJSON(detail.Children),
	}
	if detail.Parent != nil {
		p := toTaskJSON(*detail.Parent)
		out.Parent = &p
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEditTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := urlID(r, "taskID")
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, tracker.Validationf("invalid request body"))
		return
	}

	cmd := orchestrator.EditCommand{
		Type:        req.Type,
		Header:      req.Header,
		Description: req.Description,
		Priority:    req.Priority,
		Executor:    req.Executor,
		BlockedIDs:  req.BlockedTasks,
	}

	task, err := s.service.Edit(r.Context(), taskID, cmd, currentUser(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskJSON(task))
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := urlID(r, "taskID")
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.service.Delete(r.Context(), taskID, currentUser(r)); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	taskID, err := urlID(r, "taskID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	statusID, err := urlID(r, "statusID")
	if err != nil {
		s.writeError(w, err)
		return
	}

	task, err := s.service.Transition(r.Context(), taskID, statusID, currentUser(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskJSON(task))
}

func (s *Server) handleResolutionOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.service.ResolutionOrder(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]int64{"order": order})
}
