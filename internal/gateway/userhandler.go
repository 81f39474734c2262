package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/aristath/tracker/internal/tracker"
)

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.service.Users(r.Context(), currentUser(r))
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]userJSON, 0, len(users))
	for _, u := range users {
		out = append(out, toUserJSON(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	userID, err := urlID(r, "userID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	roleID, err := urlID(r, "roleID")
	if err != nil {
		s.writeError(w, err)
		return
	}

	user, err := s.service.AssignRole(r.Context(), currentUser(r), userID, roleID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserJSON(user))
}

func (s *Server) handleRenameUser(w http.ResponseWriter, r *http.Request) {
	userID, err := urlID(r, "userID")
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, tracker.Validationf("invalid request body"))
		return
	}

	user, err := s.service.RenameUser(r.Context(), currentUser(r), userID, req.Username)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserJSON(user))
}
