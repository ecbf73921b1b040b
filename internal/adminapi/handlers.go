package adminapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// handleListApprovals: GET /approvals.
func (s *Server) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, s.cfg.Approvals.ListPending())
}

// handleApprovalAction: POST /approvals/{id}/approve, POST /approvals/{id}/deny.
func (s *Server) handleApprovalAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/approvals/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	id, action := parts[0], parts[1]

	var ok bool
	switch action {
	case "approve":
		ok = s.cfg.Approvals.Approve(id)
	case "deny":
		ok = s.cfg.Approvals.Deny(id)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown action " + action})
		return
	}
	if !ok {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "approval not pending or unknown id"})
		return
	}

	pa := s.cfg.Approvals.Get(id)
	s.events.Publish(Event{Type: "approval." + action, Payload: pa})
	writeJSON(w, http.StatusOK, pa)
}

// handleTasksCollection: GET /tasks, POST /tasks.
func (s *Server) handleTasksCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.cfg.Tasks.List())
	case http.MethodPost:
		var task models.ScheduledTask
		if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid task body: " + err.Error()})
			return
		}
		created, err := s.cfg.Tasks.Add(&task)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		s.events.Publish(Event{Type: "task.created", Payload: created})
		writeJSON(w, http.StatusCreated, created)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

// handleTaskItem: GET /tasks/{id}, DELETE /tasks/{id}.
func (s *Server) handleTaskItem(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/tasks/")
	if id == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		task, ok := s.cfg.Tasks.Get(id)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
			return
		}
		writeJSON(w, http.StatusOK, task)
	case http.MethodDelete:
		if err := s.cfg.Tasks.Remove(id); err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		s.events.Publish(Event{Type: "task.removed", Payload: map[string]string{"id": id}})
		w.WriteHeader(http.StatusNoContent)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}
