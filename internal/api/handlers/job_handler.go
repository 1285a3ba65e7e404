package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hivecmu/filehub/internal/core"
	"github.com/hivecmu/filehub/internal/services"
)

type JobHandler struct {
	orch *services.Orchestrator
}

func NewJobHandler(orch *services.Orchestrator) *JobHandler {
	return &JobHandler{orch: orch}
}

type syncRequest struct {
	WorkspaceID string `json:"workspace_id"`
}

// Sync creates a sync job, runs a bulk tag-and-index pass over the
// workspace and returns the finished job with its counters. The pass runs
// synchronously within this request.
func (h *JobHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.WorkspaceID == "" {
		http.Error(w, "workspace_id is required", http.StatusBadRequest)
		return
	}

	var createdBy *string
	if userID, ok := r.Context().Value(core.UserIDKey).(string); ok && userID != "" {
		createdBy = &userID
	}

	job, err := h.orch.RunSyncJob(r.Context(), req.WorkspaceID, createdBy)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.orch.GetJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
