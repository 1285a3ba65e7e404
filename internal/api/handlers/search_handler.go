package handlers

import (
	"net/http"

	"github.com/hivecmu/filehub/internal/core/search"
	"github.com/hivecmu/filehub/internal/models"
)

type SearchHandler struct {
	engine *search.Engine
}

func NewSearchHandler(engine *search.Engine) *SearchHandler {
	return &SearchHandler{engine: engine}
}

// Search answers ranked queries over the catalog. The cascade inside the
// engine guarantees a result list whenever storage is reachable; an empty
// query degrades to a filter-only listing.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.URL.Query().Get("workspace_id")
	if workspaceID == "" {
		http.Error(w, "workspace_id is required", http.StatusBadRequest)
		return
	}

	recs, err := h.engine.Search(r.Context(), workspaceID, r.URL.Query().Get("q"), filtersFromQuery(r), limitFromQuery(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if recs == nil {
		recs = []models.FileRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}
