package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hivecmu/filehub/internal/config"
	"github.com/hivecmu/filehub/internal/core"
	"github.com/hivecmu/filehub/internal/models"
	"github.com/hivecmu/filehub/internal/services"
)

const maxUploadBytes = 52 << 20 // 52 MB

type FileHandler struct {
	orch  *services.Orchestrator
	store core.CatalogStore
	obj   core.ObjectClient // nil when no blob store is configured
	cfg   *config.Config
	log   *slog.Logger
}

func NewFileHandler(orch *services.Orchestrator, store core.CatalogStore, obj core.ObjectClient, cfg *config.Config, log *slog.Logger) *FileHandler {
	if log == nil {
		log = slog.Default()
	}
	return &FileHandler{orch: orch, store: store, obj: obj, cfg: cfg, log: log}
}

// Upload stores the raw bytes in the blob store, then catalogs the file.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	workspaceID := r.FormValue("workspace_id")
	if workspaceID == "" {
		http.Error(w, "workspace_id is required", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "invalid file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		http.Error(w, "read file", http.StatusBadRequest)
		return
	}
	if len(data) > maxUploadBytes {
		http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	cleanName := filepath.Base(header.Filename)

	draft := models.FileDraft{
		WorkspaceID: workspaceID,
		Name:        cleanName,
		MimeType:    &contentType,
	}
	size := int64(len(data))
	draft.SizeBytes = &size
	if ch := r.FormValue("channel_id"); ch != "" {
		draft.ChannelID = &ch
	}
	if userID, ok := r.Context().Value(core.UserIDKey).(string); ok && userID != "" {
		draft.UploadedBy = &userID
	}

	if h.obj != nil {
		key := fmt.Sprintf("%s/%s/%s", workspaceID, uuid.NewString(), cleanName)
		uploadCtx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
		defer cancel()
		url, err := h.obj.UploadFile(uploadCtx, h.cfg.BucketName, key, data, contentType)
		if err != nil {
			h.log.Error("blob upload failed", "file", cleanName, "error", err)
			http.Error(w, fmt.Sprintf("upload failed: %v", err), http.StatusInternalServerError)
			return
		}
		draft.URL = &url
	}

	rec, err := h.orch.AddFile(r.Context(), draft, data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// List returns files in a workspace matching the query-string filters.
func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.URL.Query().Get("workspace_id")
	if workspaceID == "" {
		http.Error(w, "workspace_id is required", http.StatusBadRequest)
		return
	}
	recs, err := h.store.Query(r.Context(), workspaceID, filtersFromQuery(r), limitFromQuery(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if recs == nil {
		recs = []models.FileRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// Tag runs the tagging capability over one file.
func (h *FileHandler) Tag(w http.ResponseWriter, r *http.Request) {
	rec, err := h.orch.TagFile(r.Context(), chi.URLParam(r, "fileID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Index embeds one file into the vector index.
func (h *FileHandler) Index(w http.ResponseWriter, r *http.Request) {
	rec, err := h.orch.IndexFile(r.Context(), chi.URLParam(r, "fileID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func filtersFromQuery(r *http.Request) models.SearchFilters {
	q := r.URL.Query()
	var f models.SearchFilters
	for _, tag := range q["tag"] {
		if tag != "" {
			f.Tags = append(f.Tags, tag)
		}
	}
	if mt := q.Get("mime_type"); mt != "" {
		f.MimeType = &mt
	}
	if ch := q.Get("channel_id"); ch != "" {
		f.ChannelID = &ch
	}
	return f
}

func limitFromQuery(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return 0 // store default applies
	}
	return n
}
