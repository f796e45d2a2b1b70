package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dharsanguruparan/InstallTracker/internal/blobstore"
	"github.com/dharsanguruparan/InstallTracker/internal/model"
	"github.com/dharsanguruparan/InstallTracker/internal/pdfutil"
	"github.com/dharsanguruparan/InstallTracker/internal/queue"
	"github.com/dharsanguruparan/InstallTracker/internal/tracker"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"installs":    s.tracker.Stats().Total,
		"subscribers": s.hub.Subscribers(),
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := tracker.Filter{
		Status:   model.Status(allToEmpty(q.Get("status"))),
		Version:  model.Version(allToEmpty(q.Get("version"))),
		Category: allToEmpty(q.Get("category")),
		Search:   q.Get("search"),
	}
	if f.Status != "" && !f.Status.Valid() {
		respondError(w, http.StatusBadRequest, "status must be good, bad or unchecked")
		return
	}
	if f.Version != "" && !f.Version.Valid() {
		respondError(w, http.StatusBadRequest, "version must be v1 or v2")
		return
	}
	records := s.tracker.Installs(f)
	switch tab := tracker.Tab(q.Get("tab")); tab {
	case "":
	case tracker.TabCritical, tracker.TabSecondary:
		records = tab.Select(records)
	default:
		respondError(w, http.StatusBadRequest, "tab must be critical or secondary")
		return
	}
	respondJSON(w, http.StatusOK, records)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.tracker.Stats())
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string][]string{
		"categories": s.tracker.Categories(),
		"options":    s.tracker.CategoryOptions(),
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := s.tracker.Get(id)
	if err != nil {
		s.respondTrackerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in tracker.NewRecord
	if !decodeJSON(w, r, &in) {
		return
	}
	rec, err := s.tracker.CreateRecord(r.Context(), in)
	if err != nil {
		s.respondTrackerError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch model.Patch
	if !decodeJSON(w, r, &patch) {
		return
	}
	s.respondRecord(w, func() (model.Install, error) { return s.tracker.Update(r.Context(), id, patch) })
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.tracker.DeleteRecord(r.Context(), id); err != nil {
		s.respondTrackerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleStatus(w http.ResponseWriter, r *http.Request) {
	if id, ok := pathID(w, r); ok {
		s.respondRecord(w, func() (model.Install, error) { return s.tracker.ToggleStatus(r.Context(), id) })
	}
}

func (s *Server) handleToggleCritical(w http.ResponseWriter, r *http.Request) {
	if id, ok := pathID(w, r); ok {
		s.respondRecord(w, func() (model.Install, error) { return s.tracker.ToggleCritical(r.Context(), id) })
	}
}

func (s *Server) handleCheckedToday(w http.ResponseWriter, r *http.Request) {
	if id, ok := pathID(w, r); ok {
		s.respondRecord(w, func() (model.Install, error) { return s.tracker.MarkCheckedToday(r.Context(), id) })
	}
}

func (s *Server) handleClearChecked(w http.ResponseWriter, r *http.Request) {
	if id, ok := pathID(w, r); ok {
		s.respondRecord(w, func() (model.Install, error) { return s.tracker.ClearLastChecked(r.Context(), id) })
	}
}

// handleUploadDocument accepts a multipart "file" field. It uploads when the
// install has no document and replaces otherwise.
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	cur, err := s.tracker.Get(id)
	if err != nil {
		s.respondTrackerError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+1024)
	mr, err := r.MultipartReader()
	if err != nil {
		respondError(w, http.StatusBadRequest, "expecting multipart form")
		return
	}
	part, err := nextFilePart(mr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer part.Close()
	content, err := io.ReadAll(io.LimitReader(part, s.opts.MaxUploadBytes+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("read file: %v", err))
		return
	}
	if int64(len(content)) > s.opts.MaxUploadBytes {
		respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds limit (%d bytes)", s.opts.MaxUploadBytes))
		return
	}
	filename := part.FileName()
	if filename == "" {
		respondError(w, http.StatusBadRequest, "file name required")
		return
	}

	s.respondRecord(w, func() (model.Install, error) {
		if cur.File != nil {
			return s.tracker.ReplaceDocument(r.Context(), id, filename, content)
		}
		return s.tracker.UploadDocument(r.Context(), id, filename, content)
	})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if id, ok := pathID(w, r); ok {
		s.respondRecord(w, func() (model.Install, error) { return s.tracker.DeleteDocument(r.Context(), id) })
	}
}

// handleArchive assembles the zip in memory so a failed fetch never leaves
// the client with a truncated archive.
func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if _, err := s.tracker.DownloadAll(r.Context(), &buf); err != nil {
		s.respondTrackerError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", model.ArchiveName))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

type checkerBody struct {
	Name string `json:"name"`
}

func (s *Server) handleGetChecker(w http.ResponseWriter, r *http.Request) {
	name, err := s.tracker.DefaultChecker(r.Context())
	if err != nil {
		s.respondTrackerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, checkerBody{Name: name})
}

func (s *Server) handlePutChecker(w http.ResponseWriter, r *http.Request) {
	var body checkerBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := s.tracker.SetDefaultChecker(r.Context(), body.Name); err != nil {
		s.respondTrackerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, checkerBody{Name: strings.TrimSpace(body.Name)})
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if s.enqueueIfAsync(w, r, queue.ReconcileTask) {
		return
	}
	respondJSON(w, http.StatusOK, s.tracker.Reconcile(r.Context()))
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	if s.enqueueIfAsync(w, r, queue.RegenerateTask) {
		return
	}
	n, err := s.tracker.Regenerate(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "files": n})
}

// enqueueIfAsync hands the task to the worker when ?async=true and a queue is
// configured. It reports whether the request was answered.
func (s *Server) enqueueIfAsync(w http.ResponseWriter, r *http.Request, typename string) bool {
	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	if !async {
		return false
	}
	if s.opts.Queue == nil {
		respondError(w, http.StatusServiceUnavailable, "background queue not configured")
		return true
	}
	id, err := queue.Enqueue(r.Context(), s.opts.Queue, typename, "api:"+RequestIDFrom(r.Context()))
	if err != nil {
		s.logger.Error("enqueue failed", "task", typename, "error", err)
		respondError(w, http.StatusServiceUnavailable, "failed to queue task")
		return true
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"task_id": id, "type": typename})
	return true
}

func (s *Server) handlePublicDocument(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "bucket") != s.opts.Bucket {
		http.NotFound(w, r)
		return
	}
	data, err := s.opts.Public.Download(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) || errors.Is(err, blobstore.ErrInvalidName) {
			http.NotFound(w, r)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to read document")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) respondRecord(w http.ResponseWriter, fn func() (model.Install, error)) {
	rec, err := fn()
	if err != nil {
		s.respondTrackerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) respondTrackerError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, tracker.ErrNotFound), errors.Is(err, tracker.ErrNoDocument), errors.Is(err, tracker.ErrNoDocuments):
		status = http.StatusNotFound
	case errors.Is(err, tracker.ErrDefaultRecord), errors.Is(err, tracker.ErrDocumentInUse):
		status = http.StatusConflict
	case errors.Is(err, tracker.ErrNameRequired), errors.Is(err, tracker.ErrInvalidVersion),
		errors.Is(err, tracker.ErrInvalidPatch), errors.Is(err, tracker.ErrReservedName),
		errors.Is(err, pdfutil.ErrNoText),
		errors.Is(err, blobstore.ErrInvalidName):
		status = http.StatusBadRequest
	case errors.Is(err, tracker.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status >= 500 {
		s.logger.Error("request failed", "error", err)
	}
	respondError(w, status, err.Error())
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	return true
}

func allToEmpty(v string) string {
	if strings.EqualFold(v, "all") {
		return ""
	}
	return v
}

func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" {
			return part, nil
		}
		part.Close()
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
