package server

import (
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"strconv"
	"time"

	"github.com/ffpull/ffpull/internal/engine"
	"github.com/ffpull/ffpull/internal/history"
	"github.com/ffpull/ffpull/internal/manager"
	"github.com/ffpull/ffpull/internal/project"
)

// errorResponse is the body of every 4xx/5xx reply
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// SyncRequest selects the projects to sync; empty means all
type SyncRequest struct {
	Indices []int `json:"indices,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: errorKind(err)})
}

// errorKind maps registration and store errors to stable identifiers
func errorKind(err error) string {
	switch {
	case errors.Is(err, project.ErrEmptyField):
		return "empty_field"
	case errors.Is(err, project.ErrNotARepository):
		return "not_a_repository"
	case errors.Is(err, project.ErrNoOriginRemote):
		return "no_origin_remote"
	case errors.Is(err, project.ErrIndexOutOfRange):
		return "index_out_of_range"
	case errors.Is(err, manager.ErrSyncInProgress):
		return "sync_in_progress"
	}
	return ""
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"clients":  s.ClientCount(),
		"projects": s.manager.Store().Len(),
	})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.ListProjects())
}

func (s *Server) handleRegisterProject(w http.ResponseWriter, r *http.Request) {
	var rec project.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.manager.RegisterRecord(rec); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.projectsChanged()
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleDeleteProjects(w http.ResponseWriter, r *http.Request) {
	var indices []int
	for _, v := range r.URL.Query()["index"] {
		i, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid index "+strconv.Quote(v)))
			return
		}
		indices = append(indices, i)
	}

	removed := s.manager.DeleteProjects(indices...)
	if removed > 0 {
		s.projectsChanged()
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid index "+strconv.Quote(r.PathValue("index"))))
		return
	}

	var patch project.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.manager.UpdateProject(index, patch); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, project.ErrIndexOutOfRange) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}

	rec, _ := s.manager.Store().Get(index)
	s.projectsChanged()
	writeJSON(w, http.StatusOK, rec)
}

// handleSync starts a batch in the background and reports it over the
// WebSocket. Only one batch runs at a time.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	var (
		seq   iter.Seq[engine.Progress]
		total int
		err   error
	)
	if len(req.Indices) == 0 {
		total = s.manager.Store().Len()
		seq, err = s.manager.SyncAll(s.ctx)
	} else {
		total = len(s.manager.Select(req.Indices...))
		seq, err = s.manager.SyncProjects(s.ctx, req.Indices...)
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, manager.ErrSyncInProgress) {
			status = http.StatusConflict
		}
		writeError(w, status, err)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runSync(seq, total)
	}()

	writeJSON(w, http.StatusAccepted, SyncStartedData{Total: total})
}

func (s *Server) runSync(seq iter.Seq[engine.Progress], total int) {
	start := time.Now()
	s.Broadcast(newMessage(MessageTypeSyncStarted, SyncStartedData{Total: total}))

	summary := engine.Summary{Total: total}
	for p := range seq {
		summary.Add(p)
		s.Broadcast(newMessage(MessageTypeSyncProgress, progressData(p)))
	}

	s.Broadcast(newMessage(MessageTypeSyncComplete, SyncCompleteData{
		Summary:  summary,
		Canceled: summary.Canceled(),
		Duration: time.Since(start),
	}))
	s.logger.Printf("Sync finished: %d/%d in %s", summary.Completed, total, time.Since(start).Round(time.Millisecond))
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	lines := s.manager.Log().Lines()
	if v := r.URL.Query().Get("tail"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, errors.New("invalid tail "+strconv.Quote(v)))
			return
		}
		lines = s.manager.Log().Tail(n)
	}
	writeJSON(w, http.StatusOK, map[string][]string{"lines": lines})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	db := s.manager.History()
	if db == nil {
		writeError(w, http.StatusNotFound, errors.New("sync history is disabled"))
		return
	}

	q := r.URL.Query()
	filter := history.Filter{Project: q.Get("project")}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		filter.Since = since
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, errors.New("invalid limit "+strconv.Quote(v)))
			return
		}
		filter.Limit = n
	}

	entries, err := db.Query(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) projectsChanged() {
	s.Broadcast(newMessage(MessageTypeProjectsChanged, s.manager.ListProjects()))
}
