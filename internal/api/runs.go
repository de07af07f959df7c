package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"dstcore/internal/store"
)

// handleRuns は保存済みの実行履歴を返す
// GET /api/runs?limit=N
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	st := s.runStore()
	if st == nil {
		http.Error(w, "Run history is not enabled", http.StatusNotFound)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := st.List(r.Context(), limit)
	if err != nil {
		s.log.Error("", "Failed to list runs: %v", err)
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, runs)
}

// handleRunByID は1件の実行結果を返す、または削除する
// GET /api/runs/{id}, DELETE /api/runs/{id}
func (s *Server) handleRunByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}

	st := s.runStore()
	if st == nil {
		http.Error(w, "Run history is not enabled", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		result, err := st.Get(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Run not found", http.StatusNotFound)
			return
		}
		if err != nil {
			s.log.Error("", "Failed to load run %s: %v", id, err)
			http.Error(w, "Failed to load run", http.StatusInternalServerError)
			return
		}
		s.writeJSON(w, result)

	case http.MethodDelete:
		s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
			err := st.Delete(r.Context(), id)
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, "Run not found", http.StatusNotFound)
				return
			}
			if err != nil {
				s.log.Error("", "Failed to delete run %s: %v", id, err)
				http.Error(w, "Failed to delete run", http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})(w, r)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) runStore() *store.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}
