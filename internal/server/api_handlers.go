package server

import (
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dustingolding/OpsPad/internal/dock"
	"github.com/dustingolding/OpsPad/internal/host"
)

// API response helpers

func jsonResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func apiError(w http.ResponseWriter, message string, status int) {
	jsonResponse(w, map[string]string{"error": message}, status)
}

// storeError maps persistence failures onto API statuses.
func storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, sql.ErrNoRows) {
		apiError(w, "not found", http.StatusNotFound)
		return
	}
	apiError(w, err.Error(), http.StatusInternalServerError)
}

// Host API handlers

func (s *Server) apiHostList(w http.ResponseWriter, r *http.Request) {
	hosts, err := host.NewStore(s.db).List()
	if err != nil {
		storeError(w, err)
		return
	}
	if hosts == nil {
		hosts = []host.Host{}
	}
	jsonResponse(w, hosts, http.StatusOK)
}

func (s *Server) apiHostCreate(w http.ResponseWriter, r *http.Request) {
	var req host.Create
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Label) == "" || strings.TrimSpace(req.Hostname) == "" {
		apiError(w, "label and hostname are required", http.StatusBadRequest)
		return
	}

	created, err := host.NewStore(s.db).Create(req)
	if err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, created, http.StatusCreated)
}

func (s *Server) apiHostUpdate(w http.ResponseWriter, r *http.Request) {
	var req host.Host
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.ID = chi.URLParam(r, "id")
	if strings.TrimSpace(req.Label) == "" || strings.TrimSpace(req.Hostname) == "" {
		apiError(w, "label and hostname are required", http.StatusBadRequest)
		return
	}

	updated, err := host.NewStore(s.db).Update(req)
	if err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, updated, http.StatusOK)
}

func (s *Server) apiHostDelete(w http.ResponseWriter, r *http.Request) {
	if err := host.NewStore(s.db).Delete(chi.URLParam(r, "id")); err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"}, http.StatusOK)
}

func (s *Server) apiHostReorder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := host.NewStore(s.db).Reorder(req.IDs); err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// Dock API handlers

func (s *Server) apiDockCommandList(w http.ResponseWriter, r *http.Request) {
	commands, err := dock.NewStore(s.db).ListCommands()
	if err != nil {
		storeError(w, err)
		return
	}
	if commands == nil {
		commands = []dock.Command{}
	}
	jsonResponse(w, commands, http.StatusOK)
}

func (s *Server) apiDockCommandCreate(w http.ResponseWriter, r *http.Request) {
	var req dock.CommandCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Command) == "" {
		apiError(w, "title and command are required", http.StatusBadRequest)
		return
	}

	created, err := dock.NewStore(s.db).CreateCommand(req)
	if err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, created, http.StatusCreated)
}

func (s *Server) apiDockCommandUpdate(w http.ResponseWriter, r *http.Request) {
	var req dock.Command
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.ID = chi.URLParam(r, "id")
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Command) == "" {
		apiError(w, "title and command are required", http.StatusBadRequest)
		return
	}

	updated, err := dock.NewStore(s.db).UpdateCommand(req)
	if err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, updated, http.StatusOK)
}

func (s *Server) apiDockCommandDelete(w http.ResponseWriter, r *http.Request) {
	if err := dock.NewStore(s.db).DeleteCommand(chi.URLParam(r, "id")); err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"}, http.StatusOK)
}

func (s *Server) apiDockCommandReorder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := dock.NewStore(s.db).ReorderCommands(req.IDs); err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) apiRunbookGet(w http.ResponseWriter, r *http.Request) {
	markdown, err := dock.NewStore(s.db).Runbook()
	if err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, map[string]string{"markdown": markdown}, http.StatusOK)
}

func (s *Server) apiRunbookSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Markdown string `json:"markdown"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := dock.NewStore(s.db).SetRunbook(req.Markdown); err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) apiDockHistoryList(w http.ResponseWriter, r *http.Request) {
	limit := int64(200)
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			apiError(w, "limit must be an integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 500 {
		limit = 500
	}

	items, err := dock.NewStore(s.db).ListHistory(limit)
	if err != nil {
		storeError(w, err)
		return
	}
	if items == nil {
		items = []dock.HistoryItem{}
	}
	jsonResponse(w, items, http.StatusOK)
}

func (s *Server) apiDockHistoryDelete(w http.ResponseWriter, r *http.Request) {
	if err := dock.NewStore(s.db).DeleteHistory(chi.URLParam(r, "id")); err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"}, http.StatusOK)
}

func (s *Server) apiDockHistoryClear(w http.ResponseWriter, r *http.Request) {
	if err := dock.NewStore(s.db).ClearHistory(); err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"}, http.StatusOK)
}

// Vault API handlers. Secret values cross the wire base64-encoded inside
// JSON; the daemon never logs them.

func (s *Server) apiVaultGet(w http.ResponseWriter, r *http.Request) {
	secret, err := s.vault.Get(chi.URLParam(r, "key"))
	if err != nil {
		apiError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if secret == nil {
		jsonResponse(w, map[string]interface{}{"value": nil}, http.StatusOK)
		return
	}
	jsonResponse(w, map[string]string{"value": base64.StdEncoding.EncodeToString(secret)}, http.StatusOK)
}

func (s *Server) apiVaultSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	secret, err := base64.StdEncoding.DecodeString(req.Value)
	if err != nil {
		apiError(w, "value must be base64", http.StatusBadRequest)
		return
	}

	if err := s.vault.Set(chi.URLParam(r, "key"), secret); err != nil {
		apiError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) apiVaultDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.vault.Delete(chi.URLParam(r, "key")); err != nil {
		apiError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"}, http.StatusOK)
}
