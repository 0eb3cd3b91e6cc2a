package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dustingolding/OpsPad/internal/dock"
	"github.com/dustingolding/OpsPad/internal/events"
	"github.com/dustingolding/OpsPad/internal/host"
	"github.com/dustingolding/OpsPad/internal/prefs"
	"github.com/dustingolding/OpsPad/internal/terminal"
)

// terminalError maps session-layer failures onto API statuses.
func terminalError(w http.ResponseWriter, err error) {
	var backendErr *terminal.BackendError
	switch {
	case errors.Is(err, terminal.ErrNotFound):
		apiError(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &backendErr):
		apiError(w, err.Error(), http.StatusBadGateway)
	default:
		apiError(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) apiTerminalOpenLocal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EnvironmentTag string `json:"environmentTag"`
	}
	// Body is optional: a bare POST opens a default local shell.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		apiError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	tag := strings.TrimSpace(req.EnvironmentTag)
	if tag == "" {
		tag = "LOCAL"
	}

	prefStore := prefs.NewStore(s.db)
	cols, rows, _, err := prefStore.Size(prefs.LocalScope)
	if err != nil {
		storeError(w, err)
		return
	}

	sessionID, err := s.termMgr.OpenLocal(tag, cols, rows)
	if err != nil {
		terminalError(w, err)
		return
	}

	// Persist non-secret per-scope prefs and map the runtime session id to
	// its scope.
	if err := prefStore.SetSessionScope(sessionID, prefs.LocalScope); err != nil {
		storeError(w, err)
		return
	}
	if err := prefStore.Touch(prefs.LocalScope, tag); err != nil {
		storeError(w, err)
		return
	}

	s.publishOpened(sessionID, terminal.KindLocal, tag, prefs.LocalScope)
	jsonResponse(w, map[string]string{"sessionId": sessionID}, http.StatusCreated)
}

func (s *Server) apiTerminalOpenSSH(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HostID         string   `json:"hostId"`
		User           string   `json:"user"`
		Host           string   `json:"host"`
		Port           uint16   `json:"port"`
		IdentityFile   string   `json:"identityFile"`
		ExtraArgs      []string `json:"extraArgs"`
		EnvironmentTag string   `json:"environmentTag"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	opts := terminal.SSHOptions{
		User:         strings.TrimSpace(req.User),
		Host:         strings.TrimSpace(req.Host),
		Port:         req.Port,
		IdentityFile: req.IdentityFile,
		ExtraArgs:    req.ExtraArgs,
	}
	tag := strings.TrimSpace(req.EnvironmentTag)

	var scope string
	if hostID := strings.TrimSpace(req.HostID); hostID != "" {
		// A saved host supplies the connection details; the request may
		// still override the environment tag and add extra arguments.
		h, err := host.NewStore(s.db).Get(hostID)
		if err != nil {
			storeError(w, err)
			return
		}
		opts.User = h.Username
		opts.Host = h.Hostname
		opts.Port = h.Port
		if h.IdentityFile != nil {
			opts.IdentityFile = *h.IdentityFile
		}
		if tag == "" {
			tag = h.EnvironmentTag
		}
		scope = prefs.SSHHostScope(h.ID)
	} else {
		if opts.Host == "" {
			apiError(w, "host is required", http.StatusBadRequest)
			return
		}
		scope = prefs.SSHAdHocScope(opts.User, opts.Host, opts.Port)
	}
	if tag == "" {
		tag = "UNKNOWN"
	}
	opts.EnvironmentTag = tag

	prefStore := prefs.NewStore(s.db)
	cols, rows, _, err := prefStore.Size(scope)
	if err != nil {
		storeError(w, err)
		return
	}
	opts.Cols, opts.Rows = cols, rows

	sessionID, err := s.termMgr.OpenSSH(opts)
	if err != nil {
		terminalError(w, err)
		return
	}

	if err := prefStore.SetSessionScope(sessionID, scope); err != nil {
		storeError(w, err)
		return
	}
	if err := prefStore.Touch(scope, tag); err != nil {
		storeError(w, err)
		return
	}

	s.publishOpened(sessionID, terminal.KindSSH, tag, scope)
	jsonResponse(w, map[string]string{"sessionId": sessionID}, http.StatusCreated)
}

func (s *Server) apiTerminalWrite(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	var req struct {
		Data                string  `json:"data"`
		Origin              string  `json:"origin"`
		DockCommandID       *string `json:"dockCommandId"`
		DockCommandTitle    *string `json:"dockCommandTitle"`
		DockCommandTemplate *string `json:"dockCommandTemplate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Persisted provenance tracks dock "Run" actions only, never typed
	// keystrokes.
	if req.Origin == terminal.OriginCommandDock {
		s.recordDockRun(sessionID, req.Data, req.DockCommandID, req.DockCommandTitle, req.DockCommandTemplate)
	}

	var err error
	if req.Origin != "" {
		err = s.termMgr.WriteWithMeta(sessionID, req.Data, terminal.WriteMeta{Origin: req.Origin})
	} else {
		err = s.termMgr.Write(sessionID, req.Data)
	}
	if err != nil {
		terminalError(w, err)
		return
	}
	jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// recordDockRun persists a dock run against the session's scope: the
// scope's last command and a history row. Sessions with no scope mapping
// record nothing. Failures here are secondary to the write itself and are
// only logged.
func (s *Server) recordDockRun(sessionID, data string, cmdID, cmdTitle, cmdTemplate *string) {
	prefStore := prefs.NewStore(s.db)
	scope, ok, err := prefStore.SessionScope(sessionID)
	if err != nil || !ok {
		return
	}

	if err := prefStore.UpdateLastCommand(scope, prefs.LastCommand{ID: cmdID, Title: cmdTitle, Template: cmdTemplate}); err != nil {
		s.log.Warn("update last dock command", zap.String("scope", scope), zap.Error(err))
	}

	commandText := strings.TrimSpace(strings.ReplaceAll(data, "\r", ""))
	if commandText == "" {
		return
	}
	tag, ok, err := prefStore.EnvironmentTag(scope)
	if err != nil || !ok {
		tag = "UNKNOWN"
	}
	entry := dock.HistoryEntry{
		Scope:          &scope,
		EnvironmentTag: tag,
		CommandText:    commandText,
		SourceID:       cmdID,
		SourceTitle:    cmdTitle,
		SourceTemplate: cmdTemplate,
	}
	if err := dock.NewStore(s.db).AddHistory(entry); err != nil {
		s.log.Warn("append dock history", zap.String("scope", scope), zap.Error(err))
	}

	evt := events.Event{Type: events.EventDockRan, SessionID: sessionID, Scope: scope, EnvironmentTag: tag}
	if cmdTitle != nil {
		evt.CommandTitle = *cmdTitle
	}
	if err := s.eventBus.Publish(evt); err != nil {
		s.log.Warn("publish dock ran event", zap.Error(err))
	}
}

func (s *Server) apiTerminalResize(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	var req struct {
		Cols uint16 `json:"cols"`
		Rows uint16 `json:"rows"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.termMgr.Resize(sessionID, req.Cols, req.Rows); err != nil {
		terminalError(w, err)
		return
	}

	// Remember the size for the session's scope so the next terminal for
	// the same target opens at these dimensions.
	prefStore := prefs.NewStore(s.db)
	if scope, ok, err := prefStore.SessionScope(sessionID); err == nil && ok {
		if err := prefStore.UpdateSize(scope, req.Cols, req.Rows); err != nil {
			s.log.Warn("persist terminal size", zap.String("scope", scope), zap.Error(err))
		}
	}
	jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) apiTerminalClose(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if err := s.termMgr.Close(sessionID); err != nil {
		terminalError(w, err)
		return
	}

	if err := prefs.NewStore(s.db).DeleteSessionScope(sessionID); err != nil {
		s.log.Warn("delete session scope", zap.String("session_id", sessionID), zap.Error(err))
	}
	jsonResponse(w, map[string]string{"status": "closed"}, http.StatusOK)
}

// apiTerminalMarkExited drops the scope mapping for a session whose exit
// the client observed on the feed. The session itself is already gone.
func (s *Server) apiTerminalMarkExited(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if err := prefs.NewStore(s.db).DeleteSessionScope(sessionID); err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) publishOpened(sessionID string, kind terminal.Kind, tag, scope string) {
	err := s.eventBus.Publish(events.Event{
		Type:           events.EventTerminalOpened,
		SessionID:      sessionID,
		Kind:           string(kind),
		EnvironmentTag: tag,
		Scope:          scope,
	})
	if err != nil {
		s.log.Warn("publish terminal opened event", zap.Error(err))
	}
}
