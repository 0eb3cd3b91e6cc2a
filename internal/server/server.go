package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/dustingolding/OpsPad/internal/config"
	"github.com/dustingolding/OpsPad/internal/db"
	"github.com/dustingolding/OpsPad/internal/events"
	"github.com/dustingolding/OpsPad/internal/terminal"
	"github.com/dustingolding/OpsPad/internal/vault"
)

// timeoutMiddleware applies timeout to all routes except streaming endpoints
func timeoutMiddleware(timeout time.Duration) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip timeout for the websocket feed
			if strings.HasPrefix(r.URL.Path, "/ws/") {
				next.ServeHTTP(w, r)
				return
			}
			// Apply timeout to all other routes
			middleware.Timeout(timeout)(next).ServeHTTP(w, r)
		})
	}
}

type Server struct {
	cfg      *config.Config
	db       *db.DB
	log      *zap.Logger
	router   *chi.Mux
	server   *http.Server
	eventBus *events.Bus
	hub      *Hub
	termMgr  *terminal.Manager
	vault    vault.Provider
}

func New(cfg *config.Config, database *db.DB, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}

	eventBus, err := events.NewBus(cfg.Server.NatsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}

	hub := NewHub(log)
	s := &Server{
		cfg:      cfg,
		db:       database,
		log:      log,
		router:   chi.NewRouter(),
		eventBus: eventBus,
		hub:      hub,
		termMgr:  terminal.NewManager(&feedSink{hub: hub, bus: eventBus, log: log}, log),
		vault:    vault.NewKeyring(),
	}

	s.setupRoutes()
	return s, nil
}

// feedSink forwards terminal output to connected websocket clients and
// mirrors session lifecycle onto the event bus. Raw output never reaches
// the bus.
type feedSink struct {
	hub *Hub
	bus *events.Bus
	log *zap.Logger
}

func (f *feedSink) Data(sessionID, data string) {
	f.hub.Data(sessionID, data)
}

func (f *feedSink) Exit(sessionID string) {
	f.hub.Exit(sessionID)
	if err := f.bus.Publish(events.Event{Type: events.EventTerminalExited, SessionID: sessionID}); err != nil {
		f.log.Warn("publish terminal exited event", zap.Error(err))
	}
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	// Custom timeout middleware that excludes streaming routes
	s.router.Use(timeoutMiddleware(60 * time.Second))

	// Health check
	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/hosts", func(r chi.Router) {
			r.Get("/", s.apiHostList)
			r.Post("/", s.apiHostCreate)
			r.Post("/reorder", s.apiHostReorder)
			r.Put("/{id}", s.apiHostUpdate)
			r.Delete("/{id}", s.apiHostDelete)
		})

		r.Route("/dock", func(r chi.Router) {
			r.Get("/commands", s.apiDockCommandList)
			r.Post("/commands", s.apiDockCommandCreate)
			r.Post("/commands/reorder", s.apiDockCommandReorder)
			r.Put("/commands/{id}", s.apiDockCommandUpdate)
			r.Delete("/commands/{id}", s.apiDockCommandDelete)
			r.Get("/runbook", s.apiRunbookGet)
			r.Put("/runbook", s.apiRunbookSet)
			r.Get("/history", s.apiDockHistoryList)
			r.Delete("/history", s.apiDockHistoryClear)
			r.Delete("/history/{id}", s.apiDockHistoryDelete)
		})

		r.Route("/terminal", func(r chi.Router) {
			r.Post("/local", s.apiTerminalOpenLocal)
			r.Post("/ssh", s.apiTerminalOpenSSH)
			r.Post("/{id}/write", s.apiTerminalWrite)
			r.Post("/{id}/resize", s.apiTerminalResize)
			r.Post("/{id}/exited", s.apiTerminalMarkExited)
			r.Delete("/{id}", s.apiTerminalClose)
		})

		r.Route("/vault", func(r chi.Router) {
			r.Get("/{key}", s.apiVaultGet)
			r.Put("/{key}", s.apiVaultSet)
			r.Delete("/{key}", s.apiVaultDelete)
		})
	})

	// WebSocket feed for terminal output and exits
	s.router.Get("/ws/terminal", s.handleTerminalFeed)
}

func (s *Server) TerminalManager() *terminal.Manager {
	return s.termMgr
}

func (s *Server) EventBus() *events.Bus {
	return s.eventBus
}

func (s *Server) Start() error {
	addr := s.cfg.ListenAddr()
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	s.log.Info("server starting", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.termMgr != nil {
		s.termMgr.CloseAll()
	}
	if s.eventBus != nil {
		s.eventBus.Close()
	}
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
