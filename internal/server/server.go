// Package server provides the HTTP server and routing for the network
// simulator.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/osf/network-sim/internal/actions"
	"github.com/osf/network-sim/internal/clock"
	"github.com/osf/network-sim/internal/config"
	"github.com/osf/network-sim/internal/domain"
	"github.com/osf/network-sim/internal/events"
	"github.com/osf/network-sim/internal/eventgen"
	"github.com/osf/network-sim/internal/market"
	"github.com/osf/network-sim/internal/narrator"
	"github.com/osf/network-sim/internal/npc"
	"github.com/osf/network-sim/internal/store"
)

// Config holds everything the server needs to wire its routes. All fields
// are collaborators constructed by cmd/server/main.go's DI wiring; the
// server itself owns no state beyond the *http.Server and router.
type Config struct {
	Log        zerolog.Logger
	Config     *config.Config
	Store      *store.Store
	Market     *market.State
	Clock      *clock.Clock
	NPCEngine  *npc.Engine
	Processor  *actions.Processor
	Generator  *eventgen.Generator
	Summarizer *narrator.Summarizer
	Bus        *events.Bus
}

// Server is the HTTP surface over the simulator's core components.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    *config.Config

	store      *store.Store
	market     *market.State
	clock      *clock.Clock
	npcEngine  *npc.Engine
	processor  *actions.Processor
	generator  *eventgen.Generator
	summarizer *narrator.Summarizer
	bus        *events.Bus
}

// New constructs the HTTP server and wires its routes.
func New(cfg Config) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		log:        cfg.Log.With().Str("component", "server").Logger(),
		cfg:        cfg.Config,
		store:      cfg.Store,
		market:     cfg.Market,
		clock:      cfg.Clock,
		npcEngine:  cfg.NPCEngine,
		processor:  cfg.Processor,
		generator:  cfg.Generator,
		summarizer: cfg.Summarizer,
		bus:        cfg.Bus,
	}

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // the SSE stream holds the connection open indefinitely
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/events/stream", s.handleEventsStream)

		r.Route("/clock", func(r chi.Router) {
			r.Get("/status", s.handleClockStatus)
			r.Get("/presets", s.handleClockPresets)
			r.Get("/pending-actions", s.handleClockPendingActions)
			r.Post("/preset", s.handleClockSetPreset)
			r.Post("/interval", s.handleClockSetInterval)
			r.Post("/mode", s.handleClockSetMode)
			r.Post("/start", s.handleClockStart)
			r.Post("/stop", s.handleClockStop)
			r.Post("/pause", s.handleClockPause)
			r.Post("/resume", s.handleClockResume)
			r.Post("/force-tick", s.handleClockForceTick)
			r.Post("/queue-action", s.handleClockQueueAction)
			r.Delete("/queue-action/{id}", s.handleClockRemoveAction)
			r.Delete("/queue-actions", s.handleClockClearActions)
		})

		r.Get("/state", s.handleNetworkState)
		r.Get("/properties", s.handleListProperties)
		r.Get("/properties/{id}", s.handleGetProperty)
		r.Get("/participants", s.handleListParticipants)
		r.Get("/participants/{id}", s.handleGetParticipant)
		r.Get("/history/snapshots", s.handleHistorySnapshots)
		r.Get("/history/events", s.handleHistoryEvents)
		r.Get("/history/metrics", s.handleHistoryMetrics)
		r.Get("/feed", s.handleFeed)

		r.Get("/npcs", s.handleListNPCs)
		r.Get("/npcs/{id}", s.handleGetNPC)
		r.Post("/npcs/initialize", s.handleInitializeNPCs)

		r.Get("/economy", s.handleEconomy)
		r.Post("/events/generate", s.handleGenerateEvents)
		r.Get("/news/{month}", s.handleNews)

		r.Post("/actions/execute", s.handleActionExecute)
		r.Post("/actions/buy-tokens", s.handleActionAlias(domain.ActionBuyTokens))
		r.Post("/actions/sell-tokens", s.handleActionAlias(domain.ActionSellTokens))
		r.Post("/actions/pay-rent", s.handleActionAlias(domain.ActionPayRent))
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
