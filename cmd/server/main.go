// Package main is the entry point for the property network simulator: a
// discrete-event engine that advances a shared "network month" across a
// fixed NPC population and any humans queuing actions through the HTTP API.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/osf/network-sim/internal/actions"
	"github.com/osf/network-sim/internal/clock"
	"github.com/osf/network-sim/internal/config"
	"github.com/osf/network-sim/internal/database"
	"github.com/osf/network-sim/internal/domain"
	"github.com/osf/network-sim/internal/events"
	"github.com/osf/network-sim/internal/eventgen"
	"github.com/osf/network-sim/internal/market"
	"github.com/osf/network-sim/internal/narrator"
	"github.com/osf/network-sim/internal/npc"
	"github.com/osf/network-sim/internal/pipeline"
	"github.com/osf/network-sim/internal/server"
	"github.com/osf/network-sim/internal/store"
	"github.com/osf/network-sim/pkg/logger"
)

// baselineMarketState is the macro state a brand-new network starts from.
// Returning participants resume from the last committed snapshot instead
// (see restoreMarketState).
var baselineMarketState = domain.MarketState{
	Phase:                domain.PhaseExpansion,
	MonthsInPhase:        0,
	InterestRate:         4.5,
	Inflation:            2.5,
	Unemployment:         5.0,
	HousingIndex:         100,
	ConsumerConfidence:   55,
	IronOrePrice:         110,
	PopulationGrowthRate: 1.8,
	VacancyRate:          6.0,
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	log.Info().Str("data_dir", cfg.DataDir).Int("port", cfg.Port).Msg("starting network simulator")

	coreDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "core.db"),
		Profile: database.ProfileStandard,
		Name:    "core",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("opening core database")
	}
	defer coreDB.Close()
	if err := coreDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("migrating core database")
	}

	ledgerDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "ledger.db"),
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("opening ledger database")
	}
	defer ledgerDB.Close()
	if err := ledgerDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("migrating ledger database")
	}

	s := store.New(coreDB, ledgerDB, log)

	marketState := market.NewState(restoreMarketState(s, log))
	generator := eventgen.NewGenerator(market.DefaultReference)
	npcEngine := npc.NewEngine(s, market.DefaultReference, log)
	processor := actions.NewProcessor(s, log)
	bus := events.NewBus()

	clk, err := clock.New(s, bus, cfg.ClockPreset, log)
	if err != nil {
		log.Fatal().Err(err).Msg("constructing network clock")
	}

	var primaryNarrator narrator.Narrator
	if cfg.NarratorURL != "" {
		primaryNarrator = narrator.NewHTTPNarrator(cfg.NarratorURL, cfg.NarratorToken, log)
	}
	summarizer := narrator.NewSummarizer(primaryNarrator, log)

	tickPipeline := pipeline.New(s, marketState, generator, npcEngine, processor, summarizer, bus, log)
	clk.SetRunner(tickPipeline)
	tickPipeline.SetClock(clk)

	if err := s.WithCoreTx(func(tx *sql.Tx) error { return npcEngine.EnsureSeeded(tx) }); err != nil {
		log.Fatal().Err(err).Msg("seeding NPC roster")
	}

	srv := server.New(server.Config{
		Log:        log,
		Config:     cfg,
		Store:      s,
		Market:     marketState,
		Clock:      clk,
		NPCEngine:  npcEngine,
		Processor:  processor,
		Generator:  generator,
		Summarizer: summarizer,
		Bus:        bus,
	})

	clk.Start()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info().Msg("shutting down")
	clk.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
}

// restoreMarketState resumes the macro state from the most recent
// committed snapshot's state blob, so a restart doesn't silently reset the
// economic cycle even though the clock itself already resumes current_month
// from the same snapshot. A fresh network (no snapshot yet) starts from
// baselineMarketState.
func restoreMarketState(s *store.Store, log zerolog.Logger) domain.MarketState {
	snap, err := s.GetLatestSnapshot()
	if err != nil {
		if !errors.Is(err, domain.ErrStoreNotFound) {
			log.Warn().Err(err).Msg("loading latest snapshot for market state restore")
		}
		return baselineMarketState
	}

	var state domain.MarketState
	if err := msgpack.Unmarshal(snap.StateBlob, &state); err != nil {
		log.Warn().Err(err).Int("month", snap.NetworkMonth).Msg("decoding snapshot state blob, starting from baseline")
		return baselineMarketState
	}
	return state
}
