package server

import (
	"database/sql"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/osf/network-sim/internal/domain"
	"github.com/osf/network-sim/internal/market"
	"github.com/osf/network-sim/internal/store"
)

// handleEconomy reports the macro state, its derived condition label, the
// rolling statistics of recent monthly appreciation draws, and the static
// Western Australian reference calibration data.
func (s *Server) handleEconomy(w http.ResponseWriter, r *http.Request) {
	current := s.market.Current()
	ind := s.market.Indicators()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":     current,
		"condition": current.Condition(),
		"reference": market.DefaultReference,
		"indicators": map[string]interface{}{
			"mean":   ind.Mean(),
			"stddev": ind.StdDev(),
			"count":  ind.Count(),
		},
	})
}

// handleGenerateEvents manually triggers an out-of-band event generation
// pass for the clock's current month, independent of the tick pipeline —
// useful for demoing event variety without waiting for the next tick.
func (s *Server) handleGenerateEvents(w http.ResponseWriter, r *http.Request) {
	month := s.clock.GetState().CurrentMonth
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	generated := s.generator.Generate(rng, month, s.market)

	err := s.store.WithLedgerTx(func(tx *sql.Tx) error {
		for _, evt := range generated {
			if err := s.store.CreateEvent(tx, evt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, generated)
}

// handleNews combines a month's governor summary with its events into a
// single narrative-plus-detail view.
func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	monthStr := chi.URLParam(r, "month")
	month, err := strconv.Atoi(monthStr)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "month must be an integer", "error_code": string(domain.ErrInvalidParams)})
		return
	}

	snapshot, err := s.store.GetSnapshot(month)
	if err != nil {
		s.writeError(w, err)
		return
	}
	events, err := s.store.ListEvents(store.EventFilter{Month: &month})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"month":   month,
		"summary": snapshot.GovernorSummary,
		"events":  events,
	})
}
