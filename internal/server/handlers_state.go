package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/osf/network-sim/internal/domain"
	"github.com/osf/network-sim/internal/store"
)

// handleNetworkState returns a combined view of the macro market state and
// the clock's current position, the two pieces of global state a client
// needs before drilling into properties or participants.
func (s *Server) handleNetworkState(w http.ResponseWriter, r *http.Request) {
	current := s.market.Current()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"market":    current,
		"condition": current.Condition(),
		"clock":     s.clock.GetState(),
	})
}

func (s *Server) handleListProperties(w http.ResponseWriter, r *http.Request) {
	status := domain.PropertyStatus(r.URL.Query().Get("status"))
	properties, err := s.store.ListProperties(status)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, properties)
}

func (s *Server) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	property, err := s.store.GetProperty(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, property)
}

func (s *Server) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	kind := domain.ParticipantKind(r.URL.Query().Get("kind"))
	role := domain.ParticipantRole(r.URL.Query().Get("role"))
	participants, err := s.store.ListParticipants(kind, role)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, participants)
}

func (s *Server) handleGetParticipant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	participant, err := s.store.GetParticipant(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	holdings, err := s.store.ListHoldings(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	goals, err := s.store.ListGoals(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"participant": participant,
		"holdings":    holdings,
		"goals":       goals,
	})
}

func (s *Server) handleHistorySnapshots(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "months", 12)
	snapshots, err := s.store.ListSnapshots(limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snapshots)
}

func (s *Server) handleHistoryEvents(w http.ResponseWriter, r *http.Request) {
	filter := store.EventFilter{
		Category: domain.EventCategory(r.URL.Query().Get("type")),
		Limit:    queryInt(r, "limit", 50),
	}
	if m := r.URL.Query().Get("month"); m != "" {
		if month, err := strconv.Atoi(m); err == nil {
			filter.Month = &month
		}
	}
	events, err := s.store.ListEvents(filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, events)
}

// handleHistoryMetrics derives a plot-friendly time series from committed
// snapshots: one point per month, newest months last.
func (s *Server) handleHistoryMetrics(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "months", 12)
	snapshots, err := s.store.ListSnapshots(limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	points := make([]map[string]interface{}, len(snapshots))
	for i, snap := range snapshots {
		points[i] = map[string]interface{}{
			"month":             snap.NetworkMonth,
			"total_valuation":   snap.TotalValuation,
			"avg_token_price":   snap.AvgTokenPrice,
			"avg_yield":         snap.AvgYield,
			"tokens_traded":     snap.TokensTraded,
			"dividends_paid":    snap.DividendsPaid,
			"rent_collected":    snap.RentCollected,
			"participant_count": snap.ParticipantCount,
			"property_count":    snap.PropertyCount,
		}
	}
	s.writeJSON(w, http.StatusOK, points)
}

// handleFeed returns a rolling, unscoped-by-month activity feed, newest
// events first.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	filter := store.EventFilter{
		Category: domain.EventCategory(r.URL.Query().Get("category")),
		Limit:    queryInt(r, "limit", 50),
	}
	events, err := s.store.ListEvents(filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, events)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return n
	}
	return def
}
