package server

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/osf/network-sim/internal/domain"
)

func (s *Server) handleListNPCs(w http.ResponseWriter, r *http.Request) {
	npcs, err := s.store.ListParticipants(domain.ParticipantNPC, "")
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, npcs)
}

func (s *Server) handleGetNPC(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	npc, err := s.store.GetParticipant(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if npc.Kind != domain.ParticipantNPC {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "not an NPC", "error_code": string(domain.ErrNotFound)})
		return
	}
	holdings, err := s.store.ListHoldings(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"participant": npc,
		"holdings":    holdings,
	})
}

// handleInitializeNPCs seeds the fixed NPC roster once; calling it again is
// a no-op since EnsureSeeded checks for an existing population first.
func (s *Server) handleInitializeNPCs(w http.ResponseWriter, r *http.Request) {
	err := s.store.WithCoreTx(func(tx *sql.Tx) error { return s.npcEngine.EnsureSeeded(tx) })
	if err != nil {
		s.writeError(w, err)
		return
	}
	npcs, err := s.store.ListParticipants(domain.ParticipantNPC, "")
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"initialized": len(npcs),
		"npcs":        npcs,
	})
}
