package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/osf/network-sim/internal/clock"
	"github.com/osf/network-sim/internal/domain"
	"github.com/osf/network-sim/internal/store"
)

func (s *Server) handleClockStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.clock.GetState())
}

func (s *Server) handleClockPresets(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, clock.Presets)
}

// handleClockPendingActions computes the month the clock will next tick for:
// fire() always advances to current_month+1, so that is what a client
// previewing the upcoming tick must query against.
func (s *Server) handleClockPendingActions(w http.ResponseWriter, r *http.Request) {
	nextMonth := s.clock.GetState().CurrentMonth + 1
	pending, err := s.store.ListPendingActions(nextMonth)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"month":   nextMonth,
		"actions": pending,
	})
}

type presetRequest struct {
	Preset string `json:"preset"`
}

func (s *Server) handleClockSetPreset(w http.ResponseWriter, r *http.Request) {
	var req presetRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := s.clock.SetPreset(req.Preset); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error(), "error_code": string(domain.ErrInvalidParams)})
		return
	}
	s.writeJSON(w, http.StatusOK, s.clock.GetState())
}

type intervalRequest struct {
	IntervalSeconds int `json:"interval_seconds"`
}

func (s *Server) handleClockSetInterval(w http.ResponseWriter, r *http.Request) {
	var req intervalRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := s.clock.SetInterval(req.IntervalSeconds); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error(), "error_code": string(domain.ErrInvalidParams)})
		return
	}
	s.writeJSON(w, http.StatusOK, s.clock.GetState())
}

type modeRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleClockSetMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := s.clock.SetMode(clock.Mode(req.Mode)); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error(), "error_code": string(domain.ErrInvalidParams)})
		return
	}
	s.writeJSON(w, http.StatusOK, s.clock.GetState())
}

func (s *Server) handleClockStart(w http.ResponseWriter, r *http.Request) {
	s.clock.Start()
	s.writeJSON(w, http.StatusOK, s.clock.GetState())
}

func (s *Server) handleClockStop(w http.ResponseWriter, r *http.Request) {
	s.clock.Stop()
	s.writeJSON(w, http.StatusOK, s.clock.GetState())
}

func (s *Server) handleClockPause(w http.ResponseWriter, r *http.Request) {
	s.clock.Pause()
	s.writeJSON(w, http.StatusOK, s.clock.GetState())
}

func (s *Server) handleClockResume(w http.ResponseWriter, r *http.Request) {
	s.clock.Resume()
	s.writeJSON(w, http.StatusOK, s.clock.GetState())
}

func (s *Server) handleClockForceTick(w http.ResponseWriter, r *http.Request) {
	s.clock.ForceTick(r.Context())
	s.writeJSON(w, http.StatusOK, s.clock.GetState())
}

type queueActionRequest struct {
	ParticipantID string                 `json:"participant_id"`
	ActionType    string                 `json:"action_type"`
	Payload       map[string]interface{} `json:"payload"`
	Priority      int                    `json:"priority"`
}

func (s *Server) handleClockQueueAction(w http.ResponseWriter, r *http.Request) {
	var req queueActionRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.ParticipantID == "" || req.ActionType == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "participant_id and action_type are required", "error_code": string(domain.ErrInvalidParams),
		})
		return
	}
	priority := req.Priority
	if priority == 0 {
		priority = 5
	}

	action := &domain.PendingAction{
		ID:             store.NewID(),
		ParticipantID:  req.ParticipantID,
		ActionType:     domain.ActionType(req.ActionType),
		Payload:        req.Payload,
		Priority:       priority,
		Status:         domain.ActionStatusPending,
		QueuedForMonth: s.clock.GetState().CurrentMonth + 1,
		QueuedAt:       time.Now(),
	}
	if err := s.clock.QueueAction(action); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, action)
}

func (s *Server) handleClockRemoveAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.clock.RemoveAction(id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "removed"})
}

func (s *Server) handleClockClearActions(w http.ResponseWriter, r *http.Request) {
	if err := s.clock.ClearActions(); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
