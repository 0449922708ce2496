package server

import (
	"net/http"

	"github.com/osf/network-sim/internal/domain"
	"github.com/osf/network-sim/internal/store"
)

type actionRequest struct {
	ParticipantID string                 `json:"participant_id"`
	ActionType    string                 `json:"action_type"`
	Payload       map[string]interface{} `json:"payload"`
}

// handleActionExecute resolves an action immediately against committed
// state, outside the tick queue — distinct from POST /clock/queue-action,
// which defers the action to the next tick.
func (s *Server) handleActionExecute(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.ParticipantID == "" || req.ActionType == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "participant_id and action_type are required", "error_code": string(domain.ErrInvalidParams),
		})
		return
	}
	s.executeAction(w, r, req.ParticipantID, domain.ActionType(req.ActionType), req.Payload)
}

type aliasRequest struct {
	ParticipantID string                 `json:"participant_id"`
	Payload       map[string]interface{} `json:"payload"`
}

// handleActionAlias returns a handler fixed to one action type, so the
// request body only needs to carry the participant and payload.
func (s *Server) handleActionAlias(actionType domain.ActionType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req aliasRequest
		if !s.decodeJSON(w, r, &req) {
			return
		}
		if req.ParticipantID == "" {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "participant_id is required", "error_code": string(domain.ErrInvalidParams),
			})
			return
		}
		s.executeAction(w, r, req.ParticipantID, actionType, req.Payload)
	}
}

func (s *Server) executeAction(w http.ResponseWriter, r *http.Request, participantID string, actionType domain.ActionType, payload map[string]interface{}) {
	action := &domain.PendingAction{
		ID:            store.NewID(),
		ParticipantID: participantID,
		ActionType:    actionType,
		Payload:       payload,
		// vote defers to the tick that processes this month, matching
		// POST /clock/queue-action's convention; every other action type
		// ignores QueuedForMonth and resolves inline.
		QueuedForMonth: s.clock.GetState().CurrentMonth + 1,
	}

	result, err := s.processor.Process(r.Context(), action)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !result.Success {
		s.writeJSON(w, statusForErrorCode(result.ErrorCode), result)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}
