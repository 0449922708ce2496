package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/osf/network-sim/internal/domain"
	"github.com/osf/network-sim/internal/store"
)

// handleHealth reports the process is up; it says nothing about clock mode
// or database health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"service": "network-sim",
	})
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// writeError maps a Go error to an HTTP status class: not-found -> 404,
// conflict/insufficient balance or tokens -> 409, everything else -> 500.
// Validation failures never reach it; handlers answer those with 400
// directly. No stack trace is ever written to the response.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, code, msg := classifyError(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("internal error")
	}
	s.writeJSON(w, status, map[string]interface{}{
		"error":      msg,
		"error_code": code,
	})
}

// classifyError implements the domain.ErrorCode -> HTTP status contract.
// domain errors carry their own ErrorCode when they originate from the
// action processor; store-level sentinel errors are matched directly.
func classifyError(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrStoreNotFound):
		return http.StatusNotFound, string(domain.ErrNotFound), err.Error()
	case errors.Is(err, domain.ErrAlreadyExists), errors.Is(err, domain.ErrAlreadyProcessed):
		return http.StatusConflict, "CONFLICT", err.Error()
	case store.IsInsufficientBalance(err):
		return http.StatusConflict, string(domain.ErrInsufficientBalance), err.Error()
	case store.IsInsufficientTokens(err):
		return http.StatusConflict, string(domain.ErrInsufficientTokens), err.Error()
	}

	return http.StatusInternalServerError, "INTERNAL", "internal error"
}

// statusForErrorCode maps an action-processor error code to its HTTP
// status class.
func statusForErrorCode(code domain.ErrorCode) int {
	switch code {
	case domain.ErrInvalidParams, domain.ErrInvalidVote:
		return http.StatusBadRequest
	case domain.ErrNotFound:
		return http.StatusNotFound
	case domain.ErrInsufficientTokens, domain.ErrPriceTooHigh, domain.ErrInsufficientBalance,
		domain.ErrPriceTooLow, domain.ErrNotTenant, domain.ErrNotTenanted,
		domain.ErrNoVotingPower, domain.ErrNotServiceProvider:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON decodes a request body into dst, writing a 400 on failure and
// reporting whether decoding succeeded.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Body == nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing request body", "error_code": string(domain.ErrInvalidParams)})
		return false
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error(), "error_code": string(domain.ErrInvalidParams)})
		return false
	}
	return true
}
