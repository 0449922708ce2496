package domain

import "errors"

// ErrorCode is a stable, machine-readable rejection code surfaced to
// callers of the Action Processor and the HTTP API.
type ErrorCode string

const (
	ErrInvalidParams      ErrorCode = "INVALID_PARAMS"
	ErrNotFound           ErrorCode = "NOT_FOUND"
	ErrInsufficientTokens ErrorCode = "INSUFFICIENT_TOKENS"
	ErrPriceTooHigh       ErrorCode = "PRICE_TOO_HIGH"
	ErrInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"
	ErrPriceTooLow        ErrorCode = "PRICE_TOO_LOW"
	ErrNotTenant          ErrorCode = "NOT_TENANT"
	ErrNotTenanted        ErrorCode = "NOT_TENANTED"
	ErrInvalidVote        ErrorCode = "INVALID_VOTE"
	ErrNoVotingPower      ErrorCode = "NO_VOTING_POWER"
	ErrNotServiceProvider ErrorCode = "NOT_SERVICE_PROVIDER"
)

// Sentinel errors for the State Store and transport layers, mapped to
// HTTP status classes at the API boundary (validation->400, not-found->404,
// precondition->409, internal->500).
var (
	ErrAlreadyExists   = errors.New("already exists")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrStoreNotFound   = errors.New("not found")
)
