// Package actions implements the Action Processor (C5): the only
// component that mutates committed participant/property state. Every
// call validates and applies one action inside a single scoped
// transaction and returns a domain.ActionResult — never a bare error for
// an expected rejection, so callers (the tick pipeline, the HTTP API)
// can surface the error_code to the participant without inspecting Go
// error types.
package actions

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/osf/network-sim/internal/domain"
	"github.com/osf/network-sim/internal/store"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// rollbackOnly is the sentinel Process returns from its WithCoreTx
// callback when the action was rejected rather than failed unexpectedly:
// it still rolls back any partial writes, but the caller (Process itself)
// translates it into a successful ActionResult carrying the error_code,
// not a Go error.
var rollbackOnly = errors.New("action rejected")

// rejection is an expected, named validation failure — distinct from an
// unexpected store/transport error, which Process still returns as a Go
// error so the caller can decide whether to retry or crash loudly.
type rejection struct {
	code    domain.ErrorCode
	message string
}

func (r *rejection) Error() string { return r.message }

func reject(code domain.ErrorCode, message string) *rejection {
	return &rejection{code: code, message: message}
}

// Processor is the Action Processor (C5).
type Processor struct {
	store *store.Store
	log   zerolog.Logger
}

// NewProcessor constructs a Processor over store.
func NewProcessor(s *store.Store, log zerolog.Logger) *Processor {
	return &Processor{store: s, log: log.With().Str("component", "actions").Logger()}
}

// Process validates and applies one action's effect. The store mutation
// runs in a single core-database transaction; an action type that also
// emits a ledger event appends it in a second transaction immediately
// after the core transaction commits (the two databases can't share one
// transaction — see DESIGN.md's note on the store's two-database split).
// A rejection is reported via the returned ActionResult's ErrorCode, not
// as a Go error; only unexpected failures (store errors, transaction
// failures) are returned as err.
func (p *Processor) Process(ctx context.Context, action *domain.PendingAction) (domain.ActionResult, error) {
	result := domain.ActionResult{ActionID: action.ID, ActionType: action.ActionType}

	var data map[string]interface{}
	var events []*domain.NetworkEvent
	var rej *rejection

	txErr := p.store.WithCoreTx(func(txn *sql.Tx) error {
		var applyErr error
		switch action.ActionType {
		case domain.ActionBuyTokens:
			data, applyErr = p.buyTokens(txn, action.ParticipantID, action.Payload)
		case domain.ActionSellTokens:
			data, applyErr = p.sellTokens(txn, action.ParticipantID, action.Payload)
		case domain.ActionPayRent:
			data, applyErr = p.payRent(txn, action.ParticipantID, action.Payload)
		case domain.ActionCollectRent:
			data, events, applyErr = p.collectRent(txn, action.ParticipantID, action.Payload)
		case domain.ActionVote:
			data, applyErr = p.vote(txn, action.ParticipantID, action.Payload, action.QueuedForMonth)
		case domain.ActionRequestService:
			data, events, applyErr = p.requestService(action.ParticipantID, action.Payload)
		case domain.ActionCompleteService:
			data, events, applyErr = p.completeService(txn, action.ParticipantID, action.Payload)
		default:
			applyErr = reject(domain.ErrInvalidParams, "unrecognized action type")
		}

		if applyErr == nil {
			return nil
		}
		var asRejection *rejection
		if errors.As(applyErr, &asRejection) {
			rej = asRejection
			return rollbackOnly // a rejection still rolls back any partial writes this call made
		}
		return applyErr
	})

	if txErr != nil && rej == nil {
		return result, txErr
	}

	if rej != nil {
		result.Success = false
		result.ErrorCode = rej.code
		result.Message = rej.message
		return result, nil
	}

	for _, evt := range events {
		evt := evt
		if err := p.store.WithLedgerTx(func(tx *sql.Tx) error { return p.store.CreateEvent(tx, evt) }); err != nil {
			p.log.Warn().Err(err).Str("action_id", action.ID).Msg("action succeeded but its event failed to persist")
		}
	}

	result.Success = true
	result.Data = data
	result.Message = successMessage(action.ActionType)
	return result, nil
}

func successMessage(t domain.ActionType) string {
	switch t {
	case domain.ActionBuyTokens:
		return "tokens purchased"
	case domain.ActionSellTokens:
		return "tokens sold"
	case domain.ActionPayRent:
		return "rent paid"
	case domain.ActionCollectRent:
		return "rent collected and dividend distributed"
	case domain.ActionVote:
		return "vote queued for tally"
	case domain.ActionRequestService:
		return "service requested"
	case domain.ActionCompleteService:
		return "service completed"
	default:
		return "ok"
	}
}

func (p *Processor) buyTokens(tx *sql.Tx, participantID string, payload map[string]interface{}) (map[string]interface{}, error) {
	propertyID, ok := payloadString(payload, "property_id")
	tokenAmount, okAmt := payloadInt64(payload, "token_amount")
	maxPrice, okPrice := payloadDecimal(payload, "max_price")
	if !ok || !okAmt || !okPrice || tokenAmount <= 0 {
		return nil, reject(domain.ErrInvalidParams, "buy_tokens requires property_id, token_amount>0, max_price")
	}

	property, err := p.store.GetPropertyForUpdate(tx, propertyID)
	if errors.Is(err, domain.ErrStoreNotFound) {
		return nil, reject(domain.ErrNotFound, "property not found")
	}
	if err != nil {
		return nil, err
	}
	if property.TokensAvailable < tokenAmount {
		return nil, reject(domain.ErrInsufficientTokens, "not enough tokens available")
	}
	if property.TokenPrice.GreaterThan(maxPrice) {
		return nil, reject(domain.ErrPriceTooHigh, "token price exceeds max_price")
	}

	cost := property.TokenPrice.Mul(decimal.NewFromInt(tokenAmount))
	if err := p.store.AdjustBalance(tx, participantID, cost, store.BalanceSub); err != nil {
		if errors.Is(err, domain.ErrStoreNotFound) {
			return nil, reject(domain.ErrNotFound, "participant not found")
		}
		if store.IsInsufficientBalance(err) {
			return nil, reject(domain.ErrInsufficientBalance, "insufficient balance")
		}
		return nil, err
	}

	if err := p.store.UpsertHolding(tx, participantID, propertyID, tokenAmount, property.TokenPrice); err != nil {
		return nil, err
	}
	if err := p.store.UpdateTokens(tx, propertyID, tokenAmount, nil); err != nil {
		return nil, err
	}
	if err := p.store.RecordInvestment(tx, participantID, cost); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"property_id": propertyID, "token_amount": tokenAmount, "price": property.TokenPrice.String(), "cost": cost.String(),
	}, nil
}

func (p *Processor) sellTokens(tx *sql.Tx, participantID string, payload map[string]interface{}) (map[string]interface{}, error) {
	propertyID, ok := payloadString(payload, "property_id")
	tokenAmount, okAmt := payloadInt64(payload, "token_amount")
	minPrice, okPrice := payloadDecimal(payload, "min_price")
	if !ok || !okAmt || !okPrice || tokenAmount <= 0 {
		return nil, reject(domain.ErrInvalidParams, "sell_tokens requires property_id, token_amount>0, min_price")
	}

	property, err := p.store.GetPropertyForUpdate(tx, propertyID)
	if errors.Is(err, domain.ErrStoreNotFound) {
		return nil, reject(domain.ErrNotFound, "property not found")
	}
	if err != nil {
		return nil, err
	}
	if property.TokenPrice.LessThan(minPrice) {
		return nil, reject(domain.ErrPriceTooLow, "token price below min_price")
	}

	if err := p.store.RemoveHolding(tx, participantID, propertyID, tokenAmount); err != nil {
		if errors.Is(err, domain.ErrStoreNotFound) || store.IsInsufficientTokens(err) {
			return nil, reject(domain.ErrInsufficientTokens, "not enough tokens held")
		}
		return nil, err
	}

	proceeds := property.TokenPrice.Mul(decimal.NewFromInt(tokenAmount))
	if err := p.store.AdjustBalance(tx, participantID, proceeds, store.BalanceAdd); err != nil {
		return nil, err
	}
	if err := p.store.UpdateTokens(tx, propertyID, -tokenAmount, nil); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"property_id": propertyID, "token_amount": tokenAmount, "price": property.TokenPrice.String(), "proceeds": proceeds.String(),
	}, nil
}

func (p *Processor) payRent(tx *sql.Tx, participantID string, payload map[string]interface{}) (map[string]interface{}, error) {
	propertyID, ok := payloadString(payload, "property_id")
	weeks, okWeeks := payloadInt64(payload, "weeks")
	if !ok || !okWeeks || weeks < 1 {
		return nil, reject(domain.ErrInvalidParams, "pay_rent requires property_id, weeks>=1")
	}

	property, err := p.store.GetPropertyForUpdate(tx, propertyID)
	if errors.Is(err, domain.ErrStoreNotFound) {
		return nil, reject(domain.ErrNotFound, "property not found")
	}
	if err != nil {
		return nil, err
	}
	if property.TenantID == nil || *property.TenantID != participantID {
		return nil, reject(domain.ErrNotTenant, "participant is not the property's tenant")
	}

	amount := property.WeeklyRent.Mul(decimal.NewFromInt(weeks))
	if err := p.store.AdjustBalance(tx, participantID, amount, store.BalanceSub); err != nil {
		if store.IsInsufficientBalance(err) {
			return nil, reject(domain.ErrInsufficientBalance, "insufficient balance")
		}
		return nil, err
	}
	if err := p.store.RecordRent(tx, propertyID, amount); err != nil {
		return nil, err
	}

	return map[string]interface{}{"property_id": propertyID, "weeks": weeks, "amount": amount.String()}, nil
}

// monthlyRentMultiple converts a weekly rent figure to a monthly one
// (52 weeks / 12 months), matching the dividend scenario's 650*4.33
// figure exactly.
const monthlyRentMultiple = 4.33

// dividendShare is the fraction of monthly rent distributed to token
// holders; the remainder funds the property's maintenance reserve and
// network operating costs.
const dividendShare = 0.80

func (p *Processor) collectRent(tx *sql.Tx, _ string, payload map[string]interface{}) (map[string]interface{}, []*domain.NetworkEvent, error) {
	propertyID, ok := payloadString(payload, "property_id")
	if !ok {
		return nil, nil, reject(domain.ErrInvalidParams, "collect_rent requires property_id")
	}

	property, err := p.store.GetPropertyForUpdate(tx, propertyID)
	if errors.Is(err, domain.ErrStoreNotFound) {
		return nil, nil, reject(domain.ErrNotFound, "property not found")
	}
	if err != nil {
		return nil, nil, err
	}
	if property.Status != domain.PropertyTenanted {
		return nil, nil, reject(domain.ErrNotTenanted, "property has no active tenancy")
	}

	monthlyRent := property.WeeklyRent.Mul(decimal.NewFromFloat(monthlyRentMultiple))
	dividendPool := monthlyRent.Mul(decimal.NewFromFloat(dividendShare))

	if err := p.store.RecordRent(tx, propertyID, monthlyRent); err != nil {
		return nil, nil, err
	}
	if err := p.store.RecordDividend(tx, propertyID, dividendPool); err != nil {
		return nil, nil, err
	}

	holdings, err := p.store.ListHoldingsByProperty(propertyID)
	if err != nil {
		return nil, nil, err
	}
	if property.TotalTokens > 0 {
		for _, h := range holdings {
			share := dividendPool.Mul(decimal.NewFromInt(h.TokenAmount)).Div(decimal.NewFromInt(property.TotalTokens))
			if share.IsZero() {
				continue
			}
			if err := p.store.AdjustBalance(tx, h.ParticipantID, share, store.BalanceAdd); err != nil {
				return nil, nil, err
			}
			if err := p.store.RecordDividendReceived(tx, h.ParticipantID, share); err != nil {
				return nil, nil, err
			}
		}
	}

	event := &domain.NetworkEvent{
		Category: domain.CategoryDividend, Severity: domain.SeverityInfo,
		Title:       "Dividend distributed",
		Description: "Monthly rent collected and 80% of it distributed to token holders.",
		PropertyID:  &propertyID,
	}

	return map[string]interface{}{
		"property_id": propertyID, "monthly_rent": monthlyRent.String(), "dividend_pool": dividendPool.String(),
	}, []*domain.NetworkEvent{event}, nil
}

// vote validates a proposal vote and queues it as a deferred action for
// targetMonth rather than resolving it inline: the tally only happens once
// the tick pipeline reaches targetMonth, so the same proposal_id/choice
// ends up weighted against every other vote cast that month regardless of
// which path (immediate execute or explicit queuing) submitted it.
func (p *Processor) vote(tx *sql.Tx, participantID string, payload map[string]interface{}, targetMonth int) (map[string]interface{}, error) {
	proposalID, ok := payloadString(payload, "proposal_id")
	choice, okChoice := payloadString(payload, "choice")
	if !ok || !okChoice {
		return nil, reject(domain.ErrInvalidParams, "vote requires proposal_id, choice")
	}
	if choice != "for" && choice != "against" && choice != "abstain" {
		return nil, reject(domain.ErrInvalidVote, "choice must be for, against or abstain")
	}

	power, err := p.store.VotingPower(participantID)
	if err != nil {
		return nil, err
	}
	if power <= 0 {
		return nil, reject(domain.ErrNoVotingPower, "participant holds no tokens")
	}

	queued := &domain.PendingAction{
		ID:            store.NewID(),
		ParticipantID: participantID,
		ActionType:    domain.ActionVote,
		Payload: map[string]interface{}{
			"proposal_id":  proposalID,
			"choice":       choice,
			"voting_power": power,
		},
		QueuedForMonth: targetMonth,
		QueuedAt:       time.Now(),
	}
	if err := p.store.QueueAction(tx, queued); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"proposal_id":  proposalID,
		"choice":       choice,
		"voting_power": power,
		"status":       "queued",
	}, nil
}

func (p *Processor) requestService(participantID string, payload map[string]interface{}) (map[string]interface{}, []*domain.NetworkEvent, error) {
	propertyID, _ := payloadString(payload, "property_id")
	serviceType, okType := payloadString(payload, "service_type")
	description, _ := payloadString(payload, "description")
	if !okType {
		return nil, nil, reject(domain.ErrInvalidParams, "request_service requires service_type")
	}

	event := &domain.NetworkEvent{
		Category: domain.CategoryProperty, Severity: domain.SeverityInfo,
		Title:         "Service requested",
		Description:   description,
		ParticipantID: &participantID,
	}
	if propertyID != "" {
		event.PropertyID = &propertyID
	}

	return map[string]interface{}{"property_id": propertyID, "service_type": serviceType}, []*domain.NetworkEvent{event}, nil
}

func (p *Processor) completeService(tx *sql.Tx, participantID string, payload map[string]interface{}) (map[string]interface{}, []*domain.NetworkEvent, error) {
	requestID, okReq := payloadString(payload, "request_id")
	amount, okAmount := payloadDecimal(payload, "amount")
	notes, _ := payloadString(payload, "notes")
	if !okReq || !okAmount || !amount.IsPositive() {
		return nil, nil, reject(domain.ErrInvalidParams, "complete_service requires request_id, amount>0")
	}

	participant, err := p.store.GetParticipant(participantID)
	if errors.Is(err, domain.ErrStoreNotFound) {
		return nil, nil, reject(domain.ErrNotFound, "participant not found")
	}
	if err != nil {
		return nil, nil, err
	}
	if participant.Role != domain.RoleService {
		return nil, nil, reject(domain.ErrNotServiceProvider, "participant is not a service provider")
	}

	if err := p.store.AdjustBalance(tx, participantID, amount, store.BalanceAdd); err != nil {
		return nil, nil, err
	}

	event := &domain.NetworkEvent{
		Category: domain.CategoryProperty, Severity: domain.SeverityInfo,
		Title:         "Service completed",
		Description:   notes,
		ParticipantID: &participantID,
	}

	return map[string]interface{}{"request_id": requestID, "amount": amount.String()}, []*domain.NetworkEvent{event}, nil
}
