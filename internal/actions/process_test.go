package actions_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/osf/network-sim/internal/actions"
	"github.com/osf/network-sim/internal/domain"
	"github.com/osf/network-sim/internal/store"
	testhelpers "github.com/osf/network-sim/internal/testing"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestProcessor(t *testing.T) (*actions.Processor, *store.Store) {
	t.Helper()
	core, cleanupCore := testhelpers.NewTestDB(t, "core")
	t.Cleanup(cleanupCore)
	ledger, cleanupLedger := testhelpers.NewTestDB(t, "ledger")
	t.Cleanup(cleanupLedger)
	s := store.New(core, ledger, zerolog.Nop())
	return actions.NewProcessor(s, zerolog.Nop()), s
}

func seedParticipant(t *testing.T, s *store.Store, p *domain.Participant) {
	t.Helper()
	err := s.WithCoreTx(func(tx *sql.Tx) error { return s.CreateParticipant(tx, p) })
	require.NoError(t, err)
}

func seedProperty(t *testing.T, s *store.Store, p *domain.PropertyState) {
	t.Helper()
	err := s.WithCoreTx(func(tx *sql.Tx) error { return s.CreateOrUpdatePropertyState(tx, p) })
	require.NoError(t, err)
}

func TestProcessBuyTokensSuccess(t *testing.T) {
	proc, s := newTestProcessor(t)
	investor := testhelpers.NewParticipantFixture("inv1", 10000)
	seedParticipant(t, s, investor)
	property := testhelpers.NewPropertyFixture("prop1", 10000, 1.00)
	seedProperty(t, s, property)

	action := &domain.PendingAction{
		ID: "a1", ParticipantID: "inv1", ActionType: domain.ActionBuyTokens,
		Payload: map[string]interface{}{"property_id": "prop1", "token_amount": int64(100), "max_price": decimal.NewFromFloat(1.50)},
	}
	result, err := proc.Process(context.Background(), action)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.EqualValues(t, 100, result.Data["token_amount"])

	updated, err := s.GetParticipant("inv1")
	require.NoError(t, err)
	require.True(t, updated.Balance.Equal(decimal.NewFromFloat(9900)))

	prop, err := s.GetProperty("prop1")
	require.NoError(t, err)
	require.EqualValues(t, 9900, prop.TokensAvailable)
}

func TestProcessBuyTokensInsufficientTokens(t *testing.T) {
	proc, s := newTestProcessor(t)
	investor := testhelpers.NewParticipantFixture("inv1", 1000000)
	seedParticipant(t, s, investor)
	property := testhelpers.NewPropertyFixture("prop1", 100, 1.00)
	seedProperty(t, s, property)

	action := &domain.PendingAction{
		ID: "a1", ParticipantID: "inv1", ActionType: domain.ActionBuyTokens,
		Payload: map[string]interface{}{"property_id": "prop1", "token_amount": int64(200), "max_price": decimal.NewFromFloat(5.00)},
	}
	result, err := proc.Process(context.Background(), action)
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, domain.ErrInsufficientTokens, result.ErrorCode)
}

func TestProcessBuyTokensPriceTooHigh(t *testing.T) {
	proc, s := newTestProcessor(t)
	investor := testhelpers.NewParticipantFixture("inv1", 10000)
	seedParticipant(t, s, investor)
	property := testhelpers.NewPropertyFixture("prop1", 10000, 2.00)
	seedProperty(t, s, property)

	action := &domain.PendingAction{
		ID: "a1", ParticipantID: "inv1", ActionType: domain.ActionBuyTokens,
		Payload: map[string]interface{}{"property_id": "prop1", "token_amount": int64(10), "max_price": decimal.NewFromFloat(1.00)},
	}
	result, err := proc.Process(context.Background(), action)
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, domain.ErrPriceTooHigh, result.ErrorCode)
}

func TestProcessBuyTokensInsufficientBalance(t *testing.T) {
	proc, s := newTestProcessor(t)
	investor := testhelpers.NewParticipantFixture("inv1", 5)
	seedParticipant(t, s, investor)
	property := testhelpers.NewPropertyFixture("prop1", 10000, 1.00)
	seedProperty(t, s, property)

	action := &domain.PendingAction{
		ID: "a1", ParticipantID: "inv1", ActionType: domain.ActionBuyTokens,
		Payload: map[string]interface{}{"property_id": "prop1", "token_amount": int64(100), "max_price": decimal.NewFromFloat(2.00)},
	}
	result, err := proc.Process(context.Background(), action)
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, domain.ErrInsufficientBalance, result.ErrorCode)

	unchanged, err := s.GetProperty("prop1")
	require.NoError(t, err)
	require.EqualValues(t, 10000, unchanged.TokensAvailable, "a rejected buy must roll back the token reservation")
}

func TestProcessSellTokensPriceTooLow(t *testing.T) {
	proc, s := newTestProcessor(t)
	investor := testhelpers.NewParticipantFixture("inv1", 0)
	seedParticipant(t, s, investor)
	property := testhelpers.NewPropertyFixture("prop1", 10000, 0.50)
	seedProperty(t, s, property)
	err := s.WithCoreTx(func(tx *sql.Tx) error {
		return s.UpsertHolding(tx, "inv1", "prop1", 100, decimal.NewFromFloat(1.00))
	})
	require.NoError(t, err)

	action := &domain.PendingAction{
		ID: "a1", ParticipantID: "inv1", ActionType: domain.ActionSellTokens,
		Payload: map[string]interface{}{"property_id": "prop1", "token_amount": int64(50), "min_price": decimal.NewFromFloat(0.90)},
	}
	result, err := proc.Process(context.Background(), action)
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, domain.ErrPriceTooLow, result.ErrorCode)
}

func TestProcessSellTokensSuccess(t *testing.T) {
	proc, s := newTestProcessor(t)
	investor := testhelpers.NewParticipantFixture("inv1", 0)
	seedParticipant(t, s, investor)
	property := testhelpers.NewPropertyFixture("prop1", 10000, 1.00)
	property.TokensAvailable = 9900 // the 100 tokens held below came out of this property's supply
	seedProperty(t, s, property)
	err := s.WithCoreTx(func(tx *sql.Tx) error {
		return s.UpsertHolding(tx, "inv1", "prop1", 100, decimal.NewFromFloat(1.00))
	})
	require.NoError(t, err)

	action := &domain.PendingAction{
		ID: "a1", ParticipantID: "inv1", ActionType: domain.ActionSellTokens,
		Payload: map[string]interface{}{"property_id": "prop1", "token_amount": int64(50), "min_price": decimal.NewFromFloat(0.50)},
	}
	result, err := proc.Process(context.Background(), action)
	require.NoError(t, err)
	require.True(t, result.Success)

	updated, err := s.GetParticipant("inv1")
	require.NoError(t, err)
	require.True(t, updated.Balance.Equal(decimal.NewFromFloat(50)))
}

func TestProcessPayRentNotTenant(t *testing.T) {
	proc, s := newTestProcessor(t)
	renter := testhelpers.NewParticipantFixture("r1", 10000)
	seedParticipant(t, s, renter)
	seedParticipant(t, s, testhelpers.NewParticipantFixture("someone-else", 0))
	property := testhelpers.NewTenantedPropertyFixture("prop1", "someone-else", 650, 1)
	seedProperty(t, s, property)

	action := &domain.PendingAction{
		ID: "a1", ParticipantID: "r1", ActionType: domain.ActionPayRent,
		Payload: map[string]interface{}{"property_id": "prop1", "weeks": int64(1)},
	}
	result, err := proc.Process(context.Background(), action)
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, domain.ErrNotTenant, result.ErrorCode)
}

func TestProcessCollectRentDistributesDividendProportionally(t *testing.T) {
	proc, s := newTestProcessor(t)
	holderA := testhelpers.NewParticipantFixture("hA", 0)
	holderB := testhelpers.NewParticipantFixture("hB", 0)
	seedParticipant(t, s, holderA)
	seedParticipant(t, s, holderB)
	seedParticipant(t, s, testhelpers.NewParticipantFixture("tenant1", 0))
	property := testhelpers.NewTenantedPropertyFixture("prop1", "tenant1", 650, 1)
	seedProperty(t, s, property)
	err := s.WithCoreTx(func(tx *sql.Tx) error {
		if err := s.UpsertHolding(tx, "hA", "prop1", 7500, decimal.NewFromFloat(1.00)); err != nil {
			return err
		}
		return s.UpsertHolding(tx, "hB", "prop1", 2500, decimal.NewFromFloat(1.00))
	})
	require.NoError(t, err)

	action := &domain.PendingAction{
		ID: "a1", ParticipantID: "tenant1", ActionType: domain.ActionCollectRent,
		Payload: map[string]interface{}{"property_id": "prop1"},
	}
	result, err := proc.Process(context.Background(), action)
	require.NoError(t, err)
	require.True(t, result.Success)

	// monthly_rent = 650 * 4.33 = 2814.50; dividend_pool = 0.80 * 2814.50 = 2251.60
	monthlyRent := decimal.NewFromFloat(650).Mul(decimal.NewFromFloat(4.33))
	dividendPool := monthlyRent.Mul(decimal.NewFromFloat(0.80))

	updatedA, err := s.GetParticipant("hA")
	require.NoError(t, err)
	updatedB, err := s.GetParticipant("hB")
	require.NoError(t, err)

	expectedA := dividendPool.Mul(decimal.NewFromInt(7500)).Div(decimal.NewFromInt(10000))
	expectedB := dividendPool.Mul(decimal.NewFromInt(2500)).Div(decimal.NewFromInt(10000))
	require.True(t, updatedA.Balance.Equal(expectedA), "holder A's 75%% share")
	require.True(t, updatedB.Balance.Equal(expectedB), "holder B's 25%% share")
}

func TestProcessVoteNoVotingPower(t *testing.T) {
	proc, s := newTestProcessor(t)
	participant := testhelpers.NewParticipantFixture("p1", 100)
	seedParticipant(t, s, participant)

	action := &domain.PendingAction{
		ID: "a1", ParticipantID: "p1", ActionType: domain.ActionVote,
		Payload: map[string]interface{}{"proposal_id": "prop-gov-1", "choice": "for"},
	}
	result, err := proc.Process(context.Background(), action)
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, domain.ErrNoVotingPower, result.ErrorCode)
}

func TestProcessVoteQueuesDeferredAction(t *testing.T) {
	proc, s := newTestProcessor(t)
	investor := testhelpers.NewParticipantFixture("inv1", 0)
	seedParticipant(t, s, investor)
	property := testhelpers.NewPropertyFixture("prop1", 10000, 1.00)
	seedProperty(t, s, property)
	err := s.WithCoreTx(func(tx *sql.Tx) error {
		return s.UpsertHolding(tx, "inv1", "prop1", 500, decimal.NewFromFloat(1.00))
	})
	require.NoError(t, err)

	action := &domain.PendingAction{
		ID: "a1", ParticipantID: "inv1", ActionType: domain.ActionVote, QueuedForMonth: 7,
		Payload: map[string]interface{}{"proposal_id": "prop-gov-1", "choice": "for"},
	}
	result, err := proc.Process(context.Background(), action)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.EqualValues(t, 500, result.Data["voting_power"])
	require.Equal(t, "queued", result.Data["status"])

	queued, err := s.ListPendingActions(7)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	require.Equal(t, domain.ActionVote, queued[0].ActionType)
	require.NotEqual(t, "a1", queued[0].ID, "the tallied vote is a new deferred row, not the submission itself")
	require.Equal(t, "for", queued[0].Payload["choice"])
}

func TestProcessVoteInvalidChoice(t *testing.T) {
	proc, s := newTestProcessor(t)
	participant := testhelpers.NewParticipantFixture("p1", 100)
	seedParticipant(t, s, participant)

	action := &domain.PendingAction{
		ID: "a1", ParticipantID: "p1", ActionType: domain.ActionVote,
		Payload: map[string]interface{}{"proposal_id": "prop-gov-1", "choice": "maybe"},
	}
	result, err := proc.Process(context.Background(), action)
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, domain.ErrInvalidVote, result.ErrorCode)
}

func TestProcessCompleteServiceNotServiceProvider(t *testing.T) {
	proc, s := newTestProcessor(t)
	participant := testhelpers.NewParticipantFixture("p1", 100)
	seedParticipant(t, s, participant)

	action := &domain.PendingAction{
		ID: "a1", ParticipantID: "p1", ActionType: domain.ActionCompleteService,
		Payload: map[string]interface{}{"request_id": "req1", "amount": decimal.NewFromFloat(50)},
	}
	result, err := proc.Process(context.Background(), action)
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, domain.ErrNotServiceProvider, result.ErrorCode)
}

func TestProcessRequestServiceSuccess(t *testing.T) {
	proc, s := newTestProcessor(t)
	participant := testhelpers.NewParticipantFixture("p1", 100)
	seedParticipant(t, s, participant)

	action := &domain.PendingAction{
		ID: "a1", ParticipantID: "p1", ActionType: domain.ActionRequestService,
		Payload: map[string]interface{}{"service_type": "maintenance", "description": "leaking roof"},
	}
	result, err := proc.Process(context.Background(), action)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "maintenance", result.Data["service_type"])
}
