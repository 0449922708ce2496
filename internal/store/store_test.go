package store_test

import (
	"database/sql"
	"testing"

	"github.com/osf/network-sim/internal/domain"
	"github.com/osf/network-sim/internal/store"
	testhelpers "github.com/osf/network-sim/internal/testing"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	core, cleanupCore := testhelpers.NewTestDB(t, "core")
	t.Cleanup(cleanupCore)
	ledger, cleanupLedger := testhelpers.NewTestDB(t, "ledger")
	t.Cleanup(cleanupLedger)
	return store.New(core, ledger, zerolog.Nop())
}

func TestAdjustBalanceRejectsNegativeResult(t *testing.T) {
	s := newTestStore(t)
	p := testhelpers.NewParticipantFixture("p1", 500.00)

	err := s.WithCoreTx(func(tx *sql.Tx) error { return s.CreateParticipant(tx, p) })
	require.NoError(t, err)

	err = s.WithCoreTx(func(tx *sql.Tx) error {
		return s.AdjustBalance(tx, p.ID, decimal.NewFromFloat(1000), store.BalanceSub)
	})
	require.Error(t, err)
	assert.True(t, store.IsInsufficientBalance(err))

	got, err := s.GetParticipant(p.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromFloat(500.00)))
}

func TestUpsertHoldingComputesWeightedAveragePrice(t *testing.T) {
	s := newTestStore(t)
	p := testhelpers.NewParticipantFixture("p1", 100000)
	prop := testhelpers.NewPropertyFixture("prop1", 10000, 1.00)

	err := s.WithCoreTx(func(tx *sql.Tx) error {
		if err := s.CreateParticipant(tx, p); err != nil {
			return err
		}
		return s.CreateOrUpdatePropertyState(tx, prop)
	})
	require.NoError(t, err)

	err = s.WithCoreTx(func(tx *sql.Tx) error {
		return s.UpsertHolding(tx, p.ID, prop.ID, 1000, decimal.NewFromFloat(1.00))
	})
	require.NoError(t, err)

	err = s.WithCoreTx(func(tx *sql.Tx) error {
		return s.UpsertHolding(tx, p.ID, prop.ID, 1000, decimal.NewFromFloat(2.00))
	})
	require.NoError(t, err)

	h, err := s.GetHolding(p.ID, prop.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2000, h.TokenAmount)
	assert.True(t, h.AvgPurchasePrice.Equal(decimal.NewFromFloat(1.50)), "expected weighted average 1.50, got %s", h.AvgPurchasePrice)
}

func TestCreateSnapshotIsExactlyOnce(t *testing.T) {
	s := newTestStore(t)
	snap := &domain.NetworkSnapshot{
		NetworkMonth:   1,
		TotalValuation: decimal.NewFromInt(1000),
		AvgTokenPrice:  decimal.NewFromFloat(1.0),
	}

	err := s.WithLedgerTx(func(tx *sql.Tx) error { return s.CreateSnapshot(tx, snap) })
	require.NoError(t, err)

	err = s.WithLedgerTx(func(tx *sql.Tx) error { return s.CreateSnapshot(tx, snap) })
	require.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestCompleteActionIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	p := testhelpers.NewParticipantFixture("p1", 1000)
	action := &domain.PendingAction{
		ID:             "a1",
		ParticipantID:  p.ID,
		ActionType:     domain.ActionBuyTokens,
		Payload:        map[string]interface{}{"token_amount": 10},
		QueuedForMonth: 1,
	}

	err := s.WithCoreTx(func(tx *sql.Tx) error {
		if err := s.CreateParticipant(tx, p); err != nil {
			return err
		}
		return s.QueueAction(tx, action)
	})
	require.NoError(t, err)

	err = s.WithCoreTx(func(tx *sql.Tx) error {
		return s.CompleteAction(tx, action.ID, true, map[string]interface{}{"ok": true}, "")
	})
	require.NoError(t, err)

	err = s.WithCoreTx(func(tx *sql.Tx) error {
		return s.CompleteAction(tx, action.ID, true, map[string]interface{}{"ok": true}, "")
	})
	require.ErrorIs(t, err, domain.ErrAlreadyProcessed)
}

func TestPendingActionsOrderedByPriorityThenQueuedAt(t *testing.T) {
	s := newTestStore(t)
	p := testhelpers.NewParticipantFixture("p1", 1000)

	err := s.WithCoreTx(func(tx *sql.Tx) error {
		if err := s.CreateParticipant(tx, p); err != nil {
			return err
		}
		low := &domain.PendingAction{ID: "low", ParticipantID: p.ID, ActionType: domain.ActionBuyTokens, Priority: 1, QueuedForMonth: 1}
		high := &domain.PendingAction{ID: "high", ParticipantID: p.ID, ActionType: domain.ActionBuyTokens, Priority: 9, QueuedForMonth: 1}
		if err := s.QueueAction(tx, low); err != nil {
			return err
		}
		return s.QueueAction(tx, high)
	})
	require.NoError(t, err)

	actions, err := s.ListPendingActions(1)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, "high", actions[0].ID)
	assert.Equal(t, "low", actions[1].ID)
}
