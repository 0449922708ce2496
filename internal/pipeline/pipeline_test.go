package pipeline_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/osf/network-sim/internal/actions"
	"github.com/osf/network-sim/internal/domain"
	"github.com/osf/network-sim/internal/eventgen"
	"github.com/osf/network-sim/internal/events"
	"github.com/osf/network-sim/internal/market"
	"github.com/osf/network-sim/internal/narrator"
	"github.com/osf/network-sim/internal/npc"
	"github.com/osf/network-sim/internal/pipeline"
	"github.com/osf/network-sim/internal/store"
	testhelpers "github.com/osf/network-sim/internal/testing"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T) (*pipeline.Pipeline, *store.Store, *events.Bus) {
	t.Helper()
	core, cleanupCore := testhelpers.NewTestDB(t, "core")
	t.Cleanup(cleanupCore)
	ledger, cleanupLedger := testhelpers.NewTestDB(t, "ledger")
	t.Cleanup(cleanupLedger)

	s := store.New(core, ledger, zerolog.Nop())
	state := market.NewState(domain.MarketState{Phase: domain.PhaseExpansion, ConsumerConfidence: 55, IronOrePrice: 110})
	gen := eventgen.NewGenerator(market.DefaultReference)
	npcEngine := npc.NewEngine(s, market.DefaultReference, zerolog.Nop())
	processor := actions.NewProcessor(s, zerolog.Nop())
	summarizer := narrator.NewSummarizer(nil, zerolog.Nop())
	bus := events.NewBus()

	p := pipeline.New(s, state, gen, npcEngine, processor, summarizer, bus, zerolog.Nop())
	return p, s, bus
}

func seedProperty(t *testing.T, s *store.Store, p *domain.PropertyState) {
	t.Helper()
	err := s.WithCoreTx(func(tx *sql.Tx) error { return s.CreateOrUpdatePropertyState(tx, p) })
	require.NoError(t, err)
}

func seedParticipant(t *testing.T, s *store.Store, p *domain.Participant) {
	t.Helper()
	err := s.WithCoreTx(func(tx *sql.Tx) error { return s.CreateParticipant(tx, p) })
	require.NoError(t, err)
}

func queueAction(t *testing.T, s *store.Store, a *domain.PendingAction) {
	t.Helper()
	err := s.WithCoreTx(func(tx *sql.Tx) error { return s.QueueAction(tx, a) })
	require.NoError(t, err)
}

func TestRunTickPersistsSnapshotAndDrainsQueue(t *testing.T) {
	p, s, _ := newTestPipeline(t)

	investor := testhelpers.NewParticipantFixture("inv1", 10000)
	seedParticipant(t, s, investor)
	property := testhelpers.NewPropertyFixture("prop1", 10000, 1.00)
	seedProperty(t, s, property)
	queueAction(t, s, &domain.PendingAction{
		ID: "a1", ParticipantID: "inv1", ActionType: domain.ActionBuyTokens, QueuedForMonth: 1,
		Payload: map[string]interface{}{"property_id": "prop1", "token_amount": int64(100), "max_price": decimal.NewFromFloat(1.50)},
	})

	result, err := p.RunTick(context.Background(), 1)
	require.NoError(t, err)
	snap, ok := result.(*domain.NetworkSnapshot)
	require.True(t, ok)
	assert.Equal(t, 1, snap.NetworkMonth)
	assert.GreaterOrEqual(t, snap.ActionsProcessed, 1)
	assert.EqualValues(t, 100, snap.TokensTraded)
	assert.NotEmpty(t, snap.GovernorSummary)

	pending, err := s.ListPendingActions(1)
	require.NoError(t, err)
	assert.Empty(t, pending, "the drained action must no longer be pending")

	stored, err := s.GetSnapshot(1)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.NetworkMonth)

	prop, err := s.GetProperty("prop1")
	require.NoError(t, err)
	assert.True(t, prop.CurrentValuation.GreaterThan(decimal.Zero), "appreciation must leave a positive valuation")
	assert.Equal(t, 1, prop.LastValuationMonth)
}

func TestRunTickPublishesStartAndCompletionEvents(t *testing.T) {
	p, s, bus := newTestPipeline(t)
	seedProperty(t, s, testhelpers.NewPropertyFixture("prop1", 10000, 1.00))

	sub := bus.Subscribe(events.ProcessingStarted, events.MonthCompleted)
	defer bus.Unsubscribe(sub)

	_, err := p.RunTick(context.Background(), 1)
	require.NoError(t, err)

	first := <-sub.C
	assert.Equal(t, events.ProcessingStarted, first.Type)
	second := <-sub.C
	assert.Equal(t, events.MonthCompleted, second.Type)
}

func TestRunTickCollectsDividendsFromQueuedAction(t *testing.T) {
	p, s, _ := newTestPipeline(t)

	holder := testhelpers.NewParticipantFixture("hA", 0)
	seedParticipant(t, s, holder)
	seedParticipant(t, s, testhelpers.NewParticipantFixture("tenant1", 0))
	property := testhelpers.NewTenantedPropertyFixture("prop1", "tenant1", 650, 1)
	seedProperty(t, s, property)
	err := s.WithCoreTx(func(tx *sql.Tx) error {
		return s.UpsertHolding(tx, "hA", "prop1", 10000, decimal.NewFromFloat(1.00))
	})
	require.NoError(t, err)
	queueAction(t, s, &domain.PendingAction{
		ID: "a1", ParticipantID: "tenant1", ActionType: domain.ActionCollectRent, QueuedForMonth: 1,
		Payload: map[string]interface{}{"property_id": "prop1"},
	})

	result, err := p.RunTick(context.Background(), 1)
	require.NoError(t, err)
	snap := result.(*domain.NetworkSnapshot)

	monthlyRent := decimal.NewFromFloat(650).Mul(decimal.NewFromFloat(4.33))
	dividendPool := monthlyRent.Mul(decimal.NewFromFloat(0.80))
	assert.True(t, snap.RentCollected.Equal(monthlyRent))
	assert.True(t, snap.DividendsPaid.Equal(dividendPool))
}

func TestRunTickTalliesQueuedVotes(t *testing.T) {
	p, s, _ := newTestPipeline(t)
	seedParticipant(t, s, testhelpers.NewParticipantFixture("p1", 0))
	seedParticipant(t, s, testhelpers.NewParticipantFixture("p2", 0))
	seedProperty(t, s, testhelpers.NewPropertyFixture("prop1", 10000, 1.00))
	err := s.WithCoreTx(func(tx *sql.Tx) error {
		if err := s.UpsertHolding(tx, "p1", "prop1", 700, decimal.NewFromFloat(1.00)); err != nil {
			return err
		}
		return s.UpsertHolding(tx, "p2", "prop1", 300, decimal.NewFromFloat(1.00))
	})
	require.NoError(t, err)

	queueAction(t, s, &domain.PendingAction{
		ID: "vote-a", ParticipantID: "p1", ActionType: domain.ActionVote, QueuedForMonth: 1,
		Payload: map[string]interface{}{"proposal_id": "prop-gov-1", "choice": "for"},
	})
	queueAction(t, s, &domain.PendingAction{
		ID: "vote-b", ParticipantID: "p2", ActionType: domain.ActionVote, QueuedForMonth: 1,
		Payload: map[string]interface{}{"proposal_id": "prop-gov-1", "choice": "against"},
	})

	_, err = p.RunTick(context.Background(), 1)
	require.NoError(t, err)

	pending, err := s.ListPendingActions(1)
	require.NoError(t, err)
	assert.Empty(t, pending, "every ballot, including the deferred row each vote queues while being drained, must be cleared")

	month := 1
	events, err := s.ListEvents(store.EventFilter{Month: &month, Category: domain.CategoryGovernance})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "prop-gov-1", events[0].Payload["proposal_id"])
	assert.Equal(t, "for", events[0].Payload["outcome"])
}

func TestRunTickAdvancesNPCAgentsWithoutQueuing(t *testing.T) {
	p, s, _ := newTestPipeline(t)
	seedProperty(t, s, testhelpers.NewPropertyFixture("prop1", 10000, 1.00))

	err := s.WithCoreTx(func(tx *sql.Tx) error {
		return npc.NewEngine(s, market.DefaultReference, zerolog.Nop()).EnsureSeeded(tx)
	})
	require.NoError(t, err)

	_, err = p.RunTick(context.Background(), 1)
	require.NoError(t, err)

	pending, err := s.ListPendingActions(1)
	require.NoError(t, err)
	assert.Empty(t, pending, "NPC intents must never occupy a pending_actions row")
}
