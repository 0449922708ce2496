// Package pipeline implements the Tick Pipeline (C7): the single ordered
// routine a month's advance runs through, from draining the action queue to
// committing the month's snapshot. It satisfies the clock package's
// TickRunner interface; the Network Clock invokes it once per cadence and
// never inspects its internals.
package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"time"

	"github.com/osf/network-sim/internal/actions"
	"github.com/osf/network-sim/internal/clock"
	"github.com/osf/network-sim/internal/domain"
	"github.com/osf/network-sim/internal/eventgen"
	"github.com/osf/network-sim/internal/events"
	"github.com/osf/network-sim/internal/market"
	"github.com/osf/network-sim/internal/narrator"
	"github.com/osf/network-sim/internal/npc"
	"github.com/osf/network-sim/internal/store"
	"github.com/osf/network-sim/internal/utils"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
)

// Pipeline is the Tick Pipeline (C7). Construct with New, then wire it into
// the clock with clock.SetRunner and, so month_completed can report an
// accurate next_tick_in, with SetClock.
type Pipeline struct {
	store      *store.Store
	market     *market.State
	generator  *eventgen.Generator
	npcEngine  *npc.Engine
	processor  *actions.Processor
	summarizer *narrator.Summarizer
	bus        *events.Bus
	clock      *clock.Clock
	log        zerolog.Logger

	// seedFunc supplies the single seed the tick's *rand.Rand is built
	// from. New sets it to a time-derived seed so production ticks aren't
	// mechanically replayable from month number alone; nothing outside
	// this package replaces it.
	seedFunc func() int64
}

// New constructs a Pipeline over its collaborators. state is the live
// Market Model instance shared with the rest of the process — the pipeline
// is the only thing that ever mutates it.
func New(s *store.Store, state *market.State, gen *eventgen.Generator, npcEngine *npc.Engine,
	processor *actions.Processor, summarizer *narrator.Summarizer, bus *events.Bus, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		store:      s,
		market:     state,
		generator:  gen,
		npcEngine:  npcEngine,
		processor:  processor,
		summarizer: summarizer,
		bus:        bus,
		log:        log.With().Str("component", "pipeline").Logger(),
		seedFunc:   func() int64 { return time.Now().UnixNano() },
	}
}

// SetClock wires the Network Clock back in so RunTick can report an
// accurate next_tick_in on month_completed. Two-phase, mirroring
// clock.Clock.SetRunner: the clock and pipeline each depend on a thin
// interface/pointer to the other, constructed in either order.
func (p *Pipeline) SetClock(c *clock.Clock) {
	p.clock = c
}

// economics accumulates the aggregate figures the month's snapshot reports,
// tallied as actions are drained and NPC intents are resolved.
type economics struct {
	actionsProcessed int
	tokensTraded     int64
	dividendsPaid    decimal.Decimal
	rentCollected    decimal.Decimal
}

// RunTick executes the ten ordered steps of one month's advance: broadcast
// processing_started, drain the action queue, advance NPC agents, tally deferred votes, advance the
// market, generate events and apply appreciation, derive aggregate
// economics, narrate, persist, and broadcast completion. Any failure after
// processing_started is reported as
// processing_failed and returned as an error; the clock leaves current_month
// unchanged so the same month is retried on the next cadence. Actions that
// were never reached stay status=pending and are picked up by that retry —
// actions already drained keep their committed effect, since the Action
// Processor (C5) commits each one independently across the store's two
// databases (see DESIGN.md).
func (p *Pipeline) RunTick(ctx context.Context, month int) (interface{}, error) {
	defer utils.OperationTimer(fmt.Sprintf("tick_month_%d", month), p.log)()
	start := time.Now()
	econ := economics{dividendsPaid: decimal.Zero, rentCollected: decimal.Zero}

	pending, err := p.store.ListPendingActions(month)
	if err != nil {
		return nil, fmt.Errorf("pipeline: listing pending actions: %w", err)
	}
	p.publish(events.ProcessingStarted, &events.ProcessingStartedData{NextMonth: month, PendingCount: len(pending)})

	rng := rand.New(rand.NewSource(p.seedFunc()))

	// Step 2: drain the in-store queue in priority order.
	for _, action := range pending {
		if err := p.drainOne(ctx, action, &econ); err != nil {
			return p.fail(month, fmt.Errorf("draining action %s: %w", action.ID, err))
		}
	}

	// Step 3: advance NPC agents; every intent flows through the same
	// Action Processor a human-submitted request would.
	if err := p.runNPCs(ctx, rng, month, &econ); err != nil {
		return p.fail(month, fmt.Errorf("advancing npc agents: %w", err))
	}

	// Step 4: tally every vote deferred to this month, whether it arrived
	// via immediate execute or the explicit queue, and landed in the
	// queue only just now via the drain above.
	voteEvents, err := p.tallyVotes(month)
	if err != nil {
		return p.fail(month, fmt.Errorf("tallying votes: %w", err))
	}

	// Step 5: advance the macro-economic cycle.
	phaseChanged := p.market.UpdateCycle(rng)

	// Step 6: generate events (which self-apply their impact bags) and
	// apply this month's appreciation draw to every active property.
	generated := p.generator.Generate(rng, month, p.market)
	generated = append(generated, voteEvents...)
	if phaseChanged {
		current := p.market.Current()
		generated = append(generated, &domain.NetworkEvent{
			Month: month, Category: domain.CategoryEconomic, Severity: domain.SeverityNotable,
			Title:       "Economic phase shift",
			Description: fmt.Sprintf("The network economy entered the %s phase.", current.Phase),
		})
	}
	properties, err := p.applyAppreciation(rng, month)
	if err != nil {
		return p.fail(month, fmt.Errorf("applying appreciation: %w", err))
	}

	// Step 7: derive the snapshot's pre-computed economics.
	totals, err := p.deriveTotals(properties)
	if err != nil {
		return p.fail(month, fmt.Errorf("deriving economics: %w", err))
	}

	// Step 8: narrate, degrading to the deterministic fallback on any
	// external failure or timeout.
	narrative := p.summarizer.Summarize(ctx, narrator.Request{Month: month, Events: generated, Market: p.market.Current()})

	// Step 9: persist the snapshot and every generated event, then clear
	// any stale queue residue for this month.
	snapshot := &domain.NetworkSnapshot{
		NetworkMonth:         month,
		ParticipantCount:     totals.participantCount,
		PropertyCount:        totals.propertyCount,
		TotalValuation:       totals.totalValuation,
		AvgTokenPrice:        totals.avgTokenPrice,
		AvgYield:             totals.avgYield,
		ActionsProcessed:     econ.actionsProcessed,
		TokensTraded:         econ.tokensTraded,
		DividendsPaid:        econ.dividendsPaid,
		RentCollected:        econ.rentCollected,
		GovernorSummary:      narrative,
		ProcessingDurationMS: time.Since(start).Milliseconds(),
	}
	if blob, err := msgpack.Marshal(p.market.Current()); err == nil {
		snapshot.StateBlob = blob
	}

	if err := p.store.WithLedgerTx(func(tx *sql.Tx) error {
		if err := p.store.CreateSnapshot(tx, snapshot); err != nil {
			return err
		}
		for _, e := range generated {
			e.Month = month
			if err := p.store.CreateEvent(tx, e); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return p.fail(month, fmt.Errorf("persisting snapshot: %w", err))
	}

	if err := p.store.WithCoreTx(func(tx *sql.Tx) error { return p.store.ClearActions(tx, month) }); err != nil {
		p.log.Warn().Err(err).Int("month", month).Msg("could not clear residual queue rows for month")
	}

	// Step 10: announce the committed month.
	p.publish(events.MonthCompleted, &events.MonthCompletedData{Month: month, NextTickIn: p.nextTickIn(), Result: snapshot})

	return snapshot, nil
}

// drainOne marks, processes and completes a single queued action, folding
// its outcome into econ.
func (p *Pipeline) drainOne(ctx context.Context, action *domain.PendingAction, econ *economics) error {
	if err := p.store.WithCoreTx(func(tx *sql.Tx) error { return p.store.MarkProcessing(tx, action.ID) }); err != nil {
		return fmt.Errorf("marking processing: %w", err)
	}

	result, err := p.processor.Process(ctx, action)
	if err != nil {
		return fmt.Errorf("processing: %w", err)
	}

	resultMap := map[string]interface{}{"success": result.Success, "message": result.Message}
	for k, v := range result.Data {
		resultMap[k] = v
	}
	if err := p.store.WithCoreTx(func(tx *sql.Tx) error {
		return p.store.CompleteAction(tx, action.ID, result.Success, resultMap, string(result.ErrorCode))
	}); err != nil {
		return fmt.Errorf("completing: %w", err)
	}

	tally(econ, result)
	return nil
}

// runNPCs evaluates every NPC's should_act/evaluate_market/decide_action and
// resolves each resulting intent through the Action Processor immediately.
// NPC intents are synthetic for this tick only — they never occupy a
// pending_actions row, since they're generated and resolved in the same
// pass, unlike participant-submitted actions which persist until drained.
func (p *Pipeline) runNPCs(ctx context.Context, rng *rand.Rand, month int, econ *economics) error {
	properties, err := p.store.ListProperties("")
	if err != nil {
		return fmt.Errorf("listing properties: %w", err)
	}
	npcs, err := p.store.ListParticipants(domain.ParticipantNPC, "")
	if err != nil {
		return fmt.Errorf("listing npcs: %w", err)
	}

	intents := p.npcEngine.Decide(rng, month, p.market.Current(), properties, npcs)
	for _, intent := range intents {
		action := &domain.PendingAction{
			ID: store.NewID(), ParticipantID: intent.ParticipantID, ActionType: intent.ActionType,
			Payload: intent.Payload, Priority: intent.Priority, Status: domain.ActionStatusProcessing,
			QueuedForMonth: month, QueuedAt: time.Now(),
		}
		result, err := p.processor.Process(ctx, action)
		if err != nil {
			p.log.Warn().Err(err).Str("participant_id", intent.ParticipantID).Str("action_type", string(intent.ActionType)).
				Msg("npc intent failed unexpectedly, skipping")
			continue
		}
		if !result.Success {
			continue
		}
		tally(econ, result)
	}
	return nil
}

// tallyVotes resolves every vote deferred to month: the Action Processor
// (C5) only validates and queues a vote when it's cast, so the actual
// for/against/abstain weighting happens here, once per proposal, using
// each ballot's voting power as recorded at the moment it was cast. Every
// contributing pending_actions row is marked completed so it never gets
// picked up again, and one governance event per proposal summarizes the
// outcome for that month's narration and event feed.
func (p *Pipeline) tallyVotes(month int) ([]*domain.NetworkEvent, error) {
	pending, err := p.store.ListPendingActions(month)
	if err != nil {
		return nil, fmt.Errorf("listing pending votes: %w", err)
	}

	type ballotBox struct {
		forPower, againstPower, abstainPower int64
		ballots                              int
	}
	boxes := map[string]*ballotBox{}
	var votes []*domain.PendingAction

	for _, action := range pending {
		if action.ActionType != domain.ActionVote {
			continue
		}
		votes = append(votes, action)

		proposalID, _ := action.Payload["proposal_id"].(string)
		choice, _ := action.Payload["choice"].(string)
		power := votingPowerFromPayload(action.Payload["voting_power"])

		box, ok := boxes[proposalID]
		if !ok {
			box = &ballotBox{}
			boxes[proposalID] = box
		}
		box.ballots++
		switch choice {
		case "for":
			box.forPower += power
		case "against":
			box.againstPower += power
		case "abstain":
			box.abstainPower += power
		}
	}
	if len(votes) == 0 {
		return nil, nil
	}

	err = p.store.WithCoreTx(func(tx *sql.Tx) error {
		for _, action := range votes {
			result := map[string]interface{}{"success": true, "message": "vote tallied"}
			if err := p.store.CompleteAction(tx, action.ID, true, result, ""); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("completing tallied votes: %w", err)
	}

	generated := make([]*domain.NetworkEvent, 0, len(boxes))
	for proposalID, box := range boxes {
		outcome := "against"
		switch {
		case box.forPower > box.againstPower:
			outcome = "for"
		case box.forPower == box.againstPower:
			outcome = "tied"
		}
		generated = append(generated, &domain.NetworkEvent{
			Category: domain.CategoryGovernance, Severity: domain.SeverityNotable,
			Title: "Proposal tallied",
			Description: fmt.Sprintf("Proposal %s tallied %d ballot(s): %s with %d voting power for, %d against, %d abstaining.",
				proposalID, box.ballots, outcome, box.forPower, box.againstPower, box.abstainPower),
			Payload: map[string]interface{}{
				"proposal_id":   proposalID,
				"outcome":       outcome,
				"for_power":     box.forPower,
				"against_power": box.againstPower,
				"abstain_power": box.abstainPower,
				"ballots":       box.ballots,
			},
		})
	}
	return generated, nil
}

// votingPowerFromPayload recovers an int64 voting power recorded on a
// queued vote's payload: it round-trips through JSON as a float64 like
// every other numeric payload field (see domain.PendingAction.Payload).
func votingPowerFromPayload(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func tally(econ *economics, result domain.ActionResult) {
	if !result.Success {
		return
	}
	econ.actionsProcessed++

	switch result.ActionType {
	case domain.ActionBuyTokens, domain.ActionSellTokens:
		if amount, ok := result.Data["token_amount"].(int64); ok {
			if amount < 0 {
				amount = -amount
			}
			econ.tokensTraded += amount
		}
	case domain.ActionPayRent:
		if amount, ok := decimalField(result.Data, "amount"); ok {
			econ.rentCollected = econ.rentCollected.Add(amount)
		}
	case domain.ActionCollectRent:
		if rent, ok := decimalField(result.Data, "monthly_rent"); ok {
			econ.rentCollected = econ.rentCollected.Add(rent)
		}
		if pool, ok := decimalField(result.Data, "dividend_pool"); ok {
			econ.dividendsPaid = econ.dividendsPaid.Add(pool)
		}
	}
}

func decimalField(data map[string]interface{}, key string) (decimal.Decimal, bool) {
	s, ok := data[key].(string)
	if !ok {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// applyAppreciation draws this month's rate once per property (each draw
// feeds the rolling indicator window C2 reports) and persists the updated
// valuation, returning the refreshed property list for the economics pass.
func (p *Pipeline) applyAppreciation(rng *rand.Rand, month int) ([]*domain.PropertyState, error) {
	properties, err := p.store.ListProperties("")
	if err != nil {
		return nil, err
	}

	err = p.store.WithCoreTx(func(tx *sql.Tx) error {
		for _, prop := range properties {
			if prop.Status == domain.PropertySold || prop.Status == domain.PropertyDraft {
				continue
			}
			rate := p.market.AppreciationRate(rng)
			newValuation := prop.CurrentValuation.Mul(decimal.NewFromFloat(1 + rate))
			if err := p.store.UpdateValuation(tx, prop.ID, newValuation, month); err != nil {
				return err
			}
			prop.CurrentValuation = newValuation
			prop.LastValuationMonth = month
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return properties, nil
}

type totals struct {
	participantCount int
	propertyCount    int
	totalValuation   decimal.Decimal
	avgTokenPrice    decimal.Decimal
	avgYield         float64
}

// deriveTotals computes the snapshot's descriptive aggregates from the
// post-appreciation property list and the current participant roster.
func (p *Pipeline) deriveTotals(properties []*domain.PropertyState) (totals, error) {
	participants, err := p.store.ListParticipants("", "")
	if err != nil {
		return totals{}, err
	}

	t := totals{participantCount: len(participants), propertyCount: len(properties), totalValuation: decimal.Zero, avgTokenPrice: decimal.Zero}
	if len(properties) == 0 {
		return t, nil
	}

	priceSum := decimal.Zero
	yieldSum, yieldCount := 0.0, 0
	for _, prop := range properties {
		t.totalValuation = t.totalValuation.Add(prop.CurrentValuation)
		priceSum = priceSum.Add(prop.TokenPrice)
		if prop.Status == domain.PropertyTenanted && prop.CurrentValuation.IsPositive() {
			annualRent := prop.WeeklyRent.Mul(decimal.NewFromFloat(52))
			y, _ := annualRent.Div(prop.CurrentValuation).Float64()
			yieldSum += y
			yieldCount++
		}
	}
	t.avgTokenPrice = priceSum.Div(decimal.NewFromInt(int64(len(properties))))
	if yieldCount > 0 {
		t.avgYield = yieldSum / float64(yieldCount)
	}
	return t, nil
}

// fail announces a rolled-back tick and returns the error RunTick
// propagates to the clock, which leaves current_month untouched.
func (p *Pipeline) fail(month int, err error) (interface{}, error) {
	p.log.Error().Err(err).Int("month", month).Msg("tick pipeline failed")
	p.publish(events.ProcessingFailed, &events.ProcessingFailedData{Month: month, Error: err.Error()})
	return nil, err
}

func (p *Pipeline) nextTickIn() int {
	if p.clock == nil {
		return 0
	}
	return p.clock.GetState().IntervalSeconds
}

func (p *Pipeline) publish(t events.EventType, data events.EventData) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(&events.Event{Type: t, Timestamp: time.Now(), Data: data})
}
