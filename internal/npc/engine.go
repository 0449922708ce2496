package npc

import (
	"database/sql"
	"errors"
	"math/rand"

	"github.com/osf/network-sim/internal/domain"
	"github.com/osf/network-sim/internal/market"
	"github.com/osf/network-sim/internal/store"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Intent is one NPC's proposed action for the tick, handed to the Action
// Processor exactly as a human-submitted request would be.
type Intent struct {
	ParticipantID string
	ActionType    domain.ActionType
	Payload       map[string]interface{}
	Priority      int
}

// Engine holds the fixed NPC catalogue and evaluates should_act /
// evaluate_market / decide_action against the current tick's state.
type Engine struct {
	store *store.Store
	ref   market.Reference
	log   zerolog.Logger
}

// NewEngine constructs an Engine calibrated against ref.
func NewEngine(s *store.Store, ref market.Reference, log zerolog.Logger) *Engine {
	return &Engine{store: s, ref: ref, log: log.With().Str("component", "npc").Logger()}
}

// EnsureSeeded creates any catalogue profile that doesn't yet exist,
// keyed by display name, so repeated calls across restarts are a no-op.
func (e *Engine) EnsureSeeded(tx *sql.Tx) error {
	for _, seed := range catalogue {
		_, err := e.store.GetParticipantByDisplayName(seed.DisplayName)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrStoreNotFound) {
			return err
		}

		personality := seed.Personality
		p := &domain.Participant{
			ID:          store.NewID(),
			Kind:        domain.ParticipantNPC,
			Role:        seed.Role,
			DisplayName: seed.DisplayName,
			Balance:     seed.StartingBalance,
			Personality: &personality,
		}
		if err := e.store.CreateParticipant(tx, p); err != nil {
			return err
		}
		for _, g := range seed.Goals {
			goal := &domain.Goal{
				ID:            store.NewID(),
				ParticipantID: p.ID,
				Type:          g.Type,
				TargetValue:   g.TargetValue,
				Priority:      g.Priority,
				DeadlineMonth: g.DeadlineMonth,
			}
			if err := e.store.CreateGoal(tx, goal); err != nil {
				return err
			}
		}
	}
	return nil
}

// Decide runs should_act, evaluate_market and decide_action for every NPC
// in npcs, returning the intents NPCs that chose to act this tick
// produced. A per-NPC failure to load its goals or holdings is logged and
// skips that NPC without aborting the others.
func (e *Engine) Decide(rng *rand.Rand, month int, state domain.MarketState, properties []*domain.PropertyState, npcs []*domain.Participant) []Intent {
	calib := e.ref.NPCCalibration()
	var intents []Intent

	for _, p := range npcs {
		if p.Personality == nil {
			continue
		}
		goals, err := e.store.ListGoals(p.ID)
		if err != nil {
			e.log.Warn().Err(err).Str("participant_id", p.ID).Msg("could not load goals, skipping NPC this tick")
			continue
		}
		if !shouldAct(rng, *p.Personality, goals, month, calib) {
			continue
		}

		holdings, err := e.store.ListHoldings(p.ID)
		if err != nil {
			e.log.Warn().Err(err).Str("participant_id", p.ID).Msg("could not load holdings, skipping NPC this tick")
			continue
		}

		scores := evaluateMarket(*p.Personality, properties, state, calib)
		if intent := e.decideAction(rng, p, goals, properties, scores, holdings, calib, month); intent != nil {
			intents = append(intents, *intent)
		}
	}

	return intents
}

// shouldAct implements should_act = random() < clamp(activity_level +
// urgency_bonus, 0, 1), where urgency_bonus sums 0.2*priority/10 over
// uncompleted goals within three months of their deadline, boosted 1.2x
// when investor lending momentum exceeds 0.15.
func shouldAct(rng *rand.Rand, personality domain.Personality, goals []domain.Goal, month int, calib market.NPCCalibration) bool {
	urgency := 0.0
	for _, g := range goals {
		if g.Completed || g.DeadlineMonth == nil {
			continue
		}
		if *g.DeadlineMonth-month <= 3 {
			urgency += 0.2 * float64(g.Priority) / 10
		}
	}

	activity := personality.ActivityLevel + urgency
	if calib.InvestorLendingMomentum > 0.15 {
		activity *= 1.2
	}
	return rng.Float64() < clamp(activity, 0, 1)
}

// evaluateMarket scores every non-sold, non-draft property 0..100 for one
// NPC, starting from a neutral 50 and adjusting for yield against the WA
// target, token price deviation from par, whether the property clears the
// NPC's minimum acceptable yield, and personality-specific biases:
// conservative NPCs favor yield-meeting properties, aggressive NPCs favor
// growth-phase conditions, contrarian NPCs favor properties in a
// declining or bust market.
func evaluateMarket(personality domain.Personality, properties []*domain.PropertyState, state domain.MarketState, calib market.NPCCalibration) map[string]float64 {
	condition := state.Condition()
	scores := make(map[string]float64, len(properties))

	for _, p := range properties {
		if p.Status == domain.PropertySold || p.Status == domain.PropertyDraft {
			continue
		}

		score := 50.0
		propertyYield := grossYield(p)
		score += (propertyYield - calib.TargetYieldHouse) * 500

		priceDeviation, _ := p.TokenPrice.Sub(decimal.NewFromInt(1)).Float64()
		score -= priceDeviation * 20

		if propertyYield >= calib.MinimumAcceptableYield {
			score += 5
		}
		if personality.RiskTolerance < 0.4 && propertyYield >= calib.MinimumAcceptableYield {
			score += 10
		}
		if personality.RiskTolerance >= 0.6 && (condition == domain.ConditionBoom || condition == domain.ConditionStable) {
			score += 10
		}
		if personality.Contrarian >= 0.6 && (condition == domain.ConditionDeclining || condition == domain.ConditionBust) {
			score += 15
		}

		scores[p.ID] = clamp(score, 0, 100)
	}

	return scores
}

// decideAction dispatches to the role-specific behavior: market makers
// alternate small buy/sell orders, developers propose new listings every
// third month, renters occasionally invest spare savings, and investors
// act on their top unsatisfied goal.
func (e *Engine) decideAction(rng *rand.Rand, p *domain.Participant, goals []domain.Goal, properties []*domain.PropertyState, scores map[string]float64, holdings []*domain.Holding, calib market.NPCCalibration, month int) *Intent {
	switch p.Role {
	case domain.RoleMarketMaker:
		return decideMarketMaker(rng, p, properties, scores, holdings, month)
	case domain.RoleDeveloper:
		return decideDeveloper(p, properties, scores, month)
	case domain.RoleRenter:
		return decideRenter(rng, p, properties, scores)
	case domain.RoleInvestor:
		return decideInvestor(p, goals, properties, scores, holdings, calib)
	default:
		return nil
	}
}

const marketMakerBand = 0.02

func decideMarketMaker(rng *rand.Rand, p *domain.Participant, properties []*domain.PropertyState, scores map[string]float64, holdings []*domain.Holding, month int) *Intent {
	if month%2 == 0 {
		target := topByScore(properties, scores)
		if target == nil {
			return nil
		}
		maxPrice := target.TokenPrice.Mul(decimal.NewFromFloat(1 + marketMakerBand))
		return &Intent{
			ParticipantID: p.ID, ActionType: domain.ActionBuyTokens, Priority: 5,
			Payload: map[string]interface{}{"property_id": target.ID, "token_amount": int64(20), "max_price": maxPrice.String()},
		}
	}

	if len(holdings) == 0 {
		return nil
	}
	h := holdings[rng.Intn(len(holdings))]
	amount := h.TokenAmount
	if amount > 20 {
		amount = 20
	}
	if amount <= 0 {
		return nil
	}
	refPrice := h.AvgPurchasePrice
	if target := propertyByID(properties, h.PropertyID); target != nil {
		refPrice = target.TokenPrice
	}
	minPrice := refPrice.Mul(decimal.NewFromFloat(1 - marketMakerBand))
	return &Intent{
		ParticipantID: p.ID, ActionType: domain.ActionSellTokens, Priority: 5,
		Payload: map[string]interface{}{"property_id": h.PropertyID, "token_amount": amount, "min_price": minPrice.String()},
	}
}

func decideDeveloper(p *domain.Participant, properties []*domain.PropertyState, scores map[string]float64, month int) *Intent {
	if month%3 != 0 {
		return nil
	}
	target := topByScore(properties, scores)
	propertyID := ""
	if target != nil {
		propertyID = target.ID
	}
	return &Intent{
		ParticipantID: p.ID, ActionType: domain.ActionRequestService, Priority: 4,
		Payload: map[string]interface{}{"service_type": "listing_proposal", "property_id": propertyID},
	}
}

const renterInvestmentChance = 0.2
const renterInvestmentFraction = 0.1

func decideRenter(rng *rand.Rand, p *domain.Participant, properties []*domain.PropertyState, scores map[string]float64) *Intent {
	if rng.Float64() >= renterInvestmentChance {
		return nil
	}
	target := topByScore(properties, scores)
	if target == nil || target.TokenPrice.IsZero() {
		return nil
	}
	spend := p.Balance.Mul(decimal.NewFromFloat(renterInvestmentFraction))
	tokens := spend.Div(target.TokenPrice).IntPart()
	if tokens <= 0 {
		return nil
	}
	maxPrice := target.TokenPrice.Mul(decimal.NewFromFloat(1.05))
	return &Intent{
		ParticipantID: p.ID, ActionType: domain.ActionBuyTokens, Priority: 3,
		Payload: map[string]interface{}{"property_id": target.ID, "token_amount": tokens, "max_price": maxPrice.String()},
	}
}

// decideInvestor consults the investor's highest-priority uncompleted
// goal and dispatches on its type: accumulate buys into the best-scored
// property, income buys into the highest-yield property, divest sells a
// portion of an existing holding. With no open goal, it defaults to
// accumulate behavior.
func decideInvestor(p *domain.Participant, goals []domain.Goal, properties []*domain.PropertyState, scores map[string]float64, holdings []*domain.Holding, calib market.NPCCalibration) *Intent {
	goal := topGoal(goals)
	goalType := domain.GoalAccumulate
	if goal != nil {
		goalType = goal.Type
	}

	switch goalType {
	case domain.GoalIncome:
		target := highestYieldProperty(properties)
		if target == nil {
			target = topByScore(properties, scores)
		}
		return buyIntent(p, target, calib)
	case domain.GoalDivest:
		if len(holdings) == 0 {
			return nil
		}
		h := holdings[0]
		amount := h.TokenAmount / 2
		if amount <= 0 {
			amount = h.TokenAmount
		}
		if amount <= 0 {
			return nil
		}
		refPrice := h.AvgPurchasePrice
		if target := propertyByID(properties, h.PropertyID); target != nil {
			refPrice = target.TokenPrice
		}
		minPrice := refPrice.Mul(decimal.NewFromFloat(0.95))
		return &Intent{
			ParticipantID: p.ID, ActionType: domain.ActionSellTokens, Priority: 6,
			Payload: map[string]interface{}{"property_id": h.PropertyID, "token_amount": amount, "min_price": minPrice.String()},
		}
	default:
		return buyIntent(p, topByScore(properties, scores), calib)
	}
}

// buyIntent sizes a buy against the NPC's balance and risk tolerance:
// more risk-tolerant investors commit a larger fraction per trade.
func buyIntent(p *domain.Participant, target *domain.PropertyState, calib market.NPCCalibration) *Intent {
	if target == nil || target.TokenPrice.IsZero() {
		return nil
	}
	fraction := 0.15
	if p.Personality != nil {
		fraction = 0.05 + p.Personality.RiskTolerance*0.2
	}
	spend := p.Balance.Mul(decimal.NewFromFloat(fraction))
	tokens := spend.Div(target.TokenPrice).IntPart()
	if tokens <= 0 {
		return nil
	}
	maxPrice := target.TokenPrice.Mul(decimal.NewFromFloat(1.05))
	return &Intent{
		ParticipantID: p.ID, ActionType: domain.ActionBuyTokens, Priority: 6,
		Payload: map[string]interface{}{"property_id": target.ID, "token_amount": tokens, "max_price": maxPrice.String()},
	}
}

func grossYield(p *domain.PropertyState) float64 {
	if !p.CurrentValuation.IsPositive() {
		return 0
	}
	annualRent := p.WeeklyRent.Mul(decimal.NewFromFloat(52))
	y, _ := annualRent.Div(p.CurrentValuation).Float64()
	return y
}

func topGoal(goals []domain.Goal) *domain.Goal {
	var best *domain.Goal
	for i := range goals {
		g := goals[i]
		if g.Completed {
			continue
		}
		if best == nil || g.Priority > best.Priority {
			best = &g
		}
	}
	return best
}

func topByScore(properties []*domain.PropertyState, scores map[string]float64) *domain.PropertyState {
	var best *domain.PropertyState
	bestScore := -1.0
	for _, p := range properties {
		s, ok := scores[p.ID]
		if !ok {
			continue
		}
		if best == nil || s > bestScore {
			best, bestScore = p, s
		}
	}
	return best
}

func highestYieldProperty(properties []*domain.PropertyState) *domain.PropertyState {
	var best *domain.PropertyState
	bestYield := -1.0
	for _, p := range properties {
		if p.Status == domain.PropertySold || p.Status == domain.PropertyDraft {
			continue
		}
		y := grossYield(p)
		if y > bestYield {
			best, bestYield = p, y
		}
	}
	return best
}

func propertyByID(properties []*domain.PropertyState, id string) *domain.PropertyState {
	for _, p := range properties {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
