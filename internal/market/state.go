// Package market implements the Market Model (C2): the single
// deterministic macro-economic state driving property valuation drift and
// event probability for a tick. Only the tick pipeline mutates it — there
// is no internal locking, by the same single-writer discipline the
// pipeline applies to the rest of simulation state.
package market

import (
	"math"
	"math/rand"

	"github.com/osf/network-sim/internal/domain"
)

// Per-transition indicator deltas applied by UpdateCycle, in addition to
// reverting months_in_phase to zero.
const (
	contractionConfidenceDelta = -8.0
	contractionHousingDelta    = -3.0
	recoveryConfidenceDelta    = 6.0
	expansionHousingDelta      = 2.0
	expansionConfidenceDelta   = 4.0
)

// State wraps the persisted domain.MarketState with the rolling indicator
// window used for reporting trend, not for simulation itself.
type State struct {
	current    domain.MarketState
	indicators RollingIndicators
}

// NewState constructs a State from an initial (e.g. freshly-seeded or
// restored-from-snapshot) domain.MarketState.
func NewState(initial domain.MarketState) *State {
	return &State{current: initial}
}

// Current returns a copy of the macro state; its Condition method derives
// the market condition.
func (s *State) Current() domain.MarketState {
	return s.current
}

// Indicators exposes the rolling appreciation-draw statistics for the
// economy endpoint.
func (s *State) Indicators() *RollingIndicators {
	return &s.indicators
}

// UpdateCycle advances months_in_phase and, with probability
// min(0.3, months_in_phase*0.02), transitions the economic phase along the
// fixed cycle expansion->peak->contraction->trough->recovery->expansion,
// applying that transition's deterministic indicator deltas. Returns true
// if a phase transition occurred this call.
func (s *State) UpdateCycle(rng *rand.Rand) bool {
	s.current.MonthsInPhase++

	prob := math.Min(0.3, float64(s.current.MonthsInPhase)*0.02)
	if rng.Float64() >= prob {
		return false
	}

	next := nextPhase(s.current.Phase)
	s.current.Phase = next
	s.current.MonthsInPhase = 0

	switch next {
	case domain.PhaseContraction:
		s.current.ConsumerConfidence += contractionConfidenceDelta
		s.current.HousingIndex += contractionHousingDelta
	case domain.PhaseRecovery:
		s.current.ConsumerConfidence += recoveryConfidenceDelta
	case domain.PhaseExpansion:
		s.current.HousingIndex += expansionHousingDelta
		s.current.ConsumerConfidence += expansionConfidenceDelta
	}
	s.current.ConsumerConfidence = clamp(s.current.ConsumerConfidence, 0, 100)

	return true
}

func nextPhase(p domain.EconomicPhase) domain.EconomicPhase {
	switch p {
	case domain.PhaseExpansion:
		return domain.PhasePeak
	case domain.PhasePeak:
		return domain.PhaseContraction
	case domain.PhaseContraction:
		return domain.PhaseTrough
	case domain.PhaseTrough:
		return domain.PhaseRecovery
	default:
		return domain.PhaseExpansion
	}
}

// AppreciationRate draws a monthly property-value growth rate uniformly
// from the bounds for the current market condition, and records the draw
// into the rolling indicator window.
func (s *State) AppreciationRate(rng *rand.Rand) float64 {
	bounds, ok := appreciationBounds[string(s.current.Condition())]
	if !ok {
		bounds = [2]float64{0, 0.003}
	}
	rate := bounds[0] + rng.Float64()*(bounds[1]-bounds[0])
	s.indicators.Record(rate)
	return rate
}

// Impact is the set of optional indicator adjustments an event's impact
// bag applies back to the market state. Set fields replace the indicator
// outright; Delta fields adjust it. Nil fields are left untouched.
type Impact struct {
	IronOrePriceSet       *float64
	ConsumerConfidenceSet *float64
	ConsumerConfidenceAdd *float64
	VacancyRateAdd        *float64
	InterestRateAdd       *float64
	InflationAdd          *float64
	UnemploymentAdd       *float64
	HousingIndexAdd       *float64
	PopulationGrowthAdd   *float64
}

// ApplyImpact applies an event's impact bag to the market state,
// clamping vacancy_rate to [0.5, 8.0] and consumer_confidence to [0, 100]
// per the network's bounds on those indicators.
func (s *State) ApplyImpact(impact Impact) {
	m := &s.current
	if impact.IronOrePriceSet != nil {
		m.IronOrePrice = *impact.IronOrePriceSet
	}
	if impact.ConsumerConfidenceSet != nil {
		m.ConsumerConfidence = *impact.ConsumerConfidenceSet
	}
	if impact.ConsumerConfidenceAdd != nil {
		m.ConsumerConfidence += *impact.ConsumerConfidenceAdd
	}
	if impact.VacancyRateAdd != nil {
		m.VacancyRate += *impact.VacancyRateAdd
	}
	if impact.InterestRateAdd != nil {
		m.InterestRate += *impact.InterestRateAdd
	}
	if impact.InflationAdd != nil {
		m.Inflation += *impact.InflationAdd
	}
	if impact.UnemploymentAdd != nil {
		m.Unemployment += *impact.UnemploymentAdd
	}
	if impact.HousingIndexAdd != nil {
		m.HousingIndex += *impact.HousingIndexAdd
	}
	if impact.PopulationGrowthAdd != nil {
		m.PopulationGrowthRate += *impact.PopulationGrowthAdd
	}

	m.ConsumerConfidence = clamp(m.ConsumerConfidence, 0, 100)
	m.VacancyRate = clamp(m.VacancyRate, 0.5, 8.0)
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
