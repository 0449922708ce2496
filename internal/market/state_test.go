package market_test

import (
	"math/rand"
	"testing"

	"github.com/osf/network-sim/internal/domain"
	"github.com/osf/network-sim/internal/market"
	"github.com/stretchr/testify/assert"
)

func TestAppreciationRateWithinConditionBounds(t *testing.T) {
	s := market.NewState(domain.MarketState{
		Phase:                domain.PhaseExpansion,
		ConsumerConfidence:   80,
		IronOrePrice:         160,
		PopulationGrowthRate: 2.5,
	})
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 50; i++ {
		rate := s.AppreciationRate(rng)
		assert.GreaterOrEqual(t, rate, 0.008)
		assert.LessOrEqual(t, rate, 0.020)
	}
	assert.Equal(t, 24, s.Indicators().Count())
}

func TestUpdateCycleEventuallyTransitionsPhase(t *testing.T) {
	s := market.NewState(domain.MarketState{Phase: domain.PhaseExpansion})
	rng := rand.New(rand.NewSource(42))

	transitioned := false
	for i := 0; i < 60; i++ {
		if s.UpdateCycle(rng) {
			transitioned = true
			break
		}
	}
	assert.True(t, transitioned, "expected a phase transition within 60 months at increasing probability")
	assert.Equal(t, domain.PhasePeak, s.Current().Phase)
	assert.Equal(t, 0, s.Current().MonthsInPhase)
}

func TestApplyImpactClampsVacancyAndConfidence(t *testing.T) {
	s := market.NewState(domain.MarketState{ConsumerConfidence: 95, VacancyRate: 1.0})
	add := 20.0
	s.ApplyImpact(market.Impact{ConsumerConfidenceAdd: &add, VacancyRateAdd: &add})

	assert.Equal(t, 100.0, s.Current().ConsumerConfidence)
	assert.Equal(t, 8.0, s.Current().VacancyRate)
}

func TestConditionDerivation(t *testing.T) {
	boom := domain.MarketState{IronOrePrice: 160, PopulationGrowthRate: 2.1, ConsumerConfidence: 65}
	assert.Equal(t, domain.ConditionBoom, boom.Condition())

	bust := domain.MarketState{IronOrePrice: 40, PopulationGrowthRate: 0, ConsumerConfidence: 10}
	assert.Equal(t, domain.ConditionBust, bust.Condition())
}
