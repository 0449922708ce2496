package eventgen_test

import (
	"math/rand"
	"testing"

	"github.com/osf/network-sim/internal/domain"
	"github.com/osf/network-sim/internal/eventgen"
	"github.com/osf/network-sim/internal/market"
	"github.com/stretchr/testify/assert"
)

func TestGenerateRespectsFamilyCaps(t *testing.T) {
	gen := eventgen.NewGenerator(market.DefaultReference)
	state := market.NewState(domain.MarketState{Phase: domain.PhaseExpansion, ConsumerConfidence: 50, IronOrePrice: 120})
	rng := rand.New(rand.NewSource(7))

	ironOre, marketRate, property := 0, 0, 0
	for month := 1; month <= 36; month++ {
		events := gen.Generate(rng, month, state)
		ironOre, marketRate, property = 0, 0, 0
		for _, e := range events {
			switch e.Category {
			case domain.CategoryIronOre:
				ironOre++
			case domain.CategoryMarketRate:
				marketRate++
			case domain.CategoryProperty:
				property++
			}
		}
		assert.LessOrEqual(t, ironOre, 1)
		assert.LessOrEqual(t, marketRate, 1)
		assert.LessOrEqual(t, property, 2)
	}
}

func TestGovernanceOnlyEveryThirdMonth(t *testing.T) {
	gen := eventgen.NewGenerator(market.DefaultReference)
	state := market.NewState(domain.MarketState{Phase: domain.PhaseExpansion})
	rng := rand.New(rand.NewSource(3))

	for month := 1; month <= 2; month++ {
		for _, e := range gen.Generate(rng, month, state) {
			assert.NotEqual(t, domain.CategoryGovernance, e.Category)
		}
	}
}
