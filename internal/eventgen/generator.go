package eventgen

import (
	"math/rand"

	"github.com/osf/network-sim/internal/domain"
	"github.com/osf/network-sim/internal/market"
)

// familyCap bounds how many events a family may fire in one tick. Zero
// means unbounded (still subject to each template's own probability).
var familyCap = map[domain.EventCategory]int{
	domain.CategoryIronOre:    1,
	domain.CategoryMarketRate: 1,
	domain.CategoryProperty:   2,
}

const (
	phaseBiasPreferred  = 1.5
	phaseBiasOffPhase   = 0.5
	phaseBiasIndifferent = 1.0
)

// Generator fires templates against the current market state.
type Generator struct {
	reference market.Reference
}

// NewGenerator constructs a Generator calibrated against ref.
func NewGenerator(ref market.Reference) *Generator {
	return &Generator{reference: ref}
}

// Generate iterates every family in fixed order and fires templates whose
// draw beats base_probability * phase_bias * market_modifier, subject to
// each family's firing cap and the governance family's month%3==0 gate.
// Each fired template's impact bag is applied to state immediately so
// later templates in the same tick see the updated market. Returns the
// events in firing order (NetworkEvent.CreatedAt is left zero; callers
// stamp strictly increasing timestamps at persist time).
func (g *Generator) Generate(rng *rand.Rand, month int, state *market.State) []*domain.NetworkEvent {
	modifiers := g.reference.EventProbabilityModifiers()
	var events []*domain.NetworkEvent

	for _, family := range families() {
		if len(family) == 0 {
			continue
		}
		if family[0].Category == domain.CategoryGovernance && month%3 != 0 {
			continue
		}

		fired := 0
		cap := familyCap[family[0].Category]
		for _, tmpl := range family {
			if cap > 0 && fired >= cap {
				break
			}
			current := state.Current()
			prob := tmpl.BaseProbability * phaseBias(tmpl, current.Phase) * marketModifier(tmpl, modifiers)
			if rng.Float64() >= prob {
				continue
			}

			title, description := tmpl.Render(current)
			if tmpl.Impact != nil {
				state.ApplyImpact(tmpl.Impact(current))
			}

			events = append(events, &domain.NetworkEvent{
				Month:       month,
				Category:    tmpl.Category,
				Severity:    tmpl.Severity,
				Title:       title,
				Description: description,
			})
			fired++
		}
	}

	return events
}

func phaseBias(t Template, phase domain.EconomicPhase) float64 {
	if t.PreferredPhase == nil {
		return phaseBiasIndifferent
	}
	if *t.PreferredPhase == phase {
		return phaseBiasPreferred
	}
	return phaseBiasOffPhase
}

func marketModifier(t Template, modifiers map[string]float64) float64 {
	if t.ModifierKey == "" {
		return 1.0
	}
	if m, ok := modifiers[t.ModifierKey]; ok {
		return m
	}
	return 1.0
}
