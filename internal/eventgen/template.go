// Package eventgen implements the Event Generator (C3): fires narrative
// network events from a fixed template catalogue, biased by the current
// market phase and the Market Model's probability modifiers, and feeds an
// impact bag back to the Market Model when an event fires.
package eventgen

import (
	"github.com/osf/network-sim/internal/domain"
	"github.com/osf/network-sim/internal/market"
)

// Template is one narrative event definition within a family. Render is a
// pure function composing the title/description from the current
// indicators; it takes no randomness and performs no I/O.
type Template struct {
	Key             string
	Category        domain.EventCategory
	Severity        domain.EventSeverity
	Render          func(m domain.MarketState) (title, description string)
	BaseProbability float64
	PreferredPhase  *domain.EconomicPhase
	ModifierKey     string // looks up market.Reference.EventProbabilityModifiers()
	Impact          func(m domain.MarketState) market.Impact
}

func phasePtr(p domain.EconomicPhase) *domain.EconomicPhase { return &p }

func floatPtr(f float64) *float64 { return &f }
