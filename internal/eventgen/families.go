package eventgen

import (
	"fmt"

	"github.com/osf/network-sim/internal/domain"
	"github.com/osf/network-sim/internal/market"
)

var ironOreTemplates = []Template{
	{
		Key:             "iron_ore_surge",
		Category:        domain.CategoryIronOre,
		Severity:        domain.SeverityNotable,
		BaseProbability: 0.12,
		PreferredPhase:  phasePtr(domain.PhaseExpansion),
		ModifierKey:     "economic_positive",
		Render: func(m domain.MarketState) (string, string) {
			price := m.IronOrePrice * 1.08
			return "Iron ore prices surge", fmt.Sprintf(
				"Benchmark iron ore climbed to $%.0f/tonne, lifting WA mining revenue expectations.", price)
		},
		Impact: func(m domain.MarketState) market.Impact {
			price := m.IronOrePrice * 1.08
			return market.Impact{IronOrePriceSet: &price, ConsumerConfidenceAdd: floatPtr(2)}
		},
	},
	{
		Key:             "iron_ore_slump",
		Category:        domain.CategoryIronOre,
		Severity:        domain.SeverityNotable,
		BaseProbability: 0.10,
		PreferredPhase:  phasePtr(domain.PhaseContraction),
		Render: func(m domain.MarketState) (string, string) {
			price := m.IronOrePrice * 0.92
			return "Iron ore prices slump", fmt.Sprintf(
				"Benchmark iron ore fell to $%.0f/tonne amid softening Chinese demand.", price)
		},
		Impact: func(m domain.MarketState) market.Impact {
			price := m.IronOrePrice * 0.92
			return market.Impact{IronOrePriceSet: &price, ConsumerConfidenceAdd: floatPtr(-2)}
		},
	},
}

var populationTemplates = []Template{
	{
		Key:             "population_inflow",
		Category:        domain.CategoryPopulation,
		Severity:        domain.SeverityInfo,
		BaseProbability: 0.10,
		PreferredPhase:  phasePtr(domain.PhaseExpansion),
		Render: func(m domain.MarketState) (string, string) {
			return "Net migration lifts WA population", fmt.Sprintf(
				"Population growth ticked up to %.1f%% annually, adding pressure to housing demand.",
				m.PopulationGrowthRate+0.2)
		},
		Impact: func(m domain.MarketState) market.Impact {
			return market.Impact{PopulationGrowthAdd: floatPtr(0.2)}
		},
	},
	{
		Key:             "population_outflow",
		Category:        domain.CategoryPopulation,
		Severity:        domain.SeverityInfo,
		BaseProbability: 0.06,
		PreferredPhase:  phasePtr(domain.PhaseContraction),
		Render: func(m domain.MarketState) (string, string) {
			return "Interstate migration softens", fmt.Sprintf(
				"Population growth eased to %.1f%% annually as interstate outflow picked up.",
				m.PopulationGrowthRate-0.2)
		},
		Impact: func(m domain.MarketState) market.Impact {
			return market.Impact{PopulationGrowthAdd: floatPtr(-0.2)}
		},
	},
}

var marketRateTemplates = []Template{
	{
		Key:             "rate_hike",
		Category:        domain.CategoryMarketRate,
		Severity:        domain.SeverityNotable,
		BaseProbability: 0.08,
		PreferredPhase:  phasePtr(domain.PhasePeak),
		ModifierKey:     "rate_hike",
		Render: func(m domain.MarketState) (string, string) {
			return "Reserve Bank lifts cash rate", fmt.Sprintf(
				"The cash rate increased by 0.25%%, pushing borrowing costs higher across the network.")
		},
		Impact: func(m domain.MarketState) market.Impact {
			return market.Impact{InterestRateAdd: floatPtr(0.25), ConsumerConfidenceAdd: floatPtr(-3)}
		},
	},
	{
		Key:             "rate_cut",
		Category:        domain.CategoryMarketRate,
		Severity:        domain.SeverityInfo,
		BaseProbability: 0.07,
		PreferredPhase:  phasePtr(domain.PhaseTrough),
		ModifierKey:     "rate_cut",
		Render: func(m domain.MarketState) (string, string) {
			return "Reserve Bank cuts cash rate", fmt.Sprintf(
				"The cash rate was trimmed by 0.25%%, easing pressure on mortgage holders.")
		},
		Impact: func(m domain.MarketState) market.Impact {
			return market.Impact{InterestRateAdd: floatPtr(-0.25), ConsumerConfidenceAdd: floatPtr(3)}
		},
	},
	{
		Key:             "rate_hold",
		Category:        domain.CategoryMarketRate,
		Severity:        domain.SeverityInfo,
		BaseProbability: 0.20,
		ModifierKey:     "rate_hold",
		Render: func(m domain.MarketState) (string, string) {
			return "Reserve Bank holds cash rate", "The cash rate was left unchanged this month."
		},
		Impact: func(m domain.MarketState) market.Impact { return market.Impact{} },
	},
}

var propertyTemplates = []Template{
	{
		Key:             "rent_increase",
		Category:        domain.CategoryProperty,
		Severity:        domain.SeverityNotable,
		BaseProbability: 0.15,
		ModifierKey:     "rent_increase",
		Render: func(m domain.MarketState) (string, string) {
			return "Rents rise across the network", fmt.Sprintf(
				"Tight rental vacancy (%.1f%%) is pushing weekly rents higher across tenanted properties.",
				m.VacancyRate)
		},
		Impact: func(m domain.MarketState) market.Impact { return market.Impact{} },
	},
	{
		Key:             "tenant_competition",
		Category:        domain.CategoryProperty,
		Severity:        domain.SeverityInfo,
		BaseProbability: 0.12,
		ModifierKey:     "tenant_competition",
		Render: func(m domain.MarketState) (string, string) {
			return "Applications surge for vacant listings", "Prospective tenants are competing for the network's limited vacant listings."
		},
		Impact: func(m domain.MarketState) market.Impact { return market.Impact{} },
	},
	{
		Key:             "maintenance_event",
		Category:        domain.CategoryProperty,
		Severity:        domain.SeverityNotable,
		BaseProbability: 0.08,
		Render: func(m domain.MarketState) (string, string) {
			return "Unscheduled maintenance reported", "A property in the network requires unscheduled maintenance work."
		},
		Impact: func(m domain.MarketState) market.Impact { return market.Impact{} },
	},
}

var economicTemplates = []Template{
	{
		Key:             "economic_expansion",
		Category:        domain.CategoryEconomic,
		Severity:        domain.SeverityNotable,
		BaseProbability: 0.10,
		PreferredPhase:  phasePtr(domain.PhaseExpansion),
		ModifierKey:     "economic_positive",
		Render: func(m domain.MarketState) (string, string) {
			return "Economic indicators strengthen", fmt.Sprintf(
				"Consumer confidence climbed to %.0f/100 as the expansion continues.", m.ConsumerConfidence)
		},
		Impact: func(m domain.MarketState) market.Impact {
			return market.Impact{ConsumerConfidenceAdd: floatPtr(3)}
		},
	},
	{
		Key:             "economic_slowdown",
		Category:        domain.CategoryEconomic,
		Severity:        domain.SeverityNotable,
		BaseProbability: 0.08,
		PreferredPhase:  phasePtr(domain.PhaseContraction),
		Render: func(m domain.MarketState) (string, string) {
			return "Economic indicators soften", fmt.Sprintf(
				"Consumer confidence eased to %.0f/100 amid a broader slowdown.", m.ConsumerConfidence)
		},
		Impact: func(m domain.MarketState) market.Impact {
			return market.Impact{ConsumerConfidenceAdd: floatPtr(-3)}
		},
	},
}

var governanceTemplates = []Template{
	{
		Key:             "governance_proposal",
		Category:        domain.CategoryGovernance,
		Severity:        domain.SeverityInfo,
		BaseProbability: 0.35,
		Render: func(m domain.MarketState) (string, string) {
			return "New governance proposal opened", "The network has opened a new proposal for token-holder vote."
		},
		Impact: func(m domain.MarketState) market.Impact { return market.Impact{} },
	},
}

// families returns every family in the fixed iteration order the firing
// caps apply against.
func families() [][]Template {
	return [][]Template{
		ironOreTemplates,
		populationTemplates,
		marketRateTemplates,
		propertyTemplates,
		economicTemplates,
		governanceTemplates,
	}
}
