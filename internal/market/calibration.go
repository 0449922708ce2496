package market

// appreciationBounds gives the [min, max] monthly appreciation rate for
// each market condition; AppreciationRate samples uniformly within these.
var appreciationBounds = map[string][2]float64{
	"boom":      {0.008, 0.020},
	"stable":    {0.002, 0.005},
	"stagnant":  {-0.002, 0.002},
	"declining": {-0.010, -0.003},
	"bust":      {-0.025, -0.010},
}

// phaseOrder is the fixed economic-cycle progression.
var phaseOrder = []string{"expansion", "peak", "contraction", "trough", "recovery"}

// Reference holds static Western Australian housing-market calibration
// data, exposed read-only on the economy endpoint and consumed by NPC
// calibration and event probability modifiers. These are fixed reference
// constants, not simulated state, so they live outside domain.MarketState.
type Reference struct {
	DebtToIncomeRatio      float64
	MortgageCreditGrowth   float64
	InvestorLendingGrowth  float64
	CashRate               float64
	MedianHousePrice       float64
	MedianWeeklyRentHouse  float64
	RentalVacancyRate      float64
	GrossYieldHouse        float64
	MiningEmploymentGrowth float64
}

// DefaultReference mirrors the calibration figures the simulator was
// tuned against (RBA/APRA/ABS/REIWA indicators as of the design date).
var DefaultReference = Reference{
	DebtToIncomeRatio:      1.82,
	MortgageCreditGrowth:   0.047,
	InvestorLendingGrowth:  0.187,
	CashRate:               4.35,
	MedianHousePrice:       750000,
	MedianWeeklyRentHouse:  650,
	RentalVacancyRate:      0.008,
	GrossYieldHouse:        0.045,
	MiningEmploymentGrowth: 0.03,
}

// NPCCalibration is the fixed set of parameters that bias C4's decision
// algorithm, derived from Reference.
type NPCCalibration struct {
	TypicalLeverageRatio    float64
	MaxSafeLeverage         float64
	InvestorActivityScore   int
	InvestorLendingMomentum float64
	MinimumAcceptableYield  float64
	TargetYieldHouse        float64
	VacancyRate             float64
	RentGrowthExpectation   float64
}

// NPCCalibration derives decision-biasing parameters from r.
func (r Reference) NPCCalibration() NPCCalibration {
	activity := 60
	switch {
	case r.InvestorLendingGrowth > 0.15:
		activity = 80
	case r.InvestorLendingGrowth > 0.10:
		activity = 70
	}
	return NPCCalibration{
		TypicalLeverageRatio:    r.DebtToIncomeRatio,
		MaxSafeLeverage:         2.0,
		InvestorActivityScore:   activity,
		InvestorLendingMomentum: r.InvestorLendingGrowth,
		MinimumAcceptableYield:  0.035,
		TargetYieldHouse:        r.GrossYieldHouse,
		VacancyRate:             r.RentalVacancyRate,
		RentGrowthExpectation:   0.08,
	}
}

// EventProbabilityModifiers returns multipliers event families apply to
// their base firing probability, keyed by modifier name.
func (r Reference) EventProbabilityModifiers() map[string]float64 {
	modifiers := make(map[string]float64, 6)

	switch {
	case r.RentalVacancyRate < 0.01:
		modifiers["rent_increase"] = 1.8
		modifiers["tenant_competition"] = 2.0
	case r.RentalVacancyRate < 0.02:
		modifiers["rent_increase"] = 1.3
		modifiers["tenant_competition"] = 1.5
	default:
		modifiers["rent_increase"] = 1.0
		modifiers["tenant_competition"] = 1.0
	}

	modifiers["investor_competition"] = 1.0 + r.InvestorLendingGrowth
	modifiers["quick_sale"] = 1.0 + r.InvestorLendingGrowth*0.5

	if r.CashRate > 4.0 {
		modifiers["rate_hold"] = 1.5
		modifiers["rate_cut"] = 0.5
		modifiers["rate_hike"] = 0.8
	} else {
		modifiers["rate_hold"] = 1.0
		modifiers["rate_cut"] = 1.0
		modifiers["rate_hike"] = 1.0
	}

	if r.MiningEmploymentGrowth > 0.02 {
		modifiers["economic_positive"] = 1.5
		modifiers["wa_outperformance"] = 2.0
	}

	return modifiers
}
