// Package domain provides core domain models and types shared across the
// simulator: participants, goals, holdings, property states, pending
// actions, snapshots, events and the macro market state.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ParticipantKind distinguishes a human-controlled participant from an
// autonomous NPC.
type ParticipantKind string

const (
	ParticipantHuman ParticipantKind = "human"
	ParticipantNPC   ParticipantKind = "npc"
)

// ParticipantRole is the economic role a participant plays in the network.
type ParticipantRole string

const (
	RoleInvestor    ParticipantRole = "investor"
	RoleRenter      ParticipantRole = "renter"
	RoleHomeowner   ParticipantRole = "homeowner"
	RoleService     ParticipantRole = "service"
	RoleFoundation  ParticipantRole = "foundation"
	RoleMarketMaker ParticipantRole = "market_maker"
	RoleDeveloper   ParticipantRole = "developer"
)

// Personality holds the [0,1]-bounded traits that drive NPC decisions.
// A nil *Personality on a Participant means "no personality" — only valid
// for human participants.
type Personality struct {
	RiskTolerance float64 `json:"risk_tolerance"`
	ActivityLevel float64 `json:"activity_level"`
	Patience      float64 `json:"patience"`
	Contrarian    float64 `json:"contrarian"`
	Loyalty       float64 `json:"loyalty"`
}

// Participant is a human or NPC actor in the network.
type Participant struct {
	ID              string          `json:"id"`
	Kind            ParticipantKind `json:"kind"`
	Role            ParticipantRole `json:"role"`
	DisplayName     string          `json:"display_name"`
	ExternalUserID  string          `json:"external_user_id,omitempty"`
	Balance         decimal.Decimal `json:"balance"`
	TotalInvested   decimal.Decimal `json:"total_invested"`
	TotalDividends  decimal.Decimal `json:"total_dividends"`
	Personality     *Personality    `json:"personality,omitempty"`
	Goals           []Goal          `json:"goals,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// GoalType enumerates the kinds of goals a participant pursues.
type GoalType string

const (
	GoalAccumulate GoalType = "accumulate"
	GoalIncome     GoalType = "income"
	GoalDivest     GoalType = "divest"
	GoalStabilize  GoalType = "stabilize"
)

// Goal is a single objective tracked against a participant, evaluated each
// tick in priority order. Completed is monotonic: it never un-sets.
type Goal struct {
	ID            string          `json:"id"`
	ParticipantID string          `json:"participant_id"`
	Type          GoalType        `json:"type"`
	TargetValue   decimal.Decimal `json:"target_value"`
	Priority      int             `json:"priority"` // 1..10
	DeadlineMonth *int            `json:"deadline_month,omitempty"`
	Progress      float64         `json:"progress"`
	Completed     bool            `json:"completed"`
}

// Holding is the (participant, property) -> token position.
type Holding struct {
	ParticipantID     string          `json:"participant_id"`
	PropertyID        string          `json:"property_id"`
	TokenAmount       int64           `json:"token_amount"`
	AvgPurchasePrice  decimal.Decimal `json:"avg_purchase_price"`
	OwnershipPercent  float64         `json:"ownership_percent"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// PropertyStatus is the lifecycle stage of a tokenized property.
type PropertyStatus string

const (
	PropertyDraft     PropertyStatus = "draft"
	PropertyAvailable PropertyStatus = "available"
	PropertyTenanted  PropertyStatus = "tenanted"
	PropertySold      PropertyStatus = "sold"
)

// PropertyState is the full persisted state of one tokenized property.
type PropertyState struct {
	ID                  string          `json:"id"`
	Status              PropertyStatus  `json:"status"`
	TotalTokens         int64           `json:"total_tokens"`
	TokensAvailable     int64           `json:"tokens_available"`
	TokenPrice          decimal.Decimal `json:"token_price"`
	NetworkOwnership    float64         `json:"network_ownership"`
	TenantID            *string         `json:"tenant_id,omitempty"`
	WeeklyRent          decimal.Decimal `json:"weekly_rent"`
	LeaseStartMonth     *int            `json:"lease_start_month,omitempty"`
	LeaseEndMonth       *int            `json:"lease_end_month,omitempty"`
	CumulativeRent      decimal.Decimal `json:"cumulative_rent"`
	CumulativeDividends decimal.Decimal `json:"cumulative_dividends"`
	MaintenanceReserve  decimal.Decimal `json:"maintenance_reserve"`
	CurrentValuation    decimal.Decimal `json:"current_valuation"`
	LastValuationMonth  int             `json:"last_valuation_month"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// IsTenanted reports whether the property is currently leased to a tenant
// whose lease has not expired, per the spec's invariant:
// tenanted ⇔ tenant set ∧ lease_end_month ≥ current_month.
func (p *PropertyState) IsTenanted(currentMonth int) bool {
	return p.TenantID != nil && p.LeaseEndMonth != nil && *p.LeaseEndMonth >= currentMonth
}

// ActionType enumerates recognized participant intents.
type ActionType string

const (
	ActionBuyTokens      ActionType = "buy_tokens"
	ActionSellTokens     ActionType = "sell_tokens"
	ActionPayRent        ActionType = "pay_rent"
	ActionCollectRent    ActionType = "collect_rent"
	ActionVote           ActionType = "vote"
	ActionRequestService ActionType = "request_service"
	ActionCompleteService ActionType = "complete_service"
)

// ActionStatus is the lifecycle stage of a pending action.
type ActionStatus string

const (
	ActionStatusPending    ActionStatus = "pending"
	ActionStatusProcessing ActionStatus = "processing"
	ActionStatusCompleted  ActionStatus = "completed"
	ActionStatusFailed     ActionStatus = "failed"
)

// PendingAction is a queued participant intent awaiting tick processing.
type PendingAction struct {
	ID             string                 `json:"id"`
	ParticipantID  string                 `json:"participant_id"`
	ActionType     ActionType             `json:"action_type"`
	Payload        map[string]interface{} `json:"payload"`
	Priority       int                    `json:"priority"` // default 5, higher first
	Status         ActionStatus           `json:"status"`
	QueuedForMonth int                    `json:"queued_for_month"`
	QueuedAt       time.Time              `json:"queued_at"`
	Result         map[string]interface{} `json:"result,omitempty"`
	ErrorCode      string                 `json:"error_code,omitempty"`
	ProcessedAt    *time.Time             `json:"processed_at,omitempty"`
}

// ActionResult is what the Action Processor returns for every action it
// handles, whether invoked immediately or drained from the tick queue.
type ActionResult struct {
	Success    bool                   `json:"success"`
	ActionID   string                 `json:"action_id"`
	ActionType ActionType             `json:"action_type"`
	Message    string                 `json:"message"`
	Data       map[string]interface{} `json:"data,omitempty"`
	ErrorCode  ErrorCode              `json:"error_code,omitempty"`
}

// NetworkSnapshot is the immutable, per-month record of the committed
// network state. network_month is unique, dense, and monotonically
// increasing.
type NetworkSnapshot struct {
	NetworkMonth          int             `json:"network_month"`
	ParticipantCount      int             `json:"participant_count"`
	PropertyCount         int             `json:"property_count"`
	TotalValuation        decimal.Decimal `json:"total_valuation"`
	AvgTokenPrice         decimal.Decimal `json:"avg_token_price"`
	AvgYield              float64         `json:"avg_yield"`
	ActionsProcessed      int             `json:"actions_processed"`
	TokensTraded          int64           `json:"tokens_traded"`
	DividendsPaid         decimal.Decimal `json:"dividends_paid"`
	RentCollected         decimal.Decimal `json:"rent_collected"`
	StateBlob             []byte          `json:"-"`
	GovernorSummary       string          `json:"governor_summary,omitempty"`
	ProcessingDurationMS  int64           `json:"processing_duration_ms"`
	CreatedAt             time.Time       `json:"created_at"`
}

// EventCategory groups network events by domain family.
type EventCategory string

const (
	CategoryIronOre    EventCategory = "iron_ore"
	CategoryPopulation EventCategory = "population"
	CategoryMarketRate EventCategory = "market_rate"
	CategoryProperty   EventCategory = "property"
	CategoryEconomic   EventCategory = "economic"
	CategoryGovernance EventCategory = "governance"
	CategoryDividend   EventCategory = "dividend"
)

// EventSeverity ranks a network event's importance.
type EventSeverity string

const (
	SeverityInfo     EventSeverity = "info"
	SeverityNotable  EventSeverity = "notable"
	SeverityCritical EventSeverity = "critical"
)

// NetworkEvent is an append-only record of something that happened during
// a tick.
type NetworkEvent struct {
	ID            int64                  `json:"id"`
	Month         int                    `json:"month"`
	Category      EventCategory          `json:"category"`
	Severity      EventSeverity          `json:"severity"`
	Title         string                 `json:"title"`
	Description   string                 `json:"description"`
	PropertyID    *string                `json:"property_id,omitempty"`
	ParticipantID *string                `json:"participant_id,omitempty"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

// EconomicPhase is the macro-economic cycle position.
type EconomicPhase string

const (
	PhaseExpansion   EconomicPhase = "expansion"
	PhasePeak        EconomicPhase = "peak"
	PhaseContraction EconomicPhase = "contraction"
	PhaseTrough      EconomicPhase = "trough"
	PhaseRecovery    EconomicPhase = "recovery"
)

// MarketCondition is the derived label governing event probabilities and
// valuation drift.
type MarketCondition string

const (
	ConditionBoom      MarketCondition = "boom"
	ConditionStable    MarketCondition = "stable"
	ConditionStagnant  MarketCondition = "stagnant"
	ConditionDeclining MarketCondition = "declining"
	ConditionBust      MarketCondition = "bust"
)

// MarketState is the macro-economic state driving appreciation and event
// generation. Derived fields (MarketCondition) are pure functions of the
// raw fields and are recomputed, never stored independently of them.
type MarketState struct {
	Phase                 EconomicPhase `json:"phase"`
	MonthsInPhase         int           `json:"months_in_phase"`
	InterestRate          float64       `json:"interest_rate"`
	Inflation             float64       `json:"inflation"`
	Unemployment          float64       `json:"unemployment"`
	HousingIndex          float64       `json:"housing_index"`
	ConsumerConfidence    float64       `json:"consumer_confidence"` // 0..100
	IronOrePrice          float64       `json:"iron_ore_price"`
	PopulationGrowthRate  float64       `json:"population_growth_rate"`
	VacancyRate           float64       `json:"vacancy_rate"`
}

// Condition derives the market_condition label from iron ore price,
// population growth rate (annual %) and consumer confidence. PopulationGrowthRate
// is expressed as an annual percentage (2.3 means 2.3%), matching IronOrePrice's
// USD/tonne scale rather than a [0,1] fraction.
func (m MarketState) Condition() MarketCondition {
	switch {
	case m.IronOrePrice >= 150 && m.PopulationGrowthRate >= 2.0 && m.ConsumerConfidence >= 60:
		return ConditionBoom
	case m.IronOrePrice >= 100 && m.PopulationGrowthRate >= 1.5 && m.ConsumerConfidence >= 50:
		return ConditionStable
	case m.IronOrePrice >= 80 && m.ConsumerConfidence >= 40:
		return ConditionStagnant
	case m.IronOrePrice >= 60 || m.ConsumerConfidence >= 30:
		return ConditionDeclining
	default:
		return ConditionBust
	}
}
