// Package npc implements the NPC Engine (C4): a fixed catalogue of
// autonomous participants and the should_act / evaluate_market /
// decide_action decision pipeline that turns each NPC's personality and
// goals into action intents for the Action Processor.
package npc

import (
	"github.com/osf/network-sim/internal/domain"
	"github.com/shopspring/decimal"
)

// goalSeed is the starting goal attached to a profile on first seeding.
type goalSeed struct {
	Type          domain.GoalType
	TargetValue   decimal.Decimal
	Priority      int
	DeadlineMonth *int
}

// profileSeed is one fixed catalogue entry. DisplayName is the natural
// key EnsureSeeded uses to stay idempotent across restarts.
type profileSeed struct {
	DisplayName     string
	Role            domain.ParticipantRole
	Personality     domain.Personality
	StartingBalance decimal.Decimal
	Goals           []goalSeed
}

func month(n int) *int { return &n }

// catalogue is the network's fixed roster of autonomous participants. It
// spans every role the Action Processor recognizes and, within investor,
// the three personality archetypes evaluate_market's adjustments cover:
// conservative (low risk tolerance), aggressive (high risk tolerance) and
// contrarian (high contrarian trait).
var catalogue = []profileSeed{
	{
		DisplayName:     "Margaret Voss",
		Role:            domain.RoleInvestor,
		Personality:     domain.Personality{RiskTolerance: 0.2, ActivityLevel: 0.3, Patience: 0.8, Contrarian: 0.1, Loyalty: 0.7},
		StartingBalance: decimal.NewFromInt(50000),
		Goals: []goalSeed{
			{Type: domain.GoalIncome, TargetValue: decimal.NewFromInt(2000), Priority: 7, DeadlineMonth: month(24)},
		},
	},
	{
		DisplayName:     "TheoRadic",
		Role:            domain.RoleInvestor,
		Personality:     domain.Personality{RiskTolerance: 0.85, ActivityLevel: 0.7, Patience: 0.3, Contrarian: 0.2, Loyalty: 0.2},
		StartingBalance: decimal.NewFromInt(80000),
		Goals: []goalSeed{
			{Type: domain.GoalAccumulate, TargetValue: decimal.NewFromInt(10000), Priority: 9, DeadlineMonth: month(12)},
		},
	},
	{
		DisplayName:     "Priya Sandhu",
		Role:            domain.RoleInvestor,
		Personality:     domain.Personality{RiskTolerance: 0.5, ActivityLevel: 0.4, Patience: 0.5, Contrarian: 0.8, Loyalty: 0.4},
		StartingBalance: decimal.NewFromInt(60000),
		Goals: []goalSeed{
			{Type: domain.GoalAccumulate, TargetValue: decimal.NewFromInt(8000), Priority: 6, DeadlineMonth: month(30)},
		},
	},
	{
		DisplayName:     "Warwick Leasing Co-op",
		Role:            domain.RoleRenter,
		Personality:     domain.Personality{RiskTolerance: 0.3, ActivityLevel: 0.15, Patience: 0.6, Contrarian: 0.0, Loyalty: 0.9},
		StartingBalance: decimal.NewFromInt(5000),
	},
	{
		DisplayName:     "Outback Realty Services",
		Role:            domain.RoleService,
		Personality:     domain.Personality{RiskTolerance: 0.4, ActivityLevel: 0.5, Patience: 0.5, Contrarian: 0.0, Loyalty: 0.5},
		StartingBalance: decimal.NewFromInt(15000),
	},
	{
		DisplayName:     "Pilbara Market Makers",
		Role:            domain.RoleMarketMaker,
		Personality:     domain.Personality{RiskTolerance: 0.6, ActivityLevel: 0.9, Patience: 0.2, Contrarian: 0.0, Loyalty: 0.1},
		StartingBalance: decimal.NewFromInt(100000),
	},
	{
		DisplayName:     "Karratha Developments",
		Role:            domain.RoleDeveloper,
		Personality:     domain.Personality{RiskTolerance: 0.7, ActivityLevel: 0.4, Patience: 0.7, Contrarian: 0.0, Loyalty: 0.3},
		StartingBalance: decimal.NewFromInt(120000),
	},
}
