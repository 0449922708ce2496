package testing

import (
	"time"

	"github.com/osf/network-sim/internal/domain"
	"github.com/shopspring/decimal"
)

// NewParticipantFixture returns a human investor participant with a
// starting balance, suitable for seeding a test core database.
func NewParticipantFixture(id string, balance float64) *domain.Participant {
	return &domain.Participant{
		ID:          id,
		Kind:        domain.ParticipantHuman,
		Role:        domain.RoleInvestor,
		DisplayName: "Test Investor " + id,
		Balance:     decimal.NewFromFloat(balance),
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

// NewNPCFixture returns an NPC participant with a personality vector.
func NewNPCFixture(id string, role domain.ParticipantRole) *domain.Participant {
	return &domain.Participant{
		ID:          id,
		Kind:        domain.ParticipantNPC,
		Role:        role,
		DisplayName: "NPC " + id,
		Balance:     decimal.NewFromFloat(50000),
		Personality: &domain.Personality{
			RiskTolerance: 0.5,
			ActivityLevel: 0.4,
			Patience:      0.5,
			Contrarian:    0.2,
			Loyalty:       0.5,
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

// NewPropertyFixture returns an available (un-tenanted) tokenized property.
func NewPropertyFixture(id string, totalTokens int64, price float64) *domain.PropertyState {
	return &domain.PropertyState{
		ID:               id,
		Status:           domain.PropertyAvailable,
		TotalTokens:      totalTokens,
		TokensAvailable:  totalTokens,
		TokenPrice:       decimal.NewFromFloat(price),
		NetworkOwnership: 0,
		WeeklyRent:       decimal.Zero,
		CurrentValuation: decimal.NewFromFloat(price).Mul(decimal.NewFromInt(totalTokens)),
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
}

// NewTenantedPropertyFixture returns a property with an active tenant and
// lease, matching the dividend scenario in the spec (weekly_rent=650).
func NewTenantedPropertyFixture(id, tenantID string, weeklyRent float64, currentMonth int) *domain.PropertyState {
	p := NewPropertyFixture(id, 10000, 1.00)
	p.Status = domain.PropertyTenanted
	p.TenantID = &tenantID
	start := currentMonth
	end := currentMonth + 12
	p.LeaseStartMonth = &start
	p.LeaseEndMonth = &end
	p.WeeklyRent = decimal.NewFromFloat(weeklyRent)
	return p
}
