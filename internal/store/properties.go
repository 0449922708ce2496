package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/osf/network-sim/internal/domain"
	"github.com/shopspring/decimal"
)

const propertyColumns = `id, status, total_tokens, tokens_available, token_price, network_ownership,
	tenant_id, weekly_rent, lease_start_month, lease_end_month, cumulative_rent, cumulative_dividends,
	maintenance_reserve, current_valuation, last_valuation_month, created_at, updated_at`

func scanProperty(row interface{ Scan(...interface{}) error }) (*domain.PropertyState, error) {
	var p domain.PropertyState
	var status, price, weeklyRent, cumRent, cumDiv, maintReserve, valuation string
	var tenantID sql.NullString
	var leaseStart, leaseEnd sql.NullInt64

	err := row.Scan(&p.ID, &status, &p.TotalTokens, &p.TokensAvailable, &price, &p.NetworkOwnership,
		&tenantID, &weeklyRent, &leaseStart, &leaseEnd, &cumRent, &cumDiv, &maintReserve, &valuation,
		&p.LastValuationMonth, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = domain.PropertyStatus(status)
	p.TokenPrice, _ = decimal.NewFromString(price)
	p.WeeklyRent, _ = decimal.NewFromString(weeklyRent)
	p.CumulativeRent, _ = decimal.NewFromString(cumRent)
	p.CumulativeDividends, _ = decimal.NewFromString(cumDiv)
	p.MaintenanceReserve, _ = decimal.NewFromString(maintReserve)
	p.CurrentValuation, _ = decimal.NewFromString(valuation)
	if tenantID.Valid {
		p.TenantID = &tenantID.String
	}
	if leaseStart.Valid {
		v := int(leaseStart.Int64)
		p.LeaseStartMonth = &v
	}
	if leaseEnd.Valid {
		v := int(leaseEnd.Int64)
		p.LeaseEndMonth = &v
	}
	return &p, nil
}

// GetProperty fetches a property by id.
func (s *Store) GetProperty(id string) (*domain.PropertyState, error) {
	row := s.Core.Conn().QueryRow(`SELECT `+propertyColumns+` FROM property_states WHERE id = ?`, id)
	p, err := scanProperty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrStoreNotFound
	}
	if err != nil {
		return nil, wrapf("GetProperty", err)
	}
	return p, nil
}

// GetPropertyForUpdate fetches a property within a transaction, so callers
// composing a buy/sell with other writes see a consistent row.
func (s *Store) GetPropertyForUpdate(tx *sql.Tx, id string) (*domain.PropertyState, error) {
	row := tx.QueryRow(`SELECT `+propertyColumns+` FROM property_states WHERE id = ?`, id)
	p, err := scanProperty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrStoreNotFound
	}
	if err != nil {
		return nil, wrapf("GetPropertyForUpdate", err)
	}
	return p, nil
}

// ListProperties returns every property, optionally filtered by status.
func (s *Store) ListProperties(status domain.PropertyStatus) ([]*domain.PropertyState, error) {
	query := `SELECT ` + propertyColumns + ` FROM property_states`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.Core.Conn().Query(query, args...)
	if err != nil {
		return nil, wrapf("ListProperties", err)
	}
	defer rows.Close()

	var out []*domain.PropertyState
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, wrapf("ListProperties scan", err)
		}
		out = append(out, p)
	}
	return out, wrapf("ListProperties rows", rows.Err())
}

// CreateOrUpdatePropertyState upserts the full property row.
func (s *Store) CreateOrUpdatePropertyState(tx *sql.Tx, p *domain.PropertyState) error {
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := tx.Exec(`INSERT INTO property_states (id, status, total_tokens, tokens_available, token_price,
			network_ownership, tenant_id, weekly_rent, lease_start_month, lease_end_month, cumulative_rent,
			cumulative_dividends, maintenance_reserve, current_valuation, last_valuation_month, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status=excluded.status, total_tokens=excluded.total_tokens,
			tokens_available=excluded.tokens_available, token_price=excluded.token_price,
			network_ownership=excluded.network_ownership, tenant_id=excluded.tenant_id,
			weekly_rent=excluded.weekly_rent, lease_start_month=excluded.lease_start_month,
			lease_end_month=excluded.lease_end_month, cumulative_rent=excluded.cumulative_rent,
			cumulative_dividends=excluded.cumulative_dividends, maintenance_reserve=excluded.maintenance_reserve,
			current_valuation=excluded.current_valuation, last_valuation_month=excluded.last_valuation_month,
			updated_at=excluded.updated_at`,
		p.ID, string(p.Status), p.TotalTokens, p.TokensAvailable, p.TokenPrice.String(), p.NetworkOwnership,
		p.TenantID, p.WeeklyRent.String(), p.LeaseStartMonth, p.LeaseEndMonth, p.CumulativeRent.String(),
		p.CumulativeDividends.String(), p.MaintenanceReserve.String(), p.CurrentValuation.String(),
		p.LastValuationMonth, p.CreatedAt, p.UpdatedAt)
	return wrapf("CreateOrUpdatePropertyState", err)
}

// UpdateTokens adjusts tokens_available by -sold (sold>0 on buy, sold<0 on
// sell) and recomputes network_ownership; optionally also updates
// token_price.
func (s *Store) UpdateTokens(tx *sql.Tx, propertyID string, sold int64, newPrice *decimal.Decimal) error {
	p, err := s.GetPropertyForUpdate(tx, propertyID)
	if err != nil {
		return err
	}
	tokensAvailable := p.TokensAvailable - sold
	if tokensAvailable < 0 || tokensAvailable > p.TotalTokens {
		return wrapf("UpdateTokens", errors.New("tokens_available out of bounds"))
	}
	ownership := float64(p.TotalTokens-tokensAvailable) / float64(p.TotalTokens)

	price := p.TokenPrice
	if newPrice != nil {
		price = *newPrice
	}

	_, err = tx.Exec(`UPDATE property_states SET tokens_available = ?, network_ownership = ?, token_price = ?,
		updated_at = ? WHERE id = ?`, tokensAvailable, ownership, price.String(), time.Now(), propertyID)
	return wrapf("UpdateTokens", err)
}

// SetTenant assigns a tenant and lease window to a property, flipping its
// status to tenanted.
func (s *Store) SetTenant(tx *sql.Tx, propertyID, tenantID string, startMonth, endMonth int) error {
	_, err := tx.Exec(`UPDATE property_states SET status = ?, tenant_id = ?, lease_start_month = ?,
		lease_end_month = ?, updated_at = ? WHERE id = ?`,
		string(domain.PropertyTenanted), tenantID, startMonth, endMonth, time.Now(), propertyID)
	return wrapf("SetTenant", err)
}

// ClearTenant removes the current tenant, reverting status to available.
func (s *Store) ClearTenant(tx *sql.Tx, propertyID string) error {
	_, err := tx.Exec(`UPDATE property_states SET status = ?, tenant_id = NULL, lease_start_month = NULL,
		lease_end_month = NULL, updated_at = ? WHERE id = ?`, string(domain.PropertyAvailable), time.Now(), propertyID)
	return wrapf("ClearTenant", err)
}

// RecordRent accumulates rent collected on a property.
func (s *Store) RecordRent(tx *sql.Tx, propertyID string, amount decimal.Decimal) error {
	p, err := s.GetPropertyForUpdate(tx, propertyID)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`UPDATE property_states SET cumulative_rent = ?, updated_at = ? WHERE id = ?`,
		p.CumulativeRent.Add(amount).String(), time.Now(), propertyID)
	return wrapf("RecordRent", err)
}

// RecordDividend accumulates dividends distributed from a property.
func (s *Store) RecordDividend(tx *sql.Tx, propertyID string, amount decimal.Decimal) error {
	p, err := s.GetPropertyForUpdate(tx, propertyID)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`UPDATE property_states SET cumulative_dividends = ?, updated_at = ? WHERE id = ?`,
		p.CumulativeDividends.Add(amount).String(), time.Now(), propertyID)
	return wrapf("RecordDividend", err)
}

// UpdateValuation sets a property's current_valuation and
// last_valuation_month, used once per tick by the appreciation pass.
func (s *Store) UpdateValuation(tx *sql.Tx, propertyID string, valuation decimal.Decimal, month int) error {
	_, err := tx.Exec(`UPDATE property_states SET current_valuation = ?, last_valuation_month = ?, updated_at = ?
		WHERE id = ?`, valuation.String(), month, time.Now(), propertyID)
	return wrapf("UpdateValuation", err)
}
