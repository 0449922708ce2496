package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/osf/network-sim/internal/domain"
	"github.com/shopspring/decimal"
)

// UpsertHolding adds deltaTokens to a participant's holding in property,
// updating avg_purchase_price as the quantity-weighted mean on
// accumulation. Creates the row if it doesn't exist yet.
func (s *Store) UpsertHolding(tx *sql.Tx, participantID, propertyID string, deltaTokens int64, price decimal.Decimal) error {
	var tokenAmount int64
	var avgPrice string
	err := tx.QueryRow(`SELECT token_amount, avg_purchase_price FROM participant_holdings
		WHERE participant_id = ? AND property_id = ?`, participantID, propertyID).Scan(&tokenAmount, &avgPrice)

	now := time.Now()
	if errors.Is(err, sql.ErrNoRows) {
		_, err := tx.Exec(`INSERT INTO participant_holdings (participant_id, property_id, token_amount,
			avg_purchase_price, ownership_percent, updated_at) VALUES (?, ?, ?, ?, 0, ?)`,
			participantID, propertyID, deltaTokens, price.String(), now)
		return wrapf("UpsertHolding insert", err)
	}
	if err != nil {
		return wrapf("UpsertHolding select", err)
	}

	existingAvg, _ := decimal.NewFromString(avgPrice)
	newAmount := tokenAmount + deltaTokens
	// Weighted-average price across existing and newly purchased tokens.
	existingValue := existingAvg.Mul(decimal.NewFromInt(tokenAmount))
	addedValue := price.Mul(decimal.NewFromInt(deltaTokens))
	newAvg := existingValue.Add(addedValue).Div(decimal.NewFromInt(newAmount))

	_, err = tx.Exec(`UPDATE participant_holdings SET token_amount = ?, avg_purchase_price = ?, updated_at = ?
		WHERE participant_id = ? AND property_id = ?`, newAmount, newAvg.String(), now, participantID, propertyID)
	return wrapf("UpsertHolding update", err)
}

// RemoveHolding subtracts deltaTokens from a holding, deleting the row if
// it reaches zero (empty holdings are removed, per the invariant).
func (s *Store) RemoveHolding(tx *sql.Tx, participantID, propertyID string, deltaTokens int64) error {
	var tokenAmount int64
	if err := tx.QueryRow(`SELECT token_amount FROM participant_holdings WHERE participant_id = ? AND property_id = ?`,
		participantID, propertyID).Scan(&tokenAmount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrStoreNotFound
		}
		return wrapf("RemoveHolding select", err)
	}
	if tokenAmount < deltaTokens {
		return errInsufficientTokens
	}

	remaining := tokenAmount - deltaTokens
	if remaining == 0 {
		_, err := tx.Exec(`DELETE FROM participant_holdings WHERE participant_id = ? AND property_id = ?`,
			participantID, propertyID)
		return wrapf("RemoveHolding delete", err)
	}
	_, err := tx.Exec(`UPDATE participant_holdings SET token_amount = ?, updated_at = ? WHERE participant_id = ? AND property_id = ?`,
		remaining, time.Now(), participantID, propertyID)
	return wrapf("RemoveHolding update", err)
}

// errInsufficientTokens signals a sell/remove request exceeding the held
// amount.
var errInsufficientTokens = errors.New("insufficient tokens held")

// IsInsufficientTokens reports whether err came from a holding with fewer
// tokens than requested.
func IsInsufficientTokens(err error) bool {
	return errors.Is(err, errInsufficientTokens)
}

// GetHolding returns a single holding, or domain.ErrStoreNotFound.
func (s *Store) GetHolding(participantID, propertyID string) (*domain.Holding, error) {
	row := s.Core.Conn().QueryRow(`SELECT participant_id, property_id, token_amount, avg_purchase_price,
		ownership_percent, updated_at FROM participant_holdings WHERE participant_id = ? AND property_id = ?`,
		participantID, propertyID)
	h, err := scanHolding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrStoreNotFound
	}
	if err != nil {
		return nil, wrapf("GetHolding", err)
	}
	return h, nil
}

// ListHoldings returns every holding a participant currently has.
func (s *Store) ListHoldings(participantID string) ([]*domain.Holding, error) {
	rows, err := s.Core.Conn().Query(`SELECT participant_id, property_id, token_amount, avg_purchase_price,
		ownership_percent, updated_at FROM participant_holdings WHERE participant_id = ?`, participantID)
	if err != nil {
		return nil, wrapf("ListHoldings", err)
	}
	defer rows.Close()

	var out []*domain.Holding
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, wrapf("ListHoldings scan", err)
		}
		out = append(out, h)
	}
	return out, wrapf("ListHoldings rows", rows.Err())
}

// ListHoldingsByProperty returns every holding in property, used to
// distribute a dividend pool proportionally across current token holders.
func (s *Store) ListHoldingsByProperty(propertyID string) ([]*domain.Holding, error) {
	rows, err := s.Core.Conn().Query(`SELECT participant_id, property_id, token_amount, avg_purchase_price,
		ownership_percent, updated_at FROM participant_holdings WHERE property_id = ?`, propertyID)
	if err != nil {
		return nil, wrapf("ListHoldingsByProperty", err)
	}
	defer rows.Close()

	var out []*domain.Holding
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, wrapf("ListHoldingsByProperty scan", err)
		}
		out = append(out, h)
	}
	return out, wrapf("ListHoldingsByProperty rows", rows.Err())
}

func scanHolding(row interface{ Scan(...interface{}) error }) (*domain.Holding, error) {
	var h domain.Holding
	var avgPrice string
	if err := row.Scan(&h.ParticipantID, &h.PropertyID, &h.TokenAmount, &avgPrice, &h.OwnershipPercent, &h.UpdatedAt); err != nil {
		return nil, err
	}
	h.AvgPurchasePrice, _ = decimal.NewFromString(avgPrice)
	return &h, nil
}

// VotingPower sums a participant's token holdings across all properties,
// per the spec's definition used by the vote action.
func (s *Store) VotingPower(participantID string) (int64, error) {
	var total sql.NullInt64
	err := s.Core.Conn().QueryRow(`SELECT SUM(token_amount) FROM participant_holdings WHERE participant_id = ?`,
		participantID).Scan(&total)
	if err != nil {
		return 0, wrapf("VotingPower", err)
	}
	return total.Int64, nil
}
