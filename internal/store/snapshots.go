package store

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/osf/network-sim/internal/domain"
	"github.com/shopspring/decimal"
)

const snapshotColumns = `network_month, participant_count, property_count, total_valuation, avg_token_price,
	avg_yield, actions_processed, tokens_traded, dividends_paid, rent_collected, state_blob, governor_summary,
	processing_duration_ms, created_at`

// CreateSnapshot inserts the immutable per-month record. Re-issuing the
// same network_month fails with domain.ErrAlreadyExists (exactly-once,
// per spec §4.1).
func (s *Store) CreateSnapshot(tx *sql.Tx, snap *domain.NetworkSnapshot) error {
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now()
	}
	_, err := tx.Exec(`INSERT INTO network_snapshots (`+snapshotColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.NetworkMonth, snap.ParticipantCount, snap.PropertyCount, snap.TotalValuation.String(),
		snap.AvgTokenPrice.String(), snap.AvgYield, snap.ActionsProcessed, snap.TokensTraded,
		snap.DividendsPaid.String(), snap.RentCollected.String(), snap.StateBlob, snap.GovernorSummary,
		snap.ProcessingDurationMS, snap.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return wrapf("CreateSnapshot", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}

func scanSnapshot(row interface{ Scan(...interface{}) error }) (*domain.NetworkSnapshot, error) {
	var snap domain.NetworkSnapshot
	var totalValuation, avgTokenPrice, dividendsPaid, rentCollected string
	var stateBlob []byte
	var summary sql.NullString

	err := row.Scan(&snap.NetworkMonth, &snap.ParticipantCount, &snap.PropertyCount, &totalValuation,
		&avgTokenPrice, &snap.AvgYield, &snap.ActionsProcessed, &snap.TokensTraded, &dividendsPaid,
		&rentCollected, &stateBlob, &summary, &snap.ProcessingDurationMS, &snap.CreatedAt)
	if err != nil {
		return nil, err
	}
	snap.TotalValuation, _ = decimal.NewFromString(totalValuation)
	snap.AvgTokenPrice, _ = decimal.NewFromString(avgTokenPrice)
	snap.DividendsPaid, _ = decimal.NewFromString(dividendsPaid)
	snap.RentCollected, _ = decimal.NewFromString(rentCollected)
	snap.StateBlob = stateBlob
	if summary.Valid {
		snap.GovernorSummary = summary.String
	}
	return &snap, nil
}

// GetSnapshot fetches the snapshot for a specific month.
func (s *Store) GetSnapshot(month int) (*domain.NetworkSnapshot, error) {
	row := s.Ledger.Conn().QueryRow(`SELECT `+snapshotColumns+` FROM network_snapshots WHERE network_month = ?`, month)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrStoreNotFound
	}
	if err != nil {
		return nil, wrapf("GetSnapshot", err)
	}
	return snap, nil
}

// GetLatestSnapshot returns the most recent committed snapshot, or
// domain.ErrStoreNotFound if none exist yet.
func (s *Store) GetLatestSnapshot() (*domain.NetworkSnapshot, error) {
	row := s.Ledger.Conn().QueryRow(`SELECT ` + snapshotColumns + ` FROM network_snapshots ORDER BY network_month DESC LIMIT 1`)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrStoreNotFound
	}
	if err != nil {
		return nil, wrapf("GetLatestSnapshot", err)
	}
	return snap, nil
}

// ListSnapshots returns the most recent `limit` snapshots (or all if
// limit<=0), ordered oldest to newest.
func (s *Store) ListSnapshots(limit int) ([]*domain.NetworkSnapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM network_snapshots ORDER BY network_month DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.Ledger.Conn().Query(query, args...)
	if err != nil {
		return nil, wrapf("ListSnapshots", err)
	}
	defer rows.Close()

	var out []*domain.NetworkSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, wrapf("ListSnapshots scan", err)
		}
		out = append(out, snap)
	}
	// Reverse to oldest-first since we queried DESC for the LIMIT to take
	// the most recent N.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, wrapf("ListSnapshots rows", rows.Err())
}
