package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/osf/network-sim/internal/domain"
	"github.com/shopspring/decimal"
)

// BalanceOp names the arithmetic applied by AdjustBalance.
type BalanceOp string

const (
	BalanceAdd BalanceOp = "add"
	BalanceSub BalanceOp = "sub"
	BalanceSet BalanceOp = "set"
)

// CreateParticipant inserts a new participant (and its personality, if
// set) within tx.
func (s *Store) CreateParticipant(tx *sql.Tx, p *domain.Participant) error {
	var rt, al, pt, ct, ly sql.NullFloat64
	if p.Personality != nil {
		rt = sql.NullFloat64{Float64: p.Personality.RiskTolerance, Valid: true}
		al = sql.NullFloat64{Float64: p.Personality.ActivityLevel, Valid: true}
		pt = sql.NullFloat64{Float64: p.Personality.Patience, Valid: true}
		ct = sql.NullFloat64{Float64: p.Personality.Contrarian, Valid: true}
		ly = sql.NullFloat64{Float64: p.Personality.Loyalty, Valid: true}
	}
	var extUser sql.NullString
	if p.ExternalUserID != "" {
		extUser = sql.NullString{String: p.ExternalUserID, Valid: true}
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := tx.Exec(`
		INSERT INTO participants (id, kind, role, display_name, external_user_id, balance,
			total_invested, total_dividends, risk_tolerance, activity_level, patience, contrarian, loyalty,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, string(p.Kind), string(p.Role), p.DisplayName, extUser,
		p.Balance.String(), p.TotalInvested.String(), p.TotalDividends.String(),
		rt, al, pt, ct, ly, p.CreatedAt, p.UpdatedAt)
	return wrapf("CreateParticipant", err)
}

func scanParticipant(row interface{ Scan(...interface{}) error }) (*domain.Participant, error) {
	var p domain.Participant
	var kind, role string
	var extUser sql.NullString
	var balance, invested, dividends string
	var rt, al, pt, ct, ly sql.NullFloat64

	err := row.Scan(&p.ID, &kind, &role, &p.DisplayName, &extUser, &balance, &invested, &dividends,
		&rt, &al, &pt, &ct, &ly, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Kind = domain.ParticipantKind(kind)
	p.Role = domain.ParticipantRole(role)
	if extUser.Valid {
		p.ExternalUserID = extUser.String
	}
	p.Balance, _ = decimal.NewFromString(balance)
	p.TotalInvested, _ = decimal.NewFromString(invested)
	p.TotalDividends, _ = decimal.NewFromString(dividends)
	if rt.Valid {
		p.Personality = &domain.Personality{
			RiskTolerance: rt.Float64, ActivityLevel: al.Float64,
			Patience: pt.Float64, Contrarian: ct.Float64, Loyalty: ly.Float64,
		}
	}
	return &p, nil
}

const participantColumns = `id, kind, role, display_name, external_user_id, balance, total_invested,
	total_dividends, risk_tolerance, activity_level, patience, contrarian, loyalty, created_at, updated_at`

// GetParticipant fetches a participant by id, or domain.ErrStoreNotFound.
func (s *Store) GetParticipant(id string) (*domain.Participant, error) {
	row := s.Core.Conn().QueryRow(`SELECT `+participantColumns+` FROM participants WHERE id = ?`, id)
	p, err := scanParticipant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrStoreNotFound
	}
	if err != nil {
		return nil, wrapf("GetParticipant", err)
	}
	return p, nil
}

// GetParticipantByExternalUser fetches the single human participant linked
// to an external user id.
func (s *Store) GetParticipantByExternalUser(externalUserID string) (*domain.Participant, error) {
	row := s.Core.Conn().QueryRow(`SELECT `+participantColumns+` FROM participants WHERE external_user_id = ?`, externalUserID)
	p, err := scanParticipant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrStoreNotFound
	}
	if err != nil {
		return nil, wrapf("GetParticipantByExternalUser", err)
	}
	return p, nil
}

// GetParticipantByDisplayName fetches a participant by its exact display
// name, used by the NPC engine to seed its fixed catalogue idempotently.
func (s *Store) GetParticipantByDisplayName(displayName string) (*domain.Participant, error) {
	row := s.Core.Conn().QueryRow(`SELECT `+participantColumns+` FROM participants WHERE display_name = ?`, displayName)
	p, err := scanParticipant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrStoreNotFound
	}
	if err != nil {
		return nil, wrapf("GetParticipantByDisplayName", err)
	}
	return p, nil
}

// ListParticipants lists participants, optionally filtered by kind and/or
// role (empty string means "any").
func (s *Store) ListParticipants(kind domain.ParticipantKind, role domain.ParticipantRole) ([]*domain.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE 1=1`
	var args []interface{}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(kind))
	}
	if role != "" {
		query += ` AND role = ?`
		args = append(args, string(role))
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.Core.Conn().Query(query, args...)
	if err != nil {
		return nil, wrapf("ListParticipants", err)
	}
	defer rows.Close()

	var out []*domain.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, wrapf("ListParticipants scan", err)
		}
		out = append(out, p)
	}
	return out, wrapf("ListParticipants rows", rows.Err())
}

// AdjustBalance applies delta to a participant's balance under op, rejecting
// any transition that would leave balance negative (P1). Returns
// domain.ErrInsufficientBalance-flavored error via the sentinel code.
func (s *Store) AdjustBalance(tx *sql.Tx, id string, delta decimal.Decimal, op BalanceOp) error {
	var current string
	if err := tx.QueryRow(`SELECT balance FROM participants WHERE id = ?`, id).Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrStoreNotFound
		}
		return wrapf("AdjustBalance select", err)
	}
	bal, _ := decimal.NewFromString(current)

	var next decimal.Decimal
	switch op {
	case BalanceAdd:
		next = bal.Add(delta)
	case BalanceSub:
		next = bal.Sub(delta)
	case BalanceSet:
		next = delta
	default:
		return wrapf("AdjustBalance", errors.New("unknown balance op"))
	}
	if next.IsNegative() {
		return errInsufficientBalance
	}

	_, err := tx.Exec(`UPDATE participants SET balance = ?, updated_at = ? WHERE id = ?`,
		next.String(), time.Now(), id)
	return wrapf("AdjustBalance update", err)
}

// errInsufficientBalance is returned by AdjustBalance when a debit would
// bring the balance below zero; callers translate it to
// domain.ErrInsufficientBalance's error code.
var errInsufficientBalance = errors.New("insufficient balance")

// IsInsufficientBalance reports whether err originated from a rejected
// negative-balance transition.
func IsInsufficientBalance(err error) bool {
	return errors.Is(err, errInsufficientBalance)
}

// RecordInvestment bumps total_invested (used on buy_tokens).
func (s *Store) RecordInvestment(tx *sql.Tx, id string, amount decimal.Decimal) error {
	var current string
	if err := tx.QueryRow(`SELECT total_invested FROM participants WHERE id = ?`, id).Scan(&current); err != nil {
		return wrapf("RecordInvestment select", err)
	}
	cur, _ := decimal.NewFromString(current)
	_, err := tx.Exec(`UPDATE participants SET total_invested = ? WHERE id = ?`, cur.Add(amount).String(), id)
	return wrapf("RecordInvestment update", err)
}

// RecordDividendReceived bumps a participant's total_dividends.
func (s *Store) RecordDividendReceived(tx *sql.Tx, id string, amount decimal.Decimal) error {
	var current string
	if err := tx.QueryRow(`SELECT total_dividends FROM participants WHERE id = ?`, id).Scan(&current); err != nil {
		return wrapf("RecordDividendReceived select", err)
	}
	cur, _ := decimal.NewFromString(current)
	_, err := tx.Exec(`UPDATE participants SET total_dividends = ? WHERE id = ?`, cur.Add(amount).String(), id)
	return wrapf("RecordDividendReceived update", err)
}

// CreateGoal inserts a goal for a participant.
func (s *Store) CreateGoal(tx *sql.Tx, g *domain.Goal) error {
	_, err := tx.Exec(`INSERT INTO participant_goals (id, participant_id, goal_type, target_value, priority,
		deadline_month, progress, completed) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.ParticipantID, string(g.Type), g.TargetValue.String(), g.Priority, g.DeadlineMonth, g.Progress, g.Completed)
	return wrapf("CreateGoal", err)
}

// ListGoals returns a participant's goals ordered by priority descending,
// matching the spec's "evaluated each tick in priority order".
func (s *Store) ListGoals(participantID string) ([]domain.Goal, error) {
	rows, err := s.Core.Conn().Query(`SELECT id, participant_id, goal_type, target_value, priority,
		deadline_month, progress, completed FROM participant_goals WHERE participant_id = ? ORDER BY priority DESC`, participantID)
	if err != nil {
		return nil, wrapf("ListGoals", err)
	}
	defer rows.Close()

	var out []domain.Goal
	for rows.Next() {
		var g domain.Goal
		var targetValue string
		var goalType string
		var deadline sql.NullInt64
		if err := rows.Scan(&g.ID, &g.ParticipantID, &goalType, &targetValue, &g.Priority, &deadline, &g.Progress, &g.Completed); err != nil {
			return nil, wrapf("ListGoals scan", err)
		}
		g.Type = domain.GoalType(goalType)
		g.TargetValue, _ = decimal.NewFromString(targetValue)
		if deadline.Valid {
			v := int(deadline.Int64)
			g.DeadlineMonth = &v
		}
		out = append(out, g)
	}
	return out, wrapf("ListGoals rows", rows.Err())
}

// UpdateGoalProgress persists progress and completion (monotonic: callers
// must never flip completed back to false).
func (s *Store) UpdateGoalProgress(tx *sql.Tx, id string, progress float64, completed bool) error {
	_, err := tx.Exec(`UPDATE participant_goals SET progress = ?, completed = completed OR ? WHERE id = ?`,
		progress, completed, id)
	return wrapf("UpdateGoalProgress", err)
}
