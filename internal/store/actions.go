package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/osf/network-sim/internal/domain"
)

// QueueAction inserts a new pending action. Callers set ID (idempotency
// key) so re-submission of the same id can be detected by CompleteAction's
// terminal-status check (P6).
func (s *Store) QueueAction(tx *sql.Tx, a *domain.PendingAction) error {
	if a.Priority == 0 {
		a.Priority = 5
	}
	if a.QueuedAt.IsZero() {
		a.QueuedAt = time.Now()
	}
	if a.Status == "" {
		a.Status = domain.ActionStatusPending
	}
	payload, err := json.Marshal(a.Payload)
	if err != nil {
		return wrapf("QueueAction marshal", err)
	}

	_, err = tx.Exec(`INSERT INTO pending_actions (id, participant_id, action_type, payload, priority, status,
		queued_for_month, queued_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ParticipantID, string(a.ActionType), string(payload), a.Priority, string(a.Status),
		a.QueuedForMonth, a.QueuedAt)
	return wrapf("QueueAction insert", err)
}

// ListPendingActions returns actions queued for month, ordered
// (priority DESC, queued_at ASC) per the spec's ordering guarantee (P5).
func (s *Store) ListPendingActions(month int) ([]*domain.PendingAction, error) {
	rows, err := s.Core.Conn().Query(`SELECT id, participant_id, action_type, payload, priority, status,
		queued_for_month, queued_at, result, error_code, processed_at FROM pending_actions
		WHERE status = ? AND queued_for_month = ? ORDER BY priority DESC, queued_at ASC`,
		string(domain.ActionStatusPending), month)
	if err != nil {
		return nil, wrapf("ListPendingActions", err)
	}
	defer rows.Close()

	var out []*domain.PendingAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, wrapf("ListPendingActions scan", err)
		}
		out = append(out, a)
	}
	return out, wrapf("ListPendingActions rows", rows.Err())
}

func scanAction(row interface{ Scan(...interface{}) error }) (*domain.PendingAction, error) {
	var a domain.PendingAction
	var actionType, status, payload string
	var result sql.NullString
	var errorCode sql.NullString
	var processedAt sql.NullTime

	err := row.Scan(&a.ID, &a.ParticipantID, &actionType, &payload, &a.Priority, &status,
		&a.QueuedForMonth, &a.QueuedAt, &result, &errorCode, &processedAt)
	if err != nil {
		return nil, err
	}
	a.ActionType = domain.ActionType(actionType)
	a.Status = domain.ActionStatus(status)
	_ = json.Unmarshal([]byte(payload), &a.Payload)
	if result.Valid {
		_ = json.Unmarshal([]byte(result.String), &a.Result)
	}
	if errorCode.Valid {
		a.ErrorCode = errorCode.String
	}
	if processedAt.Valid {
		a.ProcessedAt = &processedAt.Time
	}
	return &a, nil
}

// CompleteAction marks a pending action terminal (completed or failed),
// persisting its result/error. Returns domain.ErrAlreadyProcessed if the
// action is already in a terminal state (P6).
func (s *Store) CompleteAction(tx *sql.Tx, id string, success bool, result map[string]interface{}, errorCode string) error {
	var status string
	if err := tx.QueryRow(`SELECT status FROM pending_actions WHERE id = ?`, id).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrStoreNotFound
		}
		return wrapf("CompleteAction select", err)
	}
	if status == string(domain.ActionStatusCompleted) || status == string(domain.ActionStatusFailed) {
		return domain.ErrAlreadyProcessed
	}

	newStatus := domain.ActionStatusCompleted
	if !success {
		newStatus = domain.ActionStatusFailed
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return wrapf("CompleteAction marshal", err)
	}

	_, err = tx.Exec(`UPDATE pending_actions SET status = ?, result = ?, error_code = ?, processed_at = ?
		WHERE id = ?`, string(newStatus), string(resultJSON), errorCode, time.Now(), id)
	return wrapf("CompleteAction update", err)
}

// MarkProcessing transitions a pending action to "processing" just before
// C5 executes it.
func (s *Store) MarkProcessing(tx *sql.Tx, id string) error {
	_, err := tx.Exec(`UPDATE pending_actions SET status = ? WHERE id = ? AND status = ?`,
		string(domain.ActionStatusProcessing), id, string(domain.ActionStatusPending))
	return wrapf("MarkProcessing", err)
}

// RemoveAction deletes one not-yet-processed action from the queue.
// Removing an action that is already processing or terminal is a no-op
// (it must run to completion or already has).
func (s *Store) RemoveAction(tx *sql.Tx, id string) error {
	_, err := tx.Exec(`DELETE FROM pending_actions WHERE id = ? AND status = ?`,
		id, string(domain.ActionStatusPending))
	return wrapf("RemoveAction", err)
}

// ClearActions deletes every still-pending action queued for month.
func (s *Store) ClearActions(tx *sql.Tx, month int) error {
	_, err := tx.Exec(`DELETE FROM pending_actions WHERE queued_for_month = ? AND status = ?`,
		month, string(domain.ActionStatusPending))
	return wrapf("ClearActions", err)
}
