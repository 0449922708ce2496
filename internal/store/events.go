package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/osf/network-sim/internal/domain"
)

// CreateEvent appends a network event for a month. created_at is strictly
// increasing within a month because events are generated and persisted in
// the same ordered pass (pipeline step 5).
func (s *Store) CreateEvent(tx *sql.Tx, e *domain.NetworkEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return wrapf("CreateEvent marshal", err)
	}

	res, err := tx.Exec(`INSERT INTO network_events (month, category, severity, title, description,
		property_id, participant_id, payload, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Month, string(e.Category), string(e.Severity), e.Title, e.Description,
		e.PropertyID, e.ParticipantID, string(payload), e.CreatedAt)
	if err != nil {
		return wrapf("CreateEvent insert", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

// EventFilter narrows ListEvents results.
type EventFilter struct {
	Month    *int
	Category domain.EventCategory
	Limit    int
}

// ListEvents returns events matching filter, most recent first.
func (s *Store) ListEvents(filter EventFilter) ([]*domain.NetworkEvent, error) {
	query := `SELECT id, month, category, severity, title, description, property_id, participant_id,
		payload, created_at FROM network_events WHERE 1=1`
	var args []interface{}
	if filter.Month != nil {
		query += ` AND month = ?`
		args = append(args, *filter.Month)
	}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, string(filter.Category))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.Ledger.Conn().Query(query, args...)
	if err != nil {
		return nil, wrapf("ListEvents", err)
	}
	defer rows.Close()

	var out []*domain.NetworkEvent
	for rows.Next() {
		var e domain.NetworkEvent
		var category, severity, payload string
		var propertyID, participantID sql.NullString
		if err := rows.Scan(&e.ID, &e.Month, &category, &severity, &e.Title, &e.Description,
			&propertyID, &participantID, &payload, &e.CreatedAt); err != nil {
			return nil, wrapf("ListEvents scan", err)
		}
		e.Category = domain.EventCategory(category)
		e.Severity = domain.EventSeverity(severity)
		_ = json.Unmarshal([]byte(payload), &e.Payload)
		if propertyID.Valid {
			e.PropertyID = &propertyID.String
		}
		if participantID.Valid {
			e.ParticipantID = &participantID.String
		}
		out = append(out, &e)
	}
	return out, wrapf("ListEvents rows", rows.Err())
}
