package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/academy/internal/domain"
)

// ActivityRecord is a stored domain event.
type ActivityRecord struct {
	ID         string          `json:"id"`
	EventType  string          `json:"event_type"`
	Subject    string          `json:"subject"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// ActivityStore records domain events backed by SQLite.
type ActivityStore struct {
	db *DB
}

// NewActivityStore creates a new SQLite-backed activity store.
func NewActivityStore(db *DB) *ActivityStore {
	return &ActivityStore{db: db}
}

// Record stores a domain event.
func (s *ActivityStore) Record(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO activity_events (id, event_type, subject, payload, occurred_at) VALUES (?, ?, ?, ?, ?)",
		event.EventID().String(), event.EventType(), event.Subject(), string(payload), event.OccurredAt().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert activity event: %w", err)
	}
	return nil
}

// Recent returns the newest events first, optionally filtered by type.
func (s *ActivityStore) Recent(ctx context.Context, eventType string, limit int) ([]ActivityRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := "SELECT id, event_type, subject, payload, occurred_at FROM activity_events"
	args := []interface{}{}
	if eventType != "" {
		query += " WHERE event_type = ?"
		args = append(args, eventType)
	}
	query += " ORDER BY occurred_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	records := []ActivityRecord{}
	for rows.Next() {
		var r ActivityRecord
		var payload string
		if err := rows.Scan(&r.ID, &r.EventType, &r.Subject, &payload, &r.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan activity event: %w", err)
		}
		r.Payload = json.RawMessage(payload)
		records = append(records, r)
	}
	return records, rows.Err()
}
