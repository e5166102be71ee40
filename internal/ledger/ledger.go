// Package ledger provides an append-only history of LED effect events for
// auditing what the daemon drove and when.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event in the ledger
type EventType string

const (
	EventEffectWritten EventType = "effect_written"
	EventEffectExpired EventType = "effect_expired"
)

// Entry represents a single event in the ledger
type Entry struct {
	ID        int64
	EventID   string
	SessionID string
	EventType EventType
	LedID     int
	Mode      string
	Timestamp time.Time
	Payload   map[string]any
}

// Ledger provides append-only effect event logging. Every row is stamped with
// the session the daemon run generated it under.
type Ledger struct {
	db        *sql.DB
	sessionID string
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db, sessionID: uuid.NewString()}
}

// SessionID returns the identifier stamped on this run's entries
func (l *Ledger) SessionID() string {
	return l.sessionID
}

// Append adds a new event to the ledger. An empty eventID gets a fresh one.
func (l *Ledger) Append(eventType EventType, eventID string, ledID int, mode string, payload map[string]any) error {
	if eventID == "" {
		eventID = uuid.NewString()
	}

	var payloadJSON []byte
	var err error
	if payload != nil {
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	now := time.Now().UTC().Unix()

	_, err = l.db.Exec(`
		INSERT INTO effect_ledger (event_id, session_id, event_type, led_id, mode, timestamp, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, eventID, l.sessionID, string(eventType), ledID, mode, now, string(payloadJSON))

	return err
}

// GetByType returns entries filtered by event type, newest first
func (l *Ledger) GetByType(eventType EventType, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_id, session_id, event_type, led_id, mode, timestamp, payload
		FROM effect_ledger
		WHERE event_type = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, string(eventType), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// GetByLed returns entries for a single LED, newest first
func (l *Ledger) GetByLed(ledID int, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_id, session_id, event_type, led_id, mode, timestamp, payload
		FROM effect_ledger
		WHERE led_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, ledID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// DeleteOlderThan removes entries older than the specified duration (retention policy)
func (l *Ledger) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).Unix()
	result, err := l.db.Exec(`
		DELETE FROM effect_ledger WHERE timestamp < ?
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (l *Ledger) scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var mode, payloadStr sql.NullString
		var timestamp int64

		err := rows.Scan(
			&entry.ID, &entry.EventID, &entry.SessionID, &entry.EventType,
			&entry.LedID, &mode, &timestamp, &payloadStr,
		)
		if err != nil {
			return nil, err
		}

		entry.Timestamp = time.Unix(timestamp, 0).UTC()
		if mode.Valid {
			entry.Mode = mode.String
		}
		if payloadStr.Valid && payloadStr.String != "" {
			entry.Payload = make(map[string]any)
			if err := json.Unmarshal([]byte(payloadStr.String), &entry.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
