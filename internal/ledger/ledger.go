// Package ledger provides an append-only history of processed commands.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightcmd/internal/eventbus"
)

// Entry represents a single command in the ledger
type Entry struct {
	ID        int64              `json:"id"`
	EventType eventbus.EventType `json:"event_type"`
	Timestamp time.Time          `json:"timestamp"`
	RequestID string             `json:"request_id,omitempty"`
	Source    string             `json:"source,omitempty"`
	Command   string             `json:"command"`
	Payload   map[string]any     `json:"payload,omitempty"`
}

// Ledger provides append-only command logging
type Ledger struct {
	db *sql.DB
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Append records a command event.
func (l *Ledger) Append(e eventbus.Event) error {
	payloadJSON, err := json.Marshal(e.Data())
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	ts := e.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err = l.db.Exec(
		`INSERT INTO command_ledger (event_type, timestamp, request_id, source, command, payload) VALUES (?, ?, ?, ?, ?, ?)`,
		string(e.Type), ts.UTC().Unix(), e.RequestID, e.Source, e.Command, string(payloadJSON),
	)
	return err
}

// GetRecent returns the newest entries first.
func (l *Ledger) GetRecent(limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, request_id, source, command, payload
		FROM command_ledger
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// GetByType returns entries filtered by event type
func (l *Ledger) GetByType(eventType eventbus.EventType, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, request_id, source, command, payload
		FROM command_ledger
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

// DeleteOlderThan removes entries older than the specified duration (retention policy)
func (l *Ledger) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).Unix()
	result, err := l.db.Exec(`DELETE FROM command_ledger WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Subscribe records every command outcome published on the bus.
func (l *Ledger) Subscribe(bus *eventbus.Bus) {
	bus.SubscribeAll(func(e eventbus.Event) {
		if err := l.Append(e); err != nil {
			log.Error().Err(err).Str("request_id", e.RequestID).Msg("Failed to record command")
		}
	})
}

// RunCleanup deletes entries older than retention every interval until ctx
// is cancelled.
func (l *Ledger) RunCleanup(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 || retention <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := l.DeleteOlderThan(retention)
			if err != nil {
				log.Error().Err(err).Msg("Ledger cleanup failed")
				continue
			}
			if n > 0 {
				log.Info().Int64("deleted", n).Msg("Ledger cleanup")
			}
		}
	}
}

func (l *Ledger) scanEntries(rows *sql.Rows) ([]*Entry, error) {
	entries := []*Entry{}
	for rows.Next() {
		var entry Entry
		var requestID, source, command, payloadStr sql.NullString
		var timestamp int64

		err := rows.Scan(&entry.ID, &entry.EventType, &timestamp, &requestID, &source, &command, &payloadStr)
		if err != nil {
			return nil, err
		}

		entry.Timestamp = time.Unix(timestamp, 0).UTC()
		entry.RequestID = requestID.String
		entry.Source = source.String
		entry.Command = command.String

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
