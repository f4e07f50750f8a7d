package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"clarity-canvas/internal/model"
)

const (
	OriginLocal  = "local"
	OriginRemote = "remote"
)

// AppendEvent writes ev to the workspace event log, assigning an id and
// timestamp when missing.
func (s Store) AppendEvent(ctx context.Context, ev model.Event) (model.Event, error) {
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	if strings.TrimSpace(ev.ID) == "" {
		ev.ID = NewEventID(ev.TS)
	}
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return model.Event{}, err
	}

	db, err := s.openSQLite(ctx)
	if err != nil {
		return model.Event{}, err
	}
	defer db.Close()

	_, err = db.ExecContext(ctx, `INSERT OR IGNORE INTO events(
		event_id, origin, replica_id, entity_kind, entity_id, type, payload_json, issued_at_unixms
	) VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Origin, ev.ReplicaID, string(ev.EntityKind), ev.EntityID, ev.Type, string(payload), ev.TS.UTC().UnixMilli())
	if err != nil {
		return model.Event{}, err
	}
	return ev, nil
}

// ListEvents returns the most recent events, oldest first. limit <= 0 means all.
func (s Store) ListEvents(ctx context.Context, entityID string, limit int) ([]model.Event, error) {
	db, err := s.openSQLite(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	q := `SELECT event_id, origin, replica_id, entity_kind, entity_id, type, payload_json, issued_at_unixms FROM events`
	args := []any{}
	if strings.TrimSpace(entityID) != "" {
		q += ` WHERE entity_id = ?`
		args = append(args, strings.TrimSpace(entityID))
	}
	q += ` ORDER BY event_id DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Event{}
	for rows.Next() {
		var (
			ev      model.Event
			kind    string
			payload string
			ms      int64
		)
		if err := rows.Scan(&ev.ID, &ev.Origin, &ev.ReplicaID, &kind, &ev.EntityID, &ev.Type, &payload, &ms); err != nil {
			return nil, err
		}
		ev.EntityKind = model.EntityKind(kind)
		ev.TS = time.UnixMilli(ms).UTC()
		var p any
		if err := json.Unmarshal([]byte(payload), &p); err == nil {
			ev.Payload = p
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Reverse to oldest-first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
