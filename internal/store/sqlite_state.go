package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"clarity-canvas/internal/model"

	_ "modernc.org/sqlite"
)

const sqliteFileName = "canvas.sqlite"

func (s Store) SQLitePath() string {
	return filepath.Join(filepath.Clean(s.Dir), sqliteFileName)
}

func (s Store) openSQLite(ctx context.Context) (*sql.DB, error) {
	if err := s.Ensure(); err != nil {
		return nil, err
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", s.SQLitePath())
	if err != nil {
		return nil, err
	}
	// WAL enables one writer + many readers; busy_timeout avoids "database is locked"
	// when `sync listen` and a CLI command touch the same workspace.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := migrateSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func migrateSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS state_meta (
			k TEXT PRIMARY KEY,
			v TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS canvas_groups (
			id TEXT PRIMARY KEY,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			parent_id TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_groups_role ON canvas_groups(role);`,
		`CREATE TABLE IF NOT EXISTS canvas_tasks (
			id TEXT PRIMARY KEY,
			seq INTEGER NOT NULL,
			parent_id TEXT NOT NULL,
			in_inbox INTEGER NOT NULL,
			json TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_parent ON canvas_tasks(parent_id);`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			origin TEXT NOT NULL,
			replica_id TEXT NOT NULL,
			entity_kind TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			type TEXT NOT NULL,
			payload_json TEXT NOT NULL,
			issued_at_unixms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_entity ON events(entity_kind, entity_id, issued_at_unixms);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

// LoadSQLite reads the canvas snapshot. Row order (seq) preserves creation
// order, which containment relies on for equal-area ties.
func (s Store) LoadSQLite(ctx context.Context) (*DB, error) {
	db, err := s.openSQLite(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	out := NewDB()
	var version string
	switch err := db.QueryRowContext(ctx, `SELECT v FROM state_meta WHERE k = 'version'`).Scan(&version); {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, err
	default:
		if v, err := strconv.Atoi(version); err == nil {
			out.Version = v
		}
	}

	rows, err := db.QueryContext(ctx, `SELECT json FROM canvas_groups ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			rows.Close()
			return nil, err
		}
		var g model.Group
		if err := json.Unmarshal([]byte(raw), &g); err != nil {
			rows.Close()
			return nil, fmt.Errorf("decode group row: %w", err)
		}
		out.groups = append(out.groups, g)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	rows, err = db.QueryContext(ctx, `SELECT json FROM canvas_tasks ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var t model.Task
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, fmt.Errorf("decode task row: %w", err)
		}
		out.tasks = append(out.tasks, t)
	}
	return out, rows.Err()
}

func (s Store) SaveSQLite(ctx context.Context, st *DB) error {
	if st == nil {
		return errors.New("nil db")
	}
	snap := st.Snapshot()

	db, err := s.openSQLite(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO state_meta(k, v) VALUES(?, ?)`, "version", strconv.Itoa(snap.Version)); err != nil {
		return err
	}

	// Replace-all: the canvas is small and this keeps row order == slice order.
	for _, t := range []string{"canvas_groups", "canvas_tasks"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+t); err != nil {
			return err
		}
	}

	nowMs := time.Now().UTC().UnixMilli()
	for i, g := range snap.groups {
		raw, err := json.Marshal(g)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO canvas_groups(id, seq, role, parent_id, json, updated_at_unixms) VALUES(?, ?, ?, ?, ?, ?)`,
			g.ID, i, g.Role, model.ParentString(g.ParentID), string(raw), nowMs); err != nil {
			return err
		}
	}
	for i, t := range snap.tasks {
		raw, err := json.Marshal(t)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO canvas_tasks(id, seq, parent_id, in_inbox, json, updated_at_unixms) VALUES(?, ?, ?, ?, ?, ?)`,
			t.ID, i, model.ParentString(t.ParentID), boolToInt(t.IsInInbox), string(raw), nowMs); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
