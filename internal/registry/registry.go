// Package registry is the durable store of destination channels. It owns
// the persisted schema (id, name, active flag, forward count, last-forward
// time); the forwarding core only ever sees per-run snapshots and delivery
// confirmations.
package registry

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"relaybot/internal/forward"
	"relaybot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means driver default
}

// Channel is one registry row, active or not.
type Channel struct {
	ID            string
	Name          string
	AddedAt       time.Time
	Active        bool
	TotalForwards int64
	LastForward   time.Time // zero if never forwarded to
}

type Store struct {
	db  *sql.DB
	log logx.Logger
}

func Open(cfg Config, log logx.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("registry path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &Store{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ListActive returns the active destination snapshot in stable id order.
func (s *Store) ListActive(ctx context.Context) ([]forward.Destination, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT channel_id, COALESCE(channel_name, '') FROM channels WHERE active = 1 ORDER BY channel_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []forward.Destination
	for rows.Next() {
		var d forward.Destination
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Add registers a destination. Idempotent: re-adding a deactivated id
// reactivates it and refreshes its name. Forward counters are preserved.
func (s *Store) Add(ctx context.Context, id, name string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("channel id is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO channels(channel_id, channel_name, added_at, active) VALUES(?,?,?,1)
		 ON CONFLICT(channel_id) DO UPDATE SET active = 1, channel_name = excluded.channel_name`,
		id, nullStr(name), time.Now().UTC().Format(time.RFC3339Nano))
	if err == nil {
		s.log.Info("channel added", logx.String("channel", id), logx.String("name", name))
	}
	return err
}

// Deactivate soft-removes a destination. Returns false when the id is unknown.
func (s *Store) Deactivate(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE channels SET active = 0 WHERE channel_id = ? AND active = 1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		s.log.Info("channel removed", logx.String("channel", id))
	}
	return n > 0, nil
}

// All returns every row, newest first, for listing/export commands.
func (s *Store) All(ctx context.Context) ([]Channel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT channel_id, COALESCE(channel_name, ''), added_at, active, total_forwards, last_forward
		 FROM channels ORDER BY added_at DESC, channel_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Channel
	for rows.Next() {
		var (
			c       Channel
			added   string
			active  int
			lastFwd sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &added, &active, &c.TotalForwards, &lastFwd); err != nil {
			return nil, err
		}
		c.Active = active != 0
		c.AddedAt = parseTime(added)
		if lastFwd.Valid {
			c.LastForward = parseTime(lastFwd.String)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountActive reports the active destination count without a full snapshot.
func (s *Store) CountActive(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM channels WHERE active = 1`).Scan(&n)
	return n, err
}

// RecordDelivery bumps the destination's forward counter and stamps the
// last-forward time. A single UPDATE keeps the increment atomic under
// concurrent batch copies.
func (s *Store) RecordDelivery(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE channels SET total_forwards = total_forwards + 1, last_forward = ? WHERE channel_id = ?`,
		at.UTC().Format(time.RFC3339Nano), id)
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func parseTime(v string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
