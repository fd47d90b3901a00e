// Package sqlite persists the death history and its settings in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/okian/deathlog/internal/adapters/repository/sqlite/migrations"
	"github.com/okian/deathlog/internal/domain/model"
)

// ErrNotConfigured is returned by methods of a nil or closed Store.
var ErrNotConfigured = errors.New("storage is not configured")

// Store persists model.State in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Open opens a SQLite store at path and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one writer; the host serializes every save
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	err := s.sqlDB.Close()
	s.sqlDB = nil
	return err
}

// LoadState reads the persisted history and settings. found is false when
// nothing was ever saved, so the caller can fall back to its defaults.
func (s *Store) LoadState(ctx context.Context) (state model.State, found bool, err error) {
	if err := ctx.Err(); err != nil {
		return state, false, err
	}
	if s == nil || s.sqlDB == nil {
		return state, false, ErrNotConfigured
	}

	var (
		screenshotOn int
		delayNanos   int64
	)
	err = s.sqlDB.QueryRowContext(ctx,
		`SELECT max_entries, screenshot_on, screenshot_delay_ns FROM settings WHERE id = 1`,
	).Scan(&state.Settings.MaxEntries, &screenshotOn, &delayNanos)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return model.State{}, false, nil
	case err != nil:
		return model.State{}, false, fmt.Errorf("load settings: %w", err)
	}
	state.Settings.ScreenshotOn = screenshotOn != 0
	state.Settings.ScreenshotDelay = time.Duration(delayNanos)

	rows, err := s.sqlDB.QueryContext(ctx, `SELECT payload FROM death_records ORDER BY seq ASC`)
	if err != nil {
		return model.State{}, false, fmt.Errorf("load records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return model.State{}, false, fmt.Errorf("scan record: %w", err)
		}
		var rec model.DeathRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return model.State{}, false, fmt.Errorf("decode record: %w", err)
		}
		state.Records = append(state.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return model.State{}, false, fmt.Errorf("iterate records: %w", err)
	}
	return state, true, nil
}

// SaveState replaces the persisted history and settings in one transaction.
func (s *Store) SaveState(ctx context.Context, state model.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return ErrNotConfigured
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM death_records`); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO death_records (seq, id, recorded_at, killer, payload) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare record insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range state.Records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode record %s: %w", rec.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, i, rec.ID.String(), toMillis(rec.RecordedAt), rec.Killer.SourceName, string(payload)); err != nil {
			return fmt.Errorf("insert record %s: %w", rec.ID, err)
		}
	}

	screenshotOn := 0
	if state.Settings.ScreenshotOn {
		screenshotOn = 1
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO settings (id, max_entries, screenshot_on, screenshot_delay_ms, screenshot_delay_ns, updated_at)
		 VALUES (1, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   max_entries = excluded.max_entries,
		   screenshot_on = excluded.screenshot_on,
		   screenshot_delay_ms = excluded.screenshot_delay_ms,
		   screenshot_delay_ns = excluded.screenshot_delay_ns,
		   updated_at = excluded.updated_at`,
		state.Settings.MaxEntries,
		screenshotOn,
		state.Settings.ScreenshotDelay.Milliseconds(),
		state.Settings.ScreenshotDelay.Nanoseconds(),
		toMillis(time.Now()),
	); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}
