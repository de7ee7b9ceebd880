package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hammamikhairi/julian/internal/domain"
	"github.com/hammamikhairi/julian/internal/logger"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var _ domain.ProfileStore = (*SQLiteStore)(nil)

// Preference value kinds stored next to each value so numbers come back
// as float64 rather than strings.
const (
	kindString = "string"
	kindNumber = "number"
	kindBool   = "bool"
	kindJSON   = "json"
)

// SQLiteStore persists profiles in a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	log *logger.Logger
}

// OpenSQLite opens (or creates) julian.db in dataDir and runs pending
// migrations. Pass ":memory:" for an in-memory database.
func OpenSQLite(dataDir string, log *logger.Logger) (*SQLiteStore, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "julian.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: pinging database: %w", err)
	}

	// One connection: avoids "database is locked" and keeps :memory: a
	// single database.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("storage: %s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &version); err != nil {
			return fmt.Errorf("parsing migration version from %q: %w", entry.Name(), err)
		}

		var applied int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&applied); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if applied > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
		s.log.Debug("[storage] applied migration %d", version)
	}
	return nil
}

// AppliedMigrations returns the applied migration versions in ascending order.
func (s *SQLiteStore) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// SaveProfile replaces the stored profile and all its preferences.
func (s *SQLiteStore) SaveProfile(ctx context.Context, rec domain.ProfileRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO profiles (name, language, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET language = excluded.language, updated_at = excluded.updated_at`,
		rec.Name, rec.Language, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("storage: saving profile %s: %w", rec.Name, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM profile_preferences WHERE profile_name = ?", rec.Name); err != nil {
		return fmt.Errorf("storage: clearing preferences: %w", err)
	}

	for field, v := range rec.Preferences {
		kind, text, err := encodeValue(v)
		if err != nil {
			return fmt.Errorf("storage: encoding %s: %w", field, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO profile_preferences (profile_name, field, kind, value) VALUES (?, ?, ?, ?)",
			rec.Name, field, kind, text,
		); err != nil {
			return fmt.Errorf("storage: saving preference %s: %w", field, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	s.log.Debug("[storage] saved profile %s (%d preferences)", rec.Name, len(rec.Preferences))
	return nil
}

// LoadProfile returns the stored profile or domain.ErrNotFound.
func (s *SQLiteStore) LoadProfile(ctx context.Context, name string) (domain.ProfileRecord, error) {
	rec := domain.ProfileRecord{Name: name, Preferences: make(map[string]any)}

	err := s.db.QueryRowContext(ctx, "SELECT language FROM profiles WHERE name = ?", name).Scan(&rec.Language)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ProfileRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ProfileRecord{}, fmt.Errorf("storage: loading profile %s: %w", name, err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT field, kind, value FROM profile_preferences WHERE profile_name = ?", name)
	if err != nil {
		return domain.ProfileRecord{}, fmt.Errorf("storage: loading preferences: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var field, kind, text string
		if err := rows.Scan(&field, &kind, &text); err != nil {
			return domain.ProfileRecord{}, err
		}
		v, err := decodeValue(kind, text)
		if err != nil {
			s.log.Warn("[storage] dropping preference %s: %v", field, err)
			continue
		}
		rec.Preferences[field] = v
	}
	return rec, rows.Err()
}

// DeleteProfile removes a profile and its preferences.
func (s *SQLiteStore) DeleteProfile(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM profiles WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("storage: deleting profile %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func encodeValue(v any) (kind, text string, err error) {
	switch x := v.(type) {
	case string:
		return kindString, x, nil
	case float64:
		return kindNumber, strconv.FormatFloat(x, 'g', -1, 64), nil
	case int:
		return kindNumber, strconv.Itoa(x), nil
	case bool:
		return kindBool, strconv.FormatBool(x), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", "", err
	}
	return kindJSON, string(b), nil
}

func decodeValue(kind, text string) (any, error) {
	switch kind {
	case kindString:
		return text, nil
	case kindNumber:
		return strconv.ParseFloat(text, 64)
	case kindBool:
		return strconv.ParseBool(text)
	case kindJSON:
		var v any
		err := json.Unmarshal([]byte(text), &v)
		return v, err
	}
	return nil, fmt.Errorf("unknown value kind %q", kind)
}
