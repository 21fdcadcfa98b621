package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the SQLite database backing the image lookup cache.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "shopper.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and avoids "database is locked".
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies embedded SQL migrations that have not been recorded yet.
func (s *Store) migrate() error {
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
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
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
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
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

// --- Image cache ---

// PutImage inserts or replaces the cached image for entry.Query.
func (s *Store) PutImage(entry ImageEntry) error {
	fetchedAt := entry.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO image_cache (lookup_key, query, image_url, fetched_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(lookup_key) DO UPDATE SET query = excluded.query, image_url = excluded.image_url, fetched_at = excluded.fetched_at`,
		lookupKey(entry.Query), entry.Query, entry.ImageURL, fetchedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// GetImage returns the cached image for query. Entries fetched more than maxAge
// ago are reported as ErrNotFound; maxAge <= 0 disables the age check.
func (s *Store) GetImage(query string, maxAge time.Duration) (ImageEntry, error) {
	var e ImageEntry
	var fetchedAt string
	err := s.db.QueryRow(`SELECT query, image_url, fetched_at FROM image_cache WHERE lookup_key = ?`, lookupKey(query)).
		Scan(&e.Query, &e.ImageURL, &fetchedAt)
	if err == sql.ErrNoRows {
		return ImageEntry{}, ErrNotFound
	}
	if err != nil {
		return ImageEntry{}, err
	}
	t, err := time.Parse(time.RFC3339, fetchedAt)
	if err != nil {
		return ImageEntry{}, fmt.Errorf("parsing fetched_at: %w", err)
	}
	e.FetchedAt = t
	if maxAge > 0 && time.Since(t) > maxAge {
		return ImageEntry{}, ErrNotFound
	}
	return e, nil
}

// PurgeImagesBefore deletes entries fetched before cutoff and returns how many were removed.
func (s *Store) PurgeImagesBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM image_cache WHERE fetched_at < ?`, cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountImages returns the number of cached entries.
func (s *Store) CountImages() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM image_cache`).Scan(&n)
	return n, err
}
