// Package store owns the embedded SQLite database: schema, migrations,
// and one repository per aggregate. All JSON-valued columns are TEXT with
// (de)serialization at this boundary; timestamps are RFC 3339 strings.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// Repos bundles one repository per aggregate over a shared handle.
type Repos struct {
	Messages *MessageRepo
	Metadata *MetadataRepo
	Content  *ContentRepo
	Entities *EntityRepo
	Classify *ClassifyRepo
	Profiles *ProfileRepo
	Pipeline *PipelineRepo
	Stats    *StatsRepo
}

// NewRepos creates the full repository set.
func NewRepos(db *sql.DB) *Repos {
	return &Repos{
		Messages: NewMessageRepo(db),
		Metadata: NewMetadataRepo(db),
		Content:  NewContentRepo(db),
		Entities: NewEntityRepo(db),
		Classify: NewClassifyRepo(db),
		Profiles: NewProfileRepo(db),
		Pipeline: NewPipelineRepo(db),
		Stats:    NewStatsRepo(db),
	}
}

// NormalizePath strips URL-style prefixes from DATABASE_URL values so both
// "sqlite:///var/mail.db" and a bare path open the same file.
func NormalizePath(path string) string {
	for _, prefix := range []string{"sqlite:///", "sqlite://", "sqlite:"} {
		if strings.HasPrefix(path, prefix) {
			return strings.TrimPrefix(path, prefix)
		}
	}
	return path
}

// Open opens (creating if needed) the SQLite database at path and applies
// the connection pragmas: WAL for concurrent readers, foreign keys on, and
// a 5s busy timeout so transient write-lock contention waits instead of
// failing.
func Open(path string) (*sql.DB, error) {
	path = NormalizePath(path)
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := "file:" + path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// OpenMemory opens a fresh in-memory database with the schema applied.
// Used by tests; the single-connection pool keeps every statement on the
// same in-memory instance.
func OpenMemory() (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma: %w", err)
		}
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates missing tables and indices, then applies the additive
// column registry. Safe to run on every start.
func Migrate(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	for _, m := range columnMigrations {
		ok, err := columnExists(db, m.table, m.column)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		ddl := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", m.table, m.definition)
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("add column %s.%s: %w", m.table, m.column, err)
		}
	}
	return nil
}

func columnExists(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("table_info %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid          int
			name, ctype  string
			notNull, pk  int
			defaultValue sql.NullString
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &defaultValue, &pk); err != nil {
			return false, fmt.Errorf("scan table_info: %w", err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Reset drops every table and recreates the schema. Destructive; only the
// explicit `db --reset` path calls this.
func Reset(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("disable foreign keys: %w", err)
	}
	for _, table := range TableNames {
		if _, err := db.Exec("DROP TABLE IF EXISTS " + table); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	return Migrate(db)
}

// Stats returns the row count per table, -1 for tables that do not exist
// yet (pre-migration databases).
func Stats(db *sql.DB) (map[string]int64, error) {
	out := make(map[string]int64, len(TableNames))
	for _, table := range TableNames {
		var exists int
		err := db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("check table %s: %w", table, err)
		}
		if exists == 0 {
			out[table] = -1
			continue
		}
		var n int64
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		out[table] = n
	}
	return out, nil
}
