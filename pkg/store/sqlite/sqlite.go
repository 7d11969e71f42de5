// Package sqlite provides the SQLite implementation of store.Log.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Zerofisher/icmpwatch/pkg/model"
	"github.com/Zerofisher/icmpwatch/pkg/store"
)

// maxConns bounds the pool when readers may run alongside the writer.
const maxConns = 4

// Config holds configuration for the SQLite store.
type Config struct {
	// Path to the SQLite database file.
	DBPath string

	// ReadOnly opens the database in read-only mode.
	// A read-only store never creates the file.
	ReadOnly bool

	// WAL enables WAL mode so readers do not block the writer.
	WAL bool
}

// SQLiteStore is the SQLite implementation of store.Log.
type SQLiteStore struct {
	path string
	cfg  Config

	mu sync.Mutex
	db *sql.DB
}

var _ store.Log = (*SQLiteStore)(nil)

// New creates a SQLite store. The database is opened lazily: writers create
// it on first Append, readers report store.ErrNoLog until it exists.
func New(cfg Config) *SQLiteStore {
	return &SQLiteStore{
		path: cfg.DBPath,
		cfg:  cfg,
	}
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// open returns the shared handle, creating the file and schema if create is set.
func (s *SQLiteStore) open(create bool) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}

	if _, err := os.Stat(s.path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("stat db: %w", err)
		}
		if !create || s.cfg.ReadOnly {
			return nil, store.ErrNoLog
		}
		if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	// Build DSN; the file: prefix makes the driver honour mode=ro.
	dsn := "file:" + s.path
	params := "?_busy_timeout=5000"
	if s.cfg.ReadOnly {
		params += "&mode=ro"
	}
	if s.cfg.WAL {
		params += "&_journal_mode=WAL"
	}
	dsn += params

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Without WAL a reader blocks the writer, so keep one connection.
	conns := 1
	if s.cfg.WAL || s.cfg.ReadOnly {
		conns = maxConns
	}
	db.SetMaxOpenConns(conns)
	db.SetMaxIdleConns(conns)
	db.SetConnMaxLifetime(0)

	if !s.cfg.ReadOnly {
		if err := initSchema(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}

	s.db = db
	return db, nil
}

// ────────────────────────────────────────────────────────────────────────────────
// Schema Initialization
// ────────────────────────────────────────────────────────────────────────────────

func initSchema(db *sql.DB) error {
	const schema = `
-- Meta table for log metadata
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT
);

-- Feature rows, append-only; id gives the insertion order
CREATE TABLE IF NOT EXISTS features (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	rtt          REAL NOT NULL,
	packet_loss  REAL NOT NULL,
	icmp_rate    REAL NOT NULL,
	ttl          INTEGER NOT NULL,
	ttl_variance REAL NOT NULL
);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}

	_, err := db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`,
		"schema_version", fmt.Sprintf("%d", store.SchemaVersion))
	return err
}

// ────────────────────────────────────────────────────────────────────────────────
// Log Operations
// ────────────────────────────────────────────────────────────────────────────────

// Append inserts one feature row.
func (s *SQLiteStore) Append(ctx context.Context, rec model.FeatureRecord) error {
	db, err := s.open(true)
	if err != nil {
		return err
	}

	const query = `INSERT INTO features (rtt, packet_loss, icmp_rate, ttl, ttl_variance)
	VALUES (?, ?, ?, ?, ?)`

	_, err = db.ExecContext(ctx, query,
		rec.RTTProxyMs, rec.PacketLoss, rec.ICMPRate, rec.TTL, rec.TTLVariance)
	if err != nil {
		return fmt.Errorf("insert feature: %w", err)
	}
	return nil
}

// Tail returns up to n most recent rows, oldest first.
func (s *SQLiteStore) Tail(ctx context.Context, n int) ([]model.FeatureRecord, error) {
	db, err := s.open(false)
	if err != nil {
		return nil, err
	}

	limit := n
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	const query = `SELECT rtt, packet_loss, icmp_rate, ttl, ttl_variance FROM (
		SELECT id, rtt, packet_loss, icmp_rate, ttl, ttl_variance
		FROM features ORDER BY id DESC LIMIT ?
	) ORDER BY id ASC`

	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query features: %w", err)
	}
	defer rows.Close()

	var records []model.FeatureRecord
	for rows.Next() {
		var rec model.FeatureRecord
		if err := rows.Scan(&rec.RTTProxyMs, &rec.PacketLoss, &rec.ICMPRate, &rec.TTL, &rec.TTLVariance); err != nil {
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SchemaVersion reads the schema version recorded in the meta table.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	db, err := s.open(false)
	if err != nil {
		return 0, err
	}

	var value string
	err = db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, "schema_version").Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("query meta: %w", err)
	}

	var version int
	if _, err := fmt.Sscanf(value, "%d", &version); err != nil {
		return 0, fmt.Errorf("parse schema version: %w", err)
	}
	return version, nil
}
