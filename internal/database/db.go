// Package database persists analysis run history in sqlite.
package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the sqlite connection with pooling and prepared statements.
type DB struct {
	*sql.DB
	pool     *ConnectionPool
	prepared map[string]*sql.Stmt
	mutex    sync.RWMutex
}

// ConnectionPool carries the pool limits alongside the connection so the
// stats endpoint can report the configured bounds.
type ConnectionPool struct {
	db           *sql.DB
	maxOpenConns int
	maxIdleConns int
	maxLifetime  time.Duration
}

func NewConnectionPool(db *sql.DB, maxOpen, maxIdle int, maxLifetime time.Duration) *ConnectionPool {
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	return &ConnectionPool{
		db:           db,
		maxOpenConns: maxOpen,
		maxIdleConns: maxIdle,
		maxLifetime:  maxLifetime,
	}
}

func (cp *ConnectionPool) GetStats() map[string]interface{} {
	stats := cp.db.Stats()

	return map[string]interface{}{
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"max_open_connections": cp.maxOpenConns,
		"max_idle_connections": cp.maxIdleConns,
		"max_lifetime_seconds": cp.maxLifetime.Seconds(),
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
	}
}

// NewDB opens (or creates) the sqlite database under dataDir, runs
// migrations and prepares the hot statements.
func NewDB(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "teampulse.db")
	connStr := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pool := NewConnectionPool(db, 25, 5, 5*time.Minute)

	database := &DB{
		DB:       db,
		pool:     pool,
		prepared: make(map[string]*sql.Stmt),
	}

	if err := database.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := database.initPreparedStatements(); err != nil {
		return nil, fmt.Errorf("failed to initialize prepared statements: %w", err)
	}

	slog.Info("Database initialized",
		"path", dbPath,
		"max_open_conns", pool.maxOpenConns,
		"max_idle_conns", pool.maxIdleConns)

	return database, nil
}

func (db *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS analysis_runs (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			record_count INTEGER NOT NULL,
			ticket_count INTEGER NOT NULL,
			contributor_count INTEGER NOT NULL,
			alert_count INTEGER NOT NULL,
			dropped_records INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			result TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_analysis_runs_created ON analysis_runs(created_at DESC)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

func (db *DB) initPreparedStatements() error {
	statements := map[string]string{
		"insert_run": `INSERT INTO analysis_runs (
			id, source, record_count, ticket_count, contributor_count,
			alert_count, dropped_records, duration_ms, result, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,

		"get_run": `SELECT id, source, record_count, ticket_count, contributor_count,
			alert_count, dropped_records, duration_ms, result, created_at
			FROM analysis_runs WHERE id = ?`,

		"list_runs": `SELECT id, source, record_count, ticket_count, contributor_count,
			alert_count, dropped_records, duration_ms, created_at
			FROM analysis_runs ORDER BY created_at DESC LIMIT ?`,
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, query := range statements {
		stmt, err := db.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement %s: %w", name, err)
		}
		db.prepared[name] = stmt
	}

	return nil
}

func (db *DB) GetPreparedStatement(name string) (*sql.Stmt, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	stmt, exists := db.prepared[name]
	if !exists {
		return nil, fmt.Errorf("prepared statement %s not found", name)
	}
	return stmt, nil
}

func (db *DB) GetPoolStats() map[string]interface{} {
	return db.pool.GetStats()
}

// Close closes prepared statements before the underlying connection.
func (db *DB) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, stmt := range db.prepared {
		if err := stmt.Close(); err != nil {
			slog.Warn("Failed to close prepared statement", "name", name, "error", err)
		}
	}
	db.prepared = make(map[string]*sql.Stmt)

	return db.DB.Close()
}
