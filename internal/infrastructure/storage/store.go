package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"FakeNewsScanner/internal/config"
	"FakeNewsScanner/internal/ports"
)

const sqliteOptions = "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"

// Store persists items, predictions and watermarks in SQLite or Postgres.
type Store struct {
	db     *sqlx.DB
	sb     sq.StatementBuilderType
	driver string
}

var (
	_ ports.ItemRepository       = (*Store)(nil)
	_ ports.PredictionRepository = (*Store)(nil)
	_ ports.WatermarkRepository  = (*Store)(nil)
	_ ports.AnalyticsRepository  = (*Store)(nil)
)

// Open connects to the configured database and applies pending migrations.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	dsn := cfg.DSN
	if cfg.Driver == config.DriverSQLite {
		var err error
		if dsn, err = sqliteDSN(dsn); err != nil {
			return nil, err
		}
	}

	db, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == config.DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}

	if err := migrateUp(db.DB, cfg.Driver); err != nil {
		_ = db.Close()
		return nil, err
	}

	return New(db, cfg.Driver), nil
}

// New wraps an already migrated connection.
func New(db *sqlx.DB, driver string) *Store {
	var format sq.PlaceholderFormat = sq.Question
	if driver == config.DriverPostgres {
		format = sq.Dollar
	}
	return &Store{
		db:     db,
		sb:     sq.StatementBuilder.PlaceholderFormat(format),
		driver: driver,
	}
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func sqliteDSN(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("sqlite dsn is empty")
	}
	if strings.Contains(path, "?") {
		return path, nil
	}
	if dir := filepath.Dir(path); dir != "." && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create database directory: %w", err)
		}
	}
	return path + "?" + sqliteOptions, nil
}

func (s *Store) get(ctx context.Context, dest any, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return s.db.GetContext(ctx, dest, query, args...)
}

func (s *Store) selectAll(ctx context.Context, dest any, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return s.db.SelectContext(ctx, dest, query, args...)
}

func (s *Store) exec(ctx context.Context, ex sqlx.ExecerContext, b sq.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build statement: %w", err)
	}
	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
