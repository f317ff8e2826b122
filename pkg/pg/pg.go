// Package pg provides PostgreSQL connection pooling and schema migration
// helpers on top of pgx and goose.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

var (
	ErrFailedToParseConfig      = errors.New("pg: failed to parse connection config")
	ErrFailedToOpenConnection   = errors.New("pg: failed to open connection")
	ErrFailedToApplyMigrations  = errors.New("pg: failed to apply migrations")
	ErrMigrationPathNotProvided = errors.New("pg: migrations path not provided")
)

type Config struct {
	ConnectionString string        `env:"PG_CONN_URL,required"`
	MaxOpenConns     int32         `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns     int32         `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`
	RetryAttempts    int           `env:"PG_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval    time.Duration `env:"PG_RETRY_INTERVAL" envDefault:"5s"`
	MigrationsPath   string        `env:"PG_MIGRATIONS_PATH" envDefault:"migrations"`
}

// Connect establishes a PostgreSQL connection pool with retry logic.
// Linear backoff between attempts avoids hammering a database that is still
// coming up when services restart together.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	connConfig, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseConfig, err)
	}
	connConfig.MaxConns = cfg.MaxOpenConns
	connConfig.MinConns = cfg.MaxIdleConns

	for i := range cfg.RetryAttempts {
		pool, err := pgxpool.NewWithConfig(ctx, connConfig)
		if err != nil {
			time.Sleep(time.Duration(i+1) * cfg.RetryInterval)
			continue
		}

		// Verify with an actual ping to catch auth and permission issues.
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			time.Sleep(time.Duration(i+1) * cfg.RetryInterval)
			continue
		}

		return pool, nil
	}

	return nil, ErrFailedToOpenConnection
}

// Migrate applies schema migrations using goose. The pgx pool is bridged to
// the database/sql interface goose expects; the wrapper shares the underlying
// connections.
func Migrate(ctx context.Context, pool *pgxpool.Pool, cfg Config, log logger) error {
	if cfg.MigrationsPath == "" {
		return errors.Join(ErrFailedToApplyMigrations, ErrMigrationPathNotProvided)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close database connection", "error", err)
		}
	}(db)

	goose.SetLogger(newGooseLogger(log))
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	if err := goose.UpContext(ctx, db, cfg.MigrationsPath); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	return nil
}

type logger interface {
	InfoContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// gooseLogger bridges goose's Printf-style logging to structured logging.
type gooseLogger struct {
	log logger
}

func newGooseLogger(log logger) goose.Logger {
	return &gooseLogger{log: log}
}

func (l *gooseLogger) Fatalf(format string, v ...any) {
	l.log.ErrorContext(context.Background(), fmt.Sprintf(format, v...))
}

func (l *gooseLogger) Printf(format string, v ...any) {
	l.log.InfoContext(context.Background(), fmt.Sprintf(format, v...))
}
