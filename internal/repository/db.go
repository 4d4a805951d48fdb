package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/vision-ocr/internal/common"
)

// TableTextRows is the single table holding recognised lines.
const TableTextRows = "ocr_data"

type Config struct {
	DSN         string // file path (SQLite) or postgres:// URL
	DialTimeout time.Duration
	BusyTimeout time.Duration // SQLite only
}

// Store owns the database handle. Open it once at startup and Close it on shutdown.
type Store struct {
	drv     *entsql.Driver
	pool    *pgxpool.Pool // nil for SQLite
	dialect string
	logger  *slog.Logger
}

// Open opens (or creates) the database named by cfg.DSN and verifies it with a ping.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}

	if isPostgresDSN(cfg.DSN) {
		return openPostgres(ctx, cfg, logger)
	}
	return openSQLite(ctx, cfg, logger)
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func openSQLite(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	logger.Info("opening sqlite database", "path", cfg.DSN)
	db, err := sql.Open("sqlite", sqliteDSN(cfg))
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DSN, "error", err)
		return nil, storageUnavailable(cfg.DSN, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		logger.Error("failed to open database", "path", cfg.DSN, "error", err)
		return nil, storageUnavailable(cfg.DSN, err)
	}

	logger.Info("connected to the sqlite database", "path", cfg.DSN)
	return &Store{
		drv:     entsql.OpenDB(dialect.SQLite, db),
		dialect: dialect.SQLite,
		logger:  logger,
	}, nil
}

// sqliteDSN appends the connection pragmas as modernc _pragma parameters so
// every connection the pool opens gets them, not only the first one.
func sqliteDSN(cfg Config) string {
	q := url.Values{}
	if cfg.BusyTimeout > 0 {
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()))
	}
	q.Add("_pragma", "journal_mode(WAL)")

	sep := "?"
	if strings.Contains(cfg.DSN, "?") {
		sep = "&"
	}
	return cfg.DSN + sep + q.Encode()
}

func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	logger.Info("connecting to database", "dialect", dialect.Postgres)
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database url", "error", err)
		return nil, storageUnavailable("postgres", err)
	}
	pc.MaxConns = 2
	pc.ConnConfig.RuntimeParams["application_name"] = "vision-ocr"

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, storageUnavailable("postgres", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		logger.Error("failed to ping database", "error", err)
		return nil, storageUnavailable("postgres", err)
	}

	// Wrap pool as *sql.DB for the ent driver
	db := stdlib.OpenDBFromPool(pool)
	logger.Info("successfully connected to database")
	return &Store{
		drv:     entsql.OpenDB(dialect.Postgres, db),
		pool:    pool,
		dialect: dialect.Postgres,
		logger:  logger,
	}, nil
}

func storageUnavailable(target string, err error) error {
	return common.NewAppError(common.CodeStorageUnavailable, "cannot open "+target, common.ErrStorageUnavailable, err)
}

// Dialect returns the ent dialect name of the underlying engine.
func (s *Store) Dialect() string { return s.dialect }

// EnsureSchema creates the text-row table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	idType := "INTEGER PRIMARY KEY"
	if s.dialect == dialect.Postgres {
		idType = "BIGSERIAL PRIMARY KEY"
	}
	b := entsql.Dialect(s.dialect)
	ddl := b.String(func(sb *entsql.Builder) {
		sb.WriteString("CREATE TABLE IF NOT EXISTS ").Ident(TableTextRows).Pad().Wrap(func(sb *entsql.Builder) {
			sb.JoinComma(
				b.Column("id").Type(idType),
				b.Column("text").Type("TEXT"),
			)
		})
	})

	s.logger.Debug("ensuring schema", "ddl", ddl)
	if err := s.drv.Exec(ctx, ddl, []any{}, nil); err != nil {
		s.logger.Error("error creating table", "table", TableTextRows, "error", err)
		return common.NewAppError(common.CodeSchema, "create table "+TableTextRows, common.ErrSchema, err)
	}
	s.logger.Info("table ready", "table", TableTextRows)
	return nil
}

// Close closes the database connections gracefully
func (s *Store) Close() {
	if s == nil {
		return
	}
	s.logger.Info("closing database connections")
	if s.drv != nil {
		if err := s.drv.Close(); err != nil {
			s.logger.Error("failed to close database", "error", err)
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
	s.logger.Info("database connections closed")
}

// HealthCheck pings the database, bounded by timeout when positive.
func (s *Store) HealthCheck(ctx context.Context, timeout time.Duration) error {
	s.logger.Debug("pinging database")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := s.drv.DB().PingContext(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("database ping timed out", "timeout", timeout)
		}
		return storageUnavailable(s.dialect, err)
	}
	s.logger.Debug("database ping successful")
	return nil
}
