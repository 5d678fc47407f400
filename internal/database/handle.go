package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/fmea-api/internal/logging"
)

// Connector hands out the shared Bun DB. Repositories call it per operation.
type Connector interface {
	DB(ctx context.Context) (*bun.DB, error)
}

// ErrHandleClosed is returned by Handle.DB after Close
var ErrHandleClosed = errors.New("database handle closed")

// Handle owns the process-wide connection pool.
//
// The pool is opened lazily on the first DB call and reused afterwards. A
// failed attempt is not cached: the next call tries again. Migrations run once,
// right after the first successful connect.
type Handle struct {
	dsn     string
	migrate bool
	logger  *logging.Logger

	openDB    func(dsn string) (*sql.DB, error)
	migrateFn func(ctx context.Context, db *sql.DB) error

	mu     sync.Mutex
	db     *bun.DB
	closed bool
}

// NewHandle creates a lazily connecting handle for the given postgres DSN
func NewHandle(dsn string, migrate bool, logger *logging.Logger) *Handle {
	return &Handle{
		dsn:       dsn,
		migrate:   migrate,
		logger:    logger,
		openDB:    openPostgres,
		migrateFn: Migrate,
	}
}

// NewHandleFromDB wraps an already connected Bun DB
func NewHandleFromDB(db *bun.DB) *Handle {
	return &Handle{db: db}
}

// DB returns the shared Bun DB, connecting on first use
func (h *Handle) DB(ctx context.Context) (*bun.DB, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHandleClosed
	}
	if h.db != nil {
		return h.db, nil
	}

	sqlDB, err := h.openDB(h.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if h.migrate {
		if err := h.migrateFn(ctx, sqlDB); err != nil {
			sqlDB.Close()
			return nil, err
		}
	}

	h.db = NewBunDB(sqlDB)
	if h.logger != nil {
		h.db.AddQueryHook(&queryLogger{logger: h.logger, threshold: slowQueryThreshold})
		h.logger.Info("database connection established", "migrated", h.migrate)
	}

	return h.db, nil
}

// Close releases the pool. Later DB calls fail with ErrHandleClosed.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	if h.db == nil {
		return nil
	}

	err := h.db.Close()
	h.db = nil
	return err
}

func openPostgres(dsn string) (*sql.DB, error) {
	return sql.Open("postgres", dsn)
}
