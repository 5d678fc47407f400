package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/redmonkez12/fmea-api/internal/logging"
)

const slowQueryThreshold = 200 * time.Millisecond

// NewBunDB wraps a postgres sql.DB in Bun
func NewBunDB(sqlDB *sql.DB) *bun.DB {
	return bun.NewDB(sqlDB, pgdialect.New())
}

// queryLogger reports failed and slow queries. Query text is only logged at
// debug level because it carries bound values such as emails.
type queryLogger struct {
	logger    *logging.Logger
	threshold time.Duration
}

var _ bun.QueryHook = (*queryLogger)(nil)

func (h *queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *queryLogger) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)

	switch {
	case event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows):
		h.logger.Warn("query failed", "operation", event.Operation(), "error", event.Err, "duration_ms", elapsed.Milliseconds())
	case elapsed >= h.threshold:
		h.logger.Warn("slow query", "operation", event.Operation(), "duration_ms", elapsed.Milliseconds())
	}
	h.logger.DebugContext(ctx, "query", "sql", event.Query)
}
