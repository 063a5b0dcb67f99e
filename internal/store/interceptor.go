package store

import (
	"context"
	"database/sql"

	"go.uber.org/zap"
)

// QueryInterceptor wraps a *sql.DB so every statement executed through the
// store layer is visible at debug level without threading a logger through
// each store's methods.
type QueryInterceptor struct {
	db *sql.DB
}

func NewQueryInterceptor(db *sql.DB) *QueryInterceptor {
	return &QueryInterceptor{db: db}
}

func (q *QueryInterceptor) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	zap.S().Named("store").Debugw("query row", "sql", query, "args", args)
	return q.db.QueryRowContext(ctx, query, args...)
}

func (q *QueryInterceptor) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	zap.S().Named("store").Debugw("query", "sql", query, "args", args)
	return q.db.QueryContext(ctx, query, args...)
}

func (q *QueryInterceptor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	zap.S().Named("store").Debugw("exec", "sql", query, "args", args)
	return q.db.ExecContext(ctx, query, args...)
}

func (q *QueryInterceptor) Close() error {
	return q.db.Close()
}
