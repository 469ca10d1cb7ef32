package postgres

import (
	"context"

	"github.com/bruin-data/historian/pkg/ansisql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

type pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

type connector struct {
	pool pool
}

// NewStore opens a connection pool; the pool is shared by every transaction of the store.
func NewStore(ctx context.Context, c Config) (*ansisql.Store, error) {
	p, err := pgxpool.New(ctx, c.ToDBConnectionURI())
	if err != nil {
		return nil, err
	}

	return newStore(p), nil
}

func newStore(p pool) *ansisql.Store {
	return ansisql.NewStore(&connector{pool: p}, ansisql.Postgres)
}

//nolint:ireturn
func (c *connector) Begin(ctx context.Context) (ansisql.Conn, error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &conn{tx: tx}, nil
}

func (c *connector) Close() error {
	c.pool.Close()
	return nil
}

type conn struct {
	tx pgx.Tx
}

func (c *conn) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := c.tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (c *conn) Query(ctx context.Context, sql string, args ...any) (*ansisql.Rows, error) {
	rows, err := c.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := &ansisql.Rows{
		Columns: lo.Map(rows.FieldDescriptions(), func(f pgconn.FieldDescription, _ int) string { return f.Name }),
	}

	collected, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) ([]any, error) {
		return row.Values()
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to collect row values")
	}
	result.Values = collected

	return result, nil
}

func (c *conn) Commit(ctx context.Context) error {
	return c.tx.Commit(ctx)
}

func (c *conn) Rollback(ctx context.Context) error {
	return c.tx.Rollback(ctx)
}
