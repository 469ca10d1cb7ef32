package ansisql

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// SQLXConnector opens transactions on a database/sql driver.
type SQLXConnector struct {
	db *sqlx.DB
}

func NewSQLXConnector(db *sqlx.DB) *SQLXConnector {
	return &SQLXConnector{db: db}
}

//nolint:ireturn
func (c *SQLXConnector) Begin(ctx context.Context) (Conn, error) {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlxConn{tx: tx}, nil
}

func (c *SQLXConnector) Close() error {
	return c.db.Close()
}

type sqlxConn struct {
	tx *sqlx.Tx
}

func (c *sqlxConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := c.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (c *sqlxConn) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	rows, err := c.tx.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &Rows{Columns: columns}
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, err
		}
		result.Values = append(result.Values, values)
	}

	return result, rows.Err()
}

func (c *sqlxConn) Commit(_ context.Context) error {
	return c.tx.Commit()
}

func (c *sqlxConn) Rollback(_ context.Context) error {
	return c.tx.Rollback()
}
