//go:build !historian_no_duckdb

package duck

import (
	"github.com/bruin-data/historian/pkg/ansisql"
	"github.com/jmoiron/sqlx"
	"github.com/marcboeker/go-duckdb"
	"github.com/shopspring/decimal"
)

// NewStore opens the DuckDB file of the connection. Transactions on the same file are serialized.
func NewStore(c Config) (*ansisql.Store, error) {
	path := c.ToDBConnectionURI()

	LockDatabase(path)
	defer UnlockDatabase(path)

	conn, err := sqlx.Open("duckdb", path)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	dialect := *ansisql.DuckDB
	dialect.Convert = convertValue

	return ansisql.NewStore(&lockingConnector{inner: ansisql.NewSQLXConnector(conn), path: path}, &dialect), nil
}

func convertValue(val any) any {
	if d, ok := val.(duckdb.Decimal); ok {
		if d.Value == nil {
			return nil
		}
		return decimal.NewFromBigInt(d.Value, -int32(d.Scale))
	}

	return val
}
