package mysql

import (
	"github.com/bruin-data/historian/pkg/ansisql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// NewStore connects to the MySQL database of the connection. MySQL commits implicitly on DDL, tables are provisioned
// before any rows are written in a transaction.
func NewStore(c Config) (*ansisql.Store, error) {
	conn, err := sqlx.Connect("mysql", c.ToDBConnectionURI())
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to mysql")
	}

	return ansisql.NewStore(ansisql.NewSQLXConnector(conn), ansisql.MySQL), nil
}
