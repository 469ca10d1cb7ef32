package snowflake

import (
	"io"

	"github.com/bruin-data/historian/pkg/ansisql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/snowflakedb/gosnowflake"
)

// NewStore connects to the Snowflake account of the connection.
func NewStore(c *Config) (*ansisql.Store, error) {
	dsn, err := c.DSN()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create DSN")
	}

	gosnowflake.GetLogger().SetOutput(io.Discard)

	db, err := sqlx.Connect("snowflake", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to snowflake")
	}

	return ansisql.NewStore(ansisql.NewSQLXConnector(db), ansisql.Snowflake), nil
}
