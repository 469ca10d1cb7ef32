package ansisql

import (
	"strings"

	"github.com/bruin-data/historian/pkg/record"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// Dialect captures the differences between the supported databases that matter for the generated statements.
type Dialect struct {
	Name string
	// BindType is one of the sqlx bind types; statements are written with `?` and rebound before execution.
	BindType int
	Types    map[record.ColumnType]string
	// UpperSchema uppercases schema names in CREATE SCHEMA statements.
	UpperSchema bool
	// Convert maps driver specific values to types record.Coerce understands. Optional.
	Convert func(v any) any
}

var (
	DuckDB = &Dialect{
		Name:     "duckdb",
		BindType: sqlx.QUESTION,
		Types: map[record.ColumnType]string{
			record.TypeString:    "VARCHAR",
			record.TypeInteger:   "BIGINT",
			record.TypeFloat:     "DOUBLE",
			record.TypeDecimal:   "DECIMAL(38, 9)",
			record.TypeBoolean:   "BOOLEAN",
			record.TypeTimestamp: "TIMESTAMP",
			record.TypeDate:      "DATE",
		},
	}

	Postgres = &Dialect{
		Name:     "postgres",
		BindType: sqlx.DOLLAR,
		Types: map[record.ColumnType]string{
			record.TypeString:    "TEXT",
			record.TypeInteger:   "BIGINT",
			record.TypeFloat:     "DOUBLE PRECISION",
			record.TypeDecimal:   "NUMERIC(38, 9)",
			record.TypeBoolean:   "BOOLEAN",
			record.TypeTimestamp: "TIMESTAMP",
			record.TypeDate:      "DATE",
		},
	}

	Snowflake = &Dialect{
		Name:        "snowflake",
		BindType:    sqlx.QUESTION,
		UpperSchema: true,
		Types: map[record.ColumnType]string{
			record.TypeString:    "VARCHAR",
			record.TypeInteger:   "NUMBER(38, 0)",
			record.TypeFloat:     "FLOAT",
			record.TypeDecimal:   "NUMBER(38, 9)",
			record.TypeBoolean:   "BOOLEAN",
			record.TypeTimestamp: "TIMESTAMP_NTZ",
			record.TypeDate:      "DATE",
		},
	}

	MySQL = &Dialect{
		Name:     "mysql",
		BindType: sqlx.QUESTION,
		Types: map[record.ColumnType]string{
			record.TypeString:    "VARCHAR(1024)",
			record.TypeInteger:   "BIGINT",
			record.TypeFloat:     "DOUBLE",
			record.TypeDecimal:   "DECIMAL(38, 9)",
			record.TypeBoolean:   "BOOLEAN",
			record.TypeTimestamp: "DATETIME(6)",
			record.TypeDate:      "DATE",
		},
	}
)

var dialects = map[string]*Dialect{
	DuckDB.Name:    DuckDB,
	Postgres.Name:  Postgres,
	Snowflake.Name: Snowflake,
	MySQL.Name:     MySQL,
}

// DialectNames lists the dialects that DDL can be rendered for.
func DialectNames() []string {
	return []string{DuckDB.Name, Postgres.Name, Snowflake.Name, MySQL.Name}
}

func GetDialect(name string) (*Dialect, error) {
	d, ok := dialects[strings.ToLower(name)]
	if !ok {
		return nil, errors.Errorf("unknown dialect '%s', available dialects are: %s", name, strings.Join(DialectNames(), ", "))
	}
	return d, nil
}

// ColumnType returns the database type for the given column type.
func (d *Dialect) ColumnType(t record.ColumnType) (string, error) {
	dbType, ok := d.Types[t]
	if !ok {
		return "", errors.Errorf("column type '%s' is not supported by %s", t, d.Name)
	}
	return dbType, nil
}

func (d *Dialect) Rebind(query string) string {
	return sqlx.Rebind(d.BindType, query)
}

func (d *Dialect) convert(v any) any {
	if d.Convert == nil {
		return v
	}
	return d.Convert(v)
}
