//go:build historian_no_duckdb

package duck

import (
	"errors"

	"github.com/bruin-data/historian/pkg/ansisql"
)

var errDuckDBNotSupported = errors.New("DuckDB support not available in this build")

func NewStore(c Config) (*ansisql.Store, error) {
	return nil, errDuckDBNotSupported
}
