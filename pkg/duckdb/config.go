package duck

import "strings"

type Config struct {
	Path string
}

// ToDBConnectionURI returns the path handed to the duckdb driver.
func (c Config) ToDBConnectionURI() string {
	return strings.TrimPrefix(c.Path, "duckdb://")
}
