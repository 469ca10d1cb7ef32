package postgres

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
)

type Config struct {
	Username     string
	Password     string
	Host         string
	Port         int
	Database     string
	Schema       string
	PoolMaxConns int
	SslMode      string
}

// ToDBConnectionURI returns a connection URI to be used with the pgx package.
func (c Config) ToDBConnectionURI() string {
	port := c.Port
	if port == 0 {
		port = 5432
	}
	poolMaxConns := c.PoolMaxConns
	if poolMaxConns == 0 {
		poolMaxConns = 10
	}
	sslMode := c.SslMode
	if sslMode == "" {
		sslMode = "disable"
	}

	uri := fmt.Sprintf("postgres://%s@%s/%s?sslmode=%s&pool_max_conns=%d",
		url.UserPassword(c.Username, c.Password).String(),
		net.JoinHostPort(c.Host, strconv.Itoa(port)),
		c.Database,
		sslMode,
		poolMaxConns,
	)
	if c.Schema != "" {
		uri += "&search_path=" + url.QueryEscape(c.Schema)
	}

	return uri
}
