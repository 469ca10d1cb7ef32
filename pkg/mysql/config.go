package mysql

import (
	"net"
	"strconv"
	"time"

	driver "github.com/go-sql-driver/mysql"
)

type Config struct {
	Username string
	Password string
	Host     string
	Port     int
	Database string
}

// ToDBConnectionURI returns the go-sql-driver DSN. Timestamps are parsed into time.Time in UTC.
func (c Config) ToDBConnectionURI() string {
	if c.Port == 0 {
		c.Port = 3306
	}

	cfg := driver.NewConfig()
	cfg.User = c.Username
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	cfg.DBName = c.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	return cfg.FormatDSN()
}
