package mysql

import (
	"testing"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_ToDBConnectionURI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		c        Config
		wantAddr string
	}{
		{
			name: "explicit port",
			c: Config{
				Username: "user",
				Password: "password",
				Host:     "localhost",
				Port:     3307,
				Database: "test",
			},
			wantAddr: "localhost:3307",
		},
		{
			name: "default port",
			c: Config{
				Username: "user",
				Password: "password",
				Host:     "db.internal",
				Database: "test",
			},
			wantAddr: "db.internal:3306",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			parsed, err := driver.ParseDSN(tt.c.ToDBConnectionURI())
			require.NoError(t, err)
			assert.Equal(t, "user", parsed.User)
			assert.Equal(t, "password", parsed.Passwd)
			assert.Equal(t, "tcp", parsed.Net)
			assert.Equal(t, tt.wantAddr, parsed.Addr)
			assert.Equal(t, "test", parsed.DBName)
			assert.True(t, parsed.ParseTime)
			assert.Equal(t, time.UTC, parsed.Loc)
		})
	}
}
