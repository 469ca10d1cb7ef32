package snowflake

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/snowflakedb/gosnowflake"
	"github.com/stretchr/testify/require"
)

func TestConfig_DSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		config Config
		want   gosnowflake.Config
	}{
		{
			name:   "password with region",
			config: Config{Account: "acme", Username: "loader", Password: "qwerty123", Region: "us-east-1"},
			want:   gosnowflake.Config{Account: "acme", User: "loader", Password: "qwerty123", Region: "us-east-1"},
		},
		{
			name: "warehouse, database and role",
			config: Config{
				Account:   "acme",
				Username:  "loader",
				Password:  "qwerty123",
				Role:      "HISTORIAN",
				Database:  "ANALYTICS",
				Schema:    "HISTORY",
				Warehouse: "INGEST_WH",
			},
			want: gosnowflake.Config{
				Account:   "acme",
				User:      "loader",
				Password:  "qwerty123",
				Role:      "HISTORIAN",
				Database:  "ANALYTICS",
				Schema:    "HISTORY",
				Warehouse: "INGEST_WH",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := tt.config.DSN()
			require.NoError(t, err)

			wantDsn, err := gosnowflake.DSN(&tt.want)
			require.NoError(t, err)
			require.Equal(t, wantDsn, got)
		})
	}
}

func generatePrivateKeyPEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)

	keyBytes, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, pem.Encode(&buf, &pem.Block{Type: "PRIVATE KEY", Bytes: keyBytes}))
	return buf.String()
}

func TestConfig_DSN_WithPrivateKey(t *testing.T) {
	t.Parallel()

	pemKey := generatePrivateKeyPEM(t)

	c := Config{
		Account:    "acme",
		Username:   "loader",
		Warehouse:  "INGEST_WH",
		PrivateKey: pemKey,
	}
	dsn, err := c.DSN()
	require.NoError(t, err)

	cfg, err := gosnowflake.ParseDSN(dsn)
	require.NoError(t, err)

	require.Equal(t, gosnowflake.AuthTypeJwt, cfg.Authenticator)
	require.Equal(t, "INGEST_WH", cfg.Warehouse)
	require.NotNil(t, cfg.PrivateKey)
}

func TestConfig_DSN_InvalidPrivateKey(t *testing.T) {
	t.Parallel()

	c := Config{
		Account:    "acme",
		Username:   "loader",
		PrivateKey: "not a key",
	}
	_, err := c.DSN()
	require.EqualError(t, err, "failed to decode the snowflake private key")
}

func TestConfig_IsValid(t *testing.T) {
	t.Parallel()

	require.True(t, Config{Account: "a", Username: "u", Password: "p"}.IsValid())
	require.True(t, Config{Account: "a", Username: "u", PrivateKey: "k"}.IsValid())
	require.False(t, Config{Account: "a", Username: "u"}.IsValid())
}
