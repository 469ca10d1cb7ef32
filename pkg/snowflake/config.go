package snowflake

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"

	"github.com/pkg/errors"
	"github.com/snowflakedb/gosnowflake"
)

type Config struct {
	Account    string
	Username   string
	Password   string
	Region     string
	Role       string
	Database   string
	Schema     string
	Warehouse  string
	PrivateKey string
}

func (c Config) DSN() (string, error) {
	snowflakeConfig := gosnowflake.Config{
		Account:   c.Account,
		User:      c.Username,
		Password:  c.Password,
		Region:    c.Region,
		Role:      c.Role,
		Database:  c.Database,
		Schema:    c.Schema,
		Warehouse: c.Warehouse,
	}

	if c.PrivateKey != "" {
		key, err := parsePrivateKey(c.PrivateKey)
		if err != nil {
			return "", err
		}
		snowflakeConfig.Authenticator = gosnowflake.AuthTypeJwt
		snowflakeConfig.PrivateKey = key
	}

	return gosnowflake.DSN(&snowflakeConfig)
}

func parsePrivateKey(pemKey string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil {
		return nil, errors.New("failed to decode the snowflake private key")
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse the snowflake private key")
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("the snowflake private key is not an RSA key")
	}
	return key, nil
}

func (c Config) IsValid() bool {
	return c.Account != "" && c.Username != "" && (c.Password != "" || c.PrivateKey != "")
}
