package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// LoadEnvFile exports the variables of a dotenv file into the process environment. Variables that are already set
// win; a missing file is not an error.
func LoadEnvFile(fs afero.Fs, path string) error {
	exists, err := afero.Exists(fs, path)
	if err != nil || !exists {
		return err
	}

	content, err := afero.ReadFile(fs, path)
	if err != nil {
		return err
	}

	values, err := godotenv.Unmarshal(string(content))
	if err != nil {
		return errors.Wrapf(err, "failed to parse '%s'", path)
	}

	for k, v := range values {
		if _, ok := os.LookupEnv(k); ok {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return err
		}
	}

	return nil
}
