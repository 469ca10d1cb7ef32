package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked up in the project directory.
const DefaultFileName = ".historian.yml"

type Environment struct {
	Connections *Connections `yaml:"connections" json:"connections"`
}

// GetConnection returns a pointer to the typed connection with the given name.
func (e *Environment) GetConnection(name string) (any, error) {
	conn, ok := e.Connections.byName()[name]
	if !ok {
		return nil, ConnectionNotFoundError(name, e.Connections.names())
	}
	return conn, nil
}

type Config struct {
	path string

	DefaultEnvironmentName  string                 `yaml:"default_environment" json:"default_environment"`
	SelectedEnvironmentName string                 `yaml:"-" json:"-"`
	SelectedEnvironment     *Environment           `yaml:"-" json:"-"`
	Environments            map[string]Environment `yaml:"environments" json:"environments" validate:"dive"`
}

func (c *Config) Path() string {
	return c.path
}

func (c *Config) SelectEnvironment(name string) error {
	e, ok := c.Environments[name]
	if !ok {
		return fmt.Errorf("environment '%s' not found in the configuration file", name)
	}

	c.SelectedEnvironment = &e
	c.SelectedEnvironmentName = name
	return nil
}

func (c *Config) GetEnvironmentNames() []string {
	names := lo.Keys(c.Environments)
	sort.Strings(names)
	return names
}

// Empty returns a configuration without connections, used when the project has no configuration file.
func Empty() *Config {
	env := Environment{Connections: &Connections{}}
	return &Config{
		DefaultEnvironmentName:  "default",
		SelectedEnvironmentName: "default",
		SelectedEnvironment:     &env,
		Environments:            map[string]Environment{"default": env},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadFromFile reads the configuration, expanding `${VAR}` references from the process environment before parsing.
func LoadFromFile(fs afero.Fs, path string) (*Config, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}

	expanded, err := expandEnv(string(raw))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to expand environment variables in '%s'", path)
	}

	var config Config
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, errors.Wrapf(err, "failed to parse '%s'", path)
	}
	config.path = path

	if err := config.validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid configuration in '%s'", path)
	}

	if config.DefaultEnvironmentName == "" {
		config.DefaultEnvironmentName = "default"
	}
	e := config.Environments[config.DefaultEnvironmentName]
	config.SelectedEnvironment = &e
	config.SelectedEnvironmentName = config.DefaultEnvironmentName

	return &config, nil
}

func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	envNames := lo.Keys(c.Environments)
	sort.Strings(envNames)
	for _, name := range envNames {
		env := c.Environments[name]
		duplicates := lo.FindDuplicates(env.Connections.names())
		if len(duplicates) > 0 {
			return errors.Errorf("environment '%s' has duplicate connection names: %s", name, strings.Join(duplicates, ", "))
		}
	}

	return nil
}

var envReference = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func expandEnv(content string) (string, error) {
	var missing []string
	expanded := envReference.ReplaceAllStringFunc(content, func(ref string) string {
		name := envReference.FindStringSubmatch(ref)[1]
		value, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
			return ref
		}
		return value
	})

	if len(missing) > 0 {
		return "", errors.Errorf("undefined variables: %s", strings.Join(lo.Uniq(missing), ", "))
	}
	return expanded, nil
}
