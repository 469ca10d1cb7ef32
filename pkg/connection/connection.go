package connection

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/bruin-data/historian/pkg/ansisql"
	"github.com/bruin-data/historian/pkg/config"
	duck "github.com/bruin-data/historian/pkg/duckdb"
	"github.com/bruin-data/historian/pkg/mysql"
	"github.com/bruin-data/historian/pkg/postgres"
	"github.com/bruin-data/historian/pkg/snowflake"
	"github.com/bruin-data/historian/pkg/store"
	errors2 "github.com/pkg/errors"
)

type opener func(ctx context.Context, details any) (store.Store, error)

// Manager opens stores lazily, one per connection name, and shares them between entities.
type Manager struct {
	environment *config.Environment
	open        opener

	mu     sync.Mutex
	stores map[string]store.Store
}

func NewManagerFromConfig(cm *config.Config) *Manager {
	return &Manager{
		environment: cm.SelectedEnvironment,
		open:        openStore,
		stores:      make(map[string]store.Store),
	}
}

//nolint:ireturn
func (m *Manager) GetStore(ctx context.Context, name string) (store.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.stores[name]; ok {
		return s, nil
	}

	details, err := m.environment.GetConnection(name)
	if err != nil {
		return nil, err
	}

	s, err := m.open(ctx, details)
	if err != nil {
		return nil, errors2.Wrapf(err, "failed to open connection '%s'", name)
	}

	m.stores[name] = s
	return s, nil
}

// Close closes every store opened by the manager.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.stores))
	for name := range m.stores {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if err := m.stores[name].Close(); err != nil {
			errs = append(errs, errors2.Wrapf(err, "failed to close connection '%s'", name))
		}
		delete(m.stores, name)
	}
	return errors.Join(errs...)
}

//nolint:ireturn
func openStore(ctx context.Context, details any) (store.Store, error) {
	switch c := details.(type) {
	case *config.DuckDBConnection:
		return opened(duck.NewStore(duck.Config{Path: c.Path}))
	case *config.PostgresConnection:
		return opened(postgres.NewStore(ctx, postgres.Config{
			Username:     c.Username,
			Password:     c.Password,
			Host:         c.Host,
			Port:         c.Port,
			Database:     c.Database,
			Schema:       c.Schema,
			PoolMaxConns: c.PoolMaxConns,
			SslMode:      c.SslMode,
		}))
	case *config.SnowflakeConnection:
		return opened(snowflake.NewStore(&snowflake.Config{
			Account:    c.Account,
			Username:   c.Username,
			Password:   c.Password,
			Region:     c.Region,
			Role:       c.Role,
			Database:   c.Database,
			Schema:     c.Schema,
			Warehouse:  c.Warehouse,
			PrivateKey: c.PrivateKey,
		}))
	case *config.MySQLConnection:
		return opened(mysql.NewStore(mysql.Config{
			Username: c.Username,
			Password: c.Password,
			Host:     c.Host,
			Port:     c.Port,
			Database: c.Database,
		}))
	default:
		return nil, errors2.Errorf("unsupported connection type %T", details)
	}
}

//nolint:ireturn
func opened(s *ansisql.Store, err error) (store.Store, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
