package ansisql

import (
	"context"
	"sync"

	"github.com/bruin-data/historian/pkg/store"
	"github.com/pkg/errors"
)

type SchemaCreator struct {
	schemaNameCache *sync.Map
}

func NewSchemaCreator() *SchemaCreator {
	return &SchemaCreator{
		schemaNameCache: &sync.Map{},
	}
}

type queryRunner interface {
	Exec(ctx context.Context, query string, args ...any) (int64, error)
}

// CreateSchemaIfNotExist provisions the schema of the table once per process. It returns the statement it ran, empty
// when the table is unqualified or the schema was already ensured.
func (sc *SchemaCreator) CreateSchemaIfNotExist(ctx context.Context, qr queryRunner, d *Dialect, t *store.Table) (string, error) {
	createQuery := CreateSchemaQuery(d, t)
	if createQuery == "" {
		return "", nil
	}

	if _, exists := sc.schemaNameCache.Load(createQuery); exists {
		return "", nil
	}
	if _, err := qr.Exec(ctx, createQuery); err != nil {
		return "", errors.Wrapf(err, "failed to create or ensure schema for table '%s'", t.Name)
	}
	sc.schemaNameCache.Store(createQuery, true)

	return createQuery, nil
}

// Forget drops cached schemas, used when the transaction that created them was rolled back.
func (sc *SchemaCreator) Forget(queries ...string) {
	for _, q := range queries {
		sc.schemaNameCache.Delete(q)
	}
}
