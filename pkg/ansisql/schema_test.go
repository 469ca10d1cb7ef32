package ansisql

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bruin-data/historian/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDB struct {
	mock.Mock
}

func (m *mockDB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	called := m.Called(ctx, query)
	return 0, called.Error(0)
}

func TestSchemaCreator_CreateSchemaIfNotExist(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		dialect       *Dialect
		table         *store.Table
		mockSetup     func(mock *mockDB, cache *sync.Map)
		want          string
		expectedError string
	}{
		{
			name:    "schema already exists in cache",
			dialect: DuckDB,
			table:   &store.Table{Name: "raw.customers"},
			mockSetup: func(mock *mockDB, cache *sync.Map) {
				cache.Store("CREATE SCHEMA IF NOT EXISTS raw", true)
			},
		},
		{
			name:    "schema does not exist, create successfully",
			dialect: DuckDB,
			table:   &store.Table{Name: "raw.customers"},
			mockSetup: func(db *mockDB, cache *sync.Map) {
				db.On("Exec", mock.Anything, "CREATE SCHEMA IF NOT EXISTS raw").Return(nil)
			},
			want: "CREATE SCHEMA IF NOT EXISTS raw",
		},
		{
			name:    "snowflake schemas are uppercased",
			dialect: Snowflake,
			table:   &store.Table{Name: "raw.customers"},
			mockSetup: func(db *mockDB, cache *sync.Map) {
				db.On("Exec", mock.Anything, "CREATE SCHEMA IF NOT EXISTS RAW").Return(nil)
			},
			want: "CREATE SCHEMA IF NOT EXISTS RAW",
		},
		{
			name:    "schema creation fails",
			dialect: DuckDB,
			table:   &store.Table{Name: "raw.customers"},
			mockSetup: func(db *mockDB, cache *sync.Map) {
				db.On("Exec", mock.Anything, "CREATE SCHEMA IF NOT EXISTS raw").
					Return(errors.New("creation failed"))
			},
			expectedError: "failed to create or ensure schema for table 'raw.customers': creation failed",
		},
		{
			name:      "unqualified table name",
			dialect:   DuckDB,
			table:     &store.Table{Name: "customers"},
			mockSetup: func(mock *mockDB, cache *sync.Map) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cache := &sync.Map{}
			creator := SchemaCreator{
				schemaNameCache: cache,
			}

			db := new(mockDB)
			tt.mockSetup(db, cache)

			got, err := creator.CreateSchemaIfNotExist(context.Background(), db, tt.dialect, tt.table)
			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			db.AssertExpectations(t)
		})
	}
}

func TestSchemaCreator_Forget(t *testing.T) {
	t.Parallel()

	db := new(mockDB)
	db.On("Exec", mock.Anything, "CREATE SCHEMA IF NOT EXISTS raw").Return(nil).Twice()

	creator := NewSchemaCreator()
	table := &store.Table{Name: "raw.customers"}

	created, err := creator.CreateSchemaIfNotExist(context.Background(), db, DuckDB, table)
	require.NoError(t, err)

	creator.Forget(created)

	_, err = creator.CreateSchemaIfNotExist(context.Background(), db, DuckDB, table)
	require.NoError(t, err)
	db.AssertExpectations(t)
}
