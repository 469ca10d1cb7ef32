package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/bruin-data/historian/pkg/record"
	"github.com/bruin-data/historian/pkg/scd2"
	"github.com/bruin-data/historian/pkg/store"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orders = &store.Table{
	Name:            "public.orders",
	Kind:            store.KindCurrent,
	Key:             []string{"order_id"},
	ChangeTimestamp: "updated_at",
	Columns: []record.Field{
		{Name: "order_id", Type: record.TypeString},
		{Name: "amount", Type: record.TypeDecimal},
		{Name: "updated_at", Type: record.TypeTimestamp},
	},
}

var customers = &store.Table{
	Name:            "customers",
	Kind:            store.KindHistory,
	Key:             []string{"id"},
	ChangeTimestamp: "updated_at",
	Columns: []record.Field{
		{Name: "id", Type: record.TypeInteger},
		{Name: "updated_at", Type: record.TypeTimestamp},
	},
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()

	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	require.NoError(t, err)
	return mock
}

func TestStore_UpsertUsesDollarPlaceholders(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	loadedAt := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	updatedAt := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM public.orders WHERE order_id = $1").
		WithArgs("o-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("INSERT INTO public.orders (order_id, amount, updated_at, _loaded_at) VALUES ($1, $2, $3, $4)").
		WithArgs("o-1", pgxmock.AnyArg(), updatedAt, loadedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	s := newStore(mock)
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)

	n, err := tx.Upsert(context.Background(), orders, []record.Record{
		{"order_id": "o-1", "amount": decimal.RequireFromString("10.5"), "updated_at": updatedAt},
	}, loadedAt)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Watermark(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT MAX(updated_at) FROM public.orders").
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow(ts))
	mock.ExpectRollback()

	s := newStore(mock)
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)

	got, found, err := tx.Watermark(context.Background(), orders)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, ts, got)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Scan(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT order_id, amount, updated_at, _loaded_at FROM public.orders ORDER BY order_id").
		WillReturnRows(pgxmock.NewRows([]string{"order_id", "amount", "updated_at", "_loaded_at"}).
			AddRow("o-1", "10.500000000", ts, ts))

	s := newStore(mock)
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)

	rows, err := tx.Scan(context.Background(), orders, false)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "o-1", rows[0]["order_id"])
	assert.True(t, decimal.RequireFromString("10.5").Equal(rows[0]["amount"].(decimal.Decimal)))
	assert.Equal(t, ts, rows[0][store.ColumnLoadedAt])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CloseVersionRequiresExactlyOneRow(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE customers SET _valid_until = $1, _is_current = FALSE WHERE id = $2 AND _is_current = TRUE AND _valid_from = $3").
		WithArgs(until, int64(7), from).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	s := newStore(mock)
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)

	err = tx.CloseVersion(context.Background(), customers, &scd2.Version{
		Key:       "7",
		Record:    record.Record{"id": int64(7)},
		ValidFrom: from,
	}, until)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed 0")

	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}
