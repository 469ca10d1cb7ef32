package store

import (
	"context"
	"testing"
	"time"

	"github.com/bruin-data/historian/pkg/record"
	"github.com/bruin-data/historian/pkg/scd2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t1        = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2        = t1.Add(time.Hour)
	farFuture = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
)

func bookingsTable(kind Kind) *Table {
	return &Table{
		Name:            "raw.bookings",
		Kind:            kind,
		Key:             []string{"booking_id"},
		ChangeTimestamp: "updated_at",
		Columns: []record.Field{
			{Name: "booking_id", Type: record.TypeInteger},
			{Name: "updated_at", Type: record.TypeTimestamp},
			{Name: "amount", Type: record.TypeInteger},
		},
	}
}

func TestTable(t *testing.T) {
	t.Parallel()

	tbl := bookingsTable(KindHistory)
	assert.Equal(t, "raw", tbl.Schema())
	assert.Equal(t, []string{"booking_id", "updated_at", "amount"}, tbl.ColumnNames())
	assert.Len(t, tbl.AllColumns(), 7)
	assert.Len(t, bookingsTable(KindCurrent).AllColumns(), 4)
	assert.Equal(t, "", (&Table{Name: "bookings"}).Schema())

	assert.True(t, IsReserved("_VALID_FROM"))
	assert.False(t, IsReserved("valid_from"))
}

func TestMemory_Upsert(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()
	tbl := bookingsTable(KindCurrent)

	tx, err := m.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.EnsureTables(ctx, tbl))

	_, found, err := tx.Watermark(ctx, tbl)
	require.NoError(t, err)
	assert.False(t, found)

	n, err := tx.Upsert(ctx, tbl, []record.Record{
		{"booking_id": int64(1), "updated_at": t1, "amount": int64(100), "extra": "dropped"},
		{"booking_id": int64(2), "updated_at": t1, "amount": int64(5)},
	}, t2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, tx.Commit())

	tx, err = m.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.Upsert(ctx, tbl, []record.Record{{"booking_id": int64(1), "updated_at": t2, "amount": int64(150)}}, t2)
	require.NoError(t, err)

	w, found, err := tx.Watermark(ctx, tbl)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, t2, w)
	require.NoError(t, tx.Commit())

	rows := m.Rows(tbl.Name)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(150), rows[0]["amount"])
	assert.Equal(t, t2, rows[0][ColumnLoadedAt])
	assert.NotContains(t, rows[0], "extra")
}

func TestMemory_RollbackDiscardsWrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()
	tbl := bookingsTable(KindHistory)

	tx, err := m.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.EnsureTables(ctx, tbl))
	require.NoError(t, tx.Commit())

	tx, err = m.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertVersion(ctx, tbl, &scd2.Version{
		Key:        "1",
		Record:     record.Record{"booking_id": int64(1), "updated_at": t1, "amount": int64(100)},
		ValidFrom:  t1,
		ValidUntil: farFuture,
		IsCurrent:  true,
	}))
	require.NoError(t, tx.Rollback())

	assert.Empty(t, m.Versions(tbl.Name))
	require.ErrorIs(t, tx.Commit(), ErrTxDone)
}

func TestMemory_Versions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()
	tbl := bookingsTable(KindHistory)

	first := &scd2.Version{
		Key:        "1",
		Record:     record.Record{"booking_id": int64(1), "updated_at": t1, "amount": int64(100)},
		ValidFrom:  t1,
		ValidUntil: farFuture,
		IsCurrent:  true,
		Hash:       "a",
	}
	second := &scd2.Version{
		Key:        "1",
		Record:     record.Record{"booking_id": int64(1), "updated_at": t2, "amount": int64(150)},
		ValidFrom:  t2,
		ValidUntil: farFuture,
		IsCurrent:  true,
		Hash:       "b",
	}

	tx, err := m.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.EnsureTables(ctx, tbl))
	require.NoError(t, tx.InsertVersion(ctx, tbl, first))
	require.Error(t, tx.InsertVersion(ctx, tbl, second), "two current versions of one key")
	require.NoError(t, tx.CloseVersion(ctx, tbl, first, t2))
	require.Error(t, tx.CloseVersion(ctx, tbl, first, t2), "already closed")
	require.NoError(t, tx.InsertVersion(ctx, tbl, second))

	current, err := tx.CurrentVersions(ctx, tbl)
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, "b", current["1"].Hash)

	all, err := tx.Scan(ctx, tbl, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, t1, all[0][ColumnValidFrom])
	assert.Equal(t, t2, all[0][ColumnValidUntil])
	assert.Equal(t, false, all[0][ColumnIsCurrent])

	onlyCurrent, err := tx.Scan(ctx, tbl, true)
	require.NoError(t, err)
	require.Len(t, onlyCurrent, 1)
	assert.Equal(t, int64(150), onlyCurrent[0]["amount"])

	w, found, err := tx.Watermark(ctx, tbl)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, t2, w)
	require.NoError(t, tx.Commit())

	require.NoError(t, scd2.CheckPartition(m.Versions(tbl.Name), farFuture))
}

func TestMemory_MissingTable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tx, err := NewMemory().Begin(ctx)
	require.NoError(t, err)

	_, _, err = tx.Watermark(ctx, bookingsTable(KindCurrent))
	require.ErrorContains(t, err, "does not exist")
}
