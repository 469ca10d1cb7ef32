package source

import (
	"io"
	"testing"
	"time"

	"github.com/bruin-data/historian/pkg/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTableReader(t *testing.T) {
	t.Parallel()

	rows := []record.Record{
		{"booking_id": int64(1), "amount": "10.25", "updated_at": "2024-01-01 10:00:00", "_loaded_at": time.Now()},
		{"booking_id": "not-a-number", "amount": "3", "updated_at": "2024-01-01 11:00:00"},
		{"booking_id": []byte("3"), "updated_at": time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
	}

	r := NewTableReader("warehouse.bookings", rows, bookingFields, zap.NewNop().Sugar())
	recs, err := ReadAll(r)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, int64(1), recs[0]["booking_id"])
	assert.Equal(t, "10.25", recs[0]["amount"].(interface{ String() string }).String())
	assert.NotContains(t, recs[0], "_loaded_at")

	assert.Equal(t, int64(3), recs[1]["booking_id"])
	assert.Nil(t, recs[1]["amount"])
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), recs[1]["updated_at"])

	assert.Equal(t, Stats{Rows: 3, Skipped: 1}, r.Stats())

	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
	require.NoError(t, r.Close())
}
