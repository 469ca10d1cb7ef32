package record

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		record    Record
		fields    []string
		want      Key
		wantField string
	}{
		{
			name:   "single field",
			record: Record{"id": int64(1), "name": "a"},
			fields: []string{"id"},
			want:   Key("1"),
		},
		{
			name:   "composite key keeps declared order",
			record: Record{"id": int64(1), "region": "eu"},
			fields: []string{"region", "id"},
			want:   Key("eu\x1f1"),
		},
		{
			name:      "missing field",
			record:    Record{"name": "a"},
			fields:    []string{"id"},
			wantField: "id",
		},
		{
			name:      "null field",
			record:    Record{"id": nil},
			fields:    []string{"id"},
			wantField: "id",
		},
		{
			name:      "empty string field",
			record:    Record{"id": "1", "region": ""},
			fields:    []string{"id", "region"},
			wantField: "region",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := KeyOf(tt.record, tt.fields)
			if tt.wantField != "" {
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, tt.wantField, verr.Field)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKey_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "eu|1", Key("eu\x1f1").String())
}

func TestTimestamp(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	got, err := Timestamp(Record{"ts": ts}, "ts")
	require.NoError(t, err)
	assert.Equal(t, ts, got)

	got, err = Timestamp(Record{"ts": "2024-01-02 03:04:05"}, "ts")
	require.NoError(t, err)
	assert.Equal(t, ts, got)

	_, err = Timestamp(Record{"ts": "not a date"}, "ts")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "ts", verr.Field)

	_, err = Timestamp(Record{}, "ts")
	require.ErrorAs(t, err, &verr)

	_, err = Timestamp(Record{"ts": 12}, "ts")
	require.ErrorAs(t, err, &verr)
}

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	err := &ValidationError{Field: "id", Reason: "missing business key"}
	assert.Equal(t, "id: missing business key", err.Error())
	assert.Equal(t, "row 4: id: missing business key", err.AtRow(4).Error())
	assert.Equal(t, 0, err.Row)
}

func TestRecord_Clone(t *testing.T) {
	t.Parallel()

	r := Record{"a": 1}
	c := r.Clone()
	c["a"] = 2
	assert.Equal(t, 1, r["a"])
}

func TestHash(t *testing.T) {
	t.Parallel()

	base := Record{"id": int64(1), "amount": decimal.RequireFromString("100.50"), "name": "x"}

	h1 := Hash(base, []string{"amount", "name"})
	assert.Equal(t, h1, Hash(base.Clone(), []string{"amount", "name"}))

	changed := base.Clone()
	changed["amount"] = decimal.RequireFromString("150")
	assert.NotEqual(t, h1, Hash(changed, []string{"amount", "name"}))

	untracked := base.Clone()
	untracked["id"] = int64(2)
	assert.Equal(t, h1, Hash(untracked, []string{"amount", "name"}))

	nullName := base.Clone()
	nullName["name"] = nil
	emptyName := base.Clone()
	emptyName["name"] = ""
	assert.NotEqual(t, Hash(nullName, []string{"name"}), Hash(emptyName, []string{"name"}))

	assert.NotEqual(t, Hash(Record{"a": "1", "b": "2"}, []string{"a", "b"}), Hash(Record{"a": "12", "b": ""}, []string{"a", "b"}))
}
