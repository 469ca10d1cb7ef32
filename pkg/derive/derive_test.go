package derive

import (
	"testing"

	"github.com/bruin-data/historian/pkg/record"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var listingFields = []record.Field{
	{Name: "id", Type: record.TypeInteger},
	{Name: "price", Type: record.TypeDecimal},
	{Name: "minimum_nights", Type: record.TypeInteger},
	{Name: "room_type", Type: record.TypeString},
}

func TestMultiply(t *testing.T) {
	t.Parallel()

	got := Multiply(2, decimal.NewFromInt(3), decimal.NewFromInt(4))
	assert.Equal(t, "12.00", got.StringFixed(2))
	assert.True(t, got.Equal(Multiply(2, decimal.NewFromInt(3), decimal.NewFromInt(4))))

	assert.Equal(t, "1.13", Multiply(2, decimal.RequireFromString("0.75"), decimal.RequireFromString("1.5")).StringFixed(2))
	assert.Equal(t, "-1.13", Multiply(2, decimal.RequireFromString("-0.75"), decimal.RequireFromString("1.5")).StringFixed(2))
	assert.Equal(t, "0.00", Multiply(2).StringFixed(2))
}

func TestBucket(t *testing.T) {
	t.Parallel()

	thresholds := []Threshold{
		{Below: decimal.NewFromInt(100), Label: "low"},
		{Below: decimal.NewFromInt(200), Label: "medium"},
	}

	tests := []struct {
		value int64
		want  string
	}{
		{value: 50, want: "low"},
		{value: 150, want: "medium"},
		{value: 500, want: "high"},
		{value: 100, want: "medium"},
		{value: 200, want: "high"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Bucket(decimal.NewFromInt(tt.value), thresholds, "high"), "value %d", tt.value)
	}
}

func TestCompile_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		defs []Definition
		err  string
	}{
		{
			name: "unknown kind",
			defs: []Definition{{Name: "x", Type: "sum"}},
			err:  "unknown derivation type 'sum'",
		},
		{
			name: "missing kind",
			defs: []Definition{{Name: "x"}},
			err:  "missing derivation type",
		},
		{
			name: "collides with column",
			defs: []Definition{{Name: "price", Type: KindRound, Params: map[string]any{"input": "price"}}},
			err:  "collides with an existing column",
		},
		{
			name: "unknown input",
			defs: []Definition{{Name: "x", Type: KindMultiply, Params: map[string]any{"inputs": []any{"price", "nope"}}}},
			err:  "unknown input 'nope'",
		},
		{
			name: "negative precision",
			defs: []Definition{{Name: "x", Type: KindMultiply, Params: map[string]any{"inputs": []any{"price"}, "precision": -1}}},
			err:  "precision must not be negative",
		},
		{
			name: "unknown parameter",
			defs: []Definition{{Name: "x", Type: KindRound, Params: map[string]any{"input": "price", "digits": 2}}},
			err:  "invalid parameters",
		},
		{
			name: "bucket without thresholds",
			defs: []Definition{{Name: "x", Type: KindBucket, Params: map[string]any{"input": "price"}}},
			err:  "at least one threshold is required",
		},
		{
			name: "bucket with bad threshold",
			defs: []Definition{{Name: "x", Type: KindBucket, Params: map[string]any{
				"input":      "price",
				"thresholds": []any{map[string]any{"below": "abc", "label": "low"}},
			}}},
			err: "invalid parameters",
		},
		{
			name: "expression referencing unknown field",
			defs: []Definition{{Name: "x", Type: KindExpression, Params: map[string]any{"expression": "nights > 3", "returns": "boolean"}}},
			err:  "failed to compile expression",
		},
		{
			name: "expression with unknown return type",
			defs: []Definition{{Name: "x", Type: KindExpression, Params: map[string]any{"expression": "price > 3", "returns": "blob"}}},
			err:  "unknown return type 'blob'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Compile(tt.defs, listingFields)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}
}

func TestSet_Apply(t *testing.T) {
	t.Parallel()

	set, err := Compile([]Definition{
		{Name: "total", Type: KindMultiply, Params: map[string]any{"inputs": []any{"price", "minimum_nights"}, "precision": 2}},
		{Name: "price_bucket", Type: KindBucket, Params: map[string]any{
			"input": "total",
			"thresholds": []any{
				map[string]any{"below": 100, "label": "low"},
				map[string]any{"below": "200", "label": "medium"},
			},
			"default": "high",
		}},
		{Name: "is_long_stay", Type: KindExpression, Params: map[string]any{"expression": "minimum_nights >= 30", "returns": "boolean"}},
		{Name: "rounded", Type: KindRound, Params: map[string]any{"input": "price", "precision": 0}},
	}, listingFields)
	require.NoError(t, err)
	require.Equal(t, 4, set.Len())

	assert.Equal(t, []record.Field{
		{Name: "total", Type: record.TypeDecimal},
		{Name: "price_bucket", Type: record.TypeString},
		{Name: "is_long_stay", Type: record.TypeBoolean},
		{Name: "rounded", Type: record.TypeDecimal},
	}, set.Fields())

	r := record.Record{"id": int64(1), "price": decimal.RequireFromString("37.5"), "minimum_nights": int64(4)}
	require.NoError(t, set.Apply(r))

	assert.Equal(t, "150.00", r["total"].(decimal.Decimal).StringFixed(2))
	assert.Equal(t, "medium", r["price_bucket"])
	assert.Equal(t, false, r["is_long_stay"])
	assert.Equal(t, "38", r["rounded"].(decimal.Decimal).String())

	again := record.Record{"id": int64(1), "price": decimal.RequireFromString("37.5"), "minimum_nights": int64(4)}
	require.NoError(t, set.Apply(again))
	assert.Equal(t, r, again)
}

func TestSet_ApplyNulls(t *testing.T) {
	t.Parallel()

	set, err := Compile([]Definition{
		{Name: "total", Type: KindMultiply, Params: map[string]any{"inputs": []any{"price", "minimum_nights"}, "precision": 2}},
		{Name: "price_bucket", Type: KindBucket, Params: map[string]any{
			"input":      "price",
			"thresholds": []any{map[string]any{"below": 100, "label": "low"}},
			"default":    "high",
		}},
		{Name: "is_long_stay", Type: KindExpression, Params: map[string]any{"expression": "minimum_nights >= 30", "returns": "boolean"}},
	}, listingFields)
	require.NoError(t, err)

	r := record.Record{"id": int64(1), "price": nil, "minimum_nights": nil}
	require.NoError(t, set.Apply(r))
	assert.Nil(t, r["total"])
	assert.Equal(t, "high", r["price_bucket"])
	assert.Nil(t, r["is_long_stay"])
}

func TestSet_ApplyInvalidInput(t *testing.T) {
	t.Parallel()

	set, err := Compile([]Definition{
		{Name: "total", Type: KindMultiply, Params: map[string]any{"inputs": []any{"room_type", "price"}, "precision": 2}},
	}, listingFields)
	require.NoError(t, err)

	err = set.Apply(record.Record{"room_type": "entire home", "price": decimal.NewFromInt(1)})
	var verr *record.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "total", verr.Field)
}

func TestSet_Nil(t *testing.T) {
	t.Parallel()

	var set *Set
	require.NoError(t, set.Apply(record.Record{}))
	assert.Empty(t, set.Fields())
	assert.Equal(t, 0, set.Len())
}
