package record

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bruin-data/historian/pkg/date"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type ColumnType string

const (
	TypeString    ColumnType = "string"
	TypeInteger   ColumnType = "integer"
	TypeFloat     ColumnType = "float"
	TypeDecimal   ColumnType = "decimal"
	TypeBoolean   ColumnType = "boolean"
	TypeTimestamp ColumnType = "timestamp"
	TypeDate      ColumnType = "date"
)

var ColumnTypes = []ColumnType{TypeString, TypeInteger, TypeFloat, TypeDecimal, TypeBoolean, TypeTimestamp, TypeDate}

func (t ColumnType) Valid() bool {
	for _, c := range ColumnTypes {
		if c == t {
			return true
		}
	}
	return false
}

// Field is a typed column of a record.
type Field struct {
	Name string
	Type ColumnType
}

// Coerce converts a raw value, either a CSV cell or a value scanned from a database driver, into the Go
// representation of the column type. Empty strings are treated as null.
func Coerce(t ColumnType, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}
	if s, ok := raw.(string); ok {
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		if t != TypeString {
			raw = strings.TrimSpace(s)
		}
	}

	switch t {
	case TypeString:
		return Canonical(raw), nil
	case TypeInteger:
		return toInt(raw)
	case TypeFloat:
		return toFloat(raw)
	case TypeDecimal:
		return ToDecimal(raw)
	case TypeBoolean:
		return toBool(raw)
	case TypeTimestamp:
		return toTime(raw)
	case TypeDate:
		ts, err := toTime(raw)
		if err != nil {
			return nil, err
		}
		return date.TruncateToDate(ts), nil
	default:
		return nil, errors.Errorf("unknown column type '%s'", t)
	}
}

func toInt(raw any) (int64, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, errors.Errorf("integer %d overflows int64", v)
		}
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, errors.Errorf("%v is not an integer", v)
		}
		return int64(v), nil
	case decimal.Decimal:
		if !v.IsInteger() {
			return 0, errors.Errorf("%s is not an integer", v.String())
		}
		return v.IntPart(), nil
	case string:
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, errors.Errorf("'%s' is not an integer", v)
		}
		return i, nil
	default:
		return 0, errors.Errorf("cannot convert %T to integer", raw)
	}
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case decimal.Decimal:
		return v.InexactFloat64(), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, errors.Errorf("'%s' is not a number", v)
		}
		return f, nil
	default:
		i, err := toInt(raw)
		if err != nil {
			return 0, errors.Errorf("cannot convert %T to float", raw)
		}
		return float64(i), nil
	}
}

// ToDecimal converts any numeric representation into a decimal without going through binary floats for strings.
func ToDecimal(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case decimal.Decimal:
		return v, nil
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero, errors.New("nil decimal")
		}
		return *v, nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, errors.Errorf("'%s' is not a number", v)
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case bool:
		return decimal.Zero, errors.New("cannot convert boolean to a number")
	default:
		i, err := toInt(raw)
		if err != nil {
			return decimal.Zero, errors.Errorf("cannot convert %T to a number", raw)
		}
		return decimal.NewFromInt(i), nil
	}
}

func toBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(v) {
		case "t", "true", "yes", "y", "1":
			return true, nil
		case "f", "false", "no", "n", "0":
			return false, nil
		}
		return false, errors.Errorf("'%s' is not a boolean", v)
	default:
		i, err := toInt(raw)
		if err != nil {
			return false, errors.Errorf("cannot convert %T to boolean", raw)
		}
		return i != 0, nil
	}
}

func toTime(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		t, err := date.ParseTime(v)
		if err != nil {
			return time.Time{}, errors.Errorf("'%s' is not a timestamp", v)
		}
		return t, nil
	default:
		return time.Time{}, errors.Errorf("cannot convert %T to timestamp", raw)
	}
}

// Canonical renders a value in the stable textual form used for keys and content hashes.
func Canonical(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case decimal.Decimal:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
