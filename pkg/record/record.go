package record

import (
	"fmt"
	"strings"
	"time"

	"github.com/bruin-data/historian/pkg/date"
)

// Record is a single row flowing through an entity run, keyed by column name.
type Record map[string]any

func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Key is the canonical encoding of the business key values of a record.
type Key string

const keySeparator = "\x1f"

func (k Key) String() string {
	return strings.ReplaceAll(string(k), keySeparator, "|")
}

// KeyOf builds the business key of the record from the given fields. A missing, null or empty component
// is a validation error.
func KeyOf(r Record, fields []string) (Key, error) {
	if len(fields) == 0 {
		return "", &ValidationError{Reason: "no business key fields declared"}
	}

	parts := make([]string, len(fields))
	for i, f := range fields {
		v, ok := r[f]
		if !ok || v == nil {
			return "", &ValidationError{Field: f, Reason: "missing business key"}
		}

		s := Canonical(v)
		if s == "" {
			return "", &ValidationError{Field: f, Reason: "empty business key"}
		}
		parts[i] = s
	}

	return Key(strings.Join(parts, keySeparator)), nil
}

// Timestamp reads the change timestamp of the record.
func Timestamp(r Record, field string) (time.Time, error) {
	v, ok := r[field]
	if !ok || v == nil {
		return time.Time{}, &ValidationError{Field: field, Reason: "missing change timestamp"}
	}

	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		parsed, err := date.ParseTime(t)
		if err != nil {
			return time.Time{}, &ValidationError{Field: field, Reason: fmt.Sprintf("unparsable change timestamp %q", t)}
		}
		return parsed, nil
	default:
		return time.Time{}, &ValidationError{Field: field, Reason: fmt.Sprintf("change timestamp has unsupported type %T", v)}
	}
}
