package store

import (
	"context"
	"strings"
	"time"

	"github.com/bruin-data/historian/pkg/record"
	"github.com/bruin-data/historian/pkg/scd2"
	"github.com/pkg/errors"
)

type Kind string

const (
	KindCurrent Kind = "current"
	KindHistory Kind = "history"
)

const (
	ColumnLoadedAt    = "_loaded_at"
	ColumnValidFrom   = "_valid_from"
	ColumnValidUntil  = "_valid_until"
	ColumnIsCurrent   = "_is_current"
	ColumnContentHash = "_content_hash"
)

// ReservedColumns are managed by the store and cannot be declared by an entity.
var ReservedColumns = []string{ColumnLoadedAt, ColumnValidFrom, ColumnValidUntil, ColumnIsCurrent, ColumnContentHash}

func IsReserved(name string) bool {
	for _, c := range ReservedColumns {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// Table describes the persisted shape of an entity.
type Table struct {
	// Name is either `table` or `schema.table`.
	Name            string
	Kind            Kind
	Key             []string
	ChangeTimestamp string
	Columns         []record.Field
}

// Schema returns the schema part of the table name, empty if the name is not qualified.
func (t *Table) Schema() string {
	if i := strings.LastIndex(t.Name, "."); i > 0 {
		return t.Name[:i]
	}
	return ""
}

// ColumnNames lists the entity columns without the store managed ones.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// AllColumns lists the entity columns followed by the store managed columns of the table kind.
func (t *Table) AllColumns() []record.Field {
	out := make([]record.Field, 0, len(t.Columns)+4)
	out = append(out, t.Columns...)
	if t.Kind == KindHistory {
		return append(out,
			record.Field{Name: ColumnValidFrom, Type: record.TypeTimestamp},
			record.Field{Name: ColumnValidUntil, Type: record.TypeTimestamp},
			record.Field{Name: ColumnIsCurrent, Type: record.TypeBoolean},
			record.Field{Name: ColumnContentHash, Type: record.TypeString},
		)
	}
	return append(out, record.Field{Name: ColumnLoadedAt, Type: record.TypeTimestamp})
}

// Store hands out transactions against persisted state.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	Close() error
}

// Tx is a unit of work against persisted state. Everything written through a Tx becomes visible on Commit, or not
// at all.
type Tx interface {
	// EnsureTables creates the schemas and tables if they are missing.
	EnsureTables(ctx context.Context, tables ...*Table) error
	// Watermark returns the maximum change timestamp stored in the table; false if the table holds no rows.
	Watermark(ctx context.Context, t *Table) (time.Time, bool, error)
	CurrentVersions(ctx context.Context, t *Table) (map[record.Key]*scd2.Version, error)
	// Upsert overwrites the rows of a current-state table by business key and returns the number of rows written.
	Upsert(ctx context.Context, t *Table, rows []record.Record, loadedAt time.Time) (int, error)
	// CloseVersion ends the current version of a key identified by its valid from timestamp.
	CloseVersion(ctx context.Context, t *Table, v *scd2.Version, validUntil time.Time) error
	InsertVersion(ctx context.Context, t *Table, v *scd2.Version) error
	// Scan returns the rows of the table, including store managed columns.
	Scan(ctx context.Context, t *Table, currentOnly bool) ([]record.Record, error)
	Commit() error
	Rollback() error
}

// VersionFromRow reads a history table row, as returned by Tx.Scan, back into a version.
func VersionFromRow(t *Table, r record.Record) (*scd2.Version, error) {
	key, err := record.KeyOf(r, t.Key)
	if err != nil {
		return nil, err
	}

	validFrom, ok := r[ColumnValidFrom].(time.Time)
	if !ok {
		return nil, errors.Errorf("key '%s' has no %s", key, ColumnValidFrom)
	}
	validUntil, _ := r[ColumnValidUntil].(time.Time)
	isCurrent, _ := r[ColumnIsCurrent].(bool)
	hash, _ := r[ColumnContentHash].(string)

	rec := make(record.Record, len(t.Columns))
	for _, c := range t.Columns {
		rec[c.Name] = r[c.Name]
	}

	return &scd2.Version{
		Key:        key,
		Record:     rec,
		ValidFrom:  validFrom,
		ValidUntil: validUntil,
		IsCurrent:  isCurrent,
		Hash:       hash,
	}, nil
}
