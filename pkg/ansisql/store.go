package ansisql

import (
	"context"
	"database/sql/driver"
	"strings"
	"time"

	"github.com/bruin-data/historian/pkg/record"
	"github.com/bruin-data/historian/pkg/scd2"
	"github.com/bruin-data/historian/pkg/store"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Rows is a fully read result set.
type Rows struct {
	Columns []string
	Values  [][]any
}

// Conn is an open database transaction. Statements use the placeholders of the dialect.
type Conn interface {
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Query(ctx context.Context, query string, args ...any) (*Rows, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type Connector interface {
	Begin(ctx context.Context) (Conn, error)
	Close() error
}

// Store persists entity tables in a SQL database.
type Store struct {
	connector     Connector
	dialect       *Dialect
	schemaCreator *SchemaCreator
}

func NewStore(connector Connector, dialect *Dialect) *Store {
	return &Store{
		connector:     connector,
		dialect:       dialect,
		schemaCreator: NewSchemaCreator(),
	}
}

//nolint:ireturn
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	conn, err := s.connector.Begin(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to begin a %s transaction", s.dialect.Name)
	}

	return &Tx{ctx: ctx, conn: conn, dialect: s.dialect, schemaCreator: s.schemaCreator}, nil
}

func (s *Store) Close() error {
	return s.connector.Close()
}

type Tx struct {
	ctx           context.Context //nolint:containedctx
	conn          Conn
	dialect       *Dialect
	schemaCreator *SchemaCreator
	createdSchema []string
	done          bool
}

func (tx *Tx) exec(ctx context.Context, query string, args ...any) (int64, error) {
	if tx.done {
		return 0, store.ErrTxDone
	}
	return tx.conn.Exec(ctx, tx.dialect.Rebind(query), args...)
}

func (tx *Tx) query(ctx context.Context, query string, args ...any) (*Rows, error) {
	if tx.done {
		return nil, store.ErrTxDone
	}
	return tx.conn.Query(ctx, tx.dialect.Rebind(query), args...)
}

// Exec satisfies the schema creator; the statement is rebound like every other one.
func (tx *Tx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return tx.exec(ctx, query, args...)
}

func (tx *Tx) EnsureTables(ctx context.Context, tables ...*store.Table) error {
	for _, t := range tables {
		created, err := tx.schemaCreator.CreateSchemaIfNotExist(ctx, tx, tx.dialect, t)
		if err != nil {
			return err
		}
		if created != "" {
			tx.createdSchema = append(tx.createdSchema, created)
		}

		ddl, err := CreateTableQuery(tx.dialect, t)
		if err != nil {
			return err
		}
		if _, err := tx.exec(ctx, ddl); err != nil {
			return errors.Wrapf(err, "failed to create table '%s'", t.Name)
		}
	}

	return nil
}

func (tx *Tx) Watermark(ctx context.Context, t *store.Table) (time.Time, bool, error) {
	rows, err := tx.query(ctx, watermarkQuery(t))
	if err != nil {
		return time.Time{}, false, errors.Wrapf(err, "failed to read the watermark of '%s'", t.Name)
	}
	if len(rows.Values) == 0 || len(rows.Values[0]) == 0 || rows.Values[0][0] == nil {
		return time.Time{}, false, nil
	}

	v, err := record.Coerce(record.TypeTimestamp, tx.resolve(rows.Values[0][0]))
	if err != nil {
		return time.Time{}, false, errors.Wrapf(err, "invalid watermark in '%s'", t.Name)
	}
	if v == nil {
		return time.Time{}, false, nil
	}
	return v.(time.Time), true, nil //nolint:forcetypeassert
}

func (tx *Tx) CurrentVersions(ctx context.Context, t *store.Table) (map[record.Key]*scd2.Version, error) {
	records, err := tx.Scan(ctx, t, true)
	if err != nil {
		return nil, err
	}

	out := make(map[record.Key]*scd2.Version, len(records))
	for _, r := range records {
		v, err := store.VersionFromRow(t, r)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid version in '%s'", t.Name)
		}
		out[v.Key] = v
	}
	return out, nil
}

func (tx *Tx) Upsert(ctx context.Context, t *store.Table, rows []record.Record, loadedAt time.Time) (int, error) {
	deleteQuery := deleteByKeyQuery(t)
	insert := insertQuery(t)

	for _, r := range rows {
		if _, err := tx.exec(ctx, deleteQuery, keyArgs(t, r)...); err != nil {
			return 0, errors.Wrapf(err, "failed to replace rows in '%s'", t.Name)
		}

		args := append(columnArgs(t, r), loadedAt.UTC())
		if _, err := tx.exec(ctx, insert, args...); err != nil {
			return 0, errors.Wrapf(err, "failed to insert rows into '%s'", t.Name)
		}
	}

	return len(rows), nil
}

func (tx *Tx) CloseVersion(ctx context.Context, t *store.Table, v *scd2.Version, validUntil time.Time) error {
	args := make([]any, 0, len(t.Key)+2)
	args = append(args, validUntil.UTC())
	args = append(args, keyArgs(t, v.Record)...)
	args = append(args, v.ValidFrom.UTC())

	affected, err := tx.exec(ctx, closeVersionQuery(t), args...)
	if err != nil {
		return errors.Wrapf(err, "failed to close version of key '%s' in '%s'", v.Key, t.Name)
	}
	if affected != 1 {
		return errors.Errorf("expected to close exactly one version of key '%s' valid from %s in '%s', closed %d", v.Key, v.ValidFrom, t.Name, affected)
	}
	return nil
}

func (tx *Tx) InsertVersion(ctx context.Context, t *store.Table, v *scd2.Version) error {
	args := append(columnArgs(t, v.Record), v.ValidFrom.UTC(), v.ValidUntil.UTC(), v.IsCurrent, v.Hash)
	if _, err := tx.exec(ctx, insertQuery(t), args...); err != nil {
		return errors.Wrapf(err, "failed to insert version of key '%s' into '%s'", v.Key, t.Name)
	}
	return nil
}

func (tx *Tx) Scan(ctx context.Context, t *store.Table, currentOnly bool) ([]record.Record, error) {
	rows, err := tx.query(ctx, selectQuery(t, currentOnly))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read '%s'", t.Name)
	}

	fields := lo.KeyBy(t.AllColumns(), func(f record.Field) string { return strings.ToLower(f.Name) })
	out := make([]record.Record, 0, len(rows.Values))
	for _, values := range rows.Values {
		r := make(record.Record, len(rows.Columns))
		for i, column := range rows.Columns {
			field, ok := fields[strings.ToLower(column)]
			if !ok || i >= len(values) {
				continue
			}

			v, err := record.Coerce(field.Type, tx.resolve(values[i]))
			if err != nil {
				return nil, errors.Wrapf(err, "invalid value in column '%s' of '%s'", field.Name, t.Name)
			}
			r[field.Name] = v
		}
		out = append(out, r)
	}

	return out, nil
}

func (tx *Tx) Commit() error {
	if tx.done {
		return store.ErrTxDone
	}
	tx.done = true
	if err := tx.conn.Commit(tx.ctx); err != nil {
		tx.schemaCreator.Forget(tx.createdSchema...)
		return err
	}
	return nil
}

func (tx *Tx) Rollback() error {
	if tx.done {
		return store.ErrTxDone
	}
	tx.done = true
	tx.schemaCreator.Forget(tx.createdSchema...)
	return tx.conn.Rollback(tx.ctx)
}

// resolve turns driver specific values into plain Go values.
func (tx *Tx) resolve(v any) any {
	v = tx.dialect.convert(v)
	if valuer, ok := v.(driver.Valuer); ok {
		resolved, err := valuer.Value()
		if err == nil {
			return resolved
		}
	}
	return v
}

func keyArgs(t *store.Table, r record.Record) []any {
	return lo.Map(t.Key, func(k string, _ int) any { return bindValue(r[k]) })
}

func columnArgs(t *store.Table, r record.Record) []any {
	args := make([]any, 0, len(t.Columns)+4)
	for _, c := range t.Columns {
		args = append(args, bindValue(r[c.Name]))
	}
	return args
}

func bindValue(v any) any {
	if ts, ok := v.(time.Time); ok {
		return ts.UTC()
	}
	return v
}
