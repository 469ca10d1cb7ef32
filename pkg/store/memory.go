package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bruin-data/historian/pkg/record"
	"github.com/bruin-data/historian/pkg/scd2"
	"github.com/pkg/errors"
)

var ErrTxDone = errors.New("transaction has already been committed or rolled back")

type memTable struct {
	def      Table
	current  map[record.Key]record.Record
	keys     []record.Key
	versions []scd2.Version
}

func (m *memTable) clone() *memTable {
	c := &memTable{
		def:      m.def,
		current:  make(map[record.Key]record.Record, len(m.current)),
		keys:     append([]record.Key(nil), m.keys...),
		versions: make([]scd2.Version, len(m.versions)),
	}
	for k, v := range m.current {
		c.current[k] = v.Clone()
	}
	for i, v := range m.versions {
		v.Record = v.Record.Clone()
		c.versions[i] = v
	}
	return c
}

// Memory is an in-process store. Transactions work on private copies of the tables they touch and publish them on
// commit; concurrent transactions are expected to touch disjoint tables.
type Memory struct {
	mu     sync.Mutex
	tables map[string]*memTable
}

func NewMemory() *Memory {
	return &Memory{tables: make(map[string]*memTable)}
}

func (m *Memory) Begin(_ context.Context) (Tx, error) {
	return &memoryTx{store: m, tables: make(map[string]*memTable), dirty: make(map[string]bool)}, nil
}

func (m *Memory) Close() error {
	return nil
}

// Versions returns every version stored for the table, oldest first per key.
func (m *Memory) Versions(name string) []scd2.Version {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[name]
	if !ok {
		return nil
	}
	return t.clone().versions
}

// Rows returns the rows of a current-state table in first insertion order.
func (m *Memory) Rows(name string) []record.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[name]
	if !ok {
		return nil
	}

	out := make([]record.Record, 0, len(t.keys))
	for _, k := range t.keys {
		out = append(out, t.current[k].Clone())
	}
	return out
}

type memoryTx struct {
	store  *Memory
	tables map[string]*memTable
	dirty  map[string]bool
	done   bool
}

func (tx *memoryTx) table(t *Table, write bool) (*memTable, error) {
	if tx.done {
		return nil, ErrTxDone
	}

	if mt, ok := tx.tables[t.Name]; ok {
		if write {
			tx.dirty[t.Name] = true
		}
		return mt, nil
	}

	tx.store.mu.Lock()
	mt, ok := tx.store.tables[t.Name]
	if ok {
		mt = mt.clone()
	}
	tx.store.mu.Unlock()

	if !ok {
		return nil, errors.Errorf("table '%s' does not exist", t.Name)
	}

	tx.tables[t.Name] = mt
	if write {
		tx.dirty[t.Name] = true
	}
	return mt, nil
}

func (tx *memoryTx) EnsureTables(_ context.Context, tables ...*Table) error {
	if tx.done {
		return ErrTxDone
	}

	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()

	for _, t := range tables {
		if _, ok := tx.tables[t.Name]; ok {
			continue
		}
		if existing, ok := tx.store.tables[t.Name]; ok {
			tx.tables[t.Name] = existing.clone()
			continue
		}

		tx.tables[t.Name] = &memTable{def: *t, current: make(map[record.Key]record.Record)}
		tx.dirty[t.Name] = true
	}

	return nil
}

func (tx *memoryTx) Watermark(_ context.Context, t *Table) (time.Time, bool, error) {
	mt, err := tx.table(t, false)
	if err != nil {
		return time.Time{}, false, err
	}

	var (
		latest time.Time
		found  bool
	)
	consider := func(r record.Record) {
		ts, ok := r[t.ChangeTimestamp].(time.Time)
		if !ok {
			return
		}
		if !found || ts.After(latest) {
			latest = ts
			found = true
		}
	}

	for _, r := range mt.current {
		consider(r)
	}
	for _, v := range mt.versions {
		consider(v.Record)
	}

	return latest, found, nil
}

func (tx *memoryTx) CurrentVersions(_ context.Context, t *Table) (map[record.Key]*scd2.Version, error) {
	mt, err := tx.table(t, false)
	if err != nil {
		return nil, err
	}

	out := make(map[record.Key]*scd2.Version)
	for _, v := range mt.versions {
		if !v.IsCurrent {
			continue
		}
		c := v
		c.Record = v.Record.Clone()
		out[v.Key] = &c
	}
	return out, nil
}

func (tx *memoryTx) Upsert(_ context.Context, t *Table, rows []record.Record, loadedAt time.Time) (int, error) {
	mt, err := tx.table(t, true)
	if err != nil {
		return 0, err
	}

	for _, r := range rows {
		key, err := record.KeyOf(r, t.Key)
		if err != nil {
			return 0, errors.Wrapf(err, "failed to upsert into '%s'", t.Name)
		}

		row := project(t, r)
		row[ColumnLoadedAt] = loadedAt
		if _, ok := mt.current[key]; !ok {
			mt.keys = append(mt.keys, key)
		}
		mt.current[key] = row
	}

	return len(rows), nil
}

func (tx *memoryTx) CloseVersion(_ context.Context, t *Table, v *scd2.Version, validUntil time.Time) error {
	mt, err := tx.table(t, true)
	if err != nil {
		return err
	}

	for i := range mt.versions {
		stored := &mt.versions[i]
		if stored.Key == v.Key && stored.IsCurrent && stored.ValidFrom.Equal(v.ValidFrom) {
			stored.IsCurrent = false
			stored.ValidUntil = validUntil
			return nil
		}
	}

	return errors.Errorf("no current version of key '%s' valid from %s in '%s'", v.Key, v.ValidFrom, t.Name)
}

func (tx *memoryTx) InsertVersion(_ context.Context, t *Table, v *scd2.Version) error {
	mt, err := tx.table(t, true)
	if err != nil {
		return err
	}

	if v.IsCurrent {
		for _, stored := range mt.versions {
			if stored.Key == v.Key && stored.IsCurrent {
				return errors.Errorf("key '%s' already has a current version in '%s'", v.Key, t.Name)
			}
		}
	}

	c := *v
	c.Record = project(t, v.Record)
	mt.versions = append(mt.versions, c)
	return nil
}

func (tx *memoryTx) Scan(_ context.Context, t *Table, currentOnly bool) ([]record.Record, error) {
	mt, err := tx.table(t, false)
	if err != nil {
		return nil, err
	}

	if mt.def.Kind == KindCurrent {
		out := make([]record.Record, 0, len(mt.keys))
		for _, k := range mt.keys {
			out = append(out, mt.current[k].Clone())
		}
		return out, nil
	}

	versions := make([]scd2.Version, 0, len(mt.versions))
	for _, v := range mt.versions {
		if currentOnly && !v.IsCurrent {
			continue
		}
		versions = append(versions, v)
	}
	sort.SliceStable(versions, func(i, j int) bool {
		if versions[i].Key != versions[j].Key {
			return versions[i].Key < versions[j].Key
		}
		return versions[i].ValidFrom.Before(versions[j].ValidFrom)
	})

	out := make([]record.Record, 0, len(versions))
	for _, v := range versions {
		r := v.Record.Clone()
		r[ColumnValidFrom] = v.ValidFrom
		r[ColumnValidUntil] = v.ValidUntil
		r[ColumnIsCurrent] = v.IsCurrent
		r[ColumnContentHash] = v.Hash
		out = append(out, r)
	}
	return out, nil
}

func (tx *memoryTx) Commit() error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true

	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	for name, dirty := range tx.dirty {
		if dirty {
			tx.store.tables[name] = tx.tables[name]
		}
	}
	return nil
}

func (tx *memoryTx) Rollback() error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true
	tx.tables = nil
	return nil
}

// project keeps only the declared columns of the table.
func project(t *Table, r record.Record) record.Record {
	out := make(record.Record, len(t.Columns)+1)
	for _, c := range t.Columns {
		out[c.Name] = r[c.Name]
	}
	return out
}
