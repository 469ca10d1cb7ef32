package source

import (
	"io"

	"github.com/bruin-data/historian/pkg/logger"
	"github.com/bruin-data/historian/pkg/record"
)

// TableReader reads the persisted rows of an upstream entity. The rows are projected to the declared fields and
// coerced to their types; rows that cannot be coerced are skipped with a warning.
type TableReader struct {
	table  string
	rows   *SliceReader
	fields []record.Field
	logger logger.Logger
	stats  Stats
}

func NewTableReader(table string, rows []record.Record, fields []record.Field, l logger.Logger) *TableReader {
	return &TableReader{
		table:  table,
		rows:   NewSliceReader(rows),
		fields: fields,
		logger: l,
	}
}

func (t *TableReader) Next() (record.Record, error) {
	for {
		row, err := t.rows.Next()
		if err == io.EOF {
			return nil, io.EOF
		}
		t.stats.Rows++

		rec := make(record.Record, len(t.fields))
		ok := true
		for _, f := range t.fields {
			v, err := record.Coerce(f.Type, row[f.Name])
			if err != nil {
				t.stats.Skipped++
				t.logger.Warnw("skipping upstream row: invalid value", "table", t.table, "row", t.stats.Rows, "column", f.Name, "error", err.Error())
				ok = false
				break
			}
			rec[f.Name] = v
		}

		if ok {
			return rec, nil
		}
	}
}

func (t *TableReader) Stats() Stats {
	return t.stats
}

func (t *TableReader) Close() error {
	return t.rows.Close()
}
