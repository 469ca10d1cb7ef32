package source

import (
	"encoding/csv"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/bruin-data/historian/pkg/logger"
	"github.com/bruin-data/historian/pkg/record"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

type CSVOptions struct {
	Header                 bool
	Delimiter              string
	TolerateColumnMismatch bool
}

// CSVReader reads a staging file row by row and coerces the cells to the declared column types. Malformed rows
// are skipped with a warning instead of failing the read.
type CSVReader struct {
	path    string
	file    afero.File
	reader  *csv.Reader
	fields  []record.Field
	opts    CSVOptions
	logger  logger.Logger
	mapping []int
	width   int
	line    int
	stats   Stats
}

func NewCSVReader(fs afero.Fs, path string, fields []record.Field, opts CSVOptions, l logger.Logger) (*CSVReader, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open source file '%s'", path)
	}

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true
	if opts.Delimiter != "" {
		d, _ := utf8.DecodeRuneInString(opts.Delimiter)
		r.Comma = d
	}

	c := &CSVReader{
		path:   path,
		file:   f,
		reader: r,
		fields: fields,
		opts:   opts,
		logger: l,
	}

	if err := c.readHeader(); err != nil {
		_ = f.Close()
		return nil, err
	}

	return c, nil
}

// readHeader maps the file columns to the declared fields. Without a header the declared order is used.
func (c *CSVReader) readHeader() error {
	c.mapping = make([]int, len(c.fields))
	c.width = len(c.fields)
	if !c.opts.Header {
		for i := range c.fields {
			c.mapping[i] = i
		}
		return nil
	}

	header, err := c.reader.Read()
	if err == io.EOF {
		return errors.Errorf("source file '%s' is empty, expected a header row", c.path)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to read the header of '%s'", c.path)
	}
	c.line++
	c.width = len(header)

	positions := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		positions[strings.ToLower(h)] = i
	}

	var missing []string
	for i, f := range c.fields {
		pos, ok := positions[strings.ToLower(f.Name)]
		if !ok {
			missing = append(missing, f.Name)
			pos = -1
		}
		c.mapping[i] = pos
	}

	if len(missing) > 0 && !c.opts.TolerateColumnMismatch {
		return errors.Errorf("source file '%s' is missing the columns: %s", c.path, strings.Join(missing, ", "))
	}
	if len(missing) > 0 {
		c.logger.Warnw("source file is missing columns, they will be read as null", "path", c.path, "columns", missing)
	}

	return nil
}

func (c *CSVReader) Next() (record.Record, error) {
	for {
		row, err := c.reader.Read()
		if err == io.EOF {
			return nil, io.EOF
		}
		c.line++

		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				c.skip("unparsable row", "error", perr.Err.Error())
				continue
			}
			return nil, errors.Wrapf(err, "failed to read '%s'", c.path)
		}
		c.stats.Rows++

		if isBlank(row) {
			c.stats.Skipped++
			continue
		}

		if len(row) != c.width {
			if !c.opts.TolerateColumnMismatch {
				c.skip("column count mismatch", "expected", c.width, "got", len(row))
				continue
			}
			c.stats.Padded++
		}

		rec, ok := c.convert(row)
		if !ok {
			continue
		}
		return rec, nil
	}
}

func (c *CSVReader) convert(row []string) (record.Record, bool) {
	rec := make(record.Record, len(c.fields))
	for i, f := range c.fields {
		pos := c.mapping[i]
		if pos < 0 || pos >= len(row) {
			rec[f.Name] = nil
			continue
		}

		v, err := record.Coerce(f.Type, row[pos])
		if err != nil {
			c.skip("invalid value", "column", f.Name, "error", err.Error())
			return nil, false
		}
		rec[f.Name] = v
	}
	return rec, true
}

func (c *CSVReader) skip(reason string, keysAndValues ...interface{}) {
	c.stats.Skipped++
	args := append([]interface{}{"path", c.path, "line", c.line}, keysAndValues...)
	c.logger.Warnw("skipping row: "+reason, args...)
}

// Stats returns the counts gathered so far.
func (c *CSVReader) Stats() Stats {
	return c.stats
}

func (c *CSVReader) Close() error {
	return c.file.Close()
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
