package source

import (
	"io"

	"github.com/bruin-data/historian/pkg/record"
)

// Reader is a lazy, finite sequence of records. Next returns io.EOF once the sequence is exhausted.
type Reader interface {
	Next() (record.Record, error)
	Close() error
}

// Stats counts what a reader saw and what it had to skip.
type Stats struct {
	Rows    int
	Skipped int
	Padded  int
}

// SliceReader replays records that are already in memory.
type SliceReader struct {
	records []record.Record
	pos     int
}

func NewSliceReader(records []record.Record) *SliceReader {
	return &SliceReader{records: records}
}

func (s *SliceReader) Next() (record.Record, error) {
	if s.pos >= len(s.records) {
		return nil, io.EOF
	}

	r := s.records[s.pos]
	s.pos++
	return r, nil
}

func (s *SliceReader) Close() error {
	return nil
}

// ReadAll drains the reader.
func ReadAll(r Reader) ([]record.Record, error) {
	var out []record.Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}
