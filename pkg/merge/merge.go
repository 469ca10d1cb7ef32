package merge

import (
	"time"

	"github.com/bruin-data/historian/pkg/date"
	"github.com/bruin-data/historian/pkg/record"
	"github.com/pkg/errors"
)

type TieBreak string

const (
	// TieBreakLast keeps the record that appeared last in the batch when two share the same key and timestamp.
	TieBreakLast  TieBreak = "last"
	TieBreakFirst TieBreak = "first"
)

type Options struct {
	Key             []string
	ChangeTimestamp string
	TieBreak        TieBreak
}

// Rejection is a record that failed structural checks.
type Rejection struct {
	Row int
	Err *record.ValidationError
}

type Result struct {
	// Selected holds one record per business key, in the order the key first appeared in the batch.
	Selected []record.Record
	Rejected []Rejection
	// Stale counts records at or below the incoming watermark.
	Stale int
	// Late holds the stale records themselves, in batch order, so history tables can check them against the
	// versions they already hold.
	Late []record.Record
	// Duplicates counts records dropped because a newer record with the same key was in the batch.
	Duplicates int
	// Watermark is the highest change timestamp of the selected records, or the incoming one. It is an upper
	// bound for the watermark the table ends up with: selected records may still be rejected or left unwritten
	// further down.
	Watermark time.Time
}

type Merger struct {
	opts Options
}

func NewMerger(opts Options) (*Merger, error) {
	if len(opts.Key) == 0 {
		return nil, errors.New("merger requires at least one business key field")
	}
	if opts.ChangeTimestamp == "" {
		return nil, errors.New("merger requires a change timestamp field")
	}

	switch opts.TieBreak {
	case "":
		opts.TieBreak = TieBreakLast
	case TieBreakLast, TieBreakFirst:
	default:
		return nil, errors.Errorf("unknown tie break '%s', expected one of 'last' or 'first'", opts.TieBreak)
	}

	return &Merger{opts: opts}, nil
}

type candidate struct {
	rec record.Record
	ts  time.Time
}

// Batch accumulates the records of one incremental read against a fixed starting watermark.
type Batch struct {
	opts      Options
	watermark time.Time
	rows      int
	order     []record.Key
	best      map[record.Key]candidate
	result    Result
}

// NewBatch starts a batch. A zero watermark means the entity has no prior state and is replaced with the epoch.
func (m *Merger) NewBatch(watermark time.Time) *Batch {
	if watermark.IsZero() {
		watermark = date.Epoch
	}

	return &Batch{
		opts:      m.opts,
		watermark: watermark.UTC(),
		best:      make(map[record.Key]candidate),
		result:    Result{Watermark: watermark.UTC()},
	}
}

// Add offers a record to the batch. The row number is used for reporting; zero means the position in the batch.
func (b *Batch) Add(rec record.Record, row int) {
	b.rows++
	if row == 0 {
		row = b.rows
	}

	key, err := record.KeyOf(rec, b.opts.Key)
	if err != nil {
		b.reject(row, err)
		return
	}

	ts, err := record.Timestamp(rec, b.opts.ChangeTimestamp)
	if err != nil {
		b.reject(row, err)
		return
	}

	if !ts.After(b.watermark) {
		b.result.Stale++
		b.result.Late = append(b.result.Late, rec)
		return
	}

	prev, seen := b.best[key]
	if !seen {
		b.order = append(b.order, key)
		b.best[key] = candidate{rec: rec, ts: ts}
		return
	}

	b.result.Duplicates++
	if ts.After(prev.ts) || (ts.Equal(prev.ts) && b.opts.TieBreak == TieBreakLast) {
		b.best[key] = candidate{rec: rec, ts: ts}
	}
}

func (b *Batch) reject(row int, err error) {
	var verr *record.ValidationError
	if !errors.As(err, &verr) {
		verr = &record.ValidationError{Reason: err.Error()}
	}
	verr = verr.AtRow(row)

	b.result.Rejected = append(b.result.Rejected, Rejection{Row: row, Err: verr})
}

// Result returns the selected records and the new watermark. The watermark never moves backwards.
func (b *Batch) Result() Result {
	res := b.result
	res.Selected = make([]record.Record, 0, len(b.order))
	for _, key := range b.order {
		c := b.best[key]
		res.Selected = append(res.Selected, c.rec)
		res.Watermark = date.Max(res.Watermark, c.ts)
	}

	return res
}

// Merge runs a whole batch in one call. The returned watermark is not persisted anywhere; callers read the
// authoritative one back from the table after writing.
func (m *Merger) Merge(watermark time.Time, records []record.Record) Result {
	b := m.NewBatch(watermark)
	for _, r := range records {
		b.Add(r, 0)
	}
	return b.Result()
}
