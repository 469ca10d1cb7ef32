package scd2

import (
	"sort"
	"time"

	"github.com/bruin-data/historian/pkg/date"
	"github.com/bruin-data/historian/pkg/record"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

type Strategy string

const (
	// ByTime treats every record with a newer change timestamp as a new version.
	ByTime Strategy = "scd2_by_time"
	// ByColumn opens a new version only when the content hash of the tracked columns changes.
	ByColumn Strategy = "scd2_by_column"
)

// Version is one row of a history table.
type Version struct {
	Key        record.Key
	Record     record.Record
	ValidFrom  time.Time
	ValidUntil time.Time
	IsCurrent  bool
	Hash       string
}

func (v *Version) clone() *Version {
	c := *v
	return &c
}

type Action string

const (
	Open      Action = "open"
	Supersede Action = "supersede"
	Unchanged Action = "unchanged"
)

// Transition is a single step of a plan. For Supersede, Previous is the version to close at Next.ValidFrom; for
// Unchanged it is the current version the record matched.
type Transition struct {
	Action   Action
	Key      record.Key
	Previous *Version
	Next     *Version
}

type Plan struct {
	Transitions []Transition
	Violations  []*OrderingViolation
	Invalid     []*record.ValidationError
}

// Count returns the number of transitions with the given action.
func (p Plan) Count(action Action) int {
	return lo.CountBy(p.Transitions, func(t Transition) bool { return t.Action == action })
}

type Config struct {
	Strategy        Strategy
	Key             []string
	ChangeTimestamp string
	// Tracked columns feed the content hash. When empty, every column of the incoming record is hashed.
	Tracked   []string
	FarFuture time.Time
}

type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) (*Engine, error) {
	switch cfg.Strategy {
	case ByTime:
	case ByColumn:
		if len(cfg.Tracked) == 0 {
			return nil, errors.New("scd2_by_column requires at least one tracked column")
		}
	default:
		return nil, errors.Errorf("unknown historization strategy '%s'", cfg.Strategy)
	}

	if len(cfg.Key) == 0 {
		return nil, errors.New("historization requires at least one business key column")
	}
	if cfg.ChangeTimestamp == "" {
		return nil, errors.New("historization requires a change timestamp column")
	}

	if cfg.FarFuture.IsZero() {
		ff, err := date.ParseTime(date.DefaultFarFuture)
		if err != nil {
			return nil, err
		}
		cfg.FarFuture = ff
	}

	return &Engine{cfg: cfg}, nil
}

func (e *Engine) FarFuture() time.Time {
	return e.cfg.FarFuture
}

// HashOf computes the content hash used to detect changes.
func (e *Engine) HashOf(r record.Record) string {
	fields := e.cfg.Tracked
	if len(fields) == 0 {
		fields = lo.Keys(r)
		sort.Strings(fields)
	}
	return record.Hash(r, fields)
}

type incoming struct {
	rec record.Record
	ts  time.Time
	pos int
}

// Plan compares the incoming records with the current versions and decides the transitions. It does not modify
// the current versions. Records of the same key are applied in change timestamp order against a working copy,
// so a batch may open and supersede several versions of one key.
func (e *Engine) Plan(current map[record.Key]*Version, records []record.Record) Plan {
	var plan Plan

	var order []record.Key
	byKey := make(map[record.Key][]incoming)
	for i, r := range records {
		key, err := record.KeyOf(r, e.cfg.Key)
		if err != nil {
			plan.Invalid = append(plan.Invalid, asValidationError(err, i+1))
			continue
		}

		ts, err := record.Timestamp(r, e.cfg.ChangeTimestamp)
		if err != nil {
			plan.Invalid = append(plan.Invalid, asValidationError(err, i+1))
			continue
		}

		if _, ok := byKey[key]; !ok {
			order = append(order, key)
		}
		byKey[key] = append(byKey[key], incoming{rec: r, ts: ts, pos: i})
	}

	for _, key := range order {
		items := byKey[key]
		sort.SliceStable(items, func(i, j int) bool { return items[i].ts.Before(items[j].ts) })

		var working *Version
		if cur, ok := current[key]; ok && cur != nil {
			working = cur.clone()
		}

		for _, in := range items {
			working = e.step(&plan, key, working, in)
		}
	}

	return plan
}

func (e *Engine) step(plan *Plan, key record.Key, working *Version, in incoming) *Version {
	hash := e.HashOf(in.rec)

	if !in.ts.Before(e.cfg.FarFuture) {
		plan.Violations = append(plan.Violations, &OrderingViolation{
			Key:             key,
			ChangeTimestamp: in.ts,
			Reason:          "change timestamp is not before the far future sentinel",
		})
		return working
	}

	if working == nil {
		next := e.open(key, in, hash)
		plan.Transitions = append(plan.Transitions, Transition{Action: Open, Key: key, Next: next})
		return next.clone()
	}

	switch {
	case in.ts.Before(working.ValidFrom):
		plan.Violations = append(plan.Violations, &OrderingViolation{
			Key:              key,
			ChangeTimestamp:  in.ts,
			CurrentValidFrom: working.ValidFrom,
			Reason:           "change timestamp precedes the current version",
		})
		return working
	case in.ts.Equal(working.ValidFrom):
		if hash == working.Hash {
			plan.Transitions = append(plan.Transitions, Transition{Action: Unchanged, Key: key, Previous: working.clone()})
			return working
		}
		plan.Violations = append(plan.Violations, &OrderingViolation{
			Key:              key,
			ChangeTimestamp:  in.ts,
			CurrentValidFrom: working.ValidFrom,
			Reason:           "different content with the same change timestamp as the current version",
		})
		return working
	}

	if e.cfg.Strategy == ByColumn && hash == working.Hash {
		plan.Transitions = append(plan.Transitions, Transition{Action: Unchanged, Key: key, Previous: working.clone()})
		return working
	}

	next := e.open(key, in, hash)
	plan.Transitions = append(plan.Transitions, Transition{Action: Supersede, Key: key, Previous: working.clone(), Next: next})
	return next.clone()
}

func (e *Engine) open(key record.Key, in incoming, hash string) *Version {
	return &Version{
		Key:        key,
		Record:     in.rec,
		ValidFrom:  in.ts,
		ValidUntil: e.cfg.FarFuture,
		IsCurrent:  true,
		Hash:       hash,
	}
}

func asValidationError(err error, row int) *record.ValidationError {
	var verr *record.ValidationError
	if errors.As(err, &verr) {
		return verr.AtRow(row)
	}
	return &record.ValidationError{Row: row, Reason: err.Error()}
}
