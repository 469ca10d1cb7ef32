package scd2

import (
	"time"

	"github.com/bruin-data/historian/pkg/record"
)

// LateResult sorts the records that arrived at or below the watermark.
type LateResult struct {
	// Stale counts records that add nothing: their key has no versions yet, they are newer than the current version
	// but older than the watermark, or they replay a version that is already stored.
	Stale      int
	Violations []*OrderingViolation
	Invalid    []*record.ValidationError
}

// PrecedesCurrent reports whether any record is older than the current version of its key. Only those records
// need the full history of their key to be told apart from replays.
func (e *Engine) PrecedesCurrent(current map[record.Key]*Version, records []record.Record) bool {
	for _, r := range records {
		key, err := record.KeyOf(r, e.cfg.Key)
		if err != nil {
			continue
		}
		ts, err := record.Timestamp(r, e.cfg.ChangeTimestamp)
		if err != nil {
			continue
		}
		if cur, ok := current[key]; ok && cur != nil && ts.Before(cur.ValidFrom) {
			return true
		}
	}
	return false
}

// Late checks records that the watermark filter held back against the stored versions. A record older than the
// current version of its key, or at the same timestamp with different content, is an ordering violation unless it
// replays a stored version. history holds every stored version per key; it may be nil when PrecedesCurrent is false.
func (e *Engine) Late(current map[record.Key]*Version, history map[record.Key][]Version, records []record.Record) LateResult {
	var res LateResult

	for i, r := range records {
		key, err := record.KeyOf(r, e.cfg.Key)
		if err != nil {
			res.Invalid = append(res.Invalid, asValidationError(err, i+1))
			continue
		}
		ts, err := record.Timestamp(r, e.cfg.ChangeTimestamp)
		if err != nil {
			res.Invalid = append(res.Invalid, asValidationError(err, i+1))
			continue
		}

		cur, ok := current[key]
		if !ok || cur == nil || ts.After(cur.ValidFrom) {
			res.Stale++
			continue
		}

		hash := e.HashOf(r)
		if ts.Equal(cur.ValidFrom) {
			if hash == cur.Hash {
				res.Stale++
				continue
			}
			res.Violations = append(res.Violations, &OrderingViolation{
				Key:              key,
				ChangeTimestamp:  ts,
				CurrentValidFrom: cur.ValidFrom,
				Reason:           "different content with the same change timestamp as the current version",
			})
			continue
		}

		if e.replays(history[key], ts, hash) {
			res.Stale++
			continue
		}
		res.Violations = append(res.Violations, &OrderingViolation{
			Key:              key,
			ChangeTimestamp:  ts,
			CurrentValidFrom: cur.ValidFrom,
			Reason:           "change timestamp precedes the current version",
		})
	}

	return res
}

// replays reports whether the version covering ts already holds this content. For scd2_by_column any record inside
// the interval with the same hash was unchanged when it first arrived; for scd2_by_time the version must start at ts.
func (e *Engine) replays(versions []Version, ts time.Time, hash string) bool {
	for _, v := range versions {
		if ts.Before(v.ValidFrom) || !ts.Before(v.ValidUntil) {
			continue
		}
		if v.Hash != hash {
			return false
		}
		return e.cfg.Strategy == ByColumn || v.ValidFrom.Equal(ts)
	}
	return false
}
