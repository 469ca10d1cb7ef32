package scd2

import (
	"sort"
	"time"

	"github.com/bruin-data/historian/pkg/record"
	"github.com/pkg/errors"
)

// CheckPartition verifies the versions of a single key: intervals are non-empty, each one starts where the
// previous one ends, and only the last one is open and current.
func CheckPartition(versions []Version, farFuture time.Time) error {
	if len(versions) == 0 {
		return nil
	}

	sorted := make([]Version, len(versions))
	copy(sorted, versions)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ValidFrom.Before(sorted[j].ValidFrom) })

	for i, v := range sorted {
		if !v.ValidFrom.Before(v.ValidUntil) {
			return errors.Errorf("version %d of key '%s' has an empty interval [%s, %s)", i, v.Key, v.ValidFrom, v.ValidUntil)
		}

		last := i == len(sorted)-1
		if last {
			if !v.IsCurrent || !v.ValidUntil.Equal(farFuture) {
				return errors.Errorf("latest version of key '%s' is not open", v.Key)
			}
			continue
		}

		if v.IsCurrent {
			return errors.Errorf("key '%s' has more than one current version", v.Key)
		}
		if next := sorted[i+1]; !v.ValidUntil.Equal(next.ValidFrom) {
			return errors.Errorf("key '%s' has a gap or overlap between %s and %s", v.Key, v.ValidUntil, next.ValidFrom)
		}
	}

	return nil
}

// Replay applies a plan to an in-memory history keyed by business key, closing and appending versions exactly
// the way a store transaction would.
func Replay(history map[string][]Version, plan Plan) {
	for _, t := range plan.Transitions {
		key := string(t.Key)
		switch t.Action {
		case Open:
			history[key] = append(history[key], *t.Next)
		case Supersede:
			versions := history[key]
			for i := range versions {
				if versions[i].IsCurrent && versions[i].ValidFrom.Equal(t.Previous.ValidFrom) {
					versions[i].IsCurrent = false
					versions[i].ValidUntil = t.Next.ValidFrom
				}
			}
			history[key] = append(versions, *t.Next)
		case Unchanged:
		}
	}
}

// Verify replays the plan on top of the current versions it was computed from and checks the resulting intervals
// of every key the plan touches.
func (p Plan) Verify(current map[record.Key]*Version, farFuture time.Time) error {
	history := make(map[string][]Version)
	touched := make(map[record.Key]bool)
	for _, t := range p.Transitions {
		if t.Action == Unchanged || touched[t.Key] {
			continue
		}
		touched[t.Key] = true
		if cur, ok := current[t.Key]; ok && cur != nil {
			history[string(t.Key)] = []Version{*cur}
		}
	}

	Replay(history, p)

	for key := range touched {
		if err := CheckPartition(history[string(key)], farFuture); err != nil {
			return err
		}
	}
	return nil
}
