package scd2

import (
	"testing"
	"time"

	"github.com/bruin-data/historian/pkg/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	farFuture = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
	t1        = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2        = t1.Add(24 * time.Hour)
	t3        = t1.Add(12 * time.Hour)
	t4        = t1.Add(48 * time.Hour)
)

func rec(key int64, ts time.Time, amount int64) record.Record {
	return record.Record{"key": key, "ts": ts, "amount": amount}
}

func newEngine(t *testing.T, strategy Strategy) *Engine {
	t.Helper()

	e, err := NewEngine(Config{
		Strategy:        strategy,
		Key:             []string{"key"},
		ChangeTimestamp: "ts",
		Tracked:         []string{"amount"},
	})
	require.NoError(t, err)
	return e
}

func currentOf(history map[string][]Version) map[record.Key]*Version {
	out := make(map[record.Key]*Version)
	for _, versions := range history {
		for i := range versions {
			if versions[i].IsCurrent {
				v := versions[i]
				out[v.Key] = &v
			}
		}
	}
	return out
}

func TestNewEngine(t *testing.T) {
	t.Parallel()

	_, err := NewEngine(Config{Strategy: ByColumn, Key: []string{"k"}, ChangeTimestamp: "ts"})
	require.ErrorContains(t, err, "tracked")

	_, err = NewEngine(Config{Strategy: "scd1", Key: []string{"k"}, ChangeTimestamp: "ts"})
	require.ErrorContains(t, err, "unknown historization strategy")

	_, err = NewEngine(Config{Strategy: ByTime, ChangeTimestamp: "ts"})
	require.Error(t, err)

	_, err = NewEngine(Config{Strategy: ByTime, Key: []string{"k"}})
	require.Error(t, err)

	e, err := NewEngine(Config{Strategy: ByTime, Key: []string{"k"}, ChangeTimestamp: "ts"})
	require.NoError(t, err)
	assert.Equal(t, farFuture, e.FarFuture())
}

func TestEngine_Scenario(t *testing.T) {
	t.Parallel()

	for _, strategy := range []Strategy{ByColumn, ByTime} {
		t.Run(string(strategy), func(t *testing.T) {
			t.Parallel()

			e := newEngine(t, strategy)
			history := map[string][]Version{}

			// first record opens a version
			plan := e.Plan(currentOf(history), []record.Record{rec(1, t1, 100)})
			require.Len(t, plan.Transitions, 1)
			assert.Equal(t, Open, plan.Transitions[0].Action)
			next := plan.Transitions[0].Next
			assert.Equal(t, t1, next.ValidFrom)
			assert.Equal(t, farFuture, next.ValidUntil)
			assert.True(t, next.IsCurrent)
			Replay(history, plan)

			// a change supersedes it
			plan = e.Plan(currentOf(history), []record.Record{rec(1, t2, 150)})
			require.Len(t, plan.Transitions, 1)
			assert.Equal(t, Supersede, plan.Transitions[0].Action)
			assert.Equal(t, t1, plan.Transitions[0].Previous.ValidFrom)
			assert.Equal(t, t2, plan.Transitions[0].Next.ValidFrom)
			Replay(history, plan)

			versions := history["1"]
			require.Len(t, versions, 2)
			assert.Equal(t, t2, versions[0].ValidUntil)
			assert.False(t, versions[0].IsCurrent)
			assert.Equal(t, farFuture, versions[1].ValidUntil)
			assert.True(t, versions[1].IsCurrent)

			// an older record is an ordering violation and nothing is planned
			plan = e.Plan(currentOf(history), []record.Record{rec(1, t3, 120)})
			assert.Empty(t, plan.Transitions)
			require.Len(t, plan.Violations, 1)
			assert.Equal(t, record.Key("1"), plan.Violations[0].Key)
			assert.Equal(t, t2, plan.Violations[0].CurrentValidFrom)
			Replay(history, plan)

			require.Len(t, history["1"], 2)
			require.NoError(t, CheckPartition(history["1"], farFuture))
		})
	}
}

func TestEngine_ByColumnUnchanged(t *testing.T) {
	t.Parallel()

	e := newEngine(t, ByColumn)
	history := map[string][]Version{}
	Replay(history, e.Plan(nil, []record.Record{rec(1, t1, 100)}))

	plan := e.Plan(currentOf(history), []record.Record{rec(1, t2, 100)})
	require.Len(t, plan.Transitions, 1)
	assert.Equal(t, Unchanged, plan.Transitions[0].Action)
	assert.Equal(t, 1, plan.Count(Unchanged))
	assert.Equal(t, 0, plan.Count(Open))

	untracked := rec(1, t2, 100)
	untracked["note"] = "ignored"
	plan = e.Plan(currentOf(history), []record.Record{untracked})
	assert.Equal(t, 1, plan.Count(Unchanged))
}

func TestEngine_ByTimeSupersedesOnNewerTimestamp(t *testing.T) {
	t.Parallel()

	e := newEngine(t, ByTime)
	history := map[string][]Version{}
	Replay(history, e.Plan(nil, []record.Record{rec(1, t1, 100)}))

	plan := e.Plan(currentOf(history), []record.Record{rec(1, t2, 100)})
	assert.Equal(t, 1, plan.Count(Supersede))
}

func TestEngine_IdempotentReplay(t *testing.T) {
	t.Parallel()

	for _, strategy := range []Strategy{ByColumn, ByTime} {
		e := newEngine(t, strategy)
		history := map[string][]Version{}
		batch := []record.Record{rec(1, t1, 100), rec(2, t1, 5)}

		Replay(history, e.Plan(currentOf(history), batch))
		plan := e.Plan(currentOf(history), batch)
		assert.Equal(t, 2, plan.Count(Unchanged), string(strategy))
		assert.Empty(t, plan.Violations)

		Replay(history, plan)
		assert.Len(t, history["1"], 1)
		assert.Len(t, history["2"], 1)
	}
}

func TestEngine_SameTimestampDifferentContent(t *testing.T) {
	t.Parallel()

	e := newEngine(t, ByColumn)
	history := map[string][]Version{}
	Replay(history, e.Plan(nil, []record.Record{rec(1, t1, 100)}))

	plan := e.Plan(currentOf(history), []record.Record{rec(1, t1, 200)})
	assert.Empty(t, plan.Transitions)
	require.Len(t, plan.Violations, 1)
	assert.Contains(t, plan.Violations[0].Error(), "same change timestamp")
}

func TestEngine_SeveralVersionsInOneBatch(t *testing.T) {
	t.Parallel()

	e := newEngine(t, ByColumn)
	history := map[string][]Version{}

	plan := e.Plan(nil, []record.Record{rec(1, t4, 300), rec(1, t1, 100), rec(1, t2, 200), rec(1, t3, 200)})
	// applied in timestamp order: t1 opens, t3 changes, t2 repeats t3's content, t4 changes
	assert.Equal(t, 1, plan.Count(Open))
	assert.Equal(t, 2, plan.Count(Supersede))
	assert.Equal(t, 1, plan.Count(Unchanged))
	assert.Empty(t, plan.Violations)

	Replay(history, plan)
	require.Len(t, history["1"], 3)
	require.NoError(t, CheckPartition(history["1"], farFuture))
}

func TestEngine_InvalidRecords(t *testing.T) {
	t.Parallel()

	e := newEngine(t, ByColumn)
	plan := e.Plan(nil, []record.Record{{"ts": t1}, {"key": int64(1)}, rec(2, t1, 1)})

	require.Len(t, plan.Invalid, 2)
	assert.Equal(t, 1, plan.Invalid[0].Row)
	assert.Equal(t, 2, plan.Invalid[1].Row)
	assert.Equal(t, 1, plan.Count(Open))
}

func TestEngine_FarFutureTimestamp(t *testing.T) {
	t.Parallel()

	e := newEngine(t, ByTime)
	plan := e.Plan(nil, []record.Record{rec(1, farFuture, 1)})
	assert.Empty(t, plan.Transitions)
	require.Len(t, plan.Violations, 1)
}

func TestEngine_DoesNotMutateCurrent(t *testing.T) {
	t.Parallel()

	e := newEngine(t, ByTime)
	cur := &Version{Key: "1", Record: rec(1, t1, 100), ValidFrom: t1, ValidUntil: farFuture, IsCurrent: true, Hash: "x"}
	current := map[record.Key]*Version{"1": cur}

	_ = e.Plan(current, []record.Record{rec(1, t2, 200)})
	assert.Equal(t, farFuture, cur.ValidUntil)
	assert.True(t, cur.IsCurrent)
}

func TestEngine_HashOfAllColumnsWithoutTracked(t *testing.T) {
	t.Parallel()

	e, err := NewEngine(Config{Strategy: ByTime, Key: []string{"key"}, ChangeTimestamp: "ts"})
	require.NoError(t, err)

	a := rec(1, t1, 100)
	b := rec(1, t1, 100)
	assert.Equal(t, e.HashOf(a), e.HashOf(b))

	b["note"] = "x"
	assert.NotEqual(t, e.HashOf(a), e.HashOf(b))
}

func TestCheckPartition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		versions []Version
		wantErr  string
	}{
		{name: "empty", versions: nil},
		{
			name: "contiguous",
			versions: []Version{
				{Key: "1", ValidFrom: t2, ValidUntil: farFuture, IsCurrent: true},
				{Key: "1", ValidFrom: t1, ValidUntil: t2},
			},
		},
		{
			name: "gap",
			versions: []Version{
				{Key: "1", ValidFrom: t1, ValidUntil: t3},
				{Key: "1", ValidFrom: t2, ValidUntil: farFuture, IsCurrent: true},
			},
			wantErr: "gap or overlap",
		},
		{
			name: "two current",
			versions: []Version{
				{Key: "1", ValidFrom: t1, ValidUntil: t2, IsCurrent: true},
				{Key: "1", ValidFrom: t2, ValidUntil: farFuture, IsCurrent: true},
			},
			wantErr: "more than one current",
		},
		{
			name:     "closed latest",
			versions: []Version{{Key: "1", ValidFrom: t1, ValidUntil: t2}},
			wantErr:  "not open",
		},
		{
			name:     "empty interval",
			versions: []Version{{Key: "1", ValidFrom: t2, ValidUntil: t2}},
			wantErr:  "empty interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := CheckPartition(tt.versions, farFuture)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestEngine_Late(t *testing.T) {
	t.Parallel()

	for _, strategy := range []Strategy{ByColumn, ByTime} {
		t.Run(string(strategy), func(t *testing.T) {
			t.Parallel()

			e := newEngine(t, strategy)
			history := map[string][]Version{}
			Replay(history, e.Plan(nil, []record.Record{rec(1, t1, 100), rec(2, t1, 300)}))
			Replay(history, e.Plan(currentOf(history), []record.Record{rec(1, t2, 150)}))

			current := currentOf(history)
			stored := map[record.Key][]Version{}
			for key, versions := range history {
				stored[record.Key(key)] = versions
			}

			late := []record.Record{
				rec(1, t1, 100),   // replays the closed version
				rec(1, t2, 150),   // replays the current version
				rec(1, t2, 999),   // same timestamp as the current version, other content
				rec(1, t3, 120),   // inside the closed interval, other content
				rec(2, t2, 300),   // newer than the current version but held back by the watermark
				rec(3, t1, 1),     // key without versions
				{"key": int64(4)}, // no change timestamp
			}
			require.True(t, e.PrecedesCurrent(current, late))

			res := e.Late(current, stored, late)
			assert.Equal(t, 4, res.Stale)
			require.Len(t, res.Invalid, 1)
			assert.Equal(t, 7, res.Invalid[0].Row)

			require.Len(t, res.Violations, 2)
			assert.Equal(t, t2, res.Violations[0].ChangeTimestamp)
			assert.Contains(t, res.Violations[0].Reason, "same change timestamp")
			assert.Equal(t, t3, res.Violations[1].ChangeTimestamp)
			assert.Equal(t, t2, res.Violations[1].CurrentValidFrom)
		})
	}
}

func TestEngine_LateByColumnInsideInterval(t *testing.T) {
	t.Parallel()

	e := newEngine(t, ByColumn)
	history := map[string][]Version{}
	Replay(history, e.Plan(nil, []record.Record{rec(1, t1, 100)}))
	Replay(history, e.Plan(currentOf(history), []record.Record{rec(1, t2, 150)}))
	stored := map[record.Key][]Version{"1": history["1"]}

	// unchanged content inside the closed interval was never stored as its own version
	res := e.Late(currentOf(history), stored, []record.Record{rec(1, t3, 100)})
	assert.Equal(t, 1, res.Stale)
	assert.Empty(t, res.Violations)

	byTime := newEngine(t, ByTime)
	res = byTime.Late(currentOf(history), stored, []record.Record{rec(1, t3, 100)})
	assert.Equal(t, 0, res.Stale)
	assert.Len(t, res.Violations, 1)
}

func TestEngine_PrecedesCurrent(t *testing.T) {
	t.Parallel()

	e := newEngine(t, ByTime)
	history := map[string][]Version{}
	Replay(history, e.Plan(nil, []record.Record{rec(1, t3, 100)}))
	current := currentOf(history)

	assert.False(t, e.PrecedesCurrent(current, nil))
	assert.False(t, e.PrecedesCurrent(current, []record.Record{rec(1, t3, 100), rec(2, t1, 1)}))
	assert.True(t, e.PrecedesCurrent(current, []record.Record{rec(1, t1, 100)}))
}

func TestPlan_Verify(t *testing.T) {
	t.Parallel()

	e := newEngine(t, ByTime)
	history := map[string][]Version{}
	Replay(history, e.Plan(nil, []record.Record{rec(1, t1, 100)}))
	current := currentOf(history)

	plan := e.Plan(current, []record.Record{rec(1, t2, 150), rec(2, t1, 10), rec(1, t4, 200)})
	require.NoError(t, plan.Verify(current, farFuture))

	broken := Plan{Transitions: []Transition{
		{Action: Open, Key: "1", Next: &Version{Key: "1", ValidFrom: t2, ValidUntil: farFuture, IsCurrent: true}},
	}}
	require.EqualError(t, broken.Verify(current, farFuture), "key '1' has more than one current version")

	require.Error(t, plan.Verify(current, farFuture.Add(-time.Hour)))
}
