package executor

import (
	"context"
	"time"

	"github.com/bruin-data/historian/pkg/date"
	"github.com/bruin-data/historian/pkg/logger"
	"github.com/bruin-data/historian/pkg/merge"
	"github.com/bruin-data/historian/pkg/pipeline"
	"github.com/bruin-data/historian/pkg/record"
	"github.com/bruin-data/historian/pkg/scd2"
	"github.com/bruin-data/historian/pkg/source"
	"github.com/bruin-data/historian/pkg/store"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

type statsReader interface {
	source.Reader
	Stats() source.Stats
}

// Operator runs a single entity: read the source, merge against the watermark, derive, then historize or upsert,
// all inside one transaction.
type Operator struct {
	project *pipeline.Project
	store   store.Store
	fs      afero.Fs
	logger  logger.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewOperator(project *pipeline.Project, s store.Store, fs afero.Fs, l logger.Logger) *Operator {
	return &Operator{
		project: project,
		store:   s,
		fs:      fs,
		logger:  l,
		now:     func() time.Time { return time.Now().UTC() },
		sleep:   sleep,
	}
}

// Run executes the entity, retrying transaction failures with exponential backoff. The returned result reflects
// the last attempt.
func (o *Operator) Run(ctx context.Context, e *pipeline.Entity) (*Result, error) {
	base, err := o.project.Backoff()
	if err != nil {
		return &Result{Entity: e.Name, Status: Failed, Err: err}, err
	}
	retries := o.project.RetryCount()
	timer := &Backoff{BaseDuration: base}

	start := time.Now()
	for attempt := 1; ; attempt++ {
		res, err := o.runOnce(ctx, e)
		res.Attempts = attempt
		res.Duration = time.Since(start)
		if err == nil {
			res.Status = Succeeded
			return res, nil
		}

		res.Status = Failed
		res.Err = err

		var txErr *TransactionError
		if !errors.As(err, &txErr) || attempt > retries {
			return res, err
		}

		wait := timer.Duration()
		o.logger.Warnw("transaction failed, retrying", "entity", e.Name, "attempt", attempt, "wait", wait.String(), "error", err.Error())
		if sleepErr := o.sleep(ctx, wait); sleepErr != nil {
			return res, err
		}
		timer.Increase()
	}
}

func (o *Operator) runOnce(ctx context.Context, e *pipeline.Entity) (res *Result, err error) {
	table := e.StoreTable()
	res = &Result{Entity: e.Name, Table: table.Name}

	txError := func(op string, err error) error {
		return &TransactionError{Entity: e.Name, Op: op, Err: err}
	}

	tx, err := o.store.Begin(ctx)
	if err != nil {
		return res, txError("begin", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, store.ErrTxDone) {
			o.logger.Warnw("failed to roll back", "entity", e.Name, "error", rbErr.Error())
		}
	}()

	if err := tx.EnsureTables(ctx, table); err != nil {
		return res, txError("provisioning", err)
	}

	watermark, found, err := tx.Watermark(ctx, table)
	if err != nil {
		return res, txError("watermark read", err)
	}
	if !found {
		watermark = date.Epoch
	}
	res.OldWatermark = watermark

	reader, err := o.openSource(ctx, tx, e)
	if err != nil {
		return res, err
	}
	records, err := source.ReadAll(reader)
	_ = reader.Close()
	if err != nil {
		return res, errors.Wrapf(err, "entity '%s': failed to read the source", e.Name)
	}
	stats := reader.Stats()
	res.Read = len(records)
	res.Skipped = stats.Skipped
	res.Padded = stats.Padded

	merger, err := merge.NewMerger(e.MergeOptions())
	if err != nil {
		return res, errors.Wrapf(err, "entity '%s'", e.Name)
	}
	merged := merger.Merge(watermark, records)
	res.Stale = merged.Stale
	res.Duplicates = merged.Duplicates
	res.Rejected = len(merged.Rejected)
	for _, rej := range merged.Rejected {
		o.logger.Warnw("rejected record", "entity", e.Name, "row", rej.Row, "reason", rej.Err.Error())
	}

	selected := o.derive(e, merged.Selected, res)
	res.Selected = len(selected)

	if e.IsHistorized() {
		late := o.derive(e, merged.Late, res)
		if err := o.historize(ctx, tx, e, table, selected, late, res); err != nil {
			return res, err
		}
	} else {
		n, err := tx.Upsert(ctx, table, selected, o.now())
		if err != nil {
			return res, txError("upsert", err)
		}
		res.RowsUpserted = n
	}

	newWatermark, found, err := tx.Watermark(ctx, table)
	if err != nil {
		return res, txError("watermark read", err)
	}
	if !found {
		newWatermark = watermark
	}
	if newWatermark.After(merged.Watermark) {
		return res, errors.Errorf("entity '%s': table watermark %s moved past the batch watermark %s",
			e.Name, newWatermark.Format(time.RFC3339), merged.Watermark.Format(time.RFC3339))
	}
	res.NewWatermark = newWatermark

	if err := tx.Commit(); err != nil {
		return res, txError("commit", err)
	}
	committed = true

	o.logger.Debugw("entity batch committed",
		"entity", e.Name,
		"read", res.Read,
		"selected", res.Selected,
		"watermark", res.NewWatermark.Format(time.RFC3339),
	)
	return res, nil
}

//nolint:ireturn
func (o *Operator) openSource(ctx context.Context, tx store.Tx, e *pipeline.Entity) (statsReader, error) {
	if e.Source.Entity == "" {
		reader, err := source.NewCSVReader(o.fs, e.SourcePath(), e.Fields(), source.CSVOptions{
			Header:                 e.Source.Header.Bool(),
			Delimiter:              e.Source.Delimiter,
			TolerateColumnMismatch: e.Source.TolerateColumnMismatch,
		}, o.logger)
		if err != nil {
			return nil, errors.Wrapf(err, "entity '%s'", e.Name)
		}
		return reader, nil
	}

	upstream := o.project.GetEntityByName(e.Source.Entity)
	if upstream == nil {
		return nil, errors.Errorf("entity '%s': source entity '%s' does not exist", e.Name, e.Source.Entity)
	}

	upstreamTable := upstream.StoreTable()
	if err := tx.EnsureTables(ctx, upstreamTable); err != nil {
		return nil, &TransactionError{Entity: e.Name, Op: "provisioning", Err: err}
	}
	rows, err := tx.Scan(ctx, upstreamTable, true)
	if err != nil {
		return nil, &TransactionError{Entity: e.Name, Op: "upstream read", Err: err}
	}

	return source.NewTableReader(upstreamTable.Name, rows, e.Fields(), o.logger), nil
}

// derive computes the derived fields on copies of the selected records; records failing a derivation are rejected.
func (o *Operator) derive(e *pipeline.Entity, selected []record.Record, res *Result) []record.Record {
	set := e.Derivations()
	if set.Len() == 0 {
		return selected
	}

	out := make([]record.Record, 0, len(selected))
	for _, r := range selected {
		c := r.Clone()
		if err := set.Apply(c); err != nil {
			res.Rejected++
			o.logger.Warnw("rejected record", "entity", e.Name, "reason", err.Error())
			continue
		}
		out = append(out, c)
	}
	return out
}

// historize applies the selected records as version transitions. Late records, the ones the watermark held back,
// are checked against the stored versions so that out-of-order changes surface as ordering violations.
func (o *Operator) historize(ctx context.Context, tx store.Tx, e *pipeline.Entity, table *store.Table, records, late []record.Record, res *Result) error {
	farFuture, err := o.project.FarFutureTime()
	if err != nil {
		return err
	}
	engine, err := scd2.NewEngine(e.HistoryConfig(farFuture))
	if err != nil {
		return errors.Wrapf(err, "entity '%s'", e.Name)
	}

	current, err := tx.CurrentVersions(ctx, table)
	if err != nil {
		return &TransactionError{Entity: e.Name, Op: "current versions read", Err: err}
	}

	var history map[record.Key][]scd2.Version
	if engine.PrecedesCurrent(current, late) {
		history, err = o.history(ctx, tx, e, table)
		if err != nil {
			return err
		}
	}
	checked := engine.Late(current, history, late)
	res.Stale = checked.Stale

	plan := engine.Plan(current, records)
	if err := plan.Verify(current, farFuture); err != nil {
		return errors.Wrapf(err, "entity '%s': the planned versions break the history intervals", e.Name)
	}

	invalid := append(checked.Invalid, plan.Invalid...)
	res.Rejected += len(invalid)
	for _, inv := range invalid {
		o.logger.Warnw("rejected record", "entity", e.Name, "reason", inv.Error())
	}
	res.OrderingViolations = append(checked.Violations, plan.Violations...)
	for _, v := range res.OrderingViolations {
		o.logger.Warnw("ordering violation", "entity", e.Name, "key", v.Key.String(), "reason", v.Error())
	}

	for _, t := range plan.Transitions {
		switch t.Action {
		case scd2.Open:
			if err := tx.InsertVersion(ctx, table, t.Next); err != nil {
				return &TransactionError{Entity: e.Name, Op: "version insert", Err: err}
			}
			res.VersionsOpened++
		case scd2.Supersede:
			if err := tx.CloseVersion(ctx, table, t.Previous, t.Next.ValidFrom); err != nil {
				return &TransactionError{Entity: e.Name, Op: "version close", Err: err}
			}
			res.VersionsClosed++
			if err := tx.InsertVersion(ctx, table, t.Next); err != nil {
				return &TransactionError{Entity: e.Name, Op: "version insert", Err: err}
			}
			res.VersionsOpened++
		case scd2.Unchanged:
			res.Unchanged++
		}
	}

	return nil
}

func (o *Operator) history(ctx context.Context, tx store.Tx, e *pipeline.Entity, table *store.Table) (map[record.Key][]scd2.Version, error) {
	rows, err := tx.Scan(ctx, table, false)
	if err != nil {
		return nil, &TransactionError{Entity: e.Name, Op: "history read", Err: err}
	}

	out := make(map[record.Key][]scd2.Version)
	for _, r := range rows {
		v, err := store.VersionFromRow(table, r)
		if err != nil {
			return nil, errors.Wrapf(err, "entity '%s': invalid version in '%s'", e.Name, table.Name)
		}
		out[v.Key] = append(out[v.Key], *v)
	}
	return out, nil
}
