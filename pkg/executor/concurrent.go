package executor

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bruin-data/historian/pkg/logger"
	"github.com/bruin-data/historian/pkg/pipeline"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	"github.com/yourbasic/graph"
)

var (
	colors = []color.Attribute{
		color.FgBlue,
		color.FgMagenta,
		color.FgCyan,
		color.FgWhite,
		color.FgHiMagenta,
		color.FgHiBlue,
		color.FgHiCyan,
	}
	faint = color.New(color.Faint).SprintFunc()
)

const timeFormat = "2006-01-02 15:04:05"

type runner interface {
	Run(ctx context.Context, e *pipeline.Entity) (*Result, error)
}

// Observer is notified of every finished entity, e.g. to record metrics.
type Observer func(res *Result)

type Concurrent struct {
	runner      runner
	workerCount int
	logger      logger.Logger
	out         io.Writer
	observers   []Observer

	printLock sync.Mutex
}

func NewConcurrent(r runner, workerCount int, l logger.Logger, out io.Writer, observers ...Observer) *Concurrent {
	if workerCount < 1 {
		workerCount = 1
	}

	return &Concurrent{
		runner:      r,
		workerCount: workerCount,
		logger:      l,
		out:         out,
		observers:   observers,
	}
}

// Waves groups the entities into levels: every entity comes after all of its upstreams that are part of the given
// set. Upstreams outside the set are assumed to be up to date.
func Waves(entities []*pipeline.Entity) ([][]*pipeline.Entity, error) {
	index := make(map[string]int, len(entities))
	for i, e := range entities {
		index[e.Name] = i
	}

	g := graph.New(len(entities))
	for i, e := range entities {
		for _, up := range e.Upstreams() {
			if j, ok := index[up]; ok {
				g.Add(j, i)
			}
		}
	}

	order, ok := graph.TopSort(g)
	if !ok {
		return nil, errors.New("the entities contain a dependency cycle")
	}

	level := make([]int, len(entities))
	maxLevel := 0
	for _, v := range order {
		g.Visit(v, func(w int, _ int64) bool {
			if level[v]+1 > level[w] {
				level[w] = level[v] + 1
			}
			return false
		})
		if level[v] > maxLevel {
			maxLevel = level[v]
		}
	}

	waves := make([][]*pipeline.Entity, maxLevel+1)
	for i, e := range entities {
		waves[level[i]] = append(waves[level[i]], e)
	}
	return waves, nil
}

// Run executes the entities wave by wave. Entities downstream of a failure are not run and reported as
// upstream_failed. Results are returned in wave order.
func (c *Concurrent) Run(ctx context.Context, entities []*pipeline.Entity) ([]*Result, error) {
	waves, err := Waves(entities)
	if err != nil {
		return nil, err
	}

	failed := make(map[string]bool)
	results := make([]*Result, 0, len(entities))
	for i, wave := range waves {
		c.logger.Debugw("starting wave", "wave", i, "entities", len(wave))

		waveResults := make([]*Result, len(wave))
		p := pool.New().WithMaxGoroutines(c.workerCount)
		for j, e := range wave {
			if upstream, ok := failedUpstream(e, failed); ok {
				c.logger.Warnw("skipping entity, upstream failed", "entity", e.Name, "upstream", upstream)
				waveResults[j] = &Result{
					Entity: e.Name,
					Table:  e.TableName(),
					Status: UpstreamFailed,
					Err:    errors.Errorf("upstream entity '%s' failed", upstream),
				}
				continue
			}

			printer := color.New(colors[j%len(colors)])
			p.Go(func() {
				waveResults[j] = c.runEntity(ctx, e, printer)
			})
		}
		p.Wait()

		for _, res := range waveResults {
			if res.Status != Succeeded {
				failed[res.Entity] = true
			}
			for _, o := range c.observers {
				o(res)
			}
			results = append(results, res)
		}
	}

	return results, nil
}

func (c *Concurrent) runEntity(ctx context.Context, e *pipeline.Entity, printer *color.Color) *Result {
	c.printf(printer, "[%s] Starting: %s\n", time.Now().Format(timeFormat), e.Name)

	start := time.Now()
	res, err := c.runner.Run(ctx, e)
	if res == nil {
		res = &Result{Entity: e.Name, Table: e.TableName(), Status: Failed}
	}
	if err != nil {
		res.Status = Failed
		res.Err = err
		c.logger.Errorw("entity failed", "entity", e.Name, "error", err.Error())
	}

	durationString := fmt.Sprintf("(%s)", time.Since(start).Truncate(time.Millisecond).String())
	status := "Finished"
	if err != nil {
		status = "Failed"
	}
	c.printf(printer, "[%s] %s: %s %s\n", time.Now().Format(timeFormat), status, e.Name, faint(durationString))

	return res
}

func (c *Concurrent) printf(printer *color.Color, format string, args ...any) {
	c.printLock.Lock()
	defer c.printLock.Unlock()
	_, _ = printer.Fprintf(c.out, format, args...)
}

func failedUpstream(e *pipeline.Entity, failed map[string]bool) (string, bool) {
	for _, up := range e.Upstreams() {
		if failed[up] {
			return up, true
		}
	}
	return "", false
}
