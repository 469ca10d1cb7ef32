package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bruin-data/historian/pkg/connection"
	"github.com/bruin-data/historian/pkg/executor"
	"github.com/bruin-data/historian/pkg/logger"
	"github.com/bruin-data/historian/pkg/metrics"
	"github.com/bruin-data/historian/pkg/pipeline"
	"github.com/bruin-data/historian/pkg/store"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
	"github.com/xlab/treeprint"
)

type RunOptions struct {
	Root        string
	Environment string
	ConfigFile  string
	Workers     int
	Entities    []string
	DryRun      bool
	MetricsFile string
	Vars        []string
}

func Run(isDebug *bool) *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "ingest the staged data of a project and historize it",
		ArgsUsage: "[path to the project root]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "environment",
				Aliases: []string{"e", "env"},
				Usage:   "the environment to use",
			},
			&cli.StringFlag{
				Name:    "config-file",
				EnvVars: []string{"HISTORIAN_CONFIG_FILE"},
				Usage:   "the path to the .historian.yml file",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "number of entities to run in parallel",
				Value:   4,
			},
			&cli.StringSliceFlag{
				Name:  "entity",
				Usage: "run only the given entities, their upstreams are assumed to be up to date",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "run against an in-memory store, nothing is persisted",
			},
			&cli.StringFlag{
				Name:  "metrics-file",
				Usage: "write the run metrics to the given file in the node exporter textfile format",
			},
			&cli.StringSliceFlag{
				Name:    "var",
				Usage:   "override project variables with key=value pairs",
				EnvVars: []string{"HISTORIAN_VARS"},
			},
		},
		Action: func(c *cli.Context) error {
			defer RecoverFromPanic()

			l := makeLogger(*isDebug)
			opts := RunOptions{
				Root:        projectRoot(c.Args().Get(0)),
				Environment: c.String("environment"),
				ConfigFile:  c.String("config-file"),
				Workers:     c.Int("workers"),
				Entities:    c.StringSlice("entity"),
				DryRun:      c.Bool("dry-run"),
				MetricsFile: c.String("metrics-file"),
				Vars:        c.StringSlice("var"),
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			runID := NewRunID()
			l = l.With("run_id", runID)
			l.Debugf("using project root '%s'", opts.Root)

			start := time.Now()
			results, err := ExecuteRun(ctx, fs, opts, l, os.Stdout)
			if err != nil {
				printError(err, "", "Failed to run the project")
				return cli.Exit("", 1)
			}

			printRunSummary(os.Stdout, results)
			failed := failedResults(results)
			if len(failed) > 0 {
				printFailures(failed)
				errorPrinter.Printf("\nFailed %d of %d entities in %s\n", len(failed), len(results), time.Since(start).Truncate(time.Millisecond))
				return cli.Exit("", 1)
			}

			if violations := countViolations(results); violations > 0 {
				warningPrinter.Printf("\n%d record(s) were rejected as ordering violations and need manual reconciliation\n", violations)
			}
			successPrinter.Printf("\nSuccessfully ran %d entities in %s\n", len(results), time.Since(start).Truncate(time.Millisecond))
			return nil
		},
	}
}

// ExecuteRun loads the project, opens the store and runs the selected entities. Entity failures are reported in the
// results; the error is reserved for problems that prevent the run from starting.
func ExecuteRun(ctx context.Context, fs afero.Fs, opts RunOptions, l logger.Logger, out io.Writer) ([]*executor.Result, error) {
	project, err := loadProject(fs, opts.Root, opts.Vars, time.Now().UTC(), l)
	if err != nil {
		return nil, err
	}

	entities, err := selectEntities(project, opts.Entities)
	if err != nil {
		return nil, err
	}

	s, closeStore, err := openProjectStore(ctx, fs, project, opts, l)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := closeStore(); err != nil {
			l.Warnw("failed to close the store", "error", err.Error())
		}
	}()

	registry := metrics.NewRegistry()
	operator := executor.NewOperator(project, s, fs, l)
	ex := executor.NewConcurrent(operator, opts.Workers, l, out, func(res *executor.Result) {
		registry.Observe(res.RunStats())
	})

	infoPrinter.Fprintf(out, "Running %d entities of project '%s'...\n\n", len(entities), project.Name)
	results, err := ex.Run(ctx, entities)
	if err != nil {
		return nil, err
	}

	if opts.MetricsFile != "" {
		if err := registry.WriteToTextfile(opts.MetricsFile); err != nil {
			return results, errors.Wrapf(err, "failed to write the metrics to '%s'", opts.MetricsFile)
		}
	}

	return results, nil
}

//nolint:ireturn
func openProjectStore(ctx context.Context, fs afero.Fs, project *pipeline.Project, opts RunOptions, l logger.Logger) (store.Store, func() error, error) {
	if opts.DryRun {
		l.Infof("dry run, using an in-memory store")
		s := store.NewMemory()
		return s, s.Close, nil
	}

	if project.DefaultConnection == "" {
		return nil, nil, errors.Errorf("project '%s' has no default_connection, set one or use --dry-run", project.Name)
	}

	cm, err := loadConfig(fs, opts.Root, opts.ConfigFile, opts.Environment)
	if err != nil {
		return nil, nil, err
	}
	l.Debugf("using the environment '%s' from '%s'", cm.SelectedEnvironmentName, cm.Path())

	manager := connection.NewManagerFromConfig(cm)
	s, err := manager.GetStore(ctx, project.DefaultConnection)
	if err != nil {
		_ = manager.Close()
		return nil, nil, err
	}
	return s, manager.Close, nil
}

func printRunSummary(out io.Writer, results []*executor.Result) {
	fmt.Fprintln(out)

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Entity", "Status", "Read", "Rejected", "Stale", "Opened", "Closed", "Upserted", "Violations", "Watermark", "Attempts", "Duration"})
	for _, res := range results {
		watermark := ""
		if !res.NewWatermark.IsZero() {
			watermark = res.NewWatermark.Format(time.DateTime)
		}
		t.AppendRow(table.Row{
			res.Entity,
			statusColor(res.Status).Sprint(res.Status.String()),
			res.Read,
			res.Rejected,
			res.Stale,
			res.VersionsOpened,
			res.VersionsClosed,
			res.RowsUpserted,
			len(res.OrderingViolations),
			watermark,
			res.Attempts,
			res.Duration.Truncate(time.Millisecond).String(),
		})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

func statusColor(s executor.Status) *color.Color {
	switch s {
	case executor.Succeeded:
		return color.New(color.FgGreen)
	case executor.UpstreamFailed:
		return color.New(color.FgYellow)
	case executor.Failed:
		return color.New(color.FgRed)
	default:
		return color.New(color.Reset)
	}
}

func failedResults(results []*executor.Result) []*executor.Result {
	var failed []*executor.Result
	for _, res := range results {
		if res.Status == executor.Failed || res.Status == executor.UpstreamFailed {
			failed = append(failed, res)
		}
	}
	return failed
}

func countViolations(results []*executor.Result) int {
	total := 0
	for _, res := range results {
		total += len(res.OrderingViolations)
	}
	return total
}

func printFailures(failed []*executor.Result) {
	fmt.Println()
	tree := treeprint.NewWithRoot(color.New(color.FgRed).Sprintf("%d entities failed", len(failed)))
	for _, res := range failed {
		branch := tree.AddBranch(color.New(color.FgYellow).Sprint(res.Entity))
		if res.Status == executor.UpstreamFailed {
			branch.AddNode(faint(res.Err.Error()))
			continue
		}
		branch.AddNode(color.New(color.FgRed).Sprintf("%s", res.Err))
	}
	fmt.Println(tree.String())
}
