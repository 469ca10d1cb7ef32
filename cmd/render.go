package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/bruin-data/historian/pkg/ansisql"
	"github.com/bruin-data/historian/pkg/logger"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

func Render(isDebug *bool) *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "render the DDL of the tables written by the project",
		ArgsUsage: "[path to the project root]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dialect",
				Aliases: []string{"d"},
				Usage:   "the SQL dialect to render for, possible values are: " + strings.Join(ansisql.DialectNames(), ", "),
				Value:   "duckdb",
			},
			&cli.StringSliceFlag{
				Name:  "entity",
				Usage: "render only the given entities",
			},
			&cli.StringSliceFlag{
				Name:  "var",
				Usage: "override project variables with key=value pairs",
			},
		},
		Action: func(c *cli.Context) error {
			defer RecoverFromPanic()

			l := makeLogger(*isDebug)
			err := RenderDDL(fs, projectRoot(c.Args().Get(0)), c.String("dialect"), c.StringSlice("entity"), c.StringSlice("var"), l, os.Stdout)
			if err != nil {
				printError(err, "", "Failed to render the project")
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

// RenderDDL writes the schema and table statements of every selected entity for the given dialect.
func RenderDDL(fs afero.Fs, root, dialect string, entityNames, vars []string, l logger.Logger, out io.Writer) error {
	d, err := ansisql.GetDialect(dialect)
	if err != nil {
		return err
	}

	project, err := loadProject(fs, root, vars, time.Now().UTC(), l)
	if err != nil {
		return err
	}

	entities, err := selectEntities(project, entityNames)
	if err != nil {
		return err
	}

	for i, e := range entities {
		ddl, err := ansisql.DDL(d, e.StoreTable())
		if err != nil {
			return errors.Wrapf(err, "failed to render the table of entity '%s'", e.Name)
		}

		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "-- %s\n%s\n", e.Name, ddl)
	}
	return nil
}
