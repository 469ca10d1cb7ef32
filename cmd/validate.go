package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/bruin-data/historian/pkg/pipeline"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"github.com/xlab/treeprint"
)

func Validate(isDebug *bool) *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "validate the project and its entities without touching any data",
		ArgsUsage: "[path to the project root]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "var",
				Usage: "override project variables with key=value pairs",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "the output type, possible values are: plain, json",
			},
		},
		Action: func(c *cli.Context) error {
			defer RecoverFromPanic()

			output := strings.ToLower(c.String("output"))
			if output == "json" {
				color.Output = io.Discard
			}

			l := makeLogger(*isDebug)
			root := projectRoot(c.Args().Get(0))
			infoPrinter.Printf("Validating the project in '%s'...\n", root)

			project, err := loadProject(fs, root, c.StringSlice("var"), time.Now().UTC(), l)
			if err != nil {
				printError(err, output, "Validation failed")
				return cli.Exit("", 1)
			}

			if output == "json" {
				fmt.Println(`{"status":"success"}`)
				return nil
			}

			fmt.Fprintln(os.Stdout)
			fmt.Fprintln(os.Stdout, projectTree(project).String())
			successPrinter.Printf("Successfully validated %d entities\n", len(project.Entities))
			return nil
		},
	}
}

// projectTree lists the entities by layer along with the table they write.
func projectTree(p *pipeline.Project) treeprint.Tree {
	tree := treeprint.NewWithRoot(infoPrinter.Sprint(p.Name))

	layers, grouped := p.Layers()
	for _, layer := range layers {
		branch := tree.AddBranch(color.New(color.FgCyan).Sprint(string(layer)))
		for _, e := range grouped[layer] {
			branch.AddNode(fmt.Sprintf("%s %s", e.Name, faint(describeEntity(e))))
		}
	}
	return tree
}

func describeEntity(e *pipeline.Entity) string {
	source := e.Source.Entity
	if source == "" {
		source = e.SourcePath()
	}

	kind := "current"
	if e.IsHistorized() {
		kind = string(e.Materialization.Strategy)
	}
	return fmt.Sprintf("(%s <- %s, %s)", e.TableName(), source, kind)
}
