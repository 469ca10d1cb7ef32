package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/bruin-data/historian/pkg/pipeline"
	"github.com/urfave/cli/v2"
)

func Internal() *cli.Command {
	return &cli.Command{
		Name:   "internal",
		Hidden: true,
		Subcommands: []*cli.Command{
			Schema(),
		},
	}
}

func Schema() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "print the JSON schema of the entity definitions",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "project",
				Usage: "print the schema of the project file instead",
			},
		},
		Action: func(c *cli.Context) error {
			s := pipeline.EntitySchema()
			if c.Bool("project") {
				s = pipeline.ProjectSchema()
			}

			js, err := json.MarshalIndent(s, "", "  ")
			if err != nil {
				printErrorJSON(err)
				return cli.Exit("", 1)
			}

			fmt.Println(string(js))
			return nil
		},
	}
}
