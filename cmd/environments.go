package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/bruin-data/historian/pkg/config"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
)

func Environments() *cli.Command {
	return &cli.Command{
		Name:  "environments",
		Usage: "manage environments defined in .historian.yml",
		Subcommands: []*cli.Command{
			ListEnvironments(),
		},
	}
}

func ListEnvironments() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "list the environments and their connections",
		ArgsUsage: "[path to the project root]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "the output type, possible values are: plain, json",
			},
			&cli.StringFlag{
				Name:    "config-file",
				EnvVars: []string{"HISTORIAN_CONFIG_FILE"},
				Usage:   "the path to the .historian.yml file",
			},
		},
		Action: func(c *cli.Context) error {
			defer RecoverFromPanic()

			output := strings.ToLower(c.String("output"))
			cm, err := loadConfig(fs, projectRoot(c.Args().Get(0)), c.String("config-file"), "")
			if err != nil {
				printError(err, output, "Failed to load the configuration")
				return cli.Exit("", 1)
			}

			if err := listEnvironments(os.Stdout, cm, output); err != nil {
				printError(err, output, "Failed to list the environments")
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

type environmentResponse struct {
	Name        string            `json:"name"`
	Connections map[string]string `json:"connections"`
}

type environmentsResponse struct {
	SelectedEnvironment string                `json:"selected_environment"`
	Environments        []environmentResponse `json:"environments"`
}

func listEnvironments(out io.Writer, cm *config.Config, output string) error {
	names := cm.GetEnvironmentNames()

	if output == "json" {
		resp := environmentsResponse{
			SelectedEnvironment: cm.SelectedEnvironmentName,
			Environments: lo.Map(names, func(name string, _ int) environmentResponse {
				env := cm.Environments[name]
				return environmentResponse{Name: name, Connections: env.Connections.ConnectionsSummaryList()}
			}),
		}

		js, err := json.Marshal(resp)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(js))
		return nil
	}

	infoPrinter.Fprintf(out, "Selected environment: %s\n", cm.SelectedEnvironmentName)
	for _, name := range names {
		env := cm.Environments[name]
		connections := env.Connections.ConnectionsSummaryList()

		fmt.Fprintln(out)
		infoPrinter.Fprintf(out, "Environment: %s\n", name)

		t := table.NewWriter()
		t.SetOutputMirror(out)
		t.AppendHeader(table.Row{"Type", "Name"})

		connNames := lo.Keys(connections)
		sort.Strings(connNames)
		for _, conn := range connNames {
			t.AppendRow(table.Row{connections[conn], conn})
		}
		t.SetStyle(table.StyleLight)
		t.Render()
	}
	return nil
}

