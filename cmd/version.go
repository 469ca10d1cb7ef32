package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/bruin-data/historian/pkg/ansisql"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

type VersionInfo struct {
	Version   string   `json:"version"`
	Commit    string   `json:"commit"`
	GoVersion string   `json:"go_version"`
	Dialects  []string `json:"dialects"`
}

func VersionCmd(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "print the version and the supported warehouse dialects",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "the output type, possible values are: plain, json",
			},
		},
		Action: func(c *cli.Context) error {
			info := VersionInfo{
				Version:   c.App.Version,
				Commit:    commit,
				GoVersion: runtime.Version(),
				Dialects:  ansisql.DialectNames(),
			}
			return printVersion(c.App.Writer, info, c.String("output"))
		},
	}
}

func printVersion(out io.Writer, info VersionInfo, output string) error {
	if output == "json" {
		outputString, err := json.Marshal(info)
		if err != nil {
			return errors.Wrap(err, "failed to marshal the output")
		}
		_, err = fmt.Fprintln(out, string(outputString))
		return err
	}

	_, err := fmt.Fprintf(out, "historian %s (%s, %s)\nDialects: %s\n", info.Version, info.Commit, info.GoVersion, strings.Join(info.Dialects, ", "))
	return err
}
