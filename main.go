package main

import (
	"os"
	"time"

	"github.com/bruin-data/historian/cmd"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

var (
	version = "dev"
	commit  = ""
)

func main() {
	isDebug := false
	color.NoColor = false

	versionCommand := cmd.VersionCmd(commit)

	cli.VersionPrinter = func(cCtx *cli.Context) {
		err := versionCommand.Action(cCtx)
		if err != nil {
			panic(err)
		}
	}

	app := &cli.App{
		Name:     "historian",
		Version:  version,
		Usage:    "Incremental ingestion and SCD2 historization of staged data",
		Compiled: time.Now(),
		ExitErrHandler: func(context *cli.Context, err error) {
			cli.HandleExitCoder(err)
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "debug",
				Value:       false,
				Usage:       "show debug information",
				EnvVars:     []string{"HISTORIAN_DEBUG"},
				Destination: &isDebug,
			},
		},
		Commands: []*cli.Command{
			cmd.Run(&isDebug),
			cmd.Validate(&isDebug),
			cmd.Render(&isDebug),
			cmd.Init(),
			cmd.Internal(),
			cmd.Environments(),
			versionCommand,
		},
	}

	_ = app.Run(os.Args)
}
