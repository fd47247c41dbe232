package main

import (
	"log"
	"os"

	"github.com/ericvolp12/issues-etl/pkg/config"
	"github.com/urfave/cli/v2"
)

func main() {
	config.LoadDotEnv()

	app := cli.App{
		Name:    "issues-etl",
		Usage:   "incremental GitHub issue activity loader",
		Version: "0.0.1",
		Flags:   config.Flags(),
		Commands: []*cli.Command{
			runCommand,
			extractCommand,
			loadCommand,
			reposCommand,
			watermarkCommand,
			exportCommand,
			serveCommand,
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
