package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/flowdesk/mailsync/cmd"
)

const (
	version = "0.1.0"
)

func main() {
	app := &cli.App{
		Name:    "mailsync",
		Usage:   "Gmail integration core for the CRM: OAuth lifecycle, watch renewal, send and threading",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
		},
		Commands: []*cli.Command{
			cmd.ServeCommand(),
			cmd.RenewCommand(),
			cmd.SetupCommand(),
			cmd.ConfigCommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
