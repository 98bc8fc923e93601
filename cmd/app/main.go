package main

import (
	"os"

	"github.com/urfave/cli"

	"github.com/1F47E/go-padreel/pkg/logger"
)

var app = cli.NewApp()
var log = logger.Log

func init() {
	app.Name = "padreel"
	app.Usage = "Generate test videos of an exact byte size"
	app.UsageText = "padreel [global options] command [options]"
	app.HideVersion = true
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config, c", Usage: "YAML config file", EnvVar: "PADREEL_CONFIG"},
		cli.StringFlag{Name: "log-level", Usage: "debug, info, warn, error"},
		cli.StringFlag{Name: "log-format", Usage: "text or json"},
	}
	app.Commands = []cli.Command{
		{
			Name:    "generate",
			Aliases: []string{"g"},
			Usage:   "Generate a video (or a mock buffer) of the target size",
			Flags:   generateFlags,
			Action:  generateAction,
		},
		{
			Name:    "serve",
			Aliases: []string{"s"},
			Usage:   "Run the HTTP API",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "addr", Usage: "listen address, overrides config"},
			},
			Action: serveAction,
		},
		{
			Name:    "preview",
			Aliases: []string{"p"},
			Usage:   "Render a single frame to PNG",
			Flags:   previewFlags,
			Action:  previewAction,
		},
		{
			Name:      "verify",
			Aliases:   []string{"v"},
			Usage:     "Check a generated file against its target size",
			ArgsUsage: "filename",
			Flags: []cli.Flag{
				cli.Float64Flag{Name: "size", Usage: "expected size in MB, 0 to only inspect"},
			},
			Action: verifyAction,
		},
		{
			Name:   "profiles",
			Usage:  "List encode profiles supported by the configured encoder",
			Action: profilesAction,
		},
	}
}

func main() {
	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
