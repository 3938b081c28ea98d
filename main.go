package main

import (
	"os"

	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"

	"github.com/phala-network/computation-indexer/commands"
	"github.com/phala-network/computation-indexer/version"
)

var log = logging.Logger("indexer/main")

func main() {
	app := &cli.App{
		Name:    "computation-indexer",
		Usage:   "Maintains a materialized view of the computation economy from on-chain events",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				EnvVars: []string{"GOLOG_LOG_LEVEL"},
				Value:   "info",
				Usage:   "Set the default log level for all loggers to `LEVEL`",
			},
		},
		Before: func(cctx *cli.Context) error {
			return logging.SetLogLevel("*", cctx.String("log-level"))
		},
		Commands: []*cli.Command{
			commands.DaemonCmd,
			commands.InitCmd,
			commands.ConfigCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
