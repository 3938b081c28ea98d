package commands

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/urfave/cli/v2"

	"github.com/phala-network/computation-indexer/config"
	"github.com/phala-network/computation-indexer/storage"
)

var InitCmd = &cli.Command{
	Name:  "init",
	Usage: "Create any missing database tables",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			EnvVars: []string{"INDEXER_CONFIG"},
			Value:   "config.toml",
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := cctx.Context
		conf, err := config.FromFile(cctx.String("config"))
		if err != nil {
			return err
		}
		db, err := storage.NewDatabase(ctx, conf.Database.DatabaseURL(), conf.Database.PoolSize)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.CreateSchema(ctx)
	},
}

var ConfigCmd = &cli.Command{
	Name:  "config",
	Usage: "Print the default config as TOML",
	Action: func(cctx *cli.Context) error {
		return toml.NewEncoder(os.Stdout).Encode(config.DefaultConf())
	},
}
