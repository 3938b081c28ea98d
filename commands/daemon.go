package commands

import (
	"io"
	"os"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/phala-network/computation-indexer/chain"
	"github.com/phala-network/computation-indexer/config"
	"github.com/phala-network/computation-indexer/indexer"
	"github.com/phala-network/computation-indexer/metrics"
	"github.com/phala-network/computation-indexer/snapshot"
	"github.com/phala-network/computation-indexer/storage"
)

var log = logging.Logger("commands")

var DaemonCmd = &cli.Command{
	Name:  "daemon",
	Usage: "Follow the event feed and maintain the aggregate view",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			EnvVars: []string{"INDEXER_CONFIG"},
			Value:   "config.toml",
			Usage:   "Path to the daemon config file",
		},
		&cli.StringFlag{
			Name:  "feed",
			Usage: "Override the configured event feed path ('-' for stdin)",
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := cctx.Context
		conf, err := config.FromFile(cctx.String("config"))
		if err != nil {
			return err
		}
		feedPath := conf.Watcher.Feed
		if cctx.IsSet("feed") {
			feedPath = cctx.String("feed")
		}

		db, err := storage.NewDatabase(ctx, conf.Database.DatabaseURL(), conf.Database.PoolSize)
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Errorw("close database", "error", err)
			}
		}()
		if err := db.CreateSchema(ctx); err != nil {
			return err
		}

		feed, err := openFeed(feedPath)
		if err != nil {
			return err
		}
		if closer, ok := feed.(io.Closer); ok {
			defer closer.Close()
		}

		snapshots := snapshot.NewSource(conf.Snapshot.Dir)
		agg := indexer.NewAggregator(db, snapshots)
		watcher := indexer.NewWatcher(db, chain.NewFeedSource(feed), agg, snapshots, indexer.WatcherOpts{
			StartHeight:  conf.Snapshot.Height,
			PollInterval: time.Duration(conf.Watcher.PollInterval),
		})

		g, gctx := errgroup.WithContext(ctx)
		if conf.Metrics.ListenAddr != "" {
			g.Go(func() error {
				return metrics.ListenAndServe(gctx, conf.Metrics.ListenAddr)
			})
		}
		g.Go(func() error {
			return watcher.Run(gctx)
		})
		return g.Wait()
	},
}

func openFeed(path string) (io.Reader, error) {
	if path == "-" {
		return os.Stdin, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("open feed: %w", err)
	}
	return f, nil
}
