package indexer

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/raulk/clock"
	"golang.org/x/xerrors"

	"github.com/phala-network/computation-indexer/chain"
	"github.com/phala-network/computation-indexer/metrics"
	"github.com/phala-network/computation-indexer/model"
)

// WatcherOpts configures the batch-following loop.
type WatcherOpts struct {
	// StartHeight is the first block to process and the height the
	// snapshot bootstrap is keyed to.
	StartHeight int64
	// PollInterval is how long to wait when the source has nothing new.
	// Zero means stop once the source is drained.
	PollInterval time.Duration
}

// Watcher drives the pipeline: it follows the block source in ascending
// height order, triggers the one-time bootstrap when the stream begins at
// the configured start height, and runs each batch through the aggregator
// followed by the block-time hook.
type Watcher struct {
	store     model.Store
	source    chain.BlockSource
	agg       *Aggregator
	snapshots SnapshotSource
	opts      WatcherOpts
	clock     clock.Clock
}

func NewWatcher(store model.Store, source chain.BlockSource, agg *Aggregator, snapshots SnapshotSource, opts WatcherOpts) *Watcher {
	return &Watcher{
		store:     store,
		source:    source,
		agg:       agg,
		snapshots: snapshots,
		opts:      opts,
		clock:     clock.New(),
	}
}

// resumeHeight picks the first height to request: one past the last
// processed height, or the configured start height on a fresh database.
func (w *Watcher) resumeHeight(ctx context.Context) (int64, error) {
	global, err := w.store.GlobalState(ctx)
	if errors.Is(err, model.ErrNotFound) {
		return w.opts.StartHeight, nil
	}
	if err != nil {
		return 0, xerrors.Errorf("read global state: %w", err)
	}
	return global.Height + 1, nil
}

// Run processes batches until the context is cancelled, a batch fails, or
// a finite source is drained. Source errors are retried with exponential
// backoff; aggregation errors are fatal since they indicate a missing
// entity or an out-of-order stream, not a transient condition.
func (w *Watcher) Run(ctx context.Context) error {
	from, err := w.resumeHeight(ctx)
	if err != nil {
		return err
	}
	log.Infow("watching for batches", "from", from)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := w.source.NextBatch(ctx, from)
		if err != nil {
			wait := bo.NextBackOff()
			log.Errorw("fetch batch", "error", err, "retry_in", wait)
			if !w.sleep(ctx, wait) {
				return ctx.Err()
			}
			continue
		}
		bo.Reset()
		if batch == nil {
			if w.opts.PollInterval <= 0 {
				log.Infow("source drained", "height", from-1)
				return nil
			}
			if !w.sleep(ctx, w.opts.PollInterval) {
				return ctx.Err()
			}
			continue
		}
		if batch.First().Height == w.opts.StartHeight {
			if err := w.agg.Bootstrap(ctx, batch.First(), w.snapshots); err != nil {
				return err
			}
		}
		if err := w.agg.ProcessBatch(ctx, batch); err != nil {
			return err
		}
		if err := UpdateAverageBlockTime(ctx, w.store, batch.Last()); err != nil {
			return xerrors.Errorf("update average block time: %w", err)
		}
		metrics.RecordGauge(ctx, metrics.WatchHeight, batch.Last().Height)
		from = batch.Last().Height + 1
	}
}

func (w *Watcher) sleep(ctx context.Context, d time.Duration) bool {
	t := w.clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
