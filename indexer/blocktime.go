package indexer

import (
	"context"

	"github.com/phala-network/computation-indexer/chain"
	"github.com/phala-network/computation-indexer/model"
)

// blockTimeWindow is the minimum number of blocks between recordings of
// the rolling average block time.
const blockTimeWindow = 100

// UpdateAverageBlockTime is the post-batch hook maintaining the rolling
// average block time. It recomputes the average only once at least 100
// blocks have elapsed since the last recording, otherwise it is a no-op.
func UpdateAverageBlockTime(ctx context.Context, store model.Store, latest chain.BlockHeader) error {
	global, err := store.GlobalState(ctx)
	if err != nil {
		return err
	}
	blockCount := latest.Height - global.LastRecordedBlockHeight
	if blockCount < blockTimeWindow {
		return nil
	}
	duration := latest.Timestamp - global.LastRecordedBlockTime.UnixMilli()
	global.AverageBlockTime = duration / blockCount
	global.LastRecordedBlockHeight = latest.Height
	global.LastRecordedBlockTime = latest.Time()
	return store.SaveGlobalState(ctx, global)
}
