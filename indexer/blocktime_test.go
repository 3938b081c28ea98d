package indexer

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phala-network/computation-indexer/chain"
	"github.com/phala-network/computation-indexer/model"
	"github.com/phala-network/computation-indexer/storage"
)

func seedGlobal(t *testing.T, height int64, at time.Time) *storage.MemStore {
	store := storage.NewMemStore()
	require.NoError(t, store.SeedSnapshot(context.Background(), &model.SnapshotSeed{
		GlobalState: &model.GlobalState{
			ID:                      model.SingletonID,
			Height:                  height,
			TotalStake:              decimal.Zero,
			MiningWorkerShare:       decimal.Zero,
			AverageBlockTime:        12000,
			LastRecordedBlockHeight: height,
			LastRecordedBlockTime:   at,
		},
		TokenomicParameters: testParams(t),
	}))
	return store
}

func TestUpdateAverageBlockTimeBelowWindow(t *testing.T) {
	ctx := context.Background()
	t0 := time.UnixMilli(12000000).UTC()
	store := seedGlobal(t, 1000, t0)

	latest := chain.BlockHeader{Height: 1099, Timestamp: t0.UnixMilli() + 99*13000}
	require.NoError(t, UpdateAverageBlockTime(ctx, store, latest))

	global, err := store.GlobalState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12000), global.AverageBlockTime)
	assert.Equal(t, int64(1000), global.LastRecordedBlockHeight)
	assert.Equal(t, t0, global.LastRecordedBlockTime)
}

func TestUpdateAverageBlockTime(t *testing.T) {
	ctx := context.Background()
	t0 := time.UnixMilli(12000000).UTC()
	store := seedGlobal(t, 1000, t0)

	// 100 blocks in 1250000 ms: average 12500.
	latest := chain.BlockHeader{Height: 1100, Timestamp: t0.UnixMilli() + 1250000}
	require.NoError(t, UpdateAverageBlockTime(ctx, store, latest))

	global, err := store.GlobalState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12500), global.AverageBlockTime)
	assert.Equal(t, int64(1100), global.LastRecordedBlockHeight)
	assert.Equal(t, latest.Time(), global.LastRecordedBlockTime)
}

func TestUpdateAverageBlockTimeFloors(t *testing.T) {
	ctx := context.Background()
	t0 := time.UnixMilli(0).UTC()
	store := seedGlobal(t, 0, t0)

	// 150 blocks in 1800100 ms: 12000.66..., floored.
	latest := chain.BlockHeader{Height: 150, Timestamp: 1800100}
	require.NoError(t, UpdateAverageBlockTime(ctx, store, latest))

	global, err := store.GlobalState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12000), global.AverageBlockTime)
}
