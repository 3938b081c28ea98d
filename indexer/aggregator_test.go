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

func d(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return v
}

func testParams(t *testing.T) *model.TokenomicParameters {
	return &model.TokenomicParameters{
		ID:             model.SingletonID,
		PhaRate:        d(t, "1"),
		BudgetPerBlock: d(t, "100"),
		VMax:           d(t, "30000"),
		TreasuryRatio:  d(t, "0.2"),
		Re:             d(t, "1.5"),
		K:              d(t, "50"),
	}
}

// fixedParams serves tokenomic parameters from memory, standing in for the
// authoritative on-chain reader.
type fixedParams struct {
	params *model.TokenomicParameters
}

func (f fixedParams) TokenomicParameters(ctx context.Context, block chain.BlockHeader) (*model.TokenomicParameters, error) {
	c := *f.params
	return &c, nil
}

func header(h int64) chain.BlockHeader {
	return chain.BlockHeader{Height: h, Timestamp: h * 12000}
}

func batchOf(h int64, params ...chain.Params) *chain.Batch {
	b := &chain.Batch{Blocks: []chain.BlockHeader{header(h)}}
	for _, p := range params {
		b.Events = append(b.Events, chain.Event{Block: header(h), Params: p})
	}
	return b
}

func newTestStore(t *testing.T) *storage.MemStore {
	store := storage.NewMemStore()
	require.NoError(t, store.SeedSnapshot(context.Background(), &model.SnapshotSeed{
		GlobalState: &model.GlobalState{
			ID:                    model.SingletonID,
			TotalStake:            decimal.Zero,
			MiningWorkerShare:     decimal.Zero,
			AverageBlockTime:      12000,
			LastRecordedBlockTime: time.UnixMilli(0).UTC(),
		},
		TokenomicParameters: testParams(t),
	}))
	return store
}

func mustPool(t *testing.T, store *storage.MemStore, id string) *model.StakePool {
	t.Helper()
	pools, err := store.StakePools(context.Background(), []string{id})
	require.NoError(t, err)
	require.Len(t, pools, 1)
	return pools[0]
}

func mustStake(t *testing.T, store *storage.MemStore, poolID, accountID string) *model.StakePoolStake {
	t.Helper()
	stakes, err := store.Stakes(context.Background(), []string{model.CombineIDs(poolID, accountID)}, nil)
	require.NoError(t, err)
	require.Len(t, stakes, 1)
	return stakes[0]
}

func mustAccount(t *testing.T, store *storage.MemStore, id string) *model.Account {
	t.Helper()
	accounts, err := store.Accounts(context.Background())
	require.NoError(t, err)
	for _, a := range accounts {
		if a.ID == id {
			return a
		}
	}
	t.Fatalf("account %s not found", id)
	return nil
}

// assertConservation checks that the global stake total equals the sum of
// every pool's total.
func assertConservation(t *testing.T, store *storage.MemStore, poolIDs ...string) {
	t.Helper()
	global, err := store.GlobalState(context.Background())
	require.NoError(t, err)
	sum := decimal.Zero
	pools, err := store.StakePools(context.Background(), poolIDs)
	require.NoError(t, err)
	for _, p := range pools {
		sum = sum.Add(p.TotalStake)
	}
	assert.True(t, global.TotalStake.Equal(sum),
		"global totalStake %s != pool sum %s", global.TotalStake, sum)
}

func TestPoolCreatedAndContribution(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	agg := NewAggregator(store, fixedParams{testParams(t)})

	err := agg.ProcessBatch(ctx, batchOf(1,
		chain.PoolCreated{StakePoolID: "1", Owner: "alice"},
		chain.Contribution{StakePoolID: "1", AccountID: "alice", Amount: d(t, "100"), Shares: d(t, "100")},
	))
	require.NoError(t, err)

	pool := mustPool(t, store, "1")
	assert.True(t, pool.TotalStake.Equal(d(t, "100")))
	assert.True(t, pool.FreeStake.Equal(d(t, "100")))
	assert.True(t, pool.TotalShares.Equal(d(t, "100")))
	assert.Equal(t, int64(1), pool.Pid)
	assert.Equal(t, "alice", pool.OwnerID)

	stake := mustStake(t, store, "1", "alice")
	assert.True(t, stake.Amount.Equal(d(t, "100")))
	assert.True(t, stake.Shares.Equal(d(t, "100")))

	alice := mustAccount(t, store, "alice")
	assert.True(t, alice.TotalStake.Equal(d(t, "100")))

	global, err := store.GlobalState(ctx)
	require.NoError(t, err)
	assert.True(t, global.TotalStake.Equal(d(t, "100")))
	assert.Equal(t, int64(1), global.Height)
	assertConservation(t, store, "1")
}

func TestBindingOrderEnforced(t *testing.T) {
	ctx := context.Background()

	t.Run("bound before added succeeds", func(t *testing.T) {
		store := newTestStore(t)
		agg := NewAggregator(store, fixedParams{testParams(t)})
		err := agg.ProcessBatch(ctx, batchOf(1,
			chain.WorkerAdded{WorkerID: "w1", ConfidenceLevel: 1},
			chain.MinerBound{MinerID: "m1", WorkerID: "w1"},
			chain.PoolCreated{StakePoolID: "1", Owner: "alice"},
			chain.PoolWorkerAdded{StakePoolID: "1", WorkerID: "w1"},
		))
		require.NoError(t, err)

		pool := mustPool(t, store, "1")
		assert.Equal(t, 1, pool.WorkerCount)
		workers, err := store.Workers(ctx, []string{"w1"}, nil)
		require.NoError(t, err)
		require.Len(t, workers, 1)
		require.NotNil(t, workers[0].StakePoolID)
		assert.Equal(t, "1", *workers[0].StakePoolID)
		miners, err := store.Miners(ctx, []string{"m1"}, nil)
		require.NoError(t, err)
		require.Len(t, miners, 1)
		require.NotNil(t, miners[0].StakePoolID)
		assert.Equal(t, "1", *miners[0].StakePoolID)
	})

	t.Run("added before bound aborts without partial writes", func(t *testing.T) {
		store := newTestStore(t)
		agg := NewAggregator(store, fixedParams{testParams(t)})
		err := agg.ProcessBatch(ctx, batchOf(1,
			chain.WorkerAdded{WorkerID: "w1", ConfidenceLevel: 1},
			chain.PoolCreated{StakePoolID: "1", Owner: "alice"},
			chain.PoolWorkerAdded{StakePoolID: "1", WorkerID: "w1"},
		))
		require.Error(t, err)

		pools, err2 := store.StakePools(ctx, []string{"1"})
		require.NoError(t, err2)
		assert.Empty(t, pools)
		workers, err2 := store.Workers(ctx, []string{"w1"}, nil)
		require.NoError(t, err2)
		assert.Empty(t, workers)
	})
}

func startMining(t *testing.T, agg *Aggregator) {
	t.Helper()
	err := agg.ProcessBatch(context.Background(), batchOf(1,
		chain.WorkerAdded{WorkerID: "w1", ConfidenceLevel: 1},
		chain.MinerBound{MinerID: "m1", WorkerID: "w1"},
		chain.PoolCreated{StakePoolID: "1", Owner: "alice"},
		chain.PoolWorkerAdded{StakePoolID: "1", WorkerID: "w1"},
		chain.Contribution{StakePoolID: "1", AccountID: "bob", Amount: d(t, "1000"), Shares: d(t, "1000")},
		chain.MiningStarted{StakePoolID: "1", WorkerID: "w1", Amount: d(t, "500")},
		chain.MinerStarted{MinerID: "m1", InitV: d(t, "3"), InitP: 2},
	))
	require.NoError(t, err)
}

func TestMinerStartedShareAccounting(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	agg := NewAggregator(store, fixedParams{testParams(t)})
	startMining(t, agg)

	// share = sqrt(3^2 + (2*2*1)^2) = 5
	workers, err := store.Workers(ctx, []string{"w1"}, nil)
	require.NoError(t, err)
	require.Len(t, workers, 1)
	require.NotNil(t, workers[0].Share)
	assert.True(t, workers[0].Share.Equal(d(t, "5")), "share %s", workers[0].Share)

	pool := mustPool(t, store, "1")
	assert.True(t, pool.MiningWorkerShare.Equal(d(t, "5")))
	assert.Equal(t, 1, pool.MiningWorkerCount)
	assert.True(t, pool.FreeStake.Equal(d(t, "500")))
	// aprBase = 5 * (1 - 0) / 1000
	assert.True(t, pool.AprBase.Equal(d(t, "0.005")), "aprBase %s", pool.AprBase)

	global, err := store.GlobalState(ctx)
	require.NoError(t, err)
	assert.True(t, global.MiningWorkerShare.Equal(d(t, "5")))

	miners, err := store.Miners(ctx, []string{"m1"}, nil)
	require.NoError(t, err)
	require.Len(t, miners, 1)
	assert.Equal(t, model.MinerStateMiningIdle, miners[0].State)
	assert.True(t, miners[0].Stake.Equal(d(t, "500")))
	assert.True(t, miners[0].V.Equal(d(t, "3")))
	assert.True(t, miners[0].Ve.Equal(d(t, "3")))
	assert.Equal(t, 2, miners[0].PInit)
}

func TestMinerStopReclaimCycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	agg := NewAggregator(store, fixedParams{testParams(t)})
	startMining(t, agg)

	require.NoError(t, agg.ProcessBatch(ctx, batchOf(2, chain.MinerStopped{MinerID: "m1"})))
	pool := mustPool(t, store, "1")
	assert.True(t, pool.MiningWorkerShare.IsZero())
	assert.Equal(t, 0, pool.MiningWorkerCount)
	assert.True(t, pool.ReleasingStake.Equal(d(t, "500")))
	miners, err := store.Miners(ctx, []string{"m1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.MinerStateMiningCoolingDown, miners[0].State)
	require.NotNil(t, miners[0].CoolingDownStartTime)

	require.NoError(t, agg.ProcessBatch(ctx, batchOf(3, chain.MinerReclaimed{MinerID: "m1"})))
	pool = mustPool(t, store, "1")
	assert.True(t, pool.ReleasingStake.IsZero())
	assert.True(t, pool.FreeStake.Equal(d(t, "1000")))
	miners, err = store.Miners(ctx, []string{"m1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.MinerStateReady, miners[0].State)
	assert.True(t, miners[0].Stake.IsZero())
	assert.Nil(t, miners[0].CoolingDownStartTime)
}

// A miner reclaimed before its pool link was ever observed only resets its
// own fields; the pool adjustment is skipped silently. Known gap carried
// over from the ledger's behavior.
func TestMinerReclaimedWithoutPoolSkipsPoolAccounting(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	agg := NewAggregator(store, fixedParams{testParams(t)})

	err := agg.ProcessBatch(ctx, batchOf(1,
		chain.WorkerAdded{WorkerID: "w1", ConfidenceLevel: 1},
		chain.MinerBound{MinerID: "m1", WorkerID: "w1"},
		chain.MinerReclaimed{MinerID: "m1"},
	))
	require.NoError(t, err)

	miners, err := store.Miners(ctx, []string{"m1"}, nil)
	require.NoError(t, err)
	require.Len(t, miners, 1)
	assert.Equal(t, model.MinerStateReady, miners[0].State)
	assert.True(t, miners[0].Stake.IsZero())
}

func TestRewardReceivedSplitsProportionally(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	agg := NewAggregator(store, fixedParams{testParams(t)})

	require.NoError(t, agg.ProcessBatch(ctx, batchOf(1,
		chain.PoolCreated{StakePoolID: "1", Owner: "alice"},
		chain.Contribution{StakePoolID: "1", AccountID: "bob", Amount: d(t, "30"), Shares: d(t, "30")},
		chain.Contribution{StakePoolID: "1", AccountID: "carol", Amount: d(t, "70"), Shares: d(t, "70")},
	)))
	require.NoError(t, agg.ProcessBatch(ctx, batchOf(2,
		chain.RewardReceived{StakePoolID: "1", ToOwner: d(t, "10"), ToStakers: d(t, "90")},
	)))

	pool := mustPool(t, store, "1")
	assert.True(t, pool.OwnerReward.Equal(d(t, "10")))
	assert.True(t, mustAccount(t, store, "alice").TotalOwnerReward.Equal(d(t, "10")))

	bob := mustStake(t, store, "1", "bob")
	assert.True(t, bob.Reward.Equal(d(t, "27")), "bob reward %s", bob.Reward)
	carol := mustStake(t, store, "1", "carol")
	assert.True(t, carol.Reward.Equal(d(t, "63")), "carol reward %s", carol.Reward)
	assert.True(t, mustAccount(t, store, "bob").TotalStakeReward.Equal(d(t, "27")))
	assert.True(t, mustAccount(t, store, "carol").TotalStakeReward.Equal(d(t, "63")))
}

func TestRewardsWithdrawnZeroing(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	agg := NewAggregator(store, fixedParams{testParams(t)})

	require.NoError(t, agg.ProcessBatch(ctx, batchOf(1,
		chain.PoolCreated{StakePoolID: "1", Owner: "alice"},
		chain.Contribution{StakePoolID: "1", AccountID: "bob", Amount: d(t, "100"), Shares: d(t, "100")},
		chain.RewardReceived{StakePoolID: "1", ToOwner: d(t, "10"), ToStakers: d(t, "90")},
	)))
	require.NoError(t, agg.ProcessBatch(ctx, batchOf(2,
		chain.StakerRewardsWithdrawn{StakePoolID: "1", AccountID: "bob", Amount: d(t, "90")},
		chain.OwnerRewardsWithdrawn{StakePoolID: "1", AccountID: "alice", Amount: d(t, "10")},
	)))

	assert.True(t, mustStake(t, store, "1", "bob").Reward.IsZero())
	assert.True(t, mustAccount(t, store, "bob").TotalStakeReward.IsZero())
	assert.True(t, mustPool(t, store, "1").OwnerReward.IsZero())
	assert.True(t, mustAccount(t, store, "alice").TotalOwnerReward.IsZero())
}

func TestWithdrawalQueuedReplacesPending(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	agg := NewAggregator(store, fixedParams{testParams(t)})

	require.NoError(t, agg.ProcessBatch(ctx, batchOf(1,
		chain.PoolCreated{StakePoolID: "1", Owner: "alice"},
		chain.Contribution{StakePoolID: "1", AccountID: "bob", Amount: d(t, "100"), Shares: d(t, "100")},
		chain.WithdrawalQueued{StakePoolID: "1", AccountID: "bob", Shares: d(t, "30")},
		chain.WithdrawalQueued{StakePoolID: "1", AccountID: "bob", Shares: d(t, "50")},
	)))

	stake := mustStake(t, store, "1", "bob")
	assert.True(t, stake.WithdrawalShares.Equal(d(t, "50")))
	assert.True(t, stake.WithdrawalAmount.Equal(d(t, "50")))
	require.NotNil(t, stake.WithdrawalStartTime)
	// Only the latest request counts toward the pool aggregate.
	assert.True(t, mustPool(t, store, "1").TotalWithdrawal.Equal(d(t, "50")))
}

func TestWithdrawalClampsAtZero(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	agg := NewAggregator(store, fixedParams{testParams(t)})

	require.NoError(t, agg.ProcessBatch(ctx, batchOf(1,
		chain.PoolCreated{StakePoolID: "1", Owner: "alice"},
		chain.Contribution{StakePoolID: "1", AccountID: "bob", Amount: d(t, "100"), Shares: d(t, "100")},
		chain.WithdrawalQueued{StakePoolID: "1", AccountID: "bob", Shares: d(t, "50")},
		chain.Withdrawal{StakePoolID: "1", AccountID: "bob", Amount: d(t, "80"), Shares: d(t, "80")},
	)))

	pool := mustPool(t, store, "1")
	assert.True(t, pool.TotalWithdrawal.IsZero())
	assert.False(t, pool.TotalWithdrawal.IsNegative())
	assert.True(t, pool.TotalStake.Equal(d(t, "20")))
	assert.True(t, pool.TotalShares.Equal(d(t, "20")))

	stake := mustStake(t, store, "1", "bob")
	assert.True(t, stake.WithdrawalShares.IsZero())
	assert.True(t, stake.WithdrawalAmount.IsZero())
	assert.True(t, stake.Amount.Equal(d(t, "20")))

	assert.True(t, mustAccount(t, store, "bob").TotalStake.Equal(d(t, "20")))
	assertConservation(t, store, "1")
}

func TestPoolCapacityAndDelegable(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	agg := NewAggregator(store, fixedParams{testParams(t)})

	require.NoError(t, agg.ProcessBatch(ctx, batchOf(1,
		chain.PoolCreated{StakePoolID: "1", Owner: "alice"},
		chain.PoolCapacitySet{StakePoolID: "1", Cap: d(t, "1000")},
		chain.Contribution{StakePoolID: "1", AccountID: "bob", Amount: d(t, "300"), Shares: d(t, "300")},
	)))

	pool := mustPool(t, store, "1")
	require.NotNil(t, pool.Capacity)
	assert.True(t, pool.Capacity.Equal(d(t, "1000")))
	require.NotNil(t, pool.Delegable)
	assert.True(t, pool.Delegable.Equal(d(t, "700")), "delegable %s", pool.Delegable)
}

func TestWhitelistLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	agg := NewAggregator(store, fixedParams{testParams(t)})
	id := model.CombineIDs("1", "bob")

	require.NoError(t, agg.ProcessBatch(ctx, batchOf(1,
		chain.PoolCreated{StakePoolID: "1", Owner: "alice"},
		chain.PoolWhitelistCreated{StakePoolID: "1"},
		chain.PoolWhitelistStakerAdded{StakePoolID: "1", AccountID: "bob"},
	)))
	assert.True(t, mustPool(t, store, "1").WhitelistEnabled)
	rows, err := store.Whitelists(ctx, []string{id})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1", rows[0].StakePoolID)
	assert.Equal(t, "bob", rows[0].AccountID)

	require.NoError(t, agg.ProcessBatch(ctx, batchOf(2,
		chain.PoolWhitelistStakerRemoved{StakePoolID: "1", AccountID: "bob"},
		chain.PoolWhitelistDeleted{StakePoolID: "1"},
	)))
	assert.False(t, mustPool(t, store, "1").WhitelistEnabled)
	rows, err = store.Whitelists(ctx, []string{id})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMinerUnboundClearsLinks(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	agg := NewAggregator(store, fixedParams{testParams(t)})
	startMining(t, agg)

	require.NoError(t, agg.ProcessBatch(ctx, batchOf(2,
		chain.MinerUnbound{MinerID: "m1", WorkerID: "w1"},
	)))

	workers, err := store.Workers(ctx, []string{"w1"}, nil)
	require.NoError(t, err)
	require.Len(t, workers, 1)
	assert.Nil(t, workers[0].MinerID)
	assert.Nil(t, workers[0].Share)
	miners, err := store.Miners(ctx, []string{"m1"}, nil)
	require.NoError(t, err)
	require.Len(t, miners, 1)
	assert.False(t, miners[0].IsBound)
	assert.Nil(t, miners[0].WorkerID)
}

func TestBenchmarkUpdatedRollsShareDelta(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	agg := NewAggregator(store, fixedParams{testParams(t)})
	startMining(t, agg)

	// share moves from 5 to sqrt(3^2 + (2*5*1)^2) = sqrt(109)
	require.NoError(t, agg.ProcessBatch(ctx, batchOf(2,
		chain.BenchmarkUpdated{MinerID: "m1", PInstant: 5},
	)))

	workers, err := store.Workers(ctx, []string{"w1"}, nil)
	require.NoError(t, err)
	require.NotNil(t, workers[0].Share)
	pool := mustPool(t, store, "1")
	assert.True(t, pool.MiningWorkerShare.Equal(*workers[0].Share))
	global, err := store.GlobalState(ctx)
	require.NoError(t, err)
	assert.True(t, global.MiningWorkerShare.Equal(*workers[0].Share))
}

func TestUnresponsiveCycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	agg := NewAggregator(store, fixedParams{testParams(t)})
	startMining(t, agg)

	require.NoError(t, agg.ProcessBatch(ctx, batchOf(2,
		chain.MinerEnterUnresponsive{MinerID: "m1"},
	)))
	pool := mustPool(t, store, "1")
	assert.Equal(t, 0, pool.MiningWorkerCount)
	assert.True(t, pool.MiningWorkerShare.IsZero())
	assert.True(t, pool.AprBase.IsZero())

	require.NoError(t, agg.ProcessBatch(ctx, batchOf(3,
		chain.MinerExitUnresponsive{MinerID: "m1"},
	)))
	pool = mustPool(t, store, "1")
	assert.Equal(t, 1, pool.MiningWorkerCount)
	assert.True(t, pool.MiningWorkerShare.Equal(d(t, "5")))
}

func TestTokenomicParametersChanged(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	updated := testParams(t)
	updated.K = d(t, "77")
	agg := NewAggregator(store, fixedParams{updated})

	require.NoError(t, agg.ProcessBatch(ctx, batchOf(1,
		chain.TokenomicParametersChanged{},
	)))

	params, err := store.TokenomicParameters(ctx)
	require.NoError(t, err)
	assert.True(t, params.K.Equal(d(t, "77")))
}

func TestMinerSettledAccrual(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	agg := NewAggregator(store, fixedParams{testParams(t)})
	startMining(t, agg)

	// v moves from 3 to 6: share becomes sqrt(36+16) = sqrt(52)
	require.NoError(t, agg.ProcessBatch(ctx, batchOf(2,
		chain.MinerSettled{MinerID: "m1", V: d(t, "6"), Payout: d(t, "1.5")},
	)))

	miners, err := store.Miners(ctx, []string{"m1"}, nil)
	require.NoError(t, err)
	assert.True(t, miners[0].V.Equal(d(t, "6")))
	assert.True(t, miners[0].TotalReward.Equal(d(t, "1.5")))

	workers, err := store.Workers(ctx, []string{"w1"}, nil)
	require.NoError(t, err)
	require.NotNil(t, workers[0].Share)
	pool := mustPool(t, store, "1")
	assert.True(t, pool.MiningWorkerShare.Equal(*workers[0].Share))
}
