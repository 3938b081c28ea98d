package indexer

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/xerrors"

	"github.com/phala-network/computation-indexer/chain"
	"github.com/phala-network/computation-indexer/economics"
	"github.com/phala-network/computation-indexer/metrics"
	"github.com/phala-network/computation-indexer/model"
	"github.com/phala-network/computation-indexer/numeric"
	"github.com/phala-network/computation-indexer/snapshot"
)

// SnapshotSource resolves the point-in-time dump collections backing the
// one-time bootstrap.
type SnapshotSource interface {
	Load(ctx context.Context, height int64) (*snapshot.Dump, error)
}

// defaultAverageBlockTime seeds the rolling average until 100 blocks have
// been observed.
const defaultAverageBlockTime = 12000

// Bootstrap materializes the initial entity graph from a snapshot taken
// one block before the configured start height, then persists it as one
// atomic seed. It runs exactly once, before the first incremental batch.
func (a *Aggregator) Bootstrap(ctx context.Context, start chain.BlockHeader, snapshots SnapshotSource) error {
	stop := metrics.Timer(ctx, metrics.BootstrapDuration)
	defer stop()
	log.Infow("bootstrapping from snapshot", "height", start.Height)

	params, err := a.params.TokenomicParameters(ctx, start)
	if err != nil {
		return xerrors.Errorf("read tokenomic parameters: %w", err)
	}
	params.ID = model.SingletonID

	dump, err := snapshots.Load(ctx, start.Height-1)
	if err != nil {
		return xerrors.Errorf("load snapshot: %w", err)
	}

	global := &model.GlobalState{
		ID:                      model.SingletonID,
		Height:                  start.Height,
		TotalStake:              decimal.Zero,
		MiningWorkerShare:       decimal.Zero,
		AverageBlockTime:        defaultAverageBlockTime,
		LastRecordedBlockHeight: start.Height,
		LastRecordedBlockTime:   start.Time(),
	}

	accounts := map[string]*model.Account{}
	account := func(id string) *model.Account {
		acct, ok := accounts[id]
		if !ok {
			acct = model.NewAccount(id)
			accounts[id] = acct
		}
		return acct
	}

	workers := map[string]*model.Worker{}
	for _, w := range dump.Workers {
		worker := model.NewWorker(w.Pubkey, w.ConfidenceLevel)
		score := w.InitialScore
		worker.InitialScore = &score
		if err := economics.UpdateWorkerBounds(worker, params); err != nil {
			return xerrors.Errorf("worker %s bounds: %w", worker.ID, err)
		}
		workers[worker.ID] = worker
	}

	miners := map[string]*model.Miner{}
	for id, m := range dump.Miners {
		miner := model.NewMiner(id)
		miner.State = m.State
		miner.V = numeric.FromBits(&m.V.Int)
		miner.Ve = numeric.FromBits(&m.Ve.Int)
		miner.PInit = m.Benchmark.PInit
		miner.PInstant = m.Benchmark.PInstant
		miner.TotalReward = numeric.ToBalance(&m.Stats.TotalReward.Int)
		if m.CoolDownStart > 0 {
			startTime := time.Unix(m.CoolDownStart, 0).UTC()
			miner.CoolingDownStartTime = &startTime
		}
		miners[id] = miner
	}

	pools := map[string]*model.StakePool{}
	for _, s := range dump.StakePools {
		poolID := s.Pid.Int.String()
		owner := account(s.Owner)
		ownerReward := numeric.ToBalance(&s.OwnerReward.Int)
		totalStake := numeric.ToBalance(&s.TotalStake.Int)
		owner.TotalOwnerReward = owner.TotalOwnerReward.Add(ownerReward)
		global.TotalStake = global.TotalStake.Add(totalStake)

		pool := model.NewStakePool(poolID, s.Pid.Int.Int64(), owner.ID)
		if s.PayoutCommission != nil {
			pool.Commission = decimal.New(*s.PayoutCommission, -6)
		}
		if s.Cap != nil {
			capacity := numeric.ToBalance(&s.Cap.Int)
			delegable := capacity.Sub(totalStake)
			pool.Capacity = &capacity
			pool.Delegable = &delegable
		}
		pool.TotalStake = totalStake
		pool.FreeStake = numeric.ToBalance(&s.FreeStake.Int)
		pool.ReleasingStake = numeric.ToBalance(&s.ReleasingStake.Int)
		pool.TotalShares = numeric.ToBalance(&s.TotalShares.Int)
		pool.OwnerReward = ownerReward

		for _, workerID := range s.Workers {
			worker, ok := workers[workerID]
			if !ok {
				return xerrors.Errorf("pool %s references unknown worker %s", poolID, workerID)
			}
			worker.StakePoolID = &pool.ID
			pool.WorkerCount++
		}
		pools[poolID] = pool
	}

	stakes := map[string]*model.StakePoolStake{}
	for _, s := range dump.StakePoolStakes {
		poolID := s.Pid.Int.String()
		pool, ok := pools[poolID]
		if !ok {
			return xerrors.Errorf("stake references unknown pool %s", poolID)
		}
		acct := account(s.AccountID)
		shares := numeric.ToBalance(&s.Shares.Int)
		amount := shares
		if !shares.IsZero() {
			amount = numeric.Prorate(shares, pool.TotalShares, pool.TotalStake)
		}
		reward := numeric.ToBalance(&s.AvailableRewards.Int)
		acct.TotalStake = acct.TotalStake.Add(amount)
		acct.TotalStakeReward = acct.TotalStakeReward.Add(reward)
		if shares.IsPositive() {
			pool.ActiveStakeCount++
		}
		stake := model.NewStakePoolStake(poolID, s.AccountID)
		stake.Amount = amount
		stake.Shares = shares
		stake.Reward = reward
		stakes[stake.ID] = stake
	}

	// Withdraw queue replay is additive: the queue is rebuilt once from
	// empty, unlike the replace semantics of the incremental path.
	for _, s := range dump.StakePools {
		poolID := s.Pid.Int.String()
		pool := pools[poolID]
		for _, w := range s.WithdrawQueue {
			stake, ok := stakes[model.CombineIDs(poolID, w.User)]
			if !ok {
				return xerrors.Errorf("withdraw queue references unknown stake %s in pool %s", w.User, poolID)
			}
			shares := numeric.ToBalance(&w.Shares.Int)
			if !shares.IsPositive() {
				return xerrors.Errorf("withdraw queue entry for %s has non-positive shares", w.User)
			}
			amount := numeric.Prorate(shares, pool.TotalShares, pool.TotalStake)
			startTime := time.Unix(w.StartTime, 0).UTC()
			stake.WithdrawalShares = shares
			stake.WithdrawalAmount = amount
			stake.WithdrawalStartTime = &startTime
			pool.TotalWithdrawal = pool.TotalWithdrawal.Add(amount)
			if pool.Delegable != nil {
				delegable := pool.Delegable.Add(amount)
				pool.Delegable = &delegable
			}
		}
	}

	// The dump carries whitelists in on-chain order but without
	// timestamps; synthetic strictly decreasing times assigned in reverse
	// preserve that order under a createTime sort.
	var whitelists []*model.StakePoolWhitelist
	whitelistPoolIDs := make([]string, 0, len(dump.StakePoolWhitelists))
	for pid := range dump.StakePoolWhitelists {
		whitelistPoolIDs = append(whitelistPoolIDs, pid)
	}
	sort.Strings(whitelistPoolIDs)
	for _, pid := range whitelistPoolIDs {
		pool, ok := pools[pid]
		if !ok {
			return xerrors.Errorf("whitelist references unknown pool %s", pid)
		}
		pool.WhitelistEnabled = true
		accountIDs := dump.StakePoolWhitelists[pid]
		createTime := start.Timestamp
		for i := len(accountIDs) - 1; i >= 0; i-- {
			account(accountIDs[i])
			whitelists = append(whitelists,
				model.NewStakePoolWhitelist(pid, accountIDs[i], time.UnixMilli(createTime).UTC()))
			createTime--
		}
	}

	minerIDs := make([]string, 0, len(miners))
	for id := range miners {
		minerIDs = append(minerIDs, id)
	}
	sort.Strings(minerIDs)
	for _, id := range minerIDs {
		miner := miners[id]
		if stake, ok := dump.MinerStakes[id]; ok {
			miner.Stake = numeric.ToBalance(&stake.Int)
		}
		workerID, ok := dump.MinerBindings[id]
		if !ok {
			continue
		}
		worker, ok := workers[workerID]
		if !ok {
			return xerrors.Errorf("miner %s bound to unknown worker %s", id, workerID)
		}
		if worker.StakePoolID == nil {
			return xerrors.Errorf("bound worker %s has no pool", workerID)
		}
		pool, ok := pools[*worker.StakePoolID]
		if !ok {
			return xerrors.Errorf("bound worker %s references unknown pool %s", workerID, *worker.StakePoolID)
		}
		worker.MinerID = &miner.ID
		miner.IsBound = true
		miner.WorkerID = &worker.ID
		miner.StakePoolID = worker.StakePoolID
		if err := economics.UpdateWorkerShare(worker, miner); err != nil {
			return xerrors.Errorf("worker %s share: %w", worker.ID, err)
		}
		if miner.State == model.MinerStateMiningIdle {
			pool.MiningWorkerCount++
			global.MiningWorkerShare = global.MiningWorkerShare.Add(*worker.Share)
			pool.MiningWorkerShare = pool.MiningWorkerShare.Add(*worker.Share)
			economics.RefreshAPR(pool)
		}
	}

	seed := &model.SnapshotSeed{
		GlobalState:         global,
		TokenomicParameters: params,
		Whitelists:          whitelists,
	}
	for _, id := range sortedEntityKeys(accounts) {
		seed.Accounts = append(seed.Accounts, accounts[id])
	}
	for _, id := range sortedEntityKeys(pools) {
		seed.StakePools = append(seed.StakePools, pools[id])
	}
	for _, id := range sortedEntityKeys(workers) {
		seed.Workers = append(seed.Workers, workers[id])
	}
	for _, id := range minerIDs {
		seed.Miners = append(seed.Miners, miners[id])
	}
	for _, id := range sortedEntityKeys(stakes) {
		seed.Stakes = append(seed.Stakes, stakes[id])
	}
	if err := a.store.SeedSnapshot(ctx, seed); err != nil {
		return xerrors.Errorf("seed snapshot: %w", err)
	}
	log.Infow("bootstrap complete",
		"accounts", len(seed.Accounts),
		"pools", len(seed.StakePools),
		"workers", len(seed.Workers),
		"miners", len(seed.Miners),
		"stakes", len(seed.Stakes))
	return nil
}

func sortedEntityKeys[T any](m map[string]*T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
