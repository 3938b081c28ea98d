package indexer

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"
	"golang.org/x/xerrors"

	"github.com/phala-network/computation-indexer/chain"
	"github.com/phala-network/computation-indexer/economics"
	"github.com/phala-network/computation-indexer/model"
	"github.com/phala-network/computation-indexer/numeric"
)

// applyEvent mutates the batch state for one event. A returned error means
// a violated precondition: a missing bootstrap entity or an out-of-order
// stream, fatal to the batch.
func (a *Aggregator) applyEvent(ctx context.Context, st *batchState, ev chain.Event) error {
	switch p := ev.Params.(type) {
	case chain.PoolCreated:
		return a.applyPoolCreated(st, p)
	case chain.PoolCommissionSet:
		return a.applyPoolCommissionSet(st, p)
	case chain.PoolCapacitySet:
		return a.applyPoolCapacitySet(st, p)
	case chain.PoolWorkerAdded:
		return a.applyPoolWorkerAdded(st, p)
	case chain.PoolWorkerRemoved:
		return a.applyPoolWorkerRemoved(st, p)
	case chain.MiningStarted:
		return a.applyMiningStarted(st, p)
	case chain.Contribution:
		return a.applyContribution(st, p)
	case chain.Withdrawal:
		return a.applyWithdrawal(st, p)
	case chain.WithdrawalQueued:
		return a.applyWithdrawalQueued(st, ev.Block, p)
	case chain.RewardReceived:
		return a.applyRewardReceived(st, p)
	case chain.RewardsWithdrawn:
		return a.applyRewardsWithdrawn(st, p)
	case chain.OwnerRewardsWithdrawn:
		return a.applyOwnerRewardsWithdrawn(st, p)
	case chain.StakerRewardsWithdrawn:
		return a.applyStakerRewardsWithdrawn(st, p)
	case chain.PoolWhitelistCreated:
		return a.applyPoolWhitelistToggled(st, p.StakePoolID, true)
	case chain.PoolWhitelistDeleted:
		return a.applyPoolWhitelistToggled(st, p.StakePoolID, false)
	case chain.PoolWhitelistStakerAdded:
		return a.applyWhitelistStakerAdded(st, ev.Block, p)
	case chain.PoolWhitelistStakerRemoved:
		return a.applyWhitelistStakerRemoved(st, p)
	case chain.MinerBound:
		return a.applyMinerBound(st, p)
	case chain.MinerUnbound:
		return a.applyMinerUnbound(st, p)
	case chain.MinerSettled:
		return a.applyMinerSettled(st, p)
	case chain.MinerStarted:
		return a.applyMinerStarted(st, p)
	case chain.MinerStopped:
		return a.applyMinerStopped(st, ev.Block, p)
	case chain.BenchmarkUpdated:
		return a.applyBenchmarkUpdated(st, p)
	case chain.MinerEnterUnresponsive:
		return a.applyMinerUnresponsive(st, p.MinerID, true)
	case chain.MinerExitUnresponsive:
		return a.applyMinerUnresponsive(st, p.MinerID, false)
	case chain.MinerReclaimed:
		return a.applyMinerReclaimed(st, p)
	case chain.TokenomicParametersChanged:
		return a.applyTokenomicParametersChanged(ctx, st, ev.Block)
	case chain.WorkerAdded:
		return a.applyWorkerAdded(st, p)
	case chain.WorkerUpdated:
		return a.applyWorkerUpdated(st, p)
	case chain.InitialScoreSet:
		return a.applyInitialScoreSet(st, p)
	default:
		return xerrors.Errorf("unhandled event kind %s", ev.Params.Kind())
	}
}

func (a *Aggregator) applyPoolCreated(st *batchState, p chain.PoolCreated) error {
	pid, err := strconv.ParseInt(p.StakePoolID, 10, 64)
	if err != nil {
		return xerrors.Errorf("parse pool id %q: %w", p.StakePoolID, err)
	}
	owner := st.account(p.Owner)
	pool := model.NewStakePool(p.StakePoolID, pid, owner.ID)
	st.pools[pool.ID] = pool
	st.touchPool(pool)
	return nil
}

func (a *Aggregator) applyPoolCommissionSet(st *batchState, p chain.PoolCommissionSet) error {
	pool, err := st.pool(p.StakePoolID)
	if err != nil {
		return err
	}
	pool.Commission = p.Commission
	if pool.TotalStake.IsPositive() {
		economics.RefreshAPR(pool)
	}
	st.touchPool(pool)
	return nil
}

func (a *Aggregator) applyPoolCapacitySet(st *batchState, p chain.PoolCapacitySet) error {
	pool, err := st.pool(p.StakePoolID)
	if err != nil {
		return err
	}
	capacity := p.Cap
	pool.Capacity = &capacity
	delegable := capacity.Sub(pool.TotalStake).Add(pool.TotalWithdrawal)
	pool.Delegable = &delegable
	st.touchPool(pool)
	return nil
}

// Binding order matters: MinerBound precedes PoolWorkerAdded on-chain, so
// the worker must already carry its miner here.
func (a *Aggregator) applyPoolWorkerAdded(st *batchState, p chain.PoolWorkerAdded) error {
	pool, err := st.pool(p.StakePoolID)
	if err != nil {
		return err
	}
	worker, err := st.worker(p.WorkerID)
	if err != nil {
		return err
	}
	if worker.MinerID == nil {
		return xerrors.Errorf("worker %s has no bound miner", worker.ID)
	}
	miner, err := st.miner(*worker.MinerID)
	if err != nil {
		return err
	}
	pool.WorkerCount++
	worker.StakePoolID = &pool.ID
	miner.StakePoolID = &pool.ID
	st.touchPool(pool)
	st.touchWorker(worker)
	st.touchMiner(miner)
	return nil
}

func (a *Aggregator) applyPoolWorkerRemoved(st *batchState, p chain.PoolWorkerRemoved) error {
	pool, err := st.pool(p.StakePoolID)
	if err != nil {
		return err
	}
	worker, err := st.worker(p.WorkerID)
	if err != nil {
		return err
	}
	if worker.StakePoolID == nil || *worker.StakePoolID != pool.ID {
		return xerrors.Errorf("worker %s does not belong to pool %s", worker.ID, pool.ID)
	}
	worker.StakePoolID = nil
	pool.WorkerCount--
	st.touchPool(pool)
	st.touchWorker(worker)
	return nil
}

func (a *Aggregator) applyMiningStarted(st *batchState, p chain.MiningStarted) error {
	pool, err := st.pool(p.StakePoolID)
	if err != nil {
		return err
	}
	worker, err := st.worker(p.WorkerID)
	if err != nil {
		return err
	}
	if worker.MinerID == nil {
		return xerrors.Errorf("worker %s has no bound miner", worker.ID)
	}
	miner, err := st.miner(*worker.MinerID)
	if err != nil {
		return err
	}
	miner.Stake = p.Amount
	pool.FreeStake = pool.FreeStake.Sub(p.Amount)
	st.touchPool(pool)
	st.touchMiner(miner)
	return nil
}

func (a *Aggregator) applyContribution(st *batchState, p chain.Contribution) error {
	pool, err := st.pool(p.StakePoolID)
	if err != nil {
		return err
	}
	account := st.account(p.AccountID)
	pool.FreeStake = pool.FreeStake.Add(p.Amount)
	pool.TotalShares = pool.TotalShares.Add(p.Shares)
	pool.TotalStake = pool.TotalStake.Add(p.Amount)
	economics.RefreshAPR(pool)
	account.TotalStake = account.TotalStake.Add(p.Amount)
	st.global.TotalStake = st.global.TotalStake.Add(p.Amount)
	if pool.Delegable != nil {
		delegable := pool.Delegable.Sub(p.Amount)
		pool.Delegable = &delegable
	}
	stakeID := model.CombineIDs(p.StakePoolID, p.AccountID)
	if stake, ok := st.stakes[stakeID]; ok {
		if stake.Shares.IsZero() {
			pool.ActiveStakeCount++
		}
		stake.Shares = stake.Shares.Add(p.Shares)
		stake.Amount = stake.Amount.Add(p.Amount)
		st.touchStake(stake)
	} else {
		stake = model.NewStakePoolStake(p.StakePoolID, p.AccountID)
		stake.Amount = p.Amount
		stake.Shares = p.Shares
		st.stakes[stakeID] = stake
		st.touchStake(stake)
	}
	st.touchPool(pool)
	return nil
}

func (a *Aggregator) applyWithdrawal(st *batchState, p chain.Withdrawal) error {
	pool, err := st.pool(p.StakePoolID)
	if err != nil {
		return err
	}
	stake, err := st.stake(model.CombineIDs(p.StakePoolID, p.AccountID))
	if err != nil {
		return err
	}
	account := st.account(p.AccountID)
	account.TotalStake = account.TotalStake.Sub(p.Amount)
	st.global.TotalStake = st.global.TotalStake.Sub(p.Amount)
	pool.TotalShares = pool.TotalShares.Sub(p.Shares)
	pool.TotalStake = pool.TotalStake.Sub(p.Amount)
	economics.RefreshAPR(pool)
	pool.FreeStake = pool.FreeStake.Sub(p.Amount)
	stake.Shares = stake.Shares.Sub(p.Shares)
	stake.Amount = stake.Amount.Sub(p.Amount)
	if stake.Shares.IsZero() {
		pool.ActiveStakeCount--
	}
	if pool.TotalWithdrawal.IsPositive() {
		pool.TotalWithdrawal = numeric.Max(pool.TotalWithdrawal.Sub(p.Amount), decimal.Zero)
	}
	if pool.Capacity != nil {
		delegable := pool.Capacity.Sub(pool.TotalStake).Add(pool.TotalWithdrawal)
		pool.Delegable = &delegable
	}
	if stake.WithdrawalShares.IsPositive() {
		stake.WithdrawalShares = numeric.Max(stake.WithdrawalShares.Sub(p.Shares), decimal.Zero)
	}
	if stake.WithdrawalAmount.IsPositive() {
		stake.WithdrawalAmount = numeric.Max(stake.WithdrawalAmount.Sub(p.Amount), decimal.Zero)
	}
	st.touchPool(pool)
	st.touchStake(stake)
	return nil
}

func (a *Aggregator) applyWithdrawalQueued(st *batchState, block chain.BlockHeader, p chain.WithdrawalQueued) error {
	pool, err := st.pool(p.StakePoolID)
	if err != nil {
		return err
	}
	stake, err := st.stake(model.CombineIDs(p.StakePoolID, p.AccountID))
	if err != nil {
		return err
	}
	amount := numeric.Prorate(p.Shares, pool.TotalShares, pool.TotalStake)
	// A new request replaces the previous pending withdrawal wholesale.
	pool.TotalWithdrawal = pool.TotalWithdrawal.Sub(stake.WithdrawalAmount)
	stake.WithdrawalShares = p.Shares
	stake.WithdrawalAmount = amount
	startTime := block.Time()
	stake.WithdrawalStartTime = &startTime
	pool.TotalWithdrawal = pool.TotalWithdrawal.Add(amount)
	if pool.Capacity != nil {
		delegable := pool.Capacity.Sub(pool.TotalStake).Add(pool.TotalWithdrawal)
		pool.Delegable = &delegable
	}
	st.touchPool(pool)
	st.touchStake(stake)
	return nil
}

func (a *Aggregator) applyRewardReceived(st *batchState, p chain.RewardReceived) error {
	pool, err := st.pool(p.StakePoolID)
	if err != nil {
		return err
	}
	owner := st.account(pool.OwnerID)
	pool.OwnerReward = pool.OwnerReward.Add(p.ToOwner)
	owner.TotalOwnerReward = owner.TotalOwnerReward.Add(p.ToOwner)
	st.touchPool(pool)
	if pool.TotalShares.IsZero() {
		return nil
	}
	for _, id := range sortedKeys(stakeIDsOfPool(st, pool.ID)) {
		stake := st.stakes[id]
		amount := numeric.Prorate(stake.Shares, pool.TotalShares, p.ToStakers)
		stake.Reward = stake.Reward.Add(amount)
		staker := st.account(stake.AccountID)
		staker.TotalStakeReward = staker.TotalStakeReward.Add(amount)
		st.touchStake(stake)
	}
	return nil
}

func stakeIDsOfPool(st *batchState, poolID string) map[string]struct{} {
	ids := map[string]struct{}{}
	for id, stake := range st.stakes {
		if stake.StakePoolID == poolID {
			ids[id] = struct{}{}
		}
	}
	return ids
}

func (a *Aggregator) applyRewardsWithdrawn(st *batchState, p chain.RewardsWithdrawn) error {
	pool, err := st.pool(p.StakePoolID)
	if err != nil {
		return err
	}
	account := st.account(p.AccountID)
	if pool.OwnerID == p.AccountID {
		account.TotalOwnerReward = account.TotalOwnerReward.Sub(pool.OwnerReward)
		pool.OwnerReward = decimal.Zero
		st.touchPool(pool)
	}
	if stake, ok := st.stakes[model.CombineIDs(p.StakePoolID, p.AccountID)]; ok {
		account.TotalStakeReward = account.TotalStakeReward.Sub(stake.Reward)
		stake.Reward = decimal.Zero
		st.touchStake(stake)
	}
	return nil
}

func (a *Aggregator) applyOwnerRewardsWithdrawn(st *batchState, p chain.OwnerRewardsWithdrawn) error {
	pool, err := st.pool(p.StakePoolID)
	if err != nil {
		return err
	}
	owner := st.account(pool.OwnerID)
	owner.TotalOwnerReward = owner.TotalOwnerReward.Sub(pool.OwnerReward)
	pool.OwnerReward = decimal.Zero
	st.touchPool(pool)
	return nil
}

func (a *Aggregator) applyStakerRewardsWithdrawn(st *batchState, p chain.StakerRewardsWithdrawn) error {
	if _, err := st.pool(p.StakePoolID); err != nil {
		return err
	}
	stake, err := st.stake(model.CombineIDs(p.StakePoolID, p.AccountID))
	if err != nil {
		return err
	}
	account := st.account(stake.AccountID)
	account.TotalStakeReward = account.TotalStakeReward.Sub(stake.Reward)
	stake.Reward = decimal.Zero
	st.touchStake(stake)
	return nil
}

func (a *Aggregator) applyPoolWhitelistToggled(st *batchState, poolID string, enabled bool) error {
	pool, err := st.pool(poolID)
	if err != nil {
		return err
	}
	pool.WhitelistEnabled = enabled
	st.touchPool(pool)
	return nil
}

func (a *Aggregator) applyWhitelistStakerAdded(st *batchState, block chain.BlockHeader, p chain.PoolWhitelistStakerAdded) error {
	if _, err := st.pool(p.StakePoolID); err != nil {
		return err
	}
	st.account(p.AccountID)
	row := model.NewStakePoolWhitelist(p.StakePoolID, p.AccountID, block.Time())
	st.whitelists[row.ID] = row
	st.whitelistAdds[row.ID] = row
	return nil
}

func (a *Aggregator) applyWhitelistStakerRemoved(st *batchState, p chain.PoolWhitelistStakerRemoved) error {
	id := model.CombineIDs(p.StakePoolID, p.AccountID)
	if _, ok := st.whitelists[id]; !ok {
		return xerrors.Errorf("whitelist entry %s not found", id)
	}
	delete(st.whitelists, id)
	if _, added := st.whitelistAdds[id]; added {
		// Added earlier in the same batch; never reached the database.
		delete(st.whitelistAdds, id)
		return nil
	}
	st.whitelistRemovals[id] = struct{}{}
	return nil
}

func (a *Aggregator) applyMinerBound(st *batchState, p chain.MinerBound) error {
	worker, err := st.worker(p.WorkerID)
	if err != nil {
		return err
	}
	miner, ok := st.miners[p.MinerID]
	if !ok {
		miner = model.NewMiner(p.MinerID)
		st.miners[p.MinerID] = miner
	}
	miner.IsBound = true
	miner.WorkerID = &worker.ID
	worker.MinerID = &miner.ID
	st.touchMiner(miner)
	st.touchWorker(worker)
	return nil
}

func (a *Aggregator) applyMinerUnbound(st *batchState, p chain.MinerUnbound) error {
	worker, err := st.worker(p.WorkerID)
	if err != nil {
		return err
	}
	miner, err := st.miner(p.MinerID)
	if err != nil {
		return err
	}
	if miner.WorkerID == nil || *miner.WorkerID != worker.ID {
		return xerrors.Errorf("miner %s is not bound to worker %s", miner.ID, worker.ID)
	}
	worker.MinerID = nil
	worker.Share = nil
	miner.IsBound = false
	miner.WorkerID = nil
	st.touchMiner(miner)
	st.touchWorker(worker)
	return nil
}

func (a *Aggregator) applyMinerSettled(st *batchState, p chain.MinerSettled) error {
	miner, err := st.miner(p.MinerID)
	if err != nil {
		return err
	}
	if miner.StakePoolID == nil {
		return xerrors.Errorf("miner %s has no pool", miner.ID)
	}
	pool, err := st.pool(*miner.StakePoolID)
	if err != nil {
		return err
	}
	miner.TotalReward = miner.TotalReward.Add(p.Payout)
	miner.V = p.V
	if miner.WorkerID == nil {
		return xerrors.Errorf("miner %s has no worker", miner.ID)
	}
	worker, err := st.worker(*miner.WorkerID)
	if err != nil {
		return err
	}
	if worker.Share == nil {
		return xerrors.Errorf("worker %s has no share", worker.ID)
	}
	prevShare := *worker.Share
	if err := economics.UpdateWorkerShare(worker, miner); err != nil {
		return err
	}
	if miner.State == model.MinerStateMiningIdle {
		st.global.MiningWorkerShare = st.global.MiningWorkerShare.Sub(prevShare).Add(*worker.Share)
		pool.MiningWorkerShare = pool.MiningWorkerShare.Sub(prevShare).Add(*worker.Share)
		economics.RefreshAPR(pool)
		st.touchPool(pool)
	}
	st.touchMiner(miner)
	st.touchWorker(worker)
	return nil
}

func (a *Aggregator) applyMinerStarted(st *batchState, p chain.MinerStarted) error {
	miner, err := st.miner(p.MinerID)
	if err != nil {
		return err
	}
	if miner.StakePoolID == nil || miner.WorkerID == nil {
		return xerrors.Errorf("miner %s is not fully bound", miner.ID)
	}
	pool, err := st.pool(*miner.StakePoolID)
	if err != nil {
		return err
	}
	worker, err := st.worker(*miner.WorkerID)
	if err != nil {
		return err
	}
	pool.MiningWorkerCount++
	miner.PInit = p.InitP
	miner.PInstant = p.InitP
	miner.Ve = p.InitV
	miner.V = p.InitV
	miner.State = model.MinerStateMiningIdle
	if err := economics.UpdateWorkerShare(worker, miner); err != nil {
		return err
	}
	st.global.MiningWorkerShare = st.global.MiningWorkerShare.Add(*worker.Share)
	pool.MiningWorkerShare = pool.MiningWorkerShare.Add(*worker.Share)
	economics.RefreshAPR(pool)
	st.touchPool(pool)
	st.touchMiner(miner)
	st.touchWorker(worker)
	return nil
}

func (a *Aggregator) applyMinerStopped(st *batchState, block chain.BlockHeader, p chain.MinerStopped) error {
	miner, err := st.miner(p.MinerID)
	if err != nil {
		return err
	}
	if miner.StakePoolID == nil || miner.WorkerID == nil {
		return xerrors.Errorf("miner %s is not fully bound", miner.ID)
	}
	pool, err := st.pool(*miner.StakePoolID)
	if err != nil {
		return err
	}
	worker, err := st.worker(*miner.WorkerID)
	if err != nil {
		return err
	}
	if worker.Share == nil {
		return xerrors.Errorf("worker %s has no share", worker.ID)
	}
	if miner.State == model.MinerStateMiningIdle {
		st.global.MiningWorkerShare = st.global.MiningWorkerShare.Sub(*worker.Share)
		pool.MiningWorkerShare = pool.MiningWorkerShare.Sub(*worker.Share)
		economics.RefreshAPR(pool)
	}
	miner.State = model.MinerStateMiningCoolingDown
	startTime := block.Time()
	miner.CoolingDownStartTime = &startTime
	pool.MiningWorkerCount--
	pool.ReleasingStake = pool.ReleasingStake.Add(miner.Stake)
	st.touchPool(pool)
	st.touchMiner(miner)
	return nil
}

func (a *Aggregator) applyBenchmarkUpdated(st *batchState, p chain.BenchmarkUpdated) error {
	miner, err := st.miner(p.MinerID)
	if err != nil {
		return err
	}
	miner.PInstant = p.PInstant
	if miner.WorkerID == nil {
		return xerrors.Errorf("miner %s has no worker", miner.ID)
	}
	worker, err := st.worker(*miner.WorkerID)
	if err != nil {
		return err
	}
	if worker.Share == nil {
		return xerrors.Errorf("worker %s has no share", worker.ID)
	}
	prevShare := *worker.Share
	if err := economics.UpdateWorkerShare(worker, miner); err != nil {
		return err
	}
	if miner.State == model.MinerStateMiningIdle {
		if miner.StakePoolID == nil {
			return xerrors.Errorf("miner %s has no pool", miner.ID)
		}
		pool, err := st.pool(*miner.StakePoolID)
		if err != nil {
			return err
		}
		st.global.MiningWorkerShare = st.global.MiningWorkerShare.Sub(prevShare).Add(*worker.Share)
		pool.MiningWorkerShare = pool.MiningWorkerShare.Sub(prevShare).Add(*worker.Share)
		economics.RefreshAPR(pool)
		st.touchPool(pool)
	}
	st.touchMiner(miner)
	st.touchWorker(worker)
	return nil
}

func (a *Aggregator) applyMinerUnresponsive(st *batchState, minerID string, entering bool) error {
	miner, err := st.miner(minerID)
	if err != nil {
		return err
	}
	if miner.StakePoolID == nil || miner.WorkerID == nil {
		return xerrors.Errorf("miner %s is not fully bound", miner.ID)
	}
	pool, err := st.pool(*miner.StakePoolID)
	if err != nil {
		return err
	}
	worker, err := st.worker(*miner.WorkerID)
	if err != nil {
		return err
	}
	if worker.Share == nil {
		return xerrors.Errorf("worker %s has no share", worker.ID)
	}
	if entering {
		miner.State = model.MinerStateMiningUnresponsive
		pool.MiningWorkerCount--
		st.global.MiningWorkerShare = st.global.MiningWorkerShare.Sub(*worker.Share)
		pool.MiningWorkerShare = pool.MiningWorkerShare.Sub(*worker.Share)
	} else {
		miner.State = model.MinerStateMiningIdle
		pool.MiningWorkerCount++
		st.global.MiningWorkerShare = st.global.MiningWorkerShare.Add(*worker.Share)
		pool.MiningWorkerShare = pool.MiningWorkerShare.Add(*worker.Share)
	}
	economics.RefreshAPR(pool)
	st.touchPool(pool)
	st.touchMiner(miner)
	return nil
}

func (a *Aggregator) applyMinerReclaimed(st *batchState, p chain.MinerReclaimed) error {
	miner, err := st.miner(p.MinerID)
	if err != nil {
		return err
	}
	prevStake := miner.Stake
	miner.State = model.MinerStateReady
	miner.CoolingDownStartTime = nil
	miner.Stake = decimal.Zero
	st.touchMiner(miner)
	// Pool stake accounting is best effort here: a miner reclaimed before
	// its pool link was observed only updates its own fields.
	if miner.StakePoolID == nil {
		log.Warnw("reclaimed miner has no pool, skipping stake accounting", "miner", miner.ID)
		return nil
	}
	pool, ok := st.pools[*miner.StakePoolID]
	if !ok {
		log.Warnw("reclaimed miner's pool not loaded, skipping stake accounting",
			"miner", miner.ID, "pool", *miner.StakePoolID)
		return nil
	}
	pool.ReleasingStake = pool.ReleasingStake.Sub(prevStake)
	pool.FreeStake = pool.FreeStake.Add(prevStake)
	st.touchPool(pool)
	return nil
}

func (a *Aggregator) applyTokenomicParametersChanged(ctx context.Context, st *batchState, block chain.BlockHeader) error {
	params, err := a.params.TokenomicParameters(ctx, block)
	if err != nil {
		return xerrors.Errorf("read tokenomic parameters: %w", err)
	}
	params.ID = model.SingletonID
	st.params = params
	st.paramsDirty = true
	return nil
}

func (a *Aggregator) applyWorkerAdded(st *batchState, p chain.WorkerAdded) error {
	worker := model.NewWorker(p.WorkerID, p.ConfidenceLevel)
	if err := economics.UpdateWorkerBounds(worker, st.params); err != nil {
		return err
	}
	st.workers[worker.ID] = worker
	st.touchWorker(worker)
	return nil
}

func (a *Aggregator) applyWorkerUpdated(st *batchState, p chain.WorkerUpdated) error {
	worker, err := st.worker(p.WorkerID)
	if err != nil {
		return err
	}
	worker.ConfidenceLevel = p.ConfidenceLevel
	if err := economics.UpdateWorkerBounds(worker, st.params); err != nil {
		return err
	}
	if worker.MinerID != nil {
		miner, err := st.miner(*worker.MinerID)
		if err != nil {
			return err
		}
		if err := economics.UpdateWorkerShare(worker, miner); err != nil {
			return err
		}
	}
	st.touchWorker(worker)
	return nil
}

func (a *Aggregator) applyInitialScoreSet(st *batchState, p chain.InitialScoreSet) error {
	worker, err := st.worker(p.WorkerID)
	if err != nil {
		return err
	}
	score := p.InitialScore
	worker.InitialScore = &score
	if err := economics.UpdateWorkerBounds(worker, st.params); err != nil {
		return err
	}
	st.touchWorker(worker)
	return nil
}
