// Package indexer contains the event-sourced aggregation engine: the
// two-phase batch processor applying decoded on-chain events to the entity
// graph, the one-time snapshot bootstrap, the rolling block-time hook and
// the identity enrichment pass.
package indexer

import (
	"context"
	"sort"

	logging "github.com/ipfs/go-log/v2"
	"go.opencensus.io/tag"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/phala-network/computation-indexer/chain"
	"github.com/phala-network/computation-indexer/metrics"
	"github.com/phala-network/computation-indexer/model"
)

var log = logging.Logger("indexer")

// Aggregator applies event batches to the aggregate entity graph. One batch
// is fully prefetched, mutated and persisted before the next begins; the
// only concurrency is the parallel reads of the prefetch pass.
type Aggregator struct {
	store  model.Store
	params chain.ParameterReader
}

func NewAggregator(store model.Store, params chain.ParameterReader) *Aggregator {
	return &Aggregator{store: store, params: params}
}

// batchState is the in-memory arena of one batch: every entity the batch
// may read or mutate, keyed by id, plus the set of entities actually
// touched so the flush persists nothing else.
type batchState struct {
	global *model.GlobalState
	params *model.TokenomicParameters

	accounts   map[string]*model.Account
	pools      map[string]*model.StakePool
	workers    map[string]*model.Worker
	miners     map[string]*model.Miner
	stakes     map[string]*model.StakePoolStake
	whitelists map[string]*model.StakePoolWhitelist

	touchedAccounts map[string]struct{}
	touchedPools    map[string]struct{}
	touchedWorkers  map[string]struct{}
	touchedMiners   map[string]struct{}
	touchedStakes   map[string]struct{}

	whitelistAdds     map[string]*model.StakePoolWhitelist
	whitelistRemovals map[string]struct{}
	paramsDirty       bool
}

func newBatchState() *batchState {
	return &batchState{
		accounts:          map[string]*model.Account{},
		pools:             map[string]*model.StakePool{},
		workers:           map[string]*model.Worker{},
		miners:            map[string]*model.Miner{},
		stakes:            map[string]*model.StakePoolStake{},
		whitelists:        map[string]*model.StakePoolWhitelist{},
		touchedAccounts:   map[string]struct{}{},
		touchedPools:      map[string]struct{}{},
		touchedWorkers:    map[string]struct{}{},
		touchedMiners:     map[string]struct{}{},
		touchedStakes:     map[string]struct{}{},
		whitelistAdds:     map[string]*model.StakePoolWhitelist{},
		whitelistRemovals: map[string]struct{}{},
	}
}

// account gets or lazily creates an account. Accounts are always persisted
// once referenced.
func (st *batchState) account(id string) *model.Account {
	a, ok := st.accounts[id]
	if !ok {
		a = model.NewAccount(id)
		st.accounts[id] = a
	}
	st.touchedAccounts[id] = struct{}{}
	return a
}

func (st *batchState) pool(id string) (*model.StakePool, error) {
	p, ok := st.pools[id]
	if !ok {
		return nil, xerrors.Errorf("stake pool %s not found", id)
	}
	return p, nil
}

func (st *batchState) worker(id string) (*model.Worker, error) {
	w, ok := st.workers[id]
	if !ok {
		return nil, xerrors.Errorf("worker %s not found", id)
	}
	return w, nil
}

func (st *batchState) miner(id string) (*model.Miner, error) {
	m, ok := st.miners[id]
	if !ok {
		return nil, xerrors.Errorf("miner %s not found", id)
	}
	return m, nil
}

func (st *batchState) stake(id string) (*model.StakePoolStake, error) {
	s, ok := st.stakes[id]
	if !ok {
		return nil, xerrors.Errorf("stake %s not found", id)
	}
	return s, nil
}

func (st *batchState) touchPool(p *model.StakePool)       { st.touchedPools[p.ID] = struct{}{} }
func (st *batchState) touchWorker(w *model.Worker)        { st.touchedWorkers[w.ID] = struct{}{} }
func (st *batchState) touchMiner(m *model.Miner)          { st.touchedMiners[m.ID] = struct{}{} }
func (st *batchState) touchStake(s *model.StakePoolStake) { st.touchedStakes[s.ID] = struct{}{} }

// changeSet assembles the touched entities into one write set, ordered by
// id for deterministic persistence.
func (st *batchState) changeSet() *model.ChangeSet {
	cs := &model.ChangeSet{GlobalState: st.global}
	for _, id := range sortedKeys(st.touchedAccounts) {
		cs.Accounts = append(cs.Accounts, st.accounts[id])
	}
	for _, id := range sortedKeys(st.touchedPools) {
		cs.StakePools = append(cs.StakePools, st.pools[id])
	}
	for _, id := range sortedKeys(st.touchedMiners) {
		cs.Miners = append(cs.Miners, st.miners[id])
	}
	for _, id := range sortedKeys(st.touchedWorkers) {
		cs.Workers = append(cs.Workers, st.workers[id])
	}
	for _, id := range sortedKeys(st.touchedStakes) {
		cs.Stakes = append(cs.Stakes, st.stakes[id])
	}
	addIDs := make(map[string]struct{}, len(st.whitelistAdds))
	for id := range st.whitelistAdds {
		addIDs[id] = struct{}{}
	}
	for _, id := range sortedKeys(addIDs) {
		cs.WhitelistAdds = append(cs.WhitelistAdds, st.whitelistAdds[id])
	}
	cs.WhitelistRemovals = sortedKeys(st.whitelistRemovals)
	if st.paramsDirty {
		cs.TokenomicParameters = st.params
	}
	return cs
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type keySet map[string]struct{}

func (s keySet) add(id string)  { s[id] = struct{}{} }
func (s keySet) list() []string { return sortedKeys(s) }

// prefetchKeys is the set of entity ids one batch will read or mutate,
// accumulated by scanning every event before any is applied.
type prefetchKeys struct {
	poolIDs      keySet
	workerIDs    keySet
	minerIDs     keySet
	stakeIDs     keySet
	stakePoolIDs keySet
	whitelistIDs keySet
}

func collectKeys(batch *chain.Batch) prefetchKeys {
	keys := prefetchKeys{
		poolIDs:      keySet{},
		workerIDs:    keySet{},
		minerIDs:     keySet{},
		stakeIDs:     keySet{},
		stakePoolIDs: keySet{},
		whitelistIDs: keySet{},
	}
	for _, ev := range batch.Events {
		switch p := ev.Params.(type) {
		case chain.PoolCommissionSet:
			keys.poolIDs.add(p.StakePoolID)
		case chain.PoolCapacitySet:
			keys.poolIDs.add(p.StakePoolID)
		case chain.PoolWorkerAdded:
			keys.poolIDs.add(p.StakePoolID)
			keys.workerIDs.add(p.WorkerID)
		case chain.PoolWorkerRemoved:
			keys.poolIDs.add(p.StakePoolID)
			keys.workerIDs.add(p.WorkerID)
		case chain.MiningStarted:
			keys.poolIDs.add(p.StakePoolID)
			keys.workerIDs.add(p.WorkerID)
		case chain.Contribution:
			keys.poolIDs.add(p.StakePoolID)
			keys.stakeIDs.add(model.CombineIDs(p.StakePoolID, p.AccountID))
		case chain.Withdrawal:
			keys.poolIDs.add(p.StakePoolID)
			keys.stakeIDs.add(model.CombineIDs(p.StakePoolID, p.AccountID))
		case chain.WithdrawalQueued:
			keys.poolIDs.add(p.StakePoolID)
			keys.stakeIDs.add(model.CombineIDs(p.StakePoolID, p.AccountID))
		case chain.RewardReceived:
			keys.poolIDs.add(p.StakePoolID)
			keys.stakePoolIDs.add(p.StakePoolID)
		case chain.RewardsWithdrawn:
			keys.poolIDs.add(p.StakePoolID)
			keys.stakeIDs.add(model.CombineIDs(p.StakePoolID, p.AccountID))
		case chain.OwnerRewardsWithdrawn:
			keys.poolIDs.add(p.StakePoolID)
		case chain.StakerRewardsWithdrawn:
			keys.poolIDs.add(p.StakePoolID)
			keys.stakeIDs.add(model.CombineIDs(p.StakePoolID, p.AccountID))
		case chain.PoolWhitelistCreated:
			keys.poolIDs.add(p.StakePoolID)
		case chain.PoolWhitelistDeleted:
			keys.poolIDs.add(p.StakePoolID)
		case chain.PoolWhitelistStakerAdded:
			keys.poolIDs.add(p.StakePoolID)
		case chain.PoolWhitelistStakerRemoved:
			keys.poolIDs.add(p.StakePoolID)
			keys.whitelistIDs.add(model.CombineIDs(p.StakePoolID, p.AccountID))
		case chain.MinerBound:
			keys.minerIDs.add(p.MinerID)
			keys.workerIDs.add(p.WorkerID)
		case chain.MinerUnbound:
			keys.minerIDs.add(p.MinerID)
			keys.workerIDs.add(p.WorkerID)
		case chain.MinerSettled:
			keys.minerIDs.add(p.MinerID)
		case chain.MinerStarted:
			keys.minerIDs.add(p.MinerID)
		case chain.MinerStopped:
			keys.minerIDs.add(p.MinerID)
		case chain.BenchmarkUpdated:
			keys.minerIDs.add(p.MinerID)
		case chain.MinerEnterUnresponsive:
			keys.minerIDs.add(p.MinerID)
		case chain.MinerExitUnresponsive:
			keys.minerIDs.add(p.MinerID)
		case chain.MinerReclaimed:
			keys.minerIDs.add(p.MinerID)
		case chain.WorkerUpdated:
			keys.workerIDs.add(p.WorkerID)
		case chain.InitialScoreSet:
			keys.workerIDs.add(p.WorkerID)
		}
	}
	return keys
}

// prefetch bulk-loads every entity the batch will read or mutate. Entity
// kinds load in parallel; a second wave fills in pools referenced only
// through a loaded miner or worker.
func (a *Aggregator) prefetch(ctx context.Context, batch *chain.Batch) (*batchState, error) {
	keys := collectKeys(batch)
	st := newBatchState()

	var (
		accounts   []*model.Account
		pools      []*model.StakePool
		workers    []*model.Worker
		miners     []*model.Miner
		stakes     []*model.StakePoolStake
		whitelists []*model.StakePoolWhitelist
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		st.global, err = a.store.GlobalState(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		st.params, err = a.store.TokenomicParameters(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		accounts, err = a.store.Accounts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		pools, err = a.store.StakePools(gctx, keys.poolIDs.list())
		return err
	})
	g.Go(func() error {
		var err error
		workers, err = a.store.Workers(gctx, keys.workerIDs.list(), keys.minerIDs.list())
		return err
	})
	g.Go(func() error {
		var err error
		miners, err = a.store.Miners(gctx, keys.minerIDs.list(), keys.workerIDs.list())
		return err
	})
	g.Go(func() error {
		var err error
		stakes, err = a.store.Stakes(gctx, keys.stakeIDs.list(), keys.stakePoolIDs.list())
		return err
	})
	g.Go(func() error {
		var err error
		whitelists, err = a.store.Whitelists(gctx, keys.whitelistIDs.list())
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, xerrors.Errorf("prefetch: %w", err)
	}

	for _, acct := range accounts {
		st.accounts[acct.ID] = acct
	}
	for _, p := range pools {
		st.pools[p.ID] = p
	}
	for _, w := range workers {
		st.workers[w.ID] = w
	}
	for _, m := range miners {
		st.miners[m.ID] = m
	}
	for _, s := range stakes {
		st.stakes[s.ID] = s
	}
	for _, w := range whitelists {
		st.whitelists[w.ID] = w
	}

	// Pools referenced only through a miner or worker binding.
	missing := keySet{}
	for _, w := range workers {
		if w.StakePoolID != nil {
			if _, ok := st.pools[*w.StakePoolID]; !ok {
				missing.add(*w.StakePoolID)
			}
		}
	}
	for _, m := range miners {
		if m.StakePoolID != nil {
			if _, ok := st.pools[*m.StakePoolID]; !ok {
				missing.add(*m.StakePoolID)
			}
		}
	}
	if len(missing) > 0 {
		more, err := a.store.StakePools(ctx, missing.list())
		if err != nil {
			return nil, xerrors.Errorf("prefetch referenced pools: %w", err)
		}
		for _, p := range more {
			st.pools[p.ID] = p
		}
	}
	return st, nil
}

// ProcessBatch runs the two-phase prefetch-then-apply cycle for one batch
// and flushes the touched entities as a single atomic unit. Any failed
// precondition aborts the whole batch with nothing persisted.
func (a *Aggregator) ProcessBatch(ctx context.Context, batch *chain.Batch) error {
	stop := metrics.Timer(ctx, metrics.BatchDuration)
	defer stop()

	st, err := a.prefetch(ctx, batch)
	if err != nil {
		return err
	}
	for _, ev := range batch.Events {
		st.global.Height = ev.Block.Height
		log.Debugw("applying event", "kind", ev.Params.Kind(), "height", ev.Block.Height)
		if err := a.applyEvent(ctx, st, ev); err != nil {
			metrics.RecordCount(ctx, metrics.ProcessingFailure, 1)
			return xerrors.Errorf("apply %s at #%d: %w", ev.Params.Kind(), ev.Block.Height, err)
		}
		evCtx, _ := tag.New(ctx, tag.Upsert(metrics.EventKind, string(ev.Params.Kind())))
		metrics.RecordCount(evCtx, metrics.EventsProcessed, 1)
	}
	return a.store.ApplyChanges(ctx, st.changeSet())
}
