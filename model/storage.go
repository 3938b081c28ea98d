package model

import (
	"context"

	"golang.org/x/xerrors"
)

// ErrNotFound is returned by singleton lookups when the row does not exist
// yet (i.e. before bootstrap has run).
var ErrNotFound = xerrors.New("not found")

// Store is the logical read/write contract the aggregation engine needs
// from a backing store. Reads may run concurrently; writes happen through
// ApplyChanges or SeedSnapshot, each of which must be atomic.
type Store interface {
	GlobalState(ctx context.Context) (*GlobalState, error)
	TokenomicParameters(ctx context.Context) (*TokenomicParameters, error)

	// Accounts returns every account row. Accounts are not selectively
	// filterable by event parameters alone.
	Accounts(ctx context.Context) ([]*Account, error)
	StakePools(ctx context.Context, ids []string) ([]*StakePool, error)
	// Workers returns workers whose id is in ids or whose bound miner is
	// in minerIDs.
	Workers(ctx context.Context, ids, minerIDs []string) ([]*Worker, error)
	// Miners returns miners whose id is in ids or whose bound worker is in
	// workerIDs.
	Miners(ctx context.Context, ids, workerIDs []string) ([]*Miner, error)
	// Stakes returns stake rows whose id is in ids or whose pool is in
	// poolIDs.
	Stakes(ctx context.Context, ids, poolIDs []string) ([]*StakePoolStake, error)
	Whitelists(ctx context.Context, ids []string) ([]*StakePoolWhitelist, error)

	// ApplyChanges persists one batch's touched entities as a single
	// atomic unit: either every change lands or none does.
	ApplyChanges(ctx context.Context, cs *ChangeSet) error
	// SeedSnapshot inserts the bootstrap entity graph in one atomic unit.
	SeedSnapshot(ctx context.Context, seed *SnapshotSeed) error
	// SaveGlobalState updates the singleton row outside of a batch flush
	// (used by the block-time hook).
	SaveGlobalState(ctx context.Context, gs *GlobalState) error
}

// ChangeSet is the buffered write set of one event batch. Slices hold only
// entities actually touched; whitelist removals are carried by id.
type ChangeSet struct {
	Accounts            []*Account
	StakePools          []*StakePool
	Miners              []*Miner
	Workers             []*Worker
	Stakes              []*StakePoolStake
	WhitelistAdds       []*StakePoolWhitelist
	WhitelistRemovals   []string
	GlobalState         *GlobalState
	TokenomicParameters *TokenomicParameters
}

// Empty reports whether the change set carries no writes at all.
func (cs *ChangeSet) Empty() bool {
	return len(cs.Accounts) == 0 && len(cs.StakePools) == 0 && len(cs.Miners) == 0 &&
		len(cs.Workers) == 0 && len(cs.Stakes) == 0 && len(cs.WhitelistAdds) == 0 &&
		len(cs.WhitelistRemovals) == 0 && cs.GlobalState == nil && cs.TokenomicParameters == nil
}

// SnapshotSeed is the fully built entity graph produced by the one-time
// snapshot bootstrap.
type SnapshotSeed struct {
	Accounts            []*Account
	StakePools          []*StakePool
	Workers             []*Worker
	Miners              []*Miner
	Stakes              []*StakePoolStake
	Whitelists          []*StakePoolWhitelist
	GlobalState         *GlobalState
	TokenomicParameters *TokenomicParameters
}
