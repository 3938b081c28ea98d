package storage

import (
	"context"
	"sync"

	"github.com/phala-network/computation-indexer/model"
)

// MemStore is an in-memory model.Store used by engine and bootstrap tests.
// Reads return deep copies so in-flight batch mutations never leak into the
// stored state before ApplyChanges commits them.
type MemStore struct {
	mu sync.Mutex

	accounts   map[string]*model.Account
	pools      map[string]*model.StakePool
	workers    map[string]*model.Worker
	miners     map[string]*model.Miner
	stakes     map[string]*model.StakePoolStake
	whitelists map[string]*model.StakePoolWhitelist
	global     *model.GlobalState
	params     *model.TokenomicParameters
}

func NewMemStore() *MemStore {
	return &MemStore{
		accounts:   map[string]*model.Account{},
		pools:      map[string]*model.StakePool{},
		workers:    map[string]*model.Worker{},
		miners:     map[string]*model.Miner{},
		stakes:     map[string]*model.StakePoolStake{},
		whitelists: map[string]*model.StakePoolWhitelist{},
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneAccount(a *model.Account) *model.Account {
	c := *a
	c.IdentityDisplay = clonePtr(a.IdentityDisplay)
	c.IdentityLevel = clonePtr(a.IdentityLevel)
	return &c
}

func clonePool(p *model.StakePool) *model.StakePool {
	c := *p
	c.Capacity = clonePtr(p.Capacity)
	c.Delegable = clonePtr(p.Delegable)
	return &c
}

func cloneWorker(w *model.Worker) *model.Worker {
	c := *w
	c.StakePoolID = clonePtr(w.StakePoolID)
	c.MinerID = clonePtr(w.MinerID)
	c.InitialScore = clonePtr(w.InitialScore)
	c.SMin = clonePtr(w.SMin)
	c.SMax = clonePtr(w.SMax)
	c.Share = clonePtr(w.Share)
	return &c
}

func cloneMiner(m *model.Miner) *model.Miner {
	c := *m
	c.StakePoolID = clonePtr(m.StakePoolID)
	c.WorkerID = clonePtr(m.WorkerID)
	c.CoolingDownStartTime = clonePtr(m.CoolingDownStartTime)
	return &c
}

func cloneStake(s *model.StakePoolStake) *model.StakePoolStake {
	c := *s
	c.WithdrawalStartTime = clonePtr(s.WithdrawalStartTime)
	return &c
}

func cloneWhitelist(w *model.StakePoolWhitelist) *model.StakePoolWhitelist {
	c := *w
	return &c
}

func (s *MemStore) GlobalState(ctx context.Context) (*model.GlobalState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.global == nil {
		return nil, model.ErrNotFound
	}
	c := *s.global
	return &c, nil
}

func (s *MemStore) TokenomicParameters(ctx context.Context) (*model.TokenomicParameters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.params == nil {
		return nil, model.ErrNotFound
	}
	c := *s.params
	return &c, nil
}

func (s *MemStore) Accounts(ctx context.Context) ([]*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, cloneAccount(a))
	}
	return out, nil
}

func (s *MemStore) StakePools(ctx context.Context, ids []string) ([]*model.StakePool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.StakePool
	for _, id := range ids {
		if p, ok := s.pools[id]; ok {
			out = append(out, clonePool(p))
		}
	}
	return out, nil
}

func (s *MemStore) Workers(ctx context.Context, ids, minerIDs []string) ([]*model.Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	var out []*model.Worker
	for _, id := range ids {
		if w, ok := s.workers[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, cloneWorker(w))
		}
	}
	for _, mid := range minerIDs {
		for _, w := range s.workers {
			if w.MinerID != nil && *w.MinerID == mid && !seen[w.ID] {
				seen[w.ID] = true
				out = append(out, cloneWorker(w))
			}
		}
	}
	return out, nil
}

func (s *MemStore) Miners(ctx context.Context, ids, workerIDs []string) ([]*model.Miner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	var out []*model.Miner
	for _, id := range ids {
		if m, ok := s.miners[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, cloneMiner(m))
		}
	}
	for _, wid := range workerIDs {
		for _, m := range s.miners {
			if m.WorkerID != nil && *m.WorkerID == wid && !seen[m.ID] {
				seen[m.ID] = true
				out = append(out, cloneMiner(m))
			}
		}
	}
	return out, nil
}

func (s *MemStore) Stakes(ctx context.Context, ids, poolIDs []string) ([]*model.StakePoolStake, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	var out []*model.StakePoolStake
	for _, id := range ids {
		if st, ok := s.stakes[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, cloneStake(st))
		}
	}
	for _, pid := range poolIDs {
		for _, st := range s.stakes {
			if st.StakePoolID == pid && !seen[st.ID] {
				seen[st.ID] = true
				out = append(out, cloneStake(st))
			}
		}
	}
	return out, nil
}

func (s *MemStore) Whitelists(ctx context.Context, ids []string) ([]*model.StakePoolWhitelist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.StakePoolWhitelist
	for _, id := range ids {
		if w, ok := s.whitelists[id]; ok {
			out = append(out, cloneWhitelist(w))
		}
	}
	return out, nil
}

func (s *MemStore) ApplyChanges(ctx context.Context, cs *model.ChangeSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range cs.Accounts {
		s.accounts[a.ID] = cloneAccount(a)
	}
	for _, p := range cs.StakePools {
		s.pools[p.ID] = clonePool(p)
	}
	for _, m := range cs.Miners {
		s.miners[m.ID] = cloneMiner(m)
	}
	for _, w := range cs.Workers {
		s.workers[w.ID] = cloneWorker(w)
	}
	for _, st := range cs.Stakes {
		s.stakes[st.ID] = cloneStake(st)
	}
	for _, w := range cs.WhitelistAdds {
		s.whitelists[w.ID] = cloneWhitelist(w)
	}
	for _, id := range cs.WhitelistRemovals {
		delete(s.whitelists, id)
	}
	if cs.GlobalState != nil {
		c := *cs.GlobalState
		s.global = &c
	}
	if cs.TokenomicParameters != nil {
		c := *cs.TokenomicParameters
		s.params = &c
	}
	return nil
}

func (s *MemStore) SeedSnapshot(ctx context.Context, seed *model.SnapshotSeed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range seed.Accounts {
		s.accounts[a.ID] = cloneAccount(a)
	}
	for _, p := range seed.StakePools {
		s.pools[p.ID] = clonePool(p)
	}
	for _, w := range seed.Workers {
		s.workers[w.ID] = cloneWorker(w)
	}
	for _, m := range seed.Miners {
		s.miners[m.ID] = cloneMiner(m)
	}
	for _, st := range seed.Stakes {
		s.stakes[st.ID] = cloneStake(st)
	}
	for _, w := range seed.Whitelists {
		s.whitelists[w.ID] = cloneWhitelist(w)
	}
	g := *seed.GlobalState
	s.global = &g
	p := *seed.TokenomicParameters
	s.params = &p
	return nil
}

func (s *MemStore) SaveGlobalState(ctx context.Context, gs *model.GlobalState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *gs
	s.global = &c
	return nil
}

var _ model.Store = (*MemStore)(nil)
