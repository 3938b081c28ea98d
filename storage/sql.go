// Package storage provides the persistence backends for the aggregate
// entity model: a PostgreSQL database used in production and an in-memory
// store used by engine tests.
package storage

import (
	"context"
	"strings"

	"github.com/go-pg/pg/v10"
	"github.com/go-pg/pg/v10/orm"
	logging "github.com/ipfs/go-log/v2"
	"go.opencensus.io/tag"
	"golang.org/x/xerrors"

	"github.com/phala-network/computation-indexer/metrics"
	"github.com/phala-network/computation-indexer/model"
)

var log = logging.Logger("storage")

var tables = []interface{}{
	(*model.Account)(nil),
	(*model.StakePool)(nil),
	(*model.Worker)(nil),
	(*model.Miner)(nil),
	(*model.StakePoolStake)(nil),
	(*model.StakePoolWhitelist)(nil),
	(*model.GlobalState)(nil),
	(*model.TokenomicParameters)(nil),
}

// NewDatabase connects to PostgreSQL and verifies the connection.
func NewDatabase(ctx context.Context, url string, poolSize int) (*Database, error) {
	opt, err := pg.ParseURL(url)
	if err != nil {
		return nil, xerrors.Errorf("parse database URL: %w", err)
	}
	if poolSize > 0 {
		opt.PoolSize = poolSize
	}
	db := pg.Connect(opt)
	if err := db.Ping(ctx); err != nil {
		return nil, xerrors.Errorf("ping database: %w", err)
	}
	return &Database{DB: db}, nil
}

type Database struct {
	DB *pg.DB
}

// CreateSchema creates any missing entity tables.
func (d *Database) CreateSchema(ctx context.Context) error {
	for _, table := range tables {
		if err := d.DB.ModelContext(ctx, table).CreateTable(&orm.CreateTableOptions{
			IfNotExists: true,
		}); err != nil {
			return xerrors.Errorf("creating table: %w", err)
		}
	}
	return nil
}

func (d *Database) Close() error {
	return d.DB.Close()
}

func (d *Database) GlobalState(ctx context.Context) (*model.GlobalState, error) {
	gs := &model.GlobalState{ID: model.SingletonID}
	if err := d.DB.ModelContext(ctx, gs).WherePK().Select(); err != nil {
		if err == pg.ErrNoRows {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return gs, nil
}

func (d *Database) TokenomicParameters(ctx context.Context) (*model.TokenomicParameters, error) {
	tp := &model.TokenomicParameters{ID: model.SingletonID}
	if err := d.DB.ModelContext(ctx, tp).WherePK().Select(); err != nil {
		if err == pg.ErrNoRows {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return tp, nil
}

func (d *Database) Accounts(ctx context.Context) ([]*model.Account, error) {
	var accounts []*model.Account
	if err := d.DB.ModelContext(ctx, &accounts).Select(); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (d *Database) StakePools(ctx context.Context, ids []string) ([]*model.StakePool, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var pools []*model.StakePool
	if err := d.DB.ModelContext(ctx, &pools).Where("id IN (?)", pg.In(ids)).Select(); err != nil {
		return nil, err
	}
	return pools, nil
}

func (d *Database) Workers(ctx context.Context, ids, minerIDs []string) ([]*model.Worker, error) {
	if len(ids) == 0 && len(minerIDs) == 0 {
		return nil, nil
	}
	var workers []*model.Worker
	q := d.DB.ModelContext(ctx, &workers)
	q = q.WhereGroup(func(q *orm.Query) (*orm.Query, error) {
		if len(ids) > 0 {
			q = q.WhereOr("id IN (?)", pg.In(ids))
		}
		if len(minerIDs) > 0 {
			q = q.WhereOr("miner_id IN (?)", pg.In(minerIDs))
		}
		return q, nil
	})
	if err := q.Select(); err != nil {
		return nil, err
	}
	return workers, nil
}

func (d *Database) Miners(ctx context.Context, ids, workerIDs []string) ([]*model.Miner, error) {
	if len(ids) == 0 && len(workerIDs) == 0 {
		return nil, nil
	}
	var miners []*model.Miner
	q := d.DB.ModelContext(ctx, &miners)
	q = q.WhereGroup(func(q *orm.Query) (*orm.Query, error) {
		if len(ids) > 0 {
			q = q.WhereOr("id IN (?)", pg.In(ids))
		}
		if len(workerIDs) > 0 {
			q = q.WhereOr("worker_id IN (?)", pg.In(workerIDs))
		}
		return q, nil
	})
	if err := q.Select(); err != nil {
		return nil, err
	}
	return miners, nil
}

func (d *Database) Stakes(ctx context.Context, ids, poolIDs []string) ([]*model.StakePoolStake, error) {
	if len(ids) == 0 && len(poolIDs) == 0 {
		return nil, nil
	}
	var stakes []*model.StakePoolStake
	q := d.DB.ModelContext(ctx, &stakes)
	q = q.WhereGroup(func(q *orm.Query) (*orm.Query, error) {
		if len(ids) > 0 {
			q = q.WhereOr("id IN (?)", pg.In(ids))
		}
		if len(poolIDs) > 0 {
			q = q.WhereOr("stake_pool_id IN (?)", pg.In(poolIDs))
		}
		return q, nil
	})
	if err := q.Select(); err != nil {
		return nil, err
	}
	return stakes, nil
}

func (d *Database) Whitelists(ctx context.Context, ids []string) ([]*model.StakePoolWhitelist, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []*model.StakePoolWhitelist
	if err := d.DB.ModelContext(ctx, &rows).Where("id IN (?)", pg.In(ids)).Select(); err != nil {
		return nil, err
	}
	return rows, nil
}

// upsert inserts rows, overwriting the named columns on primary key
// conflict.
func upsert(ctx context.Context, tx *pg.Tx, table string, rows interface{}, count int, columns ...string) error {
	if count == 0 {
		return nil
	}
	ctx, _ = tag.New(ctx, tag.Upsert(metrics.Table, table))
	metrics.RecordCount(ctx, metrics.PersistModel, count)
	assignments := make([]string, len(columns))
	for i, c := range columns {
		assignments[i] = c + " = EXCLUDED." + c
	}
	if _, err := tx.ModelContext(ctx, rows).
		OnConflict("(id) DO UPDATE").
		Set(strings.Join(assignments, ", ")).
		Insert(); err != nil {
		return xerrors.Errorf("persisting %s: %w", table, err)
	}
	return nil
}

var (
	accountColumns = []string{"total_stake", "total_stake_reward", "total_owner_reward", "identity_display", "identity_level"}
	poolColumns    = []string{"pid", "owner_id", "commission", "capacity", "delegable", "free_stake", "releasing_stake", "total_stake", "total_shares", "owner_reward", "total_withdrawal", "active_stake_count", "worker_count", "mining_worker_count", "mining_worker_share", "apr_base", "whitelist_enabled"}
	workerColumns  = []string{"stake_pool_id", "miner_id", "confidence_level", "initial_score", "s_min", "s_max", "share"}
	minerColumns   = []string{"is_bound", "stake_pool_id", "worker_id", "stake", "state", "v", "ve", "p_init", "p_instant", "total_reward", "cooling_down_start_time"}
	stakeColumns   = []string{"stake_pool_id", "account_id", "amount", "shares", "reward", "withdrawal_amount", "withdrawal_shares", "withdrawal_start_time"}
	globalColumns  = []string{"height", "total_stake", "mining_worker_share", "average_block_time", "last_recorded_block_height", "last_recorded_block_time"}
	paramColumns   = []string{"pha_rate", "budget_per_block", "v_max", "treasury_ratio", "re", "k"}
)

// ApplyChanges flushes one batch's change set inside a single transaction.
func (d *Database) ApplyChanges(ctx context.Context, cs *model.ChangeSet) error {
	if cs.Empty() {
		return nil
	}
	stop := metrics.Timer(ctx, metrics.PersistDuration)
	defer stop()
	return d.DB.RunInTransaction(ctx, func(tx *pg.Tx) error {
		if err := upsert(ctx, tx, "accounts", &cs.Accounts, len(cs.Accounts), accountColumns...); err != nil {
			return err
		}
		if err := upsert(ctx, tx, "stake_pools", &cs.StakePools, len(cs.StakePools), poolColumns...); err != nil {
			return err
		}
		if err := upsert(ctx, tx, "miners", &cs.Miners, len(cs.Miners), minerColumns...); err != nil {
			return err
		}
		if err := upsert(ctx, tx, "workers", &cs.Workers, len(cs.Workers), workerColumns...); err != nil {
			return err
		}
		if err := upsert(ctx, tx, "stake_pool_stakes", &cs.Stakes, len(cs.Stakes), stakeColumns...); err != nil {
			return err
		}
		if len(cs.WhitelistAdds) > 0 {
			if _, err := tx.ModelContext(ctx, &cs.WhitelistAdds).Insert(); err != nil {
				return xerrors.Errorf("persisting stake_pool_whitelists: %w", err)
			}
		}
		if len(cs.WhitelistRemovals) > 0 {
			if _, err := tx.ModelContext(ctx, (*model.StakePoolWhitelist)(nil)).
				Where("id IN (?)", pg.In(cs.WhitelistRemovals)).
				Delete(); err != nil {
				return xerrors.Errorf("deleting stake_pool_whitelists: %w", err)
			}
		}
		if cs.GlobalState != nil {
			if err := upsert(ctx, tx, "global_states", cs.GlobalState, 1, globalColumns...); err != nil {
				return err
			}
		}
		if cs.TokenomicParameters != nil {
			if err := upsert(ctx, tx, "tokenomic_parameters", cs.TokenomicParameters, 1, paramColumns...); err != nil {
				return err
			}
		}
		return nil
	})
}

// SeedSnapshot inserts the bootstrap entity graph in one transaction.
func (d *Database) SeedSnapshot(ctx context.Context, seed *model.SnapshotSeed) error {
	log.Infow("seeding snapshot state",
		"accounts", len(seed.Accounts),
		"pools", len(seed.StakePools),
		"workers", len(seed.Workers),
		"miners", len(seed.Miners),
		"stakes", len(seed.Stakes),
		"whitelists", len(seed.Whitelists))
	return d.DB.RunInTransaction(ctx, func(tx *pg.Tx) error {
		for _, rows := range []struct {
			name  string
			rows  interface{}
			count int
		}{
			{"accounts", &seed.Accounts, len(seed.Accounts)},
			{"stake_pools", &seed.StakePools, len(seed.StakePools)},
			{"workers", &seed.Workers, len(seed.Workers)},
			{"stake_pool_stakes", &seed.Stakes, len(seed.Stakes)},
			{"stake_pool_whitelists", &seed.Whitelists, len(seed.Whitelists)},
			{"miners", &seed.Miners, len(seed.Miners)},
		} {
			if rows.count == 0 {
				continue
			}
			if _, err := tx.ModelContext(ctx, rows.rows).Insert(); err != nil {
				return xerrors.Errorf("seeding %s: %w", rows.name, err)
			}
		}
		if _, err := tx.ModelContext(ctx, seed.GlobalState).Insert(); err != nil {
			return xerrors.Errorf("seeding global state: %w", err)
		}
		if err := upsert(ctx, tx, "tokenomic_parameters", seed.TokenomicParameters, 1, paramColumns...); err != nil {
			return err
		}
		return nil
	})
}

// SaveGlobalState updates the singleton row outside of a batch flush.
func (d *Database) SaveGlobalState(ctx context.Context, gs *model.GlobalState) error {
	return d.DB.RunInTransaction(ctx, func(tx *pg.Tx) error {
		return upsert(ctx, tx, "global_states", gs, 1, globalColumns...)
	})
}

var _ model.Store = (*Database)(nil)
