package model

import "github.com/shopspring/decimal"

// StakePool is an on-chain staking vault accepting stake from delegators
// and allocating it to workers. Created once per pool-creation event,
// never deleted.
type StakePool struct {
	tableName struct{} `pg:"stake_pools"` //nolint:structcheck,unused

	// String form of the numeric pool id.
	ID string `pg:",pk,notnull"`
	// The numeric pool id itself.
	Pid int64 `pg:",unique,notnull,use_zero"`
	// Owning account, set once at creation.
	OwnerID string `pg:",notnull"`
	// Owner commission as a ratio in [0,1].
	Commission decimal.Decimal `pg:"type:numeric,notnull,use_zero"`
	// Optional cap on total stake.
	Capacity *decimal.Decimal `pg:"type:numeric"`
	// capacity - totalStake + totalWithdrawal while capacity is set.
	Delegable      *decimal.Decimal `pg:"type:numeric"`
	FreeStake      decimal.Decimal  `pg:"type:numeric,notnull,use_zero"`
	ReleasingStake decimal.Decimal  `pg:"type:numeric,notnull,use_zero"`
	TotalStake     decimal.Decimal  `pg:"type:numeric,notnull,use_zero"`
	TotalShares    decimal.Decimal  `pg:"type:numeric,notnull,use_zero"`
	// Commission rewards accrued to the owner and not yet withdrawn.
	OwnerReward decimal.Decimal `pg:"type:numeric,notnull,use_zero"`
	// Aggregate amount queued for withdrawal.
	TotalWithdrawal   decimal.Decimal `pg:"type:numeric,notnull,use_zero"`
	ActiveStakeCount  int             `pg:",notnull,use_zero"`
	WorkerCount       int             `pg:",notnull,use_zero"`
	MiningWorkerCount int             `pg:",notnull,use_zero"`
	// Sum of share over the pool's actively mining workers.
	MiningWorkerShare decimal.Decimal `pg:"type:numeric,notnull,use_zero"`
	// miningWorkerShare * (1 - commission) / totalStake while staked.
	AprBase          decimal.Decimal `pg:"type:numeric,notnull,use_zero"`
	WhitelistEnabled bool            `pg:",notnull,use_zero"`
}

func NewStakePool(id string, pid int64, ownerID string) *StakePool {
	return &StakePool{
		ID:                id,
		Pid:               pid,
		OwnerID:           ownerID,
		Commission:        decimal.Zero,
		FreeStake:         decimal.Zero,
		ReleasingStake:    decimal.Zero,
		TotalStake:        decimal.Zero,
		TotalShares:       decimal.Zero,
		OwnerReward:       decimal.Zero,
		TotalWithdrawal:   decimal.Zero,
		MiningWorkerShare: decimal.Zero,
		AprBase:           decimal.Zero,
	}
}
