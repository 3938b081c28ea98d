package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MinerState is the lifecycle state of a mining slot.
type MinerState string

const (
	MinerStateReady              MinerState = "Ready"
	MinerStateMiningIdle         MinerState = "MiningIdle"
	MinerStateMiningActive       MinerState = "MiningActive"
	MinerStateMiningUnresponsive MinerState = "MiningUnresponsive"
	MinerStateMiningCoolingDown  MinerState = "MiningCoolingDown"
)

// Miner is the logical mining slot owned by an account, bound to at most
// one worker and one stake pool.
type Miner struct {
	tableName struct{} `pg:"miners"` //nolint:structcheck,unused

	// Owning account of the mining slot.
	ID          string `pg:",pk,notnull"`
	IsBound     bool   `pg:",notnull,use_zero"`
	StakePoolID *string
	WorkerID    *string
	// Committed capital.
	Stake decimal.Decimal `pg:"type:numeric,notnull,use_zero"`
	State MinerState      `pg:"type:text,notnull"`
	// Accrual variable and its historical baseline.
	V  decimal.Decimal `pg:"type:numeric,notnull,use_zero"`
	Ve decimal.Decimal `pg:"type:numeric,notnull,use_zero"`
	// Benchmark scores: initial and instantaneous.
	PInit                int             `pg:",notnull,use_zero"`
	PInstant             int             `pg:",notnull,use_zero"`
	TotalReward          decimal.Decimal `pg:"type:numeric,notnull,use_zero"`
	CoolingDownStartTime *time.Time
}

func NewMiner(id string) *Miner {
	return &Miner{
		ID:          id,
		State:       MinerStateReady,
		Stake:       decimal.Zero,
		V:           decimal.Zero,
		Ve:          decimal.Zero,
		TotalReward: decimal.Zero,
	}
}
