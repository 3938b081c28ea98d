package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SingletonID keys the two singleton rows.
const SingletonID = "0"

// GlobalState is the singleton row carrying chain-wide progress and
// aggregates. Created once at bootstrap and updated in place thereafter.
type GlobalState struct {
	tableName struct{} `pg:"global_states"` //nolint:structcheck,unused

	ID string `pg:",pk,notnull"`
	// Last processed block height.
	Height int64 `pg:",notnull,use_zero"`
	// Sum of totalStake over all pools.
	TotalStake decimal.Decimal `pg:"type:numeric,notnull,use_zero"`
	// Sum of share over all actively mining workers.
	MiningWorkerShare decimal.Decimal `pg:"type:numeric,notnull,use_zero"`
	// Rolling average block time in milliseconds, recomputed once at least
	// 100 blocks elapsed since the last recording.
	AverageBlockTime        int64     `pg:",notnull,use_zero"`
	LastRecordedBlockHeight int64     `pg:",notnull,use_zero"`
	LastRecordedBlockTime   time.Time `pg:",notnull"`
}

// TokenomicParameters is the singleton row of live protocol parameters
// feeding the score-bound and share formulas. It is replaced wholesale from
// the authoritative on-chain value whenever the chain signals a change.
type TokenomicParameters struct {
	tableName struct{} `pg:"tokenomic_parameters"` //nolint:structcheck,unused

	ID             string          `pg:",pk,notnull"`
	PhaRate        decimal.Decimal `pg:"type:numeric,notnull,use_zero"`
	BudgetPerBlock decimal.Decimal `pg:"type:numeric,notnull,use_zero"`
	VMax           decimal.Decimal `pg:"type:numeric,notnull,use_zero"`
	TreasuryRatio  decimal.Decimal `pg:"type:numeric,notnull,use_zero"`
	Re             decimal.Decimal `pg:"type:numeric,notnull,use_zero"`
	K              decimal.Decimal `pg:"type:numeric,notnull,use_zero"`
}
