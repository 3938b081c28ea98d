package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StakePoolStake is one delegator's position in one pool, keyed by the
// combined (pool id, account id). Created on first contribution and never
// deleted; amount and shares may fall back to zero.
type StakePoolStake struct {
	tableName struct{} `pg:"stake_pool_stakes"` //nolint:structcheck,unused

	ID          string          `pg:",pk,notnull"`
	StakePoolID string          `pg:",notnull"`
	AccountID   string          `pg:",notnull"`
	Amount      decimal.Decimal `pg:"type:numeric,notnull,use_zero"`
	Shares      decimal.Decimal `pg:"type:numeric,notnull,use_zero"`
	// Rewards accrued and not yet withdrawn.
	Reward decimal.Decimal `pg:"type:numeric,notnull,use_zero"`
	// Pending withdrawal; replaced wholesale when a new one is queued.
	WithdrawalAmount    decimal.Decimal `pg:"type:numeric,notnull,use_zero"`
	WithdrawalShares    decimal.Decimal `pg:"type:numeric,notnull,use_zero"`
	WithdrawalStartTime *time.Time
}

func NewStakePoolStake(stakePoolID, accountID string) *StakePoolStake {
	return &StakePoolStake{
		ID:               CombineIDs(stakePoolID, accountID),
		StakePoolID:      stakePoolID,
		AccountID:        accountID,
		Amount:           decimal.Zero,
		Shares:           decimal.Zero,
		Reward:           decimal.Zero,
		WithdrawalAmount: decimal.Zero,
		WithdrawalShares: decimal.Zero,
	}
}
