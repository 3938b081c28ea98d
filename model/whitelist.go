package model

import "time"

// StakePoolWhitelist records one account allowed to stake in a restricted
// pool. Rows are inserted when a staker is whitelisted and deleted when
// removed; CreateTime preserves insertion order.
type StakePoolWhitelist struct {
	tableName struct{} `pg:"stake_pool_whitelists"` //nolint:structcheck,unused

	ID          string    `pg:",pk,notnull"`
	StakePoolID string    `pg:",notnull"`
	AccountID   string    `pg:",notnull"`
	CreateTime  time.Time `pg:",notnull"`
}

func NewStakePoolWhitelist(stakePoolID, accountID string, createTime time.Time) *StakePoolWhitelist {
	return &StakePoolWhitelist{
		ID:          CombineIDs(stakePoolID, accountID),
		StakePoolID: stakePoolID,
		AccountID:   accountID,
		CreateTime:  createTime,
	}
}
