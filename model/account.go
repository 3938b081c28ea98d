package model

import "github.com/shopspring/decimal"

// IdentityLevel is the judgement-derived confidence in an account's
// off-chain identity, populated by the enrichment pass.
type IdentityLevel string

const (
	IdentityLevelUnknown    IdentityLevel = "Unknown"
	IdentityLevelFeePaid    IdentityLevel = "FeePaid"
	IdentityLevelReasonable IdentityLevel = "Reasonable"
	IdentityLevelKnownGood  IdentityLevel = "KnownGood"
	IdentityLevelOutOfDate  IdentityLevel = "OutOfDate"
	IdentityLevelLowQuality IdentityLevel = "LowQuality"
	IdentityLevelErroneous  IdentityLevel = "Erroneous"
)

// Account aggregates per-address stake and reward totals. Accounts are
// created lazily the first time an event references the address and are
// never deleted.
type Account struct {
	tableName struct{} `pg:"accounts"` //nolint:structcheck,unused

	// SS58-encoded address.
	ID string `pg:",pk,notnull"`
	// Sum of this account's stake across all pools.
	TotalStake decimal.Decimal `pg:"type:numeric,notnull,use_zero"`
	// Lifetime staking rewards still attributed to the account.
	TotalStakeReward decimal.Decimal `pg:"type:numeric,notnull,use_zero"`
	// Lifetime pool-owner rewards still attributed to the account.
	TotalOwnerReward decimal.Decimal `pg:"type:numeric,notnull,use_zero"`
	// Display name from the on-chain identity registry, if any.
	IdentityDisplay *string
	// Judgement level from the identity registry.
	IdentityLevel *IdentityLevel `pg:"type:text"`
}

func NewAccount(id string) *Account {
	return &Account{
		ID:               id,
		TotalStake:       decimal.Zero,
		TotalStakeReward: decimal.Zero,
		TotalOwnerReward: decimal.Zero,
	}
}
