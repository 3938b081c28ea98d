package chain

import "github.com/shopspring/decimal"

// EventKind is the pallet-qualified on-chain event name.
type EventKind string

const (
	KindPoolCreated                EventKind = "PhalaStakePool.PoolCreated"
	KindPoolCommissionSet          EventKind = "PhalaStakePool.PoolCommissionSet"
	KindPoolCapacitySet            EventKind = "PhalaStakePool.PoolCapacitySet"
	KindPoolWorkerAdded            EventKind = "PhalaStakePool.PoolWorkerAdded"
	KindPoolWorkerRemoved          EventKind = "PhalaStakePool.PoolWorkerRemoved"
	KindMiningStarted              EventKind = "PhalaStakePool.MiningStarted"
	KindContribution               EventKind = "PhalaStakePool.Contribution"
	KindWithdrawal                 EventKind = "PhalaStakePool.Withdrawal"
	KindWithdrawalQueued           EventKind = "PhalaStakePool.WithdrawalQueued"
	KindRewardReceived             EventKind = "PhalaStakePool.RewardReceived"
	KindRewardsWithdrawn           EventKind = "PhalaStakePool.RewardsWithdrawn"
	KindOwnerRewardsWithdrawn      EventKind = "PhalaStakePool.OwnerRewardsWithdrawn"
	KindStakerRewardsWithdrawn     EventKind = "PhalaStakePool.StakerRewardsWithdrawn"
	KindPoolWhitelistCreated       EventKind = "PhalaStakePool.PoolWhitelistCreated"
	KindPoolWhitelistDeleted       EventKind = "PhalaStakePool.PoolWhitelistDeleted"
	KindPoolWhitelistStakerAdded   EventKind = "PhalaStakePool.PoolWhitelistStakerAdded"
	KindPoolWhitelistStakerRemoved EventKind = "PhalaStakePool.PoolWhitelistStakerRemoved"
	KindMinerBound                 EventKind = "PhalaMining.MinerBound"
	KindMinerUnbound               EventKind = "PhalaMining.MinerUnbound"
	KindMinerSettled               EventKind = "PhalaMining.MinerSettled"
	KindMinerStarted               EventKind = "PhalaMining.MinerStarted"
	KindMinerStopped               EventKind = "PhalaMining.MinerStopped"
	KindBenchmarkUpdated           EventKind = "PhalaMining.BenchmarkUpdated"
	KindMinerEnterUnresponsive     EventKind = "PhalaMining.MinerEnterUnresponsive"
	KindMinerExitUnresponsive      EventKind = "PhalaMining.MinerExitUnresponsive"
	KindMinerReclaimed             EventKind = "PhalaMining.MinerReclaimed"
	KindTokenomicParametersChanged EventKind = "PhalaMining.TokenomicParametersChanged"
	KindWorkerAdded                EventKind = "PhalaRegistry.WorkerAdded"
	KindWorkerUpdated              EventKind = "PhalaRegistry.WorkerUpdated"
	KindInitialScoreSet            EventKind = "PhalaRegistry.InitialScoreSet"
)

// Params is the kind-specific typed parameter set of an event.
type Params interface {
	Kind() EventKind
}

type PoolCreated struct {
	StakePoolID string `json:"stakePoolId"`
	Owner       string `json:"owner"`
}

type PoolCommissionSet struct {
	StakePoolID string `json:"stakePoolId"`
	// Ratio in [0,1]; the chain emits parts-per-million, the decoder
	// divides by 1e6.
	Commission decimal.Decimal `json:"commission"`
}

type PoolCapacitySet struct {
	StakePoolID string          `json:"stakePoolId"`
	Cap         decimal.Decimal `json:"cap"`
}

type PoolWorkerAdded struct {
	StakePoolID string `json:"stakePoolId"`
	WorkerID    string `json:"workerId"`
}

type PoolWorkerRemoved struct {
	StakePoolID string `json:"stakePoolId"`
	WorkerID    string `json:"workerId"`
}

type MiningStarted struct {
	StakePoolID string          `json:"stakePoolId"`
	WorkerID    string          `json:"workerId"`
	Amount      decimal.Decimal `json:"amount"`
}

type Contribution struct {
	StakePoolID string          `json:"stakePoolId"`
	AccountID   string          `json:"accountId"`
	Amount      decimal.Decimal `json:"amount"`
	Shares      decimal.Decimal `json:"shares"`
}

type Withdrawal struct {
	StakePoolID string          `json:"stakePoolId"`
	AccountID   string          `json:"accountId"`
	Amount      decimal.Decimal `json:"amount"`
	Shares      decimal.Decimal `json:"shares"`
}

type WithdrawalQueued struct {
	StakePoolID string          `json:"stakePoolId"`
	AccountID   string          `json:"accountId"`
	Shares      decimal.Decimal `json:"shares"`
}

type RewardReceived struct {
	StakePoolID string          `json:"stakePoolId"`
	ToOwner     decimal.Decimal `json:"toOwner"`
	ToStakers   decimal.Decimal `json:"toStakers"`
}

type RewardsWithdrawn struct {
	StakePoolID string `json:"stakePoolId"`
	AccountID   string `json:"accountId"`
	// Carried by the chain event but not needed by the mutation; the
	// reset semantics come from the entity state.
	Amount decimal.Decimal `json:"amount"`
}

type OwnerRewardsWithdrawn struct {
	StakePoolID string          `json:"stakePoolId"`
	AccountID   string          `json:"accountId"`
	Amount      decimal.Decimal `json:"amount"`
}

type StakerRewardsWithdrawn struct {
	StakePoolID string          `json:"stakePoolId"`
	AccountID   string          `json:"accountId"`
	Amount      decimal.Decimal `json:"amount"`
}

type PoolWhitelistCreated struct {
	StakePoolID string `json:"stakePoolId"`
}

type PoolWhitelistDeleted struct {
	StakePoolID string `json:"stakePoolId"`
}

type PoolWhitelistStakerAdded struct {
	StakePoolID string `json:"stakePoolId"`
	AccountID   string `json:"accountId"`
}

type PoolWhitelistStakerRemoved struct {
	StakePoolID string `json:"stakePoolId"`
	AccountID   string `json:"accountId"`
}

type MinerBound struct {
	MinerID  string `json:"minerId"`
	WorkerID string `json:"workerId"`
}

type MinerUnbound struct {
	MinerID  string `json:"minerId"`
	WorkerID string `json:"workerId"`
}

type MinerSettled struct {
	MinerID string `json:"minerId"`
	// Accrual variable after settlement, de-bitted from Q64.
	V decimal.Decimal `json:"v"`
	// Payout de-bitted from Q64 and rounded at 12 digits by the decoder.
	Payout decimal.Decimal `json:"payout"`
}

type MinerStarted struct {
	MinerID string          `json:"minerId"`
	InitV   decimal.Decimal `json:"initV"`
	InitP   int             `json:"initP"`
}

type MinerStopped struct {
	MinerID string `json:"minerId"`
}

type BenchmarkUpdated struct {
	MinerID  string `json:"minerId"`
	PInstant int    `json:"pInstant"`
}

type MinerEnterUnresponsive struct {
	MinerID string `json:"minerId"`
}

type MinerExitUnresponsive struct {
	MinerID string `json:"minerId"`
}

type MinerReclaimed struct {
	MinerID string `json:"minerId"`
}

// TokenomicParametersChanged signals that the singleton parameter set must
// be re-read from the authoritative source; the event itself carries
// nothing.
type TokenomicParametersChanged struct{}

type WorkerAdded struct {
	WorkerID        string `json:"workerId"`
	ConfidenceLevel int    `json:"confidenceLevel"`
}

type WorkerUpdated struct {
	WorkerID        string `json:"workerId"`
	ConfidenceLevel int    `json:"confidenceLevel"`
}

type InitialScoreSet struct {
	WorkerID     string `json:"workerId"`
	InitialScore int    `json:"initialScore"`
}

func (PoolCreated) Kind() EventKind                { return KindPoolCreated }
func (PoolCommissionSet) Kind() EventKind          { return KindPoolCommissionSet }
func (PoolCapacitySet) Kind() EventKind            { return KindPoolCapacitySet }
func (PoolWorkerAdded) Kind() EventKind            { return KindPoolWorkerAdded }
func (PoolWorkerRemoved) Kind() EventKind          { return KindPoolWorkerRemoved }
func (MiningStarted) Kind() EventKind              { return KindMiningStarted }
func (Contribution) Kind() EventKind               { return KindContribution }
func (Withdrawal) Kind() EventKind                 { return KindWithdrawal }
func (WithdrawalQueued) Kind() EventKind           { return KindWithdrawalQueued }
func (RewardReceived) Kind() EventKind             { return KindRewardReceived }
func (RewardsWithdrawn) Kind() EventKind           { return KindRewardsWithdrawn }
func (OwnerRewardsWithdrawn) Kind() EventKind      { return KindOwnerRewardsWithdrawn }
func (StakerRewardsWithdrawn) Kind() EventKind     { return KindStakerRewardsWithdrawn }
func (PoolWhitelistCreated) Kind() EventKind       { return KindPoolWhitelistCreated }
func (PoolWhitelistDeleted) Kind() EventKind       { return KindPoolWhitelistDeleted }
func (PoolWhitelistStakerAdded) Kind() EventKind   { return KindPoolWhitelistStakerAdded }
func (PoolWhitelistStakerRemoved) Kind() EventKind { return KindPoolWhitelistStakerRemoved }
func (MinerBound) Kind() EventKind                 { return KindMinerBound }
func (MinerUnbound) Kind() EventKind               { return KindMinerUnbound }
func (MinerSettled) Kind() EventKind               { return KindMinerSettled }
func (MinerStarted) Kind() EventKind               { return KindMinerStarted }
func (MinerStopped) Kind() EventKind               { return KindMinerStopped }
func (BenchmarkUpdated) Kind() EventKind           { return KindBenchmarkUpdated }
func (MinerEnterUnresponsive) Kind() EventKind     { return KindMinerEnterUnresponsive }
func (MinerExitUnresponsive) Kind() EventKind      { return KindMinerExitUnresponsive }
func (MinerReclaimed) Kind() EventKind             { return KindMinerReclaimed }
func (TokenomicParametersChanged) Kind() EventKind { return KindTokenomicParametersChanged }
func (WorkerAdded) Kind() EventKind                { return KindWorkerAdded }
func (WorkerUpdated) Kind() EventKind              { return KindWorkerUpdated }
func (InitialScoreSet) Kind() EventKind            { return KindInitialScoreSet }
