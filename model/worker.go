package model

import "github.com/shopspring/decimal"

// Worker is a physical mining unit identified by its public key. At most
// one stake pool and one miner reference it at a time; the miner binding is
// mirrored by Miner.WorkerID.
type Worker struct {
	tableName struct{} `pg:"workers"` //nolint:structcheck,unused

	// Hex-encoded public key.
	ID string `pg:",pk,notnull"`
	// Pool the worker currently belongs to.
	StakePoolID *string
	// Miner slot the worker is currently bound to.
	MinerID *string
	// Trustworthiness rating, 1..5.
	ConfidenceLevel int `pg:",notnull,use_zero"`
	// Benchmark score recorded at registration; bounds stay unset until it
	// is known.
	InitialScore *int
	SMin         *decimal.Decimal `pg:"type:numeric"`
	SMax         *decimal.Decimal `pg:"type:numeric"`
	// Weighted contribution to pool rewards, derived from the bound
	// miner's accrual variable and instantaneous benchmark.
	Share *decimal.Decimal `pg:"type:numeric"`
}

func NewWorker(id string, confidenceLevel int) *Worker {
	return &Worker{ID: id, ConfidenceLevel: confidenceLevel}
}
