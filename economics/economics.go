// Package economics holds the closed-form tokenomic formulas: worker score
// bounds, worker share and the pool APR base. All of them are pure
// functions of entity fields and the live tokenomic parameters.
package economics

import (
	"github.com/shopspring/decimal"
	"golang.org/x/xerrors"

	"github.com/phala-network/computation-indexer/model"
	"github.com/phala-network/computation-indexer/numeric"
)

var (
	one       = decimal.NewFromInt(1)
	two       = decimal.NewFromInt(2)
	pointGone = decimal.RequireFromString("0.3")

	confidenceScores = map[int]decimal.Decimal{
		1: one,
		2: one,
		3: one,
		4: decimal.RequireFromString("0.8"),
		5: decimal.RequireFromString("0.7"),
	}
)

// ConfidenceScore maps a worker confidence level (1..5) to the score used
// to scale bounds and share.
func ConfidenceScore(level int) (decimal.Decimal, error) {
	score, ok := confidenceScores[level]
	if !ok {
		return decimal.Zero, xerrors.Errorf("confidence level %d out of range", level)
	}
	return score, nil
}

// UpdateWorkerBounds recomputes a worker's sMin/sMax from its initial score
// and confidence level under the given tokenomic parameters. Bounds stay
// unset while the initial score is unknown.
//
//	sMin = k * sqrt(initialScore)
//	sMax = vMax / ((re - 1) * confidenceScore + 1) - initialScore * 0.3 / phaRate
//
// Both rounded half-up at 12 fractional digits.
func UpdateWorkerBounds(w *model.Worker, p *model.TokenomicParameters) error {
	if w.InitialScore == nil {
		return nil
	}
	score := decimal.NewFromInt(int64(*w.InitialScore))
	confidence, err := ConfidenceScore(w.ConfidenceLevel)
	if err != nil {
		return err
	}
	sMin := p.K.Mul(numeric.Sqrt(score)).Round(numeric.RoundDigits)
	sMax := p.VMax.
		DivRound(p.Re.Sub(one).Mul(confidence).Add(one), 2*numeric.RoundDigits).
		Sub(score.Mul(pointGone).DivRound(p.PhaRate, 2*numeric.RoundDigits)).
		Round(numeric.RoundDigits)
	w.SMin = &sMin
	w.SMax = &sMax
	return nil
}

// WorkerShare computes share = sqrt(v^2 + (2 * pInstant * confidenceScore)^2).
func WorkerShare(v decimal.Decimal, pInstant, confidenceLevel int) (decimal.Decimal, error) {
	confidence, err := ConfidenceScore(confidenceLevel)
	if err != nil {
		return decimal.Zero, err
	}
	p := two.Mul(decimal.NewFromInt(int64(pInstant))).Mul(confidence)
	return numeric.Sqrt(v.Mul(v).Add(p.Mul(p))), nil
}

// UpdateWorkerShare recomputes the worker's share from its bound miner's
// accrual variable and instantaneous benchmark.
func UpdateWorkerShare(w *model.Worker, m *model.Miner) error {
	share, err := WorkerShare(m.V, m.PInstant, w.ConfidenceLevel)
	if err != nil {
		return err
	}
	w.Share = &share
	return nil
}

// RefreshAPR recomputes the pool's APR base:
// miningWorkerShare * (1 - commission) / totalStake, or zero while the pool
// holds no stake.
func RefreshAPR(pool *model.StakePool) {
	if pool.TotalStake.Sign() <= 0 {
		pool.AprBase = decimal.Zero
		return
	}
	pool.AprBase = pool.MiningWorkerShare.
		Mul(one.Sub(pool.Commission)).
		DivRound(pool.TotalStake, numeric.RoundDigits)
}
