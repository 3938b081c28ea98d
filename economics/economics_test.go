package economics

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phala-network/computation-indexer/model"
)

func d(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return v
}

func testParams(t *testing.T) *model.TokenomicParameters {
	return &model.TokenomicParameters{
		ID:             model.SingletonID,
		PhaRate:        d(t, "1"),
		BudgetPerBlock: d(t, "100"),
		VMax:           d(t, "30000"),
		TreasuryRatio:  d(t, "0.2"),
		Re:             d(t, "1.5"),
		K:              d(t, "50"),
	}
}

func TestConfidenceScore(t *testing.T) {
	for level, want := range map[int]string{1: "1", 2: "1", 3: "1", 4: "0.8", 5: "0.7"} {
		score, err := ConfidenceScore(level)
		require.NoError(t, err)
		assert.True(t, score.Equal(d(t, want)), "level %d", level)
	}
	_, err := ConfidenceScore(0)
	assert.Error(t, err)
	_, err = ConfidenceScore(6)
	assert.Error(t, err)
}

func TestUpdateWorkerBoundsWithoutInitialScore(t *testing.T) {
	w := model.NewWorker("w1", 1)
	require.NoError(t, UpdateWorkerBounds(w, testParams(t)))
	assert.Nil(t, w.SMin)
	assert.Nil(t, w.SMax)
}

func TestUpdateWorkerBounds(t *testing.T) {
	score := 400
	w := model.NewWorker("w1", 1)
	w.InitialScore = &score
	require.NoError(t, UpdateWorkerBounds(w, testParams(t)))

	// sMin = 50 * sqrt(400) = 1000
	require.NotNil(t, w.SMin)
	assert.True(t, w.SMin.Equal(d(t, "1000")), "sMin %s", w.SMin)

	// sMax = 30000 / ((1.5-1)*1+1) - 400*0.3/1 = 20000 - 120 = 19880
	require.NotNil(t, w.SMax)
	assert.True(t, w.SMax.Equal(d(t, "19880")), "sMax %s", w.SMax)
}

func TestUpdateWorkerBoundsConfidenceScaling(t *testing.T) {
	score := 400
	w := model.NewWorker("w1", 5)
	w.InitialScore = &score
	require.NoError(t, UpdateWorkerBounds(w, testParams(t)))

	// sMax = 30000 / ((1.5-1)*0.7+1) - 120 = 30000/1.35 - 120
	want := d(t, "30000").DivRound(d(t, "1.35"), 24).Sub(d(t, "120")).Round(12)
	assert.True(t, w.SMax.Equal(want), "sMax %s want %s", w.SMax, want)
}

func TestWorkerShare(t *testing.T) {
	// sqrt(3^2 + (2*2*1)^2) = sqrt(9+16) = 5
	share, err := WorkerShare(d(t, "3"), 2, 1)
	require.NoError(t, err)
	assert.True(t, share.Equal(d(t, "5")), "share %s", share)

	_, err = WorkerShare(d(t, "3"), 2, 9)
	assert.Error(t, err)
}

func TestUpdateWorkerShareIdempotent(t *testing.T) {
	w := model.NewWorker("w1", 3)
	m := model.NewMiner("m1")
	m.V = d(t, "123.456")
	m.PInstant = 2000
	require.NoError(t, UpdateWorkerShare(w, m))
	first := *w.Share
	require.NoError(t, UpdateWorkerShare(w, m))
	assert.True(t, w.Share.Equal(first))
}

func TestRefreshAPR(t *testing.T) {
	pool := model.NewStakePool("1", 1, "owner")
	pool.MiningWorkerShare = d(t, "500")
	pool.Commission = d(t, "0.1")

	pool.TotalStake = decimal.Zero
	RefreshAPR(pool)
	assert.True(t, pool.AprBase.IsZero())

	pool.TotalStake = d(t, "1000")
	RefreshAPR(pool)
	// 500 * 0.9 / 1000 = 0.45
	assert.True(t, pool.AprBase.Equal(d(t, "0.45")), "aprBase %s", pool.AprBase)
}
