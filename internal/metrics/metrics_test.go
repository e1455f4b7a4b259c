package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBrierPerfectPredictor(t *testing.T) {
	preds := []float64{1, 0, 1, 0}
	outcomes := []bool{true, false, true, false}
	assert.Equal(t, 0.0, Brier(preds, outcomes))
}

func TestBrierConstantHalfBalanced(t *testing.T) {
	preds := []float64{0.5, 0.5, 0.5, 0.5}
	outcomes := []bool{true, false, true, false}
	assert.InDelta(t, 0.25, Brier(preds, outcomes), 1e-12)
}

func TestLogLossFiniteAtExtremes(t *testing.T) {
	// Confidently wrong predictions are heavily but finitely penalized.
	ll := LogLoss([]float64{0, 1}, []bool{true, false})
	assert.False(t, math.IsInf(ll, 1))
	assert.Greater(t, ll, 10.0)

	good := LogLoss([]float64{0.9, 0.1}, []bool{true, false})
	assert.InDelta(t, -math.Log(0.9), good, 1e-9)
}

func TestAUCConstantPredictor(t *testing.T) {
	preds := []float64{0.4, 0.4, 0.4, 0.4}
	outcomes := []bool{true, false, true, false}
	assert.Equal(t, 0.5, AUC(preds, outcomes))
}

func TestAUCSingleClass(t *testing.T) {
	assert.Equal(t, 0.5, AUC([]float64{0.2, 0.8}, []bool{true, true}))
	assert.Equal(t, 0.5, AUC([]float64{0.2, 0.8}, []bool{false, false}))
}

func TestAUCPerfectRanking(t *testing.T) {
	preds := []float64{0.9, 0.8, 0.2, 0.1}
	outcomes := []bool{true, true, false, false}
	assert.Equal(t, 1.0, AUC(preds, outcomes))

	reversed := []bool{false, false, true, true}
	assert.Equal(t, 0.0, AUC(preds, reversed))
}

func TestAUCWithTies(t *testing.T) {
	// One tie straddling the classes contributes half a pair.
	preds := []float64{0.9, 0.5, 0.5, 0.1}
	outcomes := []bool{true, true, false, false}
	// Pairs: (0.9 vs 0.5)=1, (0.9 vs 0.1)=1, (0.5 vs 0.5)=0.5, (0.5 vs 0.1)=1
	assert.InDelta(t, 3.5/4, AUC(preds, outcomes), 1e-12)
}

func TestECEPerfectlyCalibrated(t *testing.T) {
	// In the [0.2,0.3) bin, 1 of 4 outcomes positive matches mean prediction
	// 0.25; in [0.7,0.8), 3 of 4 match 0.75.
	preds := []float64{0.25, 0.25, 0.25, 0.25, 0.75, 0.75, 0.75, 0.75}
	outcomes := []bool{true, false, false, false, true, true, true, false}
	assert.InDelta(t, 0.0, ECE(preds, outcomes), 1e-12)
}

func TestECEMiscalibrated(t *testing.T) {
	// Constant 0.9 predictions with a 50% base rate: gap 0.4, full weight.
	preds := []float64{0.9, 0.9, 0.9, 0.9}
	outcomes := []bool{true, false, true, false}
	assert.InDelta(t, 0.4, ECE(preds, outcomes), 1e-12)
}

func TestECEBoundaryBinning(t *testing.T) {
	// p=1.0 lands in the top bin rather than out of range.
	assert.InDelta(t, 0.0, ECE([]float64{1.0}, []bool{true}), 1e-12)
}

func TestEmptyInputReturnsNoData(t *testing.T) {
	assert.Equal(t, NoData, Brier(nil, nil))
	assert.Equal(t, NoData, LogLoss(nil, nil))
	assert.Equal(t, NoData, AUC(nil, nil))
	assert.Equal(t, NoData, ECE(nil, nil))

	s := Evaluate(nil, nil)
	assert.Equal(t, NoData, s.Brier)
	assert.Equal(t, NoData, s.AUC)
}

func TestMismatchedLengthsReturnNoData(t *testing.T) {
	assert.Equal(t, NoData, Brier([]float64{0.5}, []bool{true, false}))
}
