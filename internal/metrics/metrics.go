// Package metrics computes calibration and discrimination metrics over
// (predicted probability, binary outcome) pairs. All functions are pure,
// accept empty input, and return NoData instead of failing, so small or
// degenerate validation folds never abort a run.
package metrics

import (
	"math"
	"sort"
)

// NoData is returned when a metric is undefined for the given input (empty
// slices or mismatched lengths). All defined metric values are non-negative,
// so -1 is unambiguous.
const NoData = -1.0

// logLossEps bounds probabilities away from 0 and 1 before taking logs.
const logLossEps = 1e-15

// eceBins is the number of equal-width probability bins for ECE.
const eceBins = 10

// Summary bundles the four metrics for one prediction set.
type Summary struct {
	Brier   float64 `json:"brier" yaml:"brier"`
	LogLoss float64 `json:"log_loss" yaml:"log_loss"`
	AUC     float64 `json:"auc" yaml:"auc"`
	ECE     float64 `json:"ece" yaml:"ece"`
}

// Evaluate computes all four metrics at once.
func Evaluate(preds []float64, outcomes []bool) Summary {
	return Summary{
		Brier:   Brier(preds, outcomes),
		LogLoss: LogLoss(preds, outcomes),
		AUC:     AUC(preds, outcomes),
		ECE:     ECE(preds, outcomes),
	}
}

func defined(preds []float64, outcomes []bool) bool {
	return len(preds) > 0 && len(preds) == len(outcomes)
}

func outcomeValue(late bool) float64 {
	if late {
		return 1
	}
	return 0
}

// Brier is the mean squared error between predicted probabilities and
// outcomes. 0 is perfect, 0.25 is the score of a constant 0.5 predictor on
// balanced outcomes.
func Brier(preds []float64, outcomes []bool) float64 {
	if !defined(preds, outcomes) {
		return NoData
	}
	sum := 0.0
	for i, p := range preds {
		d := p - outcomeValue(outcomes[i])
		sum += d * d
	}
	return sum / float64(len(preds))
}

// LogLoss is the mean negative log likelihood. Probabilities are clipped
// away from 0 and 1 first, so a confidently wrong prediction is penalized
// heavily but never infinitely.
func LogLoss(preds []float64, outcomes []bool) float64 {
	if !defined(preds, outcomes) {
		return NoData
	}
	sum := 0.0
	for i, p := range preds {
		p = math.Min(math.Max(p, logLossEps), 1-logLossEps)
		if outcomes[i] {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(len(preds))
}

// AUC is the rank-based area under the ROC curve (Mann-Whitney U with
// average ranks for ties). When all outcomes are identical no discrimination
// is possible and AUC is defined as 0.5 rather than an error.
func AUC(preds []float64, outcomes []bool) float64 {
	if !defined(preds, outcomes) {
		return NoData
	}

	nPos := 0
	for _, late := range outcomes {
		if late {
			nPos++
		}
	}
	nNeg := len(outcomes) - nPos
	if nPos == 0 || nNeg == 0 {
		return 0.5
	}

	idx := make([]int, len(preds))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return preds[idx[a]] < preds[idx[b]] })

	// Average ranks across tied predictions, then sum positive-class ranks.
	ranks := make([]float64, len(preds))
	for i := 0; i < len(idx); {
		j := i
		for j < len(idx) && preds[idx[j]] == preds[idx[i]] {
			j++
		}
		avg := float64(i+j+1) / 2 // ranks are 1-based: mean of i+1..j
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		i = j
	}

	posRankSum := 0.0
	for i, late := range outcomes {
		if late {
			posRankSum += ranks[i]
		}
	}

	u := posRankSum - float64(nPos)*float64(nPos+1)/2
	return u / (float64(nPos) * float64(nNeg))
}

// ECE is the Expected Calibration Error over 10 equal-width probability bins
// [0,0.1) .. [0.9,1.0]: the population-weighted sum of |mean predicted -
// observed frequency| per non-empty bin. Empty bins contribute zero.
func ECE(preds []float64, outcomes []bool) float64 {
	if !defined(preds, outcomes) {
		return NoData
	}

	var binCount [eceBins]int
	var binPredSum [eceBins]float64
	var binPosCount [eceBins]int

	for i, p := range preds {
		b := int(p * eceBins)
		if b >= eceBins {
			b = eceBins - 1
		}
		if b < 0 {
			b = 0
		}
		binCount[b]++
		binPredSum[b] += p
		if outcomes[i] {
			binPosCount[b]++
		}
	}

	total := float64(len(preds))
	ece := 0.0
	for b := 0; b < eceBins; b++ {
		if binCount[b] == 0 {
			continue
		}
		meanPred := binPredSum[b] / float64(binCount[b])
		meanObs := float64(binPosCount[b]) / float64(binCount[b])
		ece += math.Abs(meanPred-meanObs) * float64(binCount[b]) / total
	}
	return ece
}
