package eval

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/delaycast/internal/metrics"
)

func sampleReport() *Report {
	return &Report{
		RunID:     "run-1",
		StartYear: 2021,
		EndYear:   2022,
		Folds: []FoldResult{
			{
				TestYear: 2021, TrainSize: 1200, TestSize: 400,
				Baseline:     metrics.Summary{Brier: 0.24, AUC: 0.61, ECE: 0.12},
				Hierarchical: metrics.Summary{Brier: 0.10, AUC: 0.72, ECE: 0.05},
				Winner:       WinnerHierarchical,
			},
			{
				TestYear: 2022, TrainSize: 1600, TestSize: 450,
				Baseline:     metrics.Summary{Brier: 0.22, AUC: 0.60, ECE: 0.11},
				Hierarchical: SentinelSummary(),
				Winner:       WinnerBaseline,
				Degraded:     true,
			},
		},
		PlannedFolds: 2,
		Baseline:     ModelAggregate{MeanBrier: 0.23, MeanAUC: 0.605, MeanECE: 0.115},
		Hierarchical: ModelAggregate{MeanBrier: 0.175, MeanAUC: 0.61, MeanECE: 0.15},
		HierWins:     1,
		WinRate:      0.5,
		Verdict:      "FAIL",
	}
}

func TestReportWriteJSONRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleReport().WriteJSON(&buf))

	var decoded Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Len(t, decoded.Folds, 2)
	assert.Equal(t, "FAIL", decoded.Verdict)
	assert.True(t, decoded.Folds[1].Degraded)
}

func TestReportWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleReport().WriteYAML(&buf))
	assert.Contains(t, buf.String(), "verdict: FAIL")
	assert.Contains(t, buf.String(), "degraded: true")
}

func TestReportWriteTableDistinguishesDegraded(t *testing.T) {
	var buf bytes.Buffer
	sampleReport().WriteTable(&buf)

	out := buf.String()
	assert.Contains(t, out, "degraded")
	assert.Contains(t, out, "Verdict: FAIL")
	assert.Contains(t, out, "1/2")
}

func TestReportPassed(t *testing.T) {
	r := sampleReport()
	assert.False(t, r.Passed())

	r.Verdict = "PASS"
	assert.True(t, r.Passed())

	r.Partial = true
	assert.False(t, r.Passed(), "partial runs never pass the gate")
}

func TestSentinelSummary(t *testing.T) {
	s := SentinelSummary()
	assert.Equal(t, 0.25, s.Brier)
	assert.Equal(t, 0.5, s.AUC)
}
