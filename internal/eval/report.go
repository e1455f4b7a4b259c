package eval

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/delaycast/internal/metrics"
)

// FoldResult is the scored record of one fold, read-only after creation.
type FoldResult struct {
	ID             string          `json:"id" yaml:"id"`
	TrainStartYear int             `json:"train_start_year" yaml:"train_start_year"`
	TrainEndYear   int             `json:"train_end_year" yaml:"train_end_year"`
	TestYear       int             `json:"test_year" yaml:"test_year"`
	TrainSize      int             `json:"train_size" yaml:"train_size"`
	TestSize       int             `json:"test_size" yaml:"test_size"`
	PendingTest    int             `json:"pending_test" yaml:"pending_test"`
	Baseline       metrics.Summary `json:"baseline" yaml:"baseline"`
	Hierarchical   metrics.Summary `json:"hierarchical" yaml:"hierarchical"`
	Winner         string          `json:"winner" yaml:"winner"`
	Degraded       bool            `json:"degraded" yaml:"degraded"`
}

// ModelAggregate holds per-model means across scored folds. Metrics that
// were NoData in every fold stay NoData here.
type ModelAggregate struct {
	MeanBrier float64 `json:"mean_brier" yaml:"mean_brier"`
	MeanAUC   float64 `json:"mean_auc" yaml:"mean_auc"`
	MeanECE   float64 `json:"mean_ece" yaml:"mean_ece"`
}

// Report is the externally visible result of a validation run: every
// per-fold row plus aggregates and the verdict. Degraded folds are labeled
// so the verdict is never silently inflated by masked failures.
type Report struct {
	RunID     string        `json:"run_id" yaml:"run_id"`
	StartYear int           `json:"start_year" yaml:"start_year"`
	EndYear   int           `json:"end_year" yaml:"end_year"`
	Elapsed   time.Duration `json:"elapsed_ns" yaml:"elapsed_ns"`

	Folds        []FoldResult `json:"folds" yaml:"folds"`
	PlannedFolds int          `json:"planned_folds" yaml:"planned_folds"`

	Baseline     ModelAggregate `json:"baseline" yaml:"baseline"`
	Hierarchical ModelAggregate `json:"hierarchical" yaml:"hierarchical"`

	HierWins       int     `json:"hier_wins" yaml:"hier_wins"`
	WinRate        float64 `json:"win_rate" yaml:"win_rate"`
	DegradedFolds  int     `json:"degraded_folds" yaml:"degraded_folds"`
	SkippedInvalid int     `json:"skipped_invalid_rows" yaml:"skipped_invalid_rows"`

	// Partial is set when a run-level timeout stopped some folds from
	// running; the aggregates then cover completed folds only.
	Partial bool   `json:"partial" yaml:"partial"`
	Verdict string `json:"verdict" yaml:"verdict"`
}

// Passed reports whether the run met the acceptance criteria outright. A
// partial run never passes, regardless of the completed folds.
func (r *Report) Passed() bool {
	return r.Verdict == "PASS" && !r.Partial
}

// aggregate folds completed results into the report and applies the
// acceptance criteria: PASS iff hierarchical mean Brier <= 0.125 and the
// hierarchical model wins at least 80% of folds.
func (v *Validator) aggregate(results []*FoldResult, skippedInvalid int) *Report {
	report := &Report{SkippedInvalid: skippedInvalid}

	for _, r := range results {
		if r == nil {
			report.Partial = true
			continue
		}
		report.Folds = append(report.Folds, *r)
		if r.Winner == WinnerHierarchical {
			report.HierWins++
		}
		if r.Degraded {
			report.DegradedFolds++
		}
	}

	report.Baseline = aggregateModel(report.Folds, func(f FoldResult) metrics.Summary { return f.Baseline })
	report.Hierarchical = aggregateModel(report.Folds, func(f FoldResult) metrics.Summary { return f.Hierarchical })

	if n := len(report.Folds); n > 0 {
		report.WinRate = float64(report.HierWins) / float64(n)
	}

	report.Verdict = "FAIL"
	if len(report.Folds) > 0 &&
		report.Hierarchical.MeanBrier != metrics.NoData &&
		report.Hierarchical.MeanBrier <= AcceptMeanBrier &&
		report.WinRate >= AcceptWinRate {
		report.Verdict = "PASS"
	}
	return report
}

func aggregateModel(folds []FoldResult, pick func(FoldResult) metrics.Summary) ModelAggregate {
	agg := ModelAggregate{MeanBrier: metrics.NoData, MeanAUC: metrics.NoData, MeanECE: metrics.NoData}

	mean := func(get func(metrics.Summary) float64) float64 {
		sum, n := 0.0, 0
		for _, f := range folds {
			if v := get(pick(f)); v != metrics.NoData {
				sum += v
				n++
			}
		}
		if n == 0 {
			return metrics.NoData
		}
		return sum / float64(n)
	}

	agg.MeanBrier = mean(func(s metrics.Summary) float64 { return s.Brier })
	agg.MeanAUC = mean(func(s metrics.Summary) float64 { return s.AUC })
	agg.MeanECE = mean(func(s metrics.Summary) float64 { return s.ECE })
	return agg
}

// WriteJSON renders the machine-readable report.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteYAML renders the report as YAML.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(r)
}

// WriteTable renders the human-readable console report.
func (r *Report) WriteTable(w io.Writer) {
	p := message.NewPrinter(language.English)

	fmt.Fprintln(w, "Walk-forward validation")
	p.Fprintf(w, "Run %s  test years %d-%d  folds %d/%d\n\n",
		r.RunID, r.StartYear, r.EndYear, len(r.Folds), r.PlannedFolds)

	fmt.Fprintf(w, "%-6s %12s %11s %10s %10s %8s %s\n",
		"Year", "Train", "Test", "BaseBrier", "HierBrier", "Winner", "")
	for _, f := range r.Folds {
		note := ""
		if f.Degraded {
			note = "degraded"
		}
		p.Fprintf(w, "%-6d %12d %11d %10.4f %10.4f %8s %s\n",
			f.TestYear, f.TrainSize, f.TestSize,
			f.Baseline.Brier, f.Hierarchical.Brier, f.Winner, note)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Baseline      mean Brier %.4f  AUC %.4f  ECE %.4f\n",
		r.Baseline.MeanBrier, r.Baseline.MeanAUC, r.Baseline.MeanECE)
	fmt.Fprintf(w, "Hierarchical  mean Brier %.4f  AUC %.4f  ECE %.4f\n",
		r.Hierarchical.MeanBrier, r.Hierarchical.MeanAUC, r.Hierarchical.MeanECE)
	fmt.Fprintf(w, "Hierarchical wins %d/%d (%.0f%%), degraded folds %d",
		r.HierWins, len(r.Folds), r.WinRate*100, r.DegradedFolds)
	if r.SkippedInvalid > 0 {
		p.Fprintf(w, ", skipped invalid rows %d", r.SkippedInvalid)
	}
	fmt.Fprintln(w)

	verdict := r.Verdict
	if r.Partial {
		verdict += " (PARTIAL: run deadline reached before all folds completed)"
	}
	fmt.Fprintf(w, "\nVerdict: %s\n", verdict)
}
