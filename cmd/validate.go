package main

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/delaycast/internal/eval"
	"github.com/sells-group/delaycast/internal/hier"
	"github.com/sells-group/delaycast/internal/monitoring"
	"github.com/sells-group/delaycast/internal/weather"
)

var (
	validateStartYear int
	validateEndYear   int
	validateDB        string
	validateFormat    string
	validateParallel  int
	validateTimeout   time.Duration
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run walk-forward validation of the online model against the hierarchical model",
	Long:  "Builds expanding-window folds over the requested test years, scores both models per fold, and exits non-zero unless the acceptance criteria hold.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, validateDB)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		timeout := validateTimeout
		if timeout == 0 {
			timeout = cfg.ValidationTimeout()
		}
		parallel := validateParallel
		if parallel == 0 {
			parallel = cfg.Validation.Parallel
		}

		trainer := hier.NewPooledLogit(weather.NewAdjuster(weather.StrategyAdditive, cfg.WeatherSettings()))

		validator, err := eval.New(eval.Config{
			StartYear:    validateStartYear,
			EndYear:      validateEndYear,
			EarliestYear: cfg.Validation.EarliestYear,
			ThresholdMin: cfg.Validation.ThresholdMin,
			Prior:        cfg.BasePrior(),
			MaxParallel:  parallel,
			Timeout:      timeout,
		}, st, trainer)
		if err != nil {
			return err
		}

		report, err := validator.Run(ctx)
		if err != nil {
			return err
		}
		for _, fold := range report.Folds {
			monitoring.FoldsEvaluated.WithLabelValues(fold.Winner).Inc()
		}

		switch validateFormat {
		case "json":
			if err := report.WriteJSON(os.Stdout); err != nil {
				return eris.Wrap(err, "write report")
			}
		case "yaml":
			if err := report.WriteYAML(os.Stdout); err != nil {
				return eris.Wrap(err, "write report")
			}
		default:
			report.WriteTable(os.Stdout)
		}

		if !report.Passed() {
			zap.L().Warn("validation gate failed",
				zap.String("verdict", report.Verdict),
				zap.Bool("partial", report.Partial),
				zap.Float64("hier_mean_brier", report.Hierarchical.MeanBrier),
				zap.Float64("win_rate", report.WinRate))
			cmd.SilenceUsage = true
			return eris.Errorf("validation verdict %s", report.Verdict)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().IntVar(&validateStartYear, "start-year", 0, "first test year (required)")
	validateCmd.Flags().IntVar(&validateEndYear, "end-year", 0, "last test year (required)")
	validateCmd.Flags().StringVar(&validateDB, "db", "", "sqlite database path (overrides config)")
	validateCmd.Flags().StringVar(&validateFormat, "format", "table", "report format: table, json, yaml")
	validateCmd.Flags().IntVar(&validateParallel, "parallel", 0, "max folds scored concurrently (default from config)")
	validateCmd.Flags().DurationVar(&validateTimeout, "timeout", 0, "run deadline, e.g. 10m (default from config)")
	_ = validateCmd.MarkFlagRequired("start-year")
	_ = validateCmd.MarkFlagRequired("end-year")
	rootCmd.AddCommand(validateCmd)
}
