package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/delaycast/internal/eval"
	"github.com/sells-group/delaycast/internal/model"
)

var (
	backtestCarrier  string
	backtestOrigin   string
	backtestDest     string
	backtestYear     int
	backtestEarliest int
	backtestDB       string
	backtestFormat   string
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay one route chronologically through a year",
	Long:  "Seeds a Beta prior from earlier years, then predicts each flight before revealing its outcome. Reports Brier and a calibration table.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, backtestDB)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		report, err := eval.RunBacktest(ctx, st, cfg.Adjuster(), cfg.DelayCurve(), eval.BacktestConfig{
			Key: model.RouteKey{
				Carrier: strings.ToUpper(backtestCarrier),
				Origin:  strings.ToUpper(backtestOrigin),
				Dest:    strings.ToUpper(backtestDest),
			},
			Year:         backtestYear,
			EarliestYear: backtestEarliest,
			ThresholdMin: cfg.Validation.ThresholdMin,
		})
		if err != nil {
			cmd.SilenceUsage = true
			return err
		}

		if backtestFormat == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		fmt.Printf("Backtest %s %d\n", report.Route, report.Year)
		fmt.Printf("Prior from %d flights (%d late), replayed %d flights\n",
			report.TrainFlights, report.TrainLate, report.Flights)
		fmt.Printf("Brier %.4f  LogLoss %.4f  AUC %.4f  ECE %.4f\n\n",
			report.Metrics.Brier, report.Metrics.LogLoss, report.Metrics.AUC, report.Metrics.ECE)
		fmt.Printf("%-12s %7s %10s %10s\n", "Bin", "Count", "MeanPred", "Observed")
		for _, bin := range report.Reliability {
			if bin.Count == 0 {
				continue
			}
			fmt.Printf("[%.1f, %.1f)   %7d %10.4f %10.4f\n",
				bin.Low, bin.High, bin.Count, bin.MeanPredicted, bin.ObservedRate)
		}
		return nil
	},
}

func init() {
	backtestCmd.Flags().StringVar(&backtestCarrier, "carrier", "", "carrier code (required)")
	backtestCmd.Flags().StringVar(&backtestOrigin, "origin", "", "origin airport code (required)")
	backtestCmd.Flags().StringVar(&backtestDest, "dest", "", "destination airport code (required)")
	backtestCmd.Flags().IntVar(&backtestYear, "year", 0, "test year (required)")
	backtestCmd.Flags().IntVar(&backtestEarliest, "earliest-year", 0, "first prior year (default year-10)")
	backtestCmd.Flags().StringVar(&backtestDB, "db", "", "sqlite database path (overrides config)")
	backtestCmd.Flags().StringVar(&backtestFormat, "format", "table", "output format: table, json")
	_ = backtestCmd.MarkFlagRequired("carrier")
	_ = backtestCmd.MarkFlagRequired("origin")
	_ = backtestCmd.MarkFlagRequired("dest")
	_ = backtestCmd.MarkFlagRequired("year")
	rootCmd.AddCommand(backtestCmd)
}
