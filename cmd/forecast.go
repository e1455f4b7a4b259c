package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/delaycast/internal/forecast"
)

var (
	forecastFlight string
	forecastDate   string
	forecastDB     string
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Forecast one flight's departure delay",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		carrier, flightNumber, err := splitFlight(forecastFlight)
		if err != nil {
			return err
		}
		date, err := time.Parse("2006-01-02", forecastDate)
		if err != nil {
			return eris.Wrap(err, "parse --date (want YYYY-MM-DD)")
		}

		st, err := openStore(ctx, forecastDB)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		engine := forecast.New(st, st, cfg.Adjuster(), cfg.DelayCurve(), cfg.Validation.ThresholdMin)
		defer engine.Close()

		f, err := engine.Forecast(ctx, carrier, flightNumber, date)
		if err != nil {
			cmd.SilenceUsage = true
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(f)
	},
}

func init() {
	forecastCmd.Flags().StringVar(&forecastFlight, "flight", "", "flight designator, e.g. DL202 (required)")
	forecastCmd.Flags().StringVar(&forecastDate, "date", "", "service date YYYY-MM-DD (required)")
	forecastCmd.Flags().StringVar(&forecastDB, "db", "", "sqlite database path (overrides config)")
	_ = forecastCmd.MarkFlagRequired("flight")
	_ = forecastCmd.MarkFlagRequired("date")
	rootCmd.AddCommand(forecastCmd)
}
