package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/delaycast/internal/model"
)

var (
	priorCarrier string
	priorOrigin  string
	priorDest    string
	priorDB      string
)

var priorCmd = &cobra.Command{
	Use:   "prior",
	Short: "Print the historical Beta prior for a route",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, priorDB)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		key := model.RouteKey{
			Carrier: strings.ToUpper(priorCarrier),
			Origin:  strings.ToUpper(priorOrigin),
			Dest:    strings.ToUpper(priorDest),
		}
		counts, err := st.CountsForRoute(ctx, key, cfg.Validation.ThresholdMin)
		if err != nil {
			cmd.SilenceUsage = true
			return err
		}

		alpha := cfg.Prior.Alpha + float64(counts.Late)
		beta := cfg.Prior.Beta + float64(counts.Flights-counts.Late)
		out := map[string]any{
			"route":   key.String(),
			"flights": counts.Flights,
			"late":    counts.Late,
			"alpha":   alpha,
			"beta":    beta,
			"p_late":  alpha / (alpha + beta),
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	priorCmd.Flags().StringVar(&priorCarrier, "carrier", "", "carrier code, e.g. DL (required)")
	priorCmd.Flags().StringVar(&priorOrigin, "origin", "", "origin airport code (required)")
	priorCmd.Flags().StringVar(&priorDest, "dest", "", "destination airport code (required)")
	priorCmd.Flags().StringVar(&priorDB, "db", "", "sqlite database path (overrides config)")
	_ = priorCmd.MarkFlagRequired("carrier")
	_ = priorCmd.MarkFlagRequired("origin")
	_ = priorCmd.MarkFlagRequired("dest")
	rootCmd.AddCommand(priorCmd)
}
