package main

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/delaycast/internal/model"
	"github.com/sells-group/delaycast/internal/monitoring"
)

var (
	importCSVPath string
	importDB      string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import departure observations from CSV",
	Long:  "Loads rows of carrier,flight_number,origin,dest,scheduled_departure,actual_departure,temp_c,wind_kt,precip_mm. Invalid rows are skipped and counted, never fatal.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		f, err := os.Open(importCSVPath)
		if err != nil {
			return eris.Wrap(err, "open csv")
		}
		defer f.Close() //nolint:errcheck

		st, err := openStore(ctx, importDB)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		reader := csv.NewReader(f)
		reader.FieldsPerRecord = -1

		var batch []model.Observation
		var skipped, row int
		for {
			record, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				return eris.Wrap(err, "read csv")
			}
			row++
			if row == 1 && len(record) > 0 && record[0] == "carrier" {
				continue // header
			}

			obs, err := model.ParseObservationRecord(record)
			if err != nil {
				skipped++
				monitoring.ObservationsImported.WithLabelValues("skipped").Inc()
				zap.L().Debug("skipping invalid row", zap.Int("row", row), zap.Error(err))
				continue
			}
			batch = append(batch, obs)
		}

		inserted, err := st.InsertObservations(ctx, batch)
		if err != nil {
			cmd.SilenceUsage = true
			return eris.Wrap(err, "insert observations")
		}
		duplicates := int64(len(batch)) - inserted
		monitoring.ObservationsImported.WithLabelValues("inserted").Add(float64(inserted))

		zap.L().Info("import complete",
			zap.String("csv", importCSVPath),
			zap.Int64("inserted", inserted),
			zap.Int64("duplicates", duplicates),
			zap.Int("skipped_invalid", skipped),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importCSVPath, "csv", "", "path to CSV file (required)")
	importCmd.Flags().StringVar(&importDB, "db", "", "sqlite database path (overrides config)")
	_ = importCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(importCmd)
}
