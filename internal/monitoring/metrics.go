// Package monitoring exposes prometheus instrumentation for the forecaster.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ForecastsTotal tracks served forecasts by outcome
	ForecastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delaycast_forecasts_total",
			Help: "Total number of forecast requests served",
		},
		[]string{"status"},
	)

	// PosteriorUpdates tracks conjugate updates applied to route posteriors
	PosteriorUpdates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "delaycast_posterior_updates_total",
			Help: "Total number of Beta posterior updates applied",
		},
	)

	// ActivePosteriors tracks the number of live route posteriors in memory
	ActivePosteriors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "delaycast_active_posteriors",
			Help: "Number of route posteriors held by the serving store",
		},
	)

	// FoldsEvaluated tracks walk-forward folds scored by result
	FoldsEvaluated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delaycast_validation_folds_total",
			Help: "Total number of walk-forward folds evaluated",
		},
		[]string{"winner"},
	)

	// ObservationsImported tracks rows loaded into the observation store
	ObservationsImported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delaycast_observations_imported_total",
			Help: "Total number of observation rows processed on import",
		},
		[]string{"result"},
	)

	// AppStartTime records when the application started
	AppStartTime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "delaycast_app_start_time_seconds",
			Help: "Unix timestamp of when the application started",
		},
	)
)

func init() {
	AppStartTime.SetToCurrentTime()
}

// RecordForecast records one served forecast request.
func RecordForecast(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ForecastsTotal.WithLabelValues(status).Inc()
}
