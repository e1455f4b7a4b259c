package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/delaycast/internal/model"
)

// ErrNotFound is returned by lookups that matched no row.
var ErrNotFound = eris.New("store: not found")

// RouteCounts holds the observed history for one route at a fixed lateness
// threshold: n resolved departures, k of them late.
type RouteCounts struct {
	Flights int64 `json:"flights"`
	Late    int64 `json:"late"`
}

// ObservationStore defines the persistence interface for departure history.
type ObservationStore interface {
	// InsertObservations writes a batch, skipping rows that duplicate an
	// already stored (carrier, flight_number, scheduled_departure) key.
	// It returns the number of rows actually inserted.
	InsertObservations(ctx context.Context, obs []model.Observation) (int64, error)

	// ObservationsBetween returns observations with a scheduled departure
	// in [start, end), ordered by scheduled departure.
	ObservationsBetween(ctx context.Context, start, end time.Time) ([]model.Observation, error)

	// CountsForRoute aggregates resolved departures on a route, counting
	// as late those delayed by at least thresholdMin minutes.
	CountsForRoute(ctx context.Context, key model.RouteKey, thresholdMin int) (RouteCounts, error)

	// FlightObservation returns the stored record for one flight on one
	// service date, or ErrNotFound.
	FlightObservation(ctx context.Context, carrier, flightNumber string, date time.Time) (*model.Observation, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Config selects and configures the storage driver.
type Config struct {
	Driver   string      `yaml:"driver" mapstructure:"driver"`
	Path     string      `yaml:"path" mapstructure:"path"`
	Postgres string      `yaml:"postgres" mapstructure:"postgres"`
	Pool     *PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// Open creates the store named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (ObservationStore, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLite(cfg.Path)
	case "postgres":
		return NewPostgres(ctx, cfg.Postgres, cfg.Pool)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
