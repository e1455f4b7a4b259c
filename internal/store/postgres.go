package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/delaycast/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses, kept as an interface
// so tests can substitute a mock pool.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements ObservationStore using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_observation": `INSERT INTO observations
		(id, carrier, flight_number, origin, dest, scheduled_departure,
		 actual_departure, dep_delay_minutes, temp_c, wind_kt, precip_mm)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (carrier, flight_number, scheduled_departure) DO NOTHING`,
	"observations_between": `SELECT carrier, flight_number, origin, dest,
		scheduled_departure, actual_departure, temp_c, wind_kt, precip_mm
		FROM observations
		WHERE scheduled_departure >= $1 AND scheduled_departure < $2
		ORDER BY scheduled_departure`,
	"route_counts": `SELECT COUNT(*),
		COALESCE(SUM(CASE WHEN dep_delay_minutes >= $4 THEN 1 ELSE 0 END), 0)
		FROM observations
		WHERE carrier = $1 AND origin = $2 AND dest = $3
		  AND actual_departure IS NOT NULL`,
	"flight_observation": `SELECT carrier, flight_number, origin, dest,
		scheduled_departure, actual_departure, temp_c, wind_kt, precip_mm
		FROM observations
		WHERE carrier = $1 AND flight_number = $2
		  AND scheduled_departure >= $3 AND scheduled_departure < $4
		ORDER BY scheduled_departure
		LIMIT 1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS observations (
	id                  TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	carrier             TEXT NOT NULL,
	flight_number       TEXT NOT NULL,
	origin              TEXT NOT NULL,
	dest                TEXT NOT NULL,
	scheduled_departure TIMESTAMPTZ NOT NULL,
	actual_departure    TIMESTAMPTZ,
	dep_delay_minutes   DOUBLE PRECISION,
	temp_c              DOUBLE PRECISION,
	wind_kt             DOUBLE PRECISION,
	precip_mm           DOUBLE PRECISION,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_obs_flight_key
	ON observations(carrier, flight_number, scheduled_departure);
CREATE INDEX IF NOT EXISTS idx_obs_route ON observations(carrier, origin, dest);
CREATE INDEX IF NOT EXISTS idx_obs_scheduled ON observations(scheduled_departure);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) InsertObservations(ctx context.Context, obs []model.Observation) (int64, error) {
	var inserted int64
	for _, o := range obs {
		if err := o.Valid(); err != nil {
			return inserted, err
		}
		tag, err := s.pool.Exec(ctx, preparedStatements["insert_observation"], insertArgs(o)...)
		if err != nil {
			return inserted, eris.Wrapf(err, "postgres: insert observation %s %s", o.Carrier, o.FlightNumber)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

func (s *PostgresStore) ObservationsBetween(ctx context.Context, start, end time.Time) ([]model.Observation, error) {
	rows, err := s.pool.Query(ctx, preparedStatements["observations_between"], start.UTC(), end.UTC())
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query observations")
	}
	defer rows.Close()

	var out []model.Observation
	for rows.Next() {
		o, err := scanPgObservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate observations")
}

func (s *PostgresStore) CountsForRoute(ctx context.Context, key model.RouteKey, thresholdMin int) (RouteCounts, error) {
	var c RouteCounts
	err := s.pool.QueryRow(ctx, preparedStatements["route_counts"],
		key.Carrier, key.Origin, key.Dest, thresholdMin,
	).Scan(&c.Flights, &c.Late)
	if err != nil {
		return RouteCounts{}, eris.Wrapf(err, "postgres: route counts %s", key)
	}
	return c, nil
}

func (s *PostgresStore) FlightObservation(ctx context.Context, carrier, flightNumber string, date time.Time) (*model.Observation, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	row := s.pool.QueryRow(ctx, preparedStatements["flight_observation"],
		carrier, flightNumber, dayStart, dayStart.Add(24*time.Hour))

	o, err := scanPgObservation(row)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "flight %s %s on %s", carrier, flightNumber, dayStart.Format("2006-01-02"))
		}
		return nil, err
	}
	return &o, nil
}

func scanPgObservation(row pgx.Row) (model.Observation, error) {
	var o model.Observation
	var actual *time.Time
	var tempC, windKt, precipMM *float64

	err := row.Scan(&o.Carrier, &o.FlightNumber, &o.Origin, &o.Dest,
		&o.ScheduledDeparture, &actual, &tempC, &windKt, &precipMM)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.Observation{}, err
		}
		return model.Observation{}, eris.Wrap(err, "postgres: scan observation")
	}

	o.ScheduledDeparture = o.ScheduledDeparture.UTC()
	if actual != nil {
		t := actual.UTC()
		o.ActualDeparture = &t
	}
	if tempC != nil || windKt != nil || precipMM != nil {
		o.Weather = &model.WeatherSnapshot{TempC: tempC, WindKt: windKt, PrecipMM: precipMM}
	}
	return o, nil
}
