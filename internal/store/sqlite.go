package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/delaycast/internal/model"
)

// SQLiteStore implements ObservationStore using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS observations (
	id                  TEXT PRIMARY KEY,
	carrier             TEXT NOT NULL,
	flight_number       TEXT NOT NULL,
	origin              TEXT NOT NULL,
	dest                TEXT NOT NULL,
	scheduled_departure DATETIME NOT NULL,
	actual_departure    DATETIME,
	dep_delay_minutes   REAL,
	temp_c              REAL,
	wind_kt             REAL,
	precip_mm           REAL,
	created_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_obs_flight_key
	ON observations(carrier, flight_number, scheduled_departure);
CREATE INDEX IF NOT EXISTS idx_obs_route ON observations(carrier, origin, dest);
CREATE INDEX IF NOT EXISTS idx_obs_scheduled ON observations(scheduled_departure);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertObservations(ctx context.Context, obs []model.Observation) (int64, error) {
	if len(obs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin insert")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO observations
			(id, carrier, flight_number, origin, dest, scheduled_departure,
			 actual_departure, dep_delay_minutes, temp_c, wind_kt, precip_mm)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close()

	var inserted int64
	for _, o := range obs {
		if err := o.Valid(); err != nil {
			return inserted, err
		}
		res, err := stmt.ExecContext(ctx, insertArgs(o)...)
		if err != nil {
			return inserted, eris.Wrapf(err, "sqlite: insert observation %s %s", o.Carrier, o.FlightNumber)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, eris.Wrap(err, "sqlite: rows affected")
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit insert")
	}
	return inserted, nil
}

// insertArgs flattens an observation into the insert column order, deriving
// the stored delay for resolved rows.
func insertArgs(o model.Observation) []any {
	var actual any
	var delay any
	if o.ActualDeparture != nil {
		actual = o.ActualDeparture.UTC()
	}
	if d, ok := o.DelayMinutes(); ok {
		delay = d
	}

	var tempC, windKt, precipMM any
	if w := o.Weather; w != nil {
		if w.TempC != nil {
			tempC = *w.TempC
		}
		if w.WindKt != nil {
			windKt = *w.WindKt
		}
		if w.PrecipMM != nil {
			precipMM = *w.PrecipMM
		}
	}

	return []any{
		uuid.New().String(), o.Carrier, o.FlightNumber, o.Origin, o.Dest,
		o.ScheduledDeparture.UTC(), actual, delay, tempC, windKt, precipMM,
	}
}

const observationColumns = `carrier, flight_number, origin, dest,
	scheduled_departure, actual_departure, temp_c, wind_kt, precip_mm`

func (s *SQLiteStore) ObservationsBetween(ctx context.Context, start, end time.Time) ([]model.Observation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+observationColumns+`
		FROM observations
		WHERE scheduled_departure >= ? AND scheduled_departure < ?
		ORDER BY scheduled_departure`,
		start.UTC(), end.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query observations")
	}
	defer rows.Close()

	var out []model.Observation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate observations")
}

func (s *SQLiteStore) CountsForRoute(ctx context.Context, key model.RouteKey, thresholdMin int) (RouteCounts, error) {
	var c RouteCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN dep_delay_minutes >= ? THEN 1 ELSE 0 END), 0)
		FROM observations
		WHERE carrier = ? AND origin = ? AND dest = ?
		  AND actual_departure IS NOT NULL`,
		thresholdMin, key.Carrier, key.Origin, key.Dest,
	).Scan(&c.Flights, &c.Late)
	if err != nil {
		return RouteCounts{}, eris.Wrapf(err, "sqlite: route counts %s", key)
	}
	return c, nil
}

func (s *SQLiteStore) FlightObservation(ctx context.Context, carrier, flightNumber string, date time.Time) (*model.Observation, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	row := s.db.QueryRowContext(ctx, `
		SELECT `+observationColumns+`
		FROM observations
		WHERE carrier = ? AND flight_number = ?
		  AND scheduled_departure >= ? AND scheduled_departure < ?
		ORDER BY scheduled_departure
		LIMIT 1`,
		carrier, flightNumber, dayStart, dayStart.Add(24*time.Hour),
	)

	o, err := scanObservation(row)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "flight %s %s on %s", carrier, flightNumber, dayStart.Format("2006-01-02"))
		}
		return nil, err
	}
	return &o, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObservation(row rowScanner) (model.Observation, error) {
	var o model.Observation
	var actual sql.NullTime
	var tempC, windKt, precipMM sql.NullFloat64

	err := row.Scan(&o.Carrier, &o.FlightNumber, &o.Origin, &o.Dest,
		&o.ScheduledDeparture, &actual, &tempC, &windKt, &precipMM)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Observation{}, err
		}
		return model.Observation{}, eris.Wrap(err, "sqlite: scan observation")
	}

	o.ScheduledDeparture = o.ScheduledDeparture.UTC()
	if actual.Valid {
		t := actual.Time.UTC()
		o.ActualDeparture = &t
	}
	if tempC.Valid || windKt.Valid || precipMM.Valid {
		w := &model.WeatherSnapshot{}
		if tempC.Valid {
			w.TempC = &tempC.Float64
		}
		if windKt.Valid {
			w.WindKt = &windKt.Float64
		}
		if precipMM.Valid {
			w.PrecipMM = &precipMM.Float64
		}
		o.Weather = w
	}
	return o, nil
}
