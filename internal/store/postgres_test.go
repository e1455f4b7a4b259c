package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/delaycast/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

// anyArgs returns n pgxmock.AnyArg matchers; pgxmock expectations without
// WithArgs only match calls that pass zero arguments.
func anyArgs(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = pgxmock.AnyArg()
	}
	return out
}

func TestPostgresStore_InsertObservations_CountsOnlyNewRows(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	sched := time.Date(2023, 6, 1, 8, 0, 0, 0, time.UTC)
	batch := []model.Observation{
		testObservation("100", sched, 20),
		testObservation("100", sched, 20),
	}

	mock.ExpectExec(`INSERT INTO observations`).WithArgs(anyArgs(11)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO observations`).WithArgs(anyArgs(11)...).WillReturnResult(pgxmock.NewResult("INSERT", 0))

	n, err := s.InsertObservations(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "conflicting row is skipped, not counted")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertObservations_RejectsInvalid(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	_, err := s.InsertObservations(context.Background(), []model.Observation{
		{FlightNumber: "100", Origin: "JFK", Dest: "ATL", ScheduledDeparture: time.Now()},
	})
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrInvalidObservation))
	assert.NoError(t, mock.ExpectationsWereMet(), "invalid rows never reach the database")
}

func TestPostgresStore_CountsForRoute(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT`).
		WithArgs("DL", "JFK", "ATL", 15).
		WillReturnRows(pgxmock.NewRows([]string{"count", "late"}).AddRow(int64(120), int64(30)))

	c, err := s.CountsForRoute(context.Background(), model.RouteKey{Carrier: "DL", Origin: "JFK", Dest: "ATL"}, 15)
	require.NoError(t, err)
	assert.Equal(t, int64(120), c.Flights)
	assert.Equal(t, int64(30), c.Late)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FlightObservation_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT carrier, flight_number`).
		WithArgs(anyArgs(4)...).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.FlightObservation(context.Background(), "DL", "100", time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ObservationsBetween_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM observations`).
		WithArgs(anyArgs(2)...).
		WillReturnError(eris.New("connection reset"))

	_, err := s.ObservationsBetween(context.Background(),
		time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query observations")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}
