package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// CSV column layout for observation imports:
// carrier,flight_number,origin,dest,scheduled_departure,actual_departure,temp_c,wind_kt,precip_mm
// actual_departure and the three weather columns may be empty (unknown).
const csvColumns = 9

// ParseObservationRecord converts one CSV record into an Observation.
// Malformed records return ErrInvalidObservation wrapped with the cause.
func ParseObservationRecord(record []string) (Observation, error) {
	if len(record) != csvColumns {
		return Observation{}, eris.Wrapf(ErrInvalidObservation, "expected %d columns, got %d", csvColumns, len(record))
	}

	obs := Observation{
		Carrier:      strings.ToUpper(strings.TrimSpace(record[0])),
		FlightNumber: strings.TrimSpace(record[1]),
		Origin:       strings.ToUpper(strings.TrimSpace(record[2])),
		Dest:         strings.ToUpper(strings.TrimSpace(record[3])),
	}

	sched, err := time.Parse(time.RFC3339, strings.TrimSpace(record[4]))
	if err != nil {
		return Observation{}, eris.Wrapf(ErrInvalidObservation, "scheduled_departure %q", record[4])
	}
	obs.ScheduledDeparture = sched

	if s := strings.TrimSpace(record[5]); s != "" {
		actual, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return Observation{}, eris.Wrapf(ErrInvalidObservation, "actual_departure %q", record[5])
		}
		obs.ActualDeparture = &actual
	}

	wx := &WeatherSnapshot{}
	known := false
	for i, dst := range []**float64{&wx.TempC, &wx.WindKt, &wx.PrecipMM} {
		s := strings.TrimSpace(record[6+i])
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Observation{}, eris.Wrapf(ErrInvalidObservation, "weather column %d %q", 6+i, s)
		}
		*dst = &v
		known = true
	}
	if known {
		obs.Weather = wx
	}

	if err := obs.Valid(); err != nil {
		return Observation{}, err
	}
	return obs, nil
}
