package model

import (
	"fmt"
	"time"
)

// Delay thresholds (minutes past scheduled departure) the system forecasts.
const (
	Threshold15 = 15
	Threshold30 = 30
	Threshold45 = 45
	Threshold60 = 60
)

// RouteKey identifies a (carrier, origin, dest) triple, the unit of
// statistical pooling. One posterior is kept per RouteKey.
type RouteKey struct {
	Carrier string `json:"carrier"`
	Origin  string `json:"origin"`
	Dest    string `json:"dest"`
}

func (k RouteKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Carrier, k.Origin, k.Dest)
}

// WeatherSnapshot holds point-in-time conditions at the origin airport.
// Nil fields mean the value is unknown, not zero.
type WeatherSnapshot struct {
	TempC    *float64 `json:"temp_c,omitempty"`
	WindKt   *float64 `json:"wind_kt,omitempty"`
	PrecipMM *float64 `json:"precip_mm,omitempty"`
}

// Observation is a single scheduled flight, immutable once ingested.
// ActualDeparture is nil while the flight is unresolved; such rows are
// excluded from training but may still be scored as pending.
type Observation struct {
	Carrier            string           `json:"carrier"`
	FlightNumber       string           `json:"flight_number"`
	Origin             string           `json:"origin"`
	Dest               string           `json:"dest"`
	ScheduledDeparture time.Time        `json:"scheduled_departure"`
	ActualDeparture    *time.Time       `json:"actual_departure,omitempty"`
	Weather            *WeatherSnapshot `json:"weather,omitempty"`
}

// Route returns the pooling key for this observation.
func (o Observation) Route() RouteKey {
	return RouteKey{Carrier: o.Carrier, Origin: o.Origin, Dest: o.Dest}
}

// Resolved reports whether the flight has an actual departure time.
func (o Observation) Resolved() bool {
	return o.ActualDeparture != nil
}

// DelayMinutes returns the departure delay in minutes. The second return is
// false while the flight is unresolved.
func (o Observation) DelayMinutes() (float64, bool) {
	if o.ActualDeparture == nil {
		return 0, false
	}
	return o.ActualDeparture.Sub(o.ScheduledDeparture).Minutes(), true
}

// Late reports whether the flight departed at least thresholdMin minutes
// late. The second return is false while the outcome is undefined.
func (o Observation) Late(thresholdMin int) (bool, bool) {
	d, ok := o.DelayMinutes()
	if !ok {
		return false, false
	}
	return d >= float64(thresholdMin), true
}

// Valid checks the structural invariants of an ingested row.
func (o Observation) Valid() error {
	if o.Carrier == "" || o.Origin == "" || o.Dest == "" {
		return ErrInvalidObservation
	}
	if o.ScheduledDeparture.IsZero() {
		return ErrInvalidObservation
	}
	if o.ActualDeparture != nil && o.ActualDeparture.IsZero() {
		return ErrInvalidObservation
	}
	return nil
}
