package model

import "github.com/rotisserie/eris"

var (
	// ErrInvalidObservation marks a malformed row (missing identifiers or
	// timestamps). Such rows are skipped and counted, never silently dropped.
	ErrInvalidObservation = eris.New("invalid observation")

	// ErrInsufficientData marks a route or fold with too few observations to
	// do better than the prior. Callers degrade, they do not abort.
	ErrInsufficientData = eris.New("insufficient data")
)
