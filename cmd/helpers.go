package main

import (
	"context"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/delaycast/internal/store"
)

// openStore opens the configured observation store, applying migrations and
// honoring the --db override when set.
func openStore(ctx context.Context, dbOverride string) (store.ObservationStore, error) {
	sc := cfg.StoreSettings()
	if dbOverride != "" {
		sc.Driver = "sqlite"
		sc.Path = dbOverride
	}

	st, err := store.Open(ctx, sc)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	zap.L().Debug("store opened", zap.String("driver", sc.Driver))
	return st, nil
}

// splitFlight splits a designator like DL202 into carrier and flight number.
func splitFlight(designator string) (carrier, flightNumber string, err error) {
	d := strings.ToUpper(strings.TrimSpace(designator))
	i := 0
	for i < len(d) && !unicode.IsDigit(rune(d[i])) {
		i++
	}
	carrier, flightNumber = d[:i], d[i:]
	if carrier == "" || flightNumber == "" {
		return "", "", eris.Errorf("invalid flight designator %q (want e.g. DL202)", designator)
	}
	return carrier, flightNumber, nil
}
