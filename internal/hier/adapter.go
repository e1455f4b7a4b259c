// Package hier defines the batch-trained comparison model behind a
// fit/predict contract, plus the concrete implementation shipped with the
// validator. Any model that returns per-row probabilities satisfies the
// contract; the validator never looks inside.
package hier

import (
	"context"
	"errors"
	"fmt"

	"github.com/sells-group/delaycast/internal/model"
)

// Trainer fits a model on a training set. Fit may fail with
// *TrainingFailure when the data is insufficient or the underlying fit does
// not converge; callers degrade gracefully instead of aborting.
type Trainer interface {
	Fit(ctx context.Context, train []model.Observation) (Predictor, error)
}

// Predictor scores a test set, returning one probability per observation in
// the same order and length as the input.
type Predictor interface {
	Predict(ctx context.Context, test []model.Observation) ([]float64, error)
}

// TrainingFailure reports a fit that could not produce a usable model.
type TrainingFailure struct {
	Reason string
	Err    error
}

func (e *TrainingFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("training failure: %s: %v", e.Reason, e.Err)
	}
	return "training failure: " + e.Reason
}

func (e *TrainingFailure) Unwrap() error { return e.Err }

// IsTrainingFailure reports whether err is (or wraps) a TrainingFailure.
func IsTrainingFailure(err error) bool {
	var tf *TrainingFailure
	return errors.As(err, &tf)
}
