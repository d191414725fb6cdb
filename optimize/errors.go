package optimize

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Sentinel errors for the configuration, evaluator, and cancellation kinds
// described in spec §7. Callers should compare against
// these with errors.Is; orchestrator.go wraps the underlying cause with
// pkgerrors.Wrap before handing a message to Result.Error so the original
// sentinel remains discoverable while the chain stays human-readable.
var (
	// ErrDimensionMismatch is returned when bounds, a start point, or
	// supplied step sizes disagree in length.
	ErrDimensionMismatch = errors.New("optimize: dimension mismatch")
	// ErrZeroDimension is returned for a zero-dimension problem.
	ErrZeroDimension = errors.New("optimize: zero-dimension problem")
	// ErrInvalidNPT is returned when BOBYQA's npt falls outside
	// [n+2, (n+1)(n+2)/2].
	ErrInvalidNPT = errors.New("optimize: npt out of range")
	// ErrBOBYQADimension is returned when BOBYQA is invoked with n < 2.
	ErrBOBYQADimension = errors.New("optimize: bobyqa requires n >= 2")
	// ErrCancelled is returned when the objective's cancel flag was
	// observed during a residual evaluation.
	ErrCancelled = errors.New("optimize: cancelled")
	// ErrEvaluatorFailed wraps a failure raised by the external evaluator.
	ErrEvaluatorFailed = errors.New("optimize: evaluator failed")
)

// wrapf wraps err with a formatted message using github.com/pkg/errors,
// preserving errors.Is/As compatibility with the wrapped sentinel.
func wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(err, fmt.Sprintf(format, args...))
}
