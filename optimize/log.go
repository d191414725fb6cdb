package optimize

import (
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// nopLogger is the default used when a caller does not supply one, so the
// library stays silent unless a caller opts in (spec §6 progress channel is
// optional; this mirrors that for structured logs).
func nopLogger() *zap.SugaredLogger { return zap.NewNop().Sugar() }

// ProgressFunc receives informational ("message", progress) pairs; progress
// is in [0,1] when known, or negative when indeterminate (spec §6). It never
// affects control flow.
type ProgressFunc func(message string, progress float64)

// formatProgress renders the human-facing string for a progress callback
// using go-humanize, the way the pack's counter/duration formatting does.
func formatProgress(stage string, evals, maxEvals int, elapsed time.Duration) string {
	return stage + ": " + humanize.Comma(int64(evals)) + "/" + humanize.Comma(int64(maxEvals)) +
		" evaluations, " + elapsed.Round(time.Millisecond).String() + " elapsed"
}
