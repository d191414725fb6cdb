package optimize

import (
	"math"
	"sync/atomic"
)

// Kernel names the preferred optimizer for an Objective (spec §6).
type Kernel int

const (
	KernelDIRECT Kernel = iota
	KernelBOBYQA
	KernelBrent
	KernelCMAES
	KernelSimplex
	KernelPowell
)

func (k Kernel) String() string {
	switch k {
	case KernelDIRECT:
		return "DIRECT"
	case KernelBOBYQA:
		return "BOBYQA"
	case KernelBrent:
		return "BRENT"
	case KernelCMAES:
		return "CMAES"
	case KernelSimplex:
		return "SIMPLEX"
	case KernelPowell:
		return "POWELL"
	default:
		return "UNKNOWN"
	}
}

// Evaluator is the external collaborator that compares a domain's current
// state to a fixed set of weighted targets and returns the residual vector
// (spec §6). Implementations must be pure with respect to the domain state
// last written by Encoding.SetGeometryPoint and must tolerate thousands of
// calls per run.
type Evaluator interface {
	// Residual returns one residual per target; positive means the
	// computed state is too high, negative too low.
	Residual() ([]float64, error)
	// Weights returns the non-negative per-target weights. Weight zero
	// contributes nothing to the scalar reduction.
	Weights() []float64
}

// Encoding is the external collaborator that moves state between the
// client's domain object and the ℝⁿ point a kernel manipulates (spec §6).
type Encoding interface {
	Dim() int
	GetGeometryPoint() []float64
	SetGeometryPoint(x []float64)
}

// Objective is the scaffolding shared by every kernel: it owns the bounds,
// the evaluator/encoding pair, the cancellation flag, and the evaluation
// counters (spec §3, §4.1).
type Objective struct {
	encoding  Encoding
	evaluator Evaluator

	// firstStage, when non-nil, replaces evaluator during the cheap
	// exploration stage of a two-stage pipeline (spec §4.9).
	firstStage Evaluator

	box Box

	kernel       Kernel
	maxEvals     int
	cancel       atomic.Bool
	evalCount    int
	targetCount  int

	trustRegionCached bool
	trustRegionRadius float64

	bestX []float64
	bestF float64

	rangeProcessor *RangeProcessor
}

// SetRangeProcessor attaches the optional multi-start sampler (spec §3); a
// non-nil processor makes the orchestrator take the multi-start path even
// when Options.NumberOfStarts is left at 1 (spec §4.9).
func (o *Objective) SetRangeProcessor(rp *RangeProcessor) { o.rangeProcessor = rp }

// RangeProcessor returns the attached sampler, or nil.
func (o *Objective) RangeProcessor() *RangeProcessor { return o.rangeProcessor }

// WriteGeometry pushes a clipped point into the domain via the encoding,
// without invoking the evaluator (spec §4.9's "write its geometry back into
// the domain" step of the BOBYQA two-stage pipeline).
func (o *Objective) WriteGeometry(x []float64) {
	o.encoding.SetGeometryPoint(o.box.Clip(nil, x))
}

// NewObjective builds an Objective around the given evaluator/encoding pair
// and bounds. The bounds are validated immediately (spec §3).
func NewObjective(enc Encoding, ev Evaluator, lower, upper []float64, kernel Kernel) (*Objective, error) {
	if enc.Dim() != len(lower) || len(lower) != len(upper) {
		return nil, ErrDimensionMismatch
	}
	box, err := NewBox(lower, upper)
	if err != nil {
		return nil, err
	}
	return &Objective{encoding: enc, evaluator: ev, box: box, kernel: kernel, maxEvals: 10000, bestF: math.Inf(1)}, nil
}

// Dim returns the problem dimension.
func (o *Objective) Dim() int { return o.box.Dim() }

// Box returns a copy of the current bounds.
func (o *Objective) Box() Box { return o.box.Clone() }

// SetBounds replaces the bounds, re-validates them, and invalidates the
// cached trust-region seed (spec §3 Objective invariants).
func (o *Objective) SetBounds(lower, upper []float64) error {
	box, err := NewBox(lower, upper)
	if err != nil {
		return err
	}
	o.box = box
	o.trustRegionCached = false
	return nil
}

// PreferredKernel returns the kernel tag the objective was configured with.
func (o *Objective) PreferredKernel() Kernel { return o.kernel }

// SetPreferredKernel overrides the preferred kernel.
func (o *Objective) SetPreferredKernel(k Kernel) { o.kernel = k }

// SetMaxEvaluations sets the evaluation cap (spec §6 default 10000).
func (o *Objective) SetMaxEvaluations(n int) { o.maxEvals = n }

// MaxEvaluations returns the evaluation cap.
func (o *Objective) MaxEvaluations() int { return o.maxEvals }

// SetFirstStageEvaluator attaches a cheap evaluator used during global
// exploration, swapped out at the stage boundaries the orchestrator
// controls (spec §4.9).
func (o *Objective) SetFirstStageEvaluator(ev Evaluator) { o.firstStage = ev }

// HasFirstStage reports whether a first-stage evaluator is attached.
func (o *Objective) HasFirstStage() bool { return o.firstStage != nil }

// UseFirstStage swaps the active evaluator to the first-stage one, returning
// a restore function that swaps the final evaluator back in. Calling
// restore when no first-stage evaluator was attached is a no-op.
func (o *Objective) UseFirstStage() (restore func()) {
	if o.firstStage == nil {
		return func() {}
	}
	final := o.evaluator
	o.evaluator = o.firstStage
	return func() { o.evaluator = final }
}

// SetCancel raises the one-shot cancellation flag (spec §3, §5).
func (o *Objective) SetCancel() { o.cancel.Store(true) }

// ResetStats zeroes the evaluation and target counters and the best-point
// tracker, so a fresh Optimize call starts from a clean slate.
func (o *Objective) ResetStats() {
	o.evalCount = 0
	o.targetCount = 0
	o.bestX = nil
	o.bestF = math.Inf(1)
}

// EvaluationCount returns the number of scalar evaluations performed.
func (o *Objective) EvaluationCount() int { return o.evalCount }

// BestPoint and BestValue return the lowest-f point seen across every call
// to Value on this objective since the last ResetStats, regardless of which
// kernel produced it (spec §7: "a caller always gets the lowest-f point
// seen, even after truncation").
func (o *Objective) BestPoint() []float64 { return append([]float64(nil), o.bestX...) }
func (o *Objective) BestValue() float64   { return o.bestF }

// getErrorVector writes x into the domain via the encoding, invokes the
// active evaluator, and returns its residual vector. It consumes (clears)
// the cancel flag, returning ErrCancelled if it was set (spec §4.1).
func (o *Objective) getErrorVector(x []float64) ([]float64, error) {
	if o.cancel.Load() {
		o.cancel.Store(false)
		return nil, ErrCancelled
	}
	o.encoding.SetGeometryPoint(x)
	r, err := o.evaluator.Residual()
	if err != nil {
		return nil, wrapf(ErrEvaluatorFailed, "%v", err)
	}
	o.targetCount += len(r)
	return r, nil
}

// calcNorm reduces a residual vector to the weighted sum of squares
// Σ wᵢ rᵢ² (spec §3). Targets with weight zero contribute nothing.
func (o *Objective) calcNorm(r []float64) float64 {
	w := o.evaluator.Weights()
	var sum float64
	for i, ri := range r {
		if i >= len(w) || w[i] == 0 {
			continue
		}
		sum += w[i] * ri * ri
	}
	return sum
}

// Value evaluates the scalar objective f(x) = Σ wᵢ rᵢ² at a clipped copy of
// x, incrementing the evaluation counter (spec §4.1).
func (o *Objective) Value(x []float64) (float64, error) {
	clipped := o.box.Clip(nil, x)
	r, err := o.getErrorVector(clipped)
	if err != nil {
		return math.Inf(1), err
	}
	o.evalCount++
	v := o.calcNorm(r)
	if v < o.bestF {
		o.bestF = v
		o.bestX = append(o.bestX[:0], clipped...)
	}
	return v, nil
}

// GetInitialPoint returns the encoding's current point, clipped into the
// box (spec §4.1).
func (o *Objective) GetInitialPoint() []float64 {
	x := o.encoding.GetGeometryPoint()
	return o.box.Clip(nil, x)
}

// GetStdDev returns 0.2*range per dimension (spec §4.1).
func (o *Objective) GetStdDev() []float64 {
	out := make([]float64, o.Dim())
	for i := range out {
		out[i] = 0.2 * o.box.Range(i)
	}
	return out
}

// GetSimplexStepSize returns, per dimension, 25% of the larger distance to
// either bound from x, falling back to 10% of the coordinate's magnitude,
// and never zero (spec §4.1).
func (o *Objective) GetSimplexStepSize(x []float64) []float64 {
	out := make([]float64, o.Dim())
	for i, xi := range x {
		distLower := xi - o.box.Lower[i]
		distUpper := o.box.Upper[i] - xi
		d := distLower
		if distUpper > d {
			d = distUpper
		}
		step := 0.25 * d
		if step == 0 {
			step = 0.1 * math.Abs(xi)
		}
		if step == 0 {
			step = 0.1
		}
		out[i] = step
	}
	return out
}

// GetInitialTrustRegionRadius computes BOBYQA's initial trust-region radius
// from the current bounds (spec §4.3): scanning dimensions with range >
// 1e-7, minR = min(0.5*range), maxR = max(range); Δ0 = minR if minR >
// 0.1*maxR else 0.1*maxR. The result is cached until bounds change.
func (o *Objective) GetInitialTrustRegionRadius() float64 {
	if o.trustRegionCached {
		return o.trustRegionRadius
	}
	minR, maxR := math.Inf(1), 0.0
	for i := 0; i < o.Dim(); i++ {
		r := o.box.Range(i)
		if r <= 1e-7 {
			continue
		}
		if half := 0.5 * r; half < minR {
			minR = half
		}
		if r > maxR {
			maxR = r
		}
	}
	if math.IsInf(minR, 1) {
		minR = 0
	}
	delta0 := minR
	if minR <= 0.1*maxR {
		delta0 = 0.1 * maxR
	}
	o.trustRegionRadius = delta0
	o.trustRegionCached = true
	return delta0
}

// GetNrInterpolations returns BOBYQA's default npt, 2n+1 (spec §4.3).
func (o *Objective) GetNrInterpolations() int { return 2*o.Dim() + 1 }
