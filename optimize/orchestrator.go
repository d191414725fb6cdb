package optimize

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/rand"

	"go.uber.org/zap"
)

// Options carries the orchestrator's configuration surface (spec §6, §4.9).
// Zero values fall back to the documented defaults.
type Options struct {
	MaxEvaluations       int          // default 10000
	TargetValue          float64      // default -Inf (never triggers)
	ConvergenceThreshold float64      // default 1e-6; not passed to the kernels, which apply their own relative-tolerance defaults
	Progress             ProgressFunc // optional, informational only (spec §6)
	NumberOfStarts       int          // 0 or 1 means single-start; >1 (or an attached RangeProcessor) activates multi-start, defaulting to 30 starts if left at 0
	Strategy             Strategy     // default StrategyUniform
	VaryingDims          []bool       // nil => every dimension varies
	ForceDirect          bool
	Logger               *zap.SugaredLogger // optional, defaults to a no-op logger
	Src                  *rand.Rand         // process-wide PRNG source (spec §5)
}

func (o Options) withDefaults() Options {
	if o.MaxEvaluations == 0 {
		o.MaxEvaluations = 10000
	}
	if o.TargetValue == 0 {
		o.TargetValue = math.Inf(-1)
	}
	if o.ConvergenceThreshold == 0 {
		o.ConvergenceThreshold = 1e-6
	}
	if o.Logger == nil {
		o.Logger = nopLogger()
	}
	if o.Src == nil {
		o.Src = rand.New(rand.NewSource(1))
	}
	return o
}

// OptimizeResult is the answer of a single Orchestrator.Optimize call (spec
// §6 Result record, plus the RunID/Elapsed fields SPEC_FULL.md adds).
type OptimizeResult struct {
	Success            bool
	Point              []float64
	InitialNorm        float64
	FinalNorm          float64
	ResidualErrorRatio float64
	Evaluations        int
	Tunings            int
	Elapsed            time.Duration
	Error              string
	RunID              string
}

// Orchestrator dispatches an Objective to the kernel its preferred-kernel
// tag names, optionally wrapped in a two-stage evaluator swap and a
// multi-start exploration loop (spec §4.9).
type Orchestrator struct {
	Options Options
}

// NewOrchestrator builds an Orchestrator with defaults filled in.
func NewOrchestrator(opts Options) *Orchestrator {
	return &Orchestrator{Options: opts.withDefaults()}
}

// Optimize runs the configured dispatch against obj and returns the result
// record. It never panics or propagates an error to the caller (spec §7);
// every failure is captured into OptimizeResult.
func (o *Orchestrator) Optimize(obj *Objective) OptimizeResult {
	start := time.Now()
	runID := uuid.NewString()
	logger := o.Options.Logger

	obj.ResetStats()
	obj.SetMaxEvaluations(o.Options.MaxEvaluations)

	initPoint := obj.GetInitialPoint()
	initNorm, err := obj.Value(initPoint)
	if err != nil {
		res := o.failureResult(obj, initPoint, math.Inf(1), err, 1, runID)
		res.Elapsed = time.Since(start)
		return res
	}

	logger.Debugw("optimize: start", "runID", runID, "kernel", obj.PreferredKernel().String(),
		"n", obj.Dim(), "initialNorm", initNorm)

	var res OptimizeResult
	if o.useMultiStart(obj) {
		res = o.runMultiStart(obj, initPoint, initNorm, runID, logger)
	} else {
		res = o.runSingleStart(obj, initPoint, initNorm, runID, logger)
	}
	res.Elapsed = time.Since(start)
	res.RunID = runID

	o.reportProgress(logger, "optimize: done", res.Evaluations, res.Elapsed)
	return res
}

func (o *Orchestrator) useMultiStart(obj *Objective) bool {
	return o.Options.NumberOfStarts > 1 || obj.RangeProcessor() != nil
}

func (o *Orchestrator) reportProgress(logger *zap.SugaredLogger, stage string, evals int, elapsed time.Duration) {
	msg := formatProgress(stage, evals, o.Options.MaxEvaluations, elapsed)
	logger.Debugw(stage, "message", msg)
	if o.Options.Progress != nil {
		o.Options.Progress(msg, -1)
	}
}

// kernelOutcome is the uniform shape every per-kernel runner below returns,
// so the dispatch switch in runSingleStart/dispatchLocal stays flat.
type kernelOutcome struct {
	Loc    Location
	Status Status
	Evals  int
	Iters  int
	Err    error
}

func statusForErr(err error) Status {
	if errors.Is(err, ErrCancelled) {
		return Cancelled
	}
	return Failure
}

// objFunc adapts obj.Value to the plain float64 signature every kernel's
// Run method takes, capturing the first evaluator/cancellation error so the
// caller can inspect it once the kernel returns (kernels themselves have no
// error return path, matching the teacher's Problem.Func contract). An error
// is signaled to the kernel as NaN rather than +Inf: DIRECT (and every other
// kernel) already uses +Inf to mean "feasible but worse than anything seen",
// so a distinct sentinel is required for the kernel to tell "evaluator
// failed, unwind now" from "this point is merely bad" and honor the
// cancellation contract of spec §4.9/§5 by returning promptly instead of
// running to its normal stopping point.
func objFunc(obj *Objective) (fn func([]float64) float64, lastErr *error) {
	lastErr = new(error)
	fn = func(x []float64) float64 {
		v, err := obj.Value(x)
		if err != nil {
			*lastErr = err
			return math.NaN()
		}
		return v
	}
	return fn, lastErr
}

func runDirectKernel(obj *Objective, maxEvals int) kernelOutcome {
	fn, lastErr := objFunc(obj)
	d := &DIRECT{AllowDuplicatesInHull: true}
	res := d.Run(fn, obj.Box(), maxEvals)
	if *lastErr != nil {
		return kernelOutcome{res.Location, statusForErr(*lastErr), res.FuncEvaluations, res.MajorIterations, wrapf(*lastErr, "direct")}
	}
	return kernelOutcome{res.Location, res.Status, res.FuncEvaluations, res.MajorIterations, nil}
}

func runBOBYQAKernel(obj *Objective, x0 []float64, delta0 float64, maxEvals int) kernelOutcome {
	if obj.Dim() < 2 {
		return kernelOutcome{Location{X: append([]float64(nil), x0...)}, Failure, 0, 0, ErrBOBYQADimension}
	}
	fn, lastErr := objFunc(obj)
	b := &BOBYQA{Npt: obj.GetNrInterpolations()}
	res := b.Run(fn, obj.Box(), x0, delta0, maxEvals)
	if *lastErr != nil {
		return kernelOutcome{res.Location, statusForErr(*lastErr), res.FuncEvaluations, res.MajorIterations, wrapf(*lastErr, "bobyqa")}
	}
	return kernelOutcome{res.Location, res.Status, res.FuncEvaluations, res.MajorIterations, nil}
}

func runBrentKernel(obj *Objective, x0 []float64, maxEvals int) kernelOutcome {
	fn, lastErr := objFunc(obj)
	box := obj.Box()
	scalar := func(x float64) float64 { return fn([]float64{x}) }
	br := &Brent{RelTol: obj.relTolOrDefault()}
	res := br.Run(scalar, box.Lower[0], box.Upper[0], x0[0], maxEvals)
	if *lastErr != nil {
		return kernelOutcome{res.Location, statusForErr(*lastErr), res.FuncEvaluations, res.MajorIterations, wrapf(*lastErr, "brent")}
	}
	return kernelOutcome{res.Location, res.Status, res.FuncEvaluations, res.MajorIterations, nil}
}

func runCMAESKernel(obj *Objective, x0 []float64, maxEvals int, src *rand.Rand) kernelOutcome {
	fn, lastErr := objFunc(obj)
	c := &CMAES{Src: src}
	res := c.Run(fn, obj.Box(), x0, maxEvals)
	if *lastErr != nil {
		return kernelOutcome{res.Location, statusForErr(*lastErr), res.FuncEvaluations, res.MajorIterations, wrapf(*lastErr, "cmaes")}
	}
	return kernelOutcome{res.Location, res.Status, res.FuncEvaluations, res.MajorIterations, nil}
}

func runSimplexKernel(obj *Objective, x0 []float64, maxEvals int) kernelOutcome {
	fn, lastErr := objFunc(obj)
	s := &Simplex{}
	res := s.Run(fn, obj.Box(), x0, obj.GetSimplexStepSize(x0), maxEvals)
	if *lastErr != nil {
		return kernelOutcome{res.Location, statusForErr(*lastErr), res.FuncEvaluations, res.MajorIterations, wrapf(*lastErr, "simplex")}
	}
	return kernelOutcome{res.Location, res.Status, res.FuncEvaluations, res.MajorIterations, nil}
}

func runPowellKernel(obj *Objective, x0 []float64, maxEvals int) kernelOutcome {
	fn, lastErr := objFunc(obj)
	p := &Powell{}
	res := p.Run(fn, obj.Box(), x0, maxEvals)
	if *lastErr != nil {
		return kernelOutcome{res.Location, statusForErr(*lastErr), res.FuncEvaluations, res.MajorIterations, wrapf(*lastErr, "powell")}
	}
	return kernelOutcome{res.Location, res.Status, res.FuncEvaluations, res.MajorIterations, nil}
}

// runCoordinateDescent is the fallback for an unrecognized kernel tag (spec
// §4.9): adaptive per-dimension step size, ×1.2 on improvement, ×0.5 (and
// reversed) on failure, stopping when every step shrinks below
// 1e-10*max-range.
func runCoordinateDescent(obj *Objective, x0 []float64, maxEvals int) kernelOutcome {
	fn, lastErr := objFunc(obj)
	box := obj.Box()
	n := len(x0)
	x := append([]float64(nil), x0...)
	step := make([]float64, n)
	for i := range step {
		step[i] = 0.1 * box.Range(i)
	}
	fx := fn(x)
	evals := 1
	minStep := 1e-10 * box.maxRange()
	iters := 0
	status := NotTerminated

	if math.IsNaN(fx) {
		return kernelOutcome{Location{X: x, F: fx}, statusForErr(*lastErr), evals, iters, wrapf(*lastErr, "coordinate-descent")}
	}

loop:
	for evals < maxEvals {
		for i := 0; i < n && evals < maxEvals; i++ {
			trial := append([]float64(nil), x...)
			trial[i] += step[i]
			box.ClipInPlace(trial)
			ft := fn(trial)
			evals++
			if math.IsNaN(ft) {
				break loop
			}
			if ft < fx {
				x, fx = trial, ft
				step[i] *= 1.2
			} else {
				step[i] *= -0.5
			}
		}
		iters++
		maxAbsStep := 0.0
		for _, s := range step {
			if a := math.Abs(s); a > maxAbsStep {
				maxAbsStep = a
			}
		}
		if maxAbsStep < minStep {
			status = Converged
			break
		}
	}
	if *lastErr != nil {
		return kernelOutcome{Location{X: x, F: fx}, statusForErr(*lastErr), evals, iters, wrapf(*lastErr, "coordinate-descent")}
	}
	if status == NotTerminated {
		status = FuncEvaluationLimit
	}
	return kernelOutcome{Location{X: x, F: fx}, status, evals, iters, nil}
}

// runDirectPipeline implements the DIRECT-preferred single-start dispatch
// (spec §4.9): half the budget exploring with DIRECT (through the
// first-stage evaluator if one is set), then a BOBYQA refinement from
// DIRECT's best point, keeping whichever result is lower.
func (o *Orchestrator) runDirectPipeline(obj *Objective, maxEvals int, logger *zap.SugaredLogger) kernelOutcome {
	half := maxEvals / 2
	restore := obj.UseFirstStage()
	logger.Debugw("stage: direct-explore", "budget", half)
	direct := runDirectKernel(obj, half)
	restore()
	if direct.Err != nil {
		return direct
	}

	logger.Debugw("stage: bobyqa-refine", "budget", maxEvals-direct.Evals)
	delta0 := obj.GetInitialTrustRegionRadius()
	bobyqa := runBOBYQAKernel(obj, direct.Loc.X, delta0, maxEvals-direct.Evals)
	total := direct.Evals + bobyqa.Evals
	totalIters := direct.Iters + bobyqa.Iters
	if errors.Is(bobyqa.Err, ErrCancelled) {
		bobyqa.Evals, bobyqa.Iters = total, totalIters
		return bobyqa
	}
	if bobyqa.Err != nil {
		direct.Evals, direct.Iters = total, totalIters
		return direct
	}
	if bobyqa.Loc.F < direct.Loc.F {
		bobyqa.Evals, bobyqa.Iters = total, totalIters
		return bobyqa
	}
	direct.Evals, direct.Iters = total, totalIters
	return direct
}

// runBOBYQAPipeline implements the BOBYQA-preferred single-start dispatch
// (spec §4.9): when a first-stage evaluator is attached, run BOBYQA through
// it on half the budget, push its point into the domain, then re-run BOBYQA
// with the final evaluator from the refreshed initial point.
func (o *Orchestrator) runBOBYQAPipeline(obj *Objective, x0 []float64, maxEvals int, logger *zap.SugaredLogger) kernelOutcome {
	delta0 := obj.GetInitialTrustRegionRadius()
	if !obj.HasFirstStage() {
		return runBOBYQAKernel(obj, x0, delta0, maxEvals)
	}

	half := maxEvals / 2
	restore := obj.UseFirstStage()
	logger.Debugw("stage: bobyqa-first-stage", "budget", half)
	first := runBOBYQAKernel(obj, x0, delta0, half)
	restore()
	if first.Err != nil {
		return first
	}

	obj.WriteGeometry(first.Loc.X)
	refreshed := obj.GetInitialPoint()
	logger.Debugw("stage: bobyqa-final-stage", "budget", maxEvals-first.Evals)
	final := runBOBYQAKernel(obj, refreshed, delta0, maxEvals-first.Evals)
	final.Evals += first.Evals
	final.Iters += first.Iters
	return final
}

// dispatchLocal runs the objective's preferred *local* kernel — DIRECT is
// never reachable here, matching the multi-start rule that DIRECT runs at
// most once, outside the per-start loop (spec §4.9).
func (o *Orchestrator) dispatchLocal(obj *Objective, x0 []float64, maxEvals int) kernelOutcome {
	n := obj.Dim()
	switch obj.PreferredKernel() {
	case KernelBrent:
		if n == 1 {
			return runBrentKernel(obj, x0, maxEvals)
		}
		delta0 := obj.GetInitialTrustRegionRadius()
		return runBOBYQAKernel(obj, x0, delta0, maxEvals)
	case KernelCMAES:
		return runCMAESKernel(obj, x0, maxEvals, o.Options.Src)
	case KernelSimplex:
		return runSimplexKernel(obj, x0, maxEvals)
	case KernelPowell:
		return runPowellKernel(obj, x0, maxEvals)
	case KernelBOBYQA, KernelDIRECT:
		delta0 := obj.GetInitialTrustRegionRadius()
		return runBOBYQAKernel(obj, x0, delta0, maxEvals)
	default:
		return runCoordinateDescent(obj, x0, maxEvals)
	}
}

func (o *Orchestrator) runSingleStart(obj *Objective, initPoint []float64, initNorm float64, runID string, logger *zap.SugaredLogger) OptimizeResult {
	kernel := obj.PreferredKernel()
	if o.Options.ForceDirect {
		kernel = KernelDIRECT
	}
	n := obj.Dim()
	maxEvals := o.Options.MaxEvaluations

	var out kernelOutcome
	switch {
	case kernel == KernelDIRECT:
		out = o.runDirectPipeline(obj, maxEvals, logger)
	case kernel == KernelBOBYQA:
		out = o.runBOBYQAPipeline(obj, initPoint, maxEvals, logger)
	case kernel == KernelBrent && n == 1:
		out = runBrentKernel(obj, initPoint, maxEvals)
	case kernel == KernelBrent:
		out = o.runBOBYQAPipeline(obj, initPoint, maxEvals, logger)
	case kernel == KernelCMAES:
		out = runCMAESKernel(obj, initPoint, maxEvals, o.Options.Src)
	case kernel == KernelSimplex:
		out = runSimplexKernel(obj, initPoint, maxEvals)
	case kernel == KernelPowell:
		out = runPowellKernel(obj, initPoint, maxEvals)
	default:
		out = runCoordinateDescent(obj, initPoint, maxEvals)
	}

	if out.Err != nil {
		return o.failureResult(obj, initPoint, initNorm, out.Err, out.Evals, runID)
	}
	return o.successResult(initNorm, out, 1)
}

// runMultiStart implements the multi-start dispatch of spec §4.9.
func (o *Orchestrator) runMultiStart(obj *Objective, initPoint []float64, initNorm float64, runID string, logger *zap.SugaredLogger) OptimizeResult {
	box := obj.Box()
	maxEvals := o.Options.MaxEvaluations
	budget := maxEvals
	totalEvals, totalIters := 0, 0
	seed := append([]float64(nil), initPoint...)
	twoStage := obj.HasFirstStage()

	if o.Options.ForceDirect {
		directBudget := int(0.25 * float64(maxEvals))
		bobyqaBudget := int(0.125 * float64(maxEvals))
		restore := func() {}
		if twoStage {
			restore = obj.UseFirstStage()
		}
		logger.Debugw("stage: multistart-direct-seed", "budget", directBudget)
		direct := runDirectKernel(obj, directBudget)
		restore()
		totalEvals += direct.Evals
		totalIters += direct.Iters
		if direct.Err != nil {
			return o.failureResult(obj, initPoint, initNorm, direct.Err, totalEvals, runID)
		}

		delta0 := obj.GetInitialTrustRegionRadius()
		bobyqa := runBOBYQAKernel(obj, direct.Loc.X, delta0, bobyqaBudget)
		totalEvals += bobyqa.Evals
		totalIters += bobyqa.Iters
		if errors.Is(bobyqa.Err, ErrCancelled) {
			return o.failureResult(obj, initPoint, initNorm, bobyqa.Err, totalEvals, runID)
		}
		if bobyqa.Err == nil && bobyqa.Loc.F < direct.Loc.F {
			seed = bobyqa.Loc.X
		} else {
			seed = direct.Loc.X
		}
		budget -= direct.Evals + bobyqa.Evals
	}

	numStarts := o.Options.NumberOfStarts
	if numStarts < 1 {
		numStarts = 30
	}

	rp := obj.RangeProcessor()
	if rp == nil {
		var err error
		rp, err = NewRangeProcessor(o.Options.Strategy, box.Lower, box.Upper, o.Options.VaryingDims, numStarts, o.Options.Src)
		if err != nil {
			return o.failureResult(obj, initPoint, initNorm, err, totalEvals, runID)
		}
	}
	rp.SetStaticValues(seed)

	restoreFirst := func() {}
	if twoStage {
		restoreFirst = obj.UseFirstStage()
	}

	perStart := budget / numStarts
	if perStart < 1 {
		perStart = 1
	}

	var kept []kernelOutcome
	for i := 0; i < numStarts; i++ {
		x0 := rp.NextVector()
		if x0 == nil {
			break
		}
		box.ClipInPlace(x0)
		logger.Debugw("stage: multistart-local", "start", i, "budget", perStart)
		out := o.dispatchLocal(obj, x0, perStart)
		totalEvals += out.Evals
		totalIters += out.Iters
		if out.Err != nil {
			if errors.Is(out.Err, ErrCancelled) {
				restoreFirst()
				return o.failureResult(obj, initPoint, initNorm, out.Err, totalEvals, runID)
			}
			continue
		}
		kept = append(kept, out)
	}
	restoreFirst()

	if len(kept) == 0 {
		return o.failureResult(obj, initPoint, initNorm, ErrEvaluatorFailed, totalEvals, runID)
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Loc.F < kept[j].Loc.F })
	best := kept[0]

	if twoStage {
		refineBudget := perStart / 2
		if refineBudget < 1 {
			refineBudget = 1
		}
		refined := o.dispatchLocal(obj, best.Loc.X, refineBudget)
		totalEvals += refined.Evals
		totalIters += refined.Iters
		if errors.Is(refined.Err, ErrCancelled) {
			return o.failureResult(obj, initPoint, initNorm, refined.Err, totalEvals, runID)
		}
		if refined.Err == nil && refined.Loc.F < best.Loc.F {
			best = refined
		}
	}

	best.Evals, best.Iters = totalEvals, totalIters
	return o.successResult(initNorm, best, len(kept))
}

func (o *Orchestrator) successResult(initNorm float64, out kernelOutcome, tunings int) OptimizeResult {
	finalNorm := out.Loc.F
	return OptimizeResult{
		Success:            true,
		Point:              out.Loc.X,
		InitialNorm:        initNorm,
		FinalNorm:          finalNorm,
		ResidualErrorRatio: ratio(finalNorm, initNorm),
		Evaluations:        out.Evals,
		Tunings:            tunings,
	}
}

// failureResult builds the failure record spec §7 describes: cancellation
// keeps the best point the objective ever saw, any other failure reports
// the initial clipped point with finalNorm = +Inf (spec §6, §7).
func (o *Orchestrator) failureResult(obj *Objective, initPoint []float64, initNorm float64, err error, evals int, runID string) OptimizeResult {
	point := append([]float64(nil), initPoint...)
	finalNorm := math.Inf(1)
	if errors.Is(err, ErrCancelled) {
		if best := obj.BestPoint(); best != nil {
			point = best
			finalNorm = obj.BestValue()
		}
	}
	return OptimizeResult{
		Success:            false,
		Point:              point,
		InitialNorm:        initNorm,
		FinalNorm:          finalNorm,
		ResidualErrorRatio: ratio(finalNorm, initNorm),
		Evaluations:        evals,
		Error:              err.Error(),
		RunID:              runID,
	}
}

func ratio(finalNorm, initNorm float64) float64 {
	if initNorm == 0 {
		return 0
	}
	return finalNorm / initNorm
}

// relTolOrDefault is a small seam so Brent's tolerance can later be wired to
// Options.ConvergenceThreshold per objective; today it returns the kernel
// default (0 triggers Brent's own 1e-6 fallback).
func (o *Objective) relTolOrDefault() float64 { return 0 }
