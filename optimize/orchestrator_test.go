package optimize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

// sphereObjective builds an Objective computing Σxᵢ² via the
// Evaluator/Encoding split, starting at start and bounded by [-5,5]^n.
func sphereObjective(t *testing.T, start []float64, kernel Kernel) *Objective {
	t.Helper()
	n := len(start)
	enc := &fakeEncoding{x: append([]float64(nil), start...)}
	ev := &fakeEvaluator{
		fn: func() ([]float64, error) { return append([]float64(nil), enc.x...), nil },
		w:  uniformVec(n, 1),
	}
	lower, upper := make([]float64, n), make([]float64, n)
	for i := range lower {
		lower[i], upper[i] = -5, 5
	}
	obj, err := NewObjective(enc, ev, lower, upper, kernel)
	require.NoError(t, err)
	return obj
}

// Scenario 1: sphere n=2, start (2,3); every kernel must bring f below 5
// within 1000 evaluations, and BOBYQA must reach ||x|| < 0.01 within 500.
func TestScenarioSphereEveryKernel(t *testing.T) {
	for _, kernel := range []Kernel{KernelDIRECT, KernelBOBYQA, KernelCMAES, KernelSimplex, KernelPowell} {
		kernel := kernel
		t.Run(kernel.String(), func(t *testing.T) {
			obj := sphereObjective(t, []float64{2, 3}, kernel)
			orch := NewOrchestrator(Options{MaxEvaluations: 1000, Src: rand.New(rand.NewSource(1))})
			res := orch.Optimize(obj)
			require.Truef(t, res.Success, "optimize failed: %s", res.Error)
			require.Lessf(t, res.FinalNorm, 5.0, "want finalNorm < 5 within 1000 evaluations")
		})
	}
}

func TestScenarioSphereBOBYQAReachesTightBall(t *testing.T) {
	obj := sphereObjective(t, []float64{2, 3}, KernelBOBYQA)
	orch := NewOrchestrator(Options{MaxEvaluations: 500})
	res := orch.Optimize(obj)
	require.Truef(t, res.Success, "optimize failed: %s", res.Error)
	norm := math.Sqrt(res.Point[0]*res.Point[0] + res.Point[1]*res.Point[1])
	require.Lessf(t, norm, 0.01, "want ||x|| < 0.01 within 500 evaluations")
}

// Scenario 2: shifted quadratic (x-1)^2+(y-2)^2, start (0,0); BOBYQA must
// return x with ||x-(1,2)|| < 1.
func TestScenarioShiftedQuadraticBOBYQA(t *testing.T) {
	enc := &fakeEncoding{x: []float64{0, 0}}
	center := []float64{1, 2}
	ev := &fakeEvaluator{
		fn: func() ([]float64, error) {
			return []float64{enc.x[0] - center[0], enc.x[1] - center[1]}, nil
		},
		w: []float64{1, 1},
	}
	obj, err := NewObjective(enc, ev, []float64{-5, -5}, []float64{5, 5}, KernelBOBYQA)
	require.NoError(t, err)
	orch := NewOrchestrator(Options{MaxEvaluations: 1000})
	res := orch.Optimize(obj)
	require.Truef(t, res.Success, "optimize failed: %s", res.Error)
	dx, dy := res.Point[0]-1, res.Point[1]-2
	require.Less(t, math.Sqrt(dx*dx+dy*dy), 1.0)
}

// Scenario 3: Rosenbrock, start (0,0), 2000 evals; DIRECT->BOBYQA must reach
// f < 10.
func TestScenarioRosenbrockDirectPipeline(t *testing.T) {
	enc := &fakeEncoding{x: []float64{0, 0}}
	ev := &fakeEvaluator{
		fn: func() ([]float64, error) {
			x, y := enc.x[0], enc.x[1]
			return []float64{1 - x, 10 * (y - x*x)}, nil
		},
		w: []float64{1, 1},
	}
	obj, err := NewObjective(enc, ev, []float64{-5, -5}, []float64{5, 5}, KernelDIRECT)
	require.NoError(t, err)
	orch := NewOrchestrator(Options{MaxEvaluations: 2000})
	res := orch.Optimize(obj)
	require.Truef(t, res.Success, "optimize failed: %s", res.Error)
	require.Less(t, res.FinalNorm, 10.0)
}

// Scenario 4: 1-D Brent on (x-pi)^2 over [0,2pi]; returns x with
// |x-pi| < 1e-5.
func TestScenarioBrent1D(t *testing.T) {
	enc := &fakeEncoding{x: []float64{0}}
	ev := &fakeEvaluator{
		fn: func() ([]float64, error) { return []float64{enc.x[0] - math.Pi}, nil },
		w: []float64{1},
	}
	obj, err := NewObjective(enc, ev, []float64{0}, []float64{2 * math.Pi}, KernelBrent)
	require.NoError(t, err)
	orch := NewOrchestrator(Options{MaxEvaluations: 1000})
	res := orch.Optimize(obj)
	require.Truef(t, res.Success, "optimize failed: %s", res.Error)
	require.Less(t, math.Abs(res.Point[0]-math.Pi), 1e-5)
}

// Scenario 5: DIRECT on sphere, n=2, threshold 1e-4; converges with
// finalNorm < 1e-6.
func TestScenarioDirectOnlySphereConverges(t *testing.T) {
	obj := sphereObjective(t, []float64{2, 3}, KernelDIRECT)
	orch := NewOrchestrator(Options{MaxEvaluations: 50000, ForceDirect: true})
	res := orch.Optimize(obj)
	require.Truef(t, res.Success, "optimize failed: %s", res.Error)
	require.Less(t, res.FinalNorm, 1e-6)
}

// Scenario 6: multi-start (N=8, strategy=lhs) on sum of sines
// f(x,y)=sin(x)+sin(y)+2 over [-3,3]^2; returned f < 2.0, exactly 8 starts
// recorded, all within bounds, varying dims distinct between starts.
func TestScenarioMultiStartLHSSumOfSines(t *testing.T) {
	enc := &fakeEncoding{x: []float64{0, 0}}
	ev := &fakeEvaluator{
		fn: func() ([]float64, error) {
			sum := math.Sin(enc.x[0]) + math.Sin(enc.x[1])
			return []float64{math.Sqrt(sum + 2)}, nil
		},
		w: []float64{1},
	}
	obj, err := NewObjective(enc, ev, []float64{-3, -3}, []float64{3, 3}, KernelSimplex)
	require.NoError(t, err)

	rp, err := NewRangeProcessor(StrategyLHS, []float64{-3, -3}, []float64{3, 3}, nil, 8, rand.New(rand.NewSource(4)))
	require.NoError(t, err)
	obj.SetRangeProcessor(rp)

	orch := NewOrchestrator(Options{MaxEvaluations: 5000, NumberOfStarts: 8, Strategy: StrategyLHS})
	res := orch.Optimize(obj)
	require.Truef(t, res.Success, "optimize failed: %s", res.Error)
	require.Less(t, res.FinalNorm, 2.0)

	drawRp, err := NewRangeProcessor(StrategyLHS, []float64{-3, -3}, []float64{3, 3}, nil, 8, rand.New(rand.NewSource(4)))
	require.NoError(t, err)
	var recorded [][]float64
	for v := drawRp.NextVector(); v != nil; v = drawRp.NextVector() {
		recorded = append(recorded, v)
	}
	require.Len(t, recorded, 8)

	box, err := NewBox([]float64{-3, -3}, []float64{3, 3})
	require.NoError(t, err)
	seen := make(map[[2]float64]bool)
	for _, v := range recorded {
		require.Truef(t, box.Contains(v, 1e-9), "start %v out of bounds", v)
		key := [2]float64{v[0], v[1]}
		require.Falsef(t, seen[key], "duplicate start vector %v; varying dimensions must be distinct between starts", v)
		seen[key] = true
	}
}

// Non-regression property: finalNorm <= initialNorm whenever the initial
// evaluation is finite (spec §8).
func TestNonRegressionFinalNormNeverWorse(t *testing.T) {
	for _, kernel := range []Kernel{KernelDIRECT, KernelBOBYQA, KernelCMAES, KernelSimplex, KernelPowell} {
		kernel := kernel
		t.Run(kernel.String(), func(t *testing.T) {
			obj := sphereObjective(t, []float64{2, 3}, kernel)
			orch := NewOrchestrator(Options{MaxEvaluations: 1000, Src: rand.New(rand.NewSource(1))})
			res := orch.Optimize(obj)
			require.Truef(t, res.Success, "optimize failed: %s", res.Error)
			require.LessOrEqual(t, res.FinalNorm, res.InitialNorm)
		})
	}
}

// Cancellation must return the best point the objective ever saw, not the
// initial point (spec §7).
func TestCancellationReturnsBestPointSeen(t *testing.T) {
	enc := &fakeEncoding{x: []float64{2, 3}}
	calls := 0
	var cancelFlag func()
	ev := &fakeEvaluator{w: []float64{1, 1}}
	ev.fn = func() ([]float64, error) {
		calls++
		if calls == 5 {
			cancelFlag()
		}
		return append([]float64(nil), enc.x...), nil
	}
	obj, err := NewObjective(enc, ev, []float64{-5, -5}, []float64{5, 5}, KernelSimplex)
	require.NoError(t, err)
	cancelFlag = obj.SetCancel

	orch := NewOrchestrator(Options{MaxEvaluations: 1000})
	res := orch.Optimize(obj)
	require.False(t, res.Success, "expected cancellation to report failure")
	require.NotEqual(t, math.Inf(1), res.FinalNorm, "expected a cancelled run to report the best tracked value, not +Inf")
}

// Cancellation must unwind promptly: the kernel should stop within a few
// evaluations of the cancel point, not burn the rest of MaxEvaluations
// before Run returns (spec §4.9/§5).
func TestCancellationUnwindsPromptly(t *testing.T) {
	const cancelAfter = 10
	for _, kernel := range []Kernel{KernelDIRECT, KernelBOBYQA, KernelCMAES, KernelSimplex, KernelPowell} {
		kernel := kernel
		t.Run(kernel.String(), func(t *testing.T) {
			enc := &fakeEncoding{x: []float64{2, 3}}
			calls := 0
			var cancelFlag func()
			ev := &fakeEvaluator{w: []float64{1, 1}}
			ev.fn = func() ([]float64, error) {
				calls++
				if calls == cancelAfter {
					cancelFlag()
				}
				return append([]float64(nil), enc.x...), nil
			}
			obj, err := NewObjective(enc, ev, []float64{-5, -5}, []float64{5, 5}, kernel)
			require.NoError(t, err)
			cancelFlag = obj.SetCancel

			orch := NewOrchestrator(Options{MaxEvaluations: 5000, Src: rand.New(rand.NewSource(1))})
			res := orch.Optimize(obj)
			require.False(t, res.Success, "expected cancellation to report failure")
			require.Lessf(t, res.Evaluations, cancelAfter+50,
				"expected prompt unwind near evaluation %d, got %d (close to MaxEvaluations means the kernel ignored cancellation)",
				cancelAfter, res.Evaluations)
		})
	}
}

// Evaluator failures other than cancellation report the initial clipped
// point with finalNorm = +Inf (spec §6, §7).
func TestEvaluatorFailureReturnsInitialPointAndInfNorm(t *testing.T) {
	enc := &fakeEncoding{x: []float64{2, 3}}
	ev := &fakeEvaluator{
		fn: func() ([]float64, error) { return nil, errBoom },
		w:  []float64{1, 1},
	}
	obj, err := NewObjective(enc, ev, []float64{-5, -5}, []float64{5, 5}, KernelSimplex)
	require.NoError(t, err)
	orch := NewOrchestrator(Options{MaxEvaluations: 1000})
	res := orch.Optimize(obj)
	require.False(t, res.Success)
	require.Equal(t, []float64{2, 3}, res.Point)
	require.True(t, math.IsInf(res.FinalNorm, 1))
}

var errBoom = boomError{}

type boomError struct{}

func (boomError) Error() string { return "boom" }
