package optimize

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Powell implements Powell's conjugate-direction method: repeated
// bound-clipped line minimizations along a set of directions that is
// updated by the net-displacement direction when Powell's criterion is
// satisfied (spec §4.7). Line searches are delegated to Brent.
type Powell struct {
	AbsTol, RelTol float64
}

// Run minimizes f from x0 inside box.
func (p *Powell) Run(f func([]float64) float64, box Box, x0 []float64, maxEvals int) Result {
	n := len(x0)
	absTol, relTol := p.AbsTol, p.RelTol
	if absTol == 0 {
		absTol = 1e-14
	}
	if relTol == 0 {
		relTol = 1e-6
	}

	dirs := make([][]float64, n)
	for i := range dirs {
		dirs[i] = make([]float64, n)
		dirs[i][i] = 1
	}

	x := append([]float64(nil), x0...)
	box.ClipInPlace(x)
	evals := 0
	fx := f(x)
	evals++
	if math.IsNaN(fx) {
		return Result{Location: Location{X: x, F: fx}, Stats: Stats{FuncEvaluations: evals}, Status: NotTerminated}
	}

	conv := &FunctionConverge{Absolute: absTol, Relative: relTol, Iterations: 1}
	conv.Init(fx)

	xStart := make([]float64, n)
	xExtrap := make([]float64, n)
	iters := 0
	status := NotTerminated
	cancelled := false

loop:
	for evals < maxEvals {
		copy(xStart, x)
		fStart := fx
		biggestDecrease := 0.0
		biggestIdx := 0

		for i, dir := range dirs {
			if evals >= maxEvals {
				break
			}
			fBefore := fx
			newX, newF, _ := lineMinimize(f, box, x, dir, &evals, maxEvals)
			copy(x, newX)
			fx = newF
			if math.IsNaN(fx) {
				cancelled = true
				break loop
			}
			if fBefore-fx > biggestDecrease {
				biggestDecrease = fBefore - fx
				biggestIdx = i
			}
		}
		iters++

		status = conv.FunctionConverged(fx)
		if status != NotTerminated {
			break
		}
		if evals >= maxEvals {
			break
		}

		// Net-displacement direction and Powell's criterion.
		for i := range xExtrap {
			xExtrap[i] = 2*x[i] - xStart[i]
		}
		box.ClipInPlace(xExtrap)
		fExtrap := f(xExtrap)
		evals++
		if math.IsNaN(fExtrap) {
			cancelled = true
			break loop
		}

		if fExtrap < fStart {
			t := 2 * (fStart - 2*fx + fExtrap) * sq(fStart-fx-biggestDecrease)
			t -= biggestDecrease * sq(fStart-fExtrap)
			if t < 0 {
				newDir := make([]float64, n)
				floats.SubTo(newDir, x, xStart)
				newX, newF, _ := lineMinimize(f, box, x, newDir, &evals, maxEvals)
				copy(x, newX)
				fx = newF
				if math.IsNaN(fx) {
					cancelled = true
					break loop
				}
				dirs[biggestIdx] = dirs[len(dirs)-1]
				dirs[len(dirs)-1] = newDir
			}
		}
	}
	if cancelled {
		status = NotTerminated
	} else if status == NotTerminated {
		status = FuncEvaluationLimit
	}

	return Result{
		Location: Location{X: x, F: fx},
		Stats:    Stats{FuncEvaluations: evals, MajorIterations: iters},
		Status:   status,
	}
}

// lineMinimize performs a bound-clipped 1-D minimization of f(x + t*dir)
// over t using Brent, returning the new point and value.
func lineMinimize(f func([]float64) float64, box Box, x, dir []float64, evals *int, maxEvals int) ([]float64, float64, int) {
	n := len(x)
	tLo, tHi := lineBoxLimits(box, x, dir)
	if tLo == tHi {
		return append([]float64(nil), x...), f(x), *evals
	}

	pt := make([]float64, n)
	sawNaN := false
	wrap := func(t float64) float64 {
		for i := range pt {
			pt[i] = x[i] + t*dir[i]
		}
		box.ClipInPlace(pt)
		v := f(pt)
		*evals++
		if math.IsNaN(v) {
			sawNaN = true
		}
		return v
	}

	br := &Brent{}
	budget := maxEvals - *evals
	if budget <= 0 {
		return append([]float64(nil), x...), f(x), *evals
	}
	res := br.Run(wrap, tLo, tHi, 0, budget)
	if sawNaN {
		// Brent reports its last finite value when f returns NaN; pass the
		// cancellation sentinel on to Run instead.
		return append([]float64(nil), x...), math.NaN(), *evals
	}
	tBest := res.X[0]

	out := make([]float64, n)
	for i := range out {
		out[i] = x[i] + tBest*dir[i]
	}
	box.ClipInPlace(out)
	return out, res.F, *evals
}

// lineBoxLimits finds [tLo, tHi] such that x + t*dir stays within box for
// every component with a nonzero direction.
func lineBoxLimits(box Box, x, dir []float64) (float64, float64) {
	tLo, tHi := -1e6, 1e6
	for i, d := range dir {
		if d == 0 {
			continue
		}
		t1 := (box.Lower[i] - x[i]) / d
		t2 := (box.Upper[i] - x[i]) / d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tLo {
			tLo = t1
		}
		if t2 < tHi {
			tHi = t2
		}
	}
	if tLo > tHi {
		tLo, tHi = 0, 0
	}
	return tLo, tHi
}

func sq(x float64) float64 { return x * x }
