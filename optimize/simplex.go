package optimize

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Standard Nelder-Mead coefficients (spec §4.6).
const (
	nmReflect  = 1.0
	nmExpand   = 2.0
	nmContract = 0.5
	nmShrink   = 0.5
)

// Simplex implements the Nelder-Mead simplex method with bound clipping.
type Simplex struct {
	AbsTol, RelTol float64
}

type simplexVertex struct {
	x []float64
	f float64
}

// Run drives Nelder-Mead from x0 within box, evaluating f (already reduced
// to a scalar) at most maxEvals times. step gives the per-dimension initial
// simplex edge length (spec §4.1 getSimplexStepSize).
func (s *Simplex) Run(f func([]float64) float64, box Box, x0, step []float64, maxEvals int) Result {
	n := len(x0)
	absTol, relTol := s.AbsTol, s.RelTol
	if absTol == 0 {
		absTol = 1e-14
	}
	if relTol == 0 {
		relTol = 1e-6
	}

	verts := make([]simplexVertex, n+1)
	verts[0] = simplexVertex{x: append([]float64(nil), x0...)}
	verts[0].x = box.Clip(verts[0].x, verts[0].x)
	verts[0].f = f(verts[0].x)
	evals := 1
	iters := 0
	if math.IsNaN(verts[0].f) {
		return Result{Location: Location{X: verts[0].x, F: verts[0].f}, Stats: Stats{FuncEvaluations: evals}, Status: NotTerminated}
	}

	for i := 0; i < n; i++ {
		x := append([]float64(nil), x0...)
		x[i] += step[i]
		x = box.Clip(x, x)
		fx := f(x)
		evals++
		verts[i+1] = simplexVertex{x: x, f: fx}
		if math.IsNaN(fx) {
			sortSimplex(verts[:i+2])
			return Result{Location: Location{X: verts[0].x, F: verts[0].f}, Stats: Stats{FuncEvaluations: evals}, Status: NotTerminated}
		}
	}
	sortSimplex(verts)

	reflectPt := make([]float64, n)
	expandPt := make([]float64, n)
	contractPt := make([]float64, n)
	centroid := make([]float64, n)

	status := NotTerminated
	cancelled := false
loop:
	for evals < maxEvals {
		computeCentroid(centroid, verts)

		best := verts[0].f
		worst := verts[n].f
		secondWorst := verts[n-1].f

		// Reflection.
		for i := range reflectPt {
			reflectPt[i] = centroid[i] + nmReflect*(centroid[i]-verts[n].x[i])
		}
		box.ClipInPlace(reflectPt)
		fr := f(reflectPt)
		evals++
		if math.IsNaN(fr) {
			cancelled = true
			break loop
		}

		switch {
		case fr < best:
			// Expansion.
			for i := range expandPt {
				expandPt[i] = centroid[i] + nmExpand*(reflectPt[i]-centroid[i])
			}
			box.ClipInPlace(expandPt)
			fe := f(expandPt)
			evals++
			if math.IsNaN(fe) {
				cancelled = true
				break loop
			}
			if fe < fr {
				replaceWorst(verts, expandPt, fe)
			} else {
				replaceWorst(verts, reflectPt, fr)
			}
		case fr < secondWorst:
			replaceWorst(verts, reflectPt, fr)
		default:
			// Contraction.
			useOutside := fr < worst
			for i := range contractPt {
				if useOutside {
					contractPt[i] = centroid[i] + nmContract*(reflectPt[i]-centroid[i])
				} else {
					contractPt[i] = centroid[i] + nmContract*(verts[n].x[i]-centroid[i])
				}
			}
			box.ClipInPlace(contractPt)
			fc := f(contractPt)
			evals++
			if math.IsNaN(fc) {
				cancelled = true
				break loop
			}
			if (useOutside && fc <= fr) || (!useOutside && fc < worst) {
				replaceWorst(verts, contractPt, fc)
			} else {
				// Shrink toward the best vertex.
				for i := 1; i <= n; i++ {
					for j := range verts[i].x {
						verts[i].x[j] = verts[0].x[j] + nmShrink*(verts[i].x[j]-verts[0].x[j])
					}
					box.ClipInPlace(verts[i].x)
					verts[i].f = f(verts[i].x)
					evals++
					if math.IsNaN(verts[i].f) {
						cancelled = true
						break loop
					}
					if evals >= maxEvals {
						break
					}
				}
			}
		}

		sortSimplex(verts)
		iters++

		// Converged once the spread between worst and best vertex values
		// falls below the absolute/relative tolerance.
		if verts[n].f-verts[0].f < absTol+relTol*math.Abs(verts[0].f) {
			status = FunctionConvergence
			break
		}
	}
	if cancelled {
		status = NotTerminated
	} else if status == NotTerminated {
		status = FuncEvaluationLimit
	}

	return Result{
		Location: Location{X: append([]float64(nil), verts[0].x...), F: verts[0].f},
		Stats:    Stats{FuncEvaluations: evals, MajorIterations: iters},
		Status:   status,
	}
}

func sortSimplex(v []simplexVertex) {
	sort.Slice(v, func(i, j int) bool { return v[i].f < v[j].f })
}

func computeCentroid(dst []float64, v []simplexVertex) {
	n := len(v) - 1
	for i := range dst {
		dst[i] = 0
	}
	for i := 0; i < n; i++ {
		floats.AddTo(dst, dst, v[i].x)
	}
	floats.Scale(1/float64(n), dst)
}

func replaceWorst(v []simplexVertex, x []float64, fx float64) {
	last := len(v) - 1
	copy(v[last].x, x)
	v[last].f = fx
}
