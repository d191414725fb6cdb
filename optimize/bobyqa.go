package optimize

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ValidateBOBYQA checks the dimension and interpolation-count constraints of
// spec §4.3: n >= 2 and npt in [n+2, (n+1)(n+2)/2]. npt == 0 means "use the
// default 2n+1" and always validates.
func ValidateBOBYQA(n, npt int) error {
	if n < 2 {
		return ErrBOBYQADimension
	}
	if npt == 0 {
		return nil
	}
	min, max := n+2, (n+1)*(n+2)/2
	if npt < min || npt > max {
		return ErrInvalidNPT
	}
	return nil
}

// BOBYQA is a bound-constrained local trust-region solver driven by a
// quadratic interpolation model (spec §4.3). Per the teacher's preference
// for linear-algebra operations over gonum/mat (seen in cmaes.go's
// EigenSym use), the model's gradient and Hessian are refit by least
// squares whenever the interpolation set changes, rather than maintained
// incrementally through explicit B/Z update matrices — the simplification
// spec §9 explicitly allows.
type BOBYQA struct {
	// Npt is the interpolation point count; 0 selects the default 2n+1.
	Npt int
}

// Run minimizes f from x0 inside box, seeding the trust region at delta0
// (spec §4.1 GetInitialTrustRegionRadius) with stopping radius rho =
// 1e-8*delta0 (spec §4.3).
func (b *BOBYQA) Run(f func([]float64) float64, box Box, x0 []float64, delta0 float64, maxEvals int) Result {
	n := box.Dim()
	npt := b.Npt
	if npt == 0 {
		npt = 2*n + 1
	}
	if min := n + 2; npt < min {
		npt = min
	}
	if max := (n + 1) * (n + 2) / 2; npt > max {
		npt = max
	}

	rho := 1e-8 * delta0
	if rho <= 0 {
		rho = 1e-12
	}
	delta := delta0

	xBase := box.Clip(nil, x0)
	xs, fs, evals, seedCancelled := seedInterpolationSet(f, box, xBase, delta0, npt)
	if seedCancelled {
		bestIdx := argminFloats(fs)
		return Result{
			Location: Location{X: append([]float64(nil), xBase...), F: fs[bestIdx]},
			Stats:    Stats{FuncEvaluations: evals},
			Status:   NotTerminated,
		}
	}

	bestIdx := argminFloats(fs)
	recenter(xBase, xs, bestIdx)
	g, h := fitQuadraticModel(xs, fs, n)

	iters := 0
	status := NotTerminated
	cancelled := false
loop:
	for evals < maxEvals {
		if delta <= rho {
			status = Converged
			break
		}

		d := solveTrustRegionSubproblem(g, h, n, delta, box, xBase)
		if floats.Norm(d, 2) < 0.5*rho {
			delta = math.Max(rho, 0.5*delta)
			iters++
			continue
		}

		xNew := addVec(xBase, d)
		box.ClipInPlace(xNew)
		dClipped := subVec(xNew, xBase)

		fNew := f(xNew)
		evals++
		if math.IsNaN(fNew) {
			cancelled = true
			break loop
		}

		predicted := -floats.Dot(g, dClipped) - 0.5*quadForm(h, dClipped, n)
		actual := fs[bestIdx] - fNew
		var ratio float64
		if math.Abs(predicted) < 1e-10 {
			if actual > 0 {
				ratio = 1
			} else {
				ratio = 0
			}
		} else {
			ratio = actual / predicted
		}

		switch {
		case ratio < 0.1:
			delta = math.Max(rho, 0.5*delta)
		case ratio > 0.7 && floats.Norm(dClipped, 2) > 0.99*delta:
			delta = math.Min(2*delta, distanceToNearestBound(box, xBase))
		}

		farIdx := farthestIndex(xs, bestIdx)
		if actual > 0 {
			rebuild := actual > 0.1*fs[bestIdx] || floats.Norm(dClipped, 2) > 0.5*delta
			xs[farIdx] = dClipped
			fs[farIdx] = fNew
			bestIdx = farIdx
			recenter(xBase, xs, bestIdx)

			if rebuild && evals < maxEvals {
				fresh := buildLocalPoints(n, box, xBase, delta, npt)
				for i := range xs {
					if i == bestIdx {
						continue
					}
					if evals >= maxEvals {
						break
					}
					real := addVec(xBase, fresh[i])
					box.ClipInPlace(real)
					xs[i] = subVec(real, xBase)
					fs[i] = f(real)
					evals++
					if math.IsNaN(fs[i]) {
						cancelled = true
						break
					}
				}
				if cancelled {
					break loop
				}
				bestIdx = argminFloats(fs)
				recenter(xBase, xs, bestIdx)
			}
		} else {
			xs[farIdx] = dClipped
			fs[farIdx] = fNew
		}
		g, h = fitQuadraticModel(xs, fs, n)
		iters++
	}
	if cancelled {
		status = NotTerminated
	} else if status == NotTerminated {
		status = FuncEvaluationLimit
	}

	return Result{
		Location: Location{X: append([]float64(nil), xBase...), F: fs[bestIdx]},
		Stats:    Stats{FuncEvaluations: evals, MajorIterations: iters},
		Status:   status,
	}
}

// seedInterpolationSet builds and evaluates the initial npt-point
// interpolation set around xBase, stopping early if f reports cancellation.
func seedInterpolationSet(f func([]float64) float64, box Box, xBase []float64, delta float64, npt int) (xs [][]float64, fs []float64, evals int, cancelled bool) {
	local := buildLocalPoints(len(xBase), box, xBase, delta, npt)
	xs = make([][]float64, npt)
	fs = make([]float64, npt)
	for i, p := range local {
		real := addVec(xBase, p)
		box.ClipInPlace(real)
		xs[i] = subVec(real, xBase)
		fs[i] = f(real)
		evals++
		if math.IsNaN(fs[i]) {
			return xs[:i+1], fs[:i+1], evals, true
		}
	}
	return xs, fs, evals, false
}

// buildLocalPoints lays out npt offsets (relative to xBase) the way
// BOBYQA's default initial set does: the zero offset, one axis step per
// dimension (flipped toward the interior when a step would leave the box),
// then the opposite-signed axis steps, then two-axis combinations if npt
// exceeds 2n+1.
func buildLocalPoints(n int, box Box, xBase []float64, delta float64, npt int) [][]float64 {
	pts := make([][]float64, 0, npt)
	pts = append(pts, make([]float64, n))

	signs := make([]float64, n)
	for i := 0; i < n && len(pts) < npt; i++ {
		d := delta
		if xBase[i]+d > box.Upper[i] {
			d = -delta
		}
		signs[i] = d
		p := make([]float64, n)
		p[i] = d
		pts = append(pts, p)
	}
	for i := 0; i < n && len(pts) < npt; i++ {
		d := -signs[i]
		if xBase[i]+d > box.Upper[i] || xBase[i]+d < box.Lower[i] {
			d *= 0.5
		}
		p := make([]float64, n)
		p[i] = d
		pts = append(pts, p)
	}
	for i, j := 0, 1; len(pts) < npt && i < n-1; j++ {
		if j >= n {
			i++
			j = i + 1
			continue
		}
		p := make([]float64, n)
		p[i] = signs[i]
		p[j] = signs[j]
		pts = append(pts, p)
	}
	for len(pts) < npt {
		pts = append(pts, make([]float64, n))
	}
	return pts[:npt]
}

// fitQuadraticModel refits the gradient g and Hessian H of a quadratic
// model f(xBase+x) ~= f0 + g.x + 1/2 x^T H x by least squares over the
// current interpolation set (spec §9's rebuild-on-accept simplification).
func fitQuadraticModel(xs [][]float64, fs []float64, n int) (g, h []float64) {
	npt := len(xs)
	k := 1 + n + n*(n+1)/2
	a := mat.NewDense(npt, k, nil)
	for r := 0; r < npt; r++ {
		a.Set(r, 0, 1)
		for i := 0; i < n; i++ {
			a.Set(r, 1+i, xs[r][i])
		}
		col := 1 + n
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				v := xs[r][i] * xs[r][j]
				if i == j {
					v *= 0.5
				}
				a.Set(r, col, v)
				col++
			}
		}
	}
	b := mat.NewVecDense(npt, append([]float64(nil), fs...))
	var beta mat.VecDense
	if err := beta.SolveVec(a, b); err != nil {
		return make([]float64, n), make([]float64, n*n)
	}

	g = make([]float64, n)
	for i := 0; i < n; i++ {
		g[i] = beta.AtVec(1 + i)
	}
	h = make([]float64, n*n)
	col := 1 + n
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := beta.AtVec(col)
			h[i*n+j] = v
			h[j*n+i] = v
			col++
		}
	}
	return g, h
}

// solveTrustRegionSubproblem implements spec §4.3 step 2: a Newton step
// when H's diagonal is positive, scaled to the trust-region boundary if too
// long, else a clipped Cauchy step; then projection into the local bound
// box and up to 20 projected-gradient refinement sweeps at step 0.1*delta.
func solveTrustRegionSubproblem(g, h []float64, n int, delta float64, box Box, xBase []float64) []float64 {
	d := make([]float64, n)
	if diagonalPositive(h, n) {
		hm := mat.NewDense(n, n, append([]float64(nil), h...))
		gv := mat.NewVecDense(n, append([]float64(nil), g...))
		var dv mat.VecDense
		if err := dv.SolveVec(hm, gv); err == nil {
			for i := 0; i < n; i++ {
				d[i] = -dv.AtVec(i)
			}
			if nrm := floats.Norm(d, 2); nrm > delta && nrm > 0 {
				floats.Scale(delta/nrm, d)
			}
		} else {
			d = cauchyStep(g, h, n, delta)
		}
	} else {
		d = cauchyStep(g, h, n, delta)
	}

	clipToLocalBox(d, box, xBase)

	step := 0.1 * delta
	cand := make([]float64, n)
	grad := make([]float64, n)
	for sweep := 0; sweep < 20; sweep++ {
		for i := 0; i < n; i++ {
			s := g[i]
			for j := 0; j < n; j++ {
				s += h[i*n+j] * d[j]
			}
			grad[i] = s
		}
		gn := floats.Norm(grad, 2)
		if gn < 1e-14 {
			break
		}
		for i := range cand {
			cand[i] = d[i] - step*grad[i]/gn
		}
		if cn := floats.Norm(cand, 2); cn > delta && cn > 0 {
			floats.Scale(delta/cn, cand)
		}
		clipToLocalBox(cand, box, xBase)
		if modelValue(g, h, cand, n) < modelValue(g, h, d, n) {
			copy(d, cand)
		} else {
			break
		}
	}
	return d
}

func cauchyStep(g, h []float64, n int, delta float64) []float64 {
	d := make([]float64, n)
	gnorm2 := floats.Dot(g, g)
	if gnorm2 == 0 {
		return d
	}
	ghg := quadForm(h, g, n)
	var alpha float64
	maxAlpha := delta / math.Sqrt(gnorm2)
	if ghg <= 0 {
		alpha = maxAlpha
	} else {
		alpha = gnorm2 / ghg
		if alpha > maxAlpha {
			alpha = maxAlpha
		}
	}
	for i := range d {
		d[i] = -alpha * g[i]
	}
	return d
}

func diagonalPositive(h []float64, n int) bool {
	for i := 0; i < n; i++ {
		if h[i*n+i] <= 0 {
			return false
		}
	}
	return true
}

func quadForm(h, d []float64, n int) float64 {
	var sum float64
	for i := 0; i < n; i++ {
		var row float64
		for j := 0; j < n; j++ {
			row += h[i*n+j] * d[j]
		}
		sum += d[i] * row
	}
	return sum
}

func modelValue(g, h, d []float64, n int) float64 {
	return floats.Dot(g, d) + 0.5*quadForm(h, d, n)
}

func clipToLocalBox(d []float64, box Box, xBase []float64) {
	for i := range d {
		lo := box.Lower[i] - xBase[i]
		hi := box.Upper[i] - xBase[i]
		if d[i] < lo {
			d[i] = lo
		}
		if d[i] > hi {
			d[i] = hi
		}
	}
}

func distanceToNearestBound(box Box, xBase []float64) float64 {
	min := math.Inf(1)
	for i, x := range xBase {
		if dl := x - box.Lower[i]; dl < min {
			min = dl
		}
		if du := box.Upper[i] - x; du < min {
			min = du
		}
	}
	return min
}

// recenter shifts xBase by the bestIdx offset so xs[bestIdx] becomes the
// zero vector, keeping every other row's real position unchanged.
func recenter(xBase []float64, xs [][]float64, bestIdx int) {
	offset := xs[bestIdx]
	for i := range xBase {
		xBase[i] += offset[i]
	}
	for _, row := range xs {
		for i := range row {
			row[i] -= offset[i]
		}
	}
}

func farthestIndex(xs [][]float64, bestIdx int) int {
	best := xs[bestIdx]
	maxD, idx := -1.0, bestIdx
	for i, row := range xs {
		if i == bestIdx {
			continue
		}
		var d float64
		for k := range row {
			dx := row[k] - best[k]
			d += dx * dx
		}
		if d > maxD {
			maxD = d
			idx = i
		}
	}
	return idx
}

func argminFloats(fs []float64) int {
	idx := 0
	for i, v := range fs {
		if v < fs[idx] {
			idx = i
		}
	}
	return idx
}

func addVec(a, b []float64) []float64 {
	out := append([]float64(nil), a...)
	if b == nil {
		return out
	}
	for i := range out {
		out[i] += b[i]
	}
	return out
}

func subVec(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range out {
		out[i] = a[i] - b[i]
	}
	return out
}
