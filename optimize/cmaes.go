// Copyright ©2017 The Gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optimize

import (
	"math"
	"sort"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// CMAES implements covariance matrix adaptation evolution strategy over a
// bound-clipped population (spec §4.5). Population sampling, weighted
// recombination, and the rank-one/rank-mu/step-size updates follow the
// teacher's CmaEsChol constants (cc, cs, c1, cmu, ds, eChi); unlike the
// teacher's Cholesky-factor internal representation, state here is the
// mean/covariance/eigendecomposition (m, C, B, D) the spec's data model
// calls for, with the eigendecomposition refreshed every RefreshEvery
// generations rather than every generation (spec §4.5, §9).
type CMAES struct {
	Population   int     // lambda; 0 selects the default max(4, 4+floor(3 ln n))
	InitStepSize float64 // sigma seed; 0 selects 0.2*range (spec §6)
	StopFitness  float64
	AbsTol       float64
	RelTol       float64
	StallGens    int // generations without significant improvement of the best fitness before stopping; 0 selects 20+floor(n/5)
	Src          *rand.Rand
	RefreshEvery int // eigendecomposition refresh period; 0 selects max(1, floor(1/(c1+cmu)/10))
}

type cmaesState struct {
	dim, pop, mu                     int
	weights                          []float64
	muEff, cc, cs, c1, cmu, ds, eChi float64

	mean, pc, ps []float64
	sigma        float64
	cov          []float64 // row-major n x n, kept symmetric
	b            []float64 // row-major eigenvectors, n x n
	d            []float64 // sqrt eigenvalues, length n

	refreshEvery    int
	genSinceRefresh int
}

// Run minimizes f from x0 within box.
func (c *CMAES) Run(f func([]float64) float64, box Box, x0 []float64, maxEvals int) Result {
	n := len(x0)
	st := newCmaesState(c, n, box)
	copy(st.mean, x0)
	box.ClipInPlace(st.mean)

	absTol, relTol := c.AbsTol, c.RelTol
	if absTol == 0 {
		absTol = 1e-14
	}
	if relTol == 0 {
		relTol = 1e-6
	}
	stallGens := c.StallGens
	if stallGens == 0 {
		stallGens = 20 + n/5
	}
	stopFitness := c.StopFitness

	src := c.Src
	if src == nil {
		src = rand.New(rand.NewSource(1))
	}
	stdNormal, ok := distmv.NewNormal(make([]float64, n), mat.NewSymDense(n, identity(n)), src)
	if !ok {
		return Result{Location: Location{X: append([]float64(nil), x0...), F: math.Inf(1)}, Status: Failure}
	}

	pop := st.pop
	samples := make([][]float64, pop)
	for i := range samples {
		samples[i] = make([]float64, n)
	}
	fit := make([]float64, pop)
	idx := make([]int, pop)

	evals := 0
	gens := 0
	bestF := math.Inf(1)
	bestX := append([]float64(nil), st.mean...)

	z := make([]float64, n)
	bdz := make([]float64, n)
	status := NotTerminated
	cancelled := false

	// conv tracks bestF's generation-over-generation stagnation, reusing the
	// same Converger Powell drives off its own incumbent value (spec §9).
	conv := &FunctionConverge{Absolute: absTol, Relative: relTol, Iterations: stallGens}
	convInit := false

samplingLoop:
	for evals < maxEvals {
		activePop := pop
		for i := 0; i < pop; i++ {
			stdNormal.Rand(z)
			for k := range bdz {
				bdz[k] = 0
			}
			for k := 0; k < n; k++ {
				dz := st.d[k] * z[k]
				for r := 0; r < n; r++ {
					bdz[r] += st.b[r*n+k] * dz
				}
			}
			copy(samples[i], st.mean)
			floats.AddScaled(samples[i], st.sigma, bdz)
			box.ClipInPlace(samples[i])
			fit[i] = f(samples[i])
			evals++
			idx[i] = i
			if math.IsNaN(fit[i]) {
				cancelled = true
				break
			}
			if evals >= maxEvals {
				activePop = i + 1
				break
			}
		}
		if cancelled {
			break samplingLoop
		}
		use := idx[:activePop]
		sort.Slice(use, func(a, b int) bool { return fit[use[a]] < fit[use[b]] })
		if fit[use[0]] < bestF {
			bestF = fit[use[0]]
			copy(bestX, samples[use[0]])
		}

		st.update(samples, use)
		gens++

		if !convInit {
			conv.Init(bestF)
			convInit = true
		}
		convStatus := conv.FunctionConverged(bestF)

		switch {
		case bestF <= stopFitness:
			status = Converged
			break samplingLoop
		case convStatus == FunctionConvergence:
			status = FunctionConvergence
			break samplingLoop
		case st.sigma*maxD(st.d) < 1e-20:
			status = Converged
			break samplingLoop
		}
	}
	if cancelled {
		status = NotTerminated
	} else if status == NotTerminated {
		status = FuncEvaluationLimit
	}

	return Result{
		Location: Location{X: bestX, F: bestF},
		Stats:    Stats{FuncEvaluations: evals, MajorIterations: gens},
		Status:   status,
	}
}

func newCmaesState(c *CMAES, n int, box Box) *cmaesState {
	st := &cmaesState{dim: n}
	st.pop = c.Population
	if st.pop <= 0 {
		st.pop = intMax(4, 4+int(3*math.Log(float64(n))))
	}
	mu := st.pop / 2
	st.mu = mu
	st.weights = make([]float64, mu)
	for i := range st.weights {
		st.weights[i] = math.Log(float64(mu)+0.5) - math.Log(float64(i)+1)
	}
	floats.Scale(1/floats.Sum(st.weights), st.weights)
	for _, w := range st.weights {
		st.muEff += w * w
	}
	st.muEff = 1 / st.muEff

	nf := float64(n)
	st.cc = (4 + st.muEff/nf) / (nf + 4 + 2*st.muEff/nf)
	st.cs = (st.muEff + 2) / (nf + st.muEff + 5)
	st.c1 = 2 / (sq(nf+1.3) + st.muEff)
	st.cmu = math.Min(1-st.c1, 2*(st.muEff-2+1/st.muEff)/(sq(nf+2)+st.muEff))
	st.ds = 1 + 2*math.Max(0, math.Sqrt((st.muEff-1)/(nf+1))-1) + st.cs
	st.eChi = math.Sqrt(nf) * (1 - 1/(4*nf) + 1/(21*nf*nf))

	st.mean = make([]float64, n)
	st.pc = make([]float64, n)
	st.ps = make([]float64, n)
	st.sigma = c.InitStepSize
	if st.sigma == 0 {
		st.sigma = 0.2 * box.maxRange()
	}
	st.cov = identity(n)
	st.b = identity(n)
	st.d = make([]float64, n)
	for i := range st.d {
		st.d[i] = 1
	}
	st.refreshEvery = c.RefreshEvery
	if st.refreshEvery <= 0 {
		st.refreshEvery = intMax(1, int(1/(st.c1+st.cmu)/10))
	}
	return st
}

// update recomputes the mean by weighted recombination and applies the
// rank-one, rank-mu, and CSA step-size updates (spec §4.5), refreshing the
// full eigendecomposition every refreshEvery generations.
func (st *cmaesState) update(samples [][]float64, idx []int) {
	n := st.dim
	meanOld := append([]float64(nil), st.mean...)
	for i := range st.mean {
		st.mean[i] = 0
	}
	nUse := len(st.weights)
	if len(idx) < nUse {
		nUse = len(idx)
	}
	for i := 0; i < nUse; i++ {
		floats.AddScaled(st.mean, st.weights[i], samples[idx[i]])
	}
	meanDiff := make([]float64, n)
	floats.SubTo(meanDiff, st.mean, meanOld)

	// C^{-1/2} (m_new - m_old) via the eigenbasis: B diag(1/D) B^T meanDiff.
	cInvSqrtDiff := make([]float64, n)
	proj := make([]float64, n)
	for k := 0; k < n; k++ {
		var s float64
		for r := 0; r < n; r++ {
			s += st.b[r*n+k] * meanDiff[r]
		}
		proj[k] = s / st.d[k]
	}
	for r := 0; r < n; r++ {
		var s float64
		for k := 0; k < n; k++ {
			s += st.b[r*n+k] * proj[k]
		}
		cInvSqrtDiff[r] = s
	}

	floats.Scale(1-st.cs, st.ps)
	scaleS := math.Sqrt(st.cs*(2-st.cs)*st.muEff) / st.sigma
	floats.AddScaled(st.ps, scaleS, cInvSqrtDiff)

	floats.Scale(1-st.cc, st.pc)
	scaleC := math.Sqrt(st.cc*(2-st.cc)*st.muEff) / st.sigma
	floats.AddScaled(st.pc, scaleC, meanDiff)

	// Rank-one + rank-mu covariance update, done entrywise on the flat
	// row-major buffer to avoid depending on a richer matrix algebra API
	// than this package otherwise needs.
	newCov := make([]float64, n*n)
	base := 1 - st.c1 - st.cmu
	for i, v := range st.cov {
		newCov[i] = base * v
	}
	addOuterScaled(newCov, st.pc, st.c1, n)
	diff := make([]float64, n)
	for i := 0; i < nUse; i++ {
		floats.SubTo(diff, samples[idx[i]], meanOld)
		floats.Scale(1/st.sigma, diff)
		addOuterScaled(newCov, diff, st.cmu*st.weights[i], n)
	}
	st.cov = newCov

	normPS := floats.Norm(st.ps, 2)
	st.sigma *= math.Exp((st.cs / st.ds) * (normPS/st.eChi - 1))

	st.genSinceRefresh++
	if st.genSinceRefresh >= st.refreshEvery {
		st.refreshEigen()
		st.genSinceRefresh = 0
	}
}

// addOuterScaled adds scale*v*v^T into the row-major n x n matrix m.
func addOuterScaled(m, v []float64, scale float64, n int) {
	for i := 0; i < n; i++ {
		vi := scale * v[i]
		if vi == 0 {
			continue
		}
		for j := 0; j < n; j++ {
			m[i*n+j] += vi * v[j]
		}
	}
}

// refreshEigen recomputes B (eigenvectors) and D (sqrt eigenvalues) from
// the covariance matrix. Between refreshes, CMA-ES samples with a stale
// eigenbasis — the diagonal-approximation shortcut spec §4.5/§9 allows.
func (st *cmaesState) refreshEigen() {
	n := st.dim
	sym := mat.NewSymDense(n, append([]float64(nil), st.cov...))
	var eig mat.EigenSym
	if !eig.Factorize(sym, true) {
		return
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	for i, v := range vals {
		if v < 1e-300 {
			v = 1e-300
		}
		st.d[i] = math.Sqrt(v)
	}
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			st.b[r*n+c] = vecs.At(r, c)
		}
	}
}

func identity(n int) []float64 {
	m := make([]float64, n*n)
	for i := 0; i < n; i++ {
		m[i*n+i] = 1
	}
	return m
}

func maxD(d []float64) float64 {
	m := 0.0
	for _, v := range d {
		if v > m {
			m = v
		}
	}
	return m
}

func intMax(a, b int) int {
	if a > b {
		return a
	}
	return b
}
