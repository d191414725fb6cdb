package optimize

import (
	"math"
	"sort"
)

// DIRECT implements deterministic global search by rectangle subdivision
// over the unit cube (spec §4.4). Bounds are normalized internally; the
// public Run entry point translates back to the caller's real-valued box.
type DIRECT struct {
	// XThreshold is the convergence diameter/width threshold (spec §6
	// default 1e-4).
	XThreshold float64
	// ConvergedIterationsThreshold is the number of iterations without a
	// promising division before stopping (spec §6 default 20).
	ConvergedIterationsThreshold int
	// AllowDuplicatesInHull selects Jones mode (true, keeps all ties on the
	// hull) or Gablonsky mode (false, keeps only the first) — spec §4.4,
	// §6 default true.
	AllowDuplicatesInHull bool
	// TargetValue, if nonzero and finite, stops the search once a point
	// reaches it (spec §4.4 convergence (b)); zero disables the check.
	TargetValue float64
}

type rectangle struct {
	center   []float64 // unit-cube coordinates
	width    []float64 // unit-cube coordinates, fraction of range
	f        float64
	diameter float64
	serial   int
}

func newRectangle(center, width []float64, f float64, serial int) *rectangle {
	return &rectangle{
		center:   center,
		width:    width,
		f:        f,
		diameter: rectDiameter(width),
		serial:   serial,
	}
}

// rectDiameter computes 1/2*||w||_2, excluding dimensions with negligible
// width (spec §3); the result is quantized to float32 precision so
// mathematically equal diameters compare equal (spec §4.4).
func rectDiameter(w []float64) float64 {
	var sum float64
	for _, wi := range w {
		if wi <= 1e-12 {
			continue
		}
		sum += wi * wi
	}
	d := 0.5 * math.Sqrt(sum)
	return float64(float32(d))
}

func rectLess(a, b *rectangle) bool {
	if a.diameter != b.diameter {
		return a.diameter < b.diameter
	}
	if a.f != b.f {
		return a.f < b.f
	}
	return a.serial < b.serial
}

// Run minimizes f over box using the DIRECT algorithm.
func (d *DIRECT) Run(f func([]float64) float64, box Box, maxEvals int) Result {
	n := box.Dim()
	xThresh := d.XThreshold
	if xThresh == 0 {
		xThresh = 1e-4
	}
	convergedIters := d.ConvergedIterationsThreshold
	if convergedIters == 0 {
		convergedIters = 20
	}
	target := d.TargetValue
	if target == 0 {
		target = math.Inf(-1)
	}

	serial := 0
	evalAt := func(centerUnit []float64) float64 {
		real := make([]float64, n)
		for i, c := range centerUnit {
			real[i] = box.Lower[i] + c*box.Range(i)
		}
		return f(real)
	}

	fMax := math.Inf(-1)
	var cancelled bool
	evalClamped := func(centerUnit []float64) float64 {
		v := evalAt(centerUnit)
		if math.IsNaN(v) {
			// Evaluator failure or cancellation (objFunc's sentinel): distinct
			// from a genuinely infeasible but finite-Inf region, so DIRECT
			// unwinds instead of subdividing further (spec §4.9/§5).
			cancelled = true
			return fMax
		}
		if math.IsInf(v, 1) {
			// Infeasible evaluation: treat as f_max_so_far (spec §7).
			v = fMax
		}
		if v > fMax {
			fMax = v
		}
		return v
	}

	root := newRectangle(uniformVec(n, 0.5), uniformVec(n, 1), 0, serial)
	root.f = evalClamped(root.center)
	serial++
	rects := []*rectangle{root}

	bestF := root.f
	bestX := unitToReal(box, root.center)

	evals := 1
	itersSinceImprove := 0
	status := NotTerminated

	thresholdDiameter := directThresholdDiameter(n, xThresh)

	for evals < maxEvals && !cancelled {
		hull := selectPotentiallyOptimal(rects, d.AllowDuplicatesInHull)
		if len(hull) == 0 {
			break
		}

		selected := make(map[*rectangle]bool, len(hull))
		for _, r := range hull {
			selected[r] = true
		}

		anyPromising := false
		allBelowThreshold := true
		var kept []*rectangle
		for _, r := range rects {
			if !selected[r] {
				kept = append(kept, r)
				continue
			}
			if r.diameter >= thresholdDiameter || maxWidth(r.width) > xThresh {
				allBelowThreshold = false
			}
			children, promising := divideRectangle(r, evalClamped, &serial, bestF)
			if promising {
				anyPromising = true
			}
			for _, c := range children {
				kept = append(kept, c)
				evals++
				x := unitToReal(box, c.center)
				if c.f < bestF {
					bestF = c.f
					bestX = x
				}
				if evals >= maxEvals {
					break
				}
			}
			if evals >= maxEvals || cancelled {
				break
			}
		}
		rects = kept

		if cancelled {
			break
		}
		if bestF <= target {
			status = Converged
			break
		}
		if allBelowThreshold && !anyPromising {
			status = Converged
			break
		}
		if anyPromising {
			itersSinceImprove = 0
		} else {
			itersSinceImprove++
			if itersSinceImprove >= convergedIters {
				status = Converged
				break
			}
		}
		if evals >= maxEvals {
			break
		}
	}
	if status == NotTerminated {
		status = FuncEvaluationLimit
	}

	return Result{
		Location: Location{X: bestX, F: bestF},
		Stats:    Stats{FuncEvaluations: evals},
		Status:   status,
	}
}

// directThresholdDiameter computes 1/2*sqrt(n) * (1/3)^ceil(log_{1/3}(x)).
func directThresholdDiameter(n int, x float64) float64 {
	ceilPow := math.Ceil(math.Log(x) / math.Log(1.0/3.0))
	return 0.5 * math.Sqrt(float64(n)) * math.Pow(1.0/3.0, ceilPow)
}

func uniformVec(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func unitToReal(box Box, unit []float64) []float64 {
	out := make([]float64, len(unit))
	for i, c := range unit {
		out[i] = box.Lower[i] + c*box.Range(i)
	}
	return out
}

func maxWidth(w []float64) float64 {
	m := 0.0
	for _, v := range w {
		if v > m {
			m = v
		}
	}
	return m
}

// selectPotentiallyOptimal returns the rectangles on the lower convex hull
// of (diameter, f) among the working set, honoring the duplicate-tolerance
// switch (spec §4.4).
func selectPotentiallyOptimal(rects []*rectangle, allowDuplicates bool) []*rectangle {
	if len(rects) == 0 {
		return nil
	}
	sorted := append([]*rectangle(nil), rects...)
	sort.Slice(sorted, func(i, j int) bool { return rectLess(sorted[i], sorted[j]) })

	type bucket struct {
		diameter float64
		minF     float64
		members  []*rectangle
	}
	var buckets []bucket
	for _, r := range sorted {
		if n := len(buckets); n > 0 && buckets[n-1].diameter == r.diameter {
			b := &buckets[n-1]
			if r.f < b.minF {
				b.minF = r.f
				b.members = []*rectangle{r}
			} else if r.f == b.minF {
				b.members = append(b.members, r)
			}
			continue
		}
		buckets = append(buckets, bucket{diameter: r.diameter, minF: r.f, members: []*rectangle{r}})
	}

	// Monotone-chain lower convex hull over the bucket representatives.
	type pt struct {
		d, f float64
		idx  int
	}
	pts := make([]pt, len(buckets))
	for i, b := range buckets {
		pts[i] = pt{d: b.diameter, f: b.minF, idx: i}
	}

	cross := func(o, a, b pt) float64 {
		return (a.d-o.d)*(b.f-o.f) - (a.f-o.f)*(b.d-o.d)
	}

	var hull []pt
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	var out []*rectangle
	for _, p := range hull {
		members := buckets[p.idx].members
		if allowDuplicates {
			out = append(out, members...)
		} else {
			out = append(out, members[0])
		}
	}
	return out
}

// divideRectangle subdivides r into children along its long dimensions
// (width >= (1-0.05)*maxWidth), processing dimensions in ascending order of
// min(f+, f-) (spec §4.4). It returns the new rectangles (two side
// rectangles per split dimension plus the final shrunk central rectangle)
// and whether any child division was "promising" (spec §4.4).
func divideRectangle(r *rectangle, eval func([]float64) float64, serial *int, bestF float64) ([]*rectangle, bool) {
	n := len(r.center)
	mw := maxWidth(r.width)
	var longDims []int
	for i, w := range r.width {
		if w >= (1-0.05)*mw {
			longDims = append(longDims, i)
		}
	}

	type split struct {
		dim               int
		delta             float64
		cPlus, cMinus     []float64
		fPlus, fMinus     float64
	}
	splits := make([]split, 0, len(longDims))
	for _, dim := range longDims {
		delta := r.width[dim] / 3
		cPlus := append([]float64(nil), r.center...)
		cPlus[dim] += delta
		cMinus := append([]float64(nil), r.center...)
		cMinus[dim] -= delta
		splits = append(splits, split{
			dim: dim, delta: delta,
			cPlus: cPlus, cMinus: cMinus,
			fPlus:  eval(cPlus),
			fMinus: eval(cMinus),
		})
	}
	sort.Slice(splits, func(i, j int) bool {
		return math.Min(splits[i].fPlus, splits[i].fMinus) < math.Min(splits[j].fPlus, splits[j].fMinus)
	})

	centralWidth := append([]float64(nil), r.width...)
	var children []*rectangle
	anyPromising := false
	for _, s := range splits {
		sideWidth := append([]float64(nil), centralWidth...)
		sideWidth[s.dim] = centralWidth[s.dim] / 3
		*serial++
		children = append(children, newRectangle(s.cPlus, append([]float64(nil), sideWidth...), s.fPlus, *serial))
		*serial++
		children = append(children, newRectangle(s.cMinus, append([]float64(nil), sideWidth...), s.fMinus, *serial))
		if isPromising(r.f, s.fPlus, bestF) || isPromising(r.f, s.fMinus, bestF) {
			anyPromising = true
		}
		centralWidth[s.dim] = sideWidth[s.dim]
	}
	*serial++
	central := newRectangle(append([]float64(nil), r.center...), centralWidth, r.f, *serial)
	children = append(children, central)
	return children, anyPromising
}

// isPromising implements the "promising division" heuristic of spec §4.4:
// given the parent's centre value fc and a child value fn, extrapolate the
// line from fc through fn past the new centre and report whether it falls
// below the current best value found anywhere in the search so far. The
// constants (1.5, 0.1) are reproduced literally per spec §9.
func isPromising(fc, fn, bestF float64) bool {
	switch {
	case fn < fc:
		return fc-1.5*(fc-fn) < bestF
	case fn > fc:
		return fc-0.1*(fn-fc) < bestF
	default:
		return false
	}
}
