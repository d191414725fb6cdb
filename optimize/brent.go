// Copyright ©2014 The Gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optimize

import "math"

// goldenRatio is GR = 1/2*(3-sqrt(5)), the golden-section step fraction
// used when a parabolic step is rejected (spec §4.2).
const goldenRatio = 0.5 * (3 - 2.2360679774997896964)

// Brent is Richard Brent's hybrid parabolic-interpolation / golden-section
// minimizer for a bracketed univariate function (spec §4.2). Unlike the
// teacher's channel-driven Method, Run below drives the whole search
// synchronously, since kernels are single-threaded (§5).
type Brent struct {
	// RelTol and AbsTol set the stopping tolerance. RelTol must be >= 2*eps
	// and AbsTol must be > 0 (spec §4.2); zero values fall back to the
	// defaults in §6 (1e-6, 1e-14).
	RelTol, AbsTol float64
}

// Run minimizes f on [a,b] starting near x0, returning the best point found.
func (br *Brent) Run(f func(float64) float64, a, b, x0 float64, maxEvals int) Result {
	relTol := br.RelTol
	if relTol == 0 {
		relTol = 1e-6
	}
	absTol := br.AbsTol
	if absTol == 0 {
		absTol = 1e-14
	}

	if a > b {
		a, b = b, a
	}
	x := clampFloat(x0, a, b)
	w, v := x, x
	fx := f(x)
	evals := 1
	fw, fv := fx, fx

	var d, e float64 // current and previous step size
	stats := Stats{FuncEvaluations: 1, MajorIterations: 0}

	if math.IsNaN(fx) {
		return Result{Location: Location{X: []float64{x}, F: fx}, Stats: stats, Status: NotTerminated}
	}

	for evals < maxEvals || maxEvals <= 0 {
		mid := 0.5 * (a + b)
		tol := relTol*math.Abs(x) + absTol
		tol2 := 2 * tol
		if math.Abs(x-mid) <= tol2-0.5*(b-a) {
			break
		}

		useGolden := true
		if e != 0 {
			// Parabolic interpolation through (x, w, v).
			r := (x - w) * (fx - fv)
			q := (x - v) * (fx - fw)
			p := (x-v)*q - (x-w)*r
			q2 := 2 * (q - r)
			if q2 > 0 {
				p = -p
			}
			q2 = math.Abs(q2)
			etemp := e
			e = d
			if math.Abs(p) < math.Abs(0.5*q2*etemp) && p > q2*(a-x) && p < q2*(b-x) {
				d = p / q2
				u := x + d
				if u-a < tol2 || b-u < tol2 {
					d = math.Copysign(tol, mid-x)
				}
				useGolden = false
			}
		}
		if useGolden {
			if x >= mid {
				e = a - x
			} else {
				e = b - x
			}
			d = goldenRatio * e
		}

		var u float64
		if math.Abs(d) >= tol {
			u = x + d
		} else {
			u = x + math.Copysign(tol, d)
		}
		fu := f(u)
		evals++
		stats.FuncEvaluations++
		if math.IsNaN(fu) {
			return Result{Location: Location{X: []float64{x}, F: fx}, Stats: stats, Status: NotTerminated}
		}

		if fu <= fx {
			if u >= x {
				a = x
			} else {
				b = x
			}
			v, w, x = w, x, u
			fv, fw, fx = fw, fx, fu
		} else {
			if u < x {
				a = u
			} else {
				b = u
			}
			if fu <= fw || w == x {
				v, fv = w, fw
				w, fw = u, fu
			} else if fu <= fv || v == x || v == w {
				v, fv = u, fu
			}
		}
		stats.MajorIterations++
	}

	status := Converged
	if maxEvals > 0 && evals >= maxEvals {
		status = FuncEvaluationLimit
	}
	return Result{Location: Location{X: []float64{x}, F: fx}, Stats: stats, Status: status}
}

func clampFloat(x, lo, hi float64) float64 {
	switch {
	case x < lo:
		return lo
	case x > hi:
		return hi
	default:
		return x
	}
}
