// Package bench holds the built-in benchmark objectives used by
// cmd/geomopt-bench for manual smoke-testing of the optimize package (spec
// §1: these are external-collaborator stand-ins, not part of the core's
// contract).
package bench

import "math"

// PointEncoding is the simplest possible optimize.Encoding: the domain
// state is the ℝⁿ point itself.
type PointEncoding struct {
	X []float64
}

func NewPointEncoding(n int) *PointEncoding { return &PointEncoding{X: make([]float64, n)} }

func (p *PointEncoding) Dim() int                    { return len(p.X) }
func (p *PointEncoding) GetGeometryPoint() []float64 { return append([]float64(nil), p.X...) }
func (p *PointEncoding) SetGeometryPoint(x []float64) {
	copy(p.X, x)
}

// ResidualFunc adapts a plain ℝⁿ → ℝᵐ residual function and a fixed weight
// vector into an optimize.Evaluator, reading the domain state from the
// PointEncoding it shares with the objective (spec §6).
type ResidualFunc struct {
	Enc *PointEncoding
	Fn  func(x []float64) []float64
	Wts []float64
}

func (r *ResidualFunc) Residual() ([]float64, error) { return r.Fn(r.Enc.X), nil }
func (r *ResidualFunc) Weights() []float64           { return r.Wts }

// Sphere returns Σ xᵢ² as a single-residual evaluator (weight 1).
func Sphere(enc *PointEncoding) *ResidualFunc {
	return &ResidualFunc{
		Enc: enc,
		Fn: func(x []float64) []float64 {
			var sum float64
			for _, xi := range x {
				sum += xi * xi
			}
			return []float64{math.Sqrt(sum)}
		},
		Wts: []float64{1},
	}
}

// ShiftedQuadratic returns (x-center)ᵀ(x-center) expressed as one residual
// per dimension, each weighted 1, so Σ wᵢrᵢ² = Σ (xᵢ-centerᵢ)².
func ShiftedQuadratic(enc *PointEncoding, center []float64) *ResidualFunc {
	return &ResidualFunc{
		Enc: enc,
		Fn: func(x []float64) []float64 {
			r := make([]float64, len(x))
			for i := range x {
				r[i] = x[i] - center[i]
			}
			return r
		},
		Wts: onesLike(center),
	}
}

// Rosenbrock returns the classic banana function's two terms as residuals:
// r0 = (1-x), r1 = 10*(y-x²) so w0*r0²+w1*r1² = (1-x)² + 100(y-x²)².
func Rosenbrock(enc *PointEncoding) *ResidualFunc {
	return &ResidualFunc{
		Enc: enc,
		Fn: func(x []float64) []float64 {
			return []float64{1 - x[0], 10 * (x[1] - x[0]*x[0])}
		},
		Wts: []float64{1, 1},
	}
}

// SumOfSines returns f(x) = Σ sin(xᵢ) + 2 (spec §8 scenario 6) via a single
// residual of √f, weight 1, so the objective's Σ wᵢrᵢ² reduction recovers f
// directly. f is always non-negative for the scenario's two-dimensional
// domain, since Σ sin(xᵢ) + 2 ranges over [0,4].
func SumOfSines(enc *PointEncoding) *ResidualFunc {
	return &ResidualFunc{
		Enc: enc,
		Fn: func(x []float64) []float64 {
			var sum float64
			for _, xi := range x {
				sum += math.Sin(xi)
			}
			return []float64{math.Sqrt(sum + 2)}
		},
		Wts: []float64{1},
	}
}

func onesLike(v []float64) []float64 {
	out := make([]float64, len(v))
	for i := range out {
		out[i] = 1
	}
	return out
}
