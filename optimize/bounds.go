package optimize

// equalBoundEpsilon is the amount a degenerate lower bound is decreased by
// so every dimension has positive range (spec §3).
const equalBoundEpsilon = 1e-7

// Box is an axis-aligned hyperrectangle defining the bound constraints a
// kernel searches within. After Validate, Lower[i] <= Upper[i] for every i.
type Box struct {
	Lower []float64
	Upper []float64
}

// NewBox builds a Box from lower/upper slices and validates it in place.
func NewBox(lower, upper []float64) (Box, error) {
	if len(lower) != len(upper) {
		return Box{}, ErrDimensionMismatch
	}
	if len(lower) == 0 {
		return Box{}, ErrZeroDimension
	}
	b := Box{Lower: append([]float64(nil), lower...), Upper: append([]float64(nil), upper...)}
	b.Validate()
	return b, nil
}

// Dim returns the number of dimensions.
func (b Box) Dim() int { return len(b.Lower) }

// Validate swaps reversed [lower,upper] pairs and widens degenerate
// (lower == upper) dimensions by equalBoundEpsilon, in place. It is called
// automatically by NewBox and must be re-run after any bounds mutation
// (spec §3 Objective invariants).
func (b Box) Validate() {
	for i := range b.Lower {
		if b.Lower[i] > b.Upper[i] {
			b.Lower[i], b.Upper[i] = b.Upper[i], b.Lower[i]
		}
		if b.Lower[i] == b.Upper[i] {
			b.Lower[i] -= equalBoundEpsilon
		}
	}
}

// Range returns Upper[i] - Lower[i].
func (b Box) Range(i int) float64 { return b.Upper[i] - b.Lower[i] }

// Clip copies x into dst (allocating if dst is nil) with every coordinate
// clamped componentwise into the box.
func (b Box) Clip(dst, x []float64) []float64 {
	dst = resize(dst, len(x))
	copy(dst, x)
	for i, v := range dst {
		switch {
		case v < b.Lower[i]:
			dst[i] = b.Lower[i]
		case v > b.Upper[i]:
			dst[i] = b.Upper[i]
		}
	}
	return dst
}

// ClipInPlace clamps x into the box without allocating.
func (b Box) ClipInPlace(x []float64) {
	for i, v := range x {
		switch {
		case v < b.Lower[i]:
			x[i] = b.Lower[i]
		case v > b.Upper[i]:
			x[i] = b.Upper[i]
		}
	}
}

// Contains reports whether x lies within the box, allowing tol slack on
// each side (spec §8: "at most 1e-9 slack for clipping").
func (b Box) Contains(x []float64, tol float64) bool {
	for i, v := range x {
		if v < b.Lower[i]-tol || v > b.Upper[i]+tol {
			return false
		}
	}
	return true
}

// Clone returns an independent deep copy of the box.
func (b Box) Clone() Box {
	return Box{Lower: append([]float64(nil), b.Lower...), Upper: append([]float64(nil), b.Upper...)}
}

// Center writes the midpoint of the box into dst, allocating if nil.
func (b Box) Center(dst []float64) []float64 {
	dst = resize(dst, b.Dim())
	for i := range dst {
		dst[i] = 0.5 * (b.Lower[i] + b.Upper[i])
	}
	return dst
}

// maxRange and minPositiveHalfRange are small range helpers. maxRange backs
// CMA-ES's initial step size and the coordinate-descent stopping rule;
// minPositiveHalfRange has no caller, and BOBYQA's initial trust-region
// radius (spec §4.3) is computed by Objective.GetInitialTrustRegionRadius.
func (b Box) maxRange() float64 {
	m := 0.0
	for i := range b.Lower {
		if r := b.Range(i); r > m {
			m = r
		}
	}
	return m
}

func (b Box) minPositiveHalfRange() float64 {
	m := -1.0
	for i := range b.Lower {
		r := b.Range(i)
		if r <= equalBoundEpsilon {
			continue
		}
		half := 0.5 * r
		if m < 0 || half < m {
			m = half
		}
	}
	return m
}
