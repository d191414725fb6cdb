package optimize

import (
	"math"

	"golang.org/x/exp/rand"
)

// Strategy selects a multi-start sampling algorithm (spec §4.8).
type Strategy int

const (
	StrategyUniform Strategy = iota
	StrategyGrid
	StrategyLHS
)

func (s Strategy) String() string {
	switch s {
	case StrategyUniform:
		return "uniform"
	case StrategyGrid:
		return "grid"
	case StrategyLHS:
		return "lhs"
	default:
		return "unknown"
	}
}

// RangeProcessor generates the sequence of starting points for multi-start
// optimization (spec §4.8): low[i]/high[i] bound each varying dimension,
// vary[i] fixes non-varying dimensions to the start point supplied via
// SetStaticValues, and N is the number of starts to produce.
type RangeProcessor struct {
	Strategy Strategy
	N        int
	Src      *rand.Rand

	low, high []float64
	vary      []bool
	static    []float64

	cursor int
	// grid state
	gridK    int
	gridIdx  []int
	gridDims []int
	// LHS state
	perms [][]int
	lhsDraw int
}

// NewRangeProcessor builds a processor over the given per-dimension bounds
// and vary mask; vary == nil means every dimension varies.
func NewRangeProcessor(strategy Strategy, low, high []float64, vary []bool, n int, src *rand.Rand) (*RangeProcessor, error) {
	if len(low) != len(high) {
		return nil, ErrDimensionMismatch
	}
	if vary == nil {
		vary = make([]bool, len(low))
		for i := range vary {
			vary[i] = true
		}
	}
	if len(vary) != len(low) {
		return nil, ErrDimensionMismatch
	}
	if src == nil {
		src = rand.New(rand.NewSource(1))
	}
	rp := &RangeProcessor{
		Strategy: strategy,
		N:        n,
		Src:      src,
		low:      append([]float64(nil), low...),
		high:     append([]float64(nil), high...),
		vary:     append([]bool(nil), vary...),
		static:   make([]float64, len(low)),
	}
	rp.init()
	return rp, nil
}

// SetStaticValues fixes every non-varying dimension to x's value and zeros
// its range, per spec §4.8.
func (rp *RangeProcessor) SetStaticValues(x []float64) {
	for i, v := range x {
		if !rp.vary[i] {
			rp.static[i] = v
			rp.low[i] = v
			rp.high[i] = v
		}
	}
}

func (rp *RangeProcessor) init() {
	switch rp.Strategy {
	case StrategyGrid:
		n := len(rp.low)
		k := int(math.Pow(float64(rp.N), 1/float64(varyCount(rp.vary))))
		if k < 2 {
			k = 2
		}
		rp.gridK = k
		rp.gridIdx = make([]int, n)
		rp.gridDims = nil
		for i, v := range rp.vary {
			if v {
				rp.gridDims = append(rp.gridDims, i)
			}
		}
	case StrategyLHS:
		n := len(rp.low)
		rp.perms = make([][]int, n)
		for i, v := range rp.vary {
			if !v {
				continue
			}
			rp.perms[i] = rp.Src.Perm(rp.N)
		}
	}
}

func varyCount(vary []bool) int {
	c := 0
	for _, v := range vary {
		if v {
			c++
		}
	}
	if c == 0 {
		return 1
	}
	return c
}

// Remaining reports how many starts have not yet been drawn.
func (rp *RangeProcessor) Remaining() int { return rp.N - rp.cursor }

// NextVector returns the next starting point, or nil once N vectors have
// been produced.
func (rp *RangeProcessor) NextVector() []float64 {
	if rp.cursor >= rp.N {
		return nil
	}
	n := len(rp.low)
	out := make([]float64, n)
	switch rp.Strategy {
	case StrategyUniform:
		for i := range out {
			if !rp.vary[i] {
				out[i] = rp.static[i]
				continue
			}
			out[i] = rp.low[i] + rp.Src.Float64()*(rp.high[i]-rp.low[i])
		}
	case StrategyGrid:
		rp.nextGrid(out)
	case StrategyLHS:
		for i := range out {
			if !rp.vary[i] {
				out[i] = rp.static[i]
				continue
			}
			perm := rp.perms[i][rp.lhsDraw]
			u := (float64(perm) + rp.Src.Float64()) / float64(rp.N)
			out[i] = rp.low[i] + u*(rp.high[i]-rp.low[i])
		}
		rp.lhsDraw++
	}
	rp.cursor++
	return out
}

// nextGrid produces the odometer-increment lattice point for the current
// cursor: k evenly spaced values per varying dimension including both
// endpoints, k = floor(N^(1/d)) clipped to >= 2 (spec §4.8).
func (rp *RangeProcessor) nextGrid(out []float64) {
	for i := range out {
		if !rp.vary[i] {
			out[i] = rp.static[i]
		}
	}
	k := rp.gridK
	for di, dim := range rp.gridDims {
		step := 0
		if k > 1 {
			step = rp.gridIdx[di]
		}
		frac := 0.0
		if k > 1 {
			frac = float64(step) / float64(k-1)
		}
		out[dim] = rp.low[dim] + frac*(rp.high[dim]-rp.low[dim])
	}
	for di := len(rp.gridDims) - 1; di >= 0; di-- {
		rp.gridIdx[di]++
		if rp.gridIdx[di] < k {
			break
		}
		rp.gridIdx[di] = 0
	}
}
