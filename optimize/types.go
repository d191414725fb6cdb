// Copyright ©2014 The Gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optimize

import "time"

// Location is a point in the search together with its function value.
type Location struct {
	X []float64
	F float64
}

// Stats records the counters accumulated during a single kernel run.
type Stats struct {
	MajorIterations int
	FuncEvaluations int
	Runtime         time.Duration
}

// Status summarizes why a kernel run stopped.
type Status int

const (
	NotTerminated Status = iota
	Converged
	FunctionConvergence
	FuncEvaluationLimit
	IterationLimit
	Cancelled
	Failure
)

func (s Status) String() string {
	switch s {
	case NotTerminated:
		return "NotTerminated"
	case Converged:
		return "Converged"
	case FunctionConvergence:
		return "FunctionConvergence"
	case FuncEvaluationLimit:
		return "FuncEvaluationLimit"
	case IterationLimit:
		return "IterationLimit"
	case Cancelled:
		return "Cancelled"
	case Failure:
		return "Failure"
	default:
		return "Status(unknown)"
	}
}

// Converger checks whether a sequence of major-iteration function values has
// converged. FunctionConverge is the only implementation in this package,
// reused by Powell and CMA-ES (§9).
type Converger interface {
	Init(f float64)
	FunctionConverged(f float64) Status
}

// Result is the answer of a single kernel Run call.
type Result struct {
	Location
	Stats
	Status Status
}

// resize returns a slice of length n, reusing x's backing array when it is
// large enough.
func resize(x []float64, n int) []float64 {
	if cap(x) >= n {
		return x[:n]
	}
	return make([]float64, n)
}
