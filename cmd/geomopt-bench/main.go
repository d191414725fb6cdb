// Command geomopt-bench is a manual smoke-test harness over the optimize
// package's built-in benchmark objectives. It is not part of the library's
// contract (spec §1); it exists so a developer can eyeball convergence
// behavior across kernels and objectives from the command line.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/PhantasticUniverse/geomopt/internal/bench"
	"github.com/PhantasticUniverse/geomopt/optimize"
)

func main() {
	objName := flag.String("objective", "sphere", "benchmark objective: sphere|quadratic|rosenbrock|sines")
	kernelName := flag.String("kernel", "direct", "preferred kernel: direct|bobyqa|brent|cmaes|simplex|powell")
	dim := flag.Int("dim", 2, "problem dimension (ignored by rosenbrock and sines, which are fixed at 2)")
	lower := flag.Float64("lower", -5, "lower bound, applied to every dimension")
	upper := flag.Float64("upper", 5, "upper bound, applied to every dimension")
	maxEvals := flag.Int("maxevals", 10000, "evaluation budget")
	starts := flag.Int("starts", 1, "number of multi-start restarts; >1 activates the multi-start path")
	strategyName := flag.String("strategy", "uniform", "multi-start sampling strategy: uniform|grid|lhs")
	forceDirect := flag.Bool("force-direct", false, "force a DIRECT exploration pass regardless of the preferred kernel")
	flag.Parse()

	kernel, err := parseKernel(*kernelName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	strategy, err := parseStrategy(*strategyName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	n := *dim
	enc := bench.NewPointEncoding(n)
	ev, err := buildEvaluator(*objName, enc)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	n = enc.Dim()

	lo := make([]float64, n)
	hi := make([]float64, n)
	for i := range lo {
		lo[i], hi[i] = *lower, *upper
	}

	obj, err := optimize.NewObjective(enc, ev, lo, hi, kernel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "build objective:", err)
		os.Exit(1)
	}

	orch := optimize.NewOrchestrator(optimize.Options{
		MaxEvaluations: *maxEvals,
		NumberOfStarts: *starts,
		Strategy:       strategy,
		ForceDirect:    *forceDirect,
	})

	res := orch.Optimize(obj)
	fmt.Printf("objective=%s kernel=%s n=%d starts=%d\n", *objName, kernel, n, *starts)
	fmt.Printf("success=%t evaluations=%d tunings=%d elapsed=%s runID=%s\n",
		res.Success, res.Evaluations, res.Tunings, res.Elapsed, res.RunID)
	fmt.Printf("initialNorm=%.6g finalNorm=%.6g ratio=%.6g\n", res.InitialNorm, res.FinalNorm, res.ResidualErrorRatio)
	fmt.Printf("point=%v\n", res.Point)
	if res.Error != "" {
		fmt.Printf("error=%s\n", res.Error)
	}
}

func buildEvaluator(name string, enc *bench.PointEncoding) (optimize.Evaluator, error) {
	switch name {
	case "sphere":
		return bench.Sphere(enc), nil
	case "quadratic":
		center := make([]float64, enc.Dim())
		for i := range center {
			center[i] = 1
		}
		return bench.ShiftedQuadratic(enc, center), nil
	case "rosenbrock":
		resizeEncoding(enc, 2)
		return bench.Rosenbrock(enc), nil
	case "sines":
		resizeEncoding(enc, 2)
		return bench.SumOfSines(enc), nil
	default:
		return nil, fmt.Errorf("unknown objective %q", name)
	}
}

// resizeEncoding pins a benchmark objective that is only defined in two
// dimensions to that dimension, overriding whatever -dim the caller passed.
func resizeEncoding(enc *bench.PointEncoding, n int) {
	if enc.Dim() != n {
		enc.X = make([]float64, n)
	}
}

func parseKernel(s string) (optimize.Kernel, error) {
	switch s {
	case "direct":
		return optimize.KernelDIRECT, nil
	case "bobyqa":
		return optimize.KernelBOBYQA, nil
	case "brent":
		return optimize.KernelBrent, nil
	case "cmaes":
		return optimize.KernelCMAES, nil
	case "simplex":
		return optimize.KernelSimplex, nil
	case "powell":
		return optimize.KernelPowell, nil
	default:
		return 0, fmt.Errorf("unknown kernel %q", s)
	}
}

func parseStrategy(s string) (optimize.Strategy, error) {
	switch s {
	case "uniform":
		return optimize.StrategyUniform, nil
	case "grid":
		return optimize.StrategyGrid, nil
	case "lhs":
		return optimize.StrategyLHS, nil
	default:
		return 0, fmt.Errorf("unknown strategy %q", s)
	}
}
