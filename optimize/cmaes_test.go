package optimize

import (
	"testing"

	"golang.org/x/exp/rand"
)

func TestCMAESReducesSphere(t *testing.T) {
	box, _ := NewBox([]float64{-5, -5}, []float64{5, 5})
	x0 := []float64{2, 3}
	c := &CMAES{Src: rand.New(rand.NewSource(1))}
	res := c.Run(sphereFunc, box, x0, 5000)
	if res.Location.F >= sphereFunc(x0) {
		t.Fatalf("f = %v, did not improve on the start value %v", res.Location.F, sphereFunc(x0))
	}
}

func TestCMAESStaysInBounds(t *testing.T) {
	box, _ := NewBox([]float64{-1, -1}, []float64{1, 1})
	x0 := []float64{0.5, 0.5}
	c := &CMAES{Src: rand.New(rand.NewSource(2))}
	res := c.Run(sphereFunc, box, x0, 1000)
	if !box.Contains(res.Location.X, 1e-9) {
		t.Fatalf("x = %v escaped the box with more than 1e-9 slack", res.Location.X)
	}
}

func TestCMAESRespectsEvaluationBudget(t *testing.T) {
	box, _ := NewBox([]float64{-5, -5}, []float64{5, 5})
	x0 := []float64{2, 3}
	c := &CMAES{Src: rand.New(rand.NewSource(3))}
	res := c.Run(sphereFunc, box, x0, 50)
	if res.Stats.FuncEvaluations > 50 {
		t.Fatalf("FuncEvaluations = %d, want <= 50", res.Stats.FuncEvaluations)
	}
}
