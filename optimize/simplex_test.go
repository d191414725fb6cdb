package optimize

import "testing"

func sphereFunc(x []float64) float64 {
	var sum float64
	for _, xi := range x {
		sum += xi * xi
	}
	return sum
}

func TestSimplexConvergesOnSphere(t *testing.T) {
	box, _ := NewBox([]float64{-5, -5}, []float64{5, 5})
	x0 := []float64{2, 3}
	s := &Simplex{}
	res := s.Run(sphereFunc, box, x0, []float64{1, 1}, 2000)
	if res.Location.F >= 5 {
		t.Fatalf("f = %v, want < 5 within 2000 evaluations", res.Location.F)
	}
}

func TestSimplexStaysInBounds(t *testing.T) {
	box, _ := NewBox([]float64{-1, -1}, []float64{1, 1})
	x0 := []float64{0.5, 0.5}
	s := &Simplex{}
	res := s.Run(sphereFunc, box, x0, []float64{0.5, 0.5}, 500)
	if !box.Contains(res.Location.X, 1e-9) {
		t.Fatalf("x = %v escaped the box with more than 1e-9 slack", res.Location.X)
	}
}
