package optimize

import "testing"

func TestPowellConvergesOnSphere(t *testing.T) {
	box, _ := NewBox([]float64{-5, -5}, []float64{5, 5})
	x0 := []float64{2, 3}
	p := &Powell{}
	res := p.Run(sphereFunc, box, x0, 2000)
	if res.Location.F >= 5 {
		t.Fatalf("f = %v, want < 5 within 2000 evaluations", res.Location.F)
	}
}

func TestPowellStaysInBounds(t *testing.T) {
	box, _ := NewBox([]float64{-1, -1}, []float64{1, 1})
	x0 := []float64{0.5, -0.5}
	p := &Powell{}
	res := p.Run(sphereFunc, box, x0, 500)
	if !box.Contains(res.Location.X, 1e-9) {
		t.Fatalf("x = %v escaped the box with more than 1e-9 slack", res.Location.X)
	}
}

func TestPowellReducesRosenbrock(t *testing.T) {
	rosen := func(x []float64) float64 {
		return (1-x[0])*(1-x[0]) + 100*(x[1]-x[0]*x[0])*(x[1]-x[0]*x[0])
	}
	box, _ := NewBox([]float64{-5, -5}, []float64{5, 5})
	p := &Powell{}
	res := p.Run(rosen, box, []float64{0, 0}, 5000)
	if res.Location.F >= rosen([]float64{0, 0}) {
		t.Fatalf("f = %v, did not improve on the start value", res.Location.F)
	}
}
