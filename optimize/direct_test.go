package optimize

import (
	"math"
	"testing"
)

func TestDIRECTConvergesOnSphere(t *testing.T) {
	box, _ := NewBox([]float64{-5, -5}, []float64{5, 5})
	d := &DIRECT{XThreshold: 1e-4, AllowDuplicatesInHull: true}
	res := d.Run(sphereFunc, box, 20000)
	if res.Status != Converged {
		t.Fatalf("status = %v, want Converged", res.Status)
	}
	if res.Location.F >= 1e-6 {
		t.Fatalf("f = %v, want < 1e-6", res.Location.F)
	}
}

func TestDIRECTStaysInBounds(t *testing.T) {
	box, _ := NewBox([]float64{-3, -3}, []float64{3, 3})
	d := &DIRECT{}
	res := d.Run(sphereFunc, box, 500)
	if !box.Contains(res.Location.X, 1e-9) {
		t.Fatalf("x = %v escaped the box with more than 1e-9 slack", res.Location.X)
	}
}

func TestRectDiameterIgnoresNegligibleWidths(t *testing.T) {
	d1 := rectDiameter([]float64{1, 1e-13})
	d2 := rectDiameter([]float64{1, 0})
	if d1 != d2 {
		t.Fatalf("got %v and %v, want equal diameters when a width is negligible", d1, d2)
	}
}

func TestSelectPotentiallyOptimalReturnsHullVertices(t *testing.T) {
	rects := []*rectangle{
		newRectangle([]float64{0.5}, []float64{1}, 0, 0),
		newRectangle([]float64{0.5}, []float64{0.5}, 2, 1),
		newRectangle([]float64{0.5}, []float64{0.1}, 10, 2),
	}
	hull := selectPotentiallyOptimal(rects, true)
	if len(hull) == 0 {
		t.Fatal("expected at least one rectangle on the hull")
	}
	// The smallest-diameter rectangle, being an extreme point in diameter,
	// must always lie on the lower convex hull.
	found := false
	for _, r := range hull {
		if r.serial == 2 {
			found = true
		}
	}
	if !found {
		t.Fatalf("hull %v did not include the minimum-diameter rectangle", hull)
	}
}

func TestSelectPotentiallyOptimalDuplicateModeSwitch(t *testing.T) {
	rects := []*rectangle{
		newRectangle([]float64{0.5}, []float64{1}, 1, 0),
		newRectangle([]float64{0.4}, []float64{1}, 1, 1),
	}
	withDup := selectPotentiallyOptimal(rects, true)
	withoutDup := selectPotentiallyOptimal(rects, false)
	if len(withDup) <= len(withoutDup) {
		t.Fatalf("expected Jones mode (%d) to keep more ties than Gablonsky mode (%d)", len(withDup), len(withoutDup))
	}
}

func TestIsPromisingUsesRunningBestNotParentValue(t *testing.T) {
	// A child strictly better than its parent but still worse than the
	// running global best must not be flagged promising.
	if isPromising(10, 8, 5) {
		t.Fatal("expected isPromising to compare against bestF, not the parent's own value")
	}
	if !isPromising(10, 1, 5) {
		t.Fatal("expected a child projecting well below bestF to be promising")
	}
}

func TestDirectThresholdDiameterDecreasesWithTighterX(t *testing.T) {
	loose := directThresholdDiameter(2, 1e-2)
	tight := directThresholdDiameter(2, 1e-6)
	if !(tight < loose) {
		t.Fatalf("got tight=%v loose=%v, want tight < loose", tight, loose)
	}
}

func TestDIRECTDivideRectangleKeepsChildrenInUnitCube(t *testing.T) {
	r := newRectangle([]float64{0.5, 0.5}, []float64{1, 1}, 0, 0)
	serial := 1
	children, _ := divideRectangle(r, func(x []float64) float64 { return sphereFunc(x) }, &serial, math.Inf(1))
	if len(children) == 0 {
		t.Fatal("expected at least one child rectangle")
	}
	for _, c := range children {
		for _, ci := range c.center {
			if ci < 0 || ci > 1 {
				t.Fatalf("child centre %v left the unit cube", c.center)
			}
		}
	}
}
