package optimize

import "testing"

func TestNewBoxRejectsMismatchedLength(t *testing.T) {
	if _, err := NewBox([]float64{0, 0}, []float64{1}); err != ErrDimensionMismatch {
		t.Fatalf("got %v, want ErrDimensionMismatch", err)
	}
}

func TestNewBoxRejectsZeroDimension(t *testing.T) {
	if _, err := NewBox(nil, nil); err != ErrZeroDimension {
		t.Fatalf("got %v, want ErrZeroDimension", err)
	}
}

func TestValidateSwapsReversedBounds(t *testing.T) {
	b, err := NewBox([]float64{5}, []float64{-5})
	if err != nil {
		t.Fatal(err)
	}
	if b.Lower[0] != -5 || b.Upper[0] != 5 {
		t.Fatalf("bounds not swapped: lower=%v upper=%v", b.Lower, b.Upper)
	}
}

func TestValidateWidensDegenerateBounds(t *testing.T) {
	b, err := NewBox([]float64{3}, []float64{3})
	if err != nil {
		t.Fatal(err)
	}
	if b.Lower[0] >= b.Upper[0] {
		t.Fatalf("degenerate bound not widened: lower=%v upper=%v", b.Lower, b.Upper)
	}
}

func TestClipClampsComponentwise(t *testing.T) {
	b, _ := NewBox([]float64{-1, -1}, []float64{1, 1})
	got := b.Clip(nil, []float64{-5, 5})
	if got[0] != -1 || got[1] != 1 {
		t.Fatalf("got %v, want [-1 1]", got)
	}
}

func TestClipDoesNotMutateInput(t *testing.T) {
	b, _ := NewBox([]float64{-1}, []float64{1})
	x := []float64{5}
	_ = b.Clip(nil, x)
	if x[0] != 5 {
		t.Fatalf("Clip mutated its input: %v", x)
	}
}

func TestContainsHonorsSlack(t *testing.T) {
	b, _ := NewBox([]float64{0}, []float64{1})
	if !b.Contains([]float64{1 + 1e-10}, 1e-9) {
		t.Fatal("expected a point within the 1e-9 slack to be contained")
	}
	if b.Contains([]float64{1.1}, 1e-9) {
		t.Fatal("expected a point well outside the box to be rejected")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	b, _ := NewBox([]float64{0}, []float64{1})
	c := b.Clone()
	c.Lower[0] = -99
	if b.Lower[0] == -99 {
		t.Fatal("Clone shares backing storage with the original")
	}
}
