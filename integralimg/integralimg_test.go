package integralimg

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"rescribe.xyz/contextfeat/field"
)

const eps = 1e-9

func randField(w, h, c int, seed int64) *field.Field {
	rnd := rand.New(rand.NewSource(seed))
	f := field.New(w, h, c)
	for i := range f.Elems {
		f.Elems[i] = rnd.Float64()
	}
	return f
}

// windowSumSlow sums the window directly from the field, for
// checking the integral image shortcut against.
func windowSumSlow(f *field.Field, x, y, r, c int) float64 {
	var sum float64
	for yy := y - r; yy <= y+r; yy++ {
		for xx := x - r; xx <= x+r; xx++ {
			sum += f.At(xx, yy, c)
		}
	}
	return sum
}

func TestWindowSum(t *testing.T) {
	f := randField(12, 9, 3, 42)
	i := ToIntegralImg(f)

	cases := []struct {
		x, y, r, c int
	}{
		{5, 4, 2, 0},
		{5, 4, 2, 2},
		{5, 4, 0, 1},
		{2, 2, 2, 0},
		{1, 1, 1, 1},
		{9, 6, 2, 2},
		{11, 8, 0, 0},
		{6, 4, 4, 1},
	}

	for _, c := range cases {
		t.Run(fmt.Sprintf("%d,%d_r%d_c%d", c.x, c.y, c.r, c.c), func(t *testing.T) {
			if !i.InWindow(c.x, c.y, c.r) {
				t.Fatalf("Window %v unexpectedly reported out of image", c)
			}
			got := i.GetWindow(c.x, c.y, c.r, c.c).Sum()
			want := windowSumSlow(f, c.x, c.y, c.r, c.c)
			if math.Abs(got-want) > eps {
				t.Errorf("Window sum at %d,%d r %d c %d was %v, expected %v", c.x, c.y, c.r, c.c, got, want)
			}
		})
	}
}

// TestWindowSumAtEdge checks the windows whose subtracted rectangles
// fall entirely outside the image, where the corner sums are zeroed
// rather than read.
func TestWindowSumAtEdge(t *testing.T) {
	f := randField(8, 8, 2, 17)
	i := ToIntegralImg(f)

	cases := []struct {
		x, y, r, c int
	}{
		{2, 2, 2, 0}, // x == r and y == r
		{2, 4, 2, 0}, // x == r only
		{4, 2, 2, 1}, // y == r only
		{0, 0, 0, 0},
		{3, 3, 3, 1},
	}

	for _, c := range cases {
		got := i.GetWindow(c.x, c.y, c.r, c.c).Sum()
		want := windowSumSlow(f, c.x, c.y, c.r, c.c)
		if math.Abs(got-want) > eps {
			t.Errorf("Edge window sum at %d,%d r %d c %d was %v, expected %v", c.x, c.y, c.r, c.c, got, want)
		}
	}
}

func TestInWindow(t *testing.T) {
	f := randField(10, 6, 1, 1)
	i := ToIntegralImg(f)

	cases := []struct {
		x, y, r int
		in      bool
	}{
		{5, 3, 0, true},
		{0, 0, 0, true},
		{0, 0, 1, false},
		{1, 1, 1, true},
		{9, 5, 0, true},
		{9, 5, 1, false},
		{8, 4, 1, true},
		{5, 3, 3, false}, // y+r exceeds height
		{5, 2, 3, false}, // y < r
		{3, 3, 3, false}, // y+r exceeds height again
	}

	for _, c := range cases {
		if got := i.InWindow(c.x, c.y, c.r); got != c.in {
			t.Errorf("InWindow(%d, %d, %d) = %v, expected %v", c.x, c.y, c.r, got, c.in)
		}
	}
}

func TestMeanVarianceWindow(t *testing.T) {
	f := randField(11, 11, 2, 99)
	ws := ToAllIntegralImg(f)

	x, y, r, c := 5, 5, 3, 1
	mean, variance := ws.MeanVarianceWindow(x, y, r, c)

	n := float64((2*r + 1) * (2*r + 1))
	want := windowSumSlow(f, x, y, r, c) / n
	var wantvar float64
	for yy := y - r; yy <= y+r; yy++ {
		for xx := x - r; xx <= x+r; xx++ {
			d := f.At(xx, yy, c) - want
			wantvar += d * d
		}
	}
	wantvar /= n

	if math.Abs(mean-want) > eps {
		t.Errorf("Window mean was %v, expected %v", mean, want)
	}
	if math.Abs(variance-wantvar) > 1e-6 {
		t.Errorf("Window variance was %v, expected %v", variance, wantvar)
	}
	if variance < 0 {
		t.Errorf("Window variance was negative: %v", variance)
	}
}
