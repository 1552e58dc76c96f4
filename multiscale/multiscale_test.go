package multiscale

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"rescribe.xyz/contextfeat/field"
	"rescribe.xyz/contextfeat/integralimg"
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

func constField(w, h, c int, v float64) *field.Field {
	f := field.New(w, h, c)
	for i := range f.Elems {
		f.Elems[i] = v
	}
	return f
}

func windowSumSlow(f *field.Field, x, y, r, c int) float64 {
	var sum float64
	for yy := y - r; yy <= y+r; yy++ {
		for xx := x - r; xx <= x+r; xx++ {
			sum += f.At(xx, yy, c)
		}
	}
	return sum
}

// TestMeanSmall checks the complete behaviour of Mean on a 5x5 single
// channel field of ones with a radius of 1: interior locations have a
// full window of ones so their mean is 1, and locations within 1 of
// the edge get the fill value, which for a single channel is also 1.
func TestMeanSmall(t *testing.T) {
	f := constField(5, 5, 1, 1.0)
	out, err := Mean(f, []int{1})
	if err != nil {
		t.Fatalf("Mean failed: %v", err)
	}
	if out.Width != 5 || out.Height != 5 || out.Channels != 1 {
		t.Fatalf("Output shape was %dx%dx%d, expected 5x5x1", out.Width, out.Height, out.Channels)
	}
	if got := out.At(2, 2, 0); math.Abs(got-1.0) > eps {
		t.Errorf("Interior mean was %v, expected 1.0", got)
	}
	if got := out.At(0, 0, 0); math.Abs(got-1.0) > eps {
		t.Errorf("Corner fill was %v, expected 1.0", got)
	}
}

// TestBorderFill uses an explicit fill value so border locations are
// distinguishable from real means, and checks that every location
// whose window exits the field gets exactly the fill, not a partial
// window sum.
func TestBorderFill(t *testing.T) {
	f := randField(7, 7, 1, 5)
	const fill = 0.25
	out, err := MeanFill(f, []int{2}, fill)
	if err != nil {
		t.Fatalf("MeanFill failed: %v", err)
	}
	for y := 0; y < 7; y++ {
		for x := 0; x < 7; x++ {
			border := x < 2 || y < 2 || x > 4 || y > 4
			got := out.At(x, y, 0)
			if border && got != fill {
				t.Errorf("Border location %d,%d was %v, expected fill %v", x, y, got, fill)
			}
			if !border && got == fill {
				t.Errorf("Interior location %d,%d got the fill value", x, y)
			}
		}
	}
}

// TestRingDecomposition checks that the mean at each radius after the
// first covers only the ring between it and the previous radius:
// multiplying it by the ring size and adding the previous window sum
// must recover the full window sum.
func TestRingDecomposition(t *testing.T) {
	f := randField(20, 20, 2, 77)
	radii := []int{1, 3, 5}
	out, err := Mean(f, radii)
	if err != nil {
		t.Fatalf("Mean failed: %v", err)
	}

	x, y := 9, 10
	for c := 0; c < 2; c++ {
		prevsum := 0.0
		prevsize := 0
		for i, r := range radii {
			size := (2*r + 1) * (2*r + 1)
			fullsum := windowSumSlow(f, x, y, r, c)
			mean := out.At(x, y, c*len(radii)+i)
			got := mean*float64(size-prevsize) + prevsum
			if math.Abs(got-fullsum) > 1e-6 {
				t.Errorf("Ring mean at radius %d channel %d does not recompose: got %v, expected %v", r, c, got, fullsum)
			}
			prevsum = fullsum
			prevsize = size
		}
	}
}

func TestMeanVar(t *testing.T) {
	f := randField(16, 12, 2, 13)
	radii := []int{1, 2}
	nr := len(radii)
	out, err := MeanVar(f, radii)
	if err != nil {
		t.Fatalf("MeanVar failed: %v", err)
	}
	if out.Channels != 2*2*nr {
		t.Fatalf("Output channels was %d, expected %d", out.Channels, 2*2*nr)
	}

	// Variance must never be meaningfully negative anywhere.
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			for c := 0; c < f.Channels; c++ {
				for i := 0; i < nr; i++ {
					v := out.At(x, y, c*2*nr+nr+i)
					if v < -eps {
						t.Fatalf("Negative variance %v at %d,%d channel %d radius index %d", v, x, y, c, i)
					}
				}
			}
		}
	}

	// Check an interior location against direct calculation for the
	// innermost radius, where the ring is the whole window.
	x, y, c, r := 8, 6, 1, 1
	n := float64((2*r + 1) * (2*r + 1))
	mean := windowSumSlow(f, x, y, r, c) / n
	var sq float64
	for yy := y - r; yy <= y+r; yy++ {
		for xx := x - r; xx <= x+r; xx++ {
			sq += f.At(xx, yy, c) * f.At(xx, yy, c)
		}
	}
	wantvar := sq/n - mean*mean
	if got := out.At(x, y, c*2*nr); math.Abs(got-mean) > 1e-6 {
		t.Errorf("Mean was %v, expected %v", got, mean)
	}
	if got := out.At(x, y, c*2*nr+nr); math.Abs(got-wantvar) > 1e-6 {
		t.Errorf("Variance was %v, expected %v", got, wantvar)
	}
}

// TestMeanVarConstant checks that on a constant field every in-window
// mean is the constant and every variance is zero.
func TestMeanVarConstant(t *testing.T) {
	const k = 0.7
	f := constField(15, 15, 1, k)
	radii := []int{1, 3}
	nr := len(radii)
	out, err := MeanVar(f, radii)
	if err != nil {
		t.Fatalf("MeanVar failed: %v", err)
	}
	for y := 3; y < 12; y++ {
		for x := 3; x < 12; x++ {
			for i := 0; i < nr; i++ {
				if got := out.At(x, y, i); math.Abs(got-k) > eps {
					t.Errorf("Mean at %d,%d radius index %d was %v, expected %v", x, y, i, got, k)
				}
				if got := out.At(x, y, nr+i); math.Abs(got) > 1e-6 {
					t.Errorf("Variance at %d,%d radius index %d was %v, expected 0", x, y, i, got)
				}
			}
		}
	}
}

func TestShapes(t *testing.T) {
	cases := []struct {
		channels int
		radii    []int
	}{
		{1, []int{1}},
		{1, []int{1, 2, 4}},
		{4, []int{1}},
		{4, []int{1, 2, 4}},
	}

	for _, c := range cases {
		t.Run(fmt.Sprintf("c%d_r%d", c.channels, len(c.radii)), func(t *testing.T) {
			f := randField(10, 10, c.channels, 7)
			out, err := Mean(f, c.radii)
			if err != nil {
				t.Fatalf("Mean failed: %v", err)
			}
			if want := c.channels * len(c.radii); out.Channels != want {
				t.Errorf("Mean output channels was %d, expected %d", out.Channels, want)
			}
			out, err = MeanVar(f, c.radii)
			if err != nil {
				t.Fatalf("MeanVar failed: %v", err)
			}
			if want := c.channels * 2 * len(c.radii); out.Channels != want {
				t.Errorf("MeanVar output channels was %d, expected %d", out.Channels, want)
			}
		})
	}
}

func TestBadRadii(t *testing.T) {
	f := randField(8, 8, 1, 2)

	cases := []struct {
		name  string
		radii []int
	}{
		{"empty", []int{}},
		{"negative", []int{-1, 2}},
		{"equal", []int{2, 2}},
		{"decreasing", []int{3, 1}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := Mean(f, c.radii); err == nil {
				t.Errorf("Expected error for radii %v, got none", c.radii)
			}
			if _, err := MeanVar(f, c.radii); err == nil {
				t.Errorf("Expected error for radii %v, got none", c.radii)
			}
		})
	}
}

func TestWindowMeans(t *testing.T) {
	f := randField(15, 15, 3, 31)
	ii := integralimg.ToIntegralImg(f)
	radii := []int{2, 4}

	means, err := WindowMeans(ii, 7, 7, 1, radii, DefaultFill(3))
	if err != nil {
		t.Fatalf("WindowMeans failed: %v", err)
	}
	if len(means) != len(radii) {
		t.Fatalf("Got %d means, expected %d", len(means), len(radii))
	}

	want := windowSumSlow(f, 7, 7, 2, 1) / 25
	if math.Abs(means[0]-want) > eps {
		t.Errorf("Innermost mean was %v, expected %v", means[0], want)
	}

	// A location too close to the edge for any radius gets the fill
	// for every entry.
	means, err = WindowMeans(ii, 1, 7, 0, radii, DefaultFill(3))
	if err != nil {
		t.Fatalf("WindowMeans failed: %v", err)
	}
	for i, m := range means {
		if m != DefaultFill(3) {
			t.Errorf("Out of window mean %d was %v, expected fill %v", i, m, DefaultFill(3))
		}
	}
}

// TestLargeParallel runs a field big enough to take the worker pool
// path and checks it against the single goroutine path.
func TestLargeParallel(t *testing.T) {
	f := randField(150, 120, 2, 3)
	radii := []int{1, 4, 9}

	par, err := Mean(f, radii)
	if err != nil {
		t.Fatalf("Mean failed: %v", err)
	}

	// Recompute sequentially at a scattering of locations.
	ii := integralimg.ToIntegralImg(f)
	nr := len(radii)
	for _, loc := range [][2]int{{0, 0}, {9, 9}, {75, 60}, {149, 119}, {20, 100}} {
		x, y := loc[0], loc[1]
		for c := 0; c < 2; c++ {
			means, err := WindowMeans(ii, x, y, c, radii, DefaultFill(2))
			if err != nil {
				t.Fatalf("WindowMeans failed: %v", err)
			}
			for i, m := range means {
				if got := par.At(x, y, c*nr+i); math.Abs(got-m) > eps {
					t.Errorf("Parallel mean at %d,%d channel %d radius index %d was %v, expected %v", x, y, c, i, got, m)
				}
			}
		}
	}
}
