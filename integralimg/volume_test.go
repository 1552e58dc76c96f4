package integralimg

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"rescribe.xyz/contextfeat/field"
)

func randVolume(w, h, d, c int, seed int64) *field.Volume {
	rnd := rand.New(rand.NewSource(seed))
	v := field.NewVolume(w, h, d, c)
	for i := range v.Elems {
		v.Elems[i] = rnd.Float64()
	}
	return v
}

func volWindowSumSlow(v *field.Volume, x, y, z, r, c int) float64 {
	var sum float64
	for zz := z - r; zz <= z+r; zz++ {
		for yy := y - r; yy <= y+r; yy++ {
			for xx := x - r; xx <= x+r; xx++ {
				sum += v.At(xx, yy, zz, c)
			}
		}
	}
	return sum
}

func TestVolWindowSum(t *testing.T) {
	v := randVolume(9, 8, 7, 2, 23)
	i := ToIntegralVol(v)

	cases := []struct {
		x, y, z, r, c int
	}{
		{4, 4, 3, 2, 0},
		{4, 4, 3, 2, 1},
		{4, 4, 3, 0, 0},
		{2, 2, 2, 2, 0}, // every axis at the zeroed corner boundary
		{2, 4, 3, 2, 1}, // x == r only
		{4, 2, 3, 2, 0}, // y == r only
		{4, 4, 2, 2, 1}, // z == r only
		{6, 5, 4, 2, 0},
		{8, 7, 6, 0, 1},
	}

	for _, c := range cases {
		t.Run(fmt.Sprintf("%d,%d,%d_r%d_c%d", c.x, c.y, c.z, c.r, c.c), func(t *testing.T) {
			if !i.InWindow(c.x, c.y, c.z, c.r) {
				t.Fatalf("Window %v unexpectedly reported out of volume", c)
			}
			got := i.GetWindow(c.x, c.y, c.z, c.r, c.c).Sum()
			want := volWindowSumSlow(v, c.x, c.y, c.z, c.r, c.c)
			if math.Abs(got-want) > eps {
				t.Errorf("Window sum at %d,%d,%d r %d c %d was %v, expected %v", c.x, c.y, c.z, c.r, c.c, got, want)
			}
		})
	}
}

func TestVolInWindow(t *testing.T) {
	v := randVolume(6, 5, 4, 1, 3)
	i := ToIntegralVol(v)

	cases := []struct {
		x, y, z, r int
		in         bool
	}{
		{3, 2, 2, 0, true},
		{0, 0, 0, 0, true},
		{0, 0, 0, 1, false},
		{1, 1, 1, 1, true},
		{5, 4, 3, 0, true},
		{4, 3, 2, 1, true},
		{4, 3, 3, 1, false}, // z+r exceeds depth
		{3, 2, 2, 2, false}, // y and z both too close to the far side
	}

	for _, c := range cases {
		if got := i.InWindow(c.x, c.y, c.z, c.r); got != c.in {
			t.Errorf("InWindow(%d, %d, %d, %d) = %v, expected %v", c.x, c.y, c.z, c.r, got, c.in)
		}
	}
}

func TestVolMeanVarianceWindow(t *testing.T) {
	v := randVolume(7, 7, 7, 1, 51)
	ws := ToAllIntegralVol(v)

	x, y, z, r := 3, 3, 3, 2
	mean, variance := ws.MeanVarianceWindow(x, y, z, r, 0)

	n := float64((2*r + 1) * (2*r + 1) * (2*r + 1))
	want := volWindowSumSlow(v, x, y, z, r, 0) / n
	var wantvar float64
	for zz := z - r; zz <= z+r; zz++ {
		for yy := y - r; yy <= y+r; yy++ {
			for xx := x - r; xx <= x+r; xx++ {
				d := v.At(xx, yy, zz, 0) - want
				wantvar += d * d
			}
		}
	}
	wantvar /= n

	if math.Abs(mean-want) > eps {
		t.Errorf("Window mean was %v, expected %v", mean, want)
	}
	if math.Abs(variance-wantvar) > 1e-6 {
		t.Errorf("Window variance was %v, expected %v", variance, wantvar)
	}
}
