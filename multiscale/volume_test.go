package multiscale

import (
	"math"
	"math/rand"
	"testing"

	"rescribe.xyz/contextfeat/field"
	"rescribe.xyz/contextfeat/integralimg"
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

func TestMean3D(t *testing.T) {
	v := randVolume(9, 9, 9, 2, 11)
	radii := []int{1, 3}
	nr := len(radii)
	out, err := Mean3D(v, radii)
	if err != nil {
		t.Fatalf("Mean3D failed: %v", err)
	}
	if out.Channels != 2*nr {
		t.Fatalf("Output channels was %d, expected %d", out.Channels, 2*nr)
	}

	// Centre location fits both radii; check the ring decomposition
	// against direct sums.
	x, y, z := 4, 4, 4
	for c := 0; c < 2; c++ {
		prevsum := 0.0
		prevsize := 0
		for i, r := range radii {
			size := (2*r + 1) * (2*r + 1) * (2*r + 1)
			fullsum := volWindowSumSlow(v, x, y, z, r, c)
			mean := out.At(x, y, z, c*nr+i)
			got := mean*float64(size-prevsize) + prevsum
			if math.Abs(got-fullsum) > 1e-6 {
				t.Errorf("Ring mean at radius %d channel %d does not recompose: got %v, expected %v", r, c, got, fullsum)
			}
			prevsum = fullsum
			prevsize = size
		}
	}

	// A corner location fits no radius, so every feature there is the
	// fill value.
	for c := 0; c < 2; c++ {
		for i := 0; i < nr; i++ {
			if got := out.At(0, 0, 0, c*nr+i); got != DefaultFill(2) {
				t.Errorf("Corner feature %d channel %d was %v, expected fill %v", i, c, got, DefaultFill(2))
			}
		}
	}
}

func TestMeanVar3DConstant(t *testing.T) {
	const k = 0.3
	v := field.NewVolume(7, 7, 7, 1)
	for i := range v.Elems {
		v.Elems[i] = k
	}
	radii := []int{1, 2}
	nr := len(radii)
	out, err := MeanVar3D(v, radii)
	if err != nil {
		t.Fatalf("MeanVar3D failed: %v", err)
	}
	if out.Channels != 2*nr {
		t.Fatalf("Output channels was %d, expected %d", out.Channels, 2*nr)
	}

	// The centre fits both radii.
	for i := 0; i < nr; i++ {
		if got := out.At(3, 3, 3, i); math.Abs(got-k) > eps {
			t.Errorf("Mean at radius index %d was %v, expected %v", i, got, k)
		}
		if got := out.At(3, 3, 3, nr+i); math.Abs(got) > 1e-6 {
			t.Errorf("Variance at radius index %d was %v, expected 0", i, got)
		}
	}
}

func TestMeanVar3DNonNegative(t *testing.T) {
	v := randVolume(8, 8, 8, 1, 43)
	radii := []int{1, 2}
	nr := len(radii)
	out, err := MeanVar3D(v, radii)
	if err != nil {
		t.Fatalf("MeanVar3D failed: %v", err)
	}
	for z := 0; z < 8; z++ {
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				for i := 0; i < nr; i++ {
					if got := out.At(x, y, z, nr+i); got < -eps {
						t.Fatalf("Negative variance %v at %d,%d,%d radius index %d", got, x, y, z, i)
					}
				}
			}
		}
	}
}

func TestWindowMeans3D(t *testing.T) {
	v := randVolume(9, 9, 9, 1, 4)
	iv := integralimg.ToIntegralVol(v)

	means, err := WindowMeans3D(iv, 4, 4, 4, 0, []int{2}, DefaultFill(1))
	if err != nil {
		t.Fatalf("WindowMeans3D failed: %v", err)
	}
	want := volWindowSumSlow(v, 4, 4, 4, 2, 0) / 125
	if math.Abs(means[0]-want) > eps {
		t.Errorf("Window mean was %v, expected %v", means[0], want)
	}
}
