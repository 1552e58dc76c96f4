package integralimg

import (
	"rescribe.xyz/contextfeat/field"
)

// Vol is the Integral Volume of a 3 dimensional field; the value at
// x, y, z holds the sum of every field value with all three
// coordinates less than or equal to x, y, z, per channel.
type Vol field.Volume

// VolWithSq contains an Integral Volume and its Square
type VolWithSq struct {
	Vol *Vol
	Sq  *Vol
}

// VolWindow is a part of an Integral Volume, holding the eight corner
// sums needed to calculate the sum of the values within it. The
// corners are grouped into the plane just in front of the window and
// the plane at its back face; the window sum is the difference of the
// two plane differences.
type VolWindow struct {
	front Window
	back  Window
	size  int
}

// ToIntegralVol creates an integral volume
func ToIntegralVol(v *field.Volume) *Vol {
	return buildVol(v, false)
}

// ToSqIntegralVol creates an integral volume of the square of all
// field values
func ToSqIntegralVol(v *field.Volume) *Vol {
	return buildVol(v, true)
}

// ToAllIntegralVol creates a VolWithSq containing a regular and
// squared Integral Volume
func ToAllIntegralVol(v *field.Volume) VolWithSq {
	return VolWithSq{
		Vol: ToIntegralVol(v),
		Sq:  ToSqIntegralVol(v),
	}
}

// buildVol does a running sum sweep along each axis in turn, which
// yields the same table as summing the full octant for each element
// but in linear time.
func buildVol(v *field.Volume, square bool) *Vol {
	f := field.NewVolume(v.Width, v.Height, v.Depth, v.Channels)
	copy(f.Elems, v.Elems)
	if square {
		for i, e := range f.Elems {
			f.Elems[i] = e * e
		}
	}
	for z := 0; z < f.Depth; z++ {
		for y := 0; y < f.Height; y++ {
			for x := 1; x < f.Width; x++ {
				for c := 0; c < f.Channels; c++ {
					f.Set(x, y, z, c, f.At(x, y, z, c)+f.At(x-1, y, z, c))
				}
			}
		}
	}
	for z := 0; z < f.Depth; z++ {
		for y := 1; y < f.Height; y++ {
			for x := 0; x < f.Width; x++ {
				for c := 0; c < f.Channels; c++ {
					f.Set(x, y, z, c, f.At(x, y, z, c)+f.At(x, y-1, z, c))
				}
			}
		}
	}
	for z := 1; z < f.Depth; z++ {
		for y := 0; y < f.Height; y++ {
			for x := 0; x < f.Width; x++ {
				for c := 0; c < f.Channels; c++ {
					f.Set(x, y, z, c, f.At(x, y, z, c)+f.At(x, y, z-1, c))
				}
			}
		}
	}
	return (*Vol)(f)
}

// corner returns the accumulated sum at x, y, z for channel c,
// treating any negative coordinate as a zero sum, as the cuboid it
// bounds falls entirely outside the volume.
func (i *Vol) corner(x, y, z, c int) float64 {
	if x < 0 || y < 0 || z < 0 {
		return 0
	}
	return (*field.Volume)(i).At(x, y, z, c)
}

// InWindow reports whether the cubic window of the given radius
// centred on x, y, z lies entirely within the volume.
func (i *Vol) InWindow(x, y, z, r int) bool {
	return x >= r && y >= r && z >= r &&
		x+r <= i.Width-1 && y+r <= i.Height-1 && z+r <= i.Depth-1
}

// GetWindow gets the values of the corners of a cubic window of the
// given radius centred on x, y, z. The window must lie entirely
// within the volume; check InWindow first.
func (i *Vol) GetWindow(x, y, z, r, c int) VolWindow {
	side := 2*r + 1
	front := Window{
		topleft:     i.corner(x-r-1, y-r-1, z-r-1, c),
		topright:    i.corner(x+r, y-r-1, z-r-1, c),
		bottomleft:  i.corner(x-r-1, y+r, z-r-1, c),
		bottomright: i.corner(x+r, y+r, z-r-1, c),
	}
	back := Window{
		topleft:     i.corner(x-r-1, y-r-1, z+r, c),
		topright:    i.corner(x+r, y-r-1, z+r, c),
		bottomleft:  i.corner(x-r-1, y+r, z+r, c),
		bottomright: i.corner(x+r, y+r, z+r, c),
	}
	return VolWindow{front: front, back: back, size: side * side * side}
}

// Sum returns the sum of all values in a VolWindow
func (w VolWindow) Sum() float64 {
	return w.back.Sum() - w.front.Sum()
}

// Size returns the total number of values in a VolWindow
func (w VolWindow) Size() int {
	return w.size
}

// Mean returns the average of the values in a VolWindow
func (w VolWindow) Mean() float64 {
	return w.Sum() / float64(w.size)
}

// MeanWindow calculates the mean value of a window of an Integral
// Volume
func (i *Vol) MeanWindow(x, y, z, r, c int) float64 {
	return i.GetWindow(x, y, z, r, c).Mean()
}

// MeanVarianceWindow calculates the mean and population variance of
// a window using an Integral Volume and its square
func (ws VolWithSq) MeanVarianceWindow(x, y, z, r, c int) (float64, float64) {
	imean := ws.Vol.GetWindow(x, y, z, r, c).Mean()
	smean := ws.Sq.GetWindow(x, y, z, r, c).Mean()

	return imean, smean - imean*imean
}
