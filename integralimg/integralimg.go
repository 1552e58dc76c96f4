// The integralimg package builds integral images (summed-area tables)
// and integral volumes over multi-channel scalar fields, and extracts
// sums of square or cubic windows from them in constant time per
// window. Each channel is summed independently.
package integralimg

import (
	"rescribe.xyz/contextfeat/field"
)

// I is the Integral Image of a field; the value at x, y holds the sum
// of every field value with both coordinates less than or equal to
// x, y, per channel.
type I field.Field

// WithSq contains an Integral Image and its Square
type WithSq struct {
	Img *I
	Sq  *I
}

// Window is a part of an Integral Image, holding the four corner sums
// needed to calculate the sum of the values within it.
type Window struct {
	topleft     float64
	topright    float64
	bottomleft  float64
	bottomright float64
	size        int
}

// ToIntegralImg creates an integral image
func ToIntegralImg(f *field.Field) *I {
	integral := (*I)(field.New(f.Width, f.Height, f.Channels))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			for c := 0; c < f.Channels; c++ {
				var oldx, oldy, oldxy float64
				if x > 0 {
					oldx = integral.at(x-1, y, c)
				}
				if y > 0 {
					oldy = integral.at(x, y-1, c)
				}
				if x > 0 && y > 0 {
					oldxy = integral.at(x-1, y-1, c)
				}
				v := f.At(x, y, c)
				(*field.Field)(integral).Set(x, y, c, v+oldx+oldy-oldxy)
			}
		}
	}
	return integral
}

// ToSqIntegralImg creates an integral image of the square of all
// field values
func ToSqIntegralImg(f *field.Field) *I {
	integral := (*I)(field.New(f.Width, f.Height, f.Channels))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			for c := 0; c < f.Channels; c++ {
				var oldx, oldy, oldxy float64
				if x > 0 {
					oldx = integral.at(x-1, y, c)
				}
				if y > 0 {
					oldy = integral.at(x, y-1, c)
				}
				if x > 0 && y > 0 {
					oldxy = integral.at(x-1, y-1, c)
				}
				v := f.At(x, y, c)
				(*field.Field)(integral).Set(x, y, c, v*v+oldx+oldy-oldxy)
			}
		}
	}
	return integral
}

// ToAllIntegralImg creates a WithSq containing a regular and
// squared Integral Image
func ToAllIntegralImg(f *field.Field) WithSq {
	return WithSq{
		Img: ToIntegralImg(f),
		Sq:  ToSqIntegralImg(f),
	}
}

func (i *I) at(x, y, c int) float64 {
	return (*field.Field)(i).At(x, y, c)
}

// corner returns the accumulated sum at x, y for channel c, treating
// any negative coordinate as a zero sum, as the rectangle it bounds
// falls entirely outside the image.
func (i *I) corner(x, y, c int) float64 {
	if x < 0 || y < 0 {
		return 0
	}
	return i.at(x, y, c)
}

// InWindow reports whether the square window of the given radius
// centred on x, y lies entirely within the image. Windows which
// do not are never summed; callers substitute a fill value instead.
func (i *I) InWindow(x, y, r int) bool {
	return x >= r && y >= r && x+r <= i.Width-1 && y+r <= i.Height-1
}

// GetWindow gets the values of the corners of a square window of the
// given radius centred on x, y, which can be used to quickly calculate
// its sum and mean. The window must lie entirely within the image;
// check InWindow first.
func (i *I) GetWindow(x, y, r, c int) Window {
	side := 2*r + 1
	return Window{
		topleft:     i.corner(x-r-1, y-r-1, c),
		topright:    i.corner(x+r, y-r-1, c),
		bottomleft:  i.corner(x-r-1, y+r, c),
		bottomright: i.corner(x+r, y+r, c),
		size:        side * side,
	}
}

// Sum returns the sum of all values in a Window
func (w Window) Sum() float64 {
	return w.bottomright + w.topleft - w.topright - w.bottomleft
}

// Size returns the total number of values in a Window
func (w Window) Size() int {
	return w.size
}

// Mean returns the average of the values in a Window
func (w Window) Mean() float64 {
	return w.Sum() / float64(w.size)
}

// MeanWindow calculates the mean value of a window of an Integral
// Image
func (i *I) MeanWindow(x, y, r, c int) float64 {
	return i.GetWindow(x, y, r, c).Mean()
}

// MeanVarianceWindow calculates the mean and population variance of
// a window using an Integral Image and its square
func (ws WithSq) MeanVarianceWindow(x, y, r, c int) (float64, float64) {
	imean := ws.Img.GetWindow(x, y, r, c).Mean()
	smean := ws.Sq.GetWindow(x, y, r, c).Mean()

	return imean, smean - imean*imean
}
