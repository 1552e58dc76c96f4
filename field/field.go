// The field package provides multi-channel scalar fields over 2 and 3
// dimensional grids, stored in contiguous buffers. These are used to
// hold per-pixel class predictions and the features derived from them,
// without tying anything to a particular image format.
package field

import "fmt"

// Field is a two dimensional multi-channel scalar field. Elems holds
// every value in a single allocation, with the channel index varying
// fastest, then x, then y.
type Field struct {
	Elems    []float64
	Width    int
	Height   int
	Channels int
}

// New creates a zero filled Field of the given dimensions.
func New(w, h, c int) *Field {
	return &Field{
		Elems:    make([]float64, w*h*c),
		Width:    w,
		Height:   h,
		Channels: c,
	}
}

// Index returns the offset into Elems of the value at x, y for
// channel c.
func (f *Field) Index(x, y, c int) int {
	return (y*f.Width+x)*f.Channels + c
}

// At returns the value at x, y for channel c.
func (f *Field) At(x, y, c int) float64 {
	return f.Elems[f.Index(x, y, c)]
}

// Set sets the value at x, y for channel c.
func (f *Field) Set(x, y, c int, v float64) {
	f.Elems[f.Index(x, y, c)] = v
}

// CheckShape ensures the dimensions are usable, returning a
// descriptive error if not.
func (f *Field) CheckShape() error {
	if f.Width < 1 || f.Height < 1 || f.Channels < 1 {
		return fmt.Errorf("Bad field shape %dx%dx%d", f.Width, f.Height, f.Channels)
	}
	if len(f.Elems) != f.Width*f.Height*f.Channels {
		return fmt.Errorf("Field shape %dx%dx%d does not match buffer size %d", f.Width, f.Height, f.Channels, len(f.Elems))
	}
	return nil
}

// Volume is a three dimensional multi-channel scalar field. As with
// Field the channel index varies fastest, then x, then y, then z.
type Volume struct {
	Elems    []float64
	Width    int
	Height   int
	Depth    int
	Channels int
}

// NewVolume creates a zero filled Volume of the given dimensions.
func NewVolume(w, h, d, c int) *Volume {
	return &Volume{
		Elems:    make([]float64, w*h*d*c),
		Width:    w,
		Height:   h,
		Depth:    d,
		Channels: c,
	}
}

// Index returns the offset into Elems of the value at x, y, z for
// channel c.
func (v *Volume) Index(x, y, z, c int) int {
	return ((z*v.Height+y)*v.Width+x)*v.Channels + c
}

// At returns the value at x, y, z for channel c.
func (v *Volume) At(x, y, z, c int) float64 {
	return v.Elems[v.Index(x, y, z, c)]
}

// Set sets the value at x, y, z for channel c.
func (v *Volume) Set(x, y, z, c int, val float64) {
	v.Elems[v.Index(x, y, z, c)] = val
}

// CheckShape ensures the dimensions are usable, returning a
// descriptive error if not.
func (v *Volume) CheckShape() error {
	if v.Width < 1 || v.Height < 1 || v.Depth < 1 || v.Channels < 1 {
		return fmt.Errorf("Bad volume shape %dx%dx%dx%d", v.Width, v.Height, v.Depth, v.Channels)
	}
	if len(v.Elems) != v.Width*v.Height*v.Depth*v.Channels {
		return fmt.Errorf("Volume shape %dx%dx%dx%d does not match buffer size %d", v.Width, v.Height, v.Depth, v.Channels, len(v.Elems))
	}
	return nil
}
