// The multiscale package computes neighbourhood statistics of class
// prediction fields at a series of window radii, using integral
// images so that the cost per location is constant regardless of
// window size. For each location and channel the mean (and optionally
// the population variance) of the predictions is calculated within
// concentric square windows, with the area of each smaller window
// subtracted from the next, so each statistic describes the ring
// between successive radii. The results make useful spatial context
// features for a further round of pixel classification.
package multiscale

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"rescribe.xyz/contextfeat/field"
	"rescribe.xyz/contextfeat/integralimg"
)

// Windows smaller than this many locations are processed on a single
// goroutine, as the coordination overhead outweighs any gain.
const minParallel = 4096

// DefaultFill returns the value used for windows which do not fit
// within the field: an even split between the channels, so that an
// average of predictions roughly matches a uniform prior over the
// classes. Note that it is deliberately not zero.
func DefaultFill(channels int) float64 {
	return 1 / float64(channels)
}

// checkRadii ensures a radius list is usable. The window subtraction
// relies on each window strictly containing the previous one, so the
// radii must be strictly increasing, and none may be negative.
func checkRadii(radii []int) error {
	if len(radii) == 0 {
		return fmt.Errorf("No radii given")
	}
	if radii[0] < 0 {
		return fmt.Errorf("Radius %d is negative", radii[0])
	}
	for i := 1; i < len(radii); i++ {
		if radii[i] <= radii[i-1] {
			return fmt.Errorf("Radii must be strictly increasing, got %d after %d", radii[i], radii[i-1])
		}
	}
	return nil
}

// averages fills out with the mean prediction within the window of
// each radius centred on x, y for channel c, with each smaller
// window's sum subtracted from the next so that every entry covers
// only the ring between successive radii. Windows which do not fit
// within the image are given the fill value, and do not update the
// running previous window sum, so a later ring is always measured
// against the last window that really fit.
func averages(ii *integralimg.I, x, y, c int, radii []int, fill float64, out []float64) {
	var prevsum float64
	var prevsize int
	for j, r := range radii {
		if !ii.InWindow(x, y, r) {
			out[j] = fill
			continue
		}
		w := ii.GetWindow(x, y, r, c)
		sum := w.Sum()
		size := w.Size()
		out[j] = (sum - prevsum) / float64(size-prevsize)
		prevsum = sum
		prevsize = size
	}
}

// WindowMeans returns the ring mean at each radius for a single
// location and channel. It is mainly useful for inspecting how the
// context around a particular location changes with scale; to process
// a whole field use Mean or MeanVar instead.
func WindowMeans(ii *integralimg.I, x, y, c int, radii []int, fill float64) ([]float64, error) {
	if err := checkRadii(radii); err != nil {
		return nil, err
	}
	out := make([]float64, len(radii))
	averages(ii, x, y, c, radii, fill, out)
	return out, nil
}

// eachRow calls the function returned by mk for every y from 0 to
// rows-1. For large jobs the rows are spread across the available
// CPUs; mk is called once per worker so each can carry its own
// scratch buffers without locking. Row results never overlap, so no
// synchronisation beyond the final wait is needed.
func eachRow(rows int, size int, mk func() func(y int)) {
	procs := runtime.GOMAXPROCS(0)
	if procs > rows {
		procs = rows
	}
	if procs <= 1 || size < minParallel {
		fn := mk()
		for y := 0; y < rows; y++ {
			fn(y)
		}
		return
	}

	var next uint32
	var wg sync.WaitGroup
	wg.Add(procs)
	for w := 0; w < procs; w++ {
		go func() {
			defer wg.Done()
			fn := mk()
			for {
				y := int(atomic.AddUint32(&next, 1) - 1)
				if y >= rows {
					return
				}
				fn(y)
			}
		}()
	}
	wg.Wait()
}

// Mean calculates the ring mean of the predictions around every
// location for every channel and radius, returning a field with
// len(radii) feature channels per input channel; the feature for
// channel c and radius index i is at output channel c*len(radii)+i.
// Locations whose window exits the field get an even split between
// channels (see DefaultFill).
func Mean(f *field.Field, radii []int) (*field.Field, error) {
	return MeanFill(f, radii, DefaultFill(f.Channels))
}

// MeanFill is Mean with an explicit fill value for windows which do
// not fit within the field.
func MeanFill(f *field.Field, radii []int, fill float64) (*field.Field, error) {
	if err := checkRadii(radii); err != nil {
		return nil, err
	}
	if err := f.CheckShape(); err != nil {
		return nil, err
	}

	nr := len(radii)
	ii := integralimg.ToIntegralImg(f)
	out := field.New(f.Width, f.Height, f.Channels*nr)

	eachRow(f.Height, f.Width*f.Height*f.Channels, func() func(int) {
		means := make([]float64, nr)
		return func(y int) {
			for x := 0; x < f.Width; x++ {
				for c := 0; c < f.Channels; c++ {
					averages(ii, x, y, c, radii, fill, means)
					for i, m := range means {
						out.Set(x, y, c*nr+i, m)
					}
				}
			}
		}
	})

	return out, nil
}

// MeanVar calculates the ring mean and population variance of the
// predictions around every location for every channel and radius,
// returning a field with 2*len(radii) feature channels per input
// channel: for channel c the means are at output channels
// c*2*len(radii)+i and the variances follow at c*2*len(radii)+
// len(radii)+i.
func MeanVar(f *field.Field, radii []int) (*field.Field, error) {
	return MeanVarFill(f, radii, DefaultFill(f.Channels))
}

// MeanVarFill is MeanVar with an explicit fill value for windows
// which do not fit within the field.
func MeanVarFill(f *field.Field, radii []int, fill float64) (*field.Field, error) {
	if err := checkRadii(radii); err != nil {
		return nil, err
	}
	if err := f.CheckShape(); err != nil {
		return nil, err
	}

	nr := len(radii)
	ws := integralimg.ToAllIntegralImg(f)
	out := field.New(f.Width, f.Height, f.Channels*2*nr)

	eachRow(f.Height, f.Width*f.Height*f.Channels, func() func(int) {
		means := make([]float64, nr)
		sqmeans := make([]float64, nr)
		return func(y int) {
			for x := 0; x < f.Width; x++ {
				for c := 0; c < f.Channels; c++ {
					averages(ws.Img, x, y, c, radii, fill, means)
					averages(ws.Sq, x, y, c, radii, fill, sqmeans)
					for i, m := range means {
						out.Set(x, y, c*2*nr+i, m)
						out.Set(x, y, c*2*nr+nr+i, sqmeans[i]-m*m)
					}
				}
			}
		}
	})

	return out, nil
}
