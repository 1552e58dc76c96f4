package multiscale

import (
	"rescribe.xyz/contextfeat/field"
	"rescribe.xyz/contextfeat/integralimg"
)

// averagesVol is the cubic window equivalent of averages, producing
// the ring mean at each radius for one location and channel of a
// volume.
func averagesVol(iv *integralimg.Vol, x, y, z, c int, radii []int, fill float64, out []float64) {
	var prevsum float64
	var prevsize int
	for j, r := range radii {
		if !iv.InWindow(x, y, z, r) {
			out[j] = fill
			continue
		}
		w := iv.GetWindow(x, y, z, r, c)
		sum := w.Sum()
		size := w.Size()
		out[j] = (sum - prevsum) / float64(size-prevsize)
		prevsum = sum
		prevsize = size
	}
}

// WindowMeans3D returns the ring mean at each radius for a single
// location and channel of a volume.
func WindowMeans3D(iv *integralimg.Vol, x, y, z, c int, radii []int, fill float64) ([]float64, error) {
	if err := checkRadii(radii); err != nil {
		return nil, err
	}
	out := make([]float64, len(radii))
	averagesVol(iv, x, y, z, c, radii, fill, out)
	return out, nil
}

// Mean3D calculates the ring mean of the predictions around every
// location of a volume, with the same output channel layout as Mean.
// The work is spread across CPUs one z slice at a time.
func Mean3D(v *field.Volume, radii []int) (*field.Volume, error) {
	return MeanFill3D(v, radii, DefaultFill(v.Channels))
}

// MeanFill3D is Mean3D with an explicit fill value for windows which
// do not fit within the volume.
func MeanFill3D(v *field.Volume, radii []int, fill float64) (*field.Volume, error) {
	if err := checkRadii(radii); err != nil {
		return nil, err
	}
	if err := v.CheckShape(); err != nil {
		return nil, err
	}

	nr := len(radii)
	iv := integralimg.ToIntegralVol(v)
	out := field.NewVolume(v.Width, v.Height, v.Depth, v.Channels*nr)

	eachRow(v.Depth, v.Width*v.Height*v.Depth*v.Channels, func() func(int) {
		means := make([]float64, nr)
		return func(z int) {
			for y := 0; y < v.Height; y++ {
				for x := 0; x < v.Width; x++ {
					for c := 0; c < v.Channels; c++ {
						averagesVol(iv, x, y, z, c, radii, fill, means)
						for i, m := range means {
							out.Set(x, y, z, c*nr+i, m)
						}
					}
				}
			}
		}
	})

	return out, nil
}

// MeanVar3D calculates the ring mean and population variance of the
// predictions around every location of a volume, with the same output
// channel layout as MeanVar.
func MeanVar3D(v *field.Volume, radii []int) (*field.Volume, error) {
	return MeanVarFill3D(v, radii, DefaultFill(v.Channels))
}

// MeanVarFill3D is MeanVar3D with an explicit fill value for windows
// which do not fit within the volume.
func MeanVarFill3D(v *field.Volume, radii []int, fill float64) (*field.Volume, error) {
	if err := checkRadii(radii); err != nil {
		return nil, err
	}
	if err := v.CheckShape(); err != nil {
		return nil, err
	}

	nr := len(radii)
	ws := integralimg.ToAllIntegralVol(v)
	out := field.NewVolume(v.Width, v.Height, v.Depth, v.Channels*2*nr)

	eachRow(v.Depth, v.Width*v.Height*v.Depth*v.Channels, func() func(int) {
		means := make([]float64, nr)
		sqmeans := make([]float64, nr)
		return func(z int) {
			for y := 0; y < v.Height; y++ {
				for x := 0; x < v.Width; x++ {
					for c := 0; c < v.Channels; c++ {
						averagesVol(ws.Vol, x, y, z, c, radii, fill, means)
						averagesVol(ws.Sq, x, y, z, c, radii, fill, sqmeans)
						for i, m := range means {
							out.Set(x, y, z, c*2*nr+i, m)
							out.Set(x, y, z, c*2*nr+nr+i, sqmeans[i]-m*m)
						}
					}
				}
			}
		}
	})

	return out, nil
}
