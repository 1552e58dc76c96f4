// Copyright 2024 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package contextfeat

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"rescribe.xyz/contextfeat/field"
)

// FromGray converts a greyscale image into a single channel field
// with probabilities between 0 and 1.
func FromGray(img *image.Gray) *field.Field {
	b := img.Bounds()
	f := field.New(b.Dx(), b.Dy(), 1)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := float64(img.GrayAt(x, y).Y) / 255
			f.Set(x-b.Min.X, y-b.Min.Y, 0, v)
		}
	}
	return f
}

// FromImages converts one greyscale image per class into a
// multi-channel field. All images must have the same dimensions.
func FromImages(imgs []*image.Gray) (*field.Field, error) {
	if len(imgs) == 0 {
		return nil, fmt.Errorf("No images to convert")
	}
	b := imgs[0].Bounds()
	for i, img := range imgs {
		if img.Bounds().Dx() != b.Dx() || img.Bounds().Dy() != b.Dy() {
			return nil, fmt.Errorf("Image %d size %v differs from %v", i, img.Bounds().Size(), b.Size())
		}
	}
	f := field.New(b.Dx(), b.Dy(), len(imgs))
	for c, img := range imgs {
		ib := img.Bounds()
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				v := float64(img.GrayAt(ib.Min.X+x, ib.Min.Y+y).Y) / 255
				f.Set(x, y, c, v)
			}
		}
	}
	return f, nil
}

// StackVolume stacks equally sized fields into a volume, with the
// first field at depth zero.
func StackVolume(slices []*field.Field) (*field.Volume, error) {
	if len(slices) == 0 {
		return nil, fmt.Errorf("No slices to stack")
	}
	w, h, c := slices[0].Width, slices[0].Height, slices[0].Channels
	v := field.NewVolume(w, h, len(slices), c)
	for z, s := range slices {
		if s.Width != w || s.Height != h || s.Channels != c {
			return nil, fmt.Errorf("Slice %d shape %dx%dx%d differs from %dx%dx%d", z, s.Width, s.Height, s.Channels, w, h, c)
		}
		copy(v.Elems[z*w*h*c:(z+1)*w*h*c], s.Elems)
	}
	return v, nil
}

// Heatmap renders one channel of a field as a greyscale image,
// scaling values so that the lowest becomes black and the highest
// white. A constant channel renders as mid grey.
func Heatmap(f *field.Field, c int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, f.Width, f.Height))
	lo, hi := f.At(0, 0, c), f.At(0, 0, c)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			v := f.At(x, y, c)
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	span := hi - lo
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			var g uint8 = 127
			if span > 0 {
				g = uint8(255 * (f.At(x, y, c) - lo) / span)
			}
			img.SetGray(x, y, color.Gray{Y: g})
		}
	}
	return img
}

// HeatmapScaled renders a heatmap scaled to fit within maxdim on its
// longest side, which keeps report images a manageable size.
func HeatmapScaled(f *field.Field, c int, maxdim int) image.Image {
	img := Heatmap(f, c)
	b := img.Bounds()
	if b.Dx() <= maxdim && b.Dy() <= maxdim {
		return img
	}
	w, h := b.Dx(), b.Dy()
	if w > h {
		h = h * maxdim / w
		w = maxdim
	} else {
		w = w * maxdim / h
		h = maxdim
	}
	scaled := image.NewGray(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, b, draw.Src, nil)
	return scaled
}

// SliceHeatmap renders one channel of a single depth slice of a
// volume as a greyscale image.
func SliceHeatmap(v *field.Volume, z, c int) *image.Gray {
	f := field.New(v.Width, v.Height, 1)
	for y := 0; y < v.Height; y++ {
		for x := 0; x < v.Width; x++ {
			f.Set(x, y, 0, v.At(x, y, z, c))
		}
	}
	return Heatmap(f, 0)
}
