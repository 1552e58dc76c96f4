// Copyright 2024 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package contextfeat

import (
	"image"
	"image/color"
	"testing"

	"rescribe.xyz/contextfeat/field"
)

func grayImage(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func TestFromGray(t *testing.T) {
	img := grayImage(4, 3, 51)
	f := FromGray(img)
	if f.Width != 4 || f.Height != 3 || f.Channels != 1 {
		t.Fatalf("Unexpected field shape %dx%dx%d", f.Width, f.Height, f.Channels)
	}
	want := 51.0 / 255
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			if got := f.At(x, y, 0); got != want {
				t.Fatalf("Value at %d,%d is %v, expected %v", x, y, got, want)
			}
		}
	}
}

func TestFromImages(t *testing.T) {
	imgs := []*image.Gray{grayImage(3, 3, 0), grayImage(3, 3, 255)}
	f, err := FromImages(imgs)
	if err != nil {
		t.Fatalf("FromImages failed: %v", err)
	}
	if f.Channels != 2 {
		t.Fatalf("Expected 2 channels, got %d", f.Channels)
	}
	if f.At(1, 1, 0) != 0 || f.At(1, 1, 1) != 1 {
		t.Fatalf("Unexpected values %v, %v", f.At(1, 1, 0), f.At(1, 1, 1))
	}

	_, err = FromImages([]*image.Gray{grayImage(3, 3, 0), grayImage(4, 3, 0)})
	if err == nil {
		t.Fatalf("Expected error for mismatched image sizes")
	}

	_, err = FromImages(nil)
	if err == nil {
		t.Fatalf("Expected error for no images")
	}
}

func TestStackVolume(t *testing.T) {
	a := field.New(2, 2, 1)
	b := field.New(2, 2, 1)
	a.Set(1, 0, 0, 0.25)
	b.Set(1, 0, 0, 0.75)
	v, err := StackVolume([]*field.Field{a, b})
	if err != nil {
		t.Fatalf("StackVolume failed: %v", err)
	}
	if v.Depth != 2 {
		t.Fatalf("Expected depth 2, got %d", v.Depth)
	}
	if v.At(1, 0, 0, 0) != 0.25 || v.At(1, 0, 1, 0) != 0.75 {
		t.Fatalf("Slices stacked in wrong order: %v, %v", v.At(1, 0, 0, 0), v.At(1, 0, 1, 0))
	}

	_, err = StackVolume([]*field.Field{a, field.New(3, 2, 1)})
	if err == nil {
		t.Fatalf("Expected error for mismatched slice shapes")
	}
}

func TestHeatmap(t *testing.T) {
	f := field.New(2, 1, 1)
	f.Set(0, 0, 0, 0.2)
	f.Set(1, 0, 0, 0.7)
	img := Heatmap(f, 0)
	if img.GrayAt(0, 0).Y != 0 {
		t.Errorf("Lowest value should map to black, got %d", img.GrayAt(0, 0).Y)
	}
	if img.GrayAt(1, 0).Y != 255 {
		t.Errorf("Highest value should map to white, got %d", img.GrayAt(1, 0).Y)
	}

	flat := field.New(2, 2, 1)
	img = Heatmap(flat, 0)
	if img.GrayAt(0, 0).Y != 127 {
		t.Errorf("Constant channel should map to mid grey, got %d", img.GrayAt(0, 0).Y)
	}
}

func TestHeatmapScaled(t *testing.T) {
	f := field.New(100, 50, 1)
	img := HeatmapScaled(f, 0, 10)
	b := img.Bounds()
	if b.Dx() != 10 || b.Dy() != 5 {
		t.Errorf("Expected 10x5 scaled heatmap, got %dx%d", b.Dx(), b.Dy())
	}

	img = HeatmapScaled(f, 0, 1000)
	b = img.Bounds()
	if b.Dx() != 100 || b.Dy() != 50 {
		t.Errorf("Small heatmap should not be scaled, got %dx%d", b.Dx(), b.Dy())
	}
}
