package field

import "testing"

func TestFieldAtSet(t *testing.T) {
	f := New(4, 3, 2)
	if len(f.Elems) != 4*3*2 {
		t.Fatalf("Buffer size was %d, expected %d", len(f.Elems), 4*3*2)
	}

	f.Set(2, 1, 0, 0.5)
	f.Set(2, 1, 1, 0.75)
	if got := f.At(2, 1, 0); got != 0.5 {
		t.Errorf("At(2, 1, 0) was %v, expected 0.5", got)
	}
	if got := f.At(2, 1, 1); got != 0.75 {
		t.Errorf("At(2, 1, 1) was %v, expected 0.75", got)
	}

	// Every location should map to a distinct offset.
	seen := make(map[int]bool)
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			for c := 0; c < 2; c++ {
				i := f.Index(x, y, c)
				if seen[i] {
					t.Fatalf("Offset %d for %d,%d,%d already used", i, x, y, c)
				}
				seen[i] = true
			}
		}
	}
}

func TestVolumeAtSet(t *testing.T) {
	v := NewVolume(3, 4, 2, 2)
	if len(v.Elems) != 3*4*2*2 {
		t.Fatalf("Buffer size was %d, expected %d", len(v.Elems), 3*4*2*2)
	}

	v.Set(1, 2, 1, 1, 0.25)
	if got := v.At(1, 2, 1, 1); got != 0.25 {
		t.Errorf("At(1, 2, 1, 1) was %v, expected 0.25", got)
	}

	seen := make(map[int]bool)
	for z := 0; z < 2; z++ {
		for y := 0; y < 4; y++ {
			for x := 0; x < 3; x++ {
				for c := 0; c < 2; c++ {
					i := v.Index(x, y, z, c)
					if seen[i] {
						t.Fatalf("Offset %d for %d,%d,%d,%d already used", i, x, y, z, c)
					}
					seen[i] = true
				}
			}
		}
	}
}

func TestCheckShape(t *testing.T) {
	f := New(4, 3, 2)
	if err := f.CheckShape(); err != nil {
		t.Errorf("CheckShape failed on a good field: %v", err)
	}
	f.Width = 5
	if err := f.CheckShape(); err == nil {
		t.Errorf("CheckShape passed a field with a mismatched buffer")
	}

	v := NewVolume(3, 3, 3, 1)
	if err := v.CheckShape(); err != nil {
		t.Errorf("CheckShape failed on a good volume: %v", err)
	}
	v.Depth = 0
	if err := v.CheckShape(); err == nil {
		t.Errorf("CheckShape passed a volume with no depth")
	}
}
