// Copyright 2024 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"image"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rescribe.xyz/contextfeat"
)

func mkTestImages(t *testing.T, dir string, names ...string) {
	t.Helper()
	err := os.MkdirAll(dir, 0700)
	if err != nil && !os.IsExist(err) {
		t.Fatalf("Error creating test directory %s: %v", dir, err)
	}
	for _, n := range names {
		img := image.NewGray(image.Rect(0, 0, 4, 4))
		err := SavePng(img, filepath.Join(dir, n))
		if err != nil {
			t.Fatalf("Error creating test image %s: %v", n, err)
		}
	}
}

func Test_CheckImages(t *testing.T) {
	ctx := context.Background()
	base := filepath.Join(os.TempDir(), "checkimagestest")
	defer os.RemoveAll(base)

	good := filepath.Join(base, "good")
	mkTestImages(t, good, "0.png", "1.png")

	bad := filepath.Join(base, "bad")
	err := os.MkdirAll(bad, 0700)
	if err != nil && !os.IsExist(err) {
		t.Fatalf("Error creating test directory %s: %v", bad, err)
	}
	err = ioutil.WriteFile(filepath.Join(bad, "bad.png"), []byte("not really a png"), 0600)
	if err != nil {
		t.Fatalf("Error creating bad test image: %v", err)
	}

	empty := filepath.Join(base, "empty")
	err = os.MkdirAll(empty, 0700)
	if err != nil && !os.IsExist(err) {
		t.Fatalf("Error creating test directory %s: %v", empty, err)
	}

	cases := []struct {
		name string
		dir  string
		err  string
	}{
		{"good", good, ""},
		{"bad", bad, "failed"},
		{"empty", empty, "No images found"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := CheckImages(ctx, c.dir)
			if c.err == "" {
				if err != nil {
					t.Fatalf("Expected no error, got error '%v'", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing '%s', got no error", c.err)
			}
			if !strings.Contains(err.Error(), c.err) {
				t.Fatalf("Got an unexpected error, expected '%s', got '%v'", c.err, err)
			}
		})
	}
}

func Test_UploadPredictions(t *testing.T) {
	var slog StrLog
	ctx := context.Background()

	dir := filepath.Join(os.TempDir(), "uploadpredtest")
	mkTestImages(t, dir, "b.png", "a.png", "c.png")
	defer os.RemoveAll(dir)
	err := ioutil.WriteFile(filepath.Join(dir, ".hidden.png"), []byte("x"), 0600)
	if err != nil {
		t.Fatalf("Error creating dotfile: %v", err)
	}
	err = ioutil.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600)
	if err != nil {
		t.Fatalf("Error creating non-image file: %v", err)
	}

	vlog := log.New(&slog, "", 0)
	c := &contextfeat.LocalConn{Logger: vlog}
	err = c.Init()
	if err != nil {
		t.Fatalf("Could not initialise local connection: %v\nLog: %s", err, slog.log)
	}
	err = UploadPredictions(ctx, dir, "uploadpredtest", c)
	if err != nil {
		t.Fatalf("UploadPredictions failed: %v\nLog: %s", err, slog.log)
	}
	defer c.DeleteObjects(c.WIPStorageId(), []string{
		"uploadpredtest/class_0000.png",
		"uploadpredtest/class_0001.png",
		"uploadpredtest/class_0002.png",
	})

	objs, err := c.ListObjects(c.WIPStorageId(), "uploadpredtest")
	if err != nil {
		t.Fatalf("Could not list objects: %v\nLog: %s", err, slog.log)
	}
	expected := []string{
		"uploadpredtest/class_0000.png",
		"uploadpredtest/class_0001.png",
		"uploadpredtest/class_0002.png",
	}
	if len(objs) != len(expected) {
		t.Fatalf("Expected %d objects, got %d: %v\nLog: %s", len(expected), len(objs), objs, slog.log)
	}
	for _, e := range expected {
		found := false
		for _, o := range objs {
			if o == e {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("Expected object %s not uploaded, got: %v\nLog: %s", e, objs, slog.log)
		}
	}
}
