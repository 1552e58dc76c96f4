// Copyright 2024 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "golang.org/x/image/tiff"
)

// null writer to enable non-verbose logging to be discarded
type NullWriter bool

func (w NullWriter) Write(p []byte) (n int, err error) {
	return len(p), nil
}

type fileWalk chan string

// Walk sends the path of all files to the channel, with the exception of
// any file which starts with "."
func (f fileWalk) Walk(path string, info os.FileInfo, err error) error {
	if err != nil {
		return err
	}
	// skip files starting with . to prevent automatically generated
	// files like .DS_Store getting in the way
	if strings.HasPrefix(filepath.Base(path), ".") {
		return nil
	}
	if !info.IsDir() {
		f <- path
	}
	return nil
}

func imageSuffix(path string) bool {
	lsuffix := strings.ToLower(filepath.Ext(path))
	switch lsuffix {
	case ".jpg", ".png", ".tif", ".tiff":
		return true
	}
	return false
}

// CheckImages checks that all files with an image suffix in a
// directory are images that can be decoded (skipping dotfiles)
func CheckImages(ctx context.Context, dir string) error {
	checker := make(fileWalk)
	go func() {
		_ = filepath.Walk(dir, checker.Walk)
		close(checker)
	}()

	n := 0
	for path := range checker {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !imageSuffix(path) {
			continue
		}
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("Opening image %s failed: %v", path, err)
		}
		_, _, err = image.Decode(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("Decoding image %s failed: %v", path, err)
		}
		n++
	}

	if n == 0 {
		return fmt.Errorf("No images found")
	}

	return nil
}

// UploadPredictions uploads all image files (except those which
// start with a ".") from a directory into conn.WIPStorageId(),
// prefixed with the given mapname and a slash. The files are named
// class_0000.png, class_0001.png and so on in sorted file name
// order, as each image holds the probabilities of one class.
func UploadPredictions(ctx context.Context, dir string, mapname string, conn Uploader) error {
	files, err := ioutil.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("Failed to read directory %s: %v", dir, err)
	}

	var names []string
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		if strings.HasPrefix(file.Name(), ".") {
			continue
		}
		if !imageSuffix(file.Name()) {
			continue
		}
		names = append(names, file.Name())
	}
	if len(names) == 0 {
		return fmt.Errorf("No images found in %s", dir)
	}
	sort.Strings(names)

	for filenum, origname := range names {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		origpath := filepath.Join(dir, origname)
		newname := fmt.Sprintf("class_%04d%s", filenum, strings.ToLower(filepath.Ext(origname)))
		err = conn.Upload(conn.WIPStorageId(), filepath.Join(mapname, newname), origpath)
		if err != nil {
			return fmt.Errorf("Failed to upload %s: %v", origpath, err)
		}
	}

	return nil
}
