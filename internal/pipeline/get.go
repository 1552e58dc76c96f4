// Copyright 2024 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DownloadFeatures downloads all feature heatmaps and the radius
// profile graph for a map.
func DownloadFeatures(dir string, name string, conn DownloadLister) error {
	objs, err := conn.ListObjects(conn.WIPStorageId(), name)
	if err != nil {
		return fmt.Errorf("Failed to get list of files for map %s: %v", name, err)
	}
	anydone := false
	for _, i := range objs {
		base := filepath.Base(i)
		if !strings.HasPrefix(base, "feat_") && base != "profile.png" {
			continue
		}
		fn := filepath.Join(dir, base)
		conn.Log("Downloading", i)
		err = conn.Download(conn.WIPStorageId(), i, fn)
		if err != nil {
			return fmt.Errorf("Failed to download file %s: %v", i, err)
		}
		anydone = true
	}
	if !anydone {
		return fmt.Errorf("No feature files found for map %s", name)
	}
	return nil
}

// DownloadReport downloads the PDF report for a map.
func DownloadReport(dir string, name string, conn Downloader) error {
	key := filepath.Join(name, name+".pdf")
	fn := filepath.Join(dir, name+".pdf")
	err := conn.Download(conn.WIPStorageId(), key, fn)
	if err != nil {
		return fmt.Errorf("Failed to download report %s: %v", key, err)
	}
	return nil
}

// DownloadAll downloads every file stored for a map.
func DownloadAll(dir string, name string, conn DownloadLister) error {
	objs, err := conn.ListObjects(conn.WIPStorageId(), name)
	if err != nil {
		return fmt.Errorf("Failed to get list of files for map %s: %v", name, err)
	}
	for _, i := range objs {
		base := filepath.Base(i)
		fn := filepath.Join(dir, base)
		conn.Log("Downloading", i)
		err = conn.Download(conn.WIPStorageId(), i, fn)
		if err != nil {
			return fmt.Errorf("Failed to download file %s: %v", i, err)
		}
	}
	return nil
}
