// Copyright 2024 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// contextreport builds a PDF report of the context feature heatmaps
// of a prediction map.
package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"rescribe.xyz/contextfeat"
	"rescribe.xyz/contextfeat/field"
	"rescribe.xyz/contextfeat/internal/pipeline"
	"rescribe.xyz/contextfeat/multiscale"
)

const usage = `Usage: contextreport [-r radii] [-var] [-fill n] [-maxdim n] mapdir report.pdf

Computes the context features of a prediction map and builds a PDF
report containing a heatmap page for each feature. Large maps are
scaled down so that the report stays a manageable size.

The prediction map is read from mapdir, which should contain one
greyscale image per class, with pixel values mapped to probabilities
between 0 and 1. Images are assigned to classes in file name order.
`

func imagePaths(dir string) ([]string, error) {
	files, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("Failed to read directory %s: %v", dir, err)
	}
	var paths []string
	for _, file := range files {
		if file.IsDir() || strings.HasPrefix(file.Name(), ".") {
			continue
		}
		switch strings.ToLower(filepath.Ext(file.Name())) {
		case ".jpg", ".png", ".tif", ".tiff":
			paths = append(paths, filepath.Join(dir, file.Name()))
		}
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, fmt.Errorf("No images found in %s", dir)
	}
	return paths, nil
}

func main() {
	radiiflag := flag.String("r", "2,4,8", "comma separated list of window radii, in increasing order")
	variance := flag.Bool("var", false, "also compute the variance of each window")
	fill := flag.Float64("fill", -1, "value for windows that cross the map border (-1 for 1/nclasses)")
	maxdim := flag.Int("maxdim", 1000, "maximum dimension of heatmaps in the report")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
		return
	}

	radii, err := pipeline.ParseRadii(*radiiflag)
	if err != nil {
		log.Fatalln("Error parsing radii:", err)
	}

	paths, err := imagePaths(flag.Arg(0))
	if err != nil {
		log.Fatalln(err)
	}
	imgs, err := pipeline.LoadGrays(paths)
	if err != nil {
		log.Fatalln(err)
	}
	f, err := contextfeat.FromImages(imgs)
	if err != nil {
		log.Fatalln("Error building prediction map:", err)
	}

	fillval := *fill
	if fillval < 0 {
		fillval = multiscale.DefaultFill(f.Channels)
	}

	var feats *field.Field
	if *variance {
		feats, err = multiscale.MeanVarFill(f, radii, fillval)
	} else {
		feats, err = multiscale.MeanFill(f, radii, fillval)
	}
	if err != nil {
		log.Fatalln("Error computing features:", err)
	}

	tmpdir, err := ioutil.TempDir("", "contextreport")
	if err != nil {
		log.Fatalln("Error creating temporary directory:", err)
	}
	defer os.RemoveAll(tmpdir)

	pdf := new(contextfeat.Fpdf)
	err = pdf.Setup()
	if err != nil {
		log.Fatalln("Failed to set up PDF:", err)
	}

	nr := len(radii)
	perclass := nr
	if *variance {
		perclass = 2 * nr
	}
	for fc := 0; fc < feats.Channels; fc++ {
		class := fc / perclass
		rest := fc % perclass
		caption := fmt.Sprintf("class %d mean, radius %d", class, radii[rest%nr])
		if *variance && rest >= nr {
			caption = fmt.Sprintf("class %d variance, radius %d", class, radii[rest%nr])
		}
		fn := filepath.Join(tmpdir, fmt.Sprintf("feat_%d.png", fc))
		err = pipeline.SavePng(contextfeat.HeatmapScaled(feats, fc, *maxdim), fn)
		if err != nil {
			log.Fatalln(err)
		}
		err = pdf.AddHeatmapPage(fn, caption)
		if err != nil {
			log.Fatalln("Failed to add page to PDF:", err)
		}
	}

	err = pdf.Save(flag.Arg(1))
	if err != nil {
		log.Fatalln("Failed to save PDF:", err)
	}
}
