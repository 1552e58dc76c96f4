// Copyright 2024 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// stackcontext computes 3 dimensional context features from a
// directory of greyscale slice images, treating the images as the
// depth slices of a volume.
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

const usage = `Usage: stackcontext [-r radii] [-var] [-fill n] [-z n] [-v] slicedir outdir

Computes the mean probability (and optionally the variance) of a
class over nested cubic windows centred on every location of a
volume, and saves a heatmap image of each feature for one depth
slice into outdir.

The volume is read from slicedir, which should contain one greyscale
image per depth slice, with pixel values mapped to probabilities
between 0 and 1. Images are stacked in file name order, so the first
image in the directory is the slice at depth zero.

By default the middle slice heatmaps are saved; use -z to pick
another slice.
`

// null writer to enable non-verbose logging to be discarded
type NullWriter bool

func (w NullWriter) Write(p []byte) (n int, err error) {
	return len(p), nil
}

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
	radiiflag := flag.String("r", "1,2,4", "comma separated list of window radii, in increasing order")
	variance := flag.Bool("var", false, "also compute the variance of each window")
	fill := flag.Float64("fill", -1, "value for windows that cross the volume border (-1 for 1/nclasses)")
	zslice := flag.Int("z", -1, "depth slice to save heatmaps of (-1 for the middle slice)")
	verbose := flag.Bool("v", false, "verbose")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
		return
	}

	var verboselog *log.Logger
	if *verbose {
		verboselog = log.New(os.Stdout, "", 0)
	} else {
		var n NullWriter
		verboselog = log.New(n, "", 0)
	}

	radii, err := pipeline.ParseRadii(*radiiflag)
	if err != nil {
		log.Fatalln("Error parsing radii:", err)
	}

	slicedir := flag.Arg(0)
	outdir := flag.Arg(1)

	paths, err := imagePaths(slicedir)
	if err != nil {
		log.Fatalln(err)
	}

	verboselog.Println("Loading", len(paths), "slice images from", slicedir)
	imgs, err := pipeline.LoadGrays(paths)
	if err != nil {
		log.Fatalln(err)
	}

	var slices []*field.Field
	for _, img := range imgs {
		slices = append(slices, contextfeat.FromGray(img))
	}
	v, err := contextfeat.StackVolume(slices)
	if err != nil {
		log.Fatalln("Error stacking slices:", err)
	}

	fillval := *fill
	if fillval < 0 {
		fillval = multiscale.DefaultFill(v.Channels)
	}

	verboselog.Println("Computing features at radii", radii)
	var feats *field.Volume
	if *variance {
		feats, err = multiscale.MeanVarFill3D(v, radii, fillval)
	} else {
		feats, err = multiscale.MeanFill3D(v, radii, fillval)
	}
	if err != nil {
		log.Fatalln("Error computing features:", err)
	}

	z := *zslice
	if z < 0 {
		z = v.Depth / 2
	}
	if z >= v.Depth {
		log.Fatalf("Slice %d out of range, volume has %d slices", z, v.Depth)
	}

	err = os.MkdirAll(outdir, 0755)
	if err != nil {
		log.Fatalln("Error creating output directory:", err)
	}

	nr := len(radii)
	perclass := nr
	if *variance {
		perclass = 2 * nr
	}
	for fc := 0; fc < feats.Channels; fc++ {
		class := fc / perclass
		rest := fc % perclass
		name := fmt.Sprintf("feat_c%d_r%d_z%d.png", class, radii[rest%nr], z)
		if *variance && rest >= nr {
			name = fmt.Sprintf("feat_c%d_r%d_z%d_var.png", class, radii[rest%nr], z)
		}
		fn := filepath.Join(outdir, name)
		verboselog.Println("Saving heatmap", fn)
		err = pipeline.SavePng(contextfeat.SliceHeatmap(feats, z, fc), fn)
		if err != nil {
			log.Fatalln(err)
		}
	}
}
