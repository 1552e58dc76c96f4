// Copyright 2024 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// contextfeat computes multi-scale context features for a prediction
// map, saving a heatmap image for each feature.
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

	"rescribe.xyz/preproc"

	"rescribe.xyz/contextfeat"
	"rescribe.xyz/contextfeat/field"
	"rescribe.xyz/contextfeat/internal/pipeline"
	"rescribe.xyz/contextfeat/multiscale"
)

const usage = `Usage: contextfeat [-r radii] [-var] [-fill n] [-bin k] [-v] mapdir outdir

Computes the mean probability (and optionally the variance) of each
class over nested square windows centred on every location of a
prediction map, and saves a greyscale heatmap image for each
resulting feature into outdir.

The prediction map is read from mapdir, which should contain one
greyscale image per class, with pixel values mapped to probabilities
between 0 and 1. Images are assigned to classes in file name order.

Each window only accounts for the ring of locations it adds beyond
the previous radius, so features at different radii are decorrelated.
Windows that do not fit within the map are given a fill value, which
defaults to 1 divided by the number of classes.
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
	radiiflag := flag.String("r", "2,4,8", "comma separated list of window radii, in increasing order")
	variance := flag.Bool("var", false, "also compute the variance of each window")
	fill := flag.Float64("fill", -1, "value for windows that cross the map border (-1 for 1/nclasses)")
	binarise := flag.Float64("bin", 0, "binarise the class images first using sauvola with this k value (0 to disable)")
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

	mapdir := flag.Arg(0)
	outdir := flag.Arg(1)

	paths, err := imagePaths(mapdir)
	if err != nil {
		log.Fatalln(err)
	}

	verboselog.Println("Loading", len(paths), "class images from", mapdir)
	imgs, err := pipeline.LoadGrays(paths)
	if err != nil {
		log.Fatalln(err)
	}

	if *binarise > 0 {
		verboselog.Println("Binarising class images with sauvola k", *binarise)
		for i, img := range imgs {
			imgs[i] = preproc.IntegralSauvola(img, *binarise, 30)
		}
	}

	f, err := contextfeat.FromImages(imgs)
	if err != nil {
		log.Fatalln("Error building prediction map:", err)
	}

	fillval := *fill
	if fillval < 0 {
		fillval = multiscale.DefaultFill(f.Channels)
	}

	verboselog.Println("Computing features at radii", radii)
	var feats *field.Field
	if *variance {
		feats, err = multiscale.MeanVarFill(f, radii, fillval)
	} else {
		feats, err = multiscale.MeanFill(f, radii, fillval)
	}
	if err != nil {
		log.Fatalln("Error computing features:", err)
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
		name := fmt.Sprintf("feat_c%d_r%d.png", class, radii[rest%nr])
		if *variance && rest >= nr {
			name = fmt.Sprintf("feat_c%d_r%d_var.png", class, radii[rest%nr])
		}
		fn := filepath.Join(outdir, name)
		verboselog.Println("Saving heatmap", fn)
		err = pipeline.SavePng(contextfeat.Heatmap(feats, fc), fn)
		if err != nil {
			log.Fatalln(err)
		}
	}
}
