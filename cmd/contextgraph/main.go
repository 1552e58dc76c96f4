// Copyright 2024 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// contextgraph graphs how the mean probability of each class changes
// with window radius at a single location of a prediction map.
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
	"rescribe.xyz/contextfeat/integralimg"
	"rescribe.xyz/contextfeat/internal/pipeline"
	"rescribe.xyz/contextfeat/multiscale"
)

const usage = `Usage: contextgraph [-x n] [-y n] [-r radii] [-fill n] mapdir graph.png

Graphs the ring mean probability of each class at a location of a
prediction map, over a set of window radii. The location defaults to
the centre of the map.

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
	x := flag.Int("x", -1, "x coordinate of the location (-1 for the centre)")
	y := flag.Int("y", -1, "y coordinate of the location (-1 for the centre)")
	radiiflag := flag.String("r", "1,2,3,4,5,6,7,8,10,12,14,16", "comma separated list of window radii, in increasing order")
	fill := flag.Float64("fill", -1, "value for windows that cross the map border (-1 for 1/nclasses)")

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

	px, py := *x, *y
	if px < 0 {
		px = f.Width / 2
	}
	if py < 0 {
		py = f.Height / 2
	}
	if px >= f.Width || py >= f.Height {
		log.Fatalf("Location %d,%d out of range, map is %dx%d", px, py, f.Width, f.Height)
	}

	fillval := *fill
	if fillval < 0 {
		fillval = multiscale.DefaultFill(f.Channels)
	}

	ii := integralimg.ToIntegralImg(f)

	var profiles []contextfeat.Profile
	for c := 0; c < f.Channels; c++ {
		means, err := multiscale.WindowMeans(ii, px, py, c, radii, fillval)
		if err != nil {
			log.Fatalln("Error computing means:", err)
		}
		profiles = append(profiles, contextfeat.Profile{
			Label: fmt.Sprintf("class %d", c),
			Radii: radii,
			Means: means,
		})
	}

	fn := flag.Arg(1)
	out, err := os.Create(fn)
	if err != nil {
		log.Fatalln("Error creating file", fn, err)
	}
	defer out.Close()
	title := fmt.Sprintf("%s at %d,%d", filepath.Base(flag.Arg(0)), px, py)
	err = contextfeat.GraphOpts(profiles, title, "Window radius", fillval, out)
	if err != nil {
		log.Fatalln("Error creating graph", err)
	}
}
