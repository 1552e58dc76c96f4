// Copyright 2024 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// maptopipeline uploads the class probability images of a prediction
// map to the pipeline and adds the map name to the feature queue.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"rescribe.xyz/contextfeat"
	"rescribe.xyz/contextfeat/internal/pipeline"
)

const usage = `Usage: maptopipeline [-v] [-c conn] [-r radii] mapdir [mapname]

Uploads the class probability images from mapdir to the pipeline
cloud storage, and adds the map name to the feature queue so it
will be processed. The images are stored in the order they sort
in, one per class.

If mapname is omitted the basename of mapdir is used.

If -r is given the listed radii are appended to the queue message,
overriding the pipeline's default radii for this map.
`

// null writer to enable non-verbose logging to be discarded
type NullWriter bool

func (w NullWriter) Write(p []byte) (int, error) {
	return len(p), nil
}

type UploadQueueAdder interface {
	Init() error
	ListObjects(bucket string, prefix string) ([]string, error)
	Upload(bucket string, key string, path string) error
	WIPStorageId() string
	FeatureQueueId() string
	AddToQueue(url string, msg string) error
	GetLogger() *log.Logger
	Log(v ...interface{})
}

var verboselog *log.Logger

func main() {
	verbose := flag.Bool("v", false, "Verbose")
	conntype := flag.String("c", "aws", "connection type ('aws' or 'local')")
	radiiflag := flag.String("r", "", "comma separated list of radii to use for this map (empty for pipeline default)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 1 || flag.NArg() > 2 {
		flag.Usage()
		return
	}

	mapdir := flag.Arg(0)
	var mapname string
	if flag.NArg() > 1 {
		mapname = flag.Arg(1)
	} else {
		mapname = filepath.Base(mapdir)
	}

	if *verbose {
		verboselog = log.New(os.Stdout, "", log.LstdFlags)
	} else {
		var n NullWriter
		verboselog = log.New(n, "", log.LstdFlags)
	}

	if *radiiflag != "" {
		_, err := pipeline.ParseRadii(*radiiflag)
		if err != nil {
			log.Fatalln("Error parsing radii:", err)
		}
	}

	var conn UploadQueueAdder
	switch *conntype {
	case "aws":
		conn = &contextfeat.AwsConn{Region: "eu-west-2", Logger: verboselog}
	case "local":
		conn = &contextfeat.LocalConn{Logger: verboselog}
	default:
		log.Fatalln("Unknown connection type")
	}

	ctx := context.Background()

	verboselog.Println("Checking that all images are valid in", mapdir)
	err := pipeline.CheckImages(ctx, mapdir)
	if err != nil {
		log.Fatalln(err)
	}

	verboselog.Println("Setting up AWS session")
	err = conn.Init()
	if err != nil {
		log.Fatalln("Error setting up cloud connection:", err)
	}

	verboselog.Println("Checking that a map hasn't already been uploaded with this name")
	list, err := conn.ListObjects(conn.WIPStorageId(), mapname)
	if err != nil {
		log.Fatalln("Error checking if map has already been uploaded:", err)
	}
	if len(list) > 0 {
		log.Fatalf("Error: map %s has already been uploaded", mapname)
	}

	verboselog.Println("Uploading class images")
	err = pipeline.UploadPredictions(ctx, mapdir, mapname, conn)
	if err != nil {
		log.Fatalln(err)
	}

	qmsg := mapname
	if *radiiflag != "" {
		qmsg += " " + *radiiflag
	}
	verboselog.Println("Adding map name to feature queue", qmsg)
	err = conn.AddToQueue(conn.FeatureQueueId(), qmsg)
	if err != nil {
		log.Fatalln("Error adding map to feature queue:", err)
	}

	fmt.Println("Uploaded map", mapname)
}
