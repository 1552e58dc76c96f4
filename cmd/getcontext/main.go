// Copyright 2024 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// getcontext downloads the pipeline results for a prediction map.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"rescribe.xyz/contextfeat"
	"rescribe.xyz/contextfeat/internal/pipeline"
)

const usage = `Usage: getcontext [-a] [-pdf] [-c conn] [-v] mapname

Downloads the pipeline results for a prediction map.

By default this downloads the feature heatmaps and the profile
graph for a map. With -pdf only the report PDF is downloaded,
and with -a every file stored for the map is downloaded,
including the original class images.
`

// null writer to enable non-verbose logging to be discarded
type NullWriter bool

func (w NullWriter) Write(p []byte) (n int, err error) {
	return len(p), nil
}

type Pipeliner interface {
	Init() error
	ListObjects(bucket string, prefix string) ([]string, error)
	Download(bucket string, key string, fn string) error
	WIPStorageId() string
	Log(v ...interface{})
}

func main() {
	all := flag.Bool("a", false, "Get all files for map")
	pdfonly := flag.Bool("pdf", false, "Only get the report PDF for map")
	conntype := flag.String("c", "aws", "connection type ('aws' or 'local')")
	verbose := flag.Bool("v", false, "Verbose")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		return
	}

	var verboselog *log.Logger
	if *verbose {
		verboselog = log.New(os.Stdout, "", log.LstdFlags)
	} else {
		var n NullWriter
		verboselog = log.New(n, "", log.LstdFlags)
	}

	var conn Pipeliner
	switch *conntype {
	case "aws":
		conn = &contextfeat.AwsConn{Region: "eu-west-2", Logger: verboselog}
	case "local":
		conn = &contextfeat.LocalConn{Logger: verboselog}
	default:
		log.Fatalln("Unknown connection type")
	}

	verboselog.Println("Setting up cloud connection")
	err := conn.Init()
	if err != nil {
		log.Fatalln("Error setting up cloud connection:", err)
	}
	verboselog.Println("Finished setting up cloud connection")

	mapname := flag.Arg(0)

	err = os.MkdirAll(mapname, 0755)
	if err != nil {
		log.Fatalln("Failed to create directory", mapname, err)
	}

	switch {
	case *all:
		verboselog.Println("Downloading all files for", mapname)
		err = pipeline.DownloadAll(mapname, mapname, conn)
	case *pdfonly:
		verboselog.Println("Downloading report for", mapname)
		err = pipeline.DownloadReport(mapname, mapname, conn)
	default:
		verboselog.Println("Downloading features for", mapname)
		err = pipeline.DownloadFeatures(mapname, mapname, conn)
	}
	if err != nil {
		log.Fatalln(err)
	}
}
