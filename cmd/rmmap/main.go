// Copyright 2024 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// rmmap removes a prediction map from cloud storage.
package main

import (
	"flag"
	"fmt"
	"log"

	"rescribe.xyz/contextfeat"
)

const usage = `Usage: rmmap [-c conn] mapname

Removes a prediction map from cloud storage, including all of its
class images, features and reports.
`

// null writer to enable non-verbose logging to be discarded
type NullWriter bool

func (w NullWriter) Write(p []byte) (n int, err error) {
	return len(p), nil
}

type RmPipeliner interface {
	MinimalInit() error
	WIPStorageId() string
	DeleteObjects(bucket string, keys []string) error
	ListObjects(bucket string, prefix string) ([]string, error)
}

func main() {
	conntype := flag.String("c", "aws", "connection type ('aws' or 'local')")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		return
	}

	var n NullWriter
	verboselog := log.New(n, "", log.LstdFlags)

	var conn RmPipeliner
	switch *conntype {
	case "aws":
		conn = &contextfeat.AwsConn{Region: "eu-west-2", Logger: verboselog}
	case "local":
		conn = &contextfeat.LocalConn{Logger: verboselog}
	default:
		log.Fatalln("Unknown connection type")
	}

	fmt.Println("Setting up cloud connection")
	err := conn.MinimalInit()
	if err != nil {
		log.Fatalln("Error setting up cloud connection:", err)
	}

	mapname := flag.Arg(0)

	fmt.Println("Getting list of files for map")
	objs, err := conn.ListObjects(conn.WIPStorageId(), mapname)
	if err != nil {
		log.Fatalln("Error in listing map items:", err)
	}

	if len(objs) == 0 {
		log.Fatalln("No files found for map:", mapname)
	}

	fmt.Println("Deleting all files for map")
	err = conn.DeleteObjects(conn.WIPStorageId(), objs)
	if err != nil {
		log.Fatalln("Error deleting map files:", err)
	}

	fmt.Println("Finished deleting files")
}
