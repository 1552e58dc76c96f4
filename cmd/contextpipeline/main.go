// Copyright 2024 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// contextpipeline watches queues for the names of prediction maps to
// process, computing their context features and building reports.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"rescribe.xyz/contextfeat"
	"rescribe.xyz/contextfeat/internal/pipeline"
)

const usage = `Usage: contextpipeline [-v] [-c conn] [-nf] [-nr] [-r radii] [-var] [-fill n]

Watches the feature and report queues for the names of prediction
maps. When one is found this general process is followed:

- The map name is hidden from the queue, and a 'heartbeat' is
  started which keeps it hidden (this will time out after 2 minutes
  if the program is terminated)
- The necessary files from mapname/ are downloaded
- The files are processed
- The resulting files are uploaded to mapname/
- The heartbeat is stopped
- The map name is removed from the queue it was taken from, and
  added to the next queue for future processing

A feature queue message may carry its own comma separated list of
radii after the map name, which overrides the -r flag for that map.

On SIGINT or SIGTERM the process logs are uploaded to cloud storage
before exiting, so that runs on servers which are shut down
afterwards can still be inspected.
`

const PauseBetweenChecks = 3 * time.Minute
const HeartbeatSeconds = pipeline.HeartbeatSeconds

func classMatch(n string) bool {
	return strings.HasPrefix(filepath.Base(n), "class_")
}

func featMatch(n string) bool {
	base := filepath.Base(n)
	return strings.HasPrefix(base, "feat_") || base == "profile.png"
}

func main() {
	verbose := flag.Bool("v", false, "verbose")
	conntype := flag.String("c", "aws", "connection type ('aws' or 'local')")
	nofeat := flag.Bool("nf", false, "disable featurising")
	noreport := flag.Bool("nr", false, "disable reporting")
	radiiflag := flag.String("r", "2,4,8", "default comma separated list of window radii")
	variance := flag.Bool("var", false, "also compute the variance of each window")
	fill := flag.Float64("fill", -1, "value for windows that cross the map border (-1 for 1/nclasses)")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	var verboselog *log.Logger
	if *verbose {
		verboselog = log.New(os.Stdout, "", 0)
	} else {
		var n pipeline.NullWriter
		verboselog = log.New(n, "", 0)
	}

	defaultradii, err := pipeline.ParseRadii(*radiiflag)
	if err != nil {
		log.Fatalln("Error parsing radii:", err)
	}

	var conn pipeline.Pipeliner
	switch *conntype {
	case "aws":
		conn = &contextfeat.AwsConn{Region: "eu-west-2", Logger: verboselog}
	case "local":
		conn = &contextfeat.LocalConn{Logger: verboselog}
	default:
		log.Fatalln("Unknown connection type")
	}

	verboselog.Println("Setting up connection")
	err = conn.Init()
	if err != nil {
		log.Fatalln("Error setting up connection:", err)
	}
	verboselog.Println("Finished setting up connection")

	ctx := context.Background()

	starttime := time.Now().Unix()
	hostname, err := os.Hostname()
	if err != nil {
		log.Fatalln("Failed to get hostname:", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	var checkFeatureQueue <-chan time.Time
	var checkReportQueue <-chan time.Time
	if !*nofeat {
		checkFeatureQueue = time.After(0)
	}
	if !*noreport {
		checkReportQueue = time.After(0)
	}

	for {
		select {
		case <-sigc:
			log.Println("Termination signal received, saving logs and exiting")
			err = pipeline.SaveLogs(conn, starttime, hostname)
			if err != nil {
				log.Println("Error saving logs", err)
			}
			return
		case <-checkFeatureQueue:
			msg, err := conn.CheckQueue(conn.FeatureQueueId(), HeartbeatSeconds*2)
			checkFeatureQueue = time.After(PauseBetweenChecks)
			if err != nil {
				log.Println("Error checking feature queue", err)
				continue
			}
			if msg.Handle == "" {
				verboselog.Println("No message received on feature queue, sleeping")
				continue
			}
			verboselog.Println("Message received on feature queue, processing", msg.Body)

			radii := defaultradii
			msgparts := strings.Split(msg.Body, " ")
			if len(msgparts) > 1 && msgparts[1] != "" {
				radii, err = pipeline.ParseRadii(msgparts[1])
				if err != nil {
					log.Println("Error parsing radii from message, using defaults:", err)
					radii = defaultradii
				}
			}

			process := pipeline.Featurise(radii, *variance, *fill)
			err = pipeline.ProcessMap(ctx, msg, conn, process, classMatch, conn.FeatureQueueId(), conn.ReportQueueId())
			if err != nil {
				log.Println("Error during featurise", err)
			}
		case <-checkReportQueue:
			msg, err := conn.CheckQueue(conn.ReportQueueId(), HeartbeatSeconds*2)
			checkReportQueue = time.After(PauseBetweenChecks)
			if err != nil {
				log.Println("Error checking report queue", err)
				continue
			}
			if msg.Handle == "" {
				verboselog.Println("No message received on report queue, sleeping")
				continue
			}
			verboselog.Println("Message received on report queue, processing", msg.Body)

			mapname := strings.Split(msg.Body, " ")[0]
			if !pipeline.AllFeaturised(mapname, conn) {
				verboselog.Println("Not all features are present yet for", mapname, "so leaving message on queue")
				continue
			}

			process := pipeline.Report(conn)
			err = pipeline.ProcessMap(ctx, msg, conn, process, featMatch, conn.ReportQueueId(), "")
			if err != nil {
				log.Println("Error during report", err)
			}
		}
	}
}
