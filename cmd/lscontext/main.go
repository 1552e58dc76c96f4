// Copyright 2024 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// lscontext lists useful things related to the context pipeline.
package main

import (
	"flag"
	"fmt"
	"log"
	"sort"
	"strings"

	"rescribe.xyz/contextfeat"
)

const usage = `Usage: lscontext [-nomaps]

Lists useful things related to the pipeline.

- Messages in each queue
- Maps not completed
- Maps done
`

type LsPipeliner interface {
	Init() error
	FeatureQueueId() string
	ReportQueueId() string
	GetQueueDetails(url string) (string, string, error)
	ListObjectsWithMeta(bucket string, prefix string) ([]contextfeat.ObjMeta, error)
	ListObjectPrefixes(bucket string) ([]string, error)
	WIPStorageId() string
}

// NullWriter is used so non-verbose logging may be discarded
type NullWriter bool

func (w NullWriter) Write(p []byte) (n int, err error) {
	return len(p), nil
}

type queueDetails struct {
	name, numAvailable, numInProgress string
}

func getQueueDetails(conn LsPipeliner, qdetails chan queueDetails) {
	queues := []struct{ name, id string }{
		{"feature", conn.FeatureQueueId()},
		{"report", conn.ReportQueueId()},
	}
	for _, q := range queues {
		avail, inprog, err := conn.GetQueueDetails(q.id)
		if err != nil {
			log.Println("Error getting queue details:", err)
		}
		var qd queueDetails
		qd.name = q.name
		qd.numAvailable = avail
		qd.numInProgress = inprog
		qdetails <- qd
	}
	close(qdetails)
}

type ObjMetas []contextfeat.ObjMeta

// used by sort.Sort
func (o ObjMetas) Len() int {
	return len(o)
}

// used by sort.Sort
func (o ObjMetas) Swap(i, j int) {
	o[i], o[j] = o[j], o[i]
}

// used by sort.Sort
func (o ObjMetas) Less(i, j int) bool {
	return o[i].Date.Before(o[j].Date)
}

// getMapStatus returns a list of in progress and done maps.
// It determines this by finding all prefixes, and splitting them
// into two lists, those which have a PDF report (the done list),
// and those which do not (the inprogress list). They are sorted
// according to the date of the report, or the date of a random
// file with the prefix if no report was found.
func getMapStatus(conn LsPipeliner) (inprogress []string, done []string, err error) {
	prefixes, err := conn.ListObjectPrefixes(conn.WIPStorageId())
	var inprogressmeta, donemeta ObjMetas
	if err != nil {
		log.Println("Error getting object prefixes:", err)
		return
	}
	// Search for the report to determine done maps (and save the date of it to sort with)
	for _, p := range prefixes {
		name := strings.TrimSuffix(p, "/")
		objs, err := conn.ListObjectsWithMeta(conn.WIPStorageId(), p+name+".pdf")
		if err != nil || len(objs) == 0 {
			inprogressmeta = append(inprogressmeta, contextfeat.ObjMeta{Name: p})
		} else {
			donemeta = append(donemeta, contextfeat.ObjMeta{Name: p, Date: objs[0].Date})
		}
	}
	// Get a random file from the inprogress list to get a date to sort by
	for _, i := range inprogressmeta {
		objs, err := conn.ListObjectsWithMeta(conn.WIPStorageId(), i.Name)
		if err != nil || len(objs) == 0 {
			continue
		}
		i.Date = objs[0].Date
	}
	sort.Sort(donemeta)
	for _, i := range donemeta {
		done = append(done, strings.TrimSuffix(i.Name, "/"))
	}
	sort.Sort(inprogressmeta)
	for _, i := range inprogressmeta {
		inprogress = append(inprogress, strings.TrimSuffix(i.Name, "/"))
	}

	return
}

// getMapStatusChan runs getMapStatus and sends its results to
// channels for the done and receive arrays.
func getMapStatusChan(conn LsPipeliner, inprogressc chan string, donec chan string) {
	inprogress, done, err := getMapStatus(conn)
	if err != nil {
		log.Println("Error getting map status:", err)
		close(inprogressc)
		close(donec)
		return
	}
	for _, i := range inprogress {
		inprogressc <- i
	}
	close(inprogressc)
	for _, i := range done {
		donec <- i
	}
	close(donec)
}

func main() {
	nomaps := flag.Bool("nomaps", false, "disable listing maps completed and not completed (which takes some time)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	var verboselog *log.Logger
	var n NullWriter
	verboselog = log.New(n, "", 0)

	var conn LsPipeliner
	conn = &contextfeat.AwsConn{Region: "eu-west-2", Logger: verboselog}
	err := conn.Init()
	if err != nil {
		log.Fatalln("Failed to set up cloud connection:", err)
	}

	queues := make(chan queueDetails)
	inprogress := make(chan string, 100)
	done := make(chan string, 100)

	go getQueueDetails(conn, queues)
	if !*nomaps {
		go getMapStatusChan(conn, inprogress, done)
	}

	fmt.Println("# Queues")
	for i := range queues {
		fmt.Printf("%s: %s available, %s in progress\n", i.name, i.numAvailable, i.numInProgress)
	}

	if !*nomaps {
		fmt.Println("\n# Maps not completed")
		for i := range inprogress {
			fmt.Println(i)
		}

		fmt.Println("\n# Maps done")
		for i := range done {
			fmt.Println(i)
		}
	}
}
