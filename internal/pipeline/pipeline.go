// Copyright 2024 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// pipeline is a package used by the contextpipeline command, which
// handles the core functionality, using channels heavily to
// coordinate jobs. Note that it is considered an "internal" package,
// not intended for external use, and no guarantee is made of the
// stability of any interfaces provided.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"rescribe.xyz/contextfeat"
	"rescribe.xyz/contextfeat/field"
	"rescribe.xyz/contextfeat/multiscale"
)

const HeartbeatSeconds = 60

type Lister interface {
	ListObjects(bucket string, prefix string) ([]string, error)
	Log(v ...interface{})
	WIPStorageId() string
}

type Downloader interface {
	Download(bucket string, key string, fn string) error
	Log(v ...interface{})
	WIPStorageId() string
}

type DownloadLister interface {
	Download(bucket string, key string, fn string) error
	ListObjects(bucket string, prefix string) ([]string, error)
	Log(v ...interface{})
	WIPStorageId() string
}

type Uploader interface {
	Log(v ...interface{})
	Upload(bucket string, key string, path string) error
	WIPStorageId() string
}

type Queuer interface {
	AddToQueue(url string, msg string) error
	CheckQueue(url string, timeout int64) (contextfeat.Qmsg, error)
	DelFromQueue(url string, handle string) error
	FeatureQueueId() string
	Log(v ...interface{})
	QueueHeartbeat(msg contextfeat.Qmsg, qurl string, duration int64) (contextfeat.Qmsg, error)
	ReportQueueId() string
}

type UploadQueuer interface {
	AddToQueue(url string, msg string) error
	CheckQueue(url string, timeout int64) (contextfeat.Qmsg, error)
	DelFromQueue(url string, handle string) error
	FeatureQueueId() string
	Log(v ...interface{})
	QueueHeartbeat(msg contextfeat.Qmsg, qurl string, duration int64) (contextfeat.Qmsg, error)
	ReportQueueId() string
	Upload(bucket string, key string, path string) error
	WIPStorageId() string
}

type Pipeliner interface {
	AddToQueue(url string, msg string) error
	CheckQueue(url string, timeout int64) (contextfeat.Qmsg, error)
	DelFromQueue(url string, handle string) error
	Download(bucket string, key string, fn string) error
	FeatureQueueId() string
	GetLogger() *log.Logger
	Init() error
	ListObjects(bucket string, prefix string) ([]string, error)
	Log(v ...interface{})
	QueueHeartbeat(msg contextfeat.Qmsg, qurl string, duration int64) (contextfeat.Qmsg, error)
	ReportQueueId() string
	Upload(bucket string, key string, path string) error
	WIPStorageId() string
}

type MinPipeliner interface {
	Pipeliner
	MinimalInit() error
}

// ParseRadii parses a comma separated list of window radii,
// ensuring they are positive and strictly increasing.
func ParseRadii(s string) ([]int, error) {
	var radii []int
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		r, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("Could not parse radius %s: %v", p, err)
		}
		if r < 1 {
			return nil, fmt.Errorf("Radii must be positive, got %d", r)
		}
		if len(radii) > 0 && r <= radii[len(radii)-1] {
			return nil, fmt.Errorf("Radii must be strictly increasing, got %d after %d", r, radii[len(radii)-1])
		}
		radii = append(radii, r)
	}
	if len(radii) == 0 {
		return nil, fmt.Errorf("No radii given")
	}
	return radii, nil
}

// download reads file names from a channel and downloads them into
// dir, putting each successfully downloaded file name into the
// process channel. If an error occurs it is sent to the errc channel
// and the function returns early.
func download(ctx context.Context, dl chan string, process chan string, conn Downloader, dir string, errc chan error, logger *log.Logger) {
	for key := range dl {
		select {
		case <-ctx.Done():
			for range dl {
			} // consume the rest of the receiving channel so it isn't blocked
			errc <- ctx.Err()
			close(process)
			return
		default:
		}
		fn := filepath.Join(dir, filepath.Base(key))
		logger.Println("Downloading", key)
		err := conn.Download(conn.WIPStorageId(), key, fn)
		if err != nil {
			for range dl {
			} // consume the rest of the receiving channel so it isn't blocked
			errc <- err
			close(process)
			return
		}
		process <- fn
	}
	close(process)
}

// up reads file names from a channel and uploads them with
// the mapname/ prefix, removing the local copy of each file
// once it has been successfully uploaded. The done channel is
// then written to to signal completion. If an error occurs it
// is sent to the errc channel and the function returns early.
func up(ctx context.Context, c chan string, done chan bool, conn Uploader, mapname string, errc chan error, logger *log.Logger) {
	for path := range c {
		select {
		case <-ctx.Done():
			for range c {
			} // consume the rest of the receiving channel so it isn't blocked
			errc <- ctx.Err()
			return
		default:
		}
		name := filepath.Base(path)
		key := mapname + "/" + name
		logger.Println("Uploading", key)
		err := conn.Upload(conn.WIPStorageId(), key, path)
		if err != nil {
			for range c {
			} // consume the rest of the receiving channel so it isn't blocked
			errc <- err
			return
		}
		err = os.Remove(path)
		if err != nil {
			for range c {
			} // consume the rest of the receiving channel so it isn't blocked
			errc <- err
			return
		}
	}

	done <- true
}

// upAndQueue reads file names from a channel and uploads them with
// the mapname/ prefix, removing the local copy of each file
// once it has been successfully uploaded. Each done file name is
// added to the toQueue once it has been uploaded. The done channel
// is then written to to signal completion. If an error occurs it
// is sent to the errc channel and the function returns early.
func upAndQueue(ctx context.Context, c chan string, done chan bool, toQueue string, conn UploadQueuer, mapname string, radii string, errc chan error, logger *log.Logger) {
	for path := range c {
		select {
		case <-ctx.Done():
			for range c {
			} // consume the rest of the receiving channel so it isn't blocked
			errc <- ctx.Err()
			return
		default:
		}
		name := filepath.Base(path)
		key := mapname + "/" + name
		logger.Println("Uploading", key)
		err := conn.Upload(conn.WIPStorageId(), key, path)
		if err != nil {
			for range c {
			} // consume the rest of the receiving channel so it isn't blocked
			errc <- err
			return
		}
		err = os.Remove(path)
		if err != nil {
			for range c {
			} // consume the rest of the receiving channel so it isn't blocked
			errc <- err
			return
		}
		logger.Println("Adding", key, radii, "to queue", toQueue)
		err = conn.AddToQueue(toQueue, key+" "+radii)
		if err != nil {
			for range c {
			} // consume the rest of the receiving channel so it isn't blocked
			errc <- err
			return
		}
	}

	done <- true
}

// Featurise returns a process function that collects class
// probability images, computes ring averages (and optionally
// variances) over the given radii for every location, and saves a
// heatmap image per feature along with a radius profile graph for
// the centre location, sending each saved file for upload.
func Featurise(radii []int, variance bool, fill float64) func(context.Context, chan string, chan string, chan error, *log.Logger) {
	return func(ctx context.Context, in chan string, up chan string, errc chan error, logger *log.Logger) {
		var paths []string
		savedir := ""

		for path := range in {
			select {
			case <-ctx.Done():
				for range in {
				} // consume the rest of the receiving channel so it isn't blocked
				errc <- ctx.Err()
				return
			default:
			}
			if savedir == "" {
				savedir = filepath.Dir(path)
			}
			paths = append(paths, path)
		}

		if len(paths) == 0 {
			errc <- fmt.Errorf("No class images to featurise")
			return
		}
		sort.Strings(paths)

		imgs, err := LoadGrays(paths)
		if err != nil {
			errc <- err
			return
		}
		f, err := contextfeat.FromImages(imgs)
		if err != nil {
			errc <- fmt.Errorf("Error building prediction map: %v", err)
			return
		}

		if fill < 0 {
			fill = multiscale.DefaultFill(f.Channels)
		}

		logger.Println("Computing features for", len(paths), "classes at radii", radii)
		var feats *field.Field
		if variance {
			feats, err = multiscale.MeanVarFill(f, radii, fill)
		} else {
			feats, err = multiscale.MeanFill(f, radii, fill)
		}
		if err != nil {
			errc <- fmt.Errorf("Error computing features: %v", err)
			return
		}

		select {
		case <-ctx.Done():
			errc <- ctx.Err()
			return
		default:
		}

		nr := len(radii)
		perclass := nr
		if variance {
			perclass = 2 * nr
		}
		for fc := 0; fc < feats.Channels; fc++ {
			select {
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			default:
			}
			class := fc / perclass
			rest := fc % perclass
			name := fmt.Sprintf("feat_c%d_r%d.png", class, radii[rest%nr])
			if variance && rest >= nr {
				name = fmt.Sprintf("feat_c%d_r%d_var.png", class, radii[rest%nr])
			}
			fn := filepath.Join(savedir, name)
			logger.Println("Saving heatmap", fn)
			err = SavePng(contextfeat.Heatmap(feats, fc), fn)
			if err != nil {
				errc <- err
				return
			}
			up <- fn
		}

		logger.Println("Creating radius profile graph")
		var profiles []contextfeat.Profile
		cx, cy := f.Width/2, f.Height/2
		for c := 0; c < f.Channels; c++ {
			p := contextfeat.Profile{Label: fmt.Sprintf("class %d", c), Radii: radii}
			for i := 0; i < nr; i++ {
				p.Means = append(p.Means, feats.At(cx, cy, c*perclass+i))
			}
			profiles = append(profiles, p)
		}
		fn := filepath.Join(savedir, "profile.png")
		gf, err := os.Create(fn)
		if err != nil {
			errc <- fmt.Errorf("Error creating file %s: %v", fn, err)
			return
		}
		defer gf.Close()
		err = contextfeat.GraphOpts(profiles, filepath.Base(savedir), "Window radius", fill, gf)
		if err != nil {
			_ = os.Remove(fn)
		}
		if err != nil && err.Error() != "Not enough radii to graph" {
			errc <- fmt.Errorf("Error rendering graph: %v", err)
			return
		}
		if err == nil {
			up <- fn
		}

		close(up)
	}
}

// Report returns a process function that collects feature heatmap
// images and builds a PDF report containing each of them with a
// caption, sending the PDF for upload.
func Report(conn Downloader) func(context.Context, chan string, chan string, chan error, *log.Logger) {
	return func(ctx context.Context, in chan string, up chan string, errc chan error, logger *log.Logger) {
		var paths []string
		savedir := ""

		for path := range in {
			select {
			case <-ctx.Done():
				for range in {
				} // consume the rest of the receiving channel so it isn't blocked
				errc <- ctx.Err()
				return
			default:
			}
			if savedir == "" {
				savedir = filepath.Dir(path)
			}
			paths = append(paths, path)
		}

		if len(paths) == 0 {
			errc <- fmt.Errorf("No heatmaps to report on")
			return
		}
		sort.Strings(paths)

		mapname, err := filepath.Rel(os.TempDir(), savedir)
		if err != nil {
			errc <- fmt.Errorf("Failed to do filepath.Rel of %s to %s: %v", os.TempDir(), savedir, err)
			return
		}

		pdf := new(contextfeat.Fpdf)
		err = pdf.Setup()
		if err != nil {
			errc <- fmt.Errorf("Failed to set up PDF: %v", err)
			return
		}

		for _, path := range paths {
			select {
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			default:
			}
			logger.Println("Adding page to PDF for", path)
			caption := strings.TrimSuffix(filepath.Base(path), ".png")
			err = pdf.AddHeatmapPage(path, caption)
			if err != nil {
				errc <- fmt.Errorf("Failed to add page %s to PDF: %v", path, err)
				return
			}
			err = os.Remove(path)
			if err != nil {
				errc <- err
				return
			}
		}

		fn := filepath.Join(savedir, mapname+".pdf")
		logger.Println("Saving PDF to", fn)
		err = pdf.Save(fn)
		if err != nil {
			errc <- fmt.Errorf("Failed to save pdf: %v", err)
			return
		}
		up <- fn

		close(up)
	}
}

func heartbeat(conn Queuer, t *time.Ticker, msg contextfeat.Qmsg, queue string, msgc chan contextfeat.Qmsg, errc chan error) {
	currentmsg := msg
	for range t.C {
		m, err := conn.QueueHeartbeat(currentmsg, queue, HeartbeatSeconds*2)
		if err != nil {
			conn.Log("Error with heartbeat", err)
			errc <- err
			t.Stop()
			return
		}
		if m.Id != "" {
			conn.Log("Replaced message handle as visibilitytimeout limit was reached")
			currentmsg = m
			for range msgc {
			} // throw away any old msgc
			msgc <- m
		}
	}
}

// AllFeaturised checks whether all class images of a map have been
// featurised. This is determined by whether every class image has at
// least one corresponding feature heatmap.
func AllFeaturised(mapname string, conn Lister) bool {
	objs, err := conn.ListObjects(conn.WIPStorageId(), mapname)
	if err != nil {
		return false
	}

	var classes []string
	for _, obj := range objs {
		if strings.HasPrefix(filepath.Base(obj), "class_") {
			classes = append(classes, obj)
		}
	}
	if len(classes) == 0 {
		return false
	}
	sort.Strings(classes)

	for c := range classes {
		prefix := mapname + "/" + fmt.Sprintf("feat_c%d_", c)
		found := false
		for _, o := range objs {
			if strings.HasPrefix(o, prefix) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ProcessMap processes a single map from a queue message, using the
// process function to turn downloaded files into files to upload.
// The message is hidden from the queue while it is worked on by a
// regular heartbeat, and deleted from the queue on success. Files
// whose names do not match the match function are not downloaded.
func ProcessMap(ctx context.Context, msg contextfeat.Qmsg, conn Pipeliner, process func(context.Context, chan string, chan string, chan error, *log.Logger), match func(string) bool, fromQueue string, toQueue string) error {
	dl := make(chan string)
	msgc := make(chan contextfeat.Qmsg)
	processc := make(chan string)
	upc := make(chan string)
	done := make(chan bool)
	errc := make(chan error)

	msgparts := strings.Split(msg.Body, " ")
	mapname := msgparts[0]

	d := filepath.Join(os.TempDir(), mapname)
	err := os.MkdirAll(d, 0755)
	if err != nil {
		return fmt.Errorf("Failed to create directory %s: %v", d, err)
	}

	t := time.NewTicker(HeartbeatSeconds * time.Second)
	go heartbeat(conn, t, msg, fromQueue, msgc, errc)

	// these functions will do their jobs when their channels have data
	go download(ctx, dl, processc, conn, d, errc, conn.GetLogger())
	go process(ctx, processc, upc, errc, conn.GetLogger())
	go up(ctx, upc, done, conn, mapname, errc, conn.GetLogger())

	conn.Log("Getting list of objects to download")
	objs, err := conn.ListObjects(conn.WIPStorageId(), mapname)
	if err != nil {
		t.Stop()
		_ = os.RemoveAll(d)
		return fmt.Errorf("Failed to get list of files for map %s: %v", mapname, err)
	}
	var todl []string
	for _, n := range objs {
		if !match(n) {
			conn.Log("Skipping item that doesn't match target", n)
			continue
		}
		todl = append(todl, n)
	}
	for _, a := range todl {
		dl <- a
	}
	close(dl)

	// wait for either the done or errc channel to be sent to
	select {
	case err = <-errc:
		t.Stop()
		_ = os.RemoveAll(d)
		// if the error is in featurising, chances are that it will never
		// complete, so it's better to delete the message from the queue
		if fromQueue == conn.FeatureQueueId() {
			conn.Log("Deleting message from queue due to a bad error", fromQueue)
			err2 := conn.DelFromQueue(fromQueue, msg.Handle)
			if err2 != nil {
				conn.Log("Error deleting message from queue", err2)
			}
		}
		return err
	case <-ctx.Done():
		t.Stop()
		_ = os.RemoveAll(d)
		return ctx.Err()
	case <-done:
	}

	if toQueue != "" {
		conn.Log("Sending", mapname, "to queue", toQueue)
		err = conn.AddToQueue(toQueue, mapname)
		if err != nil {
			t.Stop()
			_ = os.RemoveAll(d)
			return fmt.Errorf("Error adding to queue %s: %v", mapname, err)
		}
	}

	t.Stop()

	// check whether we're using a newer msg handle
	select {
	case m, ok := <-msgc:
		if ok {
			msg = m
			conn.Log("Using new message handle to delete message from queue")
		}
	default:
		conn.Log("Using original message handle to delete message from queue")
	}

	conn.Log("Deleting original message from queue", fromQueue)
	err = conn.DelFromQueue(fromQueue, msg.Handle)
	if err != nil {
		_ = os.RemoveAll(d)
		return fmt.Errorf("Error deleting message from queue: %v", err)
	}

	err = os.RemoveAll(d)
	if err != nil {
		return fmt.Errorf("Failed to remove directory %s: %v", d, err)
	}

	return nil
}

// LoadGrays decodes each image file into a greyscale image
func LoadGrays(paths []string) ([]*image.Gray, error) {
	var imgs []*image.Gray
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("Opening image %s failed: %v", path, err)
		}
		img, _, err := image.Decode(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("Decoding image %s failed: %v", path, err)
		}
		b := img.Bounds()
		gray := image.NewGray(b)
		draw.Draw(gray, b, img, b.Min, draw.Src)
		imgs = append(imgs, gray)
	}
	return imgs, nil
}

// SavePng writes an image to path in PNG format
func SavePng(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("Error creating file %s: %v", path, err)
	}
	defer f.Close()
	err = png.Encode(f, img)
	if err != nil {
		return fmt.Errorf("Error encoding image %s: %v", path, err)
	}
	return nil
}

func getLogs() (string, error) {
	cmd := exec.Command("journalctl", "-u", "contextpipeline", "-n", "all")
	HideCmd(cmd)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), err
}

// SaveLogs uploads the logs of this contextpipeline run, so that
// they can be inspected after a server has been shut down.
func SaveLogs(conn Uploader, starttime int64, hostname string) error {
	logs, err := getLogs()
	if err != nil {
		return fmt.Errorf("Error getting logs, error: %v", err)
	}
	key := fmt.Sprintf("contextpipeline.log.%d.%s", starttime, hostname)
	path := filepath.Join(os.TempDir(), key)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("Error creating log file: %v", err)
	}
	defer f.Close()
	_, err = f.WriteString(logs)
	if err != nil {
		return fmt.Errorf("Error saving log file: %v", err)
	}
	_ = f.Close()
	err = conn.Upload(conn.WIPStorageId(), key, path)
	if err != nil {
		return fmt.Errorf("Error uploading log: %v", err)
	}
	conn.Log("Log saved to", key)
	return nil
}
