// Copyright 2024 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package contextfeat

import (
	"errors"
	"fmt"
	"io"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const maxticks = 40

// Profile is the mean probability of one class at each window
// radius, for graphing how context changes with scale.
type Profile struct {
	Label string
	Radii []int
	Means []float64
}

// createLine creates a horizontal line with a particular y value for
// a graph
func createLine(xvalues []float64, y float64, c drawing.Color) chart.ContinuousSeries {
	var yvalues []float64
	for range xvalues {
		yvalues = append(yvalues, y)
	}
	return chart.ContinuousSeries{
		XValues: xvalues,
		YValues: yvalues,
		Style: chart.Style{
			StrokeColor: c,
		},
	}
}

// Graph creates a graph of class profiles over window radius
func Graph(profiles []Profile, title string, w io.Writer) error {
	return GraphOpts(profiles, title, "Window radius", -1, w)
}

// GraphOpts creates a graph of class profiles over window radius. If
// fill is not negative a guideline is drawn at it, marking the value
// used for windows that cross the field border.
func GraphOpts(profiles []Profile, title string, xaxis string, fill float64, w io.Writer) error {
	if len(profiles) == 0 {
		return errors.New("No profiles to graph")
	}
	for _, p := range profiles {
		if len(p.Radii) < 2 {
			return errors.New("Not enough radii to graph")
		}
		if len(p.Radii) != len(p.Means) {
			return fmt.Errorf("Profile %s has %d radii but %d means", p.Label, len(p.Radii), len(p.Means))
		}
	}

	palette := []drawing.Color{
		chart.ColorBlue,
		chart.ColorGreen,
		chart.ColorOrange,
		chart.ColorRed,
		chart.ColorCyan,
		chart.ColorAlternateGray,
	}

	var xvalues []float64
	var ticks []chart.Tick
	tickevery := len(profiles[0].Radii) / maxticks
	if tickevery < 1 {
		tickevery = 1
	}
	for i, r := range profiles[0].Radii {
		xvalues = append(xvalues, float64(r))
		if i%tickevery == 0 {
			ticks = append(ticks, chart.Tick{Value: float64(r), Label: fmt.Sprintf("%d", r)})
		}
	}
	// Make last tick the largest radius
	final := profiles[0].Radii[len(profiles[0].Radii)-1]
	ticks[len(ticks)-1] = chart.Tick{Value: float64(final), Label: fmt.Sprintf("%d", final)}

	var series []chart.Series
	var annotations []chart.Value2
	for i, p := range profiles {
		var yvalues []float64
		for _, m := range p.Means {
			yvalues = append(yvalues, m)
		}
		series = append(series, chart.ContinuousSeries{
			Name: p.Label,
			Style: chart.Style{
				StrokeColor: palette[i%len(palette)],
			},
			XValues: xvalues,
			YValues: yvalues,
		})
		annotations = append(annotations, chart.Value2{
			Label:  p.Label,
			XValue: xvalues[len(xvalues)-1],
			YValue: yvalues[len(yvalues)-1],
		})
	}

	if fill >= 0 {
		fillSeries := createLine(xvalues, fill, chart.ColorAlternateGray)
		fillSeries.Style.StrokeDashArray = []float64{5.0, 5.0}
		series = append(series, fillSeries)
		annotations = append(annotations, chart.Value2{
			Label:  fmt.Sprintf("fill %.2f", fill),
			XValue: xvalues[len(xvalues)-1],
			YValue: fill,
		})
	}

	series = append(series, chart.AnnotationSeries{
		Annotations: annotations,
	})

	graph := chart.Chart{
		Title:  title,
		Width:  3840,
		Height: 2160,
		XAxis: chart.XAxis{
			Name: xaxis,
			Range: &chart.ContinuousRange{
				Min: 0.0,
			},
			Ticks: ticks,
		},
		YAxis: chart.YAxis{
			Name: "Mean probability",
			Range: &chart.ContinuousRange{
				Min: 0.0,
				Max: 1.0,
			},
		},
		Series: series,
	}
	return graph.Render(chart.PNG, w)
}
