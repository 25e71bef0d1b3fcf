// Package charts renders the dashboard's figures as PNG images.
package charts

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/ehr/healthdash/internal/findings"
	"github.com/ehr/healthdash/internal/sample"
	"github.com/ehr/healthdash/internal/stats"
)

// ErrUnknownChart is returned by Render for a name not in Names.
var ErrUnknownChart = errors.New("unknown chart")

const (
	ChartStatus          = "status"
	ChartMonthly         = "monthly"
	ChartSpecializations = "specializations"
	ChartFeatures        = "features"
)

// Names lists the charts Render understands.
var Names = []string{ChartStatus, ChartMonthly, ChartSpecializations, ChartFeatures}

// Image size of every chart.
var (
	Width  = 6.4 * vg.Inch
	Height = 4.8 * vg.Inch
)

var (
	primary = mustHex("#1f77b4")
	palette = []color.Color{primary, mustHex("#ff7f0e"), mustHex("#2ca02c"), mustHex("#d62728")}
)

func mustHex(s string) color.RGBA {
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		panic(fmt.Sprintf("bad colour %q", s))
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

// Render draws the named chart for t and returns it as PNG bytes.
func Render(name string, t *sample.Tables) ([]byte, error) {
	switch name {
	case ChartStatus:
		return StatusBar(stats.StatusCounts(t))
	case ChartMonthly:
		return MonthlyLine(stats.MonthlyDemand(t))
	case ChartSpecializations:
		counts, err := stats.SpecializationDemand(t)
		if err != nil {
			return nil, err
		}
		return SpecializationBar(counts)
	case ChartFeatures:
		return FeatureImportanceBar(findings.TopFeatures())
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownChart, name)
}

// StatusBar draws one coloured vertical bar per status.
func StatusBar(counts []stats.Count) ([]byte, error) {
	p := plot.New()
	p.Title.Text = "Appointment Status"
	p.Y.Label.Text = "Count"

	labels := make([]string, len(counts))
	for i, c := range counts {
		bar, err := plotter.NewBarChart(plotter.Values{float64(c.Value)}, vg.Points(40))
		if err != nil {
			return nil, fmt.Errorf("status bar %s: %w", c.Label, err)
		}
		bar.XMin = float64(i)
		bar.Color = palette[i%len(palette)]
		bar.LineStyle.Width = vg.Length(0)
		p.Add(bar)
		labels[i] = c.Label
	}
	if len(labels) > 0 {
		p.NominalX(labels...)
	}
	return encode(p)
}

// MonthlyLine draws appointments per month as a line with circle markers.
func MonthlyLine(counts []stats.Count) ([]byte, error) {
	p := plot.New()
	p.Title.Text = "Monthly Healthcare Demand"
	p.X.Label.Text = "Month"
	p.Y.Label.Text = "Number of Appointments"

	pts := make(plotter.XYs, 0, len(counts))
	for _, c := range counts {
		m, err := stats.MonthNumber(c.Label)
		if err != nil {
			return nil, err
		}
		pts = append(pts, plotter.XY{X: float64(m), Y: float64(c.Value)})
	}
	if len(pts) > 0 {
		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return nil, fmt.Errorf("monthly line: %w", err)
		}
		line.Color = primary
		points.Color = primary
		points.Shape = draw.CircleGlyph{}
		p.Add(line, points)
	}
	p.X.Min, p.X.Max = 0.5, 12.5
	p.Add(plotter.NewGrid())
	return encode(p)
}

// SpecializationBar draws demand per specialization as horizontal bars.
func SpecializationBar(counts []stats.Count) ([]byte, error) {
	labels := make([]string, len(counts))
	values := make(plotter.Values, len(counts))
	for i, c := range counts {
		labels[i] = c.Label
		values[i] = float64(c.Value)
	}
	return horizontalBar("Specializations by Demand", "Count", labels, values)
}

// FeatureImportanceBar draws the feature-importance ranking.
func FeatureImportanceBar(features []findings.Feature) ([]byte, error) {
	labels := make([]string, len(features))
	values := make(plotter.Values, len(features))
	for i, f := range features {
		labels[i] = f.Name
		values[i] = f.Importance
	}
	return horizontalBar("Top 5 Important Features", "Importance", labels, values)
}

func horizontalBar(title, xLabel string, labels []string, values plotter.Values) ([]byte, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel

	if len(values) > 0 {
		bars, err := plotter.NewBarChart(values, vg.Points(20))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", title, err)
		}
		bars.Horizontal = true
		bars.Color = primary
		bars.LineStyle.Width = vg.Length(0)
		p.Add(bars)
	}
	if len(labels) > 0 {
		p.NominalY(labels...)
	}
	return encode(p)
}

func encode(p *plot.Plot) ([]byte, error) {
	w, err := p.WriterTo(Width, Height, "png")
	if err != nil {
		return nil, fmt.Errorf("png writer: %w", err)
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
