// Package plotexport writes PNG plots of a finished run's series and
// histogram.
package plotexport

import (
	"errors"
	"fmt"
	"image/color"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/multimeter/internal/fsutil"
	"github.com/banshee-data/multimeter/internal/measure"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("no data to plot")

var lineColor = color.RGBA{R: 220, G: 40, B: 40, A: 255}

// Exporter saves plots into Dir, naming files with Prefix.
type Exporter struct {
	Dir    string
	Prefix string
	Width  vg.Length
	Height vg.Length
	fs     fsutil.FileSystem
}

// New returns an Exporter writing 14x6 inch plots.
func New(dir, prefix string) *Exporter {
	return &Exporter{
		Dir:    dir,
		Prefix: prefix,
		Width:  14 * vg.Inch,
		Height: 6 * vg.Inch,
		fs:     fsutil.OSFileSystem{},
	}
}

func (e *Exporter) path(kind string) (string, error) {
	if err := e.fs.MkdirAll(e.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create plot directory %s: %w", e.Dir, err)
	}
	return filepath.Join(e.Dir, fmt.Sprintf("%s_%s.png", e.Prefix, kind)), nil
}

// Series plots value against sequence number.
func (e *Exporter) Series(points []measure.Point, unit string) (string, error) {
	if len(points) == 0 {
		return "", ErrNoData
	}

	xys := make(plotter.XYs, len(points))
	for i, pt := range points {
		xys[i] = plotter.XY{X: pt.Sequence, Y: float64(pt.Value)}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Readings (%d points)", len(points))
	p.X.Label.Text = "Sequence"
	p.Y.Label.Text = unit
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(xys)
	if err != nil {
		return "", err
	}
	line.Color = lineColor
	line.Width = vg.Points(1)
	p.Add(line)

	path, err := e.path("series")
	if err != nil {
		return "", err
	}
	if err := p.Save(e.Width, e.Height, path); err != nil {
		return "", fmt.Errorf("failed to save series plot: %w", err)
	}
	return path, nil
}

// Histogram plots the bin counts of h.
func (e *Exporter) Histogram(h *measure.Histogram, unit string) (string, error) {
	if h.Total() == 0 {
		return "", ErrNoData
	}

	edges := h.BinEdges()
	counts := h.Counts()
	bins := make([]plotter.HistogramBin, len(counts))
	for i, c := range counts {
		bins[i] = plotter.HistogramBin{Min: edges[i], Max: edges[i+1], Weight: float64(c)}
	}

	hist := &plotter.Histogram{
		Bins:      bins,
		Width:     edges[1] - edges[0],
		FillColor: lineColor,
		LineStyle: plotter.DefaultLineStyle,
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Reading distribution (%d values)", h.Total())
	p.X.Label.Text = unit
	p.Y.Label.Text = "Count"
	p.Add(hist)

	path, err := e.path("histogram")
	if err != nil {
		return "", err
	}
	if err := p.Save(e.Width, e.Height, path); err != nil {
		return "", fmt.Errorf("failed to save histogram plot: %w", err)
	}
	return path, nil
}
