package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// echartsAssetsPrefix is where rendered pages load the echarts scripts from.
const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

func (s *Server) histogramChart() *charts.Bar {
	h := s.histogram()

	x := make([]string, len(h.Counts))
	y := make([]opts.BarData, len(h.Counts))
	for i, c := range h.Counts {
		x[i] = binLabel(h.Edges, i)
		y[i] = opts.BarData{Value: c}
	}

	unit := ""
	if f := s.snapshot(); f != nil {
		unit = f.Unit
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Reading histogram", Theme: "dark", Width: "100%", Height: "480px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Reading distribution", Subtitle: fmt.Sprintf("total=%d", h.Total)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: unit, NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "count"}),
	)
	bar.SetXAxis(x).AddSeries("count", y)
	return bar
}

// binLabel is the centre of bin i, or its index when the edges do not cover
// it.
func binLabel(edges []float64, i int) string {
	if i+1 >= len(edges) {
		return strconv.Itoa(i)
	}
	return strconv.FormatFloat((edges[i]+edges[i+1])/2, 'g', 4, 64)
}

func (s *Server) seriesChart(n int) *charts.Line {
	series := s.seriesTail(n)

	x := make([]string, len(series.Points))
	y := make([]opts.LineData, len(series.Points))
	for i, p := range series.Points {
		x[i] = strconv.FormatFloat(p.Sequence, 'f', 0, 64)
		y[i] = opts.LineData{Value: p.Value}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Reading series", Theme: "dark", Width: "100%", Height: "480px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Readings",
			Subtitle: fmt.Sprintf("n=%d mean=%.6g std=%.3g", series.Summary.Count, series.Summary.Mean, series.Summary.StdDev),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "sequence", NameLocation: "middle", NameGap: 25}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)
	line.SetXAxis(x).AddSeries("value", y)
	return line
}

func (s *Server) renderPage(w http.ResponseWriter, c ...components.Charter) {
	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(c...)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleHistogramChart renders the histogram as a go-echarts bar chart.
func (s *Server) handleHistogramChart(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, s.histogramChart())
}

// handleSeriesChart renders the newest ?n= points as a line chart.
func (s *Server) handleSeriesChart(w http.ResponseWriter, r *http.Request) {
	n, err := pointsParam(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'n' parameter")
		return
	}
	s.renderPage(w, s.seriesChart(n))
}

// handleDashboard renders both charts on one page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, s.histogramChart(), s.seriesChart(defaultSeriesPoints))
}
