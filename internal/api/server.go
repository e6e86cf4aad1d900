// Package api serves the live dashboard: JSON views of the latest frame and
// the aggregates, go-echarts pages, and tsweb debug controls.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/multimeter/internal/acquire"
	"github.com/banshee-data/multimeter/internal/measure"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// defaultSeriesPoints is how many points /api/series returns without ?n=.
const defaultSeriesPoints = 600

// Controller is the part of the acquisition loop the dashboard may drive.
// Both calls are applied by the loop before its next iteration.
type Controller interface {
	RequestReset()
	RequestQuery()
}

// Server is an acquire.Renderer that keeps the latest frame and its own
// copy of the series for HTTP clients. The mutex guards everything the
// loop goroutine writes.
type Server struct {
	ctl   Controller
	edges []float64

	mu     sync.RWMutex
	latest *acquire.Frame
	series *measure.Series
}

// NewServer returns a dashboard for a histogram with the given bin edges.
// seriesCapacity bounds the dashboard's series; 0 means unbounded.
func NewServer(ctl Controller, edges []float64, seriesCapacity int) *Server {
	return &Server{
		ctl:    ctl,
		edges:  append([]float64(nil), edges...),
		series: measure.NewSeries(seriesCapacity),
	}
}

// Render implements acquire.Renderer.
func (s *Server) Render(f acquire.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest = &f
	if f.Measurement != nil {
		s.series.Append(f.Measurement.Sequence, f.Measurement.Value)
	}
}

// snapshot returns the latest frame, or nil before the first one.
func (s *Server) snapshot() *acquire.Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the dashboard routes. Debug routes are added separately by
// AttachDebugRoutes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/reading", s.showReading)
	mux.HandleFunc("/api/histogram", s.showHistogram)
	mux.HandleFunc("/api/histogram/reset", s.resetHistogram)
	mux.HandleFunc("/api/series", s.showSeries)
	mux.HandleFunc("/charts/", s.handleDashboard)
	mux.HandleFunc("/charts/histogram", s.handleHistogramChart)
	mux.HandleFunc("/charts/series", s.handleSeriesChart)
	return mux
}

// AttachDebugRoutes adds the send-query control to the tsweb debug page.
func (s *Server) AttachDebugRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.Handle("send-query", "Send the query command before the next read", http.HandlerFunc(s.sendQueryHandler))
}

func (s *Server) sendQueryHandler(w http.ResponseWriter, r *http.Request) {
	s.ctl.RequestQuery()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Query queued for the next frame\n"))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// ReadingResponse is the body of GET /api/reading.
type ReadingResponse struct {
	Sequence float64       `json:"sequence"`
	Time     time.Time     `json:"time"`
	Channel  int           `json:"channel"`
	Unit     string        `json:"unit"`
	Text     string        `json:"text"`
	Value    *float32      `json:"value,omitempty"`
	Logged   bool          `json:"logged"`
	Error    string        `json:"error,omitempty"`
	Stats    acquire.Stats `json:"stats"`
}

func (s *Server) showReading(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	f := s.snapshot()
	if f == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "no reading yet")
		return
	}

	resp := ReadingResponse{
		Sequence: f.Sequence,
		Time:     f.Time,
		Channel:  f.Channel,
		Unit:     f.Unit,
		Text:     f.Text,
		Logged:   f.Logged,
		Error:    f.ErrorText(),
		Stats:    f.Stats,
	}
	if f.Measurement != nil {
		v := f.Measurement.Value
		resp.Value = &v
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// HistogramResponse is the body of GET /api/histogram.
type HistogramResponse struct {
	Edges      []float64 `json:"edges"`
	Counts     []uint64  `json:"counts"`
	Normalized []float32 `json:"normalized"`
	Total      uint64    `json:"total"`
}

func (s *Server) histogram() HistogramResponse {
	bins := len(s.edges) - 1
	if bins < 0 {
		bins = 0
	}
	resp := HistogramResponse{
		Edges:      s.edges,
		Counts:     make([]uint64, bins),
		Normalized: make([]float32, bins),
	}
	if f := s.snapshot(); f != nil && f.Counts != nil {
		resp.Counts = f.Counts
		resp.Normalized = f.Bins
	}
	for _, c := range resp.Counts {
		resp.Total += c
	}
	return resp
}

func (s *Server) showHistogram(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.histogram())
}

func (s *Server) resetHistogram(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.ctl.RequestReset()
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "reset requested"})
}

// SeriesResponse is the body of GET /api/series.
type SeriesResponse struct {
	Points  []measure.Point `json:"points"`
	Summary measure.Summary `json:"summary"`
	Dropped uint64          `json:"dropped"`
}

func (s *Server) seriesTail(n int) SeriesResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SeriesResponse{
		Points:  s.series.Tail(n),
		Summary: s.series.Summarize(),
		Dropped: s.series.Dropped(),
	}
}

func (s *Server) showSeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	n, err := pointsParam(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'n' parameter")
		return
	}
	s.writeJSON(w, http.StatusOK, s.seriesTail(n))
}

func pointsParam(r *http.Request) (int, error) {
	n := defaultSeriesPoints
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return 0, strconv.ErrSyntax
		}
		n = parsed
	}
	return n, nil
}
