package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tailscale.com/tsweb"

	"github.com/banshee-data/multimeter/internal/acquire"
	"github.com/banshee-data/multimeter/internal/measure"
)

type fakeController struct {
	resets  atomic.Int32
	queries atomic.Int32
}

func (c *fakeController) RequestReset() { c.resets.Add(1) }
func (c *fakeController) RequestQuery() { c.queries.Add(1) }

func newTestServer(t *testing.T) (*Server, *fakeController) {
	t.Helper()
	ctl := &fakeController{}
	edges := []float64{0, 2.5, 5, 7.5, 10}
	return NewServer(ctl, edges, 100), ctl
}

func frameWith(seq float64, v float32) acquire.Frame {
	m := measure.NewMeasurement(seq, v)
	return acquire.Frame{
		Sequence:    seq,
		Time:        time.UnixMilli(1700000000000),
		Channel:     1,
		Unit:        "V",
		Text:        "1.5",
		Measurement: &m,
		Counts:      []uint64{0, 2, 0, 1},
		Bins:        []float32{0, 1, 0, 0.5},
		Stats:       acquire.Stats{Iterations: uint64(seq), Accepted: uint64(seq)},
	}
}

func serve(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "127.0.0.1:12345"
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, req)
	return rec
}

func TestShowReading(t *testing.T) {
	s, _ := newTestServer(t)

	rec := serve(t, s, http.MethodGet, "/api/reading")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "no reading yet")

	s.Render(frameWith(7, 1.5))
	rec = serve(t, s, http.MethodGet, "/api/reading")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got ReadingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 7.0, got.Sequence)
	require.NotNil(t, got.Value)
	assert.Equal(t, float32(1.5), *got.Value)
	assert.Equal(t, "V", got.Unit)
	assert.Empty(t, got.Error)
	assert.Equal(t, uint64(7), got.Stats.Accepted)
}

func TestShowReading_Error(t *testing.T) {
	s, _ := newTestServer(t)
	s.Render(acquire.Frame{Sequence: 1, Err: errors.New("boom")})

	var got ReadingResponse
	rec := serve(t, s, http.MethodGet, "/api/reading")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Nil(t, got.Value)
	assert.Equal(t, "boom", got.Error)
}

func TestShowReading_MethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)
	rec := serve(t, s, http.MethodPost, "/api/reading")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestShowHistogram(t *testing.T) {
	s, _ := newTestServer(t)

	var empty HistogramResponse
	rec := serve(t, s, http.MethodGet, "/api/histogram")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &empty))
	assert.Equal(t, []uint64{0, 0, 0, 0}, empty.Counts)
	assert.Zero(t, empty.Total)

	s.Render(frameWith(1, 3))
	var got HistogramResponse
	rec = serve(t, s, http.MethodGet, "/api/histogram")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []float64{0, 2.5, 5, 7.5, 10}, got.Edges)
	assert.Equal(t, []uint64{0, 2, 0, 1}, got.Counts)
	assert.Equal(t, []float32{0, 1, 0, 0.5}, got.Normalized)
	assert.Equal(t, uint64(3), got.Total)
}

func TestResetHistogram(t *testing.T) {
	s, ctl := newTestServer(t)

	rec := serve(t, s, http.MethodGet, "/api/histogram/reset")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Zero(t, ctl.resets.Load())

	rec = serve(t, s, http.MethodPost, "/api/histogram/reset")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, int32(1), ctl.resets.Load())
}

func TestShowSeries(t *testing.T) {
	s, _ := newTestServer(t)
	for i := 1; i <= 5; i++ {
		s.Render(frameWith(float64(i), float32(i)))
	}
	s.Render(acquire.Frame{Sequence: 6}) // timeout frames add nothing

	var got SeriesResponse
	rec := serve(t, s, http.MethodGet, "/api/series?n=2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []measure.Point{{Sequence: 4, Value: 4}, {Sequence: 5, Value: 5}}, got.Points)
	assert.Equal(t, 5, got.Summary.Count)
	assert.InDelta(t, 3.0, got.Summary.Mean, 1e-9)

	rec = serve(t, s, http.MethodGet, "/api/series")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.Points, 5)
}

func TestShowSeries_InvalidN(t *testing.T) {
	s, _ := newTestServer(t)
	for _, q := range []string{"abc", "0", "-3"} {
		rec := serve(t, s, http.MethodGet, "/api/series?n="+q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestCharts(t *testing.T) {
	s, _ := newTestServer(t)
	s.Render(frameWith(1, 3))

	for _, path := range []string{"/charts/histogram", "/charts/series?n=10", "/charts/"} {
		rec := serve(t, s, http.MethodGet, path)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), "echarts", path)
	}

	rec := serve(t, s, http.MethodGet, "/charts/series?n=x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendQueryDebugRoute(t *testing.T) {
	s, ctl := newTestServer(t)
	mux := s.ServeMux()
	s.AttachDebugRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/debug/send-query", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Query queued")
	assert.Equal(t, int32(1), ctl.queries.Load())
}

func TestServeMux_NoDebugRoutes(t *testing.T) {
	s, ctl := newTestServer(t)

	rec := serve(t, s, http.MethodGet, "/debug/send-query")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, int32(0), ctl.queries.Load())
}

func TestAttachDebugRoutes_SharedMux(t *testing.T) {
	s, _ := newTestServer(t)
	mux := s.ServeMux()

	assert.NotPanics(t, func() {
		s.AttachDebugRoutes(mux)
		tsweb.Debugger(mux)
	})
}

func TestHistogramChart_NoEdges(t *testing.T) {
	s := NewServer(&fakeController{}, nil, 0)
	s.Render(frameWith(1, 3))

	rec := serve(t, s, http.MethodGet, "/charts/histogram")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "echarts")
}

func TestBinLabel(t *testing.T) {
	edges := []float64{0, 2.5, 5}
	assert.Equal(t, "1.25", binLabel(edges, 0))
	assert.Equal(t, "3.75", binLabel(edges, 1))
	assert.Equal(t, "2", binLabel(edges, 2))
	assert.Equal(t, "0", binLabel(nil, 0))
}

func TestNewServer_NoEdges(t *testing.T) {
	s := NewServer(&fakeController{}, nil, 0)
	h := s.histogram()
	assert.Empty(t, h.Counts)
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reading?x=1", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	out := buf.String()
	assert.Contains(t, out, colorBoldRed+"418"+colorReset)
	assert.True(t, strings.Contains(out, "/api/reading?x=1"))
}

func TestStatusCodeColor(t *testing.T) {
	assert.Equal(t, colorBoldGreen+"200"+colorReset, statusCodeColor(200))
	assert.Equal(t, colorYellow+"302"+colorReset, statusCodeColor(302))
	assert.Equal(t, colorBoldRed+"500"+colorReset, statusCodeColor(500))
	assert.Equal(t, "100", statusCodeColor(100))
}
