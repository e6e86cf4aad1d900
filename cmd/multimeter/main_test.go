package main

import (
	"errors"
	"flag"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/multimeter/internal/acquire"
	"github.com/banshee-data/multimeter/internal/api"
	"github.com/banshee-data/multimeter/internal/db"
	"github.com/banshee-data/multimeter/internal/transport"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "multimeter.json")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestResolveDefaults(t *testing.T) {
	f := newFlags("test", flag.ContinueOnError)
	if err := f.parse(nil); err != nil {
		t.Fatalf("parse: %v", err)
	}

	cfg, err := f.resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if cfg.GetPort() != "" {
		t.Errorf("GetPort() = %q, want empty", cfg.GetPort())
	}
	if cfg.GetLogDir() != "." {
		t.Errorf("GetLogDir() = %q, want \".\"", cfg.GetLogDir())
	}
	if cfg.GetChannel() != 1 || cfg.GetUnit() != "V" || cfg.GetQuery() {
		t.Errorf("unexpected defaults: channel=%d unit=%q query=%v", cfg.GetChannel(), cfg.GetUnit(), cfg.GetQuery())
	}
	if f.listen != ":8080" {
		t.Errorf("listen default = %q", f.listen)
	}
}

func TestResolveFlagsOverrideConfig(t *testing.T) {
	path := writeConfig(t, `{"port": "/dev/ttyUSB0", "channel": 2, "unit": "mV", "log_dir": "logs", "query": true}`)

	f := newFlags("test", flag.ContinueOnError)
	args := []string{"-config", path, "-channel", "3", "-read-timeout", "25ms", "-frame-rate", "0"}
	if err := f.parse(args); err != nil {
		t.Fatalf("parse: %v", err)
	}

	cfg, err := f.resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	got := map[string]interface{}{
		"port":    cfg.GetPort(),
		"channel": cfg.GetChannel(),
		"unit":    cfg.GetUnit(),
		"logDir":  cfg.GetLogDir(),
		"query":   cfg.GetQuery(),
		"timeout": cfg.GetReadTimeout(),
		"rate":    cfg.GetFrameRate(),
	}
	want := map[string]interface{}{
		"port":    "/dev/ttyUSB0",
		"channel": 3,
		"unit":    "mV",
		"logDir":  "logs",
		"query":   true,
		"timeout": 25 * time.Millisecond,
		"rate":    0.0,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("resolved config mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad baud", []string{"-baud", "12345"}},
		{"bad unit", []string{"-unit", "furlongs"}},
		{"negative frame rate", []string{"-frame-rate", "-1"}},
		{"empty query command", []string{"-query-command", " "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFlags("test", flag.ContinueOnError)
			if err := f.parse(tt.args); err != nil {
				t.Fatalf("parse: %v", err)
			}
			if _, err := f.resolve(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestResolveMissingConfigFile(t *testing.T) {
	f := newFlags("test", flag.ContinueOnError)
	if err := f.parse([]string{"-config", filepath.Join(t.TempDir(), "missing.json")}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := f.resolve(); err == nil {
		t.Error("expected an error for a missing config file")
	}
}

func TestOpenPort(t *testing.T) {
	f := newFlags("test", flag.ContinueOnError)
	if err := f.parse([]string{"-port", "/dev/ttyS9", "-baud", "19200"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg, err := f.resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	mock := transport.NewTestablePort()
	factory := transport.NewMockFactory(mock)

	port, err := openPort(cfg, false, factory)
	if err != nil {
		t.Fatalf("openPort: %v", err)
	}
	if port != mock {
		t.Error("expected the factory's port")
	}

	call := factory.LastCall()
	if call == nil {
		t.Fatal("expected an Open call")
	}
	if call.Path != "/dev/ttyS9" {
		t.Errorf("opened %q", call.Path)
	}
	if call.Opts.String() != "19200 8N1" {
		t.Errorf("opened with %s", call.Opts)
	}
	if mock.ReadTimeout != transport.DefaultReadTimeout {
		t.Errorf("read timeout = %v, want %v", mock.ReadTimeout, transport.DefaultReadTimeout)
	}
}

func TestOpenPortErrors(t *testing.T) {
	f := newFlags("test", flag.ContinueOnError)
	if err := f.parse(nil); err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg, err := f.resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	factory := transport.NewMockFactory(nil)
	if _, err := openPort(cfg, false, factory); err == nil {
		t.Error("expected an error without a port")
	}
	if len(factory.OpenCalls) != 0 {
		t.Error("factory should not be called without a port")
	}

	port := "/dev/ttyS9"
	cfg.Port = &port
	factory.Error = errors.New("no such device")
	if _, err := openPort(cfg, false, factory); err == nil || err.Error() != "no such device" {
		t.Errorf("expected the factory error, got %v", err)
	}
}

func TestOpenPortDevMode(t *testing.T) {
	f := newFlags("test", flag.ContinueOnError)
	if err := f.parse([]string{"-dev"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg, err := f.resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	factory := transport.NewMockFactory(nil)
	port, err := openPort(cfg, f.devMode, factory)
	if err != nil {
		t.Fatalf("openPort: %v", err)
	}
	defer port.Close()

	if _, ok := port.(*transport.SimulatedPort); !ok {
		t.Errorf("expected a simulated port, got %T", port)
	}
	if len(factory.OpenCalls) != 0 {
		t.Error("dev mode should not open a serial port")
	}
}

func TestNewMux(t *testing.T) {
	store, err := db.NewDB(filepath.Join(t.TempDir(), "readings.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	defer store.Close()

	port := transport.NewTestablePort()
	ctl := &loopController{}
	dashboard := api.NewServer(ctl, []float64{0, 5, 10}, 0)
	loop, err := acquire.NewLoop(port, acquire.WithRenderers(dashboard))
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}
	ctl.loop = loop

	mux := newMux(dashboard, store)

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "127.0.0.1:12345"
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	if rec := get("/api/reading"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/api/reading before the first frame = %d", rec.Code)
	}
	if rec := get("/debug/send-query"); rec.Code != http.StatusOK {
		t.Fatalf("/debug/send-query = %d", rec.Code)
	}

	loop.Step()
	if got := string(port.GetWrittenData()); got != "READ?\n" {
		t.Errorf("written = %q, want the query command", got)
	}
	if rec := get("/api/reading"); rec.Code != http.StatusOK {
		t.Errorf("/api/reading after a frame = %d", rec.Code)
	}
}

func TestNewMuxWithoutStore(t *testing.T) {
	dashboard := api.NewServer(&loopController{}, []float64{0, 10}, 0)
	mux := newMux(dashboard, nil)

	req := httptest.NewRequest(http.MethodGet, "/debug/tailsql/", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("/debug/tailsql/ without a store = %d, want 404", rec.Code)
	}
}
