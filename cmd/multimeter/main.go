package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/multimeter/internal/acquire"
	"github.com/banshee-data/multimeter/internal/api"
	"github.com/banshee-data/multimeter/internal/config"
	"github.com/banshee-data/multimeter/internal/csvlog"
	"github.com/banshee-data/multimeter/internal/db"
	"github.com/banshee-data/multimeter/internal/display"
	"github.com/banshee-data/multimeter/internal/measure"
	"github.com/banshee-data/multimeter/internal/plotexport"
	"github.com/banshee-data/multimeter/internal/transport"
	"github.com/banshee-data/multimeter/internal/version"
)

// loopController forwards dashboard requests to the loop, which is built
// after the dashboard it renders to.
type loopController struct {
	loop *acquire.Loop
}

func (c *loopController) RequestReset() { c.loop.RequestReset() }
func (c *loopController) RequestQuery() { c.loop.RequestQuery() }

func main() {
	flags := newFlags(os.Args[0], flag.ExitOnError)
	if err := flags.parse(os.Args[1:]); err != nil {
		log.Fatalf("failed to parse flags: %v", err)
	}

	if flags.version {
		fmt.Println(version.String())
		return
	}
	if flags.listPorts {
		ports, err := transport.ListPorts()
		if err != nil {
			log.Fatalf("failed to list serial ports: %v", err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	cfg, err := flags.resolve()
	if err != nil {
		log.Fatalf("%v", err)
	}

	port, err := openPort(cfg, flags.devMode, transport.NewRealFactory())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open serial port %q: %v\n", cfg.GetPort(), err)
		os.Exit(1)
	}
	defer port.Close()

	start := time.Now()
	channel := cfg.GetChannel()
	unit := cfg.GetUnit()

	min, max := cfg.GetHistogramRange()
	histogram, err := measure.NewHistogram(float32(min), float32(max), cfg.GetHistogramBins())
	if err != nil {
		log.Fatalf("failed to create histogram: %v", err)
	}
	series := measure.NewSeries(cfg.GetSeriesCapacity())

	opts := []acquire.Option{
		acquire.WithConfig(acquire.Config{
			Query:        cfg.GetQuery(),
			QueryCommand: cfg.GetQueryCommand(),
			BufferSize:   cfg.GetBufferSize(),
			FrameRate:    cfg.GetFrameRate(),
			Channel:      channel,
			Unit:         unit,
		}),
		acquire.WithHistogram(histogram),
		acquire.WithSeries(series),
	}

	var logPath string
	if dir := cfg.GetLogDir(); dir != "" {
		appender, err := csvlog.NewAppender(nil, dir, start, channel)
		if err != nil {
			log.Fatalf("failed to prepare reading log: %v", err)
		}
		logPath = appender.Path
		opts = append(opts, acquire.WithAppender(appender))
		log.Printf("logging readings to %s", logPath)
	}

	var store *db.DB
	if path := cfg.GetDBPath(); path != "" {
		store, err = db.NewDB(path)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer store.Close()

		session := &db.Session{StartedAt: start, Channel: channel, Unit: unit, Port: cfg.GetPort(), LogPath: logPath}
		if err := store.StartSession(session); err != nil {
			log.Fatalf("failed to start session: %v", err)
		}
		opts = append(opts, acquire.WithStore(store.Recorder(session.ID)))
		log.Printf("recording session %s to %s", session.ID, path)
	}

	ctl := &loopController{}
	dashboard := api.NewServer(ctl, histogram.BinEdges(), cfg.GetSeriesCapacity())
	console := display.NewConsole(os.Stdout, display.ConsoleOptions{
		Echo:    flags.echo,
		Color:   flags.color,
		NoColor: flags.noColor,
	})
	opts = append(opts, acquire.WithRenderers(console, dashboard))

	loop, err := acquire.NewLoop(port, opts...)
	if err != nil {
		log.Fatalf("failed to create acquisition loop: %v", err)
	}
	ctl.loop = loop

	var mux *http.ServeMux
	if flags.listen != "" {
		mux = newMux(dashboard, store)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer stop()
		if err := loop.Run(ctx); err != nil {
			log.Printf("acquisition loop failed: %v", err)
		}
		log.Print("acquisition loop terminated")
	}()

	if flags.listen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveHTTP(ctx, flags.listen, api.LoggingMiddleware(mux))
		}()
	}

	wg.Wait()

	stats := loop.Stats()
	log.Printf("%d iterations, %d accepted, %d logged, %d timeouts, %d decode errors",
		stats.Iterations, stats.Accepted, stats.Logged, stats.Timeouts, stats.DecodeErrors)

	if flags.plotDir != "" {
		prefix := strings.TrimSuffix(csvlog.FileName(start, channel), ".csv")
		exportPlots(plotexport.New(flags.plotDir, prefix), loop, unit)
	}
	log.Printf("Graceful shutdown complete")
}

// openPort opens the instrument, or a simulated one in dev mode.
func openPort(cfg *config.AcquisitionConfig, devMode bool, factory transport.Factory) (transport.Port, error) {
	opts, err := cfg.PortOptions().Normalize()
	if err != nil {
		return nil, err
	}
	if devMode {
		min, max := cfg.GetHistogramRange()
		return transport.NewSimulatedPort(transport.SimulatedConfig{
			Center:      (min + max) / 2,
			Spread:      (max - min) / 4,
			Scientific:  true,
			Interval:    100 * time.Millisecond,
			ReadTimeout: opts.ReadTimeout,
			Seed:        time.Now().UnixNano(),
		}), nil
	}
	if cfg.GetPort() == "" {
		return nil, errors.New("no serial port given")
	}
	port, err := factory.Open(cfg.GetPort(), opts)
	if err != nil {
		return nil, err
	}
	if err := transport.ApplyReadTimeout(port, opts.ReadTimeout); err != nil {
		port.Close()
		return nil, err
	}
	return port, nil
}

// newMux mounts the dashboard, its debug controls and, with a store, the
// database admin routes on one mux.
func newMux(dashboard *api.Server, store *db.DB) *http.ServeMux {
	mux := dashboard.ServeMux()
	dashboard.AttachDebugRoutes(mux)
	if store != nil {
		if err := store.AttachAdminRoutes(mux); err != nil {
			log.Printf("failed to attach database routes: %v", err)
		}
	}
	return mux
}

func serveHTTP(ctx context.Context, addr string, h http.Handler) {
	server := &http.Server{
		Addr:    addr,
		Handler: h,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()
	log.Printf("dashboard listening on %s", addr)

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	log.Printf("HTTP server routine stopped")
}

func exportPlots(e *plotexport.Exporter, loop *acquire.Loop, unit string) {
	if path, err := e.Series(loop.Series().Points(), unit); err != nil {
		log.Printf("skipping series plot: %v", err)
	} else {
		log.Printf("wrote %s", path)
	}
	if path, err := e.Histogram(loop.Histogram(), unit); err != nil {
		log.Printf("skipping histogram plot: %v", err)
	} else {
		log.Printf("wrote %s", path)
	}
}
