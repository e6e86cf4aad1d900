// Package acquire runs the acquisition loop: one iteration per rendering
// frame, taking a raw transport read through sanitize, normalize and parse
// into the histogram, the series and the optional persistence sinks.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/banshee-data/multimeter/internal/csvlog"
	"github.com/banshee-data/multimeter/internal/measure"
	"github.com/banshee-data/multimeter/internal/monitoring"
	"github.com/banshee-data/multimeter/internal/timeutil"
	"github.com/banshee-data/multimeter/internal/transport"
	"github.com/banshee-data/multimeter/internal/units"
)

// ErrTransport wraps read and write failures other than timeouts.
var ErrTransport = errors.New("transport error")

// Config controls a Loop.
type Config struct {
	// Query sends QueryCommand before every read.
	Query        bool
	QueryCommand string
	// BufferSize is the capacity of each raw read.
	BufferSize int
	// FrameRate is the number of iterations per second Run aims for.
	// Zero or less runs iterations back to back.
	FrameRate float64
	Channel   int
	Unit      string
}

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() Config {
	return Config{
		QueryCommand: "READ?",
		BufferSize:   1000,
		FrameRate:    60,
		Channel:      1,
		Unit:         units.Volt,
	}
}

// Appender persists accepted readings, normally a *csvlog.Appender.
type Appender interface {
	Append(t time.Time, value float32) error
}

// Store records accepted readings, normally a *db.Recorder.
type Store interface {
	Record(m measure.Measurement, at time.Time) error
}

// Loop owns the aggregates and runs the per-frame pipeline. All methods except
// RequestReset and RequestQuery must be called from a single goroutine.
type Loop struct {
	port      transport.Port
	cfg       Config
	clock     timeutil.Clock
	histogram *measure.Histogram
	series    *measure.Series
	appender  Appender
	store     Store
	renderers []Renderer

	sequence float64
	stats    Stats

	resetRequested atomic.Bool
	queryRequested atomic.Bool
}

// Option configures a Loop.
type Option func(*Loop)

// WithConfig replaces the default Config. Zero BufferSize and empty
// QueryCommand fall back to the defaults.
func WithConfig(cfg Config) Option {
	return func(l *Loop) { l.cfg = cfg }
}

// WithClock sets the clock used for timestamps and pacing.
func WithClock(c timeutil.Clock) Option {
	return func(l *Loop) { l.clock = c }
}

// WithHistogram sets the histogram aggregate.
func WithHistogram(h *measure.Histogram) Option {
	return func(l *Loop) { l.histogram = h }
}

// WithSeries sets the series aggregate.
func WithSeries(s *measure.Series) Option {
	return func(l *Loop) { l.series = s }
}

// WithAppender enables CSV logging of accepted readings.
func WithAppender(a Appender) Option {
	return func(l *Loop) { l.appender = a }
}

// WithStore enables storing accepted readings.
func WithStore(s Store) Option {
	return func(l *Loop) { l.store = s }
}

// WithRenderers adds renderers, called in order after every iteration.
func WithRenderers(r ...Renderer) Option {
	return func(l *Loop) { l.renderers = append(l.renderers, r...) }
}

// NewLoop builds a loop reading from port.
func NewLoop(port transport.Port, opts ...Option) (*Loop, error) {
	if port == nil {
		return nil, fmt.Errorf("acquisition loop requires a port")
	}
	l := &Loop{
		port:  port,
		cfg:   DefaultConfig(),
		clock: timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(l)
	}

	def := DefaultConfig()
	if l.cfg.BufferSize <= 0 {
		l.cfg.BufferSize = def.BufferSize
	}
	if l.cfg.QueryCommand == "" {
		l.cfg.QueryCommand = def.QueryCommand
	}
	if l.histogram == nil {
		h, err := measure.NewHistogram(0, 10, 50)
		if err != nil {
			return nil, err
		}
		l.histogram = h
	}
	if l.series == nil {
		l.series = measure.NewSeries(36000)
	}
	return l, nil
}

// Config returns the effective configuration.
func (l *Loop) Config() Config { return l.cfg }

// Histogram returns the histogram aggregate. It must not be used while Run is
// active.
func (l *Loop) Histogram() *measure.Histogram { return l.histogram }

// Series returns the series aggregate. It must not be used while Run is
// active.
func (l *Loop) Series() *measure.Series { return l.series }

// Stats returns the iteration counters.
func (l *Loop) Stats() Stats { return l.stats }

// RequestReset asks the loop to clear the histogram before its next
// iteration. It is safe to call from any goroutine.
func (l *Loop) RequestReset() { l.resetRequested.Store(true) }

// RequestQuery asks the loop to send the query command once before its next
// read, even when query mode is off. It is safe to call from any goroutine.
func (l *Loop) RequestQuery() { l.queryRequested.Store(true) }

// Step runs one iteration and returns the frame handed to the renderers.
func (l *Loop) Step() Frame {
	l.sequence++
	l.stats.Iterations++
	now := l.clock.Now()

	f := Frame{
		Sequence: l.sequence,
		Time:     now,
		Channel:  l.cfg.Channel,
		Unit:     l.cfg.Unit,
	}

	if l.resetRequested.Swap(false) {
		l.histogram.Reset()
	}

	if manual := l.queryRequested.Swap(false); l.cfg.Query || manual {
		l.sendQuery(&f)
	}

	buf := l.read(&f)
	l.decode(&f, measure.Sanitize(buf))

	f.Bins = l.histogram.NormalizedBins()
	f.Counts = l.histogram.Counts()
	f.SeriesLen = l.series.Len()
	f.Stats = l.stats

	for _, r := range l.renderers {
		r.Render(f)
	}
	return f
}

func (l *Loop) sendQuery(f *Frame) {
	err := transport.SendCommand(l.port, l.cfg.QueryCommand)
	if err == nil || transport.IsTimeout(err) {
		return
	}
	l.stats.QueryErrors++
	f.Err = fmt.Errorf("%w: query %q: %w", ErrTransport, l.cfg.QueryCommand, err)
	monitoring.Reportf("query", "%v", f.Err)
}

func (l *Loop) read(f *Frame) []byte {
	buf, n, err := transport.ReadFrame(l.port, l.cfg.BufferSize)
	if n > 0 {
		f.Raw = append([]byte(nil), buf[:n]...)
	}
	switch {
	case err == nil:
	case transport.IsTimeout(err):
		l.stats.Timeouts++
	default:
		l.stats.TransportErrors++
		err = fmt.Errorf("%w: read: %w", ErrTransport, err)
		if f.Err == nil {
			f.Err = err
		}
		monitoring.Reportf("read", "%v", err)
	}
	return buf
}

func (l *Loop) decode(f *Frame, frame []byte) {
	text, value, err := measure.Decode(frame)
	f.Text = text
	if err != nil {
		if errors.Is(err, measure.ErrEmptyReading) {
			return
		}
		l.stats.DecodeErrors++
		if f.Err == nil {
			f.Err = err
		}
		monitoring.Reportf(decodeStage(err), "%v", err)
		return
	}

	m := measure.NewMeasurement(f.Sequence, value)
	f.Measurement = &m
	l.stats.Accepted++
	l.histogram.AddValue(value)
	l.series.Append(m.Sequence, m.Value)

	if !csvlog.ShouldLog(value) {
		return
	}

	if l.appender != nil {
		if err := l.appender.Append(f.Time, value); err != nil {
			l.stats.LogErrors++
			if f.Err == nil {
				f.Err = err
			}
			monitoring.Reportf("log", "%v", err)
		} else {
			l.stats.Logged++
			f.Logged = true
		}
	}

	if l.store != nil {
		if err := l.store.Record(m, f.Time); err != nil {
			l.stats.StoreErrors++
			monitoring.Reportf("store", "%v", err)
		}
	}
}

func decodeStage(err error) string {
	if errors.Is(err, measure.ErrNumberFormat) {
		return "parse"
	}
	return "normalize"
}

// Run calls Step at the configured frame rate until ctx is done or a renderer
// requests close. The close request is checked once per iteration. Run
// returns nil on close; it does not close the port.
func (l *Loop) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if l.cfg.FrameRate > 0 {
		t := l.clock.NewTicker(time.Duration(float64(time.Second) / l.cfg.FrameRate))
		defer t.Stop()
		tick = t.C()
	}

	for {
		if l.closeRequested(ctx) {
			return nil
		}

		l.Step()

		if tick == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
		}
	}
}

func (l *Loop) closeRequested(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	for _, r := range l.renderers {
		if c, ok := r.(CloseRequester); ok && c.CloseRequested() {
			return true
		}
	}
	return false
}
