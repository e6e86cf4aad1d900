package transport

import (
	"io"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"
)

// SimulatedPort stands in for an instrument in dev mode. In free-running
// mode it emits one reading every Interval; any write (a query) queues an
// immediate reading instead. Reads with nothing to deliver wait for the read
// timeout and return no data, like a real port.
type SimulatedPort struct {
	mu sync.Mutex

	rng         *rand.Rand
	center      float64
	spread      float64
	scientific  bool
	interval    time.Duration
	readTimeout time.Duration
	pending     [][]byte
	last        time.Time
	closed      bool
	now         func() time.Time
	sleep       func(time.Duration)
}

// SimulatedConfig configures a SimulatedPort.
type SimulatedConfig struct {
	// Center and Spread shape the generated readings: Center ± Spread.
	Center float64
	Spread float64
	// Scientific emits readings like "1.234E-02" instead of "0.0123".
	Scientific bool
	// Interval between unsolicited readings; 0 disables free-running output.
	Interval time.Duration
	// ReadTimeout is how long an empty Read blocks.
	ReadTimeout time.Duration
	// Seed for the reading generator.
	Seed int64
}

// NewSimulatedPort creates a simulated instrument port.
func NewSimulatedPort(cfg SimulatedConfig) *SimulatedPort {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	return &SimulatedPort{
		rng:         rand.New(rand.NewSource(cfg.Seed)),
		center:      cfg.Center,
		spread:      cfg.Spread,
		scientific:  cfg.Scientific,
		interval:    cfg.Interval,
		readTimeout: cfg.ReadTimeout,
		now:         time.Now,
		sleep:       time.Sleep,
	}
}

// Read delivers the next queued or scheduled reading.
func (s *SimulatedPort) Read(p []byte) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, io.EOF
	}

	if len(s.pending) == 0 && s.interval > 0 {
		now := s.now()
		if s.last.IsZero() || now.Sub(s.last) >= s.interval {
			s.last = now
			s.pending = append(s.pending, s.reading())
		}
	}

	if len(s.pending) == 0 {
		timeout := s.readTimeout
		s.mu.Unlock()
		s.sleep(timeout)
		return 0, nil
	}

	n := copy(p, s.pending[0])
	s.pending = s.pending[1:]
	s.mu.Unlock()
	return n, nil
}

// Write treats any non-empty line as a measurement query.
func (s *SimulatedPort) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, io.ErrClosedPipe
	}
	if strings.TrimSpace(string(p)) != "" {
		s.pending = append(s.pending, s.reading())
	}
	return len(p), nil
}

// Close stops the simulated port.
func (s *SimulatedPort) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// SetReadTimeout implements TimeoutPort.
func (s *SimulatedPort) SetReadTimeout(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readTimeout = timeout
	return nil
}

func (s *SimulatedPort) reading() []byte {
	v := s.center + (s.rng.Float64()*2-1)*s.spread
	var text string
	if s.scientific {
		text = strconv.FormatFloat(v, 'E', 3, 64)
	} else {
		text = strconv.FormatFloat(v, 'f', 4, 64)
	}
	return []byte(text + "\n")
}
