package measure

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Point is one (sequence, value) pair of the time series.
type Point struct {
	Sequence float64 `json:"sequence"`
	Value    float32 `json:"value"`
}

// Series is an append-only sequence of points. With a positive capacity it
// keeps only the newest capacity points, overwriting the oldest; with zero
// capacity it grows without bound.
type Series struct {
	points   []Point
	capacity int
	head     int // index of the oldest point once the ring is full
	dropped  uint64
}

// NewSeries returns an empty series. capacity <= 0 means unbounded.
func NewSeries(capacity int) *Series {
	if capacity < 0 {
		capacity = 0
	}
	s := &Series{capacity: capacity}
	if capacity > 0 {
		s.points = make([]Point, 0, capacity)
	}
	return s
}

// Append adds a point, evicting the oldest one when the ring is full.
func (s *Series) Append(sequence float64, value float32) {
	p := Point{Sequence: sequence, Value: value}
	if s.capacity == 0 || len(s.points) < s.capacity {
		s.points = append(s.points, p)
		return
	}
	s.points[s.head] = p
	s.head = (s.head + 1) % s.capacity
	s.dropped++
}

// Len is the number of points currently held.
func (s *Series) Len() int { return len(s.points) }

// Capacity is the ring size, or 0 for an unbounded series.
func (s *Series) Capacity() int { return s.capacity }

// Dropped counts points evicted by the ring.
func (s *Series) Dropped() uint64 { return s.dropped }

// Points returns a copy of all held points, oldest first.
func (s *Series) Points() []Point {
	out := make([]Point, 0, len(s.points))
	out = append(out, s.points[s.head:]...)
	out = append(out, s.points[:s.head]...)
	return out
}

// Tail returns a copy of the newest n points, oldest first.
func (s *Series) Tail(n int) []Point {
	all := s.Points()
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}

// Summary describes the values currently held by a Series.
type Summary struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// Summarize computes summary statistics over the held points.
func (s *Series) Summarize() Summary {
	if len(s.points) == 0 {
		return Summary{}
	}

	values := make([]float64, len(s.points))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, p := range s.points {
		v := float64(p.Value)
		values[i] = v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	mean, std := stat.MeanStdDev(values, nil)
	if len(values) < 2 {
		std = 0
	}
	return Summary{Count: len(values), Min: lo, Max: hi, Mean: mean, StdDev: std}
}
