package measure

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Histogram bins readings into a fixed number of equal-width bins spanning
// [min, max]. Values outside the range, and NaN, are dropped silently.
type Histogram struct {
	counts []uint64
	min    float32
	max    float32
	total  uint64
}

// NewHistogram returns an empty histogram over [min, max] with bins bins.
func NewHistogram(min, max float32, bins int) (*Histogram, error) {
	if bins <= 0 {
		return nil, fmt.Errorf("histogram bin count must be positive, got %d", bins)
	}
	if !(max > min) {
		return nil, fmt.Errorf("histogram max (%g) must be greater than min (%g)", max, min)
	}
	return &Histogram{
		counts: make([]uint64, bins),
		min:    min,
		max:    max,
	}, nil
}

// AddValue counts v in its bin. A value equal to max lands in the last bin.
func (h *Histogram) AddValue(v float32) {
	if math.IsNaN(float64(v)) || v < h.min || v > h.max {
		return
	}
	h.counts[h.binIndex(v)]++
	h.total++
}

func (h *Histogram) binIndex(v float32) int {
	bins := len(h.counts)
	idx := int(math.Floor(float64((v - h.min) / (h.max - h.min) * float32(bins))))
	if idx >= bins {
		idx = bins - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

// NormalizedBins scales each bin by the largest bin count, giving values in
// [0, 1]. An empty histogram yields all zeros.
func (h *Histogram) NormalizedBins() []float32 {
	scaled := make([]float64, len(h.counts))
	for i, c := range h.counts {
		scaled[i] = float64(c)
	}

	divisor := floats.Max(scaled)
	if divisor == 0 {
		divisor = 1
	}
	floats.Scale(1/divisor, scaled)

	out := make([]float32, len(scaled))
	for i, v := range scaled {
		out[i] = float32(v)
	}
	return out
}

// Reset clears every bin.
func (h *Histogram) Reset() {
	for i := range h.counts {
		h.counts[i] = 0
	}
	h.total = 0
}

// Counts returns a copy of the raw bin counts.
func (h *Histogram) Counts() []uint64 {
	return append([]uint64(nil), h.counts...)
}

// Total is the number of values counted since creation or the last Reset.
func (h *Histogram) Total() uint64 { return h.total }

// Bounds returns the histogram's range and bin count.
func (h *Histogram) Bounds() (min, max float32, bins int) {
	return h.min, h.max, len(h.counts)
}

// BinEdges returns the bins+1 boundaries of the bins, from min to max.
func (h *Histogram) BinEdges() []float64 {
	edges := make([]float64, len(h.counts)+1)
	return floats.Span(edges, float64(h.min), float64(h.max))
}
