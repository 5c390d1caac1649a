// Package latency provides the fixed-width latency histogram that every
// timing decision is built on.
package latency

import (
	"github.com/lpabon/godbc"
)

// TimeMax is the histogram ceiling in cycles. Samples at or above it are
// counted as outliers in bucket 0.
const TimeMax = 1000

// A Histogram counts latency samples by cycle count.
type Histogram struct {
	data [TimeMax]uint32
}

// NewHistogram returns an empty histogram.
func NewHistogram() *Histogram {
	return &Histogram{}
}

// Clear zeros all buckets.
func (h *Histogram) Clear() {
	h.data = [TimeMax]uint32{}
}

// Add records one sample. A sample must be positive.
func (h *Histogram) Add(sample int) {
	godbc.Require(sample > 0, "latency sample must be positive", sample)

	if sample < TimeMax {
		h.data[sample]++
		return
	}

	h.data[0]++
}

// Get returns the number of samples that took exactly t cycles.
func (h *Histogram) Get(t int) uint32 {
	godbc.Require(t > 0, "bucket must be positive", t)

	if t >= TimeMax {
		return 0
	}

	return h.data[t]
}

// Outliers returns the number of samples at or beyond TimeMax.
func (h *Histogram) Outliers() uint32 {
	return h.data[0]
}

// Total returns the number of samples, outliers included.
func (h *Histogram) Total() int {
	total := 0
	for _, c := range h.data {
		total += int(c)
	}

	return total
}

// Buckets returns a copy of the counts for 1..TimeMax-1. Index i of the
// result holds the count of bucket i+1.
func (h *Histogram) Buckets() []uint32 {
	b := make([]uint32, TimeMax-1)
	copy(b, h.data[1:])

	return b
}

// Median returns the smallest t such that buckets 1..t hold at least half
// of all samples. It returns 0 when no such bucket exists, which happens for
// an empty histogram or when outliers dominate.
func (h *Histogram) Median() int {
	total := h.Total()
	if total == 0 {
		return 0
	}

	cum := 0
	for t := 1; t < TimeMax; t++ {
		cum += int(h.data[t])
		if 2*cum >= total {
			return t
		}
	}

	return 0
}

// Mean returns sum(t*count[t])*scale/total with integer truncation. Outliers
// count toward the total but contribute nothing to the sum, so they pull the
// mean down.
func (h *Histogram) Mean(scale int) int {
	var sum uint64
	count := 0

	for t, c := range h.data {
		count += int(c)
		sum += uint64(t) * uint64(c)
	}

	if count == 0 {
		return 0
	}

	return int(sum * uint64(scale) / uint64(count))
}
