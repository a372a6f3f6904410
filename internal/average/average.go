// SPDX-License-Identifier: MIT

// Package average keeps incremental per-bin running means of spectrum
// magnitudes.
package average

import (
	"fmt"
	"math"
)

// Update folds observation v into the running mean avg. idx is the number of
// observations already folded into avg for this bin: 0 means avg carries no
// information and v is returned as is. A negative idx is a caller bug and
// panics.
func Update(avg float32, v int32, idx int) float32 {
	if idx < 0 {
		panic(fmt.Sprintf("average: negative observation index %d", idx))
	}
	if idx == 0 {
		return float32(v)
	}
	return avg + (float32(v)-avg)/(float32(idx)+1)
}

// State tracks a running average and an observation count for every bin in
// the inclusive range [First, Last]. Counts only grow; they saturate at
// math.MaxUint64 instead of wrapping. It is owned by a single goroutine.
type State struct {
	First, Last int

	avgs   []float32
	counts []uint64
}

// NewState returns a state tracking bins first through last inclusive.
func NewState(first, last int) (*State, error) {
	if first < 0 || last < first {
		return nil, fmt.Errorf("invalid tracked bin range [%d, %d]", first, last)
	}
	n := last - first + 1
	return &State{
		First:  first,
		Last:   last,
		avgs:   make([]float32, n),
		counts: make([]uint64, n),
	}, nil
}

// Tracked returns the number of tracked bins.
func (s *State) Tracked() int { return len(s.avgs) }

// Observe folds one spectrum into the tracked bins, using each bin's own
// count as its observation index. bins must reach at least index Last; bins
// outside the tracked range are ignored.
func (s *State) Observe(bins []int32) {
	if len(bins) <= s.Last {
		panic(fmt.Sprintf("average: spectrum has %d bins, tracking up to bin %d", len(bins), s.Last))
	}
	for i := range s.avgs {
		s.avgs[i] = Update(s.avgs[i], bins[s.First+i], index(s.counts[i]))
		if s.counts[i] < math.MaxUint64 {
			s.counts[i]++
		}
	}
}

// index converts a count to an observation index, clamped to MaxInt.
func index(count uint64) int {
	if count > math.MaxInt {
		return math.MaxInt
	}
	return int(count)
}

// Average returns the running mean of bin k and whether k is tracked.
func (s *State) Average(k int) (float32, bool) {
	if k < s.First || k > s.Last {
		return 0, false
	}
	return s.avgs[k-s.First], true
}

// Averages copies the tracked averages into dst in ascending bin order and
// returns dst. A nil or short dst is replaced by a new slice.
func (s *State) Averages(dst []float32) []float32 {
	if len(dst) < len(s.avgs) {
		dst = make([]float32, len(s.avgs))
	}
	copy(dst, s.avgs)
	return dst[:len(s.avgs)]
}

// Counts copies the tracked observation counts into dst in ascending bin
// order and returns dst.
func (s *State) Counts(dst []uint64) []uint64 {
	if len(dst) < len(s.counts) {
		dst = make([]uint64, len(s.counts))
	}
	copy(dst, s.counts)
	return dst[:len(s.counts)]
}

// Restore seeds the averages from a previously persisted record. Each bin's
// count becomes 1 so the next observation is weighted against the restored
// value rather than replacing it.
func (s *State) Restore(avgs []float32) error {
	if len(avgs) != len(s.avgs) {
		return fmt.Errorf("restore: got %d averages, tracking %d bins", len(avgs), len(s.avgs))
	}
	copy(s.avgs, avgs)
	for i := range s.counts {
		s.counts[i] = 1
	}
	return nil
}
