// SPDX-License-Identifier: MIT
package average

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdate(t *testing.T) {
	tests := []struct {
		name string
		avg  float32
		v    int32
		idx  int
		want float32
	}{
		{"first observation overwrites", 123.5, 10, 0, 10},
		{"first observation overwrites NaN", float32(math.NaN()), 7, 0, 7},
		{"second observation", 10, 20, 1, 15},
		{"third observation", 15, 30, 2, 20},
		{"negative value", 4, -4, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Update(tt.avg, tt.v, tt.idx))
		})
	}
}

func TestUpdatePanicsOnNegativeIndex(t *testing.T) {
	assert.Panics(t, func() { Update(1, 1, -1) })
}

func TestUpdateConvergesOnConstantInput(t *testing.T) {
	var avg float32
	for i := 0; i < 1000; i++ {
		avg = Update(avg, 42, i)
	}
	assert.Equal(t, float32(42), avg)
}

func TestNewStateValidatesRange(t *testing.T) {
	_, err := NewState(-1, 3)
	assert.Error(t, err)
	_, err = NewState(5, 4)
	assert.Error(t, err)

	s, err := NewState(3, 7)
	require.NoError(t, err)
	assert.Equal(t, 5, s.Tracked())
}

func TestObserveTracksOnlySelectedBins(t *testing.T) {
	s, err := NewState(3, 7)
	require.NoError(t, err)

	s.Observe([]int32{100, 100, 100, 10, 20, 30, 40, 50})
	s.Observe([]int32{100, 100, 100, 30, 40, 50, 60, 70})

	assert.Equal(t, []float32{20, 30, 40, 50, 60}, s.Averages(nil))
	assert.Equal(t, []uint64{2, 2, 2, 2, 2}, s.Counts(nil))

	_, ok := s.Average(0)
	assert.False(t, ok, "bin 0 is not tracked")
	v, ok := s.Average(4)
	assert.True(t, ok)
	assert.Equal(t, float32(30), v)
}

func TestObserveAccumulatesAcrossPasses(t *testing.T) {
	s, err := NewState(0, 1)
	require.NoError(t, err)

	// Two passes of 31 windows each: the count carries over instead of
	// restarting at the second pass.
	for pass := 0; pass < 2; pass++ {
		for k := 0; k < 31; k++ {
			s.Observe([]int32{int32(pass * 62), 8})
		}
	}
	assert.Equal(t, []uint64{62, 62}, s.Counts(nil))
	avgs := s.Averages(nil)
	assert.InDelta(t, 31, avgs[0], 1e-3)
	assert.Equal(t, float32(8), avgs[1])
}

func TestObservePanicsOnShortSpectrum(t *testing.T) {
	s, err := NewState(3, 7)
	require.NoError(t, err)
	assert.Panics(t, func() { s.Observe(make([]int32, 7)) })
}

func TestAveragesReusesDst(t *testing.T) {
	s, _ := NewState(1, 2)
	s.Observe([]int32{0, 5, 6})

	dst := make([]float32, 4)
	got := s.Averages(dst)
	assert.Len(t, got, 2)
	assert.Equal(t, &dst[0], &got[0])
}

func TestRestore(t *testing.T) {
	s, _ := NewState(3, 4)
	require.Error(t, s.Restore([]float32{1}))
	require.NoError(t, s.Restore([]float32{10, 20}))

	s.Observe([]int32{0, 0, 0, 20, 40})
	assert.Equal(t, []float32{15, 30}, s.Averages(nil))
	assert.Equal(t, []uint64{2, 2}, s.Counts(nil))
}

func TestCountsNeverWrap(t *testing.T) {
	tests := []struct {
		name  string
		start uint64
		want  uint64
	}{
		{"past 32 bits", math.MaxUint32 - 1, math.MaxUint32 + 2},
		{"saturates", math.MaxUint64 - 1, math.MaxUint64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewState(0, 0)
			require.NoError(t, err)
			s.avgs[0] = 100
			s.counts[0] = tt.start

			s.Observe([]int32{100})
			s.Observe([]int32{100})
			s.Observe([]int32{7})

			assert.Equal(t, tt.want, s.Counts(nil)[0])
			assert.InDelta(t, 100, s.Averages(nil)[0], 1e-3, "long-run mean survives")
		})
	}
}
