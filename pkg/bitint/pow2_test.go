// SPDX-License-Identifier: MIT
package bitint

import (
	"fmt"
	"testing"
)

func TestIsPowerOfTwo(t *testing.T) {
	tests := []struct {
		n        int
		expected bool
	}{
		{-16, false},    // Negative number
		{0, false},      // Zero
		{1, true},       // One
		{16, true},      // Default window size
		{12, false},     // Not power of two
		{4096, true},    // Flash sector
		{1 << 20, true}, // Large power of two
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d→%t", tt.n, tt.expected), func(t *testing.T) {
			result := IsPowerOfTwo(tt.n)
			if result != tt.expected {
				t.Errorf("IsPowerOfTwo(%d) = %v, expected %v", tt.n, result, tt.expected)
			}
		})
	}
}

func TestLog2(t *testing.T) {
	tests := []struct {
		n        int
		expected int
	}{
		{0, -1},
		{-4, -1},
		{1, 0},
		{16, 4},
		{17, 4},
		{4096, 12},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d→%d", tt.n, tt.expected), func(t *testing.T) {
			if got := Log2(tt.n); got != tt.expected {
				t.Errorf("Log2(%d) = %d, expected %d", tt.n, got, tt.expected)
			}
		})
	}
}

func TestAlignUp(t *testing.T) {
	tests := []struct {
		n, align int
		expected int
	}{
		{0, 4096, 0},
		{-3, 4096, 0},
		{1, 4096, 4096},
		{4096, 4096, 4096},
		{260000, 4096, 262144},
		{32, 16, 32},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d→%d", tt.n, tt.align, tt.expected), func(t *testing.T) {
			if got := AlignUp(tt.n, tt.align); got != tt.expected {
				t.Errorf("AlignUp(%d, %d) = %d, expected %d", tt.n, tt.align, got, tt.expected)
			}
		})
	}
}

func TestAlignUpPanicsOnBadAlignment(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("AlignUp with alignment 3 should panic")
		}
	}()
	AlignUp(10, 3)
}

func BenchmarkIsPowerOfTwo(b *testing.B) {
	var i int
	b.ReportAllocs()
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		IsPowerOfTwo(i % 10000)
		i++
	}
}
