// SPDX-License-Identifier: MIT
package persist

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ValueSize is the encoded width of one average.
const ValueSize = 4

// ErrRecordSize is returned when a record buffer does not match the number of
// averages it is supposed to carry.
var ErrRecordSize = errors.New("persist: record size mismatch")

// RecordSize returns the length in bytes of a record holding tracked averages.
func RecordSize(tracked int) int {
	return tracked * ValueSize
}

// Encode writes avgs into dst as consecutive little-endian IEEE-754 binary32
// values, in the order given. dst must be exactly RecordSize(len(avgs)) long.
func Encode(dst []byte, avgs []float32) error {
	if len(dst) != RecordSize(len(avgs)) {
		return fmt.Errorf("%w: %d bytes for %d averages", ErrRecordSize, len(dst), len(avgs))
	}
	for i, v := range avgs {
		binary.LittleEndian.PutUint32(dst[i*ValueSize:], math.Float32bits(v))
	}
	return nil
}

// Decode is the inverse of Encode. The round trip is bit exact, NaN payloads
// included.
func Decode(src []byte, dst []float32) error {
	if len(src) != RecordSize(len(dst)) {
		return fmt.Errorf("%w: %d bytes for %d averages", ErrRecordSize, len(src), len(dst))
	}
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*ValueSize:]))
	}
	return nil
}
