// SPDX-License-Identifier: MIT
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"spectrallog/internal/dispatch"
	"spectrallog/internal/log"
	"spectrallog/internal/retcode"
	"spectrallog/pkg/bitint"
)

// FileStore emulates a flash region with a regular file. The file is created
// (or grown) to the region size with every byte erased, and each write is a
// sector-wise read-modify-write followed by an fsync.
type FileStore struct {
	staging

	loop        *dispatch.Loop
	file        *os.File
	sectorSize  int
	sectorShift int
	sector      []byte // scratch sector, owned by the I/O goroutine while busy
	inflight    sync.WaitGroup
}

// OpenFileStore opens or creates the region file at path. size and sectorSize
// of zero select the defaults; sectorSize must be a power of two and size is
// rounded up to whole sectors.
func OpenFileStore(loop *dispatch.Loop, path string, size, sectorSize int) (*FileStore, error) {
	if size == 0 {
		size = DefaultSize
	}
	if sectorSize == 0 {
		sectorSize = DefaultSectorSize
	}
	if size < 0 || !bitint.IsPowerOfTwo(sectorSize) {
		return nil, fmt.Errorf("invalid region geometry: size %d, sector %d", size, sectorSize)
	}
	if aligned := bitint.AlignUp(size, sectorSize); aligned != size {
		log.Debugf("Storage: region of %d bytes rounded up to %d", size, aligned)
		size = aligned
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage file: %w", err)
	}

	st := &FileStore{
		staging:    staging{size: size},
		loop:       loop,
		file:       f,
		sectorSize:  sectorSize,
		sectorShift: bitint.Log2(sectorSize),
		sector:      make([]byte, sectorSize),
	}
	if err := st.format(); err != nil {
		f.Close()
		return nil, err
	}

	log.Debugf("Storage: opened %s (%d bytes, %d byte sectors)", path, size, sectorSize)
	return st, nil
}

// format extends the file to the region size with erased bytes. Existing
// content is preserved.
func (s *FileStore) format() error {
	info, err := s.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat storage file: %w", err)
	}
	have := int(info.Size())
	if have >= s.size {
		return nil
	}

	erased := bytes.Repeat([]byte{Erased}, s.size-have)
	if _, err := s.file.WriteAt(erased, int64(have)); err != nil {
		return fmt.Errorf("failed to format storage file: %w", err)
	}
	return s.file.Sync()
}

// Write programs length bytes of the staged write buffer at offset.
func (s *FileStore) Write(offset, length int) (*dispatch.Completion[int], error) {
	buf, err := s.begin(dispatch.KindWrite, offset, length)
	if err != nil {
		return nil, err
	}
	data := make([]byte, length)
	copy(data, buf[:length])

	c := dispatch.NewCompletion[int](dispatch.KindWrite)
	s.inflight.Add(1)
	go func() {
		n, err := s.program(offset, data)
		s.inflight.Done()
		s.complete(s.loop, c, n, err)
	}()
	return c, nil
}

// Read fills the first length bytes of the staged read buffer from offset.
func (s *FileStore) Read(offset, length int) (*dispatch.Completion[int], error) {
	buf, err := s.begin(dispatch.KindRead, offset, length)
	if err != nil {
		return nil, err
	}

	c := dispatch.NewCompletion[int](dispatch.KindRead)
	s.inflight.Add(1)
	go func() {
		n, err := s.file.ReadAt(buf[:length], int64(offset))
		s.inflight.Done()
		if errors.Is(err, io.EOF) && n == length {
			err = nil
		}
		if err != nil {
			err = fmt.Errorf("read failed: %w: %w", retcode.ErrFail, err)
		}
		s.complete(s.loop, c, n, err)
	}()
	return c, nil
}

// program rewrites every sector touched by [offset, offset+len(data)).
func (s *FileStore) program(offset int, data []byte) (int, error) {
	written := 0
	for written < len(data) {
		pos := offset + written
		base := pos >> s.sectorShift << s.sectorShift

		if _, err := s.file.ReadAt(s.sector, int64(base)); err != nil && !errors.Is(err, io.EOF) {
			return written, fmt.Errorf("sector 0x%x read failed: %w: %w", base, retcode.ErrFail, err)
		}
		n := copy(s.sector[pos-base:], data[written:])
		if _, err := s.file.WriteAt(s.sector, int64(base)); err != nil {
			return written, fmt.Errorf("sector 0x%x write failed: %w: %w", base, retcode.ErrFail, err)
		}
		written += n
	}
	if err := s.file.Sync(); err != nil {
		return written, fmt.Errorf("sync failed: %w: %w", retcode.ErrFail, err)
	}
	return written, nil
}

// Close waits for any operation still touching the file, then closes it. The
// completion of that operation is still posted to the loop.
func (s *FileStore) Close() error {
	if s.Busy() {
		log.Debugf("Storage: waiting for in-flight operation before close")
	}
	s.inflight.Wait()
	return s.file.Close()
}
