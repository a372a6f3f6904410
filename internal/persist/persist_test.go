// SPDX-License-Identifier: MIT
package persist

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"spectrallog/internal/dispatch"
	"spectrallog/internal/retcode"
	"spectrallog/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestEncodeLayout(t *testing.T) {
	dst := make([]byte, 8)
	require.NoError(t, Encode(dst, []float32{1, -2}))
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f, 0x00, 0x00, 0x00, 0xc0}, dst)
}

func TestRecordRoundTripBitExact(t *testing.T) {
	values := []float32{
		0,
		float32(math.Copysign(0, -1)),
		1.5,
		-123456.78,
		math.MaxFloat32,
		math.SmallestNonzeroFloat32,
		float32(math.Inf(1)),
		math.Float32frombits(0x7fc00001), // NaN with payload
	}
	buf := make([]byte, RecordSize(len(values)))
	require.NoError(t, Encode(buf, values))

	got := make([]float32, len(values))
	require.NoError(t, Decode(buf, got))
	for i := range values {
		assert.Equal(t, math.Float32bits(values[i]), math.Float32bits(got[i]), "value %d", i)
	}
}

func TestRecordSizeMismatch(t *testing.T) {
	assert.ErrorIs(t, Encode(make([]byte, 7), []float32{1, 2}), ErrRecordSize)
	assert.ErrorIs(t, Decode(make([]byte, 12), make([]float32, 2)), ErrRecordSize)
}

func TestPersistWritesRecord(t *testing.T) {
	loop := dispatch.NewLoop(0)
	st := storage.NewMemStore(loop, 4096, 0)
	c, err := NewCoordinator(loop, st, 16, 2)
	require.NoError(t, err)

	require.NoError(t, c.Persist(testContext(t), []float32{1, -2}))
	assert.Equal(t, uint64(1), c.Writes())
	assert.False(t, c.Pending())
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f, 0x00, 0x00, 0x00, 0xc0}, st.Bytes(16, 8))

	got, err := Load(testContext(t), loop, st, 16, 2)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, -2}, got)
}

func TestPersistBackToBackNeverOverlaps(t *testing.T) {
	loop := dispatch.NewLoop(0)
	st := storage.NewMemStore(loop, 4096, 5*time.Millisecond)
	c, err := NewCoordinator(loop, st, 0, 5)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		v := float32(i)
		require.NoError(t, c.Persist(testContext(t), []float32{v, v, v, v, v}))
	}

	journal := st.Journal()
	require.Len(t, journal, 5)
	for _, op := range journal {
		assert.Equal(t, dispatch.KindWrite, op.Kind)
		assert.NoError(t, op.Err, "no write may be issued while another is in flight")
	}
	assert.Equal(t, uint64(5), c.Writes())
}

func TestPersistWaitsForAbandonedWrite(t *testing.T) {
	loop := dispatch.NewLoop(0)
	st := storage.NewMemStore(loop, 4096, 50*time.Millisecond)
	c, err := NewCoordinator(loop, st, 0, 1)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	err = c.Persist(short, []float32{1})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, c.Pending())

	require.NoError(t, c.Persist(testContext(t), []float32{2}))
	assert.False(t, c.Pending())
	assert.Equal(t, uint64(2), c.Writes())

	journal := st.Journal()
	require.Len(t, journal, 2)
	assert.NoError(t, journal[1].Err)

	got, err := Load(testContext(t), loop, st, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{2}, got)
}

func TestPersistAfterFailedAbandonedWrite(t *testing.T) {
	loop := dispatch.NewLoop(0)
	st := storage.NewMemStore(loop, 4096, 50*time.Millisecond)
	c, err := NewCoordinator(loop, st, 0, 1)
	require.NoError(t, err)

	st.FailCompletion(errors.New("program verify failed"))
	short, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	require.ErrorIs(t, c.Persist(short, []float32{1}), context.DeadlineExceeded)
	require.True(t, c.Pending())

	require.NoError(t, c.Persist(testContext(t), []float32{2}))
	assert.False(t, c.Pending())
	assert.Equal(t, uint64(1), c.Writes())
	assert.Len(t, st.Journal(), 2, "the current record is still written")

	got, err := Load(testContext(t), loop, st, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{2}, got)
}

func TestPersistErrors(t *testing.T) {
	t.Run("busy issue is recoverable", func(t *testing.T) {
		loop := dispatch.NewLoop(0)
		st := storage.NewMemStore(loop, 4096, 0)
		c, _ := NewCoordinator(loop, st, 0, 1)

		st.FailIssue(retcode.ErrBusy)
		err := c.Persist(testContext(t), []float32{1})

		var perr *PersistError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, StageIssue, perr.Stage)
		assert.ErrorIs(t, err, retcode.ErrBusy)

		require.NoError(t, c.Persist(testContext(t), []float32{1}))
	})

	t.Run("out of range offset is fatal", func(t *testing.T) {
		loop := dispatch.NewLoop(0)
		st := storage.NewMemStore(loop, 64, 0)
		c, _ := NewCoordinator(loop, st, 62, 1)

		err := c.Persist(testContext(t), []float32{1})
		var ferr *FatalError
		require.ErrorAs(t, err, &ferr)
		assert.ErrorIs(t, err, retcode.ErrInvalid)
	})

	t.Run("wrong number of averages is fatal", func(t *testing.T) {
		loop := dispatch.NewLoop(0)
		c, _ := NewCoordinator(loop, storage.NewMemStore(loop, 64, 0), 0, 2)

		err := c.Persist(testContext(t), []float32{1})
		var ferr *FatalError
		require.ErrorAs(t, err, &ferr)
		assert.ErrorIs(t, err, ErrRecordSize)
	})

	t.Run("completion failure", func(t *testing.T) {
		loop := dispatch.NewLoop(0)
		st := storage.NewMemStore(loop, 4096, 0)
		c, _ := NewCoordinator(loop, st, 0, 1)

		boom := errors.New("program verify failed")
		st.FailCompletion(boom)
		err := c.Persist(testContext(t), []float32{1})

		var perr *PersistError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, StageComplete, perr.Stage)
		assert.ErrorIs(t, err, boom)
		assert.False(t, c.Pending())
	})

	t.Run("short write", func(t *testing.T) {
		loop := dispatch.NewLoop(0)
		st := storage.NewMemStore(loop, 4096, 0)
		c, _ := NewCoordinator(loop, st, 0, 2)

		st.ShortWrite(3)
		err := c.Persist(testContext(t), []float32{1, 2})

		var perr *PersistError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, StageComplete, perr.Stage)
		assert.Zero(t, c.Writes())
	})
}

func TestNewCoordinatorRejectsEmptyRecord(t *testing.T) {
	loop := dispatch.NewLoop(0)
	_, err := NewCoordinator(loop, storage.NewMemStore(loop, 64, 0), 0, 0)
	assert.Error(t, err)
}

func TestLoadErasedRegion(t *testing.T) {
	loop := dispatch.NewLoop(0)
	st := storage.NewMemStore(loop, 64, 0)

	_, err := Load(testContext(t), loop, st, 0, 5)
	assert.ErrorIs(t, err, ErrErased)

	_, err = Load(testContext(t), loop, st, 62, 1)
	assert.ErrorIs(t, err, retcode.ErrInvalid)
}
