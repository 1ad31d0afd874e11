package output

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingChannel struct {
	mu      sync.Mutex
	index   uint32
	length  uint32
	format  Format
	offsets []uint32
	writes  [][]byte
}

func (c *recordingChannel) Index() uint32       { return c.index }
func (c *recordingChannel) Length() uint32      { return c.length }
func (c *recordingChannel) PixelFormat() Format { return c.format }

func (c *recordingChannel) UpdatePixels(offset uint32, pixels []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offsets = append(c.offsets, offset)
	c.writes = append(c.writes, pixels)
	return nil
}

func (c *recordingChannel) snapshot() []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]uint32, len(c.offsets))
	copy(out, c.offsets)
	return out
}

func (c *recordingChannel) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

func (c *recordingChannel) lastWrite() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes[len(c.writes)-1]
}

func TestAsyncChannelPassthroughIdentity(t *testing.T) {
	inner := &recordingChannel{index: 2, length: 40, format: FormatRGBW}
	a := NewAsyncChannel(inner, log.New(io.Discard))
	defer a.Close()

	assert.Equal(t, uint32(2), a.Index())
	assert.Equal(t, uint32(40), a.Length())
	assert.Equal(t, FormatRGBW, a.PixelFormat())
}

func TestAsyncChannelAppliesWritesInOrder(t *testing.T) {
	inner := &recordingChannel{index: 0, length: 100, format: FormatRGB}
	a := NewAsyncChannel(inner, log.New(io.Discard))
	defer a.Close()

	for i := uint32(0); i < 20; i++ {
		require.NoError(t, a.UpdatePixels(i, []byte{1}))
	}

	require.Eventually(t, func() bool {
		return len(inner.snapshot()) == 20
	}, time.Second, time.Millisecond)

	got := inner.snapshot()
	for i, offset := range got {
		assert.Equal(t, uint32(i), offset)
	}
}

func TestAsyncChannelUpdatePixelsCopiesBuffer(t *testing.T) {
	inner := &recordingChannel{index: 0, length: 10, format: FormatRGB}
	a := NewAsyncChannel(inner, log.New(io.Discard))
	defer a.Close()

	buf := []byte{9, 9, 9}
	require.NoError(t, a.UpdatePixels(0, buf))
	buf[0] = 0 // mutate after enqueue; consumer must not observe this

	require.Eventually(t, func() bool {
		return inner.writeCount() == 1
	}, time.Second, time.Millisecond)

	assert.Equal(t, []byte{9, 9, 9}, inner.lastWrite())
}
