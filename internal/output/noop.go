package output

import (
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// DummyChannel absorbs pixel data with no backing hardware, logging every
// 13th update. It is adapted from the reference client's dummy output
// plugin, used for testing and for nodes with no channels configured.
type DummyChannel struct {
	index  uint32
	length uint32
	format Format

	updates atomic.Uint64
	log     *log.Logger
}

// NewDummyChannel constructs a DummyChannel at the given index.
func NewDummyChannel(index, length uint32, format Format, logger *log.Logger) *DummyChannel {
	return &DummyChannel{index: index, length: length, format: format, log: logger}
}

func (d *DummyChannel) Index() uint32       { return d.index }
func (d *DummyChannel) Length() uint32      { return d.length }
func (d *DummyChannel) PixelFormat() Format { return d.format }

// UpdatePixels always succeeds; it logs roughly one update in thirteen to
// avoid flooding logs on a busy channel.
func (d *DummyChannel) UpdatePixels(offset uint32, pixels []byte) error {
	n := d.updates.Add(1)
	if d.log != nil && n%13 == 1 {
		d.log.Debugf("dummy channel %d: received %d bytes at offset %d", d.index, len(pixels), offset)
	}
	return nil
}
