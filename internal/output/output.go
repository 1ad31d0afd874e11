// Package output defines the local output-channel contract (spec.md §3,
// §4.6): a stable index, a fixed pixel count/format, and an UpdatePixels
// entry point that both the unicast and multicast receive paths call into
// concurrently.
package output

import "fmt"

// Format mirrors proto.PixelFormat but keeps this package free of a
// dependency on the wire protocol package.
type Format uint8

const (
	FormatRGB  Format = 0
	FormatRGBW Format = 1
)

// BytesPerPixel returns the storage size of one pixel in this format.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatRGB:
		return 3
	case FormatRGBW:
		return 4
	default:
		return 0
	}
}

// Channel is one addressable output the node exposes to the controller. A
// back-end (hardware driver, dummy sink, test fake) implements this
// interface; callers must assume UpdatePixels may be invoked concurrently
// from both the unicast message loop and the multicast receiver (spec.md
// §5 "Output channels are assumed to tolerate concurrent updatePixels
// calls from both threads").
type Channel interface {
	// Index is this channel's stable position in the node's channel list;
	// it is the value carried as PixSubscribePayload.Channel.
	Index() uint32
	// Length is the channel's pixel count.
	Length() uint32
	// PixelFormat is this channel's fixed format.
	PixelFormat() Format
	// UpdatePixels writes pixel bytes starting at offset (in pixels, not
	// bytes) into the channel's backing store.
	UpdatePixels(offset uint32, pixels []byte) error
}

// ErrOffsetOutOfRange is returned by an UpdatePixels implementation when
// offset+len(pixels) would run past the channel's declared length.
type ErrOffsetOutOfRange struct {
	ChannelIndex uint32
	Offset       uint32
	WriteLen     uint32
	ChannelLen   uint32
}

func (e *ErrOffsetOutOfRange) Error() string {
	return fmt.Sprintf("output: channel %d write [%d:%d) exceeds length %d", e.ChannelIndex, e.Offset, e.Offset+e.WriteLen, e.ChannelLen)
}

// Registry is the ordered, fixed-at-startup list of local output channels
// discovered from plugin.path (spec.md §4.8 "output plugins (discover
// channels)"). Index in the slice equals Channel.Index() by construction.
type Registry struct {
	channels []Channel
}

// NewRegistry builds a Registry from channels in index order; it panics if
// a channel's declared Index() does not match its slice position, since
// that would break the subscribe-by-index contract silently.
func NewRegistry(channels []Channel) *Registry {
	for i, c := range channels {
		if c.Index() != uint32(i) {
			panic(fmt.Sprintf("output: channel at slot %d declares index %d", i, c.Index()))
		}
	}
	return &Registry{channels: channels}
}

// Len returns the number of registered channels.
func (r *Registry) Len() int { return len(r.channels) }

// At returns the channel at index, or (nil, false) if out of range.
func (r *Registry) At(index uint32) (Channel, bool) {
	if index >= uint32(len(r.channels)) {
		return nil, false
	}
	return r.channels[index], true
}

// All returns the channel list in index order. The returned slice must not
// be mutated by the caller.
func (r *Registry) All() []Channel {
	return r.channels
}
