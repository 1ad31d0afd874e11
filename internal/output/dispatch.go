package output

import (
	"github.com/charmbracelet/log"
	"gopkg.in/eapache/channels.v1"
)

// update is one queued write destined for a single channel's back-end.
type update struct {
	offset uint32
	pixels []byte
}

// AsyncChannel wraps a Channel with an unbounded inbound queue, so the
// unicast and multicast receive paths never block on a slow hardware
// back-end (spec.md §5: "if a back-end cannot [tolerate concurrent
// updatePixels calls], it must serialize internally" — here that
// serialization is provided for every back-end uniformly). Writes are
// applied to the wrapped Channel strictly in enqueue order by one
// consumer goroutine.
type AsyncChannel struct {
	inner Channel
	queue *channels.InfiniteChannel
	log   *log.Logger
}

// NewAsyncChannel starts the consumer goroutine and returns the wrapper.
// Close must be called to stop it.
func NewAsyncChannel(inner Channel, logger *log.Logger) *AsyncChannel {
	a := &AsyncChannel{
		inner: inner,
		queue: channels.NewInfiniteChannel(),
		log:   logger,
	}
	go a.run()
	return a
}

func (a *AsyncChannel) run() {
	for v := range a.queue.Out() {
		u := v.(update)
		if err := a.inner.UpdatePixels(u.offset, u.pixels); err != nil && a.log != nil {
			a.log.Warnf("channel %d: update at offset %d failed: %v", a.inner.Index(), u.offset, err)
		}
	}
}

func (a *AsyncChannel) Index() uint32       { return a.inner.Index() }
func (a *AsyncChannel) Length() uint32      { return a.inner.Length() }
func (a *AsyncChannel) PixelFormat() Format { return a.inner.PixelFormat() }

// UpdatePixels enqueues the write and returns immediately.
func (a *AsyncChannel) UpdatePixels(offset uint32, pixels []byte) error {
	cp := make([]byte, len(pixels))
	copy(cp, pixels)
	a.queue.In() <- update{offset: offset, pixels: cp}
	return nil
}

// Close drains and stops the consumer goroutine.
func (a *AsyncChannel) Close() {
	a.queue.Close()
}
