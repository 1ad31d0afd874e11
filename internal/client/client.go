// Package client implements the message mux / client loop (spec.md §4.5,
// §4.6): after connect+auth+subscribeAll+getMulticastInfo, it dispatches
// every inbound frame by (endpoint, messageType) until told to stop, and
// owns the reconnect decision.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tristanseifert/lichtenstein-server-sub001/internal/auth"
	"github.com/tristanseifert/lichtenstein-server-sub001/internal/ident"
	"github.com/tristanseifert/lichtenstein-server-sub001/internal/mcast"
	"github.com/tristanseifert/lichtenstein-server-sub001/internal/metrics"
	"github.com/tristanseifert/lichtenstein-server-sub001/internal/output"
	"github.com/tristanseifert/lichtenstein-server-sub001/internal/proto"
	"github.com/tristanseifert/lichtenstein-server-sub001/internal/session"
	"github.com/tristanseifert/lichtenstein-server-sub001/internal/subscribe"
	"github.com/tristanseifert/lichtenstein-server-sub001/internal/wire"
	"github.com/tristanseifert/lichtenstein-server-sub001/internal/worker"
)

// Client owns one run of the unicast session and the subsystems that
// depend on it (subscriptions, the multicast receiver).
type Client struct {
	worker.Worker

	log *log.Logger

	ep      session.Endpoint
	id      *ident.Identity
	reg     *output.Registry
	metrics *metrics.Collectors

	subs  *subscribe.Manager
	mcast *mcast.Receiver

	terminated atomic.Bool
}

// New builds a Client ready to Run.
func New(ep session.Endpoint, id *ident.Identity, reg *output.Registry, m *metrics.Collectors, logger *log.Logger) *Client {
	return &Client{
		log:     logger,
		ep:      ep,
		id:      id,
		reg:     reg,
		metrics: m,
		subs:    subscribe.New(logger.WithPrefix("subscribe"), m),
		mcast:   mcast.New(reg, m, logger.WithPrefix("mcast")),
	}
}

// Terminate requests the run loop stop after the current message/reconnect
// cycle (spec.md §5 "Cancellation"). Idempotent; a repeat call is logged and
// otherwise ignored (spec.md §8, original_source/client/src/proto/Client.cpp
// "Ignoring repeated call to Client::terminate()").
func (c *Client) Terminate() {
	if !c.terminated.CompareAndSwap(false, true) {
		c.log.Warnf("ignoring repeated call to Terminate()")
		return
	}
	c.Halt()
}

// Run drives connect -> auth -> subscribe -> multicast-info -> message loop
// until Terminate is called or a fatal/auth-denied error occurs (spec.md
// §4.5, §4.8).
func (c *Client) Run(ctx context.Context, recvTimeout time.Duration) error {
	for {
		select {
		case <-c.HaltCh():
			return nil
		default:
		}

		sm := auth.New(c.id, c.log.WithPrefix("auth"))
		s, err := session.Connect(ctx, c.ep, recvTimeout, sm, c.log.WithPrefix("session"))
		if err != nil {
			var denied *session.AuthDeniedError
			if errors.As(err, &denied) {
				return fmt.Errorf("client: auth denied: %w", err)
			}
			return fmt.Errorf("client: connect: %w", err)
		}
		if c.metrics != nil {
			c.metrics.Reconnects.Inc()
		}

		if err := c.subs.SubscribeAll(s, c.reg); err != nil {
			c.log.Errorf("subscribe phase failed: %v", err)
			c.subs.UnsubscribeAll(s)
			s.Close()
			continue
		}

		groupInfo, err := c.getMulticastInfo(s)
		if err != nil {
			c.log.Errorf("multicast info fetch failed: %v", err)
			c.subs.UnsubscribeAll(s)
			s.Close()
			continue
		}
		if groupInfo.Status == proto.MccSuccess {
			if err := c.mcast.SetGroupInfo(s, groupInfo.GroupAddress, groupInfo.GroupPort, groupInfo.InitialKeyID); err != nil {
				c.log.Errorf("multicast bootstrap failed: %v", err)
			}
		}

		needsReconnect := c.messageLoop(s)

		c.mcast.Stop()
		c.subs.UnsubscribeAll(s)
		s.Close()

		if !needsReconnect {
			return nil
		}
	}
}

func (c *Client) getMulticastInfo(s *session.Session) (proto.McastGetInfoAckPayload, error) {
	var ack proto.McastGetInfoAckPayload
	tag := s.NextTag()
	payload, err := wire.EncodePayload(proto.MulticastControl, proto.McastGetInfoPayload{})
	if err != nil {
		return ack, err
	}
	if err := s.Send(proto.MulticastControl, proto.MccGetInfo, tag, payload); err != nil {
		return ack, err
	}
	for {
		hdr, body, err := s.RecvMessage()
		if errors.Is(err, session.ErrNoMessage) {
			continue
		}
		if err != nil {
			return ack, err
		}
		if hdr.Endpoint != proto.MulticastControl || hdr.MessageType != proto.MccGetInfoAck || hdr.Tag != tag {
			continue
		}
		if err := wire.DecodePayload(hdr.Endpoint, hdr.MessageType, body, &ack); err != nil {
			return ack, err
		}
		return ack, nil
	}
}

// messageLoop is the inner dispatch loop (spec.md §4.5). It returns true if
// the session needs reconnecting.
func (c *Client) messageLoop(s *session.Session) bool {
	for {
		select {
		case <-c.HaltCh():
			return false
		default:
		}

		hdr, payload, err := s.RecvMessage()
		if errors.Is(err, session.ErrNoMessage) {
			continue
		}
		if err != nil {
			c.log.Warnf("session error, reconnecting: %v", err)
			return true
		}

		if err := c.dispatch(s, hdr, payload); err != nil {
			c.log.Warnf("handler error endpoint=%s type=%d tag=%d: %v", hdr.Endpoint, hdr.MessageType, hdr.Tag, err)
		}

		if s.NeedsReconnect() {
			return true
		}
	}
}

func (c *Client) dispatch(s *session.Session, hdr wire.Header, payload []byte) error {
	switch {
	case hdr.Endpoint == proto.PixelData && hdr.MessageType == proto.PixData:
		return c.handlePixelData(s, hdr, payload)
	case hdr.Endpoint == proto.MulticastControl:
		return c.mcast.HandleMessage(s, hdr, payload)
	default:
		c.log.Debugf("unhandled message endpoint=%s type=%d tag=%d", hdr.Endpoint, hdr.MessageType, hdr.Tag)
		return nil
	}
}

// handlePixelData implements spec.md §4.6.
func (c *Client) handlePixelData(s *session.Session, hdr wire.Header, payload []byte) error {
	var data proto.PixDataPayload
	if err := wire.DecodePayload(hdr.Endpoint, hdr.MessageType, payload, &data); err != nil {
		return err
	}

	ch, ok := c.reg.At(data.Channel)
	if !ok {
		return fmt.Errorf("pixel data for unknown channel %d", data.Channel)
	}
	if err := ch.UpdatePixels(data.Offset, data.Pixels); err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.FramesDispatched.Inc()
	}

	ackPayload, err := wire.EncodePayload(proto.PixelData, proto.PixDataAckPayload{Channel: data.Channel})
	if err != nil {
		return err
	}
	return s.Send(proto.PixelData, proto.PixDataAck, hdr.Tag, ackPayload)
}
