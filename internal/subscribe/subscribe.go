// Package subscribe implements the subscription manager (spec.md §4.4):
// subscribing every local output channel at connect time and tearing the
// list down at shutdown or reconnect.
package subscribe

import (
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/tristanseifert/lichtenstein-server-sub001/internal/metrics"
	"github.com/tristanseifert/lichtenstein-server-sub001/internal/output"
	"github.com/tristanseifert/lichtenstein-server-sub001/internal/proto"
	"github.com/tristanseifert/lichtenstein-server-sub001/internal/session"
	"github.com/tristanseifert/lichtenstein-server-sub001/internal/wire"
)

// sender is the subset of *session.Session the subscription manager needs.
// Depending on this narrower interface instead of *session.Session
// directly keeps the manager testable without a live QUIC connection.
type sender interface {
	NextTag() uint8
	Send(endpoint proto.Endpoint, msgType proto.MessageType, tag uint8, payload []byte) error
	RecvMessage() (wire.Header, []byte, error)
}

// Record is one granted subscription: the local channel index and the
// server-assigned subscription id needed to unsubscribe it later.
type Record struct {
	ChannelIndex   uint32
	SubscriptionID uint32
}

// Manager owns the active-subscription list (spec.md §3 invariant 3,
// §8 invariant 1).
type Manager struct {
	mu      sync.Mutex
	records []Record
	log     *log.Logger
	metrics *metrics.Collectors
}

// New constructs an empty Manager. m may be nil to disable metrics.
func New(logger *log.Logger, m *metrics.Collectors) *Manager {
	return &Manager{log: logger, metrics: m}
}

func (m *Manager) setGauge() {
	if m.metrics != nil {
		m.metrics.ActiveSubscriptions.Set(float64(len(m.records)))
	}
}

// Len reports the number of active subscriptions (activeSubscriptions in
// spec.md §8).
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Records returns a copy of the active subscription list.
func (m *Manager) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}

func toWireFormat(f output.Format) proto.PixelFormat {
	return proto.PixelFormat(f)
}

// SubscribeAll sends PIX_SUBSCRIBE for every channel in reg, in index
// order, blocking for each ack in turn before sending the next request
// (spec.md §4.4, §5 "sequential request-ack discipline"). Any non-success
// status aborts the whole phase.
func (m *Manager) SubscribeAll(s sender, reg *output.Registry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ch := range reg.All() {
		format := toWireFormat(ch.PixelFormat())
		if !format.Valid() {
			return fmt.Errorf("subscribe: channel %d has invalid pixel format %d", ch.Index(), format)
		}

		tag := s.NextTag()
		payload, err := wire.EncodePayload(proto.PixelData, proto.PixSubscribePayload{
			Channel: ch.Index(),
			Length:  ch.Length(),
			Format:  format,
			Start:   0,
		})
		if err != nil {
			return fmt.Errorf("subscribe: encode request for channel %d: %w", ch.Index(), err)
		}
		if err := s.Send(proto.PixelData, proto.PixSubscribe, tag, payload); err != nil {
			return fmt.Errorf("subscribe: send request for channel %d: %w", ch.Index(), err)
		}

		ack, err := m.awaitSubscribeAck(s, tag)
		if err != nil {
			return err
		}
		if ack.Status != proto.PixSuccess {
			return fmt.Errorf("subscribe: channel %d denied, status=%d", ch.Index(), ack.Status)
		}
		m.records = append(m.records, Record{ChannelIndex: ch.Index(), SubscriptionID: ack.SubscriptionID})
		m.setGauge()
		m.log.Infof("subscribed channel %d as subscription %d", ch.Index(), ack.SubscriptionID)
	}
	return nil
}

func (m *Manager) awaitSubscribeAck(s sender, tag uint8) (proto.PixSubscribeAckPayload, error) {
	var ack proto.PixSubscribeAckPayload
	for {
		hdr, payload, err := s.RecvMessage()
		if errors.Is(err, session.ErrNoMessage) {
			continue
		}
		if err != nil {
			return ack, fmt.Errorf("subscribe: recv ack: %w", err)
		}
		if hdr.Endpoint != proto.PixelData || hdr.MessageType != proto.PixSubscribeAck || hdr.Tag != tag {
			continue
		}
		if err := wire.DecodePayload(hdr.Endpoint, hdr.MessageType, payload, &ack); err != nil {
			return ack, err
		}
		return ack, nil
	}
}

// UnsubscribeAll sends PIX_UNSUBSCRIBE for every active record. Unlike
// SubscribeAll, individual failures are logged and skipped; the list is
// cleared unconditionally when done (spec.md §4.4, §8 "idempotence").
func (m *Manager) UnsubscribeAll(s sender) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.records) == 0 {
		return
	}

	for _, rec := range m.records {
		tag := s.NextTag()
		payload, err := wire.EncodePayload(proto.PixelData, proto.PixUnsubscribePayload{
			Channel:        rec.ChannelIndex,
			SubscriptionID: rec.SubscriptionID,
		})
		if err != nil {
			m.log.Warnf("unsubscribe: encode for channel %d: %v", rec.ChannelIndex, err)
			continue
		}
		if err := s.Send(proto.PixelData, proto.PixUnsubscribe, tag, payload); err != nil {
			m.log.Warnf("unsubscribe: send for channel %d: %v", rec.ChannelIndex, err)
			continue
		}
		if _, err := m.awaitUnsubscribeAck(s, tag); err != nil {
			m.log.Warnf("unsubscribe: channel %d: %v", rec.ChannelIndex, err)
		}
	}
	m.records = nil
	m.setGauge()
}

func (m *Manager) awaitUnsubscribeAck(s sender, tag uint8) (proto.PixUnsubscribeAckPayload, error) {
	var ack proto.PixUnsubscribeAckPayload
	for {
		hdr, payload, err := s.RecvMessage()
		if errors.Is(err, session.ErrNoMessage) {
			continue
		}
		if err != nil {
			return ack, err
		}
		if hdr.Endpoint != proto.PixelData || hdr.MessageType != proto.PixUnsubscribeAck || hdr.Tag != tag {
			continue
		}
		if err := wire.DecodePayload(hdr.Endpoint, hdr.MessageType, payload, &ack); err != nil {
			return ack, err
		}
		if ack.Status != proto.PixSuccess {
			return ack, fmt.Errorf("server returned status=%d", ack.Status)
		}
		return ack, nil
	}
}
