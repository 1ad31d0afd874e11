// Package mcast implements the multicast receiver and its keystore
// (spec.md §4.7): a worker with its own UDP socket, independent of the
// unicast session goroutine, decrypting and dispatching the group
// data-plane, plus the control messages (MCC_GET_KEY_ACK, MCC_REKEY) that
// arrive on the unicast session.
package mcast

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tristanseifert/lichtenstein-server-sub001/internal/metrics"
	"github.com/tristanseifert/lichtenstein-server-sub001/internal/output"
	"github.com/tristanseifert/lichtenstein-server-sub001/internal/proto"
	"github.com/tristanseifert/lichtenstein-server-sub001/internal/session"
	"github.com/tristanseifert/lichtenstein-server-sub001/internal/wire"
	"github.com/tristanseifert/lichtenstein-server-sub001/internal/worker"
)

// selectTimeout bounds each socket poll (spec.md §4.7 "select on the
// socket with a 250 ms timeout").
const selectTimeout = 250 * time.Millisecond

// datagramHeaderSize is the fixed prefix on every multicast datagram: a
// 4-byte big-endian key id followed by a 12-byte AEAD nonce. The remainder
// of the datagram is the ChaCha20-Poly1305 sealed payload.
const datagramHeaderSize = 4 + 12

// Sender is the subset of *session.Session the receiver needs to fetch keys
// and reply to a rekey on the unicast session. Depending on this narrower
// interface instead of *session.Session directly keeps the receiver
// testable without a live QUIC connection.
type Sender interface {
	NextTag() uint8
	Send(endpoint proto.Endpoint, msgType proto.MessageType, tag uint8, payload []byte) error
	RecvMessage() (wire.Header, []byte, error)
}

// Receiver owns the multicast socket and the shared keystore.
type Receiver struct {
	worker.Worker

	log     *log.Logger
	keys    *Keystore
	reg     *output.Registry
	metrics *metrics.Collectors

	groupAddr *net.UDPAddr
	conn      *net.UDPConn
}

// New constructs a Receiver bound to reg for dispatching decoded frames. m
// may be nil to disable metrics.
func New(reg *output.Registry, m *metrics.Collectors, logger *log.Logger) *Receiver {
	return &Receiver{
		log:     logger,
		keys:    NewKeystore(),
		reg:     reg,
		metrics: m,
	}
}

// Keystore exposes the shared key table, e.g. for metrics or tests.
func (r *Receiver) Keystore() *Keystore { return r.keys }

// SetGroupInfo bootstraps the receiver (spec.md §4.7 "Bootstrap"): it
// parses the IPv4 group address, records the initial key id, fetches that
// key over the unicast session, joins the multicast group, and starts the
// worker goroutine.
func (r *Receiver) SetGroupInfo(s Sender, address string, port uint16, initialKeyID uint32) error {
	ip := net.ParseIP(address).To4()
	if ip == nil {
		return fmt.Errorf("mcast: group address %q is not a valid IPv4 address", address)
	}
	r.groupAddr = &net.UDPAddr{IP: ip, Port: int(port)}
	r.keys.SetCurrentKeyID(initialKeyID)

	if err := r.fetchKey(s, initialKeyID); err != nil {
		return fmt.Errorf("mcast: fetch initial key %d: %w", initialKeyID, err)
	}

	conn, err := net.ListenMulticastUDP("udp4", nil, r.groupAddr)
	if err != nil {
		return fmt.Errorf("mcast: join group %s: %w", r.groupAddr, err)
	}
	r.conn = conn

	r.Worker.Go(r.run)
	r.log.Infof("joined multicast group %s, initial key id %d", r.groupAddr, initialKeyID)
	return nil
}

// fetchKey sends MCC_GET_KEY and blocks for MCC_GET_KEY_ACK on the unicast
// session (spec.md §4.7 bootstrap step "sends a MCC_GET_KEY ... over the
// unicast session").
func (r *Receiver) fetchKey(s Sender, keyID uint32) error {
	tag := s.NextTag()
	payload, err := wire.EncodePayload(proto.MulticastControl, proto.McastGetKeyPayload{KeyID: keyID})
	if err != nil {
		return err
	}
	if err := s.Send(proto.MulticastControl, proto.MccGetKey, tag, payload); err != nil {
		return err
	}

	for {
		hdr, body, err := s.RecvMessage()
		if errors.Is(err, session.ErrNoMessage) {
			continue
		}
		if err != nil {
			return err
		}
		if hdr.Endpoint != proto.MulticastControl || hdr.MessageType != proto.MccGetKeyAck || hdr.Tag != tag {
			continue
		}
		var ack proto.McastGetKeyAckPayload
		if err := wire.DecodePayload(hdr.Endpoint, hdr.MessageType, body, &ack); err != nil {
			return err
		}
		if ack.Status != proto.MccSuccess {
			return fmt.Errorf("mcast: get-key denied, status=%d", ack.Status)
		}
		// A plain MCC_GET_KEY_ACK installs the key under its own id but
		// must not move currentKeyId (spec.md SUPPLEMENTED FEATURES #2).
		if err := r.keys.Install(ack.KeyID, ack.Key); err != nil && !errors.Is(err, ErrKeyConflict) {
			return err
		}
		return nil
	}
}

// HandleMessage processes a MulticastControl message received on the
// unicast session (spec.md §4.7 "Control messages on unicast"). The
// message mux calls this for every (MulticastControl, *) frame.
func (r *Receiver) HandleMessage(s Sender, hdr wire.Header, payload []byte) error {
	switch hdr.MessageType {
	case proto.MccGetKeyAck:
		var ack proto.McastGetKeyAckPayload
		if err := wire.DecodePayload(hdr.Endpoint, hdr.MessageType, payload, &ack); err != nil {
			return err
		}
		if ack.Status != proto.MccSuccess {
			r.log.Warnf("mcast: get-key ack denied, status=%d", ack.Status)
			return nil
		}
		if err := r.keys.Install(ack.KeyID, ack.Key); err != nil {
			r.log.Warnf("mcast: install key %d: %v", ack.KeyID, err)
		}
		return nil

	case proto.MccRekey:
		var req proto.McastRekeyPayload
		if err := wire.DecodePayload(hdr.Endpoint, hdr.MessageType, payload, &req); err != nil {
			return err
		}
		status := proto.MccSuccess
		if err := r.keys.Install(req.KeyID, req.KeyData); err != nil {
			r.log.Warnf("mcast: rekey to %d: %v", req.KeyID, err)
			status = proto.Status(1)
		} else {
			r.keys.SetCurrentKeyID(req.KeyID)
			if r.metrics != nil {
				r.metrics.Rekeys.Inc()
			}
		}

		ackPayload, err := wire.EncodePayload(proto.MulticastControl, proto.McastRekeyAckPayload{
			Status: status,
			KeyID:  req.KeyID,
		})
		if err != nil {
			return err
		}
		return s.Send(proto.MulticastControl, proto.MccRekeyAck, hdr.Tag, ackPayload)

	default:
		r.log.Debugf("mcast: ignoring unhandled control message type %d", hdr.MessageType)
		return nil
	}
}

// run is the receiver's worker loop (spec.md §4.7 "Worker").
func (r *Receiver) run() {
	buf := make([]byte, 65536)
	for {
		select {
		case <-r.Worker.HaltCh():
			_ = r.conn.Close()
			return
		default:
		}

		if err := r.conn.SetReadDeadline(time.Now().Add(selectTimeout)); err != nil {
			r.log.Warnf("mcast: set read deadline: %v", err)
			continue
		}
		n, _, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			select {
			case <-r.Worker.HaltCh():
				return
			default:
				r.log.Warnf("mcast: read error: %v", err)
				continue
			}
		}

		if err := r.handleDatagram(buf[:n]); err != nil {
			r.log.Warnf("mcast: %v", err)
		}
	}
}

func (r *Receiver) handleDatagram(datagram []byte) error {
	if len(datagram) < datagramHeaderSize {
		return fmt.Errorf("datagram too short: %d bytes", len(datagram))
	}
	keyID := binary.BigEndian.Uint32(datagram[0:4])
	nonce := datagram[4:16]
	ciphertext := datagram[16:]

	aead, ivSeed, ok := r.keys.Lookup(keyID)
	if !ok {
		return fmt.Errorf("no key installed for id %d", keyID)
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, ivSeed)
	if err != nil {
		return fmt.Errorf("decrypt failed for key %d: %w", keyID, err)
	}

	var frame proto.McastDataSyncOutput
	if err := wire.DecodePayload(proto.MulticastControl, 0, plaintext, &frame); err != nil {
		return err
	}

	ch, ok := r.reg.At(frame.Channel)
	if !ok {
		return fmt.Errorf("channel %d out of range", frame.Channel)
	}
	if err := ch.UpdatePixels(frame.Offset, frame.Words); err != nil {
		return err
	}
	if r.metrics != nil {
		r.metrics.FramesDispatched.Inc()
	}
	return nil
}

// Stop halts the worker and leaves the multicast group.
func (r *Receiver) Stop() {
	r.Worker.Halt()
	r.Worker.Wait()
}
