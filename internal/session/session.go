// Package session implements the secure-transport session manager: opening
// a datagram socket to the controller, performing an authenticated-
// encryption handshake, and reading/writing framed messages over it
// (spec.md §4.2).
//
// The handshake is performed with quic-go, which is this pack's own UDP +
// TLS 1.3 secure-transport dependency (see sockatz/common.QUICProxyConn in
// the teacher repo) and stands in for the "DTLS-equivalent" transport named
// in the spec: both are an authenticated-encryption record layer over UDP
// with a client-driven handshake.
package session

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/quic-go/quic-go"

	"github.com/tristanseifert/lichtenstein-server-sub001/internal/proto"
	"github.com/tristanseifert/lichtenstein-server-sub001/internal/wire"
)

// kConnectionAttempts is the number of consecutive transient failures
// tolerated before Connect gives up (spec.md §4.2 step 4).
const kConnectionAttempts = 10

// Authenticator drives the node authentication state machine over an
// already-secure session. It is implemented by internal/auth, and passed in
// here rather than imported, so session has no dependency on auth.
type Authenticator interface {
	Authenticate(s *Session) error
}

// Session is a handle to the connected, authenticated, encrypted datagram
// channel (spec.md §3 "Session state").
type Session struct {
	log *log.Logger

	conn   quic.Connection
	stream quic.Stream

	recvTimeout time.Duration

	tag uint32 // atomic; wraps modulo 256 (spec.md §5 nextTag)

	needsReconnect atomic.Bool
	cleanShutdown  atomic.Bool

	sendMu   sync.Mutex
	closeOne sync.Once
}

// Connect blocks until an authenticated session exists or fails (spec.md
// §4.2). On success the returned Session is ready for Send/RecvMessage.
func Connect(ctx context.Context, ep Endpoint, recvTimeout time.Duration, auth Authenticator, logger *log.Logger) (*Session, error) {
	addr, err := ep.Resolve()
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= kConnectionAttempts; attempt++ {
		s, dialErr := dialOnce(ctx, addr, recvTimeout, logger)
		if dialErr == nil {
			if authErr := auth.Authenticate(s); authErr != nil {
				s.Close()
				return nil, &AuthDeniedError{Err: authErr}
			}
			return s, nil
		}

		var te *TransientError
		if errors.As(dialErr, &te) {
			logger.Warnf("connect attempt %d/%d failed: %v", attempt, kConnectionAttempts, te.Err)
			lastErr = dialErr
			continue
		}
		return nil, dialErr
	}
	return nil, fmt.Errorf("session: exhausted %d connect attempts: %w", kConnectionAttempts, lastErr)
}

func dialOnce(ctx context.Context, addr string, recvTimeout time.Duration, logger *log.Logger) (*Session, error) {
	tlsConf := &tls.Config{
		NextProtos: []string{"lichtenstein-node/1"},
		MinVersion: tls.VersionTLS13,
	}
	quicConf := &quic.Config{
		HandshakeIdleTimeout: recvTimeout,
		MaxIdleTimeout:       10 * recvTimeout,
		// The QUIC datagram extension is off: all framed traffic travels on
		// one reliable, transport-buffered stream, and wire.ReadMessage
		// assembles whole frames from it with io.ReadFull.
		EnableDatagrams: false,
	}

	dialCtx, cancel := context.WithTimeout(ctx, recvTimeout)
	defer cancel()

	conn, err := quic.DialAddrContext(dialCtx, addr, tlsConf, quicConf)
	if err != nil {
		return nil, classifyDialError(err)
	}

	stream, err := conn.OpenStreamSync(dialCtx)
	if err != nil {
		conn.CloseWithError(1, "stream open failed")
		return nil, classifyDialError(err)
	}

	s := &Session{
		log:         logger,
		conn:        conn,
		stream:      stream,
		recvTimeout: recvTimeout,
	}
	s.cleanShutdown.Store(true)
	return s, nil
}

// classifyDialError implements spec.md §4.2's error classification: Closed
// and read-timeout are retryable, everything else (syscall failure,
// other handshake error) is fatal.
func classifyDialError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransientError{Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransientError{Err: err}
	}
	var idleTimeout *quic.IdleTimeoutError
	if errors.As(err, &idleTimeout) {
		return &TransientError{Err: err}
	}
	var handshakeTimeout *quic.HandshakeTimeoutError
	if errors.As(err, &handshakeTimeout) {
		return &TransientError{Err: err}
	}
	var appErr *quic.ApplicationError
	if errors.As(err, &appErr) {
		// Peer terminated the connection cleanly: treat as a connect
		// failure that may succeed on retry.
		return &TransientError{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &FatalError{Err: err}
	}
	return &FatalError{Err: err}
}

// NextTag allocates a fresh tag for an outbound request. Tags wrap modulo
// 256 and are the only collision-avoidance mechanism (spec.md §5).
func (s *Session) NextTag() uint8 {
	return uint8(atomic.AddUint32(&s.tag, 1) % 256)
}

// Send writes one complete framed message. A partial write is reported as
// an error (spec.md §4.2).
func (s *Session) Send(endpoint proto.Endpoint, msgType proto.MessageType, tag uint8, payload []byte) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if err := s.stream.SetWriteDeadline(time.Now().Add(s.recvTimeout)); err != nil {
		return &FatalError{Err: err}
	}
	if err := wire.WriteMessage(s.stream, endpoint, msgType, tag, payload); err != nil {
		if errors.Is(err, wire.ErrOversizePayload) {
			return err
		}
		s.markFatal()
		return &FatalError{Err: err}
	}
	return nil
}

// ErrNoMessage is returned by RecvMessage when the read timed out without
// data; the caller should retry (spec.md §4.2, §4.5 step 1).
var ErrNoMessage = errors.New("session: no message available")

// RecvMessage reads one framed message, blocking up to the configured read
// timeout. A timeout yields ErrNoMessage; peer-closed or a syscall error is
// fatal and clears the clean-shutdown flag (spec.md §4.2).
func (s *Session) RecvMessage() (wire.Header, []byte, error) {
	if err := s.stream.SetReadDeadline(time.Now().Add(s.recvTimeout)); err != nil {
		return wire.Header{}, nil, &FatalError{Err: err}
	}
	hdr, payload, err := wire.ReadMessage(s.stream)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return wire.Header{}, nil, ErrNoMessage
		}
		s.markFatal()
		return wire.Header{}, nil, &FatalError{Err: err}
	}
	return hdr, payload, nil
}

// NeedsReconnect reports whether a fatal I/O error has occurred since the
// last successful Connect.
func (s *Session) NeedsReconnect() bool {
	return s.needsReconnect.Load()
}

func (s *Session) markFatal() {
	s.needsReconnect.Store(true)
	s.cleanShutdown.Store(false)
}

// Close attempts a clean shutdown of the secure channel if permitted,
// otherwise tears down the socket unconditionally (spec.md §4.2). Idempotent.
func (s *Session) Close() {
	s.closeOne.Do(func() {
		if s.cleanShutdown.Load() {
			_ = s.stream.Close()
			_ = s.conn.CloseWithError(0, "bye")
		} else {
			_ = s.conn.CloseWithError(1, "transport error")
		}
	})
}
