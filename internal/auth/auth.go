// Package auth drives the node authentication state machine
// (SEND_REQ -> READ_REQ_ACK -> SEND_RESPONSE -> READ_AUTH_STATE) over an
// already-transport-secure session (spec.md §4.3).
package auth

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/tristanseifert/lichtenstein-server-sub001/internal/ident"
	"github.com/tristanseifert/lichtenstein-server-sub001/internal/proto"
	"github.com/tristanseifert/lichtenstein-server-sub001/internal/session"
	"github.com/tristanseifert/lichtenstein-server-sub001/internal/wire"
)

// MethodNull is the baseline authentication method: an empty response
// payload. Implementations select their response construction from the
// server-chosen method string, so additional methods can be added without
// changing the state machine (spec.md §4.3).
const MethodNull = "null"

// Responder builds the method-specific AuthResponse payload for a
// server-chosen method name. Callers needing more than the null method
// supply their own.
type Responder func(method string) ([]byte, error)

// NullResponder implements Responder for the single method this node
// supports.
func NullResponder(method string) ([]byte, error) {
	if method != MethodNull {
		return nil, fmt.Errorf("auth: unsupported method %q", method)
	}
	return nil, nil
}

// StateMachine implements session.Authenticator (spec.md §4.3).
type StateMachine struct {
	ID        *ident.Identity
	Methods   []string
	Responder Responder
	Log       *log.Logger
}

// New builds a StateMachine offering only MethodNull.
func New(id *ident.Identity, logger *log.Logger) *StateMachine {
	return &StateMachine{
		ID:        id,
		Methods:   []string{MethodNull},
		Responder: NullResponder,
		Log:       logger,
	}
}

// Authenticate runs the four-state handshake to completion, returning nil
// only when the server reports AuthSuccess at every step.
func (sm *StateMachine) Authenticate(s *session.Session) error {
	logger := sm.Log
	if logger == nil {
		logger = log.Default()
	}

	// SEND_REQ
	reqTag := s.NextTag()
	reqPayload, err := wire.EncodePayload(proto.Authentication, proto.AuthRequestPayload{
		NodeID:  sm.ID.String(),
		Methods: sm.Methods,
	})
	if err != nil {
		return fmt.Errorf("auth: encode AuthRequest: %w", err)
	}
	if err := s.Send(proto.Authentication, proto.AuthRequest, reqTag, reqPayload); err != nil {
		return fmt.Errorf("auth: send AuthRequest: %w", err)
	}

	// READ_REQ_ACK: loop past mismatched messages rather than failing, to
	// tolerate stray late traffic (spec.md §4.3).
	var ack proto.AuthRequestAckPayload
	for {
		hdr, payload, err := s.RecvMessage()
		if errors.Is(err, session.ErrNoMessage) {
			continue
		}
		if err != nil {
			return fmt.Errorf("auth: recv AuthRequestAck: %w", err)
		}
		if hdr.Endpoint != proto.Authentication || hdr.MessageType != proto.AuthRequestAck || hdr.Tag != reqTag {
			logger.Debugf("auth: ignoring stray message endpoint=%s type=%d tag=%d while awaiting ack", hdr.Endpoint, hdr.MessageType, hdr.Tag)
			continue
		}
		if err := wire.DecodePayload(hdr.Endpoint, hdr.MessageType, payload, &ack); err != nil {
			return err
		}
		break
	}
	if ack.Status != proto.AuthSuccess {
		return fmt.Errorf("auth: request denied, status=%d", ack.Status)
	}

	// SEND_RESPONSE
	respData, err := sm.Responder(ack.Method)
	if err != nil {
		return fmt.Errorf("auth: build response for method %q: %w", ack.Method, err)
	}
	respTag := s.NextTag()
	respPayload, err := wire.EncodePayload(proto.Authentication, proto.AuthResponsePayload{Data: respData})
	if err != nil {
		return fmt.Errorf("auth: encode AuthResponse: %w", err)
	}
	if err := s.Send(proto.Authentication, proto.AuthResponse, respTag, respPayload); err != nil {
		return fmt.Errorf("auth: send AuthResponse: %w", err)
	}

	// READ_AUTH_STATE
	var final proto.AuthResponseAckPayload
	for {
		hdr, payload, err := s.RecvMessage()
		if errors.Is(err, session.ErrNoMessage) {
			continue
		}
		if err != nil {
			return fmt.Errorf("auth: recv AuthResponseAck: %w", err)
		}
		if hdr.Endpoint != proto.Authentication || hdr.MessageType != proto.AuthResponseAck || hdr.Tag != respTag {
			logger.Debugf("auth: ignoring stray message endpoint=%s type=%d tag=%d while awaiting final ack", hdr.Endpoint, hdr.MessageType, hdr.Tag)
			continue
		}
		if err := wire.DecodePayload(hdr.Endpoint, hdr.MessageType, payload, &final); err != nil {
			return err
		}
		break
	}
	if final.Status != proto.AuthSuccess {
		return fmt.Errorf("auth: response rejected, status=%d", final.Status)
	}

	logger.Infof("authenticated as %s via method %q", sm.ID.String(), ack.Method)
	return nil
}
