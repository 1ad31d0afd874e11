// Package wire implements the on-wire message framing and the two payload
// codecs described in spec.md §4.1.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/tristanseifert/lichtenstein-server-sub001/internal/proto"
)

// HeaderSize is the fixed size, in bytes, of the wire frame header
// (spec.md §6: offsets 0-7, payload starts at offset 8).
const HeaderSize = 8

// MaxPayloadSize is the largest payload a single frame may carry.
const MaxPayloadSize = 65535

// ErrOversizePayload is returned by WriteMessage when the payload exceeds
// MaxPayloadSize. This is a caller error, not a transport error.
var ErrOversizePayload = errors.New("wire: payload exceeds 65535 bytes")

// ErrBadVersion is returned when a received header's version byte does not
// match proto.ProtocolVersion. Treated as TransportFatal (spec.md §7).
var ErrBadVersion = fmt.Errorf("wire: unsupported protocol version")

// Header is the fixed-layout frame header, all multi-byte integers in
// network (big-endian) byte order.
type Header struct {
	Version     uint8
	Endpoint    proto.Endpoint
	MessageType proto.MessageType
	Tag         uint8
	Length      uint16
	// Reserved is written as given by Encode (WriteMessage always sends it
	// as zero); its value is not validated on decode, to tolerate a server
	// that reserves it for future use.
	Reserved [2]byte
}

// Encode writes the header's fixed 8-byte representation to buf, which must
// be at least HeaderSize bytes long.
func (h *Header) Encode(buf []byte) {
	buf[0] = h.Version
	buf[1] = byte(h.Endpoint)
	buf[2] = byte(h.MessageType)
	buf[3] = h.Tag
	binary.BigEndian.PutUint16(buf[4:6], h.Length)
	buf[6] = h.Reserved[0]
	buf[7] = h.Reserved[1]
}

// DecodeHeader parses an 8-byte buffer into a Header, validating the
// protocol version.
func DecodeHeader(buf []byte) (Header, error) {
	var h Header
	if len(buf) < HeaderSize {
		return h, fmt.Errorf("wire: short header: %d bytes", len(buf))
	}
	h.Version = buf[0]
	if h.Version != proto.ProtocolVersion {
		return h, fmt.Errorf("%w: got %d, want %d", ErrBadVersion, h.Version, proto.ProtocolVersion)
	}
	h.Endpoint = proto.Endpoint(buf[1])
	h.MessageType = proto.MessageType(buf[2])
	h.Tag = buf[3]
	h.Length = binary.BigEndian.Uint16(buf[4:6])
	h.Reserved[0] = buf[6]
	h.Reserved[1] = buf[7]
	return h, nil
}

// ReadMessage reads one framed message (header + payload) from r. A short
// read on the payload is a fatal transport error (spec.md §4.2).
func ReadMessage(r io.Reader) (Header, []byte, error) {
	var hdrBuf [HeaderSize]byte
	if _, err := io.ReadFull(r, hdrBuf[:]); err != nil {
		return Header{}, nil, err
	}
	hdr, err := DecodeHeader(hdrBuf[:])
	if err != nil {
		return Header{}, nil, err
	}
	payload := make([]byte, hdr.Length)
	if hdr.Length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Header{}, nil, fmt.Errorf("wire: short payload read: %w", err)
		}
	}
	return hdr, payload, nil
}

// WriteMessage frames header+payload into a single buffer and writes it to
// w in one call, so a partial write is reported as an error rather than
// silently fragmenting the frame (spec.md §4.2 "send must write the full
// framed message in one call").
func WriteMessage(w io.Writer, endpoint proto.Endpoint, msgType proto.MessageType, tag uint8, payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return ErrOversizePayload
	}
	buf := make([]byte, HeaderSize+len(payload))
	hdr := Header{
		Version:     proto.ProtocolVersion,
		Endpoint:    endpoint,
		MessageType: msgType,
		Tag:         tag,
		Length:      uint16(len(payload)),
	}
	hdr.Encode(buf[:HeaderSize])
	copy(buf[HeaderSize:], payload)

	n, err := w.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return fmt.Errorf("wire: partial write: %d of %d bytes", n, len(buf))
	}
	return nil
}
