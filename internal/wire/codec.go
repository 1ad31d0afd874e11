package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	ugcodec "github.com/ugorji/go/codec"

	"github.com/tristanseifert/lichtenstein-server-sub001/internal/proto"
)

// ErrMalformedPayload wraps any payload decode failure: truncation, schema
// mismatch, or trailing garbage (spec.md §4.1).
type ErrMalformedPayload struct {
	Endpoint proto.Endpoint
	Type     proto.MessageType
	Err      error
}

func (e *ErrMalformedPayload) Error() string {
	return fmt.Sprintf("wire: malformed payload on %s/%d: %v", e.Endpoint, e.Type, e.Err)
}

func (e *ErrMalformedPayload) Unwrap() error { return e.Err }

// Codec encodes and decodes typed payloads to and from bytes.
type Codec interface {
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte, v interface{}) error
}

// cborCodec is the unicast payload codec (spec.md §4.1, "codec A"): a typed
// binary schema in CBOR's canonical deterministic encoding, which gives a
// fixed field order and length-prefixed byte strings without hand-rolling a
// struct marshaler. Integers use CBOR's big-endian encoding, not
// little-endian.
type cborCodec struct{}

func (cborCodec) Encode(v interface{}) ([]byte, error) {
	opts := cbor.CanonicalEncOptions()
	em, err := opts.EncMode()
	if err != nil {
		return nil, err
	}
	return em.Marshal(v)
}

func (cborCodec) Decode(data []byte, v interface{}) error {
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return err
	}
	if err := dm.Unmarshal(data, v); err != nil {
		return err
	}
	return nil
}

// structCodec is the multicast control / group-data-plane codec (spec.md
// §4.1, "codec B"): a structural serializer, here backed by ugorji/go/codec's
// CBOR handle with StructToArray (structs encoded as positional arrays) and
// OptimumSize set; Encode allocates a fresh output buffer per call. It is a
// deliberately different library from cborCodec so the two codecs stay
// visibly interchangeable per endpoint rather than collapsing into one.
type structCodec struct {
	handle ugcodec.CborHandle
}

func newStructCodec() *structCodec {
	sc := &structCodec{}
	sc.handle.StructToArray = true
	sc.handle.OptimumSize = true
	return sc
}

func (sc *structCodec) Encode(v interface{}) ([]byte, error) {
	var buf []byte
	enc := ugcodec.NewEncoderBytes(&buf, &sc.handle)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf, nil
}

func (sc *structCodec) Decode(data []byte, v interface{}) error {
	dec := ugcodec.NewDecoderBytes(data, &sc.handle)
	return dec.Decode(v)
}

var (
	unicastCodec   Codec = cborCodec{}
	multicastCodec Codec = newStructCodec()
)

// CodecFor returns the codec bound to an endpoint, per spec.md §4.1 ("the
// choice is fixed by endpoint+type and must match the server").
func CodecFor(endpoint proto.Endpoint) Codec {
	if endpoint == proto.MulticastControl {
		return multicastCodec
	}
	return unicastCodec
}

// DecodePayload decodes data into v using the codec for endpoint, wrapping
// any failure as ErrMalformedPayload.
func DecodePayload(endpoint proto.Endpoint, msgType proto.MessageType, data []byte, v interface{}) error {
	if err := CodecFor(endpoint).Decode(data, v); err != nil {
		return &ErrMalformedPayload{Endpoint: endpoint, Type: msgType, Err: err}
	}
	return nil
}

// EncodePayload encodes v using the codec for endpoint.
func EncodePayload(endpoint proto.Endpoint, v interface{}) ([]byte, error) {
	return CodecFor(endpoint).Encode(v)
}
