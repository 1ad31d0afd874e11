// Package proto defines the endpoint/message-type/status constants and the
// typed payload structures carried inside framed messages (spec.md §6).
package proto

// ProtocolVersion is the only version byte the wire header accepts.
const ProtocolVersion = 1

// Endpoint identifies a logical destination within the protocol. It is not
// a network endpoint (spec.md GLOSSARY).
type Endpoint byte

const (
	Authentication Endpoint = 0
	PixelData      Endpoint = 1
	MulticastControl Endpoint = 2
)

func (e Endpoint) String() string {
	switch e {
	case Authentication:
		return "Authentication"
	case PixelData:
		return "PixelData"
	case MulticastControl:
		return "MulticastControl"
	default:
		return "Unknown"
	}
}

// MessageType is the per-endpoint message type byte. The numeric values are
// only meaningful within a given Endpoint's namespace.
type MessageType byte

// Authentication endpoint message types.
const (
	AuthRequest MessageType = iota + 1
	AuthRequestAck
	AuthResponse
	AuthResponseAck
)

// PixelData endpoint message types.
const (
	PixSubscribe MessageType = iota + 1
	PixSubscribeAck
	PixUnsubscribe
	PixUnsubscribeAck
	PixData
	PixDataAck
)

// MulticastControl endpoint message types.
const (
	MccGetInfo MessageType = iota + 1
	MccGetInfoAck
	MccGetKey
	MccGetKeyAck
	MccRekey
	MccRekeyAck
)

// Status is a generic per-endpoint result code. Zero always means success;
// any other value is a failure, optionally carrying a server-defined
// numeric code (spec.md §6).
type Status uint8

const (
	AuthSuccess Status = 0
	PixSuccess  Status = 0
	MccSuccess  Status = 0
)

// PixelFormat is the per-channel pixel encoding (spec.md §6).
type PixelFormat uint8

const (
	PixFormatRGB  PixelFormat = 0
	PixFormatRGBW PixelFormat = 1
)

// BytesPerPixel returns the wire/storage size of one pixel in this format,
// or 0 if the format is not one of the two accepted values.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case PixFormatRGB:
		return 3
	case PixFormatRGBW:
		return 4
	default:
		return 0
	}
}

func (f PixelFormat) Valid() bool {
	return f == PixFormatRGB || f == PixFormatRGBW
}

// KeyType identifies the AEAD construction a multicast key wrapper uses.
// Only KeyTypeChaCha20Poly1305 is accepted (spec.md §3 invariant 5).
type KeyType uint32

const KeyTypeChaCha20Poly1305 KeyType = 1

// MinKeyLength and MinIVLength are the minimum accepted lengths for a key
// wrapper's key and iv/nonce-seed fields (spec.md §8 boundary behaviors).
const (
	MinKeyLength = 32
	MinIVLength  = 16
)

// --- Unicast payloads (codec A: cbor) ---

// AuthRequestPayload is sent SEND_REQ -> READ_REQ_ACK (spec.md §4.3).
type AuthRequestPayload struct {
	NodeID  string   `cbor:"node_id"`
	Methods []string `cbor:"methods"`
}

// AuthRequestAckPayload is the server's reply naming the chosen method.
type AuthRequestAckPayload struct {
	Status Status `cbor:"status"`
	Method string `cbor:"method"`
}

// AuthResponsePayload carries the method-specific response. For the
// baseline "null" method, Data is empty.
type AuthResponsePayload struct {
	Data []byte `cbor:"data"`
}

// AuthResponseAckPayload concludes the auth state machine.
type AuthResponseAckPayload struct {
	Status Status `cbor:"status"`
}

// PixSubscribePayload requests a subscription for one output channel.
type PixSubscribePayload struct {
	Channel uint32      `cbor:"channel"`
	Length  uint32      `cbor:"length"`
	Format  PixelFormat `cbor:"format"`
	Start   uint32      `cbor:"start"`
}

// PixSubscribeAckPayload carries the server-assigned subscription token.
type PixSubscribeAckPayload struct {
	Status         Status `cbor:"status"`
	SubscriptionID uint32 `cbor:"subscription_id"`
}

// PixUnsubscribePayload releases a previously granted subscription.
type PixUnsubscribePayload struct {
	Channel        uint32 `cbor:"channel"`
	SubscriptionID uint32 `cbor:"subscription_id"`
}

// PixUnsubscribeAckPayload acknowledges an unsubscribe.
type PixUnsubscribeAckPayload struct {
	Status Status `cbor:"status"`
}

// PixDataPayload carries pixel bytes for one channel (spec.md §4.6).
type PixDataPayload struct {
	Channel uint32 `cbor:"channel"`
	Offset  uint32 `cbor:"offset"`
	Pixels  []byte `cbor:"pixels"`
}

// PixDataAckPayload is replied on the same tag as the PixData it acknowledges.
type PixDataAckPayload struct {
	Channel uint32 `cbor:"channel"`
}

// --- Multicast control payloads (codec B: zero-copy structural) ---

// KeyWrap is the on-wire form of a symmetric group key (spec.md §6).
type KeyWrap struct {
	Type KeyType `codec:"type"`
	Key  []byte  `codec:"key"`
	IV   []byte  `codec:"iv"`
}

// McastGetInfoPayload requests the multicast group's address/port/key.
type McastGetInfoPayload struct{}

// McastGetInfoAckPayload describes the group to join.
type McastGetInfoAckPayload struct {
	Status       Status `codec:"status"`
	GroupAddress string `codec:"group_address"`
	GroupPort    uint16 `codec:"group_port"`
	InitialKeyID uint32 `codec:"initial_key_id"`
}

// McastGetKeyPayload requests a specific key by id.
type McastGetKeyPayload struct {
	KeyID uint32 `codec:"key_id"`
}

// McastGetKeyAckPayload carries the requested key.
type McastGetKeyAckPayload struct {
	Status Status  `codec:"status"`
	KeyID  uint32  `codec:"key_id"`
	Key    KeyWrap `codec:"key"`
}

// McastRekeyPayload installs a new group key and moves currentKeyId.
type McastRekeyPayload struct {
	KeyID   uint32  `codec:"key_id"`
	KeyData KeyWrap `codec:"key_data"`
}

// McastRekeyAckPayload replies to a rekey on the same tag.
type McastRekeyAckPayload struct {
	Status Status `codec:"status"`
	KeyID  uint32 `codec:"key_id"`
}

// McastDataSyncOutput is the multicast data-plane frame: time-synchronized
// bulk pixel bytes for one channel, packed into 4-byte 0xWWRRGGBB words
// (spec.md §6).
type McastDataSyncOutput struct {
	Channel uint32 `codec:"channel"`
	Offset  uint32 `codec:"offset"`
	Words   []byte `codec:"words"`
}
