package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tristanseifert/lichtenstein-server-sub001/internal/proto"
)

func TestUnicastCodecRoundTrip(t *testing.T) {
	in := proto.AuthRequestPayload{
		NodeID:  "d290f1ee-6c54-4b01-90e6-d701748f0851",
		Methods: []string{"null"},
	}
	data, err := EncodePayload(proto.Authentication, in)
	require.NoError(t, err)

	var out proto.AuthRequestPayload
	require.NoError(t, DecodePayload(proto.Authentication, proto.AuthRequest, data, &out))
	assert.Equal(t, in, out)
}

func TestMulticastCodecRoundTrip(t *testing.T) {
	in := proto.McastDataSyncOutput{
		Channel: 3,
		Offset:  128,
		Words:   []byte{0, 0xff, 0x10, 0x20},
	}
	data, err := EncodePayload(proto.MulticastControl, in)
	require.NoError(t, err)

	var out proto.McastDataSyncOutput
	require.NoError(t, DecodePayload(proto.MulticastControl, proto.MccGetInfo, data, &out))
	assert.Equal(t, in, out)
}

func TestDecodePayloadWrapsMalformedData(t *testing.T) {
	var out proto.AuthRequestPayload
	err := DecodePayload(proto.Authentication, proto.AuthRequest, []byte{0xff, 0xff, 0xff}, &out)
	require.Error(t, err)

	var malformed *ErrMalformedPayload
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, proto.Authentication, malformed.Endpoint)
}

func TestCodecForSelectsByEndpoint(t *testing.T) {
	assert.Equal(t, multicastCodec, CodecFor(proto.MulticastControl))
	assert.Equal(t, unicastCodec, CodecFor(proto.Authentication))
	assert.Equal(t, unicastCodec, CodecFor(proto.PixelData))
}
