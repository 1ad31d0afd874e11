package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tristanseifert/lichtenstein-server-sub001/internal/proto"
)

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := Header{
		Version:     proto.ProtocolVersion,
		Endpoint:    proto.PixelData,
		MessageType: proto.PixData,
		Tag:         42,
		Length:      7,
	}
	buf := make([]byte, HeaderSize)
	h.Encode(buf)

	got, err := DecodeHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestDecodeHeaderRejectsBadVersion(t *testing.T) {
	buf := make([]byte, HeaderSize)
	buf[0] = proto.ProtocolVersion + 1
	_, err := DecodeHeader(buf)
	require.ErrorIs(t, err, ErrBadVersion)
}

func TestDecodeHeaderRejectsShortBuffer(t *testing.T) {
	_, err := DecodeHeader(make([]byte, HeaderSize-1))
	require.Error(t, err)
}

func TestWriteMessageRejectsOversizePayload(t *testing.T) {
	var buf bytes.Buffer
	payload := make([]byte, MaxPayloadSize+1)
	err := WriteMessage(&buf, proto.PixelData, proto.PixData, 1, payload)
	require.ErrorIs(t, err, ErrOversizePayload)
}

func TestWriteMessageAcceptsMaxSizePayload(t *testing.T) {
	var buf bytes.Buffer
	payload := make([]byte, MaxPayloadSize)
	err := WriteMessage(&buf, proto.PixelData, proto.PixData, 1, payload)
	require.NoError(t, err)

	hdr, got, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint16(MaxPayloadSize), hdr.Length)
	assert.Len(t, got, MaxPayloadSize)
}

func TestReadMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello world")
	require.NoError(t, WriteMessage(&buf, proto.Authentication, proto.AuthRequest, 9, payload))

	hdr, got, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, proto.Authentication, hdr.Endpoint)
	assert.Equal(t, proto.AuthRequest, hdr.MessageType)
	assert.Equal(t, uint8(9), hdr.Tag)
	assert.Equal(t, payload, got)
}

func TestReadMessageShortPayloadIsFatal(t *testing.T) {
	var buf bytes.Buffer
	hdr := Header{Version: proto.ProtocolVersion, Length: 10}
	hdrBuf := make([]byte, HeaderSize)
	hdr.Encode(hdrBuf)
	buf.Write(hdrBuf)
	buf.Write([]byte("short"))

	_, _, err := ReadMessage(&buf)
	require.Error(t, err)
}
