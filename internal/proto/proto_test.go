package proto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPixelFormatBytesPerPixel(t *testing.T) {
	assert.Equal(t, 3, PixFormatRGB.BytesPerPixel())
	assert.Equal(t, 4, PixFormatRGBW.BytesPerPixel())
	assert.Equal(t, 0, PixelFormat(2).BytesPerPixel())
}

func TestPixelFormatValid(t *testing.T) {
	assert.True(t, PixFormatRGB.Valid())
	assert.True(t, PixFormatRGBW.Valid())
	assert.False(t, PixelFormat(2).Valid())
}

func TestEndpointString(t *testing.T) {
	assert.Equal(t, "Authentication", Authentication.String())
	assert.Equal(t, "PixelData", PixelData.String())
	assert.Equal(t, "MulticastControl", MulticastControl.String())
	assert.Equal(t, "Unknown", Endpoint(99).String())
}

func TestStatusZeroIsSuccess(t *testing.T) {
	assert.Equal(t, Status(0), AuthSuccess)
	assert.Equal(t, Status(0), PixSuccess)
	assert.Equal(t, Status(0), MccSuccess)
}
