package ident

import (
	"encoding/base64"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsShortSecret(t *testing.T) {
	id := uuid.Must(uuid.NewV4())
	_, err := New(id, []byte("tooshort"))
	assert.ErrorContains(t, err, "at least 16 bytes")
}

func TestNewAcceptsBoundarySecretLength(t *testing.T) {
	id := uuid.Must(uuid.NewV4())
	secret := make([]byte, MinSecretLength)
	got, err := New(id, secret)
	require.NoError(t, err)
	defer got.Destroy()
	assert.Equal(t, id, got.UUID)
	assert.Len(t, got.Secret(), MinSecretLength)
}

func TestFromConfigRejectsInvalidUUID(t *testing.T) {
	_, err := FromConfig("not-a-uuid", base64.StdEncoding.EncodeToString(make([]byte, 16)))
	assert.ErrorContains(t, err, "invalid id.uuid")
}

func TestFromConfigRejectsInvalidBase64Secret(t *testing.T) {
	id := uuid.Must(uuid.NewV4())
	_, err := FromConfig(id.String(), "not-valid-base64!!")
	assert.ErrorContains(t, err, "invalid id.secret")
}

func TestFromConfigRoundTrip(t *testing.T) {
	id := uuid.Must(uuid.NewV4())
	secret := []byte("0123456789abcdef")
	encoded := base64.StdEncoding.EncodeToString(secret)

	got, err := FromConfig(id.String(), encoded)
	require.NoError(t, err)
	defer got.Destroy()

	assert.Equal(t, id.String(), got.String())
	assert.Equal(t, secret, got.Secret())
}

func TestDestroyTwiceDoesNotPanic(t *testing.T) {
	id := uuid.Must(uuid.NewV4())
	secret := make([]byte, MinSecretLength)
	for i := range secret {
		secret[i] = byte(i + 1)
	}
	got, err := New(id, secret)
	require.NoError(t, err)

	got.Destroy()
	assert.NotPanics(t, func() {
		got.Destroy()
	})
}
