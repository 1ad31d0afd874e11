package auth

import (
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tristanseifert/lichtenstein-server-sub001/internal/ident"
)

func TestNullResponderAcceptsOnlyMethodNull(t *testing.T) {
	data, err := NullResponder(MethodNull)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestNullResponderRejectsOtherMethods(t *testing.T) {
	_, err := NullResponder("srp6a")
	assert.ErrorContains(t, err, "unsupported method")
}

func TestNewOffersOnlyMethodNull(t *testing.T) {
	id, err := ident.New(uuid.Must(uuid.NewV4()), make([]byte, ident.MinSecretLength))
	require.NoError(t, err)
	defer id.Destroy()

	sm := New(id, nil)
	assert.Equal(t, []string{MethodNull}, sm.Methods)
	assert.Same(t, id, sm.ID)
}
