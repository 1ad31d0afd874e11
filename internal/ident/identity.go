// Package ident holds the node's immutable identity: a UUID and a guarded
// secret, both loaded once at startup (spec §3 "Node identity").
package ident

import (
	"encoding/base64"
	"fmt"

	"github.com/awnumar/memguard"
	"github.com/gofrs/uuid"
)

// MinSecretLength is the minimum accepted length, in bytes, of a decoded
// node secret.
const MinSecretLength = 16

// Identity is the node's UUID plus its node secret. The secret is held in a
// memguard.LockedBuffer for the process lifetime rather than a plain []byte,
// so it is never paged to swap and is wiped from memory on Destroy.
type Identity struct {
	UUID   uuid.UUID
	secret *memguard.LockedBuffer
}

// New validates and wraps a parsed UUID and decoded secret. It takes
// ownership of secretBytes and zeroes the caller's copy.
func New(id uuid.UUID, secretBytes []byte) (*Identity, error) {
	if len(secretBytes) < MinSecretLength {
		return nil, fmt.Errorf("ident: node secret must be at least %d bytes, got %d", MinSecretLength, len(secretBytes))
	}
	buf := memguard.NewBufferFromBytes(secretBytes)
	return &Identity{UUID: id, secret: buf}, nil
}

// FromConfig parses the string UUID and base64 secret as they appear in
// configuration (spec §6: id.uuid, id.secret).
func FromConfig(uuidStr, secretB64 string) (*Identity, error) {
	id, err := uuid.FromString(uuidStr)
	if err != nil {
		return nil, fmt.Errorf("ident: invalid id.uuid: %w", err)
	}
	secret, err := base64.StdEncoding.DecodeString(secretB64)
	if err != nil {
		return nil, fmt.Errorf("ident: invalid id.secret: %w", err)
	}
	return New(id, secret)
}

// Secret returns a read-only view of the node secret's bytes. The returned
// slice must not be retained past a call to Destroy.
func (i *Identity) Secret() []byte {
	return i.secret.Bytes()
}

// Destroy wipes the guarded secret. Call once at process shutdown.
func (i *Identity) Destroy() {
	i.secret.Destroy()
}

// String returns the canonical UUID string, used in log lines and in the
// AuthRequest payload.
func (i *Identity) String() string {
	return i.UUID.String()
}
