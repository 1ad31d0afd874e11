package mcast

import (
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/tristanseifert/lichtenstein-server-sub001/internal/proto"
)

// ErrKeyConflict is returned when a key id is already bound; the keystore
// never silently replaces a binding (spec.md §3 invariant 4).
var ErrKeyConflict = fmt.Errorf("mcast: key id already bound")

// ErrUnsupportedKeyType is returned for any wrapper whose Type is not
// KeyTypeChaCha20Poly1305 (spec.md §3 invariant 5).
var ErrUnsupportedKeyType = fmt.Errorf("mcast: unsupported key type")

// ErrKeyTooShort is returned when the key or iv field is shorter than the
// protocol minimum (spec.md §8 boundary behaviors).
var ErrKeyTooShort = fmt.Errorf("mcast: key or iv shorter than minimum")

// groupKey is the installed form of a KeyWrap: a ready-to-use AEAD plus the
// raw iv/nonce-seed bytes carried as associated data on every datagram
// encrypted under this id.
type groupKey struct {
	aead   chacha20poly1305.AEAD
	ivSeed []byte
}

// Keystore is the insert-only key table shared between the unicast
// (rekey/get-key) and multicast (decrypt) threads (spec.md §5: "guarded by
// a mutex (keystore) and atomic (key id)").
type Keystore struct {
	mu   sync.Mutex
	keys map[uint32]*groupKey

	currentKeyID atomic.Uint32
}

// NewKeystore returns an empty Keystore.
func NewKeystore() *Keystore {
	return &Keystore{keys: make(map[uint32]*groupKey)}
}

// CurrentKeyID returns the id last set by SetCurrentKeyID (SetGroupInfo's
// initial value, or the most recent rekey).
func (k *Keystore) CurrentKeyID() uint32 {
	return k.currentKeyID.Load()
}

// SetCurrentKeyID is called by SetGroupInfo at bootstrap and by a
// successful MCC_REKEY; a plain MCC_GET_KEY_ACK must NOT call this
// (spec.md SUPPLEMENTED FEATURES #2 / original_source handleGetKey vs
// handleRekey).
func (k *Keystore) SetCurrentKeyID(id uint32) {
	k.currentKeyID.Store(id)
}

// Install validates and inserts a key under id in one critical section, so
// a concurrent lookup never observes a half-installed key and two racing
// installs of the same id cannot both "win" (spec.md SUPPLEMENTED FEATURES
// #5, closing the original's check-then-overwrite race).
func (k *Keystore) Install(id uint32, wrap proto.KeyWrap) error {
	if wrap.Type != proto.KeyTypeChaCha20Poly1305 {
		return ErrUnsupportedKeyType
	}
	if len(wrap.Key) < proto.MinKeyLength || len(wrap.IV) < proto.MinIVLength {
		return ErrKeyTooShort
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if _, exists := k.keys[id]; exists {
		return ErrKeyConflict
	}

	aead, err := chacha20poly1305.New(wrap.Key[:chacha20poly1305.KeySize])
	if err != nil {
		return fmt.Errorf("mcast: construct AEAD for key %d: %w", id, err)
	}
	k.keys[id] = &groupKey{aead: aead, ivSeed: append([]byte(nil), wrap.IV...)}
	return nil
}

// Lookup returns the installed AEAD for id, or ok=false if no key is bound
// (spec.md §8 invariant 3: "for any received multicast datagram decrypted
// with key id k, k exists in the keystore at that instant").
func (k *Keystore) Lookup(id uint32) (aead chacha20poly1305.AEAD, ivSeed []byte, ok bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	gk, exists := k.keys[id]
	if !exists {
		return nil, nil, false
	}
	return gk.aead, gk.ivSeed, true
}

// Len reports the number of installed keys, for tests.
func (k *Keystore) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.keys)
}
