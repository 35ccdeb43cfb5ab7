package primitives

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// RandomBytes fills out with cryptographically secure random bytes from
// the process-wide CSPRNG.
func RandomBytes(out []byte) error {
	if _, err := io.ReadFull(rand.Reader, out); err != nil {
		return fmt.Errorf("primitives: RandomBytes: %w", err)
	}
	return nil
}

// KeyedRandom is a deterministic-from-seed PRNG, seeded from system
// randomness plus caller-supplied entropy (e.g. a sender's secret key
// or a password). Every sensitive random choice in this module
// (ephemeral keys, header salts, per-block filler) goes through a
// KeyedRandom instance owned exclusively by the stream that needs it,
// never the bare process CSPRNG, so that callers auditing a capture can
// reason about exactly which secret fed which random choice.
//
// KeyedRandom is a BLAKE2b-based DRBG: each call to GetBytes advances an
// internal counter and is keyed by the running state, so it never
// reuses output even if called many times in a row.
type KeyedRandom struct {
	mu      sync.Mutex
	state   [32]byte
	counter uint64
}

// NewKeyedRandom seeds a KeyedRandom from the process CSPRNG mixed with
// entropy (arbitrary additional secret/context bytes, may be empty).
func NewKeyedRandom(entropy ...[]byte) (*KeyedRandom, error) {
	var seed [32]byte
	if err := RandomBytes(seed[:]); err != nil {
		return nil, err
	}
	data := append([][]byte{seed[:]}, entropy...)
	state := Hash32(data...)

	kr := &KeyedRandom{}
	copy(kr.state[:], state)
	return kr, nil
}

// GetBytes fills out with the next bytes of the keyed random stream.
func (kr *KeyedRandom) GetBytes(out []byte) {
	kr.mu.Lock()
	defer kr.mu.Unlock()

	need := len(out)
	pos := 0
	for pos < need {
		h, _ := blake2b.New256(kr.state[:])
		var ctr [8]byte
		for i := 0; i < 8; i++ {
			ctr[i] = byte(kr.counter >> (8 * i))
		}
		h.Write(ctr[:]) //nolint:errcheck
		block := h.Sum(nil)
		kr.counter++

		n := copy(out[pos:], block)
		pos += n
	}
	// Ratchet the internal state forward so a compromise of a past
	// output block cannot be used to recover earlier or later output.
	next := Hash32(kr.state[:], []byte("amber-keyed-random-ratchet"))
	copy(kr.state[:], next)
}

// GetKey returns a fresh 32-byte key from the keyed random stream.
func (kr *KeyedRandom) GetKey() Key {
	var k Key
	kr.GetBytes(k[:])
	return k
}
