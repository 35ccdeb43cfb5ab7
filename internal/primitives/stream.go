package primitives

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20"
)

// StreamXOR XORs src into dst using the keystream of key at (nonce64,
// blockCounter). It is deterministic: the same (key, nonce64,
// blockCounter) always produces the same keystream, and distinct
// blockCounter values for the same (key, nonce64) pair address disjoint
// regions of one logical 2^64-block keystream.
//
// By convention (shared with AEADSealMulti/AEADOpenMulti) the first
// 64-byte block of the stream for a given (key, nonce64, 0) is reserved
// for deriving the one-time MAC key of that same pair and must never be
// used as keystream for payload data.
//
// dst and src may be the same slice (in-place XOR); dst must have at
// least len(src) bytes.
func StreamXOR(dst, src []byte, key Key, nonce64, blockCounter uint64) error {
	c, err := newBlockCipher(key, nonce64, blockCounter)
	if err != nil {
		return err
	}
	c.XORKeyStream(dst[:len(src)], src)
	return nil
}

// Keystream returns n bytes of keystream for (key, nonce64, blockCounter).
func Keystream(n int, key Key, nonce64, blockCounter uint64) ([]byte, error) {
	out := make([]byte, n)
	if err := StreamXOR(out, out, key, nonce64, blockCounter); err != nil {
		return nil, err
	}
	return out, nil
}

// newBlockCipher folds the spec's 64-bit nonce and 64-bit block counter
// onto golang.org/x/crypto/chacha20's IETF-shaped 96-bit-nonce/32-bit-
// counter API: the high 32 bits of blockCounter are mixed into the
// cipher's 96-bit nonce (alongside nonce64) and the low 32 bits become
// the cipher's native block counter. For a fixed nonce64 this still
// gives every blockCounter value its own, never-repeating keystream
// window, including across the 32-bit wraparound, without re-deriving
// ChaCha20 by hand.
func newBlockCipher(key Key, nonce64, blockCounter uint64) (*chacha20.Cipher, error) {
	var nonce96 [12]byte
	binary.BigEndian.PutUint64(nonce96[0:8], nonce64)
	binary.BigEndian.PutUint32(nonce96[8:12], uint32(blockCounter>>32))

	c, err := chacha20.NewUnauthenticatedCipher(key[:], nonce96[:])
	if err != nil {
		return nil, fmt.Errorf("primitives: create block cipher: %w", err)
	}
	c.SetCounter(uint32(blockCounter))
	return c, nil
}
