// Package noise implements the Noise-protocol-derived symmetric state
// and handshake patterns that bind a block-stream's transport key to
// its senders and recipients. It reuses internal/primitives for every
// actual cryptographic operation; this package only orchestrates them
// the way Noise specifies.
package noise

import (
	"crypto/hmac"
	"errors"
	"fmt"
	"hash"

	"golang.org/x/crypto/blake2s"

	"github.com/bernedogit/amber-sub001/internal/primitives"
)

// ErrHandshakeAuth is returned when an AEAD tag inside a Noise handshake
// message fails to verify.
var ErrHandshakeAuth = errors.New("noise: handshake authentication failed")

const hashLen = 32

// CipherState is Noise's CipherState object: a key (possibly not yet
// set) and a strictly increasing nonce counter.
type CipherState struct {
	key   primitives.Key
	n     uint64
	valid bool
}

// InitializeKey sets the cipher's key and resets its nonce counter.
func (c *CipherState) InitializeKey(k primitives.Key) {
	c.key = k
	c.n = 0
	c.valid = true
}

// HasKey reports whether InitializeKey has been called.
func (c *CipherState) HasKey() bool { return c.valid }

// Key returns the cipher's current key. Used when a handshake's output
// key is needed directly rather than through EncryptWithAD/DecryptWithAD,
// e.g. as a per-recipient authentication key for a block-stream.
func (c *CipherState) Key() primitives.Key { return c.key }

// EncryptWithAD seals pt under the current key/nonce and advances the
// nonce. If no key is set, it returns pt unchanged (Noise's
// "EncryptWithAd acts as the identity function" rule).
func (c *CipherState) EncryptWithAD(ad, pt []byte) ([]byte, error) {
	if !c.valid {
		out := make([]byte, len(pt))
		copy(out, pt)
		return out, nil
	}
	ct, err := primitives.AEADSealMulti(pt, ad, c.key, []primitives.Key{c.key}, c.n)
	if err != nil {
		return nil, fmt.Errorf("noise: EncryptWithAD: %w", err)
	}
	c.n++
	return ct, nil
}

// DecryptWithAD is the inverse of EncryptWithAD.
func (c *CipherState) DecryptWithAD(ad, ct []byte) ([]byte, error) {
	if !c.valid {
		out := make([]byte, len(ct))
		copy(out, ct)
		return out, nil
	}
	pt, err := primitives.AEADOpenMulti(ct, ad, c.key, c.key, 1, 0, c.n)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeAuth, err)
	}
	c.n++
	return pt, nil
}

// SymmetricState is Noise's SymmetricState: a CipherState plus a
// rolling chaining key and transcript hash.
type SymmetricState struct {
	cipher CipherState
	ck     [hashLen]byte
	h      [hashLen]byte
}

// NewSymmetric initializes h from protocolName (hashed down to 32 bytes
// if longer, else zero-padded), copies it into ck, and clears the
// cipher key.
func NewSymmetric(protocolName string, prologue []byte) *SymmetricState {
	s := &SymmetricState{}
	name := []byte(protocolName)
	if len(name) <= hashLen {
		copy(s.h[:], name)
	} else {
		copy(s.h[:], blake2sHash(nil, name))
	}
	s.ck = s.h
	s.MixHash(prologue)
	return s
}

func blake2sHash(key, data []byte) []byte {
	h, _ := blake2s.New256(key)
	h.Write(data) //nolint:errcheck
	return h.Sum(nil)
}

// MixHash folds data into the transcript hash: h <- H(h || data).
func (s *SymmetricState) MixHash(data []byte) {
	s.h = [hashLen]byte(blake2sHash(nil, append(append([]byte{}, s.h[:]...), data...)))
}

// hkdf2or3 is Noise's HKDF: HMAC-BLAKE2s-based extract-then-expand
// producing two or three chaining outputs from chainKey/ikm.
func hkdf2or3(chainKey [hashLen]byte, ikm []byte, numOutputs int) (o1, o2, o3 [hashLen]byte) {
	tempKey := hmacSum(chainKey[:], ikm)
	o1 = [hashLen]byte(hmacSum(tempKey, []byte{1}))
	if numOutputs >= 2 {
		o2 = [hashLen]byte(hmacSum(tempKey, append(append([]byte{}, o1[:]...), 2)))
	}
	if numOutputs >= 3 {
		o3 = [hashLen]byte(hmacSum(tempKey, append(append([]byte{}, o2[:]...), 3)))
	}
	return o1, o2, o3
}

func hmacSum(key, data []byte) []byte {
	mac := hmac.New(func() hash.Hash { h, _ := blake2s.New256(nil); return h }, key)
	mac.Write(data) //nolint:errcheck
	return mac.Sum(nil)
}

// MixKey performs ck, k <- HKDF(ck, ikm) and sets the cipher key.
func (s *SymmetricState) MixKey(ikm []byte) {
	ck, k, _ := hkdf2or3(s.ck, ikm, 2)
	s.ck = ck
	var key primitives.Key
	copy(key[:], k[:])
	s.cipher.InitializeKey(key)
}

// MixKeyAndHash performs the three-output HKDF used for pre-shared
// keys: the middle output is mixed into h, the last becomes the key.
func (s *SymmetricState) MixKeyAndHash(ikm []byte) {
	ck, temph, k := hkdf2or3(s.ck, ikm, 3)
	s.ck = ck
	s.MixHash(temph[:])
	var key primitives.Key
	copy(key[:], k[:])
	s.cipher.InitializeKey(key)
}

// EncryptAndHash encrypts pt (identity if no key yet) and mixes the
// resulting ciphertext into h.
func (s *SymmetricState) EncryptAndHash(pt []byte) ([]byte, error) {
	ct, err := s.cipher.EncryptWithAD(s.h[:], pt)
	if err != nil {
		return nil, err
	}
	s.MixHash(ct)
	return ct, nil
}

// DecryptAndHash is the inverse of EncryptAndHash. On tag failure it
// returns an error without mutating h.
func (s *SymmetricState) DecryptAndHash(ct []byte) ([]byte, error) {
	pt, err := s.cipher.DecryptWithAD(s.h[:], ct)
	if err != nil {
		return nil, err
	}
	s.MixHash(ct)
	return pt, nil
}

// Split derives the two transport cipher states once the handshake is
// finished: the initiator's first half becomes k_tx.
func (s *SymmetricState) Split() (tx, rx CipherState) {
	k1, k2, _ := hkdf2or3(s.ck, nil, 2)
	var key1, key2 primitives.Key
	copy(key1[:], k1[:])
	copy(key2[:], k2[:])
	tx.InitializeKey(key1)
	rx.InitializeKey(key2)
	return tx, rx
}

// HandshakeHash returns the final transcript hash, usable as a unique
// connection identifier.
func (s *SymmetricState) HandshakeHash() [hashLen]byte { return s.h }
