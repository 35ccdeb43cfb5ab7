package primitives

import (
	"crypto/ed25519"
	"errors"
	"fmt"
)

// ErrSignatureInvalid is returned by Verify when the signature does not
// verify under the given public key.
var ErrSignatureInvalid = errors.New("primitives: signature invalid")

// Sign signs msg, prefixed with ctx (a fixed domain-separator string),
// under sec/pub. ctx binds signatures to their purpose so a signature
// produced for one context (e.g. a key self-signature) can never be
// replayed as valid for another (e.g. a document signature).
func Sign(ctx string, msg []byte, sec, pub Key) [SignatureSize]byte {
	priv := ed25519Private(sec, pub)
	sig := ed25519.Sign(priv, append([]byte(ctx), msg...))
	var out [SignatureSize]byte
	copy(out[:], sig)
	return out
}

// Verify checks a signature produced by Sign with the same ctx.
func Verify(ctx string, msg []byte, sig [SignatureSize]byte, pub Key) error {
	if !ed25519.Verify(ed25519.PublicKey(pub[:]), append([]byte(ctx), msg...), sig[:]) {
		return fmt.Errorf("primitives: Verify: %w", ErrSignatureInvalid)
	}
	return nil
}

// SignKeygen derives an Ed25519 key pair from a 32-byte seed, the same
// way DHKeygen derives an X25519 pair: deterministically, so that an
// identity's signing key can be regenerated from stored secret material
// without a separate on-disk representation.
func SignKeygen(seed Key) (sec, pub Key) {
	priv := ed25519.NewKeyFromSeed(seed[:])
	copy(sec[:], priv.Seed())
	copy(pub[:], priv.Public().(ed25519.PublicKey))
	return sec, pub
}

// ed25519Private reconstructs the full ed25519.PrivateKey (seed || pub)
// expected by crypto/ed25519 from our (sec-as-seed, pub) representation.
func ed25519Private(sec, pub Key) ed25519.PrivateKey {
	priv := make(ed25519.PrivateKey, ed25519.PrivateKeySize)
	copy(priv[:ed25519.SeedSize], sec[:])
	copy(priv[ed25519.SeedSize:], pub[:])
	return priv
}
