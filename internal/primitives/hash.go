package primitives

import (
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// HashLong computes a parametric hash of data with output length outLen
// (1..64 bytes). If key is non-empty the hash is keyed (up to 64 bytes
// of key). Callers use this as a 64-byte signature pre-hash (the key
// store's canonical hash), as a keyed 32-byte key mix (the hide inner
// key), and through Hash32.
func HashLong(outLen int, key []byte, data ...[]byte) ([]byte, error) {
	if outLen < 1 || outLen > 64 {
		return nil, fmt.Errorf("primitives: HashLong: output length %d outside [1,64]", outLen)
	}
	h, err := blake2b.New(outLen, key)
	if err != nil {
		return nil, fmt.Errorf("primitives: HashLong: %w", err)
	}
	for _, d := range data {
		h.Write(d) //nolint:errcheck // hash.Hash.Write never fails
	}
	return h.Sum(nil), nil
}

// Hash32 is the common case of HashLong(32, nil, data...), used to seed
// and ratchet KeyedRandom's state.
func Hash32(data ...[]byte) []byte {
	out, err := HashLong(32, nil, data...)
	if err != nil {
		// outLen is a fixed, valid constant; this cannot happen.
		panic(err)
	}
	return out
}
