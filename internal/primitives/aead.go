package primitives

import (
	"crypto/subtle"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/poly1305"
)

// AEADSealMulti encrypts plaintext under (keyEnc, nonce64, blockCounter=1)
// and produces one 16-byte authentication tag per key in keysAuth, so
// that any one of up to len(keysAuth) recipients can independently
// verify and decrypt. Each tag is keyed by the first 32 bytes of
// Keystream(keysAuth[i], nonce64, 0) (block 0 is otherwise unused
// keystream, reserved for exactly this purpose).
//
// The returned slice is ciphertext (len(plaintext) bytes) followed by
// len(keysAuth) concatenated 16-byte tags, matching the on-disk block
// layout: payload || tag_0 || tag_1 || ... || tag_{n-1}.
func AEADSealMulti(plaintext, ad []byte, keyEnc Key, keysAuth []Key, nonce64 uint64) ([]byte, error) {
	if len(keysAuth) == 0 {
		return nil, fmt.Errorf("primitives: AEADSealMulti requires at least one auth key")
	}

	out := make([]byte, len(plaintext)+len(keysAuth)*TagSize)
	ciphertext := out[:len(plaintext)]
	if err := StreamXOR(ciphertext, plaintext, keyEnc, nonce64, 1); err != nil {
		return nil, err
	}

	for i, ka := range keysAuth {
		tag, err := macTag(ka, nonce64, ad, ciphertext)
		if err != nil {
			return nil, err
		}
		copy(out[len(plaintext)+i*TagSize:], tag[:])
	}
	return out, nil
}

// AEADOpenMulti verifies only the tag belonging to authIndex (the
// caller's own recipient slot) among the nAuth tags trailing in, then
// decrypts the ciphertext portion. It never computes or checks any tag
// other than authIndex's.
func AEADOpenMulti(in, ad []byte, keyEnc, keyAuth Key, nAuth, authIndex int, nonce64 uint64) ([]byte, error) {
	if nAuth <= 0 || authIndex < 0 || authIndex >= nAuth {
		return nil, fmt.Errorf("primitives: AEADOpenMulti: invalid auth index %d of %d", authIndex, nAuth)
	}
	overhead := nAuth * TagSize
	if len(in) < overhead {
		return nil, fmt.Errorf("primitives: AEADOpenMulti: input shorter than tag overhead")
	}

	ciphertext := in[:len(in)-overhead]
	tags := in[len(in)-overhead:]
	wantTag := tags[authIndex*TagSize : authIndex*TagSize+TagSize]

	gotTag, err := macTag(keyAuth, nonce64, ad, ciphertext)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare(gotTag[:], wantTag) != 1 {
		return nil, fmt.Errorf("primitives: AEADOpenMulti: tag mismatch")
	}

	plaintext := make([]byte, len(ciphertext))
	if err := StreamXOR(plaintext, ciphertext, keyEnc, nonce64, 1); err != nil {
		return nil, err
	}
	return plaintext, nil
}

// macTag computes the one-time Poly1305 tag over
// ad || zeropad16 || ciphertext || zeropad16 || u64le(len(ad)) || u64le(len(ciphertext)),
// keyed by the first 32 bytes of Keystream(key, nonce64, 0), following
// the same construction as the standard ChaCha20-Poly1305 AEAD.
func macTag(key Key, nonce64 uint64, ad, ciphertext []byte) (Tag, error) {
	var tag Tag
	macKeyBytes, err := Keystream(32, key, nonce64, 0)
	if err != nil {
		return tag, err
	}
	var macKey [32]byte
	copy(macKey[:], macKeyBytes)

	msg := macMessage(ad, ciphertext)
	var out [16]byte
	poly1305.Sum(&out, msg, &macKey)
	tag = Tag(out)
	return tag, nil
}

func macMessage(ad, ciphertext []byte) []byte {
	padAD := pad16(len(ad))
	padCT := pad16(len(ciphertext))

	msg := make([]byte, 0, len(ad)+padAD+len(ciphertext)+padCT+16)
	msg = append(msg, ad...)
	msg = append(msg, make([]byte, padAD)...)
	msg = append(msg, ciphertext...)
	msg = append(msg, make([]byte, padCT)...)

	var lens [16]byte
	binary.LittleEndian.PutUint64(lens[0:8], uint64(len(ad)))
	binary.LittleEndian.PutUint64(lens[8:16], uint64(len(ciphertext)))
	msg = append(msg, lens[:]...)
	return msg
}

func pad16(n int) int {
	if n%16 == 0 {
		return 0
	}
	return 16 - n%16
}
