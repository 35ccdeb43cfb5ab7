package header

import (
	"encoding/binary"

	"github.com/bernedogit/amber-sub001/internal/primitives"
)

// InnerKeyFromPassword derives the key for a second, hidden layer
// (package hide) from a second password, salted with the already
// established outer stream key and nonce so that the inner key is
// bound to this specific file rather than reusable across files
// sharing the same password.
func InnerKeyFromPassword(outerKey primitives.Key, outerNonce64 uint64, password []byte, shifts int) (primitives.Key, error) {
	var salt [primitives.KeySize + 8]byte
	copy(salt[:primitives.KeySize], outerKey[:])
	binary.LittleEndian.PutUint64(salt[primitives.KeySize:], outerNonce64)

	derived, err := primitives.KDFPassword(password, salt[:], shifts, 8, 1, primitives.KeySize)
	if err != nil {
		return primitives.Key{}, err
	}
	var key primitives.Key
	copy(key[:], derived)
	return key, nil
}

// InnerKeyFromDH derives the inner key for the public-key hide variant
// from an X25519 shared secret between the sender's static secret and
// a second recipient's public key, mixed with the outer stream key so
// the inner key changes from file to file even when the same second
// recipient is reused.
func InnerKeyFromDH(senderSec primitives.Key, rx2Pub primitives.Key, outerKey primitives.Key) (primitives.Key, error) {
	shared, err := primitives.DHShared(rx2Pub, senderSec)
	if err != nil {
		return primitives.Key{}, err
	}
	mixed, err := primitives.HashLong(primitives.KeySize, shared[:], outerKey[:])
	if err != nil {
		return primitives.Key{}, err
	}
	var key primitives.Key
	copy(key[:], mixed)
	return key, nil
}
