package header

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bernedogit/amber-sub001/internal/noise"
	"github.com/bernedogit/amber-sub001/internal/primitives"
)

// WriteSpoofHeader writes a public header whose single genuine entry is
// built so that self — and only self — can later open it with
// ReadPublicHeader, at which point it will appear to have been sent by
// target. self needs no cooperation or secret from target to build
// this: the entry's handshake math uses self's own key pair for every
// step that would normally need a counterparty's private key, and
// target's public key only where the wire format calls for an
// already-public value. dummyCount additional all-random entries of
// the same wire size are interleaved after the genuine one, so an
// outside observer sees an ordinary-looking multi-recipient header and
// has no way to single out which entry, if any, is real.
//
// This exists for plausible deniability under coercion: someone
// compelled to hand over their own secret key can point to a header
// built this way and claim it is a message they received from target,
// never admitting (and in fact it being impossible to prove otherwise)
// that they authored it themselves.
//
// The construction does not fit the generic request/response Noise-X
// handshake in internal/noise.Handshake: its ephemeral-static and
// static-static DH steps each need a different "remote" public key
// (self's own, then target's), which the single shared remote-static
// field in a normal handshake run cannot express. It is built directly
// on noise.SymmetricState instead, following the X pattern's token
// order by hand.
func WriteSpoofHeader(w io.Writer, self *noise.KeyPair, target primitives.Key, dummyCount int, blockSize, blockFiller uint32, rng *primitives.KeyedRandom) (key primitives.Key, nonce64 uint64, authKey primitives.Key, err error) {
	if dummyCount < 0 {
		return key, 0, authKey, fmt.Errorf("header: WriteSpoofHeader: negative dummy count")
	}
	total := 1 + dummyCount
	if total > 255 {
		return key, 0, authKey, fmt.Errorf("header: WriteSpoofHeader: too many entries (%d > 255)", total)
	}

	var symk [symkPlainSize]byte
	rng.GetBytes(symk[:primitives.KeySize])
	symk[primitives.KeySize] = byte(total)

	blob, ka, err := writeSpoofedRecipientBlob(self, target, symk[:], rng)
	if err != nil {
		return key, 0, authKey, fmt.Errorf("header: WriteSpoofHeader: %w", err)
	}
	if _, err := w.Write(blob); err != nil {
		return key, 0, authKey, fmt.Errorf("header: WriteSpoofHeader: %w", err)
	}

	authKeys := make([]primitives.Key, total)
	authKeys[0] = ka
	for i := 1; i < total; i++ {
		dummy := make([]byte, recipientBlobSize)
		rng.GetBytes(dummy)
		if _, err := w.Write(dummy); err != nil {
			return key, 0, authKey, fmt.Errorf("header: WriteSpoofHeader: %w", err)
		}
		rng.GetBytes(authKeys[i][:])
	}

	copy(key[:], symk[:primitives.KeySize])

	var plain [paramPlainSize]byte
	binary.LittleEndian.PutUint32(plain[0:4], blockSize)
	binary.LittleEndian.PutUint32(plain[4:8], blockFiller)

	enc, err := primitives.AEADSealMulti(plain[:], nil, key, authKeys, 0)
	if err != nil {
		return key, 0, authKey, fmt.Errorf("header: WriteSpoofHeader: %w", err)
	}
	if _, err := w.Write(enc); err != nil {
		return key, 0, authKey, fmt.Errorf("header: WriteSpoofHeader: %w", err)
	}
	return key, 1, ka, nil
}

// writeSpoofedRecipientBlob builds one Noise-X-shaped message with
// self and target's roles swapped relative to writeRecipientBlob: the
// transcript hashes self's own static key where a normal handshake
// would hash the recipient's, the ephemeral-static DH step uses self's
// own static public key where it would normally use the recipient's,
// the encrypted static-key field carries target's public key instead
// of self's, and the final static-static DH uses self's real secret
// against target's public key. The resulting bytes are byte-for-byte
// what ReadPublicHeader expects from a genuine entry addressed to
// self: its premessage always mixes the reader's own static key, which
// here is exactly what was mixed at write time.
func writeSpoofedRecipientBlob(self *noise.KeyPair, target primitives.Key, symk []byte, rng *primitives.KeyedRandom) (blob []byte, ka primitives.Key, err error) {
	s := noise.NewSymmetric("Noise_X_25519_ChaChaPoly_BLAKE2s", nil)
	s.MixHash(self.Pub[:])

	var seed, esSec, esPub primitives.Key
	for {
		rng.GetBytes(seed[:])
		esSec, esPub = primitives.DHKeygen(seed)
		if _, ok := primitives.EncodePublicElligator(esPub); ok {
			break
		}
	}
	repr, _ := primitives.EncodePublicElligator(esPub)

	out := append([]byte{}, repr[:]...)
	s.MixHash(repr[:])

	sh, err := primitives.DHShared(self.Pub, esSec)
	if err != nil {
		return nil, ka, fmt.Errorf("spoof handshake: %w", err)
	}
	s.MixKey(sh[:])

	ct, err := s.EncryptAndHash(target[:])
	if err != nil {
		return nil, ka, err
	}
	out = append(out, ct...)

	sh, err = primitives.DHShared(target, self.Sec)
	if err != nil {
		return nil, ka, fmt.Errorf("spoof handshake: %w", err)
	}
	s.MixKey(sh[:])

	ct, err = s.EncryptAndHash(symk)
	if err != nil {
		return nil, ka, err
	}
	out = append(out, ct...)

	tx, _ := s.Split()
	return out, tx.Key(), nil
}
