// Package header implements the two block-stream header formats: a
// password header (scrypt-derived key protecting a small encrypted
// parameter block) and a public/recipient-list header (one Noise-X
// handshake blob per recipient, protecting a shared transport key).
package header

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/bernedogit/amber-sub001/internal/primitives"
)

// ErrPasswordOrCorrupt is returned by ReadPasswordHeader when no scrypt
// cost in [0, shiftsMax] makes the parameter block decrypt: either the
// password is wrong, or the file is corrupt.
var ErrPasswordOrCorrupt = errors.New("header: wrong password or corrupt header")

// saltSize is the size of the random salt fed to scrypt.
const saltSize = 32

// paramBlockSize is the plaintext size of the password header's
// encrypted parameter block: a little-endian block size and block
// filler, four bytes each.
const paramBlockSize = 8

// WritePasswordHeader writes a password header to w: a random salt
// followed by the scrypt-derived key's encryption of blockSize and
// blockFiller. It returns the stream key and the nonce64 to use for the
// first block written after the header (1, since nonce 0 sealed the
// parameter block).
func WritePasswordHeader(w io.Writer, password []byte, blockSize, blockFiller uint32, shifts int, rng *primitives.KeyedRandom) (key primitives.Key, nonce64 uint64, err error) {
	var salt [saltSize]byte
	rng.GetBytes(salt[:])

	derived, err := primitives.KDFPassword(password, salt[:], shifts, 8, 1, primitives.KeySize)
	if err != nil {
		return key, 0, fmt.Errorf("header: WritePasswordHeader: %w", err)
	}
	copy(key[:], derived)

	var plain [paramBlockSize]byte
	binary.LittleEndian.PutUint32(plain[0:4], blockSize)
	binary.LittleEndian.PutUint32(plain[4:8], blockFiller)

	enc, err := primitives.AEADSealMulti(plain[:], nil, key, []primitives.Key{key}, 0)
	if err != nil {
		return key, 0, fmt.Errorf("header: WritePasswordHeader: %w", err)
	}

	if _, err := w.Write(salt[:]); err != nil {
		return key, 0, fmt.Errorf("header: WritePasswordHeader: %w", err)
	}
	if _, err := w.Write(enc); err != nil {
		return key, 0, fmt.Errorf("header: WritePasswordHeader: %w", err)
	}
	return key, 1, nil
}

// ReadPasswordHeader reads a password header from r, trying every
// scrypt cost from 0 through shiftsMax (inclusive) until the parameter
// block decrypts. It returns the recovered key, the nonce64 for the
// first data block, the block size/filler, and the shift count that
// worked (callers that re-derive the key, e.g. for re-keying, need it).
func ReadPasswordHeader(r io.Reader, password []byte, shiftsMax int) (key primitives.Key, nonce64 uint64, blockSize, blockFiller uint32, shiftsUsed int, err error) {
	var salt [saltSize]byte
	if _, err := io.ReadFull(r, salt[:]); err != nil {
		return key, 0, 0, 0, 0, fmt.Errorf("header: ReadPasswordHeader: reading salt: %w", err)
	}
	enc := make([]byte, paramBlockSize+primitives.TagSize)
	if _, err := io.ReadFull(r, enc); err != nil {
		return key, 0, 0, 0, 0, fmt.Errorf("header: ReadPasswordHeader: reading parameter block: %w", err)
	}

	for shifts := 0; shifts <= shiftsMax; shifts++ {
		derived, derr := primitives.KDFPassword(password, salt[:], shifts, 8, 1, primitives.KeySize)
		if derr != nil {
			continue
		}
		var candidate primitives.Key
		copy(candidate[:], derived)

		plain, oerr := primitives.AEADOpenMulti(enc, nil, candidate, candidate, 1, 0, 0)
		if oerr != nil {
			continue
		}
		bs := binary.LittleEndian.Uint32(plain[0:4])
		bf := binary.LittleEndian.Uint32(plain[4:8])
		if bf >= bs {
			continue
		}
		return candidate, 1, bs, bf, shifts, nil
	}
	return key, 0, 0, 0, 0, fmt.Errorf("header: ReadPasswordHeader: %w", ErrPasswordOrCorrupt)
}
