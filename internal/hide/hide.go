// Package hide implements steganographic hiding of one file's contents
// inside the filler region of another, already-encrypted block-stream.
// The filler bytes a block-stream already scatters as random padding
// are used to carry a second, independently encrypted payload instead:
// without the inner key, the hidden bytes are indistinguishable from
// the outer stream's ordinary filler.
package hide

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/bernedogit/amber-sub001/internal/primitives"
)

const tagSize = primitives.TagSize

// ndelta marks the terminal block of the outer stream, exactly as in
// package blockstream: it is added to the nonce exactly once, at the
// genuine end, so truncation or extension of the carrier file always
// fails authentication instead of silently losing hidden bytes.
const ndelta = uint64(1) << 63

const (
	blockTypeFirst    = 1
	blockTypeMiddle   = 2
	blockTypeTerminal = 3
)

var (
	// ErrNoSpace is returned when the bogus (carrier) file doesn't have
	// enough blocks to hold the real (hidden) file in its filler
	// regions.
	ErrNoSpace = errors.New("hide: not enough filler space in the carrier file to hide the real file")
	// ErrFillerTooSmall is returned when blockFiller leaves no room for
	// the inner 8-byte size prefix and its authentication tag.
	ErrFillerTooSmall = errors.New("hide: block filler is too small to hide anything")
)

// Write produces a doubly-encrypted block-stream on w: the visible
// content is bogus, encrypted under outerKey/outerAuthKeysW exactly
// like an ordinary block-stream; the bytes of real are packed into
// each block's filler region, themselves encrypted first under
// innerKey, so the result opens as bogus under the outer key and only
// reveals real to someone who additionally has innerKey.
//
// bogus and real must support Seek so their total sizes can be checked
// against the carrier's capacity before anything is written.
func Write(w io.Writer, outerKey primitives.Key, outerAuthKeysW []primitives.Key, outerNonce64 uint64, blockSize, blockFiller int, bogus, real io.ReadSeeker, innerKey primitives.Key, rng *primitives.KeyedRandom) error {
	if blockFiller <= 8+tagSize {
		return fmt.Errorf("hide: %w", ErrFillerTooSmall)
	}

	sz1, err := sizeOf(bogus)
	if err != nil {
		return fmt.Errorf("hide: carrier file: %w", err)
	}
	sz2, err := sizeOf(real)
	if err != nil {
		return fmt.Errorf("hide: hidden file: %w", err)
	}

	bodyCap := int64(blockSize - blockFiller)
	innerCap := int64(blockFiller - tagSize)
	if sz1/bodyCap < (sz2+8)/innerCap {
		return fmt.Errorf("hide: %w (carrier holds %d blocks, need %d)", ErrNoSpace, sz1/bodyCap, (sz2+8)/innerCap)
	}

	nAuth := len(outerAuthKeysW)
	if nAuth == 0 {
		nAuth = 1
		outerAuthKeysW = []primitives.Key{outerKey}
	}
	macSize := nAuth * tagSize

	buf := make([]byte, blockSize+macSize)
	n64 := outerNonce64
	innerN64 := uint64(0)

	rng.GetBytes(buf[:blockSize])
	binary.LittleEndian.PutUint64(buf[0:8], uint64(sz2))
	realN, err := readSome(real, buf[8:blockFiller-tagSize])
	if err != nil {
		return fmt.Errorf("hide: reading hidden file: %w", err)
	}
	bogusN, err := readSome(bogus, buf[blockFiller:blockSize])
	if err != nil {
		return fmt.Errorf("hide: reading carrier file: %w", err)
	}

	var lastAD byte
	if realN > 0 || bogusN > 0 {
		if err := encryptInner(buf, blockFiller, innerKey, innerN64); err != nil {
			return err
		}
		innerN64++
		ad, nm := nextBlockAD(blockTypeFirst, bogusN, bodyCap)
		if err := sealAndWrite(w, buf[:blockFiller+bogusN], ad, outerKey, outerAuthKeysW, n64+nm); err != nil {
			return err
		}
		n64++
		lastAD = ad
	}

	for {
		realN, err = readSome(real, buf[:blockFiller-tagSize])
		if err != nil {
			return fmt.Errorf("hide: reading hidden file: %w", err)
		}
		bogusN, err = readSome(bogus, buf[blockFiller:blockSize])
		if err != nil {
			return fmt.Errorf("hide: reading carrier file: %w", err)
		}
		if realN == 0 && bogusN == 0 {
			break
		}

		if err := encryptInner(buf, blockFiller, innerKey, innerN64); err != nil {
			return err
		}
		innerN64++
		ad, nm := nextBlockAD(blockTypeMiddle, bogusN, bodyCap)
		if err := sealAndWrite(w, buf[:blockFiller+bogusN], ad, outerKey, outerAuthKeysW, n64+nm); err != nil {
			return err
		}
		n64++
		lastAD = ad
	}

	if lastAD != blockTypeTerminal {
		if err := encryptInner(buf, blockFiller, innerKey, innerN64); err != nil {
			return err
		}
		if err := sealAndWrite(w, buf[:blockFiller], blockTypeTerminal, outerKey, outerAuthKeysW, n64+ndelta); err != nil {
			return err
		}
	}
	return nil
}

// nextBlockAD picks the block-type associated data for the block just
// filled: a block whose carrier part (bogusN bytes) is shorter than
// bodyCap holds the end of the carrier file, so it is the outer
// stream's terminal block and its nonce takes the ndelta offset; a
// block with a full carrier part keeps the normal type.
func nextBlockAD(normal byte, bogusN int, bodyCap int64) (ad byte, nm uint64) {
	if int64(bogusN) == bodyCap {
		return normal, 0
	}
	return blockTypeTerminal, ndelta
}

// encryptInner seals the first blockFiller-tagSize bytes of buf (the
// 8-byte size prefix and/or bytes of the hidden file) under innerKey
// with no associated data, and writes the ciphertext and its tag back
// over buf[:blockFiller], turning the filler region into bytes
// indistinguishable from random filler to anyone without innerKey.
func encryptInner(buf []byte, blockFiller int, innerKey primitives.Key, nonce uint64) error {
	sealed, err := primitives.AEADSealMulti(buf[:blockFiller-tagSize], nil, innerKey, []primitives.Key{innerKey}, nonce)
	if err != nil {
		return fmt.Errorf("hide: inner encryption: %w", err)
	}
	copy(buf, sealed)
	return nil
}

func sealAndWrite(w io.Writer, plain []byte, ad byte, key primitives.Key, authKeys []primitives.Key, nonce uint64) error {
	sealed, err := primitives.AEADSealMulti(plain, []byte{ad}, key, authKeys, nonce)
	if err != nil {
		return fmt.Errorf("hide: outer encryption: %w", err)
	}
	if _, err := w.Write(sealed); err != nil {
		return fmt.Errorf("hide: %w", err)
	}
	return nil
}

func sizeOf(rs io.ReadSeeker) (int64, error) {
	end, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	return end, nil
}

// readSome reads as many bytes as are available into buf, treating a
// short or empty read as a plain byte count rather than an error (the
// io.Reader equivalent of istream::gcount after a read that hits EOF).
func readSome(r io.Reader, buf []byte) (int, error) {
	n, err := io.ReadFull(r, buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return n, nil
	}
	return n, err
}
