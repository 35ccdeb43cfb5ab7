package header

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/bernedogit/amber-sub001/internal/noise"
	"github.com/bernedogit/amber-sub001/internal/primitives"
)

// ErrNotARecipient is returned by ReadPublicHeader when none of the
// header's recipient entries open under the reader's identity key.
var ErrNotARecipient = errors.New("header: this file is not addressed to me")

// recipientBlobSize is the wire size of one recipient entry: a 32-byte
// elligator-encoded ephemeral key, a 48-byte encrypted sender static
// key (32 + 16-byte tag), and a 49-byte encrypted symmetric-key payload
// (33 + 16-byte tag).
const recipientBlobSize = 32 + 48 + 49

// symkPlainSize is the payload carried inside each recipient entry: a
// 32-byte stream key followed by a one-byte recipient count.
const symkPlainSize = 33

// paramPlainSize is the plaintext size of the header's trailing
// multi-recipient parameter block: block size, block filler, and
// info-extension size, four bytes each.
const paramPlainSize = 12

const maxRecipientScan = 256

// WritePublicHeader writes a public/recipient-list header to w: one
// Noise-X handshake blob per recipient (each carrying a freshly
// generated stream key and the recipient count), followed by a
// multi-tag encrypted parameter block. It returns the stream key, the
// nonce64 for the first data block, and the per-recipient
// authentication keys (in recipient order) that the caller must pass
// as blockstream.Params.AuthKeysW so every recipient can authenticate
// the data blocks that follow, not just this header's parameter block.
func WritePublicHeader(w io.Writer, sender *noise.KeyPair, recipients []primitives.Key, blockSize, blockFiller, infoSize uint32, rng *primitives.KeyedRandom) (key primitives.Key, nonce64 uint64, authKeys []primitives.Key, err error) {
	if len(recipients) == 0 {
		return key, 0, nil, fmt.Errorf("header: WritePublicHeader: no recipients")
	}
	if len(recipients) > 255 {
		return key, 0, nil, fmt.Errorf("header: WritePublicHeader: too many recipients (%d > 255)", len(recipients))
	}

	var symk [symkPlainSize]byte
	rng.GetBytes(symk[:primitives.KeySize])
	symk[primitives.KeySize] = byte(len(recipients))

	authKeys = make([]primitives.Key, len(recipients))
	for i, rx := range recipients {
		blob, ka, err := writeRecipientBlob(sender, rx, symk[:], rng)
		if err != nil {
			return key, 0, nil, fmt.Errorf("header: WritePublicHeader: recipient %d: %w", i, err)
		}
		if _, err := w.Write(blob); err != nil {
			return key, 0, nil, fmt.Errorf("header: WritePublicHeader: %w", err)
		}
		authKeys[i] = ka
	}

	copy(key[:], symk[:primitives.KeySize])

	var plain [paramPlainSize]byte
	binary.LittleEndian.PutUint32(plain[0:4], blockSize)
	binary.LittleEndian.PutUint32(plain[4:8], blockFiller)
	binary.LittleEndian.PutUint32(plain[8:12], infoSize)

	enc, err := primitives.AEADSealMulti(plain[:], nil, key, authKeys, 0)
	if err != nil {
		return key, 0, nil, fmt.Errorf("header: WritePublicHeader: %w", err)
	}
	if _, err := w.Write(enc); err != nil {
		return key, 0, nil, fmt.Errorf("header: WritePublicHeader: %w", err)
	}
	return key, 1, authKeys, nil
}

func writeRecipientBlob(sender *noise.KeyPair, rx primitives.Key, symk []byte, rng *primitives.KeyedRandom) (blob []byte, ka primitives.Key, err error) {
	hs, err := noise.NewHandshake(noise.Config{
		PatternName:  "X",
		Initiator:    true,
		LocalStatic:  sender,
		RemoteStatic: &rx,
		Elligator:    true,
		RNG:          rng,
	})
	if err != nil {
		return nil, ka, err
	}
	blob, err = hs.WriteMessage(symk)
	if err != nil {
		return nil, ka, err
	}
	tx, _, err := hs.Split()
	if err != nil {
		return nil, ka, err
	}
	return blob, tx.Key(), nil
}

// ReadPublicHeader scans a public header's recipient entries looking
// for one addressed to recipient, decrypts the shared symmetric key,
// drains the remaining recipient entries, and opens the trailing
// parameter block. It returns the stream key, the nonce64 for the
// first data block, the sender's static public key, the block
// size/filler/info-extension size, this recipient's position and the
// total recipient count (together, blockstream.Params.AuthIndex and
// .NAuth), and this recipient's own authentication key
// (blockstream.Params.AuthKeyR) needed to authenticate the data blocks
// that follow the header.
func ReadPublicHeader(r io.Reader, recipient *noise.KeyPair) (key primitives.Key, nonce64 uint64, sender primitives.Key, blockSize, blockFiller, infoSize uint32, position int, authKey primitives.Key, nAuth int, err error) {
	var ka primitives.Key
	var symk []byte
	var found bool

	for i := 0; i < maxRecipientScan && !found; i++ {
		blob := make([]byte, recipientBlobSize)
		if _, rerr := io.ReadFull(r, blob); rerr != nil {
			return key, 0, sender, 0, 0, 0, 0, authKey, 0, fmt.Errorf("header: ReadPublicHeader: %w", ErrNotARecipient)
		}

		hs, herr := noise.NewHandshake(noise.Config{
			PatternName: "X",
			Initiator:   false,
			LocalStatic: recipient,
			Elligator:   true,
		})
		if herr != nil {
			return key, 0, sender, 0, 0, 0, 0, authKey, 0, fmt.Errorf("header: ReadPublicHeader: %w", herr)
		}
		pay, rerr := hs.ReadMessage(blob)
		if rerr != nil {
			continue
		}
		if len(pay) != symkPlainSize {
			continue
		}
		rs, hasRS := hs.RemoteStatic()
		if !hasRS {
			continue
		}
		_, rx, serr := hs.Split()
		if serr != nil {
			continue
		}

		found = true
		position = i
		sender = rs
		ka = rx.Key()
		symk = append([]byte{}, pay...)
	}
	if !found {
		return key, 0, sender, 0, 0, 0, 0, authKey, 0, fmt.Errorf("header: ReadPublicHeader: %w", ErrNotARecipient)
	}
	nrx := int(symk[primitives.KeySize])

	for i := position + 1; i < nrx; i++ {
		skip := make([]byte, recipientBlobSize)
		if _, err := io.ReadFull(r, skip); err != nil {
			return key, 0, sender, 0, 0, 0, 0, authKey, 0, fmt.Errorf("header: ReadPublicHeader: draining recipient entries: %w", err)
		}
	}

	enc := make([]byte, paramPlainSize+nrx*primitives.TagSize)
	if _, err := io.ReadFull(r, enc); err != nil {
		return key, 0, sender, 0, 0, 0, 0, authKey, 0, fmt.Errorf("header: ReadPublicHeader: reading parameter block: %w", err)
	}
	copy(key[:], symk[:primitives.KeySize])

	plain, err := primitives.AEADOpenMulti(enc, nil, key, ka, nrx, position, 0)
	if err != nil {
		return key, 0, sender, 0, 0, 0, 0, authKey, 0, fmt.Errorf("header: ReadPublicHeader: %w", err)
	}
	blockSize, blockFiller, infoSize = BlockParams(plain)
	return key, 1, sender, blockSize, blockFiller, infoSize, position, ka, nrx, nil
}

// BlockParams decodes the block size/filler (and, for public headers,
// info-extension size) out of a successfully opened parameter block.
func BlockParams(plain []byte) (blockSize, blockFiller, infoSize uint32) {
	blockSize = binary.LittleEndian.Uint32(plain[0:4])
	blockFiller = binary.LittleEndian.Uint32(plain[4:8])
	if len(plain) >= 12 {
		infoSize = binary.LittleEndian.Uint32(plain[8:12])
	}
	return blockSize, blockFiller, infoSize
}
