// Package blockstream implements the authenticated block-stream codec:
// a sequence of fixed-size encrypted blocks, each independently
// authenticated (one tag per recipient), with random-access seek and
// overwrite, truncation detection, and a terminal block marking a
// genuine end of stream.
package blockstream

import (
	"errors"
	"fmt"
	"io"

	"github.com/bernedogit/amber-sub001/internal/primitives"
)

// ndelta is added to the nonce of the last block of a stream. Because
// this amount is added only once, at the genuine end, truncating a
// stream before its terminal block (or appending bytes after it)
// always shows up as a decryption failure instead of silently
// truncated plaintext.
const ndelta = uint64(1) << 63

// Block type values, folded in as single-byte associated data so that
// a first/middle/terminal block cannot be reordered or relabeled
// without detection.
const (
	blockTypeFirst    = 1
	blockTypeMiddle   = 2
	blockTypeTerminal = 3
)

const tagSize = primitives.TagSize

// Errors returned by Stream's Read/Write/Seek/Close.
var (
	// ErrBodyAuth is returned when a block fails to authenticate: wrong
	// key, corrupted bytes, or a reordered/substituted block.
	ErrBodyAuth = errors.New("blockstream: block authentication failed")
	// ErrStreamTruncated is returned when the stream ends without a
	// terminal block, or continues with extra bytes after one.
	ErrStreamTruncated = errors.New("blockstream: stream truncated or has trailing data")
	// ErrNonceExhausted is returned when a stream would need more than
	// 2^63 blocks, the point at which the terminal-block nonce offset
	// would collide with a regular block nonce.
	ErrNonceExhausted = errors.New("blockstream: too many blocks, nonce space exhausted")
	// ErrParamOutOfRange is returned for invalid block size/filler
	// configuration.
	ErrParamOutOfRange = errors.New("blockstream: block parameter out of range")
)

// Params configures a new Stream.
type Params struct {
	Key          primitives.Key
	BaseNonce64  uint64
	BlockSize    int
	BlockFiller  int
	AuthKeysW    []primitives.Key // one per recipient, for writing (nil for single-key streams: pass []primitives.Key{Key})
	AuthKeyR     primitives.Key   // this reader's authentication key
	NAuth        int              // total recipient count (tag count per block)
	AuthIndex    int              // this reader's position among NAuth tags
	RNG          *primitives.KeyedRandom
}

// Stream is an authenticated, seekable block-stream over an
// io.ReadWriteSeeker. A single Stream is used either for writing or for
// reading, matching the underlying file's open mode.
type Stream struct {
	rw io.ReadWriteSeeker

	key       primitives.Key
	authKeysW []primitives.Key
	authKeyR  primitives.Key
	nAuth     int
	authIndex int

	baseNonce64 uint64
	nonce64     uint64

	blockSize   int
	blockFiller int
	macSize     int

	blockNumber      uint64
	lastBlockWritten int64
	firstBlock       int64

	// lastBuf/lastBlockLen/lastBlockNum cache the plaintext (filler
	// included) of whichever flush last advanced lastBlockWritten, so
	// Close can re-seal that exact block as terminal even after a
	// backward Seek leaves the write cursor behind it, without having
	// to read and re-decrypt it (which would be ambiguous: a short
	// block on disk can be either a genuine short terminal block or an
	// ordinary short block produced by flushing a partial buffer before
	// a seek).
	lastBuf      []byte
	lastBlockLen int
	lastBlockNum uint64

	buf          []byte
	payloadBytes int // valid plaintext length currently buffered, floor for flushBlock
	writeOffset  int // write cursor within the buffered block (may be < payloadBytes during overwrite)
	readOffset   int
	writing      bool
	eof          bool
	closed       bool
	primed       bool // buf holds a seek-loaded block's plaintext not yet consumed by Read

	rng *primitives.KeyedRandom
}

// NewWriter initializes a Stream for writing, starting at the current
// position of rw (normally right after a header has been written).
func NewWriter(rw io.ReadWriteSeeker, p Params) (*Stream, error) {
	s, err := newStream(rw, p)
	if err != nil {
		return nil, err
	}
	s.writing = true
	s.resetBuf()
	return s, nil
}

// NewReader initializes a Stream for reading, starting at the current
// position of rw.
func NewReader(rw io.ReadWriteSeeker, p Params) (*Stream, error) {
	s, err := newStream(rw, p)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func newStream(rw io.ReadWriteSeeker, p Params) (*Stream, error) {
	if p.BlockFiller >= p.BlockSize {
		return nil, fmt.Errorf("blockstream: filler %d >= block size %d: %w", p.BlockFiller, p.BlockSize, ErrParamOutOfRange)
	}
	if p.BlockSize <= 0 || p.BlockSize > 10_000_000 {
		return nil, fmt.Errorf("blockstream: block size %d out of range: %w", p.BlockSize, ErrParamOutOfRange)
	}

	nAuth := p.NAuth
	authKeysW := p.AuthKeysW
	if nAuth == 0 {
		if len(authKeysW) > 0 {
			nAuth = len(authKeysW)
		} else {
			nAuth = 1
		}
	}
	if len(authKeysW) == 0 {
		authKeysW = []primitives.Key{p.Key}
	}

	first, err := rw.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("blockstream: %w", err)
	}

	s := &Stream{
		rw:               rw,
		key:              p.Key,
		authKeysW:        authKeysW,
		authKeyR:         p.AuthKeyR,
		nAuth:            nAuth,
		authIndex:        p.AuthIndex,
		baseNonce64:      p.BaseNonce64,
		nonce64:          p.BaseNonce64,
		blockSize:        p.BlockSize,
		blockFiller:      p.BlockFiller,
		macSize:          nAuth * tagSize,
		lastBlockWritten: -1,
		firstBlock:       first,
		rng:              p.RNG,
	}
	return s, nil
}

func (s *Stream) resetBuf() {
	s.buf = make([]byte, s.blockSize+s.macSize)
	if s.rng != nil {
		s.rng.GetBytes(s.buf[:s.blockFiller])
	}
}

// blockType returns the block-type AD byte for the block currently
// being produced or consumed.
func (s *Stream) blockType() byte {
	if s.blockNumber == 0 {
		return blockTypeFirst
	}
	return blockTypeMiddle
}

// Write implements io.Writer, buffering plaintext into fixed-size
// blocks and flushing each as it fills.
func (s *Stream) Write(p []byte) (int, error) {
	if s.closed {
		return 0, fmt.Errorf("blockstream: write to closed stream")
	}
	s.writing = true
	if s.buf == nil {
		s.resetBuf()
	}

	written := 0
	for len(p) > 0 {
		n := copy(s.buf[s.blockFiller+s.writeOffset:s.blockSize], p)
		s.writeOffset += n
		if s.writeOffset > s.payloadBytes {
			s.payloadBytes = s.writeOffset
		}
		p = p[n:]
		written += n

		if s.blockFiller+s.writeOffset == s.blockSize {
			if err := s.flushBlock(false); err != nil {
				return written, err
			}
			if int64(s.blockNumber) <= s.lastBlockWritten {
				// The next block already exists: load it the way Seek
				// does, so writing on into it keeps its untouched tail.
				if _, err := s.Seek(int64(s.blockNumber)*s.payloadPerBlock(), io.SeekStart); err != nil {
					return written, err
				}
			}
		}
	}
	return written, nil
}

// flushBlock encrypts and writes out the current buffer contents as
// one non-terminal block (or, if terminal is true, as the stream's
// final block, with the nonce offset by ndelta). The flushed length is
// whichever is longer of the write cursor and the valid-data floor, so
// an in-place overwrite that only touches the first half of a block
// doesn't truncate the untouched tail.
func (s *Stream) flushBlock(terminal bool) error {
	mlen := s.blockFiller + s.payloadBytes
	if s.blockFiller+s.writeOffset > mlen {
		mlen = s.blockFiller + s.writeOffset
	}
	typ := s.blockType()
	nonce := s.nonce64
	if terminal {
		typ = blockTypeTerminal
		nonce += ndelta
	}
	if s.nonce64 >= ndelta-1 {
		return fmt.Errorf("blockstream: %w", ErrNonceExhausted)
	}

	ad := []byte{typ}
	sealed, err := primitives.AEADSealMulti(s.buf[:mlen], ad, s.key, s.authKeysW, nonce)
	if err != nil {
		return fmt.Errorf("blockstream: flushBlock: %w", err)
	}
	if _, err := s.rw.Write(sealed); err != nil {
		return fmt.Errorf("blockstream: flushBlock: %w", err)
	}

	if !terminal && int64(s.blockNumber) >= s.lastBlockWritten {
		// This flush reaches or extends the stream's current frontier.
		// Remember its plaintext so Close can re-seal this exact block
		// as terminal later, even if an interior Seek moves the write
		// cursor elsewhere first. A plain disk re-read wouldn't do: a
		// short block can be a genuine short terminal block or an
		// ordinary short block produced by flushing a partial buffer
		// ahead of a seek, and the two aren't distinguishable from the
		// ciphertext alone.
		if cap(s.lastBuf) < mlen {
			s.lastBuf = make([]byte, mlen)
		}
		s.lastBuf = s.lastBuf[:mlen]
		copy(s.lastBuf, s.buf[:mlen])
		s.lastBlockLen = mlen
		s.lastBlockNum = s.blockNumber
	}

	s.nonce64++
	if int64(s.blockNumber) > s.lastBlockWritten {
		s.lastBlockWritten = int64(s.blockNumber)
	}
	s.blockNumber++
	s.payloadBytes = 0
	s.writeOffset = 0
	s.primed = false
	s.resetBuf()
	return nil
}

// Close flushes the final (terminal) block and marks the stream
// unusable. It is always safe to call, even on an empty stream: an
// empty stream still ends in one terminal block so its genuine end is
// distinguishable from a truncated capture.
//
// A backward Seek (random-access overwrite) can leave the write cursor
// positioned well before the stream's true last block. Closing from
// there must not simply terminal-mark whatever is currently buffered:
// that would leave every already-written block past it orphaned, with
// no terminal marker ever reaching the real end of the file. Close
// instead flushes any pending buffer in place first, then reclaims the
// true last block's cached plaintext and reseals it as terminal. If that
// block is full, it is rewritten as an ordinary block and an empty
// terminal block is appended after it, since a full-length block reads
// back as non-terminal.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	if !s.writing {
		s.closed = true
		return nil
	}
	defer func() { s.closed = true }()

	if int64(s.blockNumber) <= s.lastBlockWritten {
		if s.payloadBytes > 0 || s.writeOffset > 0 || s.primed {
			if err := s.flushBlock(false); err != nil {
				return err
			}
		}
		if err := s.primeLastBlock(); err != nil {
			return err
		}
		if s.blockFiller+s.payloadBytes == s.blockSize {
			if err := s.flushBlock(false); err != nil {
				return err
			}
		}
	}
	return s.flushBlock(true)
}

// primeLastBlock reloads the cached plaintext of the stream's true
// last-written block into buf and rewinds blockNumber/nonce64 to match,
// so the next flushBlock(true) reseals that exact block as terminal in
// place, regardless of where a prior Seek left the write cursor.
func (s *Stream) primeLastBlock() error {
	target := uint64(s.lastBlockWritten)
	if s.lastBlockNum != target || s.lastBlockLen == 0 {
		return fmt.Errorf("blockstream: Close: no cached plaintext for block %d", target)
	}

	blockStart := s.firstBlock + int64(target)*int64(s.blockSize+s.macSize)
	if _, err := s.rw.Seek(blockStart, io.SeekStart); err != nil {
		return fmt.Errorf("blockstream: Close: %w", err)
	}

	s.blockNumber = target
	s.nonce64 = s.baseNonce64 + target
	s.eof = false
	s.resetBuf()
	copy(s.buf, s.lastBuf[:s.lastBlockLen])
	s.payloadBytes = s.lastBlockLen - s.blockFiller
	s.writeOffset = s.payloadBytes
	s.primed = false
	return nil
}

// readBlock reads, decrypts, and authenticates the next block from the
// underlying stream into s.buf, updating payloadBytes and block
// bookkeeping. It returns io.EOF once the terminal block has been
// consumed.
func (s *Stream) readBlock() error {
	if s.closed || s.eof {
		return io.EOF
	}

	blockStart := s.firstBlock + int64(s.blockNumber)*int64(s.blockSize+s.macSize)
	if _, err := s.rw.Seek(blockStart, io.SeekStart); err != nil {
		return fmt.Errorf("blockstream: readBlock: %w", err)
	}

	request := s.blockSize + s.macSize
	raw := make([]byte, request)
	nr, rerr := io.ReadFull(s.rw, raw)
	if rerr != nil && rerr != io.ErrUnexpectedEOF && rerr != io.EOF {
		return fmt.Errorf("blockstream: readBlock: %w", rerr)
	}
	if nr < s.blockFiller+s.macSize {
		return fmt.Errorf("blockstream: short block (%d bytes): %w", nr, ErrStreamTruncated)
	}

	typ := byte(blockTypeMiddle)
	if s.blockNumber == 0 {
		typ = blockTypeFirst
	}
	nonce := s.nonce64
	terminal := nr < request
	if terminal {
		typ = blockTypeTerminal
		nonce += ndelta
		if s.nonce64 >= ndelta-1 {
			return fmt.Errorf("blockstream: %w", ErrNonceExhausted)
		}
	}

	authKey := s.authKeyR
	if s.writing && s.authIndex < len(s.authKeysW) {
		// A writer reading its own blocks back authenticates them with
		// the key it sealed them under.
		authKey = s.authKeysW[s.authIndex]
	}
	plain, err := primitives.AEADOpenMulti(raw[:nr], []byte{typ}, s.key, authKey, s.nAuth, s.authIndex, nonce)
	if err != nil {
		return fmt.Errorf("blockstream: block %d: %w", s.blockNumber, ErrBodyAuth)
	}
	s.nonce64++

	copy(s.buf, plain)
	s.payloadBytes = len(plain) - s.blockFiller
	s.blockNumber++
	if terminal {
		s.eof = true
	}
	if s.payloadBytes < 0 {
		return fmt.Errorf("blockstream: negative payload length: %w", ErrStreamTruncated)
	}
	return nil
}

// Read implements io.Reader.
func (s *Stream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, io.EOF
	}
	if s.buf == nil {
		s.resetBuf()
	}

	read := 0
	for len(p) > 0 {
		if s.readPos() >= s.payloadBytes {
			if s.eof {
				if read == 0 {
					return 0, io.EOF
				}
				return read, nil
			}
			if s.primed {
				// buf holds a block a Seek already decrypted in place
				// (for overwrite priming); advance past it instead of
				// asking readBlock to fetch blockNumber again, which
				// would silently redecrypt and return the same block.
				s.blockNumber++
				s.nonce64++
				s.primed = false
			}
			if err := s.readBlock(); err != nil {
				if err == io.EOF {
					if read == 0 {
						return 0, io.EOF
					}
					return read, nil
				}
				return read, err
			}
			s.resetReadPos()
			continue
		}
		n := copy(p, s.buf[s.blockFiller+s.readOffset:s.blockFiller+s.payloadBytes])
		s.readOffset += n
		p = p[n:]
		read += n
	}
	return read, nil
}

// readPos/readOffset track how much of the current decrypted block has
// already been consumed by Read.
func (s *Stream) readPos() int { return s.readOffset }

func (s *Stream) resetReadPos() { s.readOffset = 0 }
