package blockstream

import (
	"fmt"
	"io"
)

// payloadPerBlock is how many plaintext bytes one block holds.
func (s *Stream) payloadPerBlock() int64 {
	return int64(s.blockSize - s.blockFiller)
}

// Seek repositions the stream to an absolute plaintext byte offset
// (SeekStart only; SeekCurrent/SeekEnd are not meaningful for a stream
// whose total length isn't known without decrypting every block, so
// callers needing those should track position themselves).
//
// On a read stream this jumps directly to the containing block and
// decrypts it. On a write stream backed by a single recipient (the
// symmetric/password case), this additionally loads the block's
// existing ciphertext so in-place overwrite re-encrypts real prior
// content rather than zeros; multi-recipient write streams can only
// seek forward to extend the stream, since overwriting an
// already-sealed block would require every original recipient's
// authentication key, not just the sender's.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	if whence != io.SeekStart {
		return 0, fmt.Errorf("blockstream: Seek: only io.SeekStart is supported")
	}
	if offset < 0 {
		return 0, fmt.Errorf("blockstream: Seek: negative offset")
	}

	perBlock := s.payloadPerBlock()
	target := uint64(offset) / uint64(perBlock)
	inBlockOff := int(uint64(offset) % uint64(perBlock))

	if s.writing {
		if err := s.seekWrite(target, inBlockOff); err != nil {
			return 0, err
		}
		return offset, nil
	}
	if err := s.seekRead(target, inBlockOff); err != nil {
		return 0, err
	}
	return offset, nil
}

func (s *Stream) seekRead(target uint64, inBlockOff int) error {
	if s.blockNumber == target+1 && inBlockOff <= s.payloadBytes {
		s.readOffset = inBlockOff
		return nil
	}

	blockStart := s.firstBlock + int64(target)*int64(s.blockSize+s.macSize)
	if _, err := s.rw.Seek(blockStart, io.SeekStart); err != nil {
		return fmt.Errorf("blockstream: Seek: %w", err)
	}
	s.blockNumber = target
	s.nonce64 = s.baseNonce64 + target
	s.eof = false
	s.payloadBytes = 0

	if err := s.readBlock(); err != nil {
		return err
	}
	if inBlockOff > s.payloadBytes {
		return fmt.Errorf("blockstream: Seek: offset past end of block: %w", ErrStreamTruncated)
	}
	s.readOffset = inBlockOff
	return nil
}

// seekWrite repositions a write stream to target/inBlockOff, flushing
// any buffered block first. If the target block already exists on
// disk (random-access overwrite) and this is a single-recipient
// stream, its existing plaintext is loaded so overwrite merges with
// prior content instead of truncating it. A backward seek on a
// multi-recipient stream is rejected outright: overwriting an
// already-sealed block would require every original recipient's
// authentication key, not just the sender's, so there's no way to
// merge with the prior content.
func (s *Stream) seekWrite(target uint64, inBlockOff int) error {
	if s.payloadBytes > 0 || s.blockNumber == 0 {
		if err := s.flushBlock(false); err != nil {
			return err
		}
	}

	backward := int64(target) <= s.lastBlockWritten
	canOverwrite := backward && len(s.authKeysW) == 1
	if backward && !canOverwrite {
		return fmt.Errorf("blockstream: Seek: multi-recipient stream cannot seek backward to overwrite an already-written block")
	}

	blockStart := s.firstBlock + int64(target)*int64(s.blockSize+s.macSize)

	s.blockNumber = target
	s.nonce64 = s.baseNonce64 + target
	s.eof = false
	s.payloadBytes = 0
	s.writeOffset = 0
	s.readOffset = 0
	s.primed = false
	s.resetBuf()

	// The frontier block may sit on disk as a short block, which
	// readBlock would take for the terminal one; its plaintext comes from
	// the cache flushBlock keeps for that block instead.
	fromCache := canOverwrite && int64(target) == s.lastBlockWritten && s.lastBlockNum == target && s.lastBlockLen > 0
	if fromCache {
		copy(s.buf, s.lastBuf[:s.lastBlockLen])
		s.payloadBytes = s.lastBlockLen - s.blockFiller
		s.primed = true
	}

	if canOverwrite && !fromCache {
		existingKey := s.authKeysW[0]
		saved := s.authKeyR
		s.authKeyR = existingKey
		err := s.readBlock()
		s.authKeyR = saved
		if err != nil {
			return fmt.Errorf("blockstream: Seek: reading block to overwrite: %w", err)
		}
		s.blockNumber = target
		s.nonce64 = s.baseNonce64 + target
		s.eof = false
		s.readOffset = 0
		s.primed = true
	}

	if _, err := s.rw.Seek(blockStart, io.SeekStart); err != nil {
		return fmt.Errorf("blockstream: Seek: %w", err)
	}
	s.writeOffset = inBlockOff
	return nil
}
