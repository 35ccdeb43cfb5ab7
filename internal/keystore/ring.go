package keystore

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bernedogit/amber-sub001/internal/blockstream"
	"github.com/bernedogit/amber-sub001/internal/header"
	"github.com/bernedogit/amber-sub001/internal/primitives"
	"github.com/bernedogit/amber-sub001/internal/tlv"
)

// Field numbers used by the key ring's TLV record layout.
const (
	fieldPub          = 1
	fieldSec          = 2
	fieldName         = 3
	fieldAlias        = 4
	fieldCreationTime = 5
	fieldMaster       = 6
	fieldOnlyPublic   = 7
	fieldSelfSig      = 8
	fieldCert         = 9
	fieldDHPub        = 10

	fieldCertSigner = 1
	fieldCertSig    = 2
)

// Ring is an in-memory key list loaded from (and persisted back to) a
// ring file. Mutating operations mark the ring Dirty; callers decide
// when to call Save.
type Ring struct {
	Keys  []Key
	Dirty bool
}

// MarshalKey appends key's TLV record (terminated by the field-0
// marker) to w.
func MarshalKey(w io.Writer, k Key) error {
	if err := tlv.WriteBytesField(w, fieldPub, k.Pub[:]); err != nil {
		return err
	}
	if k.SecretAvail {
		if err := tlv.WriteBytesField(w, fieldSec, k.Sec[:]); err != nil {
			return err
		}
	}
	if err := tlv.WriteStringField(w, fieldName, k.Name); err != nil {
		return err
	}
	if k.Alias != "" {
		if err := tlv.WriteStringField(w, fieldAlias, k.Alias); err != nil {
			return err
		}
	}
	if err := tlv.WriteVarintField(w, fieldCreationTime, uint64(k.CreationTime.Unix())); err != nil {
		return err
	}
	if err := tlv.WriteVarintField(w, fieldMaster, boolToUvarint(k.IsMaster)); err != nil {
		return err
	}
	if err := tlv.WriteVarintField(w, fieldOnlyPublic, boolToUvarint(k.OnlyPublic)); err != nil {
		return err
	}
	if err := tlv.WriteBytesField(w, fieldSelfSig, k.SelfSignature[:]); err != nil {
		return err
	}
	if err := tlv.WriteBytesField(w, fieldDHPub, k.DHPub[:]); err != nil {
		return err
	}
	for _, c := range k.Certs {
		var cbuf bytes.Buffer
		if err := tlv.WriteBytesField(&cbuf, fieldCertSigner, c.Signer[:]); err != nil {
			return err
		}
		if err := tlv.WriteBytesField(&cbuf, fieldCertSig, c.Signature[:]); err != nil {
			return err
		}
		if err := tlv.WriteBytesField(w, fieldCert, cbuf.Bytes()); err != nil {
			return err
		}
	}
	return tlv.EndRecord(w)
}

// UnmarshalKey decodes one TLV record read via tlv.ReadAllFields into a
// Key, rejecting it outright if its self-signature does not verify
// (per the load behaviour: a bad self-signature discards the whole
// record, a bad certification only discards that certification).
func UnmarshalKey(fields []tlv.Field) (Key, error) {
	var k Key
	for _, f := range fields {
		switch f.Number {
		case fieldPub:
			copy(k.Pub[:], f.Bytes)
		case fieldSec:
			copy(k.Sec[:], f.Bytes)
			k.SecretAvail = true
		case fieldName:
			k.Name = string(f.Bytes)
		case fieldAlias:
			k.Alias = string(f.Bytes)
		case fieldCreationTime:
			k.CreationTime = time.Unix(int64(f.Varint), 0).UTC()
		case fieldMaster:
			k.IsMaster = f.Varint != 0
		case fieldOnlyPublic:
			k.OnlyPublic = f.Varint != 0
		case fieldSelfSig:
			copy(k.SelfSignature[:], f.Bytes)
		case fieldDHPub:
			copy(k.DHPub[:], f.Bytes)
		case fieldCert:
			cert, err := unmarshalCert(f.Bytes)
			if err != nil {
				return Key{}, err
			}
			k.Certs = append(k.Certs, cert)
		}
	}

	if err := k.VerifySelf(); err != nil {
		return Key{}, err
	}
	// A certification that fails to verify is dropped silently, not
	// treated as corrupting the whole record.
	_ = k.DropInvalidCerts()
	return k, nil
}

func unmarshalCert(raw []byte) (Certification, error) {
	r := bufio.NewReader(bytes.NewReader(raw))
	var c Certification
	for {
		f, err := tlv.ReadField(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return Certification{}, fmt.Errorf("keystore: decoding certification: %w", err)
		}
		switch f.Number {
		case fieldCertSigner:
			copy(c.Signer[:], f.Bytes)
		case fieldCertSig:
			copy(c.Signature[:], f.Bytes)
		}
	}
	return c, nil
}

func boolToUvarint(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// LoadReport describes what happened while loading a ring: how many
// records were accepted, and the errors for the ones that weren't
// (self-signature failures are the only reason a record is dropped
// outright).
type LoadReport struct {
	Loaded   int
	Rejected []error
}

// Decode reads a sequence of TLV key records from r into a new Ring.
func Decode(r io.Reader) (*Ring, LoadReport, error) {
	br := bufio.NewReader(r)
	ring := &Ring{}
	var report LoadReport

	for {
		fields, err := tlv.ReadAllFields(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, report, fmt.Errorf("keystore: Decode: %w", err)
		}
		k, err := UnmarshalKey(fields)
		if err != nil {
			report.Rejected = append(report.Rejected, err)
			continue
		}
		ring.Keys = append(ring.Keys, k)
		report.Loaded++
	}
	return ring, report, nil
}

// Encode writes every key in the ring as a sequence of TLV records.
func (r *Ring) Encode(w io.Writer) error {
	for _, k := range r.Keys {
		if err := MarshalKey(w, k); err != nil {
			return err
		}
	}
	return nil
}

// Load reads a ring file from path. A path ending in ".cha" is a
// password-protected ring: it is unwrapped as a password header plus
// block-stream before TLV-decoding its contents.
func Load(path string, password []byte) (*Ring, LoadReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, LoadReport{}, err
	}
	defer f.Close()

	if !strings.HasSuffix(path, ".cha") {
		return Decode(f)
	}

	key, nonce64, blockSize, blockFiller, _, err := header.ReadPasswordHeader(f, password, primitives.DefaultShiftsMax)
	if err != nil {
		return nil, LoadReport{}, fmt.Errorf("keystore: Load: %w", err)
	}
	stream, err := blockstream.NewReader(f, blockstream.Params{
		Key: key, BaseNonce64: nonce64, BlockSize: int(blockSize), BlockFiller: int(blockFiller),
		AuthKeyR: key, NAuth: 1,
	})
	if err != nil {
		return nil, LoadReport{}, fmt.Errorf("keystore: Load: %w", err)
	}
	return Decode(stream)
}

// Save writes the ring to path atomically (write to a temp file in the
// same directory, then rename). A path ending in ".cha" wraps the TLV
// records in a password header plus block-stream exactly like Load
// expects to find.
func (r *Ring) Save(path string, password []byte, blockSize, blockFiller uint32, shifts int, rng *primitives.KeyedRandom) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("keystore: Save: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if err := r.writeTo(tmp, path, password, blockSize, blockFiller, shifts, rng); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("keystore: Save: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("keystore: Save: %w", err)
	}
	r.Dirty = false
	return nil
}

func (r *Ring) writeTo(f *os.File, path string, password []byte, blockSize, blockFiller uint32, shifts int, rng *primitives.KeyedRandom) error {
	if !strings.HasSuffix(path, ".cha") {
		return r.Encode(f)
	}

	key, nonce64, err := header.WritePasswordHeader(f, password, blockSize, blockFiller, shifts, rng)
	if err != nil {
		return fmt.Errorf("keystore: writeTo: %w", err)
	}
	stream, err := blockstream.NewWriter(f, blockstream.Params{
		Key: key, BaseNonce64: nonce64, BlockSize: int(blockSize), BlockFiller: int(blockFiller), RNG: rng,
	})
	if err != nil {
		return fmt.Errorf("keystore: writeTo: %w", err)
	}
	if err := r.Encode(stream); err != nil {
		return err
	}
	return stream.Close()
}

// matchesWholeWord reports whether needle appears as a whole word
// within haystack (case-sensitive, matching the original's plain
// substring-by-word search).
func matchesWholeWord(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	idx := strings.Index(haystack, needle)
	for idx >= 0 {
		end := idx + len(needle)
		beforeOK := idx == 0 || !isWordByte(haystack[idx-1])
		afterOK := end == len(haystack) || !isWordByte(haystack[end])
		if beforeOK && afterOK {
			return true
		}
		next := strings.Index(haystack[idx+1:], needle)
		if next < 0 {
			return false
		}
		idx = idx + 1 + next
	}
	return false
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// Matches reports whether name is a selector for k: a prefix of its
// hex-encoded public key, or a whole-word match within its name or
// alias.
func (k Key) Matches(name string) bool {
	if name == "" {
		return false
	}
	if strings.HasPrefix(k.EncodedPub(), name) {
		return true
	}
	return matchesWholeWord(k.Name, name) || matchesWholeWord(k.Alias, name)
}

// Select returns every key matching any of names.
func (r *Ring) Select(names []string) []Key {
	var out []Key
	for _, k := range r.Keys {
		for _, n := range names {
			if k.Matches(n) {
				out = append(out, k)
				break
			}
		}
	}
	return out
}

// ErrNoMatch and ErrAmbiguous are returned by SelectOne/SelectRecentOne.
var (
	ErrNoMatch   = fmt.Errorf("keystore: no key matches the given selector")
	ErrAmbiguous = fmt.Errorf("keystore: more than one key matches the given selector")
)

// SelectOne returns the single key matching name, or the sole secret
// key in the ring if name is empty. It fails if more than one key
// matches.
func (r *Ring) SelectOne(name string) (Key, error) {
	var candidates []Key
	if name == "" {
		for _, k := range r.Keys {
			if k.SecretAvail {
				candidates = append(candidates, k)
			}
		}
	} else {
		candidates = r.Select([]string{name})
	}
	switch len(candidates) {
	case 0:
		return Key{}, ErrNoMatch
	case 1:
		return candidates[0], nil
	default:
		return Key{}, ErrAmbiguous
	}
}

// SelectRecentOne is SelectOne, except that ties are broken by
// preferring the most recently created match instead of failing; if
// masterOnly is set, only master keys are considered.
func (r *Ring) SelectRecentOne(name string, masterOnly bool) (Key, error) {
	var candidates []Key
	if name == "" {
		for _, k := range r.Keys {
			if k.SecretAvail && (!masterOnly || k.IsMaster) {
				candidates = append(candidates, k)
			}
		}
	} else {
		for _, k := range r.Select([]string{name}) {
			if !masterOnly || k.IsMaster {
				candidates = append(candidates, k)
			}
		}
	}
	if len(candidates) == 0 {
		return Key{}, ErrNoMatch
	}
	best := candidates[0]
	for _, k := range candidates[1:] {
		if k.CreationTime.After(best.CreationTime) {
			best = k
		}
	}
	return best, nil
}

// FindByPub returns the key whose public part matches pub, if any.
func (r *Ring) FindByPub(pub primitives.Key) (Key, bool) {
	for _, k := range r.Keys {
		if k.Pub == pub {
			return k, true
		}
	}
	return Key{}, false
}

// Insert adds k to the ring if no key with the same public part is
// already present. If force is true, an existing key with the same
// public part is replaced. It returns true if the ring was changed.
func (r *Ring) Insert(k Key, force bool) bool {
	for i, existing := range r.Keys {
		if existing.Pub == k.Pub {
			if !force {
				return false
			}
			r.Keys[i] = k
			r.Dirty = true
			return true
		}
	}
	r.Keys = append(r.Keys, k)
	r.Dirty = true
	return true
}

// Delete removes every key in selected (matched by public part) from
// the ring. It returns true if at least one key was removed.
func (r *Ring) Delete(selected []Key) bool {
	removed := false
	for _, s := range selected {
		kept := r.Keys[:0]
		for _, k := range r.Keys {
			if k.Pub == s.Pub {
				removed = true
				continue
			}
			kept = append(kept, k)
		}
		r.Keys = kept
	}
	if removed {
		r.Dirty = true
	}
	return removed
}

// Rename sets the name of every key matching one of selected.
func (r *Ring) Rename(selected []string, newName string) {
	r.mutateMatching(selected, func(k *Key) { k.Name = newName })
}

// SetAlias replaces the alias of every key matching one of selected.
func (r *Ring) SetAlias(selected []string, newAlias string) {
	r.mutateMatching(selected, func(k *Key) { k.Alias = newAlias })
}

// AppendAlias adds newAlias to the existing alias (comma-separated) of
// every key matching one of selected, instead of replacing it.
func (r *Ring) AppendAlias(selected []string, newAlias string) {
	r.mutateMatching(selected, func(k *Key) {
		if k.Alias == "" {
			k.Alias = newAlias
		} else {
			k.Alias = k.Alias + "," + newAlias
		}
	})
}

func (r *Ring) mutateMatching(selected []string, fn func(k *Key)) {
	changed := false
	for i := range r.Keys {
		for _, n := range selected {
			if r.Keys[i].Matches(n) {
				fn(&r.Keys[i])
				changed = true
				break
			}
		}
	}
	if changed {
		r.Dirty = true
	}
}

// Sign certifies every key matching one of selected with signer.
func (r *Ring) Sign(signer Key, selected []string) (int, error) {
	n := 0
	for i := range r.Keys {
		matched := false
		for _, sel := range selected {
			if r.Keys[i].Matches(sel) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		if err := r.Keys[i].CertifyWith(signer); err != nil {
			return n, err
		}
		n++
	}
	if n > 0 {
		r.Dirty = true
	}
	return n, nil
}

// RemoveSignature drops any certification by signer from every key
// matching one of selected.
func (r *Ring) RemoveSignature(signer primitives.Key, selected []string) int {
	n := 0
	for i := range r.Keys {
		matched := false
		for _, sel := range selected {
			if r.Keys[i].Matches(sel) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		kept := r.Keys[i].Certs[:0]
		for _, c := range r.Keys[i].Certs {
			if c.Signer == signer {
				n++
				continue
			}
			kept = append(kept, c)
		}
		r.Keys[i].Certs = kept
	}
	if n > 0 {
		r.Dirty = true
	}
	return n
}

// Merge imports every key from other into r. A key already present
// (same public part) keeps its own certifications; for certifications
// carried by the imported key, the first-seen certification for a
// given signer wins — a duplicate certification by a signer already
// recorded is not added again, matching the original import semantics.
func (r *Ring) Merge(other *Ring) {
	for _, ik := range other.Keys {
		existing, found := r.FindByPub(ik.Pub)
		if !found {
			r.Keys = append(r.Keys, ik)
			r.Dirty = true
			continue
		}
		seen := make(map[primitives.Key]bool, len(existing.Certs))
		for _, c := range existing.Certs {
			seen[c.Signer] = true
		}
		idx := indexOfPub(r.Keys, ik.Pub)
		for _, c := range ik.Certs {
			if seen[c.Signer] {
				continue
			}
			r.Keys[idx].Certs = append(r.Keys[idx].Certs, c)
			seen[c.Signer] = true
			r.Dirty = true
		}
	}
}

func indexOfPub(keys []Key, pub primitives.Key) int {
	for i, k := range keys {
		if k.Pub == pub {
			return i
		}
	}
	return -1
}
