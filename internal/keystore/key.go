// Package keystore implements long-term identity keys: self-signed,
// certifiable master/work key pairs serialized to a tag-length-value
// ring file (package tlv), with atomic persistence and the same
// rename/alias/sign/delete lifecycle operations the CLI exposes.
package keystore

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/bernedogit/amber-sub001/internal/primitives"
)

// SelfSigPrefix is the domain separator folded into every key
// signature: self-signatures and certifications both sign the key's
// canonical hash under it.
const SelfSigPrefix = "Key signature prefix"

// ErrKeyInvalid is returned when a key record's self-signature fails to
// verify; such a record is rejected outright rather than loaded.
var ErrKeyInvalid = errors.New("keystore: key self-signature does not verify")

// Certification is a signature over a key's canonical hash made by a
// different key, endorsing it.
type Certification struct {
	Signer    primitives.Key
	Signature [primitives.SignatureSize]byte
}

// Key is one identity record: a signing key pair plus the metadata
// that its self-signature covers, and zero or more certifications by
// other keys.
type Key struct {
	Pub, Sec    primitives.Key
	SecretAvail bool

	// DHPub is the X25519 public key derived from the same seed as
	// Pub/Sec, used to address this identity when encrypting to it
	// (internal/header's public-key recipient headers need an X25519
	// key, not the Ed25519 signing key). Folded into the canonical hash
	// so a certification or self-signature also vouches for it.
	DHPub primitives.Key

	Name  string
	Alias string

	CreationTime time.Time

	// IsMaster marks a key allowed to certify other keys; a work key
	// can be used for ordinary operations but not to sign others.
	IsMaster bool

	// OnlyPublic marks a record whose secret part was deliberately
	// stripped before export (e.g. "give someone your public key").
	OnlyPublic bool

	SelfSignature [primitives.SignatureSize]byte
	Certs         []Certification
}

// CanonicalHash computes the 64-byte hash that every self-signature and
// certification signs: pub ‖ dhPub ‖ u64_le(len(name)) ‖ name ‖
// u64_le(creation_time).
func CanonicalHash(pub, dhPub primitives.Key, name string, creation time.Time) ([]byte, error) {
	var lenBuf, timeBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(name)))
	binary.LittleEndian.PutUint64(timeBuf[:], uint64(creation.Unix()))
	return primitives.HashLong(64, nil, pub[:], dhPub[:], lenBuf[:], []byte(name), timeBuf[:])
}

func (k *Key) hash() ([]byte, error) {
	return CanonicalHash(k.Pub, k.DHPub, k.Name, k.CreationTime)
}

// selfSign computes and stores k's self-signature. Called by the
// Generate* constructors.
func (k *Key) selfSign() error {
	h, err := k.hash()
	if err != nil {
		return err
	}
	k.SelfSignature = primitives.Sign(SelfSigPrefix, h, k.Sec, k.Pub)
	return nil
}

// VerifySelf reports whether k's self-signature is valid.
func (k *Key) VerifySelf() error {
	h, err := k.hash()
	if err != nil {
		return err
	}
	if err := primitives.Verify(SelfSigPrefix, h, k.SelfSignature, k.Pub); err != nil {
		return fmt.Errorf("keystore: %w: %w", ErrKeyInvalid, err)
	}
	return nil
}

// CertifyWith appends a certification of k by signer (a master key),
// signing k's canonical hash.
func (k *Key) CertifyWith(signer Key) error {
	if !signer.IsMaster {
		return fmt.Errorf("keystore: only a master key may certify another key")
	}
	if !signer.SecretAvail {
		return fmt.Errorf("keystore: signer's secret key is not available")
	}
	h, err := k.hash()
	if err != nil {
		return err
	}
	sig := primitives.Sign(SelfSigPrefix, h, signer.Sec, signer.Pub)
	k.Certs = append(k.Certs, Certification{Signer: signer.Pub, Signature: sig})
	return nil
}

// VerifyCerts checks every certification in k, returning the indices
// (into k.Certs) of the ones that failed. Per the load behaviour, a
// failing certification is dropped, not the whole key.
func (k *Key) VerifyCerts() (invalid []int, err error) {
	h, err := k.hash()
	if err != nil {
		return nil, err
	}
	for i, c := range k.Certs {
		if verr := primitives.Verify(SelfSigPrefix, h, c.Signature, c.Signer); verr != nil {
			invalid = append(invalid, i)
		}
	}
	return invalid, nil
}

// DropInvalidCerts removes certifications that fail to verify.
func (k *Key) DropInvalidCerts() error {
	bad, err := k.VerifyCerts()
	if err != nil {
		return err
	}
	if len(bad) == 0 {
		return nil
	}
	kept := k.Certs[:0]
	badSet := make(map[int]bool, len(bad))
	for _, i := range bad {
		badSet[i] = true
	}
	for i, c := range k.Certs {
		if !badSet[i] {
			kept = append(kept, c)
		}
	}
	k.Certs = kept
	return nil
}

// EncodedPub is the key's public part hex-encoded, used both for
// display and for prefix-based selection.
func (k Key) EncodedPub() string {
	return hex.EncodeToString(k.Pub[:])
}

// GenerateMasterKey derives a new master key from seed (32 bytes of
// caller-supplied entropy) and the given name, and self-signs it.
func GenerateMasterKey(seed primitives.Key, name string) (Key, error) {
	return generateKey(seed, name, true)
}

// GenerateWorkKey derives a new work key from seed, self-signs it, and
// certifies it with master (which must carry its own secret key).
func GenerateWorkKey(seed primitives.Key, name string, master Key) (Key, error) {
	k, err := generateKey(seed, name, false)
	if err != nil {
		return Key{}, err
	}
	if err := k.CertifyWith(master); err != nil {
		return Key{}, err
	}
	return k, nil
}

func generateKey(seed primitives.Key, name string, isMaster bool) (Key, error) {
	sec, pub := primitives.SignKeygen(seed)
	_, dhPub := primitives.DHKeygen(seed)
	k := Key{
		Pub:          pub,
		Sec:          sec,
		DHPub:        dhPub,
		SecretAvail:  true,
		Name:         name,
		CreationTime: time.Now(),
		IsMaster:     isMaster,
	}
	if err := k.selfSign(); err != nil {
		return Key{}, err
	}
	return k, nil
}

// StripSecret returns a copy of k with its secret key material removed
// and OnlyPublic set, suitable for handing to someone else.
func (k Key) StripSecret() Key {
	k.Sec = primitives.Key{}
	k.SecretAvail = false
	k.OnlyPublic = true
	return k
}
