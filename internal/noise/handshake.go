package noise

import (
	"errors"
	"fmt"

	"github.com/bernedogit/amber-sub001/internal/primitives"
)

// ErrPatternMisuse is returned when a handshake is driven out of order:
// WriteMessage/ReadMessage called on the wrong turn, or called again
// after the handshake already finished.
var ErrPatternMisuse = errors.New("noise: handshake pattern misuse")

// KeyPair is a DH static or ephemeral key pair.
type KeyPair struct {
	Sec, Pub primitives.Key
}

// Handshake drives one run of a named Noise pattern to completion,
// producing a pair of transport CipherStates via Split.
type Handshake struct {
	pat         *Pattern
	symmetric   *SymmetricState
	initiator   bool
	elligated   bool
	msgIndex    int
	rng         *primitives.KeyedRandom

	s, e   *KeyPair // this party's static/ephemeral
	rs, re primitives.Key // remote's static/ephemeral (received or premessage)
	hasRS  bool
	hasRE  bool

	psk []byte
}

// Config supplies the key material a handshake needs before its first
// message: the local static identity (required unless the pattern never
// uses s), the local ephemeral (generated if nil), and the remote
// static key when the pattern's premessage requires it known in
// advance.
type Config struct {
	PatternName  string
	Initiator    bool
	Prologue     []byte
	LocalStatic  *KeyPair
	LocalEphem   *KeyPair // optional: caller-supplied instead of freshly generated
	RemoteStatic *primitives.Key
	RemoteEphem  *primitives.Key // required for XXfallback premessage
	PSK          []byte
	Elligator    bool // encode/decode ephemeral keys as elligator representatives on the wire
	RNG          *primitives.KeyedRandom
}

// NewHandshake initializes a Handshake for the named pattern.
func NewHandshake(cfg Config) (*Handshake, error) {
	pat := LookupPattern(cfg.PatternName)
	if pat == nil {
		return nil, fmt.Errorf("noise: unknown pattern %q: %w", cfg.PatternName, ErrPatternMisuse)
	}
	protoName := "Noise_" + pat.name + "_25519_ChaChaPoly_BLAKE2s"

	rng := cfg.RNG
	if rng == nil {
		var err error
		rng, err = primitives.NewKeyedRandom([]byte(protoName))
		if err != nil {
			return nil, err
		}
	}

	hs := &Handshake{
		pat:       pat,
		symmetric: NewSymmetric(protoName, cfg.Prologue),
		initiator: cfg.Initiator,
		elligated: cfg.Elligator,
		rng:       rng,
		s:         cfg.LocalStatic,
		psk:       cfg.PSK,
	}

	if cfg.LocalEphem != nil {
		hs.e = cfg.LocalEphem
	}
	if cfg.RemoteStatic != nil {
		hs.rs = *cfg.RemoteStatic
		hs.hasRS = true
	}
	if cfg.RemoteEphem != nil {
		hs.re = *cfg.RemoteEphem
		hs.hasRE = true
	}

	// Premessages: mix the already-known keys into the transcript hash
	// in initiator-then-responder order, exactly as if they had been
	// sent over the wire before message 0.
	initiatorHasPre := pat.preInitiator != nil
	responderHasPre := pat.preResponder != nil

	localIsA := cfg.Initiator
	if localIsA {
		if initiatorHasPre {
			if hs.s == nil {
				return nil, fmt.Errorf("noise: pattern %s requires a local static key: %w", pat.name, ErrPatternMisuse)
			}
			hs.symmetric.MixHash(hs.s.Pub[:])
		}
		if responderHasPre {
			if !hs.hasRS && !hs.hasRE {
				return nil, fmt.Errorf("noise: pattern %s requires the remote premessage key: %w", pat.name, ErrPatternMisuse)
			}
			if pat.fallback {
				hs.symmetric.MixHash(hs.re[:])
			} else {
				hs.symmetric.MixHash(hs.rs[:])
			}
		}
	} else {
		if initiatorHasPre {
			if !hs.hasRS {
				return nil, fmt.Errorf("noise: pattern %s requires the remote premessage key: %w", pat.name, ErrPatternMisuse)
			}
			hs.symmetric.MixHash(hs.rs[:])
		}
		if responderHasPre {
			if pat.fallback {
				if hs.e == nil {
					return nil, fmt.Errorf("noise: XXfallback requires the aborted ephemeral: %w", ErrPatternMisuse)
				}
				hs.symmetric.MixHash(hs.e.Pub[:])
			} else {
				if hs.s == nil {
					return nil, fmt.Errorf("noise: pattern %s requires a local static key: %w", pat.name, ErrPatternMisuse)
				}
				hs.symmetric.MixHash(hs.s.Pub[:])
			}
		}
	}

	return hs, nil
}

func (h *Handshake) myTurnToWrite() bool {
	writerIsInitiator := h.msgIndex%2 == 0
	return writerIsInitiator == h.initiator
}

// Finished reports whether every message in the pattern has been
// processed and Split is ready to be called.
func (h *Handshake) Finished() bool {
	return h.msgIndex >= len(h.pat.messages)
}

// WriteMessage produces the next handshake message, mixing payload into
// it (payload may be empty, e.g. for messages that only carry key
// material).
func (h *Handshake) WriteMessage(payload []byte) ([]byte, error) {
	if h.Finished() {
		return nil, fmt.Errorf("noise: WriteMessage after handshake finished: %w", ErrPatternMisuse)
	}
	if !h.myTurnToWrite() {
		return nil, fmt.Errorf("noise: WriteMessage out of turn: %w", ErrPatternMisuse)
	}

	var out []byte
	for _, tok := range h.pat.messages[h.msgIndex] {
		switch tok {
		case tokE:
			if h.e == nil {
				if err := h.generateEphemeral(); err != nil {
					return nil, err
				}
			}
			wire, err := h.encodeDHPublic(h.e.Pub)
			if err != nil {
				return nil, err
			}
			out = append(out, wire...)
			h.symmetric.MixHash(wire)
			if len(h.psk) > 0 {
				h.symmetric.MixKey(h.e.Pub[:])
			}
		case tokS:
			if h.s == nil {
				return nil, fmt.Errorf("noise: pattern %s needs a local static key: %w", h.pat.name, ErrPatternMisuse)
			}
			ct, err := h.symmetric.EncryptAndHash(h.s.Pub[:])
			if err != nil {
				return nil, err
			}
			out = append(out, ct...)
		case tokEE, tokES, tokSE, tokSS:
			if err := h.mixDH(tok); err != nil {
				return nil, err
			}
		case tokPSK:
			h.symmetric.MixKeyAndHash(h.psk)
		}
	}

	ct, err := h.symmetric.EncryptAndHash(payload)
	if err != nil {
		return nil, err
	}
	out = append(out, ct...)
	h.msgIndex++
	return out, nil
}

// ReadMessage consumes the next handshake message and returns its
// decrypted payload.
func (h *Handshake) ReadMessage(msg []byte) ([]byte, error) {
	if h.Finished() {
		return nil, fmt.Errorf("noise: ReadMessage after handshake finished: %w", ErrPatternMisuse)
	}
	if h.myTurnToWrite() {
		return nil, fmt.Errorf("noise: ReadMessage out of turn: %w", ErrPatternMisuse)
	}

	for _, tok := range h.pat.messages[h.msgIndex] {
		switch tok {
		case tokE:
			raw, pub, rest, err := h.takeDHPublic(msg)
			if err != nil {
				return nil, err
			}
			msg = rest
			h.re = pub
			h.hasRE = true
			h.symmetric.MixHash(raw)
			if len(h.psk) > 0 {
				h.symmetric.MixKey(h.re[:])
			}
		case tokS:
			n := primitives.KeySize
			if h.symmetric.cipher.HasKey() {
				n += primitives.TagSize
			}
			if len(msg) < n {
				return nil, fmt.Errorf("noise: truncated static key field: %w", ErrPatternMisuse)
			}
			pt, err := h.symmetric.DecryptAndHash(msg[:n])
			if err != nil {
				return nil, err
			}
			msg = msg[n:]
			copy(h.rs[:], pt)
			h.hasRS = true
		case tokEE, tokES, tokSE, tokSS:
			if err := h.mixDH(tok); err != nil {
				return nil, err
			}
		case tokPSK:
			h.symmetric.MixKeyAndHash(h.psk)
		}
	}

	pt, err := h.symmetric.DecryptAndHash(msg)
	if err != nil {
		return nil, err
	}
	h.msgIndex++
	return pt, nil
}

func (h *Handshake) generateEphemeral() error {
	var seed primitives.Key
	for {
		h.rng.GetBytes(seed[:])
		sec, pub := primitives.DHKeygen(seed)
		if !h.elligated {
			h.e = &KeyPair{Sec: sec, Pub: pub}
			return nil
		}
		if _, ok := primitives.EncodePublicElligator(pub); ok {
			h.e = &KeyPair{Sec: sec, Pub: pub}
			return nil
		}
	}
}

// encodeDHPublic returns the wire encoding of a local DH public key:
// the raw 32 bytes, or its elligator representative when configured.
func (h *Handshake) encodeDHPublic(pub primitives.Key) ([]byte, error) {
	if !h.elligated {
		return pub[:], nil
	}
	repr, ok := primitives.EncodePublicElligator(pub)
	if !ok {
		return nil, fmt.Errorf("noise: ephemeral key is not elligible for elligator encoding: %w", ErrPatternMisuse)
	}
	return repr[:], nil
}

// takeDHPublic reads one DH public key field (raw or elligator) off the
// front of msg and returns the raw wire bytes (for hashing), the
// decoded key, and the remaining bytes.
func (h *Handshake) takeDHPublic(msg []byte) (raw []byte, pub primitives.Key, rest []byte, err error) {
	if len(msg) < primitives.KeySize {
		return nil, pub, nil, fmt.Errorf("noise: truncated ephemeral key field: %w", ErrPatternMisuse)
	}
	var repr [32]byte
	copy(repr[:], msg[:primitives.KeySize])
	if h.elligated {
		pub = primitives.DecodePublicElligator(repr)
	} else {
		pub = primitives.Key(repr)
	}
	return msg[:primitives.KeySize], pub, msg[primitives.KeySize:], nil
}

func (h *Handshake) mixDH(tok token) error {
	var localSec primitives.Key
	var remotePub primitives.Key

	switch tok {
	case tokEE:
		if h.e == nil || !h.hasRE {
			return fmt.Errorf("noise: ee token needs both ephemerals: %w", ErrPatternMisuse)
		}
		localSec, remotePub = h.e.Sec, h.re
	case tokES:
		if h.initiator {
			if h.e == nil || !h.hasRS {
				return fmt.Errorf("noise: es token needs local e and remote s: %w", ErrPatternMisuse)
			}
			localSec, remotePub = h.e.Sec, h.rs
		} else {
			if h.s == nil || !h.hasRE {
				return fmt.Errorf("noise: es token needs local s and remote e: %w", ErrPatternMisuse)
			}
			localSec, remotePub = h.s.Sec, h.re
		}
	case tokSE:
		if h.initiator {
			if h.s == nil || !h.hasRE {
				return fmt.Errorf("noise: se token needs local s and remote e: %w", ErrPatternMisuse)
			}
			localSec, remotePub = h.s.Sec, h.re
		} else {
			if h.e == nil || !h.hasRS {
				return fmt.Errorf("noise: se token needs local e and remote s: %w", ErrPatternMisuse)
			}
			localSec, remotePub = h.e.Sec, h.rs
		}
	case tokSS:
		if h.s == nil || !h.hasRS {
			return fmt.Errorf("noise: ss token needs both statics: %w", ErrPatternMisuse)
		}
		localSec, remotePub = h.s.Sec, h.rs
	default:
		return fmt.Errorf("noise: mixDH called with non-DH token: %w", ErrPatternMisuse)
	}

	shared, err := primitives.DHShared(remotePub, localSec)
	if err != nil {
		return fmt.Errorf("noise: %v: %w", err, ErrHandshakeAuth)
	}
	h.symmetric.MixKey(shared[:])
	return nil
}

// Split finalizes the handshake, returning the sender/receiver
// CipherStates for this party (tx first, rx second from the local
// party's perspective).
func (h *Handshake) Split() (tx, rx CipherState, err error) {
	if !h.Finished() {
		return tx, rx, fmt.Errorf("noise: Split before handshake finished: %w", ErrPatternMisuse)
	}
	c1, c2 := h.symmetric.Split()
	if h.initiator {
		return c1, c2, nil
	}
	return c2, c1, nil
}

// HandshakeHash returns the final transcript hash, usable as a channel
// binding value.
func (h *Handshake) HandshakeHash() [32]byte {
	return h.symmetric.HandshakeHash()
}

// RemoteStatic returns the peer's static public key, if the pattern
// ever revealed one (either via premessage or an s token).
func (h *Handshake) RemoteStatic() (primitives.Key, bool) {
	return h.rs, h.hasRS
}
