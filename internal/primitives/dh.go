package primitives

import (
	"crypto/subtle"
	"fmt"
	"math/big"

	"golang.org/x/crypto/curve25519"
)

// DHKeygen derives an X25519 key pair from a 32-byte seed by clamping it
// per the X25519 spec and computing the corresponding public key.
func DHKeygen(seed Key) (sec, pub Key) {
	sec = seed
	sec[0] &= 248
	sec[31] &= 127
	sec[31] |= 64

	pubBytes, err := curve25519.X25519(sec[:], curve25519.Basepoint)
	if err != nil {
		// Scalar multiplication against the base point cannot fail.
		panic(fmt.Sprintf("primitives: DHKeygen: %v", err))
	}
	copy(pub[:], pubBytes)
	return sec, pub
}

// DHShared performs X25519 scalar multiplication, rejecting the
// all-zero public key and any low-order result.
func DHShared(pub, sec Key) (Key, error) {
	var shared Key
	if pub.IsZero() {
		return shared, fmt.Errorf("primitives: DHShared: %w", ErrLowOrderPoint)
	}
	out, err := curve25519.X25519(sec[:], pub[:])
	if err != nil {
		return shared, fmt.Errorf("primitives: DHShared: %w", ErrLowOrderPoint)
	}
	copy(shared[:], out)
	if shared.IsZero() {
		return shared, fmt.Errorf("primitives: DHShared: %w", ErrLowOrderPoint)
	}
	return shared, nil
}

// --- Elligator2-style uniform encoding of a Curve25519 u-coordinate ---
//
// A Curve25519 public key is a point on a curve and is therefore
// distinguishable from random 32-byte strings (not every 32-byte value
// is a valid u-coordinate with a point in the prime-order subgroup).
// Elligator2 is a bijection-like map between a subset of curve points
// ("elligible" points, about half of them) and uniformly random-looking
// 32-byte representatives. With elligator encoding on, the noise
// handshake's ephemeral key generation repeatedly samples fresh key
// pairs until it finds one that has a representative; on average this
// takes two tries.

var (
	fieldP     = mustBigFromHex("7fffffffffffffffffffffffffffffffffffffffffffffffffffffffffffed")
	curveA     = big.NewInt(486662)
	bigOne     = big.NewInt(1)
	bigTwo     = big.NewInt(2)
	halfFieldP = new(big.Int).Rsh(fieldP, 1) // (p-1)/2, exclusive upper bound for canonical representatives
)

func mustBigFromHex(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("primitives: bad field constant")
	}
	return n
}

func modP(x *big.Int) *big.Int {
	y := new(big.Int).Mod(x, fieldP)
	return y
}

func feFromBytes(b [32]byte) *big.Int {
	c := b
	c[31] &= 0x7f // clear the sign/high bit, as for any X25519 u-coordinate
	rev := make([]byte, 32)
	for i := range c {
		rev[i] = c[31-i]
	}
	return new(big.Int).SetBytes(rev)
}

func feToBytes(x *big.Int) [32]byte {
	x = modP(x)
	b := x.FillBytes(make([]byte, 32)) // big-endian
	var out [32]byte
	for i := 0; i < 32; i++ {
		out[i] = b[31-i]
	}
	return out
}

func isSquareModP(a *big.Int) bool {
	if a.Sign() == 0 {
		return true
	}
	exp := new(big.Int).Rsh(new(big.Int).Sub(fieldP, bigOne), 1) // (p-1)/2
	r := new(big.Int).Exp(a, exp, fieldP)
	return r.Cmp(bigOne) == 0
}

// decodeElligator maps any 32-byte representative to the Montgomery
// u-coordinate it encodes. This direction is total: every representative
// decodes to some valid u-coordinate.
func decodeElligator(repr [32]byte) *big.Int {
	r := feFromBytes(repr)
	usq := modP(new(big.Int).Mul(r, r))
	t1 := modP(new(big.Int).Add(bigOne, modP(new(big.Int).Mul(bigTwo, usq))))
	inv := new(big.Int).Exp(t1, new(big.Int).Sub(fieldP, bigTwo), fieldP) // Fermat inverse
	x1 := modP(new(big.Int).Mul(new(big.Int).Neg(curveA), inv))

	x1sq := modP(new(big.Int).Mul(x1, x1))
	inner := modP(new(big.Int).Add(bigOne, modP(new(big.Int).Add(x1sq, modP(new(big.Int).Mul(curveA, x1))))))
	gx1 := modP(new(big.Int).Mul(x1, inner))

	if isSquareModP(gx1) {
		return x1
	}
	x2 := modP(new(big.Int).Neg(modP(new(big.Int).Add(x1, curveA))))
	return x2
}

// encodeElligator attempts to find a 32-byte representative r such that
// decodeElligator(r) == x. Returns ok=false if x is not elligible (no
// such representative exists), which happens for roughly half of all
// curve points and is a normal, expected outcome: the caller picks a
// fresh ephemeral key and retries.
func encodeElligator(x *big.Int) (repr [32]byte, ok bool) {
	xPlusA := modP(new(big.Int).Add(x, curveA))
	candidates := []*big.Int{
		// x1-branch: u^2 = -(A+x) / (2x)
		safeDiv(modP(new(big.Int).Neg(xPlusA)), modP(new(big.Int).Mul(bigTwo, x))),
		// x2-branch: u^2 = -x / (2(x+A))
		safeDiv(modP(new(big.Int).Neg(x)), modP(new(big.Int).Mul(bigTwo, xPlusA))),
	}

	for _, usq := range candidates {
		if usq == nil || !isSquareModP(usq) {
			continue
		}
		u := new(big.Int).ModSqrt(usq, fieldP)
		if u == nil {
			continue
		}
		if u.Cmp(halfFieldP) >= 0 {
			u = modP(new(big.Int).Sub(fieldP, u))
		}
		candidateRepr := feToBytes(u)
		if decodeElligator(candidateRepr).Cmp(modP(x)) == 0 {
			return candidateRepr, true
		}
	}
	return repr, false
}

// safeDiv returns a/b mod p, or nil if b is zero mod p.
func safeDiv(a, b *big.Int) *big.Int {
	b = modP(b)
	if b.Sign() == 0 {
		return nil
	}
	inv := new(big.Int).Exp(b, new(big.Int).Sub(fieldP, bigTwo), fieldP)
	return modP(new(big.Int).Mul(a, inv))
}

// EncodePublicElligator returns the elligator-style uniform 32-byte
// encoding of pub, if pub is elligible (roughly half of all public
// keys are). Callers that need an elligible key should regenerate a
// fresh ephemeral key pair when ok is false.
func EncodePublicElligator(pub Key) (repr [32]byte, ok bool) {
	x := feFromBytes(pub)
	return encodeElligator(x)
}

// DecodePublicElligator recovers the Montgomery u-coordinate (public
// key) encoded by an elligator representative produced by
// EncodePublicElligator.
func DecodePublicElligator(repr [32]byte) Key {
	return Key(feToBytes(decodeElligator(feFromBytes(repr))))
}

// ConstantTimeEqual reports whether a and b are equal, in constant time.
func ConstantTimeEqual(a, b Key) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
