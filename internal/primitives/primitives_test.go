package primitives

import (
	"bytes"
	"testing"
)

func TestStreamXORRoundTrip(t *testing.T) {
	var key Key
	if err := RandomBytes(key[:]); err != nil {
		t.Fatalf("RandomBytes() error = %v", err)
	}

	plaintext := []byte("the quick brown fox jumps over the lazy dog")
	ciphertext := make([]byte, len(plaintext))
	if err := StreamXOR(ciphertext, plaintext, key, 42, 7); err != nil {
		t.Fatalf("StreamXOR() error = %v", err)
	}
	if bytes.Equal(ciphertext, plaintext) {
		t.Fatal("ciphertext equals plaintext")
	}

	recovered := make([]byte, len(ciphertext))
	if err := StreamXOR(recovered, ciphertext, key, 42, 7); err != nil {
		t.Fatalf("StreamXOR() decrypt error = %v", err)
	}
	if !bytes.Equal(recovered, plaintext) {
		t.Fatalf("recovered = %q, want %q", recovered, plaintext)
	}
}

func TestAEADSealOpenMultiRecipientCoverage(t *testing.T) {
	var keyEnc, ka0, ka1, unrelated Key
	for _, k := range []*Key{&keyEnc, &ka0, &ka1, &unrelated} {
		if err := RandomBytes(k[:]); err != nil {
			t.Fatalf("RandomBytes() error = %v", err)
		}
	}

	plaintext := []byte("hello world\n")
	ad := []byte{2}
	sealed, err := AEADSealMulti(plaintext, ad, keyEnc, []Key{ka0, ka1}, 100)
	if err != nil {
		t.Fatalf("AEADSealMulti() error = %v", err)
	}
	if len(sealed) != len(plaintext)+2*TagSize {
		t.Fatalf("len(sealed) = %d, want %d", len(sealed), len(plaintext)+2*TagSize)
	}

	open0, err := AEADOpenMulti(sealed, ad, keyEnc, ka0, 2, 0, 100)
	if err != nil {
		t.Fatalf("AEADOpenMulti(recipient 0) error = %v", err)
	}
	open1, err := AEADOpenMulti(sealed, ad, keyEnc, ka1, 2, 1, 100)
	if err != nil {
		t.Fatalf("AEADOpenMulti(recipient 1) error = %v", err)
	}
	if !bytes.Equal(open0, plaintext) || !bytes.Equal(open1, plaintext) {
		t.Fatalf("recipients disagree: %q vs %q vs want %q", open0, open1, plaintext)
	}

	if _, err := AEADOpenMulti(sealed, ad, keyEnc, unrelated, 2, 0, 100); err == nil {
		t.Fatal("AEADOpenMulti() with unrelated key succeeded, want error")
	}
}

func TestAEADOpenMultiTagFlip(t *testing.T) {
	var keyEnc, ka Key
	RandomBytes(keyEnc[:])
	RandomBytes(ka[:])

	sealed, err := AEADSealMulti([]byte("payload"), []byte{1}, keyEnc, []Key{ka}, 5)
	if err != nil {
		t.Fatalf("AEADSealMulti() error = %v", err)
	}
	sealed[0] ^= 0x01 // flip a bit in the ciphertext

	if _, err := AEADOpenMulti(sealed, []byte{1}, keyEnc, ka, 1, 0, 5); err == nil {
		t.Fatal("AEADOpenMulti() with flipped bit succeeded, want error")
	}
}

func TestHashLongBounds(t *testing.T) {
	if _, err := HashLong(0, nil, []byte("x")); err == nil {
		t.Fatal("HashLong(0) succeeded, want error")
	}
	if _, err := HashLong(65, nil, []byte("x")); err == nil {
		t.Fatal("HashLong(65) succeeded, want error")
	}
	out, err := HashLong(64, []byte("key"), []byte("a"), []byte("b"))
	if err != nil {
		t.Fatalf("HashLong() error = %v", err)
	}
	if len(out) != 64 {
		t.Fatalf("len(out) = %d, want 64", len(out))
	}
}

func TestKDFPasswordDeterministic(t *testing.T) {
	salt := make([]byte, 32)
	RandomBytes(salt)

	k1, err := KDFPassword([]byte("kkti"), salt, 4, 8, 1, 32)
	if err != nil {
		t.Fatalf("KDFPassword() error = %v", err)
	}
	k2, err := KDFPassword([]byte("kkti"), salt, 4, 8, 1, 32)
	if err != nil {
		t.Fatalf("KDFPassword() error = %v", err)
	}
	if !bytes.Equal(k1, k2) {
		t.Fatal("KDFPassword() not deterministic")
	}

	k3, _ := KDFPassword([]byte("other"), salt, 4, 8, 1, 32)
	if bytes.Equal(k1, k3) {
		t.Fatal("KDFPassword() ignored password")
	}
}

func TestDHSharedAgreement(t *testing.T) {
	var seedA, seedB Key
	RandomBytes(seedA[:])
	RandomBytes(seedB[:])

	secA, pubA := DHKeygen(seedA)
	secB, pubB := DHKeygen(seedB)

	sharedA, err := DHShared(pubB, secA)
	if err != nil {
		t.Fatalf("DHShared(A) error = %v", err)
	}
	sharedB, err := DHShared(pubA, secB)
	if err != nil {
		t.Fatalf("DHShared(B) error = %v", err)
	}
	if sharedA != sharedB {
		t.Fatal("DH shared secrets disagree")
	}
}

func TestDHSharedRejectsZeroKey(t *testing.T) {
	var sec, zero Key
	RandomBytes(sec[:])
	if _, err := DHShared(zero, sec); err == nil {
		t.Fatal("DHShared() with zero public key succeeded, want error")
	}
}

func TestElligatorRoundTrip(t *testing.T) {
	found := 0
	for i := 0; i < 64 && found < 8; i++ {
		var seed Key
		RandomBytes(seed[:])
		_, pub := DHKeygen(seed)

		repr, ok := EncodePublicElligator(pub)
		if !ok {
			continue
		}
		found++
		got := DecodePublicElligator(repr)
		if got != pub {
			t.Fatalf("elligator round trip mismatch: got %x want %x", got, pub)
		}
	}
	if found == 0 {
		t.Fatal("no elligible public key found in 64 tries (expected about half to be elligible)")
	}
}

func TestSignVerify(t *testing.T) {
	var seed Key
	RandomBytes(seed[:])
	sec, pub := SignKeygen(seed)

	msg := []byte("H(pub||len(name)||name||creation_time)")
	sig := Sign("Key signature prefix", msg, sec, pub)
	if err := Verify("Key signature prefix", msg, sig, pub); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if err := Verify("Amber signature prefix", msg, sig, pub); err == nil {
		t.Fatal("Verify() with wrong context succeeded, want error")
	}
	msg[0] ^= 1
	if err := Verify("Key signature prefix", msg, sig, pub); err == nil {
		t.Fatal("Verify() with tampered message succeeded, want error")
	}
}

func TestKeyedRandomConsecutiveOutputsDistinct(t *testing.T) {
	kr, err := NewKeyedRandom([]byte("context"))
	if err != nil {
		t.Fatalf("NewKeyedRandom() error = %v", err)
	}
	a := make([]byte, 48)
	b := make([]byte, 48)
	kr.GetBytes(a)
	kr.GetBytes(b)
	if bytes.Equal(a, b) {
		t.Fatal("consecutive KeyedRandom outputs are identical")
	}
}
