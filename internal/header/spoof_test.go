package header

import (
	"bytes"
	"testing"

	"github.com/bernedogit/amber-sub001/internal/primitives"
)

func TestSpoofHeaderOpensUnderSelfIdentity(t *testing.T) {
	rng, err := primitives.NewKeyedRandom([]byte("spoof-test"))
	if err != nil {
		t.Fatalf("NewKeyedRandom() error = %v", err)
	}

	self := genStaticKeyPair(t)
	target := genStaticKeyPair(t)

	var buf bytes.Buffer
	key, nonce, authKeyW, err := WriteSpoofHeader(&buf, self, target.Pub, 2, 8192, 256, rng)
	if err != nil {
		t.Fatalf("WriteSpoofHeader() error = %v", err)
	}
	if nonce != 1 {
		t.Fatalf("nonce = %d, want 1", nonce)
	}

	gotKey, gotNonce, claimedSender, bs, bf, info, position, authKeyR, nrx, err := ReadPublicHeader(&buf, self)
	if err != nil {
		t.Fatalf("ReadPublicHeader() error = %v", err)
	}
	if gotKey != key || gotNonce != 1 {
		t.Fatalf("got key/nonce = %x/%d, want %x/1", gotKey, gotNonce, key)
	}
	if claimedSender != target.Pub {
		t.Fatalf("claimedSender = %x, want target pub %x", claimedSender, target.Pub)
	}
	if bs != 8192 || bf != 256 || info != 0 {
		t.Fatalf("got bs=%d bf=%d info=%d, want 8192/256/0", bs, bf, info)
	}
	if position != 0 {
		t.Fatalf("position = %d, want 0 (the genuine entry is always first)", position)
	}
	if nrx != 3 {
		t.Fatalf("nrx = %d, want 3 (1 genuine + 2 dummy entries)", nrx)
	}
	if authKeyR != authKeyW {
		t.Fatalf("authKeyR = %x, want authKeyW = %x", authKeyR, authKeyW)
	}
}

func TestSpoofHeaderRejectsStranger(t *testing.T) {
	rng, _ := primitives.NewKeyedRandom([]byte("spoof-test-2"))

	self := genStaticKeyPair(t)
	target := genStaticKeyPair(t)
	stranger := genStaticKeyPair(t)

	var buf bytes.Buffer
	if _, _, _, err := WriteSpoofHeader(&buf, self, target.Pub, 0, 4096, 128, rng); err != nil {
		t.Fatalf("WriteSpoofHeader() error = %v", err)
	}

	_, _, _, _, _, _, _, _, _, err := ReadPublicHeader(&buf, stranger)
	if err == nil {
		t.Fatal("ReadPublicHeader() should fail for a stranger identity")
	}

	buf.Reset()
	if _, _, _, err := WriteSpoofHeader(&buf, self, target.Pub, 0, 4096, 128, rng); err != nil {
		t.Fatalf("WriteSpoofHeader() error = %v", err)
	}
	_, _, _, _, _, _, _, _, _, err = ReadPublicHeader(&buf, target)
	if err == nil {
		t.Fatal("ReadPublicHeader() should fail for target's own identity: only self can open this header")
	}
}
