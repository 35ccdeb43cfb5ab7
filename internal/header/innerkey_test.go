package header

import (
	"testing"

	"github.com/bernedogit/amber-sub001/internal/primitives"
)

func TestInnerKeyFromPasswordDeterministicAndNonceBound(t *testing.T) {
	outerKey := genStaticKeyPair(t).Sec

	k1, err := InnerKeyFromPassword(outerKey, 1, []byte("hidden-pass"), 4)
	if err != nil {
		t.Fatalf("InnerKeyFromPassword() error = %v", err)
	}
	k2, err := InnerKeyFromPassword(outerKey, 1, []byte("hidden-pass"), 4)
	if err != nil {
		t.Fatalf("InnerKeyFromPassword() error = %v", err)
	}
	if k1 != k2 {
		t.Fatal("InnerKeyFromPassword() is not deterministic for identical inputs")
	}

	k3, err := InnerKeyFromPassword(outerKey, 2, []byte("hidden-pass"), 4)
	if err != nil {
		t.Fatalf("InnerKeyFromPassword() error = %v", err)
	}
	if k1 == k3 {
		t.Fatal("InnerKeyFromPassword() ignored the outer nonce")
	}
}

func TestInnerKeyFromDHMatchesBothSides(t *testing.T) {
	sender := genStaticKeyPair(t)
	rx2 := genStaticKeyPair(t)
	var outerKey primitives.Key
	primitives.RandomBytes(outerKey[:])

	k1, err := InnerKeyFromDH(sender.Sec, rx2.Pub, outerKey)
	if err != nil {
		t.Fatalf("InnerKeyFromDH() error = %v", err)
	}
	k2, err := InnerKeyFromDH(rx2.Sec, sender.Pub, outerKey)
	if err != nil {
		t.Fatalf("InnerKeyFromDH() error = %v", err)
	}
	if k1 != k2 {
		t.Fatal("InnerKeyFromDH() disagrees between the two DH participants")
	}
}
