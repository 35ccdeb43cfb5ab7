package main

import (
	"testing"

	"github.com/bernedogit/amber-sub001/internal/keystore"
	"github.com/bernedogit/amber-sub001/internal/primitives"
)

func TestDHSecOfMatchesKeystoreDHPub(t *testing.T) {
	var seed primitives.Key
	if err := primitives.RandomBytes(seed[:]); err != nil {
		t.Fatalf("RandomBytes() error = %v", err)
	}

	k, err := keystore.GenerateMasterKey(seed, "test")
	if err != nil {
		t.Fatalf("GenerateMasterKey() error = %v", err)
	}

	sec := dhSecOf(k.Sec)
	_, wantPub := primitives.DHKeygen(seed)
	if wantPub != k.DHPub {
		t.Fatalf("keystore DHPub = %x, want %x", k.DHPub, wantPub)
	}

	_, gotPub := primitives.DHKeygen(sec)
	if gotPub != k.DHPub {
		t.Fatalf("public key derived from dhSecOf(k.Sec) = %x, want k.DHPub = %x", gotPub, k.DHPub)
	}
}
