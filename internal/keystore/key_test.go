package keystore

import (
	"testing"

	"github.com/bernedogit/amber-sub001/internal/primitives"
)

func seed(t *testing.T, b byte) primitives.Key {
	t.Helper()
	var s primitives.Key
	for i := range s {
		s[i] = b
	}
	return s
}

func TestGenerateMasterKeySelfSignsCorrectly(t *testing.T) {
	k, err := GenerateMasterKey(seed(t, 1), "alice")
	if err != nil {
		t.Fatalf("GenerateMasterKey() error = %v", err)
	}
	if !k.IsMaster || !k.SecretAvail {
		t.Fatalf("k = %+v, want IsMaster and SecretAvail", k)
	}
	if err := k.VerifySelf(); err != nil {
		t.Fatalf("VerifySelf() error = %v", err)
	}
}

func TestGenerateWorkKeyCertifiedByMaster(t *testing.T) {
	master, err := GenerateMasterKey(seed(t, 2), "alice")
	if err != nil {
		t.Fatalf("GenerateMasterKey() error = %v", err)
	}
	work, err := GenerateWorkKey(seed(t, 3), "alice-laptop", master)
	if err != nil {
		t.Fatalf("GenerateWorkKey() error = %v", err)
	}
	if work.IsMaster {
		t.Fatal("work key should not be master")
	}
	if len(work.Certs) != 1 {
		t.Fatalf("got %d certs, want 1", len(work.Certs))
	}
	bad, err := work.VerifyCerts()
	if err != nil {
		t.Fatalf("VerifyCerts() error = %v", err)
	}
	if len(bad) != 0 {
		t.Fatalf("VerifyCerts() found %d invalid, want 0", len(bad))
	}
}

func TestTamperedNameBreaksSelfSignature(t *testing.T) {
	k, err := GenerateMasterKey(seed(t, 4), "alice")
	if err != nil {
		t.Fatalf("GenerateMasterKey() error = %v", err)
	}
	k.Name = "mallory"
	if err := k.VerifySelf(); err == nil {
		t.Fatal("VerifySelf() succeeded after tampering with name, want error")
	}
}

func TestWorkKeyCannotCertify(t *testing.T) {
	master, _ := GenerateMasterKey(seed(t, 5), "alice")
	work, _ := GenerateWorkKey(seed(t, 6), "alice-laptop", master)
	other, _ := GenerateMasterKey(seed(t, 7), "bob")

	if err := other.CertifyWith(work); err == nil {
		t.Fatal("CertifyWith(work key) succeeded, want error")
	}
}

func TestStripSecretClearsSecretMaterial(t *testing.T) {
	k, _ := GenerateMasterKey(seed(t, 8), "alice")
	pub := k.StripSecret()
	if pub.SecretAvail || !pub.OnlyPublic {
		t.Fatalf("pub = %+v", pub)
	}
	var zero primitives.Key
	if pub.Sec != zero {
		t.Fatal("StripSecret() left secret key material in place")
	}
	if err := pub.VerifySelf(); err != nil {
		t.Fatalf("VerifySelf() on stripped key error = %v", err)
	}
}
