package keystore

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bernedogit/amber-sub001/internal/primitives"
)

func TestRingEncodeDecodeRoundTrip(t *testing.T) {
	master, err := GenerateMasterKey(seed(t, 10), "alice")
	if err != nil {
		t.Fatalf("GenerateMasterKey() error = %v", err)
	}
	work, err := GenerateWorkKey(seed(t, 11), "alice-laptop", master)
	if err != nil {
		t.Fatalf("GenerateWorkKey() error = %v", err)
	}

	ring := &Ring{Keys: []Key{master, work}}
	var buf bytes.Buffer
	if err := ring.Encode(&buf); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	got, report, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(report.Rejected) != 0 {
		t.Fatalf("Decode() rejected %d records: %v", len(report.Rejected), report.Rejected)
	}
	if len(got.Keys) != 2 {
		t.Fatalf("got %d keys, want 2", len(got.Keys))
	}
	if got.Keys[0].Name != "alice" || got.Keys[1].Name != "alice-laptop" {
		t.Fatalf("got names %q, %q", got.Keys[0].Name, got.Keys[1].Name)
	}
	if len(got.Keys[1].Certs) != 1 {
		t.Fatalf("work key got %d certs, want 1", len(got.Keys[1].Certs))
	}
}

func TestRingDecodeRejectsTamperedSelfSignature(t *testing.T) {
	k, _ := GenerateMasterKey(seed(t, 12), "alice")
	k.SelfSignature[0] ^= 0xFF

	var buf bytes.Buffer
	if err := MarshalKey(&buf, k); err != nil {
		t.Fatalf("MarshalKey() error = %v", err)
	}
	ring, report, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(ring.Keys) != 0 {
		t.Fatalf("got %d keys, want 0 (record should be rejected)", len(ring.Keys))
	}
	if len(report.Rejected) != 1 {
		t.Fatalf("got %d rejected, want 1", len(report.Rejected))
	}
}

func TestRingDecodeDropsOnlyBadCertification(t *testing.T) {
	master, _ := GenerateMasterKey(seed(t, 13), "alice")
	work, _ := GenerateWorkKey(seed(t, 14), "alice-laptop", master)
	work.Certs[0].Signature[0] ^= 0xFF

	var buf bytes.Buffer
	if err := MarshalKey(&buf, work); err != nil {
		t.Fatalf("MarshalKey() error = %v", err)
	}
	ring, report, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(report.Rejected) != 0 {
		t.Fatalf("got %d rejected, want 0 (only the bad cert should drop)", len(report.Rejected))
	}
	if len(ring.Keys) != 1 {
		t.Fatalf("got %d keys, want 1", len(ring.Keys))
	}
	if len(ring.Keys[0].Certs) != 0 {
		t.Fatalf("got %d certs, want 0 (bad cert should have been dropped)", len(ring.Keys[0].Certs))
	}
}

func TestRingSelectionBySelector(t *testing.T) {
	k1, _ := GenerateMasterKey(seed(t, 15), "alice smith")
	k2, _ := GenerateMasterKey(seed(t, 16), "bob jones")
	ring := &Ring{Keys: []Key{k1, k2}}

	byName := ring.Select([]string{"alice"})
	if len(byName) != 1 || byName[0].Name != "alice smith" {
		t.Fatalf("Select(alice) = %+v", byName)
	}

	byPrefix := ring.Select([]string{k2.EncodedPub()[:8]})
	if len(byPrefix) != 1 || byPrefix[0].Name != "bob jones" {
		t.Fatalf("Select(prefix) = %+v", byPrefix)
	}

	noMatch := ring.Select([]string{"smithson"})
	if len(noMatch) != 0 {
		t.Fatalf("Select(smithson) should not whole-word match %q, got %+v", "alice smith", noMatch)
	}
}

func TestRingSelectOneAmbiguous(t *testing.T) {
	k1, _ := GenerateMasterKey(seed(t, 17), "alice team")
	k2, _ := GenerateMasterKey(seed(t, 18), "bob team")
	k2.CreationTime = k1.CreationTime.Add(time.Hour)
	if err := k2.selfSign(); err != nil {
		t.Fatalf("selfSign() error = %v", err)
	}
	ring := &Ring{Keys: []Key{k1, k2}}

	if _, err := ring.SelectOne("team"); err != ErrAmbiguous {
		t.Fatalf("SelectOne(team) error = %v, want ErrAmbiguous", err)
	}

	recent, err := ring.SelectRecentOne("team", false)
	if err != nil {
		t.Fatalf("SelectRecentOne() error = %v", err)
	}
	if recent.Name != "bob team" {
		t.Fatalf("SelectRecentOne() = %q, want the most recently created match", recent.Name)
	}
}

func TestRingMutationsMarkDirty(t *testing.T) {
	k, _ := GenerateMasterKey(seed(t, 19), "alice")
	ring := &Ring{Keys: []Key{k}}
	ring.Dirty = false

	ring.Rename([]string{"alice"}, "alice renamed")
	if !ring.Dirty || ring.Keys[0].Name != "alice renamed" {
		t.Fatalf("Rename() did not apply: %+v, dirty=%v", ring.Keys[0], ring.Dirty)
	}

	ring.Dirty = false
	ring.SetAlias([]string{"alice renamed"}, "primary")
	if !ring.Dirty || ring.Keys[0].Alias != "primary" {
		t.Fatalf("SetAlias() did not apply: %+v", ring.Keys[0])
	}

	ring.Dirty = false
	ring.AppendAlias([]string{"alice renamed"}, "backup")
	if !ring.Dirty || ring.Keys[0].Alias != "primary,backup" {
		t.Fatalf("AppendAlias() = %q, want \"primary,backup\"", ring.Keys[0].Alias)
	}
}

func TestRingSignAndRemoveSignature(t *testing.T) {
	master, _ := GenerateMasterKey(seed(t, 20), "alice")
	other, _ := GenerateMasterKey(seed(t, 21), "bob")
	ring := &Ring{Keys: []Key{master, other}}

	n, err := ring.Sign(master, []string{"bob"})
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if n != 1 || len(ring.Keys[1].Certs) != 1 {
		t.Fatalf("Sign() n=%d, certs=%d", n, len(ring.Keys[1].Certs))
	}

	removed := ring.RemoveSignature(master.Pub, []string{"bob"})
	if removed != 1 || len(ring.Keys[1].Certs) != 0 {
		t.Fatalf("RemoveSignature() removed=%d, certs=%d", removed, len(ring.Keys[1].Certs))
	}
}

func TestRingDeleteRemovesMatchingKey(t *testing.T) {
	k1, _ := GenerateMasterKey(seed(t, 22), "alice")
	k2, _ := GenerateMasterKey(seed(t, 23), "bob")
	ring := &Ring{Keys: []Key{k1, k2}}

	if !ring.Delete([]Key{k1}) {
		t.Fatal("Delete() returned false, want true")
	}
	if len(ring.Keys) != 1 || ring.Keys[0].Name != "bob" {
		t.Fatalf("ring.Keys = %+v", ring.Keys)
	}
}

func TestRingMergeKeepsFirstSeenCertification(t *testing.T) {
	master, _ := GenerateMasterKey(seed(t, 24), "alice")
	otherMaster, _ := GenerateMasterKey(seed(t, 25), "carol")
	work, _ := GenerateWorkKey(seed(t, 26), "alice-laptop", master)

	local := &Ring{Keys: []Key{work}}

	imported := &Ring{Keys: []Key{work}}
	imported.Keys[0].Certs = nil
	if err := imported.Keys[0].CertifyWith(otherMaster); err != nil {
		t.Fatalf("CertifyWith() error = %v", err)
	}
	// The local copy carries master's cert and the imported copy only
	// carol's, so after merge the local record should end up with both.

	local.Merge(imported)
	if len(local.Keys[0].Certs) != 2 {
		t.Fatalf("after merge, got %d certs, want 2 (original + newly imported)", len(local.Keys[0].Certs))
	}

	// Re-merging the same ring must not duplicate the certification.
	local.Merge(imported)
	if len(local.Keys[0].Certs) != 2 {
		t.Fatalf("after re-merge, got %d certs, want still 2", len(local.Keys[0].Certs))
	}
}

func TestRingSavePlainAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ring.keys")

	master, _ := GenerateMasterKey(seed(t, 27), "alice")
	ring := &Ring{Keys: []Key{master}}
	if err := ring.Save(path, nil, 0, 0, 0, nil); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if ring.Dirty {
		t.Fatal("Save() should clear Dirty")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("directory has %d entries after Save(), want exactly 1 (no leftover temp file)", len(entries))
	}

	loaded, report, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(report.Rejected) != 0 || len(loaded.Keys) != 1 || loaded.Keys[0].Name != "alice" {
		t.Fatalf("loaded = %+v, report = %+v", loaded.Keys, report)
	}
}

func TestRingSaveEncryptedRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secret.cha")
	rng, err := primitives.NewKeyedRandom([]byte("ring-test"))
	if err != nil {
		t.Fatalf("NewKeyedRandom() error = %v", err)
	}

	master, _ := GenerateMasterKey(seed(t, 28), "alice")
	ring := &Ring{Keys: []Key{master}}
	if err := ring.Save(path, []byte("hunter2"), 4096, 256, 4, rng); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, report, err := Load(path, []byte("hunter2"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(report.Rejected) != 0 || len(loaded.Keys) != 1 || loaded.Keys[0].Name != "alice" {
		t.Fatalf("loaded = %+v, report = %+v", loaded.Keys, report)
	}

	if _, _, err := Load(path, []byte("wrong")); err == nil {
		t.Fatal("Load() with wrong password succeeded, want error")
	}
}
