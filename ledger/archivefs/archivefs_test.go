package archivefs

import (
	"errors"
	"os"
	"testing"

	"xdao.co/sovid/hashutil"
	"xdao.co/sovid/ledger"
)

func TestArchive_PutGetHas(t *testing.T) {
	a, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	payload := []byte(`{"seed":{"txid":"00","index":0}}`)
	id, err := a.Put(payload)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	expected, err := hashutil.CIDv1RawSHA256CID(payload)
	if err != nil {
		t.Fatalf("cid: %v", err)
	}
	if id != expected {
		t.Fatalf("cid: got %s want %s", id, expected)
	}
	if id.String() != hashutil.CIDv1RawSHA256(payload) {
		t.Fatalf("string and cid derivations disagree")
	}
	if !a.Has(id) {
		t.Fatalf("Has: expected true")
	}
	got, err := a.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload mismatch")
	}

	// Put is idempotent for identical bytes.
	if _, err := a.Put(payload); err != nil {
		t.Fatalf("repeat Put: %v", err)
	}
}

func TestArchive_GetMissing(t *testing.T) {
	a, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	id, err := hashutil.CIDv1RawSHA256CID([]byte("never stored"))
	if err != nil {
		t.Fatalf("cid: %v", err)
	}
	if _, err := a.Get(id); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("Get: got %v want ErrNotFound", err)
	}
	if a.Has(id) {
		t.Fatalf("Has: expected false")
	}
}

func TestArchive_DetectsOutOfBandMutation(t *testing.T) {
	a, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	orig := []byte("original")
	id, err := a.Put(orig)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	// Corrupt the stored object out-of-band.
	path := a.pathFor(id)
	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatalf("Chmod: %v", err)
	}
	if err := os.WriteFile(path, []byte("corrupted"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := a.Get(id); !errors.Is(err, ledger.ErrCIDMismatch) {
		t.Fatalf("Get mismatch: got %v want ErrCIDMismatch", err)
	}
	// Put must not "repair" or overwrite the corrupted object.
	if _, err := a.Put(orig); !errors.Is(err, ledger.ErrImmutable) {
		t.Fatalf("Put after corruption: got %v want ErrImmutable", err)
	}
}
