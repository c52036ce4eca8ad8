package keys

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func TestEd25519_SignVerify(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, 32)
	s, err := NewEd25519Signer(seed)
	if err != nil {
		t.Fatalf("NewEd25519Signer: %v", err)
	}
	msg := []byte("hello ledger")
	sig := s.Sign(msg)

	if err := Verify(SchemeEd25519, s.Public(), msg, sig); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := Verify(SchemeEd25519, s.Public(), append(msg, '!'), sig); err == nil {
		t.Fatalf("tampered message must not verify")
	}
	sig[0] ^= 0xff
	if err := Verify(SchemeEd25519, s.Public(), msg, sig); err == nil {
		t.Fatalf("tampered signature must not verify")
	}
}

func TestDilithium3_SignVerify(t *testing.T) {
	s, err := GenerateDilithium3(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateDilithium3: %v", err)
	}
	msg := []byte("post-quantum message")
	sig := s.Sign(msg)

	if err := Verify(SchemeDilithium3, s.Public(), msg, sig); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := Verify(SchemeDilithium3, s.Public(), append(msg, '!'), sig); err == nil {
		t.Fatalf("tampered message must not verify")
	}
}

func TestVerify_UnknownScheme(t *testing.T) {
	if err := Verify("rot13", nil, []byte("m"), nil); err == nil {
		t.Fatalf("expected rejection of unknown scheme")
	}
}

func TestKeyHash_Stable(t *testing.T) {
	seed := bytes.Repeat([]byte{9}, 32)
	a, err := NewEd25519Signer(seed)
	if err != nil {
		t.Fatalf("NewEd25519Signer: %v", err)
	}
	b, err := NewEd25519Signer(seed)
	if err != nil {
		t.Fatalf("NewEd25519Signer: %v", err)
	}
	if a.KeyHash() != b.KeyHash() {
		t.Fatalf("key hash must be deterministic")
	}

	parsed, err := ParseKeyHash(a.KeyHash().String())
	if err != nil {
		t.Fatalf("ParseKeyHash: %v", err)
	}
	if parsed != a.KeyHash() {
		t.Fatalf("key hash does not round trip through hex")
	}
}
