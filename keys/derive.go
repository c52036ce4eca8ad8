package keys

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// DeriveRoleSeed deterministically derives a role-specific ed25519 seed from
// a root seed. A compromised role key never reveals the root seed.
func DeriveRoleSeed(rootSeed []byte, role string) ([]byte, error) {
	if len(rootSeed) != ed25519.SeedSize {
		return nil, fmt.Errorf("keys: root seed must be %d bytes", ed25519.SeedSize)
	}
	if err := CheckRole(role); err != nil {
		return nil, err
	}

	h := sha3.New256()
	_, _ = h.Write(rootSeed)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("sovid-keystore-v1"))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("role:"))
	_, _ = h.Write([]byte(role))
	sum := h.Sum(nil)
	if len(sum) < ed25519.SeedSize {
		return nil, errors.New("keys: kdf output too short")
	}
	out := make([]byte, ed25519.SeedSize)
	copy(out, sum[:ed25519.SeedSize])
	return out, nil
}

// KeyHashFromSeed returns the ledger key hash for an ed25519 seed.
func KeyHashFromSeed(seed []byte) (KeyHash, error) {
	s, err := NewEd25519Signer(seed)
	if err != nil {
		return KeyHash{}, err
	}
	return s.KeyHash(), nil
}
