package keys

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// KeyHashSize is the byte length of a key hash (blake2b-224).
const KeyHashSize = 28

// KeyHash identifies a signing key on the ledger. It is the blake2b-224
// digest of the raw public key bytes, matching the payment-credential style
// of the target chain.
type KeyHash [KeyHashSize]byte

// HashPublicKey derives the ledger key hash for raw public key bytes.
func HashPublicKey(pub []byte) KeyHash {
	h, err := blake2b.New(KeyHashSize, nil)
	if err != nil {
		// blake2b.New only fails for invalid digest sizes or oversized keys.
		panic(err)
	}
	_, _ = h.Write(pub)
	var out KeyHash
	copy(out[:], h.Sum(nil))
	return out
}

func (h KeyHash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether the hash is the all-zero value.
func (h KeyHash) IsZero() bool {
	return h == KeyHash{}
}

func (h KeyHash) Equal(other KeyHash) bool {
	return bytes.Equal(h[:], other[:])
}

// ParseKeyHash parses a 56-character hex key hash.
func ParseKeyHash(s string) (KeyHash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return KeyHash{}, fmt.Errorf("keys: invalid key hash hex: %w", err)
	}
	if len(b) != KeyHashSize {
		return KeyHash{}, fmt.Errorf("keys: key hash must be %d bytes, got %d", KeyHashSize, len(b))
	}
	var out KeyHash
	copy(out[:], b)
	return out, nil
}
