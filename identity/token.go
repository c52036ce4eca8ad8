package identity

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// OutputRef identifies a ledger entry by the transaction that produced it
// and the output position within that transaction.
type OutputRef struct {
	TxID  [32]byte
	Index uint32
}

func (r OutputRef) String() string {
	return fmt.Sprintf("%s#%d", hex.EncodeToString(r.TxID[:]), r.Index)
}

// TokenName is the name of an identity token: a fixed-length hash of the
// one-time-spendable seed input. Because the ledger consumes that input
// exactly once, no two identities can ever share a name.
type TokenName [32]byte

func (t TokenName) String() string {
	return hex.EncodeToString(t[:])
}

func (t TokenName) IsZero() bool {
	return t == TokenName{}
}

// ParseTokenName parses a 64-character hex token name.
func ParseTokenName(s string) (TokenName, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return TokenName{}, fmt.Errorf("identity: invalid token name hex: %w", err)
	}
	if len(b) != len(TokenName{}) {
		return TokenName{}, fmt.Errorf("identity: token name must be %d bytes, got %d", len(TokenName{}), len(b))
	}
	var out TokenName
	copy(out[:], b)
	return out, nil
}

// DeriveTokenName computes the token name for a seed input:
// sha2-256 over the transaction id followed by the 4-byte big-endian
// output index.
func DeriveTokenName(seed OutputRef) TokenName {
	buf := make([]byte, len(seed.TxID)+4)
	copy(buf, seed.TxID[:])
	binary.BigEndian.PutUint32(buf[len(seed.TxID):], seed.Index)
	return sha256.Sum256(buf)
}
