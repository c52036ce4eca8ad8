package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
)

// Scheme names a supported signature scheme.
type Scheme string

const (
	SchemeEd25519    Scheme = "ed25519"
	SchemeDilithium3 Scheme = "dilithium3"
)

// Signer produces ledger signatures. Messages are hashed with sha2-256
// before signing so both schemes sign a fixed-size digest.
type Signer interface {
	Scheme() Scheme
	Public() []byte
	KeyHash() KeyHash
	Sign(message []byte) []byte
}

// Ed25519Signer signs with an ed25519 private key.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
}

// NewEd25519Signer builds a signer from a 32-byte seed.
func NewEd25519Signer(seed []byte) (*Ed25519Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("keys: ed25519 seed must be %d bytes", ed25519.SeedSize)
	}
	return &Ed25519Signer{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// GenerateEd25519 creates a fresh ed25519 signer from rand.
func GenerateEd25519(rand io.Reader) (*Ed25519Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand)
	if err != nil {
		return nil, err
	}
	return &Ed25519Signer{priv: priv}, nil
}

func (s *Ed25519Signer) Scheme() Scheme { return SchemeEd25519 }

func (s *Ed25519Signer) Public() []byte {
	return []byte(s.priv.Public().(ed25519.PublicKey))
}

func (s *Ed25519Signer) KeyHash() KeyHash {
	return HashPublicKey(s.Public())
}

func (s *Ed25519Signer) Sign(message []byte) []byte {
	digest := sha256.Sum256(message)
	return ed25519.Sign(s.priv, digest[:])
}

// Dilithium3Signer signs with a dilithium3 private key (post-quantum).
type Dilithium3Signer struct {
	pub  *mode3.PublicKey
	priv *mode3.PrivateKey
}

// GenerateDilithium3 creates a fresh dilithium3 signer from rand.
func GenerateDilithium3(rand io.Reader) (*Dilithium3Signer, error) {
	pub, priv, err := mode3.GenerateKey(rand)
	if err != nil {
		return nil, err
	}
	return &Dilithium3Signer{pub: pub, priv: priv}, nil
}

func (s *Dilithium3Signer) Scheme() Scheme { return SchemeDilithium3 }

func (s *Dilithium3Signer) Public() []byte {
	b, err := s.pub.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return b
}

func (s *Dilithium3Signer) KeyHash() KeyHash {
	return HashPublicKey(s.Public())
}

func (s *Dilithium3Signer) Sign(message []byte) []byte {
	digest := sha256.Sum256(message)
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(s.priv, digest[:], sig)
	return sig
}

// Verify checks a signature produced by a Signer of the given scheme.
func Verify(scheme Scheme, pub, message, sig []byte) error {
	digest := sha256.Sum256(message)
	switch scheme {
	case SchemeEd25519:
		if len(pub) != ed25519.PublicKeySize {
			return fmt.Errorf("keys: invalid ed25519 public key length %d", len(pub))
		}
		if len(sig) != ed25519.SignatureSize {
			return fmt.Errorf("keys: invalid ed25519 signature length %d", len(sig))
		}
		if !ed25519.Verify(ed25519.PublicKey(pub), digest[:], sig) {
			return fmt.Errorf("keys: ed25519 signature invalid")
		}
		return nil
	case SchemeDilithium3:
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(pub); err != nil {
			return fmt.Errorf("keys: invalid dilithium3 public key: %w", err)
		}
		if len(sig) != mode3.SignatureSize {
			return fmt.Errorf("keys: invalid dilithium3 signature length %d", len(sig))
		}
		if !mode3.Verify(&pk, digest[:], sig) {
			return fmt.Errorf("keys: dilithium3 signature invalid")
		}
		return nil
	default:
		return fmt.Errorf("keys: unsupported signature scheme %q", scheme)
	}
}
