package keys

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// KeyStore is a simple local-first store for ed25519 seeds.
//
// Layout:
//
//	<dir>/<name>/root.key          root seed, hex, 0600
//	<dir>/<name>/roles/<role>.key  derived role seeds
//
// Key files hold hex-encoded 32-byte seeds. Dilithium3 keys are supported
// programmatically but are not stored here.
type KeyStore struct {
	Directory string
}

type KeyEntry struct {
	Name  string
	Roles []string
}

func DefaultDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".sovid", "keys"), nil
}

func OpenKeyStore(directory string) (*KeyStore, error) {
	if directory == "" {
		var err error
		directory, err = DefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: directory}, nil
}

func (ks *KeyStore) rootKeyPath(name string) string {
	return filepath.Join(ks.Directory, name, "root.key")
}

func (ks *KeyStore) roleKeyPath(name, role string) string {
	return filepath.Join(ks.Directory, name, "roles", role+".key")
}

func CheckKeyName(name string) error {
	if name == "" {
		return errors.New("keys: name cannot be empty")
	}
	for _, char := range name {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("keys: invalid character %q in name", char)
	}
	return nil
}

func CheckRole(role string) error {
	if role == "" {
		return errors.New("keys: role cannot be empty")
	}
	for _, char := range role {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("keys: invalid character %q in role", char)
	}
	return nil
}

// ParseSeedHex parses a 64-hex-character ed25519 seed, with optional 0x prefix.
func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimSpace(seedHex)
	seedHex = strings.TrimPrefix(seedHex, "0x")
	data, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if len(data) != ed25519.SeedSize {
		return nil, fmt.Errorf("keys: expected seed length of %d bytes, got %d", ed25519.SeedSize, len(data))
	}
	return data, nil
}

func (ks *KeyStore) saveSeed(filePath string, seed []byte, overwrite bool) error {
	if len(seed) != ed25519.SeedSize {
		return fmt.Errorf("keys: expected seed length of %d bytes", ed25519.SeedSize)
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	file, err := os.OpenFile(filePath, flags, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := file.WriteString(hex.EncodeToString(seed) + "\n"); err != nil {
		return err
	}
	return file.Close()
}

func (ks *KeyStore) loadSeed(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return ParseSeedHex(strings.TrimSpace(string(data)))
}

// InitializeRootKey stores seed under name and returns its ledger key hash.
func (ks *KeyStore) InitializeRootKey(name string, seed []byte, overwrite bool) (KeyHash, string, error) {
	if err := CheckKeyName(name); err != nil {
		return KeyHash{}, "", err
	}
	filePath := ks.rootKeyPath(name)
	if err := ks.saveSeed(filePath, seed, overwrite); err != nil {
		return KeyHash{}, "", err
	}
	h, err := KeyHashFromSeed(seed)
	if err != nil {
		return KeyHash{}, "", err
	}
	return h, filePath, nil
}

// DeriveRoleKey derives and stores a role subkey of an existing root key.
func (ks *KeyStore) DeriveRoleKey(from, role string, overwrite bool) (KeyHash, string, error) {
	if err := CheckKeyName(from); err != nil {
		return KeyHash{}, "", err
	}
	if err := CheckRole(role); err != nil {
		return KeyHash{}, "", err
	}
	rootSeed, err := ks.loadSeed(ks.rootKeyPath(from))
	if err != nil {
		return KeyHash{}, "", err
	}
	roleSeed, err := DeriveRoleSeed(rootSeed, role)
	if err != nil {
		return KeyHash{}, "", err
	}
	filePath := ks.roleKeyPath(from, role)
	if err := ks.saveSeed(filePath, roleSeed, overwrite); err != nil {
		return KeyHash{}, "", err
	}
	h, err := KeyHashFromSeed(roleSeed)
	if err != nil {
		return KeyHash{}, "", err
	}
	return h, filePath, nil
}

// Signer loads a stored seed and returns a signer for it. Role may be empty
// to use the root key.
func (ks *KeyStore) Signer(name, role string) (*Ed25519Signer, error) {
	if err := CheckKeyName(name); err != nil {
		return nil, err
	}
	path := ks.rootKeyPath(name)
	if role != "" {
		if err := CheckRole(role); err != nil {
			return nil, err
		}
		path = ks.roleKeyPath(name, role)
	}
	seed, err := ks.loadSeed(path)
	if err != nil {
		return nil, err
	}
	return NewEd25519Signer(seed)
}

// ExportKeyHash returns the ledger key hash for a stored key without
// exposing the seed.
func (ks *KeyStore) ExportKeyHash(name, role string) (KeyHash, error) {
	s, err := ks.Signer(name, role)
	if err != nil {
		return KeyHash{}, err
	}
	return s.KeyHash(), nil
}

func (ks *KeyStore) ListKeys() ([]KeyEntry, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var result []KeyEntry
	for _, name := range names {
		rolesDir := filepath.Join(ks.Directory, name, "roles")
		roleEntries, rerr := os.ReadDir(rolesDir)
		var roles []string
		if rerr == nil {
			for _, roleEntry := range roleEntries {
				if roleEntry.IsDir() {
					continue
				}
				if strings.HasSuffix(roleEntry.Name(), ".key") {
					roles = append(roles, strings.TrimSuffix(roleEntry.Name(), ".key"))
				}
			}
			sort.Strings(roles)
		}
		result = append(result, KeyEntry{Name: name, Roles: roles})
	}
	return result, nil
}
