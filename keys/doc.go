// Package keys provides the key material used to control identity records:
// ed25519 and dilithium3 keypairs, the blake2b-224 key hashes that identify
// owners and delegates on the ledger, and a local filesystem keystore.
package keys
