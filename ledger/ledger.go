// Package ledger models the UTXO execution environment the identity core
// runs in: entries are consumed exactly once, transitions commit atomically
// or not at all, and concurrent mutations of one identity are serialized by
// exclusive consumption of its record entry.
package ledger

import (
	"xdao.co/sovid/identity"
)

// Entry is a live ledger entry holding an identity token and its record.
// The token and the record always travel together.
type Entry struct {
	Ref    identity.OutputRef
	Token  identity.TokenName
	Record identity.Record
}

// Ledger is the surface the transaction-construction layer programs
// against. Implementations validate every candidate with the identity core
// before committing.
//
// Submit and Mint are atomic: a candidate whose base entry was already
// consumed fails with ErrSpent and leaves no trace.
type Ledger interface {
	// Head returns the live entry carrying the given token.
	Head(token identity.TokenName) (*Entry, error)
	// Get returns the live entry at ref.
	Get(ref identity.OutputRef) (*Entry, error)
	// Mint runs the uniqueness policy and commits a new identity.
	Mint(mc MintCandidate) (*Entry, error)
	// Submit runs the transition validator and commits a mutation.
	// For Destroy actions the returned entry is nil: the identity is gone.
	Submit(c Candidate) (*Entry, error)
}

// Seeder is implemented by ledgers that can create fresh one-time-spendable
// entries suitable as mint seeds.
type Seeder interface {
	NewSeed() (identity.OutputRef, error)
}
