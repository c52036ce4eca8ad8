// Package identity implements the on-ledger identity core: the record
// schema, the action vocabulary, the uniqueness minting policy, and the
// transition validator.
//
// Everything in this package is a pure function of its inputs. The validator
// never reads a clock, never touches storage, and never retains state
// between invocations; time enters only through the caller-declared
// transaction validity window.
package identity
