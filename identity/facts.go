package identity

import "xdao.co/sovid/keys"

// Interval is the caller-declared, ledger-enforced time validity window of
// a transaction, in milliseconds since epoch. It is the only notion of
// "current time" available to the validator.
type Interval struct {
	Lower int64
	Upper int64

	LowerBounded bool
	UpperBounded bool
}

// Bounded reports whether both ends of the window are declared.
func (i Interval) Bounded() bool {
	return i.LowerBounded && i.UpperBounded
}

// BoundedInterval declares a window with both ends set.
func BoundedInterval(lower, upper int64) Interval {
	return Interval{Lower: lower, Upper: upper, LowerBounded: true, UpperBounded: true}
}

// TxFacts are the authorization and validity facts the enclosing
// transaction supplies to the validator: which keys signed it and what time
// window it declared. The validator consumes these facts and nothing else.
type TxFacts struct {
	Signers []keys.KeyHash
	Window  Interval
}

// SignedBy reports whether the key hash is in the transaction's signer set.
func (f TxFacts) SignedBy(h keys.KeyHash) bool {
	for _, s := range f.Signers {
		if s == h {
			return true
		}
	}
	return false
}
