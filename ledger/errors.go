package ledger

import "errors"

var (
	// ErrNotFound: no live entry (or archived blob) exists for the reference.
	ErrNotFound = errors.New("ledger: not found")
	// ErrSpent: the referenced entry was already consumed by a committed
	// transition. Callers lost a concurrency race and must refetch the head
	// and rebuild their candidate.
	ErrSpent = errors.New("ledger: entry already spent")
	// ErrConflict: the commit would collide with an existing entry.
	ErrConflict = errors.New("ledger: conflicting entry")

	ErrInvalidCID  = errors.New("ledger: invalid cid")
	ErrCIDMismatch = errors.New("ledger: cid mismatch")
	ErrImmutable   = errors.New("ledger: immutable object mismatch")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsRace reports whether err means the candidate's base entry was
// superseded, i.e. a refetch-and-rebuild retry is appropriate.
func IsRace(err error) bool {
	return errors.Is(err, ErrSpent) || errors.Is(err, ErrConflict)
}
