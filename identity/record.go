package identity

import (
	"bytes"
	"sort"

	"xdao.co/sovid/keys"
)

// Delegate is a time-bounded authorization granted by the owner to another
// key, scoped by type. ValidUntil == 0 means the grant never expires; any
// other value is an absolute deadline in milliseconds since epoch.
type Delegate struct {
	Address    keys.KeyHash
	Type       string
	ValidUntil int64
}

// ValidAt reports whether the delegate is valid at the given instant.
// An entry expires exactly at its deadline: valid iff ValidUntil == 0 or
// ValidUntil > now.
func (d Delegate) ValidAt(now int64) bool {
	return d.ValidUntil == 0 || d.ValidUntil > now
}

// Attribute is a named, time-bounded value attached to an identity.
type Attribute struct {
	Name       []byte
	Value      []byte
	ValidUntil int64
}

func (a Attribute) ValidAt(now int64) bool {
	return a.ValidUntil == 0 || a.ValidUntil > now
}

// Record is the persistent state of one identity: the datum attached to the
// ledger entry holding the identity token.
//
// Delegates and Attributes are unordered sets keyed by (Address, Type) and
// Name respectively; nothing in this package depends on slice order.
type Record struct {
	Identity   keys.KeyHash
	Owner      keys.KeyHash
	Delegates  []Delegate
	Attributes []Attribute
	Nonce      uint64
}

// NewRecord is the freshly minted state: owner equals the originating
// identity, empty sets, nonce zero.
func NewRecord(identity keys.KeyHash) Record {
	return Record{Identity: identity, Owner: identity}
}

// Validate checks record well-formedness: non-zero identity and owner
// hashes, unique delegate and attribute keys, non-negative deadlines,
// printable-ASCII delegate types and non-empty attribute names.
func (r Record) Validate() error {
	if r.Identity.IsZero() {
		return newError(KindSchema, "SOVID-SCHEMA-001", "record identity is unset")
	}
	if r.Owner.IsZero() {
		return newError(KindSchema, "SOVID-SCHEMA-002", "record owner is unset")
	}
	seenDelegates := make(map[string]bool, len(r.Delegates))
	for _, d := range r.Delegates {
		if d.Type == "" {
			return newError(KindSchema, "SOVID-SCHEMA-003", "delegate type is empty")
		}
		if !isPrintableASCII(d.Type) {
			return newError(KindSchema, "SOVID-SCHEMA-004", "delegate type must be printable ASCII")
		}
		if d.Address.IsZero() {
			return newError(KindSchema, "SOVID-SCHEMA-005", "delegate address is unset")
		}
		if d.ValidUntil < 0 {
			return newError(KindSchema, "SOVID-SCHEMA-006", "delegate valid_until is negative")
		}
		key := d.Address.String() + "|" + d.Type
		if seenDelegates[key] {
			return newError(KindSchema, "SOVID-SCHEMA-007", "duplicate delegate (address, type)")
		}
		seenDelegates[key] = true
	}
	seenAttributes := make(map[string]bool, len(r.Attributes))
	for _, a := range r.Attributes {
		if len(a.Name) == 0 {
			return newError(KindSchema, "SOVID-SCHEMA-008", "attribute name is empty")
		}
		if a.ValidUntil < 0 {
			return newError(KindSchema, "SOVID-SCHEMA-009", "attribute valid_until is negative")
		}
		key := string(a.Name)
		if seenAttributes[key] {
			return newError(KindSchema, "SOVID-SCHEMA-010", "duplicate attribute name")
		}
		seenAttributes[key] = true
	}
	return nil
}

// IsInitial reports whether the record is a valid freshly minted state.
func (r Record) IsInitial() bool {
	return r.Owner == r.Identity && len(r.Delegates) == 0 && len(r.Attributes) == 0 && r.Nonce == 0
}

// FindDelegate returns the delegate entry matching (address, type), if any.
func (r Record) FindDelegate(address keys.KeyHash, delegateType string) (Delegate, bool) {
	for _, d := range r.Delegates {
		if d.Address == address && d.Type == delegateType {
			return d, true
		}
	}
	return Delegate{}, false
}

// FindAttribute returns the attribute entry with the given name, if any.
func (r Record) FindAttribute(name []byte) (Attribute, bool) {
	for _, a := range r.Attributes {
		if bytes.Equal(a.Name, name) {
			return a, true
		}
	}
	return Attribute{}, false
}

// Equal compares two records as sets: delegate and attribute order is
// irrelevant, only key-field equality matters.
func (r Record) Equal(other Record) bool {
	if r.Identity != other.Identity || r.Owner != other.Owner || r.Nonce != other.Nonce {
		return false
	}
	if len(r.Delegates) != len(other.Delegates) || len(r.Attributes) != len(other.Attributes) {
		return false
	}
	a, b := sortedDelegates(r.Delegates), sortedDelegates(other.Delegates)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	x, y := sortedAttributes(r.Attributes), sortedAttributes(other.Attributes)
	for i := range x {
		if !bytes.Equal(x[i].Name, y[i].Name) || !bytes.Equal(x[i].Value, y[i].Value) || x[i].ValidUntil != y[i].ValidUntil {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	out := r
	out.Delegates = append([]Delegate(nil), r.Delegates...)
	out.Attributes = make([]Attribute, len(r.Attributes))
	for i, a := range r.Attributes {
		out.Attributes[i] = Attribute{
			Name:       append([]byte(nil), a.Name...),
			Value:      append([]byte(nil), a.Value...),
			ValidUntil: a.ValidUntil,
		}
	}
	return out
}

// withOwner, withDelegate, withoutDelegate, withAttribute and
// withoutAttribute implement the action transformations. Each returns a new
// record with the nonce advanced by exactly one; the receiver is never
// mutated.

func (r Record) withOwner(newOwner keys.KeyHash) Record {
	out := r.Clone()
	out.Owner = newOwner
	out.Nonce = r.Nonce + 1
	return out
}

func (r Record) withDelegate(d Delegate) Record {
	out := r.Clone()
	kept := out.Delegates[:0]
	for _, existing := range out.Delegates {
		if existing.Address == d.Address && existing.Type == d.Type {
			continue
		}
		kept = append(kept, existing)
	}
	out.Delegates = append(kept, d)
	out.Nonce = r.Nonce + 1
	return out
}

func (r Record) withoutDelegate(address keys.KeyHash, delegateType string) Record {
	out := r.Clone()
	kept := out.Delegates[:0]
	for _, existing := range out.Delegates {
		if existing.Address == address && existing.Type == delegateType {
			continue
		}
		kept = append(kept, existing)
	}
	out.Delegates = kept
	out.Nonce = r.Nonce + 1
	return out
}

func (r Record) withAttribute(a Attribute) Record {
	out := r.Clone()
	kept := out.Attributes[:0]
	for _, existing := range out.Attributes {
		if bytes.Equal(existing.Name, a.Name) {
			continue
		}
		kept = append(kept, existing)
	}
	out.Attributes = append(kept, a)
	out.Nonce = r.Nonce + 1
	return out
}

func (r Record) withoutAttribute(name, value []byte) Record {
	out := r.Clone()
	kept := out.Attributes[:0]
	for _, existing := range out.Attributes {
		// Revocation requires an exact (name, value) match; a value mismatch
		// leaves the entry in place.
		if bytes.Equal(existing.Name, name) && bytes.Equal(existing.Value, value) {
			continue
		}
		kept = append(kept, existing)
	}
	out.Attributes = kept
	out.Nonce = r.Nonce + 1
	return out
}

// SortedDelegates returns a copy ordered by (address, type). Read models
// use this to render set-valued fields deterministically.
func SortedDelegates(in []Delegate) []Delegate {
	return sortedDelegates(in)
}

// SortedAttributes returns a copy ordered by name.
func SortedAttributes(in []Attribute) []Attribute {
	return sortedAttributes(in)
}

func sortedDelegates(in []Delegate) []Delegate {
	out := append([]Delegate(nil), in...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Address != out[j].Address {
			return bytes.Compare(out[i].Address[:], out[j].Address[:]) < 0
		}
		return out[i].Type < out[j].Type
	})
	return out
}

func sortedAttributes(in []Attribute) []Attribute {
	out := append([]Attribute(nil), in...)
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Name, out[j].Name) < 0
	})
	return out
}

func isPrintableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x21 || s[i] > 0x7e {
			return false
		}
	}
	return true
}
