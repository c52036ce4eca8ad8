package ledger

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"

	"xdao.co/sovid/hashutil"
	"xdao.co/sovid/identity"
)

// Memory is an in-process ledger. A single mutex serializes commits, which
// gives the exclusive-consumption guarantee directly: once an entry is
// consumed, every other candidate built on it fails with ErrSpent.
type Memory struct {
	mu      sync.Mutex
	salt    [16]byte
	seq     uint64
	seeds   map[identity.OutputRef]bool
	records map[identity.OutputRef]*Entry
	spent   map[identity.OutputRef]bool
	heads   map[identity.TokenName]identity.OutputRef
	archive Archive
}

// NewMemory returns an empty in-process ledger.
func NewMemory() *Memory {
	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		panic(fmt.Sprintf("ledger: reading entropy: %v", err))
	}
	return &Memory{
		salt:    salt,
		seeds:   make(map[identity.OutputRef]bool),
		records: make(map[identity.OutputRef]*Entry),
		spent:   make(map[identity.OutputRef]bool),
		heads:   make(map[identity.TokenName]identity.OutputRef),
	}
}

// WithArchive tees the canonical bytes of every committed transaction into
// a, keyed by CID.
func (m *Memory) WithArchive(a Archive) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archive = a
	return m
}

// NewSeed creates a fresh plain entry spendable exactly once as a mint
// seed. Refs are salted per ledger instance so two ledgers never hand out
// colliding seeds.
func (m *Memory) NewSeed() (identity.OutputRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	buf := make([]byte, 0, len(m.salt)+8)
	buf = append(buf, m.salt[:]...)
	buf = binary.BigEndian.AppendUint64(buf, m.seq)
	ref := identity.OutputRef{TxID: hashutil.TxID(buf), Index: 0}
	m.seeds[ref] = true
	return ref, nil
}

// Head returns the live entry carrying token.
func (m *Memory) Head(token identity.TokenName) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, ok := m.heads[token]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneEntry(m.records[ref]), nil
}

// Get returns the live entry at ref.
func (m *Memory) Get(ref identity.OutputRef) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.spent[ref] {
		return nil, ErrSpent
	}
	e, ok := m.records[ref]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneEntry(e), nil
}

// Mint validates mc against the uniqueness policy and commits the new
// identity, consuming the seed.
func (m *Memory) Mint(mc MintCandidate) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.spent[mc.Seed] {
		return nil, ErrSpent
	}
	if !m.seeds[mc.Seed] {
		return nil, ErrNotFound
	}

	token := identity.DeriveTokenName(mc.Seed)
	if _, exists := m.heads[token]; exists {
		return nil, ErrConflict
	}
	err := identity.EvaluateMint(identity.MintContext{
		Seed:     mc.Seed,
		Inputs:   []identity.OutputRef{mc.Seed},
		Token:    token,
		Quantity: 1,
		Output:   &identity.MintOutput{Token: token, Record: mc.Record},
	})
	if err != nil {
		return nil, err
	}

	payload, err := mc.SigningBytes()
	if err != nil {
		return nil, err
	}
	ref := identity.OutputRef{TxID: hashutil.TxID(payload), Index: 0}

	delete(m.seeds, mc.Seed)
	m.spent[mc.Seed] = true
	entry := &Entry{Ref: ref, Token: token, Record: mc.Record.Clone()}
	m.records[ref] = entry
	m.heads[token] = ref
	m.archivePut(payload)
	return cloneEntry(entry), nil
}

// Submit validates c against the transition rules and commits it,
// consuming the base entry. A Destroy commit returns (nil, nil) and
// retires the token.
func (m *Memory) Submit(c Candidate) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.spent[c.Consumes] {
		return nil, ErrSpent
	}
	base, ok := m.records[c.Consumes]
	if !ok {
		return nil, ErrNotFound
	}

	if err := identity.CheckTransition(base.Record, c.Action, c.Facts, c.Proposed); err != nil {
		return nil, err
	}
	if _, destroy := c.Action.(identity.Destroy); destroy {
		err := identity.EvaluateBurn(identity.BurnContext{
			Record:        base.Record,
			Quantity:      1,
			HasContinuing: c.Proposed != nil,
			Facts:         c.Facts,
		})
		if err != nil {
			return nil, err
		}
	}

	payload, err := c.SigningBytes()
	if err != nil {
		return nil, err
	}

	delete(m.records, c.Consumes)
	m.spent[c.Consumes] = true
	m.archivePut(payload)

	if c.Proposed == nil {
		delete(m.heads, base.Token)
		return nil, nil
	}
	ref := identity.OutputRef{TxID: hashutil.TxID(payload), Index: 0}
	entry := &Entry{Ref: ref, Token: base.Token, Record: c.Proposed.Clone()}
	m.records[ref] = entry
	m.heads[base.Token] = ref
	return cloneEntry(entry), nil
}

// archivePut is best-effort: the commit already happened and the archive is
// a side channel, so failures are swallowed. Callers needing durability
// should front the archive themselves.
func (m *Memory) archivePut(payload []byte) {
	if m.archive == nil {
		return
	}
	_, _ = m.archive.Put(payload)
}

func cloneEntry(e *Entry) *Entry {
	if e == nil {
		return nil
	}
	return &Entry{Ref: e.Ref, Token: e.Token, Record: e.Record.Clone()}
}
