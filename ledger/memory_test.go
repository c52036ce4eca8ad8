package ledger

import (
	"errors"
	"sync"
	"testing"

	"xdao.co/sovid/identity"
	"xdao.co/sovid/keys"
)

func kh(s string) keys.KeyHash {
	return keys.HashPublicKey([]byte(s))
}

func ownerFacts(owner keys.KeyHash) identity.TxFacts {
	return identity.TxFacts{
		Signers: []keys.KeyHash{owner},
		Window:  identity.BoundedInterval(1_000_000, 1_300_000),
	}
}

func mintIdentity(t *testing.T, m *Memory, owner keys.KeyHash) *Entry {
	t.Helper()
	seed, err := m.NewSeed()
	if err != nil {
		t.Fatalf("NewSeed: %v", err)
	}
	entry, err := m.Mint(MintCandidate{Seed: seed, Record: identity.NewRecord(owner)})
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if entry.Token != identity.DeriveTokenName(seed) {
		t.Fatalf("token not derived from seed")
	}
	return entry
}

func TestMemory_MintConsumesSeedExactlyOnce(t *testing.T) {
	m := NewMemory()
	owner := kh("owner")

	seed, err := m.NewSeed()
	if err != nil {
		t.Fatalf("NewSeed: %v", err)
	}
	if _, err := m.Mint(MintCandidate{Seed: seed, Record: identity.NewRecord(owner)}); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	// The same seed can never name a second identity.
	_, err = m.Mint(MintCandidate{Seed: seed, Record: identity.NewRecord(owner)})
	if !errors.Is(err, ErrSpent) {
		t.Fatalf("second mint from one seed: got %v want ErrSpent", err)
	}
}

func TestMemory_MintRejectsUnknownSeed(t *testing.T) {
	m := NewMemory()
	bogus := identity.OutputRef{Index: 9}
	_, err := m.Mint(MintCandidate{Seed: bogus, Record: identity.NewRecord(kh("owner"))})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v want ErrNotFound", err)
	}
}

func TestMemory_DistinctSeedsDistinctTokens(t *testing.T) {
	m := NewMemory()
	a := mintIdentity(t, m, kh("owner"))
	b := mintIdentity(t, m, kh("owner"))
	if a.Token == b.Token {
		t.Fatalf("two identities share a token name")
	}
}

func TestMemory_SubmitLifecycle(t *testing.T) {
	m := NewMemory()
	owner := kh("owner")
	entry := mintIdentity(t, m, owner)
	facts := ownerFacts(owner)

	action := identity.AddDelegate{Type: identity.DelegateTypeVeriKey, Address: kh("delegate"), Validity: 60_000}
	proposed, err := identity.Transition(entry.Record, action, facts)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	next, err := m.Submit(Candidate{Consumes: entry.Ref, Action: action, Proposed: proposed, Facts: facts})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if next.Record.Nonce != 1 {
		t.Fatalf("nonce: got %d want 1", next.Record.Nonce)
	}

	head, err := m.Head(entry.Token)
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if head.Ref != next.Ref {
		t.Fatalf("head not advanced")
	}

	// The consumed entry is gone for good.
	if _, err := m.Get(entry.Ref); !errors.Is(err, ErrSpent) {
		t.Fatalf("Get consumed: got %v want ErrSpent", err)
	}
}

func TestMemory_ExclusiveConsumption(t *testing.T) {
	m := NewMemory()
	owner := kh("owner")
	entry := mintIdentity(t, m, owner)
	facts := ownerFacts(owner)

	// Two candidates built on the same live entry; only one can commit.
	actA := identity.SetAttribute{Name: []byte("a"), Value: []byte("1")}
	actB := identity.SetAttribute{Name: []byte("b"), Value: []byte("2")}
	propA, err := identity.Transition(entry.Record, actA, facts)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	propB, err := identity.Transition(entry.Record, actB, facts)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}

	if _, err := m.Submit(Candidate{Consumes: entry.Ref, Action: actA, Proposed: propA, Facts: facts}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	_, err = m.Submit(Candidate{Consumes: entry.Ref, Action: actB, Proposed: propB, Facts: facts})
	if !errors.Is(err, ErrSpent) {
		t.Fatalf("second submit: got %v want ErrSpent", err)
	}

	// The loser never half-applied: only attribute "a" exists.
	head, err := m.Head(entry.Token)
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if _, ok := head.Record.FindAttribute([]byte("b")); ok {
		t.Fatalf("losing candidate leaked state")
	}
}

func TestMemory_ExclusiveConsumptionUnderConcurrency(t *testing.T) {
	m := NewMemory()
	owner := kh("owner")
	entry := mintIdentity(t, m, owner)
	facts := ownerFacts(owner)

	action := identity.SetAttribute{Name: []byte("k"), Value: []byte("v")}
	proposed, err := identity.Transition(entry.Record, action, facts)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}

	const workers = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Submit(Candidate{Consumes: entry.Ref, Action: action, Proposed: proposed, Facts: facts})
			if err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for range wins {
		won++
	}
	if won != 1 {
		t.Fatalf("exactly one concurrent candidate must commit, got %d", won)
	}
}

func TestMemory_SubmitValidates(t *testing.T) {
	m := NewMemory()
	owner := kh("owner")
	entry := mintIdentity(t, m, owner)

	// Unauthorized signer.
	strangerFacts := ownerFacts(kh("stranger"))
	action := identity.ChangeOwner{NewOwner: kh("stranger")}
	proposed := entry.Record.Clone()
	proposed.Owner = kh("stranger")
	proposed.Nonce = 1
	_, err := m.Submit(Candidate{Consumes: entry.Ref, Action: action, Proposed: &proposed, Facts: strangerFacts})
	if !identity.IsKind(err, identity.KindAuthorization) {
		t.Fatalf("got %v want authorization error", err)
	}

	// Rejection leaves the entry live.
	if _, err := m.Get(entry.Ref); err != nil {
		t.Fatalf("entry must survive a rejected candidate: %v", err)
	}
}

func TestMemory_DestroyRetiresToken(t *testing.T) {
	m := NewMemory()
	owner := kh("owner")
	entry := mintIdentity(t, m, owner)
	facts := ownerFacts(owner)

	next, err := m.Submit(Candidate{Consumes: entry.Ref, Action: identity.Destroy{}, Facts: facts})
	if err != nil {
		t.Fatalf("Submit destroy: %v", err)
	}
	if next != nil {
		t.Fatalf("destroy must not return an entry")
	}
	if _, err := m.Head(entry.Token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Head after destroy: got %v want ErrNotFound", err)
	}
}
