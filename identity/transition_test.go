package identity

import (
	"errors"
	"testing"

	"xdao.co/sovid/keys"
)

func kh(s string) keys.KeyHash {
	return keys.HashPublicKey([]byte(s))
}

func ownerFacts(owner keys.KeyHash) TxFacts {
	return TxFacts{Signers: []keys.KeyHash{owner}, Window: BoundedInterval(1_000_000, 1_300_000)}
}

func requireRule(t *testing.T, err error, kind Kind, ruleID string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %s", ruleID)
	}
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected structured *identity.Error, got %T: %v", err, err)
	}
	if e.Kind != kind {
		t.Fatalf("expected kind %s, got %s (%v)", kind, e.Kind, err)
	}
	if e.RuleID != ruleID {
		t.Fatalf("expected RuleID %s, got %s (%v)", ruleID, e.RuleID, err)
	}
}

func TestTransition_RejectsUnauthorizedSigner(t *testing.T) {
	owner := kh("owner")
	rec := NewRecord(owner)

	facts := TxFacts{Signers: []keys.KeyHash{kh("stranger")}, Window: BoundedInterval(0, 1)}
	_, err := Transition(rec, ChangeOwner{NewOwner: kh("next")}, facts)
	requireRule(t, err, KindAuthorization, "SOVID-AUTH-001")
}

func TestTransition_DelegateNeverSelfAuthorizes(t *testing.T) {
	owner := kh("owner")
	delegate := kh("delegate")
	rec := NewRecord(owner)
	rec.Delegates = []Delegate{{Address: delegate, Type: DelegateTypeVeriKey}}

	facts := TxFacts{Signers: []keys.KeyHash{delegate}, Window: BoundedInterval(0, 1)}
	_, err := Transition(rec, SetAttribute{Name: []byte("k"), Value: []byte("v")}, facts)
	requireRule(t, err, KindAuthorization, "SOVID-AUTH-001")
}

func TestTransition_ChangeOwner(t *testing.T) {
	owner := kh("owner")
	next := kh("next")
	rec := NewRecord(owner)

	got, err := Transition(rec, ChangeOwner{NewOwner: next}, ownerFacts(owner))
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if got.Owner != next {
		t.Fatalf("owner not transferred")
	}
	if got.Identity != owner {
		t.Fatalf("identity must never change")
	}
	if got.Nonce != 1 {
		t.Fatalf("nonce: got %d want 1", got.Nonce)
	}

	// The old owner loses control with the same transaction.
	_, err = Transition(*got, SetAttribute{Name: []byte("k"), Value: []byte("v")}, ownerFacts(owner))
	requireRule(t, err, KindAuthorization, "SOVID-AUTH-001")
}

func TestTransition_AddDelegate_ComputesAbsoluteExpiry(t *testing.T) {
	owner := kh("owner")
	rec := NewRecord(owner)
	facts := TxFacts{Signers: []keys.KeyHash{owner}, Window: BoundedInterval(1_000_000, 1_060_000)}

	got, err := Transition(rec, AddDelegate{Type: DelegateTypeVeriKey, Address: kh("delegate"), Validity: 86_400_000}, facts)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	d, ok := got.FindDelegate(kh("delegate"), DelegateTypeVeriKey)
	if !ok {
		t.Fatalf("delegate not added")
	}
	// Deadline is the window's lower bound plus the relative validity.
	want := int64(1_000_000 + 86_400_000)
	if d.ValidUntil != want {
		t.Fatalf("valid_until: got %d want %d", d.ValidUntil, want)
	}
}

func TestTransition_AddDelegate_ZeroValidityNeverExpires(t *testing.T) {
	owner := kh("owner")
	rec := NewRecord(owner)

	got, err := Transition(rec, AddDelegate{Type: DelegateTypeSigAuth, Address: kh("delegate")}, TxFacts{Signers: []keys.KeyHash{owner}})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	d, _ := got.FindDelegate(kh("delegate"), DelegateTypeSigAuth)
	if d.ValidUntil != 0 {
		t.Fatalf("zero validity must map to no expiry, got %d", d.ValidUntil)
	}
}

func TestTransition_NonZeroValidityRequiresBoundedWindow(t *testing.T) {
	owner := kh("owner")
	rec := NewRecord(owner)

	facts := TxFacts{Signers: []keys.KeyHash{owner}, Window: Interval{Lower: 1_000_000, LowerBounded: true}}
	_, err := Transition(rec, AddDelegate{Type: DelegateTypeVeriKey, Address: kh("delegate"), Validity: 1000}, facts)
	requireRule(t, err, KindValidityRange, "SOVID-RANGE-001")

	_, err = Transition(rec, SetAttribute{Name: []byte("k"), Value: []byte("v"), Validity: 1000}, TxFacts{Signers: []keys.KeyHash{owner}})
	requireRule(t, err, KindValidityRange, "SOVID-RANGE-001")
}

func TestDelegate_ExpiryBoundary(t *testing.T) {
	d := Delegate{Address: kh("delegate"), Type: DelegateTypeVeriKey, ValidUntil: 5000}

	if !d.ValidAt(4999) {
		t.Fatalf("delegate must be valid just before its deadline")
	}
	// Expiry is exclusive of the deadline instant.
	if d.ValidAt(5000) {
		t.Fatalf("delegate must be invalid at exactly its deadline")
	}
	if d.ValidAt(5001) {
		t.Fatalf("delegate must be invalid after its deadline")
	}

	forever := Delegate{Address: d.Address, Type: d.Type}
	if !forever.ValidAt(1 << 60) {
		t.Fatalf("zero deadline means no expiry")
	}
}

func TestTransition_AddThenRevokeRestoresDelegateSet(t *testing.T) {
	owner := kh("owner")
	rec := NewRecord(owner)
	rec.Delegates = []Delegate{{Address: kh("existing"), Type: DelegateTypeEnc}}

	added, err := Transition(rec, AddDelegate{Type: DelegateTypeVeriKey, Address: kh("delegate"), Validity: 1000}, ownerFacts(owner))
	if err != nil {
		t.Fatalf("Transition add: %v", err)
	}
	reverted, err := Transition(*added, RevokeDelegate{Type: DelegateTypeVeriKey, Address: kh("delegate")}, ownerFacts(owner))
	if err != nil {
		t.Fatalf("Transition revoke: %v", err)
	}

	want := rec.Clone()
	want.Nonce = 2
	if !reverted.Equal(want) {
		t.Fatalf("delegate set not restored: %+v", reverted.Delegates)
	}
}

func TestTransition_RevokeDelegate_AbsentIsNoOp(t *testing.T) {
	owner := kh("owner")
	rec := NewRecord(owner)

	got, err := Transition(rec, RevokeDelegate{Type: DelegateTypeVeriKey, Address: kh("ghost")}, ownerFacts(owner))
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if len(got.Delegates) != 0 {
		t.Fatalf("unexpected delegates: %v", got.Delegates)
	}
	if got.Nonce != 1 {
		t.Fatalf("no-op revocation must still advance the nonce, got %d", got.Nonce)
	}
}

func TestTransition_SetAttribute_ReplacesByName(t *testing.T) {
	owner := kh("owner")
	rec := NewRecord(owner)
	rec.Attributes = []Attribute{{Name: []byte("did/svc/Hub"), Value: []byte("https://old")}}
	rec.Nonce = 3

	got, err := Transition(rec, SetAttribute{Name: []byte("did/svc/Hub"), Value: []byte("https://new")}, ownerFacts(owner))
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if len(got.Attributes) != 1 {
		t.Fatalf("expected replacement, got %d attributes", len(got.Attributes))
	}
	if string(got.Attributes[0].Value) != "https://new" {
		t.Fatalf("value not replaced: %q", got.Attributes[0].Value)
	}
	if got.Nonce != 4 {
		t.Fatalf("nonce: got %d want 4", got.Nonce)
	}
}

func TestTransition_RevokeAttribute_RequiresExactValue(t *testing.T) {
	owner := kh("owner")
	rec := NewRecord(owner)
	rec.Attributes = []Attribute{{Name: []byte("email"), Value: []byte("a@example.com")}}

	got, err := Transition(rec, RevokeAttribute{Name: []byte("email"), Value: []byte("b@example.com")}, ownerFacts(owner))
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if len(got.Attributes) != 1 {
		t.Fatalf("value mismatch must leave the attribute in place")
	}

	got, err = Transition(rec, RevokeAttribute{Name: []byte("email"), Value: []byte("a@example.com")}, ownerFacts(owner))
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if len(got.Attributes) != 0 {
		t.Fatalf("exact match must remove the attribute")
	}
}

func TestTransition_DestroyIsTerminal(t *testing.T) {
	owner := kh("owner")
	rec := NewRecord(owner)

	got, err := Transition(rec, Destroy{}, ownerFacts(owner))
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if got != nil {
		t.Fatalf("destroy must not produce a continuing record")
	}
}

func TestCheckTransition_NonceMustIncrementByOne(t *testing.T) {
	owner := kh("owner")
	rec := NewRecord(owner)
	rec.Nonce = 7

	proposed := rec.withOwner(kh("next"))

	stale := proposed.Clone()
	stale.Nonce = 7
	requireRule(t, CheckTransition(rec, ChangeOwner{NewOwner: kh("next")}, ownerFacts(owner), &stale),
		KindNonce, "SOVID-NONCE-001")

	skipped := proposed.Clone()
	skipped.Nonce = 9
	requireRule(t, CheckTransition(rec, ChangeOwner{NewOwner: kh("next")}, ownerFacts(owner), &skipped),
		KindNonce, "SOVID-NONCE-001")

	if err := CheckTransition(rec, ChangeOwner{NewOwner: kh("next")}, ownerFacts(owner), &proposed); err != nil {
		t.Fatalf("CheckTransition: %v", err)
	}
}

func TestCheckTransition_TokenPreservation(t *testing.T) {
	owner := kh("owner")
	rec := NewRecord(owner)

	requireRule(t, CheckTransition(rec, ChangeOwner{NewOwner: kh("next")}, ownerFacts(owner), nil),
		KindTokenPreservation, "SOVID-TOKEN-001")

	leftover := rec.withOwner(owner)
	requireRule(t, CheckTransition(rec, Destroy{}, ownerFacts(owner), &leftover),
		KindTokenPreservation, "SOVID-TOKEN-002")

	if err := CheckTransition(rec, Destroy{}, ownerFacts(owner), nil); err != nil {
		t.Fatalf("CheckTransition destroy: %v", err)
	}
}

func TestCheckTransition_RejectsSmuggledChanges(t *testing.T) {
	owner := kh("owner")
	rec := NewRecord(owner)

	// Correct nonce, but the proposed record sneaks in an extra delegate.
	proposed := rec.withAttribute(Attribute{Name: []byte("k"), Value: []byte("v")})
	proposed.Delegates = []Delegate{{Address: kh("smuggled"), Type: DelegateTypeVeriKey}}

	requireRule(t, CheckTransition(rec, SetAttribute{Name: []byte("k"), Value: []byte("v")}, ownerFacts(owner), &proposed),
		KindSchema, "SOVID-VAL-140")
}

func TestTransition_NegativeValidityRejected(t *testing.T) {
	owner := kh("owner")
	rec := NewRecord(owner)

	_, err := Transition(rec, AddDelegate{Type: DelegateTypeVeriKey, Address: kh("delegate"), Validity: -1}, ownerFacts(owner))
	requireRule(t, err, KindSchema, "SOVID-SCHEMA-041")
}
