package grpcledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/sovid/identity"
	"xdao.co/sovid/keys"
	"xdao.co/sovid/ledger"
	"xdao.co/sovid/model"
)

func testSigner(t *testing.T, tag string) *keys.Ed25519Signer {
	t.Helper()
	seed := bytes.Repeat([]byte(tag), 32)[:32]
	s, err := keys.NewEd25519Signer(seed)
	if err != nil {
		t.Fatalf("NewEd25519Signer: %v", err)
	}
	return s
}

func startServer(t *testing.T) *grpc.ClientConn {
	t.Helper()
	mem := ledger.NewMemory()

	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	RegisterLedgerServer(srv, &Server{Ledger: mem, Seeder: mem})
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, s string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.DialContext(
		context.Background(),
		"bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("DialContext: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close() })
	return cc
}

func submitRequestValue(t *testing.T, candidate []byte, sigs ...model.Signature) *wrapperspb.BytesValue {
	t.Helper()
	b, err := json.Marshal(model.SubmitRequest{Candidate: candidate, Signatures: sigs})
	if err != nil {
		t.Fatalf("marshal submit request: %v", err)
	}
	return wrapperspb.Bytes(b)
}

func testWindow() identity.Interval {
	return identity.BoundedInterval(1_000_000, 1_300_000)
}

func TestGRPCLedger_Lifecycle(t *testing.T) {
	cc := startServer(t)

	owner := testSigner(t, "o")
	client := NewClient(cc)
	client.Signers = []keys.Signer{owner}
	client.Timeout = 2 * time.Second

	seed, err := client.NewSeed()
	if err != nil {
		t.Fatalf("NewSeed: %v", err)
	}
	entry, err := client.Mint(ledger.MintCandidate{Seed: seed, Record: identity.NewRecord(owner.KeyHash())})
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if entry.Token != identity.DeriveTokenName(seed) {
		t.Fatalf("token not derived from seed")
	}

	// Mutate: the server must verify the signature and derive the signer set.
	facts := identity.TxFacts{Signers: []keys.KeyHash{owner.KeyHash()}, Window: testWindow()}
	action := identity.AddDelegate{Type: identity.DelegateTypeVeriKey, Address: keys.HashPublicKey([]byte("delegate")), Validity: 60_000}
	proposed, err := identity.Transition(entry.Record, action, facts)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	next, err := client.Submit(ledger.Candidate{Consumes: entry.Ref, Action: action, Proposed: proposed, Facts: facts})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if next.Record.Nonce != 1 {
		t.Fatalf("nonce: got %d want 1", next.Record.Nonce)
	}

	head, err := client.Head(entry.Token)
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if head.Ref != next.Ref {
		t.Fatalf("head not advanced")
	}
	got, err := client.Get(next.Ref)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Record.Equal(next.Record) {
		t.Fatalf("Get returned a different record")
	}

	// A candidate built on the consumed entry loses the race.
	_, err = client.Submit(ledger.Candidate{Consumes: entry.Ref, Action: action, Proposed: proposed, Facts: facts})
	if !errors.Is(err, ledger.ErrSpent) {
		t.Fatalf("stale submit: got %v want ErrSpent", err)
	}

	// Destroy burns the token.
	burned, err := client.Submit(ledger.Candidate{Consumes: next.Ref, Action: identity.Destroy{}, Facts: facts})
	if err != nil {
		t.Fatalf("Submit destroy: %v", err)
	}
	if burned != nil {
		t.Fatalf("destroy must not return an entry")
	}
	if _, err := client.Head(entry.Token); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("Head after destroy: got %v want ErrNotFound", err)
	}
}

func TestGRPCLedger_ServerDerivesSignersFromSignatures(t *testing.T) {
	cc := startServer(t)

	owner := testSigner(t, "o")
	stranger := testSigner(t, "s")

	ownerClient := NewClient(cc)
	ownerClient.Signers = []keys.Signer{owner}
	strangerClient := NewClient(cc)
	strangerClient.Signers = []keys.Signer{stranger}

	seed, err := ownerClient.NewSeed()
	if err != nil {
		t.Fatalf("NewSeed: %v", err)
	}
	entry, err := ownerClient.Mint(ledger.MintCandidate{Seed: seed, Record: identity.NewRecord(owner.KeyHash())})
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	// The candidate claims the owner signed, but only the stranger actually
	// signs it. The server must reject on its own verification.
	facts := identity.TxFacts{Signers: []keys.KeyHash{owner.KeyHash()}, Window: testWindow()}
	action := identity.ChangeOwner{NewOwner: stranger.KeyHash()}
	proposed, err := identity.Transition(entry.Record, action, facts)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	_, err = strangerClient.Submit(ledger.Candidate{Consumes: entry.Ref, Action: action, Proposed: proposed, Facts: facts})
	var coded *model.CodedError
	if !errors.As(err, &coded) {
		t.Fatalf("expected coded error, got %T: %v", err, err)
	}
	if coded.Code != model.ErrAuthorization {
		t.Fatalf("code: got %s want %s", coded.Code, model.ErrAuthorization)
	}

	// The entry is untouched and the rightful owner can still proceed.
	if _, err := ownerClient.Submit(ledger.Candidate{Consumes: entry.Ref, Action: action, Proposed: proposed, Facts: facts}); err != nil {
		t.Fatalf("owner submit after rejected attempt: %v", err)
	}
}

func TestGRPCLedger_RejectsBadSignature(t *testing.T) {
	cc := startServer(t)

	owner := testSigner(t, "o")
	client := NewClient(cc)
	client.Signers = []keys.Signer{owner}

	seed, err := client.NewSeed()
	if err != nil {
		t.Fatalf("NewSeed: %v", err)
	}
	entry, err := client.Mint(ledger.MintCandidate{Seed: seed, Record: identity.NewRecord(owner.KeyHash())})
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	facts := identity.TxFacts{Signers: []keys.KeyHash{owner.KeyHash()}, Window: testWindow()}
	action := identity.Destroy{}
	cand := ledger.Candidate{Consumes: entry.Ref, Action: action, Facts: facts}
	payload, err := cand.SigningBytes()
	if err != nil {
		t.Fatalf("SigningBytes: %v", err)
	}

	// Hand-roll a submit request with a signature over different bytes.
	sig := owner.Sign(append(payload, '!'))
	raw := NewLedgerClient(cc)
	_, err = raw.Submit(context.Background(), submitRequestValue(t, payload, model.Signature{
		Scheme:    string(owner.Scheme()),
		PublicKey: owner.Public(),
		Bytes:     sig,
	}))
	if err == nil {
		t.Fatalf("expected rejection of an invalid signature")
	}
}
