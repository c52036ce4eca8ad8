package grpcledger

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/sovid/identity"
	"xdao.co/sovid/keys"
	"xdao.co/sovid/ledger"
	"xdao.co/sovid/model"
)

// Server exposes a ledger.Ledger over the Ledger gRPC service.
//
// The server is the authorization oracle: it verifies every signature in a
// submit request against the candidate's canonical bytes and derives the
// signer set the transition validator sees. Clients cannot claim signers,
// only prove them.
type Server struct {
	UnimplementedLedgerServer
	Ledger ledger.Ledger
	Seeder ledger.Seeder
}

func (s *Server) NewSeed(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BytesValue, error) {
	_ = ctx
	if s == nil || s.Seeder == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing seeder")
	}
	ref, err := s.Seeder.NewSeed()
	if err != nil {
		return nil, mapErr(err)
	}
	b, err := json.Marshal(model.Ref{TxID: hex.EncodeToString(ref.TxID[:]), Index: ref.Index})
	if err != nil {
		return nil, status.Error(codes.Internal, "ref encoding failed")
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Head(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	_ = ctx
	if s == nil || s.Ledger == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing ledger")
	}
	token, err := identity.ParseTokenName(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid token name")
	}
	e, err := s.Ledger.Head(token)
	if err != nil {
		return nil, mapErr(err)
	}
	return marshalEntry(e)
}

func (s *Server) Get(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	_ = ctx
	if s == nil || s.Ledger == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing ledger")
	}
	var rw model.Ref
	if err := json.Unmarshal(in.GetValue(), &rw); err != nil {
		return nil, status.Error(codes.InvalidArgument, "malformed ref")
	}
	ref, err := parseRef(rw)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid ref")
	}
	e, err := s.Ledger.Get(ref)
	if err != nil {
		return nil, mapErr(err)
	}
	return marshalEntry(e)
}

func (s *Server) Mint(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	_ = ctx
	if s == nil || s.Ledger == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing ledger")
	}
	var req model.MintRequest
	if err := json.Unmarshal(in.GetValue(), &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, "malformed mint request")
	}
	mc, err := ledger.DecodeMintCandidate(req.Mint)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	e, err := s.Ledger.Mint(mc)
	if err != nil {
		return nil, mapErr(err)
	}
	return marshalEntry(e)
}

func (s *Server) Submit(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	_ = ctx
	if s == nil || s.Ledger == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing ledger")
	}
	var req model.SubmitRequest
	if err := json.Unmarshal(in.GetValue(), &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, "malformed submit request")
	}
	c, err := ledger.DecodeCandidate(req.Candidate)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	c.Facts.Signers, err = verifySignatures(req.Candidate, req.Signatures)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}

	e, err := s.Ledger.Submit(c)
	if err != nil {
		return nil, mapErr(err)
	}

	res := model.SubmitResult{Destroyed: e == nil}
	if e != nil {
		view, verr := entryView(e)
		if verr != nil {
			return nil, status.Error(codes.Internal, "entry encoding failed")
		}
		res.Entry = &view
	}
	b, err := json.Marshal(res)
	if err != nil {
		return nil, status.Error(codes.Internal, "result encoding failed")
	}
	return wrapperspb.Bytes(b), nil
}

// verifySignatures checks each signature over the candidate's canonical
// bytes and returns the deduplicated set of proven signer key hashes. One
// bad signature rejects the whole request.
func verifySignatures(candidate []byte, sigs []model.Signature) ([]keys.KeyHash, error) {
	signers := make([]keys.KeyHash, 0, len(sigs))
	seen := make(map[keys.KeyHash]bool, len(sigs))
	for _, sig := range sigs {
		if err := keys.Verify(keys.Scheme(sig.Scheme), sig.PublicKey, candidate, sig.Bytes); err != nil {
			return nil, err
		}
		h := keys.HashPublicKey(sig.PublicKey)
		if !seen[h] {
			seen[h] = true
			signers = append(signers, h)
		}
	}
	return signers, nil
}

func entryView(e *ledger.Entry) (model.EntryView, error) {
	record, err := identity.EncodeRecord(e.Record)
	if err != nil {
		return model.EntryView{}, err
	}
	return model.EntryView{
		Ref:    model.Ref{TxID: hex.EncodeToString(e.Ref.TxID[:]), Index: e.Ref.Index},
		Token:  e.Token.String(),
		Record: record,
	}, nil
}

func marshalEntry(e *ledger.Entry) (*wrapperspb.BytesValue, error) {
	view, err := entryView(e)
	if err != nil {
		return nil, status.Error(codes.Internal, "entry encoding failed")
	}
	b, err := json.Marshal(view)
	if err != nil {
		return nil, status.Error(codes.Internal, "entry encoding failed")
	}
	return wrapperspb.Bytes(b), nil
}

func parseRef(rw model.Ref) (identity.OutputRef, error) {
	raw, err := hex.DecodeString(rw.TxID)
	if err != nil {
		return identity.OutputRef{}, err
	}
	if len(raw) != 32 {
		return identity.OutputRef{}, errors.New("invalid txid length")
	}
	var ref identity.OutputRef
	copy(ref.TxID[:], raw)
	ref.Index = rw.Index
	return ref, nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ledger.ErrSpent):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, ledger.ErrConflict):
		return status.Error(codes.AlreadyExists, err.Error())
	}

	var ierr *identity.Error
	if errors.As(err, &ierr) {
		// The RuleID travels in the status message so clients can
		// reconstruct the exact taxonomy entry across the wire.
		msg := ierr.RuleID + ": " + ierr.Message
		switch ierr.Kind {
		case identity.KindAuthorization:
			return status.Error(codes.PermissionDenied, msg)
		case identity.KindSchema:
			return status.Error(codes.InvalidArgument, msg)
		case identity.KindValidityRange:
			return status.Error(codes.OutOfRange, msg)
		case identity.KindUniqueness, identity.KindNonce, identity.KindTokenPreservation:
			return status.Error(codes.FailedPrecondition, msg)
		}
	}
	return status.Error(codes.Internal, err.Error())
}
