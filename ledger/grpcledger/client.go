package grpcledger

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/sovid/identity"
	"xdao.co/sovid/keys"
	"xdao.co/sovid/ledger"
	"xdao.co/sovid/model"
)

// Client implements ledger.Ledger over the Ledger gRPC service.
//
// Submitted candidates are signed with every signer in Signers; the server
// derives the signer set from those signatures, so whatever the candidate's
// Facts claim locally is irrelevant on the wire.
type Client struct {
	cc     *grpc.ClientConn
	client LedgerClient

	// Signers sign each submitted candidate's canonical bytes.
	Signers []keys.Signer

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int
}

func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc, client: NewLedgerClient(cc)}, nil
}

// NewClient wraps an existing connection (e.g. a bufconn in tests).
func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc, client: NewLedgerClient(cc)}
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) NewSeed() (identity.OutputRef, error) {
	ctx, cancel := c.ctx()
	defer cancel()

	reply, err := c.client.NewSeed(ctx, &emptypb.Empty{})
	if err != nil {
		return identity.OutputRef{}, mapRPC(err)
	}
	var rw model.Ref
	if err := json.Unmarshal(reply.GetValue(), &rw); err != nil {
		return identity.OutputRef{}, err
	}
	return parseRef(rw)
}

func (c *Client) Head(token identity.TokenName) (*ledger.Entry, error) {
	ctx, cancel := c.ctx()
	defer cancel()

	reply, err := c.client.Head(ctx, wrapperspb.String(token.String()))
	if err != nil {
		return nil, mapRPC(err)
	}
	return parseEntry(reply.GetValue())
}

func (c *Client) Get(ref identity.OutputRef) (*ledger.Entry, error) {
	req, err := json.Marshal(model.Ref{TxID: hex.EncodeToString(ref.TxID[:]), Index: ref.Index})
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.ctx()
	defer cancel()

	reply, err := c.client.Get(ctx, wrapperspb.Bytes(req))
	if err != nil {
		return nil, mapRPC(err)
	}
	return parseEntry(reply.GetValue())
}

func (c *Client) Mint(mc ledger.MintCandidate) (*ledger.Entry, error) {
	payload, err := mc.SigningBytes()
	if err != nil {
		return nil, err
	}
	req, err := json.Marshal(model.MintRequest{Mint: payload})
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.ctx()
	defer cancel()

	reply, err := c.client.Mint(ctx, wrapperspb.Bytes(req))
	if err != nil {
		return nil, mapRPC(err)
	}
	return parseEntry(reply.GetValue())
}

func (c *Client) Submit(cand ledger.Candidate) (*ledger.Entry, error) {
	payload, err := cand.SigningBytes()
	if err != nil {
		return nil, err
	}
	req := model.SubmitRequest{Candidate: payload}
	for _, signer := range c.Signers {
		req.Signatures = append(req.Signatures, model.Signature{
			Scheme:    string(signer.Scheme()),
			PublicKey: signer.Public(),
			Bytes:     signer.Sign(payload),
		})
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.ctx()
	defer cancel()

	reply, err := c.client.Submit(ctx, wrapperspb.Bytes(body))
	if err != nil {
		return nil, mapRPC(err)
	}
	var res model.SubmitResult
	if err := json.Unmarshal(reply.GetValue(), &res); err != nil {
		return nil, err
	}
	if res.Destroyed {
		return nil, nil
	}
	if res.Entry == nil {
		return nil, errors.New("grpcledger: submit result has neither entry nor destroyed flag")
	}
	return entryFromView(*res.Entry)
}

func (c *Client) ctx() (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), c.Timeout)
}

func parseEntry(data []byte) (*ledger.Entry, error) {
	var view model.EntryView
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, err
	}
	return entryFromView(view)
}

func entryFromView(view model.EntryView) (*ledger.Entry, error) {
	ref, err := parseRef(view.Ref)
	if err != nil {
		return nil, err
	}
	token, err := identity.ParseTokenName(view.Token)
	if err != nil {
		return nil, err
	}
	record, err := identity.DecodeRecord(view.Record)
	if err != nil {
		return nil, err
	}
	return &ledger.Entry{Ref: ref, Token: token, Record: record}, nil
}
