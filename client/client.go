// Package client builds, signs and submits identity transactions against
// any ledger.Ledger, local or remote.
//
// Every mutation follows the same optimistic loop: fetch the live entry,
// compute the continuing record locally, submit the candidate, and on a
// lost consumption race refetch and rebuild. The ledger's exclusive
// consumption makes the loop safe: a candidate either commits exactly the
// transition it was built for or fails without effect.
package client

import (
	"fmt"

	"xdao.co/sovid/didoc"
	"xdao.co/sovid/identity"
	"xdao.co/sovid/keys"
	"xdao.co/sovid/ledger"
)

// DefaultRetries bounds the refetch-and-rebuild loop.
const DefaultRetries = 3

// Client drives one identity from the point of view of one authorizing
// key. Owner is the key hash asserted as the current owner; the ledger's
// validator decides whether that assertion holds.
type Client struct {
	Ledger ledger.Ledger
	Seeder ledger.Seeder
	Owner  keys.KeyHash

	// Retries is the number of additional attempts after a lost
	// consumption race. Zero means DefaultRetries.
	Retries int
}

// New returns a client whose ledger also hands out mint seeds, which both
// the in-process ledger and the gRPC client do.
func New(l ledger.Ledger, owner keys.KeyHash) *Client {
	c := &Client{Ledger: l, Owner: owner}
	if s, ok := l.(ledger.Seeder); ok {
		c.Seeder = s
	}
	return c
}

// Create mints a fresh identity owned by the client's key and returns its
// live entry. The token name is bound to a newly issued seed, so repeated
// calls always create distinct identities.
func (c *Client) Create() (*ledger.Entry, error) {
	if c.Seeder == nil {
		return nil, fmt.Errorf("client: ledger cannot issue mint seeds")
	}
	seed, err := c.Seeder.NewSeed()
	if err != nil {
		return nil, err
	}
	return c.Ledger.Mint(ledger.MintCandidate{
		Seed:   seed,
		Record: identity.NewRecord(c.Owner),
	})
}

// ChangeOwner transfers control of the identity to newOwner.
func (c *Client) ChangeOwner(token identity.TokenName, newOwner keys.KeyHash, window identity.Interval) (*ledger.Entry, error) {
	return c.mutate(token, identity.ChangeOwner{NewOwner: newOwner}, window)
}

// AddDelegate grants a delegate for the given relative validity in
// milliseconds (zero means no expiry; non-zero requires a bounded window).
func (c *Client) AddDelegate(token identity.TokenName, delegateType string, address keys.KeyHash, validity int64, window identity.Interval) (*ledger.Entry, error) {
	return c.mutate(token, identity.AddDelegate{Type: delegateType, Address: address, Validity: validity}, window)
}

// RevokeDelegate removes a delegate grant. Revoking an absent grant
// commits a nonce-only transition.
func (c *Client) RevokeDelegate(token identity.TokenName, delegateType string, address keys.KeyHash, window identity.Interval) (*ledger.Entry, error) {
	return c.mutate(token, identity.RevokeDelegate{Type: delegateType, Address: address}, window)
}

// SetAttribute sets or replaces the attribute with the given name.
func (c *Client) SetAttribute(token identity.TokenName, name, value []byte, validity int64, window identity.Interval) (*ledger.Entry, error) {
	return c.mutate(token, identity.SetAttribute{Name: name, Value: value, Validity: validity}, window)
}

// RevokeAttribute removes the attribute matching (name, value) exactly.
func (c *Client) RevokeAttribute(token identity.TokenName, name, value []byte, window identity.Interval) (*ledger.Entry, error) {
	return c.mutate(token, identity.RevokeAttribute{Name: name, Value: value}, window)
}

// Destroy burns the identity's token. After a successful destroy the
// token has no live entry and the identity cannot be revived.
func (c *Client) Destroy(token identity.TokenName, window identity.Interval) error {
	_, err := c.mutate(token, identity.Destroy{}, window)
	return err
}

// Resolve projects the identity's live record into a DID document
// observable at instant now.
func (c *Client) Resolve(network string, token identity.TokenName, now int64) (didoc.Document, error) {
	head, err := c.Ledger.Head(token)
	if err != nil {
		return didoc.Document{}, err
	}
	return didoc.Build(didoc.Format(network, token), head.Record, now)
}

func (c *Client) mutate(token identity.TokenName, action identity.Action, window identity.Interval) (*ledger.Entry, error) {
	retries := c.Retries
	if retries <= 0 {
		retries = DefaultRetries
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		head, err := c.Ledger.Head(token)
		if err != nil {
			return nil, err
		}
		facts := identity.TxFacts{
			Signers: []keys.KeyHash{c.Owner},
			Window:  window,
		}
		proposed, err := identity.Transition(head.Record, action, facts)
		if err != nil {
			return nil, err
		}
		entry, err := c.Ledger.Submit(ledger.Candidate{
			Consumes: head.Ref,
			Action:   action,
			Proposed: proposed,
			Facts:    facts,
		})
		if err == nil {
			return entry, nil
		}
		if !ledger.IsRace(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("client: mutation lost %d consumption races: %w", retries+1, lastErr)
}
