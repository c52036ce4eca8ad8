package ledger

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"xdao.co/sovid/identity"
)

// Candidate is a proposed mutation of one identity: consume the entry at
// Consumes, apply Action, and continue with Proposed (nil for Destroy).
//
// Facts carry the declared validity window and, on the validating side, the
// verified signer set. Signers are never part of the signed bytes; they are
// derived from the transaction's signatures by whoever validates.
type Candidate struct {
	Consumes identity.OutputRef
	Action   identity.Action
	Proposed *identity.Record
	Facts    identity.TxFacts
}

// MintCandidate is a proposed identity creation: spend Seed, mint the token
// named by it, and emit the initial Record.
type MintCandidate struct {
	Seed   identity.OutputRef
	Record identity.Record
}

type refWire struct {
	TxID  string `json:"txid"`
	Index uint32 `json:"index"`
}

type windowWire struct {
	Lower        int64 `json:"lower"`
	Upper        int64 `json:"upper"`
	LowerBounded bool  `json:"lower_bounded"`
	UpperBounded bool  `json:"upper_bounded"`
}

type candidateWire struct {
	Consumes refWire         `json:"consumes"`
	Action   json.RawMessage `json:"action"`
	Proposed json.RawMessage `json:"proposed"`
	Window   windowWire      `json:"window"`
}

type mintWire struct {
	Seed   refWire         `json:"seed"`
	Record json.RawMessage `json:"record"`
}

func encodeRef(ref identity.OutputRef) refWire {
	return refWire{TxID: hex.EncodeToString(ref.TxID[:]), Index: ref.Index}
}

func decodeRef(w refWire) (identity.OutputRef, error) {
	raw, err := hex.DecodeString(w.TxID)
	if err != nil {
		return identity.OutputRef{}, fmt.Errorf("invalid txid hex: %w", err)
	}
	if len(raw) != 32 {
		return identity.OutputRef{}, fmt.Errorf("invalid txid length %d", len(raw))
	}
	var ref identity.OutputRef
	copy(ref.TxID[:], raw)
	ref.Index = w.Index
	return ref, nil
}

// SigningBytes renders the canonical bytes a submitter signs. The signer
// set is excluded; the declared window is included so signatures commit to
// the time claim the validator will evaluate against.
func (c Candidate) SigningBytes() ([]byte, error) {
	action, err := identity.EncodeAction(c.Action)
	if err != nil {
		return nil, err
	}
	w := candidateWire{
		Consumes: encodeRef(c.Consumes),
		Action:   action,
		Proposed: json.RawMessage("null"),
		Window: windowWire{
			Lower:        c.Facts.Window.Lower,
			Upper:        c.Facts.Window.Upper,
			LowerBounded: c.Facts.Window.LowerBounded,
			UpperBounded: c.Facts.Window.UpperBounded,
		},
	}
	if c.Proposed != nil {
		if w.Proposed, err = identity.EncodeRecord(*c.Proposed); err != nil {
			return nil, err
		}
	}
	return json.Marshal(w)
}

// DecodeCandidate parses canonical candidate bytes. The returned candidate
// has an empty signer set; the caller fills it in after verifying the
// transaction's signatures.
func DecodeCandidate(data []byte) (Candidate, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var w candidateWire
	if err := dec.Decode(&w); err != nil {
		return Candidate{}, fmt.Errorf("malformed candidate: %w", err)
	}

	var c Candidate
	var err error
	if c.Consumes, err = decodeRef(w.Consumes); err != nil {
		return Candidate{}, err
	}
	if c.Action, err = identity.DecodeAction(w.Action); err != nil {
		return Candidate{}, err
	}
	if !bytes.Equal(w.Proposed, []byte("null")) {
		rec, rerr := identity.DecodeRecord(w.Proposed)
		if rerr != nil {
			return Candidate{}, rerr
		}
		c.Proposed = &rec
	}
	c.Facts.Window = identity.Interval{
		Lower:        w.Window.Lower,
		Upper:        w.Window.Upper,
		LowerBounded: w.Window.LowerBounded,
		UpperBounded: w.Window.UpperBounded,
	}

	canonical, err := c.SigningBytes()
	if err != nil {
		return Candidate{}, err
	}
	if !bytes.Equal(data, canonical) {
		return Candidate{}, fmt.Errorf("non-canonical candidate bytes")
	}
	return c, nil
}

// SigningBytes renders the canonical bytes behind a mint.
func (mc MintCandidate) SigningBytes() ([]byte, error) {
	record, err := identity.EncodeRecord(mc.Record)
	if err != nil {
		return nil, err
	}
	return json.Marshal(mintWire{Seed: encodeRef(mc.Seed), Record: record})
}

// DecodeMintCandidate parses canonical mint bytes.
func DecodeMintCandidate(data []byte) (MintCandidate, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var w mintWire
	if err := dec.Decode(&w); err != nil {
		return MintCandidate{}, fmt.Errorf("malformed mint candidate: %w", err)
	}

	var mc MintCandidate
	var err error
	if mc.Seed, err = decodeRef(w.Seed); err != nil {
		return MintCandidate{}, err
	}
	if mc.Record, err = identity.DecodeRecord(w.Record); err != nil {
		return MintCandidate{}, err
	}

	canonical, err := mc.SigningBytes()
	if err != nil {
		return MintCandidate{}, err
	}
	if !bytes.Equal(data, canonical) {
		return MintCandidate{}, fmt.Errorf("non-canonical mint candidate bytes")
	}
	return mc, nil
}
