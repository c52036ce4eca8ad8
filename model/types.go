package model

import "encoding/json"

// Signature is one signature over a candidate's canonical bytes.
//
// JSON note: PublicKey and Bytes are encoded as base64 by encoding/json.
type Signature struct {
	Scheme    string `json:"scheme"`
	PublicKey []byte `json:"publicKey"`
	Bytes     []byte `json:"bytes"`
}

// SubmitRequest carries the canonical candidate bytes and the signatures
// the validator derives the signer set from.
type SubmitRequest struct {
	Candidate  []byte      `json:"candidate"`
	Signatures []Signature `json:"signatures"`
}

// MintRequest carries the canonical mint-candidate bytes. Minting needs no
// signatures: uniqueness comes from spending the seed, not from authority.
type MintRequest struct {
	Mint []byte `json:"mint"`
}

// Ref is a transaction output reference.
type Ref struct {
	TxID  string `json:"txid"`
	Index uint32 `json:"index"`
}

// EntryView is the projection of a live ledger entry.
type EntryView struct {
	Ref    Ref             `json:"ref"`
	Token  string          `json:"token"`
	Record json.RawMessage `json:"record"`
}

// SubmitResult reports the outcome of a committed candidate. Destroyed is
// true when the identity's token was burned and no entry continues.
type SubmitResult struct {
	Destroyed bool       `json:"destroyed"`
	Entry     *EntryView `json:"entry,omitempty"`
}
