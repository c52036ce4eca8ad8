package identity

import "xdao.co/sovid/keys"

// Delegate type constants carried over from the EIP-1056 vocabulary.
const (
	// DelegateTypeVeriKey: verification key for off-ledger signature checks.
	DelegateTypeVeriKey = "veriKey"
	// DelegateTypeSigAuth: signature authentication.
	DelegateTypeSigAuth = "sigAuth"
	// DelegateTypeEnc: encryption key for key agreement.
	DelegateTypeEnc = "enc"
)

// Action is the tagged input describing which operation a transition claims
// to perform. Exactly the spend-side redeemer vocabulary; mint-side actions
// live in mint.go.
type Action interface {
	// Tag returns the stable action tag used in the wire encoding.
	Tag() string

	isAction()
}

// ChangeOwner transfers control of the identity to a new key.
type ChangeOwner struct {
	NewOwner keys.KeyHash
}

// AddDelegate grants (or refreshes) a delegate authorization.
//
// Validity is relative, in milliseconds: the absolute deadline becomes the
// transaction validity window's lower bound plus Validity. Validity == 0
// grants a never-expiring delegate.
type AddDelegate struct {
	Type     string
	Address  keys.KeyHash
	Validity int64
}

// RevokeDelegate removes a delegate authorization. Revoking an absent
// (address, type) pair is a valid no-op.
type RevokeDelegate struct {
	Type    string
	Address keys.KeyHash
}

// SetAttribute sets (or replaces) a named attribute. Validity semantics
// match AddDelegate.
type SetAttribute struct {
	Name     []byte
	Value    []byte
	Validity int64
}

// RevokeAttribute removes an attribute, but only when both name and value
// match exactly; otherwise it is a valid no-op.
type RevokeAttribute struct {
	Name  []byte
	Value []byte
}

// Destroy ends the identity: the token is burned and no continuing record
// output is produced.
type Destroy struct{}

func (ChangeOwner) Tag() string     { return "ChangeOwner" }
func (AddDelegate) Tag() string     { return "AddDelegate" }
func (RevokeDelegate) Tag() string  { return "RevokeDelegate" }
func (SetAttribute) Tag() string    { return "SetAttribute" }
func (RevokeAttribute) Tag() string { return "RevokeAttribute" }
func (Destroy) Tag() string         { return "Destroy" }

func (ChangeOwner) isAction()     {}
func (AddDelegate) isAction()     {}
func (RevokeDelegate) isAction()  {}
func (SetAttribute) isAction()    {}
func (RevokeAttribute) isAction() {}
func (Destroy) isAction()         {}
