package identity

import (
	"bytes"
	"encoding/hex"
	"encoding/json"

	"xdao.co/sovid/keys"
)

// Canonical wire encoding for records and actions.
//
// The encoding is JSON with a fixed field order, hex for byte fields,
// delegates sorted by (address, type), attributes sorted by name, and no
// insignificant whitespace. Decode enforces canonical form by re-rendering
// and comparing bytes, so non-canonical inputs are rejected outright.

type delegateWire struct {
	Address    string `json:"address"`
	Type       string `json:"type"`
	ValidUntil int64  `json:"valid_until"`
}

type attributeWire struct {
	Name       string `json:"name"`
	Value      string `json:"value"`
	ValidUntil int64  `json:"valid_until"`
}

type recordWire struct {
	Identity   string          `json:"identity"`
	Owner      string          `json:"owner"`
	Delegates  []delegateWire  `json:"delegates"`
	Attributes []attributeWire `json:"attributes"`
	Nonce      uint64          `json:"nonce"`
}

// EncodeRecord renders the canonical bytes for a record.
func EncodeRecord(r Record) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	w := recordWire{
		Identity:   r.Identity.String(),
		Owner:      r.Owner.String(),
		Delegates:  make([]delegateWire, 0, len(r.Delegates)),
		Attributes: make([]attributeWire, 0, len(r.Attributes)),
		Nonce:      r.Nonce,
	}
	for _, d := range sortedDelegates(r.Delegates) {
		w.Delegates = append(w.Delegates, delegateWire{
			Address:    d.Address.String(),
			Type:       d.Type,
			ValidUntil: d.ValidUntil,
		})
	}
	for _, a := range sortedAttributes(r.Attributes) {
		w.Attributes = append(w.Attributes, attributeWire{
			Name:       hex.EncodeToString(a.Name),
			Value:      hex.EncodeToString(a.Value),
			ValidUntil: a.ValidUntil,
		})
	}
	b, err := json.Marshal(w)
	if err != nil {
		return nil, wrapError(KindSchema, "SOVID-SCHEMA-021", "record encoding failed", err)
	}
	return b, nil
}

// DecodeRecord parses canonical record bytes. Non-canonical inputs are
// rejected, so every decoded record round-trips to the identical bytes.
func DecodeRecord(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var w recordWire
	if err := dec.Decode(&w); err != nil {
		return Record{}, wrapError(KindSchema, "SOVID-SCHEMA-022", "malformed record bytes", err)
	}

	var r Record
	var err error
	if r.Identity, err = keys.ParseKeyHash(w.Identity); err != nil {
		return Record{}, wrapError(KindSchema, "SOVID-SCHEMA-023", "invalid identity key hash", err)
	}
	if r.Owner, err = keys.ParseKeyHash(w.Owner); err != nil {
		return Record{}, wrapError(KindSchema, "SOVID-SCHEMA-024", "invalid owner key hash", err)
	}
	r.Nonce = w.Nonce
	for _, d := range w.Delegates {
		addr, aerr := keys.ParseKeyHash(d.Address)
		if aerr != nil {
			return Record{}, wrapError(KindSchema, "SOVID-SCHEMA-025", "invalid delegate address", aerr)
		}
		r.Delegates = append(r.Delegates, Delegate{Address: addr, Type: d.Type, ValidUntil: d.ValidUntil})
	}
	for _, a := range w.Attributes {
		name, nerr := hex.DecodeString(a.Name)
		if nerr != nil {
			return Record{}, wrapError(KindSchema, "SOVID-SCHEMA-026", "invalid attribute name hex", nerr)
		}
		value, verr := hex.DecodeString(a.Value)
		if verr != nil {
			return Record{}, wrapError(KindSchema, "SOVID-SCHEMA-027", "invalid attribute value hex", verr)
		}
		r.Attributes = append(r.Attributes, Attribute{Name: name, Value: value, ValidUntil: a.ValidUntil})
	}

	if err := r.Validate(); err != nil {
		return Record{}, err
	}
	canonical, err := EncodeRecord(r)
	if err != nil {
		return Record{}, err
	}
	if !bytes.Equal(data, canonical) {
		return Record{}, newError(KindSchema, "SOVID-SCHEMA-020", "non-canonical record bytes")
	}
	return r, nil
}

type actionWire struct {
	Type string `json:"type"`

	NewOwner     string `json:"new_owner,omitempty"`
	DelegateType string `json:"delegate_type,omitempty"`
	Address      string `json:"address,omitempty"`
	Name         string `json:"name,omitempty"`
	Value        string `json:"value,omitempty"`
	Validity     int64  `json:"validity,omitempty"`
}

// EncodeAction renders the canonical bytes for an action.
func EncodeAction(a Action) ([]byte, error) {
	var w actionWire
	switch act := a.(type) {
	case ChangeOwner:
		w = actionWire{Type: act.Tag(), NewOwner: act.NewOwner.String()}
	case AddDelegate:
		w = actionWire{Type: act.Tag(), DelegateType: act.Type, Address: act.Address.String(), Validity: act.Validity}
	case RevokeDelegate:
		w = actionWire{Type: act.Tag(), DelegateType: act.Type, Address: act.Address.String()}
	case SetAttribute:
		w = actionWire{Type: act.Tag(), Name: hex.EncodeToString(act.Name), Value: hex.EncodeToString(act.Value), Validity: act.Validity}
	case RevokeAttribute:
		w = actionWire{Type: act.Tag(), Name: hex.EncodeToString(act.Name), Value: hex.EncodeToString(act.Value)}
	case Destroy:
		w = actionWire{Type: act.Tag()}
	default:
		return nil, newError(KindSchema, "SOVID-SCHEMA-030", "unknown action")
	}
	b, err := json.Marshal(w)
	if err != nil {
		return nil, wrapError(KindSchema, "SOVID-SCHEMA-031", "action encoding failed", err)
	}
	return b, nil
}

// DecodeAction parses canonical action bytes.
func DecodeAction(data []byte) (Action, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var w actionWire
	if err := dec.Decode(&w); err != nil {
		return nil, wrapError(KindSchema, "SOVID-SCHEMA-032", "malformed action bytes", err)
	}

	var act Action
	switch w.Type {
	case "ChangeOwner":
		owner, err := keys.ParseKeyHash(w.NewOwner)
		if err != nil {
			return nil, wrapError(KindSchema, "SOVID-SCHEMA-033", "invalid new owner", err)
		}
		act = ChangeOwner{NewOwner: owner}
	case "AddDelegate":
		addr, err := keys.ParseKeyHash(w.Address)
		if err != nil {
			return nil, wrapError(KindSchema, "SOVID-SCHEMA-034", "invalid delegate address", err)
		}
		act = AddDelegate{Type: w.DelegateType, Address: addr, Validity: w.Validity}
	case "RevokeDelegate":
		addr, err := keys.ParseKeyHash(w.Address)
		if err != nil {
			return nil, wrapError(KindSchema, "SOVID-SCHEMA-034", "invalid delegate address", err)
		}
		act = RevokeDelegate{Type: w.DelegateType, Address: addr}
	case "SetAttribute":
		name, value, err := decodeNameValue(w.Name, w.Value)
		if err != nil {
			return nil, err
		}
		act = SetAttribute{Name: name, Value: value, Validity: w.Validity}
	case "RevokeAttribute":
		name, value, err := decodeNameValue(w.Name, w.Value)
		if err != nil {
			return nil, err
		}
		act = RevokeAttribute{Name: name, Value: value}
	case "Destroy":
		act = Destroy{}
	default:
		return nil, newError(KindSchema, "SOVID-SCHEMA-030", "unknown action")
	}

	canonical, err := EncodeAction(act)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(data, canonical) {
		return nil, newError(KindSchema, "SOVID-SCHEMA-035", "non-canonical action bytes")
	}
	return act, nil
}

func decodeNameValue(nameHex, valueHex string) ([]byte, []byte, error) {
	name, err := hex.DecodeString(nameHex)
	if err != nil {
		return nil, nil, wrapError(KindSchema, "SOVID-SCHEMA-036", "invalid attribute name hex", err)
	}
	value, err := hex.DecodeString(valueHex)
	if err != nil {
		return nil, nil, wrapError(KindSchema, "SOVID-SCHEMA-037", "invalid attribute value hex", err)
	}
	return name, value, nil
}
