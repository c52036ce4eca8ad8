package didoc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"xdao.co/sovid/identity"
)

// ContextURI is the JSON-LD context every projected document declares.
const ContextURI = "https://www.w3.org/ns/did/v1"

// VerificationMethodType names the key-hash verification method used by
// every projected method entry.
const VerificationMethodType = "SovidKeyHash2026"

// Attribute-name prefix that projects into a service entry. The segment
// after the prefix is the service type, e.g. "did/svc/HubService".
const servicePrefix = "did/svc/"

type VerificationMethod struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Controller string `json:"controller"`
	KeyHash    string `json:"keyHash"`
}

type Service struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

// Document is the projected DID document. Extra holds non-service
// attributes the DID core vocabulary has no slot for.
type Document struct {
	Context              []string             `json:"@context"`
	ID                   string               `json:"id"`
	VerificationMethod   []VerificationMethod `json:"verificationMethod"`
	Authentication       []string             `json:"authentication,omitempty"`
	AssertionMethod      []string             `json:"assertionMethod,omitempty"`
	KeyAgreement         []string             `json:"keyAgreement,omitempty"`
	CapabilityInvocation []string             `json:"capabilityInvocation,omitempty"`
	CapabilityDelegation []string             `json:"capabilityDelegation,omitempty"`
	Service              []Service            `json:"service,omitempty"`
	Extra                map[string]string    `json:"sovidIdentity,omitempty"`
}

// Build projects rec into the DID document observable at instant now
// (milliseconds since epoch). Expired delegates and attributes are simply
// absent; nothing in the output reveals they ever existed.
//
// The owner key is always verification method #owner and holds every
// capability. Delegates contribute relationship entries by type: veriKey
// appears in authentication, sigAuth in assertionMethod, enc in
// keyAgreement; unknown types get a verification method but no
// relationship.
func Build(did string, rec identity.Record, now int64) (Document, error) {
	if err := rec.Validate(); err != nil {
		return Document{}, err
	}

	doc := Document{
		Context: []string{ContextURI},
		ID:      did,
	}

	ownerID := did + "#owner"
	doc.VerificationMethod = append(doc.VerificationMethod, VerificationMethod{
		ID:         ownerID,
		Type:       VerificationMethodType,
		Controller: did,
		KeyHash:    rec.Owner.String(),
	})
	doc.Authentication = append(doc.Authentication, ownerID)
	doc.AssertionMethod = append(doc.AssertionMethod, ownerID)
	doc.CapabilityInvocation = append(doc.CapabilityInvocation, ownerID)
	doc.CapabilityDelegation = append(doc.CapabilityDelegation, ownerID)

	n := 0
	for _, d := range identity.SortedDelegates(rec.Delegates) {
		if !d.ValidAt(now) {
			continue
		}
		n++
		vmID := fmt.Sprintf("%s#delegate-%d", did, n)
		doc.VerificationMethod = append(doc.VerificationMethod, VerificationMethod{
			ID:         vmID,
			Type:       VerificationMethodType,
			Controller: did,
			KeyHash:    d.Address.String(),
		})
		switch d.Type {
		case identity.DelegateTypeVeriKey:
			doc.Authentication = append(doc.Authentication, vmID)
		case identity.DelegateTypeSigAuth:
			doc.AssertionMethod = append(doc.AssertionMethod, vmID)
		case identity.DelegateTypeEnc:
			doc.KeyAgreement = append(doc.KeyAgreement, vmID)
		}
	}

	svc := 0
	for _, a := range identity.SortedAttributes(rec.Attributes) {
		if !a.ValidAt(now) {
			continue
		}
		name := string(a.Name)
		if svcType, ok := strings.CutPrefix(name, servicePrefix); ok && svcType != "" {
			svc++
			doc.Service = append(doc.Service, Service{
				ID:              fmt.Sprintf("%s#service-%d", did, svc),
				Type:            svcType,
				ServiceEndpoint: attributeText(a.Value),
			})
			continue
		}
		if doc.Extra == nil {
			doc.Extra = make(map[string]string)
		}
		doc.Extra[attributeText(a.Name)] = attributeText(a.Value)
	}

	return doc, nil
}

// Encode renders the document's canonical JSON.
func Encode(doc Document) ([]byte, error) {
	return json.Marshal(doc)
}

// attributeText renders attribute bytes for the document: printable ASCII
// passes through, anything else is hex.
func attributeText(b []byte) string {
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return hex.EncodeToString(b)
		}
	}
	return string(b)
}
