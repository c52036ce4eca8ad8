// Package didoc projects identity records into W3C DID documents.
//
// The projection is a pure read-model: it never touches the ledger, takes
// the evaluation instant as a parameter, and renders only delegates and
// attributes valid at that instant. Two calls with the same record and
// instant produce byte-identical documents.
package didoc

import (
	"fmt"
	"strings"

	"xdao.co/sovid/identity"
)

// Method is the DID method name.
const Method = "sovid"

// Format renders the DID for a token. The network segment is omitted for
// the default network.
func Format(network string, token identity.TokenName) string {
	if network == "" {
		return fmt.Sprintf("did:%s:%s", Method, token.String())
	}
	return fmt.Sprintf("did:%s:%s:%s", Method, network, token.String())
}

// Parse splits a DID into its network and token. A two-segment
// method-specific id is network:token; a single segment is a token on the
// default network.
func Parse(did string) (network string, token identity.TokenName, err error) {
	parts := strings.Split(did, ":")
	if len(parts) < 3 || parts[0] != "did" || parts[1] != Method {
		return "", identity.TokenName{}, fmt.Errorf("didoc: not a did:%s identifier: %q", Method, did)
	}
	switch len(parts) {
	case 3:
		token, err = identity.ParseTokenName(parts[2])
	case 4:
		network = parts[2]
		if network == "" {
			return "", identity.TokenName{}, fmt.Errorf("didoc: empty network segment in %q", did)
		}
		token, err = identity.ParseTokenName(parts[3])
	default:
		return "", identity.TokenName{}, fmt.Errorf("didoc: too many segments in %q", did)
	}
	if err != nil {
		return "", identity.TokenName{}, fmt.Errorf("didoc: invalid token in %q: %w", did, err)
	}
	return network, token, nil
}
