package identity

import "errors"

// Kind is a stable category for programmatic error handling.
//
// Every rejection is fatal: a violated constraint aborts the whole
// transition, there is no warning tier and no partial update. Callers
// should branch on Kind/RuleID rather than matching error strings.
type Kind string

const (
	// KindAuthorization: the signer set lacks the current owner.
	KindAuthorization Kind = "Authorization"
	// KindUniqueness: the minting invariant is broken.
	KindUniqueness Kind = "Uniqueness"
	// KindSchema: malformed record fields or a continuing record that does
	// not match the action's transformation.
	KindSchema Kind = "Schema"
	// KindNonce: next nonce is not current nonce + 1.
	KindNonce Kind = "Nonce"
	// KindValidityRange: missing or unbounded declared time window where an
	// absolute expiry must be computed.
	KindValidityRange Kind = "ValidityRange"
	// KindTokenPreservation: the identity token is not correctly carried to
	// the continuing output.
	KindTokenPreservation Kind = "TokenPreservation"
)

// Error is the core's structured error type.
//
// RuleID is a stable identifier (e.g. SOVID-AUTH-001, SOVID-NONCE-001) that
// names the violated invariant. Message is intended for humans; do not
// match on it.
type Error struct {
	Kind    Kind
	RuleID  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func newError(kind Kind, ruleID, msg string) error {
	return &Error{Kind: kind, RuleID: ruleID, Message: msg}
}

func wrapError(kind Kind, ruleID, msg string, cause error) error {
	if cause == nil {
		return newError(kind, ruleID, msg)
	}
	return &Error{Kind: kind, RuleID: ruleID, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// RuleID returns the stable RuleID for a structured error, or "" if unknown.
func RuleID(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.RuleID
}
