package identity

// Transition is the identity state machine: given the current record, a
// requested action and the enclosing transaction's facts, it either
// computes the next record or rejects the transition.
//
// A nil record with a nil error is the terminal Destroyed state (the token
// is burned and nothing continues). Every accepted transition advances the
// nonce by exactly one; the nonce is the sole replay-prevention mechanism.
//
// Authorization is strictly owner-only: delegates never self-authorize
// administrative actions, regardless of their type or validity.
func Transition(current Record, action Action, facts TxFacts) (*Record, error) {
	if err := current.Validate(); err != nil {
		return nil, err
	}
	if !facts.SignedBy(current.Owner) {
		return nil, newError(KindAuthorization, "SOVID-AUTH-001", "transaction is not signed by the current owner")
	}

	switch act := action.(type) {
	case ChangeOwner:
		if act.NewOwner.IsZero() {
			return nil, newError(KindSchema, "SOVID-SCHEMA-040", "new owner is unset")
		}
		next := current.withOwner(act.NewOwner)
		return &next, nil

	case AddDelegate:
		validUntil, err := absoluteExpiry(act.Validity, facts.Window)
		if err != nil {
			return nil, err
		}
		next := current.withDelegate(Delegate{Address: act.Address, Type: act.Type, ValidUntil: validUntil})
		if err := next.Validate(); err != nil {
			return nil, err
		}
		return &next, nil

	case RevokeDelegate:
		// Revoking an absent entry is a valid no-op; only the nonce moves.
		next := current.withoutDelegate(act.Address, act.Type)
		return &next, nil

	case SetAttribute:
		validUntil, err := absoluteExpiry(act.Validity, facts.Window)
		if err != nil {
			return nil, err
		}
		next := current.withAttribute(Attribute{Name: act.Name, Value: act.Value, ValidUntil: validUntil})
		if err := next.Validate(); err != nil {
			return nil, err
		}
		return &next, nil

	case RevokeAttribute:
		next := current.withoutAttribute(act.Name, act.Value)
		return &next, nil

	case Destroy:
		return nil, nil

	default:
		return nil, newError(KindSchema, "SOVID-SCHEMA-030", "unknown action")
	}
}

// CheckTransition validates a caller-proposed continuing record against the
// one the state machine computes.
//
// proposed must be nil exactly when the action is Destroy. A nonce that is
// not current+1 is a NonceError; a missing continuing record for a
// non-destroy action is a TokenPreservationError; any other deviation from
// the computed record is a SchemaViolation.
func CheckTransition(current Record, action Action, facts TxFacts, proposed *Record) error {
	computed, err := Transition(current, action, facts)
	if err != nil {
		return err
	}
	if computed == nil {
		if proposed != nil {
			return newError(KindTokenPreservation, "SOVID-TOKEN-002", "destroy transition must not produce a continuing record")
		}
		return nil
	}
	if proposed == nil {
		return newError(KindTokenPreservation, "SOVID-TOKEN-001", "continuing output with the identity token is missing")
	}
	if proposed.Nonce != current.Nonce+1 {
		return newError(KindNonce, "SOVID-NONCE-001", "next nonce must be current nonce + 1")
	}
	if !proposed.Equal(*computed) {
		return newError(KindSchema, "SOVID-VAL-140", "continuing record does not match the action's transformation")
	}
	return nil
}

// absoluteExpiry turns a relative validity into an absolute deadline.
//
// A zero validity means "never expires". Any other validity needs a real
// time base, so the transaction must declare a bounded validity window;
// the deadline is the window's lower bound plus the validity.
func absoluteExpiry(validity int64, window Interval) (int64, error) {
	if validity < 0 {
		return 0, newError(KindSchema, "SOVID-SCHEMA-041", "validity is negative")
	}
	if validity == 0 {
		return 0, nil
	}
	if !window.Bounded() {
		return 0, newError(KindValidityRange, "SOVID-RANGE-001", "bounded transaction validity window required to compute an expiry")
	}
	return window.Lower + validity, nil
}
