package identity

// MintContext describes a candidate minting transaction as the uniqueness
// policy sees it: the designated seed input, every input the transaction
// consumes, what it mints, and the continuing output at the canonical
// record destination.
type MintContext struct {
	// Seed is the one-time-spendable input the token name is bound to.
	Seed OutputRef
	// Inputs are the references the transaction consumes.
	Inputs []OutputRef
	// Token and Quantity describe the minted asset.
	Token    TokenName
	Quantity int64
	// Output is the continuing output carrying the fresh record, or nil.
	Output *MintOutput
}

// MintOutput is the record-holding output of a minting transaction.
type MintOutput struct {
	Token  TokenName
	Record Record
}

// EvaluateMint enforces the uniqueness-minting policy for Create.
//
// Exactly one unit of the token named by the seed input must be minted, the
// transaction must actually consume that seed, and the continuing output
// must carry a freshly initialized record. Binding the name to an input
// that is provably spent exactly once removes any need for a central
// registrar or sequence counter.
func EvaluateMint(mc MintContext) error {
	consumed := false
	for _, in := range mc.Inputs {
		if in == mc.Seed {
			consumed = true
			break
		}
	}
	if !consumed {
		return newError(KindUniqueness, "SOVID-MINT-001", "designated seed input is not consumed by the transaction")
	}
	if mc.Token != DeriveTokenName(mc.Seed) {
		return newError(KindUniqueness, "SOVID-MINT-002", "token name is not derived from the seed input")
	}
	if mc.Quantity != 1 {
		return newError(KindUniqueness, "SOVID-MINT-003", "minted quantity must be exactly 1")
	}
	if mc.Output == nil {
		return newError(KindUniqueness, "SOVID-MINT-004", "minting transaction is missing the record-holding output")
	}
	if mc.Output.Token != mc.Token {
		return newError(KindUniqueness, "SOVID-MINT-005", "record-holding output does not carry the minted token")
	}
	if err := mc.Output.Record.Validate(); err != nil {
		return wrapError(KindUniqueness, "SOVID-MINT-006", "malformed initial record", err)
	}
	if !mc.Output.Record.IsInitial() {
		return newError(KindUniqueness, "SOVID-MINT-006", "initial record must have owner == identity, empty sets and nonce 0")
	}
	return nil
}

// BurnContext describes a candidate destroy transaction.
type BurnContext struct {
	// Record is the current record attached to the consumed entry.
	Record Record
	// Quantity is the burned amount, expressed positively.
	Quantity int64
	// HasContinuing reports whether any continuing record output exists.
	HasContinuing bool
	// Facts are the enclosing transaction's authorization facts.
	Facts TxFacts
}

// EvaluateBurn enforces the Destroy companion path: the current owner must
// authorize the burn, exactly one unit is burned, and no record output
// continues.
func EvaluateBurn(bc BurnContext) error {
	if err := bc.Record.Validate(); err != nil {
		return err
	}
	if !bc.Facts.SignedBy(bc.Record.Owner) {
		return newError(KindAuthorization, "SOVID-AUTH-002", "burn is not signed by the current owner")
	}
	if bc.Quantity != 1 {
		return newError(KindUniqueness, "SOVID-MINT-010", "burned quantity must be exactly 1")
	}
	if bc.HasContinuing {
		return newError(KindUniqueness, "SOVID-MINT-011", "destroy transaction must not produce a record output")
	}
	return nil
}
