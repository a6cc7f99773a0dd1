package accounts

// IsDebitNormal reports whether the account type's balance increases with
// debits.
func IsDebitNormal(t AccountType) bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// BalanceChange returns the signed delta a debit/credit pair applies to the
// running balance of an account of the given type. ASSET and EXPENSE are
// debit-normal; LIABILITY, EQUITY, and REVENUE are credit-normal.
//
// This is the single source of truth for balance direction. Every posting
// path calls it rather than re-deriving sign logic.
func BalanceChange(t AccountType, debit, credit float64) float64 {
	if IsDebitNormal(t) {
		return debit - credit
	}
	return credit - debit
}
