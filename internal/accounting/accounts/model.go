package accounts

import "time"

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Account models a chart of accounts node. Code is the immutable business key;
// internal ids are opaque and regenerable, so posting logic never stores them.
type Account struct {
	ID             int64
	Code           string
	Name           string
	Type           AccountType
	ParentID       *int64
	IsSystem       bool
	OpeningBalance float64
	CurrentBalance float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Ref is the resolved identity of an account, enough for posting.
type Ref struct {
	ID   int64
	Type AccountType
}

// Well-known system account codes. These form the fixed contract between
// business events and the chart of accounts (see the seed script).
const (
	CodeMainBank           = "1101"
	CodePettyCash          = "1102"
	CodeAccountsReceivable = "1200"
	CodeInventory          = "1300"
	CodeInputTaxReceivable = "1350"
	CodeAccountsPayable    = "2100"
	CodeTaxPayable         = "2200"
	CodeRetainedEarnings   = "3200"
	CodeSalesRevenue       = "4100"
	CodeOtherIncome        = "4200"
	CodeCOGS               = "5100"
	CodeInventoryLoss      = "5150"
	CodeDefaultExpense     = "5900"
)
