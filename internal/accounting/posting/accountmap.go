package posting

import (
	"context"
	"errors"
	"fmt"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	actshared "github.com/meridian-erp/meridian-erp/internal/accounting/shared"
)

// ExpenseCategory is the closed set of expense classifications the posting
// rules understand. Anything unmapped lands in the default expense account.
type ExpenseCategory string

const (
	ExpenseRent        ExpenseCategory = "RENT"
	ExpenseUtilities   ExpenseCategory = "UTILITIES"
	ExpenseSalaries    ExpenseCategory = "SALARIES"
	ExpenseTransport   ExpenseCategory = "TRANSPORT"
	ExpenseSupplies    ExpenseCategory = "SUPPLIES"
	ExpenseMaintenance ExpenseCategory = "MAINTENANCE"
	ExpenseMarketing   ExpenseCategory = "MARKETING"
	ExpenseMisc        ExpenseCategory = "MISC"
)

var expenseAccountByCategory = map[ExpenseCategory]string{
	ExpenseRent:        "5200",
	ExpenseUtilities:   "5300",
	ExpenseSalaries:    "5400",
	ExpenseTransport:   "5500",
	ExpenseSupplies:    accounts.CodeDefaultExpense,
	ExpenseMaintenance: accounts.CodeDefaultExpense,
	ExpenseMarketing:   accounts.CodeDefaultExpense,
	ExpenseMisc:        accounts.CodeDefaultExpense,
}

// AccountForCategory maps an expense category to its chart-of-accounts code.
func AccountForCategory(category ExpenseCategory) string {
	if code, ok := expenseAccountByCategory[category]; ok {
		return code
	}
	return accounts.CodeDefaultExpense
}

// PaymentMethod selects the credit side of an expense posting.
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "CASH"
	PaymentBank PaymentMethod = "BANK"
)

// CreditAccountFor returns the account paying for an expense: petty cash for
// cash payments, the main bank account otherwise.
func CreditAccountFor(method PaymentMethod) string {
	if method == PaymentCash {
		return accounts.CodePettyCash
	}
	return accounts.CodeMainBank
}

// requiredCodes is every account code a posting rule can emit. The chart of
// accounts must carry all of them before the first business transaction.
var requiredCodes = []string{
	accounts.CodeMainBank,
	accounts.CodePettyCash,
	accounts.CodeAccountsReceivable,
	accounts.CodeInventory,
	accounts.CodeInputTaxReceivable,
	accounts.CodeAccountsPayable,
	accounts.CodeTaxPayable,
	accounts.CodeRetainedEarnings,
	accounts.CodeSalesRevenue,
	accounts.CodeOtherIncome,
	accounts.CodeCOGS,
	accounts.CodeInventoryLoss,
	"5200",
	"5300",
	"5400",
	"5500",
	accounts.CodeDefaultExpense,
}

// ValidateAccountMap verifies at startup that every code the posting rules
// reference exists in the chart of accounts, so configuration gaps surface on
// boot instead of as skipped journal entries at runtime. Resolving through a
// resolver session also warms the cache for the system codes.
func ValidateAccountMap(ctx context.Context, resolve interface {
	Resolve(ctx context.Context, code string) (accounts.Ref, error)
}) error {
	for _, code := range requiredCodes {
		if _, err := resolve.Resolve(ctx, code); err != nil {
			if errors.Is(err, accounts.ErrAccountNotFound) {
				return fmt.Errorf("account %s: %w", code, actshared.ErrMissingSystemAccount)
			}
			return err
		}
	}
	return nil
}
