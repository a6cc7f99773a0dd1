package reports

import (
	"sort"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	actshared "github.com/meridian-erp/meridian-erp/internal/accounting/shared"
)

// ProfitAndLossAccount represents a revenue or expense account summary.
type ProfitAndLossAccount struct {
	Code   string
	Name   string
	Amount float64
}

// ProfitAndLossSection groups accounts by nature.
type ProfitAndLossSection struct {
	Label    string
	Accounts []ProfitAndLossAccount
	Total    float64
}

// ProfitAndLoss contains the structured output for the report.
type ProfitAndLoss struct {
	Revenue   ProfitAndLossSection
	Expense   ProfitAndLossSection
	NetIncome float64
}

// BuildProfitAndLoss aggregates accounts into revenue and expense sections.
// Revenue nets credit minus debit, expenses the reverse, following each
// side's normal balance.
func BuildProfitAndLoss(balances []AccountBalance) ProfitAndLoss {
	revenue := ProfitAndLossSection{Label: "Revenue"}
	expense := ProfitAndLossSection{Label: "Expense"}

	for _, acc := range balances {
		switch acc.Type {
		case accounts.AccountTypeRevenue:
			row := ProfitAndLossAccount{Code: acc.Code, Name: acc.Name, Amount: acc.Credit - acc.Debit}
			revenue.Accounts = append(revenue.Accounts, row)
			revenue.Total += row.Amount
		case accounts.AccountTypeExpense:
			row := ProfitAndLossAccount{Code: acc.Code, Name: acc.Name, Amount: acc.Debit - acc.Credit}
			expense.Accounts = append(expense.Accounts, row)
			expense.Total += row.Amount
		}
	}

	sort.Slice(revenue.Accounts, func(i, j int) bool { return revenue.Accounts[i].Code < revenue.Accounts[j].Code })
	sort.Slice(expense.Accounts, func(i, j int) bool { return expense.Accounts[i].Code < expense.Accounts[j].Code })

	return ProfitAndLoss{
		Revenue:   revenue,
		Expense:   expense,
		NetIncome: actshared.Round2(revenue.Total - expense.Total),
	}
}
