package accounts

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBalanceChangeDirection(t *testing.T) {
	cases := []struct {
		name   string
		typ    AccountType
		debit  float64
		credit float64
		want   float64
	}{
		{"asset debit increases", AccountTypeAsset, 1000, 0, 1000},
		{"asset credit decreases", AccountTypeAsset, 0, 400, -400},
		{"expense debit increases", AccountTypeExpense, 250, 0, 250},
		{"liability credit increases", AccountTypeLiability, 0, 1170, 1170},
		{"liability debit decreases", AccountTypeLiability, 300, 0, -300},
		{"equity credit increases", AccountTypeEquity, 0, 50, 50},
		{"revenue credit increases", AccountTypeRevenue, 0, 1000, 1000},
		{"revenue debit decreases", AccountTypeRevenue, 1000, 0, -1000},
		{"mixed pair nets out", AccountTypeAsset, 100, 30, 70},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.InDelta(t, tc.want, BalanceChange(tc.typ, tc.debit, tc.credit), 0.0001)
		})
	}
}

func TestIsDebitNormal(t *testing.T) {
	require.True(t, IsDebitNormal(AccountTypeAsset))
	require.True(t, IsDebitNormal(AccountTypeExpense))
	require.False(t, IsDebitNormal(AccountTypeLiability))
	require.False(t, IsDebitNormal(AccountTypeEquity))
	require.False(t, IsDebitNormal(AccountTypeRevenue))
}
