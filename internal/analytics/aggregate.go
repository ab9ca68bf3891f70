// Package analytics reduces stored transactions and user settings into balance
// and budget status. It never fetches or filters by date itself; callers pass
// the window they want summarised.
package analytics

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"sms-ledger/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// CategorySpending is the debit total of one category within the window.
type CategorySpending struct {
	Category         domain.Category `json:"category"`
	TotalSpent       decimal.Decimal `json:"total_spent"`
	TransactionCount int             `json:"transaction_count"`
	Percentage       decimal.Decimal `json:"percentage"`
}

// Snapshot is the derived analytics view. It is never persisted.
type Snapshot struct {
	CurrentBalance      decimal.Decimal    `json:"currentBalance"`
	LowBalanceThreshold decimal.Decimal    `json:"lowBalanceThreshold"`
	MonthlyBudget       decimal.Decimal    `json:"monthlyBudget"`
	IsLowBalance        bool               `json:"isLowBalance"`
	IsOverBudget        bool               `json:"isOverBudget"`
	TotalSpending       decimal.Decimal    `json:"totalSpending"`
	TotalIncome         decimal.Decimal    `json:"totalIncome"`
	CategorySpending    []CategorySpending `json:"categorySpending"`
	Period              int                `json:"period"`
}

// Aggregate summarises window (the transactions inside the requested period)
// against settings. latest is the most recent balance-bearing transaction over
// all time, or nil when none was ever recorded; the current balance is then 0.
func Aggregate(window []domain.Transaction, latest *domain.Transaction, settings domain.Settings) Snapshot {
	snap := Snapshot{
		CurrentBalance:      decimal.Zero,
		LowBalanceThreshold: settings.LowBalanceThreshold,
		MonthlyBudget:       settings.MonthlyBudget,
		TotalSpending:       decimal.Zero,
		TotalIncome:         decimal.Zero,
		CategorySpending:    make([]CategorySpending, 0),
	}
	if latest != nil && latest.HasBalance() {
		snap.CurrentBalance = latest.BalanceAfter.Decimal
	}

	groups := make(map[domain.Category]int)
	for _, tx := range window {
		switch tx.Direction {
		case domain.Credit:
			snap.TotalIncome = snap.TotalIncome.Add(tx.Amount)
		case domain.Debit:
			snap.TotalSpending = snap.TotalSpending.Add(tx.Amount)

			cat := tx.Category
			if cat == "" {
				cat = domain.CategoryOther
			}
			i, ok := groups[cat]
			if !ok {
				i = len(snap.CategorySpending)
				groups[cat] = i
				snap.CategorySpending = append(snap.CategorySpending, CategorySpending{Category: cat, TotalSpent: decimal.Zero})
			}
			snap.CategorySpending[i].TotalSpent = snap.CategorySpending[i].TotalSpent.Add(tx.Amount)
			snap.CategorySpending[i].TransactionCount++
		}
	}

	slices.SortFunc(snap.CategorySpending, func(a, b CategorySpending) int {
		if c := b.TotalSpent.Cmp(a.TotalSpent); c != 0 {
			return c
		}
		return strings.Compare(string(a.Category), string(b.Category))
	})
	for i := range snap.CategorySpending {
		snap.CategorySpending[i].Percentage = Percentage(snap.CategorySpending[i].TotalSpent, snap.TotalSpending)
	}

	snap.IsLowBalance = snap.CurrentBalance.LessThan(settings.LowBalanceThreshold)
	snap.IsOverBudget = snap.TotalSpending.GreaterThan(settings.MonthlyBudget)
	return snap
}

// Percentage is part/total*100 rounded to two places, or 0 when total is 0.
func Percentage(part, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return part.Div(total).Mul(hundred).Round(2)
}
