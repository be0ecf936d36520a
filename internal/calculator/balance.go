package calculator

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/pocketledger/internal/models"
)

// Summary aggregates a list of transactions for the overview chart.
type Summary struct {
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	Balance      decimal.Decimal
	Count        int
}

// MonthBucket holds income and expense totals for one calendar month ("2006-01").
type MonthBucket struct {
	Month   string
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// CalculateBalance derives the balance from the full transaction list:
// sum of income minus sum of expense. Nothing is cached.
func CalculateBalance(txs []models.Transaction) decimal.Decimal {
	balance := decimal.Zero
	for i := range txs {
		balance = balance.Add(txs[i].Signed())
	}
	return balance
}

// Summarize totals income and expense over txs.
func Summarize(txs []models.Transaction) Summary {
	s := Summary{
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
		Count:        len(txs),
	}
	for _, tx := range txs {
		switch tx.Type {
		case models.TransactionTypeIncome:
			s.TotalIncome = s.TotalIncome.Add(tx.Amount)
		case models.TransactionTypeExpense:
			s.TotalExpense = s.TotalExpense.Add(tx.Amount)
		}
	}
	s.Balance = s.TotalIncome.Sub(s.TotalExpense)
	return s
}

// MonthlySeries buckets transactions by the month of their CreatedAt in loc, oldest first.
// Transactions without a usable server timestamp (see models.HasTimestamp) go into a
// trailing models.PendingLabel bucket.
func MonthlySeries(txs []models.Transaction, loc *time.Location) []MonthBucket {
	if loc == nil {
		loc = time.UTC
	}

	buckets := make(map[string]*MonthBucket)
	var months []string
	var pending *MonthBucket

	for _, tx := range txs {
		var b *MonthBucket
		if !models.HasTimestamp(tx.CreatedAt) {
			if pending == nil {
				pending = &MonthBucket{Month: models.PendingLabel, Income: decimal.Zero, Expense: decimal.Zero}
			}
			b = pending
		} else {
			month := time.UnixMilli(tx.CreatedAt).In(loc).Format("2006-01")
			if _, exists := buckets[month]; !exists {
				buckets[month] = &MonthBucket{Month: month, Income: decimal.Zero, Expense: decimal.Zero}
				months = append(months, month)
			}
			b = buckets[month]
		}

		if tx.Type == models.TransactionTypeIncome {
			b.Income = b.Income.Add(tx.Amount)
		} else {
			b.Expense = b.Expense.Add(tx.Amount)
		}
	}

	sort.Strings(months)
	series := make([]MonthBucket, 0, len(months)+1)
	for _, m := range months {
		series = append(series, *buckets[m])
	}
	if pending != nil {
		series = append(series, *pending)
	}
	return series
}
