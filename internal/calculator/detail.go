package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/pocketledger/internal/models"
)

const (
	positiveGap = "positive gap"
	negativeGap = "negative gap"
)

// DetailTolerance is the largest gap between a total and its itemization that still
// counts as equal (one cent).
var DetailTolerance = decimal.New(1, -2)

// SumDetail adds up the amounts of the given line items.
func SumDetail(details []models.DetailItem) decimal.Decimal {
	sum := decimal.Zero
	for _, d := range details {
		sum = sum.Add(d.Amount)
	}
	return sum
}

// CalculateDetailDiscrepancy compares a transaction amount with the sum of its detail
// and returns the line item that would close the gap, or nil when the gap is within
// DetailTolerance.
//
// The returned amount is always non-negative; the description says which way the gap goes
// ("positive gap" when the detail falls short of the total).
func CalculateDetailDiscrepancy(transactionAmount decimal.Decimal, details []models.DetailItem) *models.DetailItem {
	discrepancy := transactionAmount.Sub(SumDetail(details))
	if discrepancy.Abs().LessThanOrEqual(DetailTolerance) {
		return nil
	}

	item := &models.DetailItem{
		Amount:      discrepancy.Abs(),
		Description: positiveGap,
	}
	if discrepancy.IsNegative() {
		item.Description = negativeGap
	}
	return item
}
