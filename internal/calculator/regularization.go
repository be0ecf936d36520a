package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/pocketledger/internal/models"
)

const (
	positiveAdjustment = "positive adjustment"
	negativeAdjustment = "negative adjustment"
)

// Regularization is the transaction needed to move the current balance onto a target.
// It carries no ID, owner or timestamp: the caller persists it.
type Regularization struct {
	Type             models.TransactionType
	Amount           decimal.Decimal
	Description      string
	IsRegularization bool
}

// CalculateRegularizationTransaction returns the transaction that turns currentBalance
// into targetBalance, or nil when they are already equal.
//
// Algorithm:
// - difference = target - current, compared exactly (decimal arithmetic has no float noise)
// - amount = |difference|; income when difference > 0, expense otherwise
// - an empty description is replaced with one naming the direction
func CalculateRegularizationTransaction(currentBalance, targetBalance decimal.Decimal, description string) *Regularization {
	difference := targetBalance.Sub(currentBalance)
	if difference.IsZero() {
		return nil
	}

	reg := &Regularization{
		Type:             models.TransactionTypeExpense,
		Amount:           difference.Abs(),
		Description:      description,
		IsRegularization: true,
	}
	if difference.IsPositive() {
		reg.Type = models.TransactionTypeIncome
	}

	if reg.Description == "" {
		if reg.Type == models.TransactionTypeIncome {
			reg.Description = positiveAdjustment
		} else {
			reg.Description = negativeAdjustment
		}
	}

	return reg
}
