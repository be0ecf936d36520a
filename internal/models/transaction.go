package models

import (
	"github.com/shopspring/decimal"
)

// TransactionType tells whether a transaction adds to or subtracts from the balance.
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == TransactionTypeIncome || t == TransactionTypeExpense
}

// ParseTransactionType converts a wire value into a TransactionType.
func ParseTransactionType(s string) (TransactionType, bool) {
	t := TransactionType(s)
	return t, t.Valid()
}

// Transaction is a single income or expense entry owned by one user.
type Transaction struct {
	// ID is the unique identifier (UUID format), assigned by the store.
	ID string

	// UserID is the owner. Every query is scoped by it.
	UserID string

	Type TransactionType

	// Amount is always non-negative. Direction comes from Type.
	Amount decimal.Decimal

	// Description is optional free text.
	Description string

	// Detail itemizes what makes up Amount. Its sum is expected to equal
	// Amount but this is not enforced on write.
	Detail []DetailItem

	// CreatedAt is the server-assigned Unix timestamp in milliseconds.
	// Zero means the store has not stamped it yet.
	CreatedAt int64

	// IsRegularization marks entries synthesized to reconcile the balance.
	IsRegularization bool
}

// Signed returns the amount with the sign implied by the type.
func (t *Transaction) Signed() decimal.Decimal {
	if t.Type == TransactionTypeExpense {
		return t.Amount.Neg()
	}
	return t.Amount
}

// DetailItem is one line of a transaction's itemization.
type DetailItem struct {
	Amount      decimal.Decimal
	Description string
}
