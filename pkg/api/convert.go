package api

import (
	"github.com/mmynk/pocketledger/internal/calculator"
	"github.com/mmynk/pocketledger/internal/models"
)

// FromUser converts a user model to its public view.
func FromUser(u *models.User) *User {
	if u == nil {
		return nil
	}
	return &User{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
	}
}

// Model converts the public view back to a user model (without a password hash).
func (u *User) Model() *models.User {
	if u == nil {
		return nil
	}
	return &models.User{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
	}
}

// FromDetailItem converts a line item model, returning nil for nil.
func FromDetailItem(item *models.DetailItem) *DetailItem {
	if item == nil {
		return nil
	}
	return &DetailItem{Amount: item.Amount, Description: item.Description}
}

// FromDetail converts line items. The result is never nil.
func FromDetail(items []models.DetailItem) []DetailItem {
	out := make([]DetailItem, len(items))
	for i, item := range items {
		out[i] = DetailItem{Amount: item.Amount, Description: item.Description}
	}
	return out
}

// DetailModels converts wire line items to models.
func DetailModels(items []DetailItem) []models.DetailItem {
	out := make([]models.DetailItem, len(items))
	for i, item := range items {
		out[i] = models.DetailItem{Amount: item.Amount, Description: item.Description}
	}
	return out
}

// FromTransaction converts a transaction model, returning nil for nil.
func FromTransaction(tx *models.Transaction) *Transaction {
	if tx == nil {
		return nil
	}
	return &Transaction{
		ID:               tx.ID,
		UserID:           tx.UserID,
		Type:             string(tx.Type),
		Amount:           tx.Amount,
		Description:      tx.Description,
		Detail:           FromDetail(tx.Detail),
		CreatedAt:        tx.CreatedAt,
		IsRegularization: tx.IsRegularization,
	}
}

// FromTransactions converts a list of transaction models, keeping order.
func FromTransactions(txs []models.Transaction) []*Transaction {
	out := make([]*Transaction, len(txs))
	for i := range txs {
		out[i] = FromTransaction(&txs[i])
	}
	return out
}

// Model converts a wire transaction back to a model.
func (t *Transaction) Model() models.Transaction {
	return models.Transaction{
		ID:               t.ID,
		UserID:           t.UserID,
		Type:             models.TransactionType(t.Type),
		Amount:           t.Amount,
		Description:      t.Description,
		Detail:           DetailModels(t.Detail),
		CreatedAt:        t.CreatedAt,
		IsRegularization: t.IsRegularization,
	}
}

// TransactionModels converts wire transactions to models, keeping order.
func TransactionModels(txs []*Transaction) []models.Transaction {
	out := make([]models.Transaction, 0, len(txs))
	for _, t := range txs {
		if t != nil {
			out = append(out, t.Model())
		}
	}
	return out
}

// FromMonthBuckets converts chart buckets.
func FromMonthBuckets(buckets []calculator.MonthBucket) []MonthBucket {
	out := make([]MonthBucket, len(buckets))
	for i, b := range buckets {
		out[i] = MonthBucket{Month: b.Month, Income: b.Income, Expense: b.Expense}
	}
	return out
}
