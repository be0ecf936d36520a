// Package api defines the JSON messages exchanged over the pocketledger Connect services.
//
// Amounts travel as decimal strings ("12.50") so no precision is lost on the wire.
package api

import "github.com/shopspring/decimal"

// User is the public view of an account.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	CreatedAt   int64  `json:"createdAt"`
}

// DetailItem is one line of a transaction's itemization.
type DetailItem struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// Transaction is an income or expense entry.
type Transaction struct {
	ID               string          `json:"id"`
	UserID           string          `json:"userId"`
	Type             string          `json:"type"`
	Amount           decimal.Decimal `json:"amount"`
	Description      string          `json:"description"`
	Detail           []DetailItem    `json:"detail"`
	CreatedAt        int64           `json:"createdAt"`
	IsRegularization bool            `json:"isRegularization"`
}

// MonthBucket is one bar of the monthly chart.
type MonthBucket struct {
	Month   string          `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type RegisterResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type LogoutRequest struct{}

type LogoutResponse struct{}

type GetCurrentUserRequest struct{}

type GetCurrentUserResponse struct {
	User *User `json:"user"`
}

type AddTransactionRequest struct {
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Detail      []DetailItem    `json:"detail"`
}

type AddTransactionResponse struct {
	Transaction *Transaction `json:"transaction"`
}

type ListTransactionsRequest struct{}

type ListTransactionsResponse struct {
	Transactions []*Transaction  `json:"transactions"`
	Balance      decimal.Decimal `json:"balance"`
}

type DeleteTransactionRequest struct {
	ID string `json:"id"`
}

type DeleteTransactionResponse struct{}

type UpdateTransactionDetailRequest struct {
	ID     string       `json:"id"`
	Detail []DetailItem `json:"detail"`
}

type UpdateTransactionDetailResponse struct {
	Transaction *Transaction `json:"transaction"`
}

type GetBalanceRequest struct{}

type GetBalanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

type RegularizeBalanceRequest struct {
	TargetBalance decimal.Decimal `json:"targetBalance"`
	Description   string          `json:"description"`
}

// RegularizeBalanceResponse carries a nil Transaction when the balance already matched.
type RegularizeBalanceResponse struct {
	Transaction *Transaction    `json:"transaction,omitempty"`
	Balance     decimal.Decimal `json:"balance"`
}

type ReconcileDetailRequest struct {
	ID string `json:"id"`
}

// ReconcileDetailResponse carries a nil Added when the detail already added up.
type ReconcileDetailResponse struct {
	Transaction *Transaction `json:"transaction"`
	Added       *DetailItem  `json:"added,omitempty"`
}

// PreviewDetailDiscrepancyRequest asks for the corrective item of an unsaved itemization.
type PreviewDetailDiscrepancyRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Detail []DetailItem    `json:"detail"`
}

type PreviewDetailDiscrepancyResponse struct {
	Discrepancy *DetailItem `json:"discrepancy,omitempty"`
}

type GetSummaryRequest struct {
	// Timezone is an IANA name used to bucket months. Empty means UTC.
	Timezone string `json:"timezone"`
}

type GetSummaryResponse struct {
	TotalIncome  decimal.Decimal `json:"totalIncome"`
	TotalExpense decimal.Decimal `json:"totalExpense"`
	Balance      decimal.Decimal `json:"balance"`
	Count        int             `json:"count"`
	Months       []MonthBucket   `json:"months"`
}

type WatchTransactionsRequest struct{}

// WatchTransactionsResponse is one snapshot of the caller's transactions, newest first.
type WatchTransactionsResponse struct {
	Transactions []*Transaction  `json:"transactions"`
	Balance      decimal.Decimal `json:"balance"`
}
