package client

import (
	"context"
	"time"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"

	"github.com/mmynk/pocketledger/internal/calculator"
	"github.com/mmynk/pocketledger/internal/models"
	"github.com/mmynk/pocketledger/pkg/api"
)

// Summary is the chart data returned by GetSummary.
type Summary struct {
	calculator.Summary
	Months []calculator.MonthBucket
}

// AddTransaction records an income or expense for the signed-in user.
func (c *Client) AddTransaction(ctx context.Context, txType models.TransactionType, amount decimal.Decimal, description string, detail []models.DetailItem) (*models.Transaction, error) {
	resp, err := c.txs.AddTransaction(ctx, connect.NewRequest(&api.AddTransactionRequest{
		Type:        string(txType),
		Amount:      amount,
		Description: description,
		Detail:      api.FromDetail(detail),
	}))
	if err != nil {
		return nil, c.check(ctx, err)
	}
	tx := resp.Msg.Transaction.Model()
	return &tx, nil
}

// ListTransactions returns the signed-in user's transactions, newest first, and the balance.
func (c *Client) ListTransactions(ctx context.Context) ([]models.Transaction, decimal.Decimal, error) {
	resp, err := c.txs.ListTransactions(ctx, connect.NewRequest(&api.ListTransactionsRequest{}))
	if err != nil {
		return nil, decimal.Zero, c.check(ctx, err)
	}
	return api.TransactionModels(resp.Msg.Transactions), resp.Msg.Balance, nil
}

// DeleteTransaction removes a transaction.
func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	_, err := c.txs.DeleteTransaction(ctx, connect.NewRequest(&api.DeleteTransactionRequest{ID: id}))
	if err != nil {
		return c.check(ctx, err)
	}
	return nil
}

// UpdateTransactionDetail replaces a transaction's itemization.
func (c *Client) UpdateTransactionDetail(ctx context.Context, id string, detail []models.DetailItem) (*models.Transaction, error) {
	resp, err := c.txs.UpdateTransactionDetail(ctx, connect.NewRequest(&api.UpdateTransactionDetailRequest{
		ID:     id,
		Detail: api.FromDetail(detail),
	}))
	if err != nil {
		return nil, c.check(ctx, err)
	}
	tx := resp.Msg.Transaction.Model()
	return &tx, nil
}

// Balance returns the signed-in user's balance.
func (c *Client) Balance(ctx context.Context) (decimal.Decimal, error) {
	resp, err := c.txs.GetBalance(ctx, connect.NewRequest(&api.GetBalanceRequest{}))
	if err != nil {
		return decimal.Zero, c.check(ctx, err)
	}
	return resp.Msg.Balance, nil
}

// RegularizeBalance moves the balance onto target with one adjustment transaction.
// It returns nil when the balance already matched.
func (c *Client) RegularizeBalance(ctx context.Context, target decimal.Decimal, description string) (*models.Transaction, error) {
	resp, err := c.txs.RegularizeBalance(ctx, connect.NewRequest(&api.RegularizeBalanceRequest{
		TargetBalance: target,
		Description:   description,
	}))
	if err != nil {
		return nil, c.check(ctx, err)
	}
	if resp.Msg.Transaction == nil {
		return nil, nil
	}
	tx := resp.Msg.Transaction.Model()
	return &tx, nil
}

// ReconcileDetail appends the corrective line item to a transaction, returning the updated
// transaction and the item added (nil when the detail already added up).
func (c *Client) ReconcileDetail(ctx context.Context, id string) (*models.Transaction, *models.DetailItem, error) {
	resp, err := c.txs.ReconcileDetail(ctx, connect.NewRequest(&api.ReconcileDetailRequest{ID: id}))
	if err != nil {
		return nil, nil, c.check(ctx, err)
	}
	tx := resp.Msg.Transaction.Model()

	var added *models.DetailItem
	if resp.Msg.Added != nil {
		added = &models.DetailItem{Amount: resp.Msg.Added.Amount, Description: resp.Msg.Added.Description}
	}
	return &tx, added, nil
}

// PreviewDetailDiscrepancy asks the server for the corrective item of an unsaved itemization.
func (c *Client) PreviewDetailDiscrepancy(ctx context.Context, amount decimal.Decimal, detail []models.DetailItem) (*models.DetailItem, error) {
	resp, err := c.txs.PreviewDetailDiscrepancy(ctx, connect.NewRequest(&api.PreviewDetailDiscrepancyRequest{
		Amount: amount,
		Detail: api.FromDetail(detail),
	}))
	if err != nil {
		return nil, c.check(ctx, err)
	}
	if resp.Msg.Discrepancy == nil {
		return nil, nil
	}
	return &models.DetailItem{Amount: resp.Msg.Discrepancy.Amount, Description: resp.Msg.Discrepancy.Description}, nil
}

// GetSummary returns totals and the monthly series, with months cut in loc (UTC when nil).
func (c *Client) GetSummary(ctx context.Context, loc *time.Location) (*Summary, error) {
	tz := ""
	if loc != nil {
		tz = loc.String()
	}
	resp, err := c.txs.GetSummary(ctx, connect.NewRequest(&api.GetSummaryRequest{Timezone: tz}))
	if err != nil {
		return nil, c.check(ctx, err)
	}

	months := make([]calculator.MonthBucket, len(resp.Msg.Months))
	for i, m := range resp.Msg.Months {
		months[i] = calculator.MonthBucket{Month: m.Month, Income: m.Income, Expense: m.Expense}
	}
	return &Summary{
		Summary: calculator.Summary{
			TotalIncome:  resp.Msg.TotalIncome,
			TotalExpense: resp.Msg.TotalExpense,
			Balance:      resp.Msg.Balance,
			Count:        resp.Msg.Count,
		},
		Months: months,
	}, nil
}

// Subscribe streams the signed-in user's transactions: the current list first, then a
// fresh list after every change. The channel closes when cancel is called, ctx ends or the
// stream fails. Slow readers only see the latest list.
func (c *Client) Subscribe(ctx context.Context) (<-chan []models.Transaction, func(), error) {
	if c.Token() == "" {
		return nil, nil, ErrNotSignedIn
	}

	ctx, cancel := context.WithCancel(ctx)
	stream, err := c.txs.WatchTransactions(ctx, connect.NewRequest(&api.WatchTransactionsRequest{}))
	if err != nil {
		// check may clear the cache, so it runs before ctx is cancelled.
		err = c.check(ctx, err)
		cancel()
		return nil, nil, err
	}

	out := make(chan []models.Transaction, 1)
	go func() {
		defer close(out)
		defer stream.Close()

		for stream.Receive() {
			txs := api.TransactionModels(stream.Msg().Transactions)
			select {
			case out <- txs:
			default:
				// Replace the unread list with the newer one.
				select {
				case <-out:
				default:
				}
				out <- txs
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			c.logger.Warn("Transaction stream ended", "error", c.check(context.Background(), err))
		}
	}()

	return out, cancel, nil
}
