package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/pocketledger/internal/auth"
	"github.com/mmynk/pocketledger/internal/calculator"
	"github.com/mmynk/pocketledger/internal/ledger"
	"github.com/mmynk/pocketledger/internal/metrics"
	"github.com/mmynk/pocketledger/internal/middleware"
	"github.com/mmynk/pocketledger/internal/models"
	"github.com/mmynk/pocketledger/pkg/api"
)

// TransactionService implements the TransactionService RPC interface.
// Every call is scoped to the authenticated user.
type TransactionService struct {
	ledger  *ledger.Ledger
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewTransactionService creates a new transaction service. m may be nil.
func NewTransactionService(l *ledger.Ledger, m *metrics.Metrics, logger *slog.Logger) *TransactionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransactionService{
		ledger:  l,
		metrics: m,
		logger:  logger,
	}
}

// AddTransaction records a new income or expense.
func (s *TransactionService) AddTransaction(ctx context.Context, req *connect.Request[api.AddTransactionRequest]) (*connect.Response[api.AddTransactionResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("AddTransaction request",
		"user_id", userID,
		"type", req.Msg.Type,
		"amount", req.Msg.Amount.String(),
		"detail_items", len(req.Msg.Detail),
	)

	tx := &models.Transaction{
		UserID:      userID,
		Type:        models.TransactionType(req.Msg.Type),
		Amount:      req.Msg.Amount,
		Description: req.Msg.Description,
		Detail:      api.DetailModels(req.Msg.Detail),
	}
	if err := s.ledger.Add(ctx, tx); err != nil {
		return nil, s.ledgerError("AddTransaction", userID, err)
	}

	return connect.NewResponse(&api.AddTransactionResponse{Transaction: api.FromTransaction(tx)}), nil
}

// ListTransactions returns the caller's transactions, newest first, with the balance.
func (s *TransactionService) ListTransactions(ctx context.Context, req *connect.Request[api.ListTransactionsRequest]) (*connect.Response[api.ListTransactionsResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	txs, err := s.ledger.List(ctx, userID)
	if err != nil {
		return nil, s.ledgerError("ListTransactions", userID, err)
	}

	return connect.NewResponse(&api.ListTransactionsResponse{
		Transactions: api.FromTransactions(txs),
		Balance:      calculator.CalculateBalance(txs),
	}), nil
}

// DeleteTransaction removes one of the caller's transactions.
func (s *TransactionService) DeleteTransaction(ctx context.Context, req *connect.Request[api.DeleteTransactionRequest]) (*connect.Response[api.DeleteTransactionResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if req.Msg.ID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("transaction id is required"))
	}
	s.logger.Info("DeleteTransaction request", "user_id", userID, "transaction_id", req.Msg.ID)

	if err := s.ledger.Delete(ctx, userID, req.Msg.ID); err != nil {
		return nil, s.ledgerError("DeleteTransaction", userID, err)
	}

	return connect.NewResponse(&api.DeleteTransactionResponse{}), nil
}

// UpdateTransactionDetail replaces the itemization of one of the caller's transactions.
func (s *TransactionService) UpdateTransactionDetail(ctx context.Context, req *connect.Request[api.UpdateTransactionDetailRequest]) (*connect.Response[api.UpdateTransactionDetailResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if req.Msg.ID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("transaction id is required"))
	}
	s.logger.Info("UpdateTransactionDetail request",
		"user_id", userID,
		"transaction_id", req.Msg.ID,
		"detail_items", len(req.Msg.Detail),
	)

	tx, err := s.ledger.UpdateDetail(ctx, userID, req.Msg.ID, api.DetailModels(req.Msg.Detail))
	if err != nil {
		return nil, s.ledgerError("UpdateTransactionDetail", userID, err)
	}

	return connect.NewResponse(&api.UpdateTransactionDetailResponse{Transaction: api.FromTransaction(tx)}), nil
}

// GetBalance returns the caller's derived balance.
func (s *TransactionService) GetBalance(ctx context.Context, req *connect.Request[api.GetBalanceRequest]) (*connect.Response[api.GetBalanceResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	balance, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, s.ledgerError("GetBalance", userID, err)
	}

	return connect.NewResponse(&api.GetBalanceResponse{Balance: balance}), nil
}

// RegularizeBalance writes the transaction that brings the caller's balance to the target.
// The response carries no transaction when the balance already matched.
func (s *TransactionService) RegularizeBalance(ctx context.Context, req *connect.Request[api.RegularizeBalanceRequest]) (*connect.Response[api.RegularizeBalanceResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("RegularizeBalance request", "user_id", userID, "target", req.Msg.TargetBalance.String())

	tx, err := s.ledger.Regularize(ctx, userID, req.Msg.TargetBalance, req.Msg.Description)
	if err != nil {
		return nil, s.ledgerError("RegularizeBalance", userID, err)
	}

	balance, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, s.ledgerError("RegularizeBalance", userID, err)
	}

	return connect.NewResponse(&api.RegularizeBalanceResponse{
		Transaction: api.FromTransaction(tx),
		Balance:     balance,
	}), nil
}

// ReconcileDetail appends the corrective line item to a transaction whose detail does not
// add up to its amount.
func (s *TransactionService) ReconcileDetail(ctx context.Context, req *connect.Request[api.ReconcileDetailRequest]) (*connect.Response[api.ReconcileDetailResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if req.Msg.ID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("transaction id is required"))
	}
	s.logger.Info("ReconcileDetail request", "user_id", userID, "transaction_id", req.Msg.ID)

	tx, added, err := s.ledger.ReconcileDetail(ctx, userID, req.Msg.ID)
	if err != nil {
		return nil, s.ledgerError("ReconcileDetail", userID, err)
	}

	return connect.NewResponse(&api.ReconcileDetailResponse{
		Transaction: api.FromTransaction(tx),
		Added:       api.FromDetailItem(added),
	}), nil
}

// PreviewDetailDiscrepancy computes the corrective item for an itemization that has not
// been saved yet. Nothing is written.
func (s *TransactionService) PreviewDetailDiscrepancy(ctx context.Context, req *connect.Request[api.PreviewDetailDiscrepancyRequest]) (*connect.Response[api.PreviewDetailDiscrepancyResponse], error) {
	if _, err := requireUser(ctx); err != nil {
		return nil, err
	}

	item := calculator.CalculateDetailDiscrepancy(req.Msg.Amount, api.DetailModels(req.Msg.Detail))
	return connect.NewResponse(&api.PreviewDetailDiscrepancyResponse{Discrepancy: api.FromDetailItem(item)}), nil
}

// GetSummary returns totals and the monthly income/expense series for the charts.
func (s *TransactionService) GetSummary(ctx context.Context, req *connect.Request[api.GetSummaryRequest]) (*connect.Response[api.GetSummaryResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	loc := time.UTC
	if req.Msg.Timezone != "" {
		loc, err = time.LoadLocation(req.Msg.Timezone)
		if err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("unknown timezone %q", req.Msg.Timezone))
		}
	}

	summary, months, err := s.ledger.Summary(ctx, userID, loc)
	if err != nil {
		return nil, s.ledgerError("GetSummary", userID, err)
	}

	return connect.NewResponse(&api.GetSummaryResponse{
		TotalIncome:  summary.TotalIncome,
		TotalExpense: summary.TotalExpense,
		Balance:      summary.Balance,
		Count:        summary.Count,
		Months:       api.FromMonthBuckets(months),
	}), nil
}

// WatchTransactions streams a snapshot of the caller's transactions straight away and
// again after every change, until the client goes away or the server shuts down.
func (s *TransactionService) WatchTransactions(ctx context.Context, req *connect.Request[api.WatchTransactionsRequest], stream *connect.ServerStream[api.WatchTransactionsResponse]) error {
	userID, err := requireUser(ctx)
	if err != nil {
		return err
	}

	snapshots, cancel, err := s.ledger.Subscribe(ctx, userID)
	if err != nil {
		return s.ledgerError("WatchTransactions", userID, err)
	}
	defer cancel()

	if s.metrics != nil {
		s.metrics.ActiveSubscriptions.Inc()
		defer s.metrics.ActiveSubscriptions.Dec()
	}
	s.logger.Info("Watch started", "user_id", userID)
	defer s.logger.Info("Watch ended", "user_id", userID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case snapshot, ok := <-snapshots:
			if !ok {
				return nil
			}
			err := stream.Send(&api.WatchTransactionsResponse{
				Transactions: api.FromTransactions(snapshot),
				Balance:      calculator.CalculateBalance(snapshot),
			})
			if err != nil {
				return err
			}
		}
	}
}

// ledgerError translates a ledger failure into a Connect error and logs it.
func (s *TransactionService) ledgerError(op, userID string, err error) error {
	switch {
	case calculator.IsValidationError(err):
		s.logger.Warn(op+" rejected", "user_id", userID, "error", err)
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, ledger.ErrNotFound):
		s.logger.Warn(op+" target not found", "user_id", userID, "error", err)
		return connect.NewError(connect.CodeNotFound, err)
	}
	s.logger.Error(op+" failed", "user_id", userID, "error", err)
	return connect.NewError(connect.CodeInternal, err)
}

func requireUser(ctx context.Context) (string, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return "", middleware.AuthError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	return userID, nil
}
