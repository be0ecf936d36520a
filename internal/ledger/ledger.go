// Package ledger is the transaction gateway: owner-scoped reads and writes over a
// storage.Store, the derived balance, the two reconciliation flows and change
// subscriptions.
//
// Every successful write publishes a fresh snapshot of the owner's transactions to
// subscribers. Snapshots are shared between subscribers and must be treated as read-only.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/pocketledger/internal/calculator"
	"github.com/mmynk/pocketledger/internal/metrics"
	"github.com/mmynk/pocketledger/internal/models"
	"github.com/mmynk/pocketledger/internal/notify"
	"github.com/mmynk/pocketledger/internal/storage"
)

// ErrNotFound is returned when a transaction does not exist or belongs to someone else.
var ErrNotFound = storage.ErrNotFound

// Snapshot is the full list of one owner's transactions, newest first.
type Snapshot = []models.Transaction

// Ledger wraps a store with the domain rules for transactions.
type Ledger struct {
	store   storage.Store
	hub     *notify.Hub[string, Snapshot]
	metrics *metrics.Metrics
	logger  *slog.Logger

	// snapshotLocks serializes list-then-deliver per owner so an older list never
	// overwrites a newer one.
	mu            sync.Mutex
	snapshotLocks map[string]*sync.Mutex
}

// New creates a ledger. m may be nil.
func New(store storage.Store, m *metrics.Metrics, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		store:         store,
		hub:           notify.NewHub[string, Snapshot](),
		metrics:       m,
		logger:        logger,
		snapshotLocks: make(map[string]*sync.Mutex),
	}
}

// Close ends all subscriptions. The store is left open.
func (l *Ledger) Close() {
	l.hub.Close()
}

// Add validates and persists a user-entered transaction.
// ID and CreatedAt are assigned by the store.
func (l *Ledger) Add(ctx context.Context, tx *models.Transaction) error {
	if err := calculator.ValidateTransaction(tx.Type, tx.Amount, tx.Description); err != nil {
		return err
	}
	if err := validateDetail(tx.Detail); err != nil {
		return err
	}
	return l.create(ctx, tx)
}

// Get returns one of userID's transactions.
func (l *Ledger) Get(ctx context.Context, userID, id string) (*models.Transaction, error) {
	return l.store.GetTransaction(ctx, userID, id)
}

// List returns every transaction owned by userID, newest first.
// Ordering is applied here rather than trusted from the store.
func (l *Ledger) List(ctx context.Context, userID string) (Snapshot, error) {
	txs, err := l.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].CreatedAt > txs[j].CreatedAt
	})
	return txs, nil
}

// Delete removes one of userID's transactions.
func (l *Ledger) Delete(ctx context.Context, userID, id string) error {
	if err := l.store.DeleteTransaction(ctx, userID, id); err != nil {
		return err
	}
	l.logger.Info("Transaction deleted", "user_id", userID, "transaction_id", id)
	l.publish(ctx, userID)
	return nil
}

// UpdateDetail validates and replaces the detail of one of userID's transactions,
// returning the updated transaction.
func (l *Ledger) UpdateDetail(ctx context.Context, userID, id string, detail []models.DetailItem) (*models.Transaction, error) {
	if err := validateDetail(detail); err != nil {
		return nil, err
	}
	if detail == nil {
		detail = []models.DetailItem{}
	}

	if err := l.store.UpdateTransactionDetail(ctx, userID, id, detail); err != nil {
		return nil, err
	}
	l.publish(ctx, userID)

	return l.store.GetTransaction(ctx, userID, id)
}

// Balance derives userID's balance from the full transaction list.
func (l *Ledger) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	txs, err := l.store.ListTransactions(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return calculator.CalculateBalance(txs), nil
}

// Regularize writes the transaction that brings userID's balance to target.
// It returns nil, and writes nothing, when the balance already matches.
func (l *Ledger) Regularize(ctx context.Context, userID string, target decimal.Decimal, description string) (*models.Transaction, error) {
	current, err := l.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}

	reg := calculator.CalculateRegularizationTransaction(current, target, description)
	if reg == nil {
		l.logger.Info("Balance already matches target", "user_id", userID, "balance", current.String())
		return nil, nil
	}

	tx := &models.Transaction{
		UserID:           userID,
		Type:             reg.Type,
		Amount:           reg.Amount,
		Description:      reg.Description,
		Detail:           []models.DetailItem{},
		IsRegularization: true,
	}
	if err := l.create(ctx, tx); err != nil {
		return nil, err
	}

	if l.metrics != nil {
		l.metrics.Regularizations.WithLabelValues(string(tx.Type)).Inc()
	}
	l.logger.Info("Balance regularized",
		"user_id", userID,
		"from", current.String(),
		"to", target.String(),
		"type", tx.Type,
		"amount", tx.Amount.String(),
	)
	return tx, nil
}

// Discrepancy returns the corrective item for one of userID's transactions without
// writing anything. The item is nil when the detail already adds up.
func (l *Ledger) Discrepancy(ctx context.Context, userID, id string) (*models.Transaction, *models.DetailItem, error) {
	tx, err := l.store.GetTransaction(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}
	return tx, calculator.CalculateDetailDiscrepancy(tx.Amount, tx.Detail), nil
}

// ReconcileDetail appends the corrective item to a transaction whose detail does not add
// up to its amount, and persists it. It returns the transaction as stored afterwards and
// the appended item, which is nil when nothing needed fixing.
func (l *Ledger) ReconcileDetail(ctx context.Context, userID, id string) (*models.Transaction, *models.DetailItem, error) {
	tx, item, err := l.Discrepancy(ctx, userID, id)
	if err != nil || item == nil {
		return tx, nil, err
	}

	detail := append(append([]models.DetailItem{}, tx.Detail...), *item)
	if err := l.store.UpdateTransactionDetail(ctx, userID, id, detail); err != nil {
		return nil, nil, err
	}
	tx.Detail = detail

	if l.metrics != nil {
		l.metrics.DetailReconciliations.Inc()
	}
	l.logger.Info("Transaction detail reconciled",
		"user_id", userID,
		"transaction_id", id,
		"gap", item.Description,
		"amount", item.Amount.String(),
	)
	l.publish(ctx, userID)
	return tx, item, nil
}

// Summary aggregates userID's transactions for the charts.
func (l *Ledger) Summary(ctx context.Context, userID string, loc *time.Location) (calculator.Summary, []calculator.MonthBucket, error) {
	txs, err := l.store.ListTransactions(ctx, userID)
	if err != nil {
		return calculator.Summary{}, nil, err
	}
	return calculator.Summarize(txs), calculator.MonthlySeries(txs, loc), nil
}

// Subscribe streams snapshots of userID's transactions: one straight away and one after
// every write. The channel closes when cancel is called, ctx ends or the ledger closes.
// The initial snapshot goes to the new subscriber only.
func (l *Ledger) Subscribe(ctx context.Context, userID string) (<-chan Snapshot, func(), error) {
	lock := l.snapshotLock(userID)
	lock.Lock()
	defer lock.Unlock()

	snapshot, err := l.List(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load initial snapshot: %w", err)
	}

	ch, cancel := l.hub.SubscribeWith(ctx, userID, snapshot)
	return ch, cancel, nil
}

// Subscribers returns the number of open subscriptions for userID.
func (l *Ledger) Subscribers(userID string) int {
	return l.hub.Count(userID)
}

func (l *Ledger) create(ctx context.Context, tx *models.Transaction) error {
	if tx.Detail == nil {
		tx.Detail = []models.DetailItem{}
	}
	tx.ID = ""
	tx.CreatedAt = 0

	if err := l.store.CreateTransaction(ctx, tx); err != nil {
		return err
	}
	l.logger.Info("Transaction created",
		"user_id", tx.UserID,
		"transaction_id", tx.ID,
		"type", tx.Type,
		"amount", tx.Amount.String(),
		"regularization", tx.IsRegularization,
	)
	l.publish(ctx, tx.UserID)
	return nil
}

// publish pushes a fresh snapshot to userID's subscribers. A failure here does not undo
// the write that triggered it.
func (l *Ledger) publish(ctx context.Context, userID string) {
	lock := l.snapshotLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if l.hub.Count(userID) == 0 {
		return
	}
	snapshot, err := l.List(ctx, userID)
	if err != nil {
		l.logger.Warn("Failed to publish snapshot", "user_id", userID, "error", err)
		return
	}
	l.hub.Publish(userID, snapshot)
}

func (l *Ledger) snapshotLock(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.snapshotLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		l.snapshotLocks[userID] = lock
	}
	return lock
}

func validateDetail(detail []models.DetailItem) error {
	for i, item := range detail {
		if err := calculator.ValidateTransactionDetail(item); err != nil {
			return fmt.Errorf("detail item %d: %w", i+1, err)
		}
	}
	return nil
}
