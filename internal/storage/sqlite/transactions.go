package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/pocketledger/internal/models"
	"github.com/mmynk/pocketledger/internal/storage"
)

const transactionColumns = `id, user_id, type, amount, description, created_at, is_regularization`

// CreateTransaction persists a new transaction and its detail in one database transaction.
func (s *SQLiteStore) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt == 0 {
		t.CreatedAt = time.Now().UnixMilli()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, string(t.Type), t.Amount.String(), t.Description, t.CreatedAt, t.IsRegularization,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	if err := insertDetail(ctx, tx, t.ID, t.Detail); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetTransaction retrieves one of userID's transactions, including its detail.
func (s *SQLiteStore) GetTransaction(ctx context.Context, userID, id string) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND user_id = ?`,
		id, userID,
	)

	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT transaction_id, amount, description FROM transaction_details
		 WHERE transaction_id = ? ORDER BY position`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction detail: %w", err)
	}
	defer rows.Close()

	details, err := scanDetails(rows)
	if err != nil {
		return nil, err
	}
	t.Detail = details[id]

	return t, nil
}

// ListTransactions retrieves all of userID's transactions, newest first, with their detail.
func (s *SQLiteStore) ListTransactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	var txs []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, *t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	if len(txs) == 0 {
		return txs, nil
	}

	detailRows, err := s.db.QueryContext(ctx,
		`SELECT d.transaction_id, d.amount, d.description
		 FROM transaction_details d
		 JOIN transactions t ON t.id = d.transaction_id
		 WHERE t.user_id = ?
		 ORDER BY d.transaction_id, d.position`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transaction detail: %w", err)
	}
	defer detailRows.Close()

	details, err := scanDetails(detailRows)
	if err != nil {
		return nil, err
	}
	for i := range txs {
		txs[i].Detail = details[txs[i].ID]
	}

	return txs, nil
}

// UpdateTransactionDetail replaces the detail of one of userID's transactions.
func (s *SQLiteStore) UpdateTransactionDetail(ctx context.Context, userID, id string, detail []models.DetailItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM transactions WHERE id = ? AND user_id = ?", id, userID,
	).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("transaction %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check transaction existence: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM transaction_details WHERE transaction_id = ?", id); err != nil {
		return fmt.Errorf("failed to clear transaction detail: %w", err)
	}

	if err := insertDetail(ctx, tx, id, detail); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// DeleteTransaction removes one of userID's transactions and its detail.
func (s *SQLiteStore) DeleteTransaction(ctx context.Context, userID, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM transaction_details WHERE transaction_id IN
		 (SELECT id FROM transactions WHERE id = ? AND user_id = ?)`,
		id, userID,
	); err != nil {
		return fmt.Errorf("failed to delete transaction detail: %w", err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM transactions WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted transaction: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", id, storage.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func insertDetail(ctx context.Context, tx *sql.Tx, transactionID string, detail []models.DetailItem) error {
	for i, item := range detail {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO transaction_details (transaction_id, position, amount, description) VALUES (?, ?, ?, ?)",
			transactionID, i, item.Amount.String(), item.Description,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction detail: %w", err)
		}
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	t := &models.Transaction{}
	var txType string
	if err := row.Scan(&t.ID, &t.UserID, &txType, &t.Amount, &t.Description, &t.CreatedAt, &t.IsRegularization); err != nil {
		return nil, err
	}
	t.Type = models.TransactionType(txType)
	return t, nil
}

// scanDetails groups detail rows by transaction ID, preserving row order.
func scanDetails(rows *sql.Rows) (map[string][]models.DetailItem, error) {
	details := make(map[string][]models.DetailItem)
	for rows.Next() {
		var txID string
		var item models.DetailItem
		if err := rows.Scan(&txID, &item.Amount, &item.Description); err != nil {
			return nil, fmt.Errorf("failed to scan transaction detail: %w", err)
		}
		details[txID] = append(details[txID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transaction detail: %w", err)
	}
	return details, nil
}
