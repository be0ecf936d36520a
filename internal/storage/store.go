// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/pocketledger/internal/models"
)

// ErrNotFound is returned when a record does not exist or is not visible to the caller.
var ErrNotFound = errors.New("not found")

// Store defines the interface for all server-side persistence.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	// CreateUser persists a new user. The ID is expected to be set by the caller.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByEmail returns (nil, nil) when no user has the email.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID returns (nil, nil) when no user has the ID.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// CreateSession records an issued token.
	CreateSession(ctx context.Context, session *models.Session) error

	// GetSession returns ErrNotFound for unknown session IDs.
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)

	// RevokeSession marks a session as signed out. Revoking twice is not an error.
	RevokeSession(ctx context.Context, sessionID string) error

	// CreateTransaction persists a new transaction and its detail.
	// The ID and CreatedAt fields are populated by the store.
	CreateTransaction(ctx context.Context, tx *models.Transaction) error

	// GetTransaction returns ErrNotFound unless the transaction exists and belongs to userID.
	GetTransaction(ctx context.Context, userID, id string) (*models.Transaction, error)

	// ListTransactions returns every transaction owned by userID, newest first.
	ListTransactions(ctx context.Context, userID string) ([]models.Transaction, error)

	// UpdateTransactionDetail replaces the detail of one of userID's transactions.
	UpdateTransactionDetail(ctx context.Context, userID, id string, detail []models.DetailItem) error

	// DeleteTransaction removes one of userID's transactions outright.
	DeleteTransaction(ctx context.Context, userID, id string) error

	// Close releases any resources held by the store.
	Close() error
}
