package auth

import (
	"context"

	"github.com/mmynk/pocketledger/internal/models"
)

var _ Authenticator = (*PasswordAuthenticator)(nil)

// Authenticator defines the interface for authentication implementations.
// The service layer only sees this, so the credential scheme can change underneath it.
type Authenticator interface {
	// Register creates a new user account with the given email and credential.
	// Returns ErrEmailExists or ErrWeakPassword for the known failure cases.
	Register(ctx context.Context, email, displayName, credential string) (*models.User, error)

	// Authenticate verifies the user's credentials and returns the user if successful.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ValidateCredential checks if the credential meets the implementation's requirements.
	ValidateCredential(credential string) error
}
