// Package auth provides credential checking and session tokens.
package auth

import (
	"context"

	"github.com/mmynk/fiambond/internal/models"
)

// Authenticator registers accounts and verifies credentials. The password
// implementation is the only one today; the interface keeps the RPC layer
// independent of it.
type Authenticator interface {
	// Register creates a new user account with the given email and credential.
	Register(ctx context.Context, email, displayName, credential string) (*models.User, error)

	// Authenticate verifies the user's credentials and returns the user if successful.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// VerifyCredential checks credential against the one stored for user.
	VerifyCredential(user *models.User, credential string) error

	// SetCredential replaces the user's stored credential. The caller
	// persists the user.
	SetCredential(user *models.User, credential string) error
}
