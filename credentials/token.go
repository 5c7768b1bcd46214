package credentials

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no token matches the lookup.
	ErrNotFound = errors.New("token not found")
	// ErrAlreadyExists is returned when a token for the email is already stored.
	ErrAlreadyExists = errors.New("token already exists")
	// ErrNotInitialized is returned when the store has no tokens table.
	ErrNotInitialized = errors.New("credential store is not initialized")
	// ErrAbsent is returned when a store opened with MustExist has no
	// database file.
	ErrAbsent = errors.New("credential store does not exist")
)

// Token is a provisioned upload credential. SecretHash is a bcrypt hash of
// the secret half of the client token.
type Token struct {
	ID         string
	Email      string
	SecretHash string
	Enabled    bool
	CreatedAt  time.Time
}

// Store looks tokens up by identifier.
type Store interface {
	Get(ctx context.Context, id string) (*Token, error)
}
