package tokens

import (
	"context"
	"errors"
	"fmt"

	"github.com/nodeupload/nodeupload-gw/credentials"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMalformedCredential = errors.New("malformed token")
	ErrUnknownToken        = errors.New("unknown token")
	ErrDisabledToken       = errors.New("disabled token")
	ErrBadSecret           = errors.New("token secret mismatch")
)

// IsAuthError reports whether err is one of the client-correctable
// authentication failures.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrMalformedCredential) ||
		errors.Is(err, ErrUnknownToken) ||
		errors.Is(err, ErrDisabledToken) ||
		errors.Is(err, ErrBadSecret)
}

// Authenticator validates composite tokens against the credential store.
type Authenticator struct {
	store credentials.Store
}

// NewAuthenticator creates an authenticator backed by store.
func NewAuthenticator(store credentials.Store) *Authenticator {
	return &Authenticator{store: store}
}

// Authenticate returns the token identifier when token is valid. Existence
// and the enabled flag are checked before the secret, so a disabled token is
// reported as disabled whatever secret it carries.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (string, error) {
	id, secret, err := Parse(token)
	if err != nil {
		return "", err
	}

	record, err := a.store.Get(ctx, id)
	switch {
	case errors.Is(err, credentials.ErrNotFound):
		return "", ErrUnknownToken
	case err != nil:
		return "", fmt.Errorf("could not fetch token %q: %w", id, err)
	case !record.Enabled:
		return "", ErrDisabledToken
	}

	if err = bcrypt.CompareHashAndPassword([]byte(record.SecretHash), []byte(secret)); err != nil {
		return "", ErrBadSecret
	}

	return id, nil
}
