package naming

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// Attempts is how many candidates Allocate generates before giving up.
const Attempts = 4

var (
	// ErrExhausted is returned when every generated candidate collided.
	ErrExhausted = errors.New("could not allocate a free object name")
	// ErrInvalidLength is returned for non-positive name lengths.
	ErrInvalidLength = errors.New("object name length must be positive")
)

type (
	// Checker reports whether a name is already taken.
	Checker interface {
		Contains(name string) bool
	}

	// Allocator generates random lowercase hex object names that are not
	// present in the checker.
	Allocator struct {
		taken  Checker
		random io.Reader
	}

	// Option configures Allocator.
	Option func(a *Allocator)
)

// WithRandom replaces crypto/rand as the source of name bytes.
func WithRandom(r io.Reader) Option {
	return func(a *Allocator) {
		if r != nil {
			a.random = r
		}
	}
}

// New creates an allocator checking candidates against taken.
func New(taken Checker, opts ...Option) *Allocator {
	a := &Allocator{
		taken:  taken,
		random: rand.Reader,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Allocate returns a name of length hex characters followed by ext.
func (a *Allocator) Allocate(length int, ext string) (string, error) {
	if length <= 0 {
		return "", ErrInvalidLength
	}

	buf := make([]byte, (length+1)/2)

	for attempt := 0; attempt < Attempts; attempt++ {
		if _, err := io.ReadFull(a.random, buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}

		name := hex.EncodeToString(buf)[:length] + ext
		if !a.taken.Contains(name) {
			return name, nil
		}
	}

	return "", ErrExhausted
}
