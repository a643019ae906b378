// Package errs provides the error types handlers use to respond to clients.
package errs

import (
	"errors"
	"net/http"

	"github.com/ardanlabs/moon/foundation/blockchain/mempool"
	"github.com/ardanlabs/moon/foundation/blockchain/wallet"
)

// Response is the form used for API responses from failures in the API.
type Response struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Trusted is used to pass an error during the request through the
// application with web specific context. The message of a trusted error
// is safe to show to the client.
type Trusted struct {
	Err    error
	Status int
}

// NewTrusted wraps a provided error with an HTTP status code. This
// function should be used when handlers encounter expected errors.
func NewTrusted(err error, status int) error {
	return &Trusted{err, status}
}

// FromBlockchain wraps an error returned by the blockchain packages with
// the status that matches it. Errors that aren't known are returned as is.
func FromBlockchain(err error) error {
	switch {
	case errors.Is(err, mempool.ErrFull):
		return NewTrusted(err, http.StatusServiceUnavailable)

	case errors.Is(err, wallet.ErrInsufficientFunds):
		return NewTrusted(err, http.StatusBadRequest)
	}

	return err
}

// Error implements the error interface. It uses the default message of the
// wrapped error. This is what will be shown in the services' logs.
func (t *Trusted) Error() string {
	return t.Err.Error()
}

// Unwrap provides access to the wrapped error.
func (t *Trusted) Unwrap() error {
	return t.Err
}

// IsTrusted checks if an error of type Trusted exists.
func IsTrusted(err error) bool {
	var t *Trusted
	return errors.As(err, &t)
}

// GetTrusted returns a copy of the Trusted pointer.
func GetTrusted(err error) *Trusted {
	var t *Trusted
	if !errors.As(err, &t) {
		return nil
	}
	return t
}
