package errors

import (
	"errors"
	"fmt"
)

// Common error types for the login gateway
var (
	// Flow errors
	ErrStateMismatch           = errors.New("state mismatch")
	ErrTokenExchangeFailed     = errors.New("token exchange failed")
	ErrDelegatedExchangeFailed = errors.New("delegated token exchange failed")

	// Token errors
	ErrMalformedToken = errors.New("malformed token")

	// Session errors
	ErrSessionNotFound          = errors.New("session not found")
	ErrSessionExpired           = errors.New("session expired")
	ErrMalformedSession         = errors.New("malformed session record")
	ErrSessionPersistenceFailed = errors.New("session persistence failed")

	// Identity errors
	ErrNotAuthenticated = errors.New("not authenticated")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
