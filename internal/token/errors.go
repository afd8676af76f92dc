package token

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a lookup for an asset the registry does not know.
var ErrNotFound = errors.New("stock not found")

// ValidationError is a bad-request condition detected before any ledger call.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// AuthorizationError is an Ownership Guard rejection. It is decided locally,
// before the guarded ledger step.
type AuthorizationError struct {
	AssetID string
	Account string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("account %s is not the recorded owner of asset %s", e.Account, e.AssetID)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsAuthorization reports whether err is an AuthorizationError.
func IsAuthorization(err error) bool {
	var ae *AuthorizationError
	return errors.As(err, &ae)
}
