package ledger

import (
	"errors"
	"fmt"
)

// Recoverable ledger conditions the orchestrator folds into its state machine
// instead of aborting. Everything else coming back from the gateway is fatal
// for the remaining steps of the current operation.
var (
	ErrAlreadyAssociated   = errors.New("account already associated with token")
	ErrNotAssociated       = errors.New("account not associated with token")
	ErrInsufficientBalance = errors.New("insufficient token balance")
)

// Gateway status codes carried in 4xx response bodies.
const (
	codeAlreadyAssociated   = "TOKEN_ALREADY_ASSOCIATED_TO_ACCOUNT"
	codeNotAssociated       = "TOKEN_NOT_ASSOCIATED_TO_ACCOUNT"
	codeInsufficientBalance = "INSUFFICIENT_TOKEN_BALANCE"
)

// GatewayError is a typed ledger failure decided once at the adapter
// boundary. Known status codes unwrap to the sentinel errors above so call
// sites can use errors.Is instead of re-parsing messages.
type GatewayError struct {
	HTTPStatus int
	Code       string
	Message    string
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("ledger gateway: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("ledger gateway: %s", e.Code)
}

func (e *GatewayError) Unwrap() error {
	switch e.Code {
	case codeAlreadyAssociated:
		return ErrAlreadyAssociated
	case codeNotAssociated:
		return ErrNotAssociated
	case codeInsufficientBalance:
		return ErrInsufficientBalance
	default:
		return nil
	}
}

// IsAlreadyAssociated reports whether err is the already-associated condition.
func IsAlreadyAssociated(err error) bool {
	return errors.Is(err, ErrAlreadyAssociated)
}

// IsNotAssociated reports whether err is the not-associated condition.
func IsNotAssociated(err error) bool {
	return errors.Is(err, ErrNotAssociated)
}

// IsInsufficientBalance reports whether err is the insufficient-balance condition.
func IsInsufficientBalance(err error) bool {
	return errors.Is(err, ErrInsufficientBalance)
}
