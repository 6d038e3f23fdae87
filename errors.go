package estateAuth

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized reports an operation that needs a session and has none.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrPermissionDenied reports a session whose role or ownership does not permit the action.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidCredentials covers unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLoginRateLimited reports an exhausted login attempt budget.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRegistrationRateLimited reports an exhausted per-IP registration budget.
	ErrRegistrationRateLimited = errors.New("registration rate limited")
	// ErrListingNotFound reports a listing that does not exist or is not visible to the caller.
	ErrListingNotFound = errors.New("listing not found")
	// ErrAgentNotFound reports an unknown agent profile.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrAccountExists reports a registration for an email already in use.
	ErrAccountExists = errors.New("account already exists")
	// ErrInvalidInput wraps request validation failures.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEngineNotReady reports use of a nil or closed Engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrBackendUnavailable reports a failing database or Redis dependency.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
