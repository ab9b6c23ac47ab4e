package errors

import "errors"

// Sentinel errors shared by the service and API layers. Services wrap them with
// context via fmt.Errorf("%w"), and the API layer maps them to HTTP status codes
// with errors.Is.

var (
	// ErrValidation signifies that input data failed validation.
	ErrValidation = errors.New("validation failed")

	// ErrBusy is returned when an auth command is submitted while another one
	// is still pending.
	ErrBusy = errors.New("another command is in progress")

	// ErrUnauthenticated signifies that the operation needs a signed-in user
	// and no anonymous scope is configured.
	ErrUnauthenticated = errors.New("not signed in")
)
