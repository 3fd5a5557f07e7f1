package provider

import "fmt"

// LoginError means authentication failed: wrong credentials, a
// platform-reported failure banner, or a login flow that never reached
// its success signal.
type LoginError struct {
	Reason string
	Err    error
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("login failed: %s", e.Reason)
}

func (e *LoginError) Unwrap() error { return e.Err }

// TokenError means the session-bound API credential could not be read
// from the authenticated page. This is internal extraction brittleness,
// not a user fault.
type TokenError struct {
	Reason string
	Err    error
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("token extraction failed: %s", e.Reason)
}

func (e *TokenError) Unwrap() error { return e.Err }

// BalanceError means the direct balance-API call failed: network fault,
// non-success status or an unparsable payload.
type BalanceError struct {
	Reason string
	Err    error
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("balance query failed: %s", e.Reason)
}

func (e *BalanceError) Unwrap() error { return e.Err }

// TransferError means the transfer UI interaction failed or the
// platform reported an unsuccessful transfer.
type TransferError struct {
	Reason string
	Err    error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer failed: %s", e.Reason)
}

func (e *TransferError) Unwrap() error { return e.Err }
