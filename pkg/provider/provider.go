// Package provider encapsulates everything that differs between the
// supported reward platforms behind one uniform contract: login,
// token extraction, balance query and coin transfer.
package provider

import (
	"context"
	"strconv"

	"github.com/quocanh-dev/coinrelay/pkg/browser"
)

// Credentials are the user's platform credentials, scoped to one
// request and never persisted.
type Credentials struct {
	Username string
	Password string
}

// Confirmation tells how strong the evidence for a transfer's success
// is. Some platforms expose no reliable post-submit signal, so their
// outcomes are only optimistic.
type Confirmation string

const (
	// ConfirmationConfirmed means the platform positively acknowledged
	// the transfer (for example via a success dialog).
	ConfirmationConfirmed Confirmation = "confirmed"

	// ConfirmationOptimistic means the submit action was dispatched
	// without a driver-level fault but the platform gave no
	// acknowledgement. The transfer is assumed, not verified.
	ConfirmationOptimistic Confirmation = "optimistic"
)

// TransferOutcome is the terminal value of a completed transfer.
type TransferOutcome struct {
	Confirmation Confirmation
	Message      string
	AmountSent   int64
}

// LowBalancePolicy says how a below-minimum balance surfaces to the
// caller. The platforms deliberately differ here.
type LowBalancePolicy int

const (
	// LowBalanceSkip reports a successful no-op with zero amount sent.
	LowBalanceSkip LowBalancePolicy = iota

	// LowBalanceReject reports a user-facing error naming the required
	// minimum.
	LowBalanceReject
)

// Provider drives one external reward platform. Implementations hold
// immutable per-platform data (selectors, endpoints, thresholds) and
// are safe for concurrent use; all mutable state lives in the
// browser.Session passed to each call.
type Provider interface {
	Name() string
	MinimumBalance() int64
	TransferFraction() float64
	LowBalancePolicy() LowBalancePolicy

	// Login authenticates the browser session. Failures, including a
	// platform-reported bad-credentials signal, return a *LoginError.
	Login(ctx context.Context, sess browser.Session, creds Credentials) error

	// ExtractToken reads the session-bound API credential from an
	// authenticated settings page.
	ExtractToken(ctx context.Context, sess browser.Session) (string, error)

	// QueryBalance calls the platform's balance endpoint directly, off
	// the browser session, using the extracted token.
	QueryBalance(ctx context.Context, token string) (int64, error)

	// ExecuteTransfer performs the coin transfer on the platform's web
	// UI and reports the platform-specific success signal.
	ExecuteTransfer(ctx context.Context, sess browser.Session, creds Credentials, recipient string, amount int64) (*TransferOutcome, error)
}

// TransferAmount computes the amount to send: the floor of the balance
// scaled by the provider's transfer fraction.
func TransferAmount(balance int64, fraction float64) int64 {
	if balance <= 0 || fraction <= 0 {
		return 0
	}
	return int64(float64(balance) * fraction)
}

// FormatCoins renders a coin amount with thousands separators,
// e.g. 111000 -> "111,000".
func FormatCoins(amount int64) string {
	raw := strconv.FormatInt(amount, 10)
	negative := false
	if raw[0] == '-' {
		negative = true
		raw = raw[1:]
	}
	var out []byte
	for i, digit := range []byte(raw) {
		if i > 0 && (len(raw)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, digit)
	}
	if negative {
		return "-" + string(out)
	}
	return string(out)
}
