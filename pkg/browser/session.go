package browser

import (
	"context"
	"time"
)

// Engine launches browser sessions. One engine is shared by the whole
// process; sessions are never shared or pooled.
type Engine interface {
	NewSession(ctx context.Context, cfg SessionConfig) (Session, error)
	Close() error
}

// Session is the port implemented by browser engine adapters. Every
// interaction carries its own wait budget; there is no session-wide
// deadline. A Session owns exactly one underlying browser process and
// must be closed by its creator on every exit path.
type Session interface {
	ID() string

	Navigate(ctx context.Context, url string) error

	// Fill resolves the locator within timeout and types value into it.
	Fill(ctx context.Context, selector, value string, timeout time.Duration) error

	// Click resolves the locator within timeout and clicks it.
	Click(ctx context.Context, selector string, timeout time.Duration) error

	// EvalClick dispatches a click through page JavaScript instead of a
	// trusted input event. Some submit buttons sit behind overlays that
	// swallow trusted clicks; a script click still fires their handlers.
	EvalClick(ctx context.Context, selector string, timeout time.Duration) error

	// WaitVisible blocks until the locator resolves to a visible element.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error

	// WaitURLContains blocks until the page URL contains fragment.
	WaitURLContains(ctx context.Context, fragment string, timeout time.Duration) error

	// AttributeValue waits for the element and reads one attribute.
	AttributeValue(ctx context.Context, selector, attribute string, timeout time.Duration) (string, error)

	// HTML returns the serialized DOM of the current page.
	HTML(ctx context.Context) (string, error)

	// AcceptAlert waits for a native JavaScript dialog, returns its text
	// and dismisses it.
	AcceptAlert(ctx context.Context, timeout time.Duration) (string, error)

	// Close releases the browser process. Idempotent and never panics.
	Close() error
}

// SessionConfig configures a single browser session.
type SessionConfig struct {
	SessionID    string
	WindowWidth  int
	WindowHeight int
	UserAgent    string

	// CloseLinger delays process teardown so page requests dispatched
	// just before Close are not cut off mid-flight.
	CloseLinger time.Duration
}

// DefaultSessionConfig returns the recommended session defaults. The
// window geometry is fixed so layout-dependent selectors resolve the
// same way on every run.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		WindowWidth:  1920,
		WindowHeight: 1080,
	}
}
