package provider

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTransferAmount(t *testing.T) {
	tests := []struct {
		balance  int64
		fraction float64
		want     int64
	}{
		{100000, 0.9, 90000},
		{5000, 0.9, 4500},
		{1, 0.9, 0},
		{1111, 0.9, 999},
		{0, 0.9, 0},
		{-5, 0.9, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TransferAmount(tt.balance, tt.fraction),
			"balance=%d fraction=%v", tt.balance, tt.fraction)
	}
}

func TestFormatCoins(t *testing.T) {
	assert.Equal(t, "0", FormatCoins(0))
	assert.Equal(t, "999", FormatCoins(999))
	assert.Equal(t, "1,000", FormatCoins(1000))
	assert.Equal(t, "111,000", FormatCoins(111000))
	assert.Equal(t, "90,000", FormatCoins(90000))
	assert.Equal(t, "1,234,567", FormatCoins(1234567))
	assert.Equal(t, "-4,500", FormatCoins(-4500))
}

// fakeSession is a scripted browser.Session for provider tests. Calls
// are recorded as "op:target" strings; failures are injected per call
// key.
type fakeSession struct {
	calls     []string
	failOn    map[string]error
	attrs     map[string]string
	html      string
	alertText string
	alertErr  error
	closed    int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		failOn: map[string]error{},
		attrs:  map[string]string{},
	}
}

func (f *fakeSession) record(op, target string) error {
	key := fmt.Sprintf("%s:%s", op, target)
	f.calls = append(f.calls, key)
	if err, ok := f.failOn[key]; ok {
		return err
	}
	return nil
}

func (f *fakeSession) ID() string { return "fake" }

func (f *fakeSession) Navigate(ctx context.Context, url string) error {
	return f.record("navigate", url)
}

func (f *fakeSession) Fill(ctx context.Context, selector, value string, timeout time.Duration) error {
	return f.record("fill", selector)
}

func (f *fakeSession) Click(ctx context.Context, selector string, timeout time.Duration) error {
	return f.record("click", selector)
}

func (f *fakeSession) EvalClick(ctx context.Context, selector string, timeout time.Duration) error {
	return f.record("eval_click", selector)
}

func (f *fakeSession) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return f.record("wait_visible", selector)
}

func (f *fakeSession) WaitURLContains(ctx context.Context, fragment string, timeout time.Duration) error {
	return f.record("wait_url", fragment)
}

func (f *fakeSession) AttributeValue(ctx context.Context, selector, attribute string, timeout time.Duration) (string, error) {
	if err := f.record("attribute", selector); err != nil {
		return "", err
	}
	return f.attrs[selector], nil
}

func (f *fakeSession) HTML(ctx context.Context) (string, error) {
	if err := f.record("html", ""); err != nil {
		return "", err
	}
	return f.html, nil
}

func (f *fakeSession) AcceptAlert(ctx context.Context, timeout time.Duration) (string, error) {
	f.calls = append(f.calls, "accept_alert:")
	return f.alertText, f.alertErr
}

func (f *fakeSession) Close() error {
	f.closed++
	return nil
}
