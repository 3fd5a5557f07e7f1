package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quocanh-dev/coinrelay/pkg/browser"
	"github.com/quocanh-dev/coinrelay/pkg/provider"
)

// stubProvider scripts each stage and records invocation order.
type stubProvider struct {
	min         int64
	fraction    float64
	loginErr    error
	token       string
	tokenErr    error
	balance     int64
	balanceErr  error
	outcome     *provider.TransferOutcome
	transferErr error

	calls          []string
	gotToken       string
	gotRecipient   string
	gotAmount      int64
}

func (s *stubProvider) Name() string                                { return "stub" }
func (s *stubProvider) MinimumBalance() int64                       { return s.min }
func (s *stubProvider) TransferFraction() float64                   { return s.fraction }
func (s *stubProvider) LowBalancePolicy() provider.LowBalancePolicy { return provider.LowBalanceSkip }

func (s *stubProvider) Login(ctx context.Context, sess browser.Session, creds provider.Credentials) error {
	s.calls = append(s.calls, "login")
	return s.loginErr
}

func (s *stubProvider) ExtractToken(ctx context.Context, sess browser.Session) (string, error) {
	s.calls = append(s.calls, "token")
	return s.token, s.tokenErr
}

func (s *stubProvider) QueryBalance(ctx context.Context, token string) (int64, error) {
	s.calls = append(s.calls, "balance")
	s.gotToken = token
	return s.balance, s.balanceErr
}

func (s *stubProvider) ExecuteTransfer(ctx context.Context, sess browser.Session, creds provider.Credentials, recipient string, amount int64) (*provider.TransferOutcome, error) {
	s.calls = append(s.calls, "transfer")
	s.gotRecipient = recipient
	s.gotAmount = amount
	return s.outcome, s.transferErr
}

// nopSession satisfies browser.Session; the stub provider never touches
// it.
type nopSession struct{}

func (nopSession) ID() string                                               { return "nop" }
func (nopSession) Navigate(context.Context, string) error                   { return nil }
func (nopSession) Fill(context.Context, string, string, time.Duration) error { return nil }
func (nopSession) Click(context.Context, string, time.Duration) error       { return nil }
func (nopSession) EvalClick(context.Context, string, time.Duration) error   { return nil }
func (nopSession) WaitVisible(context.Context, string, time.Duration) error { return nil }
func (nopSession) WaitURLContains(context.Context, string, time.Duration) error {
	return nil
}
func (nopSession) AttributeValue(context.Context, string, string, time.Duration) (string, error) {
	return "", nil
}
func (nopSession) HTML(context.Context) (string, error) { return "", nil }
func (nopSession) AcceptAlert(context.Context, time.Duration) (string, error) {
	return "", nil
}
func (nopSession) Close() error { return nil }

func run(t *testing.T, prov *stubProvider) (*Result, error) {
	t.Helper()
	w := New(prov, nil)
	return w.Run(context.Background(), nopSession{}, provider.Credentials{Username: "alice", Password: "pw"}, "AsunaReal")
}

func TestRun_FullSuccess(t *testing.T) {
	prov := &stubProvider{
		min:      1000,
		fraction: 0.9,
		token:    "abc123",
		balance:  5000,
		outcome:  &provider.TransferOutcome{Confirmation: provider.ConfirmationConfirmed, Message: "ok", AmountSent: 4500},
	}

	res, err := run(t, prov)
	require.NoError(t, err)

	assert.Equal(t, []string{"login", "token", "balance", "transfer"}, prov.calls)
	assert.Equal(t, "abc123", prov.gotToken)
	assert.Equal(t, "AsunaReal", prov.gotRecipient)
	assert.Equal(t, int64(4500), prov.gotAmount)
	assert.False(t, res.Skipped)
	assert.Equal(t, int64(5000), res.Balance)
	assert.Equal(t, int64(4500), res.Amount)
	assert.Equal(t, provider.ConfirmationConfirmed, res.Outcome.Confirmation)
}

func TestRun_LoginFailureShortCircuits(t *testing.T) {
	prov := &stubProvider{loginErr: &provider.LoginError{Reason: "sai mật khẩu"}}

	_, err := run(t, prov)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageLogin, stageErr.Stage)

	var loginErr *provider.LoginError
	assert.ErrorAs(t, err, &loginErr)
	assert.Equal(t, []string{"login"}, prov.calls)
}

func TestRun_TokenFailure(t *testing.T) {
	prov := &stubProvider{tokenErr: &provider.TokenError{Reason: "trống"}}

	_, err := run(t, prov)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageToken, stageErr.Stage)
	assert.Equal(t, []string{"login", "token"}, prov.calls)
}

func TestRun_BalanceFailure(t *testing.T) {
	prov := &stubProvider{token: "abc123", balanceErr: &provider.BalanceError{Reason: "mạng lỗi"}}

	_, err := run(t, prov)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageBalance, stageErr.Stage)
	assert.Equal(t, []string{"login", "token", "balance"}, prov.calls)
}

func TestRun_LowBalanceSkipsTransfer(t *testing.T) {
	prov := &stubProvider{min: 111000, fraction: 0.9, token: "abc123", balance: 50000}

	res, err := run(t, prov)
	require.NoError(t, err)

	assert.True(t, res.Skipped)
	assert.Equal(t, int64(50000), res.Balance)
	assert.Equal(t, int64(0), res.Amount)
	assert.Nil(t, res.Outcome)
	assert.NotContains(t, prov.calls, "transfer")
}

func TestRun_BalanceExactlyAtMinimumTransfers(t *testing.T) {
	prov := &stubProvider{
		min:      1000,
		fraction: 0.9,
		token:    "abc123",
		balance:  1000,
		outcome:  &provider.TransferOutcome{Confirmation: provider.ConfirmationOptimistic, AmountSent: 900},
	}

	res, err := run(t, prov)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, int64(900), res.Amount)
}

func TestRun_TransferFailure(t *testing.T) {
	prov := &stubProvider{
		min:         1000,
		fraction:    0.9,
		token:       "abc123",
		balance:     5000,
		transferErr: &provider.TransferError{Reason: "alert lạ"},
	}

	_, err := run(t, prov)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageTransfer, stageErr.Stage)
}
