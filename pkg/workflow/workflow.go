// Package workflow drives a browser session through the four ordered
// reward-redemption stages: login, token extraction, balance query and
// transfer. Stages run strictly sequentially and the first failure is
// terminal; there is no retry of any stage.
package workflow

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/quocanh-dev/coinrelay/pkg/browser"
	"github.com/quocanh-dev/coinrelay/pkg/provider"
)

// Stage names the workflow stage a failure belongs to. Callers map the
// stage to a response class: login failures are the user's fault,
// everything after is the system's.
type Stage string

const (
	StageLogin    Stage = "login"
	StageToken    Stage = "token"
	StageBalance  Stage = "balance"
	StageTransfer Stage = "transfer"
)

// StageError is a terminal workflow failure tagged with its stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Result is the terminal value of a completed workflow.
type Result struct {
	// Balance is the balance observed before any transfer.
	Balance int64

	// Amount is the computed transfer amount; zero when skipped.
	Amount int64

	// Skipped is true when the balance was below the provider minimum
	// and no transfer was attempted. This is a successful no-op, not a
	// failure.
	Skipped bool

	// Outcome is the provider's transfer outcome; nil when Skipped.
	Outcome *provider.TransferOutcome
}

// Workflow runs the four-stage state machine for one provider.
type Workflow struct {
	prov provider.Provider
	log  *zap.Logger
}

// New builds a workflow for the given provider.
func New(prov provider.Provider, log *zap.Logger) *Workflow {
	if log == nil {
		log = zap.NewNop()
	}
	return &Workflow{prov: prov, log: log}
}

// Run executes login → token → balance → transfer against the session.
// The session is borrowed, never owned: the caller created it and the
// caller releases it regardless of how Run exits.
func (w *Workflow) Run(ctx context.Context, sess browser.Session, creds provider.Credentials, recipient string) (*Result, error) {
	log := w.log.With(
		zap.String("provider", w.prov.Name()),
		zap.String("username", creds.Username),
		zap.String("browser_session_id", sess.ID()),
	)

	if err := w.prov.Login(ctx, sess, creds); err != nil {
		log.Warn("login stage failed", zap.Error(err))
		return nil, &StageError{Stage: StageLogin, Err: err}
	}

	token, err := w.prov.ExtractToken(ctx, sess)
	if err != nil {
		log.Error("token stage failed", zap.Error(err))
		return nil, &StageError{Stage: StageToken, Err: err}
	}

	balance, err := w.prov.QueryBalance(ctx, token)
	if err != nil {
		log.Error("balance stage failed", zap.Error(err))
		return nil, &StageError{Stage: StageBalance, Err: err}
	}

	if balance < w.prov.MinimumBalance() {
		log.Info("balance below minimum, skipping transfer",
			zap.Int64("balance", balance),
			zap.Int64("minimum", w.prov.MinimumBalance()),
		)
		return &Result{Balance: balance, Skipped: true}, nil
	}

	amount := provider.TransferAmount(balance, w.prov.TransferFraction())
	outcome, err := w.prov.ExecuteTransfer(ctx, sess, creds, recipient, amount)
	if err != nil {
		log.Error("transfer stage failed", zap.Error(err))
		return nil, &StageError{Stage: StageTransfer, Err: err}
	}

	log.Info("workflow completed",
		zap.Int64("balance", balance),
		zap.Int64("amount", amount),
		zap.String("confirmation", string(outcome.Confirmation)),
	)
	return &Result{Balance: balance, Amount: amount, Outcome: outcome}, nil
}
