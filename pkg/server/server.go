// Package server exposes the reward workflow over a small HTTP
// surface: one route per supported platform plus health and metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/quocanh-dev/coinrelay/pkg/browser"
	"github.com/quocanh-dev/coinrelay/pkg/config"
	"github.com/quocanh-dev/coinrelay/pkg/provider"
	"github.com/quocanh-dev/coinrelay/pkg/workflow"
)

// Server orchestrates per-request sessions and maps workflow outcomes
// to HTTP responses.
type Server struct {
	engine  browser.Engine
	ttc     provider.Provider
	tds     provider.Provider
	cfg     config.Config
	limiter *rate.Limiter
	router  chi.Router
	log     *zap.Logger
}

// New constructs the server and wires its routes.
func New(engine browser.Engine, ttc, tds provider.Provider, cfg config.Config, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		engine:  engine,
		ttc:     ttc,
		tds:     tds,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst),
		log:     log,
		router:  chi.NewRouter(),
	}
	s.routes()
	return s
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.Use(s.logRequests)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	s.router.Group(func(r chi.Router) {
		r.Use(s.throttle)
		r.Get("/api/v4/", s.handleTuongTacCheo)
		r.Get("/api/v3/", s.handleTraoDoiSub)
	})
}

// response is the uniform JSON envelope for every API reply.
type response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, response{Status: "success", Message: "ok"})
}

// handleTuongTacCheo serves GET /api/v4/. A below-minimum balance is a
// successful no-op on this platform.
func (s *Server) handleTuongTacCheo(w http.ResponseWriter, r *http.Request) {
	creds, ok := requestCredentials(r)
	if !ok {
		recordRequest(s.ttc.Name(), "bad_request")
		respondJSON(w, http.StatusBadRequest, response{
			Status:  "error",
			Message: "Thiếu tham số 'user' hoặc 'pass'.",
		})
		return
	}

	res, err := s.execute(r.Context(), s.ttc, creds, s.cfg.Providers.TuongTacCheo.CloseLinger)
	if err != nil {
		s.respondError(w, s.ttc.Name(), err)
		return
	}

	if res.Skipped {
		s.respondLowBalance(w, s.ttc, res)
		return
	}

	recordRequest(s.ttc.Name(), "transferred")
	respondJSON(w, http.StatusOK, response{
		Status:  "success",
		Message: res.Outcome.Message,
		Data: map[string]any{
			"recipient":          s.cfg.Recipient,
			"initial_balance":    res.Balance,
			"amount_transferred": res.Amount,
			"confirmation":       res.Outcome.Confirmation,
		},
	})
}

// handleTraoDoiSub serves GET /api/v3/. A below-minimum balance is a
// user-facing error on this platform, naming the required minimum.
func (s *Server) handleTraoDoiSub(w http.ResponseWriter, r *http.Request) {
	creds, ok := requestCredentials(r)
	if !ok {
		recordRequest(s.tds.Name(), "bad_request")
		respondJSON(w, http.StatusBadRequest, response{
			Status:  "error",
			Message: "Thiếu 'user' hoặc 'pass'.",
		})
		return
	}

	res, err := s.execute(r.Context(), s.tds, creds, s.cfg.Providers.TraoDoiSub.CloseLinger)
	if err != nil {
		s.respondError(w, s.tds.Name(), err)
		return
	}

	if res.Skipped {
		s.respondLowBalance(w, s.tds, res)
		return
	}

	recordRequest(s.tds.Name(), "transferred")
	respondJSON(w, http.StatusOK, response{
		Status:  "success",
		Message: res.Outcome.Message,
		Data: map[string]any{
			"recipient":       s.cfg.Recipient,
			"initial_balance": res.Balance,
			"amount_sent":     res.Amount,
			"confirmation":    res.Outcome.Confirmation,
		},
	})
}

// respondLowBalance maps a below-minimum balance per the provider's
// policy: either a successful no-op or a user-facing rejection naming
// the required minimum.
func (s *Server) respondLowBalance(w http.ResponseWriter, prov provider.Provider, res *workflow.Result) {
	switch prov.LowBalancePolicy() {
	case provider.LowBalanceReject:
		recordRequest(prov.Name(), "rejected_low_balance")
		respondJSON(w, http.StatusBadRequest, response{
			Status: "error",
			Message: fmt.Sprintf("Số dư không đủ. Yêu cầu tối thiểu %s xu, bạn đang có %s xu.",
				provider.FormatCoins(prov.MinimumBalance()), provider.FormatCoins(res.Balance)),
			Data: map[string]any{
				"balance":          res.Balance,
				"minimum_required": prov.MinimumBalance(),
			},
		})
	default:
		recordRequest(prov.Name(), "skipped_low_balance")
		respondJSON(w, http.StatusOK, response{
			Status:  "success",
			Message: fmt.Sprintf("Số dư quá thấp (%s xu), không thực hiện chuyển.", provider.FormatCoins(res.Balance)),
			Data: map[string]any{
				"balance":            res.Balance,
				"amount_transferred": 0,
			},
		})
	}
}

// execute acquires a browser session scoped to this request, runs the
// workflow, and releases the session on every exit path. The deferred
// Close is registered before the workflow runs, and the recover shield
// turns an unanticipated fault into an error without leaking the
// session or a stack trace.
func (s *Server) execute(ctx context.Context, prov provider.Provider, creds provider.Credentials, closeLinger time.Duration) (res *workflow.Result, err error) {
	sessCfg := browser.DefaultSessionConfig()
	sessCfg.SessionID = uuid.NewString()
	sessCfg.WindowWidth = s.cfg.Browser.WindowWidth
	sessCfg.WindowHeight = s.cfg.Browser.WindowHeight
	sessCfg.CloseLinger = closeLinger

	start := time.Now()
	defer func() {
		observeWorkflowDuration(prov.Name(), time.Since(start))
	}()

	sess, serr := s.engine.NewSession(ctx, sessCfg)
	if serr != nil {
		s.log.Error("browser session init failed",
			zap.String("provider", prov.Name()),
			zap.Error(serr),
		)
		return nil, fmt.Errorf("%w: %v", browser.ErrSessionInit, serr)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			s.log.Warn("session close failed", zap.Error(cerr))
		}
	}()
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("workflow panicked",
				zap.String("provider", prov.Name()),
				zap.Any("panic", rec),
			)
			res = nil
			err = fmt.Errorf("unexpected fault: %v", rec)
		}
	}()

	return workflow.New(prov, s.log).Run(ctx, sess, creds, s.cfg.Recipient)
}

// respondError maps a workflow failure to the HTTP surface: login
// failures are the caller's fault (401), everything else is a server
// fault (500).
func (s *Server) respondError(w http.ResponseWriter, providerName string, err error) {
	var stageErr *workflow.StageError
	if errors.As(err, &stageErr) {
		switch stageErr.Stage {
		case workflow.StageLogin:
			recordRequest(providerName, "login_failed")
			respondJSON(w, http.StatusUnauthorized, response{
				Status:  "error",
				Message: stageMessage(stageErr),
			})
			return
		case workflow.StageToken:
			recordRequest(providerName, "token_failed")
		case workflow.StageBalance:
			recordRequest(providerName, "balance_failed")
		case workflow.StageTransfer:
			recordRequest(providerName, "transfer_failed")
		}
		respondJSON(w, http.StatusInternalServerError, response{
			Status:  "error",
			Message: stageMessage(stageErr),
		})
		return
	}

	if errors.Is(err, browser.ErrSessionInit) {
		recordRequest(providerName, "session_init_failed")
		respondJSON(w, http.StatusInternalServerError, response{
			Status:  "error",
			Message: "Lỗi server: Không thể khởi tạo trình duyệt.",
		})
		return
	}

	recordRequest(providerName, "internal_error")
	respondJSON(w, http.StatusInternalServerError, response{
		Status:  "error",
		Message: "Lỗi hệ thống không mong muốn.",
	})
}

// stageMessage picks the human-readable error text returned to callers.
// Provider errors already carry a user-facing reason; anything deeper
// stays generic so driver internals are not leaked.
func stageMessage(stageErr *workflow.StageError) string {
	var loginErr *provider.LoginError
	if errors.As(stageErr.Err, &loginErr) {
		return loginErr.Reason
	}
	var transferErr *provider.TransferError
	if errors.As(stageErr.Err, &transferErr) {
		return transferErr.Reason
	}
	switch stageErr.Stage {
	case workflow.StageToken:
		return "Không thể lấy được access token."
	case workflow.StageBalance:
		return "Không thể lấy được số dư từ API."
	default:
		return "Lỗi hệ thống không mong muốn."
	}
}

// requestCredentials pulls the mandatory user/pass query parameters.
func requestCredentials(r *http.Request) (provider.Credentials, bool) {
	user := r.URL.Query().Get("user")
	pass := r.URL.Query().Get("pass")
	if user == "" || pass == "" {
		return provider.Credentials{}, false
	}
	return provider.Credentials{Username: user, Password: pass}, true
}

func respondJSON(w http.ResponseWriter, code int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
