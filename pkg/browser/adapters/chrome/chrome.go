// Package chrome adapts a locally launched Chrome/Chromium process to
// the browser.Session port using chromedp.
package chrome

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/quocanh-dev/coinrelay/pkg/browser"
)

// Config tunes the Chrome engine.
type Config struct {
	// ChromePath overrides binary discovery when set.
	ChromePath string

	// Headless runs Chrome without a visible UI. Always true in
	// production; a false value exists for local selector debugging.
	Headless bool

	// DefaultTimeout bounds operations invoked without an explicit
	// wait budget, such as Navigate and HTML.
	DefaultTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 30 * time.Second
	}
	return c
}

// Engine launches one Chrome process per session.
type Engine struct {
	cfg Config
	log *zap.Logger
}

// NewEngine creates a chromedp-backed browser engine.
func NewEngine(cfg Config, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{cfg: cfg.withDefaults(), log: log}
}

// NewSession starts a fresh headless Chrome process. Sandboxing is
// disabled for container compatibility and /dev/shm is avoided because
// container shm is routinely too small for a rendering Chrome.
func (e *Engine) NewSession(ctx context.Context, cfg browser.SessionConfig) (browser.Session, error) {
	if e == nil {
		return nil, browser.ErrSessionInit
	}
	if cfg.WindowWidth <= 0 || cfg.WindowHeight <= 0 {
		def := browser.DefaultSessionConfig()
		cfg.WindowWidth = def.WindowWidth
		cfg.WindowHeight = def.WindowHeight
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", e.cfg.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	if e.cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(e.cfg.ChromePath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &session{
		id:             cfg.SessionID,
		tabCtx:         tabCtx,
		cancels:        []context.CancelFunc{tabCancel, allocCancel},
		defaultTimeout: e.cfg.DefaultTimeout,
		closeLinger:    cfg.CloseLinger,
		dialogs:        make(chan string, 4),
		closed:         make(chan struct{}),
		log:            e.log.With(zap.String("browser_session_id", cfg.SessionID)),
	}
	s.listenDialogs()

	// An empty Run forces the process to start so an unlaunchable
	// Chrome surfaces here instead of on the first navigation.
	startCtx, cancel := context.WithTimeout(tabCtx, e.cfg.DefaultTimeout)
	defer cancel()
	if err := chromedp.Run(startCtx); err != nil {
		s.release()
		browser.RecordSessionFailed()
		return nil, fmt.Errorf("%w: %v", browser.ErrSessionInit, err)
	}

	browser.RecordSessionOpened()
	s.log.Info("browser session started",
		zap.Bool("headless", e.cfg.Headless),
		zap.Int("width", cfg.WindowWidth),
		zap.Int("height", cfg.WindowHeight),
	)
	return s, nil
}

// Close releases engine-level resources. The exec allocator holds no
// shared state, so there is nothing to do beyond satisfying the port.
func (e *Engine) Close() error {
	return nil
}

type session struct {
	id             string
	tabCtx         context.Context
	cancels        []context.CancelFunc
	defaultTimeout time.Duration
	closeLinger    time.Duration
	dialogs        chan string
	closeOnce      sync.Once
	closed         chan struct{}
	log            *zap.Logger
}

// listenDialogs auto-accepts native JavaScript dialogs and buffers their
// text for AcceptAlert. The handler must not block the event loop, so
// the acknowledgement runs on its own goroutine.
func (s *session) listenDialogs() {
	chromedp.ListenTarget(s.tabCtx, func(ev interface{}) {
		dialog, ok := ev.(*page.EventJavascriptDialogOpening)
		if !ok {
			return
		}
		select {
		case s.dialogs <- dialog.Message:
		default:
		}
		go func() {
			if err := chromedp.Run(s.tabCtx, page.HandleJavaScriptDialog(true)); err != nil {
				s.log.Warn("dismissing dialog failed", zap.Error(err))
			}
		}()
	})
}

func (s *session) ID() string {
	return s.id
}

func (s *session) Navigate(ctx context.Context, url string) (err error) {
	defer func() { browser.RecordOperation("navigate", err) }()
	err = s.run(ctx, s.defaultTimeout, chromedp.Navigate(url))
	if err != nil {
		return browser.NewDriverError("navigate", url, err)
	}
	return nil
}

func (s *session) Fill(ctx context.Context, selector, value string, timeout time.Duration) (err error) {
	defer func() { browser.RecordOperation("fill", err) }()
	sel, by := normalizeSelector(selector)
	err = s.run(ctx, timeout,
		chromedp.WaitVisible(sel, by),
		chromedp.SendKeys(sel, value, by),
	)
	return s.interactionError("fill", selector, err)
}

func (s *session) Click(ctx context.Context, selector string, timeout time.Duration) (err error) {
	defer func() { browser.RecordOperation("click", err) }()
	sel, by := normalizeSelector(selector)
	err = s.run(ctx, timeout,
		chromedp.WaitVisible(sel, by),
		chromedp.Click(sel, by),
	)
	return s.interactionError("click", selector, err)
}

func (s *session) EvalClick(ctx context.Context, selector string, timeout time.Duration) (err error) {
	defer func() { browser.RecordOperation("eval_click", err) }()
	sel, by := normalizeSelector(selector)
	actions := []chromedp.Action{chromedp.WaitVisible(sel, by)}
	if isXPath(sel) {
		// querySelector cannot take an XPath expression; fall back to a
		// trusted click for those locators.
		actions = append(actions, chromedp.Click(sel, by))
	} else {
		js := fmt.Sprintf(`document.querySelector(%q).click()`, sel)
		actions = append(actions, chromedp.Evaluate(js, nil))
	}
	err = s.run(ctx, timeout, actions...)
	return s.interactionError("eval_click", selector, err)
}

func (s *session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) (err error) {
	defer func() { browser.RecordOperation("wait_visible", err) }()
	sel, by := normalizeSelector(selector)
	err = s.run(ctx, timeout, chromedp.WaitVisible(sel, by))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", browser.ErrTimeout, selector)
		}
		return browser.NewDriverError("wait_visible", selector, err)
	}
	return nil
}

func (s *session) WaitURLContains(ctx context.Context, fragment string, timeout time.Duration) (err error) {
	defer func() { browser.RecordOperation("wait_url", err) }()
	deadline := time.Now().Add(timeout)
	for {
		var loc string
		if runErr := s.run(ctx, timeout, chromedp.Location(&loc)); runErr != nil {
			return browser.NewDriverError("wait_url", fragment, runErr)
		}
		if strings.Contains(loc, fragment) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: url never contained %q (last %q)", browser.ErrTimeout, fragment, loc)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: url never contained %q", browser.ErrTimeout, fragment)
		case <-time.After(200 * time.Millisecond):
		}
	}
}

func (s *session) AttributeValue(ctx context.Context, selector, attribute string, timeout time.Duration) (value string, err error) {
	defer func() { browser.RecordOperation("attribute", err) }()
	sel, by := normalizeSelector(selector)
	var ok bool
	err = s.run(ctx, timeout,
		chromedp.WaitReady(sel, by),
		chromedp.AttributeValue(sel, attribute, &value, &ok, by),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
		}
		return "", browser.NewDriverError("attribute", selector, err)
	}
	if !ok {
		return "", nil
	}
	return value, nil
}

func (s *session) HTML(ctx context.Context) (html string, err error) {
	defer func() { browser.RecordOperation("html", err) }()
	err = s.run(ctx, s.defaultTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	if err != nil {
		return "", browser.NewDriverError("html", "", err)
	}
	return html, nil
}

func (s *session) AcceptAlert(ctx context.Context, timeout time.Duration) (string, error) {
	if err := s.ensureOpen(); err != nil {
		return "", err
	}
	select {
	case text := <-s.dialogs:
		browser.RecordOperation("accept_alert", nil)
		return text, nil
	case <-ctx.Done():
		browser.RecordOperation("accept_alert", ctx.Err())
		return "", fmt.Errorf("%w: no alert appeared", browser.ErrTimeout)
	case <-time.After(timeout):
		browser.RecordOperation("accept_alert", browser.ErrTimeout)
		return "", fmt.Errorf("%w: no alert appeared", browser.ErrTimeout)
	}
}

func (s *session) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		if s.closeLinger > 0 {
			time.Sleep(s.closeLinger)
		}
		s.release()
		browser.RecordSessionClosed()
		s.log.Info("browser session closed")
	})
	return nil
}

func (s *session) release() {
	for _, cancel := range s.cancels {
		cancel()
	}
}

func (s *session) ensureOpen() error {
	select {
	case <-s.closed:
		return browser.ErrSessionClosed
	default:
		return nil
	}
}

func (s *session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = s.defaultTimeout
	}
	opCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()
	return chromedp.Run(opCtx, actions...)
}

// interactionError maps driver failures per the fill/click contract: a
// locator that never resolved is ErrElementNotFound, anything else is a
// DriverError.
func (s *session) interactionError(op, selector string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
	}
	if errors.Is(err, browser.ErrSessionClosed) {
		return err
	}
	return browser.NewDriverError(op, selector, err)
}

// normalizeSelector picks the chromedp query mode: XPath expressions go
// through the DOM search backend, everything else is a CSS query.
func normalizeSelector(selector string) (string, chromedp.QueryOption) {
	trimmed := strings.TrimSpace(selector)
	if isXPath(trimmed) {
		return trimmed, chromedp.BySearch
	}
	return trimmed, chromedp.ByQuery
}

func isXPath(selector string) bool {
	return strings.HasPrefix(selector, "//") || strings.HasPrefix(selector, "(")
}
