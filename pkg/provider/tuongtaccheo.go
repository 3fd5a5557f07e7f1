package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quocanh-dev/coinrelay/pkg/browser"
)

// TuongTacCheo automation constants. The selectors and endpoints track
// the live tuongtaccheo.com layout.
const (
	ttcDefaultBaseURL    = "https://tuongtaccheo.com"
	ttcDefaultMinBalance = 1000

	ttcSelUsername     = `input[name="username"]`
	ttcSelPassword     = `input[name="password"]`
	ttcSelLoginSubmit  = `//input[@type='submit' and @value='ĐĂNG NHẬP']`
	ttcSelToken        = `#ttc_access_token`
	ttcSelRecipient    = `#usernhan`
	ttcSelAmount       = `#soxumuontang`
	ttcSelConfirmPass  = `#passnicktang`
	ttcSelTransferBtn  = `#tangxu`
	ttcHomePath        = "/home.php"
	ttcSuccessKeyword  = "THÀNH CÔNG"
	ttcLoginWait       = 20 * time.Second
	ttcInteractionWait = 10 * time.Second
)

// TuongTacCheo drives tuongtaccheo.com. Transfers are confirmed by the
// platform's native success alert.
type TuongTacCheo struct {
	opts Options
}

// NewTuongTacCheo builds the TuongTacCheo provider variant.
func NewTuongTacCheo(opts Options) *TuongTacCheo {
	return &TuongTacCheo{opts: opts.withDefaults(ttcDefaultBaseURL, ttcDefaultMinBalance)}
}

func (p *TuongTacCheo) Name() string                      { return "tuongtaccheo" }
func (p *TuongTacCheo) MinimumBalance() int64             { return p.opts.MinimumBalance }
func (p *TuongTacCheo) TransferFraction() float64         { return p.opts.TransferFraction }
func (p *TuongTacCheo) LowBalancePolicy() LowBalancePolicy { return LowBalanceSkip }

// Login signs in through the landing page form and waits for the
// redirect to home.php as the success signal.
func (p *TuongTacCheo) Login(ctx context.Context, sess browser.Session, creds Credentials) error {
	log := p.opts.Logger.With(zap.String("provider", p.Name()), zap.String("username", creds.Username))
	log.Info("logging in")

	if err := sess.Navigate(ctx, p.opts.BaseURL+"/"); err != nil {
		return &LoginError{Reason: "không mở được trang đăng nhập", Err: err}
	}
	if err := sess.Fill(ctx, ttcSelUsername, creds.Username, ttcLoginWait); err != nil {
		return &LoginError{Reason: "không tìm thấy ô tài khoản", Err: err}
	}
	if err := sess.Fill(ctx, ttcSelPassword, creds.Password, ttcInteractionWait); err != nil {
		return &LoginError{Reason: "không tìm thấy ô mật khẩu", Err: err}
	}
	if err := sess.Click(ctx, ttcSelLoginSubmit, ttcInteractionWait); err != nil {
		return &LoginError{Reason: "không bấm được nút đăng nhập", Err: err}
	}
	if err := sess.WaitURLContains(ctx, ttcHomePath, ttcLoginWait); err != nil {
		return &LoginError{Reason: "đăng nhập thất bại: không chuyển tới trang chủ", Err: err}
	}

	log.Info("login succeeded")
	return nil
}

// ExtractToken reads the access token out of the API settings page.
func (p *TuongTacCheo) ExtractToken(ctx context.Context, sess browser.Session) (string, error) {
	log := p.opts.Logger.With(zap.String("provider", p.Name()))
	log.Info("extracting access token")

	if err := sess.Navigate(ctx, p.opts.BaseURL+"/api/"); err != nil {
		return "", &TokenError{Reason: "không mở được trang API", Err: err}
	}
	token, err := sess.AttributeValue(ctx, ttcSelToken, "value", ttcInteractionWait)
	if err != nil {
		return "", &TokenError{Reason: "không đọc được ô access token", Err: err}
	}
	if strings.TrimSpace(token) == "" {
		return "", &TokenError{Reason: "access token rỗng"}
	}
	return token, nil
}

type ttcBalanceResponse struct {
	Status string `json:"status"`
	Data   struct {
		Sodu json.Number `json:"sodu"`
	} `json:"data"`
}

// QueryBalance posts the token to logintoken.php and parses the balance
// out of the {status, data:{sodu}} payload. The sodu field is a string
// on the wire.
func (p *TuongTacCheo) QueryBalance(ctx context.Context, token string) (int64, error) {
	form := url.Values{"access_token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.opts.BaseURL+"/logintoken.php", strings.NewReader(form.Encode()))
	if err != nil {
		return 0, &BalanceError{Reason: "không tạo được yêu cầu", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.opts.HTTPClient.Do(req)
	if err != nil {
		return 0, &BalanceError{Reason: "lỗi kết nối API lấy số dư", Err: err}
	}
	defer resp.Body.Close()

	var payload ttcBalanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, &BalanceError{Reason: "phản hồi API không hợp lệ", Err: err}
	}
	if payload.Status != "success" {
		return 0, &BalanceError{Reason: fmt.Sprintf("API trả về trạng thái %q", payload.Status)}
	}
	balance, err := payload.Data.Sodu.Int64()
	if err != nil {
		return 0, &BalanceError{Reason: "số dư không đọc được", Err: err}
	}
	if balance < 0 {
		return 0, &BalanceError{Reason: "số dư âm không hợp lệ"}
	}
	p.opts.Logger.Info("balance fetched",
		zap.String("provider", p.Name()),
		zap.Int64("balance", balance),
	)
	return balance, nil
}

// ExecuteTransfer fills the gift form (recipient, amount and the
// account password as confirmation) and reads the native alert the
// platform raises. The transfer counts as confirmed only when the alert
// text contains the success keyword.
func (p *TuongTacCheo) ExecuteTransfer(ctx context.Context, sess browser.Session, creds Credentials, recipient string, amount int64) (*TransferOutcome, error) {
	log := p.opts.Logger.With(
		zap.String("provider", p.Name()),
		zap.String("recipient", recipient),
		zap.Int64("amount", amount),
	)
	log.Info("executing transfer")

	if err := sess.Navigate(ctx, p.opts.BaseURL+"/caidat/"); err != nil {
		return nil, &TransferError{Reason: "không mở được trang chuyển xu", Err: err}
	}
	if err := sess.Fill(ctx, ttcSelRecipient, recipient, ttcInteractionWait); err != nil {
		return nil, &TransferError{Reason: "không tìm thấy ô người nhận", Err: err}
	}
	if err := sess.Fill(ctx, ttcSelAmount, fmt.Sprintf("%d", amount), ttcInteractionWait); err != nil {
		return nil, &TransferError{Reason: "không tìm thấy ô số xu", Err: err}
	}
	if err := sess.Fill(ctx, ttcSelConfirmPass, creds.Password, ttcInteractionWait); err != nil {
		return nil, &TransferError{Reason: "không tìm thấy ô mật khẩu xác nhận", Err: err}
	}
	if err := sess.Click(ctx, ttcSelTransferBtn, ttcInteractionWait); err != nil {
		return nil, &TransferError{Reason: "không bấm được nút tặng xu", Err: err}
	}

	alertText, err := sess.AcceptAlert(ctx, ttcInteractionWait)
	if err != nil {
		return nil, &TransferError{Reason: "không nhận được thông báo xác nhận", Err: err}
	}
	log.Info("transfer alert received", zap.String("alert", alertText))

	if !strings.Contains(strings.ToUpper(alertText), ttcSuccessKeyword) {
		return nil, &TransferError{Reason: alertText}
	}
	return &TransferOutcome{
		Confirmation: ConfirmationConfirmed,
		Message:      alertText,
		AmountSent:   amount,
	}, nil
}
