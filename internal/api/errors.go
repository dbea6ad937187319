package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// バックエンドの応答を分類したエラーです
// 呼び出し側は errors.Is で判定し、文言の文字列比較はこのファイルに閉じ込めます
var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not_found")
	ErrConflict          = errors.New("conflict")
	ErrValidation        = errors.New("validation_failed")
	ErrRateLimited       = errors.New("rate_limited")
	ErrEmailNotConfirmed = errors.New("email_not_confirmed")
	ErrAccountSuspended  = errors.New("account_suspended")
	ErrServer            = errors.New("server_error")
	ErrTransport         = errors.New("transport_error")
)

// Error は REST API が返したエラー応答です
type Error struct {
	StatusCode int
	Code       string
	Message    string
	kind       error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Unwrap で分類済みの番兵エラーを返します
func (e *Error) Unwrap() error {
	return e.kind
}

// errorBody はバックエンドのエラー応答本文です
type errorBody struct {
	Error            string `json:"error"`
	Code             string `json:"code"`
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
}

func (b *errorBody) text() string {
	for _, s := range []string{b.Message, b.ErrorDescription, b.Msg, b.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

func newError(status int, body *errorBody, raw string) *Error {
	msg := ""
	code := ""
	if body != nil {
		msg = body.text()
		code = body.Code
		if code == "" && body.Error != msg {
			code = body.Error
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(raw)
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &Error{
		StatusCode: status,
		Code:       code,
		Message:    msg,
		kind:       classify(status, code+" "+msg),
	}
}

// classify はステータスコードと文言からエラーの種類を決めます
// 文言による判定はステータスコードより優先します
func classify(status int, text string) error {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "email not confirmed"), strings.Contains(lower, "email_not_confirmed"):
		return ErrEmailNotConfirmed
	case strings.Contains(lower, "rate limit"), strings.Contains(lower, "rate_limit"), strings.Contains(lower, "too many requests"):
		return ErrRateLimited
	case strings.Contains(lower, "suspended"), strings.Contains(lower, "banned"):
		return ErrAccountSuspended
	}

	switch {
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusConflict:
		return ErrConflict
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return ErrValidation
	case status >= 500:
		return ErrServer
	default:
		return ErrServer
	}
}

// UserMessage はエラーを利用者向けの文言に変換します
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *Error
	switch {
	case errors.Is(err, ErrEmailNotConfirmed):
		return "Please confirm your email address before signing in."
	case errors.Is(err, ErrRateLimited):
		return "Too many attempts. Please wait a moment and try again."
	case errors.Is(err, ErrAccountSuspended):
		return "Your account has been suspended. Please contact the hostel office."
	case errors.Is(err, ErrUnauthorized):
		return "Your session has expired. Please sign in again."
	case errors.Is(err, ErrForbidden):
		return "You do not have permission to perform this action."
	case errors.Is(err, ErrNotFound):
		return "The requested record could not be found."
	case errors.Is(err, ErrConflict):
		return "This record was changed by someone else. Refresh and try again."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "The request was cancelled or timed out."
	case errors.Is(err, ErrTransport):
		return "Could not reach the hostel server. Check your connection."
	case errors.As(err, &apiErr) && errors.Is(err, ErrValidation):
		return apiErr.Message
	case errors.Is(err, ErrServer):
		return "Something went wrong on the server. Please try again later."
	default:
		return err.Error()
	}
}
