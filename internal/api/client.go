// Package api はホステル管理 REST API のクライアントです
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/go-resty/resty/v2"
	"github.com/uma-arai/sbcntr-hostel/internal/auth"
	"github.com/uma-arai/sbcntr-hostel/internal/model"
	"go.uber.org/zap"
)

// Options は REST クライアントの設定です
type Options struct {
	BaseURL string
	Timeout time.Duration
	// Tracing が true の場合は X-Ray で HTTP 呼び出しを計測します
	Tracing bool
	// HTTPClient を指定しない場合は新しい http.Client を使います
	HTTPClient *http.Client
}

// Client は REST API の各リソースへの入口です
type Client struct {
	http    *resty.Client
	session *auth.Session
	logger  *zap.Logger

	Rooms         *Resource[model.Room]
	RoomRequests  *Resource[model.RoomRequest]
	Parcels       *Resource[model.Parcel]
	Notifications *Resource[model.Notification]
	Staff         *Resource[model.Staff]
	Payments      *Resource[model.Payment]
	Complaints    *Resource[model.Complaint]
	LeaveRequests *Resource[model.LeaveRequest]
}

// New は REST クライアントを作成します
// 自動リトライは行いません。失敗はすべて呼び出し元に返します
func New(opts Options, session *auth.Session, logger *zap.Logger) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	if opts.Tracing {
		hc = xray.Client(hc)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	rc := resty.NewWithClient(hc).
		SetBaseURL(opts.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if session != nil && session.AccessToken != "" {
		rc.SetAuthToken(session.AccessToken)
	}

	c := &Client{
		http:    rc,
		session: session,
		logger:  logger,
	}
	c.Rooms = newResource[model.Room](c, "/rooms")
	c.RoomRequests = newResource[model.RoomRequest](c, "/room-requests")
	c.Parcels = newResource[model.Parcel](c, "/parcels")
	c.Notifications = newResource[model.Notification](c, "/notifications")
	c.Staff = newResource[model.Staff](c, "/staff")
	c.Payments = newResource[model.Payment](c, "/payments")
	c.Complaints = newResource[model.Complaint](c, "/complaints")
	c.LeaveRequests = newResource[model.LeaveRequest](c, "/leave-requests")
	return c
}

// Session は認証済みセッションを返します
func (c *Client) Session() *auth.Session {
	return c.session
}

type call struct {
	method string
	path   string
	query  map[string]string
	body   any
	result any
}

func (c *Client) do(ctx context.Context, in call) error {
	req := c.http.R().
		SetContext(ctx).
		SetError(&errorBody{})
	if in.body != nil {
		req.SetBody(in.body)
	}
	if in.result != nil {
		req.SetResult(in.result)
	}
	if len(in.query) > 0 {
		req.SetQueryParams(in.query)
	}

	resp, err := req.Execute(in.method, in.path)
	if err != nil && (resp == nil || resp.RawResponse == nil || !resp.IsError()) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s %s: %w", in.method, in.path, ctxErr)
		}
		c.logger.Error("API call failed",
			zap.String("method", in.method),
			zap.String("path", in.path),
			zap.Error(err),
		)
		if resp != nil && resp.RawResponse != nil {
			return fmt.Errorf("%s %s: failed to decode response: %w", in.method, in.path, err)
		}
		return fmt.Errorf("%s %s: %w: %v", in.method, in.path, ErrTransport, err)
	}

	if resp.IsError() {
		body, _ := resp.Error().(*errorBody)
		apiErr := newError(resp.StatusCode(), body, string(resp.Body()))
		c.logger.Warn("API returned error",
			zap.String("method", in.method),
			zap.String("path", in.path),
			zap.Int("status_code", apiErr.StatusCode),
			zap.String("message", apiErr.Message),
		)
		return apiErr
	}

	c.logger.Debug("API call succeeded",
		zap.String("method", in.method),
		zap.String("path", in.path),
		zap.Int("status_code", resp.StatusCode()),
		zap.Duration("latency", resp.Time()),
	)
	return nil
}
