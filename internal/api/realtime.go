package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/uma-arai/sbcntr-hostel/internal/auth"
	"github.com/uma-arai/sbcntr-hostel/internal/model"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// realtimeMessage はリアルタイムチャネルで届く変更イベントです
type realtimeMessage struct {
	Event  string             `json:"event"`
	Table  string             `json:"table"`
	Record model.Notification `json:"record"`
}

// RealtimeSubscriber は通知テーブルへの INSERT を WebSocket で購読します
type RealtimeSubscriber struct {
	url     string
	session *auth.Session
	dialer  *websocket.Dialer
	logger  *zap.Logger
}

// NewRealtimeSubscriber は購読クライアントを作成します
func NewRealtimeSubscriber(rawURL string, session *auth.Session, logger *zap.Logger) *RealtimeSubscriber {
	return &RealtimeSubscriber{
		url:     rawURL,
		session: session,
		dialer:  &websocket.Dialer{HandshakeTimeout: writeWait},
		logger:  logger,
	}
}

// Subscribe は userID 宛ての新しい通知をチャネルで返します
// ctx の終了または接続の切断でチャネルは閉じられます
func (s *RealtimeSubscriber) Subscribe(ctx context.Context, userID string) (<-chan model.Notification, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return nil, fmt.Errorf("invalid realtime url: %w", err)
	}
	q := u.Query()
	q.Set("user_id", userID)
	u.RawQuery = q.Encode()

	header := http.Header{}
	if s.session != nil && s.session.AccessToken != "" {
		header.Set("Authorization", "Bearer "+s.session.AccessToken)
	}

	conn, resp, err := s.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, newError(resp.StatusCode, nil, "realtime handshake failed")
		}
		return nil, fmt.Errorf("%w: realtime dial: %v", ErrTransport, err)
	}

	out := make(chan model.Notification, 16)
	done := make(chan struct{})
	go s.writePump(ctx, conn, done)
	go s.readPump(ctx, conn, userID, out, done)

	s.logger.Info("Realtime channel subscribed", zap.String("user_id", userID))
	return out, nil
}

// readPump は受信したメッセージを通知に変換して out に流します
func (s *RealtimeSubscriber) readPump(ctx context.Context, conn *websocket.Conn, userID string, out chan<- model.Notification, done chan<- struct{}) {
	defer func() {
		close(out)
		close(done)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("Realtime channel closed unexpectedly", zap.Error(err))
			} else {
				s.logger.Debug("Realtime channel closed", zap.Error(err))
			}
			return
		}

		n, ok, err := decodeRealtimeMessage(data, userID)
		if err != nil {
			s.logger.Warn("Failed to decode realtime message", zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		select {
		case out <- n:
		case <-ctx.Done():
			return
		}
	}
}

// writePump は ping を送り続け、ctx 終了時に接続を閉じます
func (s *RealtimeSubscriber) writePump(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.logger.Debug("Realtime ping failed", zap.Error(err))
				return
			}
		}
	}
}

// decodeRealtimeMessage は INSERT イベントのうち userID 宛てのものだけを返します
func decodeRealtimeMessage(data []byte, userID string) (model.Notification, bool, error) {
	var msg realtimeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return model.Notification{}, false, err
	}
	if msg.Event != "INSERT" {
		return model.Notification{}, false, nil
	}
	if msg.Table != "" && msg.Table != "notifications" {
		return model.Notification{}, false, nil
	}
	if msg.Record.ID == "" || msg.Record.UserID != userID {
		return model.Notification{}, false, nil
	}
	return msg.Record, true, nil
}
