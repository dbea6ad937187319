package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/uma-arai/sbcntr-hostel/internal/model"
	"go.uber.org/zap"
)

// NotificationChannel は通知の INSERT トリガーが NOTIFY するチャネル名です
const NotificationChannel = "notifications_inserted"

const (
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	listenerPingInterval = 90 * time.Second
)

// NotificationListener は Postgres の LISTEN/NOTIFY で新しい通知を購読します
type NotificationListener struct {
	dsn    string
	logger *zap.Logger
}

// NewNotificationListener は購読用のリスナーを作成します
func NewNotificationListener(dsn string, logger *zap.Logger) *NotificationListener {
	return &NotificationListener{dsn: dsn, logger: logger}
}

// Subscribe は userID 宛ての通知をチャネルで返します
// ctx が終了するとリスナーを閉じ、チャネルも閉じます
func (l *NotificationListener) Subscribe(ctx context.Context, userID string) (<-chan model.Notification, error) {
	listener := pq.NewListener(l.dsn, minReconnectInterval, maxReconnectInterval, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			l.logger.Warn("Notification listener event", zap.Int("event", int(ev)), zap.Error(err))
		}
	})
	if err := listener.Listen(NotificationChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", NotificationChannel, err)
	}

	out := make(chan model.Notification, 16)
	go func() {
		defer listener.Close()
		l.pump(ctx, listener.Notify, listener.Ping, userID, out)
	}()

	l.logger.Info("Notification listener subscribed",
		zap.String("channel", NotificationChannel),
		zap.String("user_id", userID),
	)
	return out, nil
}

// pump は NOTIFY を通知に変換して out に流します
// 再接続時に届く nil は読み飛ばします
func (l *NotificationListener) pump(ctx context.Context, in <-chan *pq.Notification, ping func() error, userID string, out chan<- model.Notification) {
	defer close(out)

	ticker := time.NewTicker(listenerPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ping(); err != nil {
				l.logger.Warn("Notification listener ping failed", zap.Error(err))
			}
		case msg, ok := <-in:
			if !ok {
				return
			}
			if msg == nil {
				l.logger.Info("Notification listener reconnected")
				continue
			}
			n, match, err := decodeNotifyPayload(msg.Extra, userID)
			if err != nil {
				l.logger.Warn("Failed to decode notification payload", zap.Error(err))
				continue
			}
			if !match {
				continue
			}
			select {
			case out <- n:
			case <-ctx.Done():
				return
			}
		}
	}
}

// notifyRow は row_to_json の出力です。id は数値でも文字列でも受け付けます
type notifyRow struct {
	model.Notification
	ID json.RawMessage `json:"id"`
}

// decodeNotifyPayload は NOTIFY で送られた通知を復元し、userID 宛てかを返します
func decodeNotifyPayload(payload, userID string) (model.Notification, bool, error) {
	var row notifyRow
	if err := json.Unmarshal([]byte(payload), &row); err != nil {
		return model.Notification{}, false, fmt.Errorf("invalid notify payload: %w", err)
	}
	n := row.Notification
	n.ID = strings.Trim(string(row.ID), `"`)
	if n.ID == "" || n.ID == "null" || n.UserID != userID {
		return model.Notification{}, false, nil
	}
	return n, true, nil
}
