package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/uma-arai/sbcntr-hostel/internal/model"
)

// ListRecent は利用者の最新の通知を新しい順に返します
func (c *Client) ListRecent(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	return c.Notifications.List(ctx, model.ListFilter{
		"user_id": userID,
		"limit":   strconv.Itoa(limit),
		"order":   "created_at.desc",
	})
}

// MarkRead は通知を既読にします
func (c *Client) MarkRead(ctx context.Context, id string) error {
	_, err := c.Notifications.Update(ctx, id, map[string]bool{"is_read": true})
	return err
}

// MarkAllRead は利用者の通知をすべて既読にします
func (c *Client) MarkAllRead(ctx context.Context, userID string) error {
	return c.do(ctx, call{
		method: http.MethodPost,
		path:   "/notifications/read-all",
		body:   map[string]string{"user_id": userID},
	})
}

// DeleteNotification は通知を削除します
func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	return c.Notifications.Delete(ctx, id)
}
