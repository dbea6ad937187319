package model

import (
	"fmt"
	"time"
)

// NotificationType は通知の種類を表します
type NotificationType string

const (
	// NotificationTypeRoomRequest は入居申請関連の通知を表します
	NotificationTypeRoomRequest NotificationType = "room_request"
	// NotificationTypeParcel は荷物関連の通知を表します
	NotificationTypeParcel NotificationType = "parcel"
	// NotificationTypePayment は支払い関連の通知を表します
	NotificationTypePayment NotificationType = "payment"
	// NotificationTypeComplaint は苦情関連の通知を表します
	NotificationTypeComplaint NotificationType = "complaint"
	// NotificationTypeLeave は外出・外泊申請関連の通知を表します
	NotificationTypeLeave NotificationType = "leave"
	// NotificationTypeCommon は共通の通知を表します
	NotificationTypeCommon NotificationType = "common"
)

// Notification は通知のドメインモデルです
// API のレスポンスとデータベースのレコードの両方に対応します
type Notification struct {
	ID        string           `json:"id" db:"id"`
	UserID    string           `json:"user_id" db:"user_id"`
	Type      NotificationType `json:"type" db:"type"`
	Title     string           `json:"title" db:"title"`
	Message   string           `json:"message" db:"message"`
	IsRead    bool             `json:"is_read" db:"is_read"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt time.Time        `json:"updated_at" db:"updated_at"`
}

// CountUnread は未読の通知数を返します
func CountUnread(notifications []Notification) int {
	unread := 0
	for _, n := range notifications {
		if !n.IsRead {
			unread++
		}
	}
	return unread
}

// AllocationEvent は部屋割り当て完了時に発行されるイベントの構造体です
type AllocationEvent struct {
	RequestID  string    `json:"request_id"`
	StudentID  string    `json:"student_id"`
	RoomID     string    `json:"room_id"`
	RoomNumber string    `json:"room_number,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NotificationEvent はバッチ間で受け渡される通知イベントです
type NotificationEvent struct {
	Type      NotificationType `json:"type"`
	CreatedAt time.Time        `json:"created_at"`
	Data      interface{}      `json:"data"`
}

// NewAllocationNotificationEvent は割り当てイベントから通知イベントを作成します
func NewAllocationNotificationEvent(event AllocationEvent) NotificationEvent {
	return NotificationEvent{
		Type:      NotificationTypeRoomRequest,
		CreatedAt: event.CreatedAt,
		Data: map[string]interface{}{
			"user_id":    event.StudentID,
			"request_id": event.RequestID,
			"room_id":    event.RoomID,
		},
	}
}

// ToNotification は通知イベントを通知レコードに変換します
// roomNumbers は部屋IDから部屋番号への対応表です
func (e NotificationEvent) ToNotification(roomNumbers map[string]string) (*Notification, error) {
	data, ok := e.Data.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid notification data format")
	}

	userID, ok := data["user_id"].(string)
	if !ok || userID == "" {
		return nil, fmt.Errorf("user_id is missing in notification data")
	}

	if e.Type == NotificationTypeRoomRequest {
		roomID, ok := data["room_id"].(string)
		if !ok {
			return nil, fmt.Errorf("room_id is missing in notification data")
		}
		roomNumber, ok := roomNumbers[roomID]
		if !ok {
			return nil, fmt.Errorf("room_id %s not found in room number map", roomID)
		}

		return &Notification{
			UserID:    userID,
			Type:      NotificationTypeRoomRequest,
			Title:     "Room request approved",
			Message:   fmt.Sprintf("Your room request has been approved.\nRoom: %s", roomNumber),
			IsRead:    false,
			CreatedAt: e.CreatedAt,
			UpdatedAt: e.CreatedAt,
		}, nil
	}

	return &Notification{
		UserID:    userID,
		Type:      NotificationTypeCommon,
		Title:     "You have a new notification",
		Message:   "You have a new notification.",
		IsRead:    false,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.CreatedAt,
	}, nil
}

// RoomIDs は通知イベントに含まれる部屋IDを重複なく返します
func RoomIDs(events []NotificationEvent) ([]string, error) {
	seen := make(map[string]struct{})
	ids := make([]string, 0, len(events))
	for _, e := range events {
		data, ok := e.Data.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("invalid notification data format")
		}
		if e.Type != NotificationTypeRoomRequest {
			continue
		}
		roomID, ok := data["room_id"].(string)
		if !ok {
			return nil, fmt.Errorf("room_id is not a string")
		}
		if _, dup := seen[roomID]; dup {
			continue
		}
		seen[roomID] = struct{}{}
		ids = append(ids, roomID)
	}
	return ids, nil
}
