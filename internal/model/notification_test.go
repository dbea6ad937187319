package model

import (
	"testing"
	"time"
)

func TestToNotification(t *testing.T) {
	// テスト用のデータを準備
	now := time.Now()
	roomNumbers := map[string]string{
		"room1": "A1102",
	}

	tests := []struct {
		name            string
		event           NotificationEvent
		roomNumbers     map[string]string
		wantErr         bool
		expectedTitle   string
		expectedType    NotificationType
		expectedMessage string
	}{
		{
			name: "割り当て通知の正常系",
			event: NotificationEvent{
				Type:      NotificationTypeRoomRequest,
				CreatedAt: now,
				Data: map[string]interface{}{
					"user_id":    "student1",
					"request_id": "req1",
					"room_id":    "room1",
				},
			},
			roomNumbers:     roomNumbers,
			wantErr:         false,
			expectedTitle:   "Room request approved",
			expectedType:    NotificationTypeRoomRequest,
			expectedMessage: "Your room request has been approved.\nRoom: A1102",
		},
		{
			name: "共通通知の正常系",
			event: NotificationEvent{
				Type:      NotificationTypeCommon,
				CreatedAt: now,
				Data: map[string]interface{}{
					"user_id": "student1",
				},
			},
			roomNumbers:     roomNumbers,
			wantErr:         false,
			expectedTitle:   "You have a new notification",
			expectedType:    NotificationTypeCommon,
			expectedMessage: "You have a new notification.",
		},
		{
			name: "無効なデータ形式",
			event: NotificationEvent{
				Type:      NotificationTypeRoomRequest,
				CreatedAt: now,
				Data:      "invalid",
			},
			roomNumbers: roomNumbers,
			wantErr:     true,
		},
		{
			name: "存在しない部屋ID",
			event: NotificationEvent{
				Type:      NotificationTypeRoomRequest,
				CreatedAt: now,
				Data: map[string]interface{}{
					"user_id": "student1",
					"room_id": "nonexistent",
				},
			},
			roomNumbers: roomNumbers,
			wantErr:     true,
		},
		{
			name: "ユーザーIDなし",
			event: NotificationEvent{
				Type:      NotificationTypeCommon,
				CreatedAt: now,
				Data:      map[string]interface{}{},
			},
			roomNumbers: roomNumbers,
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.event.ToNotification(tt.roomNumbers)
			if (err != nil) != tt.wantErr {
				t.Errorf("ToNotification() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if got.Title != tt.expectedTitle {
				t.Errorf("ToNotification() title = %v, want %v", got.Title, tt.expectedTitle)
			}
			if got.Type != tt.expectedType {
				t.Errorf("ToNotification() type = %v, want %v", got.Type, tt.expectedType)
			}
			if got.Message != tt.expectedMessage {
				t.Errorf("ToNotification() message = %q, want %q", got.Message, tt.expectedMessage)
			}
			if got.IsRead {
				t.Error("ToNotification() should create an unread notification")
			}
		})
	}
}

func TestNewAllocationNotificationEvent(t *testing.T) {
	now := time.Now()
	event := AllocationEvent{
		RequestID: "req1",
		StudentID: "student1",
		RoomID:    "room1",
		CreatedAt: now,
	}

	n := NewAllocationNotificationEvent(event)

	if n.Type != NotificationTypeRoomRequest {
		t.Errorf("NewAllocationNotificationEvent() type = %v, want %v", n.Type, NotificationTypeRoomRequest)
	}

	data, ok := n.Data.(map[string]interface{})
	if !ok {
		t.Fatal("NewAllocationNotificationEvent() data is not a map[string]interface{}")
	}
	if data["user_id"] != event.StudentID {
		t.Errorf("user_id = %v, want %v", data["user_id"], event.StudentID)
	}
	if data["room_id"] != event.RoomID {
		t.Errorf("room_id = %v, want %v", data["room_id"], event.RoomID)
	}
	if data["request_id"] != event.RequestID {
		t.Errorf("request_id = %v, want %v", data["request_id"], event.RequestID)
	}
	if !n.CreatedAt.Equal(now) {
		t.Errorf("created_at = %v, want %v", n.CreatedAt, now)
	}
}

func TestRoomIDs(t *testing.T) {
	events := []NotificationEvent{
		{Type: NotificationTypeRoomRequest, Data: map[string]interface{}{"user_id": "s1", "room_id": "r1"}},
		{Type: NotificationTypeRoomRequest, Data: map[string]interface{}{"user_id": "s2", "room_id": "r1"}},
		{Type: NotificationTypeRoomRequest, Data: map[string]interface{}{"user_id": "s3", "room_id": "r2"}},
		{Type: NotificationTypeCommon, Data: map[string]interface{}{"user_id": "s4"}},
	}

	ids, err := RoomIDs(events)
	if err != nil {
		t.Fatalf("RoomIDs() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != "r1" || ids[1] != "r2" {
		t.Errorf("RoomIDs() = %v, want [r1 r2]", ids)
	}

	if _, err := RoomIDs([]NotificationEvent{{Type: NotificationTypeRoomRequest, Data: "broken"}}); err == nil {
		t.Error("RoomIDs() should fail on invalid data")
	}
}

func TestCountUnread(t *testing.T) {
	notifications := []Notification{
		{ID: "1", IsRead: false},
		{ID: "2", IsRead: true},
		{ID: "3", IsRead: false},
	}
	if got := CountUnread(notifications); got != 2 {
		t.Errorf("CountUnread() = %d, want 2", got)
	}
	if got := CountUnread(nil); got != 0 {
		t.Errorf("CountUnread(nil) = %d, want 0", got)
	}
}
