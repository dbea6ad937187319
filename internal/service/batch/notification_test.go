package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uma-arai/sbcntr-hostel/internal/common/config"
	"github.com/uma-arai/sbcntr-hostel/internal/model"
	"go.uber.org/zap"
)

// MockNotificationRepository はテスト用のモックリポジトリです
type MockNotificationRepository struct {
	createNotificationsCalled bool
	createNotificationsError  error
	notifications             []model.Notification
}

func (m *MockNotificationRepository) CreateNotifications(ctx context.Context, records []model.Notification) error {
	m.createNotificationsCalled = true
	m.notifications = records
	return m.createNotificationsError
}

func (m *MockNotificationRepository) Create(ctx context.Context, tx *sqlx.Tx, record *model.Notification) error {
	return nil
}

func (m *MockNotificationRepository) ListRecent(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	return nil, nil
}

func (m *MockNotificationRepository) MarkRead(ctx context.Context, id string) error { return nil }

func (m *MockNotificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	return nil
}

func (m *MockNotificationRepository) DeleteNotification(ctx context.Context, id string) error {
	return nil
}

// MockRoomRepository はテスト用のモックリポジトリです
type MockRoomRepository struct {
	numbers          map[string]string
	getNumberByIDErr error
	calls            []string
}

func (m *MockRoomRepository) GetNumberByID(ctx context.Context, roomID string) (string, error) {
	m.calls = append(m.calls, roomID)
	if m.getNumberByIDErr != nil {
		return "", m.getNumberByIDErr
	}
	return m.numbers[roomID], nil
}

// newTestNotificationBatchService はテスト用のNotificationBatchServiceを作成します
func newTestNotificationBatchService(notificationRepo *MockNotificationRepository, roomRepo *MockRoomRepository) *NotificationBatchService {
	return &NotificationBatchService{
		notificationRepo: notificationRepo,
		roomRepo:         roomRepo,
		cfg:              &config.Config{},
		logger:           zap.NewNop(),
	}
}

func allocationEvent(studentID, roomID string, at time.Time) model.NotificationEvent {
	return model.NewAllocationNotificationEvent(model.AllocationEvent{
		RequestID: "req-" + studentID,
		StudentID: studentID,
		RoomID:    roomID,
		CreatedAt: at,
	})
}

func TestNotificationBatchService_Run(t *testing.T) {
	ctx, seg := xray.BeginSegment(context.Background(), "TestNotificationBatchService_Run")
	defer seg.Close(nil)

	now := time.Now().UTC()
	tests := []struct {
		name         string
		events       []model.NotificationEvent
		repoErr      error
		roomErr      error
		wantErr      bool
		wantMessages []string
		wantLookups  []string
	}{
		{
			name:        "0件の通知を正常に処理",
			events:      []model.NotificationEvent{},
			wantLookups: nil,
		},
		{
			name:         "1件の通知を正常に処理",
			events:       []model.NotificationEvent{allocationEvent("s1", "r-a1102", now)},
			wantMessages: []string{"Your room request has been approved.\nRoom: A1102"},
			wantLookups:  []string{"r-a1102"},
		},
		{
			name: "同じ部屋の通知は部屋番号を1回だけ引く",
			events: []model.NotificationEvent{
				allocationEvent("s1", "r-a1102", now),
				allocationEvent("s2", "r-a1102", now),
				allocationEvent("s3", "r-b201", now),
			},
			wantMessages: []string{
				"Your room request has been approved.\nRoom: A1102",
				"Your room request has been approved.\nRoom: A1102",
				"Your room request has been approved.\nRoom: B201",
			},
			wantLookups: []string{"r-a1102", "r-b201"},
		},
		{
			name:         "共通通知は部屋番号を引かない",
			events:       []model.NotificationEvent{{Type: model.NotificationTypeCommon, CreatedAt: now, Data: map[string]interface{}{"user_id": "s1"}}},
			wantMessages: []string{"You have a new notification."},
			wantLookups:  nil,
		},
		{
			name:    "部屋番号の取得に失敗",
			events:  []model.NotificationEvent{allocationEvent("s1", "r-a1102", now)},
			roomErr: errors.New("connection refused"),
			wantErr: true,
		},
		{
			name:    "通知の作成に失敗",
			events:  []model.NotificationEvent{allocationEvent("s1", "r-a1102", now)},
			repoErr: errors.New("insert failed"),
			wantErr: true,
		},
		{
			name:    "データの形式が不正",
			events:  []model.NotificationEvent{{Type: model.NotificationTypeRoomRequest, CreatedAt: now, Data: "broken"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notificationRepo := &MockNotificationRepository{createNotificationsError: tt.repoErr}
			roomRepo := &MockRoomRepository{
				numbers:          map[string]string{"r-a1102": "A1102", "r-b201": "B201"},
				getNumberByIDErr: tt.roomErr,
			}

			service := newTestNotificationBatchService(notificationRepo, roomRepo)
			service.SetArgs(tt.events)
			err := service.Run(ctx)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			assert.True(t, notificationRepo.createNotificationsCalled)
			require.Len(t, notificationRepo.notifications, len(tt.events))
			for i, n := range notificationRepo.notifications {
				assert.Equal(t, tt.wantMessages[i], n.Message)
				assert.False(t, n.IsRead)
				assert.Equal(t, now, n.CreatedAt)
			}
			assert.Equal(t, tt.wantLookups, roomRepo.calls)
		})
	}
}

func TestParseTaskOutput(t *testing.T) {
	t.Run("通知イベントを取り出す", func(t *testing.T) {
		events, err := ParseTaskOutput([]byte(`{"notifications":[{"type":"room_request","created_at":"2024-05-01T09:00:00Z","data":{"user_id":"s1","request_id":"req-1","room_id":"r-a1102"}}]}`))
		require.NoError(t, err)
		require.Len(t, events, 1)

		n, err := events[0].ToNotification(map[string]string{"r-a1102": "A1102"})
		require.NoError(t, err)
		assert.Equal(t, "s1", n.UserID)
		assert.Equal(t, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), n.CreatedAt)
	})

	t.Run("JSONが不正", func(t *testing.T) {
		_, err := ParseTaskOutput([]byte(`{"notifications":`))
		assert.Error(t, err)
	})
}
