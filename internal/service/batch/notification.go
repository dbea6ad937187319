package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-hostel/internal/common/config"
	"github.com/uma-arai/sbcntr-hostel/internal/common/database"
	"github.com/uma-arai/sbcntr-hostel/internal/model"
	"github.com/uma-arai/sbcntr-hostel/internal/repository"
	"go.uber.org/zap"
)

// TaskOutput は割り当てバッチから通知バッチへ渡す Step Functions の出力です
type TaskOutput struct {
	Notifications []model.NotificationEvent `json:"notifications"`
}

// ParseTaskOutput はタスク出力の JSON から通知イベントを取り出します
func ParseTaskOutput(data []byte) ([]model.NotificationEvent, error) {
	var out TaskOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse task output: %w", err)
	}
	return out.Notifications, nil
}

// NotificationBatchService は通知バッチ処理を担当します
type NotificationBatchService struct {
	args             []model.NotificationEvent
	db               *database.DB
	notificationRepo repository.NotificationRepository
	roomRepo         repository.RoomRepository
	cfg              *config.Config
	logger           *zap.Logger
}

// NewNotificationBatchService は新しいNotificationBatchServiceを作成します
func NewNotificationBatchService(cfg *config.Config, logger *zap.Logger) (*NotificationBatchService, error) {
	db, err := database.NewDB(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	repoDB := repository.NewDB(db.DB, logger)

	return &NotificationBatchService{
		db:               db,
		notificationRepo: repository.NewNotificationRepository(repoDB),
		roomRepo:         repository.NewRoomRepository(repoDB),
		cfg:              cfg,
		logger:           logger,
	}, nil
}

// Close は終了処理を行います
func (s *NotificationBatchService) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SetArgs は通知バッチ処理の引数を設定します
func (s *NotificationBatchService) SetArgs(args []model.NotificationEvent) {
	s.args = args
}

// Run は通知バッチ処理を実行します
func (s *NotificationBatchService) Run(ctx context.Context) (err error) {
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationBatchService.Run")
	defer func() { seg.Close(err) }()

	events := s.args
	s.logger.Info("Starting notification batch process", zap.Int("event_count", len(events)))

	if mdErr := seg.AddMetadata("notification_count", len(events)); mdErr != nil {
		s.logger.Warn("Failed to add notification_count metadata", zap.Error(mdErr))
	}

	startTime := time.Now()

	roomNumbers, err := s.getRoomNumberMap(ctx, events)
	if err != nil {
		return err
	}

	notifications := make([]model.Notification, len(events))
	for i, event := range events {
		n, convErr := event.ToNotification(roomNumbers)
		if convErr != nil {
			err = fmt.Errorf("failed to convert notification event %d: %w", i, convErr)
			return err
		}
		notifications[i] = *n
	}

	if err = s.notificationRepo.CreateNotifications(ctx, notifications); err != nil {
		return fmt.Errorf("failed to create notifications: %w", err)
	}

	duration := time.Since(startTime)
	if mdErr := seg.AddMetadata("duration", duration.String()); mdErr != nil {
		s.logger.Warn("Failed to add duration metadata", zap.Error(mdErr))
	}
	if mdErr := seg.AddMetadata("room_count", len(roomNumbers)); mdErr != nil {
		s.logger.Warn("Failed to add room_count metadata", zap.Error(mdErr))
	}

	s.logger.Info("Notification batch process completed successfully", zap.Duration("duration", duration))
	return nil
}

// 通知イベントに含まれる部屋IDから部屋番号を引く
// N+1とならないように重複のない部屋IDを先にまとめておく
func (s *NotificationBatchService) getRoomNumberMap(ctx context.Context, events []model.NotificationEvent) (numbers map[string]string, err error) {
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationBatchService.getRoomNumberMap")
	defer func() { seg.Close(err) }()

	roomIDs, err := model.RoomIDs(events)
	if err != nil {
		return nil, err
	}

	if mdErr := seg.AddMetadata("unique_room_count", len(roomIDs)); mdErr != nil {
		s.logger.Warn("Failed to add unique_room_count metadata", zap.Error(mdErr))
	}

	numbers = make(map[string]string, len(roomIDs))
	for _, roomID := range roomIDs {
		number, lookupErr := s.roomRepo.GetNumberByID(ctx, roomID)
		if lookupErr != nil {
			err = fmt.Errorf("failed to resolve room %s: %w", roomID, lookupErr)
			return nil, err
		}
		numbers[roomID] = number
	}

	return numbers, nil
}
