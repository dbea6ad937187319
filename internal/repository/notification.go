package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/jmoiron/sqlx"
	"github.com/uma-arai/sbcntr-hostel/internal/model"
	"go.uber.org/zap"
)

// ErrNotificationNotFound は対象の通知が存在しない場合のエラーです
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepository は通知の永続化を担当するインターフェースです
type NotificationRepository interface {
	CreateNotifications(ctx context.Context, records []model.Notification) error
	Create(ctx context.Context, tx *sqlx.Tx, record *model.Notification) error
	ListRecent(ctx context.Context, userID string, limit int) ([]model.Notification, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, userID string) error
	DeleteNotification(ctx context.Context, id string) error
}

// NotificationRepositoryImpl は通知の永続化を担当します
type NotificationRepositoryImpl struct {
	db *DB
}

// NewNotificationRepository は新しいNotificationRepositoryを作成します
func NewNotificationRepository(db *DB) *NotificationRepositoryImpl {
	return &NotificationRepositoryImpl{
		db: db,
	}
}

// CreateNotifications は複数の通知レコードを1つのトランザクションで作成します
// 作成された ID と時刻は records に書き戻されます
func (r *NotificationRepositoryImpl) CreateNotifications(ctx context.Context, records []model.Notification) (err error) {
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationRepository.CreateNotifications")
	defer func() { seg.Close(err) }()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// エラーが発生した場合のみロールバックを実行
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.db.logger.Error("Rollback failed", zap.Error(rbErr), zap.NamedError("original", err))
			}
		}
	}()

	for i := range records {
		if err = r.Create(ctx, tx, &records[i]); err != nil {
			return fmt.Errorf("failed to create notification: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Create は単一の通知レコードを作成します
func (r *NotificationRepositoryImpl) Create(ctx context.Context, tx *sqlx.Tx, record *model.Notification) (err error) {
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationRepository.Create")
	defer func() { seg.Close(err) }()

	query := `
		INSERT INTO notifications (
			user_id, title, message, is_read, type, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
		RETURNING id`

	return tx.QueryRowContext(ctx,
		query,
		record.UserID,
		record.Title,
		record.Message,
		record.IsRead,
		record.Type,
		record.CreatedAt,
		record.UpdatedAt,
	).Scan(&record.ID)
}

// ListRecent は指定されたユーザーの通知を新しい順に最大 limit 件取得します
func (r *NotificationRepositoryImpl) ListRecent(ctx context.Context, userID string, limit int) (records []model.Notification, err error) {
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationRepository.ListRecent")
	defer func() { seg.Close(err) }()

	query := `
		SELECT id, user_id, title, message, is_read, type, created_at, updated_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	records = make([]model.Notification, 0, limit)
	if err = r.db.SelectContext(ctx, &records, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}

	return records, nil
}

// MarkRead は通知を既読にします
func (r *NotificationRepositoryImpl) MarkRead(ctx context.Context, id string) (err error) {
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationRepository.MarkRead")
	defer func() { seg.Close(err) }()

	query := `
		UPDATE notifications
		SET is_read = TRUE, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to update notification is_read: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: id %s", ErrNotificationNotFound, id)
	}

	return nil
}

// MarkAllRead はユーザーの未読通知をすべて既読にします
func (r *NotificationRepositoryImpl) MarkAllRead(ctx context.Context, userID string) (err error) {
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationRepository.MarkAllRead")
	defer func() { seg.Close(err) }()

	query := `
		UPDATE notifications
		SET is_read = TRUE, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $1 AND is_read = FALSE`

	if _, err = r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to mark all notifications read: %w", err)
	}

	return nil
}

// DeleteNotification は通知を削除します
func (r *NotificationRepositoryImpl) DeleteNotification(ctx context.Context, id string) (err error) {
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationRepository.DeleteNotification")
	defer func() { seg.Close(err) }()

	result, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: id %s", ErrNotificationNotFound, id)
	}

	return nil
}
