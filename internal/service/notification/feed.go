// Package notification は利用者ごとの通知フィードを扱います
package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uma-arai/sbcntr-hostel/internal/model"
	"github.com/uma-arai/sbcntr-hostel/internal/service/toast"
	"go.uber.org/zap"
)

// DefaultLimit は一度に取得する通知数の既定値です
const DefaultLimit = 20

// maxCommandHistory を超えた古いコマンドは履歴から捨てます
const maxCommandHistory = 50

var (
	// ErrUnknownNotification はフィードにない通知を操作しようとした場合のエラーです
	ErrUnknownNotification = errors.New("notification is not in the feed")
	// ErrLiveChannelClosed はリアルタイムチャネルが ctx の終了前に閉じた場合のエラーです
	ErrLiveChannelClosed = errors.New("live notification channel closed")
)

// Store は通知の取得と更新を行うバックエンドです
// api.Client と repository.NotificationRepositoryImpl のどちらも満たします
type Store interface {
	ListRecent(ctx context.Context, userID string, limit int) ([]model.Notification, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, userID string) error
	DeleteNotification(ctx context.Context, id string) error
}

// LiveSource は新着通知を流すチャネルを提供します
type LiveSource interface {
	Subscribe(ctx context.Context, userID string) (<-chan model.Notification, error)
}

// CommandKind はフィードに対する操作の種類です
type CommandKind string

const (
	CommandMarkRead    CommandKind = "mark_read"
	CommandMarkAllRead CommandKind = "mark_all_read"
	CommandDelete      CommandKind = "delete"
)

// CommandStatus は操作の状態です
type CommandStatus string

const (
	CommandPending   CommandStatus = "pending"
	CommandConfirmed CommandStatus = "confirmed"
	CommandFailed    CommandStatus = "failed"
)

// Command はフィードに即時反映した操作と、その確定状況です
type Command struct {
	ID             string
	Kind           CommandKind
	NotificationID string
	Status         CommandStatus
	Err            error
	CreatedAt      time.Time
}

// Feed は利用者の通知一覧を保持します
// 読み込み、新着の受信、利用者の操作は別々の goroutine から呼ばれても安全です
type Feed struct {
	store  Store
	userID string
	limit  int
	toasts toast.Pusher
	logger *zap.Logger

	mu       sync.Mutex
	items    []model.Notification
	commands []Command
}

// NewFeed は userID の通知フィードを作成します
func NewFeed(store Store, userID string, limit int, toasts toast.Pusher, logger *zap.Logger) *Feed {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Feed{
		store:  store,
		userID: userID,
		limit:  limit,
		toasts: toasts,
		logger: logger,
	}
}

// Load は最新の通知を取得してフィードを置き換えます
func (f *Feed) Load(ctx context.Context) error {
	items, err := f.store.ListRecent(ctx, f.userID, f.limit)
	if err != nil {
		return fmt.Errorf("failed to load notifications: %w", err)
	}

	f.mu.Lock()
	f.items = items
	unread := model.CountUnread(f.items)
	f.mu.Unlock()

	f.logger.Debug("Notifications loaded",
		zap.String("user_id", f.userID),
		zap.Int("count", len(items)),
		zap.Int("unread", unread),
	)
	return nil
}

// Items は保持している通知を新しい順に返します
func (f *Feed) Items() []model.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]model.Notification, len(f.items))
	copy(out, f.items)
	return out
}

// Unread は未読の通知数です
func (f *Feed) Unread() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return model.CountUnread(f.items)
}

// Commands は最近の操作を古い順に返します
func (f *Feed) Commands() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Command, len(f.commands))
	copy(out, f.commands)
	return out
}

// Run は live から届く新着通知をフィードの先頭に追加します
// ctx が終了すると nil を、チャネルが先に閉じると ErrLiveChannelClosed を返します
func (f *Feed) Run(ctx context.Context, live LiveSource) error {
	ch, err := live.Subscribe(ctx, f.userID)
	if err != nil {
		return fmt.Errorf("failed to subscribe notifications: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrLiveChannelClosed
			}
			f.receive(n)
		}
	}
}

// Poll はリアルタイムチャネルがない場合に interval ごとに再読み込みします
func (f *Feed) Poll(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := f.Load(ctx); err != nil && ctx.Err() == nil {
				f.logger.Warn("Notification poll failed", zap.Error(err))
			}
		}
	}
}

func (f *Feed) receive(n model.Notification) {
	f.mu.Lock()
	for _, existing := range f.items {
		if existing.ID == n.ID {
			f.mu.Unlock()
			return
		}
	}
	f.items = append([]model.Notification{n}, f.items...)
	f.mu.Unlock()

	if !n.IsRead && f.toasts != nil {
		f.toasts.Push(toast.LevelInfo, n.Title, n.Message)
	}
}

// MarkRead は通知を既読にします
// 画面には即時に反映し、バックエンドが失敗した場合は元に戻します
func (f *Feed) MarkRead(ctx context.Context, id string) (Command, error) {
	f.mu.Lock()
	idx := f.indexLocked(id)
	if idx < 0 {
		f.mu.Unlock()
		return Command{}, fmt.Errorf("%w: %s", ErrUnknownNotification, id)
	}
	wasRead := f.items[idx].IsRead
	f.items[idx].IsRead = true
	cmd := f.beginLocked(CommandMarkRead, id)
	f.mu.Unlock()

	err := f.store.MarkRead(ctx, id)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		if i := f.indexLocked(id); i >= 0 {
			f.items[i].IsRead = wasRead
		}
	}
	return f.finishLocked(cmd, err)
}

// MarkAllRead はすべての通知を既読にします
func (f *Feed) MarkAllRead(ctx context.Context) (Command, error) {
	f.mu.Lock()
	var changed []string
	for i := range f.items {
		if !f.items[i].IsRead {
			f.items[i].IsRead = true
			changed = append(changed, f.items[i].ID)
		}
	}
	cmd := f.beginLocked(CommandMarkAllRead, "")
	f.mu.Unlock()

	err := f.store.MarkAllRead(ctx, f.userID)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		for _, id := range changed {
			if i := f.indexLocked(id); i >= 0 {
				f.items[i].IsRead = false
			}
		}
	}
	return f.finishLocked(cmd, err)
}

// Delete は通知を削除します
// 失敗した場合は元の位置に戻します
func (f *Feed) Delete(ctx context.Context, id string) (Command, error) {
	f.mu.Lock()
	idx := f.indexLocked(id)
	if idx < 0 {
		f.mu.Unlock()
		return Command{}, fmt.Errorf("%w: %s", ErrUnknownNotification, id)
	}
	removed := f.items[idx]
	f.items = append(f.items[:idx:idx], f.items[idx+1:]...)
	cmd := f.beginLocked(CommandDelete, id)
	f.mu.Unlock()

	err := f.store.DeleteNotification(ctx, id)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil && f.indexLocked(id) < 0 {
		if idx > len(f.items) {
			idx = len(f.items)
		}
		restored := make([]model.Notification, 0, len(f.items)+1)
		restored = append(restored, f.items[:idx]...)
		restored = append(restored, removed)
		restored = append(restored, f.items[idx:]...)
		f.items = restored
	}
	return f.finishLocked(cmd, err)
}

func (f *Feed) indexLocked(id string) int {
	for i := range f.items {
		if f.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (f *Feed) beginLocked(kind CommandKind, notificationID string) Command {
	cmd := Command{
		ID:             uuid.NewString(),
		Kind:           kind,
		NotificationID: notificationID,
		Status:         CommandPending,
		CreatedAt:      time.Now(),
	}
	f.commands = append(f.commands, cmd)
	if len(f.commands) > maxCommandHistory {
		f.commands = f.commands[len(f.commands)-maxCommandHistory:]
	}
	return cmd
}

func (f *Feed) finishLocked(cmd Command, err error) (Command, error) {
	cmd.Status = CommandConfirmed
	if err != nil {
		cmd.Status = CommandFailed
		cmd.Err = err
		f.logger.Warn("Notification command failed",
			zap.String("command_id", cmd.ID),
			zap.String("kind", string(cmd.Kind)),
			zap.String("notification_id", cmd.NotificationID),
			zap.Error(err),
		)
		if f.toasts != nil {
			f.toasts.Push(toast.LevelError, "Update failed", "Your change could not be saved and was undone.")
		}
	}
	for i := range f.commands {
		if f.commands[i].ID == cmd.ID {
			f.commands[i] = cmd
			break
		}
	}
	if err != nil {
		return cmd, fmt.Errorf("%s failed: %w", cmd.Kind, err)
	}
	return cmd, nil
}
