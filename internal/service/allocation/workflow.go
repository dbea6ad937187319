// Package allocation は入居申請の承認フローを扱います
package allocation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/uma-arai/sbcntr-hostel/internal/api"
	"github.com/uma-arai/sbcntr-hostel/internal/model"
	"github.com/uma-arai/sbcntr-hostel/internal/service/toast"
	"go.uber.org/zap"
)

var (
	// ErrNotPending は申請が承認・却下できる状態にない場合のエラーです
	ErrNotPending = errors.New("room request is not pending")
	// ErrRoomUnavailable は満室やメンテナンス中の部屋へ割り当てようとした場合のエラーです
	ErrRoomUnavailable = errors.New("room is not available for allocation")
	// ErrReasonRequired は却下理由が空の場合のエラーです
	ErrReasonRequired = errors.New("rejection reason is required")
	// ErrRequestNotFound は申請が見つからない場合のエラーです
	ErrRequestNotFound = errors.New("room request not found")
)

// Backend は承認フローが使う REST API です
type Backend interface {
	RoomLookup
	ListRooms(ctx context.Context, filter model.RoomFilter) ([]model.Room, error)
	ListRoomRequests(ctx context.Context, status model.RoomRequestStatus) ([]model.RoomRequest, error)
	GetRoomRequest(ctx context.Context, id string) (*model.RoomRequest, error)
	CreateRoomRequest(ctx context.Context, in model.NewRoomRequest) (*model.RoomRequest, error)
	ApproveRoomRequest(ctx context.Context, id string, in model.ApprovalInput) (*model.RoomRequest, error)
	RejectRoomRequest(ctx context.Context, id string, in model.RejectionInput) (*model.RoomRequest, error)
}

// Service は入居申請の一覧と承認・却下を担当します
type Service struct {
	backend  Backend
	resolver *Resolver
	validate *validator.Validate
	toasts   toast.Pusher
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.RWMutex
	requests []model.RoomRequest
	rooms    []model.Room
}

// NewService は Service を作成します
// toasts が nil の場合は画面通知を行いません
func NewService(backend Backend, toasts toast.Pusher, logger *zap.Logger) *Service {
	return &Service{
		backend:  backend,
		resolver: NewResolver(backend, logger),
		validate: validator.New(),
		toasts:   toasts,
		logger:   logger,
		now:      time.Now,
	}
}

// Refresh は申請と部屋の一覧を取り直します
func (s *Service) Refresh(ctx context.Context) error {
	requests, err := s.backend.ListRoomRequests(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to list room requests: %w", err)
	}
	rooms, err := s.backend.ListRooms(ctx, model.RoomFilter{})
	if err != nil {
		return fmt.Errorf("failed to list rooms: %w", err)
	}

	s.mu.Lock()
	s.requests = requests
	s.rooms = rooms
	s.mu.Unlock()

	s.logger.Debug("Room requests refreshed",
		zap.Int("request_count", len(requests)),
		zap.Int("room_count", len(rooms)),
	)
	return nil
}

// Requests は取得済みの申請を返します。status が空の場合はすべて返します
func (s *Service) Requests(status model.RoomRequestStatus) []model.RoomRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.RoomRequest, 0, len(s.requests))
	for _, r := range s.requests {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

// Rooms は取得済みの部屋を返します
func (s *Service) Rooms() []model.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Room, len(s.rooms))
	copy(out, s.rooms)
	return out
}

// CreateRequest は学生の入居申請を作成します
func (s *Service) CreateRequest(ctx context.Context, in model.NewRoomRequest) (*model.RoomRequest, error) {
	in.SpecialRequirements = strings.TrimSpace(in.SpecialRequirements)
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", api.ErrValidation, err)
	}

	req, err := s.backend.CreateRoomRequest(ctx, in)
	if err != nil {
		s.pushError("Could not submit request", err)
		return nil, err
	}
	s.push(toast.LevelSuccess, "Request submitted", "Your room request has been submitted.")
	return req, nil
}

// Plan は申請に対する割り当て案を作成します
func (s *Service) Plan(ctx context.Context, requestID string) (*Plan, error) {
	req, err := s.request(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.IsActionable() {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotPending, req.ID, req.Status)
	}

	plan, err := s.resolver.Plan(ctx, *req, s.Rooms())
	if err != nil {
		return nil, err
	}
	if plan.Warning != "" {
		s.push(toast.LevelWarning, "Requested room unavailable", plan.Warning)
	}
	return plan, nil
}

// Approve は申請を承認し、部屋を割り当てます
// 割り当てできない部屋の場合はリクエストを送らずに ErrRoomUnavailable を返します
func (s *Service) Approve(ctx context.Context, requestID string, in model.ApprovalInput) (*model.RoomRequest, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", api.ErrValidation, err)
	}

	req, err := s.request(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.IsActionable() {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotPending, req.ID, req.Status)
	}

	room, err := s.room(ctx, in.RoomID)
	if err != nil {
		return nil, err
	}
	if !room.IsAllocatable() {
		warning := unavailableWarning(*room, req.PreferredRoomType)
		s.push(toast.LevelWarning, "Room unavailable", warning)
		return nil, fmt.Errorf("%w: %s", ErrRoomUnavailable, warning)
	}

	approved := *req
	if err := approved.Approve(room.ID, in.Notes, s.now()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPending, err)
	}

	reply, err := s.backend.ApproveRoomRequest(ctx, req.ID, in)
	if err != nil {
		s.logger.Warn("Approve failed",
			zap.String("request_id", req.ID),
			zap.String("room_id", room.ID),
			zap.Error(err),
		)
		s.pushError("Approval failed", err)
		return nil, fmt.Errorf("failed to approve request %s: %w", req.ID, err)
	}

	s.logger.Info("Room request approved",
		zap.String("request_id", req.ID),
		zap.String("room_number", room.RoomNumber),
	)
	s.push(toast.LevelSuccess, "Request approved", fmt.Sprintf("Allocated room %s.", room.RoomNumber))
	updated := s.settle(approved, reply)
	s.refreshAfterMutation(ctx)
	return &updated, nil
}

// Reject は申請を却下します。部屋の状態には触れません
func (s *Service) Reject(ctx context.Context, requestID, reason string) (*model.RoomRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}

	req, err := s.request(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.IsActionable() {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotPending, req.ID, req.Status)
	}

	rejected := *req
	if err := rejected.Reject(reason, s.now()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPending, err)
	}

	reply, err := s.backend.RejectRoomRequest(ctx, req.ID, model.RejectionInput{Reason: reason})
	if err != nil {
		s.pushError("Rejection failed", err)
		return nil, fmt.Errorf("failed to reject request %s: %w", req.ID, err)
	}

	s.logger.Info("Room request rejected", zap.String("request_id", req.ID))
	s.push(toast.LevelSuccess, "Request rejected", "The room request has been rejected.")
	updated := s.settle(rejected, reply)
	s.refreshAfterMutation(ctx)
	return &updated, nil
}

// settle は成功した承認・却下の結果をキャッシュへ書き戻します
// 応答に状態が含まれない場合 (204 や空の JSON) はローカルで遷移させた申請を使います
func (s *Service) settle(local model.RoomRequest, reply *model.RoomRequest) model.RoomRequest {
	out := local
	if reply != nil && reply.Status != "" {
		out = *reply
		if out.ID == "" {
			out.ID = local.ID
		}
		if out.ProcessedAt == nil {
			out.ProcessedAt = local.ProcessedAt
		}
	}

	s.mu.Lock()
	for i := range s.requests {
		if s.requests[i].ID == out.ID {
			s.requests[i] = out
			break
		}
	}
	s.mu.Unlock()
	return out
}

func (s *Service) refreshAfterMutation(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("Failed to refresh after mutation", zap.Error(err))
	}
}

func (s *Service) request(ctx context.Context, id string) (*model.RoomRequest, error) {
	s.mu.RLock()
	for _, r := range s.requests {
		if r.ID == id {
			req := r
			s.mu.RUnlock()
			return &req, nil
		}
	}
	s.mu.RUnlock()

	req, err := s.backend.GetRoomRequest(ctx, id)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRequestNotFound, id)
		}
		return nil, err
	}
	return req, nil
}

func (s *Service) room(ctx context.Context, id string) (*model.Room, error) {
	s.mu.RLock()
	for _, r := range s.rooms {
		if r.ID == id {
			room := r
			s.mu.RUnlock()
			return &room, nil
		}
	}
	s.mu.RUnlock()

	return s.backend.GetRoom(ctx, id)
}

func (s *Service) push(level toast.Level, title, message string) {
	if s.toasts != nil {
		s.toasts.Push(level, title, message)
	}
}

func (s *Service) pushError(title string, err error) {
	s.push(toast.LevelError, title, api.UserMessage(err))
}
