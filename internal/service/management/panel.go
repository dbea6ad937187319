// Package management は管理画面の各パネルの CRUD 操作を扱います
package management

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/uma-arai/sbcntr-hostel/internal/api"
	"github.com/uma-arai/sbcntr-hostel/internal/model"
	"github.com/uma-arai/sbcntr-hostel/internal/service/toast"
	"go.uber.org/zap"
)

// ErrOccupancyExceedsCapacity は入居者数が定員を超える部屋を保存しようとした場合のエラーです
var ErrOccupancyExceedsCapacity = errors.New("current occupancy exceeds capacity")

// Collection は REST のリソースコレクションです
// api.Resource が満たします
type Collection[T any] interface {
	List(ctx context.Context, filter model.ListFilter) ([]T, error)
	Get(ctx context.Context, id string) (*T, error)
	Create(ctx context.Context, body any) (*T, error)
	Update(ctx context.Context, id string, body any) (*T, error)
	Delete(ctx context.Context, id string) error
	Action(ctx context.Context, id, verb string, body any) (*T, error)
}

// Panel は1つのリソースの一覧・作成・更新・削除です
// 作成と更新の入力は送信前に検証します
type Panel[T any] struct {
	name     string
	coll     Collection[T]
	validate *validator.Validate
	toasts   toast.Pusher
	logger   *zap.Logger
	check    func(T) error
}

func newPanel[T any](name string, coll Collection[T], v *validator.Validate, toasts toast.Pusher, logger *zap.Logger) *Panel[T] {
	return &Panel[T]{
		name:     name,
		coll:     coll,
		validate: v,
		toasts:   toasts,
		logger:   logger.With(zap.String("panel", name)),
	}
}

// List は絞り込み条件に一致する要素を返します
func (p *Panel[T]) List(ctx context.Context, filter model.ListFilter) ([]T, error) {
	items, err := p.coll.List(ctx, filter)
	if err != nil {
		p.fail("load", err)
		return nil, err
	}
	return items, nil
}

// Get は1件取得します
func (p *Panel[T]) Get(ctx context.Context, id string) (*T, error) {
	return p.coll.Get(ctx, id)
}

// Create は検証後に要素を作成します
func (p *Panel[T]) Create(ctx context.Context, item T) (*T, error) {
	if err := p.validateItem(item); err != nil {
		return nil, err
	}
	created, err := p.coll.Create(ctx, item)
	if err != nil {
		p.fail("create", err)
		return nil, err
	}
	p.succeed("Created")
	return created, nil
}

// Update は検証後に要素を更新します
func (p *Panel[T]) Update(ctx context.Context, id string, item T) (*T, error) {
	if err := p.validateItem(item); err != nil {
		return nil, err
	}
	updated, err := p.coll.Update(ctx, id, item)
	if err != nil {
		p.fail("update", err)
		return nil, err
	}
	p.succeed("Updated")
	return updated, nil
}

// Delete は要素を削除します
func (p *Panel[T]) Delete(ctx context.Context, id string) error {
	if err := p.coll.Delete(ctx, id); err != nil {
		p.fail("delete", err)
		return err
	}
	p.logger.Info("Record deleted", zap.String("id", id))
	p.succeed("Deleted")
	return nil
}

func (p *Panel[T]) validateItem(item T) error {
	if p.check != nil {
		if err := p.check(item); err != nil {
			return err
		}
	}
	if err := p.validate.Struct(item); err != nil {
		return fmt.Errorf("%w: %v", api.ErrValidation, err)
	}
	return nil
}

func (p *Panel[T]) succeed(verb string) {
	if p.toasts != nil {
		p.toasts.Push(toast.LevelSuccess, verb, fmt.Sprintf("%s record %s.", capitalize(p.name), strings.ToLower(verb)))
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (p *Panel[T]) fail(op string, err error) {
	p.logger.Warn("Panel operation failed", zap.String("op", op), zap.Error(err))
	if p.toasts != nil {
		p.toasts.Push(toast.LevelError, fmt.Sprintf("Could not %s %s", op, p.name), api.UserMessage(err))
	}
}

// Service は管理画面のパネルをまとめたものです
type Service struct {
	Rooms      *Panel[model.Room]
	Staff      *Panel[model.Staff]
	Payments   *Panel[model.Payment]
	Complaints *Panel[model.Complaint]
	Leave      *Panel[model.LeaveRequest]

	now func() time.Time
}

// Collections は各パネルが使うリソースコレクションです
type Collections struct {
	Rooms         Collection[model.Room]
	Staff         Collection[model.Staff]
	Payments      Collection[model.Payment]
	Complaints    Collection[model.Complaint]
	LeaveRequests Collection[model.LeaveRequest]
}

// CollectionsFrom は REST クライアントのリソースからパネルの入力を作ります
func CollectionsFrom(c *api.Client) Collections {
	return Collections{
		Rooms:         c.Rooms,
		Staff:         c.Staff,
		Payments:      c.Payments,
		Complaints:    c.Complaints,
		LeaveRequests: c.LeaveRequests,
	}
}

// NewService は Service を作成します
func NewService(cols Collections, toasts toast.Pusher, logger *zap.Logger) *Service {
	v := validator.New()
	s := &Service{
		Rooms:      newPanel("room", cols.Rooms, v, toasts, logger),
		Staff:      newPanel("staff", cols.Staff, v, toasts, logger),
		Payments:   newPanel("payment", cols.Payments, v, toasts, logger),
		Complaints: newPanel("complaint", cols.Complaints, v, toasts, logger),
		Leave:      newPanel("leave request", cols.LeaveRequests, v, toasts, logger),
		now:        time.Now,
	}
	s.Rooms.check = checkRoom
	return s
}

func checkRoom(r model.Room) error {
	if r.CurrentOccupancy > r.Capacity {
		return fmt.Errorf("%w: room %s has %d occupants for %d beds",
			ErrOccupancyExceedsCapacity, r.RoomNumber, r.CurrentOccupancy, r.Capacity)
	}
	return nil
}

// leaveDecision は外泊申請の承認・却下の本文です
type leaveDecision struct {
	Note      string    `json:"decision_note,omitempty"`
	DecidedAt time.Time `json:"decided_at"`
}

// ApproveLeave は外泊申請を承認します
func (s *Service) ApproveLeave(ctx context.Context, id, note string) (*model.LeaveRequest, error) {
	return s.decideLeave(ctx, id, "approve", note)
}

// RejectLeave は外泊申請を却下します。理由は必須です
func (s *Service) RejectLeave(ctx context.Context, id, reason string) (*model.LeaveRequest, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", api.ErrValidation)
	}
	return s.decideLeave(ctx, id, "reject", reason)
}

func (s *Service) decideLeave(ctx context.Context, id, verb, note string) (*model.LeaveRequest, error) {
	p := s.Leave
	current, err := p.coll.Get(ctx, id)
	if err != nil {
		p.fail(verb, err)
		return nil, err
	}
	if current.Status != model.LeaveStatusPending {
		return nil, fmt.Errorf("%w: leave request %s is %s", api.ErrConflict, id, current.Status)
	}

	updated, err := p.coll.Action(ctx, id, verb, leaveDecision{Note: strings.TrimSpace(note), DecidedAt: s.now()})
	if err != nil {
		p.fail(verb, err)
		return nil, err
	}
	p.logger.Info("Leave request decided", zap.String("id", id), zap.String("decision", verb))
	p.succeed(map[string]string{"approve": "Approved", "reject": "Rejected"}[verb])
	return updated, nil
}

// complaintStatusUpdate は苦情の状態更新の本文です
type complaintStatusUpdate struct {
	Status     model.ComplaintStatus `json:"status" validate:"required,oneof=open in_progress resolved closed"`
	Resolution string                `json:"resolution,omitempty" validate:"max=2000"`
}

// UpdateComplaintStatus は苦情の対応状態を更新します
// resolved と closed には対応内容が必要です
func (s *Service) UpdateComplaintStatus(ctx context.Context, id string, status model.ComplaintStatus, resolution string) (*model.Complaint, error) {
	body := complaintStatusUpdate{Status: status, Resolution: strings.TrimSpace(resolution)}
	p := s.Complaints
	if err := p.validate.Struct(body); err != nil {
		return nil, fmt.Errorf("%w: %v", api.ErrValidation, err)
	}
	if (status == model.ComplaintStatusResolved || status == model.ComplaintStatusClosed) && body.Resolution == "" {
		return nil, fmt.Errorf("%w: resolution is required to mark a complaint %s", api.ErrValidation, status)
	}

	updated, err := p.coll.Update(ctx, id, body)
	if err != nil {
		p.fail("update", err)
		return nil, err
	}
	p.succeed("Updated")
	return updated, nil
}
