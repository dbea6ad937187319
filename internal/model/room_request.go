package model

import (
	"errors"
	"fmt"
	"time"
)

// RoomRequestStatus は入居申請の状態です
type RoomRequestStatus string

const (
	RoomRequestStatusPending    RoomRequestStatus = "pending"
	RoomRequestStatusApproved   RoomRequestStatus = "approved"
	RoomRequestStatusRejected   RoomRequestStatus = "rejected"
	RoomRequestStatusWaitlisted RoomRequestStatus = "waitlisted"
)

// ErrInvalidTransition は許可されていない状態遷移を表します
var ErrInvalidTransition = errors.New("invalid room request status transition")

// roomRequestTransitions は許可された状態遷移の一覧です
// waitlisted への遷移はバックエンド側でのみ発生します
var roomRequestTransitions = map[RoomRequestStatus][]RoomRequestStatus{
	RoomRequestStatusPending:    {RoomRequestStatusApproved, RoomRequestStatusRejected, RoomRequestStatusWaitlisted},
	RoomRequestStatusWaitlisted: {RoomRequestStatusApproved, RoomRequestStatusRejected},
}

// CanTransition は from から to への遷移が許可されているかを返します
func (s RoomRequestStatus) CanTransition(to RoomRequestStatus) bool {
	for _, next := range roomRequestTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// RoomRequest は入居申請のドメインモデルです
type RoomRequest struct {
	ID                  string            `json:"id"`
	StudentID           string            `json:"student_id"`
	StudentName         string            `json:"student_name,omitempty"`
	PreferredRoomType   RoomType          `json:"preferred_room_type"`
	PreferredFloor      *int              `json:"preferred_floor,omitempty"`
	RequestedRoomID     string            `json:"requested_room_id,omitempty"`
	SpecialRequirements string            `json:"special_requirements,omitempty"`
	Status              RoomRequestStatus `json:"status"`
	AllocatedRoomID     string            `json:"allocated_room_id,omitempty"`
	AdminNotes          string            `json:"admin_notes,omitempty"`
	RejectionReason     string            `json:"rejection_reason,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	ProcessedAt         *time.Time        `json:"processed_at,omitempty"`
}

// IsActionable は承認・却下の対象になり得るかを返します
func (r RoomRequest) IsActionable() bool {
	return r.Status == RoomRequestStatusPending || r.Status == RoomRequestStatusWaitlisted
}

func (r *RoomRequest) transition(to RoomRequestStatus, at time.Time) error {
	if !r.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s (request %s)", ErrInvalidTransition, r.Status, to, r.ID)
	}
	r.Status = to
	processed := at
	r.ProcessedAt = &processed
	return nil
}

// Approve は申請を承認済みにし、部屋を割り当てます
func (r *RoomRequest) Approve(roomID, notes string, at time.Time) error {
	if roomID == "" {
		return fmt.Errorf("room id is required to approve request %s", r.ID)
	}
	if err := r.transition(RoomRequestStatusApproved, at); err != nil {
		return err
	}
	r.AllocatedRoomID = roomID
	r.AdminNotes = notes
	return nil
}

// Reject は申請を却下します
// 部屋の状態には一切触れません
func (r *RoomRequest) Reject(reason string, at time.Time) error {
	if reason == "" {
		return fmt.Errorf("rejection reason is required for request %s", r.ID)
	}
	if err := r.transition(RoomRequestStatusRejected, at); err != nil {
		return err
	}
	r.RejectionReason = reason
	return nil
}

// NewRoomRequest は学生の入力から申請を作成します
type NewRoomRequest struct {
	StudentID           string   `json:"student_id" validate:"required"`
	PreferredRoomType   RoomType `json:"preferred_room_type" validate:"required,oneof=single double triple dormitory"`
	PreferredFloor      *int     `json:"preferred_floor,omitempty" validate:"omitempty,gte=0"`
	RequestedRoomID     string   `json:"requested_room_id,omitempty"`
	SpecialRequirements string   `json:"special_requirements,omitempty" validate:"max=1000"`
}

// ApprovalInput は承認リクエストの本文です
type ApprovalInput struct {
	RoomID string `json:"room_id" validate:"required"`
	Notes  string `json:"notes,omitempty" validate:"max=1000"`
}

// RejectionInput は却下リクエストの本文です
type RejectionInput struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}
