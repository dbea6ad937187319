package api

import (
	"context"

	"github.com/uma-arai/sbcntr-hostel/internal/model"
)

// ListRoomRequests は入居申請の一覧を返します
// status が空の場合はすべての状態を返します
func (c *Client) ListRoomRequests(ctx context.Context, status model.RoomRequestStatus) ([]model.RoomRequest, error) {
	return c.RoomRequests.List(ctx, model.ListFilter{"status": string(status)})
}

// GetRoomRequest は入居申請を取得します
func (c *Client) GetRoomRequest(ctx context.Context, id string) (*model.RoomRequest, error) {
	return c.RoomRequests.Get(ctx, id)
}

// CreateRoomRequest は入居申請を作成します
func (c *Client) CreateRoomRequest(ctx context.Context, in model.NewRoomRequest) (*model.RoomRequest, error) {
	return c.RoomRequests.Create(ctx, in)
}

// ApproveRoomRequest は申請を承認し、部屋を割り当てます
func (c *Client) ApproveRoomRequest(ctx context.Context, id string, in model.ApprovalInput) (*model.RoomRequest, error) {
	return c.RoomRequests.Action(ctx, id, "approve", in)
}

// RejectRoomRequest は申請を却下します
func (c *Client) RejectRoomRequest(ctx context.Context, id string, in model.RejectionInput) (*model.RoomRequest, error) {
	return c.RoomRequests.Action(ctx, id, "reject", in)
}
