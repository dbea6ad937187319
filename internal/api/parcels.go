package api

import (
	"context"
	"net/http"

	"github.com/uma-arai/sbcntr-hostel/internal/model"
)

// ListParcels は荷物の一覧を返します
func (c *Client) ListParcels(ctx context.Context, studentID string, status model.ParcelStatus) ([]model.Parcel, error) {
	return c.Parcels.List(ctx, model.ListFilter{"student_id": studentID, "status": string(status)})
}

// LogParcel は到着した荷物を登録します
func (c *Client) LogParcel(ctx context.Context, in model.NewParcel) (*model.Parcel, error) {
	return c.Parcels.Create(ctx, in)
}

// ClaimParcel はトークンで荷物の受け取りを確定します
// 1 回のリクエストで完結し、再送はしません
func (c *Client) ClaimParcel(ctx context.Context, token string) (*model.ClaimResult, error) {
	var result model.ClaimResult
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/parcels/claim",
		body:   map[string]string{"token": token},
		result: &result,
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
