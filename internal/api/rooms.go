package api

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/uma-arai/sbcntr-hostel/internal/model"
)

// ListRooms は条件に一致する部屋を返します
func (c *Client) ListRooms(ctx context.Context, filter model.RoomFilter) ([]model.Room, error) {
	query := model.ListFilter{
		"status":      string(filter.Status),
		"room_type":   string(filter.RoomType),
		"room_number": filter.RoomNumber,
	}
	if filter.Floor != nil {
		query["floor"] = strconv.Itoa(*filter.Floor)
	}
	return c.Rooms.List(ctx, query)
}

// GetRoom は部屋を取得します
func (c *Client) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	return c.Rooms.Get(ctx, id)
}

// FindRoomByNumber は部屋番号で部屋を検索します
// 大文字小文字は区別しません。一致しない場合は ErrNotFound を返します
func (c *Client) FindRoomByNumber(ctx context.Context, number string) (*model.Room, error) {
	rooms, err := c.ListRooms(ctx, model.RoomFilter{RoomNumber: number})
	if err != nil {
		return nil, err
	}
	for _, room := range rooms {
		if strings.EqualFold(room.RoomNumber, number) {
			r := room
			return &r, nil
		}
	}
	return nil, &Error{
		StatusCode: 404,
		Message:    fmt.Sprintf("room %s not found", number),
		kind:       ErrNotFound,
	}
}
