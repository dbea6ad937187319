package repository

import (
	"context"
	"fmt"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// RoomRepository は部屋情報の参照を担当するインターフェースです
type RoomRepository interface {
	GetNumberByID(ctx context.Context, roomID string) (string, error)
}

// RoomRepositoryImpl はRoomRepositoryの実装です
type RoomRepositoryImpl struct {
	db *DB
}

// NewRoomRepository は新しいRoomRepositoryを作成します
func NewRoomRepository(db *DB) RoomRepository {
	return &RoomRepositoryImpl{
		db: db,
	}
}

// GetNumberByID は指定された部屋IDから部屋番号を取得します
func (r *RoomRepositoryImpl) GetNumberByID(ctx context.Context, roomID string) (number string, err error) {
	ctx, seg := xray.BeginSubsegment(ctx, "RoomRepository.GetNumberByID")
	defer func() { seg.Close(err) }()

	query := `
		SELECT room_number
		FROM rooms
		WHERE id = $1`

	if err = r.db.QueryRowxContext(ctx, query, roomID).Scan(&number); err != nil {
		return "", fmt.Errorf("failed to get room number: %w", err)
	}

	return number, nil
}
