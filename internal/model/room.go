package model

import "time"

// RoomType は部屋タイプを表します
type RoomType string

const (
	RoomTypeSingle    RoomType = "single"
	RoomTypeDouble    RoomType = "double"
	RoomTypeTriple    RoomType = "triple"
	RoomTypeDormitory RoomType = "dormitory"
)

// RoomStatus は部屋の状態を表します
// 占有数から導出できる値ですが、バックエンドでは冗長に保存されています
type RoomStatus string

const (
	RoomStatusAvailable       RoomStatus = "available"
	RoomStatusPartiallyFilled RoomStatus = "partially_filled"
	RoomStatusFull            RoomStatus = "full"
	RoomStatusMaintenance     RoomStatus = "maintenance"
)

// Room は部屋のドメインモデルです
type Room struct {
	ID               string     `json:"id" db:"id"`
	RoomNumber       string     `json:"room_number" db:"room_number" validate:"required,max=16"`
	Block            string     `json:"block,omitempty" db:"block"`
	Floor            int        `json:"floor" db:"floor" validate:"gte=0"`
	RoomType         RoomType   `json:"room_type" db:"room_type" validate:"required,oneof=single double triple dormitory"`
	Capacity         int        `json:"capacity" db:"capacity" validate:"gte=1"`
	CurrentOccupancy int        `json:"current_occupancy" db:"current_occupancy" validate:"gte=0,ltefield=Capacity"`
	Status           RoomStatus `json:"status" db:"status" validate:"omitempty,oneof=available partially_filled full maintenance"`
	CreatedAt        time.Time  `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at,omitempty" db:"updated_at"`
}

// HasCapacity は空きベッドがあるかを返します
func (r Room) HasCapacity() bool {
	return r.CurrentOccupancy < r.Capacity
}

// FreeBeds は空きベッド数を返します
func (r Room) FreeBeds() int {
	if r.CurrentOccupancy >= r.Capacity {
		return 0
	}
	return r.Capacity - r.CurrentOccupancy
}

// IsAllocatable は部屋が割り当て可能かを判定します
// 空きがあり、かつ状態が available / partially_filled の場合のみ true です
func (r Room) IsAllocatable() bool {
	if !r.HasCapacity() {
		return false
	}
	return r.Status == RoomStatusAvailable || r.Status == RoomStatusPartiallyFilled
}

// DerivedStatus は占有数から導出される状態を返します
// メンテナンス中の部屋は占有数に関係なくメンテナンス中のままです
func (r Room) DerivedStatus() RoomStatus {
	switch {
	case r.Status == RoomStatusMaintenance:
		return RoomStatusMaintenance
	case r.CurrentOccupancy <= 0:
		return RoomStatusAvailable
	case r.CurrentOccupancy >= r.Capacity:
		return RoomStatusFull
	default:
		return RoomStatusPartiallyFilled
	}
}

// StatusConsistent は保存された状態が占有数と一致しているかを返します
func (r Room) StatusConsistent() bool {
	return r.Status == r.DerivedStatus()
}

// RoomFilter は部屋一覧の絞り込み条件です
type RoomFilter struct {
	Status     RoomStatus
	RoomType   RoomType
	Floor      *int
	RoomNumber string
}
