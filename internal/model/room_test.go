package model

import (
	"testing"
	"time"
)

func TestRoom_IsAllocatable(t *testing.T) {
	tests := []struct {
		name string
		room Room
		want bool
	}{
		{"空室", Room{Capacity: 2, CurrentOccupancy: 0, Status: RoomStatusAvailable}, true},
		{"一部入居", Room{Capacity: 2, CurrentOccupancy: 1, Status: RoomStatusPartiallyFilled}, true},
		{"状態はavailableだが満室", Room{Capacity: 2, CurrentOccupancy: 2, Status: RoomStatusAvailable}, false},
		{"満室", Room{Capacity: 2, CurrentOccupancy: 2, Status: RoomStatusFull}, false},
		{"メンテナンス中", Room{Capacity: 2, CurrentOccupancy: 0, Status: RoomStatusMaintenance}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.room.IsAllocatable(); got != tt.want {
				t.Errorf("IsAllocatable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRoom_DerivedStatus(t *testing.T) {
	tests := []struct {
		name string
		room Room
		want RoomStatus
	}{
		{"空室", Room{Capacity: 3, CurrentOccupancy: 0, Status: RoomStatusFull}, RoomStatusAvailable},
		{"一部入居", Room{Capacity: 3, CurrentOccupancy: 2, Status: RoomStatusAvailable}, RoomStatusPartiallyFilled},
		{"満室", Room{Capacity: 3, CurrentOccupancy: 3, Status: RoomStatusAvailable}, RoomStatusFull},
		{"メンテナンス中", Room{Capacity: 3, CurrentOccupancy: 1, Status: RoomStatusMaintenance}, RoomStatusMaintenance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.room.DerivedStatus(); got != tt.want {
				t.Errorf("DerivedStatus() = %v, want %v", got, tt.want)
			}
		})
	}

	consistent := Room{Capacity: 2, CurrentOccupancy: 1, Status: RoomStatusPartiallyFilled}
	if !consistent.StatusConsistent() {
		t.Error("StatusConsistent() = false, want true")
	}
}

func TestRoom_FreeBeds(t *testing.T) {
	if got := (Room{Capacity: 4, CurrentOccupancy: 1}).FreeBeds(); got != 3 {
		t.Errorf("FreeBeds() = %d, want 3", got)
	}
	if got := (Room{Capacity: 2, CurrentOccupancy: 3}).FreeBeds(); got != 0 {
		t.Errorf("FreeBeds() = %d, want 0", got)
	}
}

func TestParcel_Claim(t *testing.T) {
	now := time.Now()
	p := Parcel{ID: "p1", Status: ParcelStatusArrived, QRToken: "abc"}

	if err := p.Claim("warden1", now); err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if p.Status != ParcelStatusClaimed || p.QRToken != "" || p.ClaimedBy != "warden1" {
		t.Errorf("unexpected parcel after Claim(): %+v", p)
	}
	if err := p.Claim("warden1", now); err != ErrParcelAlreadyClaimed {
		t.Errorf("second Claim() error = %v, want ErrParcelAlreadyClaimed", err)
	}
}
