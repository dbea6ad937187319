package model

import (
	"errors"
	"time"
)

// ParcelStatus は荷物の状態です
type ParcelStatus string

const (
	ParcelStatusArrived ParcelStatus = "arrived"
	ParcelStatusClaimed ParcelStatus = "claimed"
)

// ErrParcelAlreadyClaimed は受け取り済みの荷物を再度受け取ろうとした場合のエラーです
var ErrParcelAlreadyClaimed = errors.New("parcel already claimed")

// Parcel は荷物のドメインモデルです
type Parcel struct {
	ID          string       `json:"id"`
	StudentID   string       `json:"student_id"`
	StudentName string       `json:"student_name,omitempty"`
	SenderName  string       `json:"sender_name"`
	Courier     string       `json:"courier,omitempty"`
	Description string       `json:"description,omitempty"`
	Status      ParcelStatus `json:"status"`
	QRToken     string       `json:"qr_token,omitempty"`
	ReceivedAt  time.Time    `json:"received_at"`
	ClaimedAt   *time.Time   `json:"claimed_at,omitempty"`
	ClaimedBy   string       `json:"claimed_by,omitempty"`
}

// Claim は荷物を受け取り済みにし、トークンを無効化します
func (p *Parcel) Claim(by string, at time.Time) error {
	if p.Status == ParcelStatusClaimed {
		return ErrParcelAlreadyClaimed
	}
	claimed := at
	p.Status = ParcelStatusClaimed
	p.ClaimedAt = &claimed
	p.ClaimedBy = by
	p.QRToken = ""
	return nil
}

// NewParcel は荷物登録の入力です
type NewParcel struct {
	StudentID   string `json:"student_id" validate:"required"`
	SenderName  string `json:"sender_name" validate:"required,max=120"`
	Courier     string `json:"courier,omitempty" validate:"max=80"`
	Description string `json:"description,omitempty" validate:"max=500"`
	QRToken     string `json:"qr_token" validate:"required,len=32,hexadecimal"`
}

// ClaimResult は受け取り確認の結果です
type ClaimResult struct {
	Parcel    Parcel    `json:"parcel"`
	ClaimedBy string    `json:"claimed_by"`
	ClaimedAt time.Time `json:"claimed_at"`
}
