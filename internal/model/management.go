package model

import "time"

// Staff は職員情報です
type Staff struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name" validate:"required,max=120"`
	Email     string    `json:"email" validate:"required,email"`
	Phone     string    `json:"phone,omitempty" validate:"omitempty,e164"`
	Position  string    `json:"position" validate:"required,oneof=warden caretaker cleaner security cook"`
	Shift     string    `json:"shift,omitempty" validate:"omitempty,oneof=morning evening night"`
	Status    string    `json:"status,omitempty" validate:"omitempty,oneof=active on_leave inactive"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// PaymentStatus は支払い状態です
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusOverdue  PaymentStatus = "overdue"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Payment は寮費の支払い情報です
// 金額の計算はバックエンドが行います
type Payment struct {
	ID        string        `json:"id,omitempty"`
	StudentID string        `json:"student_id" validate:"required"`
	Amount    float64       `json:"amount" validate:"gt=0"`
	Method    string        `json:"method,omitempty" validate:"omitempty,oneof=cash card bank_transfer upi"`
	Status    PaymentStatus `json:"status" validate:"required,oneof=pending paid overdue refunded"`
	DueDate   time.Time     `json:"due_date" validate:"required"`
	PaidAt    *time.Time    `json:"paid_at,omitempty"`
}

// ComplaintStatus は苦情の対応状態です
type ComplaintStatus string

const (
	ComplaintStatusOpen       ComplaintStatus = "open"
	ComplaintStatusInProgress ComplaintStatus = "in_progress"
	ComplaintStatusResolved   ComplaintStatus = "resolved"
	ComplaintStatusClosed     ComplaintStatus = "closed"
)

// Complaint は苦情・清掃依頼です
type Complaint struct {
	ID          string          `json:"id,omitempty"`
	StudentID   string          `json:"student_id" validate:"required"`
	Category    string          `json:"category" validate:"required,oneof=maintenance cleaning electrical plumbing noise other"`
	Description string          `json:"description" validate:"required,max=2000"`
	Priority    string          `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	Status      ComplaintStatus `json:"status" validate:"required,oneof=open in_progress resolved closed"`
	Resolution  string          `json:"resolution,omitempty" validate:"max=2000"`
	CreatedAt   time.Time       `json:"created_at,omitempty"`
}

// LeaveStatus は外泊申請の状態です
type LeaveStatus string

const (
	LeaveStatusPending  LeaveStatus = "pending"
	LeaveStatusApproved LeaveStatus = "approved"
	LeaveStatusRejected LeaveStatus = "rejected"
)

// LeaveRequest は外泊申請です
type LeaveRequest struct {
	ID           string      `json:"id,omitempty"`
	StudentID    string      `json:"student_id" validate:"required"`
	FromDate     time.Time   `json:"from_date" validate:"required"`
	ToDate       time.Time   `json:"to_date" validate:"required,gtefield=FromDate"`
	Reason       string      `json:"reason" validate:"required,max=1000"`
	Status       LeaveStatus `json:"status" validate:"required,oneof=pending approved rejected"`
	DecidedAt    *time.Time  `json:"decided_at,omitempty"`
	DecisionNote string      `json:"decision_note,omitempty"`
}

// ListFilter は一覧取得時の共通絞り込み条件です
// 値が空の項目はクエリに含めません
type ListFilter map[string]string
