package model

import "time"

// DecisionAction はバッチが申請に対して行った操作です
type DecisionAction string

const (
	DecisionActionApprove DecisionAction = "approve"
	// DecisionActionSkip は候補の部屋が1つに決まらず、手動判断に回したことを表します
	DecisionActionSkip DecisionAction = "skip"
)

// DecisionOutcome は操作の結果です
type DecisionOutcome string

const (
	DecisionOutcomeSucceeded DecisionOutcome = "succeeded"
	DecisionOutcomeFailed    DecisionOutcome = "failed"
	DecisionOutcomeDeferred  DecisionOutcome = "deferred"
)

// AllocationDecision は割り当てバッチの監査レコードです
type AllocationDecision struct {
	ID        int64           `db:"id"`
	RequestID string          `db:"request_id"`
	RoomID    *string         `db:"room_id"`
	Action    DecisionAction  `db:"action"`
	Notes     string          `db:"notes"`
	Outcome   DecisionOutcome `db:"outcome"`
	CreatedAt time.Time       `db:"created_at"`
}
