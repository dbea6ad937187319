package repository

import (
	"context"
	"fmt"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/jmoiron/sqlx"
	"github.com/uma-arai/sbcntr-hostel/internal/model"
)

// AllocationDecisionRepository は割り当てバッチの監査レコードを扱います
type AllocationDecisionRepository interface {
	BeginTx(ctx context.Context) (*sqlx.Tx, error)
	Record(ctx context.Context, tx *sqlx.Tx, decision *model.AllocationDecision) error
	ListByRequestID(ctx context.Context, requestID string) ([]model.AllocationDecision, error)
}

type AllocationDecisionRepositoryImpl struct {
	db *DB
}

func NewAllocationDecisionRepository(db *DB) *AllocationDecisionRepositoryImpl {
	return &AllocationDecisionRepositoryImpl{db: db}
}

// BeginTx starts a new transaction
func (r *AllocationDecisionRepositoryImpl) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTx(ctx)
}

// Record は監査レコードを追加し、採番された ID を decision に書き戻します
func (r *AllocationDecisionRepositoryImpl) Record(ctx context.Context, tx *sqlx.Tx, decision *model.AllocationDecision) (err error) {
	ctx, seg := xray.BeginSubsegment(ctx, "AllocationDecisionRepository.Record")
	defer func() { seg.Close(err) }()

	query := `
		INSERT INTO allocation_decisions (
			request_id,
			room_id,
			action,
			notes,
			outcome,
			created_at
		) VALUES (
			:request_id,
			:room_id,
			:action,
			:notes,
			:outcome,
			:created_at
		)
		RETURNING id
	`

	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare decision insert: %w", err)
	}
	defer stmt.Close()

	if err = stmt.QueryRowxContext(ctx, decision).Scan(&decision.ID); err != nil {
		return fmt.Errorf("failed to record decision for request %s: %w", decision.RequestID, err)
	}

	return nil
}

// ListByRequestID は申請に対する監査レコードを古い順に返します
func (r *AllocationDecisionRepositoryImpl) ListByRequestID(ctx context.Context, requestID string) (decisions []model.AllocationDecision, err error) {
	ctx, seg := xray.BeginSubsegment(ctx, "AllocationDecisionRepository.ListByRequestID")
	defer func() { seg.Close(err) }()

	query := `
		SELECT
			id,
			request_id,
			room_id,
			action,
			notes,
			outcome,
			created_at
		FROM allocation_decisions
		WHERE request_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryxContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions for request %s: %w", requestID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var d model.AllocationDecision
		if err = rows.StructScan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan decision row: %w", err)
		}
		decisions = append(decisions, d)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating decision rows: %w", err)
	}

	return decisions, nil
}
