package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-hostel/internal/api"
	"github.com/uma-arai/sbcntr-hostel/internal/auth"
	"github.com/uma-arai/sbcntr-hostel/internal/common/config"
	"github.com/uma-arai/sbcntr-hostel/internal/common/database"
	"github.com/uma-arai/sbcntr-hostel/internal/common/utils"
	"github.com/uma-arai/sbcntr-hostel/internal/model"
	"github.com/uma-arai/sbcntr-hostel/internal/repository"
	"github.com/uma-arai/sbcntr-hostel/internal/service/allocation"
	"go.uber.org/zap"
)

// autoAllocationNote は自動割り当て時に申請へ残すメモです
const autoAllocationNote = "allocated by batch"

// TaskNotifier は Step Functions のタスク完了通知です
// *sfn.Client が満たします
type TaskNotifier interface {
	SendTaskSuccess(ctx context.Context, params *sfn.SendTaskSuccessInput, optFns ...func(*sfn.Options)) (*sfn.SendTaskSuccessOutput, error)
}

// AllocationSummary は1回の実行結果の件数です
type AllocationSummary struct {
	Approved int
	Deferred int
	Failed   int
}

// AllocationBatchService は保留中の入居申請を自動で割り当てるバッチです
// 候補の部屋が1つに決まる申請だけを承認し、それ以外は手動判断に回します
type AllocationBatchService struct {
	db           *database.DB
	workflow     *allocation.Service
	decisionRepo repository.AllocationDecisionRepository
	sfnClient    TaskNotifier
	cfg          *config.Config
	logger       *zap.Logger
	now          func() time.Time
}

// NewAllocationBatchService は新しいAllocationBatchServiceを作成します
func NewAllocationBatchService(cfg *config.Config, sfnClient TaskNotifier, logger *zap.Logger) (*AllocationBatchService, error) {
	session, err := auth.ParseSession(cfg.Auth.AccessToken, cfg.Auth.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	if err := session.Require(auth.RoleAdmin, auth.RoleWarden); err != nil {
		return nil, fmt.Errorf("allocation batch requires an admin session: %w", err)
	}

	db, err := database.NewDB(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	client := api.New(api.Options{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Tracing: cfg.EnableTracing,
	}, session, logger)

	return &AllocationBatchService{
		db:           db,
		workflow:     allocation.NewService(client, nil, logger),
		decisionRepo: repository.NewAllocationDecisionRepository(repository.NewDB(db.DB, logger)),
		sfnClient:    sfnClient,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
	}, nil
}

// Close は終了処理を行います
func (s *AllocationBatchService) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Run は割り当てバッチ処理を実行します
func (s *AllocationBatchService) Run(ctx context.Context) (err error) {
	ctx, seg := xray.BeginSubsegment(ctx, "AllocationBatchService.Run")
	defer func() { seg.Close(err) }()

	startTime := time.Now()

	events, summary, err := s.processPending(ctx)
	if err != nil {
		return utils.GetStackWithError(fmt.Errorf("failed to process pending room requests: %w", err))
	}

	if err = s.sendTaskSuccess(ctx, events); err != nil {
		return utils.GetStackWithError(fmt.Errorf("failed to send task success: %w", err))
	}

	duration := time.Since(startTime)
	if mdErr := seg.AddMetadata("duration", duration.String()); mdErr != nil {
		s.logger.Warn("Failed to add duration metadata", zap.Error(mdErr))
	}
	if mdErr := seg.AddMetadata("summary", summary); mdErr != nil {
		s.logger.Warn("Failed to add summary metadata", zap.Error(mdErr))
	}

	s.logger.Info("Allocation batch process completed successfully",
		zap.Duration("duration", duration),
		zap.Int("approved", summary.Approved),
		zap.Int("deferred", summary.Deferred),
		zap.Int("failed", summary.Failed),
	)
	return nil
}

// processPending は保留中の申請を1件ずつ処理します
// 1件の失敗で全体を止めず、監査レコードを残して次へ進みます
func (s *AllocationBatchService) processPending(ctx context.Context) ([]model.NotificationEvent, AllocationSummary, error) {
	var summary AllocationSummary

	if err := s.workflow.Refresh(ctx); err != nil {
		return nil, summary, err
	}

	pending := s.workflow.Requests(model.RoomRequestStatusPending)
	s.logger.Info("Found pending room requests", zap.Int("count", len(pending)))

	var events []model.NotificationEvent
	for _, req := range pending {
		log := s.logger.With(zap.String("request_id", req.ID))

		plan, err := s.workflow.Plan(ctx, req.ID)
		if err != nil {
			log.Warn("Failed to plan room request", zap.Error(err))
			summary.Failed++
			s.record(ctx, req.ID, nil, model.DecisionActionSkip, model.DecisionOutcomeFailed, err.Error())
			continue
		}

		if plan.Selected == nil {
			summary.Deferred++
			s.record(ctx, req.ID, nil, model.DecisionActionSkip, model.DecisionOutcomeDeferred, deferReason(plan))
			continue
		}

		room := *plan.Selected
		approved, err := s.workflow.Approve(ctx, req.ID, model.ApprovalInput{RoomID: room.ID, Notes: autoAllocationNote})
		if err != nil {
			log.Warn("Failed to approve room request", zap.String("room_id", room.ID), zap.Error(err))
			summary.Failed++
			s.record(ctx, req.ID, &room.ID, model.DecisionActionApprove, model.DecisionOutcomeFailed, api.UserMessage(err))
			continue
		}

		summary.Approved++
		s.record(ctx, req.ID, &room.ID, model.DecisionActionApprove, model.DecisionOutcomeSucceeded,
			fmt.Sprintf("room %s via %s", room.RoomNumber, plan.Source))

		createdAt := s.now()
		if approved.ProcessedAt != nil {
			createdAt = *approved.ProcessedAt
		}
		events = append(events, model.NewAllocationNotificationEvent(model.AllocationEvent{
			RequestID:  req.ID,
			StudentID:  req.StudentID,
			RoomID:     room.ID,
			RoomNumber: room.RoomNumber,
			CreatedAt:  createdAt,
		}))
	}

	return events, summary, nil
}

func deferReason(plan *allocation.Plan) string {
	if plan.Warning != "" {
		return plan.Warning
	}
	if len(plan.Candidates) == 0 {
		return fmt.Sprintf("no allocatable %s room", plan.Request.PreferredRoomType)
	}
	return fmt.Sprintf("%d candidate rooms, needs manual choice", len(plan.Candidates))
}

// record は監査レコードを1件ずつトランザクションで書き込みます
// 書き込みに失敗しても申請の処理結果は変わらないため、ログに残すのみです
func (s *AllocationBatchService) record(ctx context.Context, requestID string, roomID *string, action model.DecisionAction, outcome model.DecisionOutcome, notes string) {
	log := s.logger.With(zap.String("request_id", requestID))

	tx, err := s.decisionRepo.BeginTx(ctx)
	if err != nil {
		log.Error("Failed to begin transaction", zap.Error(err))
		return
	}

	decision := &model.AllocationDecision{
		RequestID: requestID,
		RoomID:    roomID,
		Action:    action,
		Notes:     notes,
		Outcome:   outcome,
		CreatedAt: s.now(),
	}
	if err := s.decisionRepo.Record(ctx, tx, decision); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
		log.Error("Failed to record allocation decision", zap.Error(err))
		return
	}

	if err := tx.Commit(); err != nil {
		log.Error("Failed to commit transaction", zap.Error(err))
		return
	}

	log.Info("Allocation decision recorded",
		zap.String("action", string(action)),
		zap.String("outcome", string(outcome)),
	)
}

// sendTaskSuccess は、Step Functionsのタスク成功を通知し、通知イベントを後続へ渡します
func (s *AllocationBatchService) sendTaskSuccess(ctx context.Context, events []model.NotificationEvent) error {
	if s.cfg.IsLocal() || s.sfnClient == nil {
		s.logger.Info("Local environment detected. Skipping Step Functions task success notification",
			zap.Int("event_count", len(events)))
		return nil
	}

	taskToken := s.cfg.SFN.TaskToken
	if taskToken == "" {
		return errors.New("SFN task token is not set in config")
	}

	if events == nil {
		events = []model.NotificationEvent{}
	}
	output, err := json.Marshal(TaskOutput{Notifications: events})
	if err != nil {
		return fmt.Errorf("failed to marshal notifications: %w", err)
	}

	_, err = s.sfnClient.SendTaskSuccess(ctx, &sfn.SendTaskSuccessInput{
		TaskToken: aws.String(taskToken),
		Output:    aws.String(string(output)),
	})
	if err != nil {
		return fmt.Errorf("failed to send task success: %w", err)
	}

	s.logger.Info("Successfully sent task success", zap.Int("event_count", len(events)))
	return nil
}
