// Package parcel は荷物の登録と受け取り確認を扱います
package parcel

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/uma-arai/sbcntr-hostel/internal/api"
	"github.com/uma-arai/sbcntr-hostel/internal/model"
	"github.com/uma-arai/sbcntr-hostel/internal/service/toast"
	"go.uber.org/zap"
)

// tokenBytes は受け取りトークンの乱数バイト数です。16進で32文字になります
const tokenBytes = 16

// ErrTokenRejected は不明・期限切れ・受け取り済みのトークンを表します
var ErrTokenRejected = errors.New("claim token rejected")

// Backend は荷物の REST API です
type Backend interface {
	ListParcels(ctx context.Context, studentID string, status model.ParcelStatus) ([]model.Parcel, error)
	LogParcel(ctx context.Context, in model.NewParcel) (*model.Parcel, error)
	ClaimParcel(ctx context.Context, token string) (*model.ClaimResult, error)
}

// Service は荷物の登録と受け取りを担当します
type Service struct {
	backend  Backend
	validate *validator.Validate
	toasts   toast.Pusher
	logger   *zap.Logger
	newToken func() (string, error)
	now      func() time.Time
}

// NewService は Service を作成します
func NewService(backend Backend, toasts toast.Pusher, logger *zap.Logger) *Service {
	return &Service{
		backend:  backend,
		validate: validator.New(),
		toasts:   toasts,
		logger:   logger,
		newToken: NewClaimToken,
		now:      time.Now,
	}
}

// NewClaimToken は使い捨ての受け取りトークンを生成します
func NewClaimToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate claim token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// LogParcel は到着した荷物を登録します
// トークンはここで生成し、荷物は arrived の状態で作成されます
func (s *Service) LogParcel(ctx context.Context, in model.NewParcel) (*model.Parcel, error) {
	token, err := s.newToken()
	if err != nil {
		return nil, err
	}
	in.QRToken = token
	in.SenderName = strings.TrimSpace(in.SenderName)

	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", api.ErrValidation, err)
	}

	p, err := s.backend.LogParcel(ctx, in)
	if err != nil {
		s.push(toast.LevelError, "Could not log parcel", api.UserMessage(err))
		return nil, err
	}
	if p.QRToken == "" {
		p.QRToken = in.QRToken
	}

	s.logger.Info("Parcel logged",
		zap.String("parcel_id", p.ID),
		zap.String("student_id", p.StudentID),
	)
	s.push(toast.LevelSuccess, "Parcel logged", fmt.Sprintf("Parcel from %s logged.", p.SenderName))
	return p, nil
}

// Claim はトークンで荷物を受け取ります
// リクエストは1回だけ送り、失敗してもローカルの状態は変えません
func (s *Service) Claim(ctx context.Context, token string) (*model.ClaimResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: token is empty", ErrTokenRejected)
	}

	result, err := s.backend.ClaimParcel(ctx, token)
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode < 500 &&
			!errors.Is(err, api.ErrUnauthorized) && !errors.Is(err, api.ErrRateLimited) {
			s.push(toast.LevelError, "Claim rejected", apiErr.Message)
			if apiErr.StatusCode == http.StatusConflict {
				return nil, fmt.Errorf("%w: %w", ErrTokenRejected, model.ErrParcelAlreadyClaimed)
			}
			return nil, fmt.Errorf("%w: %s", ErrTokenRejected, apiErr.Message)
		}
		s.push(toast.LevelError, "Claim failed", api.UserMessage(err))
		return nil, err
	}
	if err := s.settleClaim(result); err != nil {
		s.push(toast.LevelError, "Claim failed", err.Error())
		return nil, err
	}

	s.logger.Info("Parcel claimed",
		zap.String("parcel_id", result.Parcel.ID),
		zap.String("claimed_by", result.ClaimedBy),
	)
	s.push(toast.LevelSuccess, "Parcel claimed",
		fmt.Sprintf("Claimed by %s at %s.", result.ClaimedBy, result.ClaimedAt.Format("2006-01-02 15:04")))
	return result, nil
}

// settleClaim は受け取り結果の荷物を claimed にし、トークンを無効化します
// 応答の荷物が arrived のままの場合はローカルで遷移させます
func (s *Service) settleClaim(result *model.ClaimResult) error {
	if result.ClaimedAt.IsZero() {
		result.ClaimedAt = s.now()
	}
	p := result.Parcel
	switch p.Status {
	case model.ParcelStatusClaimed:
		p.QRToken = ""
	case "", model.ParcelStatusArrived:
		if err := p.Claim(result.ClaimedBy, result.ClaimedAt); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unexpected parcel status %q after claim", p.Status)
	}
	if result.ClaimedBy == "" {
		result.ClaimedBy = p.ClaimedBy
	}
	result.Parcel = p
	return nil
}

// ListParcels は学生の荷物一覧を返します。studentID が空の場合はすべて返します
func (s *Service) ListParcels(ctx context.Context, studentID string, status model.ParcelStatus) ([]model.Parcel, error) {
	return s.backend.ListParcels(ctx, studentID, status)
}

func (s *Service) push(level toast.Level, title, message string) {
	if s.toasts != nil {
		s.toasts.Push(level, title, message)
	}
}
