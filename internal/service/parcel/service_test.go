package parcel

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uma-arai/sbcntr-hostel/internal/api"
	"github.com/uma-arai/sbcntr-hostel/internal/model"
	"github.com/uma-arai/sbcntr-hostel/internal/service/toast"
	"go.uber.org/zap"
)

// fakeBackend はトークンで荷物を引き当てるテスト用のバックエンドです
type fakeBackend struct {
	parcels    []*model.Parcel
	claimErr   error
	claimCalls int
	// reply が設定されている場合は状態を変えずにそのまま返します
	reply *model.ClaimResult
}

func (b *fakeBackend) ListParcels(ctx context.Context, studentID string, status model.ParcelStatus) ([]model.Parcel, error) {
	var out []model.Parcel
	for _, p := range b.parcels {
		if (studentID == "" || p.StudentID == studentID) && (status == "" || p.Status == status) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (b *fakeBackend) LogParcel(ctx context.Context, in model.NewParcel) (*model.Parcel, error) {
	p := &model.Parcel{
		ID:         "p1",
		StudentID:  in.StudentID,
		SenderName: in.SenderName,
		Status:     model.ParcelStatusArrived,
		QRToken:    in.QRToken,
		ReceivedAt: time.Now(),
	}
	b.parcels = append(b.parcels, p)
	out := *p
	return &out, nil
}

func (b *fakeBackend) ClaimParcel(ctx context.Context, token string) (*model.ClaimResult, error) {
	b.claimCalls++
	if b.claimErr != nil {
		return nil, b.claimErr
	}
	if b.reply != nil {
		out := *b.reply
		return &out, nil
	}
	for _, p := range b.parcels {
		if p.QRToken == token {
			at := time.Now()
			if err := p.Claim(p.StudentID, at); err != nil {
				return nil, &api.Error{StatusCode: 409, Message: err.Error()}
			}
			return &model.ClaimResult{Parcel: *p, ClaimedBy: p.StudentID, ClaimedAt: at}, nil
		}
	}
	return nil, &api.Error{StatusCode: 404, Message: "invalid or expired token"}
}

func TestNewClaimToken(t *testing.T) {
	a, err := NewClaimToken()
	require.NoError(t, err)
	b, err := NewClaimToken()
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), a)
	assert.NotEqual(t, a, b)
}

func TestService_LogAndClaimOnce(t *testing.T) {
	b := &fakeBackend{}
	q := toast.NewQueue(time.Minute)
	s := NewService(b, q, zap.NewNop())
	ctx := context.Background()

	p, err := s.LogParcel(ctx, model.NewParcel{StudentID: "s1", SenderName: " Amazon "})
	require.NoError(t, err)
	assert.Equal(t, model.ParcelStatusArrived, p.Status)
	assert.Equal(t, "Amazon", p.SenderName)
	require.Len(t, p.QRToken, 32)

	res, err := s.Claim(ctx, p.QRToken)
	require.NoError(t, err)
	assert.Equal(t, model.ParcelStatusClaimed, res.Parcel.Status)
	assert.Equal(t, "s1", res.ClaimedBy)
	assert.Empty(t, res.Parcel.QRToken)

	// 同じトークンでの2回目は失敗する
	_, err = s.Claim(ctx, p.QRToken)
	assert.ErrorIs(t, err, ErrTokenRejected)
	assert.Equal(t, 2, b.claimCalls)

	claimed, err := s.ListParcels(ctx, "s1", model.ParcelStatusClaimed)
	require.NoError(t, err)
	assert.Len(t, claimed, 1)
}

func TestService_ClaimFailures(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		claimErr   error
		wantErr    error
		wantCalls  int
		wantToasts int
	}{
		{"空のトークンは送信しない", "  ", nil, ErrTokenRejected, 0, 0},
		{"不明なトークン", "deadbeef", nil, ErrTokenRejected, 1, 1},
		{"サーバーエラーはそのまま返す", "deadbeef", &api.Error{StatusCode: 503, Message: "unavailable"}, nil, 1, 1},
		{"通信エラー", "deadbeef", api.ErrTransport, api.ErrTransport, 1, 1},
		{"受け取り済み", "deadbeef", &api.Error{StatusCode: 409, Message: "already claimed"}, model.ErrParcelAlreadyClaimed, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{claimErr: tt.claimErr}
			q := toast.NewQueue(time.Minute)
			s := NewService(b, q, zap.NewNop())

			_, err := s.Claim(context.Background(), tt.token)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.False(t, errors.Is(err, ErrTokenRejected))
			}
			assert.Equal(t, tt.wantCalls, b.claimCalls)
			assert.Len(t, q.Active(), tt.wantToasts)
		})
	}
}

func TestService_ClaimSettlesReply(t *testing.T) {
	at := time.Date(2024, 9, 1, 18, 30, 0, 0, time.UTC)

	tests := []struct {
		name          string
		reply         model.ClaimResult
		wantErr       bool
		wantClaimedBy string
		wantAt        time.Time
	}{
		{
			name:          "arrived のままの応答はローカルで受け取り済みにする",
			reply:         model.ClaimResult{Parcel: model.Parcel{ID: "p1", Status: model.ParcelStatusArrived, QRToken: "abc"}, ClaimedBy: "warden1"},
			wantClaimedBy: "warden1",
			wantAt:        at,
		},
		{
			name:          "受け取り済みの応答はトークンだけ消す",
			reply:         model.ClaimResult{Parcel: model.Parcel{ID: "p1", Status: model.ParcelStatusClaimed, QRToken: "abc", ClaimedBy: "s1"}, ClaimedAt: at.Add(-time.Hour)},
			wantClaimedBy: "s1",
			wantAt:        at.Add(-time.Hour),
		},
		{
			name:    "想定外の状態",
			reply:   model.ClaimResult{Parcel: model.Parcel{ID: "p1", Status: "lost"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := tt.reply
			b := &fakeBackend{reply: &reply}
			s := NewService(b, nil, zap.NewNop())
			s.now = func() time.Time { return at }

			res, err := s.Claim(context.Background(), "abc")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, model.ParcelStatusClaimed, res.Parcel.Status)
			assert.Empty(t, res.Parcel.QRToken)
			assert.Equal(t, tt.wantClaimedBy, res.ClaimedBy)
			assert.True(t, tt.wantAt.Equal(res.ClaimedAt))
		})
	}
}

func TestService_LogParcelValidation(t *testing.T) {
	b := &fakeBackend{}
	s := NewService(b, nil, zap.NewNop())

	_, err := s.LogParcel(context.Background(), model.NewParcel{StudentID: "s1"})
	assert.ErrorIs(t, err, api.ErrValidation)
	assert.Empty(t, b.parcels)

	s.newToken = func() (string, error) { return "", errors.New("entropy exhausted") }
	_, err = s.LogParcel(context.Background(), model.NewParcel{StudentID: "s1", SenderName: "DHL"})
	assert.EqualError(t, err, "entropy exhausted")
}
