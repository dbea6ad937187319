package allocation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uma-arai/sbcntr-hostel/internal/api"
	"github.com/uma-arai/sbcntr-hostel/internal/model"
	"github.com/uma-arai/sbcntr-hostel/internal/service/toast"
	"go.uber.org/zap"
)

// fakeBackend はメモリ上で申請と部屋を保持するテスト用のバックエンドです
type fakeBackend struct {
	rooms    map[string]*model.Room
	requests map[string]*model.RoomRequest

	approveErr   error
	approveCalls int
	// emptyReply の場合は状態を変えずに空の 2xx 応答を返します
	emptyReply bool
	listErr    error
	rejectCalls  int
	findCalls    []string
}

func newFakeBackend(rooms []model.Room, requests []model.RoomRequest) *fakeBackend {
	b := &fakeBackend{
		rooms:    make(map[string]*model.Room),
		requests: make(map[string]*model.RoomRequest),
	}
	for i := range rooms {
		r := rooms[i]
		b.rooms[r.ID] = &r
	}
	for i := range requests {
		r := requests[i]
		b.requests[r.ID] = &r
	}
	return b
}

func (b *fakeBackend) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	if r, ok := b.rooms[id]; ok {
		room := *r
		return &room, nil
	}
	return nil, fmt.Errorf("room %s: %w", id, api.ErrNotFound)
}

func (b *fakeBackend) FindRoomByNumber(ctx context.Context, number string) (*model.Room, error) {
	b.findCalls = append(b.findCalls, number)
	for _, r := range b.rooms {
		if r.RoomNumber == number {
			room := *r
			return &room, nil
		}
	}
	return nil, fmt.Errorf("room %s: %w", number, api.ErrNotFound)
}

func (b *fakeBackend) ListRooms(ctx context.Context, filter model.RoomFilter) ([]model.Room, error) {
	var out []model.Room
	for _, r := range b.rooms {
		out = append(out, *r)
	}
	return out, nil
}

func (b *fakeBackend) ListRoomRequests(ctx context.Context, status model.RoomRequestStatus) ([]model.RoomRequest, error) {
	if b.listErr != nil {
		return nil, b.listErr
	}
	var out []model.RoomRequest
	for _, r := range b.requests {
		if status == "" || r.Status == status {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (b *fakeBackend) GetRoomRequest(ctx context.Context, id string) (*model.RoomRequest, error) {
	if r, ok := b.requests[id]; ok {
		req := *r
		return &req, nil
	}
	return nil, fmt.Errorf("request %s: %w", id, api.ErrNotFound)
}

func (b *fakeBackend) CreateRoomRequest(ctx context.Context, in model.NewRoomRequest) (*model.RoomRequest, error) {
	req := &model.RoomRequest{
		ID:                  "new",
		StudentID:           in.StudentID,
		PreferredRoomType:   in.PreferredRoomType,
		PreferredFloor:      in.PreferredFloor,
		RequestedRoomID:     in.RequestedRoomID,
		SpecialRequirements: in.SpecialRequirements,
		Status:              model.RoomRequestStatusPending,
	}
	b.requests[req.ID] = req
	return req, nil
}

func (b *fakeBackend) ApproveRoomRequest(ctx context.Context, id string, in model.ApprovalInput) (*model.RoomRequest, error) {
	b.approveCalls++
	if b.approveErr != nil {
		return nil, b.approveErr
	}
	if b.emptyReply {
		return &model.RoomRequest{}, nil
	}
	req := b.requests[id]
	if err := req.Approve(in.RoomID, in.Notes, time.Now()); err != nil {
		return nil, err
	}
	room := b.rooms[in.RoomID]
	room.CurrentOccupancy++
	room.Status = room.DerivedStatus()
	out := *req
	return &out, nil
}

func (b *fakeBackend) RejectRoomRequest(ctx context.Context, id string, in model.RejectionInput) (*model.RoomRequest, error) {
	b.rejectCalls++
	if b.emptyReply {
		return nil, nil
	}
	req := b.requests[id]
	if err := req.Reject(in.Reason, time.Now()); err != nil {
		return nil, err
	}
	out := *req
	return &out, nil
}

func roomA1102() model.Room {
	return model.Room{ID: "r-a1102", RoomNumber: "A1102", Floor: 11, RoomType: model.RoomTypeDouble, Capacity: 2, CurrentOccupancy: 1, Status: model.RoomStatusAvailable}
}

func newTestService(t *testing.T, b *fakeBackend) (*Service, *toast.Queue) {
	t.Helper()
	q := toast.NewQueue(time.Minute)
	s := NewService(b, q, zap.NewNop())
	require.NoError(t, s.Refresh(context.Background()))
	return s, q
}

func TestExtractRoomTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"room の後の番号", "requesting room A1102", []string{"A1102"}},
		{"room no. 表記", "Please give me room no. 204, near the stairs", []string{"204"}},
		{"rm 表記", "rm 12B if possible", []string{"12B"}},
		{"# 表記", "prefer #305.", []string{"305"}},
		{"単独の番号", "A1102 or 204 please", []string{"A1102", "204"}},
		{"UUID は除外", "room 3f2a9c1e-bc12-4d7e-9f00-1234567890ab", nil},
		{"区切り文字を含むものは除外", "ref abc_123 and room B-12", nil},
		{"長すぎるものは除外", "room ABC12345", nil},
		{"数字を含まないものは除外", "a quiet room near the window", nil},
		{"空文字", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractRoomTokens(tt.text))
		})
	}
}

func TestService_ApproveRequestedRoomFromText(t *testing.T) {
	b := newFakeBackend(
		[]model.Room{roomA1102(), {ID: "r-b201", RoomNumber: "B201", Floor: 2, RoomType: model.RoomTypeDouble, Capacity: 2, Status: model.RoomStatusAvailable}},
		[]model.RoomRequest{{ID: "req1", StudentID: "s1", PreferredRoomType: model.RoomTypeDouble, SpecialRequirements: "requesting room A1102", Status: model.RoomRequestStatusPending}},
	)
	s, q := newTestService(t, b)
	ctx := context.Background()

	plan, err := s.Plan(ctx, "req1")
	require.NoError(t, err)
	require.NotNil(t, plan.Selected)
	assert.Equal(t, "A1102", plan.Selected.RoomNumber)
	assert.Equal(t, SourceRequirementText, plan.Source)
	assert.Equal(t, "A1102", plan.Token)
	assert.Empty(t, plan.Warning)
	assert.Empty(t, b.findCalls, "取得済みの部屋で見つかるので API 検索はしない")

	updated, err := s.Approve(ctx, "req1", model.ApprovalInput{RoomID: plan.Selected.ID, Notes: "auto"})
	require.NoError(t, err)
	assert.Equal(t, model.RoomRequestStatusApproved, updated.Status)
	assert.Equal(t, "r-a1102", updated.AllocatedRoomID)

	// 承認後に一覧が取り直されている
	assert.Empty(t, s.Requests(model.RoomRequestStatusPending))
	require.Len(t, s.Requests(model.RoomRequestStatusApproved), 1)

	active := q.Active()
	require.NotEmpty(t, active)
	assert.Equal(t, toast.LevelSuccess, active[len(active)-1].Level)
}

func TestService_PlanLooksUpUnfetchedRoom(t *testing.T) {
	b := newFakeBackend(nil, []model.RoomRequest{
		{ID: "req1", PreferredRoomType: model.RoomTypeDouble, SpecialRequirements: "room A1102 please", Status: model.RoomRequestStatusPending},
	})
	s, _ := newTestService(t, b)

	// Refresh 後に追加された部屋は API 検索で見つかる
	room := roomA1102()
	b.rooms[room.ID] = &room

	plan, err := s.Plan(context.Background(), "req1")
	require.NoError(t, err)
	require.NotNil(t, plan.Selected)
	assert.Equal(t, "A1102", plan.Selected.RoomNumber)
	assert.Equal(t, []string{"A1102"}, b.findCalls)
}

func TestService_PlanStructuredRoomWins(t *testing.T) {
	b := newFakeBackend(
		[]model.Room{roomA1102(), {ID: "r-b201", RoomNumber: "B201", RoomType: model.RoomTypeDouble, Capacity: 2, Status: model.RoomStatusAvailable}},
		[]model.RoomRequest{{ID: "req1", PreferredRoomType: model.RoomTypeDouble, RequestedRoomID: "r-b201", SpecialRequirements: "room A1102", Status: model.RoomRequestStatusPending}},
	)
	s, _ := newTestService(t, b)

	plan, err := s.Plan(context.Background(), "req1")
	require.NoError(t, err)
	require.NotNil(t, plan.Selected)
	assert.Equal(t, "B201", plan.Selected.RoomNumber)
	assert.Equal(t, SourceRequestedRoomID, plan.Source)
}

func TestService_PlanFallsBackWhenRequestedRoomFull(t *testing.T) {
	full := roomA1102()
	full.CurrentOccupancy = 2
	full.Status = model.RoomStatusFull

	tests := []struct {
		name         string
		rooms        []model.Room
		wantCount    int
		wantSelected string
	}{
		{
			name:         "候補が1件なら自動選択",
			rooms:        []model.Room{full, {ID: "r-b201", RoomNumber: "B201", RoomType: model.RoomTypeDouble, Capacity: 2, Status: model.RoomStatusPartiallyFilled, CurrentOccupancy: 1}},
			wantCount:    1,
			wantSelected: "B201",
		},
		{
			name: "候補が複数なら選択しない",
			rooms: []model.Room{
				full,
				{ID: "r-b201", RoomNumber: "B201", RoomType: model.RoomTypeDouble, Capacity: 2, Status: model.RoomStatusAvailable},
				{ID: "r-b202", RoomNumber: "B202", RoomType: model.RoomTypeDouble, Capacity: 2, Status: model.RoomStatusAvailable},
				{ID: "r-s1", RoomNumber: "S1", RoomType: model.RoomTypeSingle, Capacity: 1, Status: model.RoomStatusAvailable},
				{ID: "r-m1", RoomNumber: "M1", RoomType: model.RoomTypeDouble, Capacity: 2, Status: model.RoomStatusMaintenance},
			},
			wantCount: 2,
		},
		{
			name:      "候補なし",
			rooms:     []model.Room{full},
			wantCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBackend(tt.rooms, []model.RoomRequest{
				{ID: "req1", PreferredRoomType: model.RoomTypeDouble, SpecialRequirements: "requesting room A1102", Status: model.RoomRequestStatusPending},
			})
			s, q := newTestService(t, b)

			plan, err := s.Plan(context.Background(), "req1")
			require.NoError(t, err)
			assert.Contains(t, plan.Warning, "A1102 is not available")
			assert.Equal(t, SourceRoomType, plan.Source)
			assert.Len(t, plan.Candidates, tt.wantCount)
			if tt.wantSelected != "" {
				require.NotNil(t, plan.Selected)
				assert.Equal(t, tt.wantSelected, plan.Selected.RoomNumber)
			} else {
				assert.Nil(t, plan.Selected)
			}

			active := q.Active()
			require.Len(t, active, 1)
			assert.Equal(t, toast.LevelWarning, active[0].Level)
		})
	}
}

func TestService_ApproveFullRoomIsBlocked(t *testing.T) {
	full := roomA1102()
	full.CurrentOccupancy = 2
	full.Status = model.RoomStatusFull
	b := newFakeBackend([]model.Room{full}, []model.RoomRequest{
		{ID: "req1", PreferredRoomType: model.RoomTypeDouble, Status: model.RoomRequestStatusPending},
	})
	s, _ := newTestService(t, b)

	_, err := s.Approve(context.Background(), "req1", model.ApprovalInput{RoomID: full.ID})
	assert.ErrorIs(t, err, ErrRoomUnavailable)
	assert.Equal(t, 0, b.approveCalls)
	assert.Equal(t, model.RoomRequestStatusPending, b.requests["req1"].Status)
}

func TestService_ApproveFailureLeavesStateUnchanged(t *testing.T) {
	b := newFakeBackend([]model.Room{roomA1102()}, []model.RoomRequest{
		{ID: "req1", PreferredRoomType: model.RoomTypeDouble, Status: model.RoomRequestStatusPending},
	})
	b.approveErr = &api.Error{StatusCode: 409, Message: "request already processed"}
	s, q := newTestService(t, b)

	_, err := s.Approve(context.Background(), "req1", model.ApprovalInput{RoomID: "r-a1102"})
	require.Error(t, err)
	var apiErr *api.Error
	assert.True(t, errors.As(err, &apiErr))
	assert.Len(t, s.Requests(model.RoomRequestStatusPending), 1)
	assert.Equal(t, 1, b.rooms["r-a1102"].CurrentOccupancy)

	active := q.Active()
	require.Len(t, active, 1)
	assert.Equal(t, toast.LevelError, active[0].Level)
}

func TestService_Reject(t *testing.T) {
	full := roomA1102()
	full.CurrentOccupancy = 2
	full.Status = model.RoomStatusFull
	b := newFakeBackend([]model.Room{full}, []model.RoomRequest{
		{ID: "req1", PreferredRoomType: model.RoomTypeDouble, SpecialRequirements: "room A1102", Status: model.RoomRequestStatusPending},
		{ID: "req2", PreferredRoomType: model.RoomTypeDouble, Status: model.RoomRequestStatusApproved},
		{ID: "req3", PreferredRoomType: model.RoomTypeDouble, Status: model.RoomRequestStatusWaitlisted},
	})
	s, _ := newTestService(t, b)
	ctx := context.Background()

	_, err := s.Reject(ctx, "req1", "  ")
	assert.ErrorIs(t, err, ErrReasonRequired)
	assert.Equal(t, 0, b.rejectCalls)

	updated, err := s.Reject(ctx, "req1", "No rooms left")
	require.NoError(t, err)
	assert.Equal(t, model.RoomRequestStatusRejected, updated.Status)
	assert.Equal(t, "No rooms left", updated.RejectionReason)
	assert.Equal(t, 2, b.rooms[full.ID].CurrentOccupancy, "却下は部屋に触れない")

	_, err = s.Reject(ctx, "req2", "late")
	assert.ErrorIs(t, err, ErrNotPending)

	updated, err = s.Reject(ctx, "req3", "waitlist closed")
	require.NoError(t, err)
	assert.Equal(t, model.RoomRequestStatusRejected, updated.Status)

	_, err = s.Reject(ctx, "missing", "x")
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestService_EmptyReplyStillTransitions(t *testing.T) {
	at := time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		run          func(ctx context.Context, s *Service) (*model.RoomRequest, error)
		wantStatus   model.RoomRequestStatus
		wantRoomID   string
		wantNotes    string
		wantRejected string
	}{
		{
			name: "承認",
			run: func(ctx context.Context, s *Service) (*model.RoomRequest, error) {
				return s.Approve(ctx, "req1", model.ApprovalInput{RoomID: "r-a1102", Notes: "ok"})
			},
			wantStatus: model.RoomRequestStatusApproved,
			wantRoomID: "r-a1102",
			wantNotes:  "ok",
		},
		{
			name: "却下",
			run: func(ctx context.Context, s *Service) (*model.RoomRequest, error) {
				return s.Reject(ctx, "req1", "No rooms left")
			},
			wantStatus:   model.RoomRequestStatusRejected,
			wantRejected: "No rooms left",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBackend([]model.Room{roomA1102()}, []model.RoomRequest{
				{ID: "req1", StudentID: "s1", PreferredRoomType: model.RoomTypeDouble, SpecialRequirements: "requesting room A1102", Status: model.RoomRequestStatusPending},
			})
			b.emptyReply = true
			s, _ := newTestService(t, b)
			s.now = func() time.Time { return at }
			// 書き戻した結果が再取得で上書きされないようにする
			b.listErr = errors.New("list unavailable")

			got, err := tt.run(context.Background(), s)
			require.NoError(t, err)
			assert.Equal(t, "req1", got.ID)
			assert.Equal(t, "s1", got.StudentID)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantRoomID, got.AllocatedRoomID)
			assert.Equal(t, tt.wantNotes, got.AdminNotes)
			assert.Equal(t, tt.wantRejected, got.RejectionReason)
			require.NotNil(t, got.ProcessedAt)
			assert.True(t, at.Equal(*got.ProcessedAt))

			cached := s.Requests(tt.wantStatus)
			require.Len(t, cached, 1)
			assert.Equal(t, "req1", cached[0].ID)
			assert.Empty(t, s.Requests(model.RoomRequestStatusPending))

			_, err = s.Reject(context.Background(), "req1", "again")
			assert.ErrorIs(t, err, ErrNotPending)
		})
	}
}

func TestService_CreateRequest(t *testing.T) {
	b := newFakeBackend(nil, nil)
	s, _ := newTestService(t, b)
	ctx := context.Background()

	_, err := s.CreateRequest(ctx, model.NewRoomRequest{StudentID: "s1", PreferredRoomType: "penthouse"})
	assert.ErrorIs(t, err, api.ErrValidation)

	req, err := s.CreateRequest(ctx, model.NewRoomRequest{
		StudentID:           "s1",
		PreferredRoomType:   model.RoomTypeDouble,
		RequestedRoomID:     "r-a1102",
		SpecialRequirements: "  near the library  ",
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoomRequestStatusPending, req.Status)
	assert.Equal(t, "near the library", req.SpecialRequirements)
}
