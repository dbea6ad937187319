package allocation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/uma-arai/sbcntr-hostel/internal/api"
	"github.com/uma-arai/sbcntr-hostel/internal/model"
	"go.uber.org/zap"
)

// maxRoomTokenLength より長いトークンは部屋番号として扱いません
const maxRoomTokenLength = 6

// identifierSeparators のいずれかを含むトークンは内部 ID とみなします
const identifierSeparators = "-_./:"

// CandidateSource は候補の部屋をどこから得たかを表します
type CandidateSource string

const (
	SourceRequestedRoomID CandidateSource = "requested_room_id"
	SourceRequirementText CandidateSource = "special_requirements"
	SourceRoomType        CandidateSource = "room_type"
)

// roomTokenRules は部屋番号を探す規則です。先頭の規則ほど優先します
var roomTokenRules = []*regexp.Regexp{
	// "room A1102", "room no. 204", "room number: B12", "room #12"
	regexp.MustCompile(`(?i)\broom(?:\s+(?:no\.?|number))?\s*[#:]?\s*(\S+)`),
	// "rm 204", "rm. 204"
	regexp.MustCompile(`(?i)\brm\.?\s*[#:]?\s*(\S+)`),
	// "#204"
	regexp.MustCompile(`(?:^|\s)#(\S+)`),
	// 単独の "A1102", "204", "12B"
	regexp.MustCompile(`(?:^|\s)([A-Za-z]{0,2}\d{2,4}[A-Za-z]?)(?:[\s,;!?]|\.(?:\s|$)|$)`),
}

// ExtractRoomTokens は自由記述から部屋番号らしいトークンを規則の順に返します
// 区切り文字を含むものや長すぎるものは除外します
func ExtractRoomTokens(text string) []string {
	var tokens []string
	seen := make(map[string]struct{})
	for _, rule := range roomTokenRules {
		for _, m := range rule.FindAllStringSubmatch(text, -1) {
			token := strings.TrimRight(m[1], ".,;!?)")
			if !looksLikeRoomNumber(token) {
				continue
			}
			key := strings.ToUpper(token)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			tokens = append(tokens, token)
		}
	}
	return tokens
}

func looksLikeRoomNumber(token string) bool {
	if token == "" || len(token) > maxRoomTokenLength {
		return false
	}
	if strings.ContainsAny(token, identifierSeparators) {
		return false
	}
	return strings.ContainsAny(token, "0123456789")
}

// RoomLookup は部屋の参照に使うバックエンドです
type RoomLookup interface {
	GetRoom(ctx context.Context, id string) (*model.Room, error)
	FindRoomByNumber(ctx context.Context, number string) (*model.Room, error)
}

// Plan は承認前に組み立てる割り当て案です
type Plan struct {
	Request model.RoomRequest
	// Requested は申請で指定された部屋です。見つからなかった場合は nil です
	Requested *model.Room
	Source    CandidateSource
	Token     string
	// Candidates は割り当て可能な候補です
	Candidates []model.Room
	// Selected は候補がちょうど1件のときに自動で選ばれた部屋です
	Selected *model.Room
	Warning  string
}

// Resolver は申請から候補の部屋を決めます
type Resolver struct {
	lookup RoomLookup
	logger *zap.Logger
}

// NewResolver は Resolver を作成します
func NewResolver(lookup RoomLookup, logger *zap.Logger) *Resolver {
	return &Resolver{lookup: lookup, logger: logger}
}

// Plan は割り当て案を作成します
// rooms は取得済みの部屋一覧で、指定された部屋の検索とタイプ別の候補に使います
func (r *Resolver) Plan(ctx context.Context, req model.RoomRequest, rooms []model.Room) (*Plan, error) {
	plan := &Plan{Request: req}

	requested, source, token, err := r.resolveRequested(ctx, req, rooms)
	if err != nil {
		return nil, err
	}
	plan.Requested = requested
	plan.Source = source
	plan.Token = token

	if requested != nil {
		if requested.IsAllocatable() {
			plan.Candidates = []model.Room{*requested}
			plan.Selected = requested
			return plan, nil
		}
		plan.Warning = unavailableWarning(*requested, req.PreferredRoomType)
		r.logger.Info("Requested room is not allocatable",
			zap.String("request_id", req.ID),
			zap.String("room_number", requested.RoomNumber),
			zap.String("status", string(requested.Status)),
		)
	}

	plan.Source = SourceRoomType
	plan.Candidates = candidatesByType(req, rooms)
	if len(plan.Candidates) == 1 {
		selected := plan.Candidates[0]
		plan.Selected = &selected
	}
	return plan, nil
}

func (r *Resolver) resolveRequested(ctx context.Context, req model.RoomRequest, rooms []model.Room) (*model.Room, CandidateSource, string, error) {
	if req.RequestedRoomID != "" {
		for i := range rooms {
			if rooms[i].ID == req.RequestedRoomID {
				room := rooms[i]
				return &room, SourceRequestedRoomID, "", nil
			}
		}
		room, err := r.lookup.GetRoom(ctx, req.RequestedRoomID)
		switch {
		case err == nil:
			return room, SourceRequestedRoomID, "", nil
		case !errors.Is(err, api.ErrNotFound):
			return nil, "", "", fmt.Errorf("failed to get requested room %s: %w", req.RequestedRoomID, err)
		}
		r.logger.Warn("Requested room id not found", zap.String("room_id", req.RequestedRoomID))
	}

	for _, token := range ExtractRoomTokens(req.SpecialRequirements) {
		for i := range rooms {
			if strings.EqualFold(rooms[i].RoomNumber, token) {
				room := rooms[i]
				return &room, SourceRequirementText, token, nil
			}
		}
		room, err := r.lookup.FindRoomByNumber(ctx, token)
		if err == nil {
			return room, SourceRequirementText, token, nil
		}
		if !errors.Is(err, api.ErrNotFound) {
			return nil, "", "", fmt.Errorf("failed to find room %s: %w", token, err)
		}
	}
	return nil, "", "", nil
}

// candidatesByType は希望タイプで割り当て可能な部屋を返します
// 希望階の部屋を先に、その中では部屋番号順に並べます
func candidatesByType(req model.RoomRequest, rooms []model.Room) []model.Room {
	var out []model.Room
	for _, room := range rooms {
		if room.RoomType == req.PreferredRoomType && room.IsAllocatable() {
			out = append(out, room)
		}
	}
	onFloor := func(room model.Room) bool {
		return req.PreferredFloor != nil && room.Floor == *req.PreferredFloor
	}
	sort.SliceStable(out, func(i, j int) bool {
		if onFloor(out[i]) != onFloor(out[j]) {
			return onFloor(out[i])
		}
		return out[i].RoomNumber < out[j].RoomNumber
	})
	return out
}

func unavailableWarning(room model.Room, fallback model.RoomType) string {
	return fmt.Sprintf("Room %s is not available (occupancy %d/%d, status %s). Showing other %s rooms.",
		room.RoomNumber, room.CurrentOccupancy, room.Capacity, room.Status, fallback)
}
