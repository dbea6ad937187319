// Package auth は認証ゲートウェイが発行したセッションを扱います
// トークンの発行と署名検証はゲートウェイ側の責務です
package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role は利用者の役割です
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
	RoleWarden  Role = "warden"
	RoleStaff   Role = "staff"
)

// Panel はログイン後に表示するダッシュボードです
type Panel string

const (
	PanelAdmin   Panel = "admin-dashboard"
	PanelStaff   Panel = "staff-dashboard"
	PanelStudent Panel = "student-dashboard"
)

var (
	ErrNoSession    = errors.New("no session: access token is not set")
	ErrInvalidToken = errors.New("invalid access token")
	ErrForbidden    = errors.New("forbidden for current role")
)

var knownRoles = []Role{RoleStudent, RoleAdmin, RoleWarden, RoleStaff}

// Session はゲートウェイのセッションオブジェクトです
type Session struct {
	AccessToken  string
	RefreshToken string
	UserID       string
	Email        string
	Role         Role
	ExpiresAt    time.Time
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Email       string `json:"email"`
	Role        string `json:"role"`
	UserRole    string `json:"user_role"`
	AppMetadata struct {
		Role string `json:"role"`
	} `json:"app_metadata"`
}

// ParseSession はアクセストークンからセッションを組み立てます
func ParseSession(accessToken, refreshToken string) (*Session, error) {
	if accessToken == "" {
		return nil, ErrNoSession
	}

	var claims sessionClaims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: subject claim is empty", ErrInvalidToken)
	}

	s := &Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		UserID:       claims.Subject,
		Email:        claims.Email,
		Role:         resolveRole(claims),
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

// ゲートウェイ標準の role クレームは "authenticated" などになるため最後に見る
func resolveRole(c sessionClaims) Role {
	for _, candidate := range []string{c.UserRole, c.AppMetadata.Role, c.Role} {
		if slices.Contains(knownRoles, Role(candidate)) {
			return Role(candidate)
		}
	}
	return RoleStudent
}

// IsAdmin は管理者権限を持つかを返します
func (s *Session) IsAdmin() bool {
	return s.Role == RoleAdmin || s.Role == RoleWarden
}

// Expired は期限切れかどうかを返します
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// HomePanel は役割に応じた遷移先を返します
func (s *Session) HomePanel() Panel {
	switch s.Role {
	case RoleAdmin, RoleWarden:
		return PanelAdmin
	case RoleStaff:
		return PanelStaff
	default:
		return PanelStudent
	}
}

// Require は現在の役割が roles のいずれかであることを確認します
func (s *Session) Require(roles ...Role) error {
	if slices.Contains(roles, s.Role) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrForbidden, s.Role)
}
