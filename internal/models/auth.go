package models

import "github.com/golang-jwt/jwt/v5"

// LoginRequest is the credential payload for /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest creates a new account. Role may be USER or LAWYER;
// admin accounts are created through the admin API instead.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name" binding:"required"`
	Role     string `json:"role" binding:"omitempty,oneof=USER LAWYER"`
}

// RefreshTokenRequest exchanges a refresh token for a new pair.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// LoginResponse carries a freshly issued token pair.
type LoginResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int64    `json:"expires_in"`
	User         UserInfo `json:"user"`
}

// RefreshTokenResponse carries the rotated token pair.
type RefreshTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// UserInfo is the public shape of an account embedded in auth responses.
type UserInfo struct {
	ID         string   `json:"id"`
	Email      string   `json:"email"`
	FullName   string   `json:"full_name"`
	Role       UserRole `json:"role"`
	IsApproved bool     `json:"is_approved"`
}

// NewUserInfo projects a User into its auth response shape.
func NewUserInfo(u *User) UserInfo {
	return UserInfo{
		ID:         u.ID,
		Email:      u.Email,
		FullName:   u.FullName,
		Role:       u.Role,
		IsApproved: u.IsApproved,
	}
}

// JWTClaims is the access token payload.
type JWTClaims struct {
	UserID     string   `json:"user_id"`
	Email      string   `json:"email"`
	Role       UserRole `json:"role"`
	IsApproved bool     `json:"is_approved"`
	jwt.RegisteredClaims
}
