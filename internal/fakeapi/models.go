package fakeapi

import (
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// naiveTimeLayout matches the zone-less datetimes the real API emits
const naiveTimeLayout = "2006-01-02T15:04:05.999999"

// User is a registered account
type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	Email        string    `gorm:"uniqueIndex;not null"`
	Username     string    `gorm:"uniqueIndex;not null"`
	FullName     *string   `gorm:"type:text"`
	PasswordHash string    `gorm:"type:text"` // empty for Google-only accounts
	IsActive     bool      `gorm:"not null"`
	IsVerified   bool      `gorm:"not null"`
	AvatarURL    *string   `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

// RefreshToken is an opaque refresh token issued alongside an access token
type RefreshToken struct {
	Token     string    `gorm:"primaryKey;type:varchar(26)"`
	UserID    int64     `gorm:"index;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the token if it's empty
func (r *RefreshToken) BeforeCreate(tx *gorm.DB) error {
	if r.Token == "" {
		r.Token = ulid.Make().String()
	}
	return nil
}

// autoMigrate creates the fake's tables
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &RefreshToken{})
}

// userResponse is the wire form of a user
type userResponse struct {
	ID          int64   `json:"id"`
	Email       string  `json:"email"`
	Username    string  `json:"username"`
	FullName    *string `json:"full_name"`
	IsActive    bool    `json:"is_active"`
	IsVerified  bool    `json:"is_verified"`
	TOTPEnabled bool    `json:"totp_enabled"`
	AvatarURL   *string `json:"avatar_url"`
	CreatedAt   string  `json:"created_at"`
}

func toUserResponse(u *User) userResponse {
	return userResponse{
		ID:         u.ID,
		Email:      u.Email,
		Username:   u.Username,
		FullName:   u.FullName,
		IsActive:   u.IsActive,
		IsVerified: u.IsVerified,
		AvatarURL:  u.AvatarURL,
		CreatedAt:  u.CreatedAt.UTC().Format(naiveTimeLayout),
	}
}

// tokenResponse is the body returned by every login endpoint
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}
