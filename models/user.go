package models

import (
	"strings"
	"time"
)

// Identity is what the identity provider tells us about the caller.
type Identity struct {
	ID          string `json:"uid"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

// Name falls back to the e-mail local part when no display name is set.
func (i Identity) Name() string {
	if n := strings.TrimSpace(i.DisplayName); n != "" {
		return n
	}
	if local, _, ok := strings.Cut(i.Email, "@"); ok && local != "" {
		return local
	}
	return "Usuario"
}

// User is the directory entry used for search and notification delivery.
type User struct {
	ID          string    `gorm:"primaryKey;size:128" json:"uid"`
	Email       string    `gorm:"size:255" json:"email,omitempty"`
	DisplayName string    `gorm:"size:100" json:"displayName"`
	SearchName  string    `gorm:"size:100;index" json:"-"`
	PhotoURL    string    `json:"photoURL,omitempty"`
	FCMToken    string    `json:"-"`
	LastSeen    time.Time `json:"lastSeen"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func NormalizeSearchName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// UserResponse is what other users may see.
type UserResponse struct {
	ID          string `json:"uid"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		PhotoURL:    u.PhotoURL,
	}
}

type PushTokenRequest struct {
	Token string `json:"token" binding:"required"`
}
