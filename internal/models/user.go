package models

import "time"

type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	FullName     string
	RoleID       string
	RoleName     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Session struct {
	ID               string
	UserID           string
	RefreshTokenHash []byte
	UserAgent        string
	IPAddress        string
	CreatedAt        time.Time
	ExpiresAt        time.Time
}
