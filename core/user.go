package core

import (
	"context"
	"time"
)

type (
	User struct {
		ID           string    `json:"id"`
		Subject      string    `json:"subject"`
		Login        string    `json:"login,omitempty"`
		Email        string    `json:"email"`
		AvatarURL    string    `json:"avatarUrl,omitempty"`
		Name         string    `json:"name"`
		PasswordHash string    `json:"-"`
		CreatedAt    time.Time `json:"createdAt"`
		UpdatedAt    time.Time `json:"updatedAt"`
	}

	// UserStore persists accounts. Emails are unique among local accounts,
	// subjects are unique among all accounts.
	UserStore interface {
		// CreateUser stores a new user, assigning an ID when empty.
		// It fails with ErrConflict when the email or subject is taken.
		CreateUser(ctx context.Context, user *User) error
		FindUserByEmail(ctx context.Context, email string) (*User, error)
		FindUserBySubject(ctx context.Context, subject string) (*User, error)
	}
)
