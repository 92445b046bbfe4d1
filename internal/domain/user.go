package domain

import (
	"strings"
	"time"
)

// User is a registered account. Every user is a notification recipient.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"-"`
}

// Recipient is the minimal view of a user the notifier needs.
type Recipient struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

type RegisterUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r *RegisterUserRequest) Validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return ErrInvalidUsername
	}
	if r.Password == "" || len(r.Password) > MaxPasswordBytes {
		return ErrInvalidPassword
	}
	return nil
}
