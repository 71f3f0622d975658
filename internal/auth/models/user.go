package models

import (
	"strings"
	"time"

	id "stagepass/pkg/domain"
	dErrors "stagepass/pkg/domain-errors"
)

// User is an account holder. The national ID number is kept as the holder
// snapshot source for issued tickets and is matched against verifier claims
// at the venue.
type User struct {
	ID           id.UserID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	NationalID   string    `json:"-"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewUser validates and builds an account. The password hash is produced by
// the service; models never see plaintext.
func NewUser(userID id.UserID, name, email, nationalID string, passwordHash []byte, now time.Time) (*User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	nationalID = strings.ToUpper(strings.TrimSpace(nationalID))

	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "name is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "a valid email is required")
	}
	if nationalID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "national id number is required")
	}
	if len(passwordHash) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "password hash is required")
	}

	return &User{
		ID:           userID,
		Name:         name,
		Email:        email,
		NationalID:   nationalID,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Clone returns a deep copy.
func (u *User) Clone() *User {
	clone := *u
	clone.PasswordHash = append([]byte(nil), u.PasswordHash...)
	return &clone
}
