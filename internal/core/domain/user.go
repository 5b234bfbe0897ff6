package domain

import (
	"errors"
	"time"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrUserNotFound     = errors.New("user not found")
	ErrUserExists       = errors.New("user already exists")
	ErrInvalidToken     = errors.New("invalid token")
	ErrIDSpaceExhausted = errors.New("could not allocate a free private id")
	ErrArtifactNotFound = errors.New("qr artifact not found")
)

// User is the anonymous identity record, keyed by its private ID.
// Token is the capability embedded in the QR code and must never reach a
// client-visible response.
type User struct {
	ID        string     `json:"id" bson:"_id"`
	Token     string     `json:"token" bson:"token"`
	Email     *string    `json:"email" bson:"email"`
	Pseudo    *string    `json:"pseudo" bson:"pseudo"`
	QRFile    string     `json:"qrFile,omitempty" bson:"qr_file,omitempty"`
	CreatedAt time.Time  `json:"createdAt" bson:"created_at"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty" bson:"updated_at,omitempty"`
}

// Clone returns a deep copy so callers can mutate without touching stored state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Email != nil {
		v := *u.Email
		c.Email = &v
	}
	if u.Pseudo != nil {
		v := *u.Pseudo
		c.Pseudo = &v
	}
	if u.UpdatedAt != nil {
		v := *u.UpdatedAt
		c.UpdatedAt = &v
	}
	return &c
}

// ProfileField names a user-editable field.
type ProfileField string

const (
	FieldEmail  ProfileField = "email"
	FieldPseudo ProfileField = "pseudo"
)

// Set assigns value to the field and stamps UpdatedAt.
func (u *User) Set(field ProfileField, value string, at time.Time) {
	v := value
	switch field {
	case FieldEmail:
		u.Email = &v
	case FieldPseudo:
		u.Pseudo = &v
	}
	ts := at
	u.UpdatedAt = &ts
}
