package models

import (
	"strings"
	"time"
)

// User represents an authenticated list owner
type User struct {
	ID          string    `json:"id" db:"id"`
	Email       string    `json:"email" db:"email"`
	DisplayName string    `json:"display_name" db:"display_name"`
	Provider    string    `json:"provider" db:"provider"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Label returns the best human readable label for the user
func (u *User) Label() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.Email != "" {
		return u.Email
	}
	return u.ID
}

// Identity providers known to the application.
const (
	ProviderToken    = "token"
	ProviderTelegram = "telegram"
)

// Session carries the authenticated identity into every list operation.
// The zero value is unauthenticated.
type Session struct {
	UserID string
	Email  string
	ListID string
}

// Authenticated reports whether the session carries a user identity.
func (s Session) Authenticated() bool {
	return strings.TrimSpace(s.UserID) != ""
}

// Collection returns the item collection the session operates on.
func (s Session) Collection() CollectionPath {
	list := s.ListID
	if list == "" {
		list = DefaultListID
	}
	return CollectionPath{UserID: s.UserID, ListID: list}
}
