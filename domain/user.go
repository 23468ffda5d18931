package domain

import (
	"slices"
	"strconv"
	"time"
)

type UserID uint64

func (id UserID) String() string { return strconv.FormatUint(uint64(id), 10) }

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the identity known to the messaging core.
// Authentication itself is handled at the transport boundary.
type User struct {
	ID           UserID
	Username     string
	DisplayName  string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
}

// Label renders "DisplayName (username)", or the bare username when no display name is set.
func (u User) Label() string {
	if u.DisplayName == "" || u.DisplayName == u.Username {
		return u.Username
	}
	return u.DisplayName + " (" + u.Username + ")"
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID    UserID
	Roles []string
}

// IsAdmin reports whether the actor holds the elevated role.
func (a Actor) IsAdmin() bool {
	return slices.Contains(a.Roles, RoleAdmin)
}
