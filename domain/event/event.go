// Package event defines what the dispatcher pushes to live connections.
// Every event mirrors state that is already durable.
package event

import (
	"comms-lab/domain"
	"time"
)

type Type string

const (
	TypeNewMessage       Type = "new_message"
	TypeUnreadUpdate     Type = "unread_update"
	TypeMembershipChange Type = "membership_change"
)

// Event is delivered to the live connections of its target users only.
type Event interface {
	Type() Type
	Targets() []domain.UserID
}

type Sender struct {
	ID          domain.UserID
	DisplayName string
}

// NewMessage goes to every member of the thread at send time, sender included.
type NewMessage struct {
	Message   domain.Message
	Sender    Sender
	Receivers []domain.UserID
}

func (e NewMessage) Type() Type               { return TypeNewMessage }
func (e NewMessage) Targets() []domain.UserID { return e.Receivers }

// UnreadUpdate carries one member's freshly computed unread count.
type UnreadUpdate struct {
	ThreadID domain.ThreadID
	UserID   domain.UserID
	Count    int
}

func (e UnreadUpdate) Type() Type               { return TypeUnreadUpdate }
func (e UnreadUpdate) Targets() []domain.UserID { return []domain.UserID{e.UserID} }

// MembershipChange is delivered to the affected user only.
type MembershipChange struct {
	ThreadID domain.ThreadID
	UserID   domain.UserID
	Action   domain.MembershipAction
	At       time.Time
}

func (e MembershipChange) Type() Type               { return TypeMembershipChange }
func (e MembershipChange) Targets() []domain.UserID { return []domain.UserID{e.UserID} }
