package domain

import "time"

// Membership is a user's participation record in a thread.
// LastReadAt is the read cursor and never moves backward.
type Membership struct {
	ThreadID   ThreadID
	UserID     UserID
	JoinedAt   time.Time
	LastReadAt time.Time
}

// Advance applies the monotonic cursor rule and reports whether the cursor moved.
func (m *Membership) Advance(at time.Time) bool {
	if !at.After(m.LastReadAt) {
		return false
	}
	m.LastReadAt = at
	return true
}

type MembershipAction string

const (
	MembershipAdded   MembershipAction = "added"
	MembershipRemoved MembershipAction = "removed"
)
