package storage

import (
	"fmt"
	"strings"
	"time"
)

// Prefixes lists the record families, in the order inspection tools show them.
var Prefixes = []string{threadPrefix, messagePrefix, memberPrefix, memberOfPrefix, userPrefix, usernamePrefix}

// Record is a human readable view of one badger entry. Password hashes are never exposed.
type Record struct {
	Key      string
	Kind     string
	EntityID string
	At       time.Time
	Detail   string
}

// DescribeRecord decodes a raw entry according to its key prefix.
func DescribeRecord(key, val []byte) Record {
	k := string(key)
	rec := Record{Key: k, Kind: "RAW", Detail: fmt.Sprintf("Size: %d bytes", len(val))}

	switch {
	case strings.HasPrefix(k, threadPrefix):
		if t, err := decodeThread(val); err == nil {
			rec.Kind, rec.EntityID, rec.At = "THREAD", t.ID.String(), t.UpdatedAt
			rec.Detail = fmt.Sprintf("%q by %s, last message %d", t.DisplayTitle(), t.CreatorID, t.LastMessageID)
		}
	case strings.HasPrefix(k, messagePrefix):
		if m, err := decodeMessage(val); err == nil {
			rec.Kind, rec.EntityID, rec.At = "MESSAGE", fmt.Sprint(m.ID), m.CreatedAt
			rec.Detail = fmt.Sprintf("thread %s from %s: %s", m.ThreadID, m.SenderID, m.Content)
		}
	case strings.HasPrefix(k, memberOfPrefix):
		rec.Kind, rec.Detail = "INDEX", "member-of index"
	case strings.HasPrefix(k, memberPrefix):
		if m, err := decodeMembership(val); err == nil {
			rec.Kind, rec.EntityID, rec.At = "MEMBER", m.UserID.String(), m.JoinedAt
			rec.Detail = fmt.Sprintf("thread %s, last read %s", m.ThreadID, m.LastReadAt.UTC().Format(time.RFC3339Nano))
		}
	case strings.HasPrefix(k, usernamePrefix):
		rec.Kind, rec.EntityID, rec.Detail = "INDEX", string(val), "username index"
	case strings.HasPrefix(k, userPrefix):
		if u, err := decodeUser(val); err == nil {
			rec.Kind, rec.EntityID, rec.At = "USER", u.ID.String(), u.CreatedAt
			rec.Detail = fmt.Sprintf("%s %v", u.Label(), u.Roles)
		}
	case strings.HasPrefix(k, "seq:"):
		rec.Kind, rec.Detail = "SEQUENCE", "id lease"
	}
	return rec
}
