package storage

import (
	"comms-lab/domain"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Records are stored with the protobuf wire format. Field numbers below are
// part of the on-disk format and must never be reused.

const (
	threadFieldID            protowire.Number = 1
	threadFieldTitle         protowire.Number = 2
	threadFieldCreator       protowire.Number = 3
	threadFieldCreatedAt     protowire.Number = 4
	threadFieldUpdatedAt     protowire.Number = 5
	threadFieldLastMessageID protowire.Number = 6

	messageFieldID        protowire.Number = 1
	messageFieldThread    protowire.Number = 2
	messageFieldSender    protowire.Number = 3
	messageFieldContent   protowire.Number = 4
	messageFieldCreatedAt protowire.Number = 5

	memberFieldThread     protowire.Number = 1
	memberFieldUser       protowire.Number = 2
	memberFieldJoinedAt   protowire.Number = 3
	memberFieldLastReadAt protowire.Number = 4

	userFieldID           protowire.Number = 1
	userFieldUsername     protowire.Number = 2
	userFieldDisplayName  protowire.Number = 3
	userFieldPasswordHash protowire.Number = 4
	userFieldRole         protowire.Number = 5
	userFieldCreatedAt    protowire.Number = 6
)

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendTime(b []byte, num protowire.Number, t time.Time) []byte {
	if t.IsZero() {
		return b
	}
	return appendUint(b, num, uint64(t.UnixNano()))
}

func toTime(v uint64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, int64(v)).UTC()
}

// fieldDecoder consumes the value of one field and returns the number of bytes
// read, or 0 when the field is unknown and must be skipped.
type fieldDecoder func(num protowire.Number, typ protowire.Type, b []byte) int

func decode(b []byte, fn fieldDecoder) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		m := fn(num, typ, b)
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return protowire.ParseError(m)
		}
		b = b[m:]
	}
	return nil
}

func consumeUint(typ protowire.Type, b []byte, dst *uint64) int {
	if typ != protowire.VarintType {
		return 0
	}
	v, n := protowire.ConsumeVarint(b)
	if n > 0 {
		*dst = v
	}
	return n
}

func consumeString(typ protowire.Type, b []byte, dst *string) int {
	if typ != protowire.BytesType {
		return 0
	}
	v, n := protowire.ConsumeString(b)
	if n > 0 {
		*dst = v
	}
	return n
}

func encodeThread(t domain.Thread) []byte {
	var b []byte
	b = appendUint(b, threadFieldID, uint64(t.ID))
	b = appendString(b, threadFieldTitle, t.Title)
	b = appendUint(b, threadFieldCreator, uint64(t.CreatorID))
	b = appendTime(b, threadFieldCreatedAt, t.CreatedAt)
	b = appendTime(b, threadFieldUpdatedAt, t.UpdatedAt)
	return appendUint(b, threadFieldLastMessageID, uint64(t.LastMessageID))
}

func decodeThread(b []byte) (domain.Thread, error) {
	var id, creator, createdAt, updatedAt, lastMessageID uint64
	var title string
	err := decode(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case threadFieldID:
			return consumeUint(typ, b, &id)
		case threadFieldTitle:
			return consumeString(typ, b, &title)
		case threadFieldCreator:
			return consumeUint(typ, b, &creator)
		case threadFieldCreatedAt:
			return consumeUint(typ, b, &createdAt)
		case threadFieldUpdatedAt:
			return consumeUint(typ, b, &updatedAt)
		case threadFieldLastMessageID:
			return consumeUint(typ, b, &lastMessageID)
		}
		return 0
	})
	if err != nil {
		return domain.Thread{}, err
	}
	return domain.Thread{
		ID:            domain.ThreadID(id),
		Title:         title,
		CreatorID:     domain.UserID(creator),
		CreatedAt:     toTime(createdAt),
		UpdatedAt:     toTime(updatedAt),
		LastMessageID: domain.MessageID(lastMessageID),
	}, nil
}

func encodeMessage(m domain.Message) []byte {
	var b []byte
	b = appendUint(b, messageFieldID, uint64(m.ID))
	b = appendUint(b, messageFieldThread, uint64(m.ThreadID))
	b = appendUint(b, messageFieldSender, uint64(m.SenderID))
	b = appendString(b, messageFieldContent, m.Content)
	return appendTime(b, messageFieldCreatedAt, m.CreatedAt)
}

func decodeMessage(b []byte) (domain.Message, error) {
	var id, thread, sender, createdAt uint64
	var content string
	err := decode(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case messageFieldID:
			return consumeUint(typ, b, &id)
		case messageFieldThread:
			return consumeUint(typ, b, &thread)
		case messageFieldSender:
			return consumeUint(typ, b, &sender)
		case messageFieldContent:
			return consumeString(typ, b, &content)
		case messageFieldCreatedAt:
			return consumeUint(typ, b, &createdAt)
		}
		return 0
	})
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        domain.MessageID(id),
		ThreadID:  domain.ThreadID(thread),
		SenderID:  domain.UserID(sender),
		Content:   content,
		CreatedAt: toTime(createdAt),
	}, nil
}

func encodeMembership(m domain.Membership) []byte {
	var b []byte
	b = appendUint(b, memberFieldThread, uint64(m.ThreadID))
	b = appendUint(b, memberFieldUser, uint64(m.UserID))
	b = appendTime(b, memberFieldJoinedAt, m.JoinedAt)
	return appendTime(b, memberFieldLastReadAt, m.LastReadAt)
}

func decodeMembership(b []byte) (domain.Membership, error) {
	var thread, user, joinedAt, lastReadAt uint64
	err := decode(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case memberFieldThread:
			return consumeUint(typ, b, &thread)
		case memberFieldUser:
			return consumeUint(typ, b, &user)
		case memberFieldJoinedAt:
			return consumeUint(typ, b, &joinedAt)
		case memberFieldLastReadAt:
			return consumeUint(typ, b, &lastReadAt)
		}
		return 0
	})
	if err != nil {
		return domain.Membership{}, err
	}
	return domain.Membership{
		ThreadID:   domain.ThreadID(thread),
		UserID:     domain.UserID(user),
		JoinedAt:   toTime(joinedAt),
		LastReadAt: toTime(lastReadAt),
	}, nil
}

func encodeUser(u domain.User) []byte {
	var b []byte
	b = appendUint(b, userFieldID, uint64(u.ID))
	b = appendString(b, userFieldUsername, u.Username)
	b = appendString(b, userFieldDisplayName, u.DisplayName)
	b = appendString(b, userFieldPasswordHash, u.PasswordHash)
	for _, role := range u.Roles {
		b = appendString(b, userFieldRole, role)
	}
	return appendTime(b, userFieldCreatedAt, u.CreatedAt)
}

func decodeUser(b []byte) (domain.User, error) {
	var id, createdAt uint64
	var user domain.User
	err := decode(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case userFieldID:
			return consumeUint(typ, b, &id)
		case userFieldUsername:
			return consumeString(typ, b, &user.Username)
		case userFieldDisplayName:
			return consumeString(typ, b, &user.DisplayName)
		case userFieldPasswordHash:
			return consumeString(typ, b, &user.PasswordHash)
		case userFieldRole:
			var role string
			n := consumeString(typ, b, &role)
			if n > 0 {
				user.Roles = append(user.Roles, role)
			}
			return n
		case userFieldCreatedAt:
			return consumeUint(typ, b, &createdAt)
		}
		return 0
	})
	if err != nil {
		return domain.User{}, err
	}
	user.ID = domain.UserID(id)
	user.CreatedAt = toTime(createdAt)
	return user, nil
}
