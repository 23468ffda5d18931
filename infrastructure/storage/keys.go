package storage

import (
	"comms-lab/domain"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Every numeric component is zero padded so that badger's lexicographic
// key order matches numeric order. Message keys therefore sort by
// (createdAt, id) inside a thread.
const (
	threadPrefix   = "thread:"
	messagePrefix  = "msg:"
	memberPrefix   = "member:"
	memberOfPrefix = "member-of:"
	userPrefix     = "user:"
	usernamePrefix = "username:"

	SeqThread  = "seq:thread"
	SeqMessage = "seq:message"
	SeqUser    = "seq:user"
)

func threadKey(id domain.ThreadID) []byte {
	return fmt.Appendf(nil, "%s%020d", threadPrefix, id)
}

func threadMessagesPrefix(threadID domain.ThreadID) []byte {
	return fmt.Appendf(nil, "%s%020d:", messagePrefix, threadID)
}

func messageKey(m domain.Message) []byte {
	return fmt.Appendf(threadMessagesPrefix(m.ThreadID), "%019d:%020d", m.CreatedAt.UnixNano(), m.ID)
}

// messagesAfterKey is the first possible key strictly after the given instant.
func messagesAfterKey(threadID domain.ThreadID, at time.Time) []byte {
	return fmt.Appendf(threadMessagesPrefix(threadID), "%019d", at.UnixNano()+1)
}

// threadMessagesEnd sorts after every message key of the thread, used to seek in reverse.
func threadMessagesEnd(threadID domain.ThreadID) []byte {
	return append(threadMessagesPrefix(threadID), '~')
}

func threadMembersPrefix(threadID domain.ThreadID) []byte {
	return fmt.Appendf(nil, "%s%020d:", memberPrefix, threadID)
}

func memberKey(threadID domain.ThreadID, userID domain.UserID) []byte {
	return fmt.Appendf(threadMembersPrefix(threadID), "%020d", userID)
}

func userThreadsPrefix(userID domain.UserID) []byte {
	return fmt.Appendf(nil, "%s%020d:", memberOfPrefix, userID)
}

func memberOfKey(userID domain.UserID, threadID domain.ThreadID) []byte {
	return fmt.Appendf(userThreadsPrefix(userID), "%020d", threadID)
}

func userKey(id domain.UserID) []byte {
	return fmt.Appendf(nil, "%s%020d", userPrefix, id)
}

func usernameKey(username string) []byte {
	return []byte(usernamePrefix + strings.ToLower(username))
}

// threadIDFromMemberOfKey extracts the trailing thread id of a member-of index key.
func threadIDFromMemberOfKey(key []byte) (domain.ThreadID, error) {
	s := string(key)
	idx := strings.LastIndexByte(s, ':')
	if idx < 0 {
		return 0, fmt.Errorf("malformed index key %q", s)
	}
	id, err := strconv.ParseUint(s[idx+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed index key %q: %w", s, err)
	}
	return domain.ThreadID(id), nil
}
