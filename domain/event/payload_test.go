package event

import (
	"comms-lab/domain"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncode_NewMessage(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	evt := NewMessage{
		Message:   domain.Message{ID: 7, ThreadID: 3, SenderID: 1, Content: "hello", CreatedAt: at},
		Sender:    Sender{ID: 1, DisplayName: "Alice (alice)"},
		Receivers: []domain.UserID{1, 2},
	}

	bytes, err := Encode(evt)
	req.NoError(err)

	var decoded map[string]any
	req.NoError(json.Unmarshal(bytes, &decoded))
	req.Equal("new_message", decoded["type"])
	message := decoded["message"].(map[string]any)
	req.EqualValues(7, message["id"])
	req.EqualValues(3, message["threadId"])
	req.Equal("hello", message["content"])
	req.Equal("2026-03-01T10:00:00Z", message["createdAt"])
	sender := message["sender"].(map[string]any)
	req.EqualValues(1, sender["id"])
	req.Equal("Alice (alice)", sender["displayName"])
}

func TestEncode_UnreadUpdate(t *testing.T) {
	req := require.New(t)

	bytes, err := Encode(UnreadUpdate{ThreadID: 4, UserID: 2, Count: 5})
	req.NoError(err)
	req.JSONEq(`{"type":"unread_update","threadId":4,"unreadCount":5}`, string(bytes))
}

func TestEncode_MembershipChange(t *testing.T) {
	req := require.New(t)

	bytes, err := Encode(MembershipChange{ThreadID: 9, UserID: 2, Action: domain.MembershipRemoved})
	req.NoError(err)
	req.JSONEq(`{"type":"membership_change","threadId":9,"action":"removed"}`, string(bytes))
}

func TestEvent_Targets(t *testing.T) {
	req := require.New(t)
	req.Equal([]domain.UserID{2}, UnreadUpdate{UserID: 2}.Targets())
	req.Equal([]domain.UserID{5}, MembershipChange{UserID: 5}.Targets())
	req.Equal([]domain.UserID{1, 3}, NewMessage{Receivers: []domain.UserID{1, 3}}.Targets())
}
