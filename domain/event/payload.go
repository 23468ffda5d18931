package event

import (
	"encoding/json"
	"fmt"
	"time"
)

type senderPayload struct {
	ID          uint64 `json:"id"`
	DisplayName string `json:"displayName"`
}

// MessagePayload is the client-facing shape of a message, also served by the HTTP API.
type MessagePayload struct {
	ID        uint64        `json:"id"`
	ThreadID  uint64        `json:"threadId"`
	Sender    senderPayload `json:"sender"`
	Content   string        `json:"content"`
	CreatedAt string        `json:"createdAt"`
}

type newMessagePayload struct {
	Type    Type           `json:"type"`
	Message MessagePayload `json:"message"`
}

type unreadUpdatePayload struct {
	Type        Type   `json:"type"`
	ThreadID    uint64 `json:"threadId"`
	UnreadCount int    `json:"unreadCount"`
}

type membershipChangePayload struct {
	Type     Type   `json:"type"`
	ThreadID uint64 `json:"threadId"`
	Action   string `json:"action"`
}

// ToMessagePayload renders a message with its sender for clients.
func ToMessagePayload(e NewMessage) MessagePayload {
	return MessagePayload{
		ID:       uint64(e.Message.ID),
		ThreadID: uint64(e.Message.ThreadID),
		Sender: senderPayload{
			ID:          uint64(e.Sender.ID),
			DisplayName: e.Sender.DisplayName,
		},
		Content:   e.Message.Content,
		CreatedAt: e.Message.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// Encode serializes an event once, the same bytes are pushed to every target connection.
func Encode(evt Event) ([]byte, error) {
	switch e := evt.(type) {
	case NewMessage:
		return json.Marshal(newMessagePayload{Type: e.Type(), Message: ToMessagePayload(e)})
	case UnreadUpdate:
		return json.Marshal(unreadUpdatePayload{
			Type:        e.Type(),
			ThreadID:    uint64(e.ThreadID),
			UnreadCount: e.Count,
		})
	case MembershipChange:
		return json.Marshal(membershipChangePayload{
			Type:     e.Type(),
			ThreadID: uint64(e.ThreadID),
			Action:   string(e.Action),
		})
	default:
		return nil, fmt.Errorf("unsupported event %T", evt)
	}
}
