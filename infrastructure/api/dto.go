package api

import (
	"comms-lab/domain"
	"comms-lab/domain/event"
	"comms-lab/services"
	"encoding/json"
	"time"

	"github.com/samber/lo"
)

type credentialsRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type createThreadRequest struct {
	Title   string          `json:"title"`
	Members json.RawMessage `json:"members"`
}

type createMessageRequest struct {
	Content string `json:"content"`
}

type addMemberRequest struct {
	UserID uint64 `json:"userId"`
}

type memberResponse struct {
	ID          uint64 `json:"id"`
	DisplayName string `json:"displayName"`
	JoinedAt    string `json:"joinedAt"`
}

type threadResponse struct {
	ID          uint64                 `json:"id"`
	Title       string                 `json:"title"`
	CreatorID   uint64                 `json:"creatorId"`
	CreatedAt   string                 `json:"createdAt"`
	UpdatedAt   string                 `json:"updatedAt"`
	Members     []memberResponse       `json:"members"`
	LastMessage *event.MessagePayload  `json:"lastMessage"`
	Preview     string                 `json:"preview"`
	UnreadCount int                    `json:"unreadCount"`
	Messages    []event.MessagePayload `json:"messages,omitempty"`
}

type membershipResponse struct {
	ThreadID   uint64 `json:"threadId"`
	UserID     uint64 `json:"userId"`
	JoinedAt   string `json:"joinedAt"`
	LastReadAt string `json:"lastReadAt"`
}

type userResponse struct {
	ID          uint64   `json:"id"`
	Username    string   `json:"username"`
	DisplayName string   `json:"displayName"`
	Label       string   `json:"label"`
	Roles       []string `json:"roles"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func toSummary(s services.ThreadSummary) threadResponse {
	res := threadResponse{
		ID:        uint64(s.Thread.ID),
		Title:     s.Thread.DisplayTitle(),
		CreatorID: uint64(s.Thread.CreatorID),
		CreatedAt: formatTime(s.Thread.CreatedAt),
		UpdatedAt: formatTime(s.Thread.UpdatedAt),
		Members: lo.Map(s.Members, func(m services.MemberView, _ int) memberResponse {
			return memberResponse{ID: uint64(m.ID), DisplayName: m.DisplayName, JoinedAt: formatTime(m.JoinedAt)}
		}),
		Preview:     s.Preview,
		UnreadCount: s.UnreadCount,
	}
	if s.LastMessage != nil {
		res.LastMessage = lo.ToPtr(s.LastMessage.Payload())
	}
	return res
}

func toDetail(d services.ThreadDetail) threadResponse {
	res := toSummary(d.ThreadSummary)
	res.Messages = toMessages(d.Messages)
	return res
}

func toMessages(messages []services.MessageView) []event.MessagePayload {
	return lo.Map(messages, func(m services.MessageView, _ int) event.MessagePayload {
		return m.Payload()
	})
}

func toMembership(m domain.Membership) membershipResponse {
	return membershipResponse{
		ThreadID:   uint64(m.ThreadID),
		UserID:     uint64(m.UserID),
		JoinedAt:   formatTime(m.JoinedAt),
		LastReadAt: formatTime(m.LastReadAt),
	}
}

func toUser(u domain.User) userResponse {
	return userResponse{
		ID:          uint64(u.ID),
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Label:       u.Label(),
		Roles:       u.Roles,
	}
}
