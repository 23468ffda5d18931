package services

import (
	"comms-lab/contract"
	"comms-lab/domain"
	"comms-lab/domain/event"
	"comms-lab/errors"
	"comms-lab/infrastructure/storage"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"
)

// PreviewLength is the number of runes of the last message shown in thread lists.
const PreviewLength = 100

type ICommsService interface {
	CreateThread(actor domain.Actor, title string, memberIDs []domain.UserID) (ThreadDetail, error)
	ListThreads(actor domain.Actor) ([]ThreadSummary, error)
	GetThread(actor domain.Actor, threadID domain.ThreadID) (ThreadDetail, error)
	CreateMessage(actor domain.Actor, threadID domain.ThreadID, content string) (MessageView, error)
	JoinThread(threadID domain.ThreadID, userID domain.UserID) (domain.Membership, error)
	AddMember(actor domain.Actor, threadID domain.ThreadID, userID domain.UserID) (domain.Membership, error)
	AdminJoin(actor domain.Actor, threadID domain.ThreadID) (domain.Membership, error)
	LeaveThread(threadID domain.ThreadID, userID domain.UserID) (bool, error)
	RemoveMember(actor domain.Actor, threadID domain.ThreadID, userID domain.UserID) (bool, error)
	MarkRead(threadID domain.ThreadID, userID domain.UserID) (bool, error)
	UnreadCount(threadID domain.ThreadID, userID domain.UserID) (int, error)
	TotalUnread(userID domain.UserID) (int, error)
	RecentMessages(actor domain.Actor, threadID domain.ThreadID, limit int) ([]MessageView, error)
	ListUsers() ([]domain.User, error)
}

// MessageView is a message with the sender rendered for clients.
type MessageView struct {
	domain.Message
	Sender event.Sender
}

// Payload is the client-facing JSON shape, shared with the WebSocket push.
func (m MessageView) Payload() event.MessagePayload {
	return event.ToMessagePayload(event.NewMessage{Message: m.Message, Sender: m.Sender})
}

type MemberView struct {
	ID          domain.UserID
	DisplayName string
	JoinedAt    time.Time
}

type ThreadSummary struct {
	Thread      domain.Thread
	Members     []MemberView
	LastMessage *MessageView
	// Preview is the first PreviewLength runes of the last message.
	Preview     string
	UnreadCount int
}

type ThreadDetail struct {
	ThreadSummary
	Messages []MessageView
}

// CommsService authorizes operations, persists through the stores and only then
// hands events to the dispatcher. Delivery never affects the result of an operation.
type CommsService struct {
	log              *slog.Logger
	threads          storage.IThreadRepository
	messages         storage.IMessageRepository
	memberships      storage.IMembershipRepository
	users            storage.IUserRepository
	unread           IUnreadCalculator
	dispatcher       contract.IDispatcher
	censor           contract.Censor
	maxContentLength int
	limitMessages    int
	now              func() time.Time
}

type CommsConfig struct {
	MaxContentLength int
	LimitMessages    int
}

func NewCommsService(log *slog.Logger, threads storage.IThreadRepository, messages storage.IMessageRepository,
	memberships storage.IMembershipRepository, users storage.IUserRepository, unread IUnreadCalculator,
	dispatcher contract.IDispatcher, censor contract.Censor, config CommsConfig) *CommsService {
	return &CommsService{
		log:              log,
		threads:          threads,
		messages:         messages,
		memberships:      memberships,
		users:            users,
		unread:           unread,
		dispatcher:       dispatcher,
		censor:           censor,
		maxContentLength: config.MaxContentLength,
		limitMessages:    config.LimitMessages,
		now:              time.Now,
	}
}

// CreateThread creates a thread owned by the actor. Unknown member ids are skipped,
// every added member is notified.
func (s *CommsService) CreateThread(actor domain.Actor, title string, memberIDs []domain.UserID) (ThreadDetail, error) {
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) > 200 {
		return ThreadDetail{}, fmt.Errorf("%w: title is longer than 200 characters", errors.ErrValidation)
	}
	thread, err := s.threads.Create(title, actor.ID, s.now())
	if err != nil {
		return ThreadDetail{}, err
	}
	s.log.Info("Thread created", "thread_id", thread.ID, "creator_id", actor.ID)

	for _, userID := range lo.Uniq(memberIDs) {
		if userID == actor.ID {
			continue
		}
		if _, err := s.users.Get(userID); err != nil {
			if stderrors.Is(err, errors.ErrNotFound) {
				s.log.Debug("Skipping unknown member", "thread_id", thread.ID, "user_id", userID)
				continue
			}
			return ThreadDetail{}, err
		}
		if _, err := s.JoinThread(thread.ID, userID); err != nil {
			return ThreadDetail{}, err
		}
	}
	return s.detail(actor, thread)
}

// ListThreads returns the actor's threads, or every thread for an admin, most recent first.
func (s *CommsService) ListThreads(actor domain.Actor) ([]ThreadSummary, error) {
	var threads []domain.Thread
	var err error
	if actor.IsAdmin() {
		threads, err = s.threads.List()
	} else {
		var ids []domain.ThreadID
		if ids, err = s.memberships.ThreadsOf(actor.ID); err == nil {
			threads, err = s.threads.ListByIDs(ids)
		}
	}
	if err != nil {
		return nil, err
	}

	summaries := make([]ThreadSummary, 0, len(threads))
	for _, thread := range threads {
		summary, err := s.summary(actor, thread)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *CommsService) GetThread(actor domain.Actor, threadID domain.ThreadID) (ThreadDetail, error) {
	thread, err := s.authorizeRead(actor, threadID)
	if err != nil {
		return ThreadDetail{}, err
	}
	return s.detail(actor, thread)
}

// CreateMessage persists the message then fans out a new_message to every member
// and an unread_update to every member but the sender.
func (s *CommsService) CreateMessage(actor domain.Actor, threadID domain.ThreadID, content string) (MessageView, error) {
	if _, err := s.authorizeRead(actor, threadID); err != nil {
		return MessageView{}, err
	}
	content, ok := domain.NormalizeContent(content)
	if !ok {
		return MessageView{}, fmt.Errorf("%w: content is required", errors.ErrValidation)
	}
	if s.maxContentLength > 0 && utf8.RuneCountInString(content) > s.maxContentLength {
		return MessageView{}, fmt.Errorf("%w: content is longer than %d characters", errors.ErrValidation, s.maxContentLength)
	}
	if s.censor != nil {
		content = s.censor.Censor(content)
	}

	message, err := s.messages.Append(threadID, actor.ID, content)
	if err != nil {
		return MessageView{}, err
	}
	view := MessageView{Message: message, Sender: s.sender(actor.ID)}

	// The write is durable from here on, nothing below may fail the operation
	members, err := s.memberships.Members(threadID)
	if err != nil {
		s.log.Error("Unable to list members for fan-out", "thread_id", threadID, "error", err)
		return view, nil
	}
	receivers := lo.Map(members, func(m domain.Membership, _ int) domain.UserID { return m.UserID })
	s.dispatcher.Dispatch(event.NewMessage{Message: message, Sender: view.Sender, Receivers: receivers})

	for _, member := range members {
		if member.UserID == actor.ID {
			continue
		}
		count, err := s.unread.Unread(threadID, member.UserID)
		if err != nil {
			s.log.Debug("Skipping unread update", "thread_id", threadID, "user_id", member.UserID, "error", err)
			continue
		}
		s.dispatcher.Dispatch(event.UnreadUpdate{ThreadID: threadID, UserID: member.UserID, Count: count})
	}
	return view, nil
}

// JoinThread makes the user a member with a read cursor at now, so earlier history
// is never unread for them. Joining twice returns the existing membership.
func (s *CommsService) JoinThread(threadID domain.ThreadID, userID domain.UserID) (domain.Membership, error) {
	at := s.now()
	membership, created, err := s.memberships.Join(threadID, userID, at)
	if err != nil {
		return domain.Membership{}, err
	}
	if created {
		s.log.Info("Member joined", "thread_id", threadID, "user_id", userID)
		s.dispatcher.Dispatch(event.MembershipChange{
			ThreadID: threadID, UserID: userID, Action: domain.MembershipAdded, At: at,
		})
	}
	return membership, nil
}

// AddMember is restricted to the thread owner and admins.
func (s *CommsService) AddMember(actor domain.Actor, threadID domain.ThreadID, userID domain.UserID) (domain.Membership, error) {
	thread, err := s.threads.Get(threadID)
	if err != nil {
		return domain.Membership{}, err
	}
	if !thread.IsCreator(actor.ID) && !actor.IsAdmin() {
		return domain.Membership{}, fmt.Errorf("%w: only the owner or an admin can add members", errors.ErrForbidden)
	}
	if _, err := s.users.Get(userID); err != nil {
		return domain.Membership{}, err
	}
	return s.JoinThread(threadID, userID)
}

// AdminJoin lets an admin become a member of any thread.
func (s *CommsService) AdminJoin(actor domain.Actor, threadID domain.ThreadID) (domain.Membership, error) {
	if !actor.IsAdmin() {
		return domain.Membership{}, fmt.Errorf("%w: admin role required", errors.ErrForbidden)
	}
	return s.JoinThread(threadID, actor.ID)
}

// LeaveThread removes the membership, the creator can never leave.
func (s *CommsService) LeaveThread(threadID domain.ThreadID, userID domain.UserID) (bool, error) {
	removed, err := s.memberships.Leave(threadID, userID)
	if err != nil {
		return false, err
	}
	if removed {
		s.log.Info("Member left", "thread_id", threadID, "user_id", userID)
		s.dispatcher.Dispatch(event.MembershipChange{
			ThreadID: threadID, UserID: userID, Action: domain.MembershipRemoved, At: s.now(),
		})
	}
	return removed, nil
}

// RemoveMember is allowed to the owner, an admin or the member itself.
func (s *CommsService) RemoveMember(actor domain.Actor, threadID domain.ThreadID, userID domain.UserID) (bool, error) {
	thread, err := s.threads.Get(threadID)
	if err != nil {
		return false, err
	}
	if !thread.IsCreator(actor.ID) && !actor.IsAdmin() && actor.ID != userID {
		return false, fmt.Errorf("%w: cannot remove another member", errors.ErrForbidden)
	}
	return s.LeaveThread(threadID, userID)
}

// MarkRead moves the member's cursor to now. The refreshed count is pushed so the
// member's other connections clear their badge too.
func (s *CommsService) MarkRead(threadID domain.ThreadID, userID domain.UserID) (bool, error) {
	moved, err := s.memberships.MarkRead(threadID, userID, s.now())
	if err != nil {
		return false, err
	}
	if moved {
		if count, err := s.unread.Unread(threadID, userID); err == nil {
			s.dispatcher.Dispatch(event.UnreadUpdate{ThreadID: threadID, UserID: userID, Count: count})
		}
	}
	return moved, nil
}

func (s *CommsService) UnreadCount(threadID domain.ThreadID, userID domain.UserID) (int, error) {
	return s.unread.Unread(threadID, userID)
}

func (s *CommsService) TotalUnread(userID domain.UserID) (int, error) {
	return s.unread.TotalUnread(userID)
}

// RecentMessages returns up to limit latest messages in (createdAt, id) order.
func (s *CommsService) RecentMessages(actor domain.Actor, threadID domain.ThreadID, limit int) ([]MessageView, error) {
	if _, err := s.authorizeRead(actor, threadID); err != nil {
		return nil, err
	}
	return s.recent(threadID, limit)
}

func (s *CommsService) ListUsers() ([]domain.User, error) {
	return s.users.List()
}

// authorizeRead lets members and admins through.
func (s *CommsService) authorizeRead(actor domain.Actor, threadID domain.ThreadID) (domain.Thread, error) {
	thread, err := s.threads.Get(threadID)
	if err != nil {
		return domain.Thread{}, err
	}
	if actor.IsAdmin() {
		return thread, nil
	}
	isMember, err := s.memberships.IsMember(threadID, actor.ID)
	if err != nil {
		return domain.Thread{}, err
	}
	if !isMember {
		return domain.Thread{}, fmt.Errorf("%w: not a member of thread %d", errors.ErrForbidden, threadID)
	}
	return thread, nil
}

func (s *CommsService) recent(threadID domain.ThreadID, limit int) ([]MessageView, error) {
	if limit <= 0 {
		limit = s.limitMessages
	}
	messages, err := s.messages.Recent(threadID, limit)
	if err != nil {
		return nil, err
	}
	senders := make(map[domain.UserID]event.Sender)
	return lo.Map(messages, func(m domain.Message, _ int) MessageView {
		sender, ok := senders[m.SenderID]
		if !ok {
			sender = s.sender(m.SenderID)
			senders[m.SenderID] = sender
		}
		return MessageView{Message: m, Sender: sender}
	}), nil
}

func (s *CommsService) summary(actor domain.Actor, thread domain.Thread) (ThreadSummary, error) {
	members, err := s.memberships.Members(thread.ID)
	if err != nil {
		return ThreadSummary{}, err
	}
	summary := ThreadSummary{
		Thread: thread,
		Members: lo.Map(members, func(m domain.Membership, _ int) MemberView {
			return MemberView{ID: m.UserID, DisplayName: s.sender(m.UserID).DisplayName, JoinedAt: m.JoinedAt}
		}),
	}

	last, err := s.recent(thread.ID, 1)
	if err != nil {
		return ThreadSummary{}, err
	}
	if len(last) == 1 {
		summary.LastMessage = &last[0]
		summary.Preview = preview(last[0].Content)
	}

	isMember := lo.ContainsBy(members, func(m domain.Membership) bool { return m.UserID == actor.ID })
	if isMember {
		if summary.UnreadCount, err = s.unread.Unread(thread.ID, actor.ID); err != nil {
			return ThreadSummary{}, err
		}
	}
	return summary, nil
}

func (s *CommsService) detail(actor domain.Actor, thread domain.Thread) (ThreadDetail, error) {
	summary, err := s.summary(actor, thread)
	if err != nil {
		return ThreadDetail{}, err
	}
	messages, err := s.recent(thread.ID, 0)
	if err != nil {
		return ThreadDetail{}, err
	}
	return ThreadDetail{ThreadSummary: summary, Messages: messages}, nil
}

// sender resolves the display label of a user, a deleted user keeps a placeholder.
func (s *CommsService) sender(userID domain.UserID) event.Sender {
	user, err := s.users.Get(userID)
	if err != nil {
		return event.Sender{ID: userID, DisplayName: "User #" + userID.String()}
	}
	return event.Sender{ID: userID, DisplayName: user.Label()}
}

func preview(content string) string {
	if utf8.RuneCountInString(content) <= PreviewLength {
		return content
	}
	return string([]rune(content)[:PreviewLength])
}
