package api

import (
	"comms-lab/auth"
	"comms-lab/domain"
	"comms-lab/errors"
	"comms-lab/services"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
)

const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body", errors.ErrValidation)
	}
	return nil
}

func pathID(r *http.Request, name string) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid %s", errors.ErrValidation, name)
	}
	return id, nil
}

func threadID(r *http.Request) (domain.ThreadID, error) {
	id, err := pathID(r, "id")
	return domain.ThreadID(id), err
}

func actor(r *http.Request) domain.Actor {
	a, _ := auth.ActorFromContext(r.Context())
	return a
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(h.log, w, r, err)
		return
	}
	token, err := h.accounts.Register(body.Username, body.DisplayName, body.Password)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{Token: token.String()})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(h.log, w, r, err)
		return
	}
	if err := auth.Validate(auth.LoginRequest{Username: body.Username, Password: body.Password}); err != nil {
		writeError(h.log, w, r, err)
		return
	}
	token, err := h.accounts.Login(body.Username, body.Password)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token.String()})
}

func (h *Handler) listThreads(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.comms.ListThreads(actor(r))
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(summaries, func(s services.ThreadSummary, _ int) threadResponse {
		return toSummary(s)
	}))
}

// createThread accepts {"title": "...", "members": [ids]}; members must be a JSON list when present.
func (h *Handler) createThread(w http.ResponseWriter, r *http.Request) {
	var body createThreadRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(h.log, w, r, err)
		return
	}
	var ids []uint64
	if len(body.Members) > 0 && string(body.Members) != "null" {
		if err := json.Unmarshal(body.Members, &ids); err != nil {
			writeError(h.log, w, r, fmt.Errorf("%w: members must be a list", errors.ErrValidation))
			return
		}
	}
	memberIDs := lo.Map(ids, func(id uint64, _ int) domain.UserID { return domain.UserID(id) })

	detail, err := h.comms.CreateThread(actor(r), body.Title, memberIDs)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDetail(detail))
}

func (h *Handler) getThread(w http.ResponseWriter, r *http.Request) {
	id, err := threadID(r)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	detail, err := h.comms.GetThread(actor(r), id)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetail(detail))
}

func (h *Handler) createMessage(w http.ResponseWriter, r *http.Request) {
	id, err := threadID(r)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	var body createMessageRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(h.log, w, r, err)
		return
	}
	msg, err := h.comms.CreateMessage(actor(r), id, body.Content)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg.Payload())
}

func (h *Handler) recentMessages(w http.ResponseWriter, r *http.Request) {
	id, err := threadID(r)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit <= 0 {
			writeError(h.log, w, r, fmt.Errorf("%w: limit must be a positive integer", errors.ErrValidation))
			return
		}
	}
	messages, err := h.comms.RecentMessages(actor(r), id, limit)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMessages(messages))
}

func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) {
	id, err := threadID(r)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	var body addMemberRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(h.log, w, r, err)
		return
	}
	if body.UserID == 0 {
		writeError(h.log, w, r, fmt.Errorf("%w: userId is required", errors.ErrValidation))
		return
	}
	membership, err := h.comms.AddMember(actor(r), id, domain.UserID(body.UserID))
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMembership(membership))
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	id, err := threadID(r)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	userID, err := pathID(r, "userId")
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	removed, err := h.comms.RemoveMember(actor(r), id, domain.UserID(userID))
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (h *Handler) adminJoin(w http.ResponseWriter, r *http.Request) {
	id, err := threadID(r)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	membership, err := h.comms.AdminJoin(actor(r), id)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMembership(membership))
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	id, err := threadID(r)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	moved, err := h.comms.MarkRead(id, actor(r).ID)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": moved})
}

func (h *Handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	id, err := threadID(r)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	count, err := h.comms.UnreadCount(id, actor(r).ID)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"threadId": uint64(id), "unreadCount": count})
}

func (h *Handler) totalUnread(w http.ResponseWriter, r *http.Request) {
	count, err := h.comms.TotalUnread(actor(r).ID)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unreadCount": count})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.comms.ListUsers()
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(users, func(u domain.User, _ int) userResponse {
		return toUser(u)
	}))
}
