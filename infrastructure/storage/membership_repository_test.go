package storage

import (
	"comms-lab/domain"
	"comms-lab/errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMembershipRepository_Join_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	repos := setupRepositories(t, 0)
	thread, err := repos.threads.Create("", 1, time.Now())
	req.NoError(err)

	// Given a first join
	joinedAt := time.Now().UTC()
	membership, created, err := repos.memberships.Join(thread.ID, 2, joinedAt)
	req.NoError(err)
	req.True(created)
	req.True(membership.JoinedAt.Equal(joinedAt))
	req.True(membership.LastReadAt.Equal(joinedAt))

	// When joining again later
	again, created, err := repos.memberships.Join(thread.ID, 2, joinedAt.Add(time.Hour))
	req.NoError(err)

	// Then the existing row is returned untouched
	req.False(created)
	req.True(again.JoinedAt.Equal(joinedAt))

	_, _, err = repos.memberships.Join(thread.ID+1, 2, joinedAt)
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestMembershipRepository_Creator_Cannot_Leave(t *testing.T) {
	req := require.New(t)
	repos := setupRepositories(t, 0)
	thread, err := repos.threads.Create("", 1, time.Now())
	req.NoError(err)

	_, err = repos.memberships.Leave(thread.ID, 1)
	req.ErrorIs(err, errors.ErrForbidden)

	isMember, err := repos.memberships.IsMember(thread.ID, 1)
	req.NoError(err)
	req.True(isMember)
}

func TestMembershipRepository_Leave_Reports_Removed_Rows(t *testing.T) {
	req := require.New(t)
	repos := setupRepositories(t, 0)
	thread, err := repos.threads.Create("", 1, time.Now())
	req.NoError(err)
	_, _, err = repos.memberships.Join(thread.ID, 2, time.Now())
	req.NoError(err)

	removed, err := repos.memberships.Leave(thread.ID, 2)
	req.NoError(err)
	req.True(removed)

	// A second leave is a no-op
	removed, err = repos.memberships.Leave(thread.ID, 2)
	req.NoError(err)
	req.False(removed)

	threads, err := repos.memberships.ThreadsOf(2)
	req.NoError(err)
	req.Empty(threads)
}

func TestMembershipRepository_MarkRead_Never_Moves_Backward(t *testing.T) {
	req := require.New(t)
	repos := setupRepositories(t, 0)
	thread, err := repos.threads.Create("", 1, time.Now())
	req.NoError(err)
	t0 := time.Now().UTC()
	_, _, err = repos.memberships.Join(thread.ID, 2, t0)
	req.NoError(err)

	moved, err := repos.memberships.MarkRead(thread.ID, 2, t0.Add(2*time.Second))
	req.NoError(err)
	req.True(moved)

	// When marking read at an earlier instant
	moved, err = repos.memberships.MarkRead(thread.ID, 2, t0.Add(time.Second))
	req.NoError(err)

	// Then the cursor stays where it was
	req.False(moved)
	membership, err := repos.memberships.Get(thread.ID, 2)
	req.NoError(err)
	req.True(membership.LastReadAt.Equal(t0.Add(2 * time.Second)))
}

func TestMembershipRepository_MarkRead_Requires_Membership(t *testing.T) {
	req := require.New(t)
	repos := setupRepositories(t, 0)
	thread, err := repos.threads.Create("", 1, time.Now())
	req.NoError(err)

	_, err = repos.memberships.MarkRead(thread.ID, 42, time.Now())
	req.ErrorIs(err, errors.ErrForbidden)

	_, err = repos.memberships.MarkRead(thread.ID+1, 1, time.Now())
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestMembershipRepository_Members_And_ThreadsOf(t *testing.T) {
	req := require.New(t)
	repos := setupRepositories(t, 0)
	first, err := repos.threads.Create("first", 1, time.Now())
	req.NoError(err)
	second, err := repos.threads.Create("second", 2, time.Now())
	req.NoError(err)
	_, _, err = repos.memberships.Join(first.ID, 2, time.Now())
	req.NoError(err)

	members, err := repos.memberships.Members(first.ID)
	req.NoError(err)
	req.Len(members, 2)
	req.Equal(domain.UserID(1), members[0].UserID)
	req.Equal(domain.UserID(2), members[1].UserID)

	threads, err := repos.memberships.ThreadsOf(2)
	req.NoError(err)
	req.Equal([]domain.ThreadID{first.ID, second.ID}, threads)
}
