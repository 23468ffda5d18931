//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"comms-lab/domain"
	"comms-lab/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Connection is a live push-capable channel owned by one authenticated user.
// Send must not block on a slow peer.
type Connection interface {
	ID() string
	Send(ctx context.Context, payload []byte) error
}

// MembershipLister gives the registry the authoritative thread set of a user.
type MembershipLister interface {
	ThreadsOf(userID domain.UserID) ([]domain.ThreadID, error)
}

type IRegistry interface {
	Register(userID domain.UserID, conn Connection) error
	Unregister(userID domain.UserID, conn Connection)
	OnMembershipChanged(threadID domain.ThreadID, userID domain.UserID, action domain.MembershipAction)
	LiveConnectionsFor(userID domain.UserID) []Connection
}

// IDispatcher accepts events for best-effort delivery, it never blocks the caller.
type IDispatcher interface {
	Dispatch(evt event.Event)
}

// Deliverer pushes one event to the live connections of its targets.
type Deliverer interface {
	Deliver(ctx context.Context, evt event.Event)
}

// Censor rewrites message content before it is persisted.
type Censor interface {
	Censor(content string) string
}
