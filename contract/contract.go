//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
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

// Member is a registered participant that other sessions can write to.
// Deliver must be safe for concurrent use: each call is written and flushed as one unit.
type Member interface {
	Name() domain.ClientName
	Deliver(text string) error
}

type IRegistry interface {
	TryRegister(name domain.ClientName, member Member) error
	Unregister(name domain.ClientName)
	Snapshot() []Member
	Lookup(name domain.ClientName) (Member, bool)
}

// LifecycleSink receives session lifecycle events. Record must never block the caller.
type LifecycleSink interface {
	Record(e event.Event)
}

// Censor rewrites relayed text before it leaves the sender's session.
type Censor interface {
	Censor(text string) string
}
