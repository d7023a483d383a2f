//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"context"
	"reflect"
)

// Conn is a live connection handle as seen by the core.
// Send must never block: a slow or closed peer is reported as an error
// and dealt with by the caller, it cannot stall other sessions.
type Conn interface {
	Send(payload []byte) error
	Close() error
}

// IRegistry is the single source of truth for who is online and how to
// reach them. All operations are atomic with respect to each other.
type IRegistry interface {
	// Register inserts the mapping and returns the evicted prior
	// connection when the identity was already bound (last-connect-wins).
	Register(identity domain.UserID, conn Conn) (prior Conn)
	// Deregister removes the mapping only if conn is still the bound
	// handle, guarding a stale close racing a newer register.
	Deregister(identity domain.UserID, conn Conn) bool
	Lookup(identity domain.UserID) (Conn, bool)
	IdentityOf(conn Conn) (domain.UserID, bool)
	SnapshotOthers(excluding domain.UserID) []domain.UserID
	Conns() []Conn
}

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
// This is used for logging and supervision purposes during worker
// initialization or lifecycle events, avoiding the need for manual naming
// in the Worker interface.
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
