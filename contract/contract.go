//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"soulconnect/domain"
	"soulconnect/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself.
// Supervision (restart, panic recovery) is the supervisor's job.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// lifecycle events, avoiding manual naming in the Worker interface.
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

// EventSink receives fanned-out events. One sink per live connection,
// plus permanent sinks for projections such as the search index.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

type IRegistry interface {
	Register(connectionID, identityID, displayName string, sink EventSink) error
	Unregister(connectionID string) (Connection, bool)
	Get(connectionID string) (Connection, bool)
	JoinRoom(connectionID string, roomID domain.RoomID)
	LeaveRoom(connectionID string, roomID domain.RoomID)
	SinksForRoom(roomID domain.RoomID) []EventSink
	SinksForRoomExcept(roomID domain.RoomID, exceptConnectionID string) []EventSink
	ConnectionsForIdentity(identityID string) int
}

// Connection is one live transport session for an identity.
// Owned exclusively by the registry; it never outlives its session.
type Connection struct {
	ID          string
	IdentityID  string
	DisplayName string
	Rooms       []domain.RoomID
	Sink        EventSink
}

type IRouter interface {
	FindOrCreatePrivateRoom(ctx context.Context, idA, idB string) (domain.Room, error)
	Join(connectionID string, roomID domain.RoomID) error
	Leave(connectionID string, roomID domain.RoomID)
	Broadcast(ctx context.Context, e event.DomainEvent)
	BroadcastExcept(ctx context.Context, e event.DomainEvent, exceptConnectionID string)
}

// IResponseSelector chooses a scripted reply for a synthetic persona.
// Implementations are strategies keyed by persona id; the engine only
// sees this contract.
type IResponseSelector interface {
	SelectReply(personaID string, conversation Conversation) (string, error)
}

// Conversation is the context handed to a response selector.
type Conversation struct {
	Room          domain.RoomID
	SenderID      string
	Content       string
	FirstExchange bool
}
