package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"soulconnect/contract"
	"soulconnect/domain"
	"soulconnect/domain/event"
	"soulconnect/errors"
	"soulconnect/observability"
	"soulconnect/repositories"
)

// Router tracks which connections belong to which rooms and fans events
// out to them. Delivery is best effort: a failure on one recipient never
// prevents delivery to the others, and order is only guaranteed per
// connection, not across connections.
type Router struct {
	log            *slog.Logger
	registry       contract.IRegistry
	rooms          repositories.IRoomRepository
	permanentSinks []contract.EventSink
	sinkTimeout    time.Duration
	metrics        *observability.Metrics

	mu        sync.Mutex
	pairLocks map[string]*sync.Mutex
}

func NewRouter(log *slog.Logger, registry contract.IRegistry,
	rooms repositories.IRoomRepository, sinkTimeout time.Duration,
	metrics *observability.Metrics) *Router {
	return &Router{
		log:         log,
		registry:    registry,
		rooms:       rooms,
		sinkTimeout: sinkTimeout,
		metrics:     metrics,
		pairLocks:   make(map[string]*sync.Mutex),
	}
}

// AddPermanentSinks registers sinks that observe every broadcast
// regardless of room membership (projections, search index).
// Must be called before the router starts serving.
func (r *Router) AddPermanentSinks(sinks ...contract.EventSink) {
	r.permanentSinks = append(r.permanentSinks, sinks...)
}

// FindOrCreatePrivateRoom returns the unique private room for the
// unordered pair. Concurrent callers for the same pair are serialized on
// a per-pair lock so at most one room is ever created; the store-level
// pair index makes the create atomic besides.
func (r *Router) FindOrCreatePrivateRoom(ctx context.Context, idA, idB string) (domain.Room, error) {
	a, b := domain.CanonicalPair(idA, idB)
	lock := r.pairLock(a + ":" + b)
	lock.Lock()
	defer lock.Unlock()

	room, created, err := r.rooms.FindOrCreatePrivate(a, b, time.Now().UTC())
	if err != nil {
		return domain.Room{}, err
	}
	if created {
		r.log.Info("Private room created", "room_id", room.ID, "pair", fmt.Sprintf("%s:%s", a, b))
	}
	return room, nil
}

// Join adds a connection to the room's live fan-out set after checking
// that the identity behind it is a participant of the room record.
func (r *Router) Join(connectionID string, roomID domain.RoomID) error {
	conn, ok := r.registry.Get(connectionID)
	if !ok {
		return errors.ErrNotFound
	}
	room, err := r.rooms.Get(roomID)
	if err != nil {
		return err
	}
	if !room.HasParticipant(conn.IdentityID) {
		return errors.ErrNotAMember
	}
	r.registry.JoinRoom(connectionID, roomID)
	return nil
}

func (r *Router) Leave(connectionID string, roomID domain.RoomID) {
	r.registry.LeaveRoom(connectionID, roomID)
}

// Broadcast delivers the event to every currently-joined connection of
// the event's room, plus permanent sinks.
func (r *Router) Broadcast(ctx context.Context, e event.DomainEvent) {
	r.fanout(ctx, e, r.registry.SinksForRoom(e.RoomID()))
}

// BroadcastExcept is Broadcast with a sender-exclusion policy, used for
// typing indicators the typist should not receive back.
func (r *Router) BroadcastExcept(ctx context.Context, e event.DomainEvent, exceptConnectionID string) {
	r.fanout(ctx, e, r.registry.SinksForRoomExcept(e.RoomID(), exceptConnectionID))
}

// fanout pushes one event to each sink with an individual timeout.
// Per-recipient failures are logged and isolated; a dead or slow
// connection costs nothing to the other members.
func (r *Router) fanout(ctx context.Context, e event.DomainEvent, roomSinks []contract.EventSink) {
	r.metrics.BroadcastEvents.Inc()
	sinks := append(append([]contract.EventSink{}, r.permanentSinks...), roomSinks...)
	for _, sink := range sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, r.sinkTimeout)
		if err := sink.Consume(sinkCtx, e); err != nil {
			r.log.Debug("Dropped event for one recipient",
				"room_id", e.RoomID(), "error", err)
		}
		cancel()
	}
}

func (r *Router) pairLock(key string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.pairLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		r.pairLocks[key] = lock
	}
	return lock
}
