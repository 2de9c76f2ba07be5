package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"soulconnect/domain"
	"soulconnect/domain/event"
	"soulconnect/errors"
	"soulconnect/observability"
	"soulconnect/repositories"
)

// recordingSink captures every event it consumes, safe for concurrent use.
type recordingSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (s *recordingSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Events() []event.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.DomainEvent{}, s.events...)
}

type failingSink struct {
}

func (s failingSink) Consume(_ context.Context, _ event.DomainEvent) error {
	return fmt.Errorf("recipient gone")
}

func newTestRouter(t *testing.T) (*Router, *Registry, repositories.IRoomRepository) {
	t.Helper()
	opts := badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	rooms := repositories.NewRoomRepository(db, log)
	registry := NewRegistry()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	return NewRouter(log, registry, rooms, time.Second, metrics), registry, rooms
}

func TestRouter_FindOrCreatePrivateRoom_Concurrent_Unique(t *testing.T) {
	req := require.New(t)
	router, _, _ := newTestRouter(t)
	ctx := context.Background()

	// When 20 goroutines race on the same pair, in both orders
	const goroutines = 20
	results := make(chan domain.RoomID, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(flip bool) {
			defer wg.Done()
			a, b := "alice", "bob"
			if flip {
				a, b = b, a
			}
			room, err := router.FindOrCreatePrivateRoom(ctx, a, b)
			require.NoError(t, err)
			results <- room.ID
		}(i%2 == 0)
	}
	wg.Wait()
	close(results)

	// Then exactly one room exists
	ids := make(map[domain.RoomID]struct{})
	for id := range results {
		ids[id] = struct{}{}
	}
	req.Len(ids, 1)
}

func TestRouter_FindOrCreatePrivateRoom_Symmetric(t *testing.T) {
	req := require.New(t)
	router, _, _ := newTestRouter(t)
	ctx := context.Background()

	first, err := router.FindOrCreatePrivateRoom(ctx, "alice", "bob")
	req.NoError(err)
	second, err := router.FindOrCreatePrivateRoom(ctx, "bob", "alice")
	req.NoError(err)

	req.Equal(first.ID, second.ID)
}

func TestRouter_Join_Requires_Membership(t *testing.T) {
	req := require.New(t)
	router, registry, _ := newTestRouter(t)
	ctx := context.Background()

	room, err := router.FindOrCreatePrivateRoom(ctx, "alice", "bob")
	req.NoError(err)

	aliceConn := uuid.NewString()
	carolConn := uuid.NewString()
	req.NoError(registry.Register(aliceConn, "alice", "Alice", &recordingSink{}))
	req.NoError(registry.Register(carolConn, "carol", "Carol", &recordingSink{}))

	// A participant joins, an outsider is rejected
	req.NoError(router.Join(aliceConn, room.ID))
	req.ErrorIs(router.Join(carolConn, room.ID), errors.ErrNotAMember)
}

func TestRouter_Broadcast_Isolates_Failed_Recipients(t *testing.T) {
	req := require.New(t)
	router, registry, _ := newTestRouter(t)
	ctx := context.Background()

	room, err := router.FindOrCreatePrivateRoom(ctx, "alice", "bob")
	req.NoError(err)

	// Given one healthy and one dead recipient in the room
	healthy := &recordingSink{}
	aliceConn := uuid.NewString()
	bobConn := uuid.NewString()
	req.NoError(registry.Register(aliceConn, "alice", "Alice", healthy))
	req.NoError(registry.Register(bobConn, "bob", "Bob", failingSink{}))
	req.NoError(router.Join(aliceConn, room.ID))
	req.NoError(router.Join(bobConn, room.ID))

	// When broadcasting
	router.Broadcast(ctx, event.MessageDelivered{Room: room.ID, Content: "hello"})

	// Then the healthy recipient still got the event
	req.Len(healthy.Events(), 1)
}

func TestRouter_BroadcastExcept_Skips_Sender_Connection(t *testing.T) {
	req := require.New(t)
	router, registry, _ := newTestRouter(t)
	ctx := context.Background()

	room, err := router.FindOrCreatePrivateRoom(ctx, "alice", "bob")
	req.NoError(err)

	typist := &recordingSink{}
	other := &recordingSink{}
	typistConn := uuid.NewString()
	otherConn := uuid.NewString()
	req.NoError(registry.Register(typistConn, "alice", "Alice", typist))
	req.NoError(registry.Register(otherConn, "bob", "Bob", other))
	req.NoError(router.Join(typistConn, room.ID))
	req.NoError(router.Join(otherConn, room.ID))

	router.BroadcastExcept(ctx, event.Typing{Room: room.ID, IdentityID: "alice", Typing: true}, typistConn)

	req.Empty(typist.Events())
	req.Len(other.Events(), 1)
}

func TestRouter_PermanentSink_Observes_Every_Broadcast(t *testing.T) {
	req := require.New(t)
	router, _, _ := newTestRouter(t)
	ctx := context.Background()

	room, err := router.FindOrCreatePrivateRoom(ctx, "alice", "bob")
	req.NoError(err)

	// Given a permanent sink and no live connections at all
	projection := &recordingSink{}
	router.AddPermanentSinks(projection)

	router.Broadcast(ctx, event.MessageDelivered{Room: room.ID, Content: "hello"})

	req.Len(projection.Events(), 1)
}
