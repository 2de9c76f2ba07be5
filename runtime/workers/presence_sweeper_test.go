package workers

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"soulconnect/domain"
	"soulconnect/domain/event"
	"soulconnect/observability"
	"soulconnect/repositories"
	"soulconnect/runtime"
)

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

type sweeperFixture struct {
	sweeper    *PresenceSweeper
	identities repositories.IIdentityRepository
	rooms      repositories.IRoomRepository
	sink       *recordingSink
}

func newSweeperFixture(t *testing.T) sweeperFixture {
	t.Helper()
	opts := badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	identities := repositories.NewIdentityRepository(db, log)
	rooms := repositories.NewRoomRepository(db, log)
	registry := runtime.NewRegistry()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	router := runtime.NewRouter(log, registry, rooms, time.Second, metrics)

	// A permanent sink observes every broadcast without joining rooms.
	sink := &recordingSink{}
	router.AddPermanentSinks(sink)

	sweeper := NewPresenceSweeper(log, identities, rooms, router, time.Minute, metrics)
	return sweeperFixture{sweeper: sweeper, identities: identities, rooms: rooms, sink: sink}
}

func TestPresenceSweeper_Demotes_Stale_Identity_Once(t *testing.T) {
	req := require.New(t)
	f := newSweeperFixture(t)
	ctx := context.Background()

	// Given alice went inactive past the offline threshold, flag still set
	_, err := f.identities.Create(domain.Identity{ID: "alice", DisplayName: "Alice", Email: "alice@test.local"}, "hash")
	req.NoError(err)
	_, err = f.identities.Create(domain.Identity{ID: "bob", DisplayName: "Bob", Email: "bob@test.local"}, "hash")
	req.NoError(err)
	_, _, err = f.rooms.FindOrCreatePrivate("alice", "bob", time.Now().UTC())
	req.NoError(err)

	staleAt := time.Now().UTC().Add(-domain.AwayWindow - time.Minute)
	req.NoError(f.identities.UpdateLastActive("alice", staleAt, true))

	// When sweeping
	f.sweeper.Sweep(ctx)

	// Then alice is offline and one room got notified
	identity, err := f.identities.Get("alice")
	req.NoError(err)
	req.False(identity.Online)

	events := f.sink.Events()
	req.Len(events, 1)
	presence, ok := events[0].(event.PresenceChanged)
	req.True(ok)
	req.Equal("alice", presence.IdentityID)
	req.Equal(domain.PresenceOffline, presence.Presence)

	// When sweeping again
	f.sweeper.Sweep(ctx)

	// Then no second notification: the demotion already cleared the flag
	req.Len(f.sink.Events(), 1)
}

func TestPresenceSweeper_Ignores_Recently_Active(t *testing.T) {
	req := require.New(t)
	f := newSweeperFixture(t)

	_, err := f.identities.Create(domain.Identity{ID: "alice", DisplayName: "Alice", Email: "alice@test.local"}, "hash")
	req.NoError(err)
	req.NoError(f.identities.UpdateLastActive("alice", time.Now().UTC(), true))

	f.sweeper.Sweep(context.Background())

	identity, err := f.identities.Get("alice")
	req.NoError(err)
	req.True(identity.Online)
	req.Empty(f.sink.Events())
}

func TestPresenceSweeper_Activity_After_Demotion_Resets(t *testing.T) {
	req := require.New(t)
	f := newSweeperFixture(t)
	ctx := context.Background()

	_, err := f.identities.Create(domain.Identity{ID: "alice", DisplayName: "Alice", Email: "alice@test.local"}, "hash")
	req.NoError(err)
	staleAt := time.Now().UTC().Add(-domain.AwayWindow - time.Minute)
	req.NoError(f.identities.UpdateLastActive("alice", staleAt, true))
	f.sweeper.Sweep(ctx)

	// When alice becomes active again and goes stale a second time
	req.NoError(f.identities.UpdateLastActive("alice", staleAt, true))
	f.sweeper.Sweep(ctx)

	// Then she is demoted again
	identity, err := f.identities.Get("alice")
	req.NoError(err)
	req.False(identity.Online)
}
