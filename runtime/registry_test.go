package runtime

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"soulconnect/domain"
	"soulconnect/domain/event"
	"soulconnect/errors"
)

type Sink struct {
}

func (s Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	return nil
}

func TestRegistry_Register_And_Join(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connectionID := uuid.NewString()
	roomID := domain.RoomID("room-1")
	sink := Sink{}

	// Given no connection is registered
	req.Empty(registry.SinksForRoom(roomID))

	// When a connection registers and joins a room
	req.NoError(registry.Register(connectionID, "alice", "Alice", sink))
	registry.JoinRoom(connectionID, roomID)

	// Then
	conn, found := registry.Get(connectionID)
	req.True(found)
	req.Equal("alice", conn.IdentityID)
	req.Len(registry.SinksForRoom(roomID), 1)
	req.Equal(1, registry.ConnectionsForIdentity("alice"))
}

func TestRegistry_Register_Duplicate_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connectionID := uuid.NewString()

	// Given a registered connection
	req.NoError(registry.Register(connectionID, "alice", "Alice", Sink{}))

	// When the same id registers again
	err := registry.Register(connectionID, "alice", "Alice", Sink{})

	// Then
	req.ErrorIs(err, errors.ErrDuplicateConnection)
}

func TestRegistry_Multiple_Connections_Same_Identity(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	roomID := domain.RoomID("room-1")
	first := uuid.NewString()
	second := uuid.NewString()

	// Given one identity with two live connections in the same room
	req.NoError(registry.Register(first, "alice", "Alice", Sink{}))
	req.NoError(registry.Register(second, "alice", "Alice", Sink{}))
	registry.JoinRoom(first, roomID)
	registry.JoinRoom(second, roomID)

	req.Equal(2, registry.ConnectionsForIdentity("alice"))
	req.Len(registry.SinksForRoom(roomID), 2)

	// When one connection unregisters
	_, found := registry.Unregister(first)

	// Then the other keeps receiving
	req.True(found)
	req.Equal(1, registry.ConnectionsForIdentity("alice"))
	req.Len(registry.SinksForRoom(roomID), 1)
}

func TestRegistry_Unregister_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connectionID := uuid.NewString()

	req.NoError(registry.Register(connectionID, "alice", "Alice", Sink{}))

	// When unregistering twice
	_, first := registry.Unregister(connectionID)
	_, second := registry.Unregister(connectionID)

	// Then the second is a found=false no-op
	req.True(first)
	req.False(second)
	req.Zero(registry.ConnectionsForIdentity("alice"))
}

func TestRegistry_LeaveRoom_Cleans_Empty_Sets(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connectionID := uuid.NewString()
	roomID := domain.RoomID("room-1")

	req.NoError(registry.Register(connectionID, "alice", "Alice", Sink{}))
	registry.JoinRoom(connectionID, roomID)
	req.Len(registry.SinksForRoom(roomID), 1)

	// When the last member leaves
	registry.LeaveRoom(connectionID, roomID)

	// Then the room has no sinks and leaving again is harmless
	req.Empty(registry.SinksForRoom(roomID))
	registry.LeaveRoom(connectionID, roomID)
}

func TestRegistry_SinksForRoomExcept(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	roomID := domain.RoomID("room-1")
	typist := uuid.NewString()
	other := uuid.NewString()

	req.NoError(registry.Register(typist, "alice", "Alice", Sink{}))
	req.NoError(registry.Register(other, "bob", "Bob", Sink{}))
	registry.JoinRoom(typist, roomID)
	registry.JoinRoom(other, roomID)

	// When excluding the typist's connection
	sinks := registry.SinksForRoomExcept(roomID, typist)

	// Then only the other connection's sink remains
	req.Len(sinks, 1)
}
