package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"soulconnect/domain"
	"soulconnect/errors"
)

func Test_FindOrCreatePrivate_Is_Unique_And_Symmetric(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openTestDB(t), slog.Default())
	now := time.Now().UTC()

	// When the same pair asks for a room in both orders
	first, created, err := repository.FindOrCreatePrivate("alice", "bob", now)
	req.NoError(err)
	req.True(created)

	second, created, err := repository.FindOrCreatePrivate("bob", "alice", now)
	req.NoError(err)
	req.False(created)

	// Then exactly one room exists for the unordered pair
	req.Equal(first.ID, second.ID)
	req.Equal(domain.RoomPrivate, first.Kind)
	req.ElementsMatch([]string{"alice", "bob"}, first.Participants)
}

func Test_FindOrCreatePrivate_Surfaces_Store_Failure(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	repository := NewRoomRepository(db, slog.Default())
	req.NoError(db.Close())

	// When the store cannot serve the pair lookup
	_, created, err := repository.FindOrCreatePrivate("alice", "bob", time.Now().UTC())

	// Then the failure surfaces instead of minting a room
	req.Error(err)
	req.False(created)

	reopened, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = reopened.Close() })
	rooms, err := NewRoomRepository(reopened, slog.Default()).ForIdentity("alice")
	req.NoError(err)
	req.Empty(rooms)
}

func Test_FindOrCreatePrivate_Distinct_Pairs_Get_Distinct_Rooms(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openTestDB(t), slog.Default())
	now := time.Now().UTC()

	one, _, err := repository.FindOrCreatePrivate("alice", "bob", now)
	req.NoError(err)
	other, _, err := repository.FindOrCreatePrivate("alice", "clara", now)
	req.NoError(err)

	req.NotEqual(one.ID, other.ID)
}

func Test_ForIdentity_Lists_Only_Active_Memberships(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openTestDB(t), slog.Default())
	now := time.Now().UTC()

	kept, _, err := repository.FindOrCreatePrivate("alice", "bob", now)
	req.NoError(err)
	archived, _, err := repository.FindOrCreatePrivate("alice", "clara", now)
	req.NoError(err)
	_, _, err = repository.FindOrCreatePrivate("bob", "clara", now)
	req.NoError(err)

	req.NoError(repository.Archive(archived.ID))

	rooms, err := repository.ForIdentity("alice")
	req.NoError(err)
	req.Len(rooms, 1)
	req.Equal(kept.ID, rooms[0].ID)
}

func Test_Get_Unknown_Room(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openTestDB(t), slog.Default())

	_, err := repository.Get("no-such-room")
	req.ErrorIs(err, errors.ErrNotFound)
}
