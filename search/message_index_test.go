package search

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"soulconnect/domain"
)

func newTestIndex(t *testing.T) *MessageIndex {
	t.Helper()
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })
	return NewMessageIndex(writer, slog.Default())
}

func indexMessage(t *testing.T, index *MessageIndex, room, sender, content string) uuid.UUID {
	t.Helper()
	msg := domain.Message{
		ID:         uuid.New(),
		Room:       domain.RoomID(room),
		SenderName: sender,
		Content:    content,
		SentAt:     time.Now().UTC(),
	}
	require.NoError(t, index.Index(msg))
	return msg.ID
}

func TestMessageIndex_Search_Matches_Content(t *testing.T) {
	req := require.New(t)
	index := newTestIndex(t)

	// Given: Two messages in the same room
	wanted := indexMessage(t, index, "room-1", "Alice", "The deployment pipeline is broken again")
	indexMessage(t, index, "room-1", "Bob", "Lunch at noon?")

	// When: Searching for a word from the first message
	hits, err := index.Search(context.Background(), "room-1", "deployment", 10)
	req.NoError(err)

	// Then: Only the matching message comes back, with its stored fields
	req.Len(hits, 1)
	req.Equal(wanted, hits[0].MessageID)
	req.Equal("Alice", hits[0].SenderName)
	req.Equal(domain.RoomID("room-1"), hits[0].Room)
	req.Contains(hits[0].Content, "deployment")
	req.False(hits[0].SentAt.IsZero())
}

func TestMessageIndex_Search_Is_Case_Insensitive(t *testing.T) {
	req := require.New(t)
	index := newTestIndex(t)

	indexMessage(t, index, "room-1", "Alice", "Badger compaction finished")

	hits, err := index.Search(context.Background(), "room-1", "BADGER", 10)
	req.NoError(err)
	req.Len(hits, 1)
}

func TestMessageIndex_Search_Scoped_To_Room(t *testing.T) {
	req := require.New(t)
	index := newTestIndex(t)

	// Given: The same word in two different rooms
	indexMessage(t, index, "room-1", "Alice", "secret handshake")
	other := indexMessage(t, index, "room-2", "Bob", "secret recipe")

	// When: Searching inside room-2
	hits, err := index.Search(context.Background(), "room-2", "secret", 10)
	req.NoError(err)

	// Then: room-1 content never leaks in
	req.Len(hits, 1)
	req.Equal(other, hits[0].MessageID)
}

func TestMessageIndex_Search_Empty_Query(t *testing.T) {
	req := require.New(t)
	index := newTestIndex(t)

	indexMessage(t, index, "room-1", "Alice", "anything at all")

	hits, err := index.Search(context.Background(), "room-1", "", 10)
	req.NoError(err)
	req.Empty(hits)
}

func TestMessageIndex_Search_Honors_Limit(t *testing.T) {
	req := require.New(t)
	index := newTestIndex(t)

	for i := 0; i < 5; i++ {
		indexMessage(t, index, "room-1", "Alice", "another badger story")
	}

	hits, err := index.Search(context.Background(), "room-1", "badger", 3)
	req.NoError(err)
	req.Len(hits, 3)
}
