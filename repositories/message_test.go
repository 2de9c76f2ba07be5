package repositories

import (
	"fmt"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"soulconnect/domain"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_Append_Assigns_Id_And_Monotonic_SentAt(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())
	room := domain.RoomID("room-1")

	// When several messages are appended back to back
	var previous domain.Message
	for i := 0; i < 5; i++ {
		msg, err := repository.Append(domain.Message{
			Room:     room,
			SenderID: "alice",
			Content:  fmt.Sprintf("message %d", i),
			Kind:     domain.MessageText,
		})
		req.NoError(err)
		req.NotEqual(msg.ID.String(), "00000000-0000-0000-0000-000000000000")

		// Then every assigned timestamp is strictly after the previous one
		if i > 0 {
			req.True(msg.SentAt.After(previous.SentAt))
		}
		previous = msg
	}
}

func Test_GetPage_Returns_Oldest_To_Newest(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())
	room := domain.RoomID("room-1")

	for i := 0; i < 3; i++ {
		_, err := repository.Append(domain.Message{
			Room:     room,
			SenderID: "alice",
			Content:  fmt.Sprintf("message %d", i),
			Kind:     domain.MessageText,
		})
		req.NoError(err)
	}

	page, err := repository.GetPage(room, 1, 50)
	req.NoError(err)
	req.Len(page, 3)
	req.Equal("message 0", page[0].Content)
	req.Equal("message 2", page[2].Content)
}

func Test_GetPage_Partitions_Without_Gaps_Or_Duplicates(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())
	room := domain.RoomID("room-1")

	total := 120
	limit := 50
	for i := 0; i < total; i++ {
		_, err := repository.Append(domain.Message{
			Room:     room,
			SenderID: "alice",
			Content:  fmt.Sprintf("message %03d", i),
			Kind:     domain.MessageText,
		})
		req.NoError(err)
	}

	// When history is fetched page by page
	seen := make(map[string]struct{})
	var fetched int
	for page := 1; page <= 3; page++ {
		messages, err := repository.GetPage(room, page, limit)
		req.NoError(err)
		for _, msg := range messages {
			_, dup := seen[msg.ID.String()]
			req.False(dup, "message delivered twice across pages")
			seen[msg.ID.String()] = struct{}{}
		}
		fetched += len(messages)
	}

	// Then the pages partition the room history exactly
	req.Equal(total, fetched)

	// And page 3 holds the oldest 20 messages of the reverse scan
	lastPage, err := repository.GetPage(room, 3, limit)
	req.NoError(err)
	req.Len(lastPage, total-2*limit)
	req.Equal("message 000", lastPage[0].Content)
}

func Test_GetPage_Ignores_Other_Rooms(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())

	_, err := repository.Append(domain.Message{Room: "room-1", SenderID: "alice", Content: "here", Kind: domain.MessageText})
	req.NoError(err)
	_, err = repository.Append(domain.Message{Room: "room-2", SenderID: "bob", Content: "elsewhere", Kind: domain.MessageText})
	req.NoError(err)

	page, err := repository.GetPage("room-1", 1, 50)
	req.NoError(err)
	req.Len(page, 1)
	req.Equal("here", page[0].Content)
}
