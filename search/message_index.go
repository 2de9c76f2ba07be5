//go:generate go run go.uber.org/mock/mockgen -source=message_index.go -destination=../mocks/mock_message_index.go -package=mocks
package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"

	"soulconnect/domain"
)

type IMessageIndex interface {
	Index(msg domain.Message) error
	Search(ctx context.Context, roomID domain.RoomID, query string, limit int) ([]Hit, error)
}

// Hit is one search result, rebuilt from the stored fields of the
// matching document.
type Hit struct {
	MessageID  uuid.UUID
	Room       domain.RoomID
	SenderName string
	Content    string
	SentAt     time.Time
}

// MessageIndex maintains a full text Bluge index over delivered
// messages. Each message is one document keyed by its id; the room is a
// keyword field so searches stay scoped to a single room.
type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger) *MessageIndex {
	return &MessageIndex{writer: writer, log: log}
}

func (i *MessageIndex) Index(msg domain.Message) error {
	doc := bluge.NewDocument(msg.ID.String()).
		AddField(bluge.NewKeywordField("room", string(msg.Room)).StoreValue()).
		AddField(bluge.NewTextField("content", msg.Content).StoreValue()).
		AddField(bluge.NewKeywordField("sender_name", msg.SenderName).StoreValue()).
		AddField(bluge.NewKeywordField("sent_at", msg.SentAt.UTC().Format(time.RFC3339Nano)).StoreValue())
	return i.writer.Update(doc.ID(), doc)
}

func (i *MessageIndex) Search(ctx context.Context, roomID domain.RoomID, query string, limit int) ([]Hit, error) {
	if query == "" {
		return nil, nil
	}

	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("closing index reader", "error", err)
		}
	}()

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(string(roomID)).SetField("room")).
		AddMust(bluge.NewMatchQuery(query).SetField("content"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, q))
	if err != nil {
		return nil, err
	}

	var hits []Hit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}

		var hit Hit
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				if id, parseErr := uuid.Parse(string(value)); parseErr == nil {
					hit.MessageID = id
				}
			case "room":
				hit.Room = domain.RoomID(value)
			case "content":
				hit.Content = string(value)
			case "sender_name":
				hit.SenderName = string(value)
			case "sent_at":
				if at, parseErr := time.Parse(time.RFC3339Nano, string(value)); parseErr == nil {
					hit.SentAt = at
				}
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
