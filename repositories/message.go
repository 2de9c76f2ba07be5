//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"soulconnect/domain"
)

type IMessageRepository interface {
	Append(msg domain.Message) (domain.Message, error)
	GetPage(roomID domain.RoomID, page, limit int) ([]domain.Message, error)
}

// MessageRepository persists messages in BadgerDB.
// The key is formatted as "msg:{room_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Prevent data loss by using the message UUID as a collision
//     disconnector if two messages land on the same nanosecond.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger

	mu     sync.Mutex
	lastAt map[domain.RoomID]time.Time
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log, lastAt: make(map[domain.RoomID]time.Time)}
}

type messageRecord struct {
	ID         string    `json:"id"`
	Room       string    `json:"room"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	Kind       string    `json:"kind"`
	SentAt     time.Time `json:"sent_at"`
	Read       bool      `json:"read"`
}

// Append assigns the server-side id and a monotonically non-decreasing
// SentAt before persisting, so room ordering never depends on caller
// clocks. The assigned message is returned for broadcast.
func (m *MessageRepository) Append(msg domain.Message) (domain.Message, error) {
	msg.ID = uuid.New()

	// Strictly increasing per room: equal-instant appends get the next
	// nanosecond, which keeps tie order identical to insertion order.
	m.mu.Lock()
	now := time.Now().UTC()
	if last, ok := m.lastAt[msg.Room]; ok && !now.After(last) {
		now = last.Add(time.Nanosecond)
	}
	m.lastAt[msg.Room] = now
	m.mu.Unlock()
	msg.SentAt = now

	key := fmt.Sprintf("msg:%s:%019d:%s", msg.Room, msg.SentAt.UnixNano(), msg.ID)
	data, err := json.Marshal(fromMessage(msg))
	if err != nil {
		return domain.Message{}, err
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// GetPage retrieves one page of room history. Storage iteration is
// newest-first with a page*limit offset (page is 1-based); the page is
// reversed before returning so callers always see oldest-to-newest.
// Thanks to the padded timestamp in the key, no sort is needed.
func (m *MessageRepository) GetPage(roomID domain.RoomID, page, limit int) ([]domain.Message, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	skip := (page - 1) * limit

	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", roomID)
		prefix := []byte(prefixStr)

		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible key for this room, then walk back.
		seekKey := append([]byte{}, prefix...)
		seekKey = append(seekKey, []byte("9999999999999999999")...)
		skipped := 0
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if skipped < skip {
				skipped++
				continue
			}
			if len(messages) == limit {
				break
			}
			var rec messageRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			msg, err := toMessage(rec)
			if err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Newest-first on disk, oldest-first on the wire.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func fromMessage(msg domain.Message) messageRecord {
	return messageRecord{
		ID:         msg.ID.String(),
		Room:       string(msg.Room),
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Content:    msg.Content,
		Kind:       string(msg.Kind),
		SentAt:     msg.SentAt,
		Read:       msg.Read,
	}
}

func toMessage(rec messageRecord) (domain.Message, error) {
	parsedID, err := uuid.Parse(rec.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:         parsedID,
		Room:       domain.RoomID(rec.Room),
		SenderID:   rec.SenderID,
		SenderName: rec.SenderName,
		Content:    rec.Content,
		Kind:       domain.MessageKind(rec.Kind),
		SentAt:     rec.SentAt,
		Read:       rec.Read,
	}, nil
}
