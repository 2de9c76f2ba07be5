//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	goerrors "errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"soulconnect/domain"
)

type IRoomRepository interface {
	Get(roomID domain.RoomID) (domain.Room, error)
	FindOrCreatePrivate(idA, idB string, now time.Time) (domain.Room, bool, error)
	CreateGroup(participants []string, now time.Time) (domain.Room, error)
	ForIdentity(identityID string) ([]domain.Room, error)
	TouchActivity(roomID domain.RoomID, at time.Time) error
	Archive(roomID domain.RoomID) error
}

// RoomRepository persists rooms in BadgerDB.
// Keys:
//
//	room:{roomID}        -> roomRecord (JSON)
//	room-pair:{a}:{b}    -> roomID, a < b canonical (private uniqueness)
//
// The pair index is checked and written inside a single transaction, which
// is what makes lookup-or-create atomic at the store level. Callers still
// serialize per pair to avoid badger transaction conflicts under load.
type RoomRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewRoomRepository(db *badger.DB, log *slog.Logger) *RoomRepository {
	return &RoomRepository{db: db, log: log}
}

type roomRecord struct {
	ID             string    `json:"id"`
	Participants   []string  `json:"participants"`
	Kind           string    `json:"kind"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	Active         bool      `json:"active"`
}

func roomKey(id domain.RoomID) []byte { return []byte("room:" + string(id)) }

func pairKey(a, b string) []byte {
	a, b = domain.CanonicalPair(a, b)
	return []byte("room-pair:" + a + ":" + b)
}

func (r *RoomRepository) Get(roomID domain.RoomID) (domain.Room, error) {
	var rec roomRecord
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(roomID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return domain.Room{}, mapBadgerErr(err)
	}
	return toRoom(rec), nil
}

// FindOrCreatePrivate returns the unique private room for an unordered
// identity pair, creating it on first request. The second return value
// reports whether a new room was created by this call.
func (r *RoomRepository) FindOrCreatePrivate(idA, idB string, now time.Time) (domain.Room, bool, error) {
	var (
		rec     roomRecord
		created bool
	)
	err := r.db.Update(func(txn *badger.Txn) error {
		created = false
		item, err := txn.Get(pairKey(idA, idB))
		if err != nil && !goerrors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err == nil {
			var roomID string
			if err = item.Value(func(val []byte) error {
				roomID = string(val)
				return nil
			}); err != nil {
				return err
			}
			existing, err := txn.Get(roomKey(domain.RoomID(roomID)))
			if err != nil {
				return err
			}
			return existing.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
		}

		a, b := domain.CanonicalPair(idA, idB)
		rec = roomRecord{
			ID:             uuid.NewString(),
			Participants:   []string{a, b},
			Kind:           string(domain.RoomPrivate),
			CreatedAt:      now,
			LastActivityAt: now,
			Active:         true,
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err = txn.Set(pairKey(idA, idB), []byte(rec.ID)); err != nil {
			return err
		}
		if err = txn.Set(roomKey(domain.RoomID(rec.ID)), data); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return domain.Room{}, false, err
	}
	return toRoom(rec), created, nil
}

func (r *RoomRepository) CreateGroup(participants []string, now time.Time) (domain.Room, error) {
	rec := roomRecord{
		ID:             uuid.NewString(),
		Participants:   lo.Uniq(participants),
		Kind:           string(domain.RoomGroup),
		CreatedAt:      now,
		LastActivityAt: now,
		Active:         true,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return domain.Room{}, err
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(roomKey(domain.RoomID(rec.ID)), data)
	})
	if err != nil {
		return domain.Room{}, err
	}
	return toRoom(rec), nil
}

// ForIdentity lists the active rooms an identity participates in.
// A prefix scan is enough at this scale; rooms are few per identity.
func (r *RoomRepository) ForIdentity(identityID string) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte("room:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec roomRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			room := toRoom(rec)
			if room.Active && room.HasParticipant(identityID) {
				rooms = append(rooms, room)
			}
		}
		return nil
	})
	return rooms, err
}

func (r *RoomRepository) TouchActivity(roomID domain.RoomID, at time.Time) error {
	return r.mutateRoom(roomID, func(rec *roomRecord) {
		rec.LastActivityAt = at
	})
}

// Archive toggles a room inactive without deleting it or its history.
func (r *RoomRepository) Archive(roomID domain.RoomID) error {
	return r.mutateRoom(roomID, func(rec *roomRecord) {
		rec.Active = false
	})
}

func (r *RoomRepository) mutateRoom(roomID domain.RoomID, apply func(*roomRecord)) error {
	return r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(roomID))
		if err != nil {
			return mapBadgerErr(err)
		}
		var rec roomRecord
		if err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return err
		}
		apply(&rec)
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(roomKey(roomID), data)
	})
}

func toRoom(rec roomRecord) domain.Room {
	return domain.Room{
		ID:             domain.RoomID(rec.ID),
		Participants:   rec.Participants,
		Kind:           domain.RoomKind(rec.Kind),
		CreatedAt:      rec.CreatedAt,
		LastActivityAt: rec.LastActivityAt,
		Active:         rec.Active,
	}
}
