//go:generate go run go.uber.org/mock/mockgen -source=identity.go -destination=../mocks/mock_identity_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	goerrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"soulconnect/domain"
	"soulconnect/errors"
)

type IIdentityRepository interface {
	Create(identity domain.Identity, passwordHash string) (domain.Identity, error)
	Get(id string) (domain.Identity, error)
	GetByEmail(email string) (domain.Identity, string, error)
	All() ([]domain.Identity, error)
	UpdateLastActive(id string, at time.Time, online bool) error
	SetTraits(id string, traits []string) error
	SetVillain(id string, score int, level string) error
	StaleOnline(olderThan time.Time) ([]domain.Identity, error)
	MarkOffline(id string) error
	Seed(personas []domain.Identity) error
}

// IdentityRepository persists identities in BadgerDB.
// Keys:
//
//	identity:{id}           -> identityRecord (JSON)
//	identity-email:{email}  -> identity id (uniqueness index for register)
type IdentityRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewIdentityRepository(db *badger.DB, log *slog.Logger) *IdentityRepository {
	return &IdentityRepository{db: db, log: log}
}

// identityRecord is the stored shape. The password hash lives inside the
// identity document but is stripped before anything leaves this package.
type identityRecord struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"display_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash,omitempty"`
	Traits       []string  `json:"traits"`
	Bio          string    `json:"bio"`
	Avatar       string    `json:"avatar"`
	Synthetic    bool      `json:"synthetic"`
	Online       bool      `json:"online"`
	LastActiveAt time.Time `json:"last_active_at"`
	CreatedAt    time.Time `json:"created_at"`
	VillainScore int       `json:"villain_score"`
	VillainLevel string    `json:"villain_level"`
}

func identityKey(id string) []byte    { return []byte("identity:" + id) }
func emailKey(email string) []byte    { return []byte("identity-email:" + email) }
func (r identityRecord) key() []byte  { return identityKey(r.ID) }

// Create persists a new identity. The email index is checked and written in
// the same transaction so two concurrent registrations cannot both win.
func (r *IdentityRepository) Create(identity domain.Identity, passwordHash string) (domain.Identity, error) {
	if identity.ID == "" {
		identity.ID = uuid.NewString()
	}
	rec := fromIdentity(identity)
	rec.PasswordHash = passwordHash

	data, err := json.Marshal(rec)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(emailKey(rec.Email)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(emailKey(rec.Email), []byte(rec.ID)); err != nil {
			return err
		}
		return txn.Set(rec.key(), data)
	})
	if err != nil {
		return domain.Identity{}, err
	}
	return toIdentity(rec), nil
}

func (r *IdentityRepository) Get(id string) (domain.Identity, error) {
	rec, err := r.getRecord(id)
	if err != nil {
		return domain.Identity{}, err
	}
	return toIdentity(rec), nil
}

// GetByEmail resolves the email index and returns the identity together
// with its password hash, for credential checks only.
func (r *IdentityRepository) GetByEmail(email string) (domain.Identity, string, error) {
	var rec identityRecord
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if err != nil {
			return err
		}
		var id string
		if err = item.Value(func(val []byte) error {
			id = string(val)
			return nil
		}); err != nil {
			return err
		}
		item, err = txn.Get(identityKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return domain.Identity{}, "", mapBadgerErr(err)
	}
	return toIdentity(rec), rec.PasswordHash, nil
}

func (r *IdentityRepository) All() ([]domain.Identity, error) {
	var identities []domain.Identity
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte("identity:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec identityRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			identities = append(identities, toIdentity(rec))
		}
		return nil
	})
	return identities, err
}

// UpdateLastActive writes activity through to the durable record so
// presence survives a process restart.
func (r *IdentityRepository) UpdateLastActive(id string, at time.Time, online bool) error {
	return r.mutate(id, func(rec *identityRecord) {
		rec.LastActiveAt = at
		rec.Online = online
	})
}

func (r *IdentityRepository) SetTraits(id string, traits []string) error {
	return r.mutate(id, func(rec *identityRecord) {
		rec.Traits = traits
	})
}

func (r *IdentityRepository) SetVillain(id string, score int, level string) error {
	return r.mutate(id, func(rec *identityRecord) {
		rec.VillainScore = score
		rec.VillainLevel = level
	})
}

// StaleOnline returns identities still flagged online whose last activity
// is older than the given instant. Synthetic personas are never stale.
func (r *IdentityRepository) StaleOnline(olderThan time.Time) ([]domain.Identity, error) {
	all, err := r.All()
	if err != nil {
		return nil, err
	}
	var stale []domain.Identity
	for _, identity := range all {
		if identity.Online && !identity.Synthetic && identity.LastActiveAt.Before(olderThan) {
			stale = append(stale, identity)
		}
	}
	return stale, nil
}

func (r *IdentityRepository) MarkOffline(id string) error {
	return r.mutate(id, func(rec *identityRecord) {
		rec.Online = false
	})
}

// Seed upserts synthetic personas at boot. Existing records keep their
// activity state; only the scripted profile fields are refreshed.
func (r *IdentityRepository) Seed(personas []domain.Identity) error {
	for _, persona := range personas {
		existing, err := r.getRecord(persona.ID)
		if err != nil && !goerrors.Is(err, errors.ErrNotFound) {
			return err
		}
		rec := fromIdentity(persona)
		if err == nil {
			rec.Online = existing.Online
			rec.LastActiveAt = existing.LastActiveAt
			rec.CreatedAt = existing.CreatedAt
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err = r.db.Update(func(txn *badger.Txn) error {
			if err := txn.Set(emailKey(rec.Email), []byte(rec.ID)); err != nil {
				return err
			}
			return txn.Set(rec.key(), data)
		}); err != nil {
			return err
		}
		r.log.Debug("Seeded persona", "id", persona.ID, "name", persona.DisplayName)
	}
	return nil
}

func (r *IdentityRepository) getRecord(id string) (identityRecord, error) {
	var rec identityRecord
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(identityKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return identityRecord{}, mapBadgerErr(err)
	}
	return rec, nil
}

func (r *IdentityRepository) mutate(id string, apply func(*identityRecord)) error {
	return r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(identityKey(id))
		if err != nil {
			return mapBadgerErr(err)
		}
		var rec identityRecord
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
		return txn.Set(rec.key(), data)
	})
}

func mapBadgerErr(err error) error {
	if goerrors.Is(err, badger.ErrKeyNotFound) {
		return errors.ErrNotFound
	}
	return err
}

func fromIdentity(identity domain.Identity) identityRecord {
	return identityRecord{
		ID:           identity.ID,
		DisplayName:  identity.DisplayName,
		Email:        identity.Email,
		Traits:       identity.Traits,
		Bio:          identity.Bio,
		Avatar:       identity.Avatar,
		Synthetic:    identity.Synthetic,
		Online:       identity.Online,
		LastActiveAt: identity.LastActiveAt,
		CreatedAt:    identity.CreatedAt,
		VillainScore: identity.VillainScore,
		VillainLevel: identity.VillainLevel,
	}
}

func toIdentity(rec identityRecord) domain.Identity {
	return domain.Identity{
		ID:           rec.ID,
		DisplayName:  rec.DisplayName,
		Email:        rec.Email,
		Traits:       rec.Traits,
		Bio:          rec.Bio,
		Avatar:       rec.Avatar,
		Synthetic:    rec.Synthetic,
		Online:       rec.Online,
		LastActiveAt: rec.LastActiveAt,
		CreatedAt:    rec.CreatedAt,
		VillainScore: rec.VillainScore,
		VillainLevel: rec.VillainLevel,
	}
}
