package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"soulconnect/domain"
	"soulconnect/errors"
)

func Test_Create_And_GetByEmail(t *testing.T) {
	req := require.New(t)
	repository := NewIdentityRepository(openTestDB(t), slog.Default())

	created, err := repository.Create(domain.Identity{
		DisplayName: "Alice",
		Email:       "alice@example.com",
		Traits:      []string{"anxiety"},
	}, "hashed-secret")
	req.NoError(err)
	req.NotEmpty(created.ID)

	fetched, hash, err := repository.GetByEmail("alice@example.com")
	req.NoError(err)
	req.Equal(created.ID, fetched.ID)
	req.Equal("hashed-secret", hash)

	// And the duplicate email is rejected in the same transaction
	_, err = repository.Create(domain.Identity{
		DisplayName: "Impostor",
		Email:       "alice@example.com",
	}, "other-hash")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func Test_UpdateLastActive_Survives_Reload(t *testing.T) {
	req := require.New(t)
	repository := NewIdentityRepository(openTestDB(t), slog.Default())

	created, err := repository.Create(domain.Identity{DisplayName: "Bob", Email: "bob@example.com"}, "h")
	req.NoError(err)

	at := time.Now().UTC().Truncate(time.Millisecond)
	req.NoError(repository.UpdateLastActive(created.ID, at, true))

	fetched, err := repository.Get(created.ID)
	req.NoError(err)
	req.True(fetched.Online)
	req.True(fetched.LastActiveAt.Equal(at))
}

func Test_StaleOnline_Only_Returns_Flagged_And_Old(t *testing.T) {
	req := require.New(t)
	repository := NewIdentityRepository(openTestDB(t), slog.Default())
	now := time.Now().UTC()

	stale, err := repository.Create(domain.Identity{DisplayName: "Stale", Email: "stale@example.com"}, "h")
	req.NoError(err)
	fresh, err := repository.Create(domain.Identity{DisplayName: "Fresh", Email: "fresh@example.com"}, "h")
	req.NoError(err)
	gone, err := repository.Create(domain.Identity{DisplayName: "Gone", Email: "gone@example.com"}, "h")
	req.NoError(err)

	req.NoError(repository.UpdateLastActive(stale.ID, now.Add(-time.Hour), true))
	req.NoError(repository.UpdateLastActive(fresh.ID, now.Add(-time.Minute), true))
	// Already offline, must not reappear even though it is old
	req.NoError(repository.UpdateLastActive(gone.ID, now.Add(-time.Hour), false))

	found, err := repository.StaleOnline(now.Add(-domain.AwayWindow))
	req.NoError(err)
	req.Len(found, 1)
	req.Equal(stale.ID, found[0].ID)

	// And marking it offline makes the next sweep empty
	req.NoError(repository.MarkOffline(stale.ID))
	found, err = repository.StaleOnline(now.Add(-domain.AwayWindow))
	req.NoError(err)
	req.Empty(found)
}

func Test_Seed_Upserts_Personas_Preserving_Activity(t *testing.T) {
	req := require.New(t)
	repository := NewIdentityRepository(openTestDB(t), slog.Default())

	persona := domain.Identity{
		ID:          "persona-dark-therapist",
		DisplayName: "Dark Therapist",
		Email:       "dark-therapist@soulconnect.local",
		Synthetic:   true,
		Traits:      []string{"depression", "anxiety"},
	}
	req.NoError(repository.Seed([]domain.Identity{persona}))

	at := time.Now().UTC()
	req.NoError(repository.UpdateLastActive(persona.ID, at, true))

	// Re-seeding refreshes the profile without wiping activity state
	persona.Bio = "updated bio"
	req.NoError(repository.Seed([]domain.Identity{persona}))

	fetched, err := repository.Get(persona.ID)
	req.NoError(err)
	req.Equal("updated bio", fetched.Bio)
	req.True(fetched.Online)
}
