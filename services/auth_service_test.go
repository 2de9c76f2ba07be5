package services

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"soulconnect/auth"
	"soulconnect/errors"
	"soulconnect/repositories"
)

func newIdentityRepo(t *testing.T) repositories.IIdentityRepository {
	t.Helper()
	opts := badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return repositories.NewIdentityRepository(db, slog.Default())
}

func TestAuthService_Register(t *testing.T) {
	repo := newIdentityRepo(t)
	tokens := auth.NewTokens("test-secret", 24*time.Hour)
	svc := NewAuthService(repo, tokens)

	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)

		identity, token, err := svc.Register("test@example.com", "Alice", "ComplexPass123!")

		req.NoError(err)
		req.NotEmpty(token)
		req.NotEmpty(identity.ID)
		req.True(identity.Online)

		// The token carries the new identity
		claims, err := tokens.Verify(token.String())
		req.NoError(err)
		req.Equal(identity.ID, claims.UserID)
		req.Equal("Alice", claims.DisplayName)
	})

	t.Run("should fail when password complexity is not met", func(t *testing.T) {
		req := require.New(t)

		_, token, err := svc.Register("weak@example.com", "Alice", "simple")

		req.ErrorIs(err, errors.ErrInvalidPassword)
		req.Empty(token)

		// Nothing was persisted
		_, _, err = repo.GetByEmail("weak@example.com")
		req.ErrorIs(err, errors.ErrNotFound)
	})

	t.Run("should fail when email is already taken", func(t *testing.T) {
		req := require.New(t)

		_, _, err := svc.Register("duplicate@example.com", "Alice", "ComplexPass123!")
		req.NoError(err)

		_, _, err = svc.Register("duplicate@example.com", "Bob", "OtherComplex456!")
		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestAuthService_Login(t *testing.T) {
	repo := newIdentityRepo(t)
	tokens := auth.NewTokens("test-secret", 24*time.Hour)
	svc := NewAuthService(repo, tokens)

	registered, _, err := svc.Register("login@example.com", "Alice", "ComplexPass123!")
	require.NoError(t, err)

	t.Run("should login with correct credentials", func(t *testing.T) {
		req := require.New(t)

		identity, token, err := svc.Login("login@example.com", "ComplexPass123!")

		req.NoError(err)
		req.Equal(registered.ID, identity.ID)
		req.NotEmpty(token)
	})

	t.Run("should reject a wrong password", func(t *testing.T) {
		req := require.New(t)

		_, _, err := svc.Login("login@example.com", "WrongPass123!")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should reject an unknown email with the same error", func(t *testing.T) {
		req := require.New(t)

		_, _, err := svc.Login("nobody@example.com", "ComplexPass123!")

		// Same error as a bad password, so callers cannot enumerate accounts
		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})
}
