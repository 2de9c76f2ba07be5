//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/mock_auth_service.go -package=mocks
package services

import (
	"fmt"
	"time"

	"soulconnect/auth"
	"soulconnect/domain"
	"soulconnect/errors"
	"soulconnect/repositories"
)

type IAuthService interface {
	Register(email, displayName, password string) (domain.Identity, Token, error)
	Login(email, password string) (domain.Identity, Token, error)
	Profile(identityID string) (domain.Identity, error)
}

type AuthService struct {
	identities repositories.IIdentityRepository
	tokens     *auth.Tokens
}

type Token string

func (t Token) String() string {
	return string(t)
}

func NewAuthService(identities repositories.IIdentityRepository, tokens *auth.Tokens) IAuthService {
	return &AuthService{identities: identities, tokens: tokens}
}

func (s *AuthService) Register(email, displayName, password string) (domain.Identity, Token, error) {
	valReq := auth.RegisterRequest{
		Email:       email,
		DisplayName: displayName,
		Password:    password,
	}

	// 1. Validate business rules (email format, password complexity)
	// We check this before any expensive cryptographic operation.
	if err := auth.ValidateRegister(valReq); err != nil {
		return domain.Identity{}, "", fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	// 2. Hash the password using Argon2id
	// Done in the service layer to keep the repository unaware of plain passwords.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return domain.Identity{}, "", fmt.Errorf("hashing failed: %w", err)
	}

	// 3. Persist the identity with the generated hash
	identity, err := s.identities.Create(domain.Identity{
		Email:        email,
		DisplayName:  displayName,
		Online:       true,
		LastActiveAt: time.Now().UTC(),
	}, hashedPassword)
	if err != nil {
		return domain.Identity{}, "", err // Will propagate ErrUserAlreadyExists if email is taken
	}

	// 4. Generate the initial session token
	token, err := s.tokens.Generate(identity.ID, identity.DisplayName)
	if err != nil {
		return domain.Identity{}, "", errors.ErrTokenGeneration
	}

	return identity, Token(token), nil
}

func (s *AuthService) Login(email, password string) (domain.Identity, Token, error) {
	// 1. Retrieve identity by email from storage
	identity, hash, err := s.identities.GetByEmail(email)
	if err != nil {
		// Generic error to prevent user enumeration attacks
		return domain.Identity{}, "", errors.ErrInvalidCredentials
	}

	// 2. Compare the provided password with the stored hash
	match, err := auth.ComparePassword(password, hash)
	if err != nil || !match {
		return domain.Identity{}, "", errors.ErrInvalidCredentials
	}

	// 3. Issue the JWT token
	token, err := s.tokens.Generate(identity.ID, identity.DisplayName)
	if err != nil {
		return domain.Identity{}, "", errors.ErrTokenGeneration
	}

	if err := s.identities.UpdateLastActive(identity.ID, time.Now().UTC(), true); err != nil {
		return domain.Identity{}, "", err
	}

	return identity, Token(token), nil
}

func (s *AuthService) Profile(identityID string) (domain.Identity, error) {
	return s.identities.Get(identityID)
}
