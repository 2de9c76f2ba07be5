//go:generate go run go.uber.org/mock/mockgen -source=presence_service.go -destination=../mocks/mock_presence_service.go -package=mocks
package services

import (
	"time"

	"github.com/samber/lo"

	"soulconnect/domain"
	"soulconnect/matching"
	"soulconnect/repositories"
)

type IPresenceService interface {
	OnlineUsers(excludeID string) ([]OnlineUser, error)
}

// OnlineUser is the public shape of an identity currently inside the
// online window.
type OnlineUser struct {
	ID              string
	Name            string
	Avatar          string
	Traits          []string
	PersonalityType string
	Synthetic       bool
}

type PresenceService struct {
	identities repositories.IIdentityRepository
	config     matching.TraitConfig
}

func NewPresenceService(identities repositories.IIdentityRepository, config matching.TraitConfig) IPresenceService {
	return &PresenceService{identities: identities, config: config}
}

// OnlineUsers lists every identity active within the online window,
// excluding the caller. Synthetic personas are always listed.
func (s *PresenceService) OnlineUsers(excludeID string) ([]OnlineUser, error) {
	all, err := s.identities.All()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	online := lo.Filter(all, func(identity domain.Identity, _ int) bool {
		if identity.ID == excludeID {
			return false
		}
		return identity.Presence(now) == domain.PresenceOnline
	})

	return lo.Map(online, func(identity domain.Identity, _ int) OnlineUser {
		return OnlineUser{
			ID:              identity.ID,
			Name:            identity.DisplayName,
			Avatar:          identity.Avatar,
			Traits:          identity.Traits,
			PersonalityType: s.config.PersonalityType(identity.Traits),
			Synthetic:       identity.Synthetic,
		}
	}), nil
}
