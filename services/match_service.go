//go:generate go run go.uber.org/mock/mockgen -source=match_service.go -destination=../mocks/mock_match_service.go -package=mocks
package services

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"soulconnect/domain"
	"soulconnect/matching"
	"soulconnect/repositories"
)

// topMatches caps the advanced match list returned to a caller.
const topMatches = 20

type IMatchService interface {
	SaveTestResults(identityID string, traits []string) (domain.Identity, error)
	SaveVillainResult(identityID string, score int, level string) error
	SimpleMatches(identityID string) ([]SimpleMatch, error)
	FindMatches(identityID string) ([]domain.MatchResult, error)
}

// SimpleMatch is the trait-overlap ranking used by the basic match list.
// The full compatibility scorer backs FindMatches instead.
type SimpleMatch struct {
	Identity     domain.Identity
	MatchScore   int
	CommonTraits []string
}

type MatchService struct {
	identities repositories.IIdentityRepository
	scorer     *matching.Scorer
}

func NewMatchService(identities repositories.IIdentityRepository, scorer *matching.Scorer) IMatchService {
	return &MatchService{identities: identities, scorer: scorer}
}

func (s *MatchService) SaveTestResults(identityID string, traits []string) (domain.Identity, error) {
	if err := s.identities.SetTraits(identityID, traits); err != nil {
		return domain.Identity{}, err
	}
	return s.identities.Get(identityID)
}

func (s *MatchService) SaveVillainResult(identityID string, score int, level string) error {
	return s.identities.SetVillain(identityID, score, level)
}

// SimpleMatches ranks every other identity by the raw count of shared
// traits, highest first.
func (s *MatchService) SimpleMatches(identityID string) ([]SimpleMatch, error) {
	subject, others, err := s.subjectAndOthers(identityID)
	if err != nil {
		return nil, err
	}

	matches := lo.Map(others, func(candidate domain.Identity, _ int) SimpleMatch {
		common := subject.SharedTraits(candidate)
		return SimpleMatch{
			Identity:     candidate,
			MatchScore:   len(common),
			CommonTraits: common,
		}
	})
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].MatchScore > matches[j].MatchScore
	})
	return matches, nil
}

// FindMatches runs the full compatibility scorer against every other
// identity and returns the best twenty.
func (s *MatchService) FindMatches(identityID string) ([]domain.MatchResult, error) {
	subject, others, err := s.subjectAndOthers(identityID)
	if err != nil {
		return nil, err
	}

	results := s.scorer.Rank(subject, others, time.Now().UTC())
	if len(results) > topMatches {
		results = results[:topMatches]
	}
	return results, nil
}

func (s *MatchService) subjectAndOthers(identityID string) (domain.Identity, []domain.Identity, error) {
	subject, err := s.identities.Get(identityID)
	if err != nil {
		return domain.Identity{}, nil, err
	}
	all, err := s.identities.All()
	if err != nil {
		return domain.Identity{}, nil, err
	}
	others := lo.Filter(all, func(candidate domain.Identity, _ int) bool {
		return candidate.ID != identityID
	})
	return subject, others, nil
}
