package matching

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"soulconnect/domain"
)

// Scoring weights. The five terms sum to a 100-point scale; the jitter
// term alone is random, so repeated calls are not guaranteed a stable
// ranking unless the randomness source is fixed.
const (
	sharedTraitWeight   = 30.0
	complementaryWeight = 25.0
	complementaryStep   = 5.0
	syntheticBonus      = 20.0
	recencyWeight       = 15.0
	jitterWeight        = 10.0
)

// Scorer computes a 0-100 compatibility score with explanatory factors.
// Deterministic except for the jitter term; inject a seeded source (or
// one that returns zero) to make results reproducible.
type Scorer struct {
	config TraitConfig
	random func() float64
}

// NewScorer builds a scorer. random must return values in [0,1); nil
// defaults to the shared math/rand source.
func NewScorer(config TraitConfig, random func() float64) *Scorer {
	if random == nil {
		random = rand.Float64
	}
	return &Scorer{config: config, random: random}
}

// Score computes the compatibility of candidate for subject at the given
// instant. Every non-zero term contributes a human-readable factor.
func (s *Scorer) Score(subject, candidate domain.Identity, now time.Time) domain.MatchResult {
	var (
		total   float64
		factors []string
	)

	// Shared traits, normalized by the larger trait set.
	shared := subject.SharedTraits(candidate)
	denominator := math.Max(float64(len(candidate.Traits)), math.Max(float64(len(subject.Traits)), 1))
	if len(shared) > 0 {
		total += sharedTraitWeight * float64(len(shared)) / denominator
		factors = append(factors, fmt.Sprintf("Shared traits: %s", strings.Join(shared, ", ")))
	}

	// Complementary pairs, 5 points each in either direction, capped.
	var complementary float64
	for _, pair := range s.config.ComplementaryPairs {
		if (subject.HasTrait(pair[0]) && candidate.HasTrait(pair[1])) ||
			(subject.HasTrait(pair[1]) && candidate.HasTrait(pair[0])) {
			complementary += complementaryStep
			factors = append(factors, fmt.Sprintf("Complementary traits: %s / %s", pair[0], pair[1]))
		}
	}
	total += math.Min(complementary, complementaryWeight)

	if candidate.Synthetic {
		total += syntheticBonus
		factors = append(factors, "Always-available companion persona")
	}

	// Recency decays one point per hour of inactivity; identities that
	// were never active contribute nothing.
	if !candidate.LastActiveAt.IsZero() {
		hoursSinceActive := now.Sub(candidate.LastActiveAt).Hours()
		recency := math.Max(0, recencyWeight-hoursSinceActive)
		total += recency
		if recency > 0 {
			factors = append(factors, fmt.Sprintf("Recently active (%.0fh ago)", math.Max(0, hoursSinceActive)))
		}
	}

	total += s.random() * jitterWeight

	score := int(math.Round(total))
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	return domain.MatchResult{
		CounterpartID:   candidate.ID,
		DisplayName:     candidate.DisplayName,
		Avatar:          candidate.Avatar,
		Bio:             candidate.Bio,
		Traits:          candidate.Traits,
		Synthetic:       candidate.Synthetic,
		Score:           score,
		Factors:         factors,
		LastActiveAt:    candidate.LastActiveAt,
		Status:          candidate.Presence(now),
		PersonalityType: s.config.PersonalityType(candidate.Traits),
		Interests:       s.config.InterestsFor(candidate.Traits),
	}
}

// Rank scores every candidate and sorts descending; ties break on the
// candidate id so fixed-jitter tests get a deterministic order.
func (s *Scorer) Rank(subject domain.Identity, candidates []domain.Identity, now time.Time) []domain.MatchResult {
	results := lo.Map(candidates, func(candidate domain.Identity, _ int) domain.MatchResult {
		return s.Score(subject, candidate, now)
	})
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].CounterpartID < results[j].CounterpartID
	})
	return results
}
