// Package matching computes compatibility scores between identities.
// Trait lookup tables are data, not code: they live in an embedded JSON
// file so the scoring logic stays independent of content.
package matching

import (
	"embed"
	"encoding/json"
)

//go:embed config/traits.json
var configFS embed.FS

// TraitConfig holds the complementary-pair table and the descriptor
// tables that decorate match results.
type TraitConfig struct {
	ComplementaryPairs     [][2]string         `json:"complementaryPairs"`
	PersonalityTypes       map[string]string   `json:"personalityTypes"`
	Interests              map[string][]string `json:"interests"`
	DefaultPersonalityType string              `json:"defaultPersonalityType"`
	DefaultInterests       []string            `json:"defaultInterests"`
}

func LoadTraitConfig() (TraitConfig, error) {
	data, err := configFS.ReadFile("config/traits.json")
	if err != nil {
		return TraitConfig{}, err
	}
	var cfg TraitConfig
	if err = json.Unmarshal(data, &cfg); err != nil {
		return TraitConfig{}, err
	}
	return cfg, nil
}

// PersonalityType maps the first recognized trait to its descriptor.
func (c TraitConfig) PersonalityType(traits []string) string {
	for _, trait := range traits {
		if descriptor, ok := c.PersonalityTypes[trait]; ok {
			return descriptor
		}
	}
	return c.DefaultPersonalityType
}

// InterestsFor accumulates interests across traits, capped at three.
func (c TraitConfig) InterestsFor(traits []string) []string {
	var interests []string
	for _, trait := range traits {
		interests = append(interests, c.Interests[trait]...)
	}
	if len(interests) == 0 {
		return c.DefaultInterests
	}
	if len(interests) > 3 {
		interests = interests[:3]
	}
	return interests
}
