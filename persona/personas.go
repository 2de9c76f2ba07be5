package persona

import "soulconnect/domain"

// SeedIdentities returns the built-in synthetic personas. They are
// upserted at boot so matching and chat can always offer a counterpart,
// even on an empty install.
func SeedIdentities() []domain.Identity {
	return []domain.Identity{
		{
			ID:          "persona-dark-therapist",
			DisplayName: "Dark Therapist",
			Email:       "dark-therapist@soulconnect.local",
			Traits:      []string{"depression", "anxiety"},
			Avatar:      "🧠",
			Bio:         "An analyst of the hidden layers, here to listen to what you do not say.",
			Synthetic:   true,
		},
		{
			ID:          "persona-chaos-master",
			DisplayName: "Chaos Master",
			Email:       "chaos-master@soulconnect.local",
			Traits:      []string{"adhd", "bipolar"},
			Avatar:      "🌪️",
			Bio:         "Keeper of beautiful madness. Bring your storms; we will dance in them.",
			Synthetic:   true,
		},
		{
			ID:          "persona-shadow-whisperer",
			DisplayName: "Shadow Whisperer",
			Email:       "shadow-whisperer@soulconnect.local",
			Traits:      []string{"ocd", "ptsd"},
			Avatar:      "🌙",
			Bio:         "A companion for the dark places, where the truest things are kept.",
			Synthetic:   true,
		},
	}
}
