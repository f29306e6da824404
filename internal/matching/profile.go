package matching

import (
	"strings"
	"time"
)

// Gender values stored on a profile.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

// Preference wildcards. "both" is kept for profiles written by older clients.
const (
	PreferAny  = "any"
	PreferBoth = "both"
)

// Coordinates is a geo point. Storage keeps the (longitude, latitude) order,
// so does everything that touches it.
type Coordinates struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Preferences is what a user is looking for in a candidate.
type Preferences struct {
	AgeMin           int     `json:"age_min"`
	AgeMax           int     `json:"age_max"`
	Gender           string  `json:"gender"`
	MaxDistanceMiles float64 `json:"max_distance_miles"`
	Education        string  `json:"education"`
	Religion         string  `json:"religion"`
}

// Profile is the engine's read-only view of a user's profile.
type Profile struct {
	UserID      string       `json:"user_id"`
	DisplayName string       `json:"display_name,omitempty"`
	Age         int          `json:"age"`
	Gender      string       `json:"gender"`
	Location    *Coordinates `json:"location,omitempty"`
	Interests   []string     `json:"interests"`
	Education   string       `json:"education,omitempty"`
	Religion    string       `json:"religion,omitempty"`
	Preferences Preferences  `json:"preferences"`
	LastActive  time.Time    `json:"last_active"`
	Active      bool         `json:"active"`
}

// isWildcard reports whether a preference value accepts anything.
func isWildcard(pref string) bool {
	switch strings.ToLower(strings.TrimSpace(pref)) {
	case "", PreferAny, PreferBoth:
		return true
	}
	return false
}

// interestSet normalizes interests for comparison: trimmed, lower-cased,
// duplicates and blanks dropped.
func interestSet(interests []string) map[string]struct{} {
	set := make(map[string]struct{}, len(interests))
	for _, interest := range interests {
		key := strings.ToLower(strings.TrimSpace(interest))
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	return set
}
