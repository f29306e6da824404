package matching

import (
	"strings"
)

// MetersPerMile converts preference distances for storage queries that work
// in meters. Business logic stays in miles.
const MetersPerMile = 1609.34

// Page is a 1-based window over the candidate sequence.
type Page struct {
	Number int
	Size   int
}

// Offset is the number of candidates before the page.
func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// Filter selects the candidates a requester may be shown.
type Filter struct {
	Requester string
	Origin    *Coordinates
	Exclude   map[string]struct{}

	AgeMin           int
	AgeMax           int
	Gender           string
	Education        string
	Religion         string
	MaxDistanceMiles float64
}

// BuildFilter derives the candidate filter for profile. Every counterpart
// that shares a Match record with the user, whatever its status, is excluded
// for good, as is the user themselves.
func BuildFilter(profile Profile, matches []*Match) Filter {
	exclude := make(map[string]struct{}, len(matches)+1)
	exclude[profile.UserID] = struct{}{}
	for _, m := range matches {
		exclude[m.Pair.Low] = struct{}{}
		exclude[m.Pair.High] = struct{}{}
	}

	f := Filter{
		Requester:        profile.UserID,
		Origin:           profile.Location,
		Exclude:          exclude,
		AgeMin:           profile.Preferences.AgeMin,
		AgeMax:           profile.Preferences.AgeMax,
		MaxDistanceMiles: profile.Preferences.MaxDistanceMiles,
	}
	if !isWildcard(profile.Preferences.Gender) {
		f.Gender = strings.ToLower(strings.TrimSpace(profile.Preferences.Gender))
	}
	if !isWildcard(profile.Preferences.Education) {
		f.Education = strings.TrimSpace(profile.Preferences.Education)
	}
	if !isWildcard(profile.Preferences.Religion) {
		f.Religion = strings.TrimSpace(profile.Preferences.Religion)
	}
	return f
}

// ExcludedIDs returns the exclusion set as a slice, for storage queries.
func (f Filter) ExcludedIDs() []string {
	ids := make([]string, 0, len(f.Exclude))
	for id := range f.Exclude {
		ids = append(ids, id)
	}
	return ids
}

// Matches reports whether candidate passes the filter.
func (f Filter) Matches(candidate Profile) bool {
	if !candidate.Active {
		return false
	}
	if candidate.UserID == f.Requester {
		return false
	}
	if _, excluded := f.Exclude[candidate.UserID]; excluded {
		return false
	}
	if f.AgeMin > 0 && candidate.Age < f.AgeMin {
		return false
	}
	if f.AgeMax > 0 && candidate.Age > f.AgeMax {
		return false
	}
	if f.Gender != "" && !strings.EqualFold(candidate.Gender, f.Gender) {
		return false
	}
	if f.Education != "" && !strings.EqualFold(candidate.Education, f.Education) {
		return false
	}
	if f.Religion != "" && !strings.EqualFold(candidate.Religion, f.Religion) {
		return false
	}
	// Distance only applies when both sides have coordinates.
	if f.Origin != nil && candidate.Location != nil && f.MaxDistanceMiles > 0 {
		if DistanceMiles(*f.Origin, *candidate.Location) > f.MaxDistanceMiles {
			return false
		}
	}
	return true
}
