package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeker() Profile {
	return Profile{
		UserID:   "me",
		Age:      30,
		Gender:   GenderMale,
		Location: &Coordinates{Lon: -74.0060, Lat: 40.7128},
		Active:   true,
		Preferences: Preferences{
			AgeMin:           25,
			AgeMax:           35,
			Gender:           GenderFemale,
			MaxDistanceMiles: 50,
			Education:        PreferAny,
			Religion:         "",
		},
	}
}

func candidate(id string) Profile {
	return Profile{
		UserID:   id,
		Age:      28,
		Gender:   GenderFemale,
		Location: &Coordinates{Lon: -73.9857, Lat: 40.7484},
		Active:   true,
	}
}

func TestBuildFilterExcludesEveryCounterpart(t *testing.T) {
	matches := []*Match{
		{Pair: NewPair("me", "pending"), Status: StatusPending},
		{Pair: NewPair("me", "passed"), Status: StatusRejected},
		{Pair: NewPair("blocked", "me"), Status: StatusBlocked},
		{Pair: NewPair("me", "matched"), Status: StatusMatched, IsActive: true},
	}
	f := BuildFilter(seeker(), matches)

	for _, id := range []string{"me", "pending", "passed", "blocked", "matched"} {
		assert.Contains(t, f.Exclude, id)
		assert.False(t, f.Matches(candidate(id)), id)
	}
	assert.True(t, f.Matches(candidate("fresh")))
	assert.ElementsMatch(t, []string{"me", "pending", "passed", "blocked", "matched"}, f.ExcludedIDs())
}

func TestFilterMatches(t *testing.T) {
	f := BuildFilter(seeker(), nil)

	tests := []struct {
		name   string
		mutate func(p *Profile)
		want   bool
	}{
		{"baseline", func(*Profile) {}, true},
		{"inactive", func(p *Profile) { p.Active = false }, false},
		{"too young", func(p *Profile) { p.Age = 24 }, false},
		{"age min inclusive", func(p *Profile) { p.Age = 25 }, true},
		{"age max inclusive", func(p *Profile) { p.Age = 35 }, true},
		{"too old", func(p *Profile) { p.Age = 36 }, false},
		{"wrong gender", func(p *Profile) { p.Gender = GenderMale }, false},
		{"gender case", func(p *Profile) { p.Gender = "Female" }, true},
		{"too far", func(p *Profile) { p.Location = &Coordinates{Lon: -118.2437, Lat: 34.0522} }, false},
		{"no location", func(p *Profile) { p.Location = nil }, true},
		{"education wildcard", func(p *Profile) { p.Education = "phd" }, true},
		{"religion unset", func(p *Profile) { p.Religion = "jewish" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := candidate("c")
			tt.mutate(&p)
			assert.Equal(t, tt.want, f.Matches(p))
		})
	}
}

func TestFilterWildcards(t *testing.T) {
	me := seeker()
	me.Preferences.Gender = PreferBoth
	me.Preferences.Education = "Bachelors"
	me.Preferences.Religion = "any"
	f := BuildFilter(me, nil)

	assert.Empty(t, f.Gender)
	assert.Equal(t, "Bachelors", f.Education)
	assert.Empty(t, f.Religion)

	c := candidate("c")
	c.Gender = GenderOther
	c.Education = "bachelors"
	assert.True(t, f.Matches(c))

	c.Education = "masters"
	assert.False(t, f.Matches(c))
}

func TestFilterDistanceNeedsRequesterLocation(t *testing.T) {
	me := seeker()
	me.Location = nil
	f := BuildFilter(me, nil)

	c := candidate("c")
	c.Location = &Coordinates{Lon: 139.6917, Lat: 35.6895}
	assert.True(t, f.Matches(c))
}

func TestPageOffset(t *testing.T) {
	require.Equal(t, 0, Page{Number: 1, Size: 10}.Offset())
	require.Equal(t, 20, Page{Number: 3, Size: 10}.Offset())
	require.Equal(t, 0, Page{Number: 0, Size: 10}.Offset())
}
