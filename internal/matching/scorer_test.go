package matching

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreAgeAndInterestsScenario(t *testing.T) {
	a := Profile{Age: 30, Interests: []string{"hiking", "music"}}
	b := Profile{Age: 32, Interests: []string{"music", "travel"}}

	bd := Explain(a, b)
	require.Len(t, bd.Factors, 2)
	assert.Equal(t, "age", bd.Factors[0].Name)
	assert.InDelta(t, 90, bd.Factors[0].Score, 1e-9)
	assert.Equal(t, "interests", bd.Factors[1].Name)
	assert.InDelta(t, 50, bd.Factors[1].Score, 1e-9)

	// (90*20 + 50*30) / 50
	assert.Equal(t, 66, bd.Score)
	assert.Equal(t, 66, Score(a, b))
}

func TestScoreIdenticalProfilesIsPerfect(t *testing.T) {
	p := Profile{
		Age:       29,
		Location:  &Coordinates{Lon: -122.4194, Lat: 37.7749},
		Interests: []string{"Climbing", "cooking ", "climbing"},
		Education: "Masters",
		Religion:  "none",
	}
	assert.Equal(t, 100, Score(p, p))
	assert.Len(t, Explain(p, p).Factors, 5)
}

func TestScoreFarApartProfiles(t *testing.T) {
	// 500 miles due east along the equator.
	lon := 500 / EarthRadiusMiles * 180 / math.Pi
	a := Profile{
		Age:       20,
		Location:  &Coordinates{Lon: 0, Lat: 0},
		Interests: []string{"chess"},
		Education: "phd",
		Religion:  "buddhist",
	}
	b := Profile{
		Age:       70,
		Location:  &Coordinates{Lon: lon, Lat: 0},
		Interests: []string{"surfing"},
		Education: "high school",
		Religion:  "catholic",
	}

	assert.InDelta(t, 500, DistanceMiles(*a.Location, *b.Location), 1e-6)
	// (0*20 + 50*25 + 0*30 + 70*15 + 50*10) / 100
	got := Score(a, b)
	assert.Equal(t, 28, got)
	assert.GreaterOrEqual(t, got, 0)
}

func TestScoreNeverNegative(t *testing.T) {
	a := Profile{Age: 18, Location: &Coordinates{Lon: 0, Lat: 0}}
	b := Profile{Age: 99, Location: &Coordinates{Lon: 180, Lat: 0}}
	got := Score(a, b)
	assert.Equal(t, 0, got)
}

func TestScoreEmptyInterestsScoreZero(t *testing.T) {
	a := Profile{Age: 25}
	b := Profile{Age: 25, Interests: []string{"art"}}
	bd := Explain(a, b)
	require.Len(t, bd.Factors, 2)
	assert.Zero(t, bd.Factors[1].Score)
	// (100*20 + 0*30) / 50
	assert.Equal(t, 40, bd.Score)

	assert.Equal(t, 40, Score(Profile{Age: 25, Interests: []string{" ", ""}}, Profile{Age: 25}))
}

func TestScoreOptionalFactorsDropWeight(t *testing.T) {
	a := Profile{Age: 30, Interests: []string{"x"}, Education: "bachelors", Religion: "none"}
	b := Profile{Age: 30, Interests: []string{"x"}}
	// Education and religion are missing on b so only age and interests count.
	assert.Equal(t, 100, Score(a, b))

	b.Education = "BACHELORS"
	bd := Explain(a, b)
	assert.Equal(t, 100, bd.Score)
	assert.Len(t, bd.Factors, 3)
}

func TestScoreSkipsLocationWhenOneSideMissing(t *testing.T) {
	a := Profile{Age: 30, Interests: []string{"a", "b"}, Location: &Coordinates{Lon: 0, Lat: 0}}
	b := Profile{Age: 30, Interests: []string{"a", "b", "c", "d"}}

	bd := Explain(a, b)
	require.Len(t, bd.Factors, 2)
	// (100*20 + 50*30) / 50
	assert.Equal(t, 70, bd.Score)
	assert.Equal(t, Score(a, b), Score(b, a))
}

func TestDistanceMiles(t *testing.T) {
	nyc := Coordinates{Lon: -74.0060, Lat: 40.7128}
	la := Coordinates{Lon: -118.2437, Lat: 34.0522}

	assert.InDelta(t, 2445, DistanceMiles(nyc, la), 5)
	assert.InDelta(t, DistanceMiles(nyc, la), DistanceMiles(la, nyc), 1e-9)
	assert.Zero(t, DistanceMiles(nyc, nyc))
}

func TestLocationScoreFloorsAtZero(t *testing.T) {
	assert.InDelta(t, 100, locationScore(0), 1e-9)
	assert.InDelta(t, 75, locationScore(250), 1e-9)
	assert.Zero(t, locationScore(5000))
}

func TestInterestScoreNormalizes(t *testing.T) {
	got := interestScore([]string{"Music", " music", "HIKING"}, []string{"hiking", "music"})
	assert.InDelta(t, 100, got, 1e-9)
}

func TestEqualityScoreIgnoresCaseAndPadding(t *testing.T) {
	assert.InDelta(t, 100, equalityScore("Masters", " masters ", 70), 1e-9)
	assert.InDelta(t, 70, equalityScore("Masters", "Bachelors", 70), 1e-9)

	a := Profile{Age: 30, Education: "PhD", Religion: "Buddhist"}
	b := Profile{Age: 30, Education: "phd", Religion: "buddhist "}
	assert.Equal(t, 100, Score(a, b))
}

func TestDistanceMilesAntipodal(t *testing.T) {
	a := Coordinates{Lon: -179, Lat: -86.78}
	b := Coordinates{Lon: 1, Lat: 86.78}

	d := DistanceMiles(a, b)
	require.False(t, math.IsNaN(d))
	assert.InDelta(t, math.Pi*EarthRadiusMiles, d, 1)
}

func TestScoreStaysInRangeForExtremeCoordinates(t *testing.T) {
	base := Profile{Age: 30, Interests: []string{"music"}}
	with := func(lon, lat float64) Profile {
		p := base
		p.Location = &Coordinates{Lon: lon, Lat: lat}
		return p
	}

	tests := []struct {
		name string
		a, b Profile
	}{
		{name: "antipodal", a: with(-179, -86.78), b: with(1, 86.78)},
		{name: "poles", a: with(0, 90), b: with(0, -90)},
		{name: "latitude out of range", a: with(10, 120), b: with(-170, -300)},
		{name: "longitude out of range", a: with(720, 10), b: with(-540, 10)},
		{name: "infinite", a: with(math.Inf(1), 0), b: with(0, 0)},
		{name: "nan", a: with(math.NaN(), math.NaN()), b: with(0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, s := range []int{Score(tt.a, tt.b), Score(tt.b, tt.a)} {
				assert.GreaterOrEqual(t, s, 0)
				assert.LessOrEqual(t, s, 100)
			}
			for _, f := range Explain(tt.a, tt.b).Factors {
				assert.False(t, math.IsNaN(f.Score), f.Name)
			}
		})
	}
}

func TestScoreAntipodalSweep(t *testing.T) {
	base := Profile{Age: 40}
	for lon := -179.0; lon <= 180; lon += 7 {
		for lat := -89.0; lat <= 89; lat += 0.37 {
			a, b := base, base
			a.Location = &Coordinates{Lon: lon, Lat: lat}
			b.Location = &Coordinates{Lon: lon + 180, Lat: -lat}
			s := Score(a, b)
			if s < 0 || s > 100 {
				t.Fatalf("score %d out of range for lon=%v lat=%v", s, lon, lat)
			}
		}
	}
}
