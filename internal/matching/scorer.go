package matching

import (
	"math"
	"strings"
)

// Factor weights. Only factors with enough data on both profiles count
// towards the total the score is normalized against.
const (
	AgeWeight       = 20
	LocationWeight  = 25
	InterestsWeight = 30
	EducationWeight = 15
	ReligionWeight  = 10

	// NeutralScore is returned when no factor could be evaluated.
	NeutralScore = 50

	// EarthRadiusMiles is used by the haversine distance.
	EarthRadiusMiles = 3959.0
)

// FactorScore is one evaluated factor of a compatibility score.
type FactorScore struct {
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
	Weight int     `json:"weight"`
}

// Breakdown is a compatibility score together with the factors it was built from.
type Breakdown struct {
	Score   int           `json:"score"`
	Factors []FactorScore `json:"factors"`
}

// Score computes the 0-100 compatibility of b as seen from a.
//
// Missing optional data (location, education, religion) on either side drops
// that factor's weight instead of failing. Callers pass the initiating user
// as a; the percentage frozen on a Match is always taken from that direction.
func Score(a, b Profile) int {
	return Explain(a, b).Score
}

// Explain computes the same value as Score and keeps the per-factor detail.
func Explain(a, b Profile) Breakdown {
	var factors []FactorScore

	factors = append(factors, FactorScore{Name: "age", Score: ageScore(a.Age, b.Age), Weight: AgeWeight})

	if a.Location != nil && b.Location != nil {
		factors = append(factors, FactorScore{
			Name:   "location",
			Score:  locationScore(DistanceMiles(*a.Location, *b.Location)),
			Weight: LocationWeight,
		})
	}

	factors = append(factors, FactorScore{Name: "interests", Score: interestScore(a.Interests, b.Interests), Weight: InterestsWeight})

	if a.Education != "" && b.Education != "" {
		factors = append(factors, FactorScore{Name: "education", Score: equalityScore(a.Education, b.Education, 70), Weight: EducationWeight})
	}
	if a.Religion != "" && b.Religion != "" {
		factors = append(factors, FactorScore{Name: "religion", Score: equalityScore(a.Religion, b.Religion, 50), Weight: ReligionWeight})
	}

	total := 0.0
	totalWeight := 0
	for i := range factors {
		f := &factors[i]
		// Garbage coordinates must not poison the whole score.
		if math.IsNaN(f.Score) || math.IsInf(f.Score, 0) {
			f.Score = 0
		}
		total += f.Score * float64(f.Weight)
		totalWeight += f.Weight
	}
	if totalWeight == 0 {
		return Breakdown{Score: NeutralScore, Factors: factors}
	}

	final := math.Round(total / float64(totalWeight))
	return Breakdown{Score: int(math.Min(100, math.Max(0, final))), Factors: factors}
}

// 5 points off per year of difference
func ageScore(a, b int) float64 {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return math.Max(0, 100-5*float64(diff))
}

// 1 point off per 10 miles
func locationScore(distanceMiles float64) float64 {
	return math.Max(0, 100-distanceMiles/10)
}

// interestScore is |a ∩ b| / max(|a|, |b|) * 100, 0 when either set is empty.
func interestScore(a, b []string) float64 {
	setA := interestSet(a)
	setB := interestSet(b)

	denominator := len(setA)
	if len(setB) > denominator {
		denominator = len(setB)
	}
	if len(setA) == 0 || len(setB) == 0 || denominator < 1 {
		return 0
	}

	common := 0
	for interest := range setA {
		if _, ok := setB[interest]; ok {
			common++
		}
	}
	return float64(common) / float64(denominator) * 100
}

func equalityScore(a, b string, mismatch float64) float64 {
	if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
		return 100
	}
	return mismatch
}

// DistanceMiles is the great-circle distance between two points (haversine).
func DistanceMiles(from, to Coordinates) float64 {
	dLat := toRadians(to.Lat - from.Lat)
	dLon := toRadians(to.Lon - from.Lon)
	lat1 := toRadians(from.Lat)
	lat2 := toRadians(to.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1)*math.Cos(lat2)
	// Rounding can push h just past 1 for antipodal points.
	h = math.Min(1, math.Max(0, h))
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMiles * c
}

func toRadians(deg float64) float64 {
	return deg * (math.Pi / 180)
}
