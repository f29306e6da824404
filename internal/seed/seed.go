// Package seed fills a store with deterministic demo profiles and intent.
package seed

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/matching"
)

// Config controls how much data is generated.
type Config struct {
	Count    int
	Seed     int64
	LikeRate float64 // chance that one user of a pair likes the other
	PassRate float64 // chance that one user of a pair passes on the other
}

// DefaultConfig mirrors the demo dataset used in development.
func DefaultConfig() Config {
	return Config{Count: 300, Seed: 42, LikeRate: 0.05, PassRate: 0.02}
}

func (c Config) validate() error {
	if c.Count < 1 {
		return errors.New("count must be at least 1")
	}
	if c.LikeRate < 0 || c.LikeRate > 1 || c.PassRate < 0 || c.PassRate > 1 {
		return errors.New("rates must be in range 0..1")
	}
	return nil
}

// ProfileWriter stores generated profiles.
type ProfileWriter interface {
	PutProfile(ctx context.Context, p matching.Profile) error
}

// Intent is the engine surface used to record likes and passes.
type Intent interface {
	RecordLike(ctx context.Context, liker, target string) (matching.LikeResult, error)
	RecordPass(ctx context.Context, passer, target string) (*matching.Match, error)
}

// Stats summarises a run.
type Stats struct {
	Profiles int
	Likes    int
	Passes   int
	Matches  int
}

type city struct {
	Name     string
	Lat, Lon float64
}

var cities = []city{
	{"Helsinki", 60.1699, 24.9384},
	{"Espoo", 60.2055, 24.6559},
	{"Tampere", 61.4978, 23.7610},
	{"Turku", 60.4518, 22.2666},
	{"Oulu", 65.0121, 25.4651},
	{"Jyväskylä", 62.2426, 25.7473},
}

var (
	firstNames = []string{"Alex", "Sam", "Mia", "Lauri", "Noah", "Olivia", "Leo", "Emil", "Sara", "Luca", "Milla", "Mikko", "Eeva", "Niklas", "Sofia"}
	lastNames  = []string{"Korhonen", "Virtanen", "Nieminen", "Laine", "Heikkinen", "Koski", "Mäki", "Aho", "Salmi", "Rantanen"}
	hobbies    = []string{"hiking", "photography", "cooking", "reading", "board games", "gym", "yoga", "tennis", "golf", "bouldering"}
	digital    = []string{"indie games", "retro gaming", "web dev", "3D art", "music production", "AI tinkering", "blogging"}
	educations = []string{"", "high school", "bachelor", "master", "phd"}
	religions  = []string{"", "none", "christian", "muslim", "buddhist"}
	genders    = []string{matching.GenderMale, matching.GenderFemale, matching.GenderOther}
)

// Profiles generates n profiles from r. The first two are fixed test users
// living next to each other in Helsinki.
func Profiles(r *rand.Rand, n int, now time.Time) []matching.Profile {
	out := make([]matching.Profile, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("user%d", i+1)
		if i < 2 {
			out = append(out, testUser(i, id, now))
			continue
		}

		c := cities[r.Intn(len(cities))]
		age := 18 + r.Intn(40)
		p := matching.Profile{
			UserID:      id,
			DisplayName: fmt.Sprintf("%s %s", firstNames[r.Intn(len(firstNames))], lastNames[r.Intn(len(lastNames))]),
			Age:         age,
			Gender:      genders[r.Intn(len(genders))],
			Location: &matching.Coordinates{
				Lon: c.Lon + (r.Float64()-0.5)*0.2,
				Lat: c.Lat + (r.Float64()-0.5)*0.2,
			},
			Interests:  []string{pickFrom(r, hobbies), pickFrom(r, hobbies), pickFrom(r, digital)},
			Education:  pickFrom(r, educations),
			Religion:   pickFrom(r, religions),
			LastActive: now.Add(-time.Duration(r.Intn(14*24)) * time.Hour), // within the last 2 weeks
			Active:     r.Float64() > 0.05,
			Preferences: matching.Preferences{
				AgeMin:           max(18, age-6),
				AgeMax:           age + 8,
				Gender:           matching.PreferAny,
				MaxDistanceMiles: float64(10 + r.Intn(290)),
				Education:        matching.PreferAny,
				Religion:         matching.PreferAny,
			},
		}
		if r.Float64() < 0.3 {
			p.Preferences.Gender = genders[r.Intn(2)]
		}
		out = append(out, p)
	}
	return out
}

func testUser(i int, id string, now time.Time) matching.Profile {
	p := matching.Profile{
		UserID:     id,
		Age:        30 + i*2,
		Gender:     matching.GenderOther,
		Education:  "master",
		LastActive: now,
		Active:     true,
		Preferences: matching.Preferences{
			AgeMin:           25,
			AgeMax:           40,
			Gender:           matching.PreferAny,
			MaxDistanceMiles: 25,
			Education:        matching.PreferAny,
			Religion:         matching.PreferAny,
		},
	}
	if i == 0 {
		p.DisplayName = "Test User One"
		p.Location = &matching.Coordinates{Lon: 24.9384, Lat: 60.1699}
		p.Interests = []string{"woodworking", "pottery", "indie games"}
	} else {
		p.DisplayName = "Test User Two"
		p.Location = &matching.Coordinates{Lon: 24.9400, Lat: 60.1750}
		p.Interests = []string{"calligraphy", "pottery", "retro gaming"}
	}
	return p
}

func pickFrom(r *rand.Rand, opts []string) string {
	return opts[r.Intn(len(opts))]
}

// Run writes the generated profiles, matches the two test users and then
// records random likes and passes through the engine, so every record
// follows the normal state machine.
func Run(ctx context.Context, profiles ProfileWriter, intent Intent, cfg Config, log *zap.Logger) (Stats, error) {
	var stats Stats
	if err := cfg.validate(); err != nil {
		return stats, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	r := rand.New(rand.NewSource(cfg.Seed))
	users := Profiles(r, cfg.Count, time.Now().UTC())
	for _, p := range users {
		if err := profiles.PutProfile(ctx, p); err != nil {
			return stats, fmt.Errorf("put profile %s: %w", p.UserID, err)
		}
		stats.Profiles++
	}
	log.Info("inserted profiles", zap.Int("count", stats.Profiles))

	if len(users) >= 2 {
		a, b := users[0].UserID, users[1].UserID
		if err := stats.like(ctx, intent, a, b); err != nil {
			return stats, err
		}
		if err := stats.like(ctx, intent, b, a); err != nil {
			return stats, err
		}
	}

	// Random intent among everybody else.
	for i := 2; i < len(users); i++ {
		for j := 2; j < len(users); j++ {
			if i == j {
				continue
			}
			from, to := users[i].UserID, users[j].UserID
			switch roll := r.Float64(); {
			case roll < cfg.LikeRate:
				if err := stats.like(ctx, intent, from, to); err != nil {
					return stats, err
				}
			case roll < cfg.LikeRate+cfg.PassRate:
				_, err := intent.RecordPass(ctx, from, to)
				switch {
				case errors.Is(err, matching.ErrInvalidTransition):
				case err != nil:
					return stats, fmt.Errorf("pass %s -> %s: %w", from, to, err)
				default:
					stats.Passes++
				}
			}
		}
	}
	log.Info("seed complete",
		zap.Int("likes", stats.Likes),
		zap.Int("passes", stats.Passes),
		zap.Int("matches", stats.Matches),
	)
	return stats, nil
}

// like records one like. Likes that hit a vetoed pair are expected and skipped.
func (s *Stats) like(ctx context.Context, intent Intent, from, to string) error {
	res, err := intent.RecordLike(ctx, from, to)
	switch {
	case errors.Is(err, matching.ErrInvalidTransition), errors.Is(err, matching.ErrDuplicateLike):
		return nil
	case err != nil:
		return fmt.Errorf("like %s -> %s: %w", from, to, err)
	}
	s.Likes++
	if res.Matched {
		s.Matches++
	}
	return nil
}
