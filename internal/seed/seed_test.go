package seed_test

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/matching"
	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/seed"
	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/store/sqlite"
)

func TestProfilesAreDeterministic(t *testing.T) {
	now := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)
	a := seed.Profiles(rand.New(rand.NewSource(7)), 20, now)
	b := seed.Profiles(rand.New(rand.NewSource(7)), 20, now)
	assert.Equal(t, a, b)

	require.Len(t, a, 20)
	assert.Equal(t, "Test User One", a[0].DisplayName)
	assert.Equal(t, "Test User Two", a[1].DisplayName)
	for _, p := range a {
		assert.GreaterOrEqual(t, p.Age, 18)
		require.NotNil(t, p.Location)
		assert.LessOrEqual(t, p.Preferences.AgeMin, p.Preferences.AgeMax)
	}
}

func TestRunMatchesTestUsers(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "seed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	log := zaptest.NewLogger(t)
	engine := matching.NewEngine(store, store, nil, log, matching.Config{})

	stats, err := seed.Run(ctx, store, engine, seed.Config{Count: 12, Seed: 1, LikeRate: 0.3, PassRate: 0.1}, log)
	require.NoError(t, err)
	assert.Equal(t, 12, stats.Profiles)
	assert.GreaterOrEqual(t, stats.Matches, 1)

	matches, err := engine.ListMatches(ctx, "user1")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, matching.NewPair("user1", "user2"), matches[0].Pair)
}

func TestRunValidatesConfig(t *testing.T) {
	_, err := seed.Run(context.Background(), nil, nil, seed.Config{Count: 0}, nil)
	assert.Error(t, err)

	_, err = seed.Run(context.Background(), nil, nil, seed.Config{Count: 3, LikeRate: 2}, nil)
	assert.Error(t, err)
}
